package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/repository"
	"streetart_marketplace/internal/service"
)

func newReconcileCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Create the missing project of every accepted proposal",
		Long: `Finds accepted proposals that have no project, which only legacy data
can contain, and creates their project. Safe to run multiple times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			d, err := connect(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			repos := repository.NewRepositories(d.db, d.rdb, d.cfg.Realtime.ChannelPrefix, d.log)
			lifecycle := service.NewServices(repos, d.cfg, d.log).Lifecycle
			return runReconcile(ctx, cmd.OutOrStdout(), lifecycle, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list affected proposals without creating projects")
	return cmd
}

func runReconcile(ctx context.Context, out io.Writer, lifecycle service.LifecycleService, dryRun bool) error {
	if dryRun {
		orphans, err := lifecycle.Orphans(ctx)
		if err != nil {
			return err
		}
		renderOrphans(out, orphans)
		return nil
	}

	report, err := lifecycle.Reconcile(ctx)
	if report != nil {
		renderReport(out, report)
	}
	return err
}

func renderOrphans(out io.Writer, orphans []*domain.Proposal) {
	if len(orphans) == 0 {
		fmt.Fprintln(out, "No accepted proposals without a project.")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Proposal", "Title", "Artist", "Wall owner", "Accepted"})
	for _, p := range orphans {
		tw.AppendRow(table.Row{p.ID, p.Title, p.ArtistID, p.WallOwnerID, p.UpdatedAt.Format("2006-01-02 15:04")})
	}
	tw.AppendFooter(table.Row{"", "", "", "Total", len(orphans)})
	tw.Render()
}

func renderReport(out io.Writer, report *service.ReconcileReport) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Proposal", "Project", "Result"})
	for _, p := range report.Created {
		tw.AppendRow(table.Row{p.ProposalID, p.ID, "created"})
	}

	failed := make([]uuid.UUID, 0, len(report.Failures))
	for id := range report.Failures {
		failed = append(failed, id)
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].String() < failed[j].String() })
	for _, id := range failed {
		tw.AppendRow(table.Row{id, "", "failed: " + report.Failures[id]})
	}
	tw.Render()
	fmt.Fprintf(out, "Checked %d proposals: %d created, %d failed\n", report.Checked, len(report.Created), len(report.Failures))
}
