package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/service"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "marketplace dev") {
		t.Errorf("expected version output, got: %s", out)
	}
}

func TestRootHasSubcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"serve", "migrate", "reconcile", "version"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	reconcile, _, _ := cmd.Find([]string{"reconcile"})
	if reconcile.Flags().Lookup("dry-run") == nil {
		t.Error("reconcile is missing --dry-run")
	}
}

type fakeLifecycle struct {
	service.LifecycleService
	orphans    []*domain.Proposal
	report     *service.ReconcileReport
	err        error
	reconciled bool
}

func (f *fakeLifecycle) Orphans(ctx context.Context) ([]*domain.Proposal, error) {
	return f.orphans, nil
}

func (f *fakeLifecycle) Reconcile(ctx context.Context) (*service.ReconcileReport, error) {
	f.reconciled = true
	return f.report, f.err
}

func TestReconcileDryRunDoesNotWrite(t *testing.T) {
	orphan := &domain.Proposal{ID: uuid.New(), Title: "Mur nord", Status: domain.ProposalStatusAccepted}
	lc := &fakeLifecycle{orphans: []*domain.Proposal{orphan}}
	buf := new(bytes.Buffer)

	if err := runReconcile(context.Background(), buf, lc, true); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if lc.reconciled {
		t.Fatal("dry run must not reconcile")
	}
	if out := buf.String(); !strings.Contains(out, orphan.ID.String()) || !strings.Contains(out, "Mur nord") {
		t.Fatalf("orphan missing from output:\n%s", out)
	}
}

func TestReconcileReportsFailures(t *testing.T) {
	created := &domain.Project{ID: uuid.New(), ProposalID: uuid.New()}
	failed := uuid.New()
	lc := &fakeLifecycle{
		report: &service.ReconcileReport{
			Checked:  2,
			Created:  []*domain.Project{created},
			Failures: map[uuid.UUID]string{failed: "connection reset"},
		},
		err: errors.New("reconcile: 1 of 2 proposals failed"),
	}
	buf := new(bytes.Buffer)

	if err := runReconcile(context.Background(), buf, lc, false); err == nil {
		t.Fatal("expected the failure to be returned")
	}
	out := buf.String()
	for _, want := range []string{created.ID.String(), failed.String(), "connection reset", "1 created, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderOrphansEmpty(t *testing.T) {
	buf := new(bytes.Buffer)
	renderOrphans(buf, nil)
	if !strings.Contains(buf.String(), "No accepted proposals") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}
