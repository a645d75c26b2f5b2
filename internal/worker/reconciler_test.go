package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"streetart_marketplace/internal/domain"
	"streetart_marketplace/internal/service"
	"streetart_marketplace/pkg/logger"
)

type fakeTarget struct {
	calls  int
	report *service.ReconcileReport
	err    error
}

func (f *fakeTarget) Reconcile(ctx context.Context) (*service.ReconcileReport, error) {
	f.calls++
	return f.report, f.err
}

func TestNewReconcilerRejectsBadSchedule(t *testing.T) {
	for _, expr := range []string{"", "every minute", "0 */5 * * * *"} {
		if _, err := NewReconciler(&fakeTarget{}, expr, logger.Nop()); err == nil {
			t.Errorf("schedule %q accepted", expr)
		}
	}
}

func TestReconcilerNext(t *testing.T) {
	r, err := NewReconciler(&fakeTarget{}, "*/15 * * * *", logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	from := time.Date(2026, 4, 2, 10, 7, 0, 0, time.UTC)
	if got, want := r.Next(from), time.Date(2026, 4, 2, 10, 15, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("next = %s, want %s", got, want)
	}
}

func TestRunOnce(t *testing.T) {
	target := &fakeTarget{report: &service.ReconcileReport{
		Checked: 1,
		Created: []*domain.Project{{ID: uuid.New(), ProposalID: uuid.New()}},
	}}
	r, err := NewReconciler(target, "0 3 * * *", logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	report, err := r.RunOnce(context.Background())
	if err != nil || len(report.Created) != 1 || target.calls != 1 {
		t.Fatalf("report = %+v, err = %v, calls = %d", report, err, target.calls)
	}

	target.err = errors.New("db down")
	if _, err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStartStop(t *testing.T) {
	r, err := NewReconciler(&fakeTarget{}, "0 3 * * *", logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	r.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
	if ctx.Err() != nil {
		t.Fatal("stop should return before the deadline")
	}
}
