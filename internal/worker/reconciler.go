// Package worker запускает фоновые задачи обслуживания по cron-расписанию.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"streetart_marketplace/internal/service"
	"streetart_marketplace/pkg/logger"
)

// cronParser принимает стандартные cron-выражения из 5 полей (минута, час, день, месяц, день недели).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ReconcileTarget восстанавливает проекты для принятых предложений без проекта.
type ReconcileTarget interface {
	Reconcile(ctx context.Context) (*service.ReconcileReport, error)
}

// Reconciler периодически создает недостающие проекты принятых предложений.
type Reconciler struct {
	target   ReconcileTarget
	schedule cron.Schedule
	cron     *cron.Cron
	timeout  time.Duration
	log      logger.Logger
}

func NewReconciler(target ReconcileTarget, schedule string, log logger.Logger) (*Reconciler, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}

	r := &Reconciler{
		target:   target,
		schedule: sched,
		timeout:  time.Minute,
		log:      log.With("job", "reconcile"),
	}
	// пересекающиеся запуски пропускаются, а не ставятся в очередь
	r.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	r.cron.Schedule(sched, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		_, _ = r.RunOnce(ctx)
	}))
	return r, nil
}

// RunOnce выполняет один проход и логирует результат.
func (r *Reconciler) RunOnce(ctx context.Context) (*service.ReconcileReport, error) {
	start := time.Now()
	report, err := r.target.Reconcile(ctx)
	if err != nil {
		r.log.Error("Reconcile pass failed", "error", err, "duration", time.Since(start))
		return report, err
	}
	if len(report.Created) > 0 {
		r.log.Info("Reconcile pass repaired proposals", "checked", report.Checked, "created", len(report.Created), "duration", time.Since(start))
	} else {
		r.log.Debug("Reconcile pass found nothing to repair", "duration", time.Since(start))
	}
	return report, nil
}

// Next возвращает время следующего запуска после t.
func (r *Reconciler) Next(t time.Time) time.Time {
	return r.schedule.Next(t)
}

func (r *Reconciler) Start() {
	r.log.Info("Reconciler started", "next_run", r.Next(time.Now()))
	r.cron.Start()
}

// Stop останавливает расписание и ждет текущий проход, но не дольше ctx.
func (r *Reconciler) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
		r.log.Info("Reconciler stopped")
	case <-ctx.Done():
		r.log.Warn("Reconciler stop timed out", "error", ctx.Err())
	}
}
