package cron

import (
	"context"
	"fmt"
	"time"

	robfig "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RefundReconciler is the part of the booking service the sweep drives.
type RefundReconciler interface {
	ReconcilePendingRefunds(ctx context.Context, olderThan time.Duration) (int, error)
}

// StartRefundReconciler schedules the refund sweep on a five-field cron expression
// or a descriptor such as "@every 5m". Overlapping runs are skipped.
func StartRefundReconciler(schedule string, svc RefundReconciler, olderThan time.Duration, logger *zap.Logger) (*robfig.Cron, error) {
	c := robfig.New(robfig.WithChain(
		robfig.Recover(robfig.DefaultLogger),
		robfig.SkipIfStillRunning(robfig.DefaultLogger),
	))

	if _, err := c.AddFunc(schedule, func() {
		runReconcile(context.Background(), svc, olderThan, logger)
	}); err != nil {
		return nil, fmt.Errorf("invalid refund reconcile schedule %q: %w", schedule, err)
	}

	c.Start()
	logger.Info("Refund reconciler scheduled", zap.String("schedule", schedule), zap.Duration("olderThan", olderThan))
	return c, nil
}

func runReconcile(ctx context.Context, svc RefundReconciler, olderThan time.Duration, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	n, err := svc.ReconcilePendingRefunds(ctx, olderThan)
	if err != nil {
		logger.Error("Refund reconciliation failed", zap.Int("reconciled", n), zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("Refund reconciliation finished", zap.Int("reconciled", n))
	}
}
