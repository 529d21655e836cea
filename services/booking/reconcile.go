package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coursebook/database/repository"

	"go.uber.org/zap"
)

// ReconcilePendingRefunds settles refund claims that were never committed or
// released. A claim whose refund exists at the gateway is committed, e.g.
// after a crash between the gateway call and the write. A claim without one
// belongs to a cancellation that was aborted or died before the call, so it
// is released and the booking stays active. Returns the number of bookings
// whose cancellation was completed.
func (s *DefaultBookingService) ReconcilePendingRefunds(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.bookings.ListStaleRefundClaims(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, internalError("failed to list pending refunds", err)
	}

	var errs []error
	done := 0
	for i := range stale {
		b := &stale[i]
		refund, err := s.gateway.FindRefund(ctx, b.PaymentID)
		if err != nil {
			errs = append(errs, fmt.Errorf("booking %s: %w", b.ID, err))
			continue
		}

		if refund == nil {
			if err := s.bookings.ReleaseRefundClaim(ctx, b.ID); err != nil && !errors.Is(err, repository.ErrConditionFailed) {
				errs = append(errs, fmt.Errorf("booking %s: %w", b.ID, err))
				continue
			}
			s.logger.Info("Released abandoned refund claim", zap.String("bookingId", b.ID))
			continue
		}

		cancelled, err := s.bookings.CommitRefund(ctx, b.ID, refund.RefundID)
		if err != nil {
			if errors.Is(err, repository.ErrConditionFailed) {
				// Finished by the original request in the meantime.
				continue
			}
			errs = append(errs, fmt.Errorf("booking %s: %w", b.ID, err))
			continue
		}

		s.releaseSeat(ctx, cancelled)
		s.notifyCancelled(ctx, cancelled)
		done++
		s.logger.Info("Reconciled pending refund",
			zap.String("bookingId", cancelled.ID),
			zap.String("refundId", refund.RefundID))
	}

	if len(errs) > 0 {
		return done, errors.Join(errs...)
	}
	return done, nil
}
