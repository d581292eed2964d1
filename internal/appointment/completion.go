package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CompleteElapsed moves BOOKED appointments that ended by now to COMPLETED.
// It is meant to be called periodically by the completion worker, not by the
// booking paths. Each appointment commits on its own; rows cancelled or
// rescheduled since the scan are skipped.
func (s *Service) CompleteElapsed(ctx context.Context, now time.Time, batch int) (int, error) {
	candidates, err := s.repo.FindElapsedBooked(ctx, now, batch)
	if err != nil {
		return 0, fmt.Errorf("find elapsed appointments: %w", err)
	}

	completed := 0
	for _, appt := range candidates {
		err := s.repo.InTx(ctx, func(ctx context.Context, tx Store) error {
			if _, err := tx.UpdateAppointmentStatus(ctx, appt.ID, StatusBooked, StatusCompleted); err != nil {
				return err
			}
			return s.logEvent(ctx, tx, appt.ID, EventAppointmentCompleted, map[string]any{
				"provider_id": appt.ProviderID.String(),
				"end_at":      appt.EndAt,
			})
		})
		if errors.Is(err, ErrAppointmentNotFound) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return completed, ctx.Err()
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to complete appointment")
			continue
		}
		completed++
	}

	return completed, nil
}
