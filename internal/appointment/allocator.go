package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinicflow-scheduling/internal/clock"
)

// maxSlotConflicts bounds how many storage-level conflicts one allocation
// absorbs before giving up with ErrNoAvailableSlot.
const maxSlotConflicts = 1

type AllocationRequest struct {
	PatientUserID uuid.UUID
	ServiceID     uuid.UUID
	Date          time.Time
	// StartTime is an optional HH:MM. Empty means earliest free slot.
	StartTime string
}

type Allocation struct {
	Appointment *Appointment
	Service     *ClinicService
}

// Allocator picks a provider and a slot and writes the appointment.
//
// Providers are tried in registration order and, within a provider, slots in
// chronological block order; the first fit wins. There is no load balancing,
// so identical inputs always produce the same provider and slot.
type Allocator struct {
	log zerolog.Logger
}

func NewAllocator(log zerolog.Logger) *Allocator {
	return &Allocator{log: log}
}

// Allocate must run inside the caller's transaction; tx is that transaction.
func (a *Allocator) Allocate(ctx context.Context, tx Store, req AllocationRequest) (*Allocation, error) {
	svc, err := tx.GetService(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, ErrInvalidService
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if !svc.Active || svc.DurationMinutes <= 0 {
		return nil, ErrInvalidService
	}

	date := clock.StartOfDay(req.Date)

	providers, err := tx.ListBookableProviders(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load bookable providers: %w", err)
	}
	if len(providers) == 0 {
		return nil, ErrNoProvidersAvailable
	}

	var desiredStart *time.Time
	if req.StartTime != "" {
		start, err := clock.Combine(date, req.StartTime)
		if err != nil {
			return nil, err
		}
		desiredStart = &start
	}

	dayFrom, dayTo := clock.DayWindow(date)
	conflicts := 0

	for _, pd := range providers {
		providerID := pd.Provider.ID
		existing, err := tx.ListOccupyingAppointments(ctx, &providerID, dayFrom, dayTo)
		if err != nil {
			return nil, fmt.Errorf("load provider appointments: %w", err)
		}

		candidates, err := a.candidates(date, pd.Blocks, svc.DurationMinutes, existing, desiredStart)
		if err != nil {
			return nil, err
		}

		for _, start := range candidates {
			appt, err := tx.InsertAppointment(ctx, &Appointment{
				PatientUserID: req.PatientUserID,
				ProviderID:    providerID,
				ServiceID:     svc.ID,
				StartAt:       start,
				EndAt:         clock.AddMinutes(start, svc.DurationMinutes),
				Status:        StatusBooked,
			})
			if errors.Is(err, ErrSlotTaken) {
				conflicts++
				a.log.Warn().
					Str("provider_id", providerID.String()).
					Time("start_at", start).
					Int("conflicts", conflicts).
					Msg("slot taken by concurrent booking")
				if conflicts > maxSlotConflicts {
					return nil, ErrNoAvailableSlot
				}
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("create appointment: %w", err)
			}

			return &Allocation{Appointment: appt, Service: svc}, nil
		}
	}

	return nil, ErrNoAvailableSlot
}

// candidates lists the starts worth trying for one provider, best first.
// With a desired start it is that start alone, if a block contains it and
// nothing overlaps it.
func (a *Allocator) candidates(date time.Time, blocks []AvailabilityBlock, duration int, existing []Appointment, desiredStart *time.Time) ([]time.Time, error) {
	if desiredStart == nil {
		return freeSlots(date, blocks, duration, existing)
	}

	desiredEnd := clock.AddMinutes(*desiredStart, duration)
	inBlock, err := blockContains(date, blocks, *desiredStart, desiredEnd)
	if err != nil {
		return nil, err
	}
	if !inBlock || overlapsAny(existing, *desiredStart, desiredEnd) {
		return nil, nil
	}
	return []time.Time{*desiredStart}, nil
}
