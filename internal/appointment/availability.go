package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinicflow-scheduling/internal/clock"
)

// AvailabilityIndex computes the display view of free slots for a service
// and date. It only reads; nothing is reserved or locked.
type AvailabilityIndex struct {
	store Store
}

func NewAvailabilityIndex(store Store) *AvailabilityIndex {
	return &AvailabilityIndex{store: store}
}

// ListFreeSlots returns the free starts of the day in ascending order, each
// with the number of distinct providers offering it.
func (x *AvailabilityIndex) ListFreeSlots(ctx context.Context, serviceID uuid.UUID, date time.Time) ([]FreeSlot, error) {
	svc, err := x.store.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, ErrInvalidService
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if !svc.Active || svc.DurationMinutes <= 0 {
		return nil, ErrInvalidService
	}

	date = clock.StartOfDay(date)

	providers, err := x.store.ListBookableProviders(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load bookable providers: %w", err)
	}
	if len(providers) == 0 {
		return []FreeSlot{}, nil
	}

	dayFrom, dayTo := clock.DayWindow(date)
	appts, err := x.store.ListOccupyingAppointments(ctx, nil, dayFrom, dayTo)
	if err != nil {
		return nil, fmt.Errorf("load day appointments: %w", err)
	}

	busyByProvider := make(map[uuid.UUID][]Appointment)
	for _, a := range appts {
		busyByProvider[a.ProviderID] = append(busyByProvider[a.ProviderID], a)
	}

	slots := make(map[string]*FreeSlot)
	for _, pd := range providers {
		// freeSlots yields each start once per provider, so a provider with
		// overlapping blocks still counts once.
		starts, err := freeSlots(date, pd.Blocks, svc.DurationMinutes, busyByProvider[pd.Provider.ID])
		if err != nil {
			return nil, err
		}

		for _, start := range starts {
			key := clock.FormatHHMM(start)
			slot, ok := slots[key]
			if !ok {
				slot = &FreeSlot{
					StartTime: key,
					EndTime:   clock.FormatHHMM(clock.AddMinutes(start, svc.DurationMinutes)),
				}
				slots[key] = slot
			}
			slot.AvailableProviderCount++
		}
	}

	result := make([]FreeSlot, 0, len(slots))
	for _, s := range slots {
		result = append(result, *s)
	}
	// HH:MM is fixed width, so lexical order is chronological.
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime < result[j].StartTime
	})

	return result, nil
}
