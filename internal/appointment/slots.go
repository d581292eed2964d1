package appointment

import (
	"fmt"
	"time"

	"github.com/hackgods/clinicflow-scheduling/internal/clock"
)

// freeSlots walks every block in stored order with a cursor advancing by
// duration minutes and returns the starts of the steps that fit inside the
// block and overlap none of busy. A start produced by more than one block is
// returned once, at its first position.
func freeSlots(date time.Time, blocks []AvailabilityBlock, duration int, busy []Appointment) ([]time.Time, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("walk slots: non-positive duration %d", duration)
	}

	seen := make(map[time.Time]struct{})
	var starts []time.Time

	for _, b := range blocks {
		blockStart, blockEnd, err := blockBounds(date, b)
		if err != nil {
			return nil, err
		}

		for cursor := blockStart; !clock.AddMinutes(cursor, duration).After(blockEnd); cursor = clock.AddMinutes(cursor, duration) {
			slotEnd := clock.AddMinutes(cursor, duration)
			if overlapsAny(busy, cursor, slotEnd) {
				continue
			}
			if _, dup := seen[cursor]; dup {
				continue
			}
			seen[cursor] = struct{}{}
			starts = append(starts, cursor)
		}
	}

	return starts, nil
}

// blockContains reports whether some block fully contains [start, end).
func blockContains(date time.Time, blocks []AvailabilityBlock, start, end time.Time) (bool, error) {
	for _, b := range blocks {
		blockStart, blockEnd, err := blockBounds(date, b)
		if err != nil {
			return false, err
		}
		if !start.Before(blockStart) && !end.After(blockEnd) {
			return true, nil
		}
	}
	return false, nil
}

func blockBounds(date time.Time, b AvailabilityBlock) (time.Time, time.Time, error) {
	start, err := clock.Combine(date, b.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("availability block %s: %w", b.ID, err)
	}
	end, err := clock.Combine(date, b.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("availability block %s: %w", b.ID, err)
	}
	return start, end, nil
}

func overlapsAny(busy []Appointment, start, end time.Time) bool {
	for _, a := range busy {
		if clock.Overlaps(start, end, a.StartAt, a.EndAt) {
			return true
		}
	}
	return false
}
