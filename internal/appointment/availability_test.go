package appointment_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
)

func TestListFreeSlots(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Follow-up", 20)
	a := f.provider()
	b := f.provider()
	f.block(a, day, "09:00", "09:40")
	f.block(b, day, "09:20", "10:00")

	_, err := f.svc.Book(f.ctx, patient("p@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day, StartTime: "09:20"})
	require.NoError(t, err)

	slots, err := f.svc.ListFreeSlots(f.ctx, svc.ID, day)
	require.NoError(t, err)
	assert.Equal(t, []appointment.FreeSlot{
		{StartTime: "09:00", EndTime: "09:20", AvailableProviderCount: 1},
		{StartTime: "09:20", EndTime: "09:40", AvailableProviderCount: 1},
		{StartTime: "09:40", EndTime: "10:00", AvailableProviderCount: 1},
	}, slots)
}

func TestListFreeSlots_OverlappingBlocksCountProviderOnce(t *testing.T) {
	f := newFixture(t)
	svc := f.service("General Consultation", 30)
	a := f.provider()
	f.block(a, day, "09:00", "10:00")
	f.block(a, day, "09:00", "11:00")

	slots, err := f.svc.ListFreeSlots(f.ctx, svc.ID, day)
	require.NoError(t, err)
	require.Len(t, slots, 4)
	for _, s := range slots {
		assert.Equal(t, 1, s.AvailableProviderCount, s.StartTime)
	}
	assert.Equal(t, "10:30", slots[3].StartTime)
}

func TestListFreeSlots_CancelledAppointmentsFreeTime(t *testing.T) {
	f := newFixture(t)
	svc := f.service("General Consultation", 30)
	a := f.provider()
	f.block(a, day, "09:00", "10:00")

	owner := patient("p@example.com")
	appt, err := f.svc.Book(f.ctx, owner, appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)

	slots, err := f.svc.ListFreeSlots(f.ctx, svc.ID, day)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "09:30", slots[0].StartTime)

	_, err = f.svc.Cancel(f.ctx, owner.ID, appt.ID)
	require.NoError(t, err)

	slots, err = f.svc.ListFreeSlots(f.ctx, svc.ID, day)
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestListFreeSlots_EmptyAndInvalid(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Vaccination", 15)

	slots, err := f.svc.ListFreeSlots(f.ctx, svc.ID, day)
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)

	_, err = f.svc.ListFreeSlots(f.ctx, uuid.New(), day)
	assert.ErrorIs(t, err, appointment.ErrInvalidService)
}

// Every start offered by the index must be bookable at that exact time.
func TestListFreeSlots_AgreesWithAllocator(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Follow-up", 20)
	a := f.provider()
	b := f.provider()
	f.block(a, day, "08:00", "09:00")
	f.block(a, day, "12:10", "12:50")
	f.block(b, day, "08:30", "09:30")

	slots, err := f.svc.ListFreeSlots(f.ctx, svc.ID, day)
	require.NoError(t, err)

	for _, s := range slots {
		for i := 0; i < s.AvailableProviderCount; i++ {
			appt, err := f.svc.Book(f.ctx, patient("p@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day, StartTime: s.StartTime})
			require.NoError(t, err, s.StartTime)
			assert.Equal(t, s.StartTime, hhmm(appt.StartAt))
		}
	}

	remaining, err := f.svc.ListFreeSlots(f.ctx, svc.ID, day)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
