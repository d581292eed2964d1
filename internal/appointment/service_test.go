package appointment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinicflow-scheduling/internal/appointment"
	"github.com/hackgods/clinicflow-scheduling/internal/appointment/memstore"
	"github.com/hackgods/clinicflow-scheduling/internal/clock"
	"github.com/hackgods/clinicflow-scheduling/internal/config"
	"github.com/hackgods/clinicflow-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinicflow-scheduling/internal/redis"
)

var day = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.BookingConfirmation
}

func (n *recordingNotifier) Dispatch(msg notify.BookingConfirmation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *recordingNotifier) sent() []notify.BookingConfirmation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.BookingConfirmation(nil), n.msgs...)
}

type unavailableLocker struct{}

func (unavailableLocker) WithDayLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memstore.Store
	svc      *appointment.Service
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithLocker(t, redisclient.NoopLocker{})
}

func newFixtureWithLocker(t *testing.T, locker redisclient.Locker) *fixture {
	store := memstore.New()
	n := &recordingNotifier{}
	cfg := config.Config{ClinicName: "ClinicFlow Test Clinic"}
	return &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    store,
		svc:      appointment.NewService(store, locker, n, cfg, zerolog.Nop()),
		notifier: n,
	}
}

func (f *fixture) service(name string, minutes int) *appointment.ClinicService {
	svc, err := f.svc.CreateService(f.ctx, name, minutes)
	require.NoError(f.t, err)
	return svc
}

func (f *fixture) provider() *appointment.Provider {
	p, err := f.svc.CreateProvider(f.ctx, uuid.New(), nil)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) block(p *appointment.Provider, date time.Time, start, end string) {
	_, err := f.svc.AddAvailability(f.ctx, p.ID, date, start, end)
	require.NoError(f.t, err)
}

func patient(email string) appointment.Caller {
	return appointment.Caller{ID: uuid.New(), Email: email, Role: appointment.RolePatient}
}

func hhmm(t time.Time) string {
	return clock.FormatHHMM(t)
}

func TestBook_EarliestSlotSequence(t *testing.T) {
	f := newFixture(t)
	followUp := f.service("Follow-up", 20)
	a := f.provider()
	f.block(a, day, "09:00", "09:40")

	first, err := f.svc.Book(f.ctx, patient("p1@example.com"), appointment.BookRequest{ServiceID: followUp.ID, Date: day})
	require.NoError(t, err)
	assert.Equal(t, "09:00", hhmm(first.StartAt))
	assert.Equal(t, "09:20", hhmm(first.EndAt))
	assert.Equal(t, a.ID, first.ProviderID)
	assert.Equal(t, appointment.StatusBooked, first.Status)

	second, err := f.svc.Book(f.ctx, patient("p2@example.com"), appointment.BookRequest{ServiceID: followUp.ID, Date: day})
	require.NoError(t, err)
	assert.Equal(t, "09:20", hhmm(second.StartAt))
	assert.Equal(t, "09:40", hhmm(second.EndAt))

	_, err = f.svc.Book(f.ctx, patient("p3@example.com"), appointment.BookRequest{ServiceID: followUp.ID, Date: day})
	assert.ErrorIs(t, err, appointment.ErrNoAvailableSlot)
}

func TestBook_DesiredTimeOverlappingExisting(t *testing.T) {
	f := newFixture(t)
	followUp := f.service("Follow-up", 20)
	a := f.provider()
	f.block(a, day, "09:00", "09:40")

	_, err := f.svc.Book(f.ctx, patient("p1@example.com"), appointment.BookRequest{ServiceID: followUp.ID, Date: day})
	require.NoError(t, err)

	_, err = f.svc.Book(f.ctx, patient("p2@example.com"), appointment.BookRequest{ServiceID: followUp.ID, Date: day, StartTime: "09:10"})
	assert.ErrorIs(t, err, appointment.ErrNoAvailableSlot)
}

func TestBook_DesiredTimeOutsideBlocks(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Vaccination", 15)
	a := f.provider()
	f.block(a, day, "09:00", "10:00")

	_, err := f.svc.Book(f.ctx, patient("p@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day, StartTime: "09:50"})
	assert.ErrorIs(t, err, appointment.ErrNoAvailableSlot)

	appt, err := f.svc.Book(f.ctx, patient("p@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day, StartTime: "09:45"})
	require.NoError(t, err)
	assert.Equal(t, "10:00", hhmm(appt.EndAt))
}

func TestBook_TouchingAppointmentsDoNotOverlap(t *testing.T) {
	f := newFixture(t)
	svc := f.service("General Consultation", 30)
	a := f.provider()
	f.block(a, day, "09:00", "10:00")

	first, err := f.svc.Book(f.ctx, patient("p1@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day, StartTime: "09:30"})
	require.NoError(t, err)
	second, err := f.svc.Book(f.ctx, patient("p2@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day, StartTime: "09:00"})
	require.NoError(t, err)

	assert.Equal(t, a.ID, first.ProviderID)
	assert.Equal(t, a.ID, second.ProviderID)
	assert.True(t, second.EndAt.Equal(first.StartAt))
}

func TestBook_ProvidersTriedInRegistrationOrder(t *testing.T) {
	f := newFixture(t)
	svc := f.service("General Consultation", 30)
	a := f.provider()
	b := f.provider()
	f.block(a, day, "10:00", "11:00")
	f.block(b, day, "09:00", "10:00")

	appt, err := f.svc.Book(f.ctx, patient("p@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)
	assert.Equal(t, a.ID, appt.ProviderID)
	assert.Equal(t, "10:00", hhmm(appt.StartAt))

	// Only b has 09:00.
	appt, err = f.svc.Book(f.ctx, patient("p@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day, StartTime: "09:00"})
	require.NoError(t, err)
	assert.Equal(t, b.ID, appt.ProviderID)
}

func TestBook_DesiredTimeFallsThroughToNextProvider(t *testing.T) {
	f := newFixture(t)
	svc := f.service("General Consultation", 30)
	a := f.provider()
	b := f.provider()
	f.block(a, day, "09:00", "10:00")
	f.block(b, day, "09:00", "10:00")

	first, err := f.svc.Book(f.ctx, patient("p1@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day, StartTime: "09:00"})
	require.NoError(t, err)
	second, err := f.svc.Book(f.ctx, patient("p2@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day, StartTime: "09:00"})
	require.NoError(t, err)

	assert.Equal(t, a.ID, first.ProviderID)
	assert.Equal(t, b.ID, second.ProviderID)

	_, err = f.svc.Book(f.ctx, patient("p3@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day, StartTime: "09:00"})
	assert.ErrorIs(t, err, appointment.ErrNoAvailableSlot)
}

func TestBook_Deterministic(t *testing.T) {
	run := func() []string {
		f := newFixture(t)
		svc := f.service("Follow-up", 20)
		for i := 0; i < 3; i++ {
			p := f.provider()
			f.block(p, day, "09:00", "10:00")
			f.block(p, day, "13:00", "13:40")
		}

		var got []string
		for i := 0; i < 8; i++ {
			appt, err := f.svc.Book(f.ctx, patient("p@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day})
			require.NoError(t, err)
			got = append(got, hhmm(appt.StartAt))
		}
		return got
	}

	first := run()
	assert.Equal(t, []string{"09:00", "09:20", "09:40", "13:00", "13:20", "09:00", "09:20", "09:40"}, first)
	assert.Equal(t, first, run())
}

func TestBook_Errors(t *testing.T) {
	f := newFixture(t)
	svc := f.service("General Consultation", 30)
	inactive := f.service("Retired", 30)
	_, err := f.svc.SetServiceActive(f.ctx, inactive.ID, false)
	require.NoError(t, err)

	cases := []struct {
		name string
		req  appointment.BookRequest
		want error
	}{
		{"unknown service", appointment.BookRequest{ServiceID: uuid.New(), Date: day}, appointment.ErrInvalidService},
		{"inactive service", appointment.BookRequest{ServiceID: inactive.ID, Date: day}, appointment.ErrInvalidService},
		{"no providers", appointment.BookRequest{ServiceID: svc.ID, Date: day}, appointment.ErrNoProvidersAvailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Book(f.ctx, patient("p@example.com"), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBook_InactiveProviderIsSkipped(t *testing.T) {
	f := newFixture(t)
	svc := f.service("General Consultation", 30)
	a := f.provider()
	f.block(a, day, "09:00", "10:00")
	_, err := f.svc.SetProviderActive(f.ctx, a.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Book(f.ctx, patient("p@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day})
	assert.ErrorIs(t, err, appointment.ErrNoProvidersAvailable)
}

func TestBook_ConcurrentRequestsNeverOverlap(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Follow-up", 20)
	a := f.provider()
	b := f.provider()
	f.block(a, day, "09:00", "10:00")
	f.block(b, day, "09:00", "09:40")

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	booked, rejected := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Book(context.Background(), patient("p@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				booked++
			case errors.Is(err, appointment.ErrNoAvailableSlot):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, booked)
	assert.Equal(t, workers-5, rejected)

	byProvider := map[uuid.UUID][]appointment.Appointment{}
	for _, appt := range f.store.Appointments() {
		byProvider[appt.ProviderID] = append(byProvider[appt.ProviderID], appt)
	}
	for _, appts := range byProvider {
		for i := range appts {
			for j := i + 1; j < len(appts); j++ {
				assert.False(t, clock.Overlaps(appts[i].StartAt, appts[i].EndAt, appts[j].StartAt, appts[j].EndAt),
					"overlap between %s and %s", appts[i].ID, appts[j].ID)
			}
		}
	}
}

func TestBook_ProceedsWhenLockUnavailable(t *testing.T) {
	f := newFixtureWithLocker(t, unavailableLocker{})
	svc := f.service("Follow-up", 20)
	a := f.provider()
	f.block(a, day, "09:00", "09:40")

	appt, err := f.svc.Book(f.ctx, patient("p@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)
	assert.Equal(t, "09:00", hhmm(appt.StartAt))
}

func TestBook_SendsConfirmationAfterCommit(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Follow-up", 20)
	a := f.provider()
	f.block(a, day, "09:00", "09:40")

	appt, err := f.svc.Book(f.ctx, patient("jane.doe@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)

	_, err = f.svc.Book(f.ctx, patient("x@example.com"), appointment.BookRequest{
		ServiceID: svc.ID,
		Date:      day,
		Contact:   appointment.Contact{Email: "guardian@example.com", Name: "Alex Guardian"},
	})
	require.NoError(t, err)

	sent := f.notifier.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, notify.BookingConfirmation{
		Recipient:   "jane.doe@example.com",
		PatientName: "Jane Doe",
		ServiceName: "Follow-up",
		StartAt:     appt.StartAt,
		ClinicName:  "ClinicFlow Test Clinic",
	}, sent[0])
	assert.Equal(t, "guardian@example.com", sent[1].Recipient)
	assert.Equal(t, "Alex Guardian", sent[1].PatientName)

	_, err = f.svc.Book(f.ctx, patient("late@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.ErrorIs(t, err, appointment.ErrNoAvailableSlot)
	assert.Len(t, f.notifier.sent(), 2)
}

func TestBook_RecordsEvent(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Follow-up", 20)
	a := f.provider()
	f.block(a, day, "09:00", "09:40")

	appt, err := f.svc.Book(f.ctx, patient("p@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, appointment.EventAppointmentBooked, events[0].EventType)
	require.NotNil(t, events[0].AppointmentID)
	assert.Equal(t, appt.ID, *events[0].AppointmentID)
	assert.Contains(t, string(events[0].Payload), appt.ProviderID.String())
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Follow-up", 20)
	a := f.provider()
	f.block(a, day, "09:00", "09:20")

	owner := patient("owner@example.com")
	appt, err := f.svc.Book(f.ctx, owner, appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx, uuid.New(), appt.ID)
	assert.ErrorIs(t, err, appointment.ErrForbidden)

	_, err = f.svc.Cancel(f.ctx, owner.ID, uuid.New())
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)

	cancelled, err := f.svc.Cancel(f.ctx, owner.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, cancelled.Status)

	again, err := f.svc.Cancel(f.ctx, owner.ID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, cancelled, again)

	var cancelEvents int
	for _, ev := range f.store.Events() {
		if ev.EventType == appointment.EventAppointmentCancelled {
			cancelEvents++
		}
	}
	assert.Equal(t, 1, cancelEvents)

	// The freed slot is bookable again.
	rebooked, err := f.svc.Book(f.ctx, patient("next@example.com"), appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)
	assert.Equal(t, "09:00", hhmm(rebooked.StartAt))
}

func TestCancel_RescheduledIsRejected(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Follow-up", 20)
	a := f.provider()
	f.block(a, day, "09:00", "10:00")

	owner := patient("owner@example.com")
	appt, err := f.svc.Book(f.ctx, owner, appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)
	_, err = f.svc.Reschedule(f.ctx, owner, appointment.RescheduleRequest{AppointmentID: appt.ID, Date: day})
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.ctx, owner.ID, appt.ID)
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Follow-up", 20)
	a := f.provider()
	next := day.AddDate(0, 0, 1)
	f.block(a, day, "09:00", "09:40")
	f.block(a, next, "14:00", "15:00")

	owner := patient("owner@example.com")
	orig, err := f.svc.Book(f.ctx, owner, appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)

	res, err := f.svc.Reschedule(f.ctx, owner, appointment.RescheduleRequest{AppointmentID: orig.ID, Date: next, StartTime: "14:20"})
	require.NoError(t, err)
	assert.Equal(t, orig.ID, res.OldAppointmentID)
	assert.Equal(t, res.NewAppointmentID, res.NewAppointment.ID)
	assert.Equal(t, svc.ID, res.NewAppointment.ServiceID)
	assert.Equal(t, time.Date(2026, 1, 6, 14, 20, 0, 0, time.UTC), res.NewAppointment.StartAt)
	assert.Equal(t, appointment.StatusBooked, res.NewAppointment.Status)

	old, err := f.svc.GetAppointment(f.ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusRescheduled, old.Status)
	require.NotNil(t, old.RescheduledTo)
	assert.Equal(t, res.NewAppointmentID, *old.RescheduledTo)

	assert.Len(t, f.notifier.sent(), 2)

	_, err = f.svc.Reschedule(f.ctx, owner, appointment.RescheduleRequest{AppointmentID: orig.ID, Date: next})
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)
}

func TestReschedule_NoAvailabilityLeavesOriginalBooked(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Follow-up", 20)
	a := f.provider()
	f.block(a, day, "09:00", "09:40")

	owner := patient("owner@example.com")
	orig, err := f.svc.Book(f.ctx, owner, appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)
	eventsBefore := len(f.store.Events())

	_, err = f.svc.Reschedule(f.ctx, owner, appointment.RescheduleRequest{AppointmentID: orig.ID, Date: day.AddDate(0, 0, 7)})
	assert.ErrorIs(t, err, appointment.ErrNoProvidersAvailable)

	got, err := f.svc.GetAppointment(f.ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusBooked, got.Status)
	assert.Nil(t, got.RescheduledTo)
	assert.Len(t, f.store.Events(), eventsBefore)
	assert.Len(t, f.store.Appointments(), 1)
}

func TestReschedule_Rejections(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Follow-up", 20)
	a := f.provider()
	f.block(a, day, "09:00", "10:00")

	owner := patient("owner@example.com")
	appt, err := f.svc.Book(f.ctx, owner, appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)

	_, err = f.svc.Reschedule(f.ctx, patient("other@example.com"), appointment.RescheduleRequest{AppointmentID: appt.ID, Date: day})
	assert.ErrorIs(t, err, appointment.ErrForbidden)

	_, err = f.svc.Reschedule(f.ctx, owner, appointment.RescheduleRequest{AppointmentID: uuid.New(), Date: day})
	assert.ErrorIs(t, err, appointment.ErrAppointmentNotFound)

	_, err = f.svc.Cancel(f.ctx, owner.ID, appt.ID)
	require.NoError(t, err)

	_, err = f.svc.Reschedule(f.ctx, owner, appointment.RescheduleRequest{AppointmentID: appt.ID, Date: day})
	assert.ErrorIs(t, err, appointment.ErrAlreadyCancelled)
}

func TestReschedule_OriginalKeepsItsSlotUntilCommitted(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Follow-up", 20)
	a := f.provider()
	f.block(a, day, "09:00", "09:40")

	owner := patient("owner@example.com")
	orig, err := f.svc.Book(f.ctx, owner, appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)

	// A RESCHEDULED row still occupies its time, so moving within the same
	// block lands on the next slot.
	res, err := f.svc.Reschedule(f.ctx, owner, appointment.RescheduleRequest{AppointmentID: orig.ID, Date: day})
	require.NoError(t, err)
	assert.Equal(t, "09:20", hhmm(res.NewAppointment.StartAt))
}

func TestListMyAppointmentsAndProviderSchedule(t *testing.T) {
	f := newFixture(t)
	svc := f.service("Vaccination", 15)
	specialty := "Pediatrics"
	staffUser := uuid.New()
	p, err := f.svc.CreateProvider(f.ctx, staffUser, &specialty)
	require.NoError(t, err)
	f.block(p, day, "09:00", "10:00")

	owner := patient("owner@example.com")
	first, err := f.svc.Book(f.ctx, owner, appointment.BookRequest{ServiceID: svc.ID, Date: day, StartTime: "09:30"})
	require.NoError(t, err)
	second, err := f.svc.Book(f.ctx, owner, appointment.BookRequest{ServiceID: svc.ID, Date: day})
	require.NoError(t, err)
	_, err = f.svc.Cancel(f.ctx, owner.ID, first.ID)
	require.NoError(t, err)

	mine, err := f.svc.ListMyAppointments(f.ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)
	assert.Equal(t, "Vaccination", mine[0].Service)
	assert.Equal(t, staffUser, mine[0].ProviderUserID)
	require.NotNil(t, mine[0].Specialty)
	assert.Equal(t, "Pediatrics", *mine[0].Specialty)
	assert.Equal(t, appointment.StatusCancelled, mine[1].Status)

	schedule, err := f.svc.ProviderSchedule(f.ctx, staffUser, day)
	require.NoError(t, err)
	require.Len(t, schedule, 1)
	assert.Equal(t, second.ID, schedule[0].ID)
	assert.Equal(t, owner.ID, schedule[0].PatientUserID)

	empty, err := f.svc.ProviderSchedule(f.ctx, uuid.New(), day)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAddAvailability_Validation(t *testing.T) {
	f := newFixture(t)
	a := f.provider()
	retired := f.provider()
	_, err := f.svc.SetProviderActive(f.ctx, retired.ID, false)
	require.NoError(t, err)

	cases := []struct {
		name       string
		providerID uuid.UUID
		start, end string
		want       error
	}{
		{"end before start", a.ID, "10:00", "09:00", appointment.ErrInvalidBlock},
		{"empty block", a.ID, "10:00", "10:00", appointment.ErrInvalidBlock},
		{"malformed time", a.ID, "9:00", "10:00", clock.ErrInvalidTime},
		{"hour out of range", a.ID, "09:00", "24:00", clock.ErrInvalidTime},
		{"unknown provider", uuid.New(), "09:00", "10:00", appointment.ErrProviderNotFound},
		{"inactive provider", retired.ID, "09:00", "10:00", appointment.ErrInactiveProvider},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.AddAvailability(f.ctx, tc.providerID, day, tc.start, tc.end)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err = f.svc.AddOwnAvailability(f.ctx, uuid.New(), day, "09:00", "10:00")
	assert.ErrorIs(t, err, appointment.ErrProviderNotFound)

	block, err := f.svc.AddOwnAvailability(f.ctx, a.UserID, day, "09:00", "10:00")
	require.NoError(t, err)
	assert.Equal(t, a.ID, block.ProviderID)
}

func TestCatalog_Duplicates(t *testing.T) {
	f := newFixture(t)
	f.service("Vaccination", 15)
	_, err := f.svc.CreateService(f.ctx, "Vaccination", 15)
	assert.ErrorIs(t, err, appointment.ErrServiceExists)

	_, err = f.svc.CreateService(f.ctx, "Zero", 0)
	assert.ErrorIs(t, err, appointment.ErrInvalidDuration)

	p := f.provider()
	_, err = f.svc.CreateProvider(f.ctx, p.UserID, nil)
	assert.ErrorIs(t, err, appointment.ErrProviderExists)

	f.service("Follow-up", 20)
	svcs, err := f.svc.ListServices(f.ctx)
	require.NoError(t, err)
	require.Len(t, svcs, 2)
	assert.Equal(t, "Follow-up", svcs[0].Name)
}

func TestNameFromEmail(t *testing.T) {
	cases := map[string]string{
		"jane.doe@example.com":      "Jane Doe",
		"mary_ann-lee@clinic.io":    "Mary Ann Lee",
		"bob@example.com":           "Bob",
		"élodie.martin@example.com": "Élodie Martin",
		"øyvind@example.no":         "Øyvind",
		"@example.com":              "Patient",
		"...@example.com":           "Patient",
	}
	for in, want := range cases {
		got := appointment.NameFromEmail(in)
		assert.Equal(t, want, got, in)
		assert.True(t, utf8.ValidString(got), in)
	}
}
