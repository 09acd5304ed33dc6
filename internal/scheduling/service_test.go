package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/clinic-scheduling/internal/notify"
)

// passLocker invokes the critical section without any distributed lock, so
// concurrency tests exercise the repository's own atomicity guarantee.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type captureSink struct {
	mu       sync.Mutex
	bookings []notify.ConfirmedBooking
	fail     error
}

func (s *captureSink) AppointmentConfirmed(_ context.Context, booking notify.ConfirmedBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		return s.fail
	}
	s.bookings = append(s.bookings, booking)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

type fixture struct {
	repo         *memoryRepo
	sink         *captureSink
	svc          *Service
	patient      *Patient
	practitioner *Practitioner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMemoryRepo()
	sink := &captureSink{}
	svc := NewService(repo, passLocker{}, sink)

	return &fixture{
		repo:         repo,
		sink:         sink,
		svc:          svc,
		patient:      repo.addPatient("Alice Example"),
		practitioner: repo.addPractitioner("Dr. Carter"),
	}
}

func (f *fixture) futureSlot() *Slot {
	return f.repo.addSlot(f.practitioner.ID, time.Now().Add(24*time.Hour), 30*time.Minute)
}

func TestReserve_Success(t *testing.T) {
	f := newFixture(t)
	slot := f.futureSlot()

	appt, err := f.svc.Reserve(context.Background(), f.patient.ID, slot.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusPlanned, appt.Status)
	assert.Equal(t, slot.ID, appt.SlotID)
	assert.Equal(t, f.patient.ID, appt.PatientID)
	// practitioner denormalized from the slot
	assert.Equal(t, f.practitioner.ID, appt.PractitionerID)
	assert.False(t, appt.CreatedAt.IsZero())

	got, err := f.repo.GetSlotByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.False(t, got.Available)
}

func TestReserve_EmitsOneConfirmationAfterCommit(t *testing.T) {
	f := newFixture(t)
	slot := f.futureSlot()

	appt, err := f.svc.Reserve(context.Background(), f.patient.ID, slot.ID)
	require.NoError(t, err)

	require.Equal(t, 1, f.sink.count())
	booking := f.sink.bookings[0]
	assert.Equal(t, appt.ID, booking.AppointmentID)
	assert.Equal(t, "Alice Example@example.com", booking.PatientContact)
	assert.Equal(t, "Dr. Carter", booking.PractitionerLabel)
	assert.True(t, booking.SlotStart.Equal(slot.StartTime))
}

func TestReserve_SinkFailureDoesNotAffectBooking(t *testing.T) {
	f := newFixture(t)
	f.sink.fail = errors.New("broker down")
	slot := f.futureSlot()

	appt, err := f.svc.Reserve(context.Background(), f.patient.ID, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPlanned, appt.Status)

	got, err := f.repo.GetSlotByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.False(t, got.Available, "reservation must stand even when notification fails")
}

func TestReserve_PatientNotFound(t *testing.T) {
	f := newFixture(t)
	slot := f.futureSlot()

	_, err := f.svc.Reserve(context.Background(), uuid.New(), slot.ID)
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestReserve_SlotNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Reserve(context.Background(), f.patient.ID, uuid.New())
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestReserve_SlotInPast(t *testing.T) {
	f := newFixture(t)
	slot := f.repo.addSlot(f.practitioner.ID, time.Now().Add(-time.Hour), 30*time.Minute)

	_, err := f.svc.Reserve(context.Background(), f.patient.ID, slot.ID)
	assert.ErrorIs(t, err, ErrSlotInPast)

	// availability is irrelevant for past slots
	got, err := f.repo.GetSlotByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, got.Available)
	assert.Equal(t, 0, f.sink.count())
}

func TestReserve_SlotUnavailable(t *testing.T) {
	f := newFixture(t)
	other := f.repo.addPatient("Quentin Other")
	slot := f.futureSlot()

	_, err := f.svc.Reserve(context.Background(), f.patient.ID, slot.ID)
	require.NoError(t, err)

	_, err = f.svc.Reserve(context.Background(), other.ID, slot.ID)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.Equal(t, 1, f.sink.count())
}

func TestReserve_ConcurrentAttemptsYieldOneWinner(t *testing.T) {
	f := newFixture(t)
	slot := f.futureSlot()

	const contenders = 32

	patients := make([]*Patient, contenders)
	for i := range patients {
		patients[i] = f.repo.addPatient(uuid.NewString())
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)

	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(p *Patient) {
			defer wg.Done()
			<-start

			_, err := f.svc.Reserve(context.Background(), p.ID, slot.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSlotUnavailable):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(patients[i])
	}

	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one reservation must win")
	assert.Equal(t, contenders-1, rejected)
	assert.Equal(t, 1, f.sink.count())
}

func TestCancel_ReleasesSlotForRebooking(t *testing.T) {
	f := newFixture(t)
	other := f.repo.addPatient("Quentin Other")
	slot := f.futureSlot()

	appt, err := f.svc.Reserve(context.Background(), f.patient.ID, slot.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	got, err := f.repo.GetSlotByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.True(t, got.Available, "cancellation must free the slot")

	rebooked, err := f.svc.Reserve(context.Background(), other.ID, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, rebooked.PatientID)
	assert.Equal(t, slot.ID, rebooked.SlotID)
}

func TestCancel_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Cancel(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancel_TerminalStatesRejected(t *testing.T) {
	f := newFixture(t)

	t.Run("already cancelled", func(t *testing.T) {
		slot := f.futureSlot()
		appt, err := f.svc.Reserve(context.Background(), f.patient.ID, slot.ID)
		require.NoError(t, err)

		_, err = f.svc.Cancel(context.Background(), appt.ID)
		require.NoError(t, err)

		_, err = f.svc.Cancel(context.Background(), appt.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		got, err := f.repo.GetAppointmentByID(context.Background(), appt.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
	})

	t.Run("completed", func(t *testing.T) {
		slot := f.futureSlot()
		appt, err := f.svc.Reserve(context.Background(), f.patient.ID, slot.ID)
		require.NoError(t, err)

		_, err = f.svc.Complete(context.Background(), appt.ID)
		require.NoError(t, err)

		_, err = f.svc.Cancel(context.Background(), appt.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)

		// completing must not have freed the slot, and the failed cancel
		// must not free it either
		got, err := f.repo.GetSlotByID(context.Background(), slot.ID)
		require.NoError(t, err)
		assert.False(t, got.Available)
	})
}

func TestComplete_Lifecycle(t *testing.T) {
	f := newFixture(t)
	slot := f.futureSlot()

	appt, err := f.svc.Reserve(context.Background(), f.patient.ID, slot.ID)
	require.NoError(t, err)

	completed, err := f.svc.Complete(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)

	// slot stays consumed
	got, err := f.repo.GetSlotByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.False(t, got.Available)

	// terminal: no further transitions
	_, err = f.svc.Complete(context.Background(), appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Complete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

// TestBookingScenario walks the full flow: generate two slots, book one,
// collide, cancel, rebook.
func TestBookingScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.repo.addPatient("Quentin Other")

	gen := NewGenerator(f.repo)
	dayStart := time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)
	gen.now = func() time.Time { return dayStart.Add(-48 * time.Hour) }

	created, err := gen.Generate(ctx, f.practitioner.ID, dayStart, dayStart.Add(time.Hour), 30*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, created)

	slots, err := f.repo.ListSlotsByPractitioner(ctx, f.practitioner.ID, dayStart, dayStart.Add(time.Hour), false)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].StartTime.Equal(dayStart))
	assert.True(t, slots[1].StartTime.Equal(dayStart.Add(30*time.Minute)))

	f.svc.now = func() time.Time { return dayStart.Add(-time.Hour) }

	first := slots[0]
	appt, err := f.svc.Reserve(ctx, f.patient.ID, first.ID)
	require.NoError(t, err)

	_, err = f.svc.Reserve(ctx, q.ID, first.ID)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	cancelled, err := f.svc.Cancel(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	rebooked, err := f.svc.Reserve(ctx, q.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, rebooked.PatientID)

	assert.Equal(t,
		[]string{EventAppointmentConfirmed, EventAppointmentCancelled, EventAppointmentConfirmed},
		f.repo.eventTypes(),
	)
}
