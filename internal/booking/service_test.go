package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebook/carebook/internal/model"
	"github.com/carebook/carebook/internal/slots"
	"github.com/carebook/carebook/libs/auth"
)

// memStore implements Store with the same atomicity contract as the pgx
// repository: reserve-and-create under one lock, release-on-cancel under
// the same lock.
type memStore struct {
	mu       sync.Mutex
	doctors  map[string]model.Doctor
	patients map[string]model.Patient
	appts    map[string]*model.Appointment
	ledger   map[string]string // doctor|date|time -> appointment id
}

func newMemStore() *memStore {
	return &memStore{
		doctors:  map[string]model.Doctor{},
		patients: map[string]model.Patient{},
		appts:    map[string]*model.Appointment{},
		ledger:   map[string]string{},
	}
}

func ledgerKey(doctorID, date, timeOfDay string) string {
	return doctorID + "|" + date + "|" + timeOfDay
}

func (m *memStore) Doctor(_ context.Context, id string) (model.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return model.Doctor{}, ErrNotFound
	}
	return d, nil
}

func (m *memStore) Patient(_ context.Context, id string) (model.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return model.Patient{}, ErrNotFound
	}
	return p, nil
}

func (m *memStore) BookedSlots(_ context.Context, doctorID string) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booked := map[string][]string{}
	for _, a := range m.appts {
		if a.DoctorID != doctorID || a.Cancelled {
			continue
		}
		booked[a.SlotDate] = append(booked[a.SlotDate], a.SlotTime)
	}
	return booked, nil
}

func (m *memStore) CreateAppointment(_ context.Context, appt *model.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.doctors[appt.DoctorID]
	if !ok {
		return ErrNotFound
	}
	if !doc.Available {
		return ErrDoctorUnavailable
	}
	key := ledgerKey(appt.DoctorID, appt.SlotDate, appt.SlotTime)
	if _, taken := m.ledger[key]; taken {
		return ErrSlotUnavailable
	}
	m.ledger[key] = appt.ID
	cp := *appt
	m.appts[appt.ID] = &cp
	return nil
}

func (m *memStore) Appointment(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return *a, nil
}

func (m *memStore) CancelAppointment(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	a.Cancelled = true
	a.Video.Active = false
	if a.Video.EndedAt == nil {
		now := time.Now()
		a.Video.EndedAt = &now
	}
	delete(m.ledger, ledgerKey(a.DoctorID, a.SlotDate, a.SlotTime))
	return *a, nil
}

func (m *memStore) CompleteAppointment(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	a.Completed = true
	a.Video.Active = false
	if a.Video.EndedAt == nil {
		now := time.Now()
		a.Video.EndedAt = &now
	}
	return *a, nil
}

func (m *memStore) MarkPaid(_ context.Context, id string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	a.Paid = true
	return *a, nil
}

func (m *memStore) EnsureVideoRoom(_ context.Context, id, roomID string) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	if a.Video.RoomID == "" {
		a.Video.RoomID = roomID
	}
	return *a, nil
}

func (m *memStore) SetVideoActive(_ context.Context, id string, active bool) (model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	a.Video.Active = active
	now := time.Now()
	if active {
		if a.Video.StartedAt == nil {
			a.Video.StartedAt = &now
		}
	} else if a.Video.EndedAt == nil {
		a.Video.EndedAt = &now
	}
	return *a, nil
}

var _ Store = (*memStore)(nil)

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	store.doctors["doc-1"] = model.Doctor{ID: "doc-1", Name: "Dr. Ayesha Rahman", Speciality: "Dermatologist", Fees: 60, Available: true}
	store.doctors["doc-2"] = model.Doctor{ID: "doc-2", Name: "Dr. Imran Chowdhury", Speciality: "Neurologist", Fees: 90, Available: false}
	store.patients["pat-1"] = model.Patient{ID: "pat-1", Name: "Nadia Islam"}
	store.patients["pat-2"] = model.Patient{ID: "pat-2", Name: "Farhan Ahmed"}
	return NewService(store, slog.Default()), store
}

func tomorrowSlot() (string, string) {
	return slots.DateKey(time.Now().AddDate(0, 0, 1)), "10:00 AM"
}

func TestBookCreatesAppointmentAndBlocksSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date, timeOfDay := tomorrowSlot()

	appt, err := svc.Book(ctx, "pat-1", "doc-1", date, timeOfDay)
	require.NoError(t, err)
	assert.Equal(t, "pat-1", appt.PatientID)
	assert.Equal(t, int64(60), appt.Amount)
	assert.Equal(t, "Dr. Ayesha Rahman", appt.Doctor.Name)
	assert.False(t, appt.Cancelled)
	assert.False(t, appt.Paid)
	assert.False(t, appt.Completed)

	days, err := svc.AvailableSlots(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, date, days[0].Date)
	assert.NotContains(t, days[0].Times, timeOfDay)
	assert.Len(t, days[0].Times, 11)
}

func TestBookRejectsTakenSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date, timeOfDay := tomorrowSlot()

	_, err := svc.Book(ctx, "pat-1", "doc-1", date, timeOfDay)
	require.NoError(t, err)

	_, err = svc.Book(ctx, "pat-2", "doc-1", date, timeOfDay)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestBookRejectsUnavailableDoctor(t *testing.T) {
	svc, _ := newTestService(t)
	date, timeOfDay := tomorrowSlot()

	_, err := svc.Book(context.Background(), "pat-1", "doc-2", date, timeOfDay)
	assert.ErrorIs(t, err, ErrDoctorUnavailable)
}

func TestBookRejectsUnknownDoctor(t *testing.T) {
	svc, _ := newTestService(t)
	date, timeOfDay := tomorrowSlot()

	_, err := svc.Book(context.Background(), "pat-1", "doc-404", date, timeOfDay)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookRejectsMalformedSlot(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Book(context.Background(), "pat-1", "doc-1", "2025-03-05", "10:00 AM")
	assert.ErrorIs(t, err, slots.ErrInvalidSlot)
}

func TestConcurrentBookingHasSingleWinner(t *testing.T) {
	svc, _ := newTestService(t)
	date, timeOfDay := tomorrowSlot()

	const attempts = 32
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(context.Background(), "pat-1", "doc-1", date, timeOfDay)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotUnavailable):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, conflicts)
}

func TestCancelAuthorization(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date, timeOfDay := tomorrowSlot()
	appt, err := svc.Book(ctx, "pat-1", "doc-1", date, timeOfDay)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, appt.ID, Actor{ID: "pat-2", Role: auth.RolePatient})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Cancel(ctx, appt.ID, Actor{ID: "doc-2", Role: auth.RoleDoctor})
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := svc.Cancel(ctx, appt.ID, Actor{ID: "admin", Role: auth.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled)
}

func TestCancelReleasesSlot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date, timeOfDay := tomorrowSlot()
	appt, err := svc.Book(ctx, "pat-1", "doc-1", date, timeOfDay)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, appt.ID, Actor{ID: "pat-1", Role: auth.RolePatient})
	require.NoError(t, err)

	days, err := svc.AvailableSlots(ctx, "doc-1")
	require.NoError(t, err)
	assert.Contains(t, days[0].Times, timeOfDay, "cancelled slot should return to the pool")

	// And the slot can be booked again by someone else.
	_, err = svc.Book(ctx, "pat-2", "doc-1", date, timeOfDay)
	assert.NoError(t, err)
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date, timeOfDay := tomorrowSlot()
	appt, err := svc.Book(ctx, "pat-1", "doc-1", date, timeOfDay)
	require.NoError(t, err)

	owner := Actor{ID: "pat-1", Role: auth.RolePatient}
	_, err = svc.Cancel(ctx, appt.ID, owner)
	require.NoError(t, err)

	again, err := svc.Cancel(ctx, appt.ID, owner)
	require.NoError(t, err)
	assert.True(t, again.Cancelled)
}

func TestCompleteOnlyAttachedDoctor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date, timeOfDay := tomorrowSlot()
	appt, err := svc.Book(ctx, "pat-1", "doc-1", date, timeOfDay)
	require.NoError(t, err)

	for _, actor := range []Actor{
		{ID: "pat-1", Role: auth.RolePatient},
		{ID: "doc-2", Role: auth.RoleDoctor},
		{ID: "admin", Role: auth.RoleAdmin},
	} {
		_, err = svc.Complete(ctx, appt.ID, actor)
		assert.ErrorIs(t, err, ErrForbidden, "actor %+v", actor)
	}

	done, err := svc.Complete(ctx, appt.ID, Actor{ID: "doc-1", Role: auth.RoleDoctor})
	require.NoError(t, err)
	assert.True(t, done.Completed)

	// Repeat completion is a no-op, not an error.
	again, err := svc.Complete(ctx, appt.ID, Actor{ID: "doc-1", Role: auth.RoleDoctor})
	require.NoError(t, err)
	assert.True(t, again.Completed)
}

func TestTerminalStatesConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	doctor := Actor{ID: "doc-1", Role: auth.RoleDoctor}
	date, timeOfDay := tomorrowSlot()

	cancelled, err := svc.Book(ctx, "pat-1", "doc-1", date, timeOfDay)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, cancelled.ID, doctor)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, cancelled.ID, doctor)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	completed, err := svc.Book(ctx, "pat-1", "doc-1", date, "10:30 AM")
	require.NoError(t, err)
	_, err = svc.Complete(ctx, completed.ID, doctor)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, completed.ID, doctor)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestVideoAccessLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := Actor{ID: "pat-1", Role: auth.RolePatient}
	date, timeOfDay := tomorrowSlot()
	appt, err := svc.Book(ctx, "pat-1", "doc-1", date, timeOfDay)
	require.NoError(t, err)

	// Unpaid: no room, no call.
	_, err = svc.GenerateVideoRoom(ctx, appt.ID, owner)
	assert.ErrorIs(t, err, ErrVideoNotAllowed)
	_, err = svc.StartVideoCall(ctx, appt.ID, owner)
	assert.ErrorIs(t, err, ErrVideoNotAllowed)

	paid, err := svc.MarkPaid(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, paid.CanAccessVideo())

	withRoom, err := svc.GenerateVideoRoom(ctx, appt.ID, owner)
	require.NoError(t, err)
	assert.NotEmpty(t, withRoom.Video.RoomID)

	// Second party joins the same room.
	sameRoom, err := svc.GenerateVideoRoom(ctx, appt.ID, Actor{ID: "doc-1", Role: auth.RoleDoctor})
	require.NoError(t, err)
	assert.Equal(t, withRoom.Video.RoomID, sameRoom.Video.RoomID)

	live, err := svc.StartVideoCall(ctx, appt.ID, owner)
	require.NoError(t, err)
	assert.True(t, live.Video.Active)
	assert.NotNil(t, live.Video.StartedAt)

	// A stranger gets no status.
	_, err = svc.VideoStatus(ctx, appt.ID, Actor{ID: "pat-2", Role: auth.RolePatient})
	assert.ErrorIs(t, err, ErrForbidden)

	ended, err := svc.EndVideoCall(ctx, appt.ID, owner)
	require.NoError(t, err)
	assert.False(t, ended.Video.Active)
	assert.NotNil(t, ended.Video.EndedAt)
}

func TestCancelForcesVideoCallOff(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := Actor{ID: "pat-1", Role: auth.RolePatient}
	date, timeOfDay := tomorrowSlot()
	appt, err := svc.Book(ctx, "pat-1", "doc-1", date, timeOfDay)
	require.NoError(t, err)

	_, err = svc.MarkPaid(ctx, appt.ID)
	require.NoError(t, err)
	_, err = svc.StartVideoCall(ctx, appt.ID, owner)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, appt.ID, owner)
	require.NoError(t, err)
	assert.False(t, cancelled.Video.Active)
	assert.NotNil(t, cancelled.Video.EndedAt)
	assert.False(t, cancelled.CanAccessVideo(), "cancelled+paid must not grant video access")
}

func TestPaidStateSurvivesCancellation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date, timeOfDay := tomorrowSlot()
	appt, err := svc.Book(ctx, "pat-1", "doc-1", date, timeOfDay)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, appt.ID, Actor{ID: "pat-1", Role: auth.RolePatient})
	require.NoError(t, err)

	// Late payment capture on a cancelled appointment is recorded; the
	// refund is someone else's workflow.
	paid, err := svc.MarkPaid(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	assert.True(t, paid.Cancelled)
	assert.False(t, paid.CanAccessVideo())
}
