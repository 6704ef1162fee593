package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/libs/auth"
	"github.com/carebook/carebook/internal/model"
	"github.com/carebook/carebook/internal/slots"
)

// Store is the persistence boundary of the booking core. CreateAppointment
// must reserve the (doctor, date, time) ledger key and insert the record in
// one atomic step: concurrent bookings of the same key see exactly one
// success and ErrSlotUnavailable for the rest. CancelAppointment releases
// the ledger key in the same transaction that flips the cancelled flag.
type Store interface {
	Doctor(ctx context.Context, id string) (model.Doctor, error)
	Patient(ctx context.Context, id string) (model.Patient, error)
	BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error)

	CreateAppointment(ctx context.Context, appt *model.Appointment) error
	Appointment(ctx context.Context, id string) (model.Appointment, error)
	CancelAppointment(ctx context.Context, id string) (model.Appointment, error)
	CompleteAppointment(ctx context.Context, id string) (model.Appointment, error)
	MarkPaid(ctx context.Context, id string) (model.Appointment, error)

	EnsureVideoRoom(ctx context.Context, id, roomID string) (model.Appointment, error)
	SetVideoActive(ctx context.Context, id string, active bool) (model.Appointment, error)
}

// Actor is the role-scoped identity produced by a gatekeeper middleware.
// The core trusts it blindly; token validation happened upstream.
type Actor struct {
	ID   string
	Role string
}

type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// AvailableSlots computes the doctor's bookable calendar over the rolling
// horizon. Always recomputed from the current ledger, never cached.
func (s *Service) AvailableSlots(ctx context.Context, doctorID string) ([]slots.Day, error) {
	if _, err := s.store.Doctor(ctx, doctorID); err != nil {
		return nil, err
	}
	booked, err := s.store.BookedSlots(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return slots.Calendar(booked, s.now()), nil
}

// Book reserves (doctorID, slotDate, slotTime) for the patient and creates
// the appointment record. Availability is re-validated against the current
// ledger inside the reserving transaction, not the client's cached view;
// either both mutations land or neither does.
func (s *Service) Book(ctx context.Context, patientID, doctorID, slotDate, slotTime string) (model.Appointment, error) {
	if err := slots.ValidateBookable(slotDate, slotTime, s.now()); err != nil {
		return model.Appointment{}, err
	}

	doc, err := s.store.Doctor(ctx, doctorID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !doc.Available {
		return model.Appointment{}, ErrDoctorUnavailable
	}
	pat, err := s.store.Patient(ctx, patientID)
	if err != nil {
		return model.Appointment{}, err
	}

	appt := &model.Appointment{
		ID:        uuid.NewString(),
		PatientID: pat.ID,
		DoctorID:  doc.ID,
		SlotDate:  slotDate,
		SlotTime:  slotTime,
		Patient:   pat.Summary(),
		Doctor:    doc.Summary(),
		Amount:    doc.Fees,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateAppointment(ctx, appt); err != nil {
		return model.Appointment{}, err
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", doc.ID,
		"slot_date", slotDate,
		"slot_time", slotTime,
	)
	return *appt, nil
}

// Cancel soft-cancels an appointment and releases its slot back into the
// pool. Allowed for the booking patient, the attached doctor, or an admin.
// Idempotent on an already-cancelled record; conflicts with completion.
func (s *Service) Cancel(ctx context.Context, appointmentID string, actor Actor) (model.Appointment, error) {
	appt, err := s.store.Appointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !actorIsParty(appt, actor) && actor.Role != auth.RoleAdmin {
		return model.Appointment{}, ErrForbidden
	}
	if appt.Cancelled {
		return appt, nil
	}
	if appt.Completed {
		return model.Appointment{}, ErrAlreadyCompleted
	}

	cancelled, err := s.store.CancelAppointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment cancelled",
		"appointment_id", appointmentID,
		"actor_role", actor.Role,
	)
	return cancelled, nil
}

// Complete marks the consultation done. Attached doctor only; irreversible.
// Idempotent on an already-completed record; conflicts with cancellation.
func (s *Service) Complete(ctx context.Context, appointmentID string, actor Actor) (model.Appointment, error) {
	appt, err := s.store.Appointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if actor.Role != auth.RoleDoctor || actor.ID != appt.DoctorID {
		return model.Appointment{}, ErrForbidden
	}
	if appt.Completed {
		return appt, nil
	}
	if appt.Cancelled {
		return model.Appointment{}, ErrAlreadyCancelled
	}

	completed, err := s.store.CompleteAppointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment completed", "appointment_id", appointmentID)
	return completed, nil
}

// MarkPaid records payment capture, normally driven by the payment
// collaborator's webhook. Idempotent. A cancelled appointment may still be
// marked paid: that is the valid cancelled+paid historical state whose
// refund workflow lives outside this core.
func (s *Service) MarkPaid(ctx context.Context, appointmentID string) (model.Appointment, error) {
	appt, err := s.store.Appointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if appt.Paid {
		return appt, nil
	}
	paid, err := s.store.MarkPaid(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	s.logger.Info("appointment paid", "appointment_id", appointmentID)
	return paid, nil
}

// VideoStatus returns the appointment for an authoritative video-access
// check. Clients treat any cached canAccessVideo value as advisory and
// re-check here before starting a call.
func (s *Service) VideoStatus(ctx context.Context, appointmentID string, actor Actor) (model.Appointment, error) {
	appt, err := s.store.Appointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !actorIsParty(appt, actor) && actor.Role != auth.RoleAdmin {
		return model.Appointment{}, ErrForbidden
	}
	return appt, nil
}

// GenerateVideoRoom assigns a room id if none exists yet; the first party
// to ask wins and everyone else joins the same room.
func (s *Service) GenerateVideoRoom(ctx context.Context, appointmentID string, actor Actor) (model.Appointment, error) {
	appt, err := s.store.Appointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !actorIsParty(appt, actor) {
		return model.Appointment{}, ErrForbidden
	}
	if !appt.CanAccessVideo() {
		return model.Appointment{}, ErrVideoNotAllowed
	}
	return s.store.EnsureVideoRoom(ctx, appointmentID, uuid.NewString())
}

// StartVideoCall flips the live-call flag on. Gated by canAccessVideo at
// the moment of the call, regardless of what the client believed.
func (s *Service) StartVideoCall(ctx context.Context, appointmentID string, actor Actor) (model.Appointment, error) {
	appt, err := s.store.Appointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !actorIsParty(appt, actor) {
		return model.Appointment{}, ErrForbidden
	}
	if !appt.CanAccessVideo() {
		return model.Appointment{}, ErrVideoNotAllowed
	}
	return s.store.SetVideoActive(ctx, appointmentID, true)
}

// EndVideoCall flips the live-call flag off and stamps the end time.
func (s *Service) EndVideoCall(ctx context.Context, appointmentID string, actor Actor) (model.Appointment, error) {
	appt, err := s.store.Appointment(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !actorIsParty(appt, actor) {
		return model.Appointment{}, ErrForbidden
	}
	if !appt.Video.Active {
		return appt, nil
	}
	return s.store.SetVideoActive(ctx, appointmentID, false)
}

func actorIsParty(appt model.Appointment, actor Actor) bool {
	switch actor.Role {
	case auth.RolePatient:
		return actor.ID == appt.PatientID
	case auth.RoleDoctor:
		return actor.ID == appt.DoctorID
	default:
		return false
	}
}
