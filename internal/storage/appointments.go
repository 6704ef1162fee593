package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/internal/model"
	"github.com/carebook/carebook/internal/outbox"
	"github.com/carebook/carebook/libs/db"
)

const apptColumns = `id, patient_id, doctor_id, slot_date, slot_time, patient_data, doctor_data,
	amount, cancelled, is_completed, payment, video_room_id, video_active, video_started_at, video_ended_at, created_at`

// AppointmentRepository owns the appointments table and the booked_slots
// ledger, and implements the booking core's Store contract. Domain events
// are written to the outbox inside the same transaction as the state
// change they describe.
type AppointmentRepository struct {
	pool     *db.Pool
	outbox   *outbox.Repository
	doctors  *DoctorRepository
	patients *PatientRepository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository, doctors *DoctorRepository, patients *PatientRepository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo, doctors: doctors, patients: patients}
}

var _ booking.Store = (*AppointmentRepository)(nil)

func (r *AppointmentRepository) Doctor(ctx context.Context, id string) (model.Doctor, error) {
	return r.doctors.ByID(ctx, id)
}

func (r *AppointmentRepository) Patient(ctx context.Context, id string) (model.Patient, error) {
	return r.patients.ByID(ctx, id)
}

// BookedSlots returns the doctor's reserved (date -> times) ledger view.
func (r *AppointmentRepository) BookedSlots(ctx context.Context, doctorID string) (map[string][]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_date, slot_time
		FROM booked_slots
		WHERE doctor_id = $1
		ORDER BY slot_date, slot_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	booked := map[string][]string{}
	for rows.Next() {
		var date, timeOfDay string
		if err := rows.Scan(&date, &timeOfDay); err != nil {
			return nil, err
		}
		booked[date] = append(booked[date], timeOfDay)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return booked, nil
}

// CreateAppointment reserves the slot and inserts the record in one
// transaction. The reserve step is a conditional insert on the ledger's
// primary key, so two racing bookings of the same (doctor, date, time)
// serialize at the database: one row lands, the other sees zero rows
// affected and gets ErrSlotUnavailable. No appointment is created on
// failure.
func (r *AppointmentRepository) CreateAppointment(ctx context.Context, appt *model.Appointment) error {
	patientData, err := json.Marshal(appt.Patient)
	if err != nil {
		return err
	}
	doctorData, err := json.Marshal(appt.Doctor)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Availability flag is checked at commit time, under lock, so a doctor
	// toggled off mid-request cannot be booked.
	var available bool
	err = tx.QueryRow(ctx, `SELECT available FROM doctors WHERE id = $1 FOR SHARE`, appt.DoctorID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.ErrNotFound
	}
	if err != nil {
		return err
	}
	if !available {
		return booking.ErrDoctorUnavailable
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, patient_id, doctor_id, slot_date, slot_time, patient_data, doctor_data, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, appt.ID, appt.PatientID, appt.DoctorID, appt.SlotDate, appt.SlotTime, patientData, doctorData, appt.Amount, appt.CreatedAt)
	if err != nil {
		return err
	}

	ct, err := tx.Exec(ctx, `
		INSERT INTO booked_slots (doctor_id, slot_date, slot_time, appointment_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doctor_id, slot_date, slot_time) DO NOTHING
	`, appt.DoctorID, appt.SlotDate, appt.SlotTime, appt.ID)
	if err != nil {
		return err
	}
	// Zero rows means someone else holds the slot; rollback removes the
	// appointment row too.
	if ct.RowsAffected() == 0 {
		return booking.ErrSlotUnavailable
	}

	if err := r.insertEvent(ctx, tx, outbox.EventAppointmentBooked, *appt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *AppointmentRepository) Appointment(ctx context.Context, id string) (model.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `SELECT `+apptColumns+` FROM appointments WHERE id = $1`, id))
}

// CancelAppointment flips the cancelled flag, forces any live call off,
// and releases the slot back into the pool, all in one transaction.
func (r *AppointmentRepository) CancelAppointment(ctx context.Context, id string) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET cancelled = true,
			video_active = false,
			video_ended_at = COALESCE(video_ended_at, now())
		WHERE id = $1
		RETURNING `+apptColumns, id))
	if err != nil {
		return model.Appointment{}, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM booked_slots WHERE appointment_id = $1`, id); err != nil {
		return model.Appointment{}, err
	}
	if err := r.insertEvent(ctx, tx, outbox.EventAppointmentCancelled, appt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) CompleteAppointment(ctx context.Context, id string) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET is_completed = true,
			video_active = false,
			video_ended_at = COALESCE(video_ended_at, now())
		WHERE id = $1
		RETURNING `+apptColumns, id))
	if err != nil {
		return model.Appointment{}, err
	}

	if err := r.insertEvent(ctx, tx, outbox.EventAppointmentCompleted, appt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func (r *AppointmentRepository) MarkPaid(ctx context.Context, id string) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET payment = true
		WHERE id = $1
		RETURNING `+apptColumns, id))
	if err != nil {
		return model.Appointment{}, err
	}

	if err := r.insertEvent(ctx, tx, outbox.EventAppointmentPaid, appt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// EnsureVideoRoom assigns roomID unless a room already exists; the stored
// room always wins so both parties join the same one.
func (r *AppointmentRepository) EnsureVideoRoom(ctx context.Context, id, roomID string) (model.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET video_room_id = COALESCE(NULLIF(video_room_id, ''), $2)
		WHERE id = $1
		RETURNING `+apptColumns, id, roomID))
}

func (r *AppointmentRepository) SetVideoActive(ctx context.Context, id string, active bool) (model.Appointment, error) {
	if active {
		return scanAppointment(r.pool.QueryRow(ctx, `
			UPDATE appointments
			SET video_active = true,
				video_started_at = COALESCE(video_started_at, now())
			WHERE id = $1
			RETURNING `+apptColumns, id))
	}
	return scanAppointment(r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET video_active = false,
			video_ended_at = now()
		WHERE id = $1
		RETURNING `+apptColumns, id))
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `SELECT `+apptColumns+` FROM appointments WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2`, patientID, limit)
}

func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `SELECT `+apptColumns+` FROM appointments WHERE doctor_id = $1 ORDER BY created_at DESC LIMIT $2`, doctorID, limit)
}

func (r *AppointmentRepository) ListAll(ctx context.Context, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `SELECT `+apptColumns+` FROM appointments ORDER BY created_at DESC LIMIT $1`, limit)
}

// AdminStats feeds the admin console dashboard.
type AdminStats struct {
	Doctors      int64
	Patients     int64
	Appointments int64
	Latest       []model.Appointment
}

func (r *AppointmentRepository) AdminStats(ctx context.Context) (AdminStats, error) {
	var stats AdminStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM doctors),
			(SELECT count(*) FROM patients),
			(SELECT count(*) FROM appointments)
	`).Scan(&stats.Doctors, &stats.Patients, &stats.Appointments)
	if err != nil {
		return AdminStats{}, err
	}
	stats.Latest, err = r.ListAll(ctx, 5)
	if err != nil {
		return AdminStats{}, err
	}
	return stats, nil
}

// DoctorStats feeds the doctor dashboard. Earnings count paid,
// non-cancelled appointments only.
type DoctorStats struct {
	Earnings     int64
	Appointments int64
	Patients     int64
	Latest       []model.Appointment
}

func (r *AppointmentRepository) DoctorStats(ctx context.Context, doctorID string) (DoctorStats, error) {
	var stats DoctorStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(sum(amount) FILTER (WHERE payment AND NOT cancelled), 0),
			count(*),
			count(DISTINCT patient_id)
		FROM appointments
		WHERE doctor_id = $1
	`, doctorID).Scan(&stats.Earnings, &stats.Appointments, &stats.Patients)
	if err != nil {
		return DoctorStats{}, err
	}
	stats.Latest, err = r.ListByDoctor(ctx, doctorID, 5)
	if err != nil {
		return DoctorStats{}, err
	}
	return stats, nil
}

func (r *AppointmentRepository) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
		"doctor_id":      appt.DoctorID,
		"slot_date":      appt.SlotDate,
		"slot_time":      appt.SlotTime,
		"amount":         appt.Amount,
		"cancelled":      appt.Cancelled,
		"is_completed":   appt.Completed,
		"payment":        appt.Paid,
	})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		appt        model.Appointment
		patientData []byte
		doctorData  []byte
		startedAt   *time.Time
		endedAt     *time.Time
	)
	err := row.Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.DoctorID,
		&appt.SlotDate,
		&appt.SlotTime,
		&patientData,
		&doctorData,
		&appt.Amount,
		&appt.Cancelled,
		&appt.Completed,
		&appt.Paid,
		&appt.Video.RoomID,
		&appt.Video.Active,
		&startedAt,
		&endedAt,
		&appt.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, booking.ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	if err := json.Unmarshal(patientData, &appt.Patient); err != nil {
		return model.Appointment{}, err
	}
	if err := json.Unmarshal(doctorData, &appt.Doctor); err != nil {
		return model.Appointment{}, err
	}
	appt.Video.StartedAt = startedAt
	appt.Video.EndedAt = endedAt
	return appt, nil
}
