package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/internal/model"
	"github.com/carebook/carebook/libs/db"
)

const patientColumns = `id, name, email, password_hash, phone, address, gender, birth_date, image, created_at`

type PatientRepository struct {
	pool *db.Pool
}

func NewPatientRepository(pool *db.Pool) *PatientRepository {
	return &PatientRepository{pool: pool}
}

func (r *PatientRepository) Create(ctx context.Context, pat model.Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, name, email, password_hash, phone, address, gender, birth_date, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, pat.ID, pat.Name, pat.Email, pat.PasswordHash, pat.Phone, pat.Address, pat.Gender, pat.BirthDate, pat.Image)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PatientRepository) ByID(ctx context.Context, id string) (model.Patient, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id))
}

func (r *PatientRepository) ByEmail(ctx context.Context, email string) (model.Patient, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE email = $1`, email))
}

func (r *PatientRepository) UpdateProfile(ctx context.Context, id, name, phone, address, gender, birthDate string) (model.Patient, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		UPDATE patients
		SET name = $2, phone = $3, address = $4, gender = $5, birth_date = $6
		WHERE id = $1
		RETURNING `+patientColumns, id, name, phone, address, gender, birthDate))
}

func (r *PatientRepository) scanOne(row pgx.Row) (model.Patient, error) {
	var pat model.Patient
	err := row.Scan(
		&pat.ID,
		&pat.Name,
		&pat.Email,
		&pat.PasswordHash,
		&pat.Phone,
		&pat.Address,
		&pat.Gender,
		&pat.BirthDate,
		&pat.Image,
		&pat.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Patient{}, booking.ErrNotFound
	}
	if err != nil {
		return model.Patient{}, err
	}
	return pat, nil
}
