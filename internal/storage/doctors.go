package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/internal/model"
	"github.com/carebook/carebook/libs/db"
)

const doctorColumns = `id, name, email, password_hash, speciality, degree, experience, about, fees, address, image, available, created_at`

type DoctorRepository struct {
	pool *db.Pool
}

func NewDoctorRepository(pool *db.Pool) *DoctorRepository {
	return &DoctorRepository{pool: pool}
}

func (r *DoctorRepository) Create(ctx context.Context, doc model.Doctor) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors
			(id, name, email, password_hash, speciality, degree, experience, about, fees, address, image, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, doc.ID, doc.Name, doc.Email, doc.PasswordHash, doc.Speciality, doc.Degree, doc.Experience,
		doc.About, doc.Fees, doc.Address, doc.Image, doc.Available)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *DoctorRepository) ByID(ctx context.Context, id string) (model.Doctor, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id))
}

func (r *DoctorRepository) ByEmail(ctx context.Context, email string) (model.Doctor, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE email = $1`, email))
}

// List returns every doctor ordered by name, for the public directory and
// the admin console.
func (r *DoctorRepository) List(ctx context.Context) ([]model.Doctor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+doctorColumns+` FROM doctors ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.Doctor
	for rows.Next() {
		doc, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return docs, nil
}

// ToggleAvailability flips the doctor's global availability flag and
// returns the new value.
func (r *DoctorRepository) ToggleAvailability(ctx context.Context, id string) (bool, error) {
	var available bool
	err := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET available = NOT available
		WHERE id = $1
		RETURNING available
	`, id).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, booking.ErrNotFound
	}
	return available, err
}

func (r *DoctorRepository) UpdateProfile(ctx context.Context, id string, fees int64, address, about string) (model.Doctor, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET fees = $2, address = $3, about = $4
		WHERE id = $1
		RETURNING `+doctorColumns, id, fees, address, about))
}

func (r *DoctorRepository) scanOne(row pgx.Row) (model.Doctor, error) {
	var doc model.Doctor
	err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.Email,
		&doc.PasswordHash,
		&doc.Speciality,
		&doc.Degree,
		&doc.Experience,
		&doc.About,
		&doc.Fees,
		&doc.Address,
		&doc.Image,
		&doc.Available,
		&doc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Doctor{}, booking.ErrNotFound
	}
	if err != nil {
		return model.Doctor{}, err
	}
	return doc, nil
}
