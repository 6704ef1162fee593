package storage

import (
	"context"

	"github.com/carebook/carebook/libs/db"
)

// Migrate applies the schema. Statements are idempotent so it is safe to
// run on every startup.
func Migrate(ctx context.Context, pool *db.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id            text PRIMARY KEY,
			name          text NOT NULL,
			email         text NOT NULL UNIQUE,
			password_hash text NOT NULL,
			phone         text NOT NULL DEFAULT '',
			address       text NOT NULL DEFAULT '',
			gender        text NOT NULL DEFAULT '',
			birth_date    text NOT NULL DEFAULT '',
			image         text NOT NULL DEFAULT '',
			created_at    timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS doctors (
			id            text PRIMARY KEY,
			name          text NOT NULL,
			email         text NOT NULL UNIQUE,
			password_hash text NOT NULL,
			speciality    text NOT NULL,
			degree        text NOT NULL DEFAULT '',
			experience    text NOT NULL DEFAULT '',
			about         text NOT NULL DEFAULT '',
			fees          bigint NOT NULL DEFAULT 0,
			address       text NOT NULL DEFAULT '',
			image         text NOT NULL DEFAULT '',
			available     boolean NOT NULL DEFAULT true,
			created_at    timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id               text PRIMARY KEY,
			patient_id       text NOT NULL REFERENCES patients(id),
			doctor_id        text NOT NULL REFERENCES doctors(id),
			slot_date        text NOT NULL,
			slot_time        text NOT NULL,
			patient_data     jsonb NOT NULL,
			doctor_data      jsonb NOT NULL,
			amount           bigint NOT NULL DEFAULT 0,
			cancelled        boolean NOT NULL DEFAULT false,
			is_completed     boolean NOT NULL DEFAULT false,
			payment          boolean NOT NULL DEFAULT false,
			video_room_id    text NOT NULL DEFAULT '',
			video_active     boolean NOT NULL DEFAULT false,
			video_started_at timestamptz,
			video_ended_at   timestamptz,
			created_at       timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS appointments_doctor_idx ON appointments (doctor_id, created_at DESC)`,
		// One row per reserved slot. The primary key is the double-booking
		// guard: concurrent inserts of the same key cannot both land.
		`CREATE TABLE IF NOT EXISTS booked_slots (
			doctor_id      text NOT NULL REFERENCES doctors(id),
			slot_date      text NOT NULL,
			slot_time      text NOT NULL,
			appointment_id text NOT NULL REFERENCES appointments(id),
			PRIMARY KEY (doctor_id, slot_date, slot_time)
		)`,
		`CREATE INDEX IF NOT EXISTS booked_slots_appointment_idx ON booked_slots (appointment_id)`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
			id            bigserial PRIMARY KEY,
			event_id      uuid NOT NULL DEFAULT gen_random_uuid(),
			aggregate_type text NOT NULL,
			aggregate_id  text NOT NULL,
			event_type    text NOT NULL,
			payload       jsonb NOT NULL,
			traceparent   text NOT NULL DEFAULT '',
			tracestate    text NOT NULL DEFAULT '',
			created_at    timestamptz NOT NULL DEFAULT now(),
			published_at  timestamptz
		)`,
		`CREATE INDEX IF NOT EXISTS outbox_events_unpublished_idx ON outbox_events (id) WHERE published_at IS NULL`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
