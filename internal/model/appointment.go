package model

import "time"

// Appointment is a confirmed booking and its lifecycle. Records are never
// deleted; cancellation and completion are soft state. The three status
// booleans are not mutually exclusive: cancelled+paid is a valid historical
// state (refund handling lives outside this service).
type Appointment struct {
	ID        string
	PatientID string
	DoctorID  string
	SlotDate  string // DD_MM_YYYY, ledger key
	SlotTime  string // hh:mm AM/PM, ledger key
	Patient   PatientSummary
	Doctor    DoctorSummary
	Amount    int64
	Cancelled bool
	Completed bool
	Paid      bool
	Video     VideoCall
	CreatedAt time.Time
}

// VideoCall is the live-call sub-state attached to an appointment.
type VideoCall struct {
	RoomID    string
	Active    bool
	StartedAt *time.Time
	EndedAt   *time.Time
}

// CanAccessVideo derives whether the live-call UI may be shown. It is
// computed on read, never stored, so it cannot drift from its inputs and
// cannot be written directly.
func (a Appointment) CanAccessVideo() bool {
	return a.Paid && !a.Cancelled && !a.Completed
}
