package booking

import "errors"

// Failure taxonomy for the booking core. Every error is scoped to a single
// request; nothing here is fatal to the process and nothing retries
// automatically.
var (
	// ErrSlotUnavailable: the requested slot was taken between the client's
	// slot fetch and submission. Recoverable; the caller re-fetches slots.
	ErrSlotUnavailable = errors.New("slot no longer available")

	// ErrDoctorUnavailable: the doctor's availability flag was off at
	// commit time. Recoverable.
	ErrDoctorUnavailable = errors.New("doctor not available")

	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")

	// Terminal-state conflicts: crossing from one terminal state into the
	// other is rejected. Repeating the same terminal transition is a no-op.
	ErrAlreadyCancelled = errors.New("appointment already cancelled")
	ErrAlreadyCompleted = errors.New("appointment already completed")

	// ErrVideoNotAllowed: canAccessVideo is false for this appointment.
	ErrVideoNotAllowed = errors.New("video consultation not available for this appointment")
)
