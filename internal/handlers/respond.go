package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/internal/model"
	"github.com/carebook/carebook/internal/payments"
	"github.com/carebook/carebook/internal/slots"
	"github.com/carebook/carebook/internal/storage"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeBookingError maps core errors to HTTP statuses. Unknown errors are
// reported as a bare 500; the access log carries the detail.
func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, booking.ErrVideoNotAllowed):
		writeError(w, http.StatusForbidden, "video consultation not available for this appointment")
	case errors.Is(err, booking.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot not available")
	case errors.Is(err, booking.ErrDoctorUnavailable):
		writeError(w, http.StatusConflict, "doctor not available")
	case errors.Is(err, booking.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "appointment already cancelled")
	case errors.Is(err, booking.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, "appointment already completed")
	case errors.Is(err, slots.ErrInvalidSlot):
		writeError(w, http.StatusBadRequest, "invalid slot")
	case errors.Is(err, storage.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, payments.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "payments not configured")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type videoView struct {
	RoomID    string     `json:"roomId"`
	Active    bool       `json:"active"`
	StartedAt *time.Time `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt"`
}

type appointmentView struct {
	ID             string               `json:"id"`
	PatientID      string               `json:"patientId"`
	DoctorID       string               `json:"doctorId"`
	SlotDate       string               `json:"slotDate"`
	SlotTime       string               `json:"slotTime"`
	Patient        model.PatientSummary `json:"patientData"`
	Doctor         model.DoctorSummary  `json:"docData"`
	Amount         int64                `json:"amount"`
	Cancelled      bool                 `json:"cancelled"`
	IsCompleted    bool                 `json:"isCompleted"`
	Payment        bool                 `json:"payment"`
	CanAccessVideo bool                 `json:"canAccessVideo"`
	Video          videoView            `json:"video"`
	CreatedAt      time.Time            `json:"createdAt"`
}

func viewAppointment(appt model.Appointment) appointmentView {
	return appointmentView{
		ID:             appt.ID,
		PatientID:      appt.PatientID,
		DoctorID:       appt.DoctorID,
		SlotDate:       appt.SlotDate,
		SlotTime:       appt.SlotTime,
		Patient:        appt.Patient,
		Doctor:         appt.Doctor,
		Amount:         appt.Amount,
		Cancelled:      appt.Cancelled,
		IsCompleted:    appt.Completed,
		Payment:        appt.Paid,
		CanAccessVideo: appt.CanAccessVideo(),
		Video: videoView{
			RoomID:    appt.Video.RoomID,
			Active:    appt.Video.Active,
			StartedAt: appt.Video.StartedAt,
			EndedAt:   appt.Video.EndedAt,
		},
		CreatedAt: appt.CreatedAt,
	}
}

func viewAppointments(appts []model.Appointment) []appointmentView {
	views := make([]appointmentView, 0, len(appts))
	for _, appt := range appts {
		views = append(views, viewAppointment(appt))
	}
	return views
}

type doctorView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Speciality string `json:"speciality"`
	Degree     string `json:"degree"`
	Experience string `json:"experience"`
	About      string `json:"about"`
	Fees       int64  `json:"fees"`
	Address    string `json:"address"`
	Image      string `json:"image"`
	Available  bool   `json:"available"`
}

func viewDoctor(doc model.Doctor) doctorView {
	return doctorView{
		ID:         doc.ID,
		Name:       doc.Name,
		Email:      doc.Email,
		Speciality: doc.Speciality,
		Degree:     doc.Degree,
		Experience: doc.Experience,
		About:      doc.About,
		Fees:       doc.Fees,
		Address:    doc.Address,
		Image:      doc.Image,
		Available:  doc.Available,
	}
}

func viewDoctors(docs []model.Doctor) []doctorView {
	views := make([]doctorView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, viewDoctor(doc))
	}
	return views
}

type patientView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birthDate"`
	Image     string `json:"image"`
}

func viewPatient(pat model.Patient) patientView {
	return patientView{
		ID:        pat.ID,
		Name:      pat.Name,
		Email:     pat.Email,
		Phone:     pat.Phone,
		Address:   pat.Address,
		Gender:    pat.Gender,
		BirthDate: pat.BirthDate,
		Image:     pat.Image,
	}
}
