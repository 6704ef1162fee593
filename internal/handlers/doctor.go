package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/internal/storage"
)

type DoctorHandler struct {
	svc     *booking.Service
	appts   *storage.AppointmentRepository
	doctors *storage.DoctorRepository
	logger  *slog.Logger
}

func NewDoctorHandler(svc *booking.Service, appts *storage.AppointmentRepository, doctors *storage.DoctorRepository, logger *slog.Logger) *DoctorHandler {
	return &DoctorHandler{svc: svc, appts: appts, doctors: doctors, logger: logger}
}

// List is the public doctor directory.
func (h *DoctorHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	docs, err := h.doctors.List(r.Context())
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": viewDoctors(docs)})
}

func (h *DoctorHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	doc, err := h.doctors.ByID(r.Context(), actor.ID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewDoctor(doc))
}

type updateDoctorRequest struct {
	Fees    int64  `json:"fees"`
	Address string `json:"address"`
	About   string `json:"about"`
}

func (h *DoctorHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	var req updateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Fees < 0 {
		writeError(w, http.StatusBadRequest, "fees must not be negative")
		return
	}

	doc, err := h.doctors.UpdateProfile(r.Context(), actor.ID, req.Fees, strings.TrimSpace(req.Address), strings.TrimSpace(req.About))
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewDoctor(doc))
}

// ChangeAvailability toggles the doctor's own flag. Existing appointments
// are untouched; the flag gates new bookings only.
func (h *DoctorHandler) ChangeAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	available, err := h.doctors.ToggleAvailability(r.Context(), actor.ID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	h.logger.Info("doctor availability changed", "doctor_id", actor.ID, "available", available)
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (h *DoctorHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	appts, err := h.appts.ListByDoctor(r.Context(), actor.ID, 100)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": viewAppointments(appts)})
}

func (h *DoctorHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	stats, err := h.appts.DoctorStats(r.Context(), actor.ID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"earnings":     stats.Earnings,
		"appointments": stats.Appointments,
		"patients":     stats.Patients,
		"latest":       viewAppointments(stats.Latest),
	})
}

func (h *DoctorHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	var req appointmentIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	appt, err := h.svc.Complete(r.Context(), strings.TrimSpace(req.AppointmentID), actor)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewAppointment(appt))
}

// CancelAppointment serves the patient, doctor and admin cancel routes;
// the core decides whether this actor may cancel this appointment.
func CancelAppointment(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		actor, ok := mustActor(w, r)
		if !ok {
			return
		}

		var req appointmentIDRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}

		appt, err := svc.Cancel(r.Context(), strings.TrimSpace(req.AppointmentID), actor)
		if err != nil {
			writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, viewAppointment(appt))
	}
}
