package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/internal/payments"
	"github.com/carebook/carebook/internal/storage"
)

type PatientHandler struct {
	svc      *booking.Service
	appts    *storage.AppointmentRepository
	patients *storage.PatientRepository
	provider payments.Provider
	logger   *slog.Logger
}

func NewPatientHandler(svc *booking.Service, appts *storage.AppointmentRepository, patients *storage.PatientRepository, provider payments.Provider, logger *slog.Logger) *PatientHandler {
	return &PatientHandler{svc: svc, appts: appts, patients: patients, provider: provider, logger: logger}
}

func (h *PatientHandler) Profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	pat, err := h.patients.ByID(r.Context(), actor.ID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPatient(pat))
}

type updatePatientRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birthDate"`
}

func (h *PatientHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	var req updatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	pat, err := h.patients.UpdateProfile(r.Context(), actor.ID, req.Name, strings.TrimSpace(req.Phone), strings.TrimSpace(req.Address), strings.TrimSpace(req.Gender), strings.TrimSpace(req.BirthDate))
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPatient(pat))
}

// Slots is public: the calendar is browsable before logging in.
func (h *PatientHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	doctorID := strings.TrimSpace(r.URL.Query().Get("doctorId"))
	if doctorID == "" {
		writeError(w, http.StatusBadRequest, "doctorId required")
		return
	}
	days, err := h.svc.AvailableSlots(r.Context(), doctorID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": days})
}

type bookRequest struct {
	DoctorID string `json:"doctorId"`
	SlotDate string `json:"slotDate"`
	SlotTime string `json:"slotTime"`
}

func (h *PatientHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.SlotDate = strings.TrimSpace(req.SlotDate)
	req.SlotTime = strings.TrimSpace(req.SlotTime)
	if req.DoctorID == "" || req.SlotDate == "" || req.SlotTime == "" {
		writeError(w, http.StatusBadRequest, "doctorId, slotDate and slotTime required")
		return
	}

	appt, err := h.svc.Book(r.Context(), actor.ID, req.DoctorID, req.SlotDate, req.SlotTime)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewAppointment(appt))
}

func (h *PatientHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	appts, err := h.appts.ListByPatient(r.Context(), actor.ID, 100)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": viewAppointments(appts)})
}

// Pay creates a checkout session for the appointment fee. Only the booking
// patient may pay, and only while the appointment is live and unpaid.
// Capture itself arrives later on the provider webhook.
func (h *PatientHandler) Pay(w http.ResponseWriter, r *http.Request) {
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

	appt, err := h.appts.Appointment(r.Context(), strings.TrimSpace(req.AppointmentID))
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if appt.PatientID != actor.ID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if appt.Cancelled {
		writeError(w, http.StatusConflict, "appointment cancelled")
		return
	}
	if appt.Paid {
		writeError(w, http.StatusConflict, "appointment already paid")
		return
	}

	url, err := h.provider.CheckoutURL(r.Context(), appt)
	if err != nil {
		h.logger.Error("checkout session create failed", "err", err, "appointment_id", appt.ID)
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"checkoutUrl": url})
}

type appointmentIDRequest struct {
	AppointmentID string `json:"appointmentId"`
}
