package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/carebook/carebook/internal/model"
	"github.com/carebook/carebook/internal/storage"
)

type AdminHandler struct {
	appts   *storage.AppointmentRepository
	doctors *storage.DoctorRepository
	logger  *slog.Logger
}

func NewAdminHandler(appts *storage.AppointmentRepository, doctors *storage.DoctorRepository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{appts: appts, doctors: doctors, logger: logger}
}

type addDoctorRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Speciality string `json:"speciality"`
	Degree     string `json:"degree"`
	Experience string `json:"experience"`
	About      string `json:"about"`
	Fees       int64  `json:"fees"`
	Address    string `json:"address"`
	Image      string `json:"image"`
}

// AddDoctor onboards a doctor account. New doctors start available.
func (h *AdminHandler) AddDoctor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req addDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Speciality = strings.TrimSpace(req.Speciality)
	if req.Name == "" || req.Email == "" || !strings.Contains(req.Email, "@") || req.Speciality == "" {
		writeError(w, http.StatusBadRequest, "name, valid email and speciality required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.Fees < 0 {
		writeError(w, http.StatusBadRequest, "fees must not be negative")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	doc := model.Doctor{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Speciality:   req.Speciality,
		Degree:       strings.TrimSpace(req.Degree),
		Experience:   strings.TrimSpace(req.Experience),
		About:        strings.TrimSpace(req.About),
		Fees:         req.Fees,
		Address:      strings.TrimSpace(req.Address),
		Image:        strings.TrimSpace(req.Image),
		Available:    true,
	}
	if err := h.doctors.Create(r.Context(), doc); err != nil {
		writeBookingError(w, err)
		return
	}

	h.logger.Info("doctor added", "doctor_id", doc.ID, "speciality", doc.Speciality)
	writeJSON(w, http.StatusCreated, viewDoctor(doc))
}

func (h *AdminHandler) AllDoctors(w http.ResponseWriter, r *http.Request) {
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

type changeAvailabilityRequest struct {
	DoctorID string `json:"doctorId"`
}

// ChangeAvailability toggles any doctor's flag from the admin console.
func (h *AdminHandler) ChangeAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req changeAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if req.DoctorID == "" {
		writeError(w, http.StatusBadRequest, "doctorId required")
		return
	}

	available, err := h.doctors.ToggleAvailability(r.Context(), req.DoctorID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	h.logger.Info("doctor availability changed", "doctor_id", req.DoctorID, "available", available)
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (h *AdminHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	appts, err := h.appts.ListAll(r.Context(), 200)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": viewAppointments(appts)})
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := h.appts.AdminStats(r.Context())
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doctors":      stats.Doctors,
		"patients":     stats.Patients,
		"appointments": stats.Appointments,
		"latest":       viewAppointments(stats.Latest),
	})
}
