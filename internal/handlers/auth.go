package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/internal/model"
	"github.com/carebook/carebook/internal/storage"
	"github.com/carebook/carebook/libs/auth"
)

// AdminCredentials is the single configured console account. The admin is
// not a database row; the token is issued directly against these values.
type AdminCredentials struct {
	Email    string
	Password string
}

type AuthHandler struct {
	patients *storage.PatientRepository
	doctors  *storage.DoctorRepository
	admin    AdminCredentials
	logger   *slog.Logger

	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthHandler(patients *storage.PatientRepository, doctors *storage.DoctorRepository, admin AdminCredentials, logger *slog.Logger, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthHandler{
		patients:  patients,
		doctors:   doctors,
		admin:     admin,
		logger:    logger,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *AuthHandler) PatientRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "name and valid email required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	pat := model.Patient{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := h.patients.Create(r.Context(), pat); err != nil {
		writeBookingError(w, err)
		return
	}

	token, err := h.issueToken(pat.ID, auth.RolePatient)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}
	h.logger.Info("patient registered", "patient_id", pat.ID)
	writeJSON(w, http.StatusCreated, tokenResponse{Token: token})
}

func (h *AuthHandler) PatientLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, auth.RolePatient, func(r *http.Request, email string) (string, string, error) {
		pat, err := h.patients.ByEmail(r.Context(), email)
		if err != nil {
			return "", "", err
		}
		return pat.ID, pat.PasswordHash, nil
	})
}

func (h *AuthHandler) DoctorLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, auth.RoleDoctor, func(r *http.Request, email string) (string, string, error) {
		doc, err := h.doctors.ByEmail(r.Context(), email)
		if err != nil {
			return "", "", err
		}
		return doc.ID, doc.PasswordHash, nil
	})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, role string, lookup func(r *http.Request, email string) (id, hash string, err error)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	id, hash, err := lookup(r, req.Email)
	if errors.Is(err, booking.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.issueToken(id, role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// AdminLogin checks the request against the configured admin account.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.admin.Email == "" || h.admin.Password == "" {
		writeError(w, http.StatusServiceUnavailable, "admin login not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	emailOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(strings.ToLower(req.Email))), []byte(strings.ToLower(h.admin.Email))) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.admin.Password)) == 1
	if !emailOK || !passOK {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.issueToken("admin", auth.RoleAdmin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to sign token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *AuthHandler) issueToken(sub, role string) (string, error) {
	return auth.SignHS256(auth.NewClaims(sub, role, h.tokenTTL), h.jwtSecret)
}
