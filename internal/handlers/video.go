package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/internal/model"
)

// VideoHandler serves the live-call endpoints. The same handler backs the
// patient and doctor route groups; the gatekeeper in front decides whose
// token is accepted and the core checks that the actor is a party to the
// appointment.
type VideoHandler struct {
	svc *booking.Service
}

func NewVideoHandler(svc *booking.Service) *VideoHandler {
	return &VideoHandler{svc: svc}
}

// Status is the authoritative video-access check. Clients re-check here
// before joining a call instead of trusting a cached canAccessVideo.
func (h *VideoHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	actor, ok := mustActor(w, r)
	if !ok {
		return
	}
	appointmentID := strings.TrimSpace(r.URL.Query().Get("appointmentId"))
	if appointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointmentId required")
		return
	}

	appt, err := h.svc.VideoStatus(r.Context(), appointmentID, actor)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videoStatusView(appt))
}

func (h *VideoHandler) GenerateRoom(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.GenerateVideoRoom)
}

func (h *VideoHandler) StartCall(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.StartVideoCall)
}

func (h *VideoHandler) EndCall(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.EndVideoCall)
}

func (h *VideoHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, appointmentID string, actor booking.Actor) (model.Appointment, error)) {
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
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointmentId required")
		return
	}

	appt, err := op(r.Context(), req.AppointmentID, actor)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videoStatusView(appt))
}

func videoStatusView(appt model.Appointment) map[string]any {
	return map[string]any{
		"appointmentId":  appt.ID,
		"canAccessVideo": appt.CanAccessVideo(),
		"video": videoView{
			RoomID:    appt.Video.RoomID,
			Active:    appt.Video.Active,
			StartedAt: appt.Video.StartedAt,
			EndedAt:   appt.Video.EndedAt,
		},
	}
}
