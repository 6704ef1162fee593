package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/carebook/carebook/internal/booking"
	"github.com/carebook/carebook/internal/model"
	"github.com/carebook/carebook/libs/auth"
)

// apptStore serves exactly one appointment; enough to drive the video
// endpoints end to end through the service.
type apptStore struct {
	appt model.Appointment
}

func (s *apptStore) Doctor(context.Context, string) (model.Doctor, error) {
	return model.Doctor{}, booking.ErrNotFound
}

func (s *apptStore) Patient(context.Context, string) (model.Patient, error) {
	return model.Patient{}, booking.ErrNotFound
}

func (s *apptStore) BookedSlots(context.Context, string) (map[string][]string, error) {
	return nil, nil
}

func (s *apptStore) CreateAppointment(context.Context, *model.Appointment) error {
	return booking.ErrSlotUnavailable
}

func (s *apptStore) Appointment(_ context.Context, id string) (model.Appointment, error) {
	if id != s.appt.ID {
		return model.Appointment{}, booking.ErrNotFound
	}
	return s.appt, nil
}

func (s *apptStore) CancelAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.appt.Cancelled = true
	return s.appt, nil
}

func (s *apptStore) CompleteAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.appt.Completed = true
	return s.appt, nil
}

func (s *apptStore) MarkPaid(_ context.Context, id string) (model.Appointment, error) {
	s.appt.Paid = true
	return s.appt, nil
}

func (s *apptStore) EnsureVideoRoom(_ context.Context, id, roomID string) (model.Appointment, error) {
	if s.appt.Video.RoomID == "" {
		s.appt.Video.RoomID = roomID
	}
	return s.appt, nil
}

func (s *apptStore) SetVideoActive(_ context.Context, id string, active bool) (model.Appointment, error) {
	s.appt.Video.Active = active
	return s.appt, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestVideoStatusComputesAccess(t *testing.T) {
	store := &apptStore{appt: model.Appointment{
		ID:        "appt-1",
		PatientID: "patient-1",
		DoctorID:  "doctor-1",
		Paid:      true,
	}}
	h := NewVideoHandler(booking.NewService(store, discardLogger()))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/patient/video/status?appointmentId=appt-1", nil)
	req = withActor(req, booking.Actor{ID: "patient-1", Role: auth.RolePatient})
	rw := httptest.NewRecorder()
	h.Status(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}

	var resp struct {
		CanAccessVideo bool `json:"canAccessVideo"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !resp.CanAccessVideo {
		t.Fatal("paid live appointment should have video access")
	}
}

func TestVideoStatusForbiddenForStranger(t *testing.T) {
	store := &apptStore{appt: model.Appointment{
		ID:        "appt-1",
		PatientID: "patient-1",
		DoctorID:  "doctor-1",
		Paid:      true,
	}}
	h := NewVideoHandler(booking.NewService(store, discardLogger()))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/patient/video/status?appointmentId=appt-1", nil)
	req = withActor(req, booking.Actor{ID: "patient-2", Role: auth.RolePatient})
	rw := httptest.NewRecorder()
	h.Status(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rw.Code)
	}
}

func TestStartCallDeniedWhenUnpaid(t *testing.T) {
	store := &apptStore{appt: model.Appointment{
		ID:        "appt-1",
		PatientID: "patient-1",
		DoctorID:  "doctor-1",
	}}
	h := NewVideoHandler(booking.NewService(store, discardLogger()))

	body, _ := json.Marshal(map[string]string{"appointmentId": "appt-1"})
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/patient/video/start-call", bytes.NewReader(body))
	req = withActor(req, booking.Actor{ID: "patient-1", Role: auth.RolePatient})
	rw := httptest.NewRecorder()
	h.StartCall(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unpaid appointment, got %d", rw.Code)
	}
	if store.appt.Video.Active {
		t.Fatal("call must not start on an unpaid appointment")
	}
}

func TestGenerateRoomThenStartAndEnd(t *testing.T) {
	store := &apptStore{appt: model.Appointment{
		ID:        "appt-1",
		PatientID: "patient-1",
		DoctorID:  "doctor-1",
		Paid:      true,
	}}
	svc := booking.NewService(store, discardLogger())
	h := NewVideoHandler(svc)

	post := func(path string, handler http.HandlerFunc, actor booking.Actor) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"appointmentId": "appt-1"})
		req := httptest.NewRequest(http.MethodPost, "http://example.com"+path, bytes.NewReader(body))
		req = withActor(req, actor)
		rw := httptest.NewRecorder()
		handler(rw, req)
		return rw
	}

	patient := booking.Actor{ID: "patient-1", Role: auth.RolePatient}
	doctor := booking.Actor{ID: "doctor-1", Role: auth.RoleDoctor}

	if rw := post("/api/patient/video/generate-room", h.GenerateRoom, patient); rw.Code != http.StatusOK {
		t.Fatalf("generate-room: expected 200, got %d", rw.Code)
	}
	roomID := store.appt.Video.RoomID
	if roomID == "" {
		t.Fatal("expected a room id to be assigned")
	}

	// The doctor asking later joins the same room.
	if rw := post("/api/doctor/video/generate-room", h.GenerateRoom, doctor); rw.Code != http.StatusOK {
		t.Fatalf("generate-room (doctor): expected 200, got %d", rw.Code)
	}
	if store.appt.Video.RoomID != roomID {
		t.Fatal("second generate-room must not replace the existing room")
	}

	if rw := post("/api/doctor/video/start-call", h.StartCall, doctor); rw.Code != http.StatusOK {
		t.Fatalf("start-call: expected 200, got %d", rw.Code)
	}
	if !store.appt.Video.Active {
		t.Fatal("expected call to be active")
	}

	if rw := post("/api/patient/video/end-call", h.EndCall, patient); rw.Code != http.StatusOK {
		t.Fatalf("end-call: expected 200, got %d", rw.Code)
	}
	if store.appt.Video.Active {
		t.Fatal("expected call to be inactive after end-call")
	}
}

func withActor(r *http.Request, actor booking.Actor) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), actorKey{}, actor))
}
