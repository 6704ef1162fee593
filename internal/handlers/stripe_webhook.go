package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/carebook/carebook/internal/booking"
)

type StripeWebhookHandler struct {
	svc           *booking.Service
	logger        *slog.Logger
	webhookSecret string
	tolerance     time.Duration
}

func NewStripeWebhookHandler(svc *booking.Service, logger *slog.Logger, webhookSecret string, tolerance time.Duration) *StripeWebhookHandler {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &StripeWebhookHandler{svc: svc, logger: logger, webhookSecret: webhookSecret, tolerance: tolerance}
}

// ServeHTTP handles Stripe webhooks (no JWT auth; signature verification is
// the auth). Payment capture only ever enters the system through here, so a
// client can never flip its own payment flag.
func (h *StripeWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if strings.TrimSpace(h.webhookSecret) == "" {
		writeError(w, http.StatusServiceUnavailable, "stripe webhook not configured")
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		writeError(w, http.StatusBadRequest, "missing Stripe-Signature header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.webhookSecret, h.tolerance)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	evtType := string(evt.Type)
	h.logger.Info("payment provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
	)

	if evtType != "checkout.session.completed" {
		// Not subscribed to anything else; acknowledge and move on.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
		h.logger.Error("stripe: invalid checkout session payload", "err", err)
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	appointmentID := strings.TrimSpace(session.Metadata["appointment_id"])
	if appointmentID == "" {
		h.logger.Warn("stripe: missing appointment_id metadata on checkout session", "session_id", session.ID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	// MarkPaid is idempotent, so replayed provider events are harmless.
	if _, err := h.svc.MarkPaid(r.Context(), appointmentID); err != nil {
		h.logger.Error("stripe: mark paid failed", "err", err, "appointment_id", appointmentID)
		writeError(w, http.StatusInternalServerError, "failed to record payment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
