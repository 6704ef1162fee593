package payments

import (
	"context"
	"errors"

	"github.com/carebook/carebook/internal/model"
)

var ErrNotConfigured = errors.New("payment provider not configured")

// Provider creates a hosted checkout for an appointment. Capture is
// reported back asynchronously by the provider's webhook, never by the
// client.
type Provider interface {
	CheckoutURL(ctx context.Context, appt model.Appointment) (string, error)
}

// Disabled is the provider used when no payment credentials are
// configured. Checkout attempts fail loudly instead of silently marking
// anything paid.
type Disabled struct{}

func (Disabled) CheckoutURL(context.Context, model.Appointment) (string, error) {
	return "", ErrNotConfigured
}
