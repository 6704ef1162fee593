package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Appointment lifecycle topics. Downstream consumers (notification
// delivery, analytics) subscribe to these; this service only publishes.
const (
	EventAppointmentBooked    = "carebook.appointment.booked.v1"
	EventAppointmentCancelled = "carebook.appointment.cancelled.v1"
	EventAppointmentCompleted = "carebook.appointment.completed.v1"
	EventAppointmentPaid      = "carebook.appointment.paid.v1"
)
