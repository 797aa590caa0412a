package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationRequest is one outbox row: a request for the notification
// subsystem to deliver something to a recipient. Rows are written in the
// same transaction as the booking change they describe and drained
// asynchronously by the notify worker.
type NotificationRequest struct {
	ID            uuid.UUID       `json:"id"`
	EventType     string          `json:"event_type"`
	RecipientID   uuid.UUID       `json:"recipient_id"`
	AppointmentID uuid.UUID       `json:"appointment_id"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	DeliveredAt   *time.Time      `json:"delivered_at,omitempty"`
}
