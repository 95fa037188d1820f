package webhooks

import (
	"encoding/json"
	"time"
)

// Envelope is the body of every webhook delivery.
type Envelope struct {
	Event     string      `json:"event"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEnvelope stamps data with eventType and an ISO-8601 UTC timestamp.
func NewEnvelope(eventType string, data interface{}, at time.Time) Envelope {
	return Envelope{
		Event:     eventType,
		Timestamp: at.UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// Marshal serializes the envelope once. The result is what gets signed,
// stored in the ledger and sent.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
