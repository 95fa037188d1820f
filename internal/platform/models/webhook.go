package models

type Webhook struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Events         []string          `json:"events"` // JSON array in DB
	Secret         string            `json:"secret,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"` // JSON object in DB
	Enabled        bool              `json:"enabled"`
	CreatedAt      int64             `json:"created_at"`
	UpdatedAt      int64             `json:"updated_at"`
}

// Subscribes reports whether eventType is in the webhook's event set.
func (w *Webhook) Subscribes(eventType string) bool {
	return containsEvent(w.Events, eventType)
}

// WebhookPatch is a partial update. Nil fields are left unchanged; a non-nil
// empty Events slice is an explicit (and invalid) empty subscription.
type WebhookPatch struct {
	Name    *string           `json:"name"`
	URL     *string           `json:"url"`
	Events  []string          `json:"events"`
	Secret  *string           `json:"secret"`
	Headers map[string]string `json:"headers"`
	Enabled *bool             `json:"enabled"`
}

// DeliveryRecord is one ledger row. Payload is the exact body that was
// signed and sent; it never changes after the row is created. CreatedAt and
// CompletedAt are unix milliseconds.
type DeliveryRecord struct {
	ID           string `json:"id"`
	WebhookID    string `json:"webhook_id"`
	EventType    string `json:"event_type"`
	Payload      []byte `json:"-"`
	Attempts     int    `json:"attempts"`
	Success      bool   `json:"success"`
	StatusCode   int    `json:"status_code,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`
	Error        string `json:"error,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
	CreatedAt    int64  `json:"created_at"`
	CompletedAt  *int64 `json:"completed_at,omitempty"`
}

// DeliveryOutcome is the normalized result of one outbound HTTP call.
type DeliveryOutcome struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type DeliveryFilter struct {
	Success *bool
	Limit   int
}

func containsEvent(events []string, eventType string) bool {
	for _, e := range events {
		if e == eventType {
			return true
		}
	}
	return false
}
