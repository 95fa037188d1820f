package models

// Issue is the slice of an issue the incident bridge needs. It is owned by
// upstream lifecycle code and never persisted here.
type Issue struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority"` // low, medium, high, critical
	AssignedTo  string   `json:"assigned_to,omitempty"`
	Entities    []string `json:"entities,omitempty"`
	URL         string   `json:"url,omitempty"`
	OpenedAt    int64    `json:"opened_at,omitempty"`
}

type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}
