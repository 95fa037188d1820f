package models

type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSlack     Channel = "slack"
	ChannelTeams     Channel = "teams"
	ChannelPagerDuty Channel = "pagerduty"
)

// Channels is the closed set of notification channels.
var Channels = []Channel{ChannelEmail, ChannelSlack, ChannelTeams, ChannelPagerDuty}

func (c Channel) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

type NotificationRule struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Name           string            `json:"name"`
	Channel        Channel           `json:"channel"`
	Events         []string          `json:"events"` // JSON array in DB
	Config         map[string]string `json:"config"` // JSON object in DB
	Enabled        bool              `json:"enabled"`
	CreatedAt      int64             `json:"created_at"`
	UpdatedAt      int64             `json:"updated_at"`
}

// RedactedValue stands in for credential config values in API responses.
// Sending it back in an update keeps the stored value.
const RedactedValue = "[redacted]"

// credentialKeys hold values that let the bearer post to the channel.
var credentialKeys = map[string]bool{
	"webhook_url": true,
	"routing_key": true,
}

func IsCredentialKey(key string) bool {
	return credentialKeys[key]
}

// Redacted returns a copy of r with credential config values masked.
func (r *NotificationRule) Redacted() *NotificationRule {
	out := *r
	if r.Config != nil {
		out.Config = make(map[string]string, len(r.Config))
		for k, v := range r.Config {
			if credentialKeys[k] && v != "" {
				v = RedactedValue
			}
			out.Config[k] = v
		}
	}
	return &out
}

func (r *NotificationRule) Subscribes(eventType string) bool {
	return containsEvent(r.Events, eventType)
}

type NotificationRulePatch struct {
	Name    *string           `json:"name"`
	Channel *Channel          `json:"channel"`
	Events  []string          `json:"events"`
	Config  map[string]string `json:"config"`
	Enabled *bool             `json:"enabled"`
}
