package channels

import (
	"context"
	"encoding/json"
	"net/http"

	"beacon/internal/platform/models"
)

const DefaultPagerDutyURL = "https://events.pagerduty.com/v2/enqueue"

var pagerSeverities = map[string]bool{"critical": true, "error": true, "warning": true, "info": true}

type pagerEvent struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	Payload     pagerPayload `json:"payload"`
}

type pagerPayload struct {
	Summary       string      `json:"summary"`
	Source        string      `json:"source"`
	Severity      string      `json:"severity"`
	CustomDetails interface{} `json:"custom_details"`
}

// PagerDutyAdapter triggers an Events API v2 alert.
type PagerDutyAdapter struct {
	poster Poster
	url    string
	source string
}

func NewPagerDutyAdapter(poster Poster, url, source string) *PagerDutyAdapter {
	if url == "" {
		url = DefaultPagerDutyURL
	}
	if source == "" {
		source = "beacon"
	}
	return &PagerDutyAdapter{poster: poster, url: url, source: source}
}

func (a *PagerDutyAdapter) Channel() models.Channel {
	return models.ChannelPagerDuty
}

func (a *PagerDutyAdapter) RequiredConfig() []string {
	return []string{"routing_key"}
}

func (a *PagerDutyAdapter) Send(ctx context.Context, config map[string]string, n Notification) Result {
	routingKey := config["routing_key"]
	if routingKey == "" {
		return Result{Channel: models.ChannelPagerDuty, Detail: "routing_key is not configured"}
	}

	severity := config["severity"]
	if !pagerSeverities[severity] {
		severity = "info"
	}
	source := config["source"]
	if source == "" {
		source = a.source
	}

	body, err := json.Marshal(pagerEvent{
		RoutingKey:  routingKey,
		EventAction: "trigger",
		Payload: pagerPayload{
			Summary:       summarize(n),
			Source:        source,
			Severity:      severity,
			CustomDetails: n,
		},
	})
	if err != nil {
		return Result{Channel: models.ChannelPagerDuty, Detail: "failed to encode event: " + err.Error()}
	}

	outcome := a.poster.Post(ctx, a.url, body, nil)
	return Result{
		// the Events API acknowledges with 202 Accepted
		Success:    outcome.Error == "" && outcome.StatusCode == http.StatusAccepted,
		Channel:    models.ChannelPagerDuty,
		Detail:     outcomeDetail(outcome),
		StatusCode: outcome.StatusCode,
	}
}
