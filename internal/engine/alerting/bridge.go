// Package alerting forwards issue lifecycle changes to an
// Alertmanager-compatible receiver as firing and resolved alerts.
package alerting

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"beacon/internal/platform/config"
	"beacon/internal/platform/metrics"
	"beacon/internal/platform/models"
)

const (
	DefaultAlertName = "BeaconIncident"

	alertsPath = "/api/v2/alerts"
)

var severities = map[string]string{
	"low":      "warning",
	"medium":   "warning",
	"high":     "high",
	"critical": "critical",
}

// Severity maps an issue priority to an alert severity. Unknown priorities
// are treated as warnings.
func Severity(priority string) string {
	if s, ok := severities[strings.ToLower(priority)]; ok {
		return s
	}
	return "warning"
}

// Alert is one entry of the receiver's ingestion array.
type Alert struct {
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	StartsAt     time.Time         `json:"startsAt"`
	EndsAt       *time.Time        `json:"endsAt,omitempty"`
	GeneratorURL string            `json:"generatorURL,omitempty"`
}

type Poster interface {
	Post(ctx context.Context, url string, body []byte, headers map[string]string) models.DeliveryOutcome
}

type Bridge struct {
	poster    Poster
	endpoint  string
	alertName string
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewBridge returns a bridge posting to cfg.ReceiverURL. With an empty
// receiver URL every call is a no-op that reports false.
func NewBridge(poster Poster, cfg config.AlertingConfig, m *metrics.Metrics, logger zerolog.Logger) *Bridge {
	name := cfg.AlertName
	if name == "" {
		name = DefaultAlertName
	}
	endpoint := ""
	if cfg.ReceiverURL != "" {
		endpoint = strings.TrimRight(cfg.ReceiverURL, "/") + alertsPath
	}
	return &Bridge{
		poster:    poster,
		endpoint:  endpoint,
		alertName: name,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

func (b *Bridge) Enabled() bool {
	return b.endpoint != ""
}

// Fire raises the alert for issue. It never returns an error; failures are
// logged and reported as false.
func (b *Bridge) Fire(ctx context.Context, issue *models.Issue, org *models.Organization) bool {
	return b.send(ctx, "fire", b.alert(issue, org, nil))
}

// Resolve closes the alert raised by Fire. The receiver pairs the two by
// label set, so both must be built from the same issue data.
func (b *Bridge) Resolve(ctx context.Context, issue *models.Issue, org *models.Organization) bool {
	endsAt := b.now().UTC()
	return b.send(ctx, "resolve", b.alert(issue, org, &endsAt))
}

func (b *Bridge) alert(issue *models.Issue, org *models.Organization, endsAt *time.Time) Alert {
	startsAt := b.now().UTC()
	if issue.OpenedAt > 0 {
		startsAt = time.Unix(issue.OpenedAt, 0).UTC()
	}
	return Alert{
		Labels:       b.labels(issue, org),
		Annotations:  annotations(issue),
		StartsAt:     startsAt,
		EndsAt:       endsAt,
		GeneratorURL: issue.URL,
	}
}

func (b *Bridge) labels(issue *models.Issue, org *models.Organization) map[string]string {
	labels := map[string]string{
		"alertname":       b.alertName,
		"issue_id":        issue.ID,
		"organization_id": org.ID,
		"component":       "incident",
		"priority":        issue.Priority,
		"severity":        Severity(issue.Priority),
		"issue_title":     issue.Title,
	}
	if issue.AssignedTo != "" {
		labels["assigned_to"] = issue.AssignedTo
	}
	return labels
}

func annotations(issue *models.Issue) map[string]string {
	a := map[string]string{
		"summary":     issue.Title,
		"description": issue.Description,
	}
	if len(issue.Entities) > 0 {
		a["entities"] = strings.Join(issue.Entities, ", ")
	}
	if issue.URL != "" {
		a["url"] = issue.URL
	}
	return a
}

func (b *Bridge) send(ctx context.Context, action string, alert Alert) bool {
	log := b.logger.With().
		Str("action", action).
		Str("issue_id", alert.Labels["issue_id"]).
		Str("organization_id", alert.Labels["organization_id"]).
		Logger()

	if !b.Enabled() {
		log.Debug().Msg("alert receiver not configured; skipping")
		return false
	}

	body, err := json.Marshal([]Alert{alert})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode alert")
		b.metrics.ObserveIncidentAlert(action, false)
		return false
	}

	outcome := b.poster.Post(ctx, b.endpoint, body, nil)
	b.metrics.ObserveIncidentAlert(action, outcome.Success)
	if !outcome.Success {
		log.Error().
			Str("error", outcome.Error).
			Int("status_code", outcome.StatusCode).
			Str("body", outcome.Body).
			Msg("failed to send incident alert")
		return false
	}

	log.Info().Int64("duration_ms", outcome.DurationMs).Msg("incident alert sent")
	return true
}
