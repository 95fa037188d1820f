// Package notify fans an event out to every subscribed webhook and
// notification rule of an organization and aggregates the per-target
// outcomes into a report.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"beacon/internal/engine/channels"
	"beacon/internal/engine/webhooks"
	apperrors "beacon/internal/pkg/errors"
	"beacon/internal/platform/metrics"
	"beacon/internal/platform/models"
)

const (
	DefaultConcurrency = 10

	KindWebhook      = "webhook"
	KindNotification = "notification"

	TestEvent = "webhook.test"
)

type WebhookSource interface {
	GetByID(ctx context.Context, orgID, id string) (*models.Webhook, error)
	ListEnabled(ctx context.Context, orgID string) ([]*models.Webhook, error)
}

type RuleSource interface {
	GetByID(ctx context.Context, orgID, id string) (*models.NotificationRule, error)
	ListEnabled(ctx context.Context, orgID string) ([]*models.NotificationRule, error)
}

type Ledger interface {
	RecordAttempt(ctx context.Context, webhookID, eventType string, payload []byte) (string, error)
	UpdateOutcome(ctx context.Context, deliveryID string, outcome models.DeliveryOutcome) error
	GetByID(ctx context.Context, id string) (*models.DeliveryRecord, error)
	List(ctx context.Context, webhookID string, filter models.DeliveryFilter) ([]*models.DeliveryRecord, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, webhook *models.Webhook, d webhooks.Delivery) models.DeliveryOutcome
}

type Dispatcher interface {
	Send(ctx context.Context, channel models.Channel, config map[string]string, n channels.Notification) channels.Result
}

// Deps are the collaborators an Orchestrator is built from.
type Deps struct {
	Webhooks   WebhookSource
	Rules      RuleSource
	Ledger     Ledger
	Deliverer  Deliverer
	Dispatcher Dispatcher
	Metrics    *metrics.Metrics
}

// TargetResult is the outcome for one webhook or notification rule.
type TargetResult struct {
	Kind       string         `json:"kind"`
	TargetID   string         `json:"target_id"`
	Name       string         `json:"name,omitempty"`
	Channel    models.Channel `json:"channel,omitempty"`
	DeliveryID string         `json:"delivery_id,omitempty"`
	Success    bool           `json:"success"`
	StatusCode int            `json:"status_code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	Simulated  bool           `json:"simulated,omitempty"`
}

type Report struct {
	EventType               string         `json:"event_type"`
	WebhooksTriggered       int            `json:"webhooks_triggered"`
	WebhooksSuccessful      int            `json:"webhooks_successful"`
	NotificationsTriggered  int            `json:"notifications_triggered"`
	NotificationsSuccessful int            `json:"notifications_successful"`
	Results                 []TargetResult `json:"results"`
}

type Orchestrator struct {
	deps        Deps
	concurrency int
	logger      zerolog.Logger
	now         func() time.Time
}

func NewOrchestrator(deps Deps, concurrency int, logger zerolog.Logger) *Orchestrator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		deps:        deps,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// Broadcast delivers eventType to every enabled, subscribed target of orgID.
// Target failures are reported in the result list, never as an error; the
// error return covers only serialization and storage lookups.
//
// Targets run in parallel on a context detached from ctx. If ctx ends first,
// Broadcast returns at once and marks unfinished targets as abandoned while
// their calls run to completion in the background.
func (o *Orchestrator) Broadcast(ctx context.Context, eventType string, data interface{}, orgID string) (*Report, error) {
	at := o.now()
	payload, err := webhooks.NewEnvelope(eventType, data, at).Marshal()
	if err != nil {
		return nil, apperrors.Validation("data", "payload is not serializable: %v", err)
	}

	hooks, err := o.deps.Webhooks.ListEnabled(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhooks: %w", err)
	}
	rules, err := o.deps.Rules.ListEnabled(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification rules: %w", err)
	}

	var matchedHooks []*models.Webhook
	for _, w := range hooks {
		if w.Subscribes(eventType) {
			matchedHooks = append(matchedHooks, w)
		}
	}
	var matchedRules []*models.NotificationRule
	for _, r := range rules {
		if r.Subscribes(eventType) {
			matchedRules = append(matchedRules, r)
		}
	}

	o.deps.Metrics.IncBroadcast()

	total := len(matchedHooks) + len(matchedRules)
	results := make([]TargetResult, 0, total)
	for _, w := range matchedHooks {
		results = append(results, TargetResult{Kind: KindWebhook, TargetID: w.ID, Name: w.Name})
	}
	for _, r := range matchedRules {
		results = append(results, TargetResult{Kind: KindNotification, TargetID: r.ID, Name: r.Name, Channel: r.Channel})
	}

	var mu sync.Mutex
	done := make([]bool, total)
	finish := func(i int, r TargetResult) {
		mu.Lock()
		results[i] = r
		done[i] = true
		mu.Unlock()
	}

	notification := channels.Notification{
		Event:     eventType,
		Timestamp: at.UTC().Format(time.RFC3339),
		Data:      data,
	}
	detached := context.WithoutCancel(ctx)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		p := pool.New().WithMaxGoroutines(o.concurrency)
		for i, w := range matchedHooks {
			p.Go(func() {
				finish(i, o.deliverWebhook(detached, w, eventType, payload))
			})
		}
		for j, r := range matchedRules {
			i := len(matchedHooks) + j
			p.Go(func() {
				finish(i, o.dispatchRule(detached, r, notification))
			})
		}
		p.Wait()
	}()

	select {
	case <-finished:
	case <-ctx.Done():
	}

	mu.Lock()
	snapshot := make([]TargetResult, total)
	copy(snapshot, results)
	for i := range snapshot {
		if !done[i] {
			snapshot[i].Success = false
			snapshot[i].Error = fmt.Sprintf("result abandoned: %v", ctx.Err())
		}
	}
	mu.Unlock()

	report := &Report{
		EventType:              eventType,
		WebhooksTriggered:      len(matchedHooks),
		NotificationsTriggered: len(matchedRules),
		Results:                snapshot,
	}
	for _, r := range snapshot {
		if !r.Success {
			continue
		}
		if r.Kind == KindWebhook {
			report.WebhooksSuccessful++
		} else {
			report.NotificationsSuccessful++
		}
	}

	o.logger.Info().
		Str("organization_id", orgID).
		Str("event", eventType).
		Int("webhooks_triggered", report.WebhooksTriggered).
		Int("webhooks_successful", report.WebhooksSuccessful).
		Int("notifications_triggered", report.NotificationsTriggered).
		Int("notifications_successful", report.NotificationsSuccessful).
		Msg("event broadcast")

	return report, nil
}

// deliverWebhook records the attempt, sends it and stores the outcome.
func (o *Orchestrator) deliverWebhook(ctx context.Context, w *models.Webhook, eventType string, payload []byte) TargetResult {
	result := TargetResult{Kind: KindWebhook, TargetID: w.ID, Name: w.Name}

	deliveryID, err := o.deps.Ledger.RecordAttempt(ctx, w.ID, eventType, payload)
	if err != nil {
		o.logger.Error().Err(err).Str("webhook_id", w.ID).Msg("failed to record delivery")
		result.Error = fmt.Sprintf("failed to record delivery: %v", err)
		return result
	}
	result.DeliveryID = deliveryID

	outcome := o.deps.Deliverer.Deliver(ctx, w, webhooks.Delivery{ID: deliveryID, EventType: eventType, Payload: payload})
	o.store(ctx, w.ID, deliveryID, outcome)

	result.Success = outcome.Success
	result.StatusCode = outcome.StatusCode
	result.Error = outcome.Error
	result.DurationMs = outcome.DurationMs
	return result
}

func (o *Orchestrator) store(ctx context.Context, webhookID, deliveryID string, outcome models.DeliveryOutcome) {
	o.deps.Metrics.ObserveDelivery(KindWebhook, outcome.Success, outcome.DurationMs)

	if err := o.deps.Ledger.UpdateOutcome(ctx, deliveryID, outcome); err != nil {
		o.logger.Error().Err(err).Str("delivery_id", deliveryID).Msg("failed to store delivery outcome")
	}

	event := o.logger.Debug()
	if !outcome.Success {
		event = o.logger.Warn().Str("error", outcome.Error)
	}
	event.Str("webhook_id", webhookID).
		Str("delivery_id", deliveryID).
		Int("status_code", outcome.StatusCode).
		Int64("duration_ms", outcome.DurationMs).
		Msg("webhook delivered")
}

func (o *Orchestrator) dispatchRule(ctx context.Context, r *models.NotificationRule, n channels.Notification) TargetResult {
	start := o.now()
	res := o.deps.Dispatcher.Send(ctx, r.Channel, r.Config, n)
	elapsed := o.now().Sub(start).Milliseconds()

	o.deps.Metrics.ObserveDelivery(string(r.Channel), res.Success, elapsed)
	if !res.Success {
		o.logger.Warn().Str("rule_id", r.ID).Str("channel", string(r.Channel)).Str("detail", res.Detail).Msg("notification failed")
	}

	result := TargetResult{
		Kind:       KindNotification,
		TargetID:   r.ID,
		Name:       r.Name,
		Channel:    r.Channel,
		Success:    res.Success,
		StatusCode: res.StatusCode,
		Detail:     res.Detail,
		DurationMs: elapsed,
		Simulated:  res.Simulated,
	}
	if !res.Success {
		result.Error = res.Detail
	}
	return result
}

// Redeliver resends the stored bytes of an earlier delivery and bumps its
// attempt counter. The payload is never rebuilt.
func (o *Orchestrator) Redeliver(ctx context.Context, orgID, webhookID, deliveryID string) (*models.DeliveryRecord, error) {
	w, err := o.webhook(ctx, orgID, webhookID)
	if err != nil {
		return nil, err
	}

	record, err := o.deps.Ledger.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load delivery: %w", err)
	}
	if record == nil {
		return nil, apperrors.NotFound("delivery", deliveryID)
	}
	if record.WebhookID != webhookID {
		return nil, apperrors.Mismatch("delivery %s does not belong to webhook %s", deliveryID, webhookID)
	}

	outcome := o.deps.Deliverer.Deliver(ctx, w, webhooks.Delivery{
		ID:        record.ID,
		EventType: record.EventType,
		Payload:   record.Payload,
	})
	// the attempt happened; finish recording and reporting it even if the
	// caller has gone away
	detached := context.WithoutCancel(ctx)
	o.store(detached, w.ID, record.ID, outcome)

	updated, err := o.deps.Ledger.GetByID(detached, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload delivery: %w", err)
	}
	return updated, nil
}

// TestWebhook sends a synthetic event to a single webhook through the normal
// record, deliver and update path. Disabled webhooks can be tested.
func (o *Orchestrator) TestWebhook(ctx context.Context, orgID, webhookID string) (*TargetResult, error) {
	w, err := o.webhook(ctx, orgID, webhookID)
	if err != nil {
		return nil, err
	}

	payload, err := webhooks.NewEnvelope(TestEvent, testData(webhookID), o.now()).Marshal()
	if err != nil {
		return nil, err
	}

	result := o.deliverWebhook(context.WithoutCancel(ctx), w, TestEvent, payload)
	return &result, nil
}

// TestRule sends a synthetic notification through the rule's adapter.
func (o *Orchestrator) TestRule(ctx context.Context, orgID, ruleID string) (*TargetResult, error) {
	r, err := o.deps.Rules.GetByID(ctx, orgID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification rule: %w", err)
	}
	if r == nil {
		return nil, apperrors.NotFound("notification rule", ruleID)
	}

	n := channels.Notification{
		Event:     TestEvent,
		Timestamp: o.now().UTC().Format(time.RFC3339),
		Data:      testData(ruleID),
	}
	result := o.dispatchRule(ctx, r, n)
	return &result, nil
}

func (o *Orchestrator) ListDeliveries(ctx context.Context, orgID, webhookID string, filter models.DeliveryFilter) ([]*models.DeliveryRecord, error) {
	if _, err := o.webhook(ctx, orgID, webhookID); err != nil {
		return nil, err
	}
	return o.deps.Ledger.List(ctx, webhookID, filter)
}

func (o *Orchestrator) GetDelivery(ctx context.Context, orgID, webhookID, deliveryID string) (*models.DeliveryRecord, error) {
	if _, err := o.webhook(ctx, orgID, webhookID); err != nil {
		return nil, err
	}

	record, err := o.deps.Ledger.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load delivery: %w", err)
	}
	if record == nil || record.WebhookID != webhookID {
		return nil, apperrors.NotFound("delivery", deliveryID)
	}
	return record, nil
}

func (o *Orchestrator) webhook(ctx context.Context, orgID, id string) (*models.Webhook, error) {
	w, err := o.deps.Webhooks.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook: %w", err)
	}
	if w == nil {
		return nil, apperrors.NotFound("webhook", id)
	}
	return w, nil
}

func testData(targetID string) map[string]interface{} {
	return map[string]interface{}{
		"title":     "Test notification",
		"message":   "This is a test event sent from Beacon.",
		"target_id": targetID,
	}
}
