package registry

import (
	"context"

	"github.com/rs/zerolog"

	apperrors "beacon/internal/pkg/errors"
	"beacon/internal/platform/models"
)

type WebhookStore interface {
	Create(ctx context.Context, webhook *models.Webhook) error
	GetByID(ctx context.Context, orgID, id string) (*models.Webhook, error)
	List(ctx context.Context, orgID string) ([]*models.Webhook, error)
	Update(ctx context.Context, webhook *models.Webhook) error
	Delete(ctx context.Context, orgID, id string) (bool, error)
}

type RuleStore interface {
	Create(ctx context.Context, rule *models.NotificationRule) error
	GetByID(ctx context.Context, orgID, id string) (*models.NotificationRule, error)
	List(ctx context.Context, orgID string) ([]*models.NotificationRule, error)
	Update(ctx context.Context, rule *models.NotificationRule) error
	Delete(ctx context.Context, orgID, id string) (bool, error)
}

// Service is the only write path for webhooks and notification rules.
// Every create and update is validated before it reaches storage.
type Service struct {
	webhooks     WebhookStore
	rules        RuleStore
	requirements Requirements
	logger       zerolog.Logger
}

func NewService(webhooks WebhookStore, rules RuleStore, requirements Requirements, logger zerolog.Logger) *Service {
	return &Service{webhooks: webhooks, rules: rules, requirements: requirements, logger: logger}
}

func (s *Service) CreateWebhook(ctx context.Context, orgID string, req *models.Webhook) (*models.Webhook, error) {
	webhook := &models.Webhook{
		OrganizationID: orgID,
		Name:           req.Name,
		URL:            req.URL,
		Events:         normalizeEvents(req.Events),
		Secret:         req.Secret,
		Headers:        req.Headers,
		Enabled:        req.Enabled,
	}
	if err := ValidateWebhook(webhook); err != nil {
		return nil, err
	}

	if err := s.webhooks.Create(ctx, webhook); err != nil {
		return nil, err
	}

	s.logger.Info().Str("organization_id", orgID).Str("webhook_id", webhook.ID).Strs("events", webhook.Events).Msg("webhook created")
	return webhook, nil
}

func (s *Service) GetWebhook(ctx context.Context, orgID, id string) (*models.Webhook, error) {
	webhook, err := s.webhooks.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if webhook == nil {
		return nil, apperrors.NotFound("webhook", id)
	}
	return webhook, nil
}

func (s *Service) ListWebhooks(ctx context.Context, orgID string) ([]*models.Webhook, error) {
	return s.webhooks.List(ctx, orgID)
}

func (s *Service) UpdateWebhook(ctx context.Context, orgID, id string, patch models.WebhookPatch) (*models.Webhook, error) {
	existing, err := s.GetWebhook(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		existing.Name = *patch.Name
	}
	if patch.URL != nil {
		existing.URL = *patch.URL
	}
	if patch.Events != nil {
		existing.Events = normalizeEvents(patch.Events)
	}
	if patch.Secret != nil {
		existing.Secret = *patch.Secret
	}
	if patch.Headers != nil {
		existing.Headers = patch.Headers
	}
	if patch.Enabled != nil {
		existing.Enabled = *patch.Enabled
	}

	// Validate again before saving
	if err := ValidateWebhook(existing); err != nil {
		return nil, err
	}

	if err := s.webhooks.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// DeleteWebhook removes the webhook together with its delivery records.
func (s *Service) DeleteWebhook(ctx context.Context, orgID, id string) error {
	deleted, err := s.webhooks.Delete(ctx, orgID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NotFound("webhook", id)
	}
	s.logger.Info().Str("organization_id", orgID).Str("webhook_id", id).Msg("webhook deleted")
	return nil
}

func (s *Service) CreateRule(ctx context.Context, orgID string, req *models.NotificationRule) (*models.NotificationRule, error) {
	rule := &models.NotificationRule{
		OrganizationID: orgID,
		Name:           req.Name,
		Channel:        req.Channel,
		Events:         normalizeEvents(req.Events),
		Config:         req.Config,
		Enabled:        req.Enabled,
	}
	if err := ValidateRule(rule, s.requirements); err != nil {
		return nil, err
	}

	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info().Str("organization_id", orgID).Str("rule_id", rule.ID).Str("channel", string(rule.Channel)).Msg("notification rule created")
	return rule, nil
}

func (s *Service) GetRule(ctx context.Context, orgID, id string) (*models.NotificationRule, error) {
	rule, err := s.rules.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, apperrors.NotFound("notification rule", id)
	}
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context, orgID string) ([]*models.NotificationRule, error) {
	return s.rules.List(ctx, orgID)
}

func (s *Service) UpdateRule(ctx context.Context, orgID, id string, patch models.NotificationRulePatch) (*models.NotificationRule, error) {
	existing, err := s.GetRule(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		existing.Name = *patch.Name
	}
	if patch.Channel != nil {
		existing.Channel = *patch.Channel
	}
	if patch.Events != nil {
		existing.Events = normalizeEvents(patch.Events)
	}
	if patch.Config != nil {
		existing.Config = mergeRedacted(existing.Config, patch.Config)
	}
	if patch.Enabled != nil {
		existing.Enabled = *patch.Enabled
	}

	if err := ValidateRule(existing, s.requirements); err != nil {
		return nil, err
	}

	if err := s.rules.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *Service) DeleteRule(ctx context.Context, orgID, id string) error {
	deleted, err := s.rules.Delete(ctx, orgID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperrors.NotFound("notification rule", id)
	}
	return nil
}

// mergeRedacted replaces a redacted credential in next with the stored value
// of the same key, or drops it when nothing is stored under that key.
func mergeRedacted(stored, next map[string]string) map[string]string {
	out := make(map[string]string, len(next))
	for k, v := range next {
		if v == models.RedactedValue && models.IsCredentialKey(k) {
			prev, ok := stored[k]
			if !ok {
				continue
			}
			v = prev
		}
		out[k] = v
	}
	return out
}
