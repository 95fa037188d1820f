package registry

import (
	"net/url"
	"strings"

	apperrors "beacon/internal/pkg/errors"
	"beacon/internal/pkg/validator"
	"beacon/internal/platform/models"
)

// Requirements reports the config keys a channel adapter needs.
type Requirements interface {
	RequiredConfig(channel models.Channel) ([]string, bool)
}

func ValidateWebhook(w *models.Webhook) error {
	if err := validateURL("url", w.URL); err != nil {
		return err
	}
	if err := validateEvents(w.Events); err != nil {
		return err
	}
	for name := range w.Headers {
		if !validHeaderName(name) {
			return apperrors.Validation("headers", "invalid header name %q", name)
		}
	}
	return nil
}

func ValidateRule(rule *models.NotificationRule, req Requirements) error {
	if !rule.Channel.Valid() {
		return apperrors.Validation("channel", "unsupported channel %q", rule.Channel)
	}
	required, ok := req.RequiredConfig(rule.Channel)
	if !ok {
		return apperrors.Validation("channel", "no adapter registered for channel %q", rule.Channel)
	}
	if err := validateEvents(rule.Events); err != nil {
		return err
	}
	if len(rule.Config) == 0 {
		return apperrors.Validation("config", "config is required for channel %q", rule.Channel)
	}
	for _, key := range required {
		if strings.TrimSpace(rule.Config[key]) == "" {
			return apperrors.Validation("config", "%s requires config key %q", rule.Channel, key)
		}
	}
	if to, ok := rule.Config["to"]; ok && rule.Channel == models.ChannelEmail {
		if _, err := validator.Recipients(to); err != nil {
			return apperrors.Validation("config.to", "%v", err)
		}
	}
	if u, ok := rule.Config["webhook_url"]; ok {
		if err := validateURL("config.webhook_url", u); err != nil {
			return err
		}
	}
	return nil
}

func validateURL(field, raw string) error {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return apperrors.Validation(field, "must start with http:// or https://")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return apperrors.Validation(field, "invalid URL %q", raw)
	}
	return nil
}

func validateEvents(events []string) error {
	if len(events) == 0 {
		return apperrors.Validation("events", "at least one event type is required")
	}
	for _, e := range events {
		if strings.TrimSpace(e) == "" {
			return apperrors.Validation("events", "event types must not be blank")
		}
	}
	return nil
}

// normalizeEvents trims and de-duplicates events, keeping first-seen order.
func normalizeEvents(events []string) []string {
	if events == nil {
		return nil
	}
	seen := make(map[string]bool, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		e = strings.TrimSpace(e)
		if e == "" {
			// keep blanks so validation can reject them
			out = append(out, e)
			continue
		}
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func validHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune(`()<>@,;:\"/[]?={}`, r) {
			return false
		}
	}
	return true
}
