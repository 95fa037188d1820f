package channels

import (
	"context"

	"github.com/rs/zerolog"

	"beacon/internal/platform/models"
)

// EmailAdapter is a placeholder. It transmits nothing and marks every
// result as simulated so operators are not told a mail went out.
type EmailAdapter struct {
	logger zerolog.Logger
}

func NewEmailAdapter(logger zerolog.Logger) *EmailAdapter {
	return &EmailAdapter{logger: logger}
}

func (a *EmailAdapter) Channel() models.Channel {
	return models.ChannelEmail
}

func (a *EmailAdapter) RequiredConfig() []string {
	return []string{"to"}
}

func (a *EmailAdapter) Send(ctx context.Context, config map[string]string, n Notification) Result {
	a.logger.Warn().
		Str("channel", string(models.ChannelEmail)).
		Str("event", n.Event).
		Str("to", config["to"]).
		Msg("email delivery is simulated; no message sent")

	return Result{
		Success:   true,
		Channel:   models.ChannelEmail,
		Detail:    "simulated: email sending is not configured, no message was sent",
		Simulated: true,
	}
}
