package channels

import (
	"context"
	"encoding/json"
	"net/http"

	"beacon/internal/platform/models"
)

// ChatAdapter posts {"text": <pretty JSON>} to an incoming-webhook URL.
// Slack and Teams both accept this shape.
type ChatAdapter struct {
	channel models.Channel
	poster  Poster
}

func NewSlackAdapter(poster Poster) *ChatAdapter {
	return &ChatAdapter{channel: models.ChannelSlack, poster: poster}
}

func NewTeamsAdapter(poster Poster) *ChatAdapter {
	return &ChatAdapter{channel: models.ChannelTeams, poster: poster}
}

func (a *ChatAdapter) Channel() models.Channel {
	return a.channel
}

func (a *ChatAdapter) RequiredConfig() []string {
	return []string{"webhook_url"}
}

func (a *ChatAdapter) Send(ctx context.Context, config map[string]string, n Notification) Result {
	url := config["webhook_url"]
	if url == "" {
		return Result{Channel: a.channel, Detail: "webhook_url is not configured"}
	}

	text, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return Result{Channel: a.channel, Detail: "failed to render payload: " + err.Error()}
	}
	body, err := json.Marshal(map[string]string{"text": string(text)})
	if err != nil {
		return Result{Channel: a.channel, Detail: "failed to encode message: " + err.Error()}
	}

	outcome := a.poster.Post(ctx, url, body, nil)
	return Result{
		// incoming webhooks answer exactly 200 on acceptance
		Success:    outcome.Error == "" && outcome.StatusCode == http.StatusOK,
		Channel:    a.channel,
		Detail:     outcomeDetail(outcome),
		StatusCode: outcome.StatusCode,
	}
}
