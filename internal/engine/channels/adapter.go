// Package channels translates notifications into the wire formats of the
// fixed notification channels (email, chat webhooks, pager).
package channels

import (
	"context"
	"fmt"
	"sort"

	"beacon/internal/platform/models"
)

// Notification is the generic payload handed to every adapter.
type Notification struct {
	Event     string      `json:"event"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Result is the transient outcome of one adapter dispatch.
type Result struct {
	Success    bool           `json:"success"`
	Channel    models.Channel `json:"channel"`
	Detail     string         `json:"detail,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Simulated  bool           `json:"simulated,omitempty"`
}

// Adapter sends a notification over one channel. Send never returns an
// error; failures are reported in the Result.
type Adapter interface {
	Channel() models.Channel
	RequiredConfig() []string
	Send(ctx context.Context, config map[string]string, n Notification) Result
}

// Poster is the outbound HTTP call adapters rely on.
type Poster interface {
	Post(ctx context.Context, url string, body []byte, headers map[string]string) models.DeliveryOutcome
}

// Registry maps each channel to its adapter.
type Registry struct {
	adapters map[models.Channel]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Channel]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.Channel().
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Channel()] = a
}

func (r *Registry) Get(channel models.Channel) (Adapter, bool) {
	a, ok := r.adapters[channel]
	return a, ok
}

// RequiredConfig returns the config keys the channel's adapter needs.
func (r *Registry) RequiredConfig(channel models.Channel) ([]string, bool) {
	a, ok := r.adapters[channel]
	if !ok {
		return nil, false
	}
	return a.RequiredConfig(), true
}

// Missing lists channels from models.Channels with no registered adapter.
func (r *Registry) Missing() []models.Channel {
	var missing []models.Channel
	for _, c := range models.Channels {
		if _, ok := r.adapters[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// Send dispatches n through the adapter registered for channel.
func (r *Registry) Send(ctx context.Context, channel models.Channel, config map[string]string, n Notification) Result {
	a, ok := r.adapters[channel]
	if !ok {
		return Result{Channel: channel, Detail: fmt.Sprintf("unsupported channel %q", channel)}
	}
	return a.Send(ctx, config, n)
}

func (r *Registry) Channels() []models.Channel {
	channels := make([]models.Channel, 0, len(r.adapters))
	for c := range r.adapters {
		channels = append(channels, c)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}

func summarize(n Notification) string {
	if data, ok := n.Data.(map[string]interface{}); ok {
		if title, ok := data["title"].(string); ok && title != "" {
			return fmt.Sprintf("[%s] %s", n.Event, title)
		}
	}
	return fmt.Sprintf("Beacon event: %s", n.Event)
}

func outcomeDetail(o models.DeliveryOutcome) string {
	if o.Error != "" {
		return o.Error
	}
	if o.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", o.StatusCode, o.Body)
	}
	return fmt.Sprintf("HTTP %d", o.StatusCode)
}
