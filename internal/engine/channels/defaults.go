package channels

import (
	"github.com/rs/zerolog"

	"beacon/internal/platform/config"
)

// NewDefaultRegistry registers an adapter for every channel in models.Channels.
func NewDefaultRegistry(poster Poster, cfg config.ChannelsConfig, logger zerolog.Logger) *Registry {
	return NewRegistry(
		NewEmailAdapter(logger),
		NewSlackAdapter(poster),
		NewTeamsAdapter(poster),
		NewPagerDutyAdapter(poster, cfg.PagerDutyURL, cfg.PagerDutySource),
	)
}
