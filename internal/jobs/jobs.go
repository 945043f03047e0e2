// Package jobs runs the background sync between the newsroom CMS feed
// and the catalog the channel plays from.
package jobs

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/citycast/server/pkg/ytmedia"
)

type Config struct {
	UpstreamURL     string
	RefreshInterval time.Duration
}

// SetupInBackground schedules the catalog refresh and returns the
// scheduler without starting it. An immediate first run warms an empty
// catalog before the first viewer connects.
func SetupInBackground(cfg *Config, repo iCatalogRepo, logger *slog.Logger) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)

	client := &http.Client{Timeout: 30 * time.Second}
	media := ytmedia.NewClient(client)

	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	s.Every(interval).StartImmediately().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := RefreshCatalog(ctx, repo, client, media, cfg.UpstreamURL, logger); err != nil {
			logger.Warn("catalog refresh failed", "error", err)
		}
	})

	logger.Info("jobs scheduled", "refresh_interval", interval)

	return s
}
