package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/exp/slices"

	"github.com/citycast/server/internal/repository/catalog"
	"github.com/citycast/server/pkg/ytmedia"
)

type iMediaLookup interface {
	Get(videoId string) (*ytmedia.VideoData, error)
}

type iCatalogRepo interface {
	SetItem(ctx context.Context, params *catalog.SetItemParams) error
	RemoveItem(ctx context.Context, itemId string) error
	GetItemIds(ctx context.Context) ([]string, error)
	SetBumpers(ctx context.Context, params *catalog.SetBumpersParams) error
	SetShow(ctx context.Context, params *catalog.SetShowParams) error
	SetDenyList(ctx context.Context, params *catalog.SetDenyListParams) error
}

// feed is the newsroom CMS export format.
type feed struct {
	Items   []catalog.Item                `json:"items"`
	Bumpers map[string][]catalog.Bumper   `json:"bumpers"`
	Shows   map[string][]catalog.ShowStep `json:"shows"`
	Deny    struct {
		Ids        []string `json:"ids"`
		Categories []string `json:"categories"`
	} `json:"deny_list"`
}

// RefreshCatalog pulls the CMS feed and reconciles the catalog against
// it: upsert everything present, drop items the feed no longer carries.
func RefreshCatalog(ctx context.Context, repo iCatalogRepo, client *http.Client, media iMediaLookup, upstreamURL string, logger *slog.Logger) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected feed status code: %d", resp.StatusCode)
	}

	var f feed
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return fmt.Errorf("failed to decode feed: %w", err)
	}

	existing, err := repo.GetItemIds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list existing items: %w", err)
	}

	seen := make([]string, 0, len(f.Items))
	for _, item := range f.Items {
		if item.Id == "" || (item.MediaURL == "" && item.ImageURL == "") {
			logger.WarnContext(ctx, "skipping malformed feed item", "item_id", item.Id)
			continue
		}
		normalizeItem(ctx, &item, media, logger)

		if err := repo.SetItem(ctx, &catalog.SetItemParams{Item: item}); err != nil {
			return fmt.Errorf("failed to upsert item %s: %w", item.Id, err)
		}
		seen = append(seen, item.Id)
	}

	for _, id := range existing {
		if !slices.Contains(seen, id) {
			if err := repo.RemoveItem(ctx, id); err != nil {
				return fmt.Errorf("failed to remove stale item %s: %w", id, err)
			}
			logger.InfoContext(ctx, "removed stale item", "item_id", id)
		}
	}

	for flavor, bumpers := range f.Bumpers {
		if err := repo.SetBumpers(ctx, &catalog.SetBumpersParams{Flavor: flavor, Bumpers: bumpers}); err != nil {
			return fmt.Errorf("failed to set %s bumpers: %w", flavor, err)
		}
	}

	for showId, steps := range f.Shows {
		if err := repo.SetShow(ctx, &catalog.SetShowParams{ShowId: showId, Steps: steps}); err != nil {
			return fmt.Errorf("failed to set show %s: %w", showId, err)
		}
	}

	if err := repo.SetDenyList(ctx, &catalog.SetDenyListParams{
		Ids:        f.Deny.Ids,
		Categories: f.Deny.Categories,
	}); err != nil {
		return fmt.Errorf("failed to set deny list: %w", err)
	}

	logger.InfoContext(ctx, "catalog refreshed",
		"items", len(seen),
		"shows", len(f.Shows),
		"denied_ids", len(f.Deny.Ids),
	)

	return nil
}

// normalizeItem rewrites YouTube links, whatever the item kind, to the
// embeddable form the player mounts expect, and backfills title and
// thumbnail for entries the feed carries bare. Non-YouTube media urls
// pass through untouched.
func normalizeItem(ctx context.Context, item *catalog.Item, media iMediaLookup, logger *slog.Logger) {
	videoId, err := ytmedia.ExtractVideoId(item.MediaURL)
	if err != nil {
		return
	}
	item.MediaURL = ytmedia.EmbedURL(videoId)

	if media != nil && (item.Title == "" || item.ImageURL == "") {
		data, err := media.Get(videoId)
		if err != nil {
			logger.WarnContext(ctx, "failed to look up video metadata", "item_id", item.Id, "error", err)
		} else {
			if item.Title == "" {
				item.Title = data.Title
			}
			if item.ImageURL == "" {
				item.ImageURL = data.ThumbnailUrl
			}
		}
	}
	if item.ImageURL == "" {
		item.ImageURL = fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoId)
	}
}
