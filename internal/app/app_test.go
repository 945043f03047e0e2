package app

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citycast/server/internal/history"
	"github.com/citycast/server/internal/repository/catalog"
	catalogRedis "github.com/citycast/server/internal/repository/catalog/redis"
	"github.com/citycast/server/internal/sequencer"
	"github.com/citycast/server/internal/service/channel"
)

type countingSender struct {
	mu   sync.Mutex
	sent []channel.Output
}

func (s *countingSender) Send(msg *channel.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, *msg)
	return nil
}

func (s *countingSender) typeCount(msgType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, msg := range s.sent {
		if msg.Type == msgType {
			n++
		}
	}
	return n
}

// Wires the real catalog repository, history store and channel service
// together the way Run does, minus the http server.
func TestChannelWiring(t *testing.T) {
	slog.SetLogLoggerLevel(slog.LevelDebug)
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	catalogRepo := catalogRedis.NewRepo(rc, time.Hour)

	historyStore, err := history.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { historyStore.Close() })

	ctx := context.Background()

	items := []catalog.Item{
		{Id: "vid-1", Kind: "video", Title: "Council vote", MediaURL: "https://cdn.example/1.mp4", Category: "politics", DurationHint: 180, VolumeMultiplier: 1},
		{Id: "vid-2", Kind: "video", Title: "Harbour report", MediaURL: "https://cdn.example/2.mp4", Category: "business", DurationHint: 120, VolumeMultiplier: 1},
	}
	for i := range items {
		require.NoError(t, catalogRepo.SetItem(ctx, &catalog.SetItemParams{Item: items[i]}))
	}
	require.NoError(t, catalogRepo.SetBumpers(ctx, &catalog.SetBumpersParams{
		Flavor:  "generic",
		Bumpers: []catalog.Bumper{{Id: "bmp-1", MediaURL: "https://cdn.example/bmp.mp4"}},
	}))

	channelService := channel.New(catalogRepo, historyStore, nil, slog.Default())

	sender := &countingSender{}
	resp, err := channelService.CreateSession(ctx, &channel.CreateSessionParams{
		Sender:        sender,
		Platform:      "desktop",
		InitialItemId: "vid-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionId)
	assert.Equal(t, sequencer.PhaseShowingBumper, resp.Snapshot.Phase)
	assert.Equal(t, "vid-1", resp.Snapshot.CurrentItem.Id)

	require.NoError(t, channelService.HandleBumperEnded(ctx, &channel.BumperEndedParams{SessionId: resp.SessionId}))
	require.NoError(t, channelService.HandlePlayerState(ctx, &channel.PlayerStateParams{
		SessionId: resp.SessionId,
		Slot:      "a",
		State:     "playing",
	}))

	// ending the item writes the as-played log and rotates onward
	require.NoError(t, channelService.HandlePlayerState(ctx, &channel.PlayerStateParams{
		SessionId: resp.SessionId,
		Slot:      "a",
		State:     "ended",
	}))
	require.Eventually(t, func() bool {
		entries, err := historyStore.GetRecent(ctx, 5)
		return err == nil && len(entries) == 1
	}, 3*time.Second, 25*time.Millisecond)

	entries, err := historyStore.GetRecent(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "vid-1", entries[0].ItemId)
	assert.Equal(t, "ended", entries[0].EndReason)

	require.Eventually(t, func() bool {
		return sender.typeCount("SHOW_BUMPER") >= 2
	}, 3*time.Second, 25*time.Millisecond)

	nowPlaying := channelService.NowPlaying(ctx)
	require.Len(t, nowPlaying, 1)
	assert.Equal(t, resp.SessionId, nowPlaying[0].SessionId)

	require.NoError(t, channelService.RemoveSession(ctx, resp.SessionId))
}

func TestAppConfigValidate(t *testing.T) {
	cfg := &AppConfig{Host: "0.0.0.0", Port: 8080, UpstreamURL: "https://cms.example/feed.json"}
	require.NoError(t, cfg.Validate())

	cfg.Port = 0
	assert.Error(t, cfg.Validate())

	cfg.Port = 8080
	cfg.UpstreamURL = ""
	assert.Error(t, cfg.Validate())
}
