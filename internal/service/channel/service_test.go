package channel

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citycast/server/internal/history"
	"github.com/citycast/server/internal/repository/catalog"
	"github.com/citycast/server/internal/sequencer"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []Output
}

func (r *recordingSender) Send(msg *Output) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *recordingSender) count(msgType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, msg := range r.msgs {
		if msg.Type == msgType {
			n++
		}
	}
	return n
}

func (r *recordingSender) has(msgType string) bool {
	return r.count(msgType) > 0
}

type fakeCatalogRepo struct {
	mu      sync.Mutex
	items   map[string]catalog.Item
	bumpers map[string][]catalog.Bumper
	shows   map[string][]catalog.ShowStep
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{
		items:   make(map[string]catalog.Item),
		bumpers: make(map[string][]catalog.Bumper),
		shows:   make(map[string][]catalog.ShowStep),
	}
}

func (f *fakeCatalogRepo) GetItem(_ context.Context, itemId string) (catalog.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemId]
	if !ok {
		return catalog.Item{}, catalog.ErrItemNotFound
	}
	return item, nil
}

func (f *fakeCatalogRepo) RandomCandidate(_ context.Context, params *catalog.RandomCandidateParams) (*catalog.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.Id == params.ExcludeId {
			continue
		}
		item := item
		return &item, nil
	}
	return nil, nil
}

func (f *fakeCatalogRepo) GetBumpers(_ context.Context, flavor string) ([]catalog.Bumper, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bumpers[flavor], nil
}

func (f *fakeCatalogRepo) GetShowSteps(_ context.Context, showId string) ([]catalog.ShowStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	steps, ok := f.shows[showId]
	if !ok {
		return nil, catalog.ErrShowNotFound
	}
	return steps, nil
}

type fakeHistoryStore struct {
	mu      sync.Mutex
	records []history.RecordParams
}

func (f *fakeHistoryStore) Record(_ context.Context, params *history.RecordParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *params)
	return nil
}

func (f *fakeHistoryStore) GetRecent(_ context.Context, limit int) ([]history.Entry, error) {
	return nil, nil
}

func (f *fakeHistoryStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func newTestService(t *testing.T) (*service, *fakeCatalogRepo, *fakeHistoryStore) {
	t.Helper()
	repo := newFakeCatalogRepo()
	repo.items["vid-1"] = catalog.Item{Id: "vid-1", Kind: "video", Title: "Council vote", MediaURL: "https://cdn.example/1.mp4", Category: "politics", VolumeMultiplier: 1}
	repo.items["vid-2"] = catalog.Item{Id: "vid-2", Kind: "video", Title: "Harbour report", MediaURL: "https://cdn.example/2.mp4", Category: "business", VolumeMultiplier: 1}
	repo.bumpers["generic"] = []catalog.Bumper{{Id: "bmp-1", MediaURL: "https://cdn.example/bmp.mp4"}}

	hist := &fakeHistoryStore{}
	return New(repo, hist, nil, slog.Default()), repo, hist
}

func TestSessionLifecycle(t *testing.T) {
	s, _, hist := newTestService(t)
	ctx := context.Background()
	sender := &recordingSender{}

	resp, err := s.CreateSession(ctx, &CreateSessionParams{
		Sender:        sender,
		Platform:      "desktop",
		InitialItemId: "vid-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SessionId)
	assert.Equal(t, sequencer.PhaseShowingBumper, resp.Snapshot.Phase)
	assert.True(t, sender.has(msgLoadSlot), "content must be warmed behind the bumper")
	assert.True(t, sender.has(msgShowBumper))
	assert.False(t, sender.has(msgHideBumper))

	require.NoError(t, s.HandleBumperEnded(ctx, &BumperEndedParams{SessionId: resp.SessionId}))
	assert.True(t, sender.has(msgHideBumper))
	assert.True(t, sender.has(msgPlaySlot))

	// the reveal shield lifts only after the mount reports real playback
	require.NoError(t, s.HandlePlayerState(ctx, &PlayerStateParams{
		SessionId: resp.SessionId,
		Slot:      "a",
		State:     "playing",
	}))
	require.Eventually(t, func() bool {
		return sender.has(msgSetSlotVisible)
	}, 2*time.Second, 20*time.Millisecond)

	// near the end of the item the engine advances into the next bumper
	require.NoError(t, s.HandlePlayerProgress(ctx, &PlayerProgressParams{
		SessionId:       resp.SessionId,
		Slot:            "a",
		PlayedSeconds:   179.1,
		DurationSeconds: 180,
	}))
	require.Eventually(t, func() bool {
		return sender.count(msgShowBumper) >= 2
	}, 2*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		return hist.len() >= 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, s.RemoveSession(ctx, resp.SessionId))
	assert.ErrorIs(t, s.RemoveSession(ctx, resp.SessionId), ErrSessionNotFound)
}

func TestSelectItemUnknown(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	sender := &recordingSender{}

	resp, err := s.CreateSession(ctx, &CreateSessionParams{Sender: sender, Platform: "desktop", InitialItemId: "vid-1"})
	require.NoError(t, err)
	defer s.RemoveSession(ctx, resp.SessionId)

	err = s.SelectItem(ctx, &SelectItemParams{SessionId: resp.SessionId, ItemId: "missing"})
	assert.Error(t, err)

	err = s.SelectItem(ctx, &SelectItemParams{SessionId: "nope", ItemId: "vid-1"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPlayInterstitialRejectsOverlap(t *testing.T) {
	s, repo, _ := newTestService(t)
	ctx := context.Background()
	sender := &recordingSender{}

	repo.mu.Lock()
	repo.items["break-1"] = catalog.Item{Id: "break-1", Kind: "slide", Title: "Breaking", ImageURL: "https://cdn.example/b.png", Category: "news", DurationHint: 30, VolumeMultiplier: 1}
	repo.mu.Unlock()

	resp, err := s.CreateSession(ctx, &CreateSessionParams{Sender: sender, Platform: "desktop", InitialItemId: "vid-1"})
	require.NoError(t, err)
	defer s.RemoveSession(ctx, resp.SessionId)

	require.NoError(t, s.PlayInterstitial(ctx, &PlayInterstitialParams{
		SessionId:       resp.SessionId,
		ItemId:          "break-1",
		DurationSeconds: 30,
	}))
	assert.True(t, sender.has(msgShowInterstitial))

	err = s.PlayInterstitial(ctx, &PlayInterstitialParams{
		SessionId:       resp.SessionId,
		ItemId:          "break-1",
		DurationSeconds: 30,
	})
	assert.ErrorIs(t, err, sequencer.ErrInterstitialActive)
}

func TestUnknownSlotRejected(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	sender := &recordingSender{}

	resp, err := s.CreateSession(ctx, &CreateSessionParams{Sender: sender, Platform: "desktop", InitialItemId: "vid-1"})
	require.NoError(t, err)
	defer s.RemoveSession(ctx, resp.SessionId)

	err = s.HandlePlayerState(ctx, &PlayerStateParams{SessionId: resp.SessionId, Slot: "c", State: "playing"})
	assert.ErrorIs(t, err, ErrUnknownSlot)
}
