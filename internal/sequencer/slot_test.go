package sequencer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSlotCache(t *testing.T) (*SlotCache, *fakePlayer, *fakePlayer, *eventLog) {
	t.Helper()
	log := &eventLog{}
	a := newFakePlayer("a", log)
	b := newFakePlayer("b", log)
	c := NewSlotCache(a, b, testConfig(), testLogger())
	t.Cleanup(c.Close)
	return c, a, b, log
}

func loadParamsFor(item *ContentItem) *LoadParams {
	return &LoadParams{ItemId: item.Id, URL: item.MediaURL, Autoplay: true, Muted: true}
}

func TestLoadIntoSlotIdempotent(t *testing.T) {
	ctx := context.Background()
	c, a, _, _ := newTestSlotCache(t)
	item := &ContentItem{Id: "vid-1", MediaURL: "https://cdn.example/1.mp4"}

	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, item, loadParamsFor(item)))
	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, item, loadParamsFor(item)))
	assert.Equal(t, []string{"vid-1"}, a.loadedIds())

	other := &ContentItem{Id: "vid-2", MediaURL: "https://cdn.example/2.mp4"}
	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, other, loadParamsFor(other)))
	assert.Equal(t, []string{"vid-1", "vid-2"}, a.loadedIds())
}

func TestSetActiveSlotDemotesPrevious(t *testing.T) {
	ctx := context.Background()
	c, a, b, _ := newTestSlotCache(t)
	vid1 := &ContentItem{Id: "vid-1"}
	vid2 := &ContentItem{Id: "vid-2"}

	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, vid1, loadParamsFor(vid1)))
	require.NoError(t, c.SetActiveSlot(ctx, SlotA))
	assert.Equal(t, SlotA, c.ActiveSlot())
	assert.Equal(t, 1, a.playCount())

	require.NoError(t, c.LoadIntoSlot(ctx, SlotB, vid2, loadParamsFor(vid2)))
	require.NoError(t, c.SetActiveSlot(ctx, SlotB))
	assert.Equal(t, SlotB, c.ActiveSlot())
	assert.True(t, a.isMuted())
	assert.Equal(t, 1, b.playCount())

	// re-activating the already active slot is a no-op
	require.NoError(t, c.SetActiveSlot(ctx, SlotB))
	assert.Equal(t, 1, b.playCount())

	// the demoted slot is cleared after the grace period
	require.Eventually(t, func() bool {
		return c.ItemIn(SlotA) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestClearSkippedWhenSlotRepointed(t *testing.T) {
	ctx := context.Background()
	c, _, _, _ := newTestSlotCache(t)
	vid1 := &ContentItem{Id: "vid-1"}
	vid2 := &ContentItem{Id: "vid-2"}
	vid3 := &ContentItem{Id: "vid-3"}

	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, vid1, loadParamsFor(vid1)))
	require.NoError(t, c.SetActiveSlot(ctx, SlotA))
	require.NoError(t, c.LoadIntoSlot(ctx, SlotB, vid2, loadParamsFor(vid2)))
	require.NoError(t, c.SetActiveSlot(ctx, SlotB))

	// a preload re-points the demoted slot before the grace period ends;
	// the clear must not wipe the warmed content
	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, vid3, loadParamsFor(vid3)))

	time.Sleep(3 * testConfig().SlotClearGrace)
	require.NotNil(t, c.ItemIn(SlotA))
	assert.Equal(t, "vid-3", c.ItemIn(SlotA).Id)
}

func TestClearSkippedWhenActivationBouncesBack(t *testing.T) {
	ctx := context.Background()
	c, _, _, _ := newTestSlotCache(t)
	vid1 := &ContentItem{Id: "vid-1"}
	vid2 := &ContentItem{Id: "vid-2"}

	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, vid1, loadParamsFor(vid1)))
	require.NoError(t, c.SetActiveSlot(ctx, SlotA))
	require.NoError(t, c.LoadIntoSlot(ctx, SlotB, vid2, loadParamsFor(vid2)))
	require.NoError(t, c.SetActiveSlot(ctx, SlotB))
	require.NoError(t, c.SetActiveSlot(ctx, SlotA))

	time.Sleep(3 * testConfig().SlotClearGrace)
	require.NotNil(t, c.ItemIn(SlotA))
	assert.Equal(t, "vid-1", c.ItemIn(SlotA).Id)
}

func TestRevealLiftsShieldOnce(t *testing.T) {
	ctx := context.Background()
	c, _, _, log := newTestSlotCache(t)
	vid1 := &ContentItem{Id: "vid-1"}

	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, vid1, loadParamsFor(vid1)))
	require.NoError(t, c.SetActiveSlot(ctx, SlotA))

	c.Reveal(SlotA)
	require.Eventually(t, func() bool {
		return log.has("a.visible")
	}, time.Second, 5*time.Millisecond)

	c.Reveal(SlotA)
	time.Sleep(3 * testConfig().RevealShieldDelay)
	assert.Equal(t, 1, log.count("a.visible"))
}

func TestRevealDroppedWhenSlotRepointed(t *testing.T) {
	ctx := context.Background()
	c, _, _, log := newTestSlotCache(t)
	vid1 := &ContentItem{Id: "vid-1"}
	vid2 := &ContentItem{Id: "vid-2"}

	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, vid1, loadParamsFor(vid1)))
	require.NoError(t, c.SetActiveSlot(ctx, SlotA))

	c.Reveal(SlotA)
	// re-pointing during the shield delay orphans the pending reveal
	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, vid2, loadParamsFor(vid2)))

	time.Sleep(3 * testConfig().RevealShieldDelay)
	assert.False(t, log.has("a.visible"))
}

func TestAutoplayKickFallsBackToMuted(t *testing.T) {
	ctx := context.Background()
	c, a, _, _ := newTestSlotCache(t)
	vid1 := &ContentItem{Id: "vid-1"}

	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, vid1, loadParamsFor(vid1)))
	require.NoError(t, c.SetActiveSlot(ctx, SlotA))
	a.mu.Lock()
	a.muted = false
	a.mu.Unlock()

	// the player never leaves unstarted, so every kick fails
	c.StartAutoplayKick(ctx, SlotA)

	require.Eventually(t, func() bool {
		return a.isMuted() && a.playCount() > testConfig().AutoplayKickMuteAfter
	}, time.Second, 5*time.Millisecond)

	// once the player settles the loop exits
	a.setState(StatePlaying)
	time.Sleep(3 * testConfig().AutoplayKickInterval)
	settled := a.playCount()
	time.Sleep(5 * testConfig().AutoplayKickInterval)
	assert.Equal(t, settled, a.playCount())
}

func TestStopAutoplayKick(t *testing.T) {
	ctx := context.Background()
	c, a, _, _ := newTestSlotCache(t)
	vid1 := &ContentItem{Id: "vid-1"}

	require.NoError(t, c.LoadIntoSlot(ctx, SlotA, vid1, loadParamsFor(vid1)))
	require.NoError(t, c.SetActiveSlot(ctx, SlotA))

	c.StartAutoplayKick(ctx, SlotA)
	c.StopAutoplayKick(SlotA)

	time.Sleep(3 * testConfig().AutoplayKickInterval)
	stopped := a.playCount()
	time.Sleep(5 * testConfig().AutoplayKickInterval)
	assert.Equal(t, stopped, a.playCount())
}
