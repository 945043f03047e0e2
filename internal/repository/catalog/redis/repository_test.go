package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citycast/server/internal/repository/catalog"
)

func newTestRepo(t *testing.T) *repo {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	return NewRepo(rc, 10*time.Minute)
}

func TestItemRoundtrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	item := catalog.Item{
		Id:               "vid-1",
		Kind:             "video",
		Title:            "City council recap",
		MediaURL:         "https://cdn.example/vid-1.mp4",
		Category:         "politics",
		DurationHint:     183.4,
		VolumeMultiplier: 1,
	}
	require.NoError(t, r.SetItem(ctx, &catalog.SetItemParams{Item: item}))

	got, err := r.GetItem(ctx, "vid-1")
	require.NoError(t, err)
	assert.Equal(t, item, got)

	ids, err := r.GetItemIds(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"vid-1"}, ids)

	_, err = r.GetItem(ctx, "missing")
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)

	require.NoError(t, r.RemoveItem(ctx, "vid-1"))
	_, err = r.GetItem(ctx, "vid-1")
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
}

func TestRandomCandidateDenyList(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	items := []catalog.Item{
		{Id: "a", Kind: "video", Category: "sports", VolumeMultiplier: 1},
		{Id: "b", Kind: "video", Category: "weather", VolumeMultiplier: 1},
		{Id: "c", Kind: "slide", Category: "crime", VolumeMultiplier: 1},
	}
	for i := range items {
		require.NoError(t, r.SetItem(ctx, &catalog.SetItemParams{Item: items[i]}))
	}
	require.NoError(t, r.SetDenyList(ctx, &catalog.SetDenyListParams{
		Ids:        []string{"a"},
		Categories: []string{"crime"},
	}))

	for i := 0; i < 100; i++ {
		got, err := r.RandomCandidate(ctx, &catalog.RandomCandidateParams{})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "b", got.Id)
	}
}

func TestRandomCandidateCategoryDiversity(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	items := []catalog.Item{
		{Id: "a", Kind: "video", Category: "sports", VolumeMultiplier: 1},
		{Id: "b", Kind: "video", Category: "sports", VolumeMultiplier: 1},
		{Id: "c", Kind: "video", Category: "weather", VolumeMultiplier: 1},
	}
	for i := range items {
		require.NoError(t, r.SetItem(ctx, &catalog.SetItemParams{Item: items[i]}))
	}

	for i := 0; i < 50; i++ {
		got, err := r.RandomCandidate(ctx, &catalog.RandomCandidateParams{
			ExcludeId:       "a",
			ExcludeCategory: "sports",
		})
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "c", got.Id)
	}
}

func TestRandomCandidateDiversityFallback(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	items := []catalog.Item{
		{Id: "a", Kind: "video", Category: "sports", VolumeMultiplier: 1},
		{Id: "b", Kind: "video", Category: "sports", VolumeMultiplier: 1},
	}
	for i := range items {
		require.NoError(t, r.SetItem(ctx, &catalog.SetItemParams{Item: items[i]}))
	}

	// every remaining item shares the excluded category, so the
	// category filter is dropped rather than stalling the channel
	got, err := r.RandomCandidate(ctx, &catalog.RandomCandidateParams{
		ExcludeId:       "a",
		ExcludeCategory: "sports",
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.Id)
}

func TestRandomCandidateSingleItemRepeats(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetItem(ctx, &catalog.SetItemParams{
		Item: catalog.Item{Id: "a", Kind: "video", Category: "sports", VolumeMultiplier: 1},
	}))

	// a one-item pool loops that item rather than going dark
	got, err := r.RandomCandidate(ctx, &catalog.RandomCandidateParams{ExcludeId: "a"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.Id)
}

func TestRandomCandidateExhausted(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.SetItem(ctx, &catalog.SetItemParams{
		Item: catalog.Item{Id: "a", Kind: "video", Category: "sports", VolumeMultiplier: 1},
	}))
	require.NoError(t, r.SetDenyList(ctx, &catalog.SetDenyListParams{Ids: []string{"a"}}))

	// deny listing is never relaxed, even when it empties the pool
	got, err := r.RandomCandidate(ctx, &catalog.RandomCandidateParams{})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBumpersRoundtrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	bumpers := []catalog.Bumper{
		{Id: "bmp-1", MediaURL: "https://cdn.example/bmp-1.mp4"},
		{Id: "bmp-2", MediaURL: "https://cdn.example/bmp-2.mp4"},
	}
	require.NoError(t, r.SetBumpers(ctx, &catalog.SetBumpersParams{
		Flavor:  "news",
		Bumpers: bumpers,
	}))

	got, err := r.GetBumpers(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, bumpers, got)

	got, err = r.GetBumpers(ctx, "generic")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestShowRoundtrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	steps := []catalog.ShowStep{
		{Kind: "video", Id: "vid-1"},
		{Kind: "slide", Id: "slide-1"},
	}
	require.NoError(t, r.SetShow(ctx, &catalog.SetShowParams{
		ShowId: "morning",
		Steps:  steps,
	}))

	got, err := r.GetShowSteps(ctx, "morning")
	require.NoError(t, err)
	assert.Equal(t, steps, got)

	_, err = r.GetShowSteps(ctx, "evening")
	assert.ErrorIs(t, err, catalog.ErrShowNotFound)
}
