package channel

import (
	"context"

	"github.com/citycast/server/internal/repository/catalog"
	"github.com/citycast/server/internal/sequencer"
)

// catalogSource adapts the catalog repository to the engine's view of
// content. The repository applies the editorial deny list itself, so
// nothing here filters.
type catalogSource struct {
	repo iCatalogRepo
}

func toContentItem(item catalog.Item) *sequencer.ContentItem {
	multiplier := item.VolumeMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	return &sequencer.ContentItem{
		Id:               item.Id,
		Kind:             sequencer.Kind(item.Kind),
		Title:            item.Title,
		MediaURL:         item.MediaURL,
		ImageURL:         item.ImageURL,
		AudioURL:         item.AudioURL,
		Category:         item.Category,
		DurationHint:     item.DurationHint,
		VolumeMultiplier: multiplier,
	}
}

func (s catalogSource) GetItem(ctx context.Context, id string) (*sequencer.ContentItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return toContentItem(item), nil
}

func (s catalogSource) RandomCandidate(ctx context.Context, excludeId, excludeCategory string) (*sequencer.ContentItem, error) {
	item, err := s.repo.RandomCandidate(ctx, &catalog.RandomCandidateParams{
		ExcludeId:       excludeId,
		ExcludeCategory: excludeCategory,
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	return toContentItem(*item), nil
}

func (s catalogSource) GetBumpers(ctx context.Context, flavor sequencer.BumperFlavor) ([]sequencer.Bumper, error) {
	bumpers, err := s.repo.GetBumpers(ctx, string(flavor))
	if err != nil {
		return nil, err
	}
	out := make([]sequencer.Bumper, 0, len(bumpers))
	for _, b := range bumpers {
		out = append(out, sequencer.Bumper{Id: b.Id, MediaURL: b.MediaURL})
	}
	return out, nil
}

func (s catalogSource) GetShowSteps(ctx context.Context, showId string) ([]sequencer.ShowStep, error) {
	steps, err := s.repo.GetShowSteps(ctx, showId)
	if err != nil {
		return nil, err
	}
	out := make([]sequencer.ShowStep, 0, len(steps))
	for _, step := range steps {
		out = append(out, sequencer.ShowStep{Kind: sequencer.Kind(step.Kind), Id: step.Id})
	}
	return out, nil
}
