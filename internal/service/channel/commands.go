package channel

import (
	"context"
	"fmt"
)

type SelectItemParams struct {
	SessionId string
	ItemId    string
}

// SelectItem plays a viewer-chosen item next, preempting whatever the
// rotation was about to do.
func (s *service) SelectItem(ctx context.Context, params *SelectItemParams) error {
	session, err := s.getSession(params.SessionId)
	if err != nil {
		return err
	}

	if err := session.engine.SelectManually(ctx, params.ItemId); err != nil {
		return fmt.Errorf("failed to select item: %w", err)
	}
	return nil
}

type PlayInterstitialParams struct {
	SessionId       string
	ItemId          string
	DurationSeconds float64
}

// PlayInterstitial pauses the rotation under a breaking-news style
// overlay. The interrupted item resumes at its saved offset afterwards.
func (s *service) PlayInterstitial(ctx context.Context, params *PlayInterstitialParams) error {
	session, err := s.getSession(params.SessionId)
	if err != nil {
		return err
	}

	return session.engine.PlayInterstitial(ctx, params.ItemId, params.DurationSeconds)
}

type SetVolumeParams struct {
	SessionId string
	Volume    float64
}

func (s *service) SetVolume(ctx context.Context, params *SetVolumeParams) error {
	session, err := s.getSession(params.SessionId)
	if err != nil {
		return err
	}

	session.engine.SetVolume(ctx, params.Volume)
	return nil
}

type ToggleMuteParams struct {
	SessionId string
}

func (s *service) ToggleMute(ctx context.Context, params *ToggleMuteParams) error {
	session, err := s.getSession(params.SessionId)
	if err != nil {
		return err
	}

	session.engine.ToggleMute(ctx)
	return nil
}

type TogglePlayPauseParams struct {
	SessionId string
}

func (s *service) TogglePlayPause(ctx context.Context, params *TogglePlayPauseParams) error {
	session, err := s.getSession(params.SessionId)
	if err != nil {
		return err
	}

	session.engine.TogglePlayPause(ctx)
	return nil
}
