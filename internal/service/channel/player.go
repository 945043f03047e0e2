package channel

import (
	"context"
	"fmt"

	"github.com/citycast/server/internal/sequencer"
)

func parseSlot(slot string) (sequencer.SlotId, error) {
	switch sequencer.SlotId(slot) {
	case sequencer.SlotA, sequencer.SlotB:
		return sequencer.SlotId(slot), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
}

type PlayerReadyParams struct {
	SessionId string
	Slot      string
}

func (s *service) HandlePlayerReady(ctx context.Context, params *PlayerReadyParams) error {
	session, err := s.getSession(params.SessionId)
	if err != nil {
		return err
	}
	slot, err := parseSlot(params.Slot)
	if err != nil {
		return err
	}

	session.player(slot).setReportedState(sequencer.StateCued)
	session.engine.HandleSlotReady(ctx, slot)
	return nil
}

type PlayerStateParams struct {
	SessionId string
	Slot      string
	State     string
}

// HandlePlayerState records what a mount actually reports and lets the
// engine react. Playing reports drive the fade-in; ended reports drive
// the advance.
func (s *service) HandlePlayerState(ctx context.Context, params *PlayerStateParams) error {
	session, err := s.getSession(params.SessionId)
	if err != nil {
		return err
	}
	slot, err := parseSlot(params.Slot)
	if err != nil {
		return err
	}

	state := sequencer.PlayerState(params.State)
	session.player(slot).setReportedState(state)

	switch state {
	case sequencer.StatePlaying:
		session.engine.HandleSlotPlaying(ctx, slot)
	case sequencer.StateEnded:
		session.engine.HandleSlotEnded(ctx, slot)
	}
	return nil
}

type PlayerProgressParams struct {
	SessionId       string
	Slot            string
	PlayedSeconds   float64
	DurationSeconds float64
}

func (s *service) HandlePlayerProgress(ctx context.Context, params *PlayerProgressParams) error {
	session, err := s.getSession(params.SessionId)
	if err != nil {
		return err
	}
	slot, err := parseSlot(params.Slot)
	if err != nil {
		return err
	}

	session.engine.HandleSlotProgress(ctx, slot, params.PlayedSeconds, params.DurationSeconds)
	return nil
}

type PlayerErrorParams struct {
	SessionId string
	Slot      string
	Code      int
}

func (s *service) HandlePlayerError(ctx context.Context, params *PlayerErrorParams) error {
	session, err := s.getSession(params.SessionId)
	if err != nil {
		return err
	}
	slot, err := parseSlot(params.Slot)
	if err != nil {
		return err
	}

	session.engine.HandleSlotError(ctx, slot, params.Code)
	return nil
}

type BumperEndedParams struct {
	SessionId string
}

func (s *service) HandleBumperEnded(ctx context.Context, params *BumperEndedParams) error {
	session, err := s.getSession(params.SessionId)
	if err != nil {
		return err
	}

	session.engine.HandleBumperEnded(ctx)
	return nil
}
