package controller

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/citycast/server/internal/service/channel"
	"github.com/citycast/server/pkg/ctxlogger"
	"github.com/citycast/server/pkg/wsrouter"
)

// channel upgrades the connection and runs a session until the surface
// disconnects. Query params: platform (desktop|tv), item (deep-link
// target), show (programmed show id).
func (c controller) channel(w http.ResponseWriter, r *http.Request) {
	platform := r.URL.Query().Get("platform")
	if platform == "" {
		platform = "desktop"
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	sender := channel.NewConnSender(conn)
	resp, err := c.channelService.CreateSession(r.Context(), &channel.CreateSessionParams{
		Sender:        sender,
		Platform:      platform,
		InitialItemId: r.URL.Query().Get("item"),
		ShowId:        r.URL.Query().Get("show"),
	})
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to create session", "error", err)
		conn.Close()
		return
	}
	defer c.channelService.RemoveSession(context.WithoutCancel(r.Context()), resp.SessionId)

	if err := sender.Send(&channel.Output{
		Type: "SESSION_CREATED",
		Payload: map[string]any{
			"session_id": resp.SessionId,
			"snapshot":   resp.Snapshot,
		},
	}); err != nil {
		c.logger.WarnContext(r.Context(), "failed to send session created", "error", err)
		return
	}

	ctx := context.WithValue(r.Context(), sessionIdCtxKey, resp.SessionId)
	ctx = context.WithValue(ctx, senderCtxKey, sender)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("session_id", resp.SessionId))

	if err := c.wsmux.ServeConn(ctx, conn, c.handleWSError); err != nil {
		c.logger.InfoContext(r.Context(), "session connection closed", "error", err)
	}
}

// handleWSError reports a handler failure to the surface without
// dropping the connection. The rotation must survive bad input.
func (c controller) handleWSError(ctx context.Context, err error) {
	c.logger.WarnContext(ctx, "failed to handle websocket message", "error", err)
	sender := c.getSenderFromCtx(ctx)
	if sender == nil {
		return
	}
	if err := sender.Send(&channel.Output{
		Type: "ERROR",
		Payload: map[string]any{
			"message": err.Error(),
		},
	}); err != nil {
		c.logger.WarnContext(ctx, "failed to write error", "error", err)
	}
}

type EmptyInput struct{}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

type PlayerReadyInput struct {
	Slot string `json:"slot" validate:"required,oneof=a b"`
}

func (c controller) handlePlayerReady(ctx context.Context, _ *websocket.Conn, input PlayerReadyInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid input: %v", validationErrors)
	}

	return c.channelService.HandlePlayerReady(ctx, &channel.PlayerReadyParams{
		SessionId: c.getSessionIdFromCtx(ctx),
		Slot:      input.Slot,
	})
}

type PlayerStateInput struct {
	Slot  string `json:"slot" validate:"required,oneof=a b"`
	State string `json:"state" validate:"required"`
}

func (c controller) handlePlayerState(ctx context.Context, _ *websocket.Conn, input PlayerStateInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid input: %v", validationErrors)
	}

	return c.channelService.HandlePlayerState(ctx, &channel.PlayerStateParams{
		SessionId: c.getSessionIdFromCtx(ctx),
		Slot:      input.Slot,
		State:     input.State,
	})
}

type PlayerProgressInput struct {
	Slot            string  `json:"slot" validate:"required,oneof=a b"`
	PlayedSeconds   float64 `json:"played_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func (c controller) handlePlayerProgress(ctx context.Context, _ *websocket.Conn, input PlayerProgressInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid input: %v", validationErrors)
	}

	return c.channelService.HandlePlayerProgress(ctx, &channel.PlayerProgressParams{
		SessionId:       c.getSessionIdFromCtx(ctx),
		Slot:            input.Slot,
		PlayedSeconds:   input.PlayedSeconds,
		DurationSeconds: input.DurationSeconds,
	})
}

type PlayerErrorInput struct {
	Slot string `json:"slot" validate:"required,oneof=a b"`
	Code int    `json:"code"`
}

func (c controller) handlePlayerError(ctx context.Context, _ *websocket.Conn, input PlayerErrorInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid input: %v", validationErrors)
	}

	return c.channelService.HandlePlayerError(ctx, &channel.PlayerErrorParams{
		SessionId: c.getSessionIdFromCtx(ctx),
		Slot:      input.Slot,
		Code:      input.Code,
	})
}

func (c controller) handleBumperEnded(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return c.channelService.HandleBumperEnded(ctx, &channel.BumperEndedParams{
		SessionId: c.getSessionIdFromCtx(ctx),
	})
}

type SelectItemInput struct {
	ItemId string `json:"item_id" validate:"required"`
}

func (c controller) handleSelectItem(ctx context.Context, _ *websocket.Conn, input SelectItemInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid input: %v", validationErrors)
	}

	return c.channelService.SelectItem(ctx, &channel.SelectItemParams{
		SessionId: c.getSessionIdFromCtx(ctx),
		ItemId:    input.ItemId,
	})
}

type PlayInterstitialInput struct {
	ItemId          string  `json:"item_id" validate:"required"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func (c controller) handlePlayInterstitial(ctx context.Context, _ *websocket.Conn, input PlayInterstitialInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid input: %v", validationErrors)
	}

	return c.channelService.PlayInterstitial(ctx, &channel.PlayInterstitialParams{
		SessionId:       c.getSessionIdFromCtx(ctx),
		ItemId:          input.ItemId,
		DurationSeconds: input.DurationSeconds,
	})
}

type SetVolumeInput struct {
	Volume float64 `json:"volume" validate:"min=0,max=1"`
}

func (c controller) handleSetVolume(ctx context.Context, _ *websocket.Conn, input SetVolumeInput) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid input: %v", validationErrors)
	}

	return c.channelService.SetVolume(ctx, &channel.SetVolumeParams{
		SessionId: c.getSessionIdFromCtx(ctx),
		Volume:    input.Volume,
	})
}

func (c controller) handleToggleMute(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return c.channelService.ToggleMute(ctx, &channel.ToggleMuteParams{
		SessionId: c.getSessionIdFromCtx(ctx),
	})
}

func (c controller) handleTogglePlayPause(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return c.channelService.TogglePlayPause(ctx, &channel.TogglePlayPauseParams{
		SessionId: c.getSessionIdFromCtx(ctx),
	})
}

func (c *controller) initWSMux() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdMw())
	mux.Use(c.loggerWSMw())

	wsrouter.Handle(mux, "ALIVE", c.handleAlive)

	// player events
	wsrouter.Handle(mux, "PLAYER_READY", c.handlePlayerReady)
	wsrouter.Handle(mux, "PLAYER_STATE", c.handlePlayerState)
	wsrouter.Handle(mux, "PLAYER_PROGRESS", c.handlePlayerProgress)
	wsrouter.Handle(mux, "PLAYER_ERROR", c.handlePlayerError)
	wsrouter.Handle(mux, "BUMPER_ENDED", c.handleBumperEnded)

	// viewer commands
	wsrouter.Handle(mux, "SELECT_ITEM", c.handleSelectItem)
	wsrouter.Handle(mux, "PLAY_INTERSTITIAL", c.handlePlayInterstitial)
	wsrouter.Handle(mux, "SET_VOLUME", c.handleSetVolume)
	wsrouter.Handle(mux, "TOGGLE_MUTE", c.handleToggleMute)
	wsrouter.Handle(mux, "TOGGLE_PLAY_PAUSE", c.handleTogglePlayPause)

	return mux
}
