package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/citycast/server/internal/history"
	"github.com/citycast/server/internal/service/channel"
	"github.com/citycast/server/pkg/validator"
	"github.com/citycast/server/pkg/wsrouter"
)

type iChannelService interface {
	CreateSession(context.Context, *channel.CreateSessionParams) (channel.CreateSessionResponse, error)
	RemoveSession(context.Context, string) error
	HandlePlayerReady(context.Context, *channel.PlayerReadyParams) error
	HandlePlayerState(context.Context, *channel.PlayerStateParams) error
	HandlePlayerProgress(context.Context, *channel.PlayerProgressParams) error
	HandlePlayerError(context.Context, *channel.PlayerErrorParams) error
	HandleBumperEnded(context.Context, *channel.BumperEndedParams) error
	SelectItem(context.Context, *channel.SelectItemParams) error
	PlayInterstitial(context.Context, *channel.PlayInterstitialParams) error
	SetVolume(context.Context, *channel.SetVolumeParams) error
	ToggleMute(context.Context, *channel.ToggleMuteParams) error
	TogglePlayPause(context.Context, *channel.TogglePlayPauseParams) error
	NowPlaying(context.Context) []channel.SessionInfo
	GetHistory(context.Context, int) ([]history.Entry, error)
}

type controller struct {
	channelService iChannelService
	events         http.Handler
	upgrader       websocket.Upgrader
	validate       *validator.Validator
	wsmux          *wsrouter.WSRouter
	logger         *slog.Logger
}

func NewController(channelService iChannelService, events http.Handler, logger *slog.Logger) *controller {
	c := &controller{
		channelService: channelService,
		events:         events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		validate: validator.NewValidator(),
		logger:   logger,
	}
	c.wsmux = c.initWSMux()

	return c
}
