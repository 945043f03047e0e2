package channel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/citycast/server/internal/sequencer"
)

// Output is a server-to-surface message. The surface executes commands
// against its two persistent player mounts and its bumper and
// interstitial layers.
type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

const (
	msgLoadSlot         = "LOAD_SLOT"
	msgPlaySlot         = "PLAY_SLOT"
	msgPauseSlot        = "PAUSE_SLOT"
	msgSetSlotMuted     = "SET_SLOT_MUTED"
	msgSetSlotVolume    = "SET_SLOT_VOLUME"
	msgSetSlotVisible   = "SET_SLOT_VISIBLE"
	msgShowBumper       = "SHOW_BUMPER"
	msgHideBumper       = "HIDE_BUMPER"
	msgShowInterstitial = "SHOW_INTERSTITIAL"
	msgHideInterstitial = "HIDE_INTERSTITIAL"
	msgSnapshot         = "SNAPSHOT"
)

// Sender delivers outbound messages to one surface.
type Sender interface {
	Send(msg *Output) error
}

type connSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewConnSender wraps a websocket connection in a write-serialized
// Sender. Engine callbacks fire from timers and goroutines, and gorilla
// connections do not tolerate concurrent writers.
func NewConnSender(conn *websocket.Conn) Sender {
	return &connSender{conn: conn}
}

func (s *connSender) Send(msg *Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

// Session is one surface's continuous channel: a sequencer engine plus
// the adapters that turn its decisions into outbound messages.
type Session struct {
	Id        string
	Platform  string
	CreatedAt time.Time

	engine  *sequencer.Engine
	sender  Sender
	players map[sequencer.SlotId]*wsPlayer
}

func (s *Session) player(slot sequencer.SlotId) *wsPlayer {
	return s.players[slot]
}

// wsPlayer fronts one remote player mount. Commands go out as messages;
// ReportedState returns whatever the surface last told us, because a
// commanded play is not a playing player.
type wsPlayer struct {
	slot   sequencer.SlotId
	sender Sender
	state  atomic.Value
}

func newWSPlayer(slot sequencer.SlotId, sender Sender) *wsPlayer {
	p := &wsPlayer{slot: slot, sender: sender}
	p.state.Store(sequencer.StateUnstarted)
	return p
}

func (p *wsPlayer) setReportedState(state sequencer.PlayerState) {
	p.state.Store(state)
}

func (p *wsPlayer) ReportedState() sequencer.PlayerState {
	return p.state.Load().(sequencer.PlayerState)
}

type loadSlotPayload struct {
	Slot               string  `json:"slot"`
	ItemId             string  `json:"item_id"`
	URL                string  `json:"url"`
	Autoplay           bool    `json:"autoplay"`
	Muted              bool    `json:"muted"`
	StartOffsetSeconds float64 `json:"start_offset_seconds"`
	Volume             float64 `json:"volume"`
}

func (p *wsPlayer) Load(ctx context.Context, params *sequencer.LoadParams) error {
	return p.sender.Send(&Output{
		Type: msgLoadSlot,
		Payload: loadSlotPayload{
			Slot:               string(p.slot),
			ItemId:             params.ItemId,
			URL:                params.URL,
			Autoplay:           params.Autoplay,
			Muted:              params.Muted,
			StartOffsetSeconds: params.StartOffsetSeconds,
			Volume:             params.Volume,
		},
	})
}

type slotPayload struct {
	Slot string `json:"slot"`
}

func (p *wsPlayer) Play(ctx context.Context) error {
	return p.sender.Send(&Output{Type: msgPlaySlot, Payload: slotPayload{Slot: string(p.slot)}})
}

func (p *wsPlayer) Pause(ctx context.Context) error {
	return p.sender.Send(&Output{Type: msgPauseSlot, Payload: slotPayload{Slot: string(p.slot)}})
}

func (p *wsPlayer) SetMuted(ctx context.Context, muted bool) error {
	return p.sender.Send(&Output{
		Type: msgSetSlotMuted,
		Payload: struct {
			Slot  string `json:"slot"`
			Muted bool   `json:"muted"`
		}{string(p.slot), muted},
	})
}

func (p *wsPlayer) SetVolume(ctx context.Context, volume float64) error {
	return p.sender.Send(&Output{
		Type: msgSetSlotVolume,
		Payload: struct {
			Slot   string  `json:"slot"`
			Volume float64 `json:"volume"`
		}{string(p.slot), volume},
	})
}

func (p *wsPlayer) SetVisible(ctx context.Context, visible bool) error {
	return p.sender.Send(&Output{
		Type: msgSetSlotVisible,
		Payload: struct {
			Slot    string `json:"slot"`
			Visible bool   `json:"visible"`
		}{string(p.slot), visible},
	})
}

type wsBumperScreen struct {
	sender Sender
}

func (b *wsBumperScreen) Show(ctx context.Context, bumper *sequencer.Bumper) error {
	return b.sender.Send(&Output{
		Type: msgShowBumper,
		Payload: struct {
			BumperId string `json:"bumper_id"`
			MediaURL string `json:"media_url"`
		}{bumper.Id, bumper.MediaURL},
	})
}

func (b *wsBumperScreen) Hide(ctx context.Context) error {
	return b.sender.Send(&Output{Type: msgHideBumper})
}

type wsOverlay struct {
	sender Sender
}

func (o *wsOverlay) Show(ctx context.Context, item *sequencer.ContentItem, durationSeconds float64) error {
	return o.sender.Send(&Output{
		Type: msgShowInterstitial,
		Payload: struct {
			Item            *sequencer.ContentItem `json:"item"`
			DurationSeconds float64                `json:"duration_seconds"`
		}{item, durationSeconds},
	})
}

func (o *wsOverlay) Hide(ctx context.Context) error {
	return o.sender.Send(&Output{Type: msgHideInterstitial})
}
