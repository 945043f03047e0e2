package sequencer

import "context"

// PlayerState mirrors the state vocabulary of the embedded players the
// surfaces run. The engine never trusts a commanded state; it acts on the
// last state the player actually reported.
type PlayerState string

const (
	StateUnstarted PlayerState = "unstarted"
	StateCued      PlayerState = "cued"
	StateBuffering PlayerState = "buffering"
	StatePlaying   PlayerState = "playing"
	StatePaused    PlayerState = "paused"
	StateEnded     PlayerState = "ended"
)

type LoadParams struct {
	ItemId             string
	URL                string
	Autoplay           bool
	Muted              bool
	StartOffsetSeconds float64
	Volume             float64
}

// Player is the narrow adapter in front of one embedded player mount.
// Commands go out; the transport layer records what the player reports
// back, exposed through ReportedState. Isolating the adapter this small
// keeps the autoplay polling workaround swappable for a player with
// reliable events.
type Player interface {
	Load(ctx context.Context, params *LoadParams) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SetMuted(ctx context.Context, muted bool) error
	SetVolume(ctx context.Context, volume float64) error
	SetVisible(ctx context.Context, visible bool) error
	ReportedState() PlayerState
}

// BumperScreen is the layer that plays branded bumpers above the slots.
type BumperScreen interface {
	Show(ctx context.Context, bumper *Bumper) error
	Hide(ctx context.Context) error
}

// Overlay is the interstitial layer (HTML slide or image plus narration)
// that temporarily takes over display and audio.
type Overlay interface {
	Show(ctx context.Context, item *ContentItem, durationSeconds float64) error
	Hide(ctx context.Context) error
}

// ContentSource is the engine's view of the catalog. Implementations are
// expected to honour the editorial deny list themselves.
type ContentSource interface {
	GetItem(ctx context.Context, id string) (*ContentItem, error)
	RandomCandidate(ctx context.Context, excludeId, excludeCategory string) (*ContentItem, error)
	GetBumpers(ctx context.Context, flavor BumperFlavor) ([]Bumper, error)
	GetShowSteps(ctx context.Context, showId string) ([]ShowStep, error)
}
