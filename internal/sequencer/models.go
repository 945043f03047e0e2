package sequencer

type Kind string

const (
	KindVideo  Kind = "video"
	KindSlide  Kind = "slide"
	KindStream Kind = "stream"
)

// ContentItem is one playable catalog entry. Equality is by Id: the engine
// detects "same item" across events by comparing ids, never pointers.
type ContentItem struct {
	Id                 string  `json:"id"`
	Kind               Kind    `json:"kind"`
	Title              string  `json:"title"`
	MediaURL           string  `json:"media_url"`
	ImageURL           string  `json:"image_url,omitempty"`
	AudioURL           string  `json:"audio_url,omitempty"`
	Category           string  `json:"category"`
	DurationHint       float64 `json:"duration_hint,omitempty"`
	VolumeMultiplier   float64 `json:"volume_multiplier,omitempty"`
	StartOffsetSeconds float64 `json:"start_offset_seconds,omitempty"`
}

// HasNarration reports whether the item carries its own narration audio
// track, in which case any underlying video layer is ducked instead of
// faded to full volume.
func (i *ContentItem) HasNarration() bool {
	return i.AudioURL != ""
}

type BumperFlavor string

const (
	BumperGeneric BumperFlavor = "generic"
	BumperNews    BumperFlavor = "news"
)

// Bumper is a short branded clip shown before each content item.
type Bumper struct {
	Id       string `json:"id"`
	MediaURL string `json:"media_url"`
}

// ShowStep is one entry of a programmed "daily show" script. Steps are
// resolved to full items lazily, at the moment they become current.
type ShowStep struct {
	Kind Kind   `json:"kind"`
	Id   string `json:"id"`
}

type Phase string

const (
	PhaseIdle                  Phase = "idle"
	PhaseShowingBumper         Phase = "showing_bumper"
	PhasePlayingContent        Phase = "playing_content"
	PhasePausedForInterstitial Phase = "paused_for_interstitial"
)

// EndReason classifies why an item stopped being current.
type EndReason string

const (
	EndReasonEnded       EndReason = "ended"
	EndReasonError       EndReason = "error"
	EndReasonSkipped     EndReason = "skipped"
	EndReasonInterrupted EndReason = "interrupted"
)

// Snapshot is the read-only projection the UI layer renders from.
type Snapshot struct {
	Phase           Phase        `json:"phase"`
	CurrentItem     *ContentItem `json:"current_item"`
	NextItemPreview *ContentItem `json:"next_item_preview"`
	IsBumperVisible bool         `json:"is_bumper_visible"`
	IsPlaying       bool         `json:"is_playing"`
	ActiveSlotId    SlotId       `json:"active_slot_id"`
	Volume          float64      `json:"volume"`
	Muted           bool         `json:"muted"`
}

// Transition describes a finished item, for the as-played log.
type Transition struct {
	Item            ContentItem
	Reason          EndReason
	ProgressSeconds float64
}
