package sequencer

import "time"

// Config names every timing the engine depends on. The values started as
// inline literals in the web players and were tuned per surface; TV
// hardware needs more headroom than desktop, so each surface gets its own
// profile instead of sharing one set of magic numbers.
type Config struct {
	// BumperCeiling is the hard upper bound on bumper playback. If the
	// bumper player never reports ended (stuck iframe, blocked autoplay),
	// the ceiling fires and the transition proceeds anyway.
	BumperCeiling time.Duration

	// NearEndThresholdSeconds is how close to the reported duration a
	// progress tick has to be to count as near-end. Slightly more than one
	// progress interval, so the advance lands before the player's own
	// ended event.
	NearEndThresholdSeconds float64

	// ManualSelectDelay separates a manual pick from the slot swap, so a
	// rapid series of taps cannot race the audio fade of the previous
	// item.
	ManualSelectDelay time.Duration

	// SlotClearGrace is how long a deactivated slot keeps its content
	// reference before it is cleared. Clearing too early tears the old
	// player down mid-transition and flickers on slow TVs.
	SlotClearGrace time.Duration

	// RevealShieldDelay keeps an opaque cover over a slot after its player
	// first reports playing, hiding third-party branding flashes.
	RevealShieldDelay time.Duration

	// AutoplayKickInterval is the poll interval of the autoplay correction
	// loop. AutoplayKickMuteAfter is how many consecutive failed kicks are
	// tolerated before the slot is muted; muted autoplay is the fallback
	// browsers always allow.
	AutoplayKickInterval  time.Duration
	AutoplayKickMuteAfter int

	FadeInDuration  time.Duration
	FadeInSteps     int
	FadeOutDuration time.Duration
	FadeOutSteps    int

	// DuckedFadeTarget is the fade-in ceiling for a video layer that plays
	// under narration audio.
	DuckedFadeTarget float64

	// FreshStartVolume is the level a manual selection resets to.
	FreshStartVolume float64

	// DefaultSlideDurationSeconds is used when a slide carries no authored
	// duration.
	DefaultSlideDurationSeconds float64
}

func DefaultConfig() *Config {
	return &Config{
		BumperCeiling:               10 * time.Second,
		NearEndThresholdSeconds:     1.2,
		ManualSelectDelay:           600 * time.Millisecond,
		SlotClearGrace:              400 * time.Millisecond,
		RevealShieldDelay:           350 * time.Millisecond,
		AutoplayKickInterval:        250 * time.Millisecond,
		AutoplayKickMuteAfter:       4,
		FadeInDuration:              1100 * time.Millisecond,
		FadeInSteps:                 22,
		FadeOutDuration:             time.Second,
		FadeOutSteps:                10,
		DuckedFadeTarget:            0.3,
		FreshStartVolume:            0.8,
		DefaultSlideDurationSeconds: 15,
	}
}

// TVConfig widens the delays that exist to cover slow player startup.
func TVConfig() *Config {
	cfg := DefaultConfig()
	cfg.ManualSelectDelay = 800 * time.Millisecond
	cfg.SlotClearGrace = 600 * time.Millisecond
	cfg.RevealShieldDelay = 500 * time.Millisecond
	cfg.NearEndThresholdSeconds = 1.5
	return cfg
}

// ConfigForPlatform maps a surface name to its timing profile. Unknown
// platforms get the default profile.
func ConfigForPlatform(platform string) *Config {
	if platform == "tv" {
		return TVConfig()
	}
	return DefaultConfig()
}
