package sequencer

import (
	"log/slog"
	"sync"
	"time"
)

// FadeController produces the audible volume of the active slot as a
// smooth function of time. The instantaneous target is user volume times
// the item's loudness multiplier, clamped to [0,1]; ramps approach it in
// discrete steps so transitions never jump. The last user-set volume is
// sticky across the whole continuous sequence.
type FadeController struct {
	cfg    *Config
	logger *slog.Logger
	apply  func(volume float64)

	mu         sync.Mutex
	userVolume float64
	muted      bool
	current    float64
	rampGen    uint64
}

func NewFadeController(cfg *Config, apply func(volume float64), logger *slog.Logger) *FadeController {
	return &FadeController{
		cfg:        cfg,
		logger:     logger,
		apply:      apply,
		userVolume: cfg.FreshStartVolume,
	}
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// TargetFor is the steady-state volume for an item: user volume corrected
// by the item's loudness multiplier.
func (f *FadeController) TargetFor(item *ContentItem) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targetForLocked(item)
}

func (f *FadeController) targetForLocked(item *ContentItem) float64 {
	mult := 1.0
	if item != nil && item.VolumeMultiplier > 0 {
		mult = item.VolumeMultiplier
	}
	return clampVolume(f.userVolume * mult)
}

// FadeIn ramps from silence to the item's target. Ducked fades cap the
// target so narration stays intelligible over the video layer.
func (f *FadeController) FadeIn(item *ContentItem, ducked bool) {
	f.mu.Lock()
	target := f.targetForLocked(item)
	if ducked && target > f.cfg.DuckedFadeTarget {
		target = f.cfg.DuckedFadeTarget
	}
	if f.muted {
		target = 0
	}
	f.rampGen++
	gen := f.rampGen
	f.current = 0
	f.mu.Unlock()

	f.apply(0)
	f.ramp(gen, 0, target, f.cfg.FadeInDuration, f.cfg.FadeInSteps)
}

// FadeOut ramps the current volume down to silence. It masks imprecise
// end detection and guarantees the next bumper starts over silence.
func (f *FadeController) FadeOut() {
	f.mu.Lock()
	f.rampGen++
	gen := f.rampGen
	from := f.current
	f.mu.Unlock()

	f.ramp(gen, from, 0, f.cfg.FadeOutDuration, f.cfg.FadeOutSteps)
}

func (f *FadeController) ramp(gen uint64, from, to float64, duration time.Duration, steps int) {
	if steps < 1 {
		steps = 1
	}
	interval := duration / time.Duration(steps)
	go func() {
		for i := 1; i <= steps; i++ {
			time.Sleep(interval)
			f.mu.Lock()
			if f.rampGen != gen {
				f.mu.Unlock()
				return
			}
			v := from + (to-from)*float64(i)/float64(steps)
			f.current = v
			f.mu.Unlock()
			f.apply(v)
		}
	}()
}

// SetUserVolume is the user slider: it cancels any ramp and applies
// immediately, and the value persists as the fade-in target of every
// later transition.
func (f *FadeController) SetUserVolume(v float64) {
	f.mu.Lock()
	f.userVolume = clampVolume(v)
	f.muted = false
	f.rampGen++
	f.current = f.userVolume
	out := f.current
	f.mu.Unlock()
	f.apply(out)
}

func (f *FadeController) ToggleMute() bool {
	f.mu.Lock()
	f.muted = !f.muted
	f.rampGen++
	out := 0.0
	if !f.muted {
		out = f.userVolume
	}
	f.current = out
	muted := f.muted
	f.mu.Unlock()
	f.apply(out)
	return muted
}

// ResetForManualSelect puts volume back to the defined fresh-start level;
// a deliberate pick always comes in audible.
func (f *FadeController) ResetForManualSelect() {
	f.mu.Lock()
	f.userVolume = f.cfg.FreshStartVolume
	f.muted = false
	f.rampGen++
	f.current = 0
	f.mu.Unlock()
	f.apply(0)
}

// CancelRamps invalidates any in-flight ramp without touching volume.
func (f *FadeController) CancelRamps() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rampGen++
}

func (f *FadeController) UserVolume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userVolume
}

func (f *FadeController) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *FadeController) Current() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}
