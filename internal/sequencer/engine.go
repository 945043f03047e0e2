package sequencer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine is the continuous autoplay state machine. It decides what plays
// next, inserts a bumper before every item, reveals content when the
// bumper is done, advances near the end of each item, and survives the
// usual embedded-player misbehaviour without ever freezing the screen.
//
// The engine is the only writer of slot activation and volume; the slot
// cache and fade controller are followers. Timer callbacks and async
// fetches carry the item generation they were armed under and are dropped
// when the generation has moved on, which is what makes manual selection
// always win over a pending auto-advance.
type Engine struct {
	cfg          *Config
	source       ContentSource
	slots        *SlotCache
	volume       *FadeController
	bumperScreen BumperScreen
	overlay      Overlay
	interstitial *InterstitialCoordinator
	logger       *slog.Logger

	mu              sync.Mutex
	phase           Phase
	current         *ContentItem
	pending         *ContentItem
	pendingSlot     SlotId
	progressSeconds float64
	startedAt       time.Time
	advanceSignaled bool
	fadeInStarted   bool
	itemGen         uint64

	preloaded  *ContentItem
	preloadGen uint64

	showSteps []ShowStep
	showIndex int
	showMode  bool

	saved         *ContentItem
	savedProgress float64

	isPlaying bool
	closed    bool

	bumperTimer *time.Timer
	slideTimer  *time.Timer
	manualTimer *time.Timer

	bumpers *BumperQueue

	onTransition []func(Transition)
	onSnapshot   []func(Snapshot)
}

type Params struct {
	Config       *Config
	Source       ContentSource
	SlotA        Player
	SlotB        Player
	BumperScreen BumperScreen
	Overlay      Overlay
	Logger       *slog.Logger
}

func New(params *Params) *Engine {
	cfg := params.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}

	e := &Engine{
		cfg:          cfg,
		source:       params.Source,
		bumperScreen: params.BumperScreen,
		overlay:      params.Overlay,
		logger:       params.Logger,
		phase:        PhaseIdle,
	}
	e.slots = NewSlotCache(params.SlotA, params.SlotB, cfg, params.Logger)
	e.volume = NewFadeController(cfg, e.applyVolume, params.Logger)
	e.interstitial = NewInterstitialCoordinator(e.resumeFromInterstitial)
	return e
}

// applyVolume is the fade controller's single write path into the active
// player.
func (e *Engine) applyVolume(v float64) {
	active := e.slots.ActiveSlot()
	if active == "" {
		return
	}
	if err := e.slots.Player(active).SetVolume(context.Background(), v); err != nil {
		e.logger.Warn("failed to apply volume", "slot", active, "error", err)
	}
}

// OnTransition registers a listener for finished items. Register before
// Start.
func (e *Engine) OnTransition(fn func(Transition)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTransition = append(e.onTransition, fn)
}

// OnSnapshot registers a listener for observable-state changes. Register
// before Start.
func (e *Engine) OnSnapshot(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onSnapshot = append(e.onSnapshot, fn)
}

type StartParams struct {
	// InitialItemId is a deep-link target; it wins over ShowId.
	InitialItemId string
	// ShowId selects a programmed daily-show script.
	ShowId string
}

// Start loads bumpers, resolves the initial target and enters the first
// bumper transition. An empty pool is not an error: the engine stays idle
// until content appears.
func (e *Engine) Start(ctx context.Context, params *StartParams) error {
	generic, err := e.source.GetBumpers(ctx, BumperGeneric)
	if err != nil {
		return fmt.Errorf("failed to get generic bumpers: %w", err)
	}
	news, err := e.source.GetBumpers(ctx, BumperNews)
	if err != nil {
		return fmt.Errorf("failed to get news bumpers: %w", err)
	}

	e.mu.Lock()
	e.bumpers = NewBumperQueue(generic, news)
	e.mu.Unlock()

	if params.ShowId != "" {
		steps, err := e.source.GetShowSteps(ctx, params.ShowId)
		if err != nil {
			e.logger.WarnContext(ctx, "failed to load show, falling back to random rotation",
				"show_id", params.ShowId, "error", err)
		} else if len(steps) > 0 {
			e.mu.Lock()
			e.showSteps = steps
			e.showIndex = 0
			e.showMode = true
			e.mu.Unlock()
		}
	}

	var initial *ContentItem
	if params.InitialItemId != "" {
		initial, err = e.source.GetItem(ctx, params.InitialItemId)
		if err != nil {
			e.logger.WarnContext(ctx, "deep link target not found",
				"item_id", params.InitialItemId, "error", err)
		}
	}
	if initial == nil {
		initial = e.pickNext(ctx, nil)
	}
	if initial == nil {
		e.logger.InfoContext(ctx, "no eligible content, staying idle")
		e.emitSnapshot()
		return nil
	}

	e.startTransition(ctx, initial)
	return nil
}

// startTransition begins a bumper-then-content cycle for item. It bumps
// the item generation, which orphans every timer and async result armed
// for the previous item.
func (e *Engine) startTransition(ctx context.Context, item *ContentItem) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.itemGen++
	gen := e.itemGen
	e.stopTimersLocked()
	e.advanceSignaled = false
	e.fadeInStarted = false
	e.phase = PhaseShowingBumper
	// the previous item is gone; snapshots fall back to the pending item
	// so surfaces show the upcoming title behind the bumper
	e.current = nil
	e.pending = item
	target := e.pendingSlotLocked()
	e.pendingSlot = target
	if e.bumpers == nil {
		e.bumpers = NewBumperQueue(nil, nil)
	}
	flavor := e.bumpers.FlavorFor(item)
	bumper := e.bumpers.Next(flavor)
	e.mu.Unlock()

	if err := e.slots.LoadIntoSlot(ctx, target, item, &LoadParams{
		ItemId:             item.Id,
		URL:                item.MediaURL,
		Autoplay:           true,
		Muted:              true,
		StartOffsetSeconds: item.StartOffsetSeconds,
		Volume:             0,
	}); err != nil {
		e.logger.WarnContext(ctx, "failed to load slot", "slot", target, "item_id", item.Id, "error", err)
	}

	if bumper == nil {
		// no bumpers configured at all; reveal straight away
		e.revealContent(ctx, gen)
		return
	}

	if err := e.bumperScreen.Show(ctx, bumper); err != nil {
		e.logger.WarnContext(ctx, "failed to show bumper", "bumper_id", bumper.Id, "error", err)
	}

	e.mu.Lock()
	if e.itemGen == gen {
		e.bumperTimer = time.AfterFunc(e.cfg.BumperCeiling, func() {
			e.revealContent(context.Background(), gen)
		})
	}
	e.mu.Unlock()

	e.emitSnapshot()
}

func (e *Engine) pendingSlotLocked() SlotId {
	active := e.slots.ActiveSlot()
	if active == "" {
		return SlotA
	}
	return active.Other()
}

// HandleBumperEnded is the bumper player's own end-of-playback event. The
// ceiling timer is the safety net for when this never arrives.
func (e *Engine) HandleBumperEnded(ctx context.Context) {
	e.mu.Lock()
	gen := e.itemGen
	e.mu.Unlock()
	e.revealContent(ctx, gen)
}

// revealContent swaps the prepared slot in behind the finishing bumper.
// Content is never audible before this point.
func (e *Engine) revealContent(ctx context.Context, gen uint64) {
	e.mu.Lock()
	if e.closed || e.itemGen != gen || e.phase != PhaseShowingBumper || e.pending == nil {
		e.mu.Unlock()
		return
	}
	if e.bumperTimer != nil {
		e.bumperTimer.Stop()
		e.bumperTimer = nil
	}
	e.current = e.pending
	e.pending = nil
	e.phase = PhasePlayingContent
	e.isPlaying = true
	e.progressSeconds = e.current.StartOffsetSeconds
	e.startedAt = time.Now()
	slot := e.pendingSlot
	item := e.current
	e.mu.Unlock()

	if err := e.bumperScreen.Hide(ctx); err != nil {
		e.logger.WarnContext(ctx, "failed to hide bumper", "error", err)
	}
	if err := e.slots.SetActiveSlot(ctx, slot); err != nil {
		e.logger.WarnContext(ctx, "failed to activate slot", "slot", slot, "error", err)
	}
	e.slots.StartAutoplayKick(ctx, slot)

	if item.Kind == KindSlide {
		duration := item.DurationHint
		if duration <= 0 {
			duration = e.cfg.DefaultSlideDurationSeconds
		}
		e.mu.Lock()
		if e.itemGen == gen {
			e.slideTimer = time.AfterFunc(time.Duration(duration*float64(time.Second)), func() {
				e.signalAdvance(context.Background(), gen, EndReasonEnded)
			})
		}
		e.mu.Unlock()
		// slides render their own layer; no player "playing" report will
		// arrive, so fade in now
		e.beginFadeIn(ctx, gen, slot)
	}

	go e.preloadNext(context.WithoutCancel(ctx), gen, item)
	e.emitSnapshot()
}

// beginFadeIn starts the audio ramp and lifts the reveal shield exactly
// once per item, on the first evidence the player actually started.
func (e *Engine) beginFadeIn(ctx context.Context, gen uint64, slot SlotId) {
	e.mu.Lock()
	if e.closed || e.itemGen != gen || e.phase != PhasePlayingContent || e.fadeInStarted {
		e.mu.Unlock()
		return
	}
	e.fadeInStarted = true
	item := e.current
	e.mu.Unlock()

	e.slots.Reveal(slot)
	if !e.volume.Muted() {
		if err := e.slots.Player(slot).SetMuted(ctx, false); err != nil {
			e.logger.WarnContext(ctx, "failed to unmute active slot", "slot", slot, "error", err)
		}
	}
	e.volume.FadeIn(item, item.HasNarration())
}

// HandleSlotReady records a slot's player becoming ready. Informational;
// the engine keys its actions off playing reports instead.
func (e *Engine) HandleSlotReady(ctx context.Context, slot SlotId) {
	e.logger.DebugContext(ctx, "slot ready", "slot", slot)
}

// HandleSlotPlaying is called when a slot reports it truly entered the
// playing state (as opposed to being commanded to play).
func (e *Engine) HandleSlotPlaying(ctx context.Context, slot SlotId) {
	e.mu.Lock()
	gen := e.itemGen
	active := e.slots.ActiveSlot()
	e.mu.Unlock()
	if slot != active {
		return
	}
	e.beginFadeIn(ctx, gen, slot)
}

// HandleSlotProgress consumes a progress tick from a slot's player.
// Progress from the active slot drives near-end detection; progress from
// the inactive slot is ignored.
func (e *Engine) HandleSlotProgress(ctx context.Context, slot SlotId, playedSeconds, durationSeconds float64) {
	e.mu.Lock()
	if e.closed || e.phase != PhasePlayingContent || slot != e.slots.ActiveSlot() || e.current == nil {
		e.mu.Unlock()
		return
	}
	gen := e.itemGen
	item := e.current
	e.progressSeconds = playedSeconds
	nearEnd := item.Kind != KindSlide &&
		durationSeconds > 0 &&
		durationSeconds-playedSeconds <= e.cfg.NearEndThresholdSeconds
	e.mu.Unlock()

	e.beginFadeIn(ctx, gen, slot)

	if nearEnd {
		e.signalAdvance(ctx, gen, EndReasonEnded)
	}
}

// HandleSlotEnded is the player's own end event. Near-end normally fires
// first; the advance guard makes whichever arrives second a no-op.
func (e *Engine) HandleSlotEnded(ctx context.Context, slot SlotId) {
	e.mu.Lock()
	gen := e.itemGen
	active := e.slots.ActiveSlot()
	e.mu.Unlock()
	if slot != active {
		return
	}
	e.signalAdvance(ctx, gen, EndReasonEnded)
}

// HandleSlotError advances past a broken item instead of retrying it
// forever. Errors on the inactive slot are logged only; it is not
// user-facing until activation.
func (e *Engine) HandleSlotError(ctx context.Context, slot SlotId, code int) {
	e.mu.Lock()
	gen := e.itemGen
	active := e.slots.ActiveSlot()
	e.mu.Unlock()

	if slot != active {
		e.logger.WarnContext(ctx, "inactive slot reported error", "slot", slot, "code", code)
		return
	}
	e.logger.WarnContext(ctx, "active slot reported error, advancing", "slot", slot, "code", code)
	e.signalAdvance(ctx, gen, EndReasonError)
}

// signalAdvance fires the once-per-item advance: fade out, log the
// transition, pick what plays next. Duplicate signals (a second near-end
// tick, an error racing the end event) are swallowed by the guard flag.
func (e *Engine) signalAdvance(ctx context.Context, gen uint64, reason EndReason) {
	e.mu.Lock()
	if e.closed || e.itemGen != gen || e.phase != PhasePlayingContent || e.advanceSignaled || e.current == nil {
		e.mu.Unlock()
		return
	}
	e.advanceSignaled = true
	item := *e.current
	progress := e.progressSeconds
	e.mu.Unlock()

	e.volume.FadeOut()
	e.emitTransition(Transition{Item: item, Reason: reason, ProgressSeconds: progress})

	go e.advance(context.WithoutCancel(ctx), gen, &item)
}

func (e *Engine) advance(ctx context.Context, gen uint64, from *ContentItem) {
	next := e.takePreloaded(gen, from)
	if next == nil {
		next = e.pickNext(ctx, from)
	}

	e.mu.Lock()
	stale := e.closed || e.itemGen != gen
	if !stale && next == nil {
		// nothing eligible; idle silently until the pool changes
		e.phase = PhaseIdle
		e.current = nil
		e.isPlaying = false
	}
	e.mu.Unlock()

	if stale {
		return
	}
	if next == nil {
		e.emitSnapshot()
		return
	}
	e.startTransition(ctx, next)
}

// takePreloaded consumes the preloaded candidate if it is still relevant.
// Programmed shows never use it: steps are resolved in order.
func (e *Engine) takePreloaded(gen uint64, from *ContentItem) *ContentItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.showMode || e.itemGen != gen || e.preloaded == nil {
		return nil
	}
	cand := e.preloaded
	e.preloaded = nil
	if from != nil && cand.Id == from.Id {
		return nil
	}
	return cand
}

// pickNext resolves the next item: the programmed show's next step while
// one is running, otherwise a category-diverse random pick. A show step
// that fails to resolve is skipped, not stalled on.
func (e *Engine) pickNext(ctx context.Context, from *ContentItem) *ContentItem {
	for {
		e.mu.Lock()
		if !e.showMode || e.showIndex >= len(e.showSteps) {
			e.showMode = false
			e.mu.Unlock()
			break
		}
		step := e.showSteps[e.showIndex]
		e.showIndex++
		e.mu.Unlock()

		item, err := e.source.GetItem(ctx, step.Id)
		if err != nil {
			e.logger.WarnContext(ctx, "show step failed to resolve, skipping",
				"step_id", step.Id, "error", err)
			continue
		}
		return item
	}

	excludeId, excludeCategory := "", ""
	if from != nil {
		excludeId = from.Id
		excludeCategory = from.Category
	}
	item, err := e.source.RandomCandidate(ctx, excludeId, excludeCategory)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to pick random candidate", "error", err)
		return nil
	}
	return item
}

// preloadNext fetches one upcoming candidate and warms the inactive slot
// with it. A newer preload or a new item generation supersedes the
// result.
func (e *Engine) preloadNext(ctx context.Context, gen uint64, from *ContentItem) {
	e.mu.Lock()
	if e.closed || e.showMode || e.itemGen != gen {
		e.mu.Unlock()
		return
	}
	e.preloadGen++
	pg := e.preloadGen
	e.mu.Unlock()

	cand, err := e.source.RandomCandidate(ctx, from.Id, from.Category)
	if err != nil {
		e.logger.WarnContext(ctx, "preload failed, will fetch at transition time", "error", err)
		return
	}
	if cand == nil {
		return
	}

	e.mu.Lock()
	stale := e.closed || e.itemGen != gen || e.preloadGen != pg
	if !stale {
		e.preloaded = cand
	}
	inactive := e.pendingSlotLocked()
	e.mu.Unlock()
	if stale {
		return
	}

	if err := e.slots.LoadIntoSlot(ctx, inactive, cand, &LoadParams{
		ItemId:             cand.Id,
		URL:                cand.MediaURL,
		Autoplay:           false,
		Muted:              true,
		StartOffsetSeconds: cand.StartOffsetSeconds,
		Volume:             0,
	}); err != nil {
		e.logger.WarnContext(ctx, "failed to warm inactive slot", "slot", inactive, "error", err)
	}

	e.emitSnapshot()
}

// SelectManually short-circuits whatever is happening and plays the
// chosen item after the safety delay. It always wins over a pending
// auto-advance and exits programmed-show mode.
func (e *Engine) SelectManually(ctx context.Context, itemId string) error {
	item, err := e.source.GetItem(ctx, itemId)
	if err != nil {
		return fmt.Errorf("failed to resolve selected item: %w", err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.itemGen++
	gen := e.itemGen
	e.stopTimersLocked()
	// a player ended event landing inside the select delay must not start
	// a competing auto-advance
	e.advanceSignaled = true
	e.showMode = false
	e.preloaded = nil
	e.saved = nil
	var interrupted *Transition
	if e.phase == PhasePlayingContent && e.current != nil {
		interrupted = &Transition{Item: *e.current, Reason: EndReasonSkipped, ProgressSeconds: e.progressSeconds}
	}
	e.manualTimer = time.AfterFunc(e.cfg.ManualSelectDelay, func() {
		e.mu.Lock()
		stale := e.closed || e.itemGen != gen
		e.mu.Unlock()
		if stale {
			return
		}
		e.startTransition(context.Background(), item)
	})
	e.mu.Unlock()

	// a selection made under an interstitial cancels it; the expiry timer
	// must not reinstate the saved item over the viewer's pick
	if e.interstitial.Active() {
		e.interstitial.Close()
		if err := e.overlay.Hide(ctx); err != nil {
			e.logger.WarnContext(ctx, "failed to hide interstitial", "error", err)
		}
	}

	e.volume.ResetForManualSelect()
	if interrupted != nil {
		e.emitTransition(*interrupted)
	}
	return nil
}

// PlayInterstitial pauses the main timeline under a news overlay and
// arranges for the interrupted item to resume where it left off.
func (e *Engine) PlayInterstitial(ctx context.Context, itemId string, durationSeconds float64) error {
	item, err := e.source.GetItem(ctx, itemId)
	if err != nil {
		return fmt.Errorf("failed to resolve interstitial item: %w", err)
	}

	duration := durationSeconds
	if duration <= 0 {
		duration = item.DurationHint
	}
	if duration <= 0 {
		duration = e.cfg.DefaultSlideDurationSeconds
	}

	// the coordinator is the single admission gate: a call that loses the
	// race is rejected here, before the timeline is touched
	if err := e.interstitial.Play(duration); err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.interstitial.Close()
		return nil
	}
	e.itemGen++
	e.stopTimersLocked()
	var interrupted *Transition
	if e.phase == PhasePlayingContent && e.current != nil {
		saved := *e.current
		e.saved = &saved
		e.savedProgress = e.progressSeconds
		interrupted = &Transition{Item: saved, Reason: EndReasonInterrupted, ProgressSeconds: e.progressSeconds}
	} else {
		e.saved = nil
	}
	e.phase = PhasePausedForInterstitial
	e.isPlaying = false
	active := e.slots.ActiveSlot()
	e.mu.Unlock()

	e.volume.FadeOut()
	if active != "" {
		e.slots.StopAutoplayKick(active)
		if err := e.slots.Player(active).Pause(ctx); err != nil {
			e.logger.WarnContext(ctx, "failed to pause active slot", "slot", active, "error", err)
		}
	}

	if err := e.overlay.Show(ctx, item, duration); err != nil {
		e.logger.WarnContext(ctx, "failed to show interstitial", "item_id", item.Id, "error", err)
	}

	if interrupted != nil {
		e.emitTransition(*interrupted)
	}
	e.emitSnapshot()
	return nil
}

// resumeFromInterstitial restores the interrupted item at its saved
// offset through a fresh bumper transition, or picks something new when
// nothing was interrupted.
func (e *Engine) resumeFromInterstitial() {
	ctx := context.Background()
	if err := e.overlay.Hide(ctx); err != nil {
		e.logger.Warn("failed to hide interstitial", "error", err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	saved := e.saved
	progress := e.savedProgress
	e.saved = nil
	e.mu.Unlock()

	if saved != nil {
		resumed := *saved
		resumed.StartOffsetSeconds = progress
		e.startTransition(ctx, &resumed)
		return
	}

	next := e.pickNext(ctx, nil)
	if next == nil {
		e.mu.Lock()
		e.phase = PhaseIdle
		e.mu.Unlock()
		e.emitSnapshot()
		return
	}
	e.startTransition(ctx, next)
}

func (e *Engine) SetVolume(ctx context.Context, v float64) {
	e.volume.SetUserVolume(v)
	e.emitSnapshot()
}

func (e *Engine) ToggleMute(ctx context.Context) {
	muted := e.volume.ToggleMute()
	active := e.slots.ActiveSlot()
	if active != "" {
		if err := e.slots.Player(active).SetMuted(ctx, muted); err != nil {
			e.logger.WarnContext(ctx, "failed to set mute on active slot", "slot", active, "error", err)
		}
	}
	e.emitSnapshot()
}

func (e *Engine) TogglePlayPause(ctx context.Context) {
	e.mu.Lock()
	if e.closed || e.phase != PhasePlayingContent {
		e.mu.Unlock()
		return
	}
	e.isPlaying = !e.isPlaying
	playing := e.isPlaying
	active := e.slots.ActiveSlot()
	e.mu.Unlock()

	if active == "" {
		return
	}
	if playing {
		if err := e.slots.Player(active).Play(ctx); err != nil {
			e.logger.WarnContext(ctx, "failed to resume active slot", "slot", active, "error", err)
		}
		e.slots.StartAutoplayKick(ctx, active)
	} else {
		e.slots.StopAutoplayKick(active)
		if err := e.slots.Player(active).Pause(ctx); err != nil {
			e.logger.WarnContext(ctx, "failed to pause active slot", "slot", active, "error", err)
		}
	}
	e.emitSnapshot()
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	current := e.current
	if current == nil {
		// during a bumper the upcoming item is already decided; surfaces
		// show its title behind the bumper
		current = e.pending
	}
	return Snapshot{
		Phase:           e.phase,
		CurrentItem:     current,
		NextItemPreview: e.preloaded,
		IsBumperVisible: e.phase == PhaseShowingBumper,
		IsPlaying:       e.isPlaying && e.phase == PhasePlayingContent,
		ActiveSlotId:    e.slots.ActiveSlot(),
		Volume:          e.volume.UserVolume(),
		Muted:           e.volume.Muted(),
	}
}

// Close tears the engine down. No persistence: a channel session lives
// and dies with its tab.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.itemGen++
	e.stopTimersLocked()
	e.mu.Unlock()

	e.interstitial.Close()
	e.volume.CancelRamps()
	e.slots.Close()
}

func (e *Engine) stopTimersLocked() {
	if e.bumperTimer != nil {
		e.bumperTimer.Stop()
		e.bumperTimer = nil
	}
	if e.slideTimer != nil {
		e.slideTimer.Stop()
		e.slideTimer = nil
	}
	if e.manualTimer != nil {
		e.manualTimer.Stop()
		e.manualTimer = nil
	}
}

func (e *Engine) emitTransition(t Transition) {
	e.mu.Lock()
	listeners := make([]func(Transition), len(e.onTransition))
	copy(listeners, e.onTransition)
	e.mu.Unlock()
	for _, fn := range listeners {
		fn(t)
	}
}

func (e *Engine) emitSnapshot() {
	snap := e.Snapshot()
	e.mu.Lock()
	listeners := make([]func(Snapshot), len(e.onSnapshot))
	copy(listeners, e.onSnapshot)
	e.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
