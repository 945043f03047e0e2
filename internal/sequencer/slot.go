package sequencer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type SlotId string

const (
	SlotA SlotId = "a"
	SlotB SlotId = "b"
)

func (s SlotId) Other() SlotId {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

type slot struct {
	id     SlotId
	player Player

	item     *ContentItem
	kickGen  uint64
	revealed bool
}

// SlotCache owns the two persistent player mounts. Slots are re-pointed
// at new content, never destroyed; at most one slot is active (visible
// and audible) at a time, and the other holds preloaded content or sits
// idle.
type SlotCache struct {
	cfg    *Config
	logger *slog.Logger

	mu         sync.Mutex
	slots      map[SlotId]*slot
	active     SlotId
	clearTimer *time.Timer
}

func NewSlotCache(a, b Player, cfg *Config, logger *slog.Logger) *SlotCache {
	return &SlotCache{
		cfg:    cfg,
		logger: logger,
		slots: map[SlotId]*slot{
			SlotA: {id: SlotA, player: a},
			SlotB: {id: SlotB, player: b},
		},
	}
}

func (c *SlotCache) ActiveSlot() SlotId {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *SlotCache) InactiveSlot() SlotId {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == SlotA {
		return SlotB
	}
	return SlotA
}

func (c *SlotCache) ItemIn(id SlotId) *ContentItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[id].item
}

// LoadIntoSlot points a slot at new content. Re-issuing the currently
// loaded item is a no-op, so the engine can call it on every transition
// without thrashing the player.
func (c *SlotCache) LoadIntoSlot(ctx context.Context, id SlotId, item *ContentItem, params *LoadParams) error {
	c.mu.Lock()
	s := c.slots[id]
	if s.item != nil && item != nil && s.item.Id == item.Id {
		c.mu.Unlock()
		return nil
	}
	s.item = item
	s.revealed = false
	s.kickGen++ // any running kick loop belongs to the old content
	c.mu.Unlock()

	if item == nil {
		return nil
	}
	return s.player.Load(ctx, params)
}

// SetActiveSlot makes one slot visible and audible and demotes the other.
// The demoted slot keeps its content reference for a grace period so its
// player is not torn down while the new slot is still spinning up.
func (c *SlotCache) SetActiveSlot(ctx context.Context, id SlotId) error {
	c.mu.Lock()
	if c.active == id {
		c.mu.Unlock()
		return nil
	}
	prev := c.active
	c.active = id
	s := c.slots[id]
	s.revealed = false
	if c.clearTimer != nil {
		c.clearTimer.Stop()
	}
	var old *slot
	if prev != "" {
		old = c.slots[prev]
		gen := old.kickGen
		c.clearTimer = time.AfterFunc(c.cfg.SlotClearGrace, func() {
			c.clearSlot(prev, gen)
		})
	}
	c.mu.Unlock()

	if old != nil {
		if err := old.player.SetMuted(ctx, true); err != nil {
			c.logger.WarnContext(ctx, "failed to mute demoted slot", "slot", prev, "error", err)
		}
		if err := old.player.SetVisible(ctx, false); err != nil {
			c.logger.WarnContext(ctx, "failed to hide demoted slot", "slot", prev, "error", err)
		}
	}
	return s.player.Play(ctx)
}

func (c *SlotCache) clearSlot(id SlotId, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.slots[id]
	if c.active == id || s.kickGen != gen {
		// activation bounced back, or the slot was re-pointed at new
		// content within the grace window
		return
	}
	s.item = nil
	s.kickGen++
}

// Reveal lifts the opaque cover over the active slot after the shield
// delay. Call it once the slot's player has actually reported playing.
func (c *SlotCache) Reveal(id SlotId) {
	c.mu.Lock()
	s := c.slots[id]
	if s.revealed || c.active != id {
		c.mu.Unlock()
		return
	}
	s.revealed = true
	gen := s.kickGen
	c.mu.Unlock()

	time.AfterFunc(c.cfg.RevealShieldDelay, func() {
		c.mu.Lock()
		stale := c.slots[id].kickGen != gen || c.active != id
		c.mu.Unlock()
		if stale {
			return
		}
		if err := s.player.SetVisible(context.Background(), true); err != nil {
			c.logger.Warn("failed to reveal slot", "slot", id, "error", err)
		}
	})
}

// StartAutoplayKick polls the slot's reported state while it is expected
// to be playing and reissues play when the browser refused. After
// AutoplayKickMuteAfter consecutive failed kicks the slot is muted before
// the next kick, since muted autoplay is the fallback browsers always
// allow. The loop stops when the slot is re-pointed, demoted, or the
// player settles into playing.
func (c *SlotCache) StartAutoplayKick(ctx context.Context, id SlotId) {
	c.mu.Lock()
	s := c.slots[id]
	s.kickGen++
	gen := s.kickGen
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.cfg.AutoplayKickInterval)
		defer ticker.Stop()

		failed := 0
		muted := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			c.mu.Lock()
			stale := s.kickGen != gen || c.active != id
			c.mu.Unlock()
			if stale {
				return
			}

			switch s.player.ReportedState() {
			case StatePlaying, StateBuffering, StateEnded:
				return
			}

			failed++
			if failed > c.cfg.AutoplayKickMuteAfter && !muted {
				muted = true
				c.logger.Warn("autoplay still blocked, falling back to muted playback",
					"slot", id, "kicks", failed)
				if err := s.player.SetMuted(ctx, true); err != nil {
					c.logger.Warn("failed to mute slot", "slot", id, "error", err)
				}
			}
			if err := s.player.Play(ctx); err != nil {
				c.logger.Warn("failed to reissue play", "slot", id, "error", err)
			}
		}
	}()
}

// StopAutoplayKick invalidates any running kick loop for the slot.
func (c *SlotCache) StopAutoplayKick(id SlotId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[id].kickGen++
}

func (c *SlotCache) Player(id SlotId) Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[id].player
}

// Close stops the pending clear timer.
func (c *SlotCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clearTimer != nil {
		c.clearTimer.Stop()
	}
	for _, s := range c.slots {
		s.kickGen++
	}
}
