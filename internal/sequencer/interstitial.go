package sequencer

import (
	"errors"
	"sync"
	"time"
)

var ErrInterstitialActive = errors.New("interstitial already active")

// InterstitialCoordinator owns the lifecycle of a single overlay slide.
// Only one interstitial may run at a time; overlapping Play calls are
// rejected rather than queued.
type InterstitialCoordinator struct {
	mu     sync.Mutex
	active bool
	timer  *time.Timer
	onDone func()
}

func NewInterstitialCoordinator(onDone func()) *InterstitialCoordinator {
	return &InterstitialCoordinator{onDone: onDone}
}

func (c *InterstitialCoordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Play marks the interstitial active and arms the duration timer. The
// caller is responsible for having paused the underlying timeline first.
func (c *InterstitialCoordinator) Play(durationSeconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return ErrInterstitialActive
	}
	c.active = true
	c.timer = time.AfterFunc(time.Duration(durationSeconds*float64(time.Second)), c.expire)
	return nil
}

func (c *InterstitialCoordinator) expire() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.timer = nil
	done := c.onDone
	c.mu.Unlock()

	if done != nil {
		done()
	}
}

// Close cancels the running interstitial, if any, without firing onDone.
func (c *InterstitialCoordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
