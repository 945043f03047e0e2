package sequencer

import (
	"math/rand"
	"sync"
)

// BumperQueue hands out bumpers front-to-back from a shuffled order and
// reshuffles when exhausted. The first bumper of a refill must differ
// from the last one played, unless only one bumper exists.
type BumperQueue struct {
	mu      sync.Mutex
	pool    map[BumperFlavor][]Bumper
	queue   map[BumperFlavor][]Bumper
	last    map[BumperFlavor]string
	randInt func(n int) int
}

func NewBumperQueue(generic, news []Bumper) *BumperQueue {
	return &BumperQueue{
		pool: map[BumperFlavor][]Bumper{
			BumperGeneric: generic,
			BumperNews:    news,
		},
		queue:   make(map[BumperFlavor][]Bumper),
		last:    make(map[BumperFlavor]string),
		randInt: rand.Intn,
	}
}

// FlavorFor picks the bumper flavor for the upcoming item: article slides
// get the news ident, everything else the generic one. A flavor with no
// clips falls back to generic.
func (q *BumperQueue) FlavorFor(item *ContentItem) BumperFlavor {
	q.mu.Lock()
	defer q.mu.Unlock()
	if item != nil && item.Kind == KindSlide && len(q.pool[BumperNews]) > 0 {
		return BumperNews
	}
	return BumperGeneric
}

// Next consumes the front of the flavor's queue, refilling with a fresh
// shuffle when empty. Returns nil when no bumpers are configured at all.
func (q *BumperQueue) Next(flavor BumperFlavor) *Bumper {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pool[flavor]) == 0 {
		flavor = BumperGeneric
		if len(q.pool[flavor]) == 0 {
			return nil
		}
	}

	if len(q.queue[flavor]) == 0 {
		q.queue[flavor] = q.shuffled(flavor)
	}

	bumper := q.queue[flavor][0]
	q.queue[flavor] = q.queue[flavor][1:]
	q.last[flavor] = bumper.Id
	return &bumper
}

func (q *BumperQueue) shuffled(flavor BumperFlavor) []Bumper {
	src := q.pool[flavor]
	out := make([]Bumper, len(src))
	copy(out, src)
	for i := len(out) - 1; i > 0; i-- {
		j := q.randInt(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	// avoid an immediate repeat across the refill boundary
	if len(out) > 1 && out[0].Id == q.last[flavor] {
		j := 1 + q.randInt(len(out)-1)
		out[0], out[j] = out[j], out[0]
	}
	return out
}
