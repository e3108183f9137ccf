// Package hotness scores how often H3 cells are inspected. Scores decay
// exponentially so a cell cools down once viewers move elsewhere.
package hotness

import (
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const numShards = 64

type Tracker struct {
	halfLife float64 // seconds
	now      func() time.Time
	shards   [numShards]shard
}

type shard struct {
	mu    sync.Mutex
	cells map[string]entry
}

type entry struct {
	score float64
	at    time.Time
}

// New returns a Tracker. halfLife <= 0 means one minute.
func New(halfLife time.Duration) *Tracker {
	if halfLife <= 0 {
		halfLife = time.Minute
	}
	t := &Tracker{halfLife: halfLife.Seconds(), now: time.Now}
	for i := range t.shards {
		t.shards[i].cells = make(map[string]entry)
	}
	return t
}

// Observe records one inspection of cell and returns its new score.
func (t *Tracker) Observe(cell string) float64 {
	if cell == "" {
		return 0
	}
	now := t.now()
	s := t.shard(cell)

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cells[cell]
	if !ok {
		e = entry{at: now}
	}
	e.score = t.decayed(e, now) + 1
	e.at = now
	s.cells[cell] = e
	return e.score
}

func (t *Tracker) Score(cell string) float64 {
	s := t.shard(cell)
	s.mu.Lock()
	e, ok := s.cells[cell]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	return t.decayed(e, t.now())
}

func (t *Tracker) Forget(cells ...string) {
	for _, c := range cells {
		s := t.shard(c)
		s.mu.Lock()
		delete(s.cells, c)
		s.mu.Unlock()
	}
}

// Prune drops cells whose score fell below floor and returns how many
// cells remain tracked.
func (t *Tracker) Prune(floor float64) int {
	now := t.now()
	left := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for c, e := range s.cells {
			if t.decayed(e, now) < floor {
				delete(s.cells, c)
			}
		}
		left += len(s.cells)
		s.mu.Unlock()
	}
	return left
}

func (t *Tracker) Len() int {
	n := 0
	for i := range t.shards {
		t.shards[i].mu.Lock()
		n += len(t.shards[i].cells)
		t.shards[i].mu.Unlock()
	}
	return n
}

// score * e^(-ln2 * dt / halfLife)
func (t *Tracker) decayed(e entry, now time.Time) float64 {
	dt := now.Sub(e.at).Seconds()
	if e.score == 0 || dt <= 0 {
		return e.score
	}
	return e.score * math.Exp(-math.Ln2*dt/t.halfLife)
}

func (t *Tracker) shard(cell string) *shard {
	return &t.shards[xxhash.Sum64String(cell)&(numShards-1)]
}
