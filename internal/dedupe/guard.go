// ABOUTME: Remembers recently used form submission tokens so a resubmitted form is ignored
// ABOUTME: Bounded by age and count; oldest tokens are dropped first

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// Default bounds for a Guard used by the chat UI
const (
	DefaultWindow   = 10 * time.Minute
	DefaultCapacity = 10_000
)

type claim struct {
	at   time.Time
	elem *list.Element
}

// Guard tracks submission tokens for a limited window. The first Claim of a
// token succeeds; repeats within the window are reported as duplicates.
type Guard struct {
	mu       sync.Mutex
	claims   map[string]*claim
	byAge    *list.List // token strings, oldest at front
	window   time.Duration
	capacity int
	now      func() time.Time
	stop     chan struct{}
	stopped  bool
}

// New creates a Guard and starts its background sweeper.
func New(window time.Duration, capacity int) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	g := &Guard{
		claims:   make(map[string]*claim),
		byAge:    list.New(),
		window:   window,
		capacity: capacity,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go g.sweepLoop()
	return g
}

// Claim records token and reports whether this is its first use inside the window.
// Checking and recording happen under one lock so two racing requests cannot both win.
func (g *Guard) Claim(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if c, ok := g.claims[token]; ok {
		if now.Sub(c.at) < g.window {
			return false
		}
		g.byAge.Remove(c.elem)
		delete(g.claims, token)
	}

	for len(g.claims) >= g.capacity {
		g.dropOldest()
	}

	g.claims[token] = &claim{at: now, elem: g.byAge.PushBack(token)}
	return true
}

// Release forgets token so the same submission can be claimed again.
func (g *Guard) Release(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.claims[token]; ok {
		g.byAge.Remove(c.elem)
		delete(g.claims, token)
	}
}

// Len reports how many tokens are currently remembered.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.claims)
}

// dropOldest must be called with mu held.
func (g *Guard) dropOldest() {
	front := g.byAge.Front()
	if front == nil {
		return
	}
	token, _ := front.Value.(string)
	g.byAge.Remove(front)
	delete(g.claims, token)
}

func (g *Guard) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.stop:
			return
		}
	}
}

// sweep drops expired tokens. Tokens are in age order, so it stops at the
// first one still inside the window.
func (g *Guard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for front := g.byAge.Front(); front != nil; front = g.byAge.Front() {
		token, _ := front.Value.(string)
		if now.Sub(g.claims[token].at) < g.window {
			return
		}
		g.byAge.Remove(front)
		delete(g.claims, token)
	}
}

// Close stops the sweeper. Safe to call more than once.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.stopped {
		close(g.stop)
		g.stopped = true
	}
}
