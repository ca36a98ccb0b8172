// Package loading coordinates the console's single busy indicator across
// overlapping queries and mutations.
package loading

import "sync"

// State is a snapshot of the busy indicator.
type State struct {
	Active  int    `json:"active"`
	Message string `json:"message"`
}

// Busy reports whether at least one operation holds the indicator.
func (s State) Busy() bool {
	return s.Active > 0
}

// Signal is a reference-counted busy indicator. The zero value is not usable;
// construct with NewSignal. A nil *Signal ignores every call.
type Signal struct {
	mu      sync.Mutex
	active  int
	message string
	subs    map[int]func(State)
	nextSub int

	// pending holds published states in mutation order. Only the goroutine
	// that set draining delivers them, outside mu.
	pending  []delivery
	draining bool
}

type delivery struct {
	state State
	subs  []func(State)
}

// NewSignal returns an idle signal.
func NewSignal() *Signal {
	return &Signal{subs: make(map[int]func(State))}
}

// Show increments the active count. A non-empty message replaces the current
// one; the most recent caller wins.
func (s *Signal) Show(message string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	wasBusy := s.active > 0
	s.active++
	changed := !wasBusy
	if message != "" && message != s.message {
		s.message = message
		changed = true
	}
	s.publishLocked(changed)
}

// Hide decrements the active count without going below zero. The message is
// cleared once the count reaches zero.
func (s *Signal) Hide() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.active == 0 {
		s.mu.Unlock()
		return
	}
	s.active--
	changed := false
	if s.active == 0 {
		s.message = ""
		changed = true
	}
	s.publishLocked(changed)
}

// State returns the current snapshot.
func (s *Signal) State() State {
	if s == nil {
		return State{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Active: s.active, Message: s.message}
}

// Subscribe registers fn for busy transitions and message changes. Callbacks
// run one at a time in mutation order, without the signal's lock held, so
// they may read State or subscribe. Show and Hide from a callback are queued
// behind the state being delivered.
func (s *Signal) Subscribe(fn func(State)) (unsubscribe func()) {
	if s == nil || fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Manual exposes explicit show/hide for long-running flows that are not a
// single query or mutation.
func (s *Signal) Manual() Manual {
	return Manual{signal: s}
}

// publishLocked queues the new state when changed and releases s.mu. The
// first publisher to find the queue idle drains it; others return at once.
// Must be called with s.mu held.
func (s *Signal) publishLocked(changed bool) {
	if !changed || len(s.subs) == 0 {
		s.mu.Unlock()
		return
	}
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.pending = append(s.pending, delivery{state: State{Active: s.active, Message: s.message}, subs: subs})
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()
	s.drain()
}

func (s *Signal) drain() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.pending = nil
			s.mu.Unlock()
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		for _, fn := range next.subs {
			fn(next.state)
		}
	}
}

// Manual is the explicit show/hide pair. Callers are responsible for pairing
// every Show with exactly one Hide on all exit paths.
type Manual struct {
	signal *Signal
}

// Show increments the underlying signal.
func (m Manual) Show(message string) {
	m.signal.Show(message)
}

// Hide decrements the underlying signal.
func (m Manual) Hide() {
	m.signal.Hide()
}
