package loading

import "sync"

// Operation is anything that can report whether it is currently in flight.
type Operation interface {
	InFlight() bool
}

// MutationState mirrors the pending flag of a write operation.
type MutationState struct {
	IsPending bool `json:"isPending"`
}

// InFlight implements Operation.
func (m MutationState) InFlight() bool {
	return m.IsPending
}

// QueryState mirrors the flags of a read operation. IsLoading is set while the
// first response is outstanding, IsFetching for every outstanding request.
type QueryState struct {
	IsLoading  bool `json:"isLoading"`
	IsFetching bool `json:"isFetching"`
}

// InFlight implements Operation.
func (q QueryState) InFlight() bool {
	return q.IsLoading || q.IsFetching
}

// Watcher binds one operation's in-flight predicate to a Signal. It shows on
// every rising edge and hides on every falling edge, so repeated observations
// of the same level are ignored.
type Watcher struct {
	signal  *Signal
	message string

	mu      sync.Mutex
	showing bool
	closed  bool
}

// Watch creates a watcher that shows message while the observed operation is
// in flight.
func (s *Signal) Watch(message string) *Watcher {
	return &Watcher{signal: s, message: message}
}

// Observe records the operation's current in-flight level.
func (w *Watcher) Observe(inFlight bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || inFlight == w.showing {
		return
	}
	w.showing = inFlight
	if inFlight {
		w.signal.Show(w.message)
		return
	}
	w.signal.Hide()
}

// Sync observes op's in-flight predicate.
func (w *Watcher) Sync(op Operation) {
	w.Observe(op.InFlight())
}

// Showing reports whether the watcher currently holds the signal.
func (w *Watcher) Showing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.showing
}

// Close releases the signal if the operation was still in flight and detaches
// the watcher. Further observations are ignored.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.showing {
		w.showing = false
		w.signal.Hide()
	}
}
