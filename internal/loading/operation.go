package loading

import (
	"context"
	"sync"
)

// Mutation is a write operation bound to a Signal. Overlapping runs count as a
// single in-flight period, so rapid re-invocation yields one show and one hide.
type Mutation[In, Out any] struct {
	fn      func(context.Context, In) (Out, error)
	watcher *Watcher

	mu      sync.Mutex
	pending int
}

// NewMutation binds fn to s, showing message while any run is pending.
func NewMutation[In, Out any](s *Signal, message string, fn func(context.Context, In) (Out, error)) *Mutation[In, Out] {
	return &Mutation[In, Out]{fn: fn, watcher: s.Watch(message)}
}

// Run executes the mutation. The signal is released when the last overlapping
// run returns, whether it succeeded, failed or panicked.
func (m *Mutation[In, Out]) Run(ctx context.Context, in In) (Out, error) {
	m.mu.Lock()
	m.pending++
	m.watcher.Sync(MutationState{IsPending: true})
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.pending--
		m.watcher.Sync(MutationState{IsPending: m.pending > 0})
		m.mu.Unlock()
	}()
	return m.fn(ctx, in)
}

// State reports the mutation's pending flag.
func (m *Mutation[In, Out]) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MutationState{IsPending: m.pending > 0}
}

// Close detaches the mutation from its signal, hiding if a run is pending.
func (m *Mutation[In, Out]) Close() {
	m.watcher.Close()
}

// Query is a read operation bound to a Signal. It retains the response of the
// most recently issued fetch; responses to older fetches that arrive later are
// discarded.
type Query[T any] struct {
	fn      func(context.Context) (T, error)
	watcher *Watcher

	mu       sync.Mutex
	inflight int
	issued   uint64
	applied  uint64
	hasData  bool
	data     T
	err      error
}

// NewQuery binds fn to s, showing message while any fetch is outstanding.
func NewQuery[T any](s *Signal, message string, fn func(context.Context) (T, error)) *Query[T] {
	return &Query[T]{fn: fn, watcher: s.Watch(message)}
}

// Fetch issues a request and returns its own response.
func (q *Query[T]) Fetch(ctx context.Context) (T, error) {
	q.mu.Lock()
	q.issued++
	ticket := q.issued
	q.inflight++
	q.watcher.Sync(q.stateLocked())
	q.mu.Unlock()

	var (
		value     T
		err       error
		completed bool
	)
	defer func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.inflight--
		if completed && ticket > q.applied {
			q.applied = ticket
			q.err = err
			if err == nil {
				q.data = value
				q.hasData = true
			}
		}
		q.watcher.Sync(q.stateLocked())
	}()

	value, err = q.fn(ctx)
	completed = true
	return value, err
}

// Latest returns the retained data and the error of the most recent applied
// fetch. ok is false until a fetch succeeds.
func (q *Query[T]) Latest() (value T, ok bool, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.data, q.hasData, q.err
}

// State reports the query's loading flags.
func (q *Query[T]) State() QueryState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stateLocked()
}

// Close detaches the query from its signal, hiding if a fetch is outstanding.
func (q *Query[T]) Close() {
	q.watcher.Close()
}

func (q *Query[T]) stateLocked() QueryState {
	return QueryState{
		IsLoading:  q.inflight > 0 && !q.hasData,
		IsFetching: q.inflight > 0,
	}
}
