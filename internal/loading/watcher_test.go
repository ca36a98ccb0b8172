package loading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	timeout = time.Second
	tick    = 5 * time.Millisecond
)

type countingSignal struct {
	*Signal
	mu    sync.Mutex
	shows int
	hides int
}

func newCountingSignal() *countingSignal {
	c := &countingSignal{Signal: NewSignal()}
	c.Subscribe(func(st State) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if st.Busy() {
			c.shows++
		} else {
			c.hides++
		}
	})
	return c
}

func (c *countingSignal) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shows, c.hides
}

func TestWatcherShowsOncePerRisingEdge(t *testing.T) {
	s := NewSignal()
	w := s.Watch("Loading HS codes...")

	w.Observe(true)
	w.Observe(true)
	w.Observe(true)
	require.Equal(t, State{Active: 1, Message: "Loading HS codes..."}, s.State())

	w.Observe(false)
	w.Observe(false)
	assert.Equal(t, State{}, s.State())

	w.Sync(QueryState{IsFetching: true})
	assert.Equal(t, 1, s.State().Active)
	w.Sync(QueryState{})
	assert.Equal(t, 0, s.State().Active)
}

func TestWatcherCloseHidesWhileInFlight(t *testing.T) {
	s := NewSignal()
	w := s.Watch("Saving...")

	w.Sync(MutationState{IsPending: true})
	w.Close()
	assert.Equal(t, State{}, s.State())

	// late completion after teardown must not double-hide another holder
	release := s.Acquire("other")
	w.Sync(MutationState{IsPending: false})
	w.Observe(true)
	w.Close()
	assert.Equal(t, 1, s.State().Active)
	release()
}

func TestWatcherCloseWhenIdleDoesNotHide(t *testing.T) {
	s := NewSignal()
	release := s.Acquire("")
	defer release()

	w := s.Watch("idle")
	w.Close()
	assert.Equal(t, 1, s.State().Active)
	assert.False(t, w.Showing())
}

func TestIndependentWatchersOverlap(t *testing.T) {
	s := NewSignal()
	create := s.Watch("Creating HS code...")
	list := s.Watch("Loading HS codes...")

	create.Observe(true)
	list.Observe(true)
	assert.Equal(t, 2, s.State().Active)

	create.Observe(false)
	assert.True(t, s.State().Busy(), "one finished operation must not clear the indicator")

	list.Observe(false)
	assert.False(t, s.State().Busy())
}

func TestQueryStatePredicate(t *testing.T) {
	assert.False(t, QueryState{}.InFlight())
	assert.True(t, QueryState{IsLoading: true}.InFlight())
	assert.True(t, QueryState{IsFetching: true}.InFlight())
	assert.True(t, MutationState{IsPending: true}.InFlight())
	assert.False(t, MutationState{}.InFlight())
}

func TestMutationOverlappingRunsShowOnce(t *testing.T) {
	s := newCountingSignal()
	entered := make(chan struct{})
	unblock := make(chan struct{})
	m := NewMutation(s.Signal, "Saving...", func(ctx context.Context, in int) (int, error) {
		entered <- struct{}{}
		<-unblock
		return in * 2, nil
	})

	var wg sync.WaitGroup
	results := make([]int, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := m.Run(context.Background(), i)
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	for i := 0; i < 3; i++ {
		<-entered
	}
	assert.True(t, m.State().IsPending)
	assert.Equal(t, 1, s.State().Active)

	close(unblock)
	wg.Wait()

	assert.Equal(t, []int{0, 2, 4}, results)
	assert.False(t, m.State().IsPending)
	shows, hides := s.counts()
	assert.Equal(t, 1, shows)
	assert.Equal(t, 1, hides)
}

func TestMutationFailureStillHides(t *testing.T) {
	s := NewSignal()
	boom := errors.New("validation failed: code already exists")
	m := NewMutation(s, "Creating...", func(ctx context.Context, _ string) (string, error) {
		assert.Equal(t, 1, s.State().Active)
		return "", boom
	})

	_, err := m.Run(context.Background(), "0101.2100")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, State{}, s.State())
}

func TestMutationPanicStillHides(t *testing.T) {
	s := NewSignal()
	m := NewMutation(s, "", func(ctx context.Context, _ struct{}) (struct{}, error) {
		panic("boom")
	})
	assert.Panics(t, func() {
		_, _ = m.Run(context.Background(), struct{}{})
	})
	assert.Equal(t, State{}, s.State())
}

func TestQueryKeepsMostRecentlyIssuedResponse(t *testing.T) {
	s := NewSignal()
	gates := map[int]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}
	var (
		mu   sync.Mutex
		call int
	)
	q := NewQuery(s, "Loading HS codes...", func(ctx context.Context) (string, error) {
		mu.Lock()
		call++
		n := call
		mu.Unlock()
		<-gates[n]
		return map[int]string{1: "stale", 2: "fresh"}[n], nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = q.Fetch(context.Background())
	}()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return call == 1
	}, timeout, tick)
	assert.True(t, q.State().IsLoading)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = q.Fetch(context.Background())
	}()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return call == 2
	}, timeout, tick)

	close(gates[2])
	require.Eventually(t, func() bool {
		_, ok, _ := q.Latest()
		return ok
	}, timeout, tick)
	assert.True(t, q.State().IsFetching)
	assert.False(t, q.State().IsLoading)

	close(gates[1])
	wg.Wait()

	value, ok, err := q.Latest()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "fresh", value)
	assert.Equal(t, QueryState{}, q.State())
	assert.Equal(t, State{}, s.State())
}

func TestQueryCloseDuringFetch(t *testing.T) {
	s := NewSignal()
	unblock := make(chan struct{})
	q := NewQuery(s, "", func(ctx context.Context) (int, error) {
		<-unblock
		return 1, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = q.Fetch(context.Background())
	}()
	require.Eventually(t, func() bool { return s.State().Busy() }, timeout, tick)

	q.Close()
	assert.False(t, s.State().Busy())

	close(unblock)
	<-done
	assert.False(t, s.State().Busy())
}

func TestTrackReleasesOnPanic(t *testing.T) {
	s := NewSignal()
	assert.Panics(t, func() {
		_ = Track(s, "Reconciling...", func() error {
			panic("boom")
		})
	})
	assert.Equal(t, State{}, s.State())

	v, err := TrackValue(s, "", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, State{}, s.State())
}

func TestManualPairs(t *testing.T) {
	s := NewSignal()
	m := s.Manual()
	m.Show("Syncing with FBR...")
	assert.Equal(t, "Syncing with FBR...", s.State().Message)
	m.Hide()
	m.Hide()
	assert.Equal(t, State{}, s.State())
}
