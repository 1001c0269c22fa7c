package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/livevote/internal/domain"
)

type scriptedFeed struct {
	mu       sync.Mutex
	alive    bool
	batches  [][]domain.ChatMessage
	fetchErr error
	closed   bool
}

func (f *scriptedFeed) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *scriptedFeed) Fetch(ctx context.Context) ([]domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *scriptedFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *scriptedFeed) end() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = false
}

func (f *scriptedFeed) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []domain.ChatMessage
}

func (d *recordingDispatcher) Dispatch(msg domain.ChatMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msgs = append(d.msgs, msg)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.msgs)
}

// countingFactory hands out feeds in order and counts how often it is called.
type countingFactory struct {
	mu    sync.Mutex
	feeds []*scriptedFeed
	errs  []error
	calls int
}

func (f *countingFactory) factory(ctx context.Context) (Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.feeds) {
		return f.feeds[i], nil
	}
	// Default to a quiet live feed so the loop parks instead of spinning.
	return &scriptedFeed{alive: true}, nil
}

func (f *countingFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestWatcher(factory FeedFactory, dispatcher Dispatcher) *Watcher {
	w := NewWatcher(factory, dispatcher, clockwork.NewRealClock(), nil)
	w.pollInterval = time.Millisecond
	w.endedDelay = 5 * time.Millisecond
	w.failedDelay = 5 * time.Millisecond
	return w
}

func TestWatcherDispatchesMessages(t *testing.T) {
	feed := &scriptedFeed{alive: true, batches: [][]domain.ChatMessage{
		{{AuthorID: "u1", Text: "de"}, {AuthorID: "u2", Text: "fr"}},
		{{AuthorID: "u3", Text: "it"}},
	}}
	factory := &countingFactory{feeds: []*scriptedFeed{feed}}
	dispatcher := &recordingDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		newTestWatcher(factory.factory, dispatcher).Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return dispatcher.count() == 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatcherReconnectsAfterFeedEnds(t *testing.T) {
	first := &scriptedFeed{alive: true}
	factory := &countingFactory{feeds: []*scriptedFeed{first}}
	dispatcher := &recordingDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestWatcher(factory.factory, dispatcher).Run(ctx)

	require.Eventually(t, func() bool {
		return factory.callCount() == 1
	}, time.Second, time.Millisecond)

	first.end()

	require.Eventually(t, func() bool {
		return factory.callCount() >= 2
	}, time.Second, time.Millisecond)
	assert.True(t, first.isClosed())
}

func TestWatcherReconnectsAfterFetchError(t *testing.T) {
	broken := &scriptedFeed{alive: true, fetchErr: errors.New("stream gone")}
	factory := &countingFactory{feeds: []*scriptedFeed{broken}}
	dispatcher := &recordingDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestWatcher(factory.factory, dispatcher).Run(ctx)

	require.Eventually(t, func() bool {
		return factory.callCount() >= 2
	}, time.Second, time.Millisecond)
	assert.True(t, broken.isClosed())
}

func TestWatcherRetriesFactoryErrors(t *testing.T) {
	factory := &countingFactory{errs: []error{
		errors.New("quota exceeded"),
		errors.New("quota exceeded"),
	}}
	dispatcher := &recordingDispatcher{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestWatcher(factory.factory, dispatcher).Run(ctx)

	// Survives repeated factory failures and eventually connects.
	require.Eventually(t, func() bool {
		return factory.callCount() >= 3
	}, time.Second, time.Millisecond)
}

func TestWatcherStopsDuringBackoff(t *testing.T) {
	factory := &countingFactory{errs: []error{errors.New("down")}}
	w := NewWatcher(factory.factory, &recordingDispatcher{}, clockwork.NewRealClock(), nil)
	w.failedDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return factory.callCount() == 1
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop during backoff")
	}
}
