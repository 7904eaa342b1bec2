package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mc-fdc-dev/modmail/internal/observability"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type feedResult struct {
	event Event
	err   error
}

// scriptedFeed replays results in order, then reports a fatal close.
type scriptedFeed struct {
	mu      sync.Mutex
	results []feedResult
}

func (f *scriptedFeed) Next(ctx context.Context) (Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return Event{}, &FeedError{Err: errors.New("closed"), Fatal: true}
	}
	next := f.results[0]
	f.results = f.results[1:]
	return next.event, next.err
}

// blockingFeed hands out events pushed on a channel.
type blockingFeed struct {
	events chan Event
}

func (f *blockingFeed) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, &FeedError{Err: ctx.Err(), Fatal: true}
	case ev, ok := <-f.events:
		if !ok {
			return Event{}, &FeedError{Err: errors.New("closed"), Fatal: true}
		}
		return ev, nil
	}
}

type recordingMirror struct {
	mu      sync.Mutex
	applied []string
}

func (m *recordingMirror) Apply(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = append(m.applied, event.ID)
}

func (m *recordingMirror) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, applied := range m.applied {
		if applied == id {
			return true
		}
	}
	return false
}

func TestRun_AppliesMirrorBeforeHandler(t *testing.T) {
	mirror := &recordingMirror{}
	d := NewInMemoryDispatcher(DispatcherOptions{Mirror: mirror})

	var mu sync.Mutex
	seen := map[string]bool{}
	d.Subscribe(EventMessageCreated, func(ctx context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen[ev.ID] = mirror.has(ev.ID)
		return nil
	})

	feed := &scriptedFeed{results: []feedResult{
		{event: Event{ID: "a", Type: EventMessageCreated}},
		{event: Event{ID: "b", Type: EventChannelCreated}},
		{event: Event{ID: "c", Type: EventMessageCreated}},
	}}

	err := d.Run(context.Background(), feed)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	d.Wait()

	assert.Equal(t, []string{"a", "b", "c"}, mirror.applied)
	assert.Equal(t, map[string]bool{"a": true, "c": true}, seen)
}

func TestRun_SlowHandlerDoesNotStallFeed(t *testing.T) {
	d := NewInMemoryDispatcher(DispatcherOptions{})

	release := make(chan struct{})
	secondHandled := make(chan struct{})
	d.Subscribe(EventMessageCreated, func(ctx context.Context, ev Event) error {
		if ev.ID == "slow" {
			<-release
			return nil
		}
		close(secondHandled)
		return nil
	})

	feed := &blockingFeed{events: make(chan Event)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, feed) }()

	feed.events <- Event{ID: "slow", Type: EventMessageCreated}
	feed.events <- Event{ID: "fast", Type: EventMessageCreated}

	select {
	case <-secondHandled:
	case <-time.After(2 * time.Second):
		t.Fatal("second event was not handled while the first handler was blocked")
	}

	close(release)
	cancel()
	require.Error(t, <-done)
	d.Wait()
}

func TestRun_TransientErrorsAreSkipped(t *testing.T) {
	d := NewInMemoryDispatcher(DispatcherOptions{})

	var mu sync.Mutex
	var handled []string
	d.Subscribe(EventReady, func(ctx context.Context, ev Event) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, ev.ID)
		return nil
	})

	feed := &scriptedFeed{results: []feedResult{
		{err: &FeedError{Err: errors.New("disconnected"), Fatal: false}},
		{event: Event{ID: "r1", Type: EventReady}},
		{err: &FeedError{Err: errors.New("resumed"), Fatal: false}},
		{event: Event{ID: "r2", Type: EventReady}},
	}}

	require.Error(t, d.Run(context.Background(), feed))
	d.Wait()

	assert.ElementsMatch(t, []string{"r1", "r2"}, handled)
}

func TestRun_UnclassifiedErrorIsFatal(t *testing.T) {
	d := NewInMemoryDispatcher(DispatcherOptions{})
	feed := &scriptedFeed{results: []feedResult{
		{err: errors.New("boom")},
		{event: Event{ID: "never", Type: EventReady}},
	}}

	err := d.Run(context.Background(), feed)
	assert.EqualError(t, err, "boom")
	assert.Len(t, feed.results, 1)
}

func TestRun_HandlerFailuresAreObservable(t *testing.T) {
	metrics := observability.NewMetrics()
	d := NewInMemoryDispatcher(DispatcherOptions{Metrics: metrics})

	d.Subscribe(EventInteractionCreated, func(ctx context.Context, ev Event) error {
		return apperrors.NewRemoteError("delete channel", 403, errors.New("missing access"))
	})
	d.Subscribe(EventMessageCreated, func(ctx context.Context, ev Event) error {
		panic("nil topic")
	})

	feed := &scriptedFeed{results: []feedResult{
		{event: Event{Type: EventInteractionCreated}},
		{event: Event{Type: EventMessageCreated}},
	}}
	require.Error(t, d.Run(context.Background(), feed))
	d.Wait()

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Failures["interaction_created|REMOTE_FORBIDDEN"])
	assert.Equal(t, int64(1), snap.Failures["message_created|INTERNAL_ERROR"])
	assert.Equal(t, int64(1), snap.Events["interaction_created|error"])
	assert.Equal(t, int64(1), snap.Events["message_created|error"])
}

func TestRun_HandlersOutliveCancellation(t *testing.T) {
	d := NewInMemoryDispatcher(DispatcherOptions{})

	started := make(chan struct{})
	finish := make(chan struct{})
	var handlerErr error
	d.Subscribe(EventMessageCreated, func(ctx context.Context, ev Event) error {
		close(started)
		<-finish
		handlerErr = ctx.Err()
		return nil
	})

	feed := &blockingFeed{events: make(chan Event)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, feed) }()

	feed.events <- Event{Type: EventMessageCreated}
	<-started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(finish)
	d.Wait()
	assert.NoError(t, handlerErr)
}

func TestPublish_InvokesAllHandlers(t *testing.T) {
	metrics := observability.NewMetrics()
	d := NewInMemoryDispatcher(DispatcherOptions{Metrics: metrics})

	var calls []string
	d.Subscribe(EventTicketOpened, func(ctx context.Context, ev Event) error {
		calls = append(calls, "first")
		return errors.New("audit unavailable")
	})
	d.Subscribe(EventTicketOpened, func(ctx context.Context, ev Event) error {
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
		calls = append(calls, "second")
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventTicketOpened}))
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, int64(1), metrics.Snapshot().Failures["ticket_opened|INTERNAL_ERROR"])
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(errors.New("x")))
	assert.True(t, IsFatal(&FeedError{Err: errors.New("x"), Fatal: true}))
	assert.False(t, IsFatal(&FeedError{Err: errors.New("x")}))
}
