package events

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mc-fdc-dev/modmail/internal/observability"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

// EventHandler handles a dispatched event.
type EventHandler func(context.Context, Event) error

// Feed is the realtime event source. Next blocks until an event arrives or the feed fails.
type Feed interface {
	Next(ctx context.Context) (Event, error)
}

// Mirror is the local read-through cache replayed from the feed.
type Mirror interface {
	Apply(event Event)
}

// FeedError is a feed failure classified by the feed itself.
type FeedError struct {
	Err   error
	Fatal bool
}

func (e *FeedError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("fatal feed error: %v", e.Err)
	}
	return fmt.Sprintf("feed error: %v", e.Err)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether a feed error must stop the dispatcher.
// Errors the feed did not classify are fatal.
func IsFatal(err error) bool {
	var feedErr *FeedError
	if errors.As(err, &feedErr) {
		return feedErr.Fatal
	}
	return true
}

// Dispatcher interface allows event publication/subscription and drives the feed loop.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	Run(ctx context.Context, feed Feed) error
	Wait()
}

// DispatcherOptions bundles dispatcher collaborators. All fields are optional.
type DispatcherOptions struct {
	Mirror  Mirror
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	mirror    Mirror
	logger    *zap.Logger
	metrics   *observability.Metrics
	inflight  sync.WaitGroup
}

// NewInMemoryDispatcher creates a dispatcher instance.
func NewInMemoryDispatcher(opts DispatcherOptions) Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inMemoryDispatcher{
		listeners: make(map[EventType][]EventHandler),
		mirror:    opts.Mirror,
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// Publish synchronously invokes handlers for the given event. Handler failures are
// reported and do not stop the remaining handlers.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	stamp(&event)
	for _, handler := range d.handlersFor(event.Type) {
		d.report(event, d.invoke(ctx, handler, event))
	}
	return nil
}

// Subscribe registers a handler for the given event type.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Run drains the feed until it reports a fatal error. Each event is applied to the
// mirror before its handlers start; handlers run on their own goroutine so a slow
// handler never stalls the next Next call.
func (d *inMemoryDispatcher) Run(ctx context.Context, feed Feed) error {
	handlerCtx := context.WithoutCancel(ctx)
	for {
		event, err := feed.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if IsFatal(err) {
				d.logger.Error("feed stopped", zap.Error(err))
				return err
			}
			d.logger.Warn("error receiving event", zap.Error(err))
			continue
		}
		stamp(&event)

		if d.mirror != nil {
			d.mirror.Apply(event)
		}

		handlers := d.handlersFor(event.Type)
		if len(handlers) == 0 {
			continue
		}
		d.inflight.Add(1)
		go d.handle(handlerCtx, event, handlers)
	}
}

// Wait blocks until every spawned handler has returned.
func (d *inMemoryDispatcher) Wait() {
	d.inflight.Wait()
}

func (d *inMemoryDispatcher) handle(ctx context.Context, event Event, handlers []EventHandler) {
	defer d.inflight.Done()

	start := time.Now()
	outcome := "ok"
	for _, handler := range handlers {
		if err := d.invoke(ctx, handler, event); err != nil {
			outcome = "error"
			d.report(event, err)
		}
	}
	d.metrics.RecordEvent(string(event.Type), outcome, time.Since(start))
}

func (d *inMemoryDispatcher) invoke(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic recovered",
				zap.String("event_id", event.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = apperrors.NewInternalError(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return handler(ctx, event)
}

func (d *inMemoryDispatcher) report(event Event, err error) {
	if err == nil {
		return
	}
	domainErr := apperrors.ToDomainError(err)
	d.metrics.RecordFailure(string(event.Type), domainErr.Code)
	d.logger.Error("event handler failed",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("code", domainErr.Code),
		zap.Error(err))
}

func (d *inMemoryDispatcher) handlersFor(eventType EventType) []EventHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]EventHandler{}, d.listeners[eventType]...)
}

func stamp(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
}
