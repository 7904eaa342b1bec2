package discord

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/mc-fdc-dev/modmail/internal/events"
)

// ErrFeedClosed is reported by Next once the feed has been closed.
var ErrFeedClosed = errors.New("feed closed")

var errDisconnected = errors.New("gateway disconnected")

type feedItem struct {
	event events.Event
	err   error
}

// Feed exposes gateway events one at a time. The session reconnects on its own;
// disconnects surface as transient errors.
type Feed struct {
	session *discordgo.Session
	items   chan feedItem
	done    chan struct{}

	closeOnce     sync.Once
	removeHandler func()
}

// NewFeed subscribes to session. buffer bounds how many events may queue before the
// gateway reader blocks.
func NewFeed(session *discordgo.Session, buffer int) *Feed {
	if buffer <= 0 {
		buffer = 256
	}
	f := &Feed{
		session: session,
		items:   make(chan feedItem, buffer),
		done:    make(chan struct{}),
	}
	f.removeHandler = session.AddHandler(f.onEvent)
	return f
}

// Open connects to the gateway.
func (f *Feed) Open() error {
	if err := f.session.Open(); err != nil {
		return &events.FeedError{Err: err, Fatal: true}
	}
	return nil
}

// Close disconnects from the gateway and unblocks Next.
func (f *Feed) Close() error {
	f.closeOnce.Do(func() {
		f.removeHandler()
		close(f.done)
	})
	return f.session.Close()
}

// Next blocks until an event arrives, the feed is closed or ctx is done.
func (f *Feed) Next(ctx context.Context) (events.Event, error) {
	select {
	case <-ctx.Done():
		return events.Event{}, &events.FeedError{Err: ctx.Err(), Fatal: true}
	case <-f.done:
		return events.Event{}, &events.FeedError{Err: ErrFeedClosed, Fatal: true}
	case item := <-f.items:
		return item.event, item.err
	}
}

func (f *Feed) onEvent(_ *discordgo.Session, raw interface{}) {
	var item feedItem
	if _, ok := raw.(*discordgo.Disconnect); ok {
		item.err = &events.FeedError{Err: errDisconnected}
	} else {
		event, ok := Translate(raw)
		if !ok {
			return
		}
		item.event = event
	}
	f.push(item)
}

func (f *Feed) push(item feedItem) {
	select {
	case f.items <- item:
	case <-f.done:
	}
}
