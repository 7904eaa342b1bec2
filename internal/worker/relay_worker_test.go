package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mc-fdc-dev/modmail/internal/config"
	"github.com/mc-fdc-dev/modmail/internal/discord"
	"github.com/mc-fdc-dev/modmail/internal/domain"
	"github.com/mc-fdc-dev/modmail/internal/events"
	"github.com/mc-fdc-dev/modmail/internal/mirror"
	"github.com/mc-fdc-dev/modmail/internal/observability"
	"github.com/mc-fdc-dev/modmail/internal/persistence"
	"github.com/mc-fdc-dev/modmail/internal/service"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var workspace = config.WorkspaceConfig{GuildID: "100", CategoryID: "200", StaffDisplayName: "Staff"}

// gatewayFeed hands out raw gateway events pushed by the test.
type gatewayFeed struct {
	raw chan interface{}
}

func (f *gatewayFeed) Next(ctx context.Context) (events.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return events.Event{}, &events.FeedError{Err: ctx.Err(), Fatal: true}
		case raw := <-f.raw:
			if event, ok := discord.Translate(raw); ok {
				return event, nil
			}
		}
	}
}

// remote records calls made against the platform.
type remote struct {
	mu      sync.Mutex
	nextID  int
	gone    map[string]bool
	calls   []string
	sent    map[string][]domain.OutboundEnvelope
	replies []domain.InteractionResponse
}

func (r *remote) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *remote) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

func (r *remote) CreateTicketChannel(_ context.Context, guildID, parentID, name, topic string) (domain.Channel, error) {
	r.record("create:" + topic)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return domain.Channel{ID: fmt.Sprintf("%d", 900+r.nextID), GuildID: guildID, ParentID: parentID, Name: name, Topic: topic}, nil
}

func (r *remote) OpenPrivateChannel(_ context.Context, userID string) (string, error) {
	r.record("open:" + userID)
	return "dm-" + userID, nil
}

func (r *remote) SendEnvelope(_ context.Context, channelID string, envelope domain.OutboundEnvelope) error {
	r.record("send:" + channelID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone[channelID] {
		return apperrors.NewRemoteError("send message", 404, errors.New("unknown channel"))
	}
	if r.sent == nil {
		r.sent = make(map[string][]domain.OutboundEnvelope)
	}
	r.sent[channelID] = append(r.sent[channelID], envelope)
	return nil
}

func (r *remote) DeleteChannel(_ context.Context, channelID string) error {
	r.record("delete:" + channelID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone == nil {
		r.gone = make(map[string]bool)
	}
	r.gone[channelID] = true
	return nil
}

func (r *remote) RemoveMember(_ context.Context, _, userID string) error {
	r.record("kick:" + userID)
	return nil
}

func (r *remote) BanMember(_ context.Context, _, userID string) error {
	r.record("ban:" + userID)
	return nil
}

func (r *remote) Respond(_ context.Context, _ domain.CommandInvocation, resp domain.InteractionResponse) error {
	r.record("respond")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, resp)
	return nil
}

func (r *remote) Defer(context.Context, domain.CommandInvocation) error {
	r.record("defer")
	return nil
}

func (r *remote) FollowUp(_ context.Context, _ domain.CommandInvocation, resp domain.InteractionResponse) error {
	r.record("followup")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, resp)
	return nil
}

func (r *remote) Latency() time.Duration {
	return 42 * time.Millisecond
}

func ticketChannel(id, owner string) *discordgo.Channel {
	return &discordgo.Channel{
		ID:       id,
		GuildID:  workspace.GuildID,
		ParentID: workspace.CategoryID,
		Name:     "ticket",
		Topic:    owner,
		Type:     discordgo.ChannelTypeGuildText,
	}
}

// pipeline runs the worker over the real mirror and dispatcher.
type pipeline struct {
	api     *remote
	metrics *observability.Metrics
	pending *persistence.MemoryPendingStore
	feed    *gatewayFeed
	stop    func() error
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	p := &pipeline{
		api:     &remote{},
		metrics: observability.NewMetrics(),
		pending: persistence.NewMemoryPendingStore(time.Minute),
		feed:    &gatewayFeed{raw: make(chan interface{})},
	}
	m := mirror.New(nil)
	dispatcher := events.NewInMemoryDispatcher(events.DispatcherOptions{Mirror: m, Metrics: p.metrics})

	lookup := service.NewTicketLookup(m, workspace)
	tickets := service.NewTicketService(service.TicketDependencies{
		Lookup:      lookup,
		Provisioner: service.NewTicketProvisioner(p.api, workspace),
		Locker:      persistence.LocalLocker{},
		Pending:     p.pending,
		Dispatcher:  dispatcher,
		Metrics:     p.metrics,
	})
	StartRelayWorker(dispatcher, RelayWorkerDependencies{
		Relay: service.NewRelayService(service.RelayDependencies{
			Tickets:    tickets,
			Lookup:     lookup,
			Sender:     p.api,
			Channels:   m,
			Workspace:  workspace,
			Dispatcher: dispatcher,
			Metrics:    p.metrics,
		}),
		Commands: service.NewCommandService(service.CommandDependencies{
			Lookup:     lookup,
			Tickets:    tickets,
			Sender:     p.api,
			Responder:  p.api,
			Deleter:    p.api,
			Moderator:  p.api,
			Latency:    p.api,
			Workspace:  workspace,
			Dispatcher: dispatcher,
			Metrics:    p.metrics,
		}),
		Tickets: tickets,
		Audit:   service.NewAuditService(dispatcher, nil, nil),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dispatcher.Run(ctx, p.feed) }()
	p.stop = func() error {
		cancel()
		err := <-done
		dispatcher.Wait()
		return err
	}
	return p
}

// waitFor blocks until the remote saw exactly want.
func (p *pipeline) waitFor(t *testing.T, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, p.api.snapshot())
	}, time.Second, 5*time.Millisecond, "calls: %v", p.api.snapshot())
}

func (p *pipeline) guildCreate(channels ...*discordgo.Channel) {
	p.feed.raw <- &discordgo.GuildCreate{Guild: &discordgo.Guild{
		ID:   workspace.GuildID,
		Icon: "hash",
		Channels: append([]*discordgo.Channel{
			{ID: workspace.CategoryID, GuildID: workspace.GuildID, Type: discordgo.ChannelTypeGuildCategory},
		}, channels...),
	}}
}

func (p *pipeline) directMessage(id, userID, content string) {
	p.feed.raw <- &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: id, ChannelID: "dm-" + userID, Content: content, Author: &discordgo.User{ID: userID, Username: "user" + userID},
	}}
}

func TestRelayWorker_EndToEnd(t *testing.T) {
	p := newPipeline(t)
	api, feed, metrics := p.api, p.feed, p.metrics
	waitFor := func(want ...string) {
		t.Helper()
		p.waitFor(t, want...)
	}

	p.guildCreate(ticketChannel("1", "42"))

	// user with an existing ticket
	feed.raw <- &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m1", ChannelID: "dm-42", Content: "hello", Author: &discordgo.User{ID: "42", Username: "alice"},
	}}
	waitFor("send:1")

	// staff reply in the ticket channel
	feed.raw <- &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m2", ChannelID: "1", GuildID: workspace.GuildID, Content: "hi there", Author: &discordgo.User{ID: "7", Username: "mod"},
	}}
	waitFor("send:1", "open:42", "send:dm-42")

	// the bot's own relay echo is ignored
	feed.raw <- &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m3", ChannelID: "1", GuildID: workspace.GuildID, Content: "echo", Author: &discordgo.User{ID: "1", Bot: true},
	}}

	// first contact from a new user, then the channel shows up on the feed
	feed.raw <- &discordgo.MessageCreate{Message: &discordgo.Message{
		ID: "m4", ChannelID: "dm-43", Content: "new here", Author: &discordgo.User{ID: "43", Username: "bob"},
	}}
	waitFor("send:1", "open:42", "send:dm-42", "create:43", "send:901")
	feed.raw <- &discordgo.ChannelCreate{Channel: ticketChannel("901", "43")}

	// staff close the new ticket
	feed.raw <- &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		ID:        "i1",
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   workspace.GuildID,
		ChannelID: "901",
		Member:    &discordgo.Member{User: &discordgo.User{ID: "7"}},
		Data:      discordgo.ApplicationCommandInteractionData{Name: "close"},
	}}
	waitFor("send:1", "open:42", "send:dm-42", "create:43", "send:901", "open:43", "send:dm-43", "respond", "delete:901")

	assert.True(t, errors.Is(p.stop(), context.Canceled))

	assert.Equal(t, discordgo.EndpointGuildIcon(workspace.GuildID, "hash"), api.sent["dm-42"][0].AuthorIconURL)
	assert.Equal(t, "Staff", api.sent["dm-42"][0].AuthorName)
	assert.Equal(t, int64(1), metrics.Counter("ticket_provisioned"))
}

func TestRelayWorker_TicketDeletedByHandIsReprovisioned(t *testing.T) {
	p := newPipeline(t)
	p.guildCreate()

	p.directMessage("m1", "43", "first")
	p.waitFor(t, "create:43", "send:901")

	p.feed.raw <- &discordgo.ChannelCreate{Channel: ticketChannel("901", "43")}
	require.Eventually(t, func() bool {
		_, ok, err := p.pending.Get(context.Background(), "43")
		return err == nil && !ok
	}, time.Second, 5*time.Millisecond)

	p.api.mu.Lock()
	p.api.gone = map[string]bool{"901": true}
	p.api.mu.Unlock()
	p.feed.raw <- &discordgo.ChannelDelete{Channel: ticketChannel("901", "43")}

	p.directMessage("m2", "43", "second")
	p.waitFor(t, "create:43", "send:901", "create:43", "send:902")

	require.ErrorIs(t, p.stop(), context.Canceled)
	assert.Equal(t, "second", p.api.sent["902"][0].Body)
	assert.Equal(t, int64(2), p.metrics.Counter("ticket_provisioned"))
	assert.Empty(t, p.metrics.Snapshot().Failures)
}
