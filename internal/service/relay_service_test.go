package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mc-fdc-dev/modmail/internal/domain"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

var sentAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func directMessage(content string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:        "m1",
		ChannelID: "dm-42",
		Author:    alice,
		Content:   content,
		Timestamp: sentAt,
	}
}

func staffMessage(channelID, content string) domain.InboundMessage {
	return domain.InboundMessage{
		ID:        "m2",
		ChannelID: channelID,
		GuildID:   testGuildID,
		Author:    domain.User{ID: "7", Name: "mod"},
		Content:   content,
		Timestamp: sentAt,
	}
}

func TestRelay_IgnoresBotAuthors(t *testing.T) {
	h := newHarness(newFakePlatform(ticketChannel("1", "42")))

	msg := directMessage("hi")
	msg.Author.Bot = true
	require.NoError(t, h.relay.HandleMessage(context.Background(), msg))

	guild := staffMessage("1", "hello")
	guild.Author.Bot = true
	require.NoError(t, h.relay.HandleMessage(context.Background(), guild))

	assert.Empty(t, h.platform.calls)
}

func TestRelay_InboundToExistingTicket(t *testing.T) {
	h := newHarness(newFakePlatform(ticketChannel("1", "42")))

	msg := directMessage("I need help")
	msg.Attachments = []domain.Attachment{{URL: "https://cdn.example/a.png"}, {URL: "https://cdn.example/b.png"}}
	require.NoError(t, h.relay.HandleMessage(context.Background(), msg))

	require.Len(t, h.platform.sent, 1)
	assert.Equal(t, sentEnvelope{
		ChannelID: "1",
		Envelope: domain.OutboundEnvelope{
			AuthorName:    "alice",
			AuthorIconURL: alice.AvatarURL,
			Body:          "I need help",
			ImageURL:      "https://cdn.example/a.png",
			Timestamp:     sentAt,
		},
	}, h.platform.sent[0])
	assert.Equal(t, int64(1), h.metrics.Counter("relay_INBOUND"))
}

func TestRelay_InboundFirstContactCreatesTicket(t *testing.T) {
	h := newHarness(newFakePlatform())

	require.NoError(t, h.relay.HandleMessage(context.Background(), directMessage("hello")))

	assert.Equal(t, []string{"create:42", "send:901"}, h.platform.calls)
	assert.Equal(t, []domain.TicketEventKind{domain.TicketEventOpened, domain.TicketEventMessageRelayed}, h.recorder.kinds())
}

func TestRelay_InboundEmptyBodyStillRelayed(t *testing.T) {
	h := newHarness(newFakePlatform(ticketChannel("1", "42")))

	msg := directMessage("")
	msg.Attachments = []domain.Attachment{{URL: "https://cdn.example/a.png"}}
	require.NoError(t, h.relay.HandleMessage(context.Background(), msg))

	require.Len(t, h.platform.sent, 1)
	assert.Equal(t, "", h.platform.sent[0].Envelope.Body)
	assert.Equal(t, "https://cdn.example/a.png", h.platform.sent[0].Envelope.ImageURL)
}

func TestRelay_InboundVanishedChannelForgetsPending(t *testing.T) {
	platform := newFakePlatform()
	h := newHarness(platform)
	require.NoError(t, h.relay.HandleMessage(context.Background(), directMessage("hello")))

	platform.sendErr = apperrors.NewRemoteError("send message", 404, errors.New("unknown channel"))
	err := h.relay.HandleMessage(context.Background(), directMessage("still there?"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRemoteNotFound))

	_, ok, _ := h.pending.Get(context.Background(), alice.ID)
	assert.False(t, ok)
}

func TestRelay_InboundReprovisionsWhenTicketDeletedBeforeMirrorCaughtUp(t *testing.T) {
	platform := newFakePlatform()
	h := newHarness(platform)
	require.NoError(t, h.relay.HandleMessage(context.Background(), directMessage("hello")))

	platform.removeChannel("901", false)
	require.NoError(t, h.relay.HandleMessage(context.Background(), directMessage("anyone?")))

	assert.Equal(t, []string{"create:42", "send:901", "send:901", "create:42", "send:902"}, platform.calls)
	require.Len(t, platform.sent, 2)
	assert.Equal(t, "902", platform.sent[1].ChannelID)
	assert.Equal(t, "anyone?", platform.sent[1].Envelope.Body)

	channelID, ok, err := h.pending.Get(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "902", channelID)
}

func TestRelay_OutboundToTicketOwner(t *testing.T) {
	h := newHarness(newFakePlatform(ticketChannel("1", "42")))

	require.NoError(t, h.relay.HandleMessage(context.Background(), staffMessage("1", "we are on it")))

	assert.Equal(t, []string{"open:42", "send:dm-42"}, h.platform.calls)
	assert.Equal(t, domain.OutboundEnvelope{
		AuthorName:    "Staff",
		AuthorIconURL: testIconURL,
		Body:          "we are on it",
		Timestamp:     sentAt,
	}, h.platform.sent[0].Envelope)

	h.recorder.mu.Lock()
	defer h.recorder.mu.Unlock()
	require.Len(t, h.recorder.events, 1)
	assert.Equal(t, domain.RelayOutbound, h.recorder.events[0].Direction)
	assert.Equal(t, "7", h.recorder.events[0].ActorID)
	assert.Equal(t, "42", h.recorder.events[0].UserID)
}

func TestRelay_OutboundDropsNonTicketChannels(t *testing.T) {
	h := newHarness(newFakePlatform(
		domain.Channel{ID: "2", GuildID: testGuildID, ParentID: "999", Topic: "42"},
		domain.Channel{ID: "3", GuildID: testGuildID, ParentID: testCategoryID, Topic: "read the rules"},
	))

	for _, channelID := range []string{"2", "3", "404"} {
		require.NoError(t, h.relay.HandleMessage(context.Background(), staffMessage(channelID, "chatter")))
	}
	assert.Empty(t, h.platform.calls)
}

func TestRelay_OutboundSendFailureSurfaces(t *testing.T) {
	platform := newFakePlatform(ticketChannel("1", "42"))
	platform.openErr = apperrors.NewRemoteError("open private channel", 403, errors.New("cannot send messages to this user"))
	h := newHarness(platform)

	err := h.relay.HandleMessage(context.Background(), staffMessage("1", "hello"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeRemoteForbidden))
	assert.Empty(t, h.recorder.kinds())
}

func TestStringPreview(t *testing.T) {
	assert.Equal(t, "short", stringPreview("short", 10))
	assert.Equal(t, "abcdefg...", stringPreview("abcdefghijklmnop", 10))
	assert.Equal(t, "こんに", stringPreview("こんにちは", 3))
}
