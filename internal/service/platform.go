package service

import (
	"context"
	"time"

	"github.com/mc-fdc-dev/modmail/internal/domain"
)

// ChannelDirectory is read access to the local mirror.
type ChannelDirectory interface {
	Channels() []domain.Channel
	Channel(channelID string) (domain.Channel, bool)
	GuildIconURL(guildID string) string
}

// ChannelCreator creates guild channels on the platform.
type ChannelCreator interface {
	CreateTicketChannel(ctx context.Context, guildID, parentID, name, topic string) (domain.Channel, error)
}

// MessageSender delivers envelopes to channels and private conversations.
type MessageSender interface {
	OpenPrivateChannel(ctx context.Context, userID string) (string, error)
	SendEnvelope(ctx context.Context, channelID string, envelope domain.OutboundEnvelope) error
}

// ChannelDeleter removes channels on the platform.
type ChannelDeleter interface {
	DeleteChannel(ctx context.Context, channelID string) error
}

// MemberModerator removes or bans guild members.
type MemberModerator interface {
	RemoveMember(ctx context.Context, guildID, userID string) error
	BanMember(ctx context.Context, guildID, userID string) error
}

// InteractionResponder implements the acknowledgment protocol of command invocations.
type InteractionResponder interface {
	Respond(ctx context.Context, inv domain.CommandInvocation, resp domain.InteractionResponse) error
	Defer(ctx context.Context, inv domain.CommandInvocation) error
	FollowUp(ctx context.Context, inv domain.CommandInvocation, resp domain.InteractionResponse) error
}

// LatencyProbe reports the realtime feed round-trip latency.
type LatencyProbe interface {
	Latency() time.Duration
}
