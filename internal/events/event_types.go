package events

import (
	"time"

	"github.com/mc-fdc-dev/modmail/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

// Platform events delivered by the realtime feed.
const (
	EventReady              EventType = "ready"
	EventMessageCreated     EventType = "message_created"
	EventInteractionCreated EventType = "interaction_created"
	EventChannelCreated     EventType = "channel_created"
	EventChannelUpdated     EventType = "channel_updated"
	EventChannelDeleted     EventType = "channel_deleted"
	EventGuildCreated       EventType = "guild_created"
	EventGuildUpdated       EventType = "guild_updated"
	EventGuildDeleted       EventType = "guild_deleted"
)

// Ticket lifecycle events published in-process by the services.
const (
	EventTicketOpened            EventType = "ticket_opened"
	EventTicketMessageRelayed    EventType = "ticket_message_relayed"
	EventTicketClosed            EventType = "ticket_closed"
	EventMemberRemoved           EventType = "member_removed"
	EventMemberBanned            EventType = "member_banned"
	EventTicketDuplicateDetected EventType = "ticket_duplicate_detected"
)

// Event is the unit flowing through the dispatcher.
//
// Payload carries the domain form (domain.InboundMessage, domain.CommandInvocation,
// ReadyPayload, domain.TicketEvent). Raw carries the platform object the mirror
// replays; it is nil for in-process ticket events.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
	Raw       interface{} `json:"-"`
}

// ReadyPayload payload.
type ReadyPayload struct {
	BotUser    domain.User `json:"bot_user"`
	SessionID  string      `json:"session_id"`
	GuildCount int         `json:"guild_count"`
}
