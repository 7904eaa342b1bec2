package domain

import "time"

// TicketEventKind captures what happened to a ticket.
type TicketEventKind string

const (
	TicketEventOpened            TicketEventKind = "TICKET_OPENED"
	TicketEventMessageRelayed    TicketEventKind = "MESSAGE_RELAYED"
	TicketEventClosed            TicketEventKind = "TICKET_CLOSED"
	TicketEventMemberRemoved     TicketEventKind = "MEMBER_REMOVED"
	TicketEventMemberBanned      TicketEventKind = "MEMBER_BANNED"
	TicketEventDuplicateDetected TicketEventKind = "DUPLICATE_DETECTED"
)

// RelayDirection tells which way a message crossed the bridge.
type RelayDirection string

const (
	RelayInbound  RelayDirection = "INBOUND"
	RelayOutbound RelayDirection = "OUTBOUND"
)

// TicketEvent is an immutable audit trail entry.
type TicketEvent struct {
	ID          string
	Kind        TicketEventKind
	UserID      string
	ChannelID   string
	ActorID     string
	Direction   RelayDirection
	BodyPreview string
	Details     map[string]any
	CreatedAt   time.Time
}
