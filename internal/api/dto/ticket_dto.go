package dto

import (
	"time"

	"github.com/mc-fdc-dev/modmail/internal/domain"
)

// TicketSummary describes one open ticket channel.
type TicketSummary struct {
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Name      string `json:"name"`
	UserID    string `json:"user_id"`
}

// TicketEventResponse is one audit trail entry.
type TicketEventResponse struct {
	ID          string                 `json:"id"`
	Kind        domain.TicketEventKind `json:"kind"`
	UserID      string                 `json:"user_id"`
	ChannelID   string                 `json:"channel_id,omitempty"`
	ActorID     string                 `json:"actor_id,omitempty"`
	Direction   domain.RelayDirection  `json:"direction,omitempty"`
	BodyPreview string                 `json:"body_preview,omitempty"`
	Details     map[string]any         `json:"details,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewTicketSummary maps a ticket channel.
func NewTicketSummary(ticket domain.TicketChannel) TicketSummary {
	return TicketSummary{
		ChannelID: ticket.ID,
		GuildID:   ticket.GuildID,
		Name:      ticket.Name,
		UserID:    ticket.OwnerID,
	}
}

// NewTicketEventResponse maps an audit entry.
func NewTicketEventResponse(event domain.TicketEvent) TicketEventResponse {
	return TicketEventResponse{
		ID:          event.ID,
		Kind:        event.Kind,
		UserID:      event.UserID,
		ChannelID:   event.ChannelID,
		ActorID:     event.ActorID,
		Direction:   event.Direction,
		BodyPreview: event.BodyPreview,
		Details:     event.Details,
		CreatedAt:   event.CreatedAt,
	}
}
