package service

import (
	"github.com/mc-fdc-dev/modmail/internal/config"
	"github.com/mc-fdc-dev/modmail/internal/domain"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

// TicketLookup maps user identities to ticket channels using mirror metadata only.
// A channel is a ticket when its parent is the configured category and its topic holds
// the owner's user ID.
type TicketLookup struct {
	channels  ChannelDirectory
	workspace config.WorkspaceConfig
}

// NewTicketLookup constructs the lookup.
func NewTicketLookup(channels ChannelDirectory, workspace config.WorkspaceConfig) *TicketLookup {
	return &TicketLookup{channels: channels, workspace: workspace}
}

// FindTicketChannel returns the ticket channel for userID. With several matches the last
// one in mirror iteration order wins.
func (l *TicketLookup) FindTicketChannel(userID string) (string, bool) {
	matches := l.Matches(userID)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1].ID, true
}

// Matches returns every recognized ticket channel owned by userID, in mirror order.
func (l *TicketLookup) Matches(userID string) []domain.Channel {
	if userID == "" {
		return nil
	}
	var out []domain.Channel
	for _, ch := range l.channels.Channels() {
		if ch.ParentID == l.workspace.CategoryID && ch.Topic == userID {
			out = append(out, ch)
		}
	}
	return out
}

// TicketForChannel resolves the ticket behind a channel. Unknown channels and channels
// outside the category yield NOT_TICKET_CHANNEL; a category channel whose topic is not a
// user ID yields INVALID_TICKET_TOPIC.
func (l *TicketLookup) TicketForChannel(channelID string) (domain.TicketChannel, error) {
	ch, ok := l.channels.Channel(channelID)
	if !ok || ch.ParentID == "" || ch.ParentID != l.workspace.CategoryID {
		return domain.TicketChannel{}, apperrors.NewNotTicketChannel(channelID)
	}
	if !config.IsSnowflake(ch.Topic) {
		return domain.TicketChannel{}, apperrors.NewInvalidTopic(channelID, ch.Topic)
	}
	return toTicketChannel(ch), nil
}

// OwnerOf returns the owner of ch when ch is a recognized ticket channel.
func (l *TicketLookup) OwnerOf(ch domain.Channel) (string, bool) {
	if ch.ParentID == "" || ch.ParentID != l.workspace.CategoryID || !config.IsSnowflake(ch.Topic) {
		return "", false
	}
	return ch.Topic, true
}

// ListTickets returns every recognized ticket channel.
func (l *TicketLookup) ListTickets() []domain.TicketChannel {
	var out []domain.TicketChannel
	for _, ch := range l.channels.Channels() {
		if ch.ParentID != l.workspace.CategoryID || !config.IsSnowflake(ch.Topic) {
			continue
		}
		out = append(out, toTicketChannel(ch))
	}
	return out
}

// IsRoutingMiss reports whether err only means "this is not a ticket channel".
func IsRoutingMiss(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeNotTicketChannel) ||
		apperrors.HasCode(err, apperrors.CodeInvalidTopic)
}

func toTicketChannel(ch domain.Channel) domain.TicketChannel {
	return domain.TicketChannel{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		ParentID: ch.ParentID,
		Name:     ch.Name,
		OwnerID:  ch.Topic,
	}
}
