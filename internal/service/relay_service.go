package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mc-fdc-dev/modmail/internal/config"
	"github.com/mc-fdc-dev/modmail/internal/domain"
	"github.com/mc-fdc-dev/modmail/internal/events"
	"github.com/mc-fdc-dev/modmail/internal/observability"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

const bodyPreviewLength = 120

// RelayDependencies bundles collaborators for the relay service.
type RelayDependencies struct {
	Tickets    *TicketService
	Lookup     *TicketLookup
	Sender     MessageSender
	Channels   ChannelDirectory
	Workspace  config.WorkspaceConfig
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// RelayService bridges private conversations and ticket channels.
type RelayService struct {
	tickets    *TicketService
	lookup     *TicketLookup
	sender     MessageSender
	channels   ChannelDirectory
	workspace  config.WorkspaceConfig
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewRelayService constructs the service.
func NewRelayService(deps RelayDependencies) *RelayService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayService{
		tickets:    deps.Tickets,
		lookup:     deps.Lookup,
		sender:     deps.Sender,
		channels:   deps.Channels,
		workspace:  deps.Workspace,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// HandleMessage relays one inbound message. Bot-authored messages are ignored. Private
// messages go to the author's ticket channel; messages in a ticket channel go to the
// ticket owner. Anything else is dropped.
func (s *RelayService) HandleMessage(ctx context.Context, msg domain.InboundMessage) error {
	if msg.Author.Bot {
		return nil
	}
	if msg.FromGuild() {
		return s.relayToUser(ctx, msg)
	}
	return s.relayToStaff(ctx, msg)
}

func (s *RelayService) relayToStaff(ctx context.Context, msg domain.InboundMessage) error {
	envelope := domain.OutboundEnvelope{
		AuthorName:    msg.Author.Name,
		AuthorIconURL: msg.Author.AvatarURL,
		Body:          msg.Content,
		ImageURL:      msg.FirstAttachmentURL(),
		Timestamp:     msg.Timestamp,
	}

	// a ticket deleted before the mirror caught up answers NOT_FOUND; resolve once more
	for attempt := 0; ; attempt++ {
		resolution, err := s.tickets.Resolve(ctx, msg.Author)
		if err != nil {
			return err
		}
		err = s.sender.SendEnvelope(ctx, resolution.ChannelID, envelope)
		if err == nil {
			s.relayed(ctx, msg, domain.RelayInbound, msg.Author.ID, resolution.ChannelID)
			return nil
		}
		if !apperrors.HasCode(err, apperrors.CodeRemoteNotFound) {
			return err
		}
		if forgetErr := s.tickets.Forget(ctx, msg.Author.ID); forgetErr != nil {
			s.logger.Warn("forget pending ticket failed", zap.String("user_id", msg.Author.ID), zap.Error(forgetErr))
		}
		if attempt > 0 {
			return err
		}
		s.logger.Info("ticket channel vanished; resolving again",
			zap.String("user_id", msg.Author.ID),
			zap.String("channel_id", resolution.ChannelID))
	}
}

func (s *RelayService) relayToUser(ctx context.Context, msg domain.InboundMessage) error {
	ticket, err := s.lookup.TicketForChannel(msg.ChannelID)
	if err != nil {
		if IsRoutingMiss(err) {
			s.logger.Debug("message outside ticket channels dropped",
				zap.String("channel_id", msg.ChannelID),
				zap.String("reason", apperrors.ToDomainError(err).Code))
			return nil
		}
		return err
	}

	dmChannelID, err := s.sender.OpenPrivateChannel(ctx, ticket.OwnerID)
	if err != nil {
		return err
	}
	envelope := domain.OutboundEnvelope{
		AuthorName:    s.workspace.StaffDisplayName,
		AuthorIconURL: s.channels.GuildIconURL(s.workspace.GuildID),
		Body:          msg.Content,
		ImageURL:      msg.FirstAttachmentURL(),
		Timestamp:     msg.Timestamp,
	}
	if err := s.sender.SendEnvelope(ctx, dmChannelID, envelope); err != nil {
		return err
	}

	s.relayed(ctx, msg, domain.RelayOutbound, ticket.OwnerID, ticket.ID)
	return nil
}

func (s *RelayService) relayed(ctx context.Context, msg domain.InboundMessage, direction domain.RelayDirection, userID, channelID string) {
	s.metrics.Inc("relay_" + string(direction))
	publishTicketEvent(ctx, s.dispatcher, events.EventTicketMessageRelayed, domain.TicketEvent{
		Kind:        domain.TicketEventMessageRelayed,
		UserID:      userID,
		ChannelID:   channelID,
		ActorID:     msg.Author.ID,
		Direction:   direction,
		BodyPreview: stringPreview(msg.Content, bodyPreviewLength),
	})
}
