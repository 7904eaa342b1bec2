package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mc-fdc-dev/modmail/internal/config"
	"github.com/mc-fdc-dev/modmail/internal/domain"
	"github.com/mc-fdc-dev/modmail/internal/events"
	"github.com/mc-fdc-dev/modmail/internal/locale"
	"github.com/mc-fdc-dev/modmail/internal/observability"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

// CloseNoticeColor is the accent color of the notice sent to a user whose ticket was closed.
const CloseNoticeColor = 0xf50505

// CommandDependencies bundles collaborators for the command service.
type CommandDependencies struct {
	Lookup     *TicketLookup
	Tickets    *TicketService
	Sender     MessageSender
	Responder  InteractionResponder
	Deleter    ChannelDeleter
	Moderator  MemberModerator
	Latency    LatencyProbe
	Catalog    *locale.Catalog
	Workspace  config.WorkspaceConfig
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// CommandService executes slash commands.
type CommandService struct {
	lookup     *TicketLookup
	tickets    *TicketService
	sender     MessageSender
	responder  InteractionResponder
	deleter    ChannelDeleter
	moderator  MemberModerator
	latency    LatencyProbe
	catalog    *locale.Catalog
	workspace  config.WorkspaceConfig
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewCommandService constructs the service.
func NewCommandService(deps CommandDependencies) *CommandService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = locale.NewCatalog("")
	}
	return &CommandService{
		lookup:     deps.Lookup,
		tickets:    deps.Tickets,
		sender:     deps.Sender,
		responder:  deps.Responder,
		deleter:    deps.Deleter,
		moderator:  deps.Moderator,
		latency:    deps.Latency,
		catalog:    catalog,
		workspace:  deps.Workspace,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// Handle executes inv. Every invocation receives exactly one initial acknowledgment.
func (s *CommandService) Handle(ctx context.Context, inv domain.CommandInvocation) error {
	s.metrics.Inc("command_" + string(inv.Name))
	switch inv.Name {
	case domain.CommandPing:
		return s.ping(ctx, inv)
	case domain.CommandClose:
		return s.close(ctx, inv)
	case domain.CommandKick:
		return s.moderate(ctx, inv, domain.PermissionKickMembers, locale.KeyMemberRemoved,
			s.moderator.RemoveMember, events.EventMemberRemoved, domain.TicketEventMemberRemoved)
	case domain.CommandBan:
		return s.moderate(ctx, inv, domain.PermissionBanMembers, locale.KeyMemberBanned,
			s.moderator.BanMember, events.EventMemberBanned, domain.TicketEventMemberBanned)
	default:
		return s.respond(ctx, inv, locale.KeyUnknownCommand)
	}
}

func (s *CommandService) ping(ctx context.Context, inv domain.CommandInvocation) error {
	if err := s.responder.Defer(ctx, inv); err != nil {
		return err
	}
	content := fmt.Sprintf("%s\n%d", s.catalog.Message(inv.Locale, locale.KeyPong), s.latency.Latency().Microseconds())
	return s.responder.FollowUp(ctx, inv, domain.InteractionResponse{Content: content})
}

func (s *CommandService) close(ctx context.Context, inv domain.CommandInvocation) error {
	ticket, err := s.lookup.TicketForChannel(inv.ChannelID)
	if err != nil {
		if IsRoutingMiss(err) {
			return s.respond(ctx, inv, locale.KeyCloseOnlyInTicket)
		}
		return err
	}

	dmChannelID, err := s.sender.OpenPrivateChannel(ctx, ticket.OwnerID)
	if err != nil {
		return s.fail(ctx, inv, false, err)
	}
	notice := domain.OutboundEnvelope{
		Title: s.catalog.Message("", locale.KeyCloseNoticeTitle),
		Body:  s.catalog.Message("", locale.KeyCloseNoticeBody),
		Color: CloseNoticeColor,
	}
	if err := s.sender.SendEnvelope(ctx, dmChannelID, notice); err != nil {
		return s.fail(ctx, inv, false, err)
	}

	if err := s.responder.Respond(ctx, inv, domain.InteractionResponse{
		Content: s.catalog.Message(inv.Locale, locale.KeyCloseConfirmed),
	}); err != nil {
		return err
	}
	if err := s.deleter.DeleteChannel(ctx, ticket.ID); err != nil {
		return err
	}
	if err := s.tickets.Forget(ctx, ticket.OwnerID); err != nil {
		s.logger.Warn("forget pending ticket failed", zap.String("user_id", ticket.OwnerID), zap.Error(err))
	}

	s.logger.Info("ticket closed",
		zap.String("user_id", ticket.OwnerID),
		zap.String("channel_id", ticket.ID),
		zap.String("actor_id", inv.Invoker().ID))
	publishTicketEvent(ctx, s.dispatcher, events.EventTicketClosed, domain.TicketEvent{
		Kind:      domain.TicketEventClosed,
		UserID:    ticket.OwnerID,
		ChannelID: ticket.ID,
		ActorID:   inv.Invoker().ID,
	})
	return nil
}

func (s *CommandService) moderate(
	ctx context.Context,
	inv domain.CommandInvocation,
	required domain.Permissions,
	success locale.Key,
	action func(ctx context.Context, guildID, userID string) error,
	eventType events.EventType,
	kind domain.TicketEventKind,
) error {
	if inv.Member == nil || !inv.Member.Permissions.Has(required) {
		return s.respond(ctx, inv, locale.KeyStaffOnly)
	}
	if inv.TargetUserID == "" {
		err := apperrors.NewValidationError("target user is required", map[string]any{"command": string(inv.Name)})
		return s.fail(ctx, inv, false, err)
	}

	if err := s.responder.Defer(ctx, inv); err != nil {
		return err
	}
	if err := action(ctx, s.workspace.GuildID, inv.TargetUserID); err != nil {
		return s.fail(ctx, inv, true, err)
	}
	if err := s.responder.FollowUp(ctx, inv, domain.InteractionResponse{
		Content: s.catalog.Message(inv.Locale, success),
	}); err != nil {
		return err
	}

	s.logger.Info("member moderated",
		zap.String("command", string(inv.Name)),
		zap.String("target_id", inv.TargetUserID),
		zap.String("actor_id", inv.Invoker().ID))
	publishTicketEvent(ctx, s.dispatcher, eventType, domain.TicketEvent{
		Kind:    kind,
		UserID:  inv.TargetUserID,
		ActorID: inv.Invoker().ID,
	})
	return nil
}

// respond sends an ephemeral initial response.
func (s *CommandService) respond(ctx context.Context, inv domain.CommandInvocation, key locale.Key) error {
	return s.responder.Respond(ctx, inv, domain.InteractionResponse{
		Content:   s.catalog.Message(inv.Locale, key),
		Ephemeral: true,
	})
}

// fail tells the invoker the command did not complete and returns cause. deferred selects
// a follow-up instead of an initial response.
func (s *CommandService) fail(ctx context.Context, inv domain.CommandInvocation, deferred bool, cause error) error {
	reply := domain.InteractionResponse{
		Content:   s.catalog.Message(inv.Locale, locale.KeyCommandFailed),
		Ephemeral: true,
	}
	var err error
	if deferred {
		err = s.responder.FollowUp(ctx, inv, reply)
	} else {
		err = s.responder.Respond(ctx, inv, reply)
	}
	if err != nil {
		s.logger.Warn("failure reply not delivered",
			zap.String("command", string(inv.Name)),
			zap.Error(err))
	}
	return cause
}
