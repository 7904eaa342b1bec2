package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mc-fdc-dev/modmail/internal/domain"
	"github.com/mc-fdc-dev/modmail/internal/events"
	"github.com/mc-fdc-dev/modmail/internal/service"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

// RelayWorkerDependencies bundles the handlers driven by the feed.
type RelayWorkerDependencies struct {
	Relay    *service.RelayService
	Tickets  *service.TicketService
	Commands *service.CommandService
	Audit    *service.AuditService
	Logger   *zap.Logger
}

// StartRelayWorker subscribes the relay, command and audit handlers to the dispatcher.
// Channel creations and deletions settle pending tickets once the mirror has applied them.
func StartRelayWorker(dispatcher events.Dispatcher, deps RelayWorkerDependencies) {
	if dispatcher == nil {
		return
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dispatcher.Subscribe(events.EventReady, func(_ context.Context, event events.Event) error {
		ready, ok := event.Payload.(events.ReadyPayload)
		if !ok {
			return unexpectedPayload(event)
		}
		logger.Info("Ready!",
			zap.String("bot_user", ready.BotUser.Name),
			zap.String("session_id", ready.SessionID),
			zap.Int("guilds", ready.GuildCount))
		return nil
	})

	if deps.Relay != nil {
		dispatcher.Subscribe(events.EventMessageCreated, func(ctx context.Context, event events.Event) error {
			msg, ok := event.Payload.(domain.InboundMessage)
			if !ok {
				return unexpectedPayload(event)
			}
			return deps.Relay.HandleMessage(ctx, msg)
		})
	}

	if deps.Tickets != nil {
		settle := func(ctx context.Context, event events.Event) error {
			ch, ok := event.Payload.(domain.Channel)
			if !ok {
				return unexpectedPayload(event)
			}
			return deps.Tickets.Settle(ctx, ch)
		}
		dispatcher.Subscribe(events.EventChannelCreated, settle)
		dispatcher.Subscribe(events.EventChannelDeleted, settle)
	}

	if deps.Commands != nil {
		dispatcher.Subscribe(events.EventInteractionCreated, func(ctx context.Context, event events.Event) error {
			inv, ok := event.Payload.(domain.CommandInvocation)
			if !ok {
				return unexpectedPayload(event)
			}
			return deps.Commands.Handle(ctx, inv)
		})
	}

	if deps.Audit != nil {
		deps.Audit.RegisterHandlers()
	}
}

func unexpectedPayload(event events.Event) error {
	return apperrors.NewInternalError(fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type))
}
