package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mc-fdc-dev/modmail/internal/domain"
	"github.com/mc-fdc-dev/modmail/internal/events"
	"github.com/mc-fdc-dev/modmail/internal/repository"
	apperrors "github.com/mc-fdc-dev/modmail/pkg/util/errorutil"
)

const defaultHistoryLimit = 50

// AuditService records ticket lifecycle events. Without a repository it only logs them.
type AuditService struct {
	dispatcher events.Dispatcher
	repo       repository.TicketEventRepository
	logger     *zap.Logger
}

// NewAuditService creates the service. repo may be nil.
func NewAuditService(dispatcher events.Dispatcher, repo repository.TicketEventRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		repo:       repo,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to ticket events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventTicketOpened,
		events.EventTicketMessageRelayed,
		events.EventTicketClosed,
		events.EventMemberRemoved,
		events.EventMemberBanned,
		events.EventTicketDuplicateDetected,
	} {
		a.dispatcher.Subscribe(eventType, a.handleTicketEvent)
	}
}

// Enabled reports whether events are persisted.
func (a *AuditService) Enabled() bool {
	return a.repo != nil
}

// History returns the most recent events of userID, newest first.
func (a *AuditService) History(ctx context.Context, userID string, limit int) ([]domain.TicketEvent, error) {
	if a.repo == nil {
		return nil, apperrors.NewNotFound("audit trail", nil)
	}
	if limit <= 0 || limit > 200 {
		limit = defaultHistoryLimit
	}
	return a.repo.ListByUser(ctx, userID, limit)
}

func (a *AuditService) handleTicketEvent(ctx context.Context, event events.Event) error {
	ticketEvent, ok := event.Payload.(domain.TicketEvent)
	if !ok {
		return apperrors.NewInternalError(fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type))
	}

	a.logger.Debug("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", ticketEvent.UserID),
		zap.String("channel_id", ticketEvent.ChannelID))

	if a.repo == nil {
		return nil
	}
	return a.repo.Create(ctx, &ticketEvent)
}
