package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mc-fdc-dev/modmail/internal/domain"
	"github.com/mc-fdc-dev/modmail/internal/events"
	"github.com/mc-fdc-dev/modmail/internal/observability"
)

// TicketLocker serializes provisioning for one user across processes.
type TicketLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// PendingTicketStore remembers channels that were provisioned but have not reached the
// mirror yet.
type PendingTicketStore interface {
	Get(ctx context.Context, userID string) (string, bool, error)
	Put(ctx context.Context, userID, channelID string) error
	Delete(ctx context.Context, userID string) error
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Lookup      *TicketLookup
	Provisioner *TicketProvisioner
	Locker      TicketLocker
	Pending     PendingTicketStore
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// Resolution is the outcome of resolving a user's ticket.
type Resolution struct {
	ChannelID string
	Created   bool
}

// TicketService finds or creates the ticket channel of a user. Concurrent resolutions
// for the same user share one lookup-then-provision sequence, so a burst of first
// messages produces a single channel.
type TicketService struct {
	lookup      *TicketLookup
	provisioner *TicketProvisioner
	locker      TicketLocker
	pending     PendingTicketStore
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics

	group      singleflight.Group
	duplicates sync.Map
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		lookup:      deps.Lookup,
		provisioner: deps.Provisioner,
		locker:      deps.Locker,
		pending:     deps.Pending,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		metrics:     deps.Metrics,
	}
}

// Resolve returns the ticket channel of user, provisioning one when none exists.
func (s *TicketService) Resolve(ctx context.Context, user domain.User) (Resolution, error) {
	v, err, _ := s.group.Do(user.ID, func() (interface{}, error) {
		return s.findOrCreate(ctx, user)
	})
	if err != nil {
		return Resolution{}, err
	}
	return v.(Resolution), nil
}

// Forget drops any pending record for userID. Called once a ticket is closed.
func (s *TicketService) Forget(ctx context.Context, userID string) error {
	s.duplicates.Delete(userID)
	if s.pending == nil {
		return nil
	}
	return s.pending.Delete(ctx, userID)
}

// Settle drops the pending record that points at ch once the mirror has applied its
// creation or deletion. From then on the mirror alone decides routing for that channel.
// Records pointing at other channels are kept.
func (s *TicketService) Settle(ctx context.Context, ch domain.Channel) error {
	if s.pending == nil {
		return nil
	}
	ownerID, ok := s.lookup.OwnerOf(ch)
	if !ok {
		return nil
	}
	channelID, found, err := s.pending.Get(ctx, ownerID)
	if err != nil || !found || channelID != ch.ID {
		return err
	}
	s.logger.Debug("pending ticket settled",
		zap.String("user_id", ownerID),
		zap.String("channel_id", ch.ID))
	return s.pending.Delete(ctx, ownerID)
}

func (s *TicketService) findOrCreate(ctx context.Context, user domain.User) (Resolution, error) {
	if channelID, ok := s.find(ctx, user.ID); ok {
		return Resolution{ChannelID: channelID}, nil
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, "ticket:"+user.ID)
		if err != nil {
			return Resolution{}, fmt.Errorf("acquire provision lock: %w", err)
		}
		defer unlock()

		// another process may have provisioned while we waited
		if channelID, ok := s.find(ctx, user.ID); ok {
			return Resolution{ChannelID: channelID}, nil
		}
	}

	ticket, err := s.provisioner.Provision(ctx, user)
	if err != nil {
		s.metrics.Inc("ticket_provision_failed")
		return Resolution{}, err
	}
	if s.pending != nil {
		if err := s.pending.Put(ctx, user.ID, ticket.ID); err != nil {
			s.logger.Warn("remember pending ticket failed",
				zap.String("user_id", user.ID),
				zap.String("channel_id", ticket.ID),
				zap.Error(err))
		}
	}

	s.metrics.Inc("ticket_provisioned")
	s.logger.Info("ticket opened",
		zap.String("user_id", user.ID),
		zap.String("channel_id", ticket.ID))
	publishTicketEvent(ctx, s.dispatcher, events.EventTicketOpened, domain.TicketEvent{
		Kind:      domain.TicketEventOpened,
		UserID:    user.ID,
		ChannelID: ticket.ID,
	})
	return Resolution{ChannelID: ticket.ID, Created: true}, nil
}

func (s *TicketService) find(ctx context.Context, userID string) (string, bool) {
	matches := s.lookup.Matches(userID)
	if len(matches) > 0 {
		if len(matches) > 1 {
			s.flagDuplicates(ctx, userID, matches)
		}
		return matches[len(matches)-1].ID, true
	}
	if s.pending == nil {
		return "", false
	}
	channelID, ok, err := s.pending.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("pending ticket lookup failed", zap.String("user_id", userID), zap.Error(err))
		return "", false
	}
	return channelID, ok
}

// flagDuplicates reports a user owning several ticket channels. Each distinct set is
// reported once.
func (s *TicketService) flagDuplicates(ctx context.Context, userID string, matches []domain.Channel) {
	ids := make([]string, 0, len(matches))
	for _, ch := range matches {
		ids = append(ids, ch.ID)
	}
	key := strings.Join(ids, ",")
	if previous, loaded := s.duplicates.Swap(userID, key); loaded && previous == key {
		return
	}

	s.metrics.Inc("ticket_duplicate")
	s.logger.Warn("user owns several ticket channels",
		zap.String("user_id", userID),
		zap.Strings("channel_ids", ids),
		zap.String("routing_to", ids[len(ids)-1]))
	publishTicketEvent(ctx, s.dispatcher, events.EventTicketDuplicateDetected, domain.TicketEvent{
		Kind:      domain.TicketEventDuplicateDetected,
		UserID:    userID,
		ChannelID: ids[len(ids)-1],
		Details:   map[string]any{"channel_ids": ids},
	})
}
