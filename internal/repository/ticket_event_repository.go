package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mc-fdc-dev/modmail/internal/domain"
)

// TicketEventRepository stores the ticket audit trail.
type TicketEventRepository interface {
	Create(ctx context.Context, event *domain.TicketEvent) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.TicketEvent, error)
}

type ticketEventRepository struct {
	pool *pgxpool.Pool
}

// NewTicketEventRepository builds repository.
func NewTicketEventRepository(pool *pgxpool.Pool) TicketEventRepository {
	return &ticketEventRepository{pool: pool}
}

func (r *ticketEventRepository) Create(ctx context.Context, event *domain.TicketEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return err
	}
	if event.Details == nil {
		details = []byte("{}")
	}
	const query = `
        INSERT INTO ticket_events (id, kind, user_id, channel_id, actor_id, direction, body_preview, details, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (id) DO NOTHING`
	_, err = r.pool.Exec(ctx, query,
		event.ID,
		event.Kind,
		event.UserID,
		event.ChannelID,
		event.ActorID,
		event.Direction,
		event.BodyPreview,
		details,
		event.CreatedAt,
	)
	return err
}

func (r *ticketEventRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.TicketEvent, error) {
	const query = `
        SELECT id, kind, user_id, channel_id, actor_id, direction, body_preview, details, created_at
        FROM ticket_events WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketEvent
	for rows.Next() {
		var (
			event   domain.TicketEvent
			details []byte
		)
		if err := rows.Scan(
			&event.ID,
			&event.Kind,
			&event.UserID,
			&event.ChannelID,
			&event.ActorID,
			&event.Direction,
			&event.BodyPreview,
			&details,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, err
			}
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
