package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mc-fdc-dev/modmail/internal/domain"
	"github.com/mc-fdc-dev/modmail/internal/events"
)

func publishTicketEvent(ctx context.Context, dispatcher events.Dispatcher, eventType events.EventType, payload domain.TicketEvent) {
	if dispatcher == nil {
		return
	}
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	if payload.CreatedAt.IsZero() {
		payload.CreatedAt = time.Now()
	}
	_ = dispatcher.Publish(ctx, events.Event{
		Type:      eventType,
		Timestamp: payload.CreatedAt,
		Payload:   payload,
	})
}

func stringPreview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
