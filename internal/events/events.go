package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"appointly/backend/internal/domain"
)

const DefaultChannel = "appointly:bookings"

type Type string

const (
	BookingCreated       Type = "booking_created"
	BookingUpdated       Type = "booking_updated"
	BookingStatusChanged Type = "booking_status_changed"
)

type Event struct {
	Type       Type                 `json:"type"`
	BookingID  uuid.UUID            `json:"booking_id"`
	CompanyID  uuid.UUID            `json:"company_id"`
	CustomerID uuid.UUID            `json:"customer_id"`
	Status     domain.BookingStatus `json:"status"`
	StartAt    time.Time            `json:"start_at"`
	EndAt      time.Time            `json:"end_at"`
	StaffIDs   []uuid.UUID          `json:"staff_ids"`
	OccurredAt time.Time            `json:"occurred_at"`
}

func NewEvent(t Type, b domain.Booking, as []domain.BookingServiceAssignment) Event {
	return Event{
		Type:       t,
		BookingID:  b.ID,
		CompanyID:  b.CompanyID,
		CustomerID: b.CustomerID,
		Status:     b.Status,
		StartAt:    b.StartAt,
		EndAt:      b.EndAt,
		StaffIDs:   domain.DistinctStaff(as),
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type RedisPublisher struct {
	client  redis.Cmdable
	channel string
}

func NewRedisPublisher(client redis.Cmdable, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Discard drops every event. It is used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
