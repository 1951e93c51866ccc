// Package events publishes ledger notifications to a Redis list after the
// corresponding database transaction has committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"giftledger/internal/logger"
	"giftledger/internal/models"
	"giftledger/internal/uuid"

	"github.com/go-redis/redis/v8"
)

// Type names an event.
type Type string

const (
	TransferCreated Type = "transfer.created"
	StatusChanged   Type = "holder.status_changed"
)

// Event is the JSON document pushed to the queue.
type Event struct {
	ID            string        `json:"id"`
	Type          Type          `json:"type"`
	Book          models.Book   `json:"book"`
	TransferID    uint          `json:"transfer_id,omitempty"`
	Reference     string        `json:"reference,omitempty"`
	SourceID      uint          `json:"source_id,omitempty"`
	DestinationID uint          `json:"destination_id,omitempty"`
	Amount        string        `json:"amount,omitempty"`
	ParentID      *uint         `json:"parent_id,omitempty"`
	OrderNumber   string        `json:"order_number,omitempty"`
	HolderID      uint          `json:"holder_id,omitempty"`
	Status        models.Status `json:"status,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// RedisPublisher appends events to a Redis list with RPUSH.
type RedisPublisher struct {
	client *redis.Client
	queue  string
}

// NewRedisPublisher wraps an existing client.
func NewRedisPublisher(client *redis.Client, queue string) *RedisPublisher {
	return &RedisPublisher{client: client, queue: queue}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.RPush(ctx, p.queue, string(data)).Err(); err != nil {
		return fmt.Errorf("push event to %s: %w", p.queue, err)
	}
	return nil
}

// Connect returns a Redis publisher when addr is set and the server answers
// PING, and a NopPublisher otherwise.
func Connect(ctx context.Context, addr, password string, db int, queue string) Publisher {
	log := logger.Get()
	if addr == "" {
		log.Info("REDIS_ADDR not set, ledger events are disabled")
		return NopPublisher{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnw("redis unavailable, ledger events are disabled", "addr", addr, "error", err)
		_ = client.Close()
		return NopPublisher{}
	}

	log.Infow("publishing ledger events", "addr", addr, "queue", queue)
	return NewRedisPublisher(client, queue)
}
