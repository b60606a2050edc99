// Package eventbus defines the pub/sub surface for runtime events emitted by
// the strategy engine: log lines, strategy state snapshots and order/trade
// echoes for presentation layers.
package eventbus

import (
	"context"
	"time"
)

// EventType partitions the bus into independent streams.
type EventType string

const (
	// TypeLog carries human-readable log lines.
	TypeLog EventType = "log"
	// TypeStrategyState carries full strategy snapshots after lifecycle moves.
	TypeStrategyState EventType = "strategy_state"
	// TypeOrder echoes order snapshots routed to a strategy.
	TypeOrder EventType = "order"
	// TypeTrade echoes fills routed to a strategy.
	TypeTrade EventType = "trade"
)

// Event is one bus message. Payload holds the type-specific body.
type Event struct {
	Type      EventType `json:"type"`
	Strategy  string    `json:"strategy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// SubscriptionID uniquely identifies a bus subscription.
type SubscriptionID string

// Bus delivers runtime events to interested subscribers.
type Bus interface {
	Publish(ctx context.Context, evt *Event) error
	Subscribe(ctx context.Context, typ EventType) (SubscriptionID, <-chan *Event, error)
	Unsubscribe(id SubscriptionID)
	Close()
}

// MemoryConfig configures the in-memory bus buffers.
type MemoryConfig struct {
	BufferSize int
}

func (c MemoryConfig) normalize() MemoryConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 64
	}
	return c
}
