package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coachpo/folio/errs"
)

// MemoryBus is an in-memory implementation of the event bus. Delivery is
// non-blocking: a subscriber whose buffer is full loses the event rather than
// stalling the publisher.
type MemoryBus struct {
	cfg MemoryConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	subscribers  map[EventType]map[SubscriptionID]*subscriber
	shutdownOnce sync.Once
	nextID       uint64
}

type subscriber struct {
	ctx    context.Context
	cancel context.CancelFunc
	ch     chan *Event
	once   sync.Once
}

// NewMemoryBus constructs a memory-backed event bus.
func NewMemoryBus(cfg MemoryConfig) *MemoryBus {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())
	bus := new(MemoryBus)
	bus.cfg = cfg
	bus.ctx = ctx
	bus.cancel = cancel
	bus.subscribers = make(map[EventType]map[SubscriptionID]*subscriber)
	return bus
}

// Publish fan-outs the event to all subscribers of its type.
func (b *MemoryBus) Publish(ctx context.Context, evt *Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if evt == nil {
		return nil
	}
	if evt.Type == "" {
		return errs.New("eventbus/publish", errs.CodeInvalid, errs.WithMessage("event type required"))
	}

	// Snapshot subscribers to avoid holding lock during delivery.
	b.mu.RLock()
	subscribers := make([]*subscriber, 0, len(b.subscribers[evt.Type]))
	for _, sub := range b.subscribers[evt.Type] {
		subscribers = append(subscribers, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subscribers {
		if sub == nil {
			continue
		}
		b.deliver(sub, evt)
	}
	return nil
}

// Subscribe registers for events of the given type and returns a subscription
// ID plus the delivery channel.
func (b *MemoryBus) Subscribe(ctx context.Context, typ EventType) (SubscriptionID, <-chan *Event, error) {
	if typ == "" {
		return "", nil, errs.New("eventbus/subscribe", errs.CodeInvalid, errs.WithMessage("event type required"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	sub := new(subscriber)
	sub.ctx = ctx
	sub.cancel = cancel
	sub.ch = make(chan *Event, b.cfg.BufferSize)

	id := SubscriptionID(fmt.Sprintf("sub-%d", atomic.AddUint64(&b.nextID, 1)))

	b.mu.Lock()
	if _, ok := b.subscribers[typ]; !ok {
		b.subscribers[typ] = make(map[SubscriptionID]*subscriber)
	}
	b.subscribers[typ][id] = sub
	b.mu.Unlock()

	go b.observe(typ, id, sub)
	return id, sub.ch, nil
}

// Unsubscribe removes the subscription and closes its channel.
func (b *MemoryBus) Unsubscribe(id SubscriptionID) {
	if id == "" {
		return
	}
	b.mu.Lock()
	for typ, subs := range b.subscribers {
		if sub, ok := subs[id]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subscribers, typ)
			}
			b.mu.Unlock()
			sub.close()
			return
		}
	}
	b.mu.Unlock()
}

// Close shuts down the bus and all subscriptions.
func (b *MemoryBus) Close() {
	b.shutdownOnce.Do(func() {
		b.cancel()
		b.mu.Lock()
		for typ, subs := range b.subscribers {
			for id, sub := range subs {
				if sub != nil {
					sub.close()
				}
				delete(subs, id)
			}
			delete(b.subscribers, typ)
		}
		b.mu.Unlock()
	})
}

func (b *MemoryBus) observe(typ EventType, id SubscriptionID, sub *subscriber) {
	<-sub.ctx.Done()
	b.mu.Lock()
	subs := b.subscribers[typ]
	if subs != nil {
		if stored, ok := subs[id]; ok && stored == sub {
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subscribers, typ)
			}
		}
	}
	b.mu.Unlock()
	sub.close()
}

func (b *MemoryBus) deliver(sub *subscriber, evt *Event) {
	if sub.ctx.Err() != nil || b.ctx.Err() != nil {
		return
	}
	select {
	case sub.ch <- evt:
	default:
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		s.cancel()
		close(s.ch)
	})
}
