package strategy

import (
	"sync"

	"github.com/coachpo/folio/internal/schema"
)

// OrderBook records every order a strategy has submitted and the subset that
// is still live. An id leaves the active set exactly once, when a terminal
// status is observed.
type OrderBook struct {
	mu     sync.RWMutex
	orders map[string]schema.OrderData
	active map[string]struct{}
}

// NewOrderBook allocates an empty book.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		orders: make(map[string]schema.OrderData),
		active: make(map[string]struct{}),
	}
}

// Register marks a freshly submitted order id as active.
func (b *OrderBook) Register(orderID string) {
	if orderID == "" {
		return
	}
	b.mu.Lock()
	b.active[orderID] = struct{}{}
	b.mu.Unlock()
}

// Update stores the latest order snapshot and retires the id from the active
// set when the order reached a terminal status.
func (b *OrderBook) Update(order schema.OrderData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[order.ID] = order
	if !order.Status.IsActive() {
		delete(b.active, order.ID)
	}
}

// Order returns the last known snapshot for the id.
func (b *OrderBook) Order(orderID string) (schema.OrderData, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	order, ok := b.orders[orderID]
	return order, ok
}

// ActiveIDs returns the ids of all non-terminal orders.
func (b *OrderBook) ActiveIDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.active))
	for id := range b.active {
		ids = append(ids, id)
	}
	return ids
}

// ActiveCount returns the number of live orders.
func (b *OrderBook) ActiveCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.active)
}
