package strategy

import (
	"testing"

	"github.com/coachpo/folio/internal/schema"
)

func TestBookRetiresTerminalOrdersOnce(t *testing.T) {
	b := NewOrderBook()
	b.Register("o1")
	b.Register("o2")

	if got := b.ActiveCount(); got != 2 {
		t.Fatalf("active count = %d, want 2", got)
	}

	b.Update(schema.OrderData{ID: "o1", Status: schema.StatusPartTraded})
	if got := b.ActiveCount(); got != 2 {
		t.Fatalf("partial fill must keep order active, count = %d", got)
	}

	b.Update(schema.OrderData{ID: "o1", Status: schema.StatusAllTraded})
	if got := b.ActiveCount(); got != 1 {
		t.Fatalf("after full fill active count = %d, want 1", got)
	}

	// A late duplicate terminal update must not disturb the remaining order.
	b.Update(schema.OrderData{ID: "o1", Status: schema.StatusAllTraded})
	if got := b.ActiveCount(); got != 1 {
		t.Fatalf("duplicate terminal update changed count to %d", got)
	}
}

func TestBookKeepsLastSnapshot(t *testing.T) {
	b := NewOrderBook()
	b.Register("o1")
	b.Update(schema.OrderData{ID: "o1", Status: schema.StatusNotTraded, Traded: 0})
	b.Update(schema.OrderData{ID: "o1", Status: schema.StatusPartTraded, Traded: 3})

	order, ok := b.Order("o1")
	if !ok {
		t.Fatal("order o1 missing")
	}
	if order.Traded != 3 || order.Status != schema.StatusPartTraded {
		t.Fatalf("snapshot = %+v, want traded 3 part-traded", order)
	}
}

func TestBookIgnoresEmptyID(t *testing.T) {
	b := NewOrderBook()
	b.Register("")
	if got := b.ActiveCount(); got != 0 {
		t.Fatalf("empty id registered, count = %d", got)
	}
}
