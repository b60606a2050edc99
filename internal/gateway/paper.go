package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coachpo/folio/errs"
	"github.com/coachpo/folio/internal/schema"
)

// Paper is a matching-free simulated gateway: every submitted order is
// acknowledged and filled in full at its limit price. Updates are pushed
// synchronously into the sink, which makes behavior deterministic for tests
// and demo runs.
type Paper struct {
	name string

	mu     sync.Mutex
	sink   Sink
	orders map[string]schema.OrderData
}

// NewPaper constructs the simulated gateway.
func NewPaper(name string) *Paper {
	if name == "" {
		name = "paper"
	}
	return &Paper{name: name, orders: make(map[string]schema.OrderData)}
}

// SetSink wires the receiver for order and trade updates. Must be called
// before the first Submit.
func (p *Paper) SetSink(sink Sink) {
	p.mu.Lock()
	p.sink = sink
	p.mu.Unlock()
}

func (p *Paper) Name() string { return p.name }

// Convert returns the request unchanged: the simulator has no exchange
// position rules to satisfy.
func (p *Paper) Convert(req schema.OrderRequest, lock, net bool) []schema.OrderRequest {
	return []schema.OrderRequest{req}
}

// Submit accepts the order and fills it immediately at the limit price.
func (p *Paper) Submit(ctx context.Context, req schema.OrderRequest) (string, error) {
	if req.Volume <= 0 {
		return "", errs.New("gateway/submit", errs.CodeInvalid, errs.WithMessage("volume must be positive"))
	}

	p.mu.Lock()
	sink := p.sink
	orderID := uuid.NewString()
	now := time.Now()
	order := schema.OrderData{
		ID:         orderID,
		Instrument: req.Instrument,
		Gateway:    p.name,
		Direction:  req.Direction,
		Offset:     req.Offset,
		Price:      req.Price,
		Volume:     req.Volume,
		Traded:     0,
		Status:     schema.StatusNotTraded,
		Timestamp:  now,
	}
	p.orders[orderID] = order
	p.mu.Unlock()

	if sink != nil {
		sink.OnOrderUpdate(order)

		filled := order
		filled.Traded = filled.Volume
		filled.Status = schema.StatusAllTraded
		p.mu.Lock()
		p.orders[orderID] = filled
		p.mu.Unlock()

		sink.OnOrderUpdate(filled)
		sink.OnTradeUpdate(schema.TradeData{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			Instrument: req.Instrument,
			Direction:  req.Direction,
			Offset:     req.Offset,
			Price:      req.Price,
			Volume:     req.Volume,
			Timestamp:  now,
		})
	}
	return orderID, nil
}

// Cancel marks a still-live order cancelled. Orders filled at submit time
// report a gateway error, mirroring real venues rejecting late cancels.
func (p *Paper) Cancel(ctx context.Context, req schema.CancelRequest) error {
	p.mu.Lock()
	order, ok := p.orders[req.OrderID]
	if !ok {
		p.mu.Unlock()
		return errs.New("gateway/cancel", errs.CodeNotFound, errs.WithMessage("unknown order "+req.OrderID))
	}
	if !order.Status.IsActive() {
		p.mu.Unlock()
		return errs.New("gateway/cancel", errs.CodeGateway, errs.WithMessage("order already terminal"))
	}
	order.Status = schema.StatusCancelled
	p.orders[req.OrderID] = order
	sink := p.sink
	p.mu.Unlock()

	if sink != nil {
		sink.OnOrderUpdate(order)
	}
	return nil
}
