// Package engine hosts the multi-instrument strategy runtime: it routes
// market and execution events to strategy instances, drives their lifecycle,
// and owns the shared services (gateway, persistence, event bus) instances
// reach through the Runner interface.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/folio/errs"
	"github.com/coachpo/folio/internal/bus/eventbus"
	"github.com/coachpo/folio/internal/domain/strategystore"
	"github.com/coachpo/folio/internal/gateway"
	"github.com/coachpo/folio/internal/market"
	"github.com/coachpo/folio/internal/schema"
	"github.com/coachpo/folio/internal/strategy"
)

const orderReferencePrefix = "folio_"

// Options wires the engine's collaborators. Gateway, Contracts and Bus are
// required; the rest degrade gracefully when absent.
type Options struct {
	Gateway   gateway.Gateway
	Contracts market.ContractProvider
	Bus       eventbus.Bus
	Logger    *log.Logger

	// Subscriber receives live-data subscriptions during strategy init.
	Subscriber market.Subscriber
	// FeedHistory serves bar history for contracts flagged HistoryFeed.
	FeedHistory market.HistorySource
	// Datafeed is the external bar-history service tier.
	Datafeed market.HistorySource
	// Database is the local bar archive, the last resort.
	Database market.HistorySource
	// Store persists the roster and per-instance variables.
	Store strategystore.Store

	// QueueSize bounds the dispatch queue. Defaults to 1024.
	QueueSize int
	// TradeRetention caps the processed-trade id set, oldest evicted first.
	// Zero keeps every id for the process lifetime.
	TradeRetention int
}

type dispatchEvent struct {
	tick  *schema.TickData
	order *schema.OrderData
	trade *schema.TradeData
}

// Engine is the strategy runtime. It implements gateway.Sink for execution
// updates and strategy.Runner for instance callbacks.
type Engine struct {
	opts     Options
	log      *log.Logger
	registry *Registry
	catalog  *strategy.Catalog

	events chan dispatchEvent
	initQ  *initQueue

	eventsRouted   metric.Int64Counter
	tradesDeduped  metric.Int64Counter
	ordersPlaced   metric.Int64Counter
	callbackFaults metric.Int64Counter
}

// New constructs the engine around a strategy catalog.
func New(catalog *strategy.Catalog, opts Options) *Engine {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	e := &Engine{
		opts:     opts,
		log:      opts.Logger,
		registry: NewRegistry(opts.TradeRetention),
		catalog:  catalog,
		events:   make(chan dispatchEvent, opts.QueueSize),
		initQ:    newInitQueue(0),
	}

	meter := otel.Meter("engine")
	e.eventsRouted, _ = meter.Int64Counter("engine.events.routed",
		metric.WithDescription("Number of events routed to strategies"),
		metric.WithUnit("{event}"))
	e.tradesDeduped, _ = meter.Int64Counter("engine.trades.deduped",
		metric.WithDescription("Number of duplicate trades suppressed"),
		metric.WithUnit("{trade}"))
	e.ordersPlaced, _ = meter.Int64Counter("engine.orders.placed",
		metric.WithDescription("Number of orders submitted to the gateway"),
		metric.WithUnit("{order}"))
	e.callbackFaults, _ = meter.Int64Counter("engine.callback.faults",
		metric.WithDescription("Number of strategy callbacks that errored or panicked"),
		metric.WithUnit("{fault}"))
	return e
}

// Registry exposes the instance indices, read-only by convention.
func (e *Engine) Registry() *Registry { return e.registry }

// Catalog exposes the strategy class catalog.
func (e *Engine) Catalog() *strategy.Catalog { return e.catalog }

// Run drains the dispatch queue on a single goroutine until ctx is
// cancelled. All strategy data callbacks happen on this goroutine.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-e.events:
			e.dispatch(evt)
		}
	}
}

// OnTick enqueues a market tick for dispatch.
func (e *Engine) OnTick(tick schema.TickData) {
	e.enqueue(dispatchEvent{tick: &tick})
}

// OnOrderUpdate enqueues an order snapshot from the gateway.
func (e *Engine) OnOrderUpdate(order schema.OrderData) {
	e.enqueue(dispatchEvent{order: &order})
}

// OnTradeUpdate enqueues a fill from the gateway.
func (e *Engine) OnTradeUpdate(trade schema.TradeData) {
	e.enqueue(dispatchEvent{trade: &trade})
}

// enqueue never blocks the caller: when the queue is full the event is handed
// to a goroutine so gateways delivering from the dispatch goroutine itself
// cannot deadlock.
func (e *Engine) enqueue(evt dispatchEvent) {
	select {
	case e.events <- evt:
	default:
		go func() { e.events <- evt }()
	}
}

func (e *Engine) dispatch(evt dispatchEvent) {
	switch {
	case evt.tick != nil:
		e.processTick(*evt.tick)
	case evt.order != nil:
		e.processOrder(*evt.order)
	case evt.trade != nil:
		e.processTrade(*evt.trade)
	}
}

func (e *Engine) processTick(tick schema.TickData) {
	for _, t := range e.registry.ForInstrument(tick.Instrument) {
		if !t.Inited() {
			continue
		}
		tpl := t
		e.guard(tpl, "on_tick", func() error { return tpl.Logic().OnTick(tpl, tick) })
		e.eventsRouted.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", "tick")))
	}
}

func (e *Engine) processOrder(order schema.OrderData) {
	t, ok := e.registry.OwnerOf(order.ID)
	if !ok {
		return
	}
	t.UpdateOrder(order)
	e.eventsRouted.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", "order")))
	e.publish(&eventbus.Event{Type: eventbus.TypeOrder, Strategy: t.Name(), Timestamp: time.Now(), Payload: order})
}

func (e *Engine) processTrade(trade schema.TradeData) {
	// Dedup before ownership lookup so unclaimed duplicates stay suppressed.
	if !e.registry.MarkTrade(trade.ID) {
		e.tradesDeduped.Add(context.Background(), 1)
		return
	}
	t, ok := e.registry.OwnerOf(trade.OrderID)
	if !ok {
		return
	}
	t.UpdateTrade(trade)
	e.eventsRouted.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", "trade")))
	e.publish(&eventbus.Event{Type: eventbus.TypeTrade, Strategy: t.Name(), Timestamp: time.Now(), Payload: trade})
}

// guard invokes a strategy hook with fault isolation: an error or panic
// forces the instance offline and is reported, while the engine keeps
// serving the remaining instances.
func (e *Engine) guard(t *strategy.Template, hook string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.fault(t, hook, fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()
	if err := fn(); err != nil {
		e.fault(t, hook, err)
		return false
	}
	return true
}

func (e *Engine) fault(t *strategy.Template, hook string, cause error) {
	t.ForceOffline()
	err := errs.New("engine/"+hook, errs.CodeCallbackFault,
		errs.WithStrategy(t.Name()), errs.WithCause(cause))
	e.log.Printf("[engine] strategy fault: %v", err)
	e.callbackFaults.Add(context.Background(), 1, metric.WithAttributes(attribute.String("hook", hook)))
	e.publish(&eventbus.Event{Type: eventbus.TypeLog, Strategy: t.Name(), Timestamp: time.Now(), Payload: err.Error()})
	e.PutStrategyEvent(t)
}

func (e *Engine) publish(evt *eventbus.Event) {
	if e.opts.Bus == nil {
		return
	}
	if err := e.opts.Bus.Publish(context.Background(), evt); err != nil {
		e.log.Printf("[engine] bus publish failed: %v", err)
	}
}

// PlaceOrder implements strategy.Runner. The price is aligned to the
// contract tick, the volume to the lot size; the request then expands per
// the gateway's position rules and each leg is submitted. Returns the venue
// ids of the accepted legs.
func (e *Engine) PlaceOrder(t *strategy.Template, instrument string, direction schema.Direction, offset schema.Offset, price float64, volume int64, lock, net bool) []string {
	contract, ok := e.opts.Contracts.Contract(instrument)
	if !ok {
		e.WriteLog(t, fmt.Sprintf("order rejected, contract not found: %s", instrument))
		return nil
	}

	price = roundToTick(price, contract.TickSize)
	volume = roundToLot(volume, contract.LotSize)
	if volume <= 0 {
		e.WriteLog(t, fmt.Sprintf("order rejected, volume rounds to zero lots: %s", instrument))
		return nil
	}

	req := schema.OrderRequest{
		Instrument: instrument,
		Gateway:    contract.Gateway,
		Direction:  direction,
		Offset:     offset,
		Price:      price,
		Volume:     volume,
		Reference:  orderReferencePrefix + t.Name(),
		Timestamp:  time.Now(),
	}

	var ids []string
	for _, leg := range e.opts.Gateway.Convert(req, lock, net) {
		orderID, err := e.opts.Gateway.Submit(context.Background(), leg)
		if err != nil {
			e.WriteLog(t, fmt.Sprintf("order submit failed: %v", err))
			continue
		}
		if orderID == "" {
			continue
		}
		e.registry.BindOrder(orderID, t.Name())
		// Seed the book so the order is cancellable before the first ack.
		t.UpdateOrder(schema.OrderData{
			ID:         orderID,
			Instrument: leg.Instrument,
			Gateway:    leg.Gateway,
			Direction:  leg.Direction,
			Offset:     leg.Offset,
			Price:      leg.Price,
			Volume:     leg.Volume,
			Status:     schema.StatusSubmitting,
			Timestamp:  leg.Timestamp,
		})
		ids = append(ids, orderID)
		e.ordersPlaced.Add(context.Background(), 1, metric.WithAttributes(attribute.String("strategy", t.Name())))
	}
	return ids
}

// CancelOrder implements strategy.Runner. Unknown ids log and return.
func (e *Engine) CancelOrder(t *strategy.Template, orderID string) {
	order, ok := t.Book().Order(orderID)
	if !ok {
		e.WriteLog(t, fmt.Sprintf("cancel failed, order not found: %s", orderID))
		return
	}
	e.cancel(t, order)
}

func (e *Engine) cancel(t *strategy.Template, order schema.OrderData) {
	if err := e.opts.Gateway.Cancel(context.Background(), order.CancelRequest()); err != nil {
		e.WriteLog(t, fmt.Sprintf("cancel failed: %v", err))
	}
}

// WriteLog implements strategy.Runner.
func (e *Engine) WriteLog(t *strategy.Template, msg string) {
	e.log.Printf("[strategy %s] %s", t.Name(), msg)
	e.publish(&eventbus.Event{Type: eventbus.TypeLog, Strategy: t.Name(), Timestamp: time.Now(), Payload: msg})
}

// PutStrategyEvent implements strategy.Runner.
func (e *Engine) PutStrategyEvent(t *strategy.Template) {
	e.publish(&eventbus.Event{Type: eventbus.TypeStrategyState, Strategy: t.Name(), Timestamp: time.Now(), Payload: t.Snapshot()})
}

// SyncVariables implements strategy.Runner.
func (e *Engine) SyncVariables(t *strategy.Template) {
	if e.opts.Store == nil {
		return
	}
	if err := e.opts.Store.SaveVariables(context.Background(), t.Name(), t.PersistedVariables()); err != nil {
		e.log.Printf("[engine] variable sync failed for %s: %v", t.Name(), err)
	}
}

// PriceTick implements strategy.Runner, zero when the contract is unknown.
func (e *Engine) PriceTick(instrument string) float64 {
	contract, ok := e.opts.Contracts.Contract(instrument)
	if !ok {
		return 0
	}
	return contract.TickSize
}

// LotSize implements strategy.Runner, zero when the contract is unknown.
func (e *Engine) LotSize(instrument string) int64 {
	contract, ok := e.opts.Contracts.Contract(instrument)
	if !ok {
		return 0
	}
	return contract.LotSize
}

func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	return p.Div(t).Round(0).Mul(t).InexactFloat64()
}

func roundToLot(volume, lot int64) int64 {
	if lot <= 1 {
		return volume
	}
	return volume / lot * lot
}
