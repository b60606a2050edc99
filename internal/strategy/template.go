// Package strategy implements the portfolio strategy template: the reusable
// base every concrete strategy builds on. A Template owns the instance's
// position ledger and order book and delegates order placement, history
// loading and persistence to the engine through the Runner interface.
package strategy

import (
	"sync"
	"sync/atomic"

	"github.com/coachpo/folio/internal/schema"
)

// Logic defines the hook interface for custom trading logic plugged into a
// Template. Hooks run on the engine's dispatch or init worker goroutines and
// are fault-isolated: a returned error or panic forces the instance offline
// without affecting siblings.
type Logic interface {
	OnInit(t *Template) error
	OnStart(t *Template) error
	OnStop(t *Template) error
	OnTick(t *Template, tick schema.TickData) error
	OnBars(t *Template, bars map[string]schema.BarData) error
}

// PriceCalculator lets a strategy adjust the reference price used for
// rebalance orders, e.g. adding ticks of aggression direction-aware.
// When not implemented the reference price is used unchanged.
type PriceCalculator interface {
	CalculatePrice(t *Template, instrument string, direction schema.Direction, reference float64) float64
}

// ParameterCarrier declares the tunable parameters of a strategy class along
// with their defaults. Settings not declared here are ignored on update.
type ParameterCarrier interface {
	DefaultParameters() map[string]any
}

// VariableCarrier exposes additional strategy variables to be reported and
// persisted alongside the built-in ones.
type VariableCarrier interface {
	Variables() map[string]any
}

// VariableRestorer receives persisted extra variables during warm restart.
type VariableRestorer interface {
	RestoreVariable(name string, value any)
}

// Runner is the engine surface a Template calls back into. The engine
// implements it; tests substitute fakes.
type Runner interface {
	PlaceOrder(t *Template, instrument string, direction schema.Direction, offset schema.Offset, price float64, volume int64, lock, net bool) []string
	CancelOrder(t *Template, orderID string)
	LoadBars(t *Template, days int, interval schema.Interval)
	WriteLog(t *Template, msg string)
	PutStrategyEvent(t *Template)
	SyncVariables(t *Template)
	PriceTick(instrument string) float64
	LotSize(instrument string) int64
}

// StateSnapshot is the full presentation view of a strategy instance,
// published on every lifecycle transition.
type StateSnapshot struct {
	Name        string         `json:"name"`
	Class       string         `json:"class"`
	Instruments []string       `json:"instruments"`
	Parameters  map[string]any `json:"parameters"`
	Variables   map[string]any `json:"variables"`
}

// Template is one running strategy instance.
type Template struct {
	name        string
	class       string
	instruments []string
	runner      Runner
	logic       Logic

	inited  atomic.Bool
	trading atomic.Bool

	paramMu sync.RWMutex
	params  map[string]any

	ledger *PositionLedger
	book   *OrderBook
}

// NewTemplate binds a logic implementation to a named instance trading the
// given instruments and applies the initial settings over class defaults.
func NewTemplate(runner Runner, name, class string, instruments []string, logic Logic, settings map[string]any) *Template {
	t := &Template{
		name:        name,
		class:       class,
		instruments: append([]string(nil), instruments...),
		runner:      runner,
		logic:       logic,
		params:      make(map[string]any),
		ledger:      NewPositionLedger(),
		book:        NewOrderBook(),
	}
	if carrier, ok := logic.(ParameterCarrier); ok {
		for name, def := range carrier.DefaultParameters() {
			t.params[name] = def
		}
	}
	t.ApplySettings(settings)
	return t
}

// Name returns the instance name, unique within the registry.
func (t *Template) Name() string { return t.name }

// ClassName returns the registered strategy class name.
func (t *Template) ClassName() string { return t.class }

// Instruments returns the fixed instrument list bound at creation.
func (t *Template) Instruments() []string {
	return append([]string(nil), t.instruments...)
}

// Logic exposes the hook implementation for guarded invocation by the engine.
func (t *Template) Logic() Logic { return t.logic }

// Ledger exposes the instance position ledger.
func (t *Template) Ledger() *PositionLedger { return t.ledger }

// Book exposes the instance order book.
func (t *Template) Book() *OrderBook { return t.book }

// Inited reports whether initialization completed.
func (t *Template) Inited() bool { return t.inited.Load() }

// Trading reports whether the instance is live.
func (t *Template) Trading() bool { return t.trading.Load() }

// SetInited flips the initialized flag.
func (t *Template) SetInited(v bool) { t.inited.Store(v) }

// SetTrading flips the trading flag.
func (t *Template) SetTrading(v bool) { t.trading.Store(v) }

// ForceOffline clears both lifecycle flags after a callback fault.
func (t *Template) ForceOffline() {
	t.inited.Store(false)
	t.trading.Store(false)
}

// ApplySettings overwrites declared parameters with the provided values.
// Unknown keys are ignored.
func (t *Template) ApplySettings(settings map[string]any) {
	if len(settings) == 0 {
		return
	}
	t.paramMu.Lock()
	defer t.paramMu.Unlock()
	for name, value := range settings {
		if _, declared := t.params[name]; declared {
			t.params[name] = value
		}
	}
}

// Parameter returns the current value of a declared parameter.
func (t *Template) Parameter(name string) (any, bool) {
	t.paramMu.RLock()
	defer t.paramMu.RUnlock()
	v, ok := t.params[name]
	return v, ok
}

// Parameters returns a copy of the current parameter values.
func (t *Template) Parameters() map[string]any {
	t.paramMu.RLock()
	defer t.paramMu.RUnlock()
	out := make(map[string]any, len(t.params))
	for k, v := range t.params {
		out[k] = v
	}
	return out
}

// Variables reports the built-in state variables plus any extras the logic
// exposes. The built-ins always include initialized, trading, positions and
// targets.
func (t *Template) Variables() map[string]any {
	vars := map[string]any{
		"initialized": t.Inited(),
		"trading":     t.Trading(),
		"positions":   t.ledger.Positions(),
		"targets":     t.ledger.Targets(),
	}
	if carrier, ok := t.logic.(VariableCarrier); ok {
		for name, value := range carrier.Variables() {
			vars[name] = value
		}
	}
	return vars
}

// PersistedVariables returns the variables to store for warm restart,
// excluding the lifecycle flags.
func (t *Template) PersistedVariables() map[string]any {
	vars := t.Variables()
	delete(vars, "initialized")
	delete(vars, "trading")
	return vars
}

// RestoreVariables merges a persisted variable snapshot back into the
// instance. Position and target maps merge entry-wise so instruments unseen
// in the snapshot keep their zero default; lifecycle flags are never
// restored; remaining entries flow to the logic when it supports restoring.
func (t *Template) RestoreVariables(saved map[string]any) {
	for name, value := range saved {
		switch name {
		case "initialized", "trading":
			continue
		case "positions":
			t.ledger.MergePositions(toInt64Map(value))
		case "targets":
			t.ledger.MergeTargets(toInt64Map(value))
		default:
			if restorer, ok := t.logic.(VariableRestorer); ok {
				restorer.RestoreVariable(name, value)
			}
		}
	}
}

// Snapshot builds the full presentation view of the instance.
func (t *Template) Snapshot() StateSnapshot {
	return StateSnapshot{
		Name:        t.name,
		Class:       t.class,
		Instruments: t.Instruments(),
		Parameters:  t.Parameters(),
		Variables:   t.Variables(),
	}
}

// Pos returns the actual position for the instrument.
func (t *Template) Pos(instrument string) int64 { return t.ledger.Position(instrument) }

// Target returns the desired position for the instrument.
func (t *Template) Target(instrument string) int64 { return t.ledger.Target(instrument) }

// SetTarget records the desired position for the instrument.
func (t *Template) SetTarget(instrument string, target int64) {
	t.ledger.SetTarget(instrument, target)
}

// UpdateOrder stores an order snapshot, retiring terminal ids from the
// active set.
func (t *Template) UpdateOrder(order schema.OrderData) {
	t.book.Update(order)
}

// UpdateTrade applies a fill to the position ledger.
func (t *Template) UpdateTrade(trade schema.TradeData) {
	t.ledger.ApplyFill(trade.Instrument, trade.SignedVolume())
}

// Buy opens long exposure.
func (t *Template) Buy(instrument string, price float64, volume int64) []string {
	return t.SendOrder(instrument, schema.DirectionLong, schema.OffsetOpen, price, volume, false, false)
}

// Sell closes long exposure.
func (t *Template) Sell(instrument string, price float64, volume int64) []string {
	return t.SendOrder(instrument, schema.DirectionShort, schema.OffsetClose, price, volume, false, false)
}

// Short opens short exposure.
func (t *Template) Short(instrument string, price float64, volume int64) []string {
	return t.SendOrder(instrument, schema.DirectionShort, schema.OffsetOpen, price, volume, false, false)
}

// Cover closes short exposure.
func (t *Template) Cover(instrument string, price float64, volume int64) []string {
	return t.SendOrder(instrument, schema.DirectionLong, schema.OffsetClose, price, volume, false, false)
}

// SendOrder submits a new order through the engine while trading. Every
// returned id is tracked as active until a terminal status arrives.
func (t *Template) SendOrder(instrument string, direction schema.Direction, offset schema.Offset, price float64, volume int64, lock, net bool) []string {
	if !t.Trading() {
		return nil
	}
	ids := t.runner.PlaceOrder(t, instrument, direction, offset, price, volume, lock, net)
	for _, id := range ids {
		t.book.Register(id)
	}
	return ids
}

// CancelOrder withdraws one live order while trading.
func (t *Template) CancelOrder(orderID string) {
	if !t.Trading() {
		return
	}
	t.runner.CancelOrder(t, orderID)
}

// CancelAll withdraws every live order of the instance.
func (t *Template) CancelAll() {
	for _, id := range t.book.ActiveIDs() {
		t.CancelOrder(id)
	}
}

// LoadBars replays merged bar history for all instruments into OnBars.
func (t *Template) LoadBars(days int, interval schema.Interval) {
	t.runner.LoadBars(t, days, interval)
}

// WriteLog emits a log line attributed to the instance.
func (t *Template) WriteLog(msg string) {
	t.runner.WriteLog(t, msg)
}

// PutEvent publishes a state snapshot once initialized.
func (t *Template) PutEvent() {
	if t.Inited() {
		t.runner.PutStrategyEvent(t)
	}
}

// SyncData persists the instance variables while trading.
func (t *Template) SyncData() {
	if t.Trading() {
		t.runner.SyncVariables(t)
	}
}

// PriceTick returns the contract tick size for the instrument.
func (t *Template) PriceTick(instrument string) float64 {
	return t.runner.PriceTick(instrument)
}

// LotSize returns the contract lot size for the instrument.
func (t *Template) LotSize(instrument string) int64 {
	return t.runner.LotSize(instrument)
}

func (t *Template) calculatePrice(instrument string, direction schema.Direction, reference float64) float64 {
	if calc, ok := t.logic.(PriceCalculator); ok {
		return calc.CalculatePrice(t, instrument, direction, reference)
	}
	return reference
}

func toInt64Map(value any) map[string]int64 {
	switch m := value.(type) {
	case map[string]int64:
		return m
	case map[string]any:
		out := make(map[string]int64, len(m))
		for k, v := range m {
			switch n := v.(type) {
			case int64:
				out[k] = n
			case int:
				out[k] = int64(n)
			case float64:
				out[k] = int64(n)
			}
		}
		return out
	default:
		return nil
	}
}
