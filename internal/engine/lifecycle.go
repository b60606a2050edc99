package engine

import (
	"context"
	"fmt"

	"github.com/coachpo/folio/errs"
	"github.com/coachpo/folio/internal/domain/strategystore"
	"github.com/coachpo/folio/internal/strategy"
)

// AddStrategy creates a named instance of a registered class bound to the
// given instruments. The instance starts in the created state; init and
// start are separate calls. The roster entry is persisted when a store is
// configured.
func (e *Engine) AddStrategy(class, name string, instruments []string, settings map[string]any) error {
	if name == "" {
		return errs.New("engine/add", errs.CodeInvalid, errs.WithMessage("strategy name required"))
	}
	if len(instruments) == 0 {
		return errs.New("engine/add", errs.CodeInvalid,
			errs.WithStrategy(name), errs.WithMessage("at least one instrument required"))
	}
	logic, err := e.catalog.New(class)
	if err != nil {
		return err
	}
	t := strategy.NewTemplate(e, name, class, instruments, logic, settings)
	if err := e.registry.Add(t); err != nil {
		return err
	}
	for _, instrument := range instruments {
		if _, ok := e.opts.Contracts.Contract(instrument); !ok {
			e.WriteLog(t, fmt.Sprintf("contract not found yet: %s", instrument))
		}
	}
	e.saveSetting(t)
	e.PutStrategyEvent(t)
	return nil
}

// EditStrategy updates the parameters of a stopped instance.
func (e *Engine) EditStrategy(name string, settings map[string]any) error {
	t, ok := e.registry.Get(name)
	if !ok {
		return errs.New("engine/edit", errs.CodeNotFound, errs.WithStrategy(name))
	}
	if t.Trading() {
		return errs.New("engine/edit", errs.CodeInvalidTransition,
			errs.WithStrategy(name), errs.WithMessage("stop the strategy before editing"))
	}
	t.ApplySettings(settings)
	e.saveSetting(t)
	e.PutStrategyEvent(t)
	return nil
}

// RemoveStrategy deletes a stopped instance and purges every index entry and
// persisted record for it.
func (e *Engine) RemoveStrategy(name string) error {
	t, ok := e.registry.Get(name)
	if !ok {
		return errs.New("engine/remove", errs.CodeNotFound, errs.WithStrategy(name))
	}
	if t.Trading() {
		return errs.New("engine/remove", errs.CodeInvalidTransition,
			errs.WithStrategy(name), errs.WithMessage("stop the strategy before removing"))
	}
	if _, err := e.registry.Remove(name); err != nil {
		return err
	}
	if e.opts.Store != nil {
		if err := e.opts.Store.DeleteSetting(context.Background(), name); err != nil {
			e.log.Printf("[engine] roster delete failed for %s: %v", name, err)
		}
	}
	e.log.Printf("[engine] strategy removed: %s", name)
	return nil
}

// InitStrategy schedules initialization on the sequential init worker:
// OnInit, variable restore, then market data subscription. Re-initializing
// an initialized instance is a logged no-op.
func (e *Engine) InitStrategy(name string) error {
	t, ok := e.registry.Get(name)
	if !ok {
		return errs.New("engine/init", errs.CodeNotFound, errs.WithStrategy(name))
	}
	if !e.initQ.enqueue(func() { e.initStrategy(t) }) {
		return errs.New("engine/init", errs.CodeInvalid,
			errs.WithStrategy(name), errs.WithMessage("init queue full"))
	}
	return nil
}

func (e *Engine) initStrategy(t *strategy.Template) {
	if t.Inited() {
		e.WriteLog(t, "already initialized, skipping")
		return
	}
	e.WriteLog(t, "initialization started")

	if !e.guard(t, "on_init", func() error { return t.Logic().OnInit(t) }) {
		return
	}

	if e.opts.Store != nil {
		saved, err := e.opts.Store.LoadVariables(context.Background(), t.Name())
		if err != nil {
			e.WriteLog(t, fmt.Sprintf("variable restore failed: %v", err))
		} else if saved != nil {
			t.RestoreVariables(saved)
		}
	}

	for _, instrument := range t.Instruments() {
		if _, ok := e.opts.Contracts.Contract(instrument); !ok {
			e.WriteLog(t, fmt.Sprintf("subscribe skipped, contract not found: %s", instrument))
			continue
		}
		if e.opts.Subscriber != nil {
			if err := e.opts.Subscriber.Subscribe(instrument); err != nil {
				e.WriteLog(t, fmt.Sprintf("subscribe failed for %s: %v", instrument, err))
			}
		}
	}

	t.SetInited(true)
	e.WriteLog(t, "initialization finished")
	e.PutStrategyEvent(t)
}

// StartStrategy moves an initialized instance into trading.
func (e *Engine) StartStrategy(name string) error {
	t, ok := e.registry.Get(name)
	if !ok {
		return errs.New("engine/start", errs.CodeNotFound, errs.WithStrategy(name))
	}
	if !t.Inited() {
		return errs.New("engine/start", errs.CodeInvalidTransition,
			errs.WithStrategy(name), errs.WithMessage("initialize the strategy first"))
	}
	if t.Trading() {
		e.WriteLog(t, "already trading, skipping start")
		return nil
	}
	if !e.guard(t, "on_start", func() error { return t.Logic().OnStart(t) }) {
		return errs.New("engine/start", errs.CodeCallbackFault, errs.WithStrategy(name))
	}
	t.SetTrading(true)
	e.PutStrategyEvent(t)
	return nil
}

// StopStrategy takes a trading instance offline: OnStop, cancel every live
// order, persist variables, publish the final snapshot. Stopping a stopped
// instance is a no-op.
func (e *Engine) StopStrategy(name string) error {
	t, ok := e.registry.Get(name)
	if !ok {
		return errs.New("engine/stop", errs.CodeNotFound, errs.WithStrategy(name))
	}
	if !t.Trading() {
		return nil
	}
	e.guard(t, "on_stop", func() error { return t.Logic().OnStop(t) })
	t.SetTrading(false)

	// Cancel through the gateway directly: the template's own verbs are
	// gated on trading, which is already off.
	for _, id := range t.Book().ActiveIDs() {
		if order, ok := t.Book().Order(id); ok {
			e.cancel(t, order)
		}
	}

	e.SyncVariables(t)
	e.PutStrategyEvent(t)
	return nil
}

// InitAll schedules initialization for every registered instance.
func (e *Engine) InitAll() {
	for _, name := range e.registry.Names() {
		if err := e.InitStrategy(name); err != nil {
			e.log.Printf("[engine] init failed for %s: %v", name, err)
		}
	}
}

// StartAll starts every initialized instance.
func (e *Engine) StartAll() {
	for _, name := range e.registry.Names() {
		if err := e.StartStrategy(name); err != nil {
			e.log.Printf("[engine] start failed for %s: %v", name, err)
		}
	}
}

// StopAll stops every trading instance.
func (e *Engine) StopAll() {
	for _, name := range e.registry.Names() {
		if err := e.StopStrategy(name); err != nil {
			e.log.Printf("[engine] stop failed for %s: %v", name, err)
		}
	}
}

// Close stops all instances and shuts down the init worker. The dispatch
// loop exits with its context.
func (e *Engine) Close() {
	e.StopAll()
	e.initQ.close()
}

// LoadRoster recreates the persisted strategy instances. Individual
// failures are logged so one bad entry never blocks the rest.
func (e *Engine) LoadRoster(ctx context.Context) error {
	if e.opts.Store == nil {
		return nil
	}
	settings, err := e.opts.Store.LoadSettings(ctx)
	if err != nil {
		return errs.New("engine/roster", errs.CodeStorage, errs.WithCause(err))
	}
	for name, setting := range settings {
		if err := e.AddStrategy(setting.Class, name, setting.Instruments, setting.Parameters); err != nil {
			e.log.Printf("[engine] roster load failed for %s: %v", name, err)
		}
	}
	return nil
}

func (e *Engine) saveSetting(t *strategy.Template) {
	if e.opts.Store == nil {
		return
	}
	setting := strategystore.Setting{
		Class:       t.ClassName(),
		Instruments: t.Instruments(),
		Parameters:  t.Parameters(),
	}
	if err := e.opts.Store.SaveSetting(context.Background(), t.Name(), setting); err != nil {
		e.log.Printf("[engine] roster save failed for %s: %v", t.Name(), err)
	}
}
