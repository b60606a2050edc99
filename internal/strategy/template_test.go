package strategy

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/coachpo/folio/internal/schema"
)

// fakeRunner records every call a Template makes into the engine surface.
type fakeRunner struct {
	placed    []placedOrder
	cancelled []string
	logs      []string
	events    int
	syncs     int
	nextID    int
}

type placedOrder struct {
	instrument string
	direction  schema.Direction
	offset     schema.Offset
	price      float64
	volume     int64
}

func (r *fakeRunner) PlaceOrder(t *Template, instrument string, direction schema.Direction, offset schema.Offset, price float64, volume int64, lock, net bool) []string {
	r.placed = append(r.placed, placedOrder{instrument, direction, offset, price, volume})
	r.nextID++
	return []string{fmt.Sprintf("order-%d", r.nextID)}
}

func (r *fakeRunner) CancelOrder(t *Template, orderID string) {
	r.cancelled = append(r.cancelled, orderID)
}

func (r *fakeRunner) LoadBars(t *Template, days int, interval schema.Interval) {}

func (r *fakeRunner) WriteLog(t *Template, msg string) { r.logs = append(r.logs, msg) }

func (r *fakeRunner) PutStrategyEvent(t *Template) { r.events++ }

func (r *fakeRunner) SyncVariables(t *Template) { r.syncs++ }

func (r *fakeRunner) PriceTick(instrument string) float64 { return 0.2 }

func (r *fakeRunner) LotSize(instrument string) int64 { return 1 }

// noopLogic is the minimal hook implementation.
type noopLogic struct{}

func (noopLogic) OnInit(*Template) error                            { return nil }
func (noopLogic) OnStart(*Template) error                           { return nil }
func (noopLogic) OnStop(*Template) error                            { return nil }
func (noopLogic) OnTick(*Template, schema.TickData) error           { return nil }
func (noopLogic) OnBars(*Template, map[string]schema.BarData) error { return nil }

// paramLogic declares defaults and tracks restored extras.
type paramLogic struct {
	noopLogic
	restored map[string]any
}

func (l *paramLogic) DefaultParameters() map[string]any {
	return map[string]any{"window": 20, "threshold": 2.0}
}

func (l *paramLogic) Variables() map[string]any {
	return map[string]any{"spread_mean": 1.5}
}

func (l *paramLogic) RestoreVariable(name string, value any) {
	if l.restored == nil {
		l.restored = make(map[string]any)
	}
	l.restored[name] = value
}

func TestSettingsOverrideDeclaredDefaultsOnly(t *testing.T) {
	tpl := NewTemplate(&fakeRunner{}, "pair1", "pair_spread", []string{"a", "b"}, &paramLogic{},
		map[string]any{"window": 30, "bogus": 99})

	if v, _ := tpl.Parameter("window"); v != 30 {
		t.Fatalf("window = %v, want 30", v)
	}
	if v, _ := tpl.Parameter("threshold"); v != 2.0 {
		t.Fatalf("threshold = %v, want default 2.0", v)
	}
	if _, ok := tpl.Parameter("bogus"); ok {
		t.Fatal("undeclared setting must be dropped")
	}
}

func TestOrderVerbsBlockedUntilTrading(t *testing.T) {
	runner := &fakeRunner{}
	tpl := NewTemplate(runner, "s1", "demo", []string{"a"}, noopLogic{}, nil)

	if ids := tpl.Buy("a", 100, 1); ids != nil {
		t.Fatalf("buy before trading returned %v", ids)
	}
	if len(runner.placed) != 0 {
		t.Fatal("order reached the engine before trading started")
	}

	tpl.SetTrading(true)
	ids := tpl.Buy("a", 100, 1)
	if len(ids) != 1 {
		t.Fatalf("buy returned %v, want one id", ids)
	}
	if got := tpl.Book().ActiveCount(); got != 1 {
		t.Fatalf("active order count = %d, want 1", got)
	}
}

func TestCancelAllWalksActiveIDs(t *testing.T) {
	runner := &fakeRunner{}
	tpl := NewTemplate(runner, "s1", "demo", []string{"a"}, noopLogic{}, nil)
	tpl.SetTrading(true)
	tpl.Buy("a", 100, 1)
	tpl.Short("a", 99, 2)

	tpl.CancelAll()
	if len(runner.cancelled) != 2 {
		t.Fatalf("cancelled %d orders, want 2", len(runner.cancelled))
	}
}

func TestTradeUpdatesMovePosition(t *testing.T) {
	tpl := NewTemplate(&fakeRunner{}, "s1", "demo", []string{"a"}, noopLogic{}, nil)
	tpl.UpdateTrade(schema.TradeData{Instrument: "a", Direction: schema.DirectionLong, Volume: 5})
	tpl.UpdateTrade(schema.TradeData{Instrument: "a", Direction: schema.DirectionShort, Volume: 2})

	if got := tpl.Pos("a"); got != 3 {
		t.Fatalf("position = %d, want 3", got)
	}
}

func TestRestoreSkipsLifecycleFlagsAndMerges(t *testing.T) {
	logic := &paramLogic{}
	tpl := NewTemplate(&fakeRunner{}, "s1", "demo", []string{"a", "b"}, logic, nil)
	tpl.Ledger().ApplyFill("b", 2)

	tpl.RestoreVariables(map[string]any{
		"initialized": true,
		"trading":     true,
		"positions":   map[string]any{"a": float64(4)},
		"targets":     map[string]any{"a": float64(6)},
		"spread_mean": 1.25,
	})

	if tpl.Inited() || tpl.Trading() {
		t.Fatal("lifecycle flags must never be restored from persistence")
	}
	if got := tpl.Pos("a"); got != 4 {
		t.Fatalf("restored position a = %d, want 4", got)
	}
	if got := tpl.Pos("b"); got != 2 {
		t.Fatalf("merge clobbered position b, got %d", got)
	}
	if got := tpl.Target("a"); got != 6 {
		t.Fatalf("restored target a = %d, want 6", got)
	}
	if got := logic.restored["spread_mean"]; got != 1.25 {
		t.Fatalf("extra variable not delegated, got %v", got)
	}
}

func TestSnapshotCarriesIdentityParametersVariables(t *testing.T) {
	tpl := NewTemplate(&fakeRunner{}, "pair1", "pair_spread", []string{"a", "b"}, &paramLogic{}, nil)
	snap := tpl.Snapshot()

	if snap.Name != "pair1" || snap.Class != "pair_spread" {
		t.Fatalf("identity = %s/%s", snap.Name, snap.Class)
	}
	if !reflect.DeepEqual(snap.Instruments, []string{"a", "b"}) {
		t.Fatalf("instruments = %v", snap.Instruments)
	}
	if snap.Variables["initialized"] != false || snap.Variables["trading"] != false {
		t.Fatalf("lifecycle flags missing from variables: %v", snap.Variables)
	}
	if snap.Variables["spread_mean"] != 1.5 {
		t.Fatalf("extra variable missing: %v", snap.Variables)
	}
}

func TestPersistedVariablesExcludeLifecycleFlags(t *testing.T) {
	tpl := NewTemplate(&fakeRunner{}, "s1", "demo", []string{"a"}, noopLogic{}, nil)
	vars := tpl.PersistedVariables()
	if _, ok := vars["initialized"]; ok {
		t.Fatal("initialized must not be persisted")
	}
	if _, ok := vars["trading"]; ok {
		t.Fatal("trading must not be persisted")
	}
	if _, ok := vars["positions"]; !ok {
		t.Fatal("positions must be persisted")
	}
}

func TestSyncDataOnlyWhileTrading(t *testing.T) {
	runner := &fakeRunner{}
	tpl := NewTemplate(runner, "s1", "demo", []string{"a"}, noopLogic{}, nil)

	tpl.SyncData()
	if runner.syncs != 0 {
		t.Fatal("sync before trading must be a no-op")
	}
	tpl.SetTrading(true)
	tpl.SyncData()
	if runner.syncs != 1 {
		t.Fatalf("syncs = %d, want 1", runner.syncs)
	}
}

func TestPutEventOnlyAfterInit(t *testing.T) {
	runner := &fakeRunner{}
	tpl := NewTemplate(runner, "s1", "demo", []string{"a"}, noopLogic{}, nil)

	tpl.PutEvent()
	if runner.events != 0 {
		t.Fatal("event before init must be suppressed")
	}
	tpl.SetInited(true)
	tpl.PutEvent()
	if runner.events != 1 {
		t.Fatalf("events = %d, want 1", runner.events)
	}
}
