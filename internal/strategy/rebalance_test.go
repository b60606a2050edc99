package strategy

import (
	"testing"

	"github.com/coachpo/folio/internal/schema"
)

func bar(instrument string, close float64) schema.BarData {
	return schema.BarData{Instrument: instrument, Close: close}
}

func newTradingTemplate(runner *fakeRunner, logic Logic) *Template {
	tpl := NewTemplate(runner, "rb1", "demo", []string{"a", "b"}, logic, nil)
	tpl.SetTrading(true)
	return tpl
}

func TestRebalanceSplitsCoverThenBuy(t *testing.T) {
	runner := &fakeRunner{}
	tpl := newTradingTemplate(runner, noopLogic{})
	tpl.Ledger().MergePositions(map[string]int64{"a": -2})
	tpl.SetTarget("a", 3)

	tpl.Rebalance(map[string]schema.BarData{"a": bar("a", 100)})

	if len(runner.placed) != 2 {
		t.Fatalf("placed %d orders, want cover + buy", len(runner.placed))
	}
	cover, buy := runner.placed[0], runner.placed[1]
	if cover.direction != schema.DirectionLong || cover.offset != schema.OffsetClose || cover.volume != 2 {
		t.Fatalf("closing leg = %+v, want cover 2", cover)
	}
	if buy.direction != schema.DirectionLong || buy.offset != schema.OffsetOpen || buy.volume != 3 {
		t.Fatalf("opening leg = %+v, want buy 3", buy)
	}
}

func TestRebalanceSplitsSellThenShort(t *testing.T) {
	runner := &fakeRunner{}
	tpl := newTradingTemplate(runner, noopLogic{})
	tpl.Ledger().MergePositions(map[string]int64{"a": 4})
	tpl.SetTarget("a", -1)

	tpl.Rebalance(map[string]schema.BarData{"a": bar("a", 100)})

	if len(runner.placed) != 2 {
		t.Fatalf("placed %d orders, want sell + short", len(runner.placed))
	}
	sell, short := runner.placed[0], runner.placed[1]
	if sell.direction != schema.DirectionShort || sell.offset != schema.OffsetClose || sell.volume != 4 {
		t.Fatalf("closing leg = %+v, want sell 4", sell)
	}
	if short.direction != schema.DirectionShort || short.offset != schema.OffsetOpen || short.volume != 1 {
		t.Fatalf("opening leg = %+v, want short 1", short)
	}
}

func TestRebalanceLongOnlyIncreaseSkipsClosingLeg(t *testing.T) {
	runner := &fakeRunner{}
	tpl := newTradingTemplate(runner, noopLogic{})
	tpl.Ledger().MergePositions(map[string]int64{"a": 2})
	tpl.SetTarget("a", 5)

	tpl.Rebalance(map[string]schema.BarData{"a": bar("a", 100)})

	if len(runner.placed) != 1 {
		t.Fatalf("placed %d orders, want single buy", len(runner.placed))
	}
	if got := runner.placed[0]; got.offset != schema.OffsetOpen || got.volume != 3 {
		t.Fatalf("leg = %+v, want buy 3", got)
	}
}

func TestRebalanceCancelsBeforePlacing(t *testing.T) {
	runner := &fakeRunner{}
	tpl := newTradingTemplate(runner, noopLogic{})
	tpl.Buy("a", 100, 1)
	tpl.SetTarget("a", 2)

	tpl.Rebalance(map[string]schema.BarData{"a": bar("a", 100)})

	if len(runner.cancelled) != 1 {
		t.Fatalf("cancelled %d, want stale order withdrawn first", len(runner.cancelled))
	}
}

func TestRebalanceSkipsInstrumentsWithoutBar(t *testing.T) {
	runner := &fakeRunner{}
	tpl := newTradingTemplate(runner, noopLogic{})
	tpl.SetTarget("a", 2)
	tpl.SetTarget("b", 3)

	tpl.Rebalance(map[string]schema.BarData{"a": bar("a", 100)})

	for _, p := range runner.placed {
		if p.instrument == "b" {
			t.Fatal("instrument without a bar must not trade")
		}
	}
}

func TestRebalanceAtTargetPlacesNothing(t *testing.T) {
	runner := &fakeRunner{}
	tpl := newTradingTemplate(runner, noopLogic{})
	tpl.Ledger().MergePositions(map[string]int64{"a": 2})
	tpl.SetTarget("a", 2)

	tpl.Rebalance(map[string]schema.BarData{"a": bar("a", 100)})

	if len(runner.placed) != 0 {
		t.Fatalf("placed %d orders at target", len(runner.placed))
	}
}

// tickAdder nudges the reference price one tick toward aggression.
type tickAdder struct{ noopLogic }

func (tickAdder) CalculatePrice(t *Template, instrument string, direction schema.Direction, reference float64) float64 {
	if direction == schema.DirectionLong {
		return reference + t.PriceTick(instrument)
	}
	return reference - t.PriceTick(instrument)
}

func TestRebalanceUsesPriceCalculator(t *testing.T) {
	runner := &fakeRunner{}
	tpl := newTradingTemplate(runner, tickAdder{})
	tpl.SetTarget("a", 1)

	tpl.Rebalance(map[string]schema.BarData{"a": bar("a", 100)})

	if len(runner.placed) != 1 {
		t.Fatalf("placed %d orders, want 1", len(runner.placed))
	}
	if got := runner.placed[0].price; got != 100.2 {
		t.Fatalf("price = %v, want bar close plus one tick", got)
	}
}
