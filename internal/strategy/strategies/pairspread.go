// Package strategies bundles the concrete strategy classes shipped with the
// runner. Each class registers itself through RegisterAll.
package strategies

import (
	"fmt"
	"math"

	"github.com/coachpo/folio/internal/schema"
	"github.com/coachpo/folio/internal/strategy"
)

// RegisterAll installs the built-in strategy classes into the catalog.
func RegisterAll(catalog *strategy.Catalog) {
	catalog.Register("pair_spread", func() strategy.Logic { return NewPairSpread() })
}

// PairSpread trades the close-price spread between the first two instruments
// of the instance. When the spread stretches beyond a multiple of its rolling
// standard deviation it targets a short spread, and the mirror below.
type PairSpread struct {
	window     int
	entryLevel float64
	tradeLots  int64
	priceTicks int64

	spreads    []float64
	spreadMean float64
	spreadStd  float64
	lastSpread float64
}

// NewPairSpread builds the logic with zero state; parameters arrive via
// the template settings in OnInit.
func NewPairSpread() *PairSpread {
	return &PairSpread{}
}

// DefaultParameters declares the tunable knobs of the class.
func (s *PairSpread) DefaultParameters() map[string]any {
	return map[string]any{
		"window":      20,
		"entry_level": 2.0,
		"trade_lots":  1,
		"price_ticks": 1,
	}
}

// Variables exposes the rolling spread statistics for reporting and restart.
func (s *PairSpread) Variables() map[string]any {
	return map[string]any{
		"spread_mean": s.spreadMean,
		"spread_std":  s.spreadStd,
		"last_spread": s.lastSpread,
	}
}

// RestoreVariable replays persisted spread statistics after a restart.
func (s *PairSpread) RestoreVariable(name string, value any) {
	f, ok := asFloat(value)
	if !ok {
		return
	}
	switch name {
	case "spread_mean":
		s.spreadMean = f
	case "spread_std":
		s.spreadStd = f
	case "last_spread":
		s.lastSpread = f
	}
}

// CalculatePrice nudges rebalance orders a few ticks toward aggression so
// passive legs still fill.
func (s *PairSpread) CalculatePrice(t *strategy.Template, instrument string, direction schema.Direction, reference float64) float64 {
	adjust := float64(s.priceTicks) * t.PriceTick(instrument)
	if direction == schema.DirectionLong {
		return reference + adjust
	}
	return reference - adjust
}

func (s *PairSpread) OnInit(t *strategy.Template) error {
	if len(t.Instruments()) < 2 {
		return fmt.Errorf("pair_spread needs two instruments, got %d", len(t.Instruments()))
	}
	s.window = paramInt(t, "window", 20)
	s.entryLevel = paramFloat(t, "entry_level", 2.0)
	s.tradeLots = int64(paramInt(t, "trade_lots", 1))
	s.priceTicks = int64(paramInt(t, "price_ticks", 1))
	s.spreads = make([]float64, 0, s.window)

	t.WriteLog("loading bar history")
	t.LoadBars(10, schema.IntervalMinute)
	return nil
}

func (s *PairSpread) OnStart(t *strategy.Template) error {
	t.WriteLog("pair spread started")
	return nil
}

func (s *PairSpread) OnStop(t *strategy.Template) error {
	t.WriteLog("pair spread stopped")
	return nil
}

func (s *PairSpread) OnTick(t *strategy.Template, tick schema.TickData) error {
	return nil
}

func (s *PairSpread) OnBars(t *strategy.Template, bars map[string]schema.BarData) error {
	instruments := t.Instruments()
	leading, ok := bars[instruments[0]]
	if !ok {
		return nil
	}
	lagging, ok := bars[instruments[1]]
	if !ok {
		return nil
	}

	s.lastSpread = leading.Close - lagging.Close
	s.spreads = append(s.spreads, s.lastSpread)
	if len(s.spreads) > s.window {
		s.spreads = s.spreads[len(s.spreads)-s.window:]
	}
	if len(s.spreads) < s.window {
		return nil
	}
	s.spreadMean, s.spreadStd = meanStd(s.spreads)

	upper := s.spreadMean + s.entryLevel*s.spreadStd
	lower := s.spreadMean - s.entryLevel*s.spreadStd

	switch {
	case s.lastSpread >= upper:
		t.SetTarget(instruments[0], -s.tradeLots)
		t.SetTarget(instruments[1], s.tradeLots)
	case s.lastSpread <= lower:
		t.SetTarget(instruments[0], s.tradeLots)
		t.SetTarget(instruments[1], -s.tradeLots)
	default:
		t.SetTarget(instruments[0], 0)
		t.SetTarget(instruments[1], 0)
	}

	t.Rebalance(bars)
	t.SyncData()
	t.PutEvent()
	return nil
}

func meanStd(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func paramInt(t *strategy.Template, name string, def int) int {
	v, ok := t.Parameter(name)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func paramFloat(t *strategy.Template, name string, def float64) float64 {
	v, ok := t.Parameter(name)
	if !ok {
		return def
	}
	f, ok := asFloat(v)
	if !ok {
		return def
	}
	return f
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
