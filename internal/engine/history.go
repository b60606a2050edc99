package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/coachpo/folio/errs"
	"github.com/coachpo/folio/internal/market"
	"github.com/coachpo/folio/internal/schema"
	"github.com/coachpo/folio/internal/strategy"
)

// LoadBars implements strategy.Runner. It loads per-instrument history for
// the trailing window, merges the series on the union of timestamps, and
// replays them chronologically into OnBars. An instrument missing a bar at
// some timestamp gets a synthetic flat bar carried from its previous close;
// instruments with no bar yet are simply absent from that round.
func (e *Engine) LoadBars(t *strategy.Template, days int, interval schema.Interval) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	series := make(map[string]map[time.Time]schema.BarData)
	stamps := make(map[time.Time]struct{})
	for _, instrument := range t.Instruments() {
		bars, err := e.queryBars(context.Background(), instrument, interval, start, end)
		if err != nil {
			e.WriteLog(t, fmt.Sprintf("bar history load failed for %s: %v", instrument, err))
			continue
		}
		byStamp := make(map[time.Time]schema.BarData, len(bars))
		for _, bar := range bars {
			byStamp[bar.Timestamp] = bar
			stamps[bar.Timestamp] = struct{}{}
		}
		series[instrument] = byStamp
	}
	if len(stamps) == 0 {
		return
	}

	ordered := make([]time.Time, 0, len(stamps))
	for ts := range stamps {
		ordered = append(ordered, ts)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	last := make(map[string]schema.BarData)
	for _, ts := range ordered {
		bars := make(map[string]schema.BarData, len(series))
		for _, instrument := range t.Instruments() {
			if bar, ok := series[instrument][ts]; ok {
				bars[instrument] = bar
			} else if prev, ok := last[instrument]; ok {
				bars[instrument] = prev.FlatBar(ts)
			}
		}
		for instrument, bar := range bars {
			last[instrument] = bar
		}
		if !e.guard(t, "on_bars", func() error { return t.Logic().OnBars(t, bars) }) {
			return
		}
	}
}

// queryBars tries the history sources in priority order: the live feed for
// contracts that serve their own history, then the datafeed service, then
// the local database. The first non-empty result wins; a source that errors
// or comes back empty falls through to the next.
func (e *Engine) queryBars(ctx context.Context, instrument string, interval schema.Interval, start, end time.Time) ([]schema.BarData, error) {
	var sources []market.HistorySource
	if contract, ok := e.opts.Contracts.Contract(instrument); ok && contract.HistoryFeed && e.opts.FeedHistory != nil {
		sources = append(sources, e.opts.FeedHistory)
	}
	if e.opts.Datafeed != nil {
		sources = append(sources, e.opts.Datafeed)
	}
	if e.opts.Database != nil {
		sources = append(sources, e.opts.Database)
	}
	if len(sources) == 0 {
		return nil, errs.New("engine/history", errs.CodeNotFound,
			errs.WithMessage("no history source configured"))
	}

	var lastErr error
	for _, source := range sources {
		bars, err := source.QueryBars(ctx, instrument, interval, start, end)
		if err != nil {
			lastErr = err
			continue
		}
		if len(bars) > 0 {
			return bars, nil
		}
	}
	return nil, lastErr
}
