package strategy

import "github.com/coachpo/folio/internal/schema"

// Rebalance moves actual positions toward targets for every instrument with a
// bar in the slice. Live orders are cancelled first so stale prices never
// fill. Each adjustment is split into a closing leg and an opening leg: a
// positive gap covers existing shorts before buying new longs, a negative gap
// sells existing longs before shorting. Instruments without a bar are left
// untouched this round.
func (t *Template) Rebalance(bars map[string]schema.BarData) {
	t.CancelAll()

	for instrument, bar := range bars {
		target := t.Target(instrument)
		pos := t.Pos(instrument)
		diff := target - pos
		if diff == 0 {
			continue
		}

		if diff > 0 {
			price := t.calculatePrice(instrument, schema.DirectionLong, bar.Close)

			coverVolume := min64(diff, max64(0, -pos))
			buyVolume := diff - coverVolume

			if coverVolume > 0 {
				t.Cover(instrument, price, coverVolume)
			}
			if buyVolume > 0 {
				t.Buy(instrument, price, buyVolume)
			}
		} else {
			price := t.calculatePrice(instrument, schema.DirectionShort, bar.Close)

			sellVolume := min64(-diff, max64(0, pos))
			shortVolume := -diff - sellVolume

			if sellVolume > 0 {
				t.Sell(instrument, price, sellVolume)
			}
			if shortVolume > 0 {
				t.Short(instrument, price, shortVolume)
			}
		}
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
