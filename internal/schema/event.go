// Package schema defines the market, order and trade data types shared across
// the Folio runtime. Instrument keys are opaque strings and never parsed here.
package schema

import "time"

// TickData is a single market-data update for one instrument.
type TickData struct {
	Instrument string    `json:"instrument"`
	Timestamp  time.Time `json:"timestamp"`
	LastPrice  float64   `json:"lastPrice"`
	BidPrice   float64   `json:"bidPrice"`
	AskPrice   float64   `json:"askPrice"`
	Volume     int64     `json:"volume"`
}

// BarData is one aggregated candle for one instrument.
type BarData struct {
	Instrument string    `json:"instrument"`
	Timestamp  time.Time `json:"timestamp"`
	Interval   Interval  `json:"interval"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
}

// FlatBar returns a synthetic zero-range bar at ts carrying forward the
// previous close, used to fill timeline gaps during multi-instrument replay.
func (b BarData) FlatBar(ts time.Time) BarData {
	return BarData{
		Instrument: b.Instrument,
		Timestamp:  ts,
		Interval:   b.Interval,
		Open:       b.Close,
		High:       b.Close,
		Low:        b.Close,
		Close:      b.Close,
		Volume:     0,
	}
}

// OrderData is the last known snapshot of a submitted order.
type OrderData struct {
	ID         string      `json:"id"`
	Instrument string      `json:"instrument"`
	Gateway    string      `json:"gateway"`
	Direction  Direction   `json:"direction"`
	Offset     Offset      `json:"offset"`
	Price      float64     `json:"price"`
	Volume     int64       `json:"volume"`
	Traded     int64       `json:"traded"`
	Status     OrderStatus `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
}

// CancelRequest derives the cancel request keyed by the order's original gateway.
func (o OrderData) CancelRequest() CancelRequest {
	return CancelRequest{
		OrderID:    o.ID,
		Instrument: o.Instrument,
		Gateway:    o.Gateway,
	}
}

// TradeData is a single fill notification. ID is globally unique per fill and
// may be redelivered by upstream feeds.
type TradeData struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"orderId"`
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Offset     Offset    `json:"offset"`
	Price      float64   `json:"price"`
	Volume     int64     `json:"volume"`
	Timestamp  time.Time `json:"timestamp"`
}

// SignedVolume maps the fill to a position delta: positive for buy-side fills,
// negative for sell-side, regardless of open/close offset.
func (t TradeData) SignedVolume() int64 {
	if t.Direction == DirectionLong {
		return t.Volume
	}
	return -t.Volume
}
