package schema

// Contract carries the venue metadata the engine needs to normalise orders
// for one instrument.
type Contract struct {
	Instrument string  `json:"instrument"`
	Venue      string  `json:"venue"`
	Gateway    string  `json:"gateway"`
	TickSize   float64 `json:"tickSize"`
	LotSize    int64   `json:"lotSize"`
	// HistoryFeed reports whether the owning gateway can serve bar history
	// directly; when false the engine falls through to the datafeed tier.
	HistoryFeed bool `json:"historyFeed"`
}
