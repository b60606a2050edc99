// Package market defines the data-side dependencies of the strategy engine:
// contract metadata lookup, live tick subscription and historical bar
// sources. Implementations live in the feed and datafeed subpackages; the
// static variants here back tests and file-driven deployments.
package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coachpo/folio/internal/schema"
)

// ContractProvider resolves instrument metadata. The second return is false
// when the instrument is unknown.
type ContractProvider interface {
	Contract(instrument string) (schema.Contract, bool)
}

// Subscriber registers live market data interest for an instrument.
type Subscriber interface {
	Subscribe(instrument string) error
}

// HistorySource loads historical bars for one instrument, ascending by
// timestamp, both bounds inclusive.
type HistorySource interface {
	QueryBars(ctx context.Context, instrument string, interval schema.Interval, start, end time.Time) ([]schema.BarData, error)
}

// StaticCatalog is an immutable in-memory ContractProvider.
type StaticCatalog struct {
	contracts map[string]schema.Contract
}

// NewStaticCatalog indexes the given contracts by instrument.
func NewStaticCatalog(contracts []schema.Contract) *StaticCatalog {
	idx := make(map[string]schema.Contract, len(contracts))
	for _, c := range contracts {
		idx[c.Instrument] = c
	}
	return &StaticCatalog{contracts: idx}
}

// Contract returns the metadata for the instrument.
func (c *StaticCatalog) Contract(instrument string) (schema.Contract, bool) {
	contract, ok := c.contracts[instrument]
	return contract, ok
}

// StaticSource is an in-memory HistorySource, useful for tests and replay.
type StaticSource struct {
	mu   sync.RWMutex
	bars map[string][]schema.BarData
}

// NewStaticSource allocates an empty source.
func NewStaticSource() *StaticSource {
	return &StaticSource{bars: make(map[string][]schema.BarData)}
}

// Add appends bars for an instrument, keeping the series sorted.
func (s *StaticSource) Add(instrument string, bars ...schema.BarData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[instrument] = append(s.bars[instrument], bars...)
	sort.Slice(s.bars[instrument], func(i, j int) bool {
		return s.bars[instrument][i].Timestamp.Before(s.bars[instrument][j].Timestamp)
	})
}

// QueryBars returns the stored bars inside [start, end].
func (s *StaticSource) QueryBars(ctx context.Context, instrument string, interval schema.Interval, start, end time.Time) ([]schema.BarData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []schema.BarData
	for _, b := range s.bars[instrument] {
		if b.Interval != interval {
			continue
		}
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
