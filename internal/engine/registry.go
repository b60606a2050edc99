package engine

import (
	"sort"
	"sync"

	"github.com/coachpo/folio/errs"
	"github.com/coachpo/folio/internal/strategy"
)

// Registry indexes strategy instances three ways: by name, by instrument in
// registration order, and by live order id. It also owns the processed-trade
// set used for idempotent fill handling.
type Registry struct {
	mu           sync.RWMutex
	instances    map[string]*strategy.Template
	byInstrument map[string][]string
	byOrder      map[string]string

	seenTrades map[string]struct{}
	seenQueue  []string
	retention  int
}

// NewRegistry allocates an empty registry. retention caps the processed-trade
// set; oldest ids are evicted first. Zero keeps every id for the process
// lifetime.
func NewRegistry(retention int) *Registry {
	return &Registry{
		instances:    make(map[string]*strategy.Template),
		byInstrument: make(map[string][]string),
		byOrder:      make(map[string]string),
		seenTrades:   make(map[string]struct{}),
		retention:    retention,
	}
}

// Add inserts a new instance and fans its instruments into the routing index.
func (r *Registry) Add(t *strategy.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.instances[name]; exists {
		return errs.New("engine/registry", errs.CodeDuplicateStrategy,
			errs.WithStrategy(name), errs.WithMessage("strategy name already registered"))
	}
	r.instances[name] = t
	for _, instrument := range t.Instruments() {
		r.byInstrument[instrument] = append(r.byInstrument[instrument], name)
	}
	return nil
}

// Remove drops the instance and every index entry pointing at it.
func (r *Registry) Remove(name string) (*strategy.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.instances[name]
	if !ok {
		return nil, errs.New("engine/registry", errs.CodeNotFound,
			errs.WithStrategy(name), errs.WithMessage("strategy not registered"))
	}
	delete(r.instances, name)
	for _, instrument := range t.Instruments() {
		names := r.byInstrument[instrument]
		kept := names[:0]
		for _, n := range names {
			if n != name {
				kept = append(kept, n)
			}
		}
		if len(kept) == 0 {
			delete(r.byInstrument, instrument)
		} else {
			r.byInstrument[instrument] = kept
		}
	}
	for orderID, owner := range r.byOrder {
		if owner == name {
			delete(r.byOrder, orderID)
		}
	}
	return t, nil
}

// Get returns the instance by name.
func (r *Registry) Get(name string) (*strategy.Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.instances[name]
	return t, ok
}

// Names returns every instance name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every instance, sorted by name.
func (r *Registry) All() []*strategy.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*strategy.Template, 0, len(names))
	for _, name := range names {
		out = append(out, r.instances[name])
	}
	return out
}

// ForInstrument returns the instances subscribed to the instrument in
// registration order.
func (r *Registry) ForInstrument(instrument string) []*strategy.Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.byInstrument[instrument]
	out := make([]*strategy.Template, 0, len(names))
	for _, name := range names {
		if t, ok := r.instances[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// BindOrder records the owning instance for a submitted order id.
func (r *Registry) BindOrder(orderID, name string) {
	if orderID == "" {
		return
	}
	r.mu.Lock()
	r.byOrder[orderID] = name
	r.mu.Unlock()
}

// OwnerOf resolves the instance that placed the order id.
func (r *Registry) OwnerOf(orderID string) (*strategy.Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byOrder[orderID]
	if !ok {
		return nil, false
	}
	t, ok := r.instances[name]
	return t, ok
}

// MarkTrade records a trade id, returning false when it was already seen.
// Ids are recorded even for trades no strategy claims, so a late duplicate
// stays suppressed.
func (r *Registry) MarkTrade(tradeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.seenTrades[tradeID]; dup {
		return false
	}
	r.seenTrades[tradeID] = struct{}{}
	if r.retention > 0 {
		r.seenQueue = append(r.seenQueue, tradeID)
		for len(r.seenQueue) > r.retention {
			delete(r.seenTrades, r.seenQueue[0])
			r.seenQueue = r.seenQueue[1:]
		}
	}
	return true
}
