package strategy

import (
	"sort"
	"sync"

	"github.com/coachpo/folio/errs"
)

// Factory builds a fresh logic value for one strategy instance.
type Factory func() Logic

// Catalog maps strategy class names to factories. Classes register once at
// startup; instances are stamped out per AddStrategy call.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog allocates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register binds a class name to its factory. Re-registering a name replaces
// the previous factory.
func (c *Catalog) Register(class string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[class] = factory
}

// New instantiates the logic for a class.
func (c *Catalog) New(class string) (Logic, error) {
	c.mu.RLock()
	factory, ok := c.factories[class]
	c.mu.RUnlock()
	if !ok {
		return nil, errs.New("strategy", errs.CodeUnknownClass,
			errs.WithMessage("class not registered: "+class))
	}
	return factory(), nil
}

// Classes returns the registered class names in sorted order.
func (c *Catalog) Classes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultParameters reports the declared parameter defaults of a class, or
// an empty map when the class declares none.
func (c *Catalog) DefaultParameters(class string) (map[string]any, error) {
	logic, err := c.New(class)
	if err != nil {
		return nil, err
	}
	if carrier, ok := logic.(ParameterCarrier); ok {
		return carrier.DefaultParameters(), nil
	}
	return map[string]any{}, nil
}
