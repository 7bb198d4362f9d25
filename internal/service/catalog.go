package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/ir"
)

// ErrUnknownService is returned when a service reference has no catalog entry.
var ErrUnknownService = errors.New("unknown service")

// KeywordEngine is the engine type of full-text keyword services.
const KeywordEngine = "keyword"

// Entry pairs a parsed descriptor with the configuration that serves it.
type Entry struct {
	Descriptor *descriptor.Descriptor
	Config     Config
	Invoker    Invoker
}

// Catalog holds the registered services. It is read-mostly: entries are
// added at startup and looked up by every rewrite and evaluation.
type Catalog struct {
	mu        sync.RWMutex
	registry  *Registry
	entries   map[ir.IRI]*Entry
	cacheSize int
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCacheSize wraps every invoker in a CachingInvoker of the given size.
// Zero disables caching.
func WithCacheSize(n int) CatalogOption {
	return func(c *Catalog) {
		c.cacheSize = n
	}
}

// NewCatalog creates an empty catalog backed by the engine registry.
func NewCatalog(reg *Registry, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		registry: reg,
		entries:  make(map[ir.IRI]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add registers a service. The engine type must be known to the registry;
// its factory is called once to build the service's invoker.
func (c *Catalog) Add(d *descriptor.Descriptor, cfg Config) error {
	if d == nil {
		return fmt.Errorf("catalog: nil descriptor")
	}
	ref := ir.IRI(d.Ref())
	if cfg.ID == "" {
		cfg.ID = ref
	}
	if cfg.ID != ref {
		return fmt.Errorf("catalog: config %s does not match descriptor %s", cfg.ID, ref)
	}

	factory, err := c.registry.Lookup(cfg.EngineType)
	if err != nil {
		return fmt.Errorf("catalog: service %s: %w", ref, err)
	}
	inv, err := factory(cfg)
	if err != nil {
		return fmt.Errorf("catalog: service %s: build invoker: %w", ref, err)
	}
	if c.cacheSize > 0 {
		if inv, err = NewCachingInvoker(inv, c.cacheSize); err != nil {
			return fmt.Errorf("catalog: service %s: %w", ref, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[ref]; exists {
		return fmt.Errorf("catalog: service %s already registered", ref)
	}
	c.entries[ref] = &Entry{Descriptor: d, Config: cfg, Invoker: inv}
	return nil
}

// Resolve returns the descriptor for ref.
func (c *Catalog) Resolve(ref ir.IRI) (*descriptor.Descriptor, error) {
	e, err := c.Lookup(ref)
	if err != nil {
		return nil, err
	}
	return e.Descriptor, nil
}

// Lookup returns a copy of the entry for ref.
func (c *Catalog) Lookup(ref ir.IRI) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[ref]
	if !ok {
		return Entry{}, fmt.Errorf("%w %s", ErrUnknownService, ref)
	}
	return *e, nil
}

// Refs returns every registered service IRI in sorted order.
func (c *Catalog) Refs() []ir.IRI {
	c.mu.RLock()
	defer c.mu.RUnlock()

	refs := make([]ir.IRI, 0, len(c.entries))
	for ref := range c.entries {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}

// Keyword returns the entry serving keyword searches: the first service,
// in IRI order, whose engine type is "keyword".
func (c *Catalog) Keyword() (Entry, bool) {
	for _, ref := range c.Refs() {
		e, err := c.Lookup(ref)
		if err == nil && e.Config.EngineType == KeywordEngine {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of registered services.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
