package service

import (
	"context"
	"fmt"
	"maps"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"

	"github.com/roach88/fedq/internal/ir"
)

// CachingInvoker memoizes the rows of an inner Invoker per (service, inputs).
//
// A miss drains the inner stream before returning, so cached services lose
// lazy streaming. Failed invocations are not cached.
type CachingInvoker struct {
	inner Invoker
	cache *lru.Cache[[16]byte, []Row]
}

// NewCachingInvoker wraps inner with an LRU cache holding size entries.
func NewCachingInvoker(inner Invoker, size int) (*CachingInvoker, error) {
	cache, err := lru.New[[16]byte, []Row](size)
	if err != nil {
		return nil, fmt.Errorf("create invocation cache: %w", err)
	}
	return &CachingInvoker{inner: inner, cache: cache}, nil
}

func (c *CachingInvoker) Invoke(ctx context.Context, cfg Config, inputs map[string]ir.Term) (RowStream, error) {
	key, err := cacheKey(cfg.ID, inputs)
	if err != nil {
		return nil, err
	}
	if rows, ok := c.cache.Get(key); ok {
		return NewSliceStream(cloneRows(rows)...), nil
	}

	rs, err := c.inner.Invoke(ctx, cfg, inputs)
	if err != nil {
		return nil, err
	}
	rows, err := Collect(rs)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, rows)
	return NewSliceStream(cloneRows(rows)...), nil
}

// Len returns the number of cached invocations.
func (c *CachingInvoker) Len() int { return c.cache.Len() }

// cacheKey hashes the service IRI and the canonical JSON of the inputs.
func cacheKey(id ir.IRI, inputs map[string]ir.Term) ([16]byte, error) {
	canonical, err := ir.MarshalCanonical(ir.NewBinding(inputs))
	if err != nil {
		return [16]byte{}, fmt.Errorf("cache key for %s: %w", id, err)
	}
	h := xxh3.New()
	h.WriteString(string(id))
	h.Write([]byte{0})
	h.Write(canonical)
	return h.Sum128().Bytes(), nil
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = maps.Clone(r)
	}
	return out
}
