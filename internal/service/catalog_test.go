package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/ir"
)

const ex = "http://example.org/"

func testDescriptor(name string) *descriptor.Descriptor {
	p := descriptor.Pattern{
		Subject:   descriptor.Slot{Var: "uri"},
		Predicate: descriptor.Slot{Term: ir.IRI(ex + "matches")},
		Object:    descriptor.Slot{Var: "token"},
	}
	return descriptor.New(ir.IRI(ex+name), []descriptor.Pattern{p},
		descriptor.Parameter{Name: "token", Direction: descriptor.Input, ObjectPatterns: []descriptor.Pattern{p}},
		descriptor.Parameter{Name: "uri", Direction: descriptor.Output, SubjectPatterns: []descriptor.Pattern{p}},
	)
}

func frozenRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register("sql", staticFactory(Row{"uri": ir.IRI(ex + "doc1")})))
	require.NoError(t, reg.Register(KeywordEngine, staticFactory()))
	reg.Freeze()
	return reg
}

func TestCatalogAddAndResolve(t *testing.T) {
	cat := NewCatalog(frozenRegistry(t))
	d := testDescriptor("search")

	require.NoError(t, cat.Add(d, Config{EngineType: "sql", Timeout: time.Second}))

	got, err := cat.Resolve(ir.IRI(ex + "search"))
	require.NoError(t, err)
	assert.Same(t, d, got)

	e, err := cat.Lookup(ir.IRI(ex + "search"))
	require.NoError(t, err)
	assert.Equal(t, ir.IRI(ex+"search"), e.Config.ID, "config ID defaults to the descriptor")
	assert.Equal(t, time.Second, e.Config.Timeout)

	rows, err := invokeAll(e, nil)
	require.NoError(t, err)
	assert.Equal(t, []Row{{"uri": ir.IRI(ex + "doc1")}}, rows)
}

func invokeAll(e Entry, inputs map[string]ir.Term) ([]Row, error) {
	rs, err := e.Invoker.Invoke(context.Background(), e.Config, inputs)
	if err != nil {
		return nil, err
	}
	return Collect(rs)
}

func TestCatalogResolveUnknown(t *testing.T) {
	cat := NewCatalog(frozenRegistry(t))

	_, err := cat.Resolve(ir.IRI(ex + "missing"))
	assert.ErrorIs(t, err, ErrUnknownService)
	assert.Contains(t, err.Error(), "unknown service")
}

func TestCatalogAddErrors(t *testing.T) {
	tests := []struct {
		name string
		d    *descriptor.Descriptor
		cfg  Config
		want error
	}{
		{name: "nil descriptor", cfg: Config{EngineType: "sql"}},
		{name: "unknown engine", d: testDescriptor("a"), cfg: Config{EngineType: "graphql"}, want: ErrEngineNotFound},
		{name: "mismatched id", d: testDescriptor("a"), cfg: Config{ID: ir.IRI(ex + "b"), EngineType: "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewCatalog(frozenRegistry(t)).Add(tt.d, tt.cfg)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestCatalogRejectsDuplicate(t *testing.T) {
	cat := NewCatalog(frozenRegistry(t))
	require.NoError(t, cat.Add(testDescriptor("a"), Config{EngineType: "sql"}))
	assert.Error(t, cat.Add(testDescriptor("a"), Config{EngineType: "sql"}))
	assert.Equal(t, 1, cat.Len())
}

func TestCatalogFactoryFailure(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("no database")
	require.NoError(t, reg.Register("sql", func(Config) (Invoker, error) { return nil, boom }))
	reg.Freeze()

	err := NewCatalog(reg).Add(testDescriptor("a"), Config{EngineType: "sql"})
	assert.ErrorIs(t, err, boom)
}

func TestCatalogKeyword(t *testing.T) {
	cat := NewCatalog(frozenRegistry(t))
	_, ok := cat.Keyword()
	assert.False(t, ok)

	require.NoError(t, cat.Add(testDescriptor("sql"), Config{EngineType: "sql"}))
	require.NoError(t, cat.Add(testDescriptor("z-fts"), Config{EngineType: KeywordEngine}))
	require.NoError(t, cat.Add(testDescriptor("fts"), Config{EngineType: KeywordEngine}))

	e, ok := cat.Keyword()
	require.True(t, ok)
	assert.Equal(t, ir.IRI(ex+"fts"), e.Config.ID)
	assert.Equal(t, []ir.IRI{ir.IRI(ex + "fts"), ir.IRI(ex + "sql"), ir.IRI(ex + "z-fts")}, cat.Refs())
}

func TestCatalogWithCacheSize(t *testing.T) {
	cat := NewCatalog(frozenRegistry(t), WithCacheSize(8))
	require.NoError(t, cat.Add(testDescriptor("a"), Config{EngineType: "sql"}))

	e, err := cat.Lookup(ir.IRI(ex + "a"))
	require.NoError(t, err)
	_, ok := e.Invoker.(*CachingInvoker)
	assert.True(t, ok)
}
