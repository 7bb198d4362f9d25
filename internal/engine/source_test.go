package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
	"github.com/roach88/fedq/internal/service/keyword"
	"github.com/roach88/fedq/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "fedq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = st.AddTriples(context.Background(),
		ir.Triple{Subject: iri("p1"), Predicate: ir.RDFType, Object: iri("Paper")},
		ir.Triple{Subject: iri("p1"), Predicate: iri("title"), Object: ir.NewString("Graph Databases")},
		ir.Triple{Subject: iri("p1"), Predicate: iri("year"), Object: ir.NewInteger(2020)},
		ir.Triple{Subject: iri("p2"), Predicate: ir.RDFType, Object: iri("Book")},
		ir.Triple{Subject: iri("p2"), Predicate: iri("title"), Object: ir.NewString("Graph Theory")},
	)
	require.NoError(t, err)
	return st
}

func TestGraphSourceMatchesWildcards(t *testing.T) {
	it, err := papers().Match(context.Background(), nil, iri("year"), nil)
	require.NoError(t, err)
	defer it.Close()

	var subjects []ir.Term
	for it.Next() {
		subjects = append(subjects, it.Triple().Subject)
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []ir.Term{iri("p1"), iri("p2")}, subjects)
}

func TestStoreSourceNestedScans(t *testing.T) {
	st := openStore(t)
	e := newTestEvaluator(StoreSource(st), testCatalog(t, nil))

	root := algebra.NewRoot(algebra.NewJoin(
		sp(varSlot("p"), constSlot(ir.RDFType), constSlot(iri("Paper"))),
		sp(varSlot("p"), constSlot(iri("title")), varSlot("t")),
	))
	got, err := evalAll(t, e, root)
	require.NoError(t, err)
	assert.Equal(t, []ir.Binding{{"p": iri("p1"), "t": ir.NewString("Graph Databases")}}, got)
}

func TestStoreBackedKeywordSearch(t *testing.T) {
	st := openStore(t)

	reg := service.NewRegistry()
	require.NoError(t, reg.Register(keyword.EngineType, keyword.Factory(st)))
	reg.Freeze()
	cat := service.NewCatalog(reg)
	require.NoError(t, cat.Add(descriptor.New(iri("fts"), nil), service.Config{EngineType: keyword.EngineType}))

	e := newTestEvaluator(StoreSource(st), cat)
	root := algebra.NewRoot(algebra.NewJoin(
		algebra.NewKeywordSearch(algebra.KeywordPattern{
			Subject: algebra.VarPtr(varSlot("s")),
			Value:   algebra.VarPtr(constSlot(ir.NewString("graph"))),
			Match:   algebra.VarPtr(varSlot("m")),
			Types:   []algebra.Var{constSlot(iri("Paper"))},
		}),
		sp(varSlot("s"), constSlot(iri("year")), varSlot("y")),
	))

	got, err := evalAll(t, e, root)
	require.NoError(t, err)
	assert.Equal(t, []ir.Binding{{
		"s": iri("p1"),
		"m": ir.NewString("Graph Databases"),
		"y": ir.NewInteger(2020),
	}}, got)
}
