package keyword

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
	"github.com/roach88/fedq/internal/store"
)

const ex = "http://example.org/"

func iri(local string) ir.IRI { return ir.IRI(ex + local) }

func newIndex(t *testing.T, opts map[string]any) (*Index, service.Config) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = st.AddTriples(context.Background(),
		ir.Triple{Subject: iri("p1"), Predicate: ir.RDFType, Object: iri("Paper")},
		ir.Triple{Subject: iri("p1"), Predicate: iri("title"), Object: ir.NewString("Graph Databases in Practice")},
		ir.Triple{Subject: iri("p1"), Predicate: iri("abstract"), Object: ir.NewString("Graphs are everywhere")},
		ir.Triple{Subject: iri("p2"), Predicate: ir.RDFType, Object: iri("Paper")},
		ir.Triple{Subject: iri("p2"), Predicate: iri("title"), Object: ir.NewString("Stream processing")},
		ir.Triple{Subject: iri("p3"), Predicate: ir.RDFType, Object: iri("Book")},
		ir.Triple{Subject: iri("p3"), Predicate: iri("label"), Object: ir.NewString("GRAPH theory")},
		ir.Triple{Subject: iri("p4"), Predicate: iri("title"), Object: ir.NewLangString("Straße der Graphen", "de")},
		ir.Triple{Subject: iri("p5"), Predicate: iri("label"), Object: ir.NewString("École normale")},
	)
	require.NoError(t, err)

	cfg := service.Config{ID: iri("fts"), EngineType: EngineType, Options: opts}
	x, err := New(st, cfg)
	require.NoError(t, err)
	return x, cfg
}

func search(t *testing.T, x *Index, cfg service.Config, q service.KeywordQuery) []service.Row {
	t.Helper()
	rs, err := x.Search(context.Background(), cfg, q)
	require.NoError(t, err)
	rows, err := service.Collect(rs)
	require.NoError(t, err)
	return rows
}

func subjects(rows []service.Row) []ir.Term {
	out := make([]ir.Term, len(rows))
	for i, r := range rows {
		out[i] = r[service.KeywordSubject]
	}
	return out
}

func TestSearchRanksBySubject(t *testing.T) {
	x, cfg := newIndex(t, nil)

	rows := search(t, x, cfg, service.KeywordQuery{Text: "graph"})
	assert.Equal(t, []ir.Term{iri("p3"), iri("p1"), iri("p4")}, subjects(rows))

	assert.Equal(t, service.Row{
		service.KeywordSubject:   iri("p3"),
		service.KeywordPredicate: iri("label"),
		service.KeywordScore:     ir.NewDouble(0.5),
		service.KeywordSnippet:   ir.NewString("<b>GRAPH</b> theory"),
		service.KeywordMatch:     ir.NewString("GRAPH theory"),
	}, rows[0])

	assert.Equal(t, iri("abstract"), rows[1][service.KeywordPredicate], "best literal per subject wins")
}

func TestSearchRestrictions(t *testing.T) {
	x, cfg := newIndex(t, nil)

	papers := search(t, x, cfg, service.KeywordQuery{Text: "graph", Types: []ir.IRI{iri("Paper")}})
	assert.Equal(t, []ir.Term{iri("p1")}, subjects(papers))

	titles := search(t, x, cfg, service.KeywordQuery{Text: "graph", Predicates: []ir.IRI{iri("title")}})
	assert.Equal(t, []ir.Term{iri("p4"), iri("p1")}, subjects(titles))

	one := search(t, x, cfg, service.KeywordQuery{Text: "graph", Subject: iri("p1")})
	assert.Equal(t, []ir.Term{iri("p1")}, subjects(one))

	none := search(t, x, cfg, service.KeywordQuery{Text: "graph streams"})
	assert.Empty(t, none, "every word must match")
}

func TestSearchNormalizes(t *testing.T) {
	x, cfg := newIndex(t, nil)

	rows := search(t, x, cfg, service.KeywordQuery{Text: "STRASSE"})
	require.Len(t, rows, 1)
	assert.Equal(t, iri("p4"), rows[0][service.KeywordSubject])
	assert.Equal(t, ir.NewString("<b>strasse</b> der graphen"), rows[0][service.KeywordSnippet],
		"folding changed the rune layout, so the folded text is shown")

	rows = search(t, x, cfg, service.KeywordQuery{Text: "E\u0301COLE"})
	assert.Equal(t, []ir.Term{iri("p5")}, subjects(rows), "decomposed query matches a composed literal")
}

func TestSearchLimit(t *testing.T) {
	x, cfg := newIndex(t, map[string]any{"limit": 1})
	rows := search(t, x, cfg, service.KeywordQuery{Text: "graph"})
	assert.Equal(t, []ir.Term{iri("p3")}, subjects(rows))
}

func TestSearchEmptyQuery(t *testing.T) {
	x, cfg := newIndex(t, nil)
	assert.Empty(t, search(t, x, cfg, service.KeywordQuery{Text: " ,; "}))
}

func TestInvoke(t *testing.T) {
	x, cfg := newIndex(t, nil)

	rs, err := x.Invoke(context.Background(), cfg, map[string]ir.Term{
		InputQuery: ir.NewString("graph"),
		InputType:  iri("Book"),
	})
	require.NoError(t, err)
	rows, err := service.Collect(rs)
	require.NoError(t, err)
	assert.Equal(t, []ir.Term{iri("p3")}, subjects(rows))

	_, err = x.Invoke(context.Background(), cfg, nil)
	assert.True(t, service.IsInvocationError(err))
}

func TestAsKeywordSearcher(t *testing.T) {
	x, _ := newIndex(t, nil)

	_, ok := service.AsKeywordSearcher(x)
	assert.True(t, ok)

	cached, err := service.NewCachingInvoker(x, 2)
	require.NoError(t, err)
	_, ok = service.AsKeywordSearcher(cached)
	assert.True(t, ok, "looks through the cache")
}

func TestNewRejectsBadOptions(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	_, err = New(st, service.Config{Options: map[string]any{"limit": -1}})
	assert.Error(t, err)
	_, err = New(st, service.Config{Options: map[string]any{"boost": 2}})
	assert.Error(t, err)
	_, err = New(nil, service.Config{})
	assert.Error(t, err)
}
