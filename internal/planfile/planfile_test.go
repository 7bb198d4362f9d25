package planfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
)

const ex = "http://example.org/"

func decode(t *testing.T, src string) *Plan {
	t.Helper()
	p, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	return p
}

func TestDecodeServiceJoin(t *testing.T) {
	p := decode(t, `
prefixes:
  ex: http://example.org/
plan:
  join:
    - pattern: ["?paper", ex:title, "?title"]
    - service:
        ref: ex:search
        silent: true
        where:
          pattern: ["?doc", ex:mentions, "?title"]
`)

	join, ok := p.Root.Arg().(*algebra.Join)
	require.True(t, ok)

	left := join.Left().(*algebra.StatementPattern)
	assert.Equal(t, algebra.Variable("paper"), left.Subject)
	assert.Equal(t, algebra.Constant(ir.IRI(ex+"title")), left.Predicate)
	assert.True(t, left.Context.IsZero())

	svc := join.Right().(*algebra.Service)
	assert.Equal(t, ir.IRI(ex+"search"), svc.Ref)
	assert.True(t, svc.Silent)
	inner := svc.Inner().(*algebra.StatementPattern)
	assert.Equal(t, algebra.Variable("doc"), inner.Subject)

	assert.Equal(t, ex, p.Prefixes["ex"])
	assert.Equal(t, ir.NamespaceRDF, p.Prefixes["rdf"], "default prefixes stay available")
}

func TestDecodeJoinIsLeftDeep(t *testing.T) {
	p := decode(t, `
plan:
  join:
    - pattern: ["?a", "<http://example.org/p>", "?b"]
    - pattern: ["?b", "<http://example.org/p>", "?c"]
    - pattern: ["?c", "<http://example.org/p>", "?d"]
`)
	outer := p.Root.Arg().(*algebra.Join)
	_, ok := outer.Left().(*algebra.Join)
	assert.True(t, ok)
	_, ok = outer.Right().(*algebra.StatementPattern)
	assert.True(t, ok)
}

func TestDecodeScalarTerms(t *testing.T) {
	p := decode(t, `
prefixes: {ex: "http://example.org/"}
plan:
  union:
    - pattern: ["?s", a, ex:Paper]
    - pattern: ["?s", ex:year, 2020]
    - pattern: ["?s", ex:title, "Graph Theory"]
    - pattern: ["?s", ex:title, '"Graphes"@fr']
    - pattern: ["?s", ex:p, "?o", ex:graph]
`)

	var pats []*algebra.StatementPattern
	var walk func(algebra.Node)
	walk = func(n algebra.Node) {
		if sp, ok := n.(*algebra.StatementPattern); ok {
			pats = append(pats, sp)
			return
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(p.Root)
	require.Len(t, pats, 5)

	assert.Equal(t, algebra.Constant(ir.RDFType), pats[0].Predicate)
	assert.Equal(t, algebra.Constant(ir.NewInteger(2020)), pats[1].Object)
	assert.Equal(t, algebra.Constant(ir.NewString("Graph Theory")), pats[2].Object)
	assert.Equal(t, algebra.Constant(ir.NewLangString("Graphes", "fr")), pats[3].Object)
	assert.Equal(t, algebra.Constant(ir.IRI(ex+"graph")), pats[4].Context)
}

func TestDecodeModifiers(t *testing.T) {
	p := decode(t, `
plan:
  slice:
    offset: 1
    limit: 5
    arg:
      project:
        vars: ["?title"]
        arg:
          order:
            by: [{desc: "?year"}, "?title"]
            arg:
              filter:
                condition:
                  and:
                    - {">=": ["?year", 2000]}
                    - {regex: ["?title", "^graph", i]}
                    - {not: {bound: "?retracted"}}
                arg:
                  leftjoin:
                    left: {pattern: ["?p", "<http://example.org/title>", "?title"]}
                    right: {pattern: ["?p", "<http://example.org/year>", "?year"]}
                    condition: {"!=": ["?year", 0]}
`)

	slice := p.Root.Arg().(*algebra.Slice)
	assert.Equal(t, int64(1), slice.Offset)
	assert.Equal(t, int64(5), slice.Limit)

	proj := slice.Arg().(*algebra.Projection)
	assert.Equal(t, []string{"title"}, proj.Vars)

	order := proj.Arg().(*algebra.OrderBy)
	assert.Equal(t, []algebra.OrderElem{
		{Expr: algebra.VarRef{Name: "year"}, Descending: true},
		{Expr: algebra.VarRef{Name: "title"}},
	}, order.Elements)

	filter := order.Arg().(*algebra.Filter)
	assert.Equal(t, algebra.And{
		Left: algebra.And{
			Left: algebra.Compare{Op: algebra.OpGe, Left: algebra.VarRef{Name: "year"}, Right: algebra.Const{Term: ir.NewInteger(2000)}},
			Right: algebra.Regex{Arg: algebra.VarRef{Name: "title"}, Pattern: "^graph", Flags: "i"},
		},
		Right: algebra.Not{Arg: algebra.Bound{Name: "retracted"}},
	}, filter.Condition)

	lj := filter.Arg().(*algebra.LeftJoin)
	assert.Equal(t, algebra.Compare{Op: algebra.OpNe, Left: algebra.VarRef{Name: "year"}, Right: algebra.Const{Term: ir.NewInteger(0)}}, lj.Condition)
}

func TestDecodeSliceDefaults(t *testing.T) {
	p := decode(t, `
plan:
  slice:
    offset: 2
    arg: {singleton: {}}
`)
	slice := p.Root.Arg().(*algebra.Slice)
	assert.Equal(t, algebra.NoLimit, slice.Limit)
	_, ok := slice.Arg().(*algebra.SingletonSet)
	assert.True(t, ok)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty", ``, "empty document"},
		{"no plan", `prefixes: {ex: "http://example.org/"}`, "plan is required"},
		{"unknown top-level field", "plan: {singleton: {}}\nextra: 1", "extra"},
		{"two operators", `plan: {singleton: {}, union: []}`, "exactly one operator"},
		{"unknown operator", `plan: {cross: []}`, `unknown operator "cross"`},
		{"short pattern", `plan: {pattern: ["?a", "?b"]}`, "pattern"},
		{"empty variable", `plan: {pattern: ["?", a, "?b"]}`, "empty variable"},
		{"unknown prefix", `plan: {pattern: ["?a", nope:p, "?b"]}`, "unknown prefix"},
		{"single join arm", `plan: {join: [{singleton: {}}]}`, "at least two"},
		{"service without ref", `plan: {service: {where: {singleton: {}}}}`, "ref is required"},
		{"service literal ref", `plan: {service: {ref: 42, where: {singleton: {}}}}`, "not an IRI"},
		{"service without where", `plan: {service: {ref: "<http://example.org/s>"}}`, "where is required"},
		{"unknown field", `plan: {filter: {cond: "?x", arg: {singleton: {}}}}`, `unknown field "cond"`},
		{"negative limit", `plan: {slice: {limit: -1, arg: {singleton: {}}}}`, "limit"},
		{"bad regex flags", `plan: {filter: {condition: {regex: ["?x", "a", "g"]}, arg: {singleton: {}}}}`, "flags"},
		{"compare arity", `plan: {filter: {condition: {"=": ["?x"]}, arg: {singleton: {}}}}`, "want 2 operands"},
		{"project constant", `plan: {project: {vars: [x], arg: {singleton: {}}}}`, "not a variable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.True(t, IsDecodeError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeErrorCarriesLine(t *testing.T) {
	_, err := Decode(strings.NewReader("plan:\n  join:\n    - singleton: {}\n    - bogus: 1\n"))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 4, de.Line)
	assert.Contains(t, err.Error(), "line 4")
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plan: {singleton: {}}\n"), 0o644))

	p, err := DecodeFile(path)
	require.NoError(t, err)
	_, ok := p.Root.Arg().(*algebra.SingletonSet)
	assert.True(t, ok)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDecodeData(t *testing.T) {
	g, err := DecodeData(strings.NewReader(`
prefixes: {ex: "http://example.org/"}
triples:
  - [ex:p1, a, ex:Paper]
  - [ex:p1, ex:title, "Graph Databases"]
  - [_:b0, ex:year, 2020]
`))
	require.NoError(t, err)
	assert.Equal(t, ir.Graph{
		{Subject: ir.IRI(ex + "p1"), Predicate: ir.RDFType, Object: ir.IRI(ex + "Paper")},
		{Subject: ir.IRI(ex + "p1"), Predicate: ir.IRI(ex + "title"), Object: ir.NewString("Graph Databases")},
		{Subject: ir.BlankNode("b0"), Predicate: ir.IRI(ex + "year"), Object: ir.NewInteger(2020)},
	}, g)
}

func TestDecodeDataErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"short triple", `triples: [[ex:p1, a]]`},
		{"literal subject", `triples: [["\"x\"", a, "y"]]`},
		{"literal predicate", `triples: [["<http://example.org/s>", 1, "y"]]`},
		{"nested value", `triples: [["<http://example.org/s>", a, [1]]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeData(strings.NewReader(tt.src))
			assert.Error(t, err)
		})
	}
}
