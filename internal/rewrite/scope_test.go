package rewrite

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
)

func searchService(pattern *algebra.StatementPattern) *algebra.Service {
	return algebra.NewService(ir.IRI(ex+"search"), pattern, false)
}

func TestCheckBindings(t *testing.T) {
	unboundToken := []UnboundVar{{Service: ir.IRI(ex + "search"), Parameter: "token", Variable: "q"}}

	tests := []struct {
		name string
		tree func() algebra.Node
		want []UnboundVar
	}{
		{
			name: "input bound by left operand",
			tree: func() algebra.Node {
				return algebra.NewJoin(sp("?x", "ex:keyword", "?q"), searchService(sp("?doc", "ex:matches", "?q")))
			},
		},
		{
			name: "input bound by optional left operand",
			tree: func() algebra.Node {
				return algebra.NewLeftJoin(sp("?x", "ex:keyword", "?q"),
					algebra.NewFilter(algebra.Bound{Name: "doc"}, searchService(sp("?doc", "ex:matches", "?q"))), nil)
			},
		},
		{
			name: "lone service",
			tree: func() algebra.Node {
				return searchService(sp("?doc", "ex:matches", "?q"))
			},
			want: unboundToken,
		},
		{
			name: "constant input",
			tree: func() algebra.Node {
				return searchService(sp("?doc", "ex:matches", `"graph"`))
			},
		},
		{
			name: "input bound only by the right operand",
			tree: func() algebra.Node {
				return algebra.NewJoin(searchService(sp("?doc", "ex:matches", "?q")), sp("?x", "ex:keyword", "?q"))
			},
			want: unboundToken,
		},
		{
			name: "n-ary join binds before",
			tree: func() algebra.Node {
				return algebra.NewNaryJoin(
					sp("?x", "ex:keyword", "?q"),
					sp("?x", "ex:year", "?y"),
					searchService(sp("?doc", "ex:matches", "?q")),
				)
			},
		},
		{
			name: "n-ary join binds after",
			tree: func() algebra.Node {
				return algebra.NewNaryJoin(
					sp("?x", "ex:year", "?y"),
					searchService(sp("?doc", "ex:matches", "?q")),
					sp("?x", "ex:keyword", "?q"),
				)
			},
			want: unboundToken,
		},
		{
			name: "filter over its argument",
			tree: func() algebra.Node {
				return algebra.NewFilter(algebra.Bound{Name: "o"}, sp("?s", "ex:p", "?o"))
			},
		},
		{
			name: "filter reads unbound variable",
			tree: func() algebra.Node {
				cond := algebra.Compare{Op: algebra.OpGt, Left: algebra.VarRef{Name: "y"}, Right: algebra.Const{Term: ir.NewInteger(1)}}
				return algebra.NewFilter(cond, sp("?s", "ex:p", "?o"))
			},
			want: []UnboundVar{{Variable: "y"}},
		},
	}

	resolver := staticResolver{ir.IRI(ex + "search"): searchDescriptor(t)}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := algebra.NewRoot(tt.tree())
			require.NoError(t, Delegate(root, resolver))

			assert.Equal(t, tt.want, CheckBindings(root))
		})
	}
}

func TestOptimizerWarnsAboutUnboundInputs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	resolver := staticResolver{ir.IRI(ex + "search"): searchDescriptor(t)}
	root := algebra.NewRoot(searchService(sp("?doc", "ex:matches", "?q")))

	require.NoError(t, New(resolver, logger).Rewrite(root))

	out := buf.String()
	assert.Contains(t, out, "service input cannot be bound")
	assert.Contains(t, out, "parameter=token")
	assert.Contains(t, out, "variable=q")
}
