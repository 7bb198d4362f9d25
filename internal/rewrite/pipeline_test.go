package rewrite

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOptimizerRewrite(t *testing.T) {
	resolver := staticResolver{ir.IRI(ex + "search"): searchDescriptor(t)}

	// SERVICE nested inside SERVICE, a keyword clause and a deep join chain.
	nested := algebra.NewService(ir.IRI(ex+"search"), sp("?doc", "ex:rank", "?r"), false)
	outer := algebra.NewService(ir.IRI(ex+"search"), algebra.NewJoin(sp("?doc", "ex:matches", "?q"), nested), false)
	root := algebra.NewRoot(leftDeep([]algebra.Node{
		sp("?paper", "fts:search", `"graph"`),
		sp("?paper", "ex:keyword", "?q"),
		outer,
		sp("?doc", "ex:year", "?year"),
	}))

	opt := New(resolver, discardLogger())
	require.NoError(t, opt.Rewrite(root))

	want := `Root
  NaryJoin
    KeywordSearch subject=?paper value="graph"
    StatementPattern ?paper ex:keyword ?q
    Owned ex:search [rank=?r token=?q uri=?doc]
      Join
        StatementPattern ?doc ex:matches ?q
        StatementPattern ?doc ex:rank ?r
    StatementPattern ?doc ex:year ?year
`
	assert.Equal(t, want, format(root))
	assert.Equal(t, 1, maxOwnedDepth(root))
}

func TestOptimizerRewriteIsIdempotent(t *testing.T) {
	resolver := staticResolver{ir.IRI(ex + "search"): searchDescriptor(t)}
	root := algebra.NewRoot(leftDeep([]algebra.Node{
		sp("?a", "ex:p", "?b"),
		algebra.NewService(ir.IRI(ex+"search"), sp("?b", "ex:matches", "?q"), false),
		sp("?b", "fts:search", `"x"`),
	}))

	opt := New(resolver, discardLogger())
	require.NoError(t, opt.Rewrite(root))
	first := format(root)

	require.NoError(t, opt.Rewrite(root))
	assert.Equal(t, first, format(root))
}

func TestOptimizerReportsFailingPass(t *testing.T) {
	root := algebra.NewRoot(algebra.NewService(ir.IRI(ex+"missing"), sp("?a", "ex:p", "?b"), false))

	err := New(staticResolver{}, discardLogger()).Rewrite(root)
	require.Error(t, err)
	assert.True(t, IsRewriteError(err))

	var re *RewriteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, PassDelegation, re.Pass)
}
