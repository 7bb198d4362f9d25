package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedq/internal/algebra"
)

func pruneTrees() map[string]func() *algebra.Root {
	return map[string]func() *algebra.Root{
		"no ownership": func() *algebra.Root {
			return algebra.NewRoot(algebra.NewJoin(sp("?s", "ex:p", "?o"), sp("?o", "ex:q", "?x")))
		},
		"single owner": func() *algebra.Root {
			return algebra.NewRoot(owned(sp("?s", "ex:p", "?o"), "a"))
		},
		"directly nested": func() *algebra.Root {
			return algebra.NewRoot(owned(owned(owned(sp("?s", "ex:p", "?o"), "c"), "b"), "a"))
		},
		"nested under join": func() *algebra.Root {
			return algebra.NewRoot(owned(algebra.NewJoin(
				owned(sp("?s", "ex:p", "?o"), "b"),
				algebra.NewFilter(algebra.Bound{Name: "x"}, owned(owned(sp("?o", "ex:q", "?x"), "d"), "c")),
			), "a"))
		},
		"sibling owners": func() *algebra.Root {
			return algebra.NewRoot(algebra.NewJoin(
				owned(sp("?s", "ex:p", "?o"), "a"),
				owned(owned(sp("?o", "ex:q", "?x"), "c"), "b"),
			))
		},
	}
}

func TestPruneOwnershipNoNestedOwnership(t *testing.T) {
	for name, build := range pruneTrees() {
		t.Run(name, func(t *testing.T) {
			root := build()
			require.NoError(t, PruneOwnership(root))
			assert.LessOrEqual(t, maxOwnedDepth(root), 1)
		})
	}
}

func TestPruneOwnershipIdempotent(t *testing.T) {
	for name, build := range pruneTrees() {
		t.Run(name, func(t *testing.T) {
			once := build()
			require.NoError(t, PruneOwnership(once))

			twice := build()
			require.NoError(t, PruneOwnership(twice))
			require.NoError(t, PruneOwnership(twice))

			assert.Equal(t, format(once), format(twice))
		})
	}
}

func TestPruneOwnershipKeepsContent(t *testing.T) {
	root := pruneTrees()["nested under join"]()
	require.NoError(t, PruneOwnership(root))

	want := `Root
  Owned ex:a
    Join
      StatementPattern ?s ex:p ?o
      Filter BOUND(?x)
        StatementPattern ?o ex:q ?x
`
	assert.Equal(t, want, format(root))
}

func TestPruneOwnershipUsesClone(t *testing.T) {
	inner := sp("?s", "ex:p", "?o")
	nested := owned(inner, "b")
	root := algebra.NewRoot(owned(nested, "a"))

	require.NoError(t, PruneOwnership(root))

	outer := root.Arg().(*algebra.Owned)
	assert.NotSame(t, inner, outer.Inner(), "replacement is a clone")
	assert.Same(t, nested, inner.Parent(), "original inner stays valid under its detached wrapper")
	assert.Nil(t, nested.Parent())
}

func TestPruneOwnershipSiblingsKeepTheirOwners(t *testing.T) {
	root := pruneTrees()["sibling owners"]()
	require.NoError(t, PruneOwnership(root))

	want := `Root
  Join
    Owned ex:a
      StatementPattern ?s ex:p ?o
    Owned ex:b
      StatementPattern ?o ex:q ?x
`
	assert.Equal(t, want, format(root))
}
