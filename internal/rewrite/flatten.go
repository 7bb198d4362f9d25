package rewrite

import (
	"github.com/roach88/fedq/internal/algebra"
)

// FlattenJoins merges chains of Join and NaryJoin into single NaryJoin
// nodes.
//
// For every maximal join group the non-join operands are collected in
// left-to-right order. More than two operands become one NaryJoin holding
// exactly that sequence; two or fewer are left as they are. Operands are
// then visited so that join groups nested below them are flattened too.
func FlattenJoins(root *algebra.Root) error {
	f := &flattener{}
	f.Self = f
	return root.Accept(f)
}

type flattener struct {
	algebra.Walker
}

func (f *flattener) VisitJoin(j *algebra.Join) error         { return f.flatten(j) }
func (f *flattener) VisitNaryJoin(j *algebra.NaryJoin) error { return f.flatten(j) }

func (f *flattener) flatten(n algebra.Node) error {
	leaves := joinLeaves(n)
	if len(leaves) > 2 && !isFlat(n) {
		taken := make([]algebra.Node, len(leaves))
		for i, leaf := range leaves {
			t, err := algebra.Take(leaf)
			if err != nil {
				return err
			}
			taken[i] = t
		}
		if _, err := algebra.ReplaceWith(n, algebra.NewNaryJoin(taken...)); err != nil {
			return err
		}
	}
	for _, leaf := range leaves {
		if err := leaf.Accept(f.Self); err != nil {
			return err
		}
	}
	return nil
}

// isFlat reports whether n is an NaryJoin with no join operands.
func isFlat(n algebra.Node) bool {
	nj, ok := n.(*algebra.NaryJoin)
	if !ok {
		return false
	}
	for _, a := range nj.Args() {
		if isJoin(a) {
			return false
		}
	}
	return true
}

// joinLeaves collects the non-join operands of a join group, descending
// into Join and NaryJoin children before emitting siblings to their right.
// A non-join node is its own single leaf.
func joinLeaves(n algebra.Node) []algebra.Node {
	switch x := n.(type) {
	case *algebra.Join:
		return append(joinLeaves(x.Left()), joinLeaves(x.Right())...)
	case *algebra.NaryJoin:
		var out []algebra.Node
		for _, a := range x.Args() {
			out = append(out, joinLeaves(a)...)
		}
		return out
	default:
		return []algebra.Node{n}
	}
}
