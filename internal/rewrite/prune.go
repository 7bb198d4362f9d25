package rewrite

import (
	"github.com/roach88/fedq/internal/algebra"
)

// PruneOwnership removes redundant Owned wrappers so that every
// root-to-leaf path holds at most one.
//
// The pass is a depth-first state machine: outside any owner, an Owned
// node becomes the active owner while its subtree is visited. An Owned
// node met inside an active owner is replaced by a clone of its inner
// expression, and the pass continues over that replacement.
func PruneOwnership(root *algebra.Root) error {
	p := &pruner{}
	p.Self = p
	return root.Accept(p)
}

type pruner struct {
	algebra.Walker
	owner *algebra.Owned
}

func (p *pruner) VisitOwned(o *algebra.Owned) error {
	if p.owner == nil {
		p.owner = o
		err := p.Descend(o)
		p.owner = nil
		return err
	}

	replacement := o.Inner().Clone()
	if _, err := algebra.ReplaceWith(o, replacement); err != nil {
		return err
	}
	return replacement.Accept(p)
}
