package algebra

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyOwned is returned when the replacement node already has a
	// parent.
	ErrAlreadyOwned = errors.New("algebra: replacement is already owned")

	// ErrDetached is returned when the node to replace has no parent.
	ErrDetached = errors.New("algebra: node has no parent")

	// ErrNotChild is returned when a parent link is stale.
	ErrNotChild = errors.New("algebra: parent does not hold node")
)

// ReplaceWith puts replacement into the exact position old occupies and
// returns old, now parentless. The caller owns the returned node.
//
// Replacement does not revisit: a pass that needs to process replacement
// must visit it explicitly.
func ReplaceWith(old, replacement Node) (Node, error) {
	if old == replacement {
		return old, nil
	}
	if replacement.Parent() != nil {
		return nil, fmt.Errorf("replace %T with %T: %w", old, replacement, ErrAlreadyOwned)
	}
	parent := old.Parent()
	if parent == nil {
		return nil, fmt.Errorf("replace %T: %w", old, ErrDetached)
	}
	if !parent.ReplaceChild(old, replacement) {
		return nil, fmt.Errorf("replace %T under %T: %w", old, parent, ErrNotChild)
	}
	old.setParent(nil)
	replacement.setParent(parent)
	return old, nil
}

// Take removes n from its parent, leaving a SingletonSet in its place, and
// returns n parentless. Passes use it to move a subtree under a new
// parent when the old parent is about to be discarded.
func Take(n Node) (Node, error) {
	return ReplaceWith(n, NewSingletonSet())
}
