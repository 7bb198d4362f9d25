package algebra

import (
	"fmt"

	"github.com/roach88/fedq/internal/ir"
)

// Node is one operator or leaf of the expression tree.
//
// The unexported setParent method restricts implementations to this
// package and to types embedding Base.
type Node interface {
	// Accept dispatches to the visitor method for the node's kind.
	Accept(v Visitor) error

	// Parent returns the owning node, or nil for a detached node or Root.
	Parent() Node

	// Children returns the node's children in evaluation order. The
	// returned slice is a snapshot; modifying it does not change the tree.
	Children() []Node

	// ReplaceChild swaps old for replacement in the node's child slots and
	// reports whether old was found. It does not maintain parent links;
	// use ReplaceWith.
	ReplaceChild(old, replacement Node) bool

	// Clone returns a parentless deep copy of the subtree.
	Clone() Node

	setParent(p Node)
}

// Base carries the parent link. Every node kind embeds it.
type Base struct {
	parent Node
}

// Parent implements Node.
func (b *Base) Parent() Node { return b.parent }

func (b *Base) setParent(p Node) { b.parent = p }

// adopt makes child a child of parent.
// Panics when child is nil or already owned: a node in two places would
// break every pass that relies on ReplaceWith.
func adopt(parent, child Node) Node {
	if child == nil {
		panic(fmt.Sprintf("algebra: nil child for %T", parent))
	}
	if child.Parent() != nil {
		panic(fmt.Sprintf("algebra: %T is already owned by %T", child, child.Parent()))
	}
	child.setParent(parent)
	return child
}

// Var is a variable-or-constant slot. A slot with a Value is a constant;
// otherwise it is the variable Name. Two variable slots with the same name
// denote the same binding.
type Var struct {
	Name  string
	Value ir.Term
}

// Variable creates a variable slot.
func Variable(name string) Var { return Var{Name: name} }

// Constant creates a constant slot.
func Constant(t ir.Term) Var { return Var{Value: t} }

// IsVariable reports whether the slot is an unresolved variable.
func (v Var) IsVariable() bool { return v.Value == nil && v.Name != "" }

// IsZero reports whether the slot is unset.
func (v Var) IsZero() bool { return v.Value == nil && v.Name == "" }

// Resolve returns the slot's term under b: the constant itself, or the
// variable's binding.
func (v Var) Resolve(b ir.Binding) (ir.Term, bool) {
	if v.Value != nil {
		return v.Value, true
	}
	return b.Get(v.Name)
}

func (v Var) String() string {
	switch {
	case v.Value != nil:
		return v.Value.String()
	case v.Name != "":
		return "?" + v.Name
	default:
		return "UNDEF"
	}
}
