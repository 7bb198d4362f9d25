package rewrite

import (
	"cmp"
	"slices"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
)

// UnboundVar is a variable read before anything in the tree can bind it.
// Service and Parameter are set for service inputs and empty for filters.
type UnboundVar struct {
	Service   ir.IRI
	Parameter string
	Variable  string
}

// CheckBindings lists the required service inputs and filter variables
// that no operand evaluated earlier can bind. A listed service input makes
// evaluation fail with UNBOUND_REQUIRED_INPUT once the service is reached;
// a listed filter variable is always unbound.
//
// The check does not change the tree. Owned subtrees are evaluated by
// their service and are not entered.
func CheckBindings(root *algebra.Root) []UnboundVar {
	var out []UnboundVar
	algebra.Inspect(root, func(n algebra.Node) bool {
		switch x := n.(type) {
		case *algebra.Owned:
			out = append(out, unboundInputs(x)...)
			return false
		case *algebra.Filter:
			out = append(out, unboundFilterVars(x)...)
		}
		return true
	})
	return out
}

func unboundInputs(o *algebra.Owned) []UnboundVar {
	if o.Descriptor == nil {
		return nil
	}
	scope := inScope(o)
	var out []UnboundVar
	for name, p := range o.Descriptor.InputParameters() {
		v, ok := o.Slot(name)
		if p.Optional || !ok || !v.IsVariable() || scope[v.Name] {
			continue
		}
		out = append(out, UnboundVar{Service: o.ServiceRef, Parameter: name, Variable: v.Name})
	}
	slices.SortFunc(out, func(a, b UnboundVar) int { return cmp.Compare(a.Parameter, b.Parameter) })
	return out
}

func unboundFilterVars(f *algebra.Filter) []UnboundVar {
	scope := inScope(f)
	for _, name := range algebra.BindingNames(f.Arg()) {
		scope[name] = true
	}
	var out []UnboundVar
	for _, name := range algebra.ExprVars(f.Condition) {
		if !scope[name] {
			out = append(out, UnboundVar{Variable: name})
		}
	}
	return out
}

// inScope returns the variables bound by the operands evaluated before n:
// the left side of every join whose right side holds n, and the earlier
// arguments of every n-ary join.
func inScope(n algebra.Node) map[string]bool {
	names := map[string]bool{}
	add := func(sub algebra.Node) {
		for _, name := range algebra.BindingNames(sub) {
			names[name] = true
		}
	}
	for child, parent := n, n.Parent(); parent != nil; child, parent = parent, parent.Parent() {
		switch p := parent.(type) {
		case *algebra.Join:
			if p.Right() == child {
				add(p.Left())
			}
		case *algebra.LeftJoin:
			if p.Right() == child {
				add(p.Left())
			}
		case *algebra.NaryJoin:
			for _, arg := range p.Args() {
				if arg == child {
					break
				}
				add(arg)
			}
		}
	}
	return names
}
