package rewrite

import (
	"fmt"
	"maps"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/ir"
)

// Delegate replaces every Service clause with an Owned node carrying the
// resolved descriptor.
//
// The clause's statement patterns are unified with the descriptor's
// patterns to find which query slot feeds each parameter. Inputs the
// query does not mention bind the variable of the same name; outputs it
// does not mention are dropped. A pattern the service does not answer is
// an error.
//
// Nested clauses are delegated first, so an inner SERVICE becomes a nested
// Owned node for the pruning pass to remove.
func Delegate(root *algebra.Root, resolver Resolver) error {
	d := &delegation{resolver: resolver}
	d.Self = d
	return root.Accept(d)
}

type delegation struct {
	algebra.Walker
	resolver Resolver
}

func (d *delegation) VisitService(s *algebra.Service) error {
	if err := d.Descend(s); err != nil {
		return err
	}
	if d.resolver == nil {
		return fmt.Errorf("service %s: no resolver configured", s.Ref)
	}
	desc, err := d.resolver.Resolve(s.Ref)
	if err != nil {
		return fmt.Errorf("service %s: %w", s.Ref, err)
	}

	slots, err := bindSlots(s.Ref, desc, s.Inner())
	if err != nil {
		return fmt.Errorf("service %s: %w", s.Ref, err)
	}

	inner, err := algebra.Take(s.Inner())
	if err != nil {
		return err
	}
	owned := algebra.NewOwned(inner, s.Ref, desc)
	owned.Slots = slots
	owned.Silent = s.Silent
	if _, err := algebra.ReplaceWith(s, owned); err != nil {
		return err
	}
	owned.Optional = inOptionalArm(owned)
	return nil
}

// inOptionalArm reports whether n lies in the right operand of a LeftJoin.
func inOptionalArm(n algebra.Node) bool {
	for child, parent := n, n.Parent(); parent != nil; child, parent = parent, parent.Parent() {
		if lj, ok := parent.(*algebra.LeftJoin); ok && lj.Right() == child {
			return true
		}
	}
	return false
}

// bindSlots maps descriptor parameters to query slots. Patterns under a
// nested Owned node of another service belong to that service and are not
// matched against desc.
func bindSlots(ref ir.IRI, desc *descriptor.Descriptor, inner algebra.Node) (map[string]algebra.Var, error) {
	var patterns []*algebra.StatementPattern
	algebra.Inspect(inner, func(n algebra.Node) bool {
		switch x := n.(type) {
		case *algebra.Owned:
			return x.ServiceRef == ref
		case *algebra.StatementPattern:
			patterns = append(patterns, x)
		}
		return true
	})

	bound := map[string]algebra.Var{}
	for _, qp := range patterns {
		matched := false
		for _, dp := range desc.Patterns() {
			if next, ok := unify(dp, qp, bound); ok {
				bound = next
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("pattern %s %s %s is not answered by the service",
				qp.Subject, qp.Predicate, qp.Object)
		}
	}

	slots := map[string]algebra.Var{}
	for _, p := range desc.Parameters() {
		if v, ok := bound[p.Name]; ok {
			slots[p.Name] = v
		} else if p.Direction == descriptor.Input {
			slots[p.Name] = algebra.Variable(p.Name)
		}
	}
	return slots, nil
}

// unify matches one descriptor pattern against one query pattern under the
// current variable mapping. It returns the extended mapping on success;
// bound is never modified.
func unify(dp descriptor.Pattern, qp *algebra.StatementPattern, bound map[string]algebra.Var) (map[string]algebra.Var, bool) {
	next := maps.Clone(bound)
	pairs := [3]struct {
		d descriptor.Slot
		q algebra.Var
	}{
		{dp.Subject, qp.Subject},
		{dp.Predicate, qp.Predicate},
		{dp.Object, qp.Object},
	}
	for _, pair := range pairs {
		if !pair.d.IsVar() {
			if pair.q.Value == nil || !ir.Equal(pair.q.Value, pair.d.Term) {
				return nil, false
			}
			continue
		}
		if prev, ok := next[pair.d.Var]; ok {
			if prev != pair.q {
				return nil, false
			}
			continue
		}
		next[pair.d.Var] = pair.q
	}
	return next, true
}
