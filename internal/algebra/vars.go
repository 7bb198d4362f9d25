package algebra

import "slices"

// BindingNames returns the variables the subtree may bind, sorted.
//
// Owned nodes contribute the query variables of their output parameters;
// inputs are supplied from outside and are not counted. Projection limits
// the set to its variables.
func BindingNames(n Node) []string {
	set := map[string]bool{}
	collectNames(n, set)
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func collectNames(n Node, set map[string]bool) {
	addVar := func(v Var) {
		if v.IsVariable() {
			set[v.Name] = true
		}
	}

	switch x := n.(type) {
	case *StatementPattern:
		addVar(x.Subject)
		addVar(x.Predicate)
		addVar(x.Object)
		addVar(x.Context)
	case *KeywordSearch:
		for _, v := range []*Var{x.Pattern.Subject, x.Pattern.Score, x.Pattern.Snippet, x.Pattern.Match} {
			if v != nil {
				addVar(*v)
			}
		}
		for _, v := range x.Pattern.Predicates {
			addVar(v)
		}
		for _, v := range x.Pattern.Types {
			addVar(v)
		}
	case *Owned:
		if x.Descriptor == nil {
			collectNames(x.inner, set)
			return
		}
		for name := range x.Descriptor.OutputParameters() {
			if v, ok := x.Slot(name); ok {
				addVar(v)
			}
		}
	case *Projection:
		inner := map[string]bool{}
		collectNames(x.arg, inner)
		for _, v := range x.Vars {
			if inner[v] {
				set[v] = true
			}
		}
	default:
		for _, c := range n.Children() {
			collectNames(c, set)
		}
	}
}
