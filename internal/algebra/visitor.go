package algebra

// Visitor receives one call per node kind. Kinds defined outside this
// package are delivered to VisitOther.
//
// A visitor method decides whether to descend: Walker's methods visit the
// children, so embedding Walker and overriding a few methods yields a
// pre-order pass over the whole tree.
type Visitor interface {
	VisitRoot(*Root) error
	VisitJoin(*Join) error
	VisitLeftJoin(*LeftJoin) error
	VisitUnion(*Union) error
	VisitNaryJoin(*NaryJoin) error
	VisitStatementPattern(*StatementPattern) error
	VisitService(*Service) error
	VisitOwned(*Owned) error
	VisitKeywordSearch(*KeywordSearch) error
	VisitFilter(*Filter) error
	VisitOrderBy(*OrderBy) error
	VisitProjection(*Projection) error
	VisitSlice(*Slice) error
	VisitSingletonSet(*SingletonSet) error
	VisitOther(Node) error
}

// Walker is the generic pre-order traversal. Passes embed it and set Self
// to the outer visitor so that descent dispatches back to their overrides:
//
//	type pass struct{ algebra.Walker }
//	p := &pass{}
//	p.Self = p
type Walker struct {
	Self Visitor
}

func (w *Walker) self() Visitor {
	if w.Self != nil {
		return w.Self
	}
	return w
}

// Descend visits the children of n with the walker's outer visitor.
func (w *Walker) Descend(n Node) error { return VisitChildren(n, w.self()) }

func (w *Walker) VisitRoot(n *Root) error                         { return w.Descend(n) }
func (w *Walker) VisitJoin(n *Join) error                         { return w.Descend(n) }
func (w *Walker) VisitLeftJoin(n *LeftJoin) error                 { return w.Descend(n) }
func (w *Walker) VisitUnion(n *Union) error                       { return w.Descend(n) }
func (w *Walker) VisitNaryJoin(n *NaryJoin) error                 { return w.Descend(n) }
func (w *Walker) VisitStatementPattern(n *StatementPattern) error { return nil }
func (w *Walker) VisitService(n *Service) error                   { return w.Descend(n) }
func (w *Walker) VisitOwned(n *Owned) error                       { return w.Descend(n) }
func (w *Walker) VisitKeywordSearch(n *KeywordSearch) error       { return nil }
func (w *Walker) VisitFilter(n *Filter) error                     { return w.Descend(n) }
func (w *Walker) VisitOrderBy(n *OrderBy) error                   { return w.Descend(n) }
func (w *Walker) VisitProjection(n *Projection) error             { return w.Descend(n) }
func (w *Walker) VisitSlice(n *Slice) error                       { return w.Descend(n) }
func (w *Walker) VisitSingletonSet(n *SingletonSet) error         { return nil }
func (w *Walker) VisitOther(n Node) error                         { return w.Descend(n) }

// VisitChildren dispatches v to each child of n in order.
//
// The child list is snapshotted first: a child replaced while it is being
// visited is not revisited, and the remaining siblings are still reached.
func VisitChildren(n Node, v Visitor) error {
	for _, c := range n.Children() {
		if err := c.Accept(v); err != nil {
			return err
		}
	}
	return nil
}

// WalkPostOrder calls fn for every node of the subtree, children before
// their parent.
func WalkPostOrder(n Node, fn func(Node) error) error {
	for _, c := range n.Children() {
		if err := WalkPostOrder(c, fn); err != nil {
			return err
		}
	}
	return fn(n)
}

// Inspect calls fn for every node in pre-order. When fn returns false the
// node's children are skipped.
func Inspect(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Inspect(c, fn)
	}
}
