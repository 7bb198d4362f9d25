package algebra

import (
	"maps"
	"slices"

	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/ir"
)

// replaceSlot swaps *slot for replacement when it currently holds old.
func replaceSlot(slot *Node, old, replacement Node) bool {
	if *slot != old {
		return false
	}
	*slot = replacement
	return true
}

// Root owns the top-level operator of a tree.
type Root struct {
	Base
	arg Node
}

// NewRoot wraps arg as the root of a tree.
func NewRoot(arg Node) *Root {
	r := &Root{}
	r.arg = adopt(r, arg)
	return r
}

// Arg returns the top-level operator.
func (r *Root) Arg() Node                     { return r.arg }
func (r *Root) Accept(v Visitor) error        { return v.VisitRoot(r) }
func (r *Root) Children() []Node              { return []Node{r.arg} }
func (r *Root) ReplaceChild(old, n Node) bool { return replaceSlot(&r.arg, old, n) }
func (r *Root) Clone() Node                   { return r.CloneRoot() }
func (r *Root) CloneRoot() *Root              { return NewRoot(r.arg.Clone()) }

// Join is an inner join of two operands.
type Join struct {
	Base
	left, right Node
}

// NewJoin creates an inner join.
func NewJoin(left, right Node) *Join {
	j := &Join{}
	j.left = adopt(j, left)
	j.right = adopt(j, right)
	return j
}

func (j *Join) Left() Node             { return j.left }
func (j *Join) Right() Node            { return j.right }
func (j *Join) Accept(v Visitor) error { return v.VisitJoin(j) }
func (j *Join) Children() []Node       { return []Node{j.left, j.right} }
func (j *Join) ReplaceChild(old, n Node) bool {
	return replaceSlot(&j.left, old, n) || replaceSlot(&j.right, old, n)
}
func (j *Join) Clone() Node { return NewJoin(j.left.Clone(), j.right.Clone()) }

// LeftJoin keeps every left solution, extended by compatible right
// solutions satisfying Condition when there are any.
type LeftJoin struct {
	Base
	left, right Node

	// Condition is nil for an unconditional optional join.
	Condition Expr
}

// NewLeftJoin creates an optional join.
func NewLeftJoin(left, right Node, cond Expr) *LeftJoin {
	j := &LeftJoin{Condition: cond}
	j.left = adopt(j, left)
	j.right = adopt(j, right)
	return j
}

func (j *LeftJoin) Left() Node             { return j.left }
func (j *LeftJoin) Right() Node            { return j.right }
func (j *LeftJoin) Accept(v Visitor) error { return v.VisitLeftJoin(j) }
func (j *LeftJoin) Children() []Node       { return []Node{j.left, j.right} }
func (j *LeftJoin) ReplaceChild(old, n Node) bool {
	return replaceSlot(&j.left, old, n) || replaceSlot(&j.right, old, n)
}
func (j *LeftJoin) Clone() Node {
	return NewLeftJoin(j.left.Clone(), j.right.Clone(), j.Condition)
}

// Union concatenates the solutions of both operands.
type Union struct {
	Base
	left, right Node
}

// NewUnion creates a union.
func NewUnion(left, right Node) *Union {
	u := &Union{}
	u.left = adopt(u, left)
	u.right = adopt(u, right)
	return u
}

func (u *Union) Left() Node             { return u.left }
func (u *Union) Right() Node            { return u.right }
func (u *Union) Accept(v Visitor) error { return v.VisitUnion(u) }
func (u *Union) Children() []Node       { return []Node{u.left, u.right} }
func (u *Union) ReplaceChild(old, n Node) bool {
	return replaceSlot(&u.left, old, n) || replaceSlot(&u.right, old, n)
}
func (u *Union) Clone() Node { return NewUnion(u.left.Clone(), u.right.Clone()) }

// NaryJoin is an associative inner join of more than two operands.
type NaryJoin struct {
	Base
	args []Node
}

// NewNaryJoin creates an n-ary join over args in order.
func NewNaryJoin(args ...Node) *NaryJoin {
	j := &NaryJoin{args: make([]Node, len(args))}
	for i, a := range args {
		j.args[i] = adopt(j, a)
	}
	return j
}

// Args returns the operands in order.
func (j *NaryJoin) Args() []Node           { return slices.Clone(j.args) }
func (j *NaryJoin) Len() int               { return len(j.args) }
func (j *NaryJoin) Accept(v Visitor) error { return v.VisitNaryJoin(j) }
func (j *NaryJoin) Children() []Node       { return slices.Clone(j.args) }
func (j *NaryJoin) ReplaceChild(old, n Node) bool {
	for i := range j.args {
		if replaceSlot(&j.args[i], old, n) {
			return true
		}
	}
	return false
}
func (j *NaryJoin) Clone() Node {
	args := make([]Node, len(j.args))
	for i, a := range j.args {
		args[i] = a.Clone()
	}
	return NewNaryJoin(args...)
}

// StatementPattern matches triples against three slots, optionally within
// a named graph.
type StatementPattern struct {
	Base
	Subject   Var
	Predicate Var
	Object    Var

	// Context is the zero Var for the default graph.
	Context Var
}

// NewStatementPattern creates a triple pattern in the default graph.
func NewStatementPattern(s, p, o Var) *StatementPattern {
	return &StatementPattern{Subject: s, Predicate: p, Object: o}
}

func (sp *StatementPattern) Accept(v Visitor) error      { return v.VisitStatementPattern(sp) }
func (sp *StatementPattern) Children() []Node            { return nil }
func (sp *StatementPattern) ReplaceChild(_, _ Node) bool { return false }
func (sp *StatementPattern) Clone() Node {
	return &StatementPattern{Subject: sp.Subject, Predicate: sp.Predicate, Object: sp.Object, Context: sp.Context}
}

// Slots returns subject, predicate and object in order.
func (sp *StatementPattern) Slots() [3]Var {
	return [3]Var{sp.Subject, sp.Predicate, sp.Object}
}

// Service is a SERVICE clause as produced by the parser, before the
// delegation pass resolves it.
type Service struct {
	Base
	inner Node

	Ref    ir.IRI
	Silent bool
}

// NewService creates an unresolved SERVICE clause.
func NewService(ref ir.IRI, inner Node, silent bool) *Service {
	s := &Service{Ref: ref, Silent: silent}
	s.inner = adopt(s, inner)
	return s
}

func (s *Service) Inner() Node                   { return s.inner }
func (s *Service) Accept(v Visitor) error        { return v.VisitService(s) }
func (s *Service) Children() []Node              { return []Node{s.inner} }
func (s *Service) ReplaceChild(old, n Node) bool { return replaceSlot(&s.inner, old, n) }
func (s *Service) Clone() Node                   { return NewService(s.Ref, s.inner.Clone(), s.Silent) }

// Owned marks a sub-expression delegated to an external service.
//
// The inner expression documents what the service answers; the evaluator
// never evaluates it locally. Slots maps parameter names to the query
// slots supplying inputs and receiving outputs. A parameter with no slot
// binds the variable of the same name when Slots is nil, and is ignored
// otherwise.
type Owned struct {
	Base
	inner Node

	ServiceRef ir.IRI
	Descriptor *descriptor.Descriptor
	Slots      map[string]Var

	// Silent substitutes an empty result for a failed invocation.
	Silent bool

	// Optional is set when the node lies in the optional arm of a
	// LeftJoin; a failed invocation then also yields an empty result.
	Optional bool
}

// NewOwned wraps inner as delegated to the service ref.
func NewOwned(inner Node, ref ir.IRI, d *descriptor.Descriptor) *Owned {
	o := &Owned{ServiceRef: ref, Descriptor: d}
	o.inner = adopt(o, inner)
	return o
}

func (o *Owned) Inner() Node                   { return o.inner }
func (o *Owned) Accept(v Visitor) error        { return v.VisitOwned(o) }
func (o *Owned) Children() []Node              { return []Node{o.inner} }
func (o *Owned) ReplaceChild(old, n Node) bool { return replaceSlot(&o.inner, old, n) }
func (o *Owned) Clone() Node {
	c := NewOwned(o.inner.Clone(), o.ServiceRef, o.Descriptor)
	if o.Slots != nil {
		c.Slots = maps.Clone(o.Slots)
	}
	c.Silent = o.Silent
	c.Optional = o.Optional
	return c
}

// Slot returns the query slot for a parameter.
func (o *Owned) Slot(param string) (Var, bool) {
	if o.Slots == nil {
		return Variable(param), true
	}
	v, ok := o.Slots[param]
	return v, ok
}

// KeywordSearch is a recognised full-text search clause.
type KeywordSearch struct {
	Base
	Pattern KeywordPattern
}

// NewKeywordSearch creates a keyword search leaf.
func NewKeywordSearch(p KeywordPattern) *KeywordSearch {
	return &KeywordSearch{Pattern: p}
}

func (k *KeywordSearch) Accept(v Visitor) error      { return v.VisitKeywordSearch(k) }
func (k *KeywordSearch) Children() []Node            { return nil }
func (k *KeywordSearch) ReplaceChild(_, _ Node) bool { return false }
func (k *KeywordSearch) Clone() Node                 { return NewKeywordSearch(k.Pattern.Clone()) }

// Filter keeps the solutions of its argument for which Condition holds.
type Filter struct {
	Base
	arg       Node
	Condition Expr
}

// NewFilter creates a filter.
func NewFilter(cond Expr, arg Node) *Filter {
	f := &Filter{Condition: cond}
	f.arg = adopt(f, arg)
	return f
}

func (f *Filter) Arg() Node                     { return f.arg }
func (f *Filter) Accept(v Visitor) error        { return v.VisitFilter(f) }
func (f *Filter) Children() []Node              { return []Node{f.arg} }
func (f *Filter) ReplaceChild(old, n Node) bool { return replaceSlot(&f.arg, old, n) }
func (f *Filter) Clone() Node                   { return NewFilter(f.Condition, f.arg.Clone()) }

// OrderElem is one ORDER BY key.
type OrderElem struct {
	Expr       Expr
	Descending bool
}

// OrderBy sorts the solutions of its argument.
type OrderBy struct {
	Base
	arg      Node
	Elements []OrderElem
}

// NewOrderBy creates an ordering operator.
func NewOrderBy(elems []OrderElem, arg Node) *OrderBy {
	o := &OrderBy{Elements: slices.Clone(elems)}
	o.arg = adopt(o, arg)
	return o
}

func (o *OrderBy) Arg() Node                     { return o.arg }
func (o *OrderBy) Accept(v Visitor) error        { return v.VisitOrderBy(o) }
func (o *OrderBy) Children() []Node              { return []Node{o.arg} }
func (o *OrderBy) ReplaceChild(old, n Node) bool { return replaceSlot(&o.arg, old, n) }
func (o *OrderBy) Clone() Node                   { return NewOrderBy(o.Elements, o.arg.Clone()) }

// Projection restricts solutions to Vars.
type Projection struct {
	Base
	arg  Node
	Vars []string
}

// NewProjection creates a projection.
func NewProjection(vars []string, arg Node) *Projection {
	p := &Projection{Vars: slices.Clone(vars)}
	p.arg = adopt(p, arg)
	return p
}

func (p *Projection) Arg() Node                     { return p.arg }
func (p *Projection) Accept(v Visitor) error        { return v.VisitProjection(p) }
func (p *Projection) Children() []Node              { return []Node{p.arg} }
func (p *Projection) ReplaceChild(old, n Node) bool { return replaceSlot(&p.arg, old, n) }
func (p *Projection) Clone() Node                   { return NewProjection(p.Vars, p.arg.Clone()) }

// NoLimit disables the limit of a Slice.
const NoLimit int64 = -1

// Slice skips Offset solutions and emits at most Limit.
type Slice struct {
	Base
	arg    Node
	Offset int64
	Limit  int64
}

// NewSlice creates an OFFSET/LIMIT operator. Use NoLimit for no limit.
func NewSlice(offset, limit int64, arg Node) *Slice {
	s := &Slice{Offset: offset, Limit: limit}
	s.arg = adopt(s, arg)
	return s
}

func (s *Slice) Arg() Node                     { return s.arg }
func (s *Slice) Accept(v Visitor) error        { return v.VisitSlice(s) }
func (s *Slice) Children() []Node              { return []Node{s.arg} }
func (s *Slice) ReplaceChild(old, n Node) bool { return replaceSlot(&s.arg, old, n) }
func (s *Slice) Clone() Node                   { return NewSlice(s.Offset, s.Limit, s.arg.Clone()) }

// SingletonSet yields exactly one empty solution.
type SingletonSet struct {
	Base
}

// NewSingletonSet creates the unit of join.
func NewSingletonSet() *SingletonSet { return &SingletonSet{} }

func (s *SingletonSet) Accept(v Visitor) error      { return v.VisitSingletonSet(s) }
func (s *SingletonSet) Children() []Node            { return nil }
func (s *SingletonSet) ReplaceChild(_, _ Node) bool { return false }
func (s *SingletonSet) Clone() Node                 { return NewSingletonSet() }
