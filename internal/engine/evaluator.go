package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
)

// DefaultParallelism runs delegated joins sequentially.
const DefaultParallelism = 1

// Evaluator runs rewritten expression trees.
//
// Local statement patterns are answered by the TripleSource; Owned and
// KeywordSearch nodes are delegated to services in the Catalog. The
// evaluator holds no per-query state, so one Evaluator serves concurrent
// queries.
type Evaluator struct {
	source         TripleSource
	catalog        *service.Catalog
	logger         *slog.Logger
	metrics        *Metrics
	ids            QueryIDGenerator
	parallelism    int
	maxInvocations int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// WithRegisterer registers the evaluator metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Evaluator) {
		e.metrics = NewMetrics(reg)
	}
}

// WithMetrics shares an existing Metrics between evaluators.
func WithMetrics(m *Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// WithQueryIDs sets the query ID generator. Defaults to UUIDv7Generator.
func WithQueryIDs(g QueryIDGenerator) Option {
	return func(e *Evaluator) {
		e.ids = g
	}
}

// WithParallelism bounds the concurrent invocations of one delegated
// join. Values below 2 keep joins sequential.
func WithParallelism(n int) Option {
	return func(e *Evaluator) {
		e.parallelism = n
	}
}

// WithMaxInvocations bounds the service invocations of one query.
// Zero means unlimited.
func WithMaxInvocations(n int) Option {
	return func(e *Evaluator) {
		e.maxInvocations = n
	}
}

// New creates an Evaluator.
func New(source TripleSource, catalog *service.Catalog, opts ...Option) *Evaluator {
	e := &Evaluator{
		source:      source,
		catalog:     catalog,
		logger:      slog.Default(),
		ids:         UUIDv7Generator{},
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e
}

// Query is one running evaluation. It is an Iterator over the solutions
// of the tree.
type Query struct {
	Iterator
	ID string
}

// Evaluate prepares root for evaluation. Nothing is invoked until the
// first call to Next.
func (e *Evaluator) Evaluate(root *algebra.Root) (*Query, error) {
	id := e.ids.Generate()
	env := &invocationEnv{
		queryID: id,
		logger:  e.logger.With("query", id),
		metrics: e.metrics,
		clock:   NewClock(),
		quota:   NewInvocationQuota(e.maxInvocations),
	}
	r := &run{e: e, env: env, exprs: newExprEval()}
	it, err := r.build(root.Arg(), ir.Binding{})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", id, err)
	}
	e.logger.Debug("query prepared", "query", id, "parallelism", e.parallelism)
	return &Query{Iterator: it, ID: id}, nil
}

// run is the state of one evaluation shared by its iterators.
type run struct {
	e     *Evaluator
	env   *invocationEnv
	exprs *exprEval
}

// build returns the iterator of n under the inbound binding in. Every
// solution it yields extends in.
func (r *run) build(n algebra.Node, in ir.Binding) (Iterator, error) {
	b := &builder{run: r, in: in}
	if err := n.Accept(b); err != nil {
		return nil, err
	}
	return b.it, nil
}

// builder turns one node into its iterator. It does not descend on its
// own: operators build their operands through run.build, lazily where
// the operand depends on a left solution.
type builder struct {
	run *run
	in  ir.Binding
	it  Iterator
}

func (b *builder) VisitRoot(n *algebra.Root) error {
	it, err := b.run.build(n.Arg(), b.in)
	b.it = it
	return err
}

func (b *builder) VisitJoin(n *algebra.Join) error {
	return b.join(n.Left(), n.Right())
}

func (b *builder) VisitNaryJoin(n *algebra.NaryJoin) error {
	args := n.Args()
	if len(args) == 0 {
		b.it = newSliceIterator(b.in)
		return nil
	}
	left, err := b.run.build(args[0], b.in)
	if err != nil {
		return err
	}
	for _, arg := range args[1:] {
		left = b.run.joinWith(left, arg)
	}
	b.it = left
	return nil
}

func (b *builder) join(l, r algebra.Node) error {
	left, err := b.run.build(l, b.in)
	if err != nil {
		return err
	}
	b.it = b.run.joinWith(left, r)
	return nil
}

// joinWith binds every solution of left into right.
func (r *run) joinWith(left Iterator, right algebra.Node) Iterator {
	if owned, ok := parallelizable(right); ok && r.e.parallelism > 1 {
		return newParallelJoin(left, r.e.parallelism, func(ctx context.Context, in ir.Binding) ([]ir.Binding, error) {
			d, err := r.delegate(owned, in)
			if err != nil {
				return nil, err
			}
			return collectDelegated(ctx, d)
		})
	}
	return &bindJoinIterator{
		left:  left,
		right: func(lb ir.Binding) (Iterator, error) { return r.build(right, lb) },
	}
}

func (b *builder) VisitLeftJoin(n *algebra.LeftJoin) error {
	left, err := b.run.build(n.Left(), b.in)
	if err != nil {
		return err
	}
	it := &leftJoinIterator{
		left:  left,
		right: func(lb ir.Binding) (Iterator, error) { return b.run.build(n.Right(), lb) },
	}
	if cond := n.Condition; cond != nil {
		exprs := b.run.exprs
		it.cond = func(sol ir.Binding) bool { return exprs.holds(cond, sol) }
	}
	b.it = it
	return nil
}

func (b *builder) VisitUnion(n *algebra.Union) error {
	in := b.in
	b.it = &concatIterator{build: []func() (Iterator, error){
		func() (Iterator, error) { return b.run.build(n.Left(), in) },
		func() (Iterator, error) { return b.run.build(n.Right(), in) },
	}}
	return nil
}

func (b *builder) VisitStatementPattern(n *algebra.StatementPattern) error {
	if !n.Context.IsZero() {
		return newUnsupportedError("statement pattern in named graph " + n.Context.String())
	}
	b.it = &scanIterator{source: b.run.e.source, slots: n.Slots(), in: b.in}
	return nil
}

func (b *builder) VisitService(n *algebra.Service) error {
	return newUnsupportedError("unresolved SERVICE " + string(n.Ref))
}

func (b *builder) VisitOwned(n *algebra.Owned) error {
	d, err := b.run.delegate(n, b.in)
	if err != nil {
		return err
	}
	b.it = d
	return nil
}

func (r *run) delegate(n *algebra.Owned, in ir.Binding) (*DelegatedEvaluation, error) {
	entry, err := r.e.catalog.Lookup(n.ServiceRef)
	if err != nil {
		return nil, err
	}
	return newDelegatedEvaluation(n, entry, in, r.env), nil
}

func (b *builder) VisitKeywordSearch(n *algebra.KeywordSearch) error {
	if !n.Pattern.Complete() {
		return newUnsupportedError("keyword search without subject or value")
	}
	entry, ok := b.run.e.catalog.Keyword()
	if !ok {
		return &RuntimeError{Code: ErrCodeNoKeywordService, Message: "no keyword service registered"}
	}
	searcher, ok := service.AsKeywordSearcher(entry.Invoker)
	if !ok {
		return &RuntimeError{
			Code:    ErrCodeNoKeywordService,
			Message: "keyword service does not support search",
			Service: entry.Config.ID,
		}
	}
	b.it = &keywordIterator{
		pattern:  n.Pattern,
		entry:    entry,
		searcher: searcher,
		source:   b.run.e.source,
		in:       b.in,
		env:      b.run.env,
	}
	return nil
}

func (b *builder) VisitFilter(n *algebra.Filter) error {
	arg, err := b.run.build(n.Arg(), b.in)
	if err != nil {
		return err
	}
	cond, exprs := n.Condition, b.run.exprs
	b.it = &filterIterator{input: arg, keep: func(sol ir.Binding) bool { return exprs.holds(cond, sol) }}
	return nil
}

func (b *builder) VisitOrderBy(n *algebra.OrderBy) error {
	arg, err := b.run.build(n.Arg(), b.in)
	if err != nil {
		return err
	}
	b.it = &orderIterator{input: arg, elems: n.Elements, exprs: b.run.exprs}
	return nil
}

func (b *builder) VisitProjection(n *algebra.Projection) error {
	arg, err := b.run.build(n.Arg(), b.in)
	if err != nil {
		return err
	}
	b.it = &projectionIterator{input: arg, vars: n.Vars}
	return nil
}

func (b *builder) VisitSlice(n *algebra.Slice) error {
	arg, err := b.run.build(n.Arg(), b.in)
	if err != nil {
		return err
	}
	b.it = &sliceWindowIterator{input: arg, offset: n.Offset, limit: n.Limit}
	return nil
}

func (b *builder) VisitSingletonSet(*algebra.SingletonSet) error {
	b.it = newSliceIterator(b.in)
	return nil
}

func (b *builder) VisitOther(n algebra.Node) error {
	return newUnsupportedError(fmt.Sprintf("node %T", n))
}

// orderIterator materializes its input and sorts it. Keys that fail to
// evaluate sort as unbound.
type orderIterator struct {
	input  Iterator
	elems  []algebra.OrderElem
	exprs  *exprEval
	sorted *sliceIterator
	err    error
}

func (it *orderIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if it.sorted == nil {
		all, err := Collect(ctx, it.input)
		if err != nil {
			it.err = err
			return false
		}
		keys := make([][]ir.Term, len(all))
		for i, sol := range all {
			keys[i] = make([]ir.Term, len(it.elems))
			for j, el := range it.elems {
				if t, err := it.exprs.value(el.Expr, sol); err == nil {
					keys[i][j] = t
				}
			}
		}
		idx := make([]int, len(all))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			for j, el := range it.elems {
				c := ir.CompareTerms(keys[idx[a]][j], keys[idx[b]][j])
				if el.Descending {
					c = -c
				}
				if c != 0 {
					return c < 0
				}
			}
			return false
		})
		out := make([]ir.Binding, len(all))
		for i, k := range idx {
			out[i] = all[k]
		}
		it.sorted = newSliceIterator(out...)
	}
	return it.sorted.Next(ctx)
}

func (it *orderIterator) Binding() ir.Binding { return it.sorted.Binding() }
func (it *orderIterator) Err() error          { return it.err }
func (it *orderIterator) Close() error        { return it.input.Close() }
