package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
)

// keywordIterator answers a KeywordSearch node with the catalog's keyword
// service.
//
// Bound predicate and type slots restrict the search. Unbound predicate
// variables receive the predicate of the matched literal. Unbound type
// variables are bound from the subject's rdf:type triples in the local
// source, one solution per type.
type keywordIterator struct {
	pattern  algebra.KeywordPattern
	entry    service.Entry
	searcher service.KeywordSearcher
	source   TripleSource
	in       ir.Binding
	env      *invocationEnv

	typeVars  []algebra.Var
	stream    service.RowStream
	started   time.Time
	pending   []ir.Binding
	cur       ir.Binding
	err       error
	done      bool
	closeOnce sync.Once
}

func (it *keywordIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		return it.fail(err)
	}
	if it.stream == nil {
		if err := it.start(ctx); err != nil {
			return it.fail(err)
		}
	}

	for {
		if len(it.pending) > 0 {
			it.cur, it.pending = it.pending[0], it.pending[1:]
			return true
		}
		if !it.stream.Next() {
			break
		}
		it.env.metrics.row(it.entry.Config.ID)
		b, ok := it.bindRow(it.stream.Row())
		if !ok {
			continue
		}
		if len(it.typeVars) == 0 {
			it.cur = b
			return true
		}
		expanded, err := it.expandTypes(ctx, b)
		if err != nil {
			return it.fail(err)
		}
		it.pending = expanded
	}

	if err := it.stream.Err(); err != nil {
		it.env.metrics.failed(it.entry.Config.ID)
		return it.fail(&service.InvocationError{Service: it.entry.Config.ID, Cause: err})
	}
	it.Close()
	return false
}

func (it *keywordIterator) start(ctx context.Context) error {
	q, err := it.query()
	if err != nil {
		return err
	}
	if err := it.env.quota.Acquire(it.env.queryID); err != nil {
		return err
	}

	ref := it.entry.Config.ID
	it.env.logger.Debug("keyword search",
		"service", ref,
		"seq", it.env.clock.Next(),
		"text", q.Text,
	)
	it.env.metrics.invoked(ref)
	it.started = time.Now()

	stream, err := it.searcher.Search(ctx, it.entry.Config, q)
	if err != nil {
		it.env.metrics.failed(ref)
		it.stream = service.EmptyStream()
		return &service.InvocationError{Service: ref, Cause: err}
	}
	it.stream = stream
	return nil
}

// query resolves the pattern's slots against the inbound binding.
func (it *keywordIterator) query() (service.KeywordQuery, error) {
	var q service.KeywordQuery
	p := it.pattern

	value, ok := p.Value.Resolve(it.in)
	if !ok {
		return q, NewUnboundInputError(it.env.queryID, it.entry.Config.ID, []string{"query"})
	}
	q.Text = ir.Lexical(value)

	if t, ok := p.Subject.Resolve(it.in); ok {
		q.Subject = t
	}
	for _, v := range p.Predicates {
		t, ok := v.Resolve(it.in)
		if !ok {
			continue
		}
		iri, isIRI := t.(ir.IRI)
		if !isIRI {
			return q, fmt.Errorf("keyword predicate %s is not an IRI", t)
		}
		q.Predicates = append(q.Predicates, iri)
	}
	for _, v := range p.Types {
		t, ok := v.Resolve(it.in)
		if !ok {
			it.typeVars = append(it.typeVars, v)
			continue
		}
		iri, isIRI := t.(ir.IRI)
		if !isIRI {
			return q, fmt.Errorf("keyword type %s is not an IRI", t)
		}
		q.Types = append(q.Types, iri)
	}
	return q, nil
}

func (it *keywordIterator) bindRow(row service.Row) (ir.Binding, bool) {
	b := it.in.Clone()
	ok := bindSlot(b, it.pattern.Subject, row[service.KeywordSubject]) &&
		bindSlot(b, it.pattern.Score, row[service.KeywordScore]) &&
		bindSlot(b, it.pattern.Snippet, row[service.KeywordSnippet]) &&
		bindSlot(b, it.pattern.Match, row[service.KeywordMatch])
	if !ok {
		return nil, false
	}
	for _, v := range it.pattern.Predicates {
		if v.IsVariable() && !bindSlot(b, &v, row[service.KeywordPredicate]) {
			return nil, false
		}
	}
	return b, true
}

func (it *keywordIterator) expandTypes(ctx context.Context, b ir.Binding) ([]ir.Binding, error) {
	subject, ok := it.pattern.Subject.Resolve(b)
	if !ok {
		return nil, nil
	}
	triples, err := it.source.Match(ctx, subject, ir.RDFType, nil)
	if err != nil {
		return nil, err
	}
	defer triples.Close()

	var out []ir.Binding
	for triples.Next() {
		typed := b.Clone()
		keep := true
		for i := range it.typeVars {
			if !bindSlot(typed, &it.typeVars[i], triples.Triple().Object) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, typed)
		}
	}
	return out, triples.Err()
}

// bindSlot binds v to t in b. A nil slot or a nil term binds nothing. It
// fails when v is a constant or an already bound variable with another
// value.
func bindSlot(b ir.Binding, v *algebra.Var, t ir.Term) bool {
	if v == nil || t == nil {
		return true
	}
	if !v.IsVariable() {
		return v.Value == nil || ir.Equal(v.Value, t)
	}
	if prev, ok := b.Get(v.Name); ok {
		return ir.Equal(prev, t)
	}
	b[v.Name] = t
	return true
}

func (it *keywordIterator) fail(err error) bool {
	it.err = err
	it.Close()
	return false
}

func (it *keywordIterator) Binding() ir.Binding { return it.cur }
func (it *keywordIterator) Err() error          { return it.err }

func (it *keywordIterator) Close() error {
	it.done = true
	it.closeOnce.Do(func() {
		if it.stream != nil {
			it.stream.Close()
			it.env.metrics.released(it.entry.Config.ID, time.Since(it.started))
		}
	})
	return nil
}
