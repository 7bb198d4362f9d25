package engine

import (
	"context"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/store"
)

// TripleIterator walks the triples matched by a TripleSource.
type TripleIterator interface {
	Next() bool
	Triple() ir.Triple
	Err() error
	Close() error
}

// TripleSource answers statement patterns evaluated locally. A nil term
// matches anything.
type TripleSource interface {
	Match(ctx context.Context, subj, pred, obj ir.Term) (TripleIterator, error)
}

type storeSource struct {
	st *store.Store
}

// StoreSource serves statement patterns from the SQLite triple store.
func StoreSource(st *store.Store) TripleSource {
	return storeSource{st: st}
}

func (s storeSource) Match(ctx context.Context, subj, pred, obj ir.Term) (TripleIterator, error) {
	it, err := s.st.Match(ctx, subj, pred, obj)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// GraphSource serves statement patterns from an in-memory graph.
type GraphSource ir.Graph

func (g GraphSource) Match(_ context.Context, subj, pred, obj ir.Term) (TripleIterator, error) {
	var out []ir.Triple
	for _, t := range g {
		if matchTerm(subj, t.Subject) && matchTerm(pred, t.Predicate) && matchTerm(obj, t.Object) {
			out = append(out, t)
		}
	}
	return &graphIter{triples: out}, nil
}

func matchTerm(want, got ir.Term) bool {
	return want == nil || ir.Equal(want, got)
}

type graphIter struct {
	triples []ir.Triple
	idx     int
}

func (it *graphIter) Next() bool {
	if it.idx >= len(it.triples) {
		return false
	}
	it.idx++
	return true
}

func (it *graphIter) Triple() ir.Triple { return it.triples[it.idx-1] }
func (it *graphIter) Err() error        { return nil }
func (it *graphIter) Close() error      { return nil }

// scanIterator evaluates a statement pattern under one inbound binding.
// Slots already bound are pushed into the Match call; the rest are bound
// from each triple.
type scanIterator struct {
	source  TripleSource
	slots   [3]algebra.Var
	in      ir.Binding
	triples TripleIterator
	cur     ir.Binding
	err     error
	done    bool
}

func (it *scanIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.fail(err)
		return false
	}
	if it.triples == nil {
		var terms [3]ir.Term
		for i, slot := range it.slots {
			if t, ok := slot.Resolve(it.in); ok {
				terms[i] = t
			}
		}
		triples, err := it.source.Match(ctx, terms[0], terms[1], terms[2])
		if err != nil {
			it.fail(err)
			return false
		}
		it.triples = triples
	}

	for it.triples.Next() {
		if b, ok := bindTriple(it.in, it.slots, it.triples.Triple()); ok {
			it.cur = b
			return true
		}
	}
	if err := it.triples.Err(); err != nil {
		it.fail(err)
		return false
	}
	it.Close()
	return false
}

func (it *scanIterator) fail(err error) {
	it.err = err
	it.Close()
}

func (it *scanIterator) Binding() ir.Binding { return it.cur }
func (it *scanIterator) Err() error          { return it.err }

func (it *scanIterator) Close() error {
	it.done = true
	if it.triples != nil {
		err := it.triples.Close()
		it.triples = nil
		return err
	}
	return nil
}

// bindTriple extends in with the variables of slots. It fails when a
// variable repeated across slots would take two different values.
func bindTriple(in ir.Binding, slots [3]algebra.Var, t ir.Triple) (ir.Binding, bool) {
	out := in.Clone()
	for i, term := range [3]ir.Term{t.Subject, t.Predicate, t.Object} {
		v := slots[i]
		if !v.IsVariable() {
			continue
		}
		if prev, ok := out[v.Name]; ok {
			if !ir.Equal(prev, term) {
				return nil, false
			}
			continue
		}
		out[v.Name] = term
	}
	return out, true
}
