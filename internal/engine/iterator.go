package engine

import (
	"context"

	"github.com/roach88/fedq/internal/ir"
)

// Iterator is a pull-based stream of solutions.
//
// Next advances to the next solution and reports whether there is one.
// After Next returns false, Err reports the failure, if any. Close
// releases everything the iterator and its inputs hold; it must be called
// even when iteration stopped early and is safe to call more than once.
type Iterator interface {
	Next(ctx context.Context) bool
	Binding() ir.Binding
	Err() error
	Close() error
}

// Collect drains and closes it.
func Collect(ctx context.Context, it Iterator) ([]ir.Binding, error) {
	defer it.Close()

	var out []ir.Binding
	for it.Next(ctx) {
		out = append(out, it.Binding())
	}
	return out, it.Err()
}

// sliceIterator serves precomputed solutions.
type sliceIterator struct {
	items []ir.Binding
	idx   int
}

func newSliceIterator(items ...ir.Binding) *sliceIterator {
	return &sliceIterator{items: items, idx: -1}
}

func (it *sliceIterator) Next(ctx context.Context) bool {
	if it.idx+1 >= len(it.items) {
		it.idx = len(it.items)
		return false
	}
	it.idx++
	return true
}

func (it *sliceIterator) Binding() ir.Binding { return it.items[it.idx] }
func (it *sliceIterator) Err() error          { return nil }
func (it *sliceIterator) Close() error        { return nil }

// filterIterator keeps the solutions of its input for which keep holds.
type filterIterator struct {
	input Iterator
	keep  func(ir.Binding) bool
}

func (it *filterIterator) Next(ctx context.Context) bool {
	for it.input.Next(ctx) {
		if it.keep(it.input.Binding()) {
			return true
		}
	}
	return false
}

func (it *filterIterator) Binding() ir.Binding { return it.input.Binding() }
func (it *filterIterator) Err() error          { return it.input.Err() }
func (it *filterIterator) Close() error        { return it.input.Close() }

// projectionIterator restricts solutions to a variable list.
type projectionIterator struct {
	input Iterator
	vars  []string
}

func (it *projectionIterator) Next(ctx context.Context) bool { return it.input.Next(ctx) }
func (it *projectionIterator) Binding() ir.Binding           { return it.input.Binding().Project(it.vars) }
func (it *projectionIterator) Err() error                    { return it.input.Err() }
func (it *projectionIterator) Close() error                  { return it.input.Close() }

// sliceWindowIterator skips offset solutions and emits at most limit.
// Reaching the limit closes the input at once, so delegated streams
// below it are released before the consumer finishes.
type sliceWindowIterator struct {
	input   Iterator
	offset  int64
	limit   int64 // negative: unlimited
	skipped int64
	emitted int64
	done    bool
}

func (it *sliceWindowIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	if it.limit >= 0 && it.emitted >= it.limit {
		it.done = true
		it.input.Close()
		return false
	}
	for it.skipped < it.offset {
		if !it.input.Next(ctx) {
			it.done = true
			return false
		}
		it.skipped++
	}
	if !it.input.Next(ctx) {
		it.done = true
		return false
	}
	it.emitted++
	return true
}

func (it *sliceWindowIterator) Binding() ir.Binding { return it.input.Binding() }
func (it *sliceWindowIterator) Err() error          { return it.input.Err() }
func (it *sliceWindowIterator) Close() error        { return it.input.Close() }

// concatIterator runs its inputs one after another. Inputs are built
// lazily so that an unused arm never touches its services.
type concatIterator struct {
	build []func() (Iterator, error)
	cur   Iterator
	err   error
}

func (it *concatIterator) Next(ctx context.Context) bool {
	for {
		if it.err != nil {
			return false
		}
		if it.cur == nil {
			if len(it.build) == 0 {
				return false
			}
			next, err := it.build[0]()
			it.build = it.build[1:]
			if err != nil {
				it.err = err
				return false
			}
			it.cur = next
		}
		if it.cur.Next(ctx) {
			return true
		}
		if err := it.cur.Err(); err != nil {
			it.err = err
		}
		it.cur.Close()
		it.cur = nil
	}
}

func (it *concatIterator) Binding() ir.Binding { return it.cur.Binding() }
func (it *concatIterator) Err() error          { return it.err }

func (it *concatIterator) Close() error {
	it.build = nil
	if it.cur != nil {
		err := it.cur.Close()
		it.cur = nil
		return err
	}
	return nil
}
