package engine

import (
	"context"

	"github.com/roach88/fedq/internal/ir"
)

// rightFunc builds the right operand of a bind join for one left solution.
// The iterator it returns yields extensions of that solution.
type rightFunc func(left ir.Binding) (Iterator, error)

// bindJoinIterator is a nested-loop join that passes every left solution
// into the right operand. Delegated nodes on the right therefore see the
// variables bound on the left as service inputs.
type bindJoinIterator struct {
	left  Iterator
	right rightFunc
	cur   Iterator
	err   error
}

func (it *bindJoinIterator) Next(ctx context.Context) bool {
	for it.err == nil {
		if it.cur != nil {
			if it.cur.Next(ctx) {
				return true
			}
			it.err = it.cur.Err()
			it.cur.Close()
			it.cur = nil
			continue
		}
		if !it.left.Next(ctx) {
			it.err = it.left.Err()
			return false
		}
		it.cur, it.err = it.right(it.left.Binding())
	}
	return false
}

func (it *bindJoinIterator) Binding() ir.Binding { return it.cur.Binding() }
func (it *bindJoinIterator) Err() error          { return it.err }

func (it *bindJoinIterator) Close() error {
	var err error
	if it.cur != nil {
		err = it.cur.Close()
		it.cur = nil
	}
	if lerr := it.left.Close(); err == nil {
		err = lerr
	}
	return err
}

// leftJoinIterator keeps every left solution. Right solutions that pass
// the condition replace it; when none does the left solution is emitted
// unextended.
type leftJoinIterator struct {
	left    Iterator
	right   rightFunc
	cond    func(ir.Binding) bool
	lb      ir.Binding
	cur     Iterator
	matched bool
	out     ir.Binding
	err     error
}

func (it *leftJoinIterator) Next(ctx context.Context) bool {
	for it.err == nil {
		if it.cur != nil {
			for it.cur.Next(ctx) {
				b := it.cur.Binding()
				if it.cond == nil || it.cond(b) {
					it.matched = true
					it.out = b
					return true
				}
			}
			if it.err = it.cur.Err(); it.err != nil {
				return false
			}
			it.cur.Close()
			it.cur = nil
			if !it.matched {
				it.out = it.lb
				return true
			}
			continue
		}
		if !it.left.Next(ctx) {
			it.err = it.left.Err()
			return false
		}
		it.lb = it.left.Binding()
		it.matched = false
		it.cur, it.err = it.right(it.lb)
	}
	return false
}

func (it *leftJoinIterator) Binding() ir.Binding { return it.out }
func (it *leftJoinIterator) Err() error          { return it.err }

func (it *leftJoinIterator) Close() error {
	var err error
	if it.cur != nil {
		err = it.cur.Close()
		it.cur = nil
	}
	if lerr := it.left.Close(); err == nil {
		err = lerr
	}
	return err
}
