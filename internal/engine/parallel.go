package engine

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
)

// joinSlot holds the complete answer of the delegated node for one left
// solution.
type joinSlot struct {
	done chan struct{}
	rows []ir.Binding
	err  error
}

// parallelJoinIterator is a bind join whose right side is a delegated
// node. Up to limit invocations run at once, one per left solution.
//
// A solution's rows are only emitted once its invocation has finished,
// and solutions surface in left order. Close cancels every worker and
// waits for them, so no invocation outlives the iterator.
type parallelJoinIterator struct {
	left   Iterator
	invoke func(ctx context.Context, in ir.Binding) ([]ir.Binding, error)
	limit  int

	started  bool
	cancel   context.CancelFunc
	group    *errgroup.Group
	slots    chan *joinSlot
	produced chan struct{}

	cur       []ir.Binding
	idx       int
	out       ir.Binding
	err       error
	closeOnce sync.Once
}

func newParallelJoin(left Iterator, limit int, invoke func(context.Context, ir.Binding) ([]ir.Binding, error)) *parallelJoinIterator {
	return &parallelJoinIterator{left: left, invoke: invoke, limit: limit}
}

func (it *parallelJoinIterator) start(ctx context.Context) {
	it.started = true
	ctx, it.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(it.limit)
	it.group = g

	// The window keeps at most limit finished answers waiting for the
	// consumer on top of the running workers.
	it.slots = make(chan *joinSlot, it.limit)
	it.produced = make(chan struct{})

	go it.produce(gctx)
}

// produce reads the left side and schedules one worker per solution. It
// owns the left iterator.
func (it *parallelJoinIterator) produce(ctx context.Context) {
	defer close(it.produced)
	defer close(it.slots)

	for it.left.Next(ctx) {
		in := it.left.Binding()
		s := &joinSlot{done: make(chan struct{})}
		select {
		case it.slots <- s:
		case <-ctx.Done():
			return
		}
		it.group.Go(func() error {
			defer close(s.done)
			s.rows, s.err = it.invoke(ctx, in)
			return s.err
		})
	}
	if err := it.left.Err(); err != nil {
		s := &joinSlot{done: make(chan struct{}), err: err}
		close(s.done)
		select {
		case it.slots <- s:
		case <-ctx.Done():
		}
	}
}

func (it *parallelJoinIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if !it.started {
		it.start(ctx)
	}
	for {
		if it.idx < len(it.cur) {
			it.out = it.cur[it.idx]
			it.idx++
			return true
		}

		var s *joinSlot
		var ok bool
		select {
		case s, ok = <-it.slots:
		case <-ctx.Done():
			it.abort(ctx.Err())
			return false
		}
		if !ok {
			if err := ctx.Err(); err != nil {
				it.abort(err)
				return false
			}
			it.Close()
			return false
		}
		select {
		case <-s.done:
		case <-ctx.Done():
			it.abort(ctx.Err())
			return false
		}
		if s.err != nil {
			it.abort(s.err)
			return false
		}
		it.cur, it.idx = s.rows, 0
	}
}

// abort stops the workers and keeps the root cause: a worker that failed
// first cancels its siblings, whose errors are then only cancellations.
func (it *parallelJoinIterator) abort(err error) {
	werr := it.shutdown()
	if werr != nil && (errors.Is(err, context.Canceled) || !errors.Is(werr, context.Canceled)) {
		err = werr
	}
	it.err = err
}

func (it *parallelJoinIterator) shutdown() error {
	var err error
	it.closeOnce.Do(func() {
		if !it.started {
			it.left.Close()
			return
		}
		it.cancel()
		for range it.slots {
		}
		<-it.produced
		err = it.group.Wait()
		it.left.Close()
	})
	return err
}

func (it *parallelJoinIterator) Binding() ir.Binding { return it.out }
func (it *parallelJoinIterator) Err() error          { return it.err }

func (it *parallelJoinIterator) Close() error {
	it.shutdown()
	return nil
}

// collectDelegated runs one delegated evaluation to the end.
func collectDelegated(ctx context.Context, d *DelegatedEvaluation) ([]ir.Binding, error) {
	defer d.Close()

	var rows []ir.Binding
	for d.Next(ctx) {
		rows = append(rows, d.Binding())
	}
	return rows, d.Err()
}

// parallelizable reports whether a join's right side can run in the
// parallel join.
func parallelizable(n algebra.Node) (*algebra.Owned, bool) {
	o, ok := n.(*algebra.Owned)
	return o, ok
}
