package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
)

// State is the lifecycle position of a DelegatedEvaluation.
type State int32

const (
	StateCreated State = iota
	StateBoundnessChecked
	StateInvoking
	StateStreaming
	StateClosed
	StateFailed
)

var stateNames = [...]string{
	StateCreated:          "Created",
	StateBoundnessChecked: "BoundnessChecked",
	StateInvoking:         "Invoking",
	StateStreaming:        "Streaming",
	StateClosed:           "Closed",
	StateFailed:           "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// invocationEnv is what one evaluation shares with all its delegated
// nodes.
type invocationEnv struct {
	queryID string
	logger  *slog.Logger
	metrics *Metrics
	clock   *Clock
	quota   *InvocationQuota
}

// DelegatedEvaluation runs one Owned node for one inbound binding.
//
// The first call to Next checks that every required input is bound,
// invokes the service and starts streaming. Each service row is assigned
// to the node's output slots and merged into the inbound binding; rows
// that conflict with it are dropped. The service stream is released
// exactly once, on exhaustion, on failure or on Close, whichever comes
// first.
//
// Failures of a node marked Silent or Optional end the stream with no
// error instead, as long as no row has been yielded yet. A failure after
// the first row is reported so that a partial result never passes as a
// complete one.
type DelegatedEvaluation struct {
	node  *algebra.Owned
	desc  *descriptor.Descriptor
	entry service.Entry
	in    ir.Binding
	env   *invocationEnv

	state   atomic.Int32
	mu      sync.Mutex
	history []State

	stream    service.RowStream
	invoked   bool
	started   time.Time
	seq       int64
	rows      int
	yielded   int
	cur       ir.Binding
	err       error
	closeOnce sync.Once
	releases  atomic.Int32
}

func newDelegatedEvaluation(node *algebra.Owned, entry service.Entry, in ir.Binding, env *invocationEnv) *DelegatedEvaluation {
	desc := node.Descriptor
	if desc == nil {
		desc = entry.Descriptor
	}
	d := &DelegatedEvaluation{node: node, desc: desc, entry: entry, in: in, env: env}
	d.history = []State{StateCreated}
	return d
}

// State returns the current lifecycle state.
func (d *DelegatedEvaluation) State() State {
	return State(d.state.Load())
}

// History returns every state entered so far, in order.
func (d *DelegatedEvaluation) History() []State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]State(nil), d.history...)
}

// Releases returns how many times the service resource was released.
// It is never more than one.
func (d *DelegatedEvaluation) Releases() int {
	return int(d.releases.Load())
}

func (d *DelegatedEvaluation) setState(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if State(d.state.Load()) == s {
		return
	}
	d.state.Store(int32(s))
	d.history = append(d.history, s)
}

func (d *DelegatedEvaluation) Next(ctx context.Context) bool {
	switch d.State() {
	case StateCreated:
		inputs, err := d.checkBoundness()
		if err != nil {
			return d.fail(err, true)
		}
		d.setState(StateBoundnessChecked)
		if !d.invoke(ctx, inputs) {
			return false
		}
	case StateStreaming:
	default:
		return false
	}
	return d.advance(ctx)
}

// checkBoundness resolves the input slots against the inbound binding.
// Optional inputs that are unbound are left out of the request.
func (d *DelegatedEvaluation) checkBoundness() (map[string]ir.Term, error) {
	inputs := make(map[string]ir.Term)
	var missing []string
	for name, p := range d.desc.InputParameters() {
		if slot, ok := d.node.Slot(name); ok {
			if t, bound := slot.Resolve(d.in); bound {
				inputs[name] = t
				continue
			}
		}
		if !p.Optional {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, NewUnboundInputError(d.env.queryID, d.node.ServiceRef, missing)
	}
	return inputs, nil
}

func (d *DelegatedEvaluation) invoke(ctx context.Context, inputs map[string]ir.Term) bool {
	d.setState(StateInvoking)
	if err := d.env.quota.Acquire(d.env.queryID); err != nil {
		return d.fail(err, false)
	}

	d.seq = d.env.clock.Next()
	d.env.logger.Debug("invoking service",
		"service", d.node.ServiceRef,
		"seq", d.seq,
		"inputs", len(inputs),
	)

	d.env.metrics.invoked(d.node.ServiceRef)
	d.invoked = true
	d.started = time.Now()

	stream, err := d.entry.Invoker.Invoke(ctx, d.entry.Config, inputs)
	if err != nil {
		d.env.metrics.failed(d.node.ServiceRef)
		return d.fail(d.wrap(err), true)
	}
	if stream == nil {
		stream = service.EmptyStream()
	}
	d.stream = stream
	d.setState(StateStreaming)
	return true
}

func (d *DelegatedEvaluation) advance(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		return d.fail(err, false)
	}
	for d.stream.Next() {
		d.rows++
		d.env.metrics.row(d.node.ServiceRef)
		if b, ok := d.merge(d.stream.Row()); ok {
			d.cur = b
			d.yielded++
			return true
		}
		if err := ctx.Err(); err != nil {
			return d.fail(err, false)
		}
	}
	if err := d.stream.Err(); err != nil {
		d.env.metrics.failed(d.node.ServiceRef)
		return d.fail(d.wrap(err), true)
	}

	d.env.logger.Debug("service stream exhausted",
		"service", d.node.ServiceRef,
		"seq", d.seq,
		"rows", d.rows,
	)
	d.release()
	d.setState(StateClosed)
	return false
}

// merge assigns row values to the output slots of the node. A constant
// slot keeps only rows carrying that constant; a variable already bound
// keeps only rows agreeing with it.
func (d *DelegatedEvaluation) merge(row service.Row) (ir.Binding, bool) {
	out := d.in.Clone()
	for name := range d.desc.OutputParameters() {
		t, ok := row[name]
		if !ok || t == nil {
			continue
		}
		slot, ok := d.node.Slot(name)
		if !ok {
			continue
		}
		if !slot.IsVariable() {
			if !ir.Equal(slot.Value, t) {
				return nil, false
			}
			continue
		}
		if prev, bound := out.Get(slot.Name); bound {
			if !ir.Equal(prev, t) {
				return nil, false
			}
			continue
		}
		out[slot.Name] = t
	}
	return out, true
}

func (d *DelegatedEvaluation) wrap(err error) error {
	if service.IsInvocationError(err) {
		return err
	}
	return &service.InvocationError{Service: d.node.ServiceRef, Cause: err}
}

// fail ends the evaluation. Service failures of a Silent or Optional node
// that has not yielded a row are logged and replaced by the end of the
// stream.
func (d *DelegatedEvaluation) fail(err error, suppressible bool) bool {
	if suppressible && (d.node.Silent || d.node.Optional) && d.yielded == 0 {
		d.env.logger.Warn("service failure suppressed",
			"service", d.node.ServiceRef,
			"silent", d.node.Silent,
			"optional", d.node.Optional,
			"error", err,
		)
		d.release()
		d.setState(StateClosed)
		return false
	}

	d.env.logger.Error("service evaluation failed",
		"service", d.node.ServiceRef,
		"seq", d.seq,
		"error", err,
	)
	d.err = err
	d.release()
	d.setState(StateFailed)
	return false
}

func (d *DelegatedEvaluation) release() {
	d.closeOnce.Do(func() {
		d.releases.Add(1)
		if d.stream != nil {
			if err := d.stream.Close(); err != nil {
				d.env.logger.Warn("closing service stream",
					"service", d.node.ServiceRef,
					"error", err,
				)
			}
		}
		if d.invoked {
			d.env.metrics.released(d.node.ServiceRef, time.Since(d.started))
		}
	})
}

func (d *DelegatedEvaluation) Binding() ir.Binding { return d.cur }
func (d *DelegatedEvaluation) Err() error          { return d.err }

// Close releases the service stream if it is still open. It may be called
// at any point, including before the first Next, and more than once.
func (d *DelegatedEvaluation) Close() error {
	d.release()
	d.setState(StateClosed)
	return nil
}
