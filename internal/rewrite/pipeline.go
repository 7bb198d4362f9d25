// Package rewrite runs the plan passes that prepare an expression tree for
// evaluation: SERVICE delegation, keyword search extraction, ownership
// pruning and n-ary join flattening.
//
// Passes run single-threaded, once per tree, in a fixed order. A pass that
// meets a node kind it does not handle falls through to the generic
// traversal; unknown extensions are never an error.
package rewrite

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/ir"
)

// ErrUnsupportedShape is returned by recognisers that decline a shape. It
// never escapes a pass: the declined nodes are left untouched.
var ErrUnsupportedShape = errors.New("rewrite: unsupported pattern shape")

// RewriteError reports a pass that could not rewrite the tree. Rewriting
// stops at the first failure and the tree must not be evaluated.
type RewriteError struct {
	Pass string
	Err  error
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("rewrite %s: %v", e.Pass, e.Err)
}

func (e *RewriteError) Unwrap() error { return e.Err }

// IsRewriteError reports whether err is a RewriteError.
func IsRewriteError(err error) bool {
	var re *RewriteError
	return errors.As(err, &re)
}

// Resolver resolves SERVICE references to descriptors.
type Resolver interface {
	Resolve(ref ir.IRI) (*descriptor.Descriptor, error)
}

// Pass names, in execution order.
const (
	PassDelegation = "delegation"
	PassKeyword    = "keyword"
	PassPrune      = "prune"
	PassFlatten    = "flatten"
)

type pass struct {
	name  string
	apply func(*algebra.Root) error
}

// Optimizer runs the rewrite passes.
type Optimizer struct {
	passes []pass
	logger *slog.Logger
}

// New creates an optimizer. resolver may be nil when trees contain no
// SERVICE clauses.
func New(resolver Resolver, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{
		logger: logger,
		passes: []pass{
			{PassDelegation, func(r *algebra.Root) error { return Delegate(r, resolver) }},
			{PassKeyword, ExtractKeywordSearch},
			{PassPrune, PruneOwnership},
			{PassFlatten, FlattenJoins},
		},
	}
}

// Rewrite applies every pass to root in place.
func (o *Optimizer) Rewrite(root *algebra.Root) error {
	for _, p := range o.passes {
		start := time.Now()
		if err := p.apply(root); err != nil {
			o.logger.Error("rewrite pass failed", "pass", p.name, "error", err)
			return &RewriteError{Pass: p.name, Err: err}
		}
		o.logger.Debug("rewrite pass done", "pass", p.name, "elapsed", time.Since(start))
	}
	for _, u := range CheckBindings(root) {
		if u.Service != "" {
			o.logger.Warn("service input cannot be bound", "service", u.Service, "parameter", u.Parameter, "variable", u.Variable)
		} else {
			o.logger.Warn("filter reads unbound variable", "variable", u.Variable)
		}
	}
	return nil
}
