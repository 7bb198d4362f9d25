// Package service defines the boundary between the evaluator and the
// external systems a query delegates to.
//
// An Invoker takes resolved input values and returns a RowStream of output
// rows. The transport behind an Invoker (SQL driver, HTTP client, in-process
// index) is invisible to the engine. Engine factories are registered by
// engine type in a Registry, and the Catalog pairs each service descriptor
// with the Config and Invoker that serve it.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/fedq/internal/ir"
)

// Row is one result row keyed by output parameter name.
type Row map[string]ir.Term

// RowStream is a lazy, finite, non-restartable sequence of rows.
//
// Callers must call Close when done, including after an error or when
// abandoning iteration early. Close is safe to call more than once.
type RowStream interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}

// Config is the opaque per-service configuration handed to adapters.
type Config struct {
	// ID is the service IRI.
	ID ir.IRI

	// EngineType selects the factory in the Registry ("sql", "rest", "keyword").
	EngineType string

	// Timeout bounds a single invocation. Zero means no adapter deadline.
	Timeout time.Duration

	// Options carries engine-specific settings decoded from the service spec.
	Options map[string]any
}

// Invoker issues one call against an external service.
type Invoker interface {
	Invoke(ctx context.Context, cfg Config, inputs map[string]ir.Term) (RowStream, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, cfg Config, inputs map[string]ir.Term) (RowStream, error)

func (f InvokerFunc) Invoke(ctx context.Context, cfg Config, inputs map[string]ir.Term) (RowStream, error) {
	return f(ctx, cfg, inputs)
}

// InvocationError wraps a transport or remote failure.
type InvocationError struct {
	Service ir.IRI
	Cause   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("service %s: invocation failed: %v", e.Service, e.Cause)
}

func (e *InvocationError) Unwrap() error { return e.Cause }

// IsInvocationError reports whether err wraps an InvocationError.
func IsInvocationError(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}

// SliceStream serves rows from memory. It counts Close calls so tests can
// assert on release.
type SliceStream struct {
	rows   []Row
	idx    int
	err    error
	mu     sync.Mutex
	closes int
}

// NewSliceStream returns a stream over rows.
func NewSliceStream(rows ...Row) *SliceStream {
	return &SliceStream{rows: rows, idx: -1}
}

// NewFailingStream returns a stream that yields rows then reports err.
func NewFailingStream(err error, rows ...Row) *SliceStream {
	return &SliceStream{rows: rows, idx: -1, err: err}
}

func (s *SliceStream) Next() bool {
	if s.idx+1 >= len(s.rows) {
		s.idx = len(s.rows)
		return false
	}
	s.idx++
	return true
}

func (s *SliceStream) Row() Row {
	if s.idx < 0 || s.idx >= len(s.rows) {
		return nil
	}
	return s.rows[s.idx]
}

func (s *SliceStream) Err() error {
	if s.idx >= len(s.rows) {
		return s.err
	}
	return nil
}

func (s *SliceStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Closes returns how many times Close was called.
func (s *SliceStream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// EmptyStream returns a stream with no rows.
func EmptyStream() RowStream { return NewSliceStream() }

// Collect drains and closes a stream.
func Collect(rs RowStream) ([]Row, error) {
	defer rs.Close()

	var rows []Row
	for rs.Next() {
		rows = append(rows, rs.Row())
	}
	return rows, rs.Err()
}
