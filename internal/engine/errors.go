package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
)

// RuntimeError represents an error detected while evaluating a query.
//
// Runtime errors include:
//   - Unbound input: a delegated service needs an input the query never binds
//   - Quota exceeded: a query issued more service invocations than allowed
//   - Unsupported node: the tree holds a node the evaluator cannot run
//   - No keyword service: a KeywordSearch node without a keyword engine
//
// Transport failures are not RuntimeErrors; they surface as
// *service.InvocationError.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// QueryID identifies the affected evaluation.
	QueryID string

	// Service is the delegated service, when there is one.
	Service ir.IRI

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnboundRequiredInput indicates a required service input was not
	// bound when the delegated node was reached.
	ErrCodeUnboundRequiredInput RuntimeErrorCode = "UNBOUND_REQUIRED_INPUT"

	// ErrCodeQuotaExceeded indicates the query exceeded its invocation budget.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeUnsupportedNode indicates a node kind the evaluator cannot run,
	// such as a Service clause the rewriter never resolved.
	ErrCodeUnsupportedNode RuntimeErrorCode = "UNSUPPORTED_NODE"

	// ErrCodeNoKeywordService indicates a KeywordSearch with no keyword
	// service in the catalog.
	ErrCodeNoKeywordService RuntimeErrorCode = "NO_KEYWORD_SERVICE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.QueryID != "" && e.Service != "" {
		return fmt.Sprintf("%s: %s (query=%s, service=%s)", e.Code, e.Message, e.QueryID, e.Service)
	}
	if e.Service != "" {
		return fmt.Sprintf("%s: %s (service=%s)", e.Code, e.Message, e.Service)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUnboundInputError reports whether err is an UnboundRequiredInput error.
func IsUnboundInputError(err error) bool {
	return hasCode(err, ErrCodeUnboundRequiredInput)
}

// IsQuotaError reports whether err is a quota exceeded error.
func IsQuotaError(err error) bool {
	return hasCode(err, ErrCodeQuotaExceeded)
}

// IsServiceInvocationError reports whether err wraps a transport or remote
// failure of a delegated service.
func IsServiceInvocationError(err error) bool {
	return service.IsInvocationError(err)
}

// NewUnboundInputError creates a RuntimeError for missing inputs.
func NewUnboundInputError(queryID string, ref ir.IRI, params []string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnboundRequiredInput,
		Message: fmt.Sprintf("required input %s is not bound", strings.Join(params, ", ")),
		QueryID: queryID,
		Service: ref,
		Details: map[string]string{"params": strings.Join(params, ",")},
	}
}

// NewQuotaError creates a RuntimeError for an exhausted invocation budget.
func NewQuotaError(queryID string, invocations, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeQuotaExceeded,
		Message: fmt.Sprintf("query exceeded max invocations (%d > %d)", invocations, limit),
		QueryID: queryID,
		Details: map[string]string{
			"invocations":     fmt.Sprintf("%d", invocations),
			"max_invocations": fmt.Sprintf("%d", limit),
		},
	}
}

func newUnsupportedError(what string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnsupportedNode,
		Message: fmt.Sprintf("cannot evaluate %s", what),
	}
}
