package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/fedq/internal/service"
)

// Validation error codes (E200-E299)
const (
	ErrUnknownEngine        = "E201" // engine not registered
	ErrNoPatterns           = "E202" // service answers no pattern
	ErrMalformedDescriptor  = "E203" // descriptor graph rejected
	ErrAmbiguousParameter   = "E204" // parameter direction undecidable
	ErrUndeclaredParameters = "E205" // service declares no parameters
)

// ValidationError represents a service spec validation error.
type ValidationError struct {
	Service string `json:"service"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Service, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled spec against the engines in engines and the
// descriptor rules. Returns all errors found (does not fail-fast). A nil
// engines list skips the engine check.
func Validate(spec *ServiceSpec, engines []string) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Service: spec.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if engines != nil && !slices.Contains(engines, spec.Config.EngineType) {
		add("engine", ErrUnknownEngine, "unknown engine %q", spec.Config.EngineType)
	}

	// Keyword services are matched by shape, not by pattern.
	if spec.Config.EngineType == service.KeywordEngine {
		return errs
	}

	res, err := spec.Descriptor()
	if err != nil {
		add("descriptor", ErrMalformedDescriptor, "%v", err)
		return errs
	}
	if len(res.Descriptor.Patterns()) == 0 {
		add("pattern", ErrNoPatterns, "at least one pattern is required")
	}
	if len(res.Descriptor.Parameters()) == 0 && len(res.Diagnostics) == 0 {
		add("parameter", ErrUndeclaredParameters, "at least one parameter is required")
	}
	for _, d := range res.Diagnostics {
		add("parameter."+d.Parameter, ErrAmbiguousParameter, "%s", d.Message)
	}
	return errs
}
