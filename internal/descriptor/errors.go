package descriptor

import (
	"errors"
	"fmt"

	"github.com/roach88/fedq/internal/ir"
)

// MalformedDescriptorError reports a service description that cannot be
// turned into a Descriptor. It is fatal for the registration that
// requested parsing and is never retried.
type MalformedDescriptorError struct {
	Root      ir.Term
	Parameter string // empty when the error is not parameter specific
	Message   string
}

func (e *MalformedDescriptorError) Error() string {
	root := "<nil>"
	if e.Root != nil {
		root = e.Root.String()
	}
	if e.Parameter != "" {
		return fmt.Sprintf("malformed descriptor %s: parameter %q: %s", root, e.Parameter, e.Message)
	}
	return fmt.Sprintf("malformed descriptor %s: %s", root, e.Message)
}

// IsMalformed reports whether err is a MalformedDescriptorError.
func IsMalformed(err error) bool {
	var mde *MalformedDescriptorError
	return errors.As(err, &mde)
}

func malformed(root ir.Term, param, format string, args ...any) *MalformedDescriptorError {
	return &MalformedDescriptorError{Root: root, Parameter: param, Message: fmt.Sprintf(format, args...)}
}
