// Package descriptor parses and exposes service descriptors: the mapping
// between query variables and an external service's input and output
// parameters.
//
// A Descriptor is immutable once Parse returns it. Accessors hand out
// copies, so concurrent evaluations may share one descriptor freely.
package descriptor

import (
	"slices"
	"strings"

	"github.com/roach88/fedq/internal/ir"
)

// Direction classifies a parameter.
type Direction int

const (
	// DirectionUnknown marks a parameter whose direction could not be
	// decided. Such parameters never appear in a Descriptor.
	DirectionUnknown Direction = iota

	// Input parameters must be bound before the service is invoked.
	Input

	// Output parameters are produced by the service and become newly bound.
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// Slot is one position of a descriptor pattern: a variable name or a
// constant term.
type Slot struct {
	Var  string
	Term ir.Term
}

// IsVar reports whether the slot is a variable.
func (s Slot) IsVar() bool { return s.Var != "" }

func (s Slot) String() string {
	if s.IsVar() {
		return "?" + s.Var
	}
	if s.Term == nil {
		return "UNDEF"
	}
	return s.Term.String()
}

// Pattern is a graph-pattern fragment the service answers.
type Pattern struct {
	Subject   Slot
	Predicate Slot
	Object    Slot
}

func (p Pattern) String() string {
	return p.Subject.String() + " " + p.Predicate.String() + " " + p.Object.String()
}

// Parameter is one variable meaningful to the service.
type Parameter struct {
	Name      string
	Direction Direction

	// Optional inputs may be absent from the binding at invocation time.
	Optional bool

	// ObjectPatterns are the fragments where the variable is the object.
	ObjectPatterns []Pattern

	// SubjectPatterns are the fragments where the variable is the subject.
	SubjectPatterns []Pattern
}

func (p Parameter) clone() Parameter {
	p.ObjectPatterns = slices.Clone(p.ObjectPatterns)
	p.SubjectPatterns = slices.Clone(p.SubjectPatterns)
	return p
}

// Descriptor describes one external service.
type Descriptor struct {
	id       ir.Term
	params   map[string]Parameter
	patterns []Pattern
}

// New builds a descriptor directly. Parameter names must be unique and
// every parameter must have a decided direction; Parse enforces both for
// graph input. Used by tests and programmatic registration.
func New(id ir.Term, patterns []Pattern, params ...Parameter) *Descriptor {
	d := &Descriptor{
		id:       id,
		params:   make(map[string]Parameter, len(params)),
		patterns: slices.Clone(patterns),
	}
	for _, p := range params {
		d.params[p.Name] = p.clone()
	}
	return d
}

// ID returns the service's root entity.
func (d *Descriptor) ID() ir.Term { return d.id }

// Ref returns the service's identifier as a string usable as a catalog key.
func (d *Descriptor) Ref() string { return ir.Lexical(d.id) }

// Parameter looks up a parameter by name.
func (d *Descriptor) Parameter(name string) (Parameter, bool) {
	p, ok := d.params[name]
	if !ok {
		return Parameter{}, false
	}
	return p.clone(), true
}

// InputParameters returns the input parameters keyed by name.
func (d *Descriptor) InputParameters() map[string]Parameter {
	return d.byDirection(Input)
}

// OutputParameters returns the output parameters keyed by name.
func (d *Descriptor) OutputParameters() map[string]Parameter {
	return d.byDirection(Output)
}

func (d *Descriptor) byDirection(dir Direction) map[string]Parameter {
	out := make(map[string]Parameter)
	for name, p := range d.params {
		if p.Direction == dir {
			out[name] = p.clone()
		}
	}
	return out
}

// Parameters returns every parameter sorted by name.
func (d *Descriptor) Parameters() []Parameter {
	out := make([]Parameter, 0, len(d.params))
	for _, p := range d.params {
		out = append(out, p.clone())
	}
	slices.SortFunc(out, func(a, b Parameter) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// RequiredInputs returns the names of non-optional inputs, sorted.
func (d *Descriptor) RequiredInputs() []string {
	var out []string
	for name, p := range d.params {
		if p.Direction == Input && !p.Optional {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Patterns returns the graph pattern the service answers, in declaration
// order.
func (d *Descriptor) Patterns() []Pattern {
	return slices.Clone(d.patterns)
}
