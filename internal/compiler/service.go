// Package compiler turns CUE service specs into descriptor graphs and
// service configurations.
//
// A service spec looks like:
//
//	service: papers: {
//		id:       "ex:papers"
//		engine:   "sql"
//		timeout:  "2s"
//		prefixes: ex: "http://example.org/"
//		pattern: [
//			["?paper", "ex:author", "?author"],
//			["?paper", "ex:title", "?title"],
//		]
//		input: author: {}
//		output: paper: {}
//		parameter: title: {}
//		options: {table: "papers", ...}
//	}
//
// Pattern slots starting with '?' are variables; everything else is a term
// in ir.ParseTerm syntax. Parameters under input and output declare their
// direction; those under parameter have it inferred from the patterns.
package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"github.com/goccy/go-json"

	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
)

// ServiceSpec is a compiled service: the descriptor graph rooted at Root
// plus the adapter configuration.
type ServiceSpec struct {
	// Name is the service spec's label under "service".
	Name     string
	Root     ir.IRI
	Graph    ir.Graph
	Config   service.Config
	Prefixes ir.Prefixes
}

// Descriptor parses the compiled graph.
func (s *ServiceSpec) Descriptor() (*descriptor.Result, error) {
	return descriptor.Parse(s.Graph, s.Root)
}

// parameterSections maps spec fields to the descriptor link they emit.
var parameterSections = []struct {
	field string
	link  ir.IRI
}{
	{"input", descriptor.HasInputParameter},
	{"output", descriptor.HasOutputParameter},
	{"parameter", descriptor.HasParameter},
}

// CompileService parses a CUE value into a ServiceSpec.
//
// The CUE value should be the service struct itself, e.g.:
//
//	v := cuecontext.New().CompileString(src)
//	spec, err := CompileService(v.LookupPath(cue.ParsePath("service.papers")))
func CompileService(v cue.Value) (*ServiceSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ServiceSpec{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = unquoteLabel(labels[len(labels)-1].String())
	}

	prefixes, err := parsePrefixes(v)
	if err != nil {
		return nil, err
	}
	spec.Prefixes = prefixes

	root, err := parseID(v, prefixes)
	if err != nil {
		return nil, err
	}
	spec.Root = root
	spec.Graph.Add(root, ir.RDFType, descriptor.Service)

	engineVal := v.LookupPath(cue.ParsePath("engine"))
	if !engineVal.Exists() {
		return nil, fieldError("engine", v.Pos(), "engine is required")
	}
	engine, err := engineVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Config = service.Config{ID: root, EngineType: engine}

	if spec.Config.Timeout, err = parseTimeout(v); err != nil {
		return nil, err
	}
	if err := parsePatterns(v, spec); err != nil {
		return nil, err
	}
	for _, section := range parameterSections {
		if err := parseParameters(v, section.field, section.link, spec); err != nil {
			return nil, err
		}
	}
	if spec.Config.Options, err = parseOptions(v); err != nil {
		return nil, err
	}

	return spec, nil
}

func parsePrefixes(v cue.Value) (ir.Prefixes, error) {
	prefixes := ir.DefaultPrefixes()
	pv := v.LookupPath(cue.ParsePath("prefixes"))
	if !pv.Exists() {
		return prefixes, nil
	}

	extra := make(map[string]string)
	iter, err := pv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		ns, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		extra[iter.Label()] = ns
	}
	return prefixes.With(extra), nil
}

func parseID(v cue.Value, prefixes ir.Prefixes) (ir.IRI, error) {
	idVal := v.LookupPath(cue.ParsePath("id"))
	if !idVal.Exists() {
		return "", fieldError("id", v.Pos(), "id is required")
	}
	s, err := idVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	t, err := ir.ParseTerm(s, prefixes)
	if err != nil {
		return "", fieldError("id", idVal.Pos(), "%v", err)
	}
	id, ok := t.(ir.IRI)
	if !ok {
		return "", fieldError("id", idVal.Pos(), "id %q is not an IRI", s)
	}
	return id, nil
}

func parseTimeout(v cue.Value) (time.Duration, error) {
	tv := v.LookupPath(cue.ParsePath("timeout"))
	if !tv.Exists() {
		return 0, nil
	}
	s, err := tv.String()
	if err != nil {
		return 0, formatCUEError(err)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fieldError("timeout", tv.Pos(), "%v", err)
	}
	if d < 0 {
		return 0, fieldError("timeout", tv.Pos(), "timeout must not be negative")
	}
	return d, nil
}

// parsePatterns emits one fed:pattern node per triple. Variable slots
// point at a shared node per name carrying fed:varName.
func parsePatterns(v cue.Value, spec *ServiceSpec) error {
	pv := v.LookupPath(cue.ParsePath("pattern"))
	if !pv.Exists() {
		return nil
	}

	iter, err := pv.List()
	if err != nil {
		return formatCUEError(err)
	}

	vars := make(map[string]bool)
	positions := []ir.IRI{descriptor.Subject, descriptor.Predicate, descriptor.Object}
	for i := 0; iter.Next(); i++ {
		slots, err := stringList(iter.Value())
		if err != nil {
			return err
		}
		if len(slots) != 3 {
			return fieldError("pattern", iter.Value().Pos(),
				"pattern %d: want subject, predicate and object, got %d slots", i, len(slots))
		}

		node := ir.BlankNode(fmt.Sprintf("pattern%d", i))
		spec.Graph.Add(spec.Root, descriptor.HasPattern, node)
		for j, slot := range slots {
			if name, ok := strings.CutPrefix(slot, "?"); ok {
				if name == "" {
					return fieldError("pattern", iter.Value().Pos(), "pattern %d: empty variable name", i)
				}
				vnode := ir.BlankNode("var-" + name)
				spec.Graph.Add(node, positions[j], vnode)
				if !vars[name] {
					vars[name] = true
					spec.Graph.Add(vnode, descriptor.VarName, ir.NewString(name))
				}
				continue
			}
			t, err := ir.ParseTerm(slot, spec.Prefixes)
			if err != nil {
				return fieldError("pattern", iter.Value().Pos(), "pattern %d: %v", i, err)
			}
			spec.Graph.Add(node, positions[j], t)
		}
	}
	return nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseParameters(v cue.Value, field string, link ir.IRI, spec *ServiceSpec) error {
	pv := v.LookupPath(cue.ParsePath(field))
	if !pv.Exists() {
		return nil
	}

	iter, err := pv.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		node := ir.BlankNode(field + "-" + name)
		spec.Graph.Add(spec.Root, link, node)
		spec.Graph.Add(node, descriptor.Name, ir.NewString(name))

		ov := iter.Value().LookupPath(cue.ParsePath("optional"))
		if !ov.Exists() {
			continue
		}
		optional, err := ov.Bool()
		if err != nil {
			return formatCUEError(err)
		}
		if optional {
			spec.Graph.Add(node, descriptor.Optional, ir.NewBoolean(true))
		}
	}
	return nil
}

// parseOptions decodes the adapter options through JSON so that adapters
// see the same shapes whatever the service spec source.
func parseOptions(v cue.Value) (map[string]any, error) {
	ov := v.LookupPath(cue.ParsePath("options"))
	if !ov.Exists() {
		return nil, nil
	}
	if ov.IncompleteKind() != cue.StructKind {
		return nil, fieldError("options", ov.Pos(), "options must be a struct")
	}

	data, err := ov.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var opts map[string]any
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fieldError("options", ov.Pos(), "%v", err)
	}
	return opts, nil
}

func unquoteLabel(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return s
}
