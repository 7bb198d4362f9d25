// Package planfile decodes YAML query plans into expression trees.
//
// A plan document carries optional prefixes and one plan node:
//
//	prefixes:
//	  ex: http://example.org/
//	plan:
//	  slice:
//	    limit: 10
//	    arg:
//	      join:
//	        - pattern: ["?paper", "ex:title", "?title"]
//	        - service:
//	            ref: ex:search
//	            where:
//	              pattern: ["?doc", "ex:mentions", "?title"]
//
// Every node is a mapping with exactly one key naming its operator. Slots
// starting with '?' are variables; other scalars are terms in
// ir.ParseTerm syntax.
package planfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
)

// Plan is a decoded plan document.
type Plan struct {
	Root     *algebra.Root
	Prefixes ir.Prefixes
}

// DecodeError reports a malformed plan with the YAML line it was found on.
type DecodeError struct {
	Line    int
	Message string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("plan: line %d: %s", e.Line, e.Message)
	}
	return "plan: " + e.Message
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

func errorf(n *yaml.Node, format string, args ...any) *DecodeError {
	line := 0
	if n != nil {
		line = n.Line
	}
	return &DecodeError{Line: line, Message: fmt.Sprintf(format, args...)}
}

type document struct {
	Prefixes map[string]string `yaml:"prefixes"`
	Plan     yaml.Node         `yaml:"plan"`
}

// Decode reads one plan document.
func Decode(r io.Reader) (*Plan, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DecodeError{Message: "empty document"}
		}
		return nil, &DecodeError{Message: err.Error()}
	}
	if doc.Plan.Kind == 0 {
		return nil, &DecodeError{Message: "plan is required"}
	}

	d := &decoder{prefixes: ir.DefaultPrefixes().With(doc.Prefixes)}
	n, err := d.node(&doc.Plan)
	if err != nil {
		return nil, err
	}
	return &Plan{Root: algebra.NewRoot(n), Prefixes: d.prefixes}, nil
}

// DecodeBytes reads a plan from data.
func DecodeBytes(data []byte) (*Plan, error) {
	return Decode(bytes.NewReader(data))
}

// DecodeFile reads a plan from path.
func DecodeFile(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

type decoder struct {
	prefixes ir.Prefixes
}

// operator splits a single-key mapping into its key and value.
func operator(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, errorf(n, "want a mapping with exactly one operator")
	}
	return n.Content[0].Value, n.Content[1], nil
}

// fields reads the keys of an operator's argument mapping, rejecting
// unknown ones.
func fields(n *yaml.Node, op string, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errorf(n, "%s: want a mapping", op)
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		known := false
		for _, a := range allowed {
			if a == key {
				known = true
				break
			}
		}
		if !known {
			return nil, errorf(n.Content[i], "%s: unknown field %q", op, key)
		}
		out[key] = n.Content[i+1]
	}
	return out, nil
}

func (d *decoder) node(n *yaml.Node) (algebra.Node, error) {
	op, arg, err := operator(n)
	if err != nil {
		return nil, err
	}

	switch op {
	case "pattern":
		return d.pattern(arg)
	case "join", "union":
		return d.binary(op, arg)
	case "leftjoin":
		return d.leftJoin(arg)
	case "service":
		return d.service(arg)
	case "filter":
		return d.filter(arg)
	case "order":
		return d.order(arg)
	case "project":
		return d.project(arg)
	case "slice":
		return d.slice(arg)
	case "singleton":
		return algebra.NewSingletonSet(), nil
	default:
		return nil, errorf(n, "unknown operator %q", op)
	}
}

// pattern reads [s, p, o] or [s, p, o, graph].
func (d *decoder) pattern(n *yaml.Node) (algebra.Node, error) {
	if n.Kind != yaml.SequenceNode || (len(n.Content) != 3 && len(n.Content) != 4) {
		return nil, errorf(n, "pattern: want [subject, predicate, object] with an optional graph")
	}
	var slots [4]algebra.Var
	for i, c := range n.Content {
		v, err := d.slot(c)
		if err != nil {
			return nil, err
		}
		slots[i] = v
	}
	sp := algebra.NewStatementPattern(slots[0], slots[1], slots[2])
	sp.Context = slots[3]
	return sp, nil
}

func (d *decoder) slot(n *yaml.Node) (algebra.Var, error) {
	if n.Kind != yaml.ScalarNode {
		return algebra.Var{}, errorf(n, "slot: want a scalar")
	}
	if name, ok := strings.CutPrefix(n.Value, "?"); ok {
		if name == "" {
			return algebra.Var{}, errorf(n, "slot: empty variable name")
		}
		return algebra.Variable(name), nil
	}
	t, err := d.term(n)
	if err != nil {
		return algebra.Var{}, err
	}
	return algebra.Constant(t), nil
}

func (d *decoder) term(n *yaml.Node) (ir.Term, error) {
	s := n.Value
	// Quoted YAML scalars are plain strings unless they already carry
	// term syntax.
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 && !looksLikeTerm(s) {
		return ir.NewString(s), nil
	}
	t, err := ir.ParseTerm(s, d.prefixes)
	if err != nil {
		return nil, errorf(n, "%v", err)
	}
	return t, nil
}

func looksLikeTerm(s string) bool {
	return strings.HasPrefix(s, "<") || strings.HasPrefix(s, "\"") ||
		strings.HasPrefix(s, "_:") || strings.Contains(s, ":")
}

// binary folds a list of at least two nodes into a left-deep tree.
func (d *decoder) binary(op string, n *yaml.Node) (algebra.Node, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) < 2 {
		return nil, errorf(n, "%s: want a list of at least two nodes", op)
	}
	acc, err := d.node(n.Content[0])
	if err != nil {
		return nil, err
	}
	for _, c := range n.Content[1:] {
		next, err := d.node(c)
		if err != nil {
			return nil, err
		}
		if op == "join" {
			acc = algebra.NewJoin(acc, next)
		} else {
			acc = algebra.NewUnion(acc, next)
		}
	}
	return acc, nil
}

func (d *decoder) leftJoin(n *yaml.Node) (algebra.Node, error) {
	f, err := fields(n, "leftjoin", "left", "right", "condition")
	if err != nil {
		return nil, err
	}
	left, right, err := d.pair(n, "leftjoin", f)
	if err != nil {
		return nil, err
	}
	var cond algebra.Expr
	if c, ok := f["condition"]; ok {
		if cond, err = d.expr(c); err != nil {
			return nil, err
		}
	}
	return algebra.NewLeftJoin(left, right, cond), nil
}

func (d *decoder) pair(n *yaml.Node, op string, f map[string]*yaml.Node) (algebra.Node, algebra.Node, error) {
	l, ok := f["left"]
	if !ok {
		return nil, nil, errorf(n, "%s: left is required", op)
	}
	r, ok := f["right"]
	if !ok {
		return nil, nil, errorf(n, "%s: right is required", op)
	}
	left, err := d.node(l)
	if err != nil {
		return nil, nil, err
	}
	right, err := d.node(r)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (d *decoder) service(n *yaml.Node) (algebra.Node, error) {
	f, err := fields(n, "service", "ref", "silent", "where")
	if err != nil {
		return nil, err
	}
	refNode, ok := f["ref"]
	if !ok {
		return nil, errorf(n, "service: ref is required")
	}
	t, err := d.term(refNode)
	if err != nil {
		return nil, err
	}
	ref, ok := t.(ir.IRI)
	if !ok {
		return nil, errorf(refNode, "service: ref %q is not an IRI", refNode.Value)
	}

	var silent bool
	if s, ok := f["silent"]; ok {
		if err := s.Decode(&silent); err != nil {
			return nil, errorf(s, "service: silent: %v", err)
		}
	}

	w, ok := f["where"]
	if !ok {
		return nil, errorf(n, "service: where is required")
	}
	inner, err := d.node(w)
	if err != nil {
		return nil, err
	}
	return algebra.NewService(ref, inner, silent), nil
}

func (d *decoder) argOf(n *yaml.Node, op string, f map[string]*yaml.Node) (algebra.Node, error) {
	a, ok := f["arg"]
	if !ok {
		return nil, errorf(n, "%s: arg is required", op)
	}
	return d.node(a)
}

func (d *decoder) filter(n *yaml.Node) (algebra.Node, error) {
	f, err := fields(n, "filter", "condition", "arg")
	if err != nil {
		return nil, err
	}
	c, ok := f["condition"]
	if !ok {
		return nil, errorf(n, "filter: condition is required")
	}
	cond, err := d.expr(c)
	if err != nil {
		return nil, err
	}
	arg, err := d.argOf(n, "filter", f)
	if err != nil {
		return nil, err
	}
	return algebra.NewFilter(cond, arg), nil
}

// order reads keys as expressions, or as {desc: expr} for descending.
func (d *decoder) order(n *yaml.Node) (algebra.Node, error) {
	f, err := fields(n, "order", "by", "arg")
	if err != nil {
		return nil, err
	}
	by, ok := f["by"]
	if !ok || by.Kind != yaml.SequenceNode || len(by.Content) == 0 {
		return nil, errorf(n, "order: by must list at least one key")
	}

	elems := make([]algebra.OrderElem, 0, len(by.Content))
	for _, k := range by.Content {
		var elem algebra.OrderElem
		if k.Kind == yaml.MappingNode && len(k.Content) == 2 && (k.Content[0].Value == "asc" || k.Content[0].Value == "desc") {
			elem.Descending = k.Content[0].Value == "desc"
			k = k.Content[1]
		}
		if elem.Expr, err = d.expr(k); err != nil {
			return nil, err
		}
		elems = append(elems, elem)
	}

	arg, err := d.argOf(n, "order", f)
	if err != nil {
		return nil, err
	}
	return algebra.NewOrderBy(elems, arg), nil
}

func (d *decoder) project(n *yaml.Node) (algebra.Node, error) {
	f, err := fields(n, "project", "vars", "arg")
	if err != nil {
		return nil, err
	}
	vn, ok := f["vars"]
	if !ok || vn.Kind != yaml.SequenceNode {
		return nil, errorf(n, "project: vars must be a list")
	}
	vars := make([]string, 0, len(vn.Content))
	for _, c := range vn.Content {
		name, ok := strings.CutPrefix(c.Value, "?")
		if !ok || name == "" || c.Kind != yaml.ScalarNode {
			return nil, errorf(c, "project: %q is not a variable", c.Value)
		}
		vars = append(vars, name)
	}
	arg, err := d.argOf(n, "project", f)
	if err != nil {
		return nil, err
	}
	return algebra.NewProjection(vars, arg), nil
}

func (d *decoder) slice(n *yaml.Node) (algebra.Node, error) {
	f, err := fields(n, "slice", "offset", "limit", "arg")
	if err != nil {
		return nil, err
	}
	offset, limit := int64(0), algebra.NoLimit
	if o, ok := f["offset"]; ok {
		if err := o.Decode(&offset); err != nil || offset < 0 {
			return nil, errorf(o, "slice: offset must be a non-negative integer")
		}
	}
	if l, ok := f["limit"]; ok {
		if err := l.Decode(&limit); err != nil || limit < 0 {
			return nil, errorf(l, "slice: limit must be a non-negative integer")
		}
	}
	arg, err := d.argOf(n, "slice", f)
	if err != nil {
		return nil, err
	}
	return algebra.NewSlice(offset, limit, arg), nil
}
