package planfile

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fedq/internal/algebra"
)

// expr reads a value expression. Scalars are variables or constants;
// mappings name an operator:
//
//	{"=": [?a, ?b]}   comparisons: = != < <= > >=
//	{and: [e1, e2, ...]}, {or: [e1, e2, ...]}
//	{not: e}
//	{bound: ?x}
//	{regex: [e, pattern]} or {regex: [e, pattern, flags]}
func (d *decoder) expr(n *yaml.Node) (algebra.Expr, error) {
	if n.Kind == yaml.ScalarNode {
		if name, ok := strings.CutPrefix(n.Value, "?"); ok {
			if name == "" {
				return nil, errorf(n, "expression: empty variable name")
			}
			return algebra.VarRef{Name: name}, nil
		}
		t, err := d.term(n)
		if err != nil {
			return nil, err
		}
		return algebra.Const{Term: t}, nil
	}

	op, arg, err := operator(n)
	if err != nil {
		return nil, err
	}

	if cmp := algebra.CompareOp(op); cmp.Valid() {
		args, err := d.exprList(arg, op, 2, 2)
		if err != nil {
			return nil, err
		}
		return algebra.Compare{Op: cmp, Left: args[0], Right: args[1]}, nil
	}

	switch op {
	case "and", "or":
		args, err := d.exprList(arg, op, 2, -1)
		if err != nil {
			return nil, err
		}
		acc := args[0]
		for _, a := range args[1:] {
			if op == "and" {
				acc = algebra.And{Left: acc, Right: a}
			} else {
				acc = algebra.Or{Left: acc, Right: a}
			}
		}
		return acc, nil
	case "not":
		inner, err := d.expr(arg)
		if err != nil {
			return nil, err
		}
		return algebra.Not{Arg: inner}, nil
	case "bound":
		name, ok := strings.CutPrefix(arg.Value, "?")
		if arg.Kind != yaml.ScalarNode || !ok || name == "" {
			return nil, errorf(arg, "bound: want a variable")
		}
		return algebra.Bound{Name: name}, nil
	case "regex":
		return d.regex(arg)
	default:
		return nil, errorf(n, "unknown expression operator %q", op)
	}
}

// exprList reads a list of between lo and hi expressions; hi < 0 means
// no upper bound.
func (d *decoder) exprList(n *yaml.Node, op string, lo, hi int) ([]algebra.Expr, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) < lo || (hi >= 0 && len(n.Content) > hi) {
		if lo == hi {
			return nil, errorf(n, "%s: want %d operands", op, lo)
		}
		return nil, errorf(n, "%s: want at least %d operands", op, lo)
	}
	out := make([]algebra.Expr, 0, len(n.Content))
	for _, c := range n.Content {
		e, err := d.expr(c)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (d *decoder) regex(n *yaml.Node) (algebra.Expr, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) < 2 || len(n.Content) > 3 {
		return nil, errorf(n, "regex: want [expression, pattern] with optional flags")
	}
	arg, err := d.expr(n.Content[0])
	if err != nil {
		return nil, err
	}
	re := algebra.Regex{Arg: arg, Pattern: n.Content[1].Value}
	if len(n.Content) == 3 {
		re.Flags = n.Content[2].Value
		if strings.Trim(re.Flags, "i") != "" {
			return nil, errorf(n.Content[2], "regex: unsupported flags %q", re.Flags)
		}
	}
	return re, nil
}
