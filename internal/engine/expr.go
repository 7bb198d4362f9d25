package engine

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
)

// errUnbound marks an expression that read an unbound variable. Filters
// treat any evaluation error as false.
var errUnbound = errors.New("unbound variable")

// exprEval evaluates filter and ordering expressions. Compiled regular
// expressions are cached per pattern.
type exprEval struct {
	mu      sync.Mutex
	regexps map[string]*regexp.Regexp
}

func newExprEval() *exprEval {
	return &exprEval{regexps: make(map[string]*regexp.Regexp)}
}

// holds reports whether e evaluates to true under b.
func (x *exprEval) holds(e algebra.Expr, b ir.Binding) bool {
	ok, err := x.truth(e, b)
	return err == nil && ok
}

func (x *exprEval) truth(e algebra.Expr, b ir.Binding) (bool, error) {
	switch v := e.(type) {
	case algebra.And:
		l, lerr := x.truth(v.Left, b)
		r, rerr := x.truth(v.Right, b)
		// An error on one side is absorbed by false on the other.
		switch {
		case lerr == nil && !l, rerr == nil && !r:
			return false, nil
		case lerr != nil:
			return false, lerr
		case rerr != nil:
			return false, rerr
		}
		return true, nil
	case algebra.Or:
		l, lerr := x.truth(v.Left, b)
		r, rerr := x.truth(v.Right, b)
		switch {
		case lerr == nil && l, rerr == nil && r:
			return true, nil
		case lerr != nil:
			return false, lerr
		case rerr != nil:
			return false, rerr
		}
		return false, nil
	case algebra.Not:
		ok, err := x.truth(v.Arg, b)
		return !ok, err
	case algebra.Bound:
		return b.Has(v.Name), nil
	case algebra.Compare:
		return x.compare(v, b)
	case algebra.Regex:
		return x.regex(v, b)
	default:
		t, err := x.value(e, b)
		if err != nil {
			return false, err
		}
		return effectiveBool(t)
	}
}

// value evaluates e to a term.
func (x *exprEval) value(e algebra.Expr, b ir.Binding) (ir.Term, error) {
	switch v := e.(type) {
	case algebra.VarRef:
		t, ok := b.Get(v.Name)
		if !ok {
			return nil, fmt.Errorf("?%s: %w", v.Name, errUnbound)
		}
		return t, nil
	case algebra.Const:
		return v.Term, nil
	default:
		ok, err := x.truth(e, b)
		if err != nil {
			return nil, err
		}
		return ir.NewBoolean(ok), nil
	}
}

func (x *exprEval) compare(c algebra.Compare, b ir.Binding) (bool, error) {
	l, err := x.value(c.Left, b)
	if err != nil {
		return false, err
	}
	r, err := x.value(c.Right, b)
	if err != nil {
		return false, err
	}

	if c.Op == algebra.OpEq || c.Op == algebra.OpNe {
		eq := termsEqual(l, r)
		return eq == (c.Op == algebra.OpEq), nil
	}

	ll, lok := l.(ir.Literal)
	rl, rok := r.(ir.Literal)
	if !lok || !rok {
		return false, fmt.Errorf("%s on non-literal terms", c.Op)
	}
	lf, lnum := ll.Float()
	rf, rnum := rl.Float()
	var order int
	switch {
	case lnum && rnum:
		order = cmpFloat(lf, rf)
	case !lnum && !rnum:
		order = strings.Compare(ll.Lexical, rl.Lexical)
	default:
		return false, fmt.Errorf("%s between numeric and non-numeric literals", c.Op)
	}

	switch c.Op {
	case algebra.OpLt:
		return order < 0, nil
	case algebra.OpLe:
		return order <= 0, nil
	case algebra.OpGt:
		return order > 0, nil
	case algebra.OpGe:
		return order >= 0, nil
	}
	return false, fmt.Errorf("unknown operator %q", c.Op)
}

// termsEqual is term equality with numeric literals compared by value.
func termsEqual(a, b ir.Term) bool {
	al, aok := a.(ir.Literal)
	bl, bok := b.(ir.Literal)
	if aok && bok {
		af, anum := al.Float()
		bf, bnum := bl.Float()
		if anum && bnum {
			return af == bf
		}
	}
	return ir.Equal(a, b)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (x *exprEval) regex(r algebra.Regex, b ir.Binding) (bool, error) {
	t, err := x.value(r.Arg, b)
	if err != nil {
		return false, err
	}
	lit, ok := t.(ir.Literal)
	if !ok {
		return false, fmt.Errorf("REGEX on non-literal %s", t)
	}
	re, err := x.compile(r.Pattern, r.Flags)
	if err != nil {
		return false, err
	}
	return re.MatchString(lit.Lexical), nil
}

func (x *exprEval) compile(pattern, flags string) (*regexp.Regexp, error) {
	switch flags {
	case "":
	case "i":
		pattern = "(?i)" + pattern
	default:
		return nil, fmt.Errorf("unsupported REGEX flags %q", flags)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if re, ok := x.regexps[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("REGEX %q: %w", pattern, err)
	}
	x.regexps[pattern] = re
	return re, nil
}

// effectiveBool follows the SPARQL effective boolean value rules for the
// literal kinds the engine produces.
func effectiveBool(t ir.Term) (bool, error) {
	lit, ok := t.(ir.Literal)
	if !ok {
		return false, fmt.Errorf("no boolean value for %s", t)
	}
	if v, ok := lit.Bool(); ok {
		return v, nil
	}
	if f, ok := lit.Float(); ok {
		return f != 0 && !math.IsNaN(f), nil
	}
	if lit.Datatype == ir.XSDString || lit.Lang != "" {
		return lit.Lexical != "", nil
	}
	return false, fmt.Errorf("no boolean value for %s", t)
}
