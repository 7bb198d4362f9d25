package algebra

import "github.com/roach88/fedq/internal/ir"

// Expr is a value expression used by Filter, LeftJoin conditions and
// OrderBy keys.
//
// This is a sealed interface. Expressions are immutable values, so trees
// and their clones may share them.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Valid reports whether op is a known operator.
func (op CompareOp) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// VarRef evaluates to the binding of a variable.
type VarRef struct {
	Name string
}

func (VarRef) exprNode() {}

// Const evaluates to a fixed term.
type Const struct {
	Term ir.Term
}

func (Const) exprNode() {}

// Compare applies Op to two operands.
type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

func (Compare) exprNode() {}

// And is logical conjunction.
type And struct {
	Left  Expr
	Right Expr
}

func (And) exprNode() {}

// Or is logical disjunction.
type Or struct {
	Left  Expr
	Right Expr
}

func (Or) exprNode() {}

// Not is logical negation.
type Not struct {
	Arg Expr
}

func (Not) exprNode() {}

// Bound tests whether a variable is bound.
type Bound struct {
	Name string
}

func (Bound) exprNode() {}

// Regex matches the lexical form of Arg against Pattern.
// Flags follows SPARQL REGEX: only "i" is supported.
type Regex struct {
	Arg     Expr
	Pattern string
	Flags   string
}

func (Regex) exprNode() {}

// ExprVars returns the variables an expression reads, in first-use order.
func ExprVars(e Expr) []string {
	var out []string
	seen := map[string]bool{}
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var walk func(Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case VarRef:
			add(x.Name)
		case Bound:
			add(x.Name)
		case Compare:
			walk(x.Left)
			walk(x.Right)
		case And:
			walk(x.Left)
			walk(x.Right)
		case Or:
			walk(x.Left)
			walk(x.Right)
		case Not:
			walk(x.Arg)
		case Regex:
			walk(x.Arg)
		}
	}
	walk(e)
	return out
}
