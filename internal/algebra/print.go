package algebra

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/fedq/internal/ir"
)

// Labeler may be implemented by extension node kinds to control how
// Format renders them.
type Labeler interface {
	Label() string
}

// Format renders the subtree as an indented outline using the default
// prefixes.
func Format(n Node) string {
	return FormatWith(n, ir.DefaultPrefixes())
}

// FormatWith renders the subtree as an indented outline, compacting IRIs
// with prefixes. The output is deterministic.
func FormatWith(n Node, prefixes ir.Prefixes) string {
	p := &printer{prefixes: prefixes}
	p.print(n, 0)
	return p.b.String()
}

type printer struct {
	b        strings.Builder
	prefixes ir.Prefixes
}

func (p *printer) print(n Node, depth int) {
	p.b.WriteString(strings.Repeat("  ", depth))
	p.b.WriteString(p.label(n))
	p.b.WriteByte('\n')
	for _, c := range n.Children() {
		p.print(c, depth+1)
	}
}

func (p *printer) label(n Node) string {
	switch x := n.(type) {
	case *Root:
		return "Root"
	case *Join:
		return "Join"
	case *LeftJoin:
		if x.Condition != nil {
			return "LeftJoin " + p.expr(x.Condition)
		}
		return "LeftJoin"
	case *Union:
		return "Union"
	case *NaryJoin:
		return "NaryJoin"
	case *StatementPattern:
		s := "StatementPattern " + p.slot(x.Subject) + " " + p.slot(x.Predicate) + " " + p.slot(x.Object)
		if !x.Context.IsZero() {
			s += " GRAPH " + p.slot(x.Context)
		}
		return s
	case *Service:
		s := "Service " + p.term(x.Ref)
		if x.Silent {
			s += " SILENT"
		}
		return s
	case *Owned:
		return p.owned(x)
	case *KeywordSearch:
		return "KeywordSearch " + p.keyword(x.Pattern)
	case *Filter:
		return "Filter " + p.expr(x.Condition)
	case *OrderBy:
		parts := make([]string, len(x.Elements))
		for i, e := range x.Elements {
			if e.Descending {
				parts[i] = "DESC(" + p.expr(e.Expr) + ")"
			} else {
				parts[i] = p.expr(e.Expr)
			}
		}
		return "OrderBy " + strings.Join(parts, " ")
	case *Projection:
		parts := make([]string, len(x.Vars))
		for i, v := range x.Vars {
			parts[i] = "?" + v
		}
		return "Projection " + strings.Join(parts, " ")
	case *Slice:
		s := "Slice offset=" + strconv.FormatInt(x.Offset, 10)
		if x.Limit != NoLimit {
			s += " limit=" + strconv.FormatInt(x.Limit, 10)
		}
		return s
	case *SingletonSet:
		return "SingletonSet"
	case Labeler:
		return x.Label()
	default:
		return fmt.Sprintf("%T", n)
	}
}

func (p *printer) owned(o *Owned) string {
	s := "Owned " + p.term(o.ServiceRef)
	if o.Silent {
		s += " silent"
	}
	if o.Optional {
		s += " optional"
	}
	if len(o.Slots) > 0 {
		names := make([]string, 0, len(o.Slots))
		for name := range o.Slots {
			names = append(names, name)
		}
		slices.Sort(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = name + "=" + p.slot(o.Slots[name])
		}
		s += " [" + strings.Join(parts, " ") + "]"
	}
	return s
}

func (p *printer) keyword(k KeywordPattern) string {
	var parts []string
	add := func(name string, v *Var) {
		if v != nil {
			parts = append(parts, name+"="+p.slot(*v))
		}
	}
	addList := func(name string, vs []Var) {
		if len(vs) == 0 {
			return
		}
		items := make([]string, len(vs))
		for i, v := range vs {
			items[i] = p.slot(v)
		}
		parts = append(parts, name+"=["+strings.Join(items, " ")+"]")
	}
	add("subject", k.Subject)
	addList("predicates", k.Predicates)
	add("value", k.Value)
	add("score", k.Score)
	add("snippet", k.Snippet)
	add("match", k.Match)
	addList("types", k.Types)
	return strings.Join(parts, " ")
}

func (p *printer) slot(v Var) string {
	if v.Value != nil {
		return p.term(v.Value)
	}
	return v.String()
}

func (p *printer) term(t ir.Term) string {
	return ir.Compact(t, p.prefixes)
}

func (p *printer) expr(e Expr) string {
	return FormatExpr(e, p.prefixes)
}

// FormatExpr renders a value expression in SPARQL-like syntax.
func FormatExpr(e Expr, prefixes ir.Prefixes) string {
	switch x := e.(type) {
	case VarRef:
		return "?" + x.Name
	case Const:
		return ir.Compact(x.Term, prefixes)
	case Compare:
		return "(" + FormatExpr(x.Left, prefixes) + " " + string(x.Op) + " " + FormatExpr(x.Right, prefixes) + ")"
	case And:
		return "(" + FormatExpr(x.Left, prefixes) + " && " + FormatExpr(x.Right, prefixes) + ")"
	case Or:
		return "(" + FormatExpr(x.Left, prefixes) + " || " + FormatExpr(x.Right, prefixes) + ")"
	case Not:
		return "!" + FormatExpr(x.Arg, prefixes)
	case Bound:
		return "BOUND(?" + x.Name + ")"
	case Regex:
		s := "REGEX(" + FormatExpr(x.Arg, prefixes) + ", " + strconv.Quote(x.Pattern)
		if x.Flags != "" {
			s += ", " + strconv.Quote(x.Flags)
		}
		return s + ")"
	case nil:
		return "true"
	default:
		return fmt.Sprintf("%T", e)
	}
}
