package rewrite

import (
	"fmt"
	"testing"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/ir"
)

const ex = "http://example.org/"

var testPrefixes = ir.DefaultPrefixes().With(map[string]string{"ex": ex})

// slot parses "?x" as a variable and anything else as a term.
func slot(s string) algebra.Var {
	if s[0] == '?' {
		return algebra.Variable(s[1:])
	}
	return algebra.Constant(ir.MustParseTerm(s, testPrefixes))
}

func sp(s, p, o string) *algebra.StatementPattern {
	return algebra.NewStatementPattern(slot(s), slot(p), slot(o))
}

func format(n algebra.Node) string {
	return algebra.FormatWith(n, testPrefixes)
}

// maxOwnedDepth returns the largest number of Owned nodes on any
// root-to-leaf path.
func maxOwnedDepth(n algebra.Node) int {
	best := 0
	for _, c := range n.Children() {
		best = max(best, maxOwnedDepth(c))
	}
	if _, ok := n.(*algebra.Owned); ok {
		best++
	}
	return best
}

func owned(inner algebra.Node, name string) *algebra.Owned {
	return algebra.NewOwned(inner, ir.IRI(ex+name), nil)
}

// staticResolver resolves from a fixed map.
type staticResolver map[ir.IRI]*descriptor.Descriptor

func (r staticResolver) Resolve(ref ir.IRI) (*descriptor.Descriptor, error) {
	d, ok := r[ref]
	if !ok {
		return nil, fmt.Errorf("unknown service %s", ref)
	}
	return d, nil
}

// searchDescriptor answers ?uri ex:matches ?token plus rank/label outputs.
func searchDescriptor(t *testing.T) *descriptor.Descriptor {
	t.Helper()
	v := func(name string) descriptor.Slot { return descriptor.Slot{Var: name} }
	c := func(local string) descriptor.Slot { return descriptor.Slot{Term: ir.IRI(ex + local)} }

	matches := descriptor.Pattern{Subject: v("uri"), Predicate: c("matches"), Object: v("token")}
	rank := descriptor.Pattern{Subject: v("uri"), Predicate: c("rank"), Object: v("rank")}
	label := descriptor.Pattern{Subject: v("uri"), Predicate: c("label"), Object: v("label")}

	return descriptor.New(ir.IRI(ex+"search"),
		[]descriptor.Pattern{matches, rank, label},
		descriptor.Parameter{Name: "token", Direction: descriptor.Input, ObjectPatterns: []descriptor.Pattern{matches}},
		descriptor.Parameter{Name: "uri", Direction: descriptor.Output, SubjectPatterns: []descriptor.Pattern{matches, rank, label}},
		descriptor.Parameter{Name: "rank", Direction: descriptor.Output, ObjectPatterns: []descriptor.Pattern{rank}},
		descriptor.Parameter{Name: "label", Direction: descriptor.Output, ObjectPatterns: []descriptor.Pattern{label}},
	)
}

// authorsDescriptor answers ?paper ex:author ?name for a given paper.
func authorsDescriptor(t *testing.T) *descriptor.Descriptor {
	t.Helper()
	author := descriptor.Pattern{
		Subject:   descriptor.Slot{Var: "paper"},
		Predicate: descriptor.Slot{Term: ir.IRI(ex + "author")},
		Object:    descriptor.Slot{Var: "name"},
	}
	return descriptor.New(ir.IRI(ex+"authors"),
		[]descriptor.Pattern{author},
		descriptor.Parameter{Name: "paper", Direction: descriptor.Input, SubjectPatterns: []descriptor.Pattern{author}},
		descriptor.Parameter{Name: "name", Direction: descriptor.Output, ObjectPatterns: []descriptor.Pattern{author}},
	)
}
