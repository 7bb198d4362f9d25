package rewrite

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/ir"
)

// Keyword search vocabulary.
const (
	FTSSearch    ir.IRI = ir.NamespaceFTS + "search"
	FTSPredicate ir.IRI = ir.NamespaceFTS + "predicate"
	FTSScore     ir.IRI = ir.NamespaceFTS + "score"
	FTSSnippet   ir.IRI = ir.NamespaceFTS + "snippet"
	FTSMatch     ir.IRI = ir.NamespaceFTS + "match"
	FTSType      ir.IRI = ir.NamespaceFTS + "type"
)

func isKeywordPredicate(v algebra.Var) bool {
	switch v.Value {
	case FTSSearch, FTSPredicate, FTSScore, FTSSnippet, FTSMatch, FTSType:
		return true
	}
	return false
}

// ExtractKeywordSearch consolidates keyword search constellations into
// KeywordSearch nodes.
//
// Within every maximal join group (and every statement pattern outside a
// join), the patterns whose predicate is an fts: term are grouped by
// subject. A group with exactly one fts:search pattern becomes one
// KeywordSearch, placed where the group's first pattern was. Groups that
// do not form a complete clause are left as ordinary patterns. Subtrees
// delegated to a service are not inspected.
func ExtractKeywordSearch(root *algebra.Root) error {
	var groups []algebra.Node
	algebra.Inspect(root, func(n algebra.Node) bool {
		switch n.(type) {
		case *algebra.Owned, *algebra.Service:
			return false
		case *algebra.Join, *algebra.NaryJoin, *algebra.StatementPattern:
			if !isJoin(n.Parent()) {
				groups = append(groups, n)
			}
		}
		return true
	})

	for _, g := range groups {
		if err := extractGroup(g); err != nil {
			return err
		}
	}
	return nil
}

func isJoin(n algebra.Node) bool {
	switch n.(type) {
	case *algebra.Join, *algebra.NaryJoin:
		return true
	}
	return false
}

func extractGroup(group algebra.Node) error {
	leaves := joinLeaves(group)

	// Candidate patterns keyed by subject, in first-seen order.
	bySubject := map[algebra.Var][]*algebra.StatementPattern{}
	var subjects []algebra.Var
	for _, leaf := range leaves {
		sp, ok := leaf.(*algebra.StatementPattern)
		if !ok || !isKeywordPredicate(sp.Predicate) || !sp.Context.IsZero() {
			continue
		}
		if _, seen := bySubject[sp.Subject]; !seen {
			subjects = append(subjects, sp.Subject)
		}
		bySubject[sp.Subject] = append(bySubject[sp.Subject], sp)
	}

	consumed := map[algebra.Node]*algebra.KeywordSearch{}
	first := map[algebra.Node]bool{}
	for _, subj := range subjects {
		members := bySubject[subj]
		pattern, err := recognizeKeyword(members)
		if err != nil {
			continue // ErrUnsupportedShape: leave the patterns alone
		}
		ks := algebra.NewKeywordSearch(pattern)
		for _, m := range members {
			consumed[m] = ks
		}
		first[members[0]] = true
	}
	if len(consumed) == 0 {
		return nil
	}

	var rebuilt []algebra.Node
	for _, leaf := range leaves {
		ks, isConsumed := consumed[leaf]
		if !isConsumed {
			taken, err := algebra.Take(leaf)
			if err != nil {
				return err
			}
			rebuilt = append(rebuilt, taken)
			continue
		}
		if first[leaf] {
			rebuilt = append(rebuilt, ks)
		}
	}

	replacement := rebuilt[0]
	for _, n := range rebuilt[1:] {
		replacement = algebra.NewJoin(replacement, n)
	}
	_, err := algebra.ReplaceWith(group, replacement)
	return err
}

// recognizeKeyword builds a pattern from the fts: statements sharing one
// subject. It requires exactly one fts:search and at most one of each
// scalar result slot.
func recognizeKeyword(members []*algebra.StatementPattern) (algebra.KeywordPattern, error) {
	subject := members[0].Subject
	p := algebra.KeywordPattern{Subject: algebra.VarPtr(subject)}

	setOnce := func(slot **algebra.Var, v algebra.Var) error {
		if *slot != nil {
			return fmt.Errorf("%w: repeated slot", ErrUnsupportedShape)
		}
		*slot = algebra.VarPtr(v)
		return nil
	}

	for _, m := range members {
		var err error
		switch m.Predicate.Value {
		case FTSSearch:
			err = setOnce(&p.Value, m.Object)
		case FTSScore:
			err = setOnce(&p.Score, m.Object)
		case FTSSnippet:
			err = setOnce(&p.Snippet, m.Object)
		case FTSMatch:
			err = setOnce(&p.Match, m.Object)
		case FTSPredicate:
			p.Predicates = append(p.Predicates, m.Object)
		case FTSType:
			p.Types = append(p.Types, m.Object)
		}
		if err != nil {
			return algebra.KeywordPattern{}, err
		}
	}

	if !p.Complete() {
		return algebra.KeywordPattern{}, fmt.Errorf("%w: no %s value", ErrUnsupportedShape, FTSSearch)
	}

	// List slots are sets; sort so recognition does not depend on the
	// order the patterns were written in.
	slices.SortFunc(p.Predicates, compareVars)
	slices.SortFunc(p.Types, compareVars)
	return p, nil
}

func compareVars(a, b algebra.Var) int {
	return strings.Compare(a.String(), b.String())
}
