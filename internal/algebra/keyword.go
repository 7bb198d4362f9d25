package algebra

import "slices"

// KeywordPattern bundles the slots of a full-text search clause. Every
// slot may be absent (nil pointer or empty list).
type KeywordPattern struct {
	Subject    *Var  // resource the text belongs to
	Predicates []Var // properties to search; empty means any literal
	Value      *Var  // search expression
	Score      *Var
	Snippet    *Var
	Match      *Var  // matched literal
	Types      []Var // rdf:type restrictions on Subject
}

// Clone returns a deep copy. No pointer or slice is shared with p.
func (p KeywordPattern) Clone() KeywordPattern {
	return KeywordPattern{
		Subject:    cloneVar(p.Subject),
		Predicates: slices.Clone(p.Predicates),
		Value:      cloneVar(p.Value),
		Score:      cloneVar(p.Score),
		Snippet:    cloneVar(p.Snippet),
		Match:      cloneVar(p.Match),
		Types:      slices.Clone(p.Types),
	}
}

// Complete reports whether the required slots (subject and value) are
// present.
func (p KeywordPattern) Complete() bool {
	return p.Subject != nil && p.Value != nil
}

func cloneVar(v *Var) *Var {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// VarPtr returns a pointer to a copy of v. Convenience for building
// patterns.
func VarPtr(v Var) *Var { return &v }
