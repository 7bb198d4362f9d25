package ir

import (
	"cmp"
	"strconv"
	"strings"
)

// Term is a sealed interface representing an RDF term.
// Only IRI, Literal and BlankNode implement this.
//
// All variants are comparable value types: two terms are equal iff
// a == b.
type Term interface {
	term() // Sealed - only these types implement it

	// String returns the N-Triples style rendering of the term.
	String() string
}

// IRI is an absolute IRI reference.
type IRI string

func (IRI) term() {}

func (i IRI) String() string { return "<" + string(i) + ">" }

// BlankNode is a blank node identified by a document-local label.
type BlankNode string

func (BlankNode) term() {}

func (b BlankNode) String() string { return "_:" + string(b) }

// Literal is an RDF literal. Datatype is always set by the constructors;
// language-tagged literals carry rdf:langString.
type Literal struct {
	Lexical  string
	Datatype IRI
	Lang     string
}

func (Literal) term() {}

func (l Literal) String() string {
	q := strconv.Quote(l.Lexical)
	switch {
	case l.Lang != "":
		return q + "@" + l.Lang
	case l.Datatype == "" || l.Datatype == XSDString:
		return q
	default:
		return q + "^^" + l.Datatype.String()
	}
}

// NewString creates an xsd:string literal.
func NewString(s string) Literal {
	return Literal{Lexical: s, Datatype: XSDString}
}

// NewLangString creates a language-tagged literal.
func NewLangString(s, lang string) Literal {
	return Literal{Lexical: s, Datatype: RDFLangString, Lang: strings.ToLower(lang)}
}

// NewTyped creates a literal with an explicit datatype.
func NewTyped(lexical string, datatype IRI) Literal {
	if datatype == "" {
		datatype = XSDString
	}
	return Literal{Lexical: lexical, Datatype: datatype}
}

// NewInteger creates an xsd:integer literal.
func NewInteger(n int64) Literal {
	return Literal{Lexical: strconv.FormatInt(n, 10), Datatype: XSDInteger}
}

// NewDouble creates an xsd:double literal.
func NewDouble(f float64) Literal {
	return Literal{Lexical: strconv.FormatFloat(f, 'g', -1, 64), Datatype: XSDDouble}
}

// NewBoolean creates an xsd:boolean literal.
func NewBoolean(b bool) Literal {
	return Literal{Lexical: strconv.FormatBool(b), Datatype: XSDBoolean}
}

// IsNumeric reports whether the literal has one of the XSD numeric datatypes.
func (l Literal) IsNumeric() bool {
	switch l.Datatype {
	case XSDInteger, XSDInt, XSDLong, XSDDecimal, XSDDouble, XSDFloat:
		return true
	}
	return false
}

// Float returns the numeric value of a numeric literal.
func (l Literal) Float() (float64, bool) {
	if !l.IsNumeric() {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(l.Lexical), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Bool returns the value of an xsd:boolean literal.
func (l Literal) Bool() (bool, bool) {
	if l.Datatype != XSDBoolean {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(l.Lexical))
	if err != nil {
		return false, false
	}
	return b, true
}

// Lexical returns the bare value of a term: the IRI text, the literal's
// lexical form or the blank node label. Adapters use it to encode inputs
// for external services.
func Lexical(t Term) string {
	switch v := t.(type) {
	case IRI:
		return string(v)
	case Literal:
		return v.Lexical
	case BlankNode:
		return string(v)
	default:
		return ""
	}
}

// Equal reports whether two terms are identical. Nil terms are only equal
// to nil.
func Equal(a, b Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

// CompareTerms defines the ordering used by ORDER BY:
// unbound < blank nodes < IRIs < literals. Numeric literals compare by
// value; other literals by lexical form, then datatype, then language.
func CompareTerms(a, b Term) int {
	if r := cmp.Compare(termRank(a), termRank(b)); r != 0 {
		return r
	}
	switch av := a.(type) {
	case BlankNode:
		return strings.Compare(string(av), string(b.(BlankNode)))
	case IRI:
		return strings.Compare(string(av), string(b.(IRI)))
	case Literal:
		bv := b.(Literal)
		af, aok := av.Float()
		bf, bok := bv.Float()
		if aok && bok {
			if r := cmp.Compare(af, bf); r != 0 {
				return r
			}
		}
		if r := strings.Compare(av.Lexical, bv.Lexical); r != 0 {
			return r
		}
		if r := strings.Compare(string(av.Datatype), string(bv.Datatype)); r != 0 {
			return r
		}
		return strings.Compare(av.Lang, bv.Lang)
	}
	return 0
}

func termRank(t Term) int {
	switch t.(type) {
	case nil:
		return 0
	case BlankNode:
		return 1
	case IRI:
		return 2
	case Literal:
		return 3
	default:
		return 4
	}
}
