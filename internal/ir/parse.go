package ir

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTerm is returned when a term string cannot be parsed.
var ErrInvalidTerm = errors.New("invalid term")

// ParseTerm parses the compact term syntax used by plan files and service
// specs:
//
//	<http://example.org/x>   IRI
//	ex:x                     prefixed name (resolved against prefixes)
//	a                        rdf:type
//	_:b0                     blank node
//	"text"                   xsd:string
//	"text"@en                language-tagged string
//	"42"^^xsd:int            typed literal (datatype as IRI or prefixed name)
//	42, 4.2, 4e2             xsd:integer, xsd:decimal, xsd:double
//	true, false              xsd:boolean
//
// Variables are not terms; callers strip the leading '?' before calling.
func ParseTerm(s string, prefixes Prefixes) (Term, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTerm)
	}

	switch {
	case s[0] == '<':
		if !strings.HasSuffix(s, ">") || len(s) < 3 {
			return nil, fmt.Errorf("%w: unterminated IRI %q", ErrInvalidTerm, s)
		}
		return IRI(s[1 : len(s)-1]), nil
	case strings.HasPrefix(s, "_:"):
		if len(s) == 2 {
			return nil, fmt.Errorf("%w: empty blank node label", ErrInvalidTerm)
		}
		return BlankNode(s[2:]), nil
	case s[0] == '"':
		return parseLiteral(s, prefixes)
	case s == "a":
		return RDFType, nil
	case s == "true" || s == "false":
		return NewTyped(s, XSDBoolean), nil
	}

	if lit, ok := parseNumber(s); ok {
		return lit, nil
	}

	return expandPrefixed(s, prefixes)
}

// MustParseTerm is like ParseTerm but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParseTerm(s string, prefixes Prefixes) Term {
	t, err := ParseTerm(s, prefixes)
	if err != nil {
		panic(err)
	}
	return t
}

func parseLiteral(s string, prefixes Prefixes) (Term, error) {
	quoted, err := strconv.QuotedPrefix(s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad literal %q", ErrInvalidTerm, s)
	}
	lexical, err := strconv.Unquote(quoted)
	if err != nil {
		return nil, fmt.Errorf("%w: bad literal %q", ErrInvalidTerm, s)
	}

	rest := s[len(quoted):]
	switch {
	case rest == "":
		return NewString(lexical), nil
	case strings.HasPrefix(rest, "@"):
		if len(rest) == 1 {
			return nil, fmt.Errorf("%w: empty language tag in %q", ErrInvalidTerm, s)
		}
		return NewLangString(lexical, rest[1:]), nil
	case strings.HasPrefix(rest, "^^"):
		dt, err := ParseTerm(rest[2:], prefixes)
		if err != nil {
			return nil, err
		}
		iri, ok := dt.(IRI)
		if !ok {
			return nil, fmt.Errorf("%w: datatype must be an IRI in %q", ErrInvalidTerm, s)
		}
		return NewTyped(lexical, iri), nil
	default:
		return nil, fmt.Errorf("%w: trailing characters after literal %q", ErrInvalidTerm, s)
	}
}

func parseNumber(s string) (Literal, bool) {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NewTyped(s, XSDInteger), true
	}
	// ParseFloat also accepts "Inf", "NaN" and hex floats; those are names here.
	if strings.Trim(s, "0123456789+-.eE") != "" {
		return Literal{}, false
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return Literal{}, false
	}
	if strings.ContainsAny(s, "eE") {
		return NewTyped(s, XSDDouble), true
	}
	return NewTyped(s, XSDDecimal), true
}

func expandPrefixed(s string, prefixes Prefixes) (Term, error) {
	prefix, local, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTerm, s)
	}
	ns, known := prefixes[prefix]
	if !known {
		return nil, fmt.Errorf("%w: unknown prefix %q in %q", ErrInvalidTerm, prefix, s)
	}
	return IRI(ns + local), nil
}

// Compact renders a term using the shortest matching prefix, falling back
// to String. Used for human-readable plans.
func Compact(t Term, prefixes Prefixes) string {
	iri, ok := t.(IRI)
	if !ok {
		if lit, isLit := t.(Literal); isLit && lit.Lang == "" && lit.Datatype != XSDString && lit.Datatype != "" {
			return strconv.Quote(lit.Lexical) + "^^" + Compact(lit.Datatype, prefixes)
		}
		if t == nil {
			return "UNDEF"
		}
		return t.String()
	}
	if iri == RDFType {
		return "a"
	}
	best, bestNS := "", ""
	for prefix, ns := range prefixes {
		if !strings.HasPrefix(string(iri), ns) || len(ns) < len(bestNS) {
			continue
		}
		// Deterministic tie-break between prefixes bound to the same namespace.
		if len(ns) == len(bestNS) && best != "" && prefix > best {
			continue
		}
		best, bestNS = prefix, ns
	}
	if bestNS == "" {
		return iri.String()
	}
	return best + ":" + strings.TrimPrefix(string(iri), bestNS)
}
