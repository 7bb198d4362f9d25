package ir

import (
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Binding maps variable names (without '?') to the terms resolved so far
// along one evaluation path.
//
// A Binding only grows along a path. Operators never mutate a binding they
// received; they Clone or Merge into a fresh map.
type Binding map[string]Term

// NewBinding creates a binding from alternating name/term pairs supplied
// as a map. The map is copied.
func NewBinding(m map[string]Term) Binding {
	b := make(Binding, len(m))
	for k, v := range m {
		if v != nil {
			b[k] = v
		}
	}
	return b
}

// Clone returns an independent copy. Terms are immutable values, so a
// shallow map copy never aliases mutable state.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Get returns the term bound to name.
func (b Binding) Get(name string) (Term, bool) {
	t, ok := b[name]
	return t, ok && t != nil
}

// Has reports whether name is bound.
func (b Binding) Has(name string) bool {
	_, ok := b.Get(name)
	return ok
}

// With returns a copy of b with name bound to t.
func (b Binding) With(name string, t Term) Binding {
	out := b.Clone()
	out[name] = t
	return out
}

// Compatible reports whether every variable bound in both b and other is
// bound to the same term.
func (b Binding) Compatible(other Binding) bool {
	small, large := b, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for k, v := range small {
		if w, ok := large[k]; ok && !Equal(v, w) {
			return false
		}
	}
	return true
}

// Merge returns the union of b and other. The second result is false when
// the bindings conflict on a shared variable; the row must then be dropped.
// Neither input is modified.
func (b Binding) Merge(other Binding) (Binding, bool) {
	if !b.Compatible(other) {
		return nil, false
	}
	out := make(Binding, len(b)+len(other))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out, true
}

// Project returns a binding restricted to vars. Unbound vars are skipped.
func (b Binding) Project(vars []string) Binding {
	out := make(Binding, len(vars))
	for _, v := range vars {
		if t, ok := b.Get(v); ok {
			out[v] = t
		}
	}
	return out
}

// SortedKeys returns variable names in RFC 8785 canonical order (UTF-16
// code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (b Binding) SortedKeys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// termJSON is the SPARQL 1.1 JSON results encoding of a term.
type termJSON struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// MarshalTerm encodes a term in the SPARQL JSON results shape.
func MarshalTerm(t Term) ([]byte, error) {
	enc, err := encodeTerm(t)
	if err != nil {
		return nil, err
	}
	return json.Marshal(enc)
}

// UnmarshalTerm decodes a term from the SPARQL JSON results shape.
func UnmarshalTerm(data []byte) (Term, error) {
	var enc termJSON
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, err
	}
	return decodeTerm(enc)
}

func encodeTerm(t Term) (termJSON, error) {
	switch v := t.(type) {
	case IRI:
		return termJSON{Type: "uri", Value: string(v)}, nil
	case BlankNode:
		return termJSON{Type: "bnode", Value: string(v)}, nil
	case Literal:
		enc := termJSON{Type: "literal", Value: v.Lexical, Lang: v.Lang}
		if v.Lang == "" && v.Datatype != XSDString && v.Datatype != "" {
			enc.Datatype = string(v.Datatype)
		}
		return enc, nil
	default:
		return termJSON{}, fmt.Errorf("unsupported term type %T", t)
	}
}

func decodeTerm(enc termJSON) (Term, error) {
	switch enc.Type {
	case "uri":
		return IRI(enc.Value), nil
	case "bnode":
		return BlankNode(enc.Value), nil
	case "literal", "typed-literal":
		if enc.Lang != "" {
			return NewLangString(enc.Value, enc.Lang), nil
		}
		return NewTyped(enc.Value, IRI(enc.Datatype)), nil
	default:
		return nil, fmt.Errorf("unknown term type %q", enc.Type)
	}
}

// MarshalJSON encodes the binding as a SPARQL JSON results solution.
func (b Binding) MarshalJSON() ([]byte, error) {
	out := make(map[string]termJSON, len(b))
	for k, v := range b {
		if v == nil {
			continue
		}
		enc, err := encodeTerm(v)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", k, err)
		}
		out[k] = enc
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for Binding.
func (b *Binding) UnmarshalJSON(data []byte) error {
	var raw map[string]termJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = make(Binding, len(raw))
	for k, enc := range raw {
		t, err := decodeTerm(enc)
		if err != nil {
			return fmt.Errorf("binding %q: %w", k, err)
		}
		(*b)[k] = t
	}
	return nil
}
