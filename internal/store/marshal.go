package store

import (
	"fmt"

	"github.com/roach88/fedq/internal/ir"
)

// objectColumns holds the column values of a triple's object.
type objectColumns struct {
	kind     string
	lexical  string
	datatype string
	lang     string
}

// marshalTerm converts a term to its stored N-Triples form.
func marshalTerm(t ir.Term) (string, error) {
	if t == nil {
		return "", fmt.Errorf("marshal term: nil term")
	}
	return t.String(), nil
}

// marshalObject splits an object term into its searchable columns.
func marshalObject(t ir.Term) (objectColumns, error) {
	switch v := t.(type) {
	case ir.IRI:
		return objectColumns{kind: "iri", lexical: string(v)}, nil
	case ir.BlankNode:
		return objectColumns{kind: "bnode", lexical: string(v)}, nil
	case ir.Literal:
		return objectColumns{kind: "literal", lexical: v.Lexical, datatype: string(v.Datatype), lang: v.Lang}, nil
	default:
		return objectColumns{}, fmt.Errorf("marshal object: unsupported term %T", t)
	}
}

// unmarshalTerm parses a stored N-Triples form back into a term.
func unmarshalTerm(s string) (ir.Term, error) {
	t, err := ir.ParseTerm(s, nil)
	if err != nil {
		return nil, fmt.Errorf("unmarshal term %q: %w", s, err)
	}
	return t, nil
}
