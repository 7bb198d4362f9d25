package planfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fedq/internal/ir"
)

type dataDocument struct {
	Prefixes map[string]string `yaml:"prefixes"`
	Triples  []yaml.Node        `yaml:"triples"`
}

// DecodeData reads a data document: prefixes plus a list of
// [subject, predicate, object] triples in term syntax.
//
//	prefixes:
//	  ex: http://example.org/
//	triples:
//	  - [ex:p1, a, ex:Paper]
//	  - [ex:p1, ex:title, "Graph Databases"]
func DecodeData(r io.Reader) (ir.Graph, error) {
	var doc dataDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &DecodeError{Message: err.Error()}
	}

	d := &decoder{prefixes: ir.DefaultPrefixes().With(doc.Prefixes)}
	g := make(ir.Graph, 0, len(doc.Triples))
	for i := range doc.Triples {
		n := &doc.Triples[i]
		if n.Kind != yaml.SequenceNode || len(n.Content) != 3 {
			return nil, errorf(n, "triple: want [subject, predicate, object]")
		}
		var terms [3]ir.Term
		for j, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return nil, errorf(c, "triple: want a scalar")
			}
			t, err := d.term(c)
			if err != nil {
				return nil, err
			}
			terms[j] = t
		}
		if _, ok := terms[0].(ir.Literal); ok {
			return nil, errorf(n.Content[0], "triple: literal subject %s", terms[0])
		}
		if _, ok := terms[1].(ir.IRI); !ok {
			return nil, errorf(n.Content[1], "triple: predicate %s is not an IRI", terms[1])
		}
		g.Add(terms[0], terms[1], terms[2])
	}
	return g, nil
}

// DecodeDataFile reads a data document from path.
func DecodeDataFile(path string) (ir.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data: %w", err)
	}
	defer f.Close()

	g, err := DecodeData(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}
