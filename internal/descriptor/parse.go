package descriptor

import (
	"github.com/roach88/fedq/internal/ir"
)

// Diagnostic reports a parameter that was omitted from the descriptor.
type Diagnostic struct {
	Parameter string
	Message   string
}

// Result is the outcome of Parse.
type Result struct {
	Descriptor *Descriptor

	// Diagnostics lists parameters that could not be classified. They are
	// not part of Descriptor.
	Diagnostics []Diagnostic
}

// paramLink is a parameter entity and the direction its link declares.
type paramLink struct {
	node      ir.Term
	direction Direction
}

// Parse reads the descriptor rooted at root from g.
//
// Parameters are the objects of fed:hasInputParameter and
// fed:hasOutputParameter, whose direction is declared by the link, and of
// fed:hasParameter, whose direction is inferred from pattern positions:
// object-only is an input, subject-only is an output. A parameter that is
// both subject and object of the service's patterns has an ambiguous
// direction; it is omitted and reported in Result.Diagnostics.
//
// Parse fails with MalformedDescriptorError when the root is missing or
// untyped, a pattern or parameter is incomplete, a name is duplicated, or
// a parameter occurs in no pattern at all.
func Parse(g ir.Graph, root ir.Term) (*Result, error) {
	if root == nil || !g.Mentions(root) {
		return nil, malformed(root, "", "root entity not found")
	}
	if !g.Has(root, ir.RDFType, Service) {
		return nil, malformed(root, "", "root entity is not typed %s", Service)
	}

	patterns, err := parsePatterns(g, root)
	if err != nil {
		return nil, err
	}

	var links []paramLink
	for _, n := range g.Objects(root, HasInputParameter) {
		links = append(links, paramLink{node: n, direction: Input})
	}
	for _, n := range g.Objects(root, HasOutputParameter) {
		links = append(links, paramLink{node: n, direction: Output})
	}
	for _, n := range g.Objects(root, HasParameter) {
		links = append(links, paramLink{node: n, direction: DirectionUnknown})
	}

	result := &Result{}
	seen := make(map[string]bool, len(links))
	var params []Parameter

	for _, link := range links {
		name, err := parameterName(g, root, link.node)
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, malformed(root, name, "duplicate parameter name")
		}
		seen[name] = true

		p := Parameter{Name: name, Optional: isTrue(g, link.node, Optional)}
		for _, pat := range patterns {
			if pat.Subject.Var == name {
				p.SubjectPatterns = append(p.SubjectPatterns, pat)
			}
			if pat.Object.Var == name {
				p.ObjectPatterns = append(p.ObjectPatterns, pat)
			}
		}

		if len(p.ObjectPatterns) == 0 && len(p.SubjectPatterns) == 0 {
			return nil, malformed(root, name, "parameter occurs in no pattern")
		}

		p.Direction = link.direction
		if p.Direction == DirectionUnknown {
			p.Direction = classify(p)
		}
		if p.Direction == DirectionUnknown {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Parameter: name,
				Message:   "ambiguous direction: occurs as both subject and object",
			})
			continue
		}
		params = append(params, p)
	}

	result.Descriptor = New(root, patterns, params...)
	return result, nil
}

// classify infers a direction from pattern positions.
func classify(p Parameter) Direction {
	switch {
	case len(p.ObjectPatterns) > 0 && len(p.SubjectPatterns) == 0:
		return Input
	case len(p.SubjectPatterns) > 0 && len(p.ObjectPatterns) == 0:
		return Output
	default:
		return DirectionUnknown
	}
}

func parsePatterns(g ir.Graph, root ir.Term) ([]Pattern, error) {
	nodes := g.Objects(root, HasPattern)
	patterns := make([]Pattern, 0, len(nodes))
	for i, n := range nodes {
		s, err := parseSlot(g, root, n, Subject, i)
		if err != nil {
			return nil, err
		}
		p, err := parseSlot(g, root, n, Predicate, i)
		if err != nil {
			return nil, err
		}
		o, err := parseSlot(g, root, n, Object, i)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, Pattern{Subject: s, Predicate: p, Object: o})
	}
	return patterns, nil
}

// parseSlot reads one position of a pattern node. A value that itself
// carries fed:varName is a variable; anything else is a constant.
func parseSlot(g ir.Graph, root, node ir.Term, position ir.IRI, index int) (Slot, error) {
	v, ok := g.Object(node, position)
	if !ok {
		return Slot{}, malformed(root, "", "pattern %d: missing %s", index, position)
	}
	if _, isLit := v.(ir.Literal); !isLit {
		if name, ok := g.Object(v, VarName); ok {
			lit, isLit := name.(ir.Literal)
			if !isLit || lit.Lexical == "" {
				return Slot{}, malformed(root, "", "pattern %d: %s must be a non-empty literal", index, VarName)
			}
			return Slot{Var: lit.Lexical}, nil
		}
	}
	return Slot{Term: v}, nil
}

func parameterName(g ir.Graph, root, node ir.Term) (string, error) {
	v, ok := g.Object(node, Name)
	if !ok {
		return "", malformed(root, "", "parameter %s has no %s", node, Name)
	}
	lit, isLit := v.(ir.Literal)
	if !isLit || lit.Lexical == "" {
		return "", malformed(root, "", "parameter %s: %s must be a non-empty literal", node, Name)
	}
	return lit.Lexical, nil
}

func isTrue(g ir.Graph, node ir.Term, pred ir.IRI) bool {
	v, ok := g.Object(node, pred)
	if !ok {
		return false
	}
	lit, isLit := v.(ir.Literal)
	if !isLit {
		return false
	}
	return lit.Lexical == "true" || lit.Lexical == "1"
}
