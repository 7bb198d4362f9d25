package ir

// Namespaces used across fedq.
const (
	NamespaceRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NamespaceRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	NamespaceXSD  = "http://www.w3.org/2001/XMLSchema#"
	NamespaceOWL  = "http://www.w3.org/2002/07/owl#"

	// NamespaceFed is the service descriptor vocabulary.
	NamespaceFed = "http://fedq.dev/ns/federation#"

	// NamespaceFTS is the keyword search vocabulary recognised by the
	// rewriter.
	NamespaceFTS = "http://fedq.dev/ns/fts#"
)

// Well-known IRIs.
const (
	RDFType       IRI = NamespaceRDF + "type"
	RDFLangString IRI = NamespaceRDF + "langString"
	RDFSLabel     IRI = NamespaceRDFS + "label"

	XSDString   IRI = NamespaceXSD + "string"
	XSDInteger  IRI = NamespaceXSD + "integer"
	XSDInt      IRI = NamespaceXSD + "int"
	XSDLong     IRI = NamespaceXSD + "long"
	XSDDecimal  IRI = NamespaceXSD + "decimal"
	XSDDouble   IRI = NamespaceXSD + "double"
	XSDFloat    IRI = NamespaceXSD + "float"
	XSDBoolean  IRI = NamespaceXSD + "boolean"
	XSDDateTime IRI = NamespaceXSD + "dateTime"
)

// Prefixes maps a prefix label (without colon) to a namespace IRI.
type Prefixes map[string]string

// DefaultPrefixes returns the prefixes every fedq document may use without
// declaring them. The returned map is a fresh copy.
func DefaultPrefixes() Prefixes {
	return Prefixes{
		"rdf":  NamespaceRDF,
		"rdfs": NamespaceRDFS,
		"xsd":  NamespaceXSD,
		"owl":  NamespaceOWL,
		"fed":  NamespaceFed,
		"fts":  NamespaceFTS,
	}
}

// With returns a copy of p extended with extra. Entries in extra win.
func (p Prefixes) With(extra map[string]string) Prefixes {
	out := make(Prefixes, len(p)+len(extra))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
