package ir

// Triple is one subject/predicate/object statement.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

func (t Triple) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String() + " ."
}

// Graph is an unordered set of triples. Lookups are linear; descriptor
// graphs are small and parsed once.
type Graph []Triple

// Add appends a triple.
func (g *Graph) Add(s, p, o Term) {
	*g = append(*g, Triple{Subject: s, Predicate: p, Object: o})
}

// Objects returns every object of (s, p, *) in graph order.
func (g Graph) Objects(s, p Term) []Term {
	var out []Term
	for _, t := range g {
		if Equal(t.Subject, s) && Equal(t.Predicate, p) {
			out = append(out, t.Object)
		}
	}
	return out
}

// Object returns the first object of (s, p, *).
func (g Graph) Object(s, p Term) (Term, bool) {
	for _, t := range g {
		if Equal(t.Subject, s) && Equal(t.Predicate, p) {
			return t.Object, true
		}
	}
	return nil, false
}

// Subjects returns every subject of (*, p, o) in graph order.
func (g Graph) Subjects(p, o Term) []Term {
	var out []Term
	for _, t := range g {
		if Equal(t.Predicate, p) && Equal(t.Object, o) {
			out = append(out, t.Subject)
		}
	}
	return out
}

// Has reports whether the exact triple is present.
func (g Graph) Has(s, p, o Term) bool {
	for _, t := range g {
		if Equal(t.Subject, s) && Equal(t.Predicate, p) && Equal(t.Object, o) {
			return true
		}
	}
	return false
}

// Mentions reports whether the term occurs as subject of any triple.
func (g Graph) Mentions(s Term) bool {
	for _, t := range g {
		if Equal(t.Subject, s) {
			return true
		}
	}
	return false
}
