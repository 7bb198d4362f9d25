package testutil

// DefaultQueryID is used when a scenario names no query ID.
const DefaultQueryID = "test-query-default"

// FixedQueryID hands out the same query ID on every call.
//
// engine.FixedGenerator returns a planned sequence and panics when it runs
// out; FixedQueryID never runs out, which suits scenarios that evaluate
// an unknown number of queries. Stateless and safe for concurrent use.
type FixedQueryID struct {
	id string
}

// NewFixedQueryID returns a generator for id, or DefaultQueryID when id
// is empty.
func NewFixedQueryID(id string) *FixedQueryID {
	if id == "" {
		id = DefaultQueryID
	}
	return &FixedQueryID{id: id}
}

// Generate implements engine.QueryIDGenerator.
func (g *FixedQueryID) Generate() string {
	return g.id
}
