// Package harness runs federated query scenarios end to end.
//
// A scenario wires a triple store, a service database and a set of CUE
// service specs, then rewrites and evaluates one plan file. The outcome
// (rewritten plan, solutions and the trace of service invocations) is
// checked against expectations and, in tests, a golden snapshot.
//
// # Scenario Format
//
//	name: papers_by_author
//	description: "Authors joined with their papers from a SQL service"
//	services:
//	  - services/papers.cue
//	data: data/library.yaml
//	sql:
//	  - CREATE TABLE papers (id TEXT, author TEXT, title TEXT)
//	  - INSERT INTO papers VALUES ('p1', 'alice', 'Graph Databases')
//	query: queries/papers_by_author.yaml
//	parallelism: 1
//	cache_size: 0
//	max_invocations: 0
//	expect_error: ""
//	assertions:
//	  - type: row_count
//	    count: 3
//	  - type: rows_contain
//	    row: {name: '"Alice"', title: '"Graph Databases"'}
//	  - type: invocation_count
//	    service: ex:papers
//	    count: 2
//
// Paths are relative to the scenario file.
//
// # Assertion Types
//
//   - row_count: the query returns exactly count solutions
//   - rows_contain: some solution agrees with every entry of row
//   - row_order: the values of var, row by row, equal values
//   - invocation_count: service was invoked exactly count times
//   - plan_contains: the rewritten plan contains text
//
// Values are compact terms as the plan printer writes them: prefixed
// IRIs, quoted strings, "1"^^xsd:integer.
package harness
