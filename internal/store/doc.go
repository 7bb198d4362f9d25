// Package store provides a SQLite-backed triple store.
//
// The store is the local triple source the evaluator scans for statement
// patterns, and the backing data of the keyword search service.
//
// # Layout
//
// Each triple is one row. Subject, predicate and object are stored in their
// N-Triples string form, so term equality is string equality and lookups
// use plain indexes. Literal objects additionally carry their lexical form,
// datatype and language tag in separate columns for text search.
//
// # Deterministic Results
//
//   - Every query includes ORDER BY id ASC (insertion order)
//   - Duplicate triples are ignored on insert (UNIQUE(subject, predicate, object))
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
