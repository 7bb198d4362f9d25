// Package ir provides the value layer shared by every fedq package: RDF
// terms, triples, graphs and binding contexts.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal. This keeps the term model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Term is a sealed interface (IRI, Literal, BlankNode). Terms are plain
//     comparable values, so == is structural equality.
//   - Binding never aliases: Clone and Merge always allocate.
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the ONLY encoding
//     used for hashing bindings and invocation inputs.
package ir
