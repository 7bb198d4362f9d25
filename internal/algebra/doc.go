// Package algebra defines the expression tree that every rewrite pass and
// the evaluator operate on.
//
// The tree is a closed set of node kinds sharing the Node interface, plus
// double-dispatch traversal through Visitor. Node kinds defined outside
// this package embed Base and are dispatched to Visitor.VisitOther, so an
// unrecognised extension is always traversed transparently.
//
// Ownership rules:
//   - Every node has at most one parent. Constructors adopt their children
//     and panic when a child is already owned.
//   - ReplaceWith moves a parentless node into the exact position of an
//     existing one and returns the old node, now parentless.
//   - Trees are rooted in a Root node, so replacing the top-level operator
//     is an ordinary child replacement.
//   - Clone returns a parentless deep copy that shares no mutable state
//     with the original.
package algebra
