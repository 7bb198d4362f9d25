// Package engine evaluates rewritten expression trees.
//
// Evaluation is a pipeline of pull iterators built from the tree by a
// visitor. Joins are bind joins: each left solution is passed into the
// right operand, so a delegated node on the right receives the variables
// bound on the left as service inputs.
//
// DELEGATED EVALUATION:
//
// Every Owned node, for every inbound binding, becomes a
// DelegatedEvaluation with the lifecycle
//
//	Created → BoundnessChecked → Invoking → Streaming → Closed
//
// and Failed reachable from any state before Closed. Required inputs are
// checked before the service is called; an unbound input fails with
// UNBOUND_REQUIRED_INPUT and the service is never invoked. Transport
// failures surface as *service.InvocationError and abort the query,
// unless the node is Silent or lies in the optional arm of a LeftJoin.
// The service stream is released exactly once, including when the
// consumer abandons iteration early.
//
// CONCURRENCY:
//
// With WithParallelism(n), n > 1, a join whose right side is an Owned
// node runs up to n invocations at once. The solutions of one left
// binding are emitted only after its invocation finished. Closing the
// iterator cancels and waits for every worker.
//
// The evaluator reads the Catalog and the TripleSource but never writes
// them; a rewritten tree is immutable during evaluation.
package engine
