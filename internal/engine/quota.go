package engine

import "sync/atomic"

// InvocationQuota bounds the number of service invocations one evaluation
// may issue. A bind join with a delegated right side invokes the service
// once per left solution, so a large left side can fan out into thousands
// of remote calls; the quota turns that into a QUOTA_EXCEEDED error.
//
// Each evaluation has its own quota. It is safe for concurrent use by the
// parallel join workers.
type InvocationQuota struct {
	limit int
	used  atomic.Int64
}

// NewInvocationQuota creates a quota. A limit of zero or less is unlimited.
func NewInvocationQuota(limit int) *InvocationQuota {
	return &InvocationQuota{limit: limit}
}

// Acquire records one invocation and fails once the limit is passed.
func (q *InvocationQuota) Acquire(queryID string) error {
	n := int(q.used.Add(1))
	if q.limit > 0 && n > q.limit {
		return NewQuotaError(queryID, n, q.limit)
	}
	return nil
}

// Used returns the number of invocations recorded.
func (q *InvocationQuota) Used() int {
	return int(q.used.Load())
}
