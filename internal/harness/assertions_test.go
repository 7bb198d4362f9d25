package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	r := NewResult()
	r.Plan = "Root\n  Owned ex:papers [author=?author]\n"
	r.Rows = []Row{
		{"doc": "ex:d1", "paper": "ex:p1"},
		{"doc": "ex:d1", "paper": "ex:p2"},
		{"doc": "ex:d2"},
	}
	r.Trace = []TraceEvent{
		{Seq: 1, Service: "ex:papers", Inputs: map[string]string{"author": "ex:alice"}, Rows: 2},
		{Seq: 2, Service: "ex:search", Inputs: map[string]string{"query": `"graph"`}, Rows: 0},
		{Seq: 3, Service: "ex:papers", Inputs: map[string]string{"author": "ex:bob"}, Rows: 0, Error: "boom"},
	}
	return r
}

func TestAssertRowCount(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, assertRowCount(r, Assertion{Type: AssertRowCount, Count: 3}))

	err := assertRowCount(r, Assertion{Type: AssertRowCount, Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 2 rows")
	assert.Contains(t, err.Error(), "Actual: 3 rows")
}

func TestAssertRowsContainIsSubsetMatch(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, assertRowsContain(r, Assertion{Row: map[string]string{"paper": "ex:p2"}}))
	assert.NoError(t, assertRowsContain(r, Assertion{Row: map[string]string{"?doc": "ex:d1", "paper": "ex:p1"}}))

	err := assertRowsContain(r, Assertion{Row: map[string]string{"doc": "ex:d2", "paper": "ex:p1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "?doc=ex:d2 ?paper=ex:p1")
}

func TestAssertRowOrderSkipsUnbound(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, assertRowOrder(r, Assertion{Var: "paper", Values: []string{"ex:p1", "ex:p2"}}))

	err := assertRowOrder(r, Assertion{Var: "?paper", Values: []string{"ex:p2", "ex:p1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "?paper = [ex:p1, ex:p2]")
}

func TestAssertInvocationCount(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, assertInvocationCount(r, Assertion{Service: "ex:papers", Count: 2}))
	assert.NoError(t, assertInvocationCount(r, Assertion{Service: "ex:other", Count: 0}))
	assert.Error(t, assertInvocationCount(r, Assertion{Service: "ex:search", Count: 2}))
}

func TestAssertPlanContains(t *testing.T) {
	r := sampleResult()
	assert.NoError(t, assertPlanContains(r, Assertion{Text: "Owned ex:papers"}))
	assert.Error(t, assertPlanContains(r, Assertion{Text: "KeywordSearch"}))
}

func TestEvaluateAssertions(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertRowCount, Count: 3},
		{Type: AssertInvocationCount, Service: "ex:papers", Count: 5},
		{Type: "final_state"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "invocation_count")
	assert.Contains(t, errs[1], `unknown assertion type "final_state"`)
}

func TestAssertionErrorIncludesRowsAndTrace(t *testing.T) {
	err := assertRowCount(sampleResult(), Assertion{Count: 0})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: row_count")
	assert.Contains(t, msg, "Rows:\n  ?doc=ex:d1 ?paper=ex:p1\n")
	assert.Contains(t, msg, "Trace:\n  1 ex:papers author=ex:alice rows=2\n")
	assert.Contains(t, msg, `3 ex:papers author=ex:bob rows=0 error="boom"`)
}

func TestFormatRowEmpty(t *testing.T) {
	assert.Equal(t, "{}", formatRow(Row{}))
}
