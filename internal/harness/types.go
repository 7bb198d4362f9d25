package harness

// TraceEvent records one service invocation made while a scenario ran.
type TraceEvent struct {
	// Seq orders invocations within the run, starting at 1.
	Seq int64 `json:"seq"`

	// Service is the invoked service, compacted with the plan prefixes.
	Service string `json:"service"`

	// Inputs maps input parameter names to compacted terms.
	Inputs map[string]string `json:"inputs,omitempty"`

	// Rows counts the rows the service returned before it was closed.
	Rows int `json:"rows"`

	// Error is set when the invocation or its stream failed.
	Error string `json:"error,omitempty"`
}

// Row is one solution with every bound variable rendered compactly.
type Row map[string]string

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when the query behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	// Plan is the rewritten expression tree.
	Plan string `json:"plan"`

	// Rows are the query solutions in evaluation order.
	Rows []Row `json:"rows"`

	// Trace lists service invocations in sequence order.
	Trace []TraceEvent `json:"trace"`

	// QueryError is the evaluation error, if any.
	QueryError string `json:"query_error,omitempty"`

	// ErrorCode is the runtime error code of QueryError, when it has one.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Rows:   []Row{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Invocations returns the trace events of service, in order.
func (r *Result) Invocations(service string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Service == service {
			out = append(out, ev)
		}
	}
	return out
}
