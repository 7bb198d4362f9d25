package harness

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
	"github.com/roach88/fedq/internal/service/keyword"
	"github.com/roach88/fedq/internal/testutil"
)

// recorder collects the invocation trace of one run. Invokers built
// through traced report to it; it is safe for concurrent use since
// parallel joins invoke from several goroutines.
type recorder struct {
	mu       sync.Mutex
	clock    *testutil.DeterministicClock
	prefixes ir.Prefixes
	events   []TraceEvent
}

func newRecorder() *recorder {
	return &recorder{clock: testutil.NewDeterministicClock(), prefixes: ir.DefaultPrefixes()}
}

// setPrefixes sets the prefixes used to compact recorded terms.
func (r *recorder) setPrefixes(p ir.Prefixes) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = p
}

func (r *recorder) compact(t ir.Term) string {
	return ir.Compact(t, r.prefixes)
}

// begin appends an event and returns its index.
func (r *recorder) begin(ref ir.IRI, inputs map[string]ir.Term) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev := TraceEvent{Seq: r.clock.Next(), Service: r.compact(ref)}
	if len(inputs) > 0 {
		ev.Inputs = make(map[string]string, len(inputs))
		for name, t := range inputs {
			ev.Inputs[name] = r.compact(t)
		}
	}
	r.events = append(r.events, ev)
	return len(r.events) - 1
}

func (r *recorder) row(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[i].Rows++
}

func (r *recorder) fail(i int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events[i].Error == "" {
		r.events[i].Error = err.Error()
	}
}

func (r *recorder) trace() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// traced wraps a registry factory so that the invokers it builds record
// every call. Keyword searchers stay searchers.
func (r *recorder) traced(f service.Factory) service.Factory {
	return func(cfg service.Config) (service.Invoker, error) {
		inv, err := f(cfg)
		if err != nil {
			return nil, err
		}
		t := &tracedInvoker{rec: r, inner: inv}
		if ks, ok := inv.(service.KeywordSearcher); ok {
			return &tracedSearcher{tracedInvoker: t, searcher: ks}, nil
		}
		return t, nil
	}
}

func (r *recorder) stream(i int, rs service.RowStream, err error) (service.RowStream, error) {
	if err != nil {
		r.fail(i, err)
		return nil, err
	}
	if rs == nil {
		return nil, nil
	}
	return &tracedStream{RowStream: rs, rec: r, idx: i}, nil
}

type tracedInvoker struct {
	rec   *recorder
	inner service.Invoker
}

func (t *tracedInvoker) Invoke(ctx context.Context, cfg service.Config, inputs map[string]ir.Term) (service.RowStream, error) {
	i := t.rec.begin(cfg.ID, inputs)
	rs, err := t.inner.Invoke(ctx, cfg, inputs)
	return t.rec.stream(i, rs, err)
}

type tracedSearcher struct {
	*tracedInvoker
	searcher service.KeywordSearcher
}

// Search records a keyword search under the keyword service's input
// names. Several predicates or types are recorded comma-separated.
func (t *tracedSearcher) Search(ctx context.Context, cfg service.Config, q service.KeywordQuery) (service.RowStream, error) {
	inputs := map[string]ir.Term{keyword.InputQuery: ir.NewString(q.Text)}
	if q.Subject != nil {
		inputs[keyword.InputSubject] = q.Subject
	}
	i := t.rec.begin(cfg.ID, inputs)
	if len(q.Predicates) > 0 || len(q.Types) > 0 {
		t.rec.mu.Lock()
		ev := &t.rec.events[i]
		if len(q.Predicates) > 0 {
			ev.Inputs[keyword.InputPredicate] = t.rec.joinIRIs(q.Predicates)
		}
		if len(q.Types) > 0 {
			ev.Inputs[keyword.InputType] = t.rec.joinIRIs(q.Types)
		}
		t.rec.mu.Unlock()
	}
	rs, err := t.searcher.Search(ctx, cfg, q)
	return t.rec.stream(i, rs, err)
}

// joinIRIs must be called with r.mu held.
func (r *recorder) joinIRIs(iris []ir.IRI) string {
	parts := make([]string, len(iris))
	for i, iri := range iris {
		parts[i] = r.compact(iri)
	}
	return strings.Join(parts, ",")
}

// tracedStream counts rows into the recorder as they are read.
type tracedStream struct {
	service.RowStream
	rec *recorder
	idx int
}

func (s *tracedStream) Next() bool {
	if s.RowStream.Next() {
		s.rec.row(s.idx)
		return true
	}
	if err := s.RowStream.Err(); err != nil {
		s.rec.fail(s.idx, err)
	}
	return false
}
