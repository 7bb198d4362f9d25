package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
)

const ex = "http://example.org/"

func iri(local string) ir.IRI { return ir.IRI(ex + local) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// searchDescriptor is a service taking a token and returning documents
// with a rank.
func searchDescriptor() *descriptor.Descriptor {
	matches := descriptor.Pattern{
		Subject:   descriptor.Slot{Var: "uri"},
		Predicate: descriptor.Slot{Term: iri("matches")},
		Object:    descriptor.Slot{Var: "token"},
	}
	rank := descriptor.Pattern{
		Subject:   descriptor.Slot{Var: "uri"},
		Predicate: descriptor.Slot{Term: iri("rank")},
		Object:    descriptor.Slot{Var: "rank"},
	}
	return descriptor.New(iri("search"), []descriptor.Pattern{matches, rank},
		descriptor.Parameter{Name: "token", Direction: descriptor.Input, ObjectPatterns: []descriptor.Pattern{matches}},
		descriptor.Parameter{Name: "uri", Direction: descriptor.Output, SubjectPatterns: []descriptor.Pattern{matches, rank}},
		descriptor.Parameter{Name: "rank", Direction: descriptor.Output, ObjectPatterns: []descriptor.Pattern{rank}},
	)
}

// fakeService records invocations and answers them with respond.
type fakeService struct {
	mu      sync.Mutex
	calls   []map[string]ir.Term
	streams []*service.SliceStream
	respond func(ctx context.Context, inputs map[string]ir.Term) (service.RowStream, error)
}

func (f *fakeService) Invoke(ctx context.Context, _ service.Config, inputs map[string]ir.Term) (service.RowStream, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inputs)
	f.mu.Unlock()

	rs, err := f.respond(ctx, inputs)
	if s, ok := rs.(*service.SliceStream); ok {
		f.mu.Lock()
		f.streams = append(f.streams, s)
		f.mu.Unlock()
	}
	return rs, err
}

func (f *fakeService) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Closes returns the Close count of every stream handed out.
func (f *fakeService) Closes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.streams))
	for i, s := range f.streams {
		out[i] = s.Closes()
	}
	return out
}

// rowsService answers every invocation with the same rows.
func rowsService(rows ...service.Row) *fakeService {
	return &fakeService{respond: func(context.Context, map[string]ir.Term) (service.RowStream, error) {
		return service.NewSliceStream(rows...), nil
	}}
}

// testCatalog registers each descriptor with the invoker given for its IRI
// under the "test" engine type.
func testCatalog(t *testing.T, invokers map[ir.IRI]service.Invoker, descs ...*descriptor.Descriptor) *service.Catalog {
	t.Helper()
	reg := service.NewRegistry()
	require.NoError(t, reg.Register("test", func(cfg service.Config) (service.Invoker, error) {
		return invokers[cfg.ID], nil
	}))
	reg.Freeze()

	cat := service.NewCatalog(reg)
	for _, d := range descs {
		require.NoError(t, cat.Add(d, service.Config{EngineType: "test"}))
	}
	return cat
}

func testEnv() *invocationEnv {
	return &invocationEnv{
		queryID: "q-test",
		logger:  discardLogger(),
		metrics: NewMetrics(nil),
		clock:   NewClock(),
		quota:   NewInvocationQuota(0),
	}
}

func ownedSearch(slots map[string]algebra.Var) *algebra.Owned {
	inner := algebra.NewStatementPattern(algebra.Variable("uri"), algebra.Constant(iri("matches")), algebra.Variable("token"))
	o := algebra.NewOwned(inner, iri("search"), searchDescriptor())
	o.Slots = slots
	return o
}

func sp(s, p, o algebra.Var) *algebra.StatementPattern {
	return algebra.NewStatementPattern(s, p, o)
}

func varSlot(name string) algebra.Var { return algebra.Variable(name) }

func constSlot(t ir.Term) algebra.Var { return algebra.Constant(t) }

func newTestEvaluator(source TripleSource, cat *service.Catalog, opts ...Option) *Evaluator {
	opts = append([]Option{WithLogger(discardLogger()), WithQueryIDs(NewFixedGenerator("q-1", "q-2", "q-3"))}, opts...)
	return New(source, cat, opts...)
}

func evalAll(t *testing.T, e *Evaluator, root *algebra.Root) ([]ir.Binding, error) {
	t.Helper()
	q, err := e.Evaluate(root)
	require.NoError(t, err)
	return Collect(context.Background(), q)
}
