package harness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/compiler"
	"github.com/roach88/fedq/internal/engine"
	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/planfile"
	"github.com/roach88/fedq/internal/rewrite"
	"github.com/roach88/fedq/internal/service"
	"github.com/roach88/fedq/internal/service/keyword"
	"github.com/roach88/fedq/internal/service/restsvc"
	"github.com/roach88/fedq/internal/service/sqlsvc"
	"github.com/roach88/fedq/internal/store"
	"github.com/roach88/fedq/internal/testutil"
)

// Harness holds the isolated environment of one scenario run.
type Harness struct {
	store    *store.Store
	services *sql.DB
	rec      *recorder
	ids      *testutil.FixedQueryID
	logger   *slog.Logger
	client   *http.Client
}

// Option configures a run.
type Option func(*Harness)

// WithLogger routes engine and rewrite logs to l. Runs are silent by
// default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithHTTPClient sets the client of REST-backed services.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Harness) {
		h.client = c
	}
}

// Run executes a scenario and returns its result.
//
// Every run gets a fresh in-memory triple store and a fresh service
// database, so scenarios cannot leak state into each other. The returned
// error reports a broken environment (unreadable spec, bad SQL, malformed
// plan); query failures are part of the Result.
//
// Execution flow:
//  1. load the data document into the store
//  2. run the SQL statements against the service database
//  3. compile the service specs and register them in a catalog
//  4. decode the plan, rewrite it and evaluate it
//  5. check the outcome against expect_error and the assertions
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	// Service tables live in a temp file so that concurrently open
	// cursors each get their own connection.
	dir, err := os.MkdirTemp("", "fedq-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create service database directory: %w", err)
	}
	defer os.RemoveAll(dir)

	db, err := sql.Open("sqlite3", filepath.Join(dir, "services.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open service database: %w", err)
	}
	defer db.Close()

	h := &Harness{
		store:    st,
		services: db,
		rec:      newRecorder(),
		ids:      testutil.NewFixedQueryID(scenario.QueryID),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.loadData(ctx, scenario.Data); err != nil {
		return nil, err
	}
	if err := h.execSQL(ctx, scenario.SQL); err != nil {
		return nil, err
	}
	cat, err := h.catalog(scenario)
	if err != nil {
		return nil, err
	}
	plan, err := planfile.DecodeFile(scenario.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to load query: %w", err)
	}

	result := NewResult()
	h.rec.setPrefixes(plan.Prefixes)
	rows, qerr := h.evaluate(ctx, scenario, cat, plan, result)
	for _, b := range rows {
		result.Rows = append(result.Rows, h.row(b, plan.Prefixes))
	}
	result.Trace = h.rec.trace()

	h.checkError(scenario, qerr, result)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) loadData(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	g, err := planfile.DecodeDataFile(path)
	if err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	if _, err := h.store.AddGraph(ctx, g); err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	return nil
}

func (h *Harness) execSQL(ctx context.Context, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := h.services.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sql[%d]: %w", i, err)
		}
	}
	return nil
}

// catalog registers every engine with tracing and adds the scenario's
// services.
func (h *Harness) catalog(scenario *Scenario) (*service.Catalog, error) {
	reg := service.NewRegistry()
	factories := map[string]service.Factory{
		sqlsvc.EngineType:  sqlsvc.Factory(h.services),
		restsvc.EngineType: restsvc.Factory(h.client),
		keyword.EngineType: keyword.Factory(h.store),
	}
	for engineType, f := range factories {
		if err := reg.Register(engineType, h.rec.traced(f)); err != nil {
			return nil, err
		}
	}
	reg.Freeze()

	cat := service.NewCatalog(reg, service.WithCacheSize(scenario.CacheSize))
	for _, path := range scenario.Services {
		specs, err := compiler.CompileFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to compile services: %w", err)
		}
		for _, spec := range specs {
			if errs := compiler.Validate(spec, reg.EngineTypes()); len(errs) > 0 {
				return nil, fmt.Errorf("service %s: %w", spec.Name, errors.Join(validationErrors(errs)...))
			}
			res, err := spec.Register(cat, 0)
			if err != nil {
				return nil, fmt.Errorf("failed to register services: %w", err)
			}
			for _, d := range res.Diagnostics {
				h.logger.Warn("parameter omitted", "service", spec.Root, "parameter", d.Parameter, "reason", d.Message)
			}
		}
	}
	return cat, nil
}

func validationErrors(errs []compiler.ValidationError) []error {
	out := make([]error, len(errs))
	for i := range errs {
		out[i] = errs[i]
	}
	return out
}

// evaluate rewrites and runs the plan, recording the rewritten tree. It
// returns the solutions read before any error.
func (h *Harness) evaluate(ctx context.Context, scenario *Scenario, cat *service.Catalog, plan *planfile.Plan, result *Result) ([]ir.Binding, error) {
	if err := rewrite.New(cat, h.logger).Rewrite(plan.Root); err != nil {
		return nil, err
	}
	result.Plan = algebra.FormatWith(plan.Root, plan.Prefixes)

	parallelism := scenario.Parallelism
	if parallelism == 0 {
		parallelism = engine.DefaultParallelism
	}
	ev := engine.New(engine.StoreSource(h.store), cat,
		engine.WithLogger(h.logger),
		engine.WithQueryIDs(h.ids),
		engine.WithParallelism(parallelism),
		engine.WithMaxInvocations(scenario.MaxInvocations),
		engine.WithRegisterer(prometheus.NewRegistry()),
	)
	q, err := ev.Evaluate(plan.Root)
	if err != nil {
		return nil, err
	}
	return engine.Collect(ctx, q)
}

func (h *Harness) row(b ir.Binding, prefixes ir.Prefixes) Row {
	row := make(Row, len(b))
	for name, t := range b {
		row[name] = ir.Compact(t, prefixes)
	}
	return row
}

// checkError compares the query outcome with scenario.ExpectError.
func (h *Harness) checkError(scenario *Scenario, qerr error, result *Result) {
	if qerr != nil {
		result.QueryError = qerr.Error()
		var re *engine.RuntimeError
		if errors.As(qerr, &re) {
			result.ErrorCode = string(re.Code)
		}
	}

	switch {
	case scenario.ExpectError == "" && qerr != nil:
		result.AddError(fmt.Sprintf("query failed: %v", qerr))
	case scenario.ExpectError != "" && qerr == nil:
		result.AddError(fmt.Sprintf("expected error containing %q, query succeeded", scenario.ExpectError))
	case scenario.ExpectError != "" && !containsError(result, scenario.ExpectError):
		result.AddError(fmt.Sprintf("expected error containing %q, got %q", scenario.ExpectError, result.QueryError))
	}
}

func containsError(result *Result, want string) bool {
	return result.ErrorCode == want || strings.Contains(result.QueryError, want)
}
