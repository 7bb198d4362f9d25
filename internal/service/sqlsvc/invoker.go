package sqlsvc

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
)

// EngineType is the registry key of SQL-backed services.
const EngineType = "sql"

// Invoker runs one service's SELECT against a database.
type Invoker struct {
	db       *sql.DB
	opts     Options
	compiler *SQLCompiler
}

// Factory returns a registry factory whose services query db.
func Factory(db *sql.DB) service.Factory {
	return func(cfg service.Config) (service.Invoker, error) {
		return New(db, cfg)
	}
}

// New decodes and validates cfg.Options.
func New(db *sql.DB, cfg service.Config) (*Invoker, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlsvc: nil database")
	}
	var opts Options
	if err := service.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, fmt.Errorf("sqlsvc %s: %w", cfg.ID, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("sqlsvc %s: %w", cfg.ID, err)
	}
	return &Invoker{db: db, opts: opts, compiler: NewSQLCompiler(opts)}, nil
}

// Invoke runs the compiled query. Rows are streamed; the query context
// stays open until the stream is closed.
func (inv *Invoker) Invoke(ctx context.Context, cfg service.Config, inputs map[string]ir.Term) (service.RowStream, error) {
	query, params, err := inv.compiler.Compile(inputs)
	if err != nil {
		return nil, &service.InvocationError{Service: cfg.ID, Cause: err}
	}

	cancel := context.CancelFunc(func() {})
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	}
	rows, err := inv.db.QueryContext(ctx, query, params...)
	if err != nil {
		cancel()
		return nil, &service.InvocationError{Service: cfg.ID, Cause: err}
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		cancel()
		return nil, &service.InvocationError{Service: cfg.ID, Cause: err}
	}
	return &rowStream{rows: rows, cols: cols, cancel: cancel, iris: inv.opts.IRIs, id: cfg.ID}, nil
}

type rowStream struct {
	rows   *sql.Rows
	cols   []string
	cancel context.CancelFunc
	iris   map[string]string
	id     ir.IRI

	cur  service.Row
	err  error
	once sync.Once
}

func (s *rowStream) Next() bool {
	if s.err != nil || !s.rows.Next() {
		if s.err == nil {
			if err := s.rows.Err(); err != nil {
				s.err = &service.InvocationError{Service: s.id, Cause: err}
			}
		}
		return false
	}

	vals := make([]any, len(s.cols))
	ptrs := make([]any, len(s.cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		s.err = &service.InvocationError{Service: s.id, Cause: err}
		return false
	}

	row := make(service.Row, len(s.cols))
	for i, col := range s.cols {
		t, err := valueToTerm(vals[i], s.iris[col])
		if err != nil {
			s.err = &service.InvocationError{Service: s.id, Cause: fmt.Errorf("column %q: %w", col, err)}
			return false
		}
		if t != nil {
			row[col] = t
		}
	}
	s.cur = row
	return true
}

func (s *rowStream) Row() service.Row { return s.cur }
func (s *rowStream) Err() error       { return s.err }

func (s *rowStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.rows.Close()
		s.cancel()
	})
	return err
}

// valueToTerm converts a scanned column value. NULL becomes nil (unbound).
func valueToTerm(v any, iriPrefix string) (ir.Term, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64:
		if iriPrefix != "" {
			return ir.IRI(fmt.Sprintf("%s%d", iriPrefix, x)), nil
		}
		return ir.NewInteger(x), nil
	case float64:
		return ir.NewDouble(x), nil
	case bool:
		return ir.NewBoolean(x), nil
	case []byte:
		return stringTerm(string(x), iriPrefix), nil
	case string:
		return stringTerm(x, iriPrefix), nil
	case time.Time:
		return ir.NewTyped(x.UTC().Format(time.RFC3339Nano), ir.XSDDateTime), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", v)
	}
}

func stringTerm(s, iriPrefix string) ir.Term {
	if iriPrefix != "" {
		return ir.IRI(iriPrefix + s)
	}
	return ir.NewString(s)
}
