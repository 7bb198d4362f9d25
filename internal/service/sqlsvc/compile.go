// Package sqlsvc serves external services backed by a SQL table.
//
// A service maps input parameters to filter columns and output parameters
// to result columns. Each invocation compiles one parameterized SELECT.
//
// CRITICAL: every query includes ORDER BY for deterministic row order.
// CRITICAL: values are always parameterized, never interpolated.
package sqlsvc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/fedq/internal/ir"
)

// Options configures one SQL-backed service.
type Options struct {
	// Table is the table or view to query.
	Table string `json:"table"`

	// Inputs maps input parameter names to filter columns.
	Inputs map[string]string `json:"inputs"`

	// Outputs maps output parameter names to result columns.
	Outputs map[string]string `json:"outputs"`

	// OrderBy lists the ordering columns. Defaults to rowid.
	OrderBy []string `json:"order_by"`

	// IRIs maps parameter names to an IRI prefix. Values of these
	// parameters are IRIs in the query and bare keys in the table.
	IRIs map[string]string `json:"iris"`
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that every identifier is safe to splice into SQL.
func (o Options) Validate() error {
	if o.Table == "" {
		return fmt.Errorf("table is required")
	}
	if len(o.Outputs) == 0 {
		return fmt.Errorf("at least one output column is required")
	}
	idents := []string{o.Table}
	for _, m := range []map[string]string{o.Inputs, o.Outputs} {
		for _, col := range m {
			idents = append(idents, col)
		}
	}
	for name := range o.Outputs {
		idents = append(idents, name)
	}
	idents = append(idents, o.OrderBy...)
	for _, id := range idents {
		if !identifier.MatchString(id) {
			return fmt.Errorf("invalid SQL identifier %q", id)
		}
	}
	return nil
}

// SQLCompiler compiles an invocation into parameterized SQL for SQLite.
type SQLCompiler struct {
	opts Options
}

// NewSQLCompiler creates a compiler for validated options.
func NewSQLCompiler(opts Options) *SQLCompiler {
	return &SQLCompiler{opts: opts}
}

// Compile builds the SELECT for one set of resolved inputs.
// Returns (sql, params, error). Inputs without a configured column are
// ignored; configured inputs absent from the map do not filter.
func (c *SQLCompiler) Compile(inputs map[string]ir.Term) (string, []any, error) {
	selectClause := c.compileColumns()

	var (
		where  []string
		params []any
	)
	for _, name := range sortedKeys(c.opts.Inputs) {
		t, ok := inputs[name]
		if !ok {
			continue
		}
		param, err := c.termToParam(name, t)
		if err != nil {
			return "", nil, fmt.Errorf("input %q: %w", name, err)
		}
		where = append(where, quote(c.opts.Inputs[name])+" = ?")
		params = append(params, param)
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", selectClause, quote(c.opts.Table))
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY " + c.stableOrderKey()

	return sql, params, nil
}

// compileColumns renders the output columns aliased to parameter names,
// sorted by parameter name.
func (c *SQLCompiler) compileColumns() string {
	var parts []string
	for _, name := range sortedKeys(c.opts.Outputs) {
		parts = append(parts, fmt.Sprintf("%s AS %s", quote(c.opts.Outputs[name]), quote(name)))
	}
	return strings.Join(parts, ", ")
}

// stableOrderKey returns the ORDER BY clause.
// COLLATE BINARY keeps text ordering identical across SQLite versions.
func (c *SQLCompiler) stableOrderKey() string {
	if len(c.opts.OrderBy) == 0 {
		return "rowid ASC"
	}
	parts := make([]string, len(c.opts.OrderBy))
	for i, col := range c.opts.OrderBy {
		parts[i] = quote(col) + " ASC COLLATE BINARY"
	}
	return strings.Join(parts, ", ")
}

// termToParam converts a term to a Go value for a SQL parameter.
func (c *SQLCompiler) termToParam(name string, t ir.Term) (any, error) {
	switch v := t.(type) {
	case ir.IRI:
		if prefix, ok := c.opts.IRIs[name]; ok {
			return strings.TrimPrefix(string(v), prefix), nil
		}
		return string(v), nil
	case ir.Literal:
		switch v.Datatype {
		case ir.XSDInteger, ir.XSDInt, ir.XSDLong:
			n, err := strconv.ParseInt(v.Lexical, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad integer %q: %w", v.Lexical, err)
			}
			return n, nil
		case ir.XSDDecimal, ir.XSDDouble, ir.XSDFloat:
			f, ok := v.Float()
			if !ok {
				return nil, fmt.Errorf("bad number %q", v.Lexical)
			}
			return f, nil
		case ir.XSDBoolean:
			b, ok := v.Bool()
			if !ok {
				return nil, fmt.Errorf("bad boolean %q", v.Lexical)
			}
			return b, nil
		default:
			return v.Lexical, nil
		}
	case nil:
		return nil, fmt.Errorf("nil term")
	default:
		return nil, fmt.Errorf("unsupported term %T for SQL parameter", t)
	}
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
