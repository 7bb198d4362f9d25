// Package restsvc serves external services reached over HTTP.
//
// Inputs are sent as query parameters of a GET request. The JSON response
// is decoded and rows and fields are selected with JMESPath expressions.
// Transport failures and 5xx responses are retried with exponential
// backoff; the retry policy belongs here, not to the evaluator.
package restsvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/grafana/dskit/backoff"
	"github.com/jmespath/go-jmespath"

	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
)

// EngineType is the registry key of HTTP services.
const EngineType = "rest"

const maxBodyBytes = 16 << 20

// Options configures one HTTP service.
type Options struct {
	// URL is the endpoint; input parameters are appended to its query.
	URL string `json:"url"`

	// Query renames input parameters to query keys. Unlisted inputs use
	// their own name.
	Query map[string]string `json:"query"`

	// Headers are sent with every request.
	Headers map[string]string `json:"headers"`

	// Rows selects the array of result rows. Defaults to "@".
	Rows string `json:"rows"`

	// Fields maps output parameters to a JMESPath expression evaluated
	// against each row.
	Fields map[string]string `json:"fields"`

	// IRIs maps output parameters to an IRI prefix.
	IRIs map[string]string `json:"iris"`

	MaxRetries int    `json:"max_retries"`
	MinBackoff string `json:"min_backoff"`
	MaxBackoff string `json:"max_backoff"`
}

// Invoker calls one HTTP service.
type Invoker struct {
	client  *http.Client
	opts    Options
	rows    *jmespath.JMESPath
	fields  map[string]*jmespath.JMESPath
	backoff backoff.Config
}

// Factory returns a registry factory using client. A nil client means
// http.DefaultClient.
func Factory(client *http.Client) service.Factory {
	return func(cfg service.Config) (service.Invoker, error) {
		return New(client, cfg)
	}
}

// New decodes cfg.Options and compiles its expressions.
func New(client *http.Client, cfg service.Config) (*Invoker, error) {
	if client == nil {
		client = http.DefaultClient
	}
	var opts Options
	if err := service.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, fmt.Errorf("restsvc %s: %w", cfg.ID, err)
	}

	u, err := url.Parse(opts.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("restsvc %s: invalid url %q", cfg.ID, opts.URL)
	}
	if len(opts.Fields) == 0 {
		return nil, fmt.Errorf("restsvc %s: at least one field is required", cfg.ID)
	}

	inv := &Invoker{client: client, opts: opts, fields: make(map[string]*jmespath.JMESPath, len(opts.Fields))}
	rowsExpr := opts.Rows
	if rowsExpr == "" {
		rowsExpr = "@"
	}
	if inv.rows, err = jmespath.Compile(rowsExpr); err != nil {
		return nil, fmt.Errorf("restsvc %s: rows expression: %w", cfg.ID, err)
	}
	for name, expr := range opts.Fields {
		if expr == "" {
			expr = name
		}
		if inv.fields[name], err = jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("restsvc %s: field %q: %w", cfg.ID, name, err)
		}
	}

	if inv.backoff, err = backoffConfig(opts); err != nil {
		return nil, fmt.Errorf("restsvc %s: %w", cfg.ID, err)
	}
	return inv, nil
}

func backoffConfig(opts Options) (backoff.Config, error) {
	cfg := backoff.Config{
		MinBackoff: 100 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
		MaxRetries: 3,
	}
	if opts.MaxRetries < 0 {
		return cfg, fmt.Errorf("max_retries must not be negative")
	}
	if opts.MaxRetries > 0 {
		cfg.MaxRetries = opts.MaxRetries
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{{opts.MinBackoff, &cfg.MinBackoff}, {opts.MaxBackoff, &cfg.MaxBackoff}} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, fmt.Errorf("backoff: %w", err)
		}
		*d.dst = v
	}
	return cfg, nil
}

// Invoke sends one GET request, retrying transport failures and 5xx
// responses, and decodes the rows.
func (inv *Invoker) Invoke(ctx context.Context, cfg service.Config, inputs map[string]ir.Term) (service.RowStream, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	target := inv.requestURL(inputs)
	body, err := inv.fetch(ctx, target)
	if err != nil {
		return nil, &service.InvocationError{Service: cfg.ID, Cause: err}
	}

	rows, err := inv.decode(body)
	if err != nil {
		return nil, &service.InvocationError{Service: cfg.ID, Cause: err}
	}
	return service.NewSliceStream(rows...), nil
}

func (inv *Invoker) requestURL(inputs map[string]ir.Term) string {
	u, _ := url.Parse(inv.opts.URL)
	q := u.Query()
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := name
		if k, ok := inv.opts.Query[name]; ok {
			key = k
		}
		q.Set(key, ir.Lexical(inputs[name]))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (inv *Invoker) fetch(ctx context.Context, target string) ([]byte, error) {
	retries := backoff.New(ctx, inv.backoff)

	var lastErr error
	for retries.Ongoing() {
		body, err := inv.get(ctx, target)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			return nil, err
		}
		retries.Wait()
	}
	if lastErr == nil {
		lastErr = retries.Err()
	}
	return nil, fmt.Errorf("after %d retries: %w", retries.NumRetries(), lastErr)
}

func (inv *Invoker) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range inv.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := inv.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, body: truncate(string(body), 200)}
	}
	return body, nil
}

func (inv *Invoker) decode(body []byte) ([]service.Row, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	selected, err := inv.rows.Search(doc)
	if err != nil {
		return nil, fmt.Errorf("select rows: %w", err)
	}
	if selected == nil {
		return nil, nil
	}
	items, ok := selected.([]any)
	if !ok {
		return nil, fmt.Errorf("rows expression selected %T, want an array", selected)
	}

	rows := make([]service.Row, 0, len(items))
	for i, item := range items {
		row := make(service.Row, len(inv.fields))
		for name, expr := range inv.fields {
			v, err := expr.Search(item)
			if err != nil {
				return nil, fmt.Errorf("row %d field %q: %w", i, name, err)
			}
			t, err := jsonToTerm(v, inv.opts.IRIs[name])
			if err != nil {
				return nil, fmt.Errorf("row %d field %q: %w", i, name, err)
			}
			if t != nil {
				row[name] = t
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// jsonToTerm converts a decoded JSON value. null becomes nil (unbound);
// whole numbers within float64 precision become xsd:integer.
func jsonToTerm(v any, iriPrefix string) (ir.Term, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if iriPrefix != "" {
			return ir.IRI(iriPrefix + x), nil
		}
		return ir.NewString(x), nil
	case bool:
		return ir.NewBoolean(x), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			if iriPrefix != "" {
				return ir.IRI(fmt.Sprintf("%s%d", iriPrefix, int64(x))), nil
			}
			return ir.NewInteger(int64(x)), nil
		}
		return ir.NewDouble(x), nil
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return ir.NewString(string(data)), nil
	default:
		return nil, fmt.Errorf("unsupported JSON value %T", v)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
