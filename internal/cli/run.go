package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/engine"
	"github.com/roach88/fedq/internal/ir"
)

// RunResult is the output of the run command.
type RunResult struct {
	QueryID string              `json:"query_id"`
	Vars    []string            `json:"vars"`
	Rows    []map[string]string `json:"rows"`
}

// String renders the rows as a tab-separated table. Unbound cells are
// left empty.
func (r RunResult) String() string {
	var b strings.Builder
	for i, v := range r.Vars {
		if i > 0 {
			b.WriteByte('\t')
		}
		b.WriteString("?" + v)
	}
	b.WriteByte('\n')
	for _, row := range r.Rows {
		for i, v := range r.Vars {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(row[v])
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "(%d rows)", len(r.Rows))
	return b.String()
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <plan.yaml>",
		Short: "Evaluate a plan and print its solutions",
		Long: `Decode and rewrite a plan, then evaluate it against the triple store
and the registered services.

Interrupting the command cancels the query and closes every open service
stream.

Examples:
  fedq run queries/papers_by_author.yaml
  fedq run --db ./library.db --parallelism 4 queries/documents.yaml
  fedq run queries/titles.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig(cmd)
			if err != nil {
				return err
			}
			env, err := openEnvironment(cfg, rootOpts.logger(cmd, cfg))
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runQuery(ctx, env, rootOpts.formatter(cmd), args[0])
		},
	}
}

func runQuery(ctx context.Context, env *environment, out *OutputFormatter, path string) error {
	plan, err := env.plan(path)
	if err != nil {
		_ = out.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "query failed", err)
	}
	q, err := env.evaluate(plan)
	if err != nil {
		_ = out.Error(errorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "query failed", err)
	}
	env.logger.Info("query started", "query_id", q.ID, "plan", path)

	result := RunResult{QueryID: q.ID, Rows: []map[string]string{}}
	seen := make(map[string]bool)
	bindings, err := engine.Collect(ctx, q)
	for _, b := range bindings {
		row := make(map[string]string, len(b))
		for name, t := range b {
			row[name] = ir.Compact(t, plan.Prefixes)
			seen[name] = true
		}
		result.Rows = append(result.Rows, row)
	}
	result.Vars = slices.Sorted(maps.Keys(seen))
	if p, ok := plan.Root.Arg().(*algebra.Projection); ok {
		result.Vars = p.Vars
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			env.logger.Info("query cancelled", "query_id", q.ID, "rows", len(result.Rows))
		}
		_ = out.Error(errorCode(err), err.Error(), runErrorDetails(q.ID, err))
		return WrapExitError(ExitFailure, "query failed", err)
	}
	env.logger.Info("query finished", "query_id", q.ID, "rows", len(result.Rows))
	return out.Success(result)
}

func runErrorDetails(queryID string, err error) map[string]string {
	details := map[string]string{"query_id": queryID}
	var re *engine.RuntimeError
	if errors.As(err, &re) && re.Service != "" {
		details["service"] = string(re.Service)
	}
	return details
}
