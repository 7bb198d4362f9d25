package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/fedq/internal/algebra"
)

// ExplainResult is the output of the explain command.
type ExplainResult struct {
	Plan string `json:"plan"`
}

func (r ExplainResult) String() string {
	return r.Plan
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <plan.yaml>",
		Short: "Print the rewritten expression tree of a plan",
		Long: `Decode a plan, run the rewriter over it and print the resulting tree.
Owned and KeywordSearch nodes show which parts of the query are delegated
to which service. Nothing is evaluated.

Example:
  fedq explain queries/papers_by_author.yaml`,
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

			out := rootOpts.formatter(cmd)
			plan, err := env.plan(args[0])
			if err != nil {
				_ = out.Error(errorCode(err), err.Error(), nil)
				return WrapExitError(ExitFailure, "explain failed", err)
			}
			return out.Success(ExplainResult{Plan: algebra.FormatWith(plan.Root, plan.Prefixes)})
		},
	}
}
