package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fedq/internal/planfile"
	"github.com/roach88/fedq/internal/store"
)

// LoadedFile reports one loaded data document.
type LoadedFile struct {
	Path  string `json:"path"`
	Added int    `json:"added"`
}

// LoadDataResult is the output of the load command.
type LoadDataResult struct {
	Files []LoadedFile `json:"files"`
	Total int          `json:"total"`
}

func (r LoadDataResult) String() string {
	var b strings.Builder
	for _, f := range r.Files {
		fmt.Fprintf(&b, "%s: %d triple(s) added\n", f.Path, f.Added)
	}
	fmt.Fprintf(&b, "store holds %d triple(s)", r.Total)
	return b.String()
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <data.yaml>...",
		Short: "Add data documents to the triple store",
		Long: `Parse YAML data documents and add their triples to the configured
triple store. Triples already present are not duplicated.

Example:
  fedq load --db ./library.db data/authors.yaml data/papers.yaml`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := rootOpts.logger(cmd, cfg)
			out := rootOpts.formatter(cmd)

			st, err := store.Open(cfg.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer func() {
				if closeErr := st.Close(); closeErr != nil {
					logger.Error("error closing database", "error", closeErr)
				}
			}()

			result := LoadDataResult{Files: []LoadedFile{}}
			for _, path := range args {
				g, err := planfile.DecodeDataFile(path)
				if err != nil {
					_ = out.Error(ErrCodeData, err.Error(), map[string]string{"path": path})
					return WrapExitError(ExitCommandError, "failed to read data", err)
				}
				n, err := st.AddGraph(cmd.Context(), g)
				if err != nil {
					_ = out.Error(ErrCodeWriteFailed, err.Error(), map[string]string{"path": path})
					return WrapExitError(ExitFailure, "failed to store data", err)
				}
				logger.Debug("data loaded", "path", path, "added", n)
				result.Files = append(result.Files, LoadedFile{Path: path, Added: n})
			}

			if result.Total, err = st.Count(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "failed to count triples", err)
			}
			return out.Success(result)
		},
	}
}
