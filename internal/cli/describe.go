package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fedq/internal/compiler"
	"github.com/roach88/fedq/internal/descriptor"
	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
)

// ServiceDescription is the describe view of one service.
type ServiceDescription struct {
	Name     string   `json:"name"`
	ID       string   `json:"id"`
	Engine   string   `json:"engine"`
	Timeout  string   `json:"timeout,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
	Inputs   []string `json:"inputs,omitempty"`
	Outputs  []string `json:"outputs,omitempty"`
}

// DescribeResult is the output of the describe command.
type DescribeResult struct {
	Services []ServiceDescription      `json:"services"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

func (r DescribeResult) String() string {
	var b strings.Builder
	for i, s := range r.Services {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%s) engine=%s", s.ID, s.Name, s.Engine)
		if s.Timeout != "" {
			fmt.Fprintf(&b, " timeout=%s", s.Timeout)
		}
		b.WriteString("\n")
		for _, p := range s.Patterns {
			fmt.Fprintf(&b, "  pattern %s\n", p)
		}
		if len(s.Inputs) > 0 {
			fmt.Fprintf(&b, "  inputs  %s\n", strings.Join(s.Inputs, " "))
		}
		if len(s.Outputs) > 0 {
			fmt.Fprintf(&b, "  outputs %s\n", strings.Join(s.Outputs, " "))
		}
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "✗ %s\n", e.Error())
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [services-dir]",
		Short: "Compile and validate service specs",
		Long: `Compile the CUE service specs and print each service's descriptor:
the patterns it answers and its input and output parameters.

The directory defaults to services_dir from the configuration.

Examples:
  fedq describe
  fedq describe ./services --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig(cmd)
			if err != nil {
				return err
			}
			dir := cfg.ServicesDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runDescribe(rootOpts.formatter(cmd), dir)
		},
	}
}

func runDescribe(out *OutputFormatter, dir string) error {
	loaded, errs := LoadServices(dir, LoadModeCollectAll)
	if loaded == nil {
		err := firstError(errs)
		_ = out.Error(loadErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load services", err)
	}
	if len(errs) > 0 {
		messages := make([]string, len(errs))
		for i, err := range errs {
			messages[i] = err.Error()
		}
		_ = out.Error(loadErrorCode(errs[0]), fmt.Sprintf("%d service(s) failed to compile", len(errs)), messages)
		return WrapExitError(ExitFailure, "failed to compile services", errs[0])
	}
	out.VerboseLog("compiled %d service(s) from %d file(s)", len(loaded.Services), loaded.FileCount)

	result := DescribeResult{Services: []ServiceDescription{}}
	for _, spec := range loaded.Services {
		result.Errors = append(result.Errors, compiler.Validate(spec, engineTypes)...)
		result.Services = append(result.Services, describe(spec))
	}
	slices.SortFunc(result.Services, func(a, b ServiceDescription) int {
		return strings.Compare(a.ID, b.ID)
	})

	if err := out.Success(result); err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(result.Errors)))
	}
	return nil
}

func loadErrorCode(err error) string {
	if le, ok := err.(*LoadError); ok {
		return le.Code
	}
	return ErrCodeGeneric
}

// describe renders spec. Keyword services have no descriptor patterns, and
// a descriptor that does not parse is left to the validation errors.
func describe(spec *compiler.ServiceSpec) ServiceDescription {
	d := ServiceDescription{
		Name:   spec.Name,
		ID:     ir.Compact(spec.Root, spec.Prefixes),
		Engine: spec.Config.EngineType,
	}
	if spec.Config.Timeout > 0 {
		d.Timeout = spec.Config.Timeout.String()
	}
	if spec.Config.EngineType == service.KeywordEngine {
		return d
	}
	res, err := spec.Descriptor()
	if err != nil {
		return d
	}
	for _, p := range res.Descriptor.Patterns() {
		d.Patterns = append(d.Patterns, compactPattern(p, spec.Prefixes))
	}
	d.Inputs = parameterNames(res.Descriptor.InputParameters())
	d.Outputs = parameterNames(res.Descriptor.OutputParameters())
	return d
}

func parameterNames(params map[string]descriptor.Parameter) []string {
	var out []string
	for _, name := range slices.Sorted(maps.Keys(params)) {
		if params[name].Optional {
			out = append(out, "?"+name+"(optional)")
			continue
		}
		out = append(out, "?"+name)
	}
	return out
}

func compactPattern(p descriptor.Pattern, prefixes ir.Prefixes) string {
	slot := func(s descriptor.Slot) string {
		if s.IsVar() {
			return "?" + s.Var
		}
		return ir.Compact(s.Term, prefixes)
	}
	return slot(p.Subject) + " " + slot(p.Predicate) + " " + slot(p.Object)
}
