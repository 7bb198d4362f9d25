package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the observable outcome of a run as plain text: the
// rewritten plan, the solutions and the invocation trace. Runtime errors
// are rendered by code so the snapshot does not depend on message
// wording.
func Snapshot(name string, result *Result) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", name)
	b.WriteString("plan:\n")
	for _, line := range strings.Split(strings.TrimRight(result.Plan, "\n"), "\n") {
		if line != "" {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	b.WriteString("rows:\n")
	for _, row := range result.Rows {
		fmt.Fprintf(&b, "  %s\n", formatRow(row))
	}
	b.WriteString("trace:\n")
	for _, ev := range result.Trace {
		fmt.Fprintf(&b, "  %s\n", formatEvent(ev))
	}
	switch {
	case result.ErrorCode != "":
		fmt.Fprintf(&b, "error: %s\n", result.ErrorCode)
	case result.QueryError != "":
		fmt.Fprintf(&b, "error: %s\n", result.QueryError)
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(name, result))
}
