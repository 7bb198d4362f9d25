package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Result   *Result
}

// Error renders the mismatch followed by the rows and trace of the run.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Result != nil {
		fmt.Fprintf(&buf, "\nRows:\n")
		for _, row := range e.Result.Rows {
			fmt.Fprintf(&buf, "  %s\n", formatRow(row))
		}
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Result.Trace {
			fmt.Fprintf(&buf, "  %s\n", formatEvent(ev))
		}
	}
	return buf.String()
}

func assertRowCount(result *Result, a Assertion) error {
	if len(result.Rows) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRowCount,
		Expected: fmt.Sprintf("%d rows", a.Count),
		Actual:   fmt.Sprintf("%d rows", len(result.Rows)),
		Result:   result,
	}
}

// assertRowsContain passes when some row agrees with every entry of
// a.Row. Keys may be written with or without the leading '?'.
func assertRowsContain(result *Result, a Assertion) error {
	for _, row := range result.Rows {
		if matchRow(row, a.Row) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertRowsContain,
		Expected: "a row matching " + formatRow(normalizeRow(a.Row)),
		Actual:   fmt.Sprintf("no match among %d rows", len(result.Rows)),
		Result:   result,
	}
}

func matchRow(row Row, want map[string]string) bool {
	for name, value := range normalizeRow(want) {
		if got, ok := row[name]; !ok || got != value {
			return false
		}
	}
	return true
}

func normalizeRow(m map[string]string) Row {
	out := make(Row, len(m))
	for k, v := range m {
		out[strings.TrimPrefix(k, "?")] = v
	}
	return out
}

// assertRowOrder compares the values of one variable, row by row, with
// a.Values. Rows leaving the variable unbound are skipped.
func assertRowOrder(result *Result, a Assertion) error {
	name := strings.TrimPrefix(a.Var, "?")
	var got []string
	for _, row := range result.Rows {
		if v, ok := row[name]; ok {
			got = append(got, v)
		}
	}
	if slices.Equal(got, a.Values) {
		return nil
	}
	return &AssertionError{
		Type:     AssertRowOrder,
		Expected: fmt.Sprintf("?%s = [%s]", name, strings.Join(a.Values, ", ")),
		Actual:   fmt.Sprintf("?%s = [%s]", name, strings.Join(got, ", ")),
		Result:   result,
	}
}

func assertInvocationCount(result *Result, a Assertion) error {
	n := len(result.Invocations(a.Service))
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertInvocationCount,
		Expected: fmt.Sprintf("%s invoked %d times", a.Service, a.Count),
		Actual:   fmt.Sprintf("%s invoked %d times", a.Service, n),
		Result:   result,
	}
}

func assertPlanContains(result *Result, a Assertion) error {
	if strings.Contains(result.Plan, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertPlanContains,
		Expected: fmt.Sprintf("plan containing %q", a.Text),
		Actual:   result.Plan,
	}
}

// EvaluateAssertions checks every assertion against result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRowCount:
			err = assertRowCount(result, assertion)
		case AssertRowsContain:
			err = assertRowsContain(result, assertion)
		case AssertRowOrder:
			err = assertRowOrder(result, assertion)
		case AssertInvocationCount:
			err = assertInvocationCount(result, assertion)
		case AssertPlanContains:
			err = assertPlanContains(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// formatRow renders a row as space-separated ?name=value pairs in name
// order.
func formatRow(row Row) string {
	if len(row) == 0 {
		return "{}"
	}
	names := slices.Sorted(maps.Keys(row))
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = "?" + name + "=" + row[name]
	}
	return strings.Join(parts, " ")
}

// formatEvent renders a trace event on one line.
func formatEvent(ev TraceEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", ev.Seq, ev.Service)
	for _, name := range slices.Sorted(maps.Keys(ev.Inputs)) {
		fmt.Fprintf(&b, " %s=%s", name, ev.Inputs[name])
	}
	fmt.Fprintf(&b, " rows=%d", ev.Rows)
	if ev.Error != "" {
		fmt.Fprintf(&b, " error=%q", ev.Error)
	}
	return b.String()
}
