package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeText(t *testing.T) {
	stdout, _, err := executeRoot(t, "describe", filepath.Join(testdata, "services"))
	require.NoError(t, err)

	assert.Contains(t, stdout, "ex:papers (papers) engine=sql timeout=2s\n")
	assert.Contains(t, stdout, "  pattern ?paper ex:author ?author\n")
	assert.Contains(t, stdout, "  pattern ?paper ex:title ?title\n")
	assert.Contains(t, stdout, "  inputs  ?author\n")
	assert.Contains(t, stdout, "  outputs ?paper ?title\n")
	assert.Contains(t, stdout, "ex:search (search) engine=keyword")
}

func TestDescribeJSON(t *testing.T) {
	stdout, _, err := executeRoot(t, "--format", "json", "describe", filepath.Join(testdata, "services"))
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   DescribeResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Services, 2)
	assert.Equal(t, "ex:papers", resp.Data.Services[0].ID)
	assert.Equal(t, []string{"?author"}, resp.Data.Services[0].Inputs)
	assert.Equal(t, "ex:search", resp.Data.Services[1].ID)
	assert.Empty(t, resp.Data.Errors)
}

func TestDescribeDefaultsToConfiguredDir(t *testing.T) {
	stdout, _, err := executeRoot(t, "--services", filepath.Join(testdata, "services"), "describe")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ex:papers")
}

func TestDescribeValidationErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "remote.cue"), []byte(`
service: remote: {
	id:       "ex:remote"
	engine:   "grpc"
	prefixes: ex: "http://example.org/"
	pattern: [["?a", "ex:p", "?b"]]
	input: a: {}
	output: b: {}
}
`), 0o644))

	stdout, _, err := executeRoot(t, "describe", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "ex:remote (remote) engine=grpc")
	assert.Contains(t, stdout, `✗ [E201] remote: engine: unknown engine "grpc"`)
}

func TestDescribeCompileErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.cue"), []byte(`
service: broken: {
	id: "<http://example.org/broken>"
}
`), 0o644))

	stdout, _, err := executeRoot(t, "describe", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E101]")
	assert.Contains(t, err.Error(), "service.broken: engine: engine is required")
}

func TestDescribeMissingDir(t *testing.T) {
	_, _, err := executeRoot(t, "describe", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "services directory not found")
}

func TestDescribeEmptyDir(t *testing.T) {
	_, _, err := executeRoot(t, "describe", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files found")
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.cue"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f), f)
	}
}
