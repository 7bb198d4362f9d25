package cli

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fedq/internal/planfile"
	"github.com/roach88/fedq/internal/store"
)

const testdata = "../../testdata"

var papersSQL = []string{
	`CREATE TABLE papers (id TEXT PRIMARY KEY, author TEXT NOT NULL, title TEXT NOT NULL)`,
	`INSERT INTO papers VALUES
		('p1', 'alice', 'Graph Databases'),
		('p2', 'alice', 'Query Federation'),
		('p3', 'bob', 'Graph Query Languages')`,
}

// executeRoot runs the root command with args and returns its stdout and
// stderr.
func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// setupLibrary creates a database holding the library data set and the
// papers table behind ex:papers, and returns its path.
func setupLibrary(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "library.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	g, err := planfile.DecodeDataFile(filepath.Join(testdata, "data", "library.yaml"))
	require.NoError(t, err)
	_, err = st.AddGraph(ctx, g)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range papersSQL {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return path
}

// queryArgs prefixes args with the flags pointing at db and the test
// services.
func queryArgs(db string, args ...string) []string {
	return append([]string{"--db", db, "--services", filepath.Join(testdata, "services")}, args...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
