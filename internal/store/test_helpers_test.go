package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fedq/internal/ir"
)

const ex = "http://example.org/"

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func triple(s, p string, o ir.Term) ir.Triple {
	return ir.Triple{Subject: ir.IRI(ex + s), Predicate: ir.IRI(ex + p), Object: o}
}

// seedPapers loads a small bibliography.
func seedPapers(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.AddTriples(context.Background(),
		ir.Triple{Subject: ir.IRI(ex + "p1"), Predicate: ir.RDFType, Object: ir.IRI(ex + "Paper")},
		triple("p1", "title", ir.NewString("Graph Databases in Practice")),
		triple("p1", "year", ir.NewInteger(2021)),
		ir.Triple{Subject: ir.IRI(ex + "p2"), Predicate: ir.RDFType, Object: ir.IRI(ex + "Book")},
		triple("p2", "title", ir.NewLangString("Graphes et bases", "FR")),
		triple("p2", "author", ir.IRI(ex+"alice")),
		triple("p3", "title", ir.NewString("Stream processing")),
	)
	require.NoError(t, err)
}
