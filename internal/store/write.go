package store

import (
	"context"
	"fmt"

	"github.com/roach88/fedq/internal/ir"
)

// AddTriples inserts triples in one transaction and returns how many were
// new. Duplicate triples are silently ignored.
func (s *Store) AddTriples(ctx context.Context, triples ...ir.Triple) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("add triples: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO triples
		(subject, predicate, object, object_kind, object_lexical, object_datatype, object_lang)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject, predicate, object) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("add triples: prepare: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, t := range triples {
		subj, err := marshalTerm(t.Subject)
		if err != nil {
			return 0, fmt.Errorf("add triples: subject: %w", err)
		}
		if _, ok := t.Predicate.(ir.IRI); !ok {
			return 0, fmt.Errorf("add triples: predicate must be an IRI, got %v", t.Predicate)
		}
		pred, _ := marshalTerm(t.Predicate)
		obj, err := marshalTerm(t.Object)
		if err != nil {
			return 0, fmt.Errorf("add triples: object: %w", err)
		}
		cols, err := marshalObject(t.Object)
		if err != nil {
			return 0, fmt.Errorf("add triples: %w", err)
		}

		res, err := stmt.ExecContext(ctx, subj, pred, obj, cols.kind, cols.lexical, cols.datatype, cols.lang)
		if err != nil {
			return 0, fmt.Errorf("add triples: insert %s: %w", t, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("add triples: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("add triples: commit: %w", err)
	}
	return added, nil
}

// AddGraph inserts every triple of g.
func (s *Store) AddGraph(ctx context.Context, g ir.Graph) (int, error) {
	return s.AddTriples(ctx, g...)
}
