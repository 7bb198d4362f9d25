package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/fedq/internal/ir"
)

// TripleIter iterates the result of a Match query.
type TripleIter struct {
	triples []ir.Triple
	idx     int
}

// Next advances to the next triple.
func (it *TripleIter) Next() bool {
	if it.idx >= len(it.triples) {
		return false
	}
	it.idx++
	return true
}

// Triple returns the current triple.
func (it *TripleIter) Triple() ir.Triple { return it.triples[it.idx-1] }

// Err always returns nil; Match reports errors up front.
func (it *TripleIter) Err() error { return nil }

// Close is a no-op kept for the iterator contract.
func (it *TripleIter) Close() error { return nil }

// Len returns the number of matched triples.
func (it *TripleIter) Len() int { return len(it.triples) }

// Match returns the triples matching the given terms. A nil term is a
// wildcard. Results are in insertion order.
//
// Rows are read eagerly: the store has a single connection, and the
// evaluator issues nested Match calls while an outer iterator is open.
func (s *Store) Match(ctx context.Context, subj, pred, obj ir.Term) (*TripleIter, error) {
	var (
		where []string
		args  []any
	)
	for _, c := range []struct {
		column string
		term   ir.Term
	}{{"subject", subj}, {"predicate", pred}, {"object", obj}} {
		if c.term == nil {
			continue
		}
		where = append(where, c.column+" = ?")
		args = append(args, c.term.String())
	}

	query := "SELECT subject, predicate, object FROM triples"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("match triples: %w", err)
	}
	defer rows.Close()

	var triples []ir.Triple
	for rows.Next() {
		t, err := scanTriple(rows)
		if err != nil {
			return nil, err
		}
		triples = append(triples, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("match triples: %w", err)
	}
	return &TripleIter{triples: triples}, nil
}

// Count returns the number of stored triples.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM triples").Scan(&n); err != nil {
		return 0, fmt.Errorf("count triples: %w", err)
	}
	return n, nil
}

// LiteralQuery restricts a literal scan. Empty fields do not restrict.
type LiteralQuery struct {
	// Subject limits the scan to one subject.
	Subject ir.Term

	// Predicates limits the scan to literals of these properties.
	Predicates []ir.IRI

	// Types keeps only subjects with at least one of these rdf:type values.
	Types []ir.IRI
}

// Literal is one literal-valued statement returned by ScanLiterals.
type Literal struct {
	Subject   ir.Term
	Predicate ir.IRI
	Value     ir.Literal
}

// ScanLiterals calls fn for every literal statement matching q, in
// insertion order. Iteration stops at the first error fn returns.
// fn must not call back into the store.
func (s *Store) ScanLiterals(ctx context.Context, q LiteralQuery, fn func(Literal) error) error {
	where := []string{"t.object_kind = 'literal'"}
	var args []any

	if q.Subject != nil {
		where = append(where, "t.subject = ?")
		args = append(args, q.Subject.String())
	}
	if len(q.Predicates) > 0 {
		where = append(where, "t.predicate IN ("+placeholders(len(q.Predicates))+")")
		for _, p := range q.Predicates {
			args = append(args, p.String())
		}
	}
	if len(q.Types) > 0 {
		where = append(where, `EXISTS (
			SELECT 1 FROM triples ty
			WHERE ty.subject = t.subject AND ty.predicate = ?
			AND ty.object IN (`+placeholders(len(q.Types))+`))`)
		args = append(args, ir.RDFType.String())
		for _, ty := range q.Types {
			args = append(args, ty.String())
		}
	}

	query := `
		SELECT t.subject, t.predicate, t.object_lexical, t.object_datatype, t.object_lang
		FROM triples t
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY t.id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scan literals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var subj, pred, lexical, datatype, lang string
		if err := rows.Scan(&subj, &pred, &lexical, &datatype, &lang); err != nil {
			return fmt.Errorf("scan literals: %w", err)
		}
		st, err := unmarshalTerm(subj)
		if err != nil {
			return err
		}
		pt, err := unmarshalTerm(pred)
		if err != nil {
			return err
		}
		iri, ok := pt.(ir.IRI)
		if !ok {
			return fmt.Errorf("scan literals: predicate %s is not an IRI", pred)
		}
		lit := ir.Literal{Lexical: lexical, Datatype: ir.IRI(datatype), Lang: lang}
		if err := fn(Literal{Subject: st, Predicate: iri, Value: lit}); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan literals: %w", err)
	}
	return nil
}

// scanTriple reads one (subject, predicate, object) row.
func scanTriple(rows *sql.Rows) (ir.Triple, error) {
	var s, p, o string
	if err := rows.Scan(&s, &p, &o); err != nil {
		return ir.Triple{}, fmt.Errorf("scan triple: %w", err)
	}
	subj, err := unmarshalTerm(s)
	if err != nil {
		return ir.Triple{}, err
	}
	pred, err := unmarshalTerm(p)
	if err != nil {
		return ir.Triple{}, err
	}
	obj, err := unmarshalTerm(o)
	if err != nil {
		return ir.Triple{}, err
	}
	return ir.Triple{Subject: subj, Predicate: pred, Object: obj}, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
