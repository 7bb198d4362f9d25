package service

import (
	"context"

	"github.com/roach88/fedq/internal/ir"
)

// Output columns of a keyword search row.
const (
	KeywordSubject   = "subject"
	KeywordPredicate = "predicate"
	KeywordScore     = "score"
	KeywordSnippet   = "snippet"
	KeywordMatch     = "match"
)

// KeywordQuery is a full-text search request.
type KeywordQuery struct {
	// Text is the search string.
	Text string

	// Subject limits hits to one resource when set.
	Subject ir.Term

	// Predicates limits the properties searched. Empty means all.
	Predicates []ir.IRI

	// Types keeps only resources of one of these classes. Empty means all.
	Types []ir.IRI
}

// KeywordSearcher serves full-text searches. Rows carry the Keyword*
// columns.
type KeywordSearcher interface {
	Search(ctx context.Context, cfg Config, q KeywordQuery) (RowStream, error)
}

// AsKeywordSearcher returns the KeywordSearcher behind inv, looking through
// a CachingInvoker.
func AsKeywordSearcher(inv Invoker) (KeywordSearcher, bool) {
	if c, ok := inv.(*CachingInvoker); ok {
		inv = c.inner
	}
	ks, ok := inv.(KeywordSearcher)
	return ks, ok
}
