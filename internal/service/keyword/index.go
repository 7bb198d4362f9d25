// Package keyword serves full-text keyword search over the literals of the
// local triple store.
package keyword

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/fedq/internal/ir"
	"github.com/roach88/fedq/internal/service"
	"github.com/roach88/fedq/internal/store"
)

// EngineType is the registry key of keyword services.
const EngineType = service.KeywordEngine

// Input parameter names understood by Invoke.
const (
	InputQuery     = "query"
	InputSubject   = "subject"
	InputPredicate = "predicate"
	InputType      = "type"
)

const defaultSnippetWidth = 80

// Options configures a keyword service.
type Options struct {
	// Limit caps the number of hits. Zero means no cap.
	Limit int `json:"limit"`

	// SnippetWidth is the snippet window in bytes.
	SnippetWidth int `json:"snippet_width"`
}

// Index searches literal values in a triple store.
type Index struct {
	store *store.Store
	opts  Options
}

// Factory returns a registry factory for indexes over st.
func Factory(st *store.Store) service.Factory {
	return func(cfg service.Config) (service.Invoker, error) {
		return New(st, cfg)
	}
}

// New builds an index from cfg.Options.
func New(st *store.Store, cfg service.Config) (*Index, error) {
	if st == nil {
		return nil, fmt.Errorf("keyword: nil store")
	}
	var opts Options
	if err := service.DecodeOptions(cfg.Options, &opts); err != nil {
		return nil, fmt.Errorf("keyword %s: %w", cfg.ID, err)
	}
	if opts.Limit < 0 || opts.SnippetWidth < 0 {
		return nil, fmt.Errorf("keyword %s: limit and snippet_width must not be negative", cfg.ID)
	}
	if opts.SnippetWidth == 0 {
		opts.SnippetWidth = defaultSnippetWidth
	}
	return &Index{store: st, opts: opts}, nil
}

// Invoke adapts Search to the service boundary. The query input is
// required; subject, predicate and type narrow the search.
func (x *Index) Invoke(ctx context.Context, cfg service.Config, inputs map[string]ir.Term) (service.RowStream, error) {
	text, ok := inputs[InputQuery]
	if !ok {
		return nil, &service.InvocationError{Service: cfg.ID, Cause: fmt.Errorf("missing %q input", InputQuery)}
	}
	q := service.KeywordQuery{Text: ir.Lexical(text), Subject: inputs[InputSubject]}
	if p, ok := inputs[InputPredicate].(ir.IRI); ok {
		q.Predicates = []ir.IRI{p}
	}
	if t, ok := inputs[InputType].(ir.IRI); ok {
		q.Types = []ir.IRI{t}
	}
	return x.Search(ctx, cfg, q)
}

type hit struct {
	subject   ir.Term
	predicate ir.IRI
	value     ir.Literal
	score     float64
	snippet   string
}

// Search returns one row per matching subject, best score first. A literal
// matches when every query word occurs in it after normalization.
func (x *Index) Search(ctx context.Context, cfg service.Config, q service.KeywordQuery) (service.RowStream, error) {
	tokens := tokenize(normalize(q.Text))
	if len(tokens) == 0 {
		return service.EmptyStream(), nil
	}

	best := make(map[string]*hit)
	var order []string
	err := x.store.ScanLiterals(ctx, store.LiteralQuery{
		Subject:    q.Subject,
		Predicates: q.Predicates,
		Types:      q.Types,
	}, func(l store.Literal) error {
		folded := normalize(l.Value.Lexical)
		score, ok := scoreText(folded, tokens)
		if !ok {
			return nil
		}
		key := l.Subject.String()
		if prev, seen := best[key]; seen && prev.score >= score {
			return nil
		} else if !seen {
			order = append(order, key)
		}
		best[key] = &hit{
			subject:   l.Subject,
			predicate: l.Predicate,
			value:     l.Value,
			score:     score,
			snippet:   snippet(nfc(l.Value.Lexical), folded, tokens, x.opts.SnippetWidth),
		}
		return nil
	})
	if err != nil {
		return nil, &service.InvocationError{Service: cfg.ID, Cause: err}
	}

	hits := make([]*hit, 0, len(order))
	for _, key := range order {
		hits = append(hits, best[key])
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].subject.String() < hits[j].subject.String()
	})
	if x.opts.Limit > 0 && len(hits) > x.opts.Limit {
		hits = hits[:x.opts.Limit]
	}

	rows := make([]service.Row, len(hits))
	for i, h := range hits {
		rows[i] = service.Row{
			service.KeywordSubject:   h.subject,
			service.KeywordPredicate: h.predicate,
			service.KeywordScore:     ir.NewDouble(h.score),
			service.KeywordSnippet:   ir.NewString(h.snippet),
			service.KeywordMatch:     h.value,
		}
	}
	return service.NewSliceStream(rows...), nil
}

// scoreText returns the share of the text's words that are query hits.
// ok is false unless every token occurs.
func scoreText(folded string, tokens []string) (float64, bool) {
	words := tokenize(folded)
	if len(words) == 0 {
		return 0, false
	}
	hits := 0
	for _, tok := range tokens {
		n := 0
		for _, w := range words {
			if strings.Contains(w, tok) {
				n++
			}
		}
		if n == 0 {
			return 0, false
		}
		hits += n
	}
	return float64(hits) / float64(len(words)), true
}
