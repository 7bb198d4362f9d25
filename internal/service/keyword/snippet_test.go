package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippet(t *testing.T) {
	tests := []struct {
		name     string
		original string
		tokens   []string
		width    int
		want     string
	}{
		{"whole text", "Graph Databases in Practice", []string{"graph"}, 80, "<b>Graph</b> Databases in Practice"},
		{"window", "aaaa bbbb graph cccc dddd", []string{"graph"}, 8, "...b <b>graph</b> ..."},
		{"several tokens", "graph of graphs", []string{"graph", "graphs"}, 80, "<b>graph</b> of <b>graphs</b>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := snippet(tt.original, normalize(tt.original), tt.tokens, tt.width)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"graph", "db", "2024"}, tokenize("graph-db, 2024!"))
	assert.Empty(t, tokenize(" .;"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, normalize("école"), normalize("ÉCOLE"))
	assert.Equal(t, "strasse", normalize("Straße"))
}
