package keyword

import (
	"strings"
	"unicode/utf8"
)

const (
	markOpen  = "<b>"
	markClose = "</b>"
	ellipsis  = "..."
)

// snippet cuts a window of about width bytes around the first hit and
// marks every hit. Offsets come from the folded text; they are applied to
// the original only when folding kept every rune's encoded length,
// otherwise the folded text is shown.
func snippet(original, folded string, tokens []string, width int) string {
	src := original
	if !sameShape(original, folded) {
		src = folded
	}

	first := -1
	for _, tok := range tokens {
		if i := strings.Index(folded, tok); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	if first < 0 {
		first = 0
	}

	start := max(0, first-width/4)
	for start > 0 && !utf8.RuneStart(folded[start]) {
		start--
	}
	end := min(len(folded), start+width)
	for end < len(folded) && !utf8.RuneStart(folded[end]) {
		end++
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	for i := start; i < end; {
		if n := matchAt(folded[i:end], tokens); n > 0 {
			b.WriteString(markOpen)
			b.WriteString(src[i : i+n])
			b.WriteString(markClose)
			i += n
			continue
		}
		_, size := utf8.DecodeRuneInString(folded[i:])
		b.WriteString(src[i : i+size])
		i += size
	}
	if end < len(folded) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

// matchAt returns the length of the longest token at the start of s.
func matchAt(s string, tokens []string) int {
	n := 0
	for _, tok := range tokens {
		if len(tok) > n && strings.HasPrefix(s, tok) {
			n = len(tok)
		}
	}
	return n
}

// sameShape reports whether a and b have the same rune count and every
// pair of runes has the same encoded length.
func sameShape(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for len(a) > 0 {
		_, na := utf8.DecodeRuneInString(a)
		_, nb := utf8.DecodeRuneInString(b)
		if na != nb {
			return false
		}
		a, b = a[na:], b[nb:]
	}
	return true
}
