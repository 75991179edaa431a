package search

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"satchel/internal/store"
)

const (
	snippetBefore   = 50
	snippetAfter    = 100
	snippetMaxPlain = 200
	snippetEllipsis = "..."
)

// extractSnippet returns a bounded, query-relevant preview of a row's text.
// It prefers extracted text over the summary, windows around the first
// case-insensitive occurrence of the query, and falls back to a plain
// prefix when the query does not occur verbatim.
func extractSnippet(row *store.SearchRow, lowerQuery string) string {
	text := row.ExtractedText
	if text == "" {
		text = row.Summary
	}
	if text == "" {
		return ""
	}

	// The offset must be a byte position in text itself. Lowercasing the
	// whole text and indexing into that is wrong: case mapping changes
	// byte width for some runes, and the drifted offset can point past
	// the end of the original string.
	pos := indexFold(text, lowerQuery)
	if pos < 0 {
		if len(text) > snippetMaxPlain {
			return text[:snippetMaxPlain] + snippetEllipsis
		}
		return text
	}

	start := pos - snippetBefore
	if start < 0 {
		start = 0
	}
	end := pos + len(lowerQuery) + snippetAfter
	if end > len(text) {
		end = len(text)
	}

	snippet := text[start:end]
	if start > 0 {
		snippet = snippetEllipsis + snippet
	}
	if end < len(text) {
		snippet += snippetEllipsis
	}
	return snippet
}

// indexFold returns the byte offset in s of the first case-insensitive
// occurrence of the lowercased needle, or -1.
func indexFold(s, lowerNeedle string) int {
	if lowerNeedle == "" {
		return 0
	}
	for i := range s {
		if hasPrefixFold(s[i:], lowerNeedle) {
			return i
		}
	}
	return -1
}

func hasPrefixFold(s, lowerNeedle string) bool {
	for _, nr := range lowerNeedle {
		r, size := utf8.DecodeRuneInString(s)
		if size == 0 || unicode.ToLower(r) != nr {
			return false
		}
		s = s[size:]
	}
	return true
}

// highlighter wraps query tokens in markdown bold markers.
type highlighter struct {
	re *regexp.Regexp
}

// newHighlighter builds a case-insensitive matcher for every
// whitespace-delimited token of the query.
func newHighlighter(query string) *highlighter {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return &highlighter{}
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	re, err := regexp.Compile("(?i)(" + strings.Join(quoted, "|") + ")")
	if err != nil {
		return &highlighter{}
	}
	return &highlighter{re: re}
}

func (h *highlighter) highlight(snippet string) string {
	if h.re == nil || snippet == "" {
		return snippet
	}
	return h.re.ReplaceAllString(snippet, "**${1}**")
}
