package search

import (
	"strings"

	"satchel/internal/store"
)

// Scoring weights. Metadata matches outrank raw term frequency: topics,
// keywords, and chapter titles come from a targeted extraction step and are
// assumed higher-precision than free text.
const (
	chapterWeight    = 3.0
	topicWeight      = 2.0
	keywordWeight    = 1.5
	occurrenceWeight = 0.1
	maxScore         = 10.0
)

// scoreRow computes the additive relevance score for one row against a
// lowercased query.
func scoreRow(row *store.SearchRow, lowerQuery string) float64 {
	var score float64

	if row.ChapterTitle != nil && strings.Contains(strings.ToLower(*row.ChapterTitle), lowerQuery) {
		score += chapterWeight
	}
	if containsFold(row.Topics, lowerQuery) {
		score += topicWeight
	}
	if containsFold(row.Keywords, lowerQuery) {
		score += keywordWeight
	}

	score += float64(strings.Count(strings.ToLower(row.ExtractedText), lowerQuery)) * occurrenceWeight

	if score > maxScore {
		score = maxScore
	}
	return score
}

// containsFold reports whether any item contains the lowercased needle.
func containsFold(items []string, lowerNeedle string) bool {
	for _, item := range items {
		if strings.Contains(strings.ToLower(item), lowerNeedle) {
			return true
		}
	}
	return false
}
