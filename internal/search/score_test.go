package search

import (
	"strings"
	"testing"

	"satchel/internal/store"
)

func TestScoreRow(t *testing.T) {
	tests := []struct {
		name string
		row  store.SearchRow
		want float64
	}{
		{
			name: "no signals",
			row:  store.SearchRow{ExtractedText: "nothing relevant"},
			want: 0,
		},
		{
			name: "chapter title match",
			row:  store.SearchRow{ChapterTitle: strPtr("Volcanoes of the World")},
			want: 3.0,
		},
		{
			name: "topic match",
			row:  store.SearchRow{Topics: []string{"Volcanoes", "Erosion"}},
			want: 2.0,
		},
		{
			name: "keyword match",
			row:  store.SearchRow{Keywords: []string{"volcanoes"}},
			want: 1.5,
		},
		{
			name: "occurrences in text",
			row:  store.SearchRow{ExtractedText: "volcanoes here, volcanoes there, volcanoes everywhere"},
			want: 0.3,
		},
		{
			name: "signals are additive",
			row: store.SearchRow{
				ChapterTitle:  strPtr("All About Volcanoes"),
				Topics:        []string{"Volcanoes"},
				Keywords:      []string{"volcanoes"},
				ExtractedText: "volcanoes volcanoes",
			},
			want: 6.7,
		},
		{
			name: "capped at ten",
			row: store.SearchRow{
				ChapterTitle:  strPtr("Volcanoes"),
				Topics:        []string{"Volcanoes"},
				Keywords:      []string{"volcanoes"},
				ExtractedText: strings.Repeat("volcanoes ", 100),
			},
			want: 10.0,
		},
		{
			name: "matching is case-insensitive",
			row:  store.SearchRow{Topics: []string{"VOLCANOES"}},
			want: 2.0,
		},
		{
			name: "substring inside a longer term counts",
			row:  store.SearchRow{Keywords: []string{"supervolcanoes"}},
			want: 1.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreRow(&tt.row, "volcanoes")
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("scoreRow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContainsFold(t *testing.T) {
	if containsFold(nil, "x") {
		t.Error("containsFold(nil) = true")
	}
	if !containsFold([]string{"Alpha", "Beta"}, "beta") {
		t.Error("containsFold() missed case-folded match")
	}
	if containsFold([]string{"Alpha"}, "gamma") {
		t.Error("containsFold() matched absent needle")
	}
}
