package service

import (
	"sort"
	"strings"

	"github.com/recallio/recallio/internal/domain"
)

const (
	// DefaultMaxPerSource caps how many hits any single source may
	// contribute to the context window.
	DefaultMaxPerSource = 3

	// DefaultMaxContextHits bounds the final window size.
	DefaultMaxContextHits = 20

	// minHitChars filters near-empty chunks out of the context window.
	minHitChars = 50
)

// ContextWindow is the diversified, ranked set of hits assembled into a
// prompt, plus the canonical display names of the sources represented.
type ContextWindow struct {
	Hits    []domain.SearchHit
	Sources []string
}

// SelectContext turns raw similarity hits into a context window.
//
// Pure top-K by score lets one highly relevant source crowd out every other
// document, so selection runs in two stages: hits are grouped by normalized
// source name and capped at maxPerSource per group, then the survivors are
// merged, re-ranked by score, and truncated to maxTotal. Sorts are stable,
// so score ties keep their original retrieval order. The first-seen casing
// of each source name is kept as its display name.
func SelectContext(hits []domain.SearchHit, maxPerSource, maxTotal int) ContextWindow {
	if maxPerSource <= 0 {
		maxPerSource = DefaultMaxPerSource
	}
	if maxTotal <= 0 {
		maxTotal = DefaultMaxContextHits
	}

	groups := make(map[string][]domain.SearchHit)
	display := make(map[string]string)
	var order []string

	for _, hit := range hits {
		if len(strings.TrimSpace(hit.Text)) < minHitChars {
			continue
		}
		key := normalizeSource(hit.Source)
		if _, seen := display[key]; !seen {
			display[key] = strings.TrimSpace(hit.Source)
			order = append(order, key)
		}
		groups[key] = append(groups[key], hit)
	}

	var selected []domain.SearchHit
	for _, key := range order {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Score > group[j].Score
		})
		if len(group) > maxPerSource {
			group = group[:maxPerSource]
		}
		selected = append(selected, group...)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Score > selected[j].Score
	})
	if len(selected) > maxTotal {
		selected = selected[:maxTotal]
	}

	// Source list reflects the window that survived truncation.
	var sources []string
	seen := make(map[string]bool)
	for _, hit := range selected {
		key := normalizeSource(hit.Source)
		if !seen[key] {
			seen[key] = true
			sources = append(sources, display[key])
		}
	}

	return ContextWindow{Hits: selected, Sources: sources}
}

// normalizeSource merges near-duplicate source labels ("Notes.pdf" vs
// "notes.pdf ") under one key.
func normalizeSource(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}
