package search

import (
	"strings"

	"github.com/hyperjump/kioku/internal/models"
)

// DefaultSnippetLength is the snippet window size used when options leave it unset.
const DefaultSnippetLength = 200

// boundarySlack is the share of a window a boundary trim may discard before
// a mid-word cut is preferred instead.
const boundarySlack = 0.2

// GenerateSnippet extracts the most query-relevant window of content.
// Content at or under snippetLength is returned verbatim. Otherwise
// overlapping windows are scored by the count of distinct query terms they
// contain, the best window wins, and its edges are trimmed to sentence or
// word boundaries. A mid-word cut survives only when every boundary trim
// would discard more than about 20% of the window.
func GenerateSnippet(content, query string, snippetLength int) *models.Snippet {
	if snippetLength <= 0 {
		snippetLength = DefaultSnippetLength
	}
	terms := ExtractTerms(query)

	if len(content) <= snippetLength {
		_, matched := termFraction(content, terms)
		return &models.Snippet{
			Text:         content,
			MatchedTerms: matched,
			Offset:       0,
			Length:       len(content),
		}
	}

	step := snippetLength / 4
	if step < 1 {
		step = 1
	}
	bestStart, bestCount := 0, -1
	for start := 0; start < len(content)-snippetLength+step; start += step {
		end := start + snippetLength
		if end > len(content) {
			end = len(content)
			start = end - snippetLength
		}
		_, matched := termFraction(content[start:end], terms)
		if len(matched) > bestCount {
			bestCount = len(matched)
			bestStart = start
		}
		if end == len(content) {
			break
		}
	}

	start := bestStart
	end := bestStart + snippetLength
	start = trimStartToBoundary(content, start, snippetLength)
	end = trimEndToBoundary(content, end, snippetLength)
	if end <= start {
		end = bestStart + snippetLength
		start = bestStart
	}

	text := strings.TrimSpace(content[start:end])
	_, matched := termFraction(text, terms)
	return &models.Snippet{
		Text:         text,
		MatchedTerms: matched,
		Offset:       start,
		Length:       len(text),
	}
}

// trimStartToBoundary advances start to just past a sentence end, or failing
// that a word break, searching no deeper than the slack share of the window.
func trimStartToBoundary(content string, start, window int) int {
	if start == 0 {
		return 0
	}
	limit := start + int(float64(window)*boundarySlack)
	if limit > len(content) {
		limit = len(content)
	}
	for i := start; i < limit-1; i++ {
		if isSentenceEnd(content[i]) && content[i+1] == ' ' {
			return i + 2
		}
	}
	for i := start; i < limit; i++ {
		if content[i] == ' ' {
			return i + 1
		}
	}
	return start
}

// trimEndToBoundary pulls end back to a sentence end, or failing that a word
// break, discarding no more than the slack share of the window.
func trimEndToBoundary(content string, end, window int) int {
	if end >= len(content) {
		return len(content)
	}
	limit := end - int(float64(window)*boundarySlack)
	if limit < 0 {
		limit = 0
	}
	for i := end - 1; i > limit; i-- {
		if isSentenceEnd(content[i]) {
			return i + 1
		}
	}
	for i := end - 1; i > limit; i-- {
		if content[i] == ' ' {
			return i
		}
	}
	return end
}

func isSentenceEnd(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}
