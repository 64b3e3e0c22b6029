package search

import "strings"

// ExtractTerms splits a query on space and the punctuation ",.!?", drops
// tokens of length two or less, lower-cases, and de-duplicates preserving
// order. This is a deliberate heuristic, not tokenization.
func ExtractTerms(query string) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		switch r {
		case ' ', ',', '.', '!', '?':
			return true
		}
		return false
	})
	seen := make(map[string]struct{}, len(fields))
	var terms []string
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		term := strings.ToLower(f)
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	return terms
}

// termFraction returns the fraction of terms found in content
// (case-insensitive substring match), and the terms that matched.
func termFraction(content string, terms []string) (float64, []string) {
	if len(terms) == 0 {
		return 0, nil
	}
	lower := strings.ToLower(content)
	var matched []string
	for _, term := range terms {
		if strings.Contains(lower, term) {
			matched = append(matched, term)
		}
	}
	return float64(len(matched)) / float64(len(terms)), matched
}
