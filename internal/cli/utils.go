// Package cli provides CLI output utilities for Kioku.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	if !response.Success {
		fmt.Fprintf(w, "\nSearch failed: %s\n", response.Message)
		return
	}
	fmt.Fprintf(w, "\nFound %d results for %q in %dms\n", response.Total, response.Query, response.QueryTime)
	if response.Summary != "" {
		fmt.Fprintf(w, "%s\n", response.Summary)
	}
	fmt.Fprintln(w)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
}

func writeOneResult(w io.Writer, result *models.RankedRecord) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Similarity: %.4f | Relevance: %.4f", result.Rank, result.Similarity, result.Relevance)
	if result.ContextAware {
		fmt.Fprint(w, " | context-aware")
	}
	if result.MatchedObjectives > 0 {
		fmt.Fprintf(w, " | objectives: %d", result.MatchedObjectives)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "ID: %s\n", result.Record.ID)
	if result.Snippet != nil {
		fmt.Fprintf(w, "\n%s\n", result.Snippet.Text)
		if len(result.Snippet.MatchedTerms) > 0 {
			fmt.Fprintf(w, "Matched: %s\n", strings.Join(result.Snippet.MatchedTerms, ", "))
		}
	} else {
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(result.Record.Content, 200))
	}
	fmt.Fprintln(w)
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}
