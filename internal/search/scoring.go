package search

import (
	"time"

	"github.com/hyperjump/kioku/internal/models"
)

// Ranking boosts. Every boost multiplies the term-match fraction and the
// final score is capped at 1.0, so a boost can promote but never fabricate
// relevance.
const (
	// contextAwareBoost applies to records flagged context_aware.
	contextAwareBoost = 1.10
	// recencyBoost applies to records created within recencyWindow.
	recencyBoost  = 1.05
	recencyWindow = 7 * 24 * time.Hour

	// objectiveBoost applies once per agent objective matched in the content.
	objectiveBoost = 1.15
	// stateBoost applies when the agent's state text appears in the content.
	stateBoost = 1.10
)

// relevanceScore computes the engine's relevance for a record: the fraction
// of query terms present in the content, boosted for context-aware and
// recently created records, capped at 1.0.
func relevanceScore(rec *models.VectorRecord, terms []string, now time.Time) (score float64, contextAware bool) {
	fraction, _ := termFraction(rec.Content, terms)
	score = fraction
	if rec.ContextAware() {
		contextAware = true
		score *= contextAwareBoost
	}
	if !rec.CreatedAt.IsZero() && now.Sub(rec.CreatedAt) < recencyWindow {
		score *= recencyBoost
	}
	if score > 1.0 {
		score = 1.0
	}
	return score, contextAware
}
