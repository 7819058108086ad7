// Package params turns a resolved query analysis plus user preferences into
// the concrete parameter object passed to the dispatched operation. Build is
// deterministic: the same (analysis, preferences) pair always yields the same
// parameters, with no randomness and no clock reads.
package params

import (
	"strings"

	"github.com/avelnar/tokensage/internal/tokensage/intent"
	"github.com/avelnar/tokensage/internal/tokensage/memory"
)

// HighConfidence is the minimum confidence at which a detected entity is
// attached as the primary parameter. Below it, no entity is attached and the
// operation must run an unscoped/aggregate query instead of guessing.
const HighConfidence = 0.8

// DefaultLimit is the page size used when an intent has no tuned default.
const DefaultLimit = 20

// Parameters is the operation-call parameter object carried inside the
// dispatch message content.
type Parameters struct {
	// Symbol and TokenID identify the primary entity. Both are zero when no
	// entity met the confidence bar.
	Symbol  string `json:"symbol,omitempty"`
	TokenID int64  `json:"token_id,omitempty"`

	// Pagination defaults are always set.
	Page  int `json:"page"`
	Limit int `json:"limit"`

	// Interval selects candle granularity for chart-style operations.
	Interval string `json:"interval,omitempty"` // daily | hourly

	// AnalysisDepth mirrors the user's preference (basic|standard|detailed).
	AnalysisDepth string `json:"analysis_depth"`
}

// intentLimits tunes the result-count default per intent: larger for
// chart-style data, smaller for single-entity lookups.
var intentLimits = map[string]int{
	"price":            5,
	"ohlcv":            50,
	"top-tokens":       10,
	"market-sentiment": 7,
	"trading-signals":  20,
	"trader-grades":    20,
	"investor-grades":  20,
}

// Build constructs the parameter object for the resolved analysis.
func Build(analysis intent.QueryAnalysis, prefs *memory.UserPreferences) Parameters {
	p := Parameters{
		Page:          1,
		Limit:         DefaultLimit,
		AnalysisDepth: "standard",
	}

	if limit, ok := intentLimits[analysis.Intent]; ok {
		p.Limit = limit
	}

	if top := analysis.TopEntity(); top != nil && top.Confidence >= HighConfidence {
		p.Symbol = top.Symbol
		p.TokenID = top.TokenID
	}

	if analysis.Intent == "ohlcv" {
		p.Interval = "daily"
		if strings.Contains(strings.ToLower(analysis.Query), "hour") {
			p.Interval = "hourly"
		}
	}

	if prefs != nil && prefs.AnalysisDepth != "" {
		p.AnalysisDepth = prefs.AnalysisDepth
	}

	return p
}
