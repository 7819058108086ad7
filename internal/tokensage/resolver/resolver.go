// Package resolver combines the current query analysis with a user's stored
// conversation context and preferences to resolve ambiguous references. It is
// a pure transform: it returns an adjusted analysis and never mutates the
// memory store. Persisting the outcome is the response composer's job.
package resolver

import (
	"github.com/avelnar/tokensage/internal/tokensage/intent"
	"github.com/avelnar/tokensage/internal/tokensage/memory"
)

const (
	// HighConfidence is the threshold above which a fresh classification is
	// trusted as-is and never overridden by conversational focus.
	HighConfidence = 0.8

	// CarryoverConfidence is assigned to entities carried over from earlier
	// turns and to focus-derived intent overrides. It sits deliberately
	// below HighConfidence so inherited context never outranks a fresh
	// detection.
	CarryoverConfidence = 0.7

	// FavoriteBoost is added to a detected entity's confidence when it is in
	// the user's favorites. Boosted confidence is clamped to 1.0 so stacked
	// boosts cannot push comparisons out of the [0,1] range.
	FavoriteBoost = 0.1
)

// Resolve applies the context-carryover rules in order:
//
//  1. Entity carryover: when the query detected no entities, the context
//     remembers previously discussed tokens, and the query contains an
//     anaphoric reference ("it", "that", "same", ...), the remembered tokens
//     are carried over at CarryoverConfidence.
//  2. Focus stickiness: when classification confidence is below
//     HighConfidence and the context carries a current focus, the focus
//     intent overrides the fresh classification at CarryoverConfidence.
//  3. Favorite boost: detected entities matching a favorite get
//     FavoriteBoost added, clamped to 1.0.
//
// ctx and prefs may be nil (fresh user); the analysis then passes through
// with only rule 3 skipped.
func Resolve(analysis intent.QueryAnalysis, ctx *memory.ConversationContext, prefs *memory.UserPreferences) intent.QueryAnalysis {
	out := analysis
	out.Entities = append([]intent.Entity(nil), analysis.Entities...)

	if ctx != nil {
		// Rule 1: carry previously discussed entities into an anaphoric
		// query that detected none of its own.
		if len(out.Entities) == 0 && len(ctx.LastTokensDiscussed) > 0 && intent.ContainsAnaphor(out.Query) {
			for _, tok := range ctx.LastTokensDiscussed {
				out.Entities = append(out.Entities, intent.Entity{
					Symbol:     tok.Symbol,
					TokenID:    tok.TokenID,
					Confidence: CarryoverConfidence,
				})
			}
			out.Clues = append(out.Clues, "entity-carryover")
		}

		// Rule 2: sticky focus across low-confidence turns. A confident
		// fresh classification always wins.
		if out.Confidence < HighConfidence && ctx.CurrentFocus != "" {
			out.Intent = ctx.CurrentFocus
			out.Confidence = CarryoverConfidence
			out.Clues = append(out.Clues, "focus-continuation")
		}
	}

	// Rule 3: boost favorites, clamped to 1.0.
	if prefs != nil {
		for i := range out.Entities {
			if prefs.IsFavorite(out.Entities[i].Symbol) {
				out.Entities[i].Confidence += FavoriteBoost
				if out.Entities[i].Confidence > 1.0 {
					out.Entities[i].Confidence = 1.0
				}
			}
		}
	}

	return out
}
