// Package compose turns dispatch results into conversational replies and
// records the exchange into the user's conversation context.
//
// Replies follow a fixed assembly order: lead-in, transition from the prior
// exchange, data summary, preference-derived insight, then at most two
// follow-up suggestions. The variation between replies comes from a small
// per-intent pool of lead-ins, not from the assembly order.
package compose

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avelnar/tokensage/internal/tokensage/dispatch"
	"github.com/avelnar/tokensage/internal/tokensage/intent"
	"github.com/avelnar/tokensage/internal/tokensage/memory"
)

// MaxFollowUps bounds the number of suggestions appended to a reply.
const MaxFollowUps = 2

// Composer builds natural-language replies and maintains per-user
// conversation context as a side effect of composing.
type Composer struct {
	store memory.Store
	pick  func(n int) int
	now   func() time.Time
}

// NewComposer returns a Composer over the given context store, using
// time-seeded lead-in selection.
func NewComposer(store memory.Store) *Composer {
	return NewComposerAt(store, func(n int) int {
		return int(time.Now().UnixNano()) % n
	}, time.Now)
}

// NewComposerAt is NewComposer with injectable selection and clock, for
// deterministic tests.
func NewComposerAt(store memory.Store, pick func(n int) int, now func() time.Time) *Composer {
	return &Composer{store: store, pick: pick, now: now}
}

// Input carries everything the composer needs about one processed query.
type Input struct {
	UserID    string
	Analysis  intent.QueryAnalysis
	Operation string
	Result    dispatch.Result
}

// Compose renders the reply for a completed dispatch and records the
// exchange into the user's conversation context. It handles both success
// and failure results.
func (c *Composer) Compose(in Input) string {
	var reply string
	if in.Result.Success {
		reply = c.composeSuccess(in)
	} else {
		reply = c.composeFailure(in)
	}
	c.recordExchange(in, reply)
	return reply
}

func (c *Composer) composeSuccess(in Input) string {
	ctx := c.store.Context(in.UserID)
	prefs := c.store.Preferences(in.UserID)

	parts := make([]string, 0, 5)
	parts = append(parts, c.leadIn(in.Analysis.Intent))
	if t := transition(ctx); t != "" {
		parts = append(parts, t)
	}
	parts = append(parts, summarize(in.Operation, in.Result.Payload))
	if insight := preferenceInsight(prefs, in.Analysis); insight != "" {
		parts = append(parts, insight)
	}
	if f := followUps(in.Analysis.FollowUps); f != "" {
		parts = append(parts, f)
	}
	return strings.Join(parts, " ")
}

func (c *Composer) composeFailure(in Input) string {
	parts := []string{
		"Sorry, I wasn't able to complete that request.",
		remediation(in.Result.Err),
	}
	return strings.Join(parts, " ")
}

// recordExchange appends the conversation step and refreshes the rolling
// context fields from this query's analysis.
func (c *Composer) recordExchange(in Input, reply string) {
	ctx := c.store.Context(in.UserID)
	if ctx == nil {
		ctx = &memory.ConversationContext{}
	}

	outcome := "ok"
	if !in.Result.Success {
		outcome = errText(in.Result.Err)
	}
	ctx.AppendStep(memory.ConversationStep{
		Query:     in.Analysis.Query,
		Operation: in.Operation,
		Result:    outcome,
		Timestamp: c.now(),
		Success:   in.Result.Success,
	})
	ctx.PushQuery(in.Analysis.Query)
	ctx.LastQuery = in.Analysis.Query
	ctx.LastOperation = in.Operation
	ctx.LastResult = reply

	if in.Analysis.Intent != intent.IntentUnknown {
		ctx.CurrentFocus = in.Analysis.Intent
	}
	if len(in.Analysis.Entities) > 0 {
		tokens := make([]memory.DiscussedToken, 0, len(in.Analysis.Entities))
		for _, e := range in.Analysis.Entities {
			tokens = append(tokens, memory.DiscussedToken{Symbol: e.Symbol, TokenID: e.TokenID})
		}
		ctx.LastTokensDiscussed = tokens
	}

	c.store.PutContext(in.UserID, ctx)
}

// leadIn picks an opener from the intent's pool, falling back to a generic
// pool for intents without one.
func (c *Composer) leadIn(label string) string {
	pool, ok := leadIns[label]
	if !ok {
		pool = leadIns["generic"]
	}
	return pool[c.pick(len(pool))]
}

var leadIns = map[string][]string{
	"price": {
		"Here's the latest pricing:",
		"Fresh off the market:",
		"Current price check:",
	},
	"trading-signals": {
		"Here's what the signals say:",
		"Signal update:",
	},
	"trader-grades": {
		"On the short-term grades:",
		"Trader grade check:",
	},
	"investor-grades": {
		"Looking at the long-term grades:",
		"Investor grade check:",
	},
	"market-sentiment": {
		"On the mood of the market:",
		"Sentiment check:",
	},
	"ohlcv": {
		"Here's the price history:",
		"Candle data coming up:",
	},
	"top-tokens": {
		"Here are the market leaders:",
		"Top of the board:",
	},
	"generic": {
		"Here's what I found:",
		"Got it:",
	},
}

// transition references the immediately preceding exchange, if any.
func transition(ctx *memory.ConversationContext) string {
	if ctx == nil {
		return ""
	}
	last := ctx.LastStep()
	if last == nil {
		return ""
	}
	if last.Success {
		return "Following up on your last question,"
	}
	return "Hopefully this goes better than the last attempt."
}

// preferenceInsight adds one framing line derived from stored preferences.
func preferenceInsight(prefs *memory.UserPreferences, analysis intent.QueryAnalysis) string {
	if prefs == nil {
		return ""
	}
	switch prefs.RiskTolerance {
	case "low":
		return "Given your low risk tolerance, treat short-term swings with caution."
	case "high":
		if analysis.Intent == "trading-signals" || analysis.Intent == "trader-grades" {
			return "With your appetite for risk, the short-term momentum here may interest you."
		}
	}
	if prefs.AnalysisDepth == "detailed" {
		return "Ask for a specific token or timeframe if you want me to go deeper."
	}
	return ""
}

// followUps renders at most MaxFollowUps suggestions.
func followUps(suggestions []string) string {
	if len(suggestions) == 0 {
		return ""
	}
	if len(suggestions) > MaxFollowUps {
		suggestions = suggestions[:MaxFollowUps]
	}
	return "You could also ask: " + strings.Join(suggestions, " Or: ")
}

// remediation suggests a next step matching the failure's classification.
func remediation(err error) string {
	switch dispatch.Classify(err) {
	case dispatch.KindValidation:
		return "Try rephrasing with a specific token, for example \"price of BTC\"."
	case dispatch.KindAuth:
		return "The market-data API rejected our credentials. Check the configured API key."
	case dispatch.KindNotFound:
		if errors.Is(err, dispatch.ErrOperationNotFound) {
			return "I'm not sure what you're after. You can ask about prices, grades, signals, sentiment, or price history."
		}
		return "I couldn't find data matching that request. Double-check the token symbol."
	default:
		return "The data source seems to be having trouble. Give it a moment and try again."
	}
}

func summarize(operation string, payload any) string {
	if f, ok := formatters[operation]; ok {
		if s, ok := f(payload); ok {
			return s
		}
	}
	return fmt.Sprintf("%d data points retrieved.", countItems(payload))
}

func errText(err error) string {
	if err == nil {
		return "error"
	}
	return err.Error()
}
