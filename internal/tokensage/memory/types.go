// Package memory implements per-user conversational context, per-user
// preferences, and per-session counters for the query pipeline. All state is
// process-lifetime and in-memory; eviction is TTL-based, applied lazily on
// read and by a periodic sweep.
package memory

import "time"

// Retention limits and TTLs for the three key-spaces.
const (
	// MaxRecentQueries bounds ConversationContext.RecentQueries.
	MaxRecentQueries = 5
	// MaxConversationFlow bounds ConversationContext.ConversationFlow.
	MaxConversationFlow = 10
	// MaxSessionErrors bounds SessionData.Errors.
	MaxSessionErrors = 20

	// ContextTTL is how long a user's conversation context survives without
	// an update before it is purged.
	ContextTTL = 24 * time.Hour
	// SessionIdleTTL is how long a session may sit idle before the sweep
	// removes it. Sessions are keyed separately from contexts because one
	// user may run concurrent sessions.
	SessionIdleTTL = time.Hour
)

// DiscussedToken is an asset reference remembered from an earlier turn.
type DiscussedToken struct {
	Symbol  string `json:"symbol"`
	TokenID int64  `json:"token_id,omitempty"`
}

// ConversationStep is one completed turn: what was asked, what ran, and what
// came back.
type ConversationStep struct {
	Query     string    `json:"query"`
	Operation string    `json:"operation"`
	Result    any       `json:"result,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
}

// ConversationContext is the per-user conversational memory. It is created on
// a user's first query and destroyed by TTL eviction or an explicit sweep.
// Only the context resolver reads it and only the response composer (via the
// store) mutates it.
type ConversationContext struct {
	LastQuery           string             `json:"last_query"`
	LastOperation       string             `json:"last_operation"`
	LastResult          any                `json:"last_result,omitempty"`
	RecentQueries       []string           `json:"recent_queries"` // newest first
	LastTokensDiscussed []DiscussedToken   `json:"last_tokens_discussed"`
	CurrentFocus        string             `json:"current_focus,omitempty"` // "" means no focus
	ConversationFlow    []ConversationStep `json:"conversation_flow"`
	LastUpdated         time.Time          `json:"last_updated"`
}

// PushQuery records q as the most recent query, trimming the history to
// MaxRecentQueries entries (newest first).
func (c *ConversationContext) PushQuery(q string) {
	c.LastQuery = q
	c.RecentQueries = append([]string{q}, c.RecentQueries...)
	if len(c.RecentQueries) > MaxRecentQueries {
		c.RecentQueries = c.RecentQueries[:MaxRecentQueries]
	}
}

// AppendStep appends a completed conversation step and trims the flow to the
// last MaxConversationFlow entries (oldest dropped first).
func (c *ConversationContext) AppendStep(step ConversationStep) {
	c.ConversationFlow = append(c.ConversationFlow, step)
	if len(c.ConversationFlow) > MaxConversationFlow {
		excess := len(c.ConversationFlow) - MaxConversationFlow
		c.ConversationFlow = c.ConversationFlow[excess:]
	}
}

// LastStep returns the most recent conversation step, or nil when the flow is
// empty.
func (c *ConversationContext) LastStep() *ConversationStep {
	if len(c.ConversationFlow) == 0 {
		return nil
	}
	return &c.ConversationFlow[len(c.ConversationFlow)-1]
}

// UserPreferences holds a user's sticky personalisation settings. Created
// lazily on first update, never auto-expired, and merged (not replaced) on
// every update.
type UserPreferences struct {
	FavoriteTokens   []string        `json:"favorite_tokens,omitempty"`
	PreferredSectors []string        `json:"preferred_sectors,omitempty"`
	RiskTolerance    string          `json:"risk_tolerance,omitempty"` // low | medium | high
	AnalysisDepth    string          `json:"analysis_depth,omitempty"` // basic | standard | detailed
	Notifications    map[string]bool `json:"notifications,omitempty"`
}

// merge folds other into p: scalar fields override when set, list fields
// union (preserving order, dropping duplicates), notification flags overlay
// key by key.
func (p *UserPreferences) merge(other UserPreferences) {
	p.FavoriteTokens = unionStrings(p.FavoriteTokens, other.FavoriteTokens)
	p.PreferredSectors = unionStrings(p.PreferredSectors, other.PreferredSectors)
	if other.RiskTolerance != "" {
		p.RiskTolerance = other.RiskTolerance
	}
	if other.AnalysisDepth != "" {
		p.AnalysisDepth = other.AnalysisDepth
	}
	if len(other.Notifications) > 0 {
		if p.Notifications == nil {
			p.Notifications = make(map[string]bool, len(other.Notifications))
		}
		for k, v := range other.Notifications {
			p.Notifications[k] = v
		}
	}
}

// IsFavorite reports whether symbol is in the user's favorites.
func (p *UserPreferences) IsFavorite(symbol string) bool {
	if p == nil {
		return false
	}
	for _, f := range p.FavoriteTokens {
		if f == symbol {
			return true
		}
	}
	return false
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SessionError is one entry in a session's bounded error log.
type SessionError struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// SessionData holds per-session counters. Keyed by session ID, not user ID:
// one user may run concurrent sessions with independent accounting.
type SessionData struct {
	QueryCount   int            `json:"query_count"`
	StartedAt    time.Time      `json:"started_at"`
	LastActivity time.Time      `json:"last_activity"`
	APICalls     int            `json:"api_calls"`
	Errors       []SessionError `json:"errors,omitempty"`
}
