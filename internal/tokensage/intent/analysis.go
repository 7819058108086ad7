// Package intent turns free-text queries into a scored intent, a set of
// detected asset entities, and lightweight analysis tags. Classification is
// rule-based and fully deterministic: every function in this package is a
// pure transform over the static rule tables and the input string.
package intent

import "strings"

// Entity is a recognised asset reference inside a query.
type Entity struct {
	Symbol     string  `json:"symbol"`
	TokenID    int64   `json:"token_id,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Classification is the classifier's verdict for one query.
type Classification struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	FollowUps  []string `json:"follow_ups,omitempty"`
}

// IntentUnknown is returned when no rule pattern matches the query.
const IntentUnknown = "unknown"

// QueryAnalysis is the ephemeral per-query product of classification,
// extraction, and tagging. It is mutated by the context resolver and folded
// into conversation memory by the response composer; it is never persisted
// on its own.
type QueryAnalysis struct {
	Query      string   `json:"query"`
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []Entity `json:"entities"`
	FollowUps  []string `json:"follow_ups,omitempty"`
	Clues      []string `json:"clues,omitempty"`
	Sentiment  string   `json:"sentiment"`
	Urgency    string   `json:"urgency"`
	Complexity string   `json:"complexity"`
}

// TopEntity returns the highest-confidence detected entity, or nil when no
// entity was detected. Ties resolve to the earlier entity.
func (a *QueryAnalysis) TopEntity() *Entity {
	if len(a.Entities) == 0 {
		return nil
	}
	best := &a.Entities[0]
	for i := 1; i < len(a.Entities); i++ {
		if a.Entities[i].Confidence > best.Confidence {
			best = &a.Entities[i]
		}
	}
	return best
}

// Analyzer bundles a classifier and an extractor and produces a full
// QueryAnalysis in one call.
type Analyzer struct {
	Classifier *Classifier
	Extractor  *Extractor
}

// Analyze classifies query, extracts entities, and attaches analysis tags.
func (a *Analyzer) Analyze(query string) QueryAnalysis {
	cls := a.Classifier.Classify(query)
	return QueryAnalysis{
		Query:      query,
		Intent:     cls.Intent,
		Confidence: cls.Confidence,
		Entities:   a.Extractor.Extract(query),
		FollowUps:  cls.FollowUps,
		Clues:      detectClues(query),
		Sentiment:  detectSentiment(query),
		Urgency:    detectUrgency(query),
		Complexity: detectComplexity(query),
	}
}

// anaphorTokens is the closed set of reference words that signal the query
// leans on earlier conversation ("what about it", "that one too").
var anaphorTokens = []string{"it", "this", "that", "same", "also"}

// ContainsAnaphor reports whether query contains one of the closed set of
// anaphoric reference tokens. The context resolver uses this to decide
// whether previously discussed entities may be carried over.
func ContainsAnaphor(query string) bool {
	for _, w := range tokenize(query) {
		for _, a := range anaphorTokens {
			if w == a {
				return true
			}
		}
	}
	return false
}

// tokenize lowers the query and splits it into alphanumeric words.
func tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// detectClues tags structural hints in the query that downstream stages and
// response templating can key on.
func detectClues(query string) []string {
	var clues []string
	if ContainsAnaphor(query) {
		clues = append(clues, "reference")
	}
	lower := strings.ToLower(query)
	if strings.Contains(lower, "compare") || strings.Contains(lower, " vs ") || strings.Contains(lower, "versus") {
		clues = append(clues, "comparison")
	}
	for _, w := range []string{"today", "right now", "this week", "currently", "latest"} {
		if strings.Contains(lower, w) {
			clues = append(clues, "timeframe")
			break
		}
	}
	if strings.Contains(lower, "why") || strings.Contains(lower, "explain") {
		clues = append(clues, "explanation")
	}
	return clues
}

var (
	positiveWords = []string{"bullish", "moon", "pump", "gain", "rally", "up", "good"}
	negativeWords = []string{"bearish", "crash", "dump", "loss", "drop", "down", "bad"}
)

// detectSentiment produces a coarse positive/negative/neutral tag from the
// query wording itself (not from market data).
func detectSentiment(query string) string {
	words := tokenize(query)
	score := 0
	for _, w := range words {
		for _, p := range positiveWords {
			if w == p {
				score++
			}
		}
		for _, n := range negativeWords {
			if w == n {
				score--
			}
		}
	}
	switch {
	case score > 0:
		return "positive"
	case score < 0:
		return "negative"
	default:
		return "neutral"
	}
}

// detectUrgency tags queries that ask for an immediate answer.
func detectUrgency(query string) string {
	lower := strings.ToLower(query)
	for _, w := range []string{"urgent", "asap", "immediately", "quick", "right now"} {
		if strings.Contains(lower, w) {
			return "high"
		}
	}
	return "normal"
}

// detectComplexity buckets the query by size and conjunction use so the
// composer can calibrate how much detail to include.
func detectComplexity(query string) string {
	words := tokenize(query)
	conjunctions := 0
	for _, w := range words {
		if w == "and" || w == "or" {
			conjunctions++
		}
	}
	switch {
	case len(words) > 15 || conjunctions >= 2:
		return "complex"
	case len(words) <= 5 && conjunctions == 0:
		return "simple"
	default:
		return "moderate"
	}
}
