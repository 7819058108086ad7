package intent

import "github.com/avelnar/tokensage/internal/tokensage/rules"

// Classifier scores a query against the ordered intent rule table.
//
// Policy: highest confidence wins, with declaration order breaking ties. A
// matching rule replaces the current best only when its confidence is
// strictly greater, so of two equal-confidence matches the first-declared
// rule's intent is returned. Rules are not mutually exclusive partitions;
// a "top tokens" query typically also matches the generic market fallback,
// which is why fallback rules carry deliberately low confidence.
type Classifier struct {
	rules []rules.CompiledIntentRule
}

// NewClassifier returns a Classifier over the compiled rule table.
func NewClassifier(table *rules.Compiled) *Classifier {
	return &Classifier{rules: table.Intents}
}

// Classify scores query against every rule and returns the winning intent,
// its base confidence, and the rule's candidate follow-up questions. When no
// rule matches, the intent is IntentUnknown with confidence 0.
//
// Classify is a pure function of the static rules and the input string.
func (c *Classifier) Classify(query string) Classification {
	best := Classification{Intent: IntentUnknown, Confidence: 0}
	for i := range c.rules {
		rule := &c.rules[i]
		if !rule.Matches(query) {
			continue
		}
		if rule.Confidence > best.Confidence {
			best = Classification{
				Intent:     rule.Intent,
				Confidence: rule.Confidence,
				FollowUps:  rule.FollowUps,
			}
		}
	}
	return best
}
