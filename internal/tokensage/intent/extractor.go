package intent

import "github.com/avelnar/tokensage/internal/tokensage/rules"

// Extractor scans a query for known asset references. Unlike the classifier,
// every entity rule is tested independently (a query may legitimately
// reference several assets) and all matches are returned, each carrying its
// own rule's confidence. Results follow rule declaration order.
type Extractor struct {
	rules []rules.CompiledEntityRule
}

// NewExtractor returns an Extractor over the compiled rule table.
func NewExtractor(table *rules.Compiled) *Extractor {
	return &Extractor{rules: table.Entities}
}

// Extract returns every entity whose pattern matches query. The result is
// nil when nothing matches. Extract is a pure function with no side effects;
// repeated calls over the same query yield the same entity set.
func (e *Extractor) Extract(query string) []Entity {
	var found []Entity
	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Matches(query) {
			continue
		}
		found = append(found, Entity{
			Symbol:     rule.Symbol,
			TokenID:    rule.TokenID,
			Confidence: rule.Confidence,
		})
	}
	return found
}
