// Package rules defines the static intent and entity rule tables that drive
// query classification, and the loading/validation path for operator-supplied
// rule files.
//
// Rule tables are ordered: the classifier resolves equal-confidence matches in
// favour of the earlier rule, so declaration order is a deliberate design
// parameter, not an accident of serialisation. Tables are read-only once
// compiled.
package rules

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// IntentRule maps a set of text patterns to an intent label with a base
// confidence and candidate follow-up questions. Patterns are regular
// expressions matched case-insensitively against the raw query.
type IntentRule struct {
	Intent     string   `yaml:"intent"`
	Patterns   []string `yaml:"patterns"`
	Confidence float64  `yaml:"confidence"`
	FollowUps  []string `yaml:"follow_ups,omitempty"`
}

// EntityRule maps one pattern to a canonical asset symbol with an optional
// numeric identifier and a base confidence.
type EntityRule struct {
	Pattern    string  `yaml:"pattern"`
	Symbol     string  `yaml:"symbol"`
	TokenID    int64   `yaml:"token_id,omitempty"`
	Confidence float64 `yaml:"confidence"`
}

// Set is the full rule configuration as decoded from YAML (or built in).
type Set struct {
	Intents  []IntentRule `yaml:"intents"`
	Entities []EntityRule `yaml:"entities"`
}

// CompiledIntentRule is an IntentRule with its patterns compiled.
type CompiledIntentRule struct {
	IntentRule
	patterns []*regexp.Regexp
}

// Matches reports whether any of the rule's patterns match query.
func (r *CompiledIntentRule) Matches(query string) bool {
	for _, p := range r.patterns {
		if p.MatchString(query) {
			return true
		}
	}
	return false
}

// CompiledEntityRule is an EntityRule with its pattern compiled.
type CompiledEntityRule struct {
	EntityRule
	pattern *regexp.Regexp
}

// Matches reports whether the rule's pattern matches query.
func (r *CompiledEntityRule) Matches(query string) bool {
	return r.pattern.MatchString(query)
}

// Compiled holds ready-to-use rule tables. It is immutable after Compile and
// safe for concurrent use.
type Compiled struct {
	Intents  []CompiledIntentRule
	Entities []CompiledEntityRule
}

// Compile validates set and compiles every pattern. Patterns are wrapped with
// (?i) so matching is case-insensitive regardless of how the rule was written.
func Compile(set *Set) (*Compiled, error) {
	if err := validateSet(set); err != nil {
		return nil, err
	}

	c := &Compiled{
		Intents:  make([]CompiledIntentRule, 0, len(set.Intents)),
		Entities: make([]CompiledEntityRule, 0, len(set.Entities)),
	}

	for i, rule := range set.Intents {
		cr := CompiledIntentRule{IntentRule: rule}
		for _, p := range rule.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("rules: intents[%d] (%q): bad pattern %q: %w", i, rule.Intent, p, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		c.Intents = append(c.Intents, cr)
	}

	for i, rule := range set.Entities {
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rules: entities[%d] (%q): bad pattern %q: %w", i, rule.Symbol, rule.Pattern, err)
		}
		c.Entities = append(c.Entities, CompiledEntityRule{EntityRule: rule, pattern: re})
	}

	return c, nil
}

// Parse decodes a YAML rules document, validates it against the embedded
// JSON schema, and compiles it. It is the canonical entry point for loading
// operator-supplied rule files.
func Parse(data []byte) (*Compiled, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("rules: parse: %w", err)
	}
	return Compile(&set)
}

// LoadFile reads and parses a rules file from disk.
func LoadFile(path string) (*Compiled, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return Parse(data)
}

// validateSet applies the structural checks that the JSON schema cannot
// express (and serves as the only validation layer for built-in tables,
// which skip the schema round trip).
func validateSet(set *Set) error {
	if set == nil {
		return fmt.Errorf("rules: set must not be nil")
	}
	if len(set.Intents) == 0 {
		return fmt.Errorf("rules: at least one intent rule is required")
	}

	for i, rule := range set.Intents {
		if strings.TrimSpace(rule.Intent) == "" {
			return fmt.Errorf("rules: intents[%d]: intent label must not be empty", i)
		}
		if len(rule.Patterns) == 0 {
			return fmt.Errorf("rules: intents[%d] (%q): at least one pattern is required", i, rule.Intent)
		}
		if rule.Confidence < 0 || rule.Confidence > 1 {
			return fmt.Errorf("rules: intents[%d] (%q): confidence %v outside [0,1]", i, rule.Intent, rule.Confidence)
		}
	}

	for i, rule := range set.Entities {
		if strings.TrimSpace(rule.Symbol) == "" {
			return fmt.Errorf("rules: entities[%d]: symbol must not be empty", i)
		}
		if strings.TrimSpace(rule.Pattern) == "" {
			return fmt.Errorf("rules: entities[%d] (%q): pattern must not be empty", i, rule.Symbol)
		}
		if rule.Confidence < 0 || rule.Confidence > 1 {
			return fmt.Errorf("rules: entities[%d] (%q): confidence %v outside [0,1]", i, rule.Symbol, rule.Confidence)
		}
	}

	return nil
}
