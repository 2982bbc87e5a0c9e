// Package errprompt maps backend error messages onto remediation guidance
// that is appended to tool errors. An LLM caller that sees "Warehouse is
// suspended" does not know about RESUME; the guidance tells it.
package errprompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule pairs an error-message regex with the guidance it triggers.
type Rule struct {
	Pattern string
	Message string
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Matcher checks error messages against patterns and returns guidance.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher creates a Matcher. Returns an error on invalid regex patterns.
func NewMatcher(rules []Rule) (*Matcher, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("errprompt: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Matcher{rules: compiled}, nil
}

// DefaultRules covers the Snowflake failure modes a gateway caller hits
// most often. Operators can extend or replace them in config.
func DefaultRules() []Rule {
	return []Rule{
		{
			Pattern: `(?i)warehouse .* is suspended`,
			Message: "The warehouse is suspended. Resume it with ALTER WAREHOUSE <name> RESUME, or ask an operator to enable auto-resume.",
		},
		{
			Pattern: `(?i)does not exist or not authorized`,
			Message: "The object does not exist or the current role cannot see it. Check the fully qualified name and the active role (SELECT CURRENT_ROLE()).",
		},
		{
			Pattern: `(?i)insufficient privileges`,
			Message: "The current role lacks the required privilege. Switch roles with USE ROLE or ask an administrator for a grant.",
		},
		{
			Pattern: `(?i)no active warehouse`,
			Message: "No warehouse is selected for this session. Pick one with USE WAREHOUSE <name>.",
		},
		{
			Pattern: `(?i)statement reached its statement or warehouse timeout`,
			Message: "The statement hit its timeout. Narrow the query or ask an operator to raise the timeout for this statement pattern.",
		},
	}
}

// Match checks the error message against all rules, top to bottom, and
// returns matching guidance joined with newlines. Empty string when
// nothing matches.
func (m *Matcher) Match(errMsg string) string {
	var matches []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			matches = append(matches, rule.message)
		}
	}
	return strings.Join(matches, "\n")
}

// MatchedPatterns returns the regex patterns that matched the given error
// message. Nil if no match.
func (m *Matcher) MatchedPatterns(errMsg string) []string {
	var patterns []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return patterns
}
