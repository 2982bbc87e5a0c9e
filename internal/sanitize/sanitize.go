// Package sanitize applies regex-based redaction to result values before
// they leave the gateway. Rules typically mask emails, tokens, or internal
// hostnames that incidentally appear in query output.
package sanitize

import (
	"fmt"
	"regexp"
)

// Rule pairs a value regex with its replacement text.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Sanitizer rewrites string values in result rows.
type Sanitizer struct {
	rules []compiledRule
}

// NewSanitizer creates a Sanitizer. Returns an error on invalid regex patterns.
func NewSanitizer(rules []Rule) (*Sanitizer, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("sanitize: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Sanitizer{rules: compiled}, nil
}

// HasRules reports whether any rules are configured.
func (s *Sanitizer) HasRules() bool {
	return len(s.rules) > 0
}

// SanitizeRows rewrites every string value in the result rows in place and
// returns the same slice. VARIANT values surface from the driver as nested
// maps and slices; sanitization recurses into them.
func (s *Sanitizer) SanitizeRows(rows [][]any) [][]any {
	for _, row := range rows {
		for i, v := range row {
			row[i] = s.sanitizeValue(v)
		}
	}
	return rows
}

func (s *Sanitizer) sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		result := val
		for _, rule := range s.rules {
			result = rule.pattern.ReplaceAllString(result, rule.replacement)
		}
		return result
	case map[string]any:
		for k, item := range val {
			val[k] = s.sanitizeValue(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = s.sanitizeValue(item)
		}
		return val
	default:
		// Numeric, bool, nil pass through untouched.
		return v
	}
}
