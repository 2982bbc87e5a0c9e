// Package timeout resolves per-statement execution deadlines. Operators can
// target statements two ways: a regex over the SQL text, or the coarse
// statement kind. Regex rules win because they are more specific.
package timeout

import (
	"fmt"
	"regexp"
	"time"

	"github.com/sfmcp/snowflake-mcp/internal/classify"
)

// Rule pairs a SQL regex with the deadline it imposes.
type Rule struct {
	Pattern string
	Timeout time.Duration
}

// Config is the timeout resolver's configuration.
type Config struct {
	DefaultTimeout time.Duration
	// Rules match against the raw SQL text; first match wins.
	Rules []Rule
	// KindTimeouts apply when no regex rule matched. Useful for blanket
	// policies like "all COPY statements get 30 minutes".
	KindTimeouts map[classify.Kind]time.Duration
}

type compiledRule struct {
	pattern *regexp.Regexp
	timeout time.Duration
}

// Manager resolves the deadline for a statement.
type Manager struct {
	rules          []compiledRule
	kindTimeouts   map[classify.Kind]time.Duration
	defaultTimeout time.Duration
}

// NewManager creates a Manager. Panics on an invalid regex: timeout rules
// come from static config and a bad pattern should stop startup.
func NewManager(config Config) *Manager {
	compiled := make([]compiledRule, len(config.Rules))
	for i, r := range config.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			panic(fmt.Sprintf("timeout: invalid regex pattern %q: %v", r.Pattern, err))
		}
		compiled[i] = compiledRule{pattern: re, timeout: r.Timeout}
	}
	return &Manager{
		rules:          compiled,
		kindTimeouts:   config.KindTimeouts,
		defaultTimeout: config.DefaultTimeout,
	}
}

// Resolve returns the deadline for the given statement. Regex rules are
// checked first in declaration order, then the kind table, then the
// default.
func (m *Manager) Resolve(sql string, kind classify.Kind) time.Duration {
	for _, rule := range m.rules {
		if rule.pattern.MatchString(sql) {
			return rule.timeout
		}
	}
	if d, ok := m.kindTimeouts[kind]; ok {
		return d
	}
	return m.defaultTimeout
}
