package timeout

import (
	"testing"
	"time"

	"github.com/sfmcp/snowflake-mcp/internal/classify"
)

func TestResolve_FirstRegexMatchWins(t *testing.T) {
	t.Parallel()
	m := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: "(?i)information_schema", Timeout: 5 * time.Second},
			{Pattern: "(?i)JOIN", Timeout: 60 * time.Second},
		},
	})

	got := m.Resolve("SELECT * FROM information_schema.tables JOIN x JOIN y", classify.KindSelect)
	if got != 5*time.Second {
		t.Errorf("expected 5s (first match wins), got %v", got)
	}
}

func TestResolve_KindTimeoutWhenNoRegexMatches(t *testing.T) {
	t.Parallel()
	m := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: "(?i)information_schema", Timeout: 5 * time.Second},
		},
		KindTimeouts: map[classify.Kind]time.Duration{
			classify.KindCopy: 30 * time.Minute,
		},
	})

	got := m.Resolve("COPY INTO orders FROM @stage/orders", classify.KindCopy)
	if got != 30*time.Minute {
		t.Errorf("expected 30m from kind table, got %v", got)
	}
}

func TestResolve_RegexBeatsKind(t *testing.T) {
	t.Parallel()
	m := NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: "(?i)@hot_stage", Timeout: time.Minute},
		},
		KindTimeouts: map[classify.Kind]time.Duration{
			classify.KindCopy: 30 * time.Minute,
		},
	})

	got := m.Resolve("COPY INTO orders FROM @hot_stage/orders", classify.KindCopy)
	if got != time.Minute {
		t.Errorf("expected regex rule to beat kind table, got %v", got)
	}
}

func TestResolve_Default(t *testing.T) {
	t.Parallel()
	m := NewManager(Config{DefaultTimeout: 30 * time.Second})

	got := m.Resolve("SELECT 1", classify.KindSelect)
	if got != 30*time.Second {
		t.Errorf("expected 30s (default), got %v", got)
	}
}

func TestNewManagerPanicsOnInvalidRegex(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for invalid regex pattern")
		}
	}()
	NewManager(Config{
		DefaultTimeout: 30 * time.Second,
		Rules: []Rule{
			{Pattern: `[invalid`, Timeout: 5 * time.Second},
		},
	})
}
