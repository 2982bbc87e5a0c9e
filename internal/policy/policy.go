// Package policy loads and evaluates the SQL statement permission policy.
//
// The policy is closed-world and default-deny: a statement kind not present
// in the loaded file is denied, never allowed. Loading is strict — a key
// outside the closed kind set, or listed twice, fails the whole load so the
// process never starts with an ambiguous policy.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sfmcp/snowflake-mcp/internal/classify"
)

// allKey is the explicit allow-everything election. It is the only
// recognized key outside the statement kind set, and opting into it must
// be deliberate: it never happens by omission.
const allKey = "all"

// ConfigError reports a malformed policy file. It is fatal at startup.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "policy config error: " + e.Reason
}

// file mirrors the on-disk YAML shape: a sequence of single-key maps.
//
//	sql_statement_permissions:
//	  - select: true
//	  - drop: false
type file struct {
	SQLStatementPermissions []map[string]bool `yaml:"sql_statement_permissions"`
}

// Policy is the validated kind→allow mapping. Immutable after Load;
// safe for concurrent readers without synchronization.
type Policy struct {
	entries  map[classify.Kind]bool
	allowAll bool
}

// Load reads and validates a policy file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("cannot read policy file %s: %v", path, err)}
	}
	return Parse(data)
}

// Parse validates raw YAML policy content. The returned Policy is complete
// or the error describes the first violation — a bad file is never
// partially applied.
func Parse(data []byte) (*Policy, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("invalid YAML: %v", err)}
	}

	p := &Policy{entries: make(map[classify.Kind]bool)}
	seen := make(map[string]struct{})

	for _, entry := range f.SQLStatementPermissions {
		for name, allowed := range entry {
			if _, dup := seen[name]; dup {
				return nil, &ConfigError{Reason: fmt.Sprintf("duplicate statement kind %q", name)}
			}
			seen[name] = struct{}{}

			if name == allKey {
				if !allowed {
					// "all: false" is a no-op spelled confusingly;
					// reject it rather than guess intent.
					return nil, &ConfigError{Reason: `"all: false" is meaningless: omit the key instead`}
				}
				p.allowAll = true
				continue
			}

			kind, ok := classify.KindFromString(name)
			if !ok {
				return nil, &ConfigError{Reason: fmt.Sprintf("unrecognized statement kind %q", name)}
			}
			p.entries[kind] = allowed
		}
	}

	return p, nil
}

// Entries returns a copy of the explicit kind→allow entries.
func (p *Policy) Entries() map[classify.Kind]bool {
	out := make(map[classify.Kind]bool, len(p.entries))
	for k, v := range p.entries {
		out[k] = v
	}
	return out
}

// AllowAll reports whether the policy elected the explicit allow-everything
// escape hatch.
func (p *Policy) AllowAll() bool { return p.allowAll }
