// Package ident validates Snowflake object identifiers before they are
// interpolated into generated SQL. Generated statements still pass through
// classification and the permission gate; validation here exists so a
// malformed name fails with a clear message instead of a backend parse
// error, and so no name can smuggle extra statement text.
package ident

import (
	"fmt"
	"regexp"
	"strings"
)

// maxLength matches Snowflake's identifier length limit.
const maxLength = 255

var identPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Validate checks a single unquoted identifier.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("identifier is empty")
	}
	if len(name) > maxLength {
		return fmt.Errorf("identifier %q exceeds %d characters", name[:32]+"...", maxLength)
	}
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must start with a letter, underscore or $ and contain only letters, digits, underscores or $", name)
	}
	return nil
}

// ValidateQualified checks a dotted name like db.schema.table. Each part
// validates independently; the part count is the caller's concern.
func ValidateQualified(name string) error {
	if name == "" {
		return fmt.Errorf("identifier is empty")
	}
	for _, part := range strings.Split(name, ".") {
		if err := Validate(part); err != nil {
			return fmt.Errorf("in qualified name %q: %w", name, err)
		}
	}
	return nil
}

// EscapeString doubles single quotes for embedding a value in a SQL
// string literal.
func EscapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
