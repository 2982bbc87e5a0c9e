// Package objects renders typed management commands (create, drop, list,
// describe) for the Snowflake object types the gateway manages. The output
// is plain SQL text: every generated statement still passes through
// classification and the permission gate like hand-written SQL, so an
// operator who denies "create" has denied object creation here too.
package objects

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sfmcp/snowflake-mcp/internal/ident"
)

// Type names a manageable Snowflake object type.
type Type string

const (
	TypeDatabase        Type = "database"
	TypeSchema          Type = "schema"
	TypeTable           Type = "table"
	TypeView            Type = "view"
	TypeWarehouse       Type = "warehouse"
	TypeComputePool     Type = "compute_pool"
	TypeRole            Type = "role"
	TypeUser            Type = "user"
	TypeStage           Type = "stage"
	TypeImageRepository Type = "image_repository"
)

// descriptor carries the SQL spelling and naming rules for one object type.
type descriptor struct {
	// keyword is the singular SQL keyword, e.g. "IMAGE REPOSITORY".
	keyword string
	// plural is the SHOW spelling, e.g. "IMAGE REPOSITORIES".
	plural string
	// qualified allows dotted names like db.schema.name.
	qualified bool
}

var registry = map[Type]descriptor{
	TypeDatabase:        {keyword: "DATABASE", plural: "DATABASES"},
	TypeSchema:          {keyword: "SCHEMA", plural: "SCHEMAS", qualified: true},
	TypeTable:           {keyword: "TABLE", plural: "TABLES", qualified: true},
	TypeView:            {keyword: "VIEW", plural: "VIEWS", qualified: true},
	TypeWarehouse:       {keyword: "WAREHOUSE", plural: "WAREHOUSES"},
	TypeComputePool:     {keyword: "COMPUTE POOL", plural: "COMPUTE POOLS"},
	TypeRole:            {keyword: "ROLE", plural: "ROLES"},
	TypeUser:            {keyword: "USER", plural: "USERS"},
	TypeStage:           {keyword: "STAGE", plural: "STAGES", qualified: true},
	TypeImageRepository: {keyword: "IMAGE REPOSITORY", plural: "IMAGE REPOSITORIES", qualified: true},
}

// Types lists every manageable type in stable order.
func Types() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// TypeFromString maps a lowercase name onto a Type.
func TypeFromString(name string) (Type, bool) {
	t := Type(name)
	_, ok := registry[t]
	return t, ok
}

// CreateOptions tunes a generated CREATE statement.
type CreateOptions struct {
	OrReplace   bool
	IfNotExists bool
	Comment     string
	// Properties render as KEY = 'value' clauses, sorted by key. Keys
	// must be identifiers; values are escaped into string literals.
	Properties map[string]string
}

// BuildCreate renders a CREATE statement for the given object.
func BuildCreate(t Type, name string, opts CreateOptions) (string, error) {
	desc, err := lookup(t)
	if err != nil {
		return "", err
	}
	if err := validateName(desc, name); err != nil {
		return "", err
	}
	if opts.OrReplace && opts.IfNotExists {
		return "", fmt.Errorf("OR REPLACE and IF NOT EXISTS are mutually exclusive")
	}

	var b strings.Builder
	b.WriteString("CREATE ")
	if opts.OrReplace {
		b.WriteString("OR REPLACE ")
	}
	b.WriteString(desc.keyword)
	if opts.IfNotExists {
		b.WriteString(" IF NOT EXISTS")
	}
	b.WriteString(" ")
	b.WriteString(name)

	keys := make([]string, 0, len(opts.Properties))
	for k := range opts.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := ident.Validate(k); err != nil {
			return "", fmt.Errorf("property %q: %w", k, err)
		}
		fmt.Fprintf(&b, " %s = '%s'", strings.ToUpper(k), ident.EscapeString(opts.Properties[k]))
	}

	if opts.Comment != "" {
		fmt.Fprintf(&b, " COMMENT = '%s'", ident.EscapeString(opts.Comment))
	}
	return b.String(), nil
}

// BuildDrop renders a DROP statement.
func BuildDrop(t Type, name string, ifExists bool) (string, error) {
	desc, err := lookup(t)
	if err != nil {
		return "", err
	}
	if err := validateName(desc, name); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("DROP ")
	b.WriteString(desc.keyword)
	if ifExists {
		b.WriteString(" IF EXISTS")
	}
	b.WriteString(" ")
	b.WriteString(name)
	return b.String(), nil
}

// BuildList renders a SHOW statement. like narrows by name pattern; in
// scopes the listing to a database or schema.
func BuildList(t Type, like, in string) (string, error) {
	desc, err := lookup(t)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("SHOW ")
	b.WriteString(desc.plural)
	if like != "" {
		// LIKE patterns are literals, not identifiers; % and _ are
		// meaningful and pass through escaped.
		fmt.Fprintf(&b, " LIKE '%s'", ident.EscapeString(like))
	}
	if in != "" {
		if err := ident.ValidateQualified(in); err != nil {
			return "", err
		}
		scope := "DATABASE"
		if strings.Contains(in, ".") {
			scope = "SCHEMA"
		}
		fmt.Fprintf(&b, " IN %s %s", scope, in)
	}
	return b.String(), nil
}

// BuildDescribe renders a DESCRIBE statement.
func BuildDescribe(t Type, name string) (string, error) {
	desc, err := lookup(t)
	if err != nil {
		return "", err
	}
	if err := validateName(desc, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("DESCRIBE %s %s", desc.keyword, name), nil
}

func lookup(t Type) (descriptor, error) {
	desc, ok := registry[t]
	if !ok {
		return descriptor{}, fmt.Errorf("unsupported object type %q", t)
	}
	return desc, nil
}

func validateName(desc descriptor, name string) error {
	if desc.qualified {
		return ident.ValidateQualified(name)
	}
	return ident.Validate(name)
}
