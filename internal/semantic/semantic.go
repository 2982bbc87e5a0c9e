// Package semantic assembles queries against Snowflake semantic views.
// Semantic views are queried through the SEMANTIC_VIEW() table function
// with DIMENSIONS, METRICS and FACTS clauses rather than plain column
// references; this package renders that shape from a structured spec so
// callers never concatenate it by hand.
package semantic

import (
	"fmt"
	"strings"

	"github.com/sfmcp/snowflake-mcp/internal/ident"
)

// Expression references one logical column of a semantic view, qualified
// by the logical table that defines it.
type Expression struct {
	Table string
	Name  string
}

func (e Expression) render() (string, error) {
	if err := ident.Validate(e.Table); err != nil {
		return "", fmt.Errorf("expression table: %w", err)
	}
	if err := ident.Validate(e.Name); err != nil {
		return "", fmt.Errorf("expression name: %w", err)
	}
	return e.Table + "." + e.Name, nil
}

// QuerySpec describes one semantic view query.
//
// Facts and Metrics are mutually exclusive: facts are row-level values,
// metrics are aggregations, and Snowflake rejects a query mixing both. At
// least one of Dimensions, Metrics or Facts must be present.
type QuerySpec struct {
	View       string
	Dimensions []Expression
	Metrics    []Expression
	Facts      []Expression
	// Where and OrderBy pass through verbatim, without their keywords.
	Where   string
	OrderBy string
	Limit   int
}

// BuildQuery renders the SEMANTIC_VIEW() select for a QuerySpec.
func BuildQuery(spec QuerySpec) (string, error) {
	if err := ident.ValidateQualified(spec.View); err != nil {
		return "", fmt.Errorf("semantic view name: %w", err)
	}
	if len(spec.Metrics) > 0 && len(spec.Facts) > 0 {
		return "", fmt.Errorf("metrics and facts are mutually exclusive in a semantic view query")
	}
	if len(spec.Dimensions)+len(spec.Metrics)+len(spec.Facts) == 0 {
		return "", fmt.Errorf("at least one dimension, metric or fact is required")
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM SEMANTIC_VIEW(")
	b.WriteString(spec.View)

	if err := writeClause(&b, "METRICS", spec.Metrics); err != nil {
		return "", err
	}
	if err := writeClause(&b, "DIMENSIONS", spec.Dimensions); err != nil {
		return "", err
	}
	if err := writeClause(&b, "FACTS", spec.Facts); err != nil {
		return "", err
	}
	b.WriteString(")")

	if spec.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(spec.Where)
	}
	if spec.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(spec.OrderBy)
	}
	if spec.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", spec.Limit)
	}
	return b.String(), nil
}

func writeClause(b *strings.Builder, keyword string, exprs []Expression) error {
	if len(exprs) == 0 {
		return nil
	}
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		rendered, err := e.render()
		if err != nil {
			return err
		}
		parts[i] = rendered
	}
	fmt.Fprintf(b, " %s %s", keyword, strings.Join(parts, ", "))
	return nil
}

// BuildShow renders the SHOW SEMANTIC VIEWS listing. like narrows by name
// pattern; in scopes to a database or schema.
func BuildShow(like, in string) (string, error) {
	var b strings.Builder
	b.WriteString("SHOW SEMANTIC VIEWS")
	if like != "" {
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

// ExpressionClass selects which logical column class to list.
type ExpressionClass string

const (
	Dimensions ExpressionClass = "DIMENSIONS"
	Metrics    ExpressionClass = "METRICS"
)

// BuildShowExpressions renders SHOW SEMANTIC DIMENSIONS or METRICS. scope
// narrows the listing: empty means the whole account, one part a database,
// two parts a schema, three parts a single view.
func BuildShowExpressions(class ExpressionClass, scope, like string) (string, error) {
	if class != Dimensions && class != Metrics {
		return "", fmt.Errorf("unsupported expression class %q", class)
	}

	var b strings.Builder
	b.WriteString("SHOW SEMANTIC ")
	b.WriteString(string(class))
	if like != "" {
		fmt.Fprintf(&b, " LIKE '%s'", ident.EscapeString(like))
	}
	if scope == "" {
		b.WriteString(" IN ACCOUNT")
		return b.String(), nil
	}
	if err := ident.ValidateQualified(scope); err != nil {
		return "", err
	}
	switch strings.Count(scope, ".") {
	case 0:
		b.WriteString(" IN DATABASE ")
	case 1:
		b.WriteString(" IN SCHEMA ")
	default:
		b.WriteString(" IN ")
	}
	b.WriteString(scope)
	return b.String(), nil
}

// BuildDescribe renders the DESCRIBE for one semantic view.
func BuildDescribe(view string) (string, error) {
	if err := ident.ValidateQualified(view); err != nil {
		return "", err
	}
	return "DESCRIBE SEMANTIC VIEW " + view, nil
}

// BuildGetDDL renders the GET_DDL call that returns the view's full
// definition. The third argument asks for fully qualified names in the
// output.
func BuildGetDDL(view string) (string, error) {
	if err := ident.ValidateQualified(view); err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT GET_DDL('SEMANTIC_VIEW', '%s', TRUE) AS DDL", view), nil
}
