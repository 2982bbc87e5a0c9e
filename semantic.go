package sfmcp

import (
	"context"

	"github.com/sfmcp/snowflake-mcp/internal/classify"
	"github.com/sfmcp/snowflake-mcp/internal/semantic"
)

func toSemanticExpressions(in []SemanticExpression) []semantic.Expression {
	out := make([]semantic.Expression, len(in))
	for i, e := range in {
		out[i] = semantic.Expression{Table: e.Table, Name: e.Name}
	}
	return out
}

func (in SemanticQueryInput) spec() semantic.QuerySpec {
	return semantic.QuerySpec{
		View:       in.View,
		Dimensions: toSemanticExpressions(in.Dimensions),
		Metrics:    toSemanticExpressions(in.Metrics),
		Facts:      toSemanticExpressions(in.Facts),
		Where:      in.Where,
		OrderBy:    in.OrderBy,
		Limit:      in.Limit,
	}
}

// WriteSemanticViewQuery assembles the SEMANTIC_VIEW() SQL for the input
// without executing it, so callers can inspect or refine the query first.
func (p *SnowflakeMcp) WriteSemanticViewQuery(input SemanticQueryInput) *SemanticSQLOutput {
	sql, err := semantic.BuildQuery(input.spec())
	if err != nil {
		return &SemanticSQLOutput{Error: err.Error()}
	}
	return &SemanticSQLOutput{SQL: sql}
}

// QuerySemanticView assembles and runs the SEMANTIC_VIEW() query.
func (p *SnowflakeMcp) QuerySemanticView(ctx context.Context, input SemanticQueryInput) *QueryOutput {
	sql, err := semantic.BuildQuery(input.spec())
	if err != nil {
		return p.handleError(err)
	}
	return p.run(ctx, sql, semanticQueryKind(input))
}

// semanticQueryKind gates the raw clause text a semantic query embeds.
// Every other part of the assembled SQL is identifier-validated, but Where
// and OrderBy pass through verbatim, so their verdict comes from the
// classifier. SEMANTIC_VIEW() itself is newer syntax than the grammar, so
// each fragment is classified inside a minimal carrier select instead of
// the assembled statement: a fragment that breaks out of its clause turns
// the carrier into something other than a single select, and the whole
// query is gated as unknown.
func semanticQueryKind(input SemanticQueryInput) classify.Kind {
	if input.Where != "" {
		if classify.Classify("SELECT 1 FROM t WHERE "+input.Where) != classify.KindSelect {
			return classify.KindUnknown
		}
	}
	if input.OrderBy != "" {
		if classify.Classify("SELECT 1 FROM t ORDER BY "+input.OrderBy) != classify.KindSelect {
			return classify.KindUnknown
		}
	}
	return classify.KindSelect
}

// ListSemanticViews runs SHOW SEMANTIC VIEWS, optionally filtered and scoped.
func (p *SnowflakeMcp) ListSemanticViews(ctx context.Context, like, in string) *QueryOutput {
	sql, err := semantic.BuildShow(like, in)
	if err != nil {
		return p.handleError(err)
	}
	return p.run(ctx, sql, classify.KindShow)
}

// DescribeSemanticView runs DESCRIBE SEMANTIC VIEW for the given view.
func (p *SnowflakeMcp) DescribeSemanticView(ctx context.Context, view string) *QueryOutput {
	sql, err := semantic.BuildDescribe(view)
	if err != nil {
		return p.handleError(err)
	}
	return p.run(ctx, sql, classify.KindDescribe)
}

// ShowSemanticDimensions lists the dimensions visible in the given scope.
func (p *SnowflakeMcp) ShowSemanticDimensions(ctx context.Context, scope, like string) *QueryOutput {
	sql, err := semantic.BuildShowExpressions(semantic.Dimensions, scope, like)
	if err != nil {
		return p.handleError(err)
	}
	return p.run(ctx, sql, classify.KindShow)
}

// ShowSemanticMetrics lists the metrics visible in the given scope.
func (p *SnowflakeMcp) ShowSemanticMetrics(ctx context.Context, scope, like string) *QueryOutput {
	sql, err := semantic.BuildShowExpressions(semantic.Metrics, scope, like)
	if err != nil {
		return p.handleError(err)
	}
	return p.run(ctx, sql, classify.KindShow)
}

// GetSemanticViewDDL fetches the full DDL of a semantic view.
func (p *SnowflakeMcp) GetSemanticViewDDL(ctx context.Context, view string) *QueryOutput {
	sql, err := semantic.BuildGetDDL(view)
	if err != nil {
		return p.handleError(err)
	}
	return p.run(ctx, sql, classify.KindSelect)
}
