package sfmcp

// QueryInput is the input for the run_snowflake_query tool.
type QueryInput struct {
	SQL string `json:"sql"`
}

// QueryOutput is the output of every statement-executing tool. All errors
// (permission denials, Snowflake errors, connection failures, Go errors)
// are placed in Error; matching error-prompt guidance is appended to it.
// Rows are positional, parallel to Columns.
type QueryOutput struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	// Kind is the classified statement kind that was gated, when known.
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
	// StatusCode classifies Error with HTTP semantics: 400 rejected input,
	// 403 permission denial, 500 connection or backend failure. Zero on
	// success.
	StatusCode int `json:"status_code,omitempty"`
}

// ObjectInput is the input for the generic object management tools.
type ObjectInput struct {
	// Type is an object type name like "table" or "warehouse".
	Type string `json:"type"`
	Name string `json:"name"`

	// Create options.
	OrReplace   bool              `json:"or_replace,omitempty"`
	IfNotExists bool              `json:"if_not_exists,omitempty"`
	Comment     string            `json:"comment,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`

	// Drop option.
	IfExists bool `json:"if_exists,omitempty"`

	// List options.
	Like string `json:"like,omitempty"`
	In   string `json:"in,omitempty"`
}

// SemanticQueryInput is the input for query_semantic_view and
// write_semantic_view_query.
type SemanticQueryInput struct {
	View       string               `json:"view"`
	Dimensions []SemanticExpression `json:"dimensions,omitempty"`
	Metrics    []SemanticExpression `json:"metrics,omitempty"`
	Facts      []SemanticExpression `json:"facts,omitempty"`
	Where      string               `json:"where,omitempty"`
	OrderBy    string               `json:"order_by,omitempty"`
	Limit      int                  `json:"limit,omitempty"`
}

// SemanticExpression references one logical column of a semantic view.
type SemanticExpression struct {
	Table string `json:"table"`
	Name  string `json:"name"`
}

// SemanticSQLOutput is the output of write_semantic_view_query: the
// assembled SQL without executing it.
type SemanticSQLOutput struct {
	SQL   string `json:"sql"`
	Error string `json:"error,omitempty"`
}
