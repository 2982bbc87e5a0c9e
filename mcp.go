package sfmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sfmcp/snowflake-mcp/internal/objects"
)

// RegisterMCPTools registers the query, object management, and semantic
// view tools on the given MCP server.
func RegisterMCPTools(mcpServer *server.MCPServer, sfMcp *SnowflakeMcp) {
	registerQueryTool(mcpServer, sfMcp)
	registerObjectTools(mcpServer, sfMcp)
	registerSemanticTools(mcpServer, sfMcp)
}

func registerQueryTool(mcpServer *server.MCPServer, sfMcp *SnowflakeMcp) {
	queryTool := mcp.NewTool("run_snowflake_query",
		mcp.WithDescription("Execute a SQL statement against Snowflake. The statement is classified and checked against the configured permission policy before execution. Returns results as JSON."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
	)

	mcpServer.AddTool(queryTool, sfMcp.loggedToolHandler("run_snowflake_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return toolErrorResult("run_snowflake_query", "sql parameter is required", 400), nil
		}
		return toolResult("run_snowflake_query", sfMcp.Query(ctx, QueryInput{SQL: sql}))
	}))
}

func registerObjectTools(mcpServer *server.MCPServer, sfMcp *SnowflakeMcp) {
	typeNames := make([]string, 0, len(objects.Types()))
	for _, t := range objects.Types() {
		typeNames = append(typeNames, string(t))
	}
	typeDesc := "Object type, one of: " + strings.Join(typeNames, ", ")

	createTool := mcp.NewTool("create_object",
		mcp.WithDescription("Create a Snowflake object (database, schema, table, warehouse, compute pool, role, user, stage, image repository, view). Subject to the same permission policy as raw SQL."),
		mcp.WithString("type", mcp.Required(), mcp.Description(typeDesc)),
		mcp.WithString("name", mcp.Required(), mcp.Description("Object name; qualified names like db.schema.name are allowed for schema-level objects")),
		mcp.WithBoolean("or_replace", mcp.Description("Replace the object if it exists")),
		mcp.WithBoolean("if_not_exists", mcp.Description("Succeed quietly if the object already exists")),
		mcp.WithString("comment", mcp.Description("Optional COMMENT for the object")),
		mcp.WithObject("properties", mcp.Description("Optional object properties rendered as KEY = 'value' clauses, e.g. {\"warehouse_size\": \"XSMALL\"}")),
	)
	mcpServer.AddTool(createTool, sfMcp.loggedToolHandler("create_object", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, err := bindObjectInput(req)
		if err != nil {
			return toolErrorResult("create_object", err.Error(), 400), nil
		}
		return toolResult("create_object", sfMcp.CreateObject(ctx, input))
	}))

	dropTool := mcp.NewTool("drop_object",
		mcp.WithDescription("Drop a Snowflake object. Subject to the same permission policy as raw SQL."),
		mcp.WithString("type", mcp.Required(), mcp.Description(typeDesc)),
		mcp.WithString("name", mcp.Required(), mcp.Description("Object name")),
		mcp.WithBoolean("if_exists", mcp.Description("Succeed quietly if the object does not exist")),
	)
	mcpServer.AddTool(dropTool, sfMcp.loggedToolHandler("drop_object", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, err := bindObjectInput(req)
		if err != nil {
			return toolErrorResult("drop_object", err.Error(), 400), nil
		}
		return toolResult("drop_object", sfMcp.DropObject(ctx, input))
	}))

	listTool := mcp.NewTool("list_objects",
		mcp.WithDescription("List Snowflake objects of one type, optionally filtered by a LIKE pattern and scoped to a database or schema."),
		mcp.WithString("type", mcp.Required(), mcp.Description(typeDesc)),
		mcp.WithString("like", mcp.Description("LIKE pattern, e.g. 'ord%'")),
		mcp.WithString("in", mcp.Description("Scope: a database name or db.schema")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(listTool, sfMcp.loggedToolHandler("list_objects", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, err := bindObjectInput(req)
		if err != nil {
			return toolErrorResult("list_objects", err.Error(), 400), nil
		}
		return toolResult("list_objects", sfMcp.ListObjects(ctx, input))
	}))

	describeTool := mcp.NewTool("describe_object",
		mcp.WithDescription("Describe one Snowflake object."),
		mcp.WithString("type", mcp.Required(), mcp.Description(typeDesc)),
		mcp.WithString("name", mcp.Required(), mcp.Description("Object name")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(describeTool, sfMcp.loggedToolHandler("describe_object", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, err := bindObjectInput(req)
		if err != nil {
			return toolErrorResult("describe_object", err.Error(), 400), nil
		}
		return toolResult("describe_object", sfMcp.DescribeObject(ctx, input))
	}))
}

func registerSemanticTools(mcpServer *server.MCPServer, sfMcp *SnowflakeMcp) {
	listTool := mcp.NewTool("list_semantic_views",
		mcp.WithDescription("List semantic views, optionally filtered by a LIKE pattern and scoped to a database or schema."),
		mcp.WithString("like", mcp.Description("LIKE pattern")),
		mcp.WithString("in", mcp.Description("Scope: a database name or db.schema")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(listTool, sfMcp.loggedToolHandler("list_semantic_views", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toolResult("list_semantic_views", sfMcp.ListSemanticViews(ctx, req.GetString("like", ""), req.GetString("in", "")))
	}))

	describeTool := mcp.NewTool("describe_semantic_view",
		mcp.WithDescription("Describe a semantic view: its logical tables, dimensions, metrics, and facts."),
		mcp.WithString("view", mcp.Required(), mcp.Description("Qualified view name, e.g. db.schema.view")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(describeTool, sfMcp.loggedToolHandler("describe_semantic_view", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		view, err := req.RequireString("view")
		if err != nil {
			return toolErrorResult("describe_semantic_view", "view parameter is required", 400), nil
		}
		return toolResult("describe_semantic_view", sfMcp.DescribeSemanticView(ctx, view))
	}))

	dimsTool := mcp.NewTool("show_semantic_dimensions",
		mcp.WithDescription("List semantic dimensions visible in a scope (account, database, schema, or one view)."),
		mcp.WithString("scope", mcp.Description("Empty for account, a database, db.schema, or db.schema.view")),
		mcp.WithString("like", mcp.Description("LIKE pattern")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(dimsTool, sfMcp.loggedToolHandler("show_semantic_dimensions", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toolResult("show_semantic_dimensions", sfMcp.ShowSemanticDimensions(ctx, req.GetString("scope", ""), req.GetString("like", "")))
	}))

	metricsTool := mcp.NewTool("show_semantic_metrics",
		mcp.WithDescription("List semantic metrics visible in a scope (account, database, schema, or one view)."),
		mcp.WithString("scope", mcp.Description("Empty for account, a database, db.schema, or db.schema.view")),
		mcp.WithString("like", mcp.Description("LIKE pattern")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(metricsTool, sfMcp.loggedToolHandler("show_semantic_metrics", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return toolResult("show_semantic_metrics", sfMcp.ShowSemanticMetrics(ctx, req.GetString("scope", ""), req.GetString("like", "")))
	}))

	ddlTool := mcp.NewTool("get_semantic_view_ddl",
		mcp.WithDescription("Fetch the full DDL of a semantic view."),
		mcp.WithString("view", mcp.Required(), mcp.Description("Qualified view name")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(ddlTool, sfMcp.loggedToolHandler("get_semantic_view_ddl", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		view, err := req.RequireString("view")
		if err != nil {
			return toolErrorResult("get_semantic_view_ddl", "view parameter is required", 400), nil
		}
		return toolResult("get_semantic_view_ddl", sfMcp.GetSemanticViewDDL(ctx, view))
	}))

	writeTool := mcp.NewTool("write_semantic_view_query",
		mcp.WithDescription("Assemble the SEMANTIC_VIEW() SQL for a semantic view query without executing it."),
		mcp.WithString("view", mcp.Required(), mcp.Description("Qualified view name")),
		mcp.WithArray("dimensions", mcp.Description("Dimension expressions, each {table, name}")),
		mcp.WithArray("metrics", mcp.Description("Metric expressions, each {table, name}; mutually exclusive with facts")),
		mcp.WithArray("facts", mcp.Description("Fact expressions, each {table, name}; mutually exclusive with metrics")),
		mcp.WithString("where", mcp.Description("WHERE clause body, without the keyword")),
		mcp.WithString("order_by", mcp.Description("ORDER BY clause body, without the keyword")),
		mcp.WithNumber("limit", mcp.Description("Row limit")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(writeTool, sfMcp.loggedToolHandler("write_semantic_view_query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input SemanticQueryInput
		if err := req.BindArguments(&input); err != nil {
			return toolErrorResult("write_semantic_view_query", fmt.Sprintf("invalid arguments: %v", err), 400), nil
		}
		output := sfMcp.WriteSemanticViewQuery(input)
		if output.Error != "" {
			return toolErrorResult("write_semantic_view_query", output.Error, 400), nil
		}
		return marshalResult(output)
	}))

	queryTool := mcp.NewTool("query_semantic_view",
		mcp.WithDescription("Assemble and execute a query against a semantic view."),
		mcp.WithString("view", mcp.Required(), mcp.Description("Qualified view name")),
		mcp.WithArray("dimensions", mcp.Description("Dimension expressions, each {table, name}")),
		mcp.WithArray("metrics", mcp.Description("Metric expressions, each {table, name}; mutually exclusive with facts")),
		mcp.WithArray("facts", mcp.Description("Fact expressions, each {table, name}; mutually exclusive with metrics")),
		mcp.WithString("where", mcp.Description("WHERE clause body, without the keyword")),
		mcp.WithString("order_by", mcp.Description("ORDER BY clause body, without the keyword")),
		mcp.WithNumber("limit", mcp.Description("Row limit")),
		mcp.WithReadOnlyHintAnnotation(true),
	)
	mcpServer.AddTool(queryTool, sfMcp.loggedToolHandler("query_semantic_view", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input SemanticQueryInput
		if err := req.BindArguments(&input); err != nil {
			return toolErrorResult("query_semantic_view", fmt.Sprintf("invalid arguments: %v", err), 400), nil
		}
		return toolResult("query_semantic_view", sfMcp.QuerySemanticView(ctx, input))
	}))
}

// bindObjectInput decodes the shared object tool arguments.
func bindObjectInput(req mcp.CallToolRequest) (ObjectInput, error) {
	var input ObjectInput
	if err := req.BindArguments(&input); err != nil {
		return ObjectInput{}, fmt.Errorf("invalid arguments: %v", err)
	}
	if input.Type == "" {
		return ObjectInput{}, fmt.Errorf("type parameter is required")
	}
	return input, nil
}

// toolError is the structured payload every tool returns on failure.
type toolError struct {
	Tool       string `json:"tool"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

func toolErrorResult(tool, message string, status int) *mcp.CallToolResult {
	b, err := json.Marshal(toolError{Tool: tool, Message: message, StatusCode: status})
	if err != nil {
		return mcp.NewToolResultError(message)
	}
	return mcp.NewToolResultError(string(b))
}

// toolResult converts a QueryOutput into an MCP result, mapping
// output.Error onto a structured tool error.
func toolResult(tool string, output *QueryOutput) (*mcp.CallToolResult, error) {
	if output.Error != "" {
		status := output.StatusCode
		if status == 0 {
			status = 500
		}
		return toolErrorResult(tool, output.Error, status), nil
	}
	return marshalResult(output)
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal tool result"), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (p *SnowflakeMcp) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		p.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
