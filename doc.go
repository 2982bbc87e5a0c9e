// Package sfmcp provides safe, policy-gated Snowflake access for AI agents
// through the Model Context Protocol (MCP).
//
// Every statement — whether supplied as raw SQL or generated by the object
// and semantic view tools — runs through one pipeline: grammar-aware
// classification into a closed statement-kind set, a default-deny
// permission gate driven by a YAML policy file, per-statement timeouts,
// resilient execution with bounded retries and transparent
// re-authentication, result sanitization, and truncation.
//
// Classification uses the ANTLR Snowflake grammar, so a DROP hidden in a
// string literal or comment never misclassifies, and multi-statement
// batches resolve to "unknown", which the gate always denies.
//
// # Library Usage
//
//	policyYAML, err := os.ReadFile("permissions.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	p, err := sfmcp.New(
//		sfmcp.ConnectionConfig{Account: "myorg-myaccount", User: "svc_mcp"},
//		sfmcp.Secrets{Password: os.Getenv("SNOWFLAKE_PASSWORD")},
//		policyYAML,
//		sfmcp.Config{Query: sfmcp.QueryConfig{DefaultTimeoutSeconds: 30}},
//		logger,
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close(ctx)
//
//	// Use directly
//	output := p.Query(ctx, sfmcp.QueryInput{SQL: "SELECT * FROM orders LIMIT 10"})
//
//	// Or register as MCP tools
//	sfmcp.RegisterMCPTools(mcpServer, p)
//
// # Policy
//
// The policy file is closed-world: every statement kind must be opted in,
// and anything absent is denied.
//
//	sql_statement_permissions:
//	  - select: true
//	  - show: true
//	  - describe: true
//	  - drop: false
package sfmcp
