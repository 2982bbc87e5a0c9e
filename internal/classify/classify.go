// Package classify assigns a statement Kind to raw Snowflake SQL text.
//
// Classification is grammar-aware: statements are parsed with the ANTLR
// Snowflake grammar and the command rule under sql_command is mapped onto
// the closed Kind set via an explicit lookup table. Keyword sniffing is
// deliberately avoided — a DROP inside a string literal or comment must
// not classify as a drop.
//
// Anything the table does not cover classifies as KindUnknown: parse
// failures, empty input, unmapped command rules, and input containing
// more than one top-level statement. A batch like "SELECT 1; DROP TABLE T"
// is never classified by its first statement.
package classify

import (
	"strings"

	"github.com/antlr4-go/antlr/v4"
	parser "github.com/bytebase/parser/snowflake"
)

// kindByRule maps Snowflake grammar rule names onto statement kinds.
// Rules absent from this table classify as unknown.
var kindByRule = map[string]Kind{
	"query_statement":              KindSelect,
	"insert_statement":             KindInsert,
	"insert_multi_table_statement": KindInsert,
	"update_statement":             KindUpdate,
	"delete_statement":             KindDelete,
	"merge_statement":              KindMerge,
	"create_command":               KindCreate,
	"alter_command":                KindAlter,
	"drop_command":                 KindDrop,
	"undrop_command":               KindUndrop,
	"show_command":                 KindShow,
	"describe_command":             KindDescribe,
	"use_command":                  KindUse,
	"grant_to_role":                KindGrant,
	"grant_to_share":               KindGrant,
	"grant_ownership":              KindGrant,
	"grant_role":                   KindGrant,
	"revoke_from_role":             KindRevoke,
	"revoke_from_share":            KindRevoke,
	"revoke_role":                  KindRevoke,
	"begin_txn":                    KindBegin,
	"commit":                       KindCommit,
	"rollback":                     KindRollback,
	"set":                          KindSet,
	"unset":                        KindUnset,
	"truncate_table":               KindTruncate,
	"truncate_materialized_view":   KindTruncate,
	"call":                         KindCall,
	"comment":                      KindComment,
	"explain":                      KindExplain,
	"copy_into_table":              KindCopy,
	"copy_into_location":           KindCopy,
}

// descendRules are structural rules the classifier walks through to reach
// the command rule that carries the statement's kind.
var descendRules = map[string]struct{}{
	"snowflake_file": {},
	"batch":          {},
	"sql_command":    {},
	"ddl_command":    {},
	"dml_command":    {},
	"other_command":  {},
}

// silentErrorListener records whether any syntax error occurred without
// printing ANTLR diagnostics to stderr.
type silentErrorListener struct {
	*antlr.DefaultErrorListener
	failed bool
}

func (l *silentErrorListener) SyntaxError(
	_ antlr.Recognizer,
	_ interface{},
	_, _ int,
	_ string,
	_ antlr.RecognitionException,
) {
	l.failed = true
}

// Classify returns the Kind of the given SQL text.
// Pure and deterministic: identical input always yields the identical Kind,
// and concurrent calls need no synchronization.
func Classify(sql string) Kind {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return KindUnknown
	}

	// The grammar expects a terminated batch. Normalize trailing
	// semicolons so "SELECT 1" and "SELECT 1;" parse identically.
	normalized := strings.TrimRight(trimmed, " \t\n\r\f;") + "\n;"

	input := antlr.NewInputStream(normalized)
	lexer := parser.NewSnowflakeLexer(input)

	lexerErrors := &silentErrorListener{}
	lexer.RemoveErrorListeners()
	lexer.AddErrorListener(lexerErrors)

	stream := antlr.NewCommonTokenStream(lexer, antlr.TokenDefaultChannel)

	p := parser.NewSnowflakeParser(stream)
	p.BuildParseTrees = true

	parserErrors := &silentErrorListener{}
	p.RemoveErrorListeners()
	p.AddErrorListener(parserErrors)

	tree := p.Snowflake_file()

	if lexerErrors.failed || parserErrors.failed || tree == nil {
		return KindUnknown
	}

	commands := collectCommands(p, tree)
	if len(commands) != 1 {
		// Zero commands is unparseable input; more than one is a
		// multi-statement batch. Both resolve to unknown so the
		// permission gate denies by default.
		return KindUnknown
	}

	return classifyCommand(p, commands[0])
}

// collectCommands gathers every sql_command node in the parse tree.
func collectCommands(p antlr.Parser, node antlr.Tree) []antlr.ParserRuleContext {
	var out []antlr.ParserRuleContext
	ctx, ok := node.(antlr.ParserRuleContext)
	if ok && ruleName(p, ctx) == "sql_command" {
		return []antlr.ParserRuleContext{ctx}
	}
	for _, child := range node.GetChildren() {
		out = append(out, collectCommands(p, child)...)
	}
	return out
}

// classifyCommand walks down from a sql_command node until it reaches a
// rule present in the kind table. Rules that are neither mapped nor
// structural stop the walk and classify as unknown.
func classifyCommand(p antlr.Parser, ctx antlr.ParserRuleContext) Kind {
	name := ruleName(p, ctx)
	if kind, ok := kindByRule[name]; ok {
		return kind
	}
	if _, ok := descendRules[name]; !ok {
		return KindUnknown
	}
	for _, child := range ctx.GetChildren() {
		childCtx, ok := child.(antlr.ParserRuleContext)
		if !ok {
			continue
		}
		if kind := classifyCommand(p, childCtx); kind != KindUnknown {
			return kind
		}
	}
	return KindUnknown
}

func ruleName(p antlr.Parser, ctx antlr.ParserRuleContext) string {
	names := p.GetRuleNames()
	idx := ctx.GetRuleIndex()
	if idx < 0 || idx >= len(names) {
		return ""
	}
	return names[idx]
}
