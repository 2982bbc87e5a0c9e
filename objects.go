package sfmcp

import (
	"context"
	"fmt"

	"github.com/sfmcp/snowflake-mcp/internal/classify"
	"github.com/sfmcp/snowflake-mcp/internal/objects"
)

// CreateObject renders and runs a CREATE for the given object. The
// generated SQL goes through the same pipeline as raw SQL, so the policy's
// "create" entry governs it.
func (p *SnowflakeMcp) CreateObject(ctx context.Context, input ObjectInput) *QueryOutput {
	typ, ok := objects.TypeFromString(input.Type)
	if !ok {
		return p.handleError(fmt.Errorf("unsupported object type %q", input.Type))
	}
	sql, err := objects.BuildCreate(typ, input.Name, objects.CreateOptions{
		OrReplace:   input.OrReplace,
		IfNotExists: input.IfNotExists,
		Comment:     input.Comment,
		Properties:  input.Properties,
	})
	if err != nil {
		return p.handleError(err)
	}
	return p.run(ctx, sql, classify.KindCreate)
}

// DropObject renders and runs a DROP for the given object.
func (p *SnowflakeMcp) DropObject(ctx context.Context, input ObjectInput) *QueryOutput {
	typ, ok := objects.TypeFromString(input.Type)
	if !ok {
		return p.handleError(fmt.Errorf("unsupported object type %q", input.Type))
	}
	sql, err := objects.BuildDrop(typ, input.Name, input.IfExists)
	if err != nil {
		return p.handleError(err)
	}
	return p.run(ctx, sql, classify.KindDrop)
}

// ListObjects renders and runs a SHOW for the given object type.
func (p *SnowflakeMcp) ListObjects(ctx context.Context, input ObjectInput) *QueryOutput {
	typ, ok := objects.TypeFromString(input.Type)
	if !ok {
		return p.handleError(fmt.Errorf("unsupported object type %q", input.Type))
	}
	sql, err := objects.BuildList(typ, input.Like, input.In)
	if err != nil {
		return p.handleError(err)
	}
	return p.run(ctx, sql, classify.KindShow)
}

// DescribeObject renders and runs a DESCRIBE for the given object.
func (p *SnowflakeMcp) DescribeObject(ctx context.Context, input ObjectInput) *QueryOutput {
	typ, ok := objects.TypeFromString(input.Type)
	if !ok {
		return p.handleError(fmt.Errorf("unsupported object type %q", input.Type))
	}
	sql, err := objects.BuildDescribe(typ, input.Name)
	if err != nil {
		return p.handleError(err)
	}
	return p.run(ctx, sql, classify.KindDescribe)
}
