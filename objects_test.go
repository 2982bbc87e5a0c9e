package sfmcp

import (
	"context"
	"strings"
	"testing"
)

func TestCreateObject_GeneratedSQLIsGated(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	p := newTestEngine(t, testPolicy, exec, nil)

	output := p.CreateObject(context.Background(), ObjectInput{
		Type: "database",
		Name: "analytics",
	})
	if output.Error != "" {
		t.Fatalf("unexpected error: %s", output.Error)
	}
	if exec.lastCall() != "CREATE DATABASE analytics" {
		t.Fatalf("executed %q", exec.lastCall())
	}
	if output.Kind != "create" {
		t.Fatalf("Kind = %q, want create", output.Kind)
	}
}

func TestDropObject_DeniedByPolicy(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	p := newTestEngine(t, testPolicy, exec, nil)

	output := p.DropObject(context.Background(), ObjectInput{
		Type:     "warehouse",
		Name:     "reporting_wh",
		IfExists: true,
	})
	if output.Error == "" || !strings.Contains(output.Error, "drop") {
		t.Fatalf("expected drop denial, got: %s", output.Error)
	}
	if exec.callCount() != 0 {
		t.Fatal("denied drop reached the executor")
	}
}

func TestListObjects(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	p := newTestEngine(t, testPolicy, exec, nil)

	output := p.ListObjects(context.Background(), ObjectInput{
		Type: "table",
		Like: "ord%",
		In:   "analytics.public",
	})
	if output.Error != "" {
		t.Fatalf("unexpected error: %s", output.Error)
	}
	if exec.lastCall() != "SHOW TABLES LIKE 'ord%' IN SCHEMA analytics.public" {
		t.Fatalf("executed %q", exec.lastCall())
	}
}

func TestDescribeObject(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	p := newTestEngine(t, testPolicy, exec, nil)

	output := p.DescribeObject(context.Background(), ObjectInput{
		Type: "table",
		Name: "analytics.public.orders",
	})
	if output.Error != "" {
		t.Fatalf("unexpected error: %s", output.Error)
	}
	if exec.lastCall() != "DESCRIBE TABLE analytics.public.orders" {
		t.Fatalf("executed %q", exec.lastCall())
	}
}

func TestObjectTools_UnknownType(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	p := newTestEngine(t, testPolicy, exec, nil)

	output := p.CreateObject(context.Background(), ObjectInput{Type: "tablespace", Name: "x"})
	if output.Error == "" || !strings.Contains(output.Error, "unsupported object type") {
		t.Fatalf("expected unsupported type error, got: %s", output.Error)
	}
	if exec.callCount() != 0 {
		t.Fatal("invalid input reached the executor")
	}
}

func TestObjectTools_BadNameNeverReachesBackend(t *testing.T) {
	t.Parallel()
	exec := &fakeExecutor{}
	p := newTestEngine(t, testPolicy, exec, nil)

	output := p.CreateObject(context.Background(), ObjectInput{
		Type: "database",
		Name: "x; DROP DATABASE prod",
	})
	if output.Error == "" {
		t.Fatal("expected identifier error")
	}
	if exec.callCount() != 0 {
		t.Fatal("malicious name reached the executor")
	}
}
