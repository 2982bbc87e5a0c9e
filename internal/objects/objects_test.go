package objects

import (
	"strings"
	"testing"
)

func mustBuild(t *testing.T, sql string, err error) string {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sql
}

func TestBuildCreate_Database(t *testing.T) {
	t.Parallel()
	s, err := BuildCreate(TypeDatabase, "analytics", CreateOptions{})
	sql := mustBuild(t, s, err)
	if sql != "CREATE DATABASE analytics" {
		t.Fatalf("got %q", sql)
	}
}

func TestBuildCreate_OrReplaceWithComment(t *testing.T) {
	t.Parallel()
	s, err := BuildCreate(TypeView, "analytics.public.v_orders", CreateOptions{
		OrReplace: true,
		Comment:   "reporting view; don't drop",
	})
	sql := mustBuild(t, s, err)
	want := "CREATE OR REPLACE VIEW analytics.public.v_orders COMMENT = 'reporting view; don''t drop'"
	if sql != want {
		t.Fatalf("got %q, want %q", sql, want)
	}
}

func TestBuildCreate_WarehouseProperties(t *testing.T) {
	t.Parallel()
	s, err := BuildCreate(TypeWarehouse, "reporting_wh", CreateOptions{
		IfNotExists: true,
		Properties: map[string]string{
			"warehouse_size": "XSMALL",
			"auto_suspend":   "60",
		},
	})
	sql := mustBuild(t, s, err)
	want := "CREATE WAREHOUSE IF NOT EXISTS reporting_wh AUTO_SUSPEND = '60' WAREHOUSE_SIZE = 'XSMALL'"
	if sql != want {
		t.Fatalf("got %q, want %q", sql, want)
	}
}

func TestBuildCreate_ImageRepository(t *testing.T) {
	t.Parallel()
	s, err := BuildCreate(TypeImageRepository, "analytics.apps.repo", CreateOptions{})
	sql := mustBuild(t, s, err)
	if sql != "CREATE IMAGE REPOSITORY analytics.apps.repo" {
		t.Fatalf("got %q", sql)
	}
}

func TestBuildCreate_OrReplaceIfNotExistsConflict(t *testing.T) {
	t.Parallel()
	_, err := BuildCreate(TypeTable, "t", CreateOptions{OrReplace: true, IfNotExists: true})
	if err == nil {
		t.Fatal("expected error for OR REPLACE + IF NOT EXISTS")
	}
}

func TestBuildCreate_RejectsInjectionInName(t *testing.T) {
	t.Parallel()
	_, err := BuildCreate(TypeDatabase, "x; DROP DATABASE prod", CreateOptions{})
	if err == nil {
		t.Fatal("expected error for malicious name")
	}
}

func TestBuildCreate_RejectsBadPropertyKey(t *testing.T) {
	t.Parallel()
	_, err := BuildCreate(TypeWarehouse, "wh", CreateOptions{
		Properties: map[string]string{"size = 'X'; DROP": "v"},
	})
	if err == nil {
		t.Fatal("expected error for malicious property key")
	}
}

func TestBuildCreate_QualifiedNameOnlyWhereAllowed(t *testing.T) {
	t.Parallel()
	if _, err := BuildCreate(TypeDatabase, "a.b", CreateOptions{}); err == nil {
		t.Fatal("database names must not be qualified")
	}
	if _, err := BuildCreate(TypeTable, "a.b.c", CreateOptions{}); err != nil {
		t.Fatalf("table names may be qualified: %v", err)
	}
}

func TestBuildDrop(t *testing.T) {
	t.Parallel()
	s, err := BuildDrop(TypeComputePool, "training_pool", true)
	sql := mustBuild(t, s, err)
	if sql != "DROP COMPUTE POOL IF EXISTS training_pool" {
		t.Fatalf("got %q", sql)
	}
	s, err = BuildDrop(TypeTable, "analytics.public.orders", false)
	sql = mustBuild(t, s, err)
	if sql != "DROP TABLE analytics.public.orders" {
		t.Fatalf("got %q", sql)
	}
}

func TestBuildList(t *testing.T) {
	t.Parallel()
	s, err := BuildList(TypeWarehouse, "", "")
	sql := mustBuild(t, s, err)
	if sql != "SHOW WAREHOUSES" {
		t.Fatalf("got %q", sql)
	}

	s, err = BuildList(TypeTable, "ord%", "analytics.public")
	sql = mustBuild(t, s, err)
	if sql != "SHOW TABLES LIKE 'ord%' IN SCHEMA analytics.public" {
		t.Fatalf("got %q", sql)
	}

	s, err = BuildList(TypeSchema, "", "analytics")
	sql = mustBuild(t, s, err)
	if sql != "SHOW SCHEMAS IN DATABASE analytics" {
		t.Fatalf("got %q", sql)
	}
}

func TestBuildList_EscapesLikePattern(t *testing.T) {
	t.Parallel()
	s, err := BuildList(TypeTable, "o'brien%", "")
	sql := mustBuild(t, s, err)
	if !strings.Contains(sql, "LIKE 'o''brien%'") {
		t.Fatalf("got %q", sql)
	}
}

func TestBuildList_RejectsBadScope(t *testing.T) {
	t.Parallel()
	if _, err := BuildList(TypeTable, "", "analytics; DROP TABLE x"); err == nil {
		t.Fatal("expected error for malicious scope")
	}
}

func TestBuildDescribe(t *testing.T) {
	t.Parallel()
	s, err := BuildDescribe(TypeUser, "svc_mcp")
	sql := mustBuild(t, s, err)
	if sql != "DESCRIBE USER svc_mcp" {
		t.Fatalf("got %q", sql)
	}
}

func TestTypeFromString(t *testing.T) {
	t.Parallel()
	for _, typ := range Types() {
		got, ok := TypeFromString(string(typ))
		if !ok || got != typ {
			t.Fatalf("TypeFromString(%q) = (%q, %v)", typ, got, ok)
		}
	}
	if _, ok := TypeFromString("tablespace"); ok {
		t.Fatal("unexpected type accepted")
	}
}
