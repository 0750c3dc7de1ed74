package database

import (
	"path/filepath"
	"testing"
)

func TestDefaultPathOverride(t *testing.T) {
	t.Cleanup(ResetPath)

	path := filepath.Join(t.TempDir(), "vpsorder.db")
	SetPath(path)

	got, err := DefaultPath()
	if err != nil {
		t.Fatalf("DefaultPath error: %v", err)
	}
	if got != path {
		t.Fatalf("DefaultPath = %q, want %q", got, path)
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpsorder.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
}

func TestOpenSharedByTwoHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vpsorder.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })
	if _, err := first.Exec(`CREATE TABLE t (id INTEGER)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second Open error: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	if _, err := second.Exec(`INSERT INTO t (id) VALUES (1)`); err != nil {
		t.Fatalf("insert through second handle: %v", err)
	}
}
