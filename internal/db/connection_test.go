package db

import (
	"path/filepath"
	"testing"
)

func TestOpen_Memory(t *testing.T) {
	gdb, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = Close(gdb) })

	if !gdb.Migrator().HasTable(&Blob{}) {
		t.Error("expected blobs table to be migrated")
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rtshare.sqlite3")

	gdb, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = Close(gdb) })

	if err := gdb.Create(&Blob{Key: "k", Value: []byte("v"), Size: 1}).Error; err != nil {
		t.Fatalf("insert failed: %v", err)
	}
}
