package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_ReopenKeepsJournal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cobs.db")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	s, err := Open(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.NoError(t, s.WriteRepo(ctx, "hw", "heartwood"))
	require.NoError(t, s.Close())

	for range 2 {
		s, err = Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	}

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	ok, err := s.HasRepo(ctx, "hw")
	require.NoError(t, err)
	assert.True(t, ok, "schema setup must not drop existing rows")
	v, err := s.pragma("user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
		{"synchronous", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.pragma(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.expected {
				t.Errorf("PRAGMA %s = %q, want %q", tt.name, got, tt.expected)
			}
		})
	}
}

func TestOpen_MigratesV0Database(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	// A database from before the per-issue index existed.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE repos (id TEXT PRIMARY KEY, name TEXT NOT NULL DEFAULT '', created_at INTEGER NOT NULL) STRICT;
		CREATE TABLE actions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL, repo_id TEXT NOT NULL REFERENCES repos(id), issue_id TEXT NOT NULL,
			author TEXT NOT NULL, timestamp INTEGER NOT NULL, parents TEXT NOT NULL,
			op TEXT NOT NULL, signature BLOB NOT NULL, UNIQUE(repo_id, id)
		) STRICT;
	`); err != nil {
		t.Fatalf("create v0 schema: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_actions_issue'").Scan(&name)
	if err != nil {
		t.Fatalf("index missing after migration: %v", err)
	}
	if got, err := s.pragma("user_version"); err != nil || got != "1" {
		t.Errorf("user_version = %q, %v; want 1", got, err)
	}
}

func TestClose_Nil(t *testing.T) {
	var s Store
	if err := s.Close(); err != nil {
		t.Errorf("Close() on zero store: %v", err)
	}
}
