package db

import (
	"context"
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsAnnotated(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, migrationsDir)
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) < 4 {
		t.Fatalf("expected at least 4 migrations, got %d", len(entries))
	}
	for _, e := range entries {
		raw, err := fs.ReadFile(migrationFiles, migrationsDir+"/"+e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		body := string(raw)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s missing goose annotations", e.Name())
		}
	}
}

func TestActiveJobIndexExcludesTerminalStatuses(t *testing.T) {
	raw, err := fs.ReadFile(migrationFiles, migrationsDir+"/00002_ingestion_jobs.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if !strings.Contains(string(raw), "WHERE status NOT IN ('completed', 'failed')") {
		t.Fatalf("expected partial unique index over non-terminal jobs")
	}
}

func TestChunkTableKeyedByDocumentAndIndex(t *testing.T) {
	raw, err := fs.ReadFile(migrationFiles, migrationsDir+"/00004_document_chunks.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, "PRIMARY KEY (document_id, chunk_index)") {
		t.Fatalf("expected chunks keyed by document and index")
	}
	if !strings.Contains(body, "embedding    vector(1536) NOT NULL") {
		t.Fatalf("expected a 1536-dimension chunk embedding")
	}
}

func TestRunMigrationsNilDatabaseNoop(t *testing.T) {
	if err := RunMigrations(context.Background(), nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
