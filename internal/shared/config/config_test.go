package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPipelineDefaults(t *testing.T) {
	t.Setenv("PIPELINE_MAX_ATTEMPTS", "")
	t.Setenv("EMBEDDING_DIMENSION", "")
	t.Setenv("EMBEDDING_TIMEOUT", "")

	cfg := Load()
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Fatalf("expected MaxAttempts=3, got %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Embedding.Dimension != 1536 {
		t.Fatalf("expected Dimension=1536, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Embedding.Timeout != 60*time.Second {
		t.Fatalf("expected Timeout=60s, got %s", cfg.Embedding.Timeout)
	}
}

func TestLoadChunkWindow(t *testing.T) {
	t.Setenv("PIPELINE_CHUNK_WORDS", "")
	t.Setenv("PIPELINE_CHUNK_OVERLAP", "")
	t.Setenv("PIPELINE_MAX_CHUNKS", "")
	cfg := Load()
	if cfg.Pipeline.ChunkWords != 200 || cfg.Pipeline.ChunkOverlap != 30 || cfg.Pipeline.MaxChunks != 200 {
		t.Fatalf("unexpected chunk defaults %+v", cfg.Pipeline)
	}

	t.Setenv("PIPELINE_CHUNK_WORDS", "64")
	t.Setenv("PIPELINE_CHUNK_OVERLAP", "8")
	cfg = Load()
	if cfg.Pipeline.ChunkWords != 64 || cfg.Pipeline.ChunkOverlap != 8 {
		t.Fatalf("expected 64/8 window, got %d/%d", cfg.Pipeline.ChunkWords, cfg.Pipeline.ChunkOverlap)
	}
}

func TestLoadOverridesAndInvalidValues(t *testing.T) {
	t.Setenv("PIPELINE_MAX_ATTEMPTS", "5")
	t.Setenv("PIPELINE_BACKOFF_BASE", "not-a-duration")
	t.Setenv("OBJECT_STORE", "S3")
	t.Setenv("ENV", "prod")

	cfg := Load()
	if cfg.Pipeline.MaxAttempts != 5 {
		t.Fatalf("expected MaxAttempts=5, got %d", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Pipeline.BackoffBase != 500*time.Millisecond {
		t.Fatalf("expected default BackoffBase on invalid value, got %s", cfg.Pipeline.BackoffBase)
	}
	if cfg.ObjectStoreType != "s3" {
		t.Fatalf("expected s3 store, got %s", cfg.ObjectStoreType)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected production env, got %s", cfg.Env)
	}
}

func TestLoadEnvFilesDoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DOCVAULT_TEST_A=from-file\nDOCVAULT_TEST_B=\"quoted\"\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("DOCVAULT_TEST_A", "from-env")
	t.Setenv("DOCVAULT_TEST_B", "")
	_ = os.Unsetenv("DOCVAULT_TEST_B")

	loadEnvFiles(path, filepath.Join(dir, "missing.env"))

	if got := os.Getenv("DOCVAULT_TEST_A"); got != "from-env" {
		t.Fatalf("expected existing env to win, got %q", got)
	}
	if got := os.Getenv("DOCVAULT_TEST_B"); got != "quoted" {
		t.Fatalf("expected quoted value from file, got %q", got)
	}
}

func TestAIProviderDefaultsToMockWithoutKey(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AI_PROVIDER", "")

	if cfg := Load(); cfg.AIProvider != "mock" {
		t.Fatalf("expected mock provider without key, got %s", cfg.AIProvider)
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	if cfg := Load(); cfg.AIProvider != "openai" {
		t.Fatalf("expected openai provider with key, got %s", cfg.AIProvider)
	}
}

func TestLoadEnvFilesPrefersExplicitFile(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "staging.env")
	fallback := filepath.Join(dir, ".env")
	if err := os.WriteFile(explicit, []byte("DOCVAULT_TEST_C=explicit\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	if err := os.WriteFile(fallback, []byte("DOCVAULT_TEST_C=fallback\nDOCVAULT_TEST_D=fallback\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_FILE", explicit)
	t.Setenv("DOCVAULT_TEST_C", "")
	t.Setenv("DOCVAULT_TEST_D", "")
	_ = os.Unsetenv("DOCVAULT_TEST_C")
	_ = os.Unsetenv("DOCVAULT_TEST_D")

	loaded := loadEnvFiles(fallback)

	if len(loaded) != 2 || loaded[0] != explicit {
		t.Fatalf("unexpected load order %v", loaded)
	}
	if got := os.Getenv("DOCVAULT_TEST_C"); got != "explicit" {
		t.Fatalf("expected explicit file to win, got %q", got)
	}
	if got := os.Getenv("DOCVAULT_TEST_D"); got != "fallback" {
		t.Fatalf("expected fallback value, got %q", got)
	}
}
