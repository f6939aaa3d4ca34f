package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return p
}

func TestLoadConfigMergesSourceAndExpandsEnv(t *testing.T) {
	os.Setenv("TEST_MYSQL_HOST", "db.internal")
	defer os.Unsetenv("TEST_MYSQL_HOST")

	dir := t.TempDir()
	appPath := writeFile(t, dir, "app.yaml", `
app:
  port: 8080
  workdir: /data
mysql:
  host: ${TEST_MYSQL_HOST}
  port: 3306
`)
	sourcePath := writeFile(t, dir, "sources.yaml", `
source:
  repositories:
    - name: demo
      remote_url: https://example.com/demo.git
      default_branch: main
`)

	cfg, err := LoadConfig(appPath, sourcePath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MySQL.Host != "db.internal" {
		t.Fatalf("expected env var expansion, got %q", cfg.MySQL.Host)
	}
	if len(cfg.Source.Repositories) != 1 || cfg.Source.Repositories[0].Name != "demo" {
		t.Fatalf("expected source repositories merged in, got %+v", cfg.Source.Repositories)
	}
	if cfg.Chunking.ContextLinesBefore != 5 || cfg.Chunking.MaxChunkChars != 30000 {
		t.Fatalf("expected chunking defaults applied, got %+v", cfg.Chunking)
	}
	if cfg.Retrieval.BM25Weight != 0.3 || cfg.Retrieval.VectorWeight != 0.7 {
		t.Fatalf("expected default retrieval weights, got %+v", cfg.Retrieval)
	}
}

func TestLoadConfigRejectsRepositoryMissingRemoteURL(t *testing.T) {
	dir := t.TempDir()
	appPath := writeFile(t, dir, "app.yaml", "app:\n  port: 8080\n")
	sourcePath := writeFile(t, dir, "sources.yaml", "source:\n  repositories:\n    - name: demo\n")

	if _, err := LoadConfig(appPath, sourcePath); err == nil {
		t.Fatalf("expected validation error for missing remote_url")
	}
}

func TestExpandEnvVarsDefaultFallback(t *testing.T) {
	os.Unsetenv("NOT_SET_VAR")
	got := expandEnvVars("value=${NOT_SET_VAR:-fallback}")
	if got != "value=fallback" {
		t.Fatalf("expected fallback substitution, got %q", got)
	}
}
