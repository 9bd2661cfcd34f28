package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 3, cfg.Scrape.Retries)
	assert.Equal(t, 2*time.Second, cfg.Scrape.Backoff)
	assert.Equal(t, "https://api.linksynergy.com", cfg.Rakuten.BaseURL)
	assert.Equal(t, "PRODUCTION", cfg.Rakuten.Scope)
	assert.Equal(t, "agents/data/amazon-bestsellers-checklist.md", cfg.Amazon.ChecklistPath)
	assert.Equal(t, 10, cfg.Amazon.MaxPages)
}

func TestLoad_LegacyEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	// .env.local 优先于 .env
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("RAKUTEN_CLIENT_ID=local-id\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RAKUTEN_CLIENT_ID=env-id\nRAKUTEN_CLIENT_SECRET=secret\n"), 0o644))
	for _, key := range []string{"RAKUTEN_CLIENT_ID", "RAKUTEN_CLIENT_SECRET"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("ELFBABY_SCRAPE_RETRIES", "5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "local-id", cfg.Rakuten.ClientID)
	assert.Equal(t, "secret", cfg.Rakuten.ClientSecret)
	assert.Equal(t, "postgres://x", cfg.DB.DSN)
	assert.Equal(t, 5, cfg.Scrape.Retries)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.yaml")
	content := "server:\n  http_addr: \":9090\"\namazon:\n  max_pages: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.HTTPAddr)
	assert.Equal(t, 4, cfg.Amazon.MaxPages)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("does-not-exist.yaml")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
}
