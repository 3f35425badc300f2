package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tenderflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestGetEnvPrefersEnvironmentOverFile(t *testing.T) {
	path := writeConfig(t, "PROGRESS_BACKEND: badger\nIMAGE_CONCURRENCY: 2\n")
	t.Setenv(FileEnvVar, path)
	t.Setenv("PROGRESS_BACKEND", "mongo")

	assert.Equal(t, "mongo", GetEnv("PROGRESS_BACKEND", "firestore"))
	assert.Equal(t, 2, GetEnvInt("IMAGE_CONCURRENCY", 4))
	assert.Equal(t, "fallback", GetEnv("NOT_SET_ANYWHERE", "fallback"))
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("TEXT_CONCURRENCY", "eight")
	assert.Equal(t, 8, GetEnvInt("TEXT_CONCURRENCY", 8))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(FileEnvVar, "")
	s := Load()
	assert.Equal(t, 4, s.ImageConcurrency)
	assert.Equal(t, 8, s.TextConcurrency)
	assert.Equal(t, 3, s.PageErrorBudget)
	assert.Equal(t, 2048, s.EmbeddingBatchSize)
}

func TestLoadFileRejectsNestedValues(t *testing.T) {
	path := writeConfig(t, "MONGO:\n  uri: mongodb://localhost\n")
	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestRequire(t *testing.T) {
	t.Setenv("PROJECT_ID", "")
	_, err := Require("PROJECT_ID")
	require.Error(t, err)

	t.Setenv("PROJECT_ID", "tenders-prod")
	v, err := Require("PROJECT_ID")
	require.NoError(t, err)
	assert.Equal(t, "tenders-prod", v)
}
