package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SourceFile, cfg.Corpus.Source)
	assert.Equal(t, "files/sentences", cfg.Corpus.DataDir)
	assert.Equal(t, 3, cfg.Corpus.Retry.MaxAttempts)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
server:
  port: 9000
corpus:
  source: http
  remoteUrl: http://corpora.local
  fetchTimeout: 10s
search:
  shardSize: 100
redis:
  enabled: true
  cacheTTL: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("SS_SERVER_PORT", "9100")
	t.Setenv("SS_LOGGING_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, SourceHTTP, cfg.Corpus.Source)
	assert.Equal(t, "http://corpora.local", cfg.Corpus.RemoteURL)
	assert.Equal(t, 10*time.Second, cfg.Corpus.FetchTimeout)
	assert.Equal(t, 100, cfg.Search.ShardSize)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsUnknownSource(t *testing.T) {
	t.Setenv("SS_CORPUS_SOURCE", "ftp")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRequiresRemoteURLForHTTP(t *testing.T) {
	t.Setenv("SS_CORPUS_SOURCE", SourceHTTP)
	_, err := Load("")
	assert.ErrorContains(t, err, "remoteUrl")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDevelopmentConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)

	assert.Equal(t, SourceFile, cfg.Corpus.Source)
	assert.Equal(t, 100, cfg.Analytics.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Analytics.FlushInterval)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "search-analytics", cfg.Kafka.Topics.AnalyticsEvents)
}
