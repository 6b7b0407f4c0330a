package source

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "sentencesearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "sentencesearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestPostgresSourceRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	src := NewPostgresSource(db)
	require.NoError(t, src.EnsureSchema(ctx))

	key := fmt.Sprintf("test-%d-0", time.Now().UnixNano())
	t.Cleanup(func() { db.DB.Exec(`DELETE FROM corpora WHERE key = $1`, key) })

	want := []string{"the cat sat", "a dog ran fast", "cat"}
	require.NoError(t, src.Put(ctx, key, want))

	got, err := src.Fetch(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	keys, err := src.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, key)

	_, err = src.Fetch(ctx, key+"-missing")
	assert.ErrorIs(t, err, apperrors.ErrCorpusNotFound)
}
