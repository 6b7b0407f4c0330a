package source

import (
	"context"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/postgres"
)

// Schema creates the tables PostgresSource reads from.
const Schema = `
CREATE TABLE IF NOT EXISTS corpora (
    key        TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS corpus_sentences (
    corpus_key TEXT    NOT NULL REFERENCES corpora(key) ON DELETE CASCADE,
    position   INTEGER NOT NULL,
    sentence   TEXT    NOT NULL,
    PRIMARY KEY (corpus_key, position)
);
`

// PostgresSource serves corpora stored as rows of corpus_sentences, ordered
// by position.
type PostgresSource struct {
	db *postgres.Client
}

func NewPostgresSource(db *postgres.Client) *PostgresSource {
	return &PostgresSource{db: db}
}

// EnsureSchema applies Schema.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("applying corpus schema: %w", err)
	}
	return nil
}

func (s *PostgresSource) Fetch(ctx context.Context, key string) ([]string, error) {
	var exists bool
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM corpora WHERE key = $1)`, key,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("looking up corpus %s: %w", key, err)
	}
	if !exists {
		return nil, fmt.Errorf("corpus %s: %w", key, apperrors.ErrCorpusNotFound)
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT sentence FROM corpus_sentences WHERE corpus_key = $1 ORDER BY position`, key,
	)
	if err != nil {
		return nil, fmt.Errorf("querying corpus %s: %w", key, err)
	}
	defer rows.Close()

	sentences := make([]string, 0, 256)
	for rows.Next() {
		var sentence string
		if err := rows.Scan(&sentence); err != nil {
			return nil, fmt.Errorf("scanning corpus %s: %w", key, err)
		}
		sentences = append(sentences, sentence)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", key, err)
	}
	return sentences, nil
}

func (s *PostgresSource) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT key FROM corpora ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing corpora: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning corpus key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Put replaces the sentences of key in one transaction.
func (s *PostgresSource) Put(ctx context.Context, key string, sentences []string) error {
	tx, err := s.db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO corpora (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key,
	); err != nil {
		return fmt.Errorf("upserting corpus %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM corpus_sentences WHERE corpus_key = $1`, key); err != nil {
		return fmt.Errorf("clearing corpus %s: %w", key, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO corpus_sentences (corpus_key, position, sentence) VALUES ($1, $2, $3)`,
	)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for i, sentence := range sentences {
		if _, err := stmt.ExecContext(ctx, key, i, sentence); err != nil {
			return fmt.Errorf("inserting sentence %d of %s: %w", i, key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing corpus %s: %w", key, err)
	}
	return nil
}
