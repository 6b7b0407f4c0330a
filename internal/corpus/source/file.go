// Package source implements corpus.Source over the places sentence files
// live: a local directory, a remote file server, or PostgreSQL.
package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/errors"
)

const maxLineSize = 1 << 20

// FileSource serves corpora from files in a directory. The corpus key is the
// file name. Files ending in .json hold a JSON array of sentences; any other
// file holds one sentence per line, blank lines skipped.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Dir returns the served directory.
func (s *FileSource) Dir() string {
	return s.dir
}

func (s *FileSource) Fetch(ctx context.Context, key string) ([]string, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("corpus %s: %w", key, apperrors.ErrCorpusNotFound)
		}
		return nil, fmt.Errorf("opening corpus %s: %w", key, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(key), ".json") {
		var sentences []string
		if err := json.NewDecoder(f).Decode(&sentences); err != nil {
			return nil, fmt.Errorf("decoding corpus %s: %w", key, err)
		}
		return sentences, nil
	}

	sentences := make([]string, 0, 256)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if len(sentences)%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		sentences = append(sentences, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", key, err)
	}
	return sentences, nil
}

// List returns the sentence file names in the directory, sorted.
func (s *FileSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// validateKey keeps keys inside the served directory.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("corpus key %q: %w", key, apperrors.ErrInvalidInput)
	}
	return nil
}
