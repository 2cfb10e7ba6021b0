// Package csvfile stores subscriptions in a flat CSV file with the header
// id,name,cost,day. Every Save rewrites the whole file.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"abbonamenti/internal/core"
	"abbonamenti/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Load reads the file. A missing file is created with just the header.
func (s *Store) Load(ctx context.Context) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.writeFile(nil); err != nil {
			return nil, fmt.Errorf("create %s: %w", s.path, err)
		}
		slog.InfoContext(ctx, "Created empty subscriptions file", "path", s.path)
		return []core.Subscription{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []core.Subscription{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	subs, err := store.DecodeRows(header, rows)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return subs, nil
}

// Save replaces the file contents. The new content is written to a temporary
// file in the same directory and renamed over the old one.
func (s *Store) Save(ctx context.Context, subs []core.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeFile(subs); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	slog.DebugContext(ctx, "Subscriptions file rewritten", "path", s.path, "count", len(subs))
	return nil
}

func (s *Store) writeFile(subs []core.Subscription) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(store.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(store.EncodeRows(subs)); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
