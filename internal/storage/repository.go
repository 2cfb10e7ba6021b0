// Package storage keeps subscriptions in a SQLite database. Rows carry their
// list position so the stored order survives round trips.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"abbonamenti/internal/core"
	"abbonamenti/internal/store"
)

var _ store.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// brings its schema up to date.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load returns every subscription ordered by position.
func (r *SQLiteRepository) Load(ctx context.Context) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, cost, day FROM subscriptions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []core.Subscription{}
	for n := 1; rows.Next(); n++ {
		var (
			s    core.Subscription
			cost string
		)
		if err := rows.Scan(&s.ID, &s.Name, &cost, &s.Day); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		s.Cost, err = core.ParseStoredCost(cost)
		if err != nil {
			return nil, &store.ParseError{Row: n, Field: store.ColumnCost, Value: cost, Err: err}
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// Save replaces the table contents in a single transaction.
func (r *SQLiteRepository) Save(ctx context.Context, subs []core.Subscription) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM subscriptions`); err != nil {
		return fmt.Errorf("clear subscriptions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO subscriptions (position, id, name, cost, day) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range subs {
		if _, err = stmt.ExecContext(ctx, i, s.ID, s.Name, s.Cost.String(), s.Day); err != nil {
			return fmt.Errorf("insert subscription %s: %w", s.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.DebugContext(ctx, "Subscriptions saved to SQLite", "count", len(subs))
	return nil
}
