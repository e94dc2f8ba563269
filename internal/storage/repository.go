package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteRepository owns the database handle and hands out transactional
// units of work over Queries.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// DSN builds the connection string used by the repository and the migrator.
// Writers take the database lock at BEGIN so concurrent units serialize
// instead of failing on upgrade.
func DSN(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(1)" +
		"&_txlock=immediate"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps SQLite writes serialized inside the process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("SQLite repository ready", "path", dbPath)

	return NewRepository(db), nil
}

// NewRepository wraps an already opened database without migrating it.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Queries returns statements bound to the pool, outside any transaction.
func (r *SQLiteRepository) Queries() *Queries {
	return r.queries
}

// WithTx runs fn in a write transaction. The transaction commits only when
// fn returns nil; any error or panic rolls it back.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	return r.inTx(ctx, nil, fn)
}

// ReadSnapshot runs fn in a read-only transaction so that every query in fn
// observes the same committed state.
func (r *SQLiteRepository) ReadSnapshot(ctx context.Context, fn func(q *Queries) error) error {
	return r.inTx(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (r *SQLiteRepository) inTx(ctx context.Context, opts *sql.TxOptions, fn func(q *Queries) error) (err error) {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
