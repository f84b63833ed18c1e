package repository

import (
	"context"

	"github.com/pkg/errors"
)

var migrations = map[string][]string{
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS users (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			email    VARCHAR(100) NOT NULL UNIQUE,
			name     VARCHAR(100),
			is_admin BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE TABLE IF NOT EXISTS books (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			title           VARCHAR(200) NOT NULL,
			author          VARCHAR(100) NOT NULL,
			price           REAL NOT NULL,
			semester        INTEGER NOT NULL,
			description     TEXT,
			available_stock INTEGER NOT NULL DEFAULT 0 CHECK (available_stock >= 0)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_books_semester ON books (semester);`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS users (
			id       BIGSERIAL PRIMARY KEY,
			email    VARCHAR(100) NOT NULL UNIQUE,
			name     VARCHAR(100),
			is_admin BOOLEAN NOT NULL DEFAULT FALSE
		);`,
		`CREATE TABLE IF NOT EXISTS books (
			id              BIGSERIAL PRIMARY KEY,
			title           VARCHAR(200) NOT NULL,
			author          VARCHAR(100) NOT NULL,
			price           DOUBLE PRECISION NOT NULL,
			semester        INTEGER NOT NULL,
			description     TEXT,
			available_stock INTEGER NOT NULL DEFAULT 0 CHECK (available_stock >= 0)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_books_semester ON books (semester);`,
	},
}

// Migrate creates the schema when absent. Existing tables are reused as is.
func (r *SQLRepo) Migrate(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "repo: Migrate")
	}
	for _, stmt := range migrations[r.dialect] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "repo: Migrate")
		}
	}
	return errors.Wrap(tx.Commit(), "repo: Migrate")
}
