package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/spa-parameshwar003/bookstore-api/internal/domain"
)

var sqlDrivers = map[string]string{
	"sqlite":   "sqlite",
	"postgres": "pgx",
}

type SQLRepo struct {
	db      *sql.DB
	dialect string
}

// NewSQLRepo opens and pings the database. dialect is "sqlite" or "postgres".
func NewSQLRepo(dialect, dsn string) (*SQLRepo, error) {
	driver, ok := sqlDrivers[dialect]
	if !ok {
		return nil, fmt.Errorf("unknown database dialect %q", dialect)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open db: %w", err)
	}
	if dialect == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot ping db: %w", err)
	}
	return &SQLRepo{db: db, dialect: dialect}, nil
}

func (r *SQLRepo) Close() error {
	return r.db.Close()
}

func (r *SQLRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateUser inserts the user unless the email is already taken and reports
// whether a row was written.
func (r *SQLRepo) CreateUser(ctx context.Context, email, name string) (bool, error) {
	query := `INSERT INTO users (email, name, is_admin) VALUES ($1, $2, FALSE) ON CONFLICT (email) DO NOTHING;`
	res, err := r.db.ExecContext(ctx, query, email, sql.NullString{String: name, Valid: name != ""})
	if err != nil {
		return false, errors.Wrap(err, "repo: CreateUser")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "repo: CreateUser")
	}
	return rows > 0, nil
}

func (r *SQLRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, email, COALESCE(name, ''), is_admin FROM users WHERE email = $1;`
	row := r.db.QueryRowContext(ctx, query, email)
	u := &domain.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsAdmin); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "repo: GetUserByEmail")
	}
	return u, nil
}

// SetUserAdmin reports false when no user has the given email.
func (r *SQLRepo) SetUserAdmin(ctx context.Context, email string, isAdmin bool) (bool, error) {
	query := `UPDATE users SET is_admin = $1 WHERE email = $2;`
	res, err := r.db.ExecContext(ctx, query, isAdmin, email)
	if err != nil {
		return false, errors.Wrap(err, "repo: SetUserAdmin")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "repo: SetUserAdmin")
	}
	return rows > 0, nil
}

func (r *SQLRepo) ListBooks(ctx context.Context, semester *int) ([]domain.Book, error) {
	query := `SELECT id, title, author, price, semester, COALESCE(description, ''), available_stock FROM books`
	var args []any
	if semester != nil {
		query += ` WHERE semester = $1`
		args = append(args, *semester)
	}
	query += ` ORDER BY id;`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "repo: ListBooks")
	}
	defer rows.Close()

	res := make([]domain.Book, 0)
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Price, &b.Semester, &b.Description, &b.AvailableStock); err != nil {
			return nil, errors.Wrap(err, "repo: ListBooks")
		}
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "repo: ListBooks")
	}
	return res, nil
}

func (r *SQLRepo) CreateBook(ctx context.Context, b *domain.Book) (int64, error) {
	query := `INSERT INTO books (title, author, price, semester, description, available_stock)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id;`
	var newID int64
	err := r.db.QueryRowContext(ctx, query,
		b.Title, b.Author, b.Price, b.Semester,
		sql.NullString{String: b.Description, Valid: b.Description != ""},
		b.AvailableStock,
	).Scan(&newID)
	if err != nil {
		return 0, errors.Wrap(err, "repo: CreateBook")
	}
	return newID, nil
}

func (r *SQLRepo) GetBookByID(ctx context.Context, id int64) (*domain.Book, error) {
	query := `SELECT id, title, author, price, semester, COALESCE(description, ''), available_stock
	          FROM books WHERE id = $1;`
	row := r.db.QueryRowContext(ctx, query, id)
	b := &domain.Book{}
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Price, &b.Semester, &b.Description, &b.AvailableStock); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "repo: GetBookByID")
	}
	return b, nil
}

// DeleteBook reports false when no book has the given id.
func (r *SQLRepo) DeleteBook(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1;`, id)
	if err != nil {
		return false, errors.Wrap(err, "repo: DeleteBook")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "repo: DeleteBook")
	}
	return rows > 0, nil
}

// DecrementStock takes qty copies off the book in one conditional statement.
// It returns nil, nil when the book is missing or holds fewer than qty copies;
// the stock is left untouched in that case.
func (r *SQLRepo) DecrementStock(ctx context.Context, id int64, qty int) (*domain.Purchase, error) {
	query := `UPDATE books SET available_stock = available_stock - $1
	          WHERE id = $2 AND available_stock >= $1
	          RETURNING title, available_stock;`
	p := &domain.Purchase{BookID: id, Quantity: qty}
	if err := r.db.QueryRowContext(ctx, query, qty, id).Scan(&p.Title, &p.RemainingStock); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "repo: DecrementStock")
	}
	return p, nil
}
