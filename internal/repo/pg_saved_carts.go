package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxQuerier is the subset of pgxpool.Pool used by PgSavedCarts.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgSavedCarts stores saved carts in PostgreSQL through pgx.
type PgSavedCarts struct {
	DB    PgxQuerier
	Table string
	Now   func() time.Time
}

func (r PgSavedCarts) table() (string, error) {
	if r.DB == nil {
		return "", errors.New("repo: pgx pool not configured")
	}
	return normalizeTable(r.Table)
}

func (r PgSavedCarts) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// EnsureSchema creates the saved cart table when it is missing.
func (r PgSavedCarts) EnsureSchema(ctx context.Context) error {
	table, err := r.table()
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  identifier TEXT NOT NULL,
  instance TEXT NOT NULL,
  content BYTEA NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (identifier, instance)
)`, table))
	return err
}

// Exists reports whether a cart is saved under (identifier, instance).
func (r PgSavedCarts) Exists(ctx context.Context, identifier, instance string) (bool, error) {
	table, err := r.table()
	if err != nil {
		return false, err
	}
	var exists bool
	err = r.DB.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE identifier = $1 AND instance = $2)`, table),
		identifier, instance,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repo: check saved cart: %w", err)
	}
	return exists, nil
}

// Insert writes rec; ErrDuplicate when the key is taken.
func (r PgSavedCarts) Insert(ctx context.Context, rec SavedCart) error {
	table, err := r.table()
	if err != nil {
		return err
	}
	now := r.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	tag, err := r.DB.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (identifier, instance, content, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5) ON CONFLICT (identifier, instance) DO NOTHING`, table),
		rec.Identifier, rec.Instance, rec.Content, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repo: insert saved cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", rec.Identifier, rec.Instance, ErrDuplicate)
	}
	return nil
}

// Find returns the oldest saved cart for identifier.
func (r PgSavedCarts) Find(ctx context.Context, identifier string) (SavedCart, error) {
	table, err := r.table()
	if err != nil {
		return SavedCart{}, err
	}
	rec := SavedCart{}
	err = r.DB.QueryRow(ctx,
		fmt.Sprintf(`SELECT identifier, instance, content, created_at, updated_at FROM %s
WHERE identifier = $1 ORDER BY created_at, instance LIMIT 1`, table),
		identifier,
	).Scan(&rec.Identifier, &rec.Instance, &rec.Content, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SavedCart{}, ErrRecordNotFound
		}
		return SavedCart{}, fmt.Errorf("repo: find saved cart: %w", err)
	}
	return rec, nil
}

// Delete removes the saved cart under (identifier, instance). Missing rows are not an error.
func (r PgSavedCarts) Delete(ctx context.Context, identifier, instance string) error {
	table, err := r.table()
	if err != nil {
		return err
	}
	if _, err := r.DB.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE identifier = $1 AND instance = $2`, table),
		identifier, instance,
	); err != nil {
		return fmt.Errorf("repo: delete saved cart: %w", err)
	}
	return nil
}
