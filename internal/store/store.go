// Package store implements the persistent relational store the ingestion
// pipeline reads and writes. All access goes through *DB; callers depend on
// narrow interfaces declared where they are consumed.
package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lopezmichael/digimon-tcg-standings/internal/db"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint. Expected under re-entry between sync and repair passes;
	// callers swallow it and continue.
	ErrDuplicate = errors.New("duplicate row")
)

// DB is the Postgres-backed store.
type DB struct {
	pool *db.Pool
}

// New wraps a connection pool.
func New(pool *db.Pool) *DB {
	return &DB{pool: pool}
}

// pgUniqueViolation is the Postgres error code for unique_violation.
const pgUniqueViolation = "23505"

// classifyErr maps driver errors onto the store's sentinel errors so callers
// never inspect error text.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// notFound maps pgx.ErrNoRows onto ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
