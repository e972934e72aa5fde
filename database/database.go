package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/createproresume/resume-service/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Open(cfg config.DB) (*sqlx.DB, error) {
	sslMode := "require"
	if cfg.DisableTLS {
		sslMode = "disable"
	}

	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host,
		Path:     cfg.Name,
		RawQuery: q.Encode(),
	}

	return sqlx.Connect("postgres", u.String())
}

// StatusCheck waits for the database to answer a trivial query, used by
// startup and by the test environment to block until Postgres is ready.
func StatusCheck(ctx context.Context, db *sqlx.DB) error {
	var ok bool
	for {
		if err := db.PingContext(ctx); err == nil {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	const q = `SELECT true`
	return db.QueryRowContext(ctx, q).Scan(&ok)
}

// Transaction runs fn inside a transaction, rolling back on error. Every
// multi-row effect of a lifecycle transition goes through here so that a
// failed write never leaves an order and its side records out of step.
func Transaction(db *sqlx.DB, fn func(sqlx.ExtContext) error) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back after %q: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
