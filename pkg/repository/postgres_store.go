package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// postgresStore keeps keyed state in the kv_store table so several bot instances share it.
type postgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB, now func() time.Time) *postgresStore {
	if now == nil {
		now = time.Now
	}
	return &postgresStore{db: db, now: now}
}

func (p *postgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `
		SELECT value
		FROM kv_store
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
	`

	var value string
	err := p.db.QueryRowContext(ctx, query, key, p.now()).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("fetching key %q: %w", key, err)
	}

	return value, true, nil
}

func (p *postgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	const query = `
		INSERT INTO kv_store (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at
	`

	if _, err := p.db.ExecContext(ctx, query, key, value, p.expiry(ttl)); err != nil {
		return fmt.Errorf("saving key %q: %w", key, err)
	}

	return nil
}

func (p *postgresStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	// The conflicting row is only overwritten when it has already expired, which makes
	// the check and the write a single statement.
	const query = `
		INSERT INTO kv_store (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at
		WHERE kv_store.expires_at IS NOT NULL AND kv_store.expires_at <= $4
		RETURNING key
	`

	var stored string
	err := p.db.QueryRowContext(ctx, query, key, value, p.expiry(ttl), p.now()).Scan(&stored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("saving key %q if absent: %w", key, err)
	}

	return true, nil
}

func (p *postgresStore) Incr(ctx context.Context, key string) (int64, error) {
	const query = `
		INSERT INTO kv_store (key, value, expires_at)
		VALUES ($1, '1', NULL)
		ON CONFLICT (key)
		DO UPDATE SET
			value = CASE
				WHEN kv_store.expires_at IS NOT NULL AND kv_store.expires_at <= $2 THEN '1'
				ELSE (kv_store.value::bigint + 1)::text
			END,
			expires_at = CASE
				WHEN kv_store.expires_at IS NOT NULL AND kv_store.expires_at <= $2 THEN NULL
				ELSE kv_store.expires_at
			END
		RETURNING value::bigint
	`

	var n int64
	if err := p.db.QueryRowContext(ctx, query, key, p.now()).Scan(&n); err != nil {
		return 0, fmt.Errorf("incrementing key %q: %w", key, err)
	}

	return n, nil
}

func (p *postgresStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	const query = `
		UPDATE kv_store
		SET expires_at = $2
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $3)
	`

	if _, err := p.db.ExecContext(ctx, query, key, p.expiry(ttl), p.now()); err != nil {
		return fmt.Errorf("setting expiry of key %q: %w", key, err)
	}

	return nil
}

func (p *postgresStore) CompareAndSwap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	const query = `
		UPDATE kv_store
		SET value = $3, expires_at = $4
		WHERE key = $1 AND value = $2 AND (expires_at IS NULL OR expires_at > $5)
	`

	res, err := p.db.ExecContext(ctx, query, key, old, value, p.expiry(ttl), p.now())
	if err != nil {
		return false, fmt.Errorf("swapping key %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swapping key %q: %w", key, err)
	}

	return n == 1, nil
}

func (p *postgresStore) expiry(ttl time.Duration) sql.NullTime {
	if ttl <= 0 {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.now().Add(ttl), Valid: true}
}
