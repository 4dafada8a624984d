package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"yt-fetcher/infrastructure/logger"
)

// EnsureAPICacheSchema creates the response cache table if not exists
func EnsureAPICacheSchema(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS api_response_cache (
        cache_key TEXT PRIMARY KEY,
        data JSONB NOT NULL,
        expires_at TIMESTAMPTZ NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create api_response_cache table: %w", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_api_response_cache_expires_at ON api_response_cache(expires_at)`); err != nil {
		logger.GetLogger().WithField("error", err).Warn("failed creating idx_api_response_cache_expires_at")
	}
	return nil
}

// APICacheRepository stores cached API responses in PostgreSQL. Values are JSON documents.
type APICacheRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewAPICacheRepository(db *sql.DB) *APICacheRepository {
	return &APICacheRepository{db: db, now: time.Now}
}

// Get returns the cached payload. Expired rows are reported as misses and purged lazily.
func (r *APICacheRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT data, expires_at FROM api_response_cache WHERE cache_key=$1`, key)
	var raw []byte
	var expiresAt sql.NullTime
	if err := row.Scan(&raw, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("select api_response_cache: %w", err)
	}
	if expiresAt.Valid && !r.now().Before(expiresAt.Time) {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM api_response_cache WHERE cache_key=$1 AND expires_at <= $2`, key, r.now().UTC()); err != nil {
			logger.GetLogger().WithField("error", err).Warn("failed purging expired cache row")
		}
		return nil, false, nil
	}
	return raw, true, nil
}

// Set upserts the row. A ttl of zero or less stores the row without expiry.
func (r *APICacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := r.now().UTC()
	var exp interface{}
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	q := `INSERT INTO api_response_cache(cache_key, data, expires_at, updated_at)
          VALUES ($1,$2::jsonb,$3,$4)
          ON CONFLICT (cache_key) DO UPDATE SET data=EXCLUDED.data, expires_at=EXCLUDED.expires_at, updated_at=EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, q, key, string(value), exp, now); err != nil {
		return fmt.Errorf("upsert api_response_cache: %w", err)
	}
	return nil
}

func (r *APICacheRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM api_response_cache WHERE cache_key=$1`, key); err != nil {
		return fmt.Errorf("delete api_response_cache: %w", err)
	}
	return nil
}

func (r *APICacheRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM api_response_cache`); err != nil {
		return fmt.Errorf("clear api_response_cache: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (r *APICacheRepository) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_response_cache WHERE expires_at IS NOT NULL AND expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge api_response_cache: %w", err)
	}
	return res.RowsAffected()
}
