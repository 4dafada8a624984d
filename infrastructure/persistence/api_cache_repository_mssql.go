package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"yt-fetcher/infrastructure/logger"
)

// EnsureAPICacheSchemaMSSQL creates the response cache table on MSSQL if not exists
func EnsureAPICacheSchemaMSSQL(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.api_response_cache') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.api_response_cache (
        cache_key NVARCHAR(128) NOT NULL PRIMARY KEY,
        data NVARCHAR(MAX) NOT NULL,
        expires_at DATETIMEOFFSET NULL,
        updated_at DATETIMEOFFSET NOT NULL
    );
END`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create api_response_cache table (mssql): %w", err)
	}
	if _, err := db.ExecContext(ctx, `IF NOT EXISTS (SELECT * FROM sys.indexes WHERE name = 'idx_api_response_cache_expires_at' AND object_id = OBJECT_ID('dbo.api_response_cache'))
CREATE INDEX idx_api_response_cache_expires_at ON dbo.api_response_cache(expires_at)`); err != nil {
		logger.GetLogger().WithField("error", err).Warn("failed creating idx_api_response_cache_expires_at (mssql)")
	}
	return nil
}

// APICacheRepositoryMSSQL is the SQL Server flavour of APICacheRepository.
type APICacheRepositoryMSSQL struct {
	db  *sql.DB
	now func() time.Time
}

func NewAPICacheRepositoryMSSQL(db *sql.DB) *APICacheRepositoryMSSQL {
	return &APICacheRepositoryMSSQL{db: db, now: time.Now}
}

func (r *APICacheRepositoryMSSQL) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT data, expires_at FROM dbo.api_response_cache WHERE cache_key=@p1`, key)
	var raw string
	var expiresAt sql.NullTime
	if err := row.Scan(&raw, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("select api_response_cache (mssql): %w", err)
	}
	if expiresAt.Valid && !r.now().Before(expiresAt.Time) {
		return nil, false, nil
	}
	return []byte(raw), true, nil
}

func (r *APICacheRepositoryMSSQL) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := r.now().UTC()
	var exp interface{}
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	q := `MERGE dbo.api_response_cache AS target
USING (SELECT @p1 AS cache_key) AS src
ON (target.cache_key = src.cache_key)
WHEN MATCHED THEN UPDATE SET data=@p2, expires_at=@p3, updated_at=@p4
WHEN NOT MATCHED THEN INSERT (cache_key, data, expires_at, updated_at)
VALUES (@p1, @p2, @p3, @p4);`
	if _, err := r.db.ExecContext(ctx, q, key, string(value), exp, now); err != nil {
		return fmt.Errorf("merge api_response_cache (mssql): %w", err)
	}
	return nil
}

func (r *APICacheRepositoryMSSQL) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dbo.api_response_cache WHERE cache_key=@p1`, key); err != nil {
		return fmt.Errorf("delete api_response_cache (mssql): %w", err)
	}
	return nil
}

func (r *APICacheRepositoryMSSQL) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM dbo.api_response_cache`); err != nil {
		return fmt.Errorf("clear api_response_cache (mssql): %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (r *APICacheRepositoryMSSQL) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dbo.api_response_cache WHERE expires_at IS NOT NULL AND expires_at <= @p1`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge api_response_cache (mssql): %w", err)
	}
	return res.RowsAffected()
}
