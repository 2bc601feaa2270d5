package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type sourceRepository struct {
	db *DB
}

var _ SourceRepository = (*sourceRepository)(nil)

func NewSourceRepository(db *DB) SourceRepository {
	return &sourceRepository{db: db}
}

const sourceColumns = `cache_key, name, kind, url, status, format, item_count, skipped_count, last_error,
	last_fetched_at, last_success_at, fetch_count, failure_count`

func (r *sourceRepository) RecordFetch(ctx context.Context, record FetchRecord) error {
	fetchedAt := record.FetchedAt.UnixMilli()

	var lastSuccess sql.NullInt64
	failures := 1
	if record.Success {
		lastSuccess = sql.NullInt64{Int64: fetchedAt, Valid: true}
		failures = 0
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sources (`+sourceColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			url = excluded.url,
			status = excluded.status,
			format = CASE WHEN excluded.format != '' THEN excluded.format ELSE sources.format END,
			item_count = excluded.item_count,
			skipped_count = excluded.skipped_count,
			last_error = excluded.last_error,
			last_fetched_at = excluded.last_fetched_at,
			last_success_at = COALESCE(excluded.last_success_at, sources.last_success_at),
			fetch_count = sources.fetch_count + 1,
			failure_count = sources.failure_count + excluded.failure_count,
			updated_at = excluded.updated_at
	`, record.Key, record.Name, record.Kind, record.URL, record.Status, record.Format,
		record.ItemCount, record.Skipped, record.Error, fetchedAt, lastSuccess, failures,
		fetchedAt, fetchedAt)

	if err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}

	return nil
}

func (r *sourceRepository) GetSource(ctx context.Context, key string) (*Source, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE cache_key = ?`, key)

	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return source, nil
}

func (r *sourceRepository) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY kind, name, cache_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}

	return sources, nil
}

func (r *sourceRepository) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*Source, error) {
	var s Source
	var lastFetched, lastSuccess sql.NullInt64

	err := row.Scan(&s.Key, &s.Name, &s.Kind, &s.URL, &s.Status, &s.Format, &s.ItemCount, &s.SkippedCount,
		&s.LastError, &lastFetched, &lastSuccess, &s.FetchCount, &s.FailureCount)
	if err != nil {
		return nil, err
	}

	s.LastFetchedAt = fromMillis(lastFetched)
	s.LastSuccessAt = fromMillis(lastSuccess)

	return &s, nil
}

func fromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
