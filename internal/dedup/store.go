// Package dedup tracks every item ever fetched so the filter stage never
// reprocesses one. Rows carry no topic semantics; the only question this
// store answers is "have we seen this before".
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"lit.watch/firehose/internal/db"
	"lit.watch/firehose/internal/entry"
	"lit.watch/firehose/internal/globaltime"
)

type Store struct {
	pool   *db.Pool
	logger zerolog.Logger
}

func NewStore(pool *db.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger,
	}
}

// IsNew reports whether the entry fingerprint has never been recorded.
func (s *Store) IsNew(ctx context.Context, entryID string) (bool, error) {
	const q = `SELECT 1 FROM feed_entries WHERE entry_id = ? LIMIT 1`

	var one int
	err := s.pool.QueryRow(ctx, q, entryID).Scan(&one)
	if err != nil {
		if db.IsNoRows(err) {
			return true, nil
		}
		return false, fmt.Errorf("probe dedup store: %w", err)
	}
	return false, nil
}

// Record upserts the entry. A repeat sighting refreshes last_seen and the
// surface fields but never touches first_seen.
func (s *Store) Record(ctx context.Context, e *entry.Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("record dedup entry: %w", err)
	}

	now := globaltime.UTC()
	const q = `
INSERT INTO feed_entries (
	entry_id, feed_name, title, link, summary, authors,
	published_date, first_seen, last_seen, raw_data
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (entry_id) DO UPDATE SET
	feed_name = excluded.feed_name,
	title = excluded.title,
	link = excluded.link,
	summary = excluded.summary,
	authors = excluded.authors,
	published_date = excluded.published_date,
	last_seen = excluded.last_seen,
	raw_data = excluded.raw_data
`
	_, err := s.pool.Exec(
		ctx,
		q,
		e.ID,
		e.FeedName,
		e.Title,
		e.Link,
		e.Summary,
		e.AuthorsJoined(),
		e.PublishedDate(now),
		now,
		now,
		string(e.Raw),
	)
	if err != nil {
		return fmt.Errorf("upsert feed_entries: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes rows whose publication date predates the cutoff,
// bounding the store without losing the identity needed for recent dedup.
func (s *Store) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := globaltime.UTC().Add(-age).Format("2006-01-02")

	const q = `
DELETE FROM feed_entries
WHERE published_date IS NOT NULL
  AND TRIM(published_date) != ''
  AND DATE(published_date) < DATE(?)
`
	tag, err := s.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge dedup store: %w", err)
	}

	s.logger.Info().
		Str("cutoff", cutoff).
		Int64("deleted", tag.RowsAffected()).
		Msg("purged aged dedup entries")
	return tag.RowsAffected(), nil
}

// Count returns the number of recorded entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM feed_entries`

	var count int64
	if err := s.pool.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("count dedup entries: %w", err)
	}
	return count, nil
}
