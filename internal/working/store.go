// Package working is the per-run, per-topic staging area the ranking and
// summarization stages operate on. Rows are keyed by (id, topic) because the
// same paper ranks differently against different topics' queries.
package working

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"lit.watch/firehose/internal/db"
	"lit.watch/firehose/internal/entry"
	"lit.watch/firehose/internal/globaltime"
)

// Pipeline statuses in forward order. Entries enter at StatusFiltered;
// StatusNew is the schema default and never observed after insert.
const (
	StatusNew        = "new"
	StatusFiltered   = "filtered"
	StatusRanked     = "ranked"
	StatusSummarized = "summarized"
)

func statusOrdinal(status string) int {
	switch status {
	case StatusNew:
		return 0
	case StatusFiltered:
		return 1
	case StatusRanked:
		return 2
	case StatusSummarized:
		return 3
	default:
		return -1
	}
}

// ValidStatus reports whether the value is a known pipeline status.
func ValidStatus(status string) bool {
	return statusOrdinal(status) >= 0
}

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

// Reset clears the staging rows for one topic at the start of its run, so a
// run never sees a prior run's rows as new work. An empty topic clears the
// whole table.
func (s *Store) Reset(ctx context.Context, topic string) error {
	var (
		tag db.CommandTag
		err error
	)
	if strings.TrimSpace(topic) == "" {
		tag, err = s.pool.Exec(ctx, `DELETE FROM entries`)
	} else {
		tag, err = s.pool.Exec(ctx, `DELETE FROM entries WHERE topic = ?`, topic)
	}
	if err != nil {
		return fmt.Errorf("reset working store: %w", err)
	}

	s.logger.Debug().
		Str("topic", topic).
		Int64("cleared", tag.RowsAffected()).
		Msg("reset working store")
	return nil
}

// Insert upserts a filtered entry for a topic. Re-inserting an existing
// (id, topic) row refreshes its content fields but never moves its status
// backward.
func (s *Store) Insert(ctx context.Context, e *entry.Entry, topic string) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("insert working entry: %w", err)
	}

	now := globaltime.UTC()
	const q = `
INSERT INTO entries (
	id, topic, feed_name, title, link, summary, authors, abstract, doi,
	published_date, discovered_date, status, raw_data
)
VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, 'filtered', ?)
ON CONFLICT (id, topic) DO UPDATE SET
	feed_name = excluded.feed_name,
	title = excluded.title,
	link = excluded.link,
	summary = excluded.summary,
	authors = excluded.authors,
	doi = excluded.doi,
	published_date = excluded.published_date,
	raw_data = excluded.raw_data
`
	_, err := s.pool.Exec(
		ctx,
		q,
		e.ID,
		topic,
		e.FeedName,
		e.Title,
		e.Link,
		e.Summary,
		e.AuthorsJoined(),
		nullableString(e.DOI),
		e.PublishedDate(now),
		now,
		string(e.Raw),
	)
	if err != nil {
		return fmt.Errorf("upsert working entry: %w", err)
	}
	return nil
}

// ListByStatus returns the topic's rows in any of the given statuses,
// newest first.
func (s *Store) ListByStatus(ctx context.Context, topic string, statuses ...string) ([]db.WorkingEntry, error) {
	query := `SELECT * FROM entries WHERE 1=1`
	args := make([]any, 0, len(statuses)+1)

	if strings.TrimSpace(topic) != "" {
		query += ` AND topic = ?`
		args = append(args, topic)
	}
	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
		query += ` AND status IN (` + placeholders + `)`
		for _, status := range statuses {
			if !ValidStatus(status) {
				return nil, fmt.Errorf("unknown status %q", status)
			}
			args = append(args, status)
		}
	}
	query += ` ORDER BY discovered_date DESC, id`

	var rows []db.WorkingEntry
	if err := s.pool.GORM().WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list working entries: %w", err)
	}
	return rows, nil
}

// UpdateRank overwrites the score and reasoning for one row without touching
// its status; re-ranking an already ranked row is idempotent.
func (s *Store) UpdateRank(ctx context.Context, id, topic string, score float64, reasoning string) error {
	const q = `UPDATE entries SET rank_score = ?, rank_reasoning = ? WHERE id = ? AND topic = ?`

	tag, err := s.pool.Exec(ctx, q, score, reasoning, id, topic)
	if err != nil {
		return fmt.Errorf("update rank for %s/%s: %w", id, topic, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update rank for %s/%s: no such working entry", id, topic)
	}
	return nil
}

// Advance moves a row's status forward. A target at or behind the current
// status is a no-op: no code path regresses the state machine.
func (s *Store) Advance(ctx context.Context, id, topic, status string) error {
	target := statusOrdinal(status)
	if target < 0 {
		return fmt.Errorf("advance %s/%s: unknown status %q", id, topic, status)
	}

	const q = `
UPDATE entries
SET status = ?
WHERE id = ? AND topic = ?
  AND CASE status
	WHEN 'new' THEN 0
	WHEN 'filtered' THEN 1
	WHEN 'ranked' THEN 2
	ELSE 3
  END < ?
`
	if _, err := s.pool.Exec(ctx, q, status, id, topic, target); err != nil {
		return fmt.Errorf("advance %s/%s to %s: %w", id, topic, status, err)
	}
	return nil
}

// SetLLMSummary records an external collaborator's summary and advances the
// row to summarized.
func (s *Store) SetLLMSummary(ctx context.Context, id, topic, summary string) error {
	const q = `UPDATE entries SET llm_summary = ? WHERE id = ? AND topic = ?`
	if _, err := s.pool.Exec(ctx, q, summary, id, topic); err != nil {
		return fmt.Errorf("write llm_summary for %s/%s: %w", id, topic, err)
	}
	return s.Advance(ctx, id, topic, StatusSummarized)
}

// SetPaperQASummary records a full-text summary and advances the row to
// summarized.
func (s *Store) SetPaperQASummary(ctx context.Context, id, topic, summary string) error {
	const q = `UPDATE entries SET paper_qa_summary = ? WHERE id = ? AND topic = ?`
	if _, err := s.pool.Exec(ctx, q, summary, id, topic); err != nil {
		return fmt.Errorf("write paper_qa_summary for %s/%s: %w", id, topic, err)
	}
	return s.Advance(ctx, id, topic, StatusSummarized)
}

// Get fetches a single row by composite key.
func (s *Store) Get(ctx context.Context, id, topic string) (*db.WorkingEntry, error) {
	var row db.WorkingEntry
	err := s.pool.GORM().WithContext(ctx).
		Raw(`SELECT * FROM entries WHERE id = ? AND topic = ?`, id, topic).
		Take(&row).Error
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get working entry %s/%s: %w", id, topic, err)
	}
	return &row, nil
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
