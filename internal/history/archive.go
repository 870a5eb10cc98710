// Package history is the permanent, topic-merged record of every match ever
// made. One row per (entry_id, feed_name) for the lifetime of the system;
// rows are never purged automatically.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"lit.watch/firehose/internal/db"
	"lit.watch/firehose/internal/entry"
	"lit.watch/firehose/internal/globaltime"
)

const topicSeparator = ", "

type Archive struct {
	pool   *db.Pool
	logger zerolog.Logger
}

func NewArchive(pool *db.Pool, logger zerolog.Logger) *Archive {
	return &Archive{
		pool:   pool,
		logger: logger,
	}
}

// Archive inserts the entry with a single-topic set, or merges the topic
// into the existing row's set. On merge every other column stays untouched:
// matched_date records the first match, not the latest.
func (a *Archive) Archive(ctx context.Context, e *entry.Entry, topic string) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("archive entry: %w", err)
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return fmt.Errorf("archive entry %s: topic is empty", e.ID)
	}

	const probe = `SELECT topics FROM matched_entries WHERE entry_id = ? AND feed_name = ?`

	var existing string
	err := a.pool.QueryRow(ctx, probe, e.ID, e.FeedName).Scan(&existing)
	switch {
	case err == nil:
		merged, changed := mergeTopics(existing, topic)
		if !changed {
			return nil
		}
		const update = `UPDATE matched_entries SET topics = ? WHERE entry_id = ? AND feed_name = ?`
		if _, err := a.pool.Exec(ctx, update, merged, e.ID, e.FeedName); err != nil {
			return fmt.Errorf("merge topic into matched_entries: %w", err)
		}
		a.logger.Debug().
			Str("entry_id", e.ID).
			Str("topics", merged).
			Msg("merged topic into archived entry")
		return nil
	case db.IsNoRows(err):
		return a.insert(ctx, e, topic)
	default:
		return fmt.Errorf("probe matched_entries: %w", err)
	}
}

func (a *Archive) insert(ctx context.Context, e *entry.Entry, topic string) error {
	now := globaltime.UTC()

	const q = `
INSERT INTO matched_entries (
	entry_id, feed_name, topics, title, link, summary, authors,
	abstract, doi, published_date, matched_date, raw_data
)
VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?)
`
	_, err := a.pool.Exec(
		ctx,
		q,
		e.ID,
		e.FeedName,
		topic,
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
		return fmt.Errorf("insert matched_entries: %w", err)
	}

	a.logger.Debug().
		Str("entry_id", e.ID).
		Str("topic", topic).
		Msg("archived new matched entry")
	return nil
}

// Topics returns the merged topic set for an archived entry, or nil when the
// entry was never archived.
func (a *Archive) Topics(ctx context.Context, entryID, feedName string) ([]string, error) {
	const q = `SELECT topics FROM matched_entries WHERE entry_id = ? AND feed_name = ?`

	var joined string
	err := a.pool.QueryRow(ctx, q, entryID, feedName).Scan(&joined)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read archived topics: %w", err)
	}
	return splitTopics(joined), nil
}

// SetLLMSummary mirrors a working-store summary into the permanent record.
func (a *Archive) SetLLMSummary(ctx context.Context, entryID, summary string) error {
	const q = `UPDATE matched_entries SET llm_summary = ? WHERE entry_id = ?`
	if _, err := a.pool.Exec(ctx, q, summary, entryID); err != nil {
		return fmt.Errorf("write llm_summary to history: %w", err)
	}
	return nil
}

// SetPaperQASummary mirrors a full-text summary into the permanent record.
func (a *Archive) SetPaperQASummary(ctx context.Context, entryID, summary string) error {
	const q = `UPDATE matched_entries SET paper_qa_summary = ? WHERE entry_id = ?`
	if _, err := a.pool.Exec(ctx, q, summary, entryID); err != nil {
		return fmt.Errorf("write paper_qa_summary to history: %w", err)
	}
	return nil
}

// Count returns the number of archived entries.
func (a *Archive) Count(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM matched_entries`

	var count int64
	if err := a.pool.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("count matched entries: %w", err)
	}
	return count, nil
}

func mergeTopics(joined, topic string) (string, bool) {
	topics := splitTopics(joined)
	for _, existing := range topics {
		if existing == topic {
			return joined, false
		}
	}
	topics = append(topics, topic)
	sort.Strings(topics)
	return strings.Join(topics, topicSeparator), true
}

func splitTopics(joined string) []string {
	parts := strings.Split(joined, ",")
	topics := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			topics = append(topics, trimmed)
		}
	}
	return topics
}

func nullableString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
