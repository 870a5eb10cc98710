package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lit.watch/firehose/internal/db"
	"lit.watch/firehose/internal/entry"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()

	pool, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "matched_entries_history.db"), "silent", &db.MatchedEntry{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return NewArchive(pool, zerolog.Nop())
}

func archivedEntry() *entry.Entry {
	return &entry.Entry{
		ID:        "feedfeed",
		FeedName:  "Nature",
		Title:     "A matched paper",
		Link:      "https://example.org/paper",
		Published: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestArchive_MergesTopicsIntoOneRow(t *testing.T) {
	t.Parallel()

	archive := openTestArchive(t)
	ctx := context.Background()
	e := archivedEntry()

	if err := archive.Archive(ctx, e, "zeta"); err != nil {
		t.Fatalf("first Archive: %v", err)
	}
	if err := archive.Archive(ctx, e, "alpha"); err != nil {
		t.Fatalf("second Archive: %v", err)
	}

	count, err := archive.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row after merging topics, got %d", count)
	}

	topics, err := archive.Topics(ctx, e.ID, e.FeedName)
	if err != nil {
		t.Fatalf("Topics: %v", err)
	}
	if len(topics) != 2 || topics[0] != "alpha" || topics[1] != "zeta" {
		t.Fatalf("expected sorted merged topics [alpha zeta], got %v", topics)
	}
}

func TestArchive_MergeKeepsMatchedDate(t *testing.T) {
	t.Parallel()

	archive := openTestArchive(t)
	ctx := context.Background()
	e := archivedEntry()

	if err := archive.Archive(ctx, e, "alpha"); err != nil {
		t.Fatalf("first Archive: %v", err)
	}

	var initial time.Time
	if err := archive.pool.QueryRow(ctx,
		`SELECT matched_date FROM matched_entries WHERE entry_id = ?`, e.ID,
	).Scan(&initial); err != nil {
		t.Fatalf("read matched_date: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := archive.Archive(ctx, e, "beta"); err != nil {
		t.Fatalf("second Archive: %v", err)
	}

	var after time.Time
	if err := archive.pool.QueryRow(ctx,
		`SELECT matched_date FROM matched_entries WHERE entry_id = ?`, e.ID,
	).Scan(&after); err != nil {
		t.Fatalf("re-read matched_date: %v", err)
	}

	if !after.Equal(initial) {
		t.Fatalf("expected matched_date to record the first match: %v vs %v", after, initial)
	}
}

func TestArchive_RepeatTopicIsNoop(t *testing.T) {
	t.Parallel()

	archive := openTestArchive(t)
	ctx := context.Background()
	e := archivedEntry()

	for i := 0; i < 3; i++ {
		if err := archive.Archive(ctx, e, "alpha"); err != nil {
			t.Fatalf("Archive #%d: %v", i, err)
		}
	}

	topics, err := archive.Topics(ctx, e.ID, e.FeedName)
	if err != nil {
		t.Fatalf("Topics: %v", err)
	}
	if len(topics) != 1 || topics[0] != "alpha" {
		t.Fatalf("expected a single topic, got %v", topics)
	}
}

func TestArchive_Summaries(t *testing.T) {
	t.Parallel()

	archive := openTestArchive(t)
	ctx := context.Background()
	e := archivedEntry()

	if err := archive.Archive(ctx, e, "alpha"); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := archive.SetLLMSummary(ctx, e.ID, "short model summary"); err != nil {
		t.Fatalf("SetLLMSummary: %v", err)
	}
	if err := archive.SetPaperQASummary(ctx, e.ID, "full text summary"); err != nil {
		t.Fatalf("SetPaperQASummary: %v", err)
	}

	var llm, paperqa string
	if err := archive.pool.QueryRow(ctx,
		`SELECT llm_summary, paper_qa_summary FROM matched_entries WHERE entry_id = ?`, e.ID,
	).Scan(&llm, &paperqa); err != nil {
		t.Fatalf("read summaries: %v", err)
	}
	if llm != "short model summary" || paperqa != "full text summary" {
		t.Fatalf("unexpected summaries: %q / %q", llm, paperqa)
	}
}

func TestTopics_UnknownEntry(t *testing.T) {
	t.Parallel()

	archive := openTestArchive(t)
	topics, err := archive.Topics(context.Background(), "unknown", "Nature")
	if err != nil {
		t.Fatalf("Topics: %v", err)
	}
	if topics != nil {
		t.Fatalf("expected nil topics for unknown entry, got %v", topics)
	}
}
