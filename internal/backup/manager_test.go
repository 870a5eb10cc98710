package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lit.watch/firehose/internal/db"
	"lit.watch/firehose/internal/entry"
	"lit.watch/firehose/internal/globaltime"
	"lit.watch/firehose/internal/history"
	"lit.watch/firehose/internal/working"
)

func openTestStores(t *testing.T) (*db.Stores, string) {
	t.Helper()

	dir := t.TempDir()
	ctx := context.Background()

	dedupPool, err := db.Open(ctx, filepath.Join(dir, "all_feed_entries.db"), "silent", &db.FeedEntry{})
	if err != nil {
		t.Fatalf("open dedup store: %v", err)
	}
	historyPool, err := db.Open(ctx, filepath.Join(dir, "matched_entries_history.db"), "silent", &db.MatchedEntry{})
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	workingPool, err := db.Open(ctx, filepath.Join(dir, "papers.db"), "silent", &db.WorkingEntry{})
	if err != nil {
		t.Fatalf("open working store: %v", err)
	}

	stores := &db.Stores{Dedup: dedupPool, History: historyPool, Working: workingPool}
	t.Cleanup(stores.Close)
	return stores, dir
}

func TestSnapshotAndRotation(t *testing.T) {
	stores, dir := openTestStores(t)
	manager := NewManager(stores, 2, zerolog.Nop())
	ctx := context.Background()
	defer globaltime.ResetTime()

	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		globaltime.SetMockTime(base.Add(time.Duration(i) * time.Minute))
		if _, err := manager.Snapshot(ctx, db.StemDedup, stores.Dedup); err != nil {
			t.Fatalf("Snapshot #%d: %v", i, err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, db.StemDedup+".*.backup.db"))
	if err != nil {
		t.Fatalf("glob snapshots: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected rotation to keep 2 snapshots, got %d: %v", len(matches), matches)
	}
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			t.Fatalf("stat snapshot: %v", err)
		}
		if info.Size() == 0 {
			t.Fatalf("expected non-empty snapshot file %s", match)
		}
	}

	// Newest two timestamps survive.
	newest := db.StemDedup + "." + base.Add(3*time.Minute).Format("20060102-150405") + ".backup.db"
	if filepath.Base(matches[len(matches)-1]) != newest {
		t.Fatalf("expected newest snapshot %s to survive, got %v", newest, matches)
	}
}

func TestPurgeRecent_DeletesTheRecentWindowOnly(t *testing.T) {
	stores, _ := openTestStores(t)
	manager := NewManager(stores, 3, zerolog.Nop())
	ctx := context.Background()
	defer globaltime.ResetTime()

	today := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	globaltime.SetMockTime(today)

	insertDedup := func(id string, published time.Time) {
		t.Helper()
		_, err := stores.Dedup.Exec(ctx, `
INSERT INTO feed_entries (entry_id, feed_name, title, link, published_date, first_seen, last_seen)
VALUES (?, 'Nature', 'title', 'https://example.org', ?, ?, ?)`,
			id, published.Format("2006-01-02"), today, today)
		if err != nil {
			t.Fatalf("insert dedup row: %v", err)
		}
	}

	insertDedup("today", today)
	insertDedup("yesterday", today.AddDate(0, 0, -1))
	insertDedup("lastweek", today.AddDate(0, 0, -6))
	insertDedup("old", today.AddDate(0, 0, -30))

	archive := history.NewArchive(stores.History, zerolog.Nop())
	recent := &entry.Entry{ID: "recent", FeedName: "Nature", Title: "t", Published: today.AddDate(0, 0, -1)}
	ancient := &entry.Entry{ID: "ancient", FeedName: "Nature", Title: "t", Published: today.AddDate(0, 0, -90)}
	if err := archive.Archive(ctx, recent, "solar"); err != nil {
		t.Fatalf("archive recent: %v", err)
	}
	if err := archive.Archive(ctx, ancient, "solar"); err != nil {
		t.Fatalf("archive ancient: %v", err)
	}

	staging := working.NewStore(stores.Working, zerolog.Nop())
	if err := staging.Insert(ctx, recent, "solar"); err != nil {
		t.Fatalf("stage recent: %v", err)
	}
	if err := staging.Insert(ctx, ancient, "solar"); err != nil {
		t.Fatalf("stage ancient: %v", err)
	}

	deleted, err := manager.PurgeRecent(ctx, 2)
	if err != nil {
		t.Fatalf("PurgeRecent: %v", err)
	}

	// Window [today-1, today]: "today" and "yesterday" in the dedup store,
	// "recent" in the other two.
	if deleted[db.StemDedup] != 2 {
		t.Fatalf("expected 2 dedup rows purged, got %d", deleted[db.StemDedup])
	}
	if deleted[db.StemHistory] != 1 {
		t.Fatalf("expected 1 history row purged, got %d", deleted[db.StemHistory])
	}
	if deleted[db.StemWorking] != 1 {
		t.Fatalf("expected 1 working row purged, got %d", deleted[db.StemWorking])
	}

	var survivors int64
	if err := stores.Dedup.QueryRow(ctx, `SELECT COUNT(*) FROM feed_entries`).Scan(&survivors); err != nil {
		t.Fatalf("count survivors: %v", err)
	}
	if survivors != 2 {
		t.Fatalf("expected lastweek and old to survive, got %d rows", survivors)
	}
}

func TestPurgeRecent_RejectsNonPositiveDays(t *testing.T) {
	stores, _ := openTestStores(t)
	manager := NewManager(stores, 3, zerolog.Nop())

	if _, err := manager.PurgeRecent(context.Background(), 0); err == nil {
		t.Fatalf("expected error for zero days")
	}
	if _, err := manager.PurgeRecent(context.Background(), -3); err == nil {
		t.Fatalf("expected error for negative days")
	}
}

func TestPurgeAll_LeavesEmptySchemas(t *testing.T) {
	stores, dir := openTestStores(t)
	manager := NewManager(stores, 3, zerolog.Nop())
	ctx := context.Background()

	staging := working.NewStore(stores.Working, zerolog.Nop())
	e := &entry.Entry{ID: "aa", FeedName: "Nature", Title: "t"}
	if err := staging.Insert(ctx, e, "solar"); err != nil {
		t.Fatalf("stage entry: %v", err)
	}

	if err := manager.PurgeAll(ctx); err != nil {
		t.Fatalf("PurgeAll: %v", err)
	}

	var count int64
	if err := stores.Working.QueryRow(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count); err != nil {
		t.Fatalf("count after reset: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty working store, got %d rows", count)
	}

	// PurgeAll snapshots before destroying.
	matches, err := filepath.Glob(filepath.Join(dir, "*.backup.db"))
	if err != nil {
		t.Fatalf("glob snapshots: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("expected pre-purge snapshots to exist")
	}
}
