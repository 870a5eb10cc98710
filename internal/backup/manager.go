package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"lit.watch/firehose/internal/db"
	"lit.watch/firehose/internal/globaltime"
)

const timestampLayout = "20060102-150405"

// Manager creates rotating snapshots of the store files and runs the
// destructive purge operations.
type Manager struct {
	stores *db.Stores
	keep   int
	logger zerolog.Logger
}

// NewManager returns a manager keeping the newest `keep` snapshots per store.
func NewManager(stores *db.Stores, keep int, logger zerolog.Logger) *Manager {
	if keep <= 0 {
		keep = 3
	}
	return &Manager{
		stores: stores,
		keep:   keep,
		logger: logger,
	}
}

// SnapshotAll snapshots every store and returns the created file paths.
func (m *Manager) SnapshotAll(ctx context.Context) ([]string, error) {
	paths := make([]string, 0, 3)
	for _, store := range m.stores.All() {
		path, err := m.Snapshot(ctx, store.Stem, store.Pool)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Snapshot writes a consistent copy of the store beside its file, named
// <stem>.<timestamp>.backup.db, then rotates old snapshots out.
func (m *Manager) Snapshot(ctx context.Context, stem string, pool *db.Pool) (string, error) {
	dir := filepath.Dir(pool.Path())
	name := fmt.Sprintf("%s.%s.backup.db", stem, globaltime.Now().UTC().Format(timestampLayout))
	target := filepath.Join(dir, name)

	// VACUUM INTO produces a compacted, transactionally consistent copy
	// without blocking the source file.
	quoted := strings.ReplaceAll(target, "'", "''")
	if _, err := pool.Exec(ctx, fmt.Sprintf("VACUUM INTO '%s'", quoted)); err != nil {
		return "", fmt.Errorf("snapshot %s: %w", stem, err)
	}

	if err := m.rotate(dir, stem); err != nil {
		return target, fmt.Errorf("rotate %s snapshots: %w", stem, err)
	}
	m.logger.Info().Str("store", stem).Str("path", target).Msg("snapshot written")
	return target, nil
}

// rotate removes all but the newest `keep` snapshots for the stem. The
// timestamp format sorts lexically, so name order is age order.
func (m *Manager) rotate(dir, stem string) error {
	matches, err := filepath.Glob(filepath.Join(dir, stem+".*.backup.db"))
	if err != nil {
		return err
	}
	if len(matches) <= m.keep {
		return nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for _, stale := range matches[m.keep:] {
		if err := os.Remove(stale); err != nil {
			return fmt.Errorf("remove %q: %w", stale, err)
		}
		m.logger.Debug().Str("path", stale).Msg("removed stale snapshot")
	}
	return nil
}

// PurgeRecent deletes entries published within the last `days` days,
// today included, from every store. The window is [today-(days-1), today]
// by published date; it is how a bad recent run is rolled back so the next
// run re-fetches and re-processes those entries. Snapshots are taken first
// so the data stays recoverable. Returns rows deleted per store stem.
func (m *Manager) PurgeRecent(ctx context.Context, days int) (map[string]int64, error) {
	if days <= 0 {
		return nil, fmt.Errorf("purge days must be positive, got %d", days)
	}
	if _, err := m.SnapshotAll(ctx); err != nil {
		return nil, fmt.Errorf("snapshot before purge: %w", err)
	}

	today := globaltime.Now().UTC()
	since := today.AddDate(0, 0, -(days - 1)).Format("2006-01-02")
	until := today.Format("2006-01-02")

	statements := []struct {
		stem  string
		pool  *db.Pool
		query string
	}{
		{db.StemDedup, m.stores.Dedup, "DELETE FROM feed_entries WHERE DATE(published_date) BETWEEN DATE(?) AND DATE(?)"},
		{db.StemHistory, m.stores.History, "DELETE FROM matched_entries WHERE DATE(published_date) BETWEEN DATE(?) AND DATE(?)"},
		{db.StemWorking, m.stores.Working, "DELETE FROM entries WHERE DATE(published_date) BETWEEN DATE(?) AND DATE(?)"},
	}

	deleted := make(map[string]int64, len(statements))
	for _, stmt := range statements {
		tag, err := stmt.pool.Exec(ctx, stmt.query, since, until)
		if err != nil {
			return deleted, fmt.Errorf("purge %s: %w", stmt.stem, err)
		}
		deleted[stmt.stem] = tag.RowsAffected()
		m.logger.Info().
			Str("store", stmt.stem).
			Str("since", since).
			Str("until", until).
			Int64("deleted", tag.RowsAffected()).
			Msg("purged recent entries")
	}
	return deleted, nil
}

// PurgeAll drops and recreates every table in every store, leaving empty
// schemas behind. Snapshots are taken first so the data stays recoverable.
func (m *Manager) PurgeAll(ctx context.Context) error {
	if _, err := m.SnapshotAll(ctx); err != nil {
		return fmt.Errorf("snapshot before purge: %w", err)
	}
	for _, store := range m.stores.All() {
		if err := store.Pool.Reinit(ctx); err != nil {
			return fmt.Errorf("reinit %s: %w", store.Stem, err)
		}
		m.logger.Warn().Str("store", store.Stem).Msg("store reset to empty schema")
	}
	return nil
}
