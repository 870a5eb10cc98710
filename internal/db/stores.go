package db

import (
	"context"
	"fmt"

	"lit.watch/firehose/internal/config"
)

// Store stems used for backup file naming.
const (
	StemDedup   = "all_feed_entries"
	StemHistory = "matched_entries_history"
	StemWorking = "papers"
)

// Stores bundles the three single-file databases the pipeline operates on.
type Stores struct {
	Dedup   *Pool
	History *Pool
	Working *Pool
}

// OpenStores opens all three store files, resolving their paths from the
// YAML config under the data directory.
func OpenStores(ctx context.Context, cfg *config.Config, pcfg *config.PipelineConfig) (*Stores, error) {
	dedup, err := Open(ctx, cfg.ResolveDataPath(pcfg.Database.AllFeedsPath), cfg.LogLevel, dedupModels()...)
	if err != nil {
		return nil, fmt.Errorf("open dedup store: %w", err)
	}

	history, err := Open(ctx, cfg.ResolveDataPath(pcfg.Database.HistoryPath), cfg.LogLevel, historyModels()...)
	if err != nil {
		_ = dedup.Close()
		return nil, fmt.Errorf("open history store: %w", err)
	}

	working, err := Open(ctx, cfg.ResolveDataPath(pcfg.Database.Path), cfg.LogLevel, workingModels()...)
	if err != nil {
		_ = dedup.Close()
		_ = history.Close()
		return nil, fmt.Errorf("open working store: %w", err)
	}

	return &Stores{
		Dedup:   dedup,
		History: history,
		Working: working,
	}, nil
}

func (s *Stores) Close() {
	if s == nil {
		return
	}
	_ = s.Dedup.Close()
	_ = s.History.Close()
	_ = s.Working.Close()
}

// All returns every store with its backup stem, in a stable order.
func (s *Stores) All() []struct {
	Stem string
	Pool *Pool
} {
	return []struct {
		Stem string
		Pool *Pool
	}{
		{Stem: StemDedup, Pool: s.Dedup},
		{Stem: StemHistory, Pool: s.History},
		{Stem: StemWorking, Pool: s.Working},
	}
}
