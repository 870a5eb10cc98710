// Package pipeline orchestrates the batch stages over the three stores:
// filter pulls feeds and stages topic matches, rank scores the staged rows
// and promotes the best of them. Stages run per topic and report per topic;
// one topic failing leaves the others' results in place.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lit.watch/firehose/internal/backup"
	"lit.watch/firehose/internal/config"
	"lit.watch/firehose/internal/db"
	"lit.watch/firehose/internal/dedup"
	"lit.watch/firehose/internal/entry"
	"lit.watch/firehose/internal/feed"
	"lit.watch/firehose/internal/filter"
	"lit.watch/firehose/internal/globaltime"
	"lit.watch/firehose/internal/history"
	"lit.watch/firehose/internal/ranking"
	"lit.watch/firehose/internal/working"
)

// ScorerFactory builds the scorer a topic configured. Injected so tests can
// rank without an embedding backend.
type ScorerFactory func(topic *config.TopicConfig) (ranking.Scorer, error)

type Runner struct {
	pcfg    *config.PipelineConfig
	stores  *db.Stores
	dedup   *dedup.Store
	history *history.Archive
	working *working.Store
	backups *backup.Manager

	source    feed.Source
	newScorer ScorerFactory
	logger    zerolog.Logger

	// Validator, when set, rejects malformed entries before they reach the
	// working store.
	Validator func(*entry.Entry) error
}

func NewRunner(
	pcfg *config.PipelineConfig,
	stores *db.Stores,
	source feed.Source,
	newScorer ScorerFactory,
	logger zerolog.Logger,
) *Runner {
	return &Runner{
		pcfg:      pcfg,
		stores:    stores,
		dedup:     dedup.NewStore(stores.Dedup, logger),
		history:   history.NewArchive(stores.History, logger),
		working:   working.NewStore(stores.Working, logger),
		backups:   backup.NewManager(stores, pcfg.Defaults.BackupKeep, logger),
		source:    source,
		newScorer: newScorer,
		logger:    logger,
	}
}

type FilterOptions struct {
	// Topics restricts the run; empty means every configured topic.
	Topics []string
	// SkipSnapshot disables the pre-run store snapshots.
	SkipSnapshot bool
}

type RankOptions struct {
	Topics []string
}

// fetchedFeed caches one feed fetch for the whole run, so a topic list that
// shares feeds pulls each URL exactly once.
type fetchedFeed struct {
	entries []entry.Entry
	err     error
}

// RunFilter pulls every feed the selected topics reference, stages fresh
// matching entries into the working store, and archives matches into the
// permanent history. All fetched entries, matched or not, are recorded in
// the dedup store only after every topic has seen them.
func (r *Runner) RunFilter(ctx context.Context, opts FilterOptions) (*Report, error) {
	report := newReport("filter")

	topics, err := r.resolveTopics(opts.Topics)
	if err != nil {
		return report.finish(), err
	}

	if !opts.SkipSnapshot {
		for _, store := range []struct {
			stem string
			pool *db.Pool
		}{
			{db.StemDedup, r.stores.Dedup},
			{db.StemHistory, r.stores.History},
		} {
			path, err := r.backups.Snapshot(ctx, store.stem, store.pool)
			if err != nil {
				return report.finish(), wrap(KindStorage, "", err)
			}
			report.Snapshots = append(report.Snapshots, path)
		}
	}

	windowCutoff := globaltime.UTC().AddDate(0, 0, -r.pcfg.Defaults.TimeWindowDays)
	enabled := r.pcfg.EnabledFeeds()
	feedCache := make(map[string]*fetchedFeed)
	freshness := make(map[string]bool)

	for _, name := range topics {
		topicReport := r.filterTopic(ctx, name, enabled, feedCache, freshness, windowCutoff)
		report.Topics = append(report.Topics, topicReport)
	}

	// Recording happens last so an entry first seen this run stays "fresh"
	// for every topic in the run, not just the first one to reach it.
	recorded := 0
	for key, fetched := range feedCache {
		if fetched.err != nil {
			continue
		}
		for i := range fetched.entries {
			if err := r.dedup.Record(ctx, &fetched.entries[i]); err != nil {
				r.logger.Warn().Err(err).Str("feed", key).Msg("failed to record fetched entry")
				continue
			}
			recorded++
		}
	}

	retention := time.Duration(r.pcfg.Defaults.DedupRetentionDays) * 24 * time.Hour
	if _, err := r.dedup.PurgeOlderThan(ctx, retention); err != nil {
		r.logger.Warn().Err(err).Msg("failed to age out dedup entries")
	}

	r.logger.Info().
		Str("run_id", report.RunID).
		Int("topics", len(topics)).
		Int("recorded", recorded).
		Strs("failed_topics", report.FailedTopics()).
		Msg("filter run complete")
	return report.finish(), nil
}

func (r *Runner) filterTopic(
	ctx context.Context,
	name string,
	enabled map[string]config.FeedConfig,
	feedCache map[string]*fetchedFeed,
	freshness map[string]bool,
	windowCutoff time.Time,
) TopicReport {
	topicReport := TopicReport{Topic: name}

	topicCfg, err := r.pcfg.LoadTopic(name)
	if err != nil {
		topicReport.Err = wrap(KindConfig, name, err)
		return topicReport
	}

	matcher, err := filter.Compile(topicCfg, r.pcfg.PriorityJournals)
	if err != nil {
		topicReport.Err = wrap(KindConfig, name, err)
		return topicReport
	}

	if err := r.working.Reset(ctx, name); err != nil {
		topicReport.Err = wrap(KindStorage, name, err)
		return topicReport
	}

	var fetchErrs []error
	for _, feedKey := range topicCfg.Feeds {
		feedCfg, ok := enabled[feedKey]
		if !ok {
			r.logger.Debug().Str("topic", name).Str("feed", feedKey).Msg("feed disabled or unknown, skipping")
			continue
		}

		fetched := r.fetchFeed(ctx, feedKey, feedCfg, feedCache)
		if fetched.err != nil {
			fetchErrs = append(fetchErrs, fmt.Errorf("feed %q: %w", feedKey, fetched.err))
			continue
		}
		topicReport.Fetched += len(fetched.entries)

		for i := range fetched.entries {
			e := &fetched.entries[i]
			if !e.Published.IsZero() && e.Published.Before(windowCutoff) {
				continue
			}

			fresh, known := freshness[e.ID]
			if !known {
				fresh, err = r.dedup.IsNew(ctx, e.ID)
				if err != nil {
					topicReport.Err = wrap(KindStorage, name, err)
					return topicReport
				}
				freshness[e.ID] = fresh
			}
			if !fresh {
				continue
			}
			topicReport.Fresh++

			if !matcher.Match(e) {
				continue
			}
			if r.Validator != nil {
				if err := r.Validator(e); err != nil {
					r.logger.Warn().Err(err).
						Str("topic", name).
						Str("entry_id", e.ID).
						Msg("entry failed payload validation, dropped")
					continue
				}
			}

			if err := r.working.Insert(ctx, e, name); err != nil {
				topicReport.Err = wrap(KindStorage, name, err)
				return topicReport
			}
			topicReport.Matched++

			if topicCfg.Output.Archive {
				if err := r.history.Archive(ctx, e, name); err != nil {
					topicReport.Err = wrap(KindStorage, name, err)
					return topicReport
				}
				topicReport.Archived++
			}
		}
	}

	// A feed that failed to fetch is only fatal when the topic got nothing
	// at all; partial feed coverage still produces a usable run.
	if len(fetchErrs) > 0 && topicReport.Fetched == 0 {
		topicReport.Err = wrap(KindBackend, name, fetchErrs[0])
	} else {
		for _, fetchErr := range fetchErrs {
			r.logger.Warn().Err(fetchErr).Str("topic", name).Msg("feed fetch failed, topic continues")
		}
	}
	return topicReport
}

func (r *Runner) fetchFeed(
	ctx context.Context,
	key string,
	feedCfg config.FeedConfig,
	cache map[string]*fetchedFeed,
) *fetchedFeed {
	if fetched, ok := cache[key]; ok {
		return fetched
	}

	entries, err := r.source.Fetch(ctx, feedCfg.URL)
	displayName := r.pcfg.FeedDisplayName(key)
	for i := range entries {
		entries[i].FeedKey = key
		entries[i].FeedName = displayName
	}

	fetched := &fetchedFeed{entries: entries, err: err}
	cache[key] = fetched
	if err == nil {
		r.logger.Debug().Str("feed", key).Int("entries", len(entries)).Msg("fetched feed")
	}
	return fetched
}

// RunRank scores every staged row for the selected topics, records score and
// reasoning on all of them, and promotes the top scorers above the threshold
// to ranked. Re-running rank re-scores ranked rows without regressing them.
func (r *Runner) RunRank(ctx context.Context, opts RankOptions) (*Report, error) {
	report := newReport("rank")

	topics, err := r.resolveTopics(opts.Topics)
	if err != nil {
		return report.finish(), err
	}

	for _, name := range topics {
		topicReport := r.rankTopic(ctx, name)
		report.Topics = append(report.Topics, topicReport)
	}

	r.logger.Info().
		Str("run_id", report.RunID).
		Int("topics", len(topics)).
		Strs("failed_topics", report.FailedTopics()).
		Msg("rank run complete")
	return report.finish(), nil
}

func (r *Runner) rankTopic(ctx context.Context, name string) TopicReport {
	topicReport := TopicReport{Topic: name}

	topicCfg, err := r.pcfg.LoadTopic(name)
	if err != nil {
		topicReport.Err = wrap(KindConfig, name, err)
		return topicReport
	}

	rows, err := r.working.ListByStatus(ctx, name, working.StatusFiltered, working.StatusRanked)
	if err != nil {
		topicReport.Err = wrap(KindStorage, name, err)
		return topicReport
	}
	if len(rows) == 0 {
		return topicReport
	}

	scorer, err := r.newScorer(topicCfg)
	if err != nil {
		topicReport.Err = wrap(KindConfig, name, err)
		return topicReport
	}

	candidates := make([]ranking.Candidate, len(rows))
	for i, row := range rows {
		candidates[i] = ranking.Candidate{
			ID:       row.ID,
			Topic:    row.Topic,
			FeedName: row.FeedName,
			Title:    row.Title,
			Summary:  row.Summary,
			Authors:  splitAuthors(row.Authors),
		}
	}

	engine := ranking.NewEngine(scorer, r.logger)
	scored, err := engine.ScoreTopic(ctx, topicCfg, ranking.Globals{
		PriorityJournalNames: r.pcfg.PriorityDisplayNames(),
		PriorityJournalBoost: r.pcfg.PriorityJournalBoost,
		NegativePenalty:      r.pcfg.Defaults.NegativePenalty,
	}, candidates)
	if err != nil {
		// An unreachable scoring backend degrades the run, not fails it:
		// scores stay unset and a later rank pass picks the rows up again.
		var backendErr *ranking.BackendError
		if errors.As(err, &backendErr) {
			r.logger.Warn().Err(err).
				Str("topic", name).
				Int("rows", len(rows)).
				Msg("scoring backend unavailable, rank skipped")
			return topicReport
		}
		topicReport.Err = wrap(KindConfig, name, err)
		return topicReport
	}

	for _, result := range scored {
		if err := r.working.UpdateRank(ctx, result.ID, result.Topic, result.Score, result.Reasoning); err != nil {
			topicReport.Err = wrap(KindStorage, name, err)
			return topicReport
		}
		topicReport.Ranked++
	}

	threshold := topicCfg.Ranking.RankThreshold
	if threshold == 0 {
		threshold = r.pcfg.Defaults.RankThreshold
	}
	topN := topicCfg.Ranking.TopN
	if topN <= 0 {
		topN = r.pcfg.Defaults.TopNPerTopic
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	for _, result := range scored {
		if topicReport.Selected >= topN || result.Score < threshold {
			break
		}
		if err := r.working.Advance(ctx, result.ID, result.Topic, working.StatusRanked); err != nil {
			topicReport.Err = wrap(KindStorage, name, err)
			return topicReport
		}
		topicReport.Selected++
	}
	return topicReport
}

func (r *Runner) resolveTopics(requested []string) ([]string, error) {
	available, err := r.pcfg.AvailableTopics()
	if err != nil {
		return nil, wrap(KindConfig, "", err)
	}
	if len(requested) == 0 {
		if len(available) == 0 {
			return nil, wrap(KindConfig, "", fmt.Errorf("no topic configurations found"))
		}
		return available, nil
	}

	known := make(map[string]struct{}, len(available))
	for _, name := range available {
		known[name] = struct{}{}
	}
	topics := make([]string, 0, len(requested))
	for _, name := range requested {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := known[name]; !ok {
			return nil, wrap(KindConfig, name, fmt.Errorf("unknown topic %q", name))
		}
		topics = append(topics, name)
	}
	if len(topics) == 0 {
		return nil, wrap(KindConfig, "", fmt.Errorf("no topics selected"))
	}
	return topics, nil
}

func splitAuthors(joined string) []string {
	parts := strings.Split(joined, ",")
	authors := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			authors = append(authors, trimmed)
		}
	}
	return authors
}
