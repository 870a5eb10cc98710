package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, mainYAML string, topics map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(mainYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if len(topics) > 0 {
		topicsDir := filepath.Join(dir, "topics")
		if err := os.Mkdir(topicsDir, 0o755); err != nil {
			t.Fatalf("make topics dir: %v", err)
		}
		for name, body := range topics {
			if err := os.WriteFile(filepath.Join(topicsDir, name+".yaml"), []byte(body), 0o644); err != nil {
				t.Fatalf("write topic %s: %v", name, err)
			}
		}
	}
	return path
}

const minimalConfig = `
feeds:
  nature:
    name: Nature
    url: https://www.nature.com/nature.rss
    enabled: true
  arxiv:
    name: arXiv cond-mat
    url: https://rss.arxiv.org/rss/cond-mat
    enabled: false
priority_journals: [nature]
priority_journal_boost: 0.1
`

func TestLoadPipeline_AppliesDefaults(t *testing.T) {
	t.Parallel()

	path := writeTestConfig(t, minimalConfig, nil)
	cfg, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}

	if cfg.Database.Path != "papers.db" {
		t.Fatalf("unexpected working db path: %q", cfg.Database.Path)
	}
	if cfg.Database.AllFeedsPath != "all_feed_entries.db" {
		t.Fatalf("unexpected dedup db path: %q", cfg.Database.AllFeedsPath)
	}
	if cfg.Database.HistoryPath != "matched_entries_history.db" {
		t.Fatalf("unexpected history db path: %q", cfg.Database.HistoryPath)
	}
	if cfg.Defaults.TimeWindowDays != DefaultTimeWindowDays {
		t.Fatalf("unexpected time window: %d", cfg.Defaults.TimeWindowDays)
	}
	if cfg.Defaults.TopNPerTopic != DefaultTopNPerTopic {
		t.Fatalf("unexpected top-n: %d", cfg.Defaults.TopNPerTopic)
	}
	if cfg.Defaults.RankThreshold != DefaultRankThreshold {
		t.Fatalf("unexpected threshold: %f", cfg.Defaults.RankThreshold)
	}
	if cfg.Defaults.BackupKeep != DefaultBackupKeep {
		t.Fatalf("unexpected backup keep: %d", cfg.Defaults.BackupKeep)
	}
}

func TestLoadPipeline_RejectsUnknownPriorityJournal(t *testing.T) {
	t.Parallel()

	const bad = `
feeds:
  nature:
    name: Nature
    url: https://www.nature.com/nature.rss
    enabled: true
priority_journals: [science]
`
	path := writeTestConfig(t, bad, nil)
	if _, err := LoadPipeline(path); err == nil {
		t.Fatalf("expected error for priority journal that is not a feed")
	}
}

func TestEnabledFeedsAndDisplayNames(t *testing.T) {
	t.Parallel()

	path := writeTestConfig(t, minimalConfig, nil)
	cfg, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}

	enabled := cfg.EnabledFeeds()
	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled feed, got %d", len(enabled))
	}
	if _, ok := enabled["nature"]; !ok {
		t.Fatalf("expected nature to be enabled")
	}

	if name := cfg.FeedDisplayName("nature"); name != "Nature" {
		t.Fatalf("unexpected display name: %q", name)
	}
	if name := cfg.FeedDisplayName("unknown"); name != "unknown" {
		t.Fatalf("expected key passthrough for unknown feed, got %q", name)
	}

	names := cfg.PriorityDisplayNames()
	if _, ok := names["Nature"]; !ok {
		t.Fatalf("expected priority display names to contain Nature, got %v", names)
	}
}

func TestLoadTopic(t *testing.T) {
	t.Parallel()

	const topicYAML = `
feeds: [nature]
filter:
  pattern: "perovskite|solar cell"
ranking:
  query: "perovskite solar cell stability"
  method: keyword
output:
  archive: true
`
	path := writeTestConfig(t, minimalConfig, map[string]string{"solar": topicYAML})
	cfg, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}

	topics, err := cfg.AvailableTopics()
	if err != nil {
		t.Fatalf("AvailableTopics: %v", err)
	}
	if len(topics) != 1 || topics[0] != "solar" {
		t.Fatalf("unexpected topics: %v", topics)
	}

	topic, err := cfg.LoadTopic("solar")
	if err != nil {
		t.Fatalf("LoadTopic: %v", err)
	}
	if topic.Name != "solar" {
		t.Fatalf("expected file name to backfill topic name, got %q", topic.Name)
	}
	if !topic.Output.Archive {
		t.Fatalf("expected archive output")
	}
	if phrases := topic.Ranking.QueryPhrases(); len(phrases) != 1 || phrases[0] != "perovskite solar cell stability" {
		t.Fatalf("unexpected phrases: %v", phrases)
	}
	if fields := topic.Filter.FilterFields(); len(fields) != 2 || fields[0] != "title" || fields[1] != "summary" {
		t.Fatalf("unexpected default fields: %v", fields)
	}
}

func TestLoadTopic_InvalidAggregate(t *testing.T) {
	t.Parallel()

	const topicYAML = `
feeds: [nature]
filter:
  pattern: "x"
ranking:
  query: "x"
  aggregate: median
`
	path := writeTestConfig(t, minimalConfig, map[string]string{"bad": topicYAML})
	cfg, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline: %v", err)
	}
	if _, err := cfg.LoadTopic("bad"); err == nil {
		t.Fatalf("expected error for unsupported aggregate")
	}
}

func TestQueryPhrases_MultiQueryWins(t *testing.T) {
	t.Parallel()

	r := RankingConfig{
		Query:   "ignored",
		Queries: []string{" first ", "", "second"},
	}
	phrases := r.QueryPhrases()
	if len(phrases) != 2 || phrases[0] != "first" || phrases[1] != "second" {
		t.Fatalf("unexpected phrases: %v", phrases)
	}
}
