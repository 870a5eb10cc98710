package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeWindowDays  = 365
	DefaultTopNPerTopic    = 10
	DefaultRankThreshold   = 0.3
	DefaultNegativePenalty = 0.25
	DefaultDedupRetention  = 120
	DefaultBackupKeep      = 3
)

// PipelineConfig is the main YAML configuration (config.yaml). Topic files
// live next to it under topics/<name>.yaml.
type PipelineConfig struct {
	Database  DatabaseConfig        `yaml:"database"`
	Feeds     map[string]FeedConfig `yaml:"feeds"`
	Embedding EmbeddingConfig       `yaml:"embedding"`

	PriorityJournals     []string `yaml:"priority_journals"`
	PriorityJournalBoost float64  `yaml:"priority_journal_boost"`

	Defaults Defaults `yaml:"defaults"`

	baseDir string
}

type DatabaseConfig struct {
	Path         string `yaml:"path"`
	AllFeedsPath string `yaml:"all_feeds_path"`
	HistoryPath  string `yaml:"history_path"`
}

type FeedConfig struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
}

type EmbeddingConfig struct {
	Endpoint string  `yaml:"endpoint"`
	Model    string  `yaml:"model"`
	RPS      float64 `yaml:"rps"`
	TimeoutS int     `yaml:"timeout_seconds"`
}

type Defaults struct {
	TimeWindowDays     int     `yaml:"time_window_days"`
	TopNPerTopic       int     `yaml:"top_n_per_topic"`
	RankThreshold      float64 `yaml:"rank_threshold"`
	NegativePenalty    float64 `yaml:"ranking_negative_penalty"`
	DedupRetentionDays int     `yaml:"dedup_retention_days"`
	BackupKeep         int     `yaml:"backup_keep"`
}

// LoadPipeline reads and validates config.yaml.
func LoadPipeline(path string) (*PipelineConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline config %q: %w", path, err)
	}

	var cfg PipelineConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse pipeline config %q: %w", path, err)
	}
	cfg.baseDir = filepath.Dir(path)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline config %q: %w", path, err)
	}
	return &cfg, nil
}

func (c *PipelineConfig) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "papers.db"
	}
	if c.Database.AllFeedsPath == "" {
		c.Database.AllFeedsPath = "all_feed_entries.db"
	}
	if c.Database.HistoryPath == "" {
		c.Database.HistoryPath = "matched_entries_history.db"
	}
	if c.Defaults.TimeWindowDays <= 0 {
		c.Defaults.TimeWindowDays = DefaultTimeWindowDays
	}
	if c.Defaults.TopNPerTopic <= 0 {
		c.Defaults.TopNPerTopic = DefaultTopNPerTopic
	}
	if c.Defaults.RankThreshold == 0 {
		c.Defaults.RankThreshold = DefaultRankThreshold
	}
	if c.Defaults.NegativePenalty == 0 {
		c.Defaults.NegativePenalty = DefaultNegativePenalty
	}
	if c.Defaults.DedupRetentionDays <= 0 {
		c.Defaults.DedupRetentionDays = DefaultDedupRetention
	}
	if c.Defaults.BackupKeep <= 0 {
		c.Defaults.BackupKeep = DefaultBackupKeep
	}
	if c.Embedding.TimeoutS <= 0 {
		c.Embedding.TimeoutS = 45
	}
}

func (c *PipelineConfig) Validate() error {
	for key, feed := range c.Feeds {
		if strings.TrimSpace(feed.URL) == "" {
			return fmt.Errorf("feed %q has no url", key)
		}
	}
	for _, key := range c.PriorityJournals {
		if _, ok := c.Feeds[key]; !ok {
			return fmt.Errorf("priority journal %q is not a configured feed", key)
		}
	}
	if c.PriorityJournalBoost < 0 {
		return fmt.Errorf("priority_journal_boost must be >= 0")
	}
	return nil
}

// EnabledFeeds returns the enabled subset of the feed registry.
func (c *PipelineConfig) EnabledFeeds() map[string]FeedConfig {
	enabled := make(map[string]FeedConfig, len(c.Feeds))
	for key, feed := range c.Feeds {
		if feed.Enabled {
			enabled[key] = feed
		}
	}
	return enabled
}

// FeedDisplayName resolves the human-readable name for a feed key.
func (c *PipelineConfig) FeedDisplayName(key string) string {
	if feed, ok := c.Feeds[key]; ok && strings.TrimSpace(feed.Name) != "" {
		return feed.Name
	}
	return key
}

// PriorityDisplayNames returns the display names of priority journals, used
// by the ranking boost which matches on feed_name.
func (c *PipelineConfig) PriorityDisplayNames() map[string]struct{} {
	names := make(map[string]struct{}, len(c.PriorityJournals))
	for _, key := range c.PriorityJournals {
		names[c.FeedDisplayName(key)] = struct{}{}
	}
	return names
}

// AvailableTopics lists topic names with a config file under topics/.
func (c *PipelineConfig) AvailableTopics() ([]string, error) {
	dir := filepath.Join(c.baseDir, "topics")
	items, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read topics dir %q: %w", dir, err)
	}

	topics := make([]string, 0, len(items))
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		name := item.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		topics = append(topics, strings.TrimSuffix(name, ext))
	}
	sort.Strings(topics)
	return topics, nil
}

// LoadTopic reads topics/<name>.yaml relative to the main config file.
func (c *PipelineConfig) LoadTopic(name string) (*TopicConfig, error) {
	path := filepath.Join(c.baseDir, "topics", name+".yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		alt := filepath.Join(c.baseDir, "topics", name+".yml")
		if altRaw, altErr := os.ReadFile(alt); altErr == nil {
			raw = altRaw
		} else {
			return nil, fmt.Errorf("read topic config %q: %w", path, err)
		}
	}

	var topic TopicConfig
	if err := yaml.Unmarshal(raw, &topic); err != nil {
		return nil, fmt.Errorf("parse topic config %q: %w", path, err)
	}
	if topic.Name == "" {
		topic.Name = name
	}
	if err := topic.Validate(); err != nil {
		return nil, fmt.Errorf("topic config %q: %w", path, err)
	}
	return &topic, nil
}
