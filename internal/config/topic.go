package config

import (
	"fmt"
	"strings"
)

// TopicConfig is a per-topic YAML file under topics/<name>.yaml.
type TopicConfig struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Feeds       []string `yaml:"feeds"`

	Filter  FilterConfig  `yaml:"filter"`
	Ranking RankingConfig `yaml:"ranking"`
	Output  OutputConfig  `yaml:"output"`
}

type FilterConfig struct {
	Pattern string   `yaml:"pattern"`
	Fields  []string `yaml:"fields"`
}

type RankingConfig struct {
	// Query is the single-phrase form; Queries the multi-phrase form. When
	// both are set, Queries wins.
	Query     string   `yaml:"query"`
	Queries   []string `yaml:"queries"`
	Aggregate string   `yaml:"aggregate"` // "max" (default) or "mean"
	Method    string   `yaml:"method"`    // "embedding" (default) or "keyword"

	// UseSummary widens the scored text from the title alone to the title
	// plus the entry summary.
	UseSummary bool `yaml:"use_summary"`

	NegativeQueries []string `yaml:"negative_queries"`
	NegativePenalty float64  `yaml:"negative_penalty"`

	PreferredAuthors   []string `yaml:"preferred_authors"`
	PriorityAuthorBoost float64 `yaml:"priority_author_boost"`

	TopN          int     `yaml:"top_n"`
	RankThreshold float64 `yaml:"rank_threshold"`
}

type OutputConfig struct {
	Archive bool `yaml:"archive"`
}

func (t *TopicConfig) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("topic name is required")
	}
	if len(t.Feeds) == 0 {
		return fmt.Errorf("topic %q lists no feeds", t.Name)
	}
	if strings.TrimSpace(t.Filter.Pattern) == "" {
		return fmt.Errorf("topic %q has no filter.pattern", t.Name)
	}
	switch strings.ToLower(strings.TrimSpace(t.Ranking.Aggregate)) {
	case "", "max", "mean":
	default:
		return fmt.Errorf("topic %q: ranking.aggregate must be max or mean", t.Name)
	}
	switch strings.ToLower(strings.TrimSpace(t.Ranking.Method)) {
	case "", "embedding", "keyword":
	default:
		return fmt.Errorf("topic %q: ranking.method must be embedding or keyword", t.Name)
	}
	return nil
}

// FilterFields returns the configured match fields, defaulting to title and
// summary like the filter stage expects.
func (f FilterConfig) FilterFields() []string {
	if len(f.Fields) == 0 {
		return []string{"title", "summary"}
	}
	return f.Fields
}

// QueryPhrases normalizes the query/queries pair into a non-empty phrase
// list, or nil when the topic has no ranking query at all.
func (r RankingConfig) QueryPhrases() []string {
	if len(r.Queries) > 0 {
		phrases := make([]string, 0, len(r.Queries))
		for _, q := range r.Queries {
			if trimmed := strings.TrimSpace(q); trimmed != "" {
				phrases = append(phrases, trimmed)
			}
		}
		return phrases
	}
	if trimmed := strings.TrimSpace(r.Query); trimmed != "" {
		return []string{trimmed}
	}
	return nil
}
