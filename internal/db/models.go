package db

import (
	"encoding/json"
	"time"
)

// FeedEntry maps feed_entries in the dedup store (all_feed_entries.db).
// One row per logical item ever fetched, matched or not. Never consulted for
// topic semantics.
type FeedEntry struct {
	EntryID       string          `gorm:"column:entry_id;primaryKey;uniqueIndex:ux_feed_entries_feed_entry,priority:2"`
	FeedName      string          `gorm:"column:feed_name;not null;index;uniqueIndex:ux_feed_entries_feed_entry,priority:1"`
	Title         string          `gorm:"column:title;not null"`
	Link          string          `gorm:"column:link;not null"`
	Summary       string          `gorm:"column:summary"`
	Authors       string          `gorm:"column:authors"`
	PublishedDate string          `gorm:"column:published_date;index"`
	FirstSeen     time.Time       `gorm:"column:first_seen;not null"`
	LastSeen      time.Time       `gorm:"column:last_seen;not null"`
	RawData       json.RawMessage `gorm:"column:raw_data"`
}

func (FeedEntry) TableName() string { return "feed_entries" }

// MatchedEntry maps matched_entries in the history store
// (matched_entries_history.db). Exactly one row per (entry_id, feed_name)
// for the lifetime of the system; topics is a merged, sorted, comma-joined
// set of every topic that ever matched the entry.
type MatchedEntry struct {
	EntryID        string          `gorm:"column:entry_id;primaryKey"`
	FeedName       string          `gorm:"column:feed_name;not null"`
	Topics         string          `gorm:"column:topics;not null;index"`
	Title          string          `gorm:"column:title;not null"`
	Link           string          `gorm:"column:link;not null"`
	Summary        string          `gorm:"column:summary"`
	Authors        string          `gorm:"column:authors"`
	Abstract       *string         `gorm:"column:abstract"`
	DOI            *string         `gorm:"column:doi"`
	PublishedDate  string          `gorm:"column:published_date"`
	MatchedDate    time.Time       `gorm:"column:matched_date;not null;index"`
	RawData        json.RawMessage `gorm:"column:raw_data"`
	LLMSummary     *string         `gorm:"column:llm_summary"`
	PaperQASummary *string         `gorm:"column:paper_qa_summary"`
}

func (MatchedEntry) TableName() string { return "matched_entries" }

// WorkingEntry maps entries in the working store (papers.db). Composite key
// (id, topic): the same paper ranks independently against each topic it
// matched. Rows for a topic are cleared at the start of that topic's run.
type WorkingEntry struct {
	ID             string          `gorm:"column:id;primaryKey;uniqueIndex:ux_entries_feed_topic_id,priority:3"`
	Topic          string          `gorm:"column:topic;primaryKey;uniqueIndex:ux_entries_feed_topic_id,priority:2;index:idx_entries_topic_status,priority:1"`
	FeedName       string          `gorm:"column:feed_name;not null;uniqueIndex:ux_entries_feed_topic_id,priority:1"`
	Title          string          `gorm:"column:title;not null"`
	Link           string          `gorm:"column:link;not null"`
	Summary        string          `gorm:"column:summary"`
	Authors        string          `gorm:"column:authors"`
	Abstract       *string         `gorm:"column:abstract"`
	DOI            *string         `gorm:"column:doi"`
	PublishedDate  string          `gorm:"column:published_date"`
	DiscoveredDate time.Time       `gorm:"column:discovered_date;not null"`
	Status         string          `gorm:"column:status;not null;default:new;index:idx_entries_topic_status,priority:2;check:status IN ('new','filtered','ranked','summarized')"`
	RankScore      *float64        `gorm:"column:rank_score"`
	RankReasoning  *string         `gorm:"column:rank_reasoning"`
	LLMSummary     *string         `gorm:"column:llm_summary"`
	PaperQASummary *string         `gorm:"column:paper_qa_summary"`
	RawData        json.RawMessage `gorm:"column:raw_data"`
}

func (WorkingEntry) TableName() string { return "entries" }

func dedupModels() []any   { return []any{&FeedEntry{}} }
func historyModels() []any { return []any{&MatchedEntry{}} }
func workingModels() []any { return []any{&WorkingEntry{}} }
