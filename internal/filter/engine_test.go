package filter

import (
	"testing"

	"lit.watch/firehose/internal/config"
	"lit.watch/firehose/internal/entry"
)

func testTopic(pattern string, fields ...string) *config.TopicConfig {
	return &config.TopicConfig{
		Name:  "solar",
		Feeds: []string{"nature"},
		Filter: config.FilterConfig{
			Pattern: pattern,
			Fields:  fields,
		},
	}
}

func TestCompile_RejectsBadPattern(t *testing.T) {
	t.Parallel()

	if _, err := Compile(testTopic("perovskite(("), nil); err == nil {
		t.Fatalf("expected error for uncompilable pattern")
	}
}

func TestMatch_CaseInsensitiveAcrossFields(t *testing.T) {
	t.Parallel()

	m, err := Compile(testTopic("perovskite|tandem"), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	inTitle := &entry.Entry{Title: "PEROVSKITE device physics"}
	if !m.Match(inTitle) {
		t.Fatalf("expected case-insensitive title match")
	}

	inSummary := &entry.Entry{Title: "Device physics", Summary: "a tandem architecture"}
	if !m.Match(inSummary) {
		t.Fatalf("expected summary match with default fields")
	}

	miss := &entry.Entry{Title: "Organic LEDs", Summary: "nothing relevant"}
	if m.Match(miss) {
		t.Fatalf("expected no match")
	}
}

func TestMatch_HonorsConfiguredFields(t *testing.T) {
	t.Parallel()

	m, err := Compile(testTopic("perovskite", "title"), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	summaryOnly := &entry.Entry{Title: "Device physics", Summary: "perovskite films"}
	if m.Match(summaryOnly) {
		t.Fatalf("expected no match when summary is not a configured field")
	}
}

func TestMatch_AuthorsField(t *testing.T) {
	t.Parallel()

	m, err := Compile(testTopic("snaith", "authors"), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	e := &entry.Entry{Title: "Unrelated", Authors: []string{"H. J. Snaith", "A. Other"}}
	if !m.Match(e) {
		t.Fatalf("expected author match")
	}
}

func TestMatch_PriorityFeedBypassesPattern(t *testing.T) {
	t.Parallel()

	m, err := Compile(testTopic("perovskite"), []string{"nature"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	e := &entry.Entry{FeedKey: "nature", Title: "Completely unrelated commentary"}
	if !m.Match(e) {
		t.Fatalf("expected priority feed to bypass the pattern")
	}

	other := &entry.Entry{FeedKey: "arxiv", Title: "Completely unrelated commentary"}
	if m.Match(other) {
		t.Fatalf("expected non-priority feed to still require a pattern hit")
	}
}
