// Package filter decides whether an entry belongs to a topic. Matching is a
// pure function of entry content and topic config.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"lit.watch/firehose/internal/config"
	"lit.watch/firehose/internal/entry"
)

// Matcher is a compiled topic filter.
type Matcher struct {
	topic         string
	pattern       *regexp.Regexp
	fields        []string
	priorityFeeds map[string]struct{}
}

// Compile builds a Matcher for the topic. An uncompilable pattern fails the
// whole topic here, before any entry is examined, instead of silently
// matching nothing.
func Compile(topic *config.TopicConfig, priorityFeeds []string) (*Matcher, error) {
	pattern, err := regexp.Compile(`(?i)` + topic.Filter.Pattern)
	if err != nil {
		return nil, fmt.Errorf("topic %q: invalid filter pattern: %w", topic.Name, err)
	}

	priority := make(map[string]struct{}, len(priorityFeeds))
	for _, key := range priorityFeeds {
		priority[key] = struct{}{}
	}

	return &Matcher{
		topic:         topic.Name,
		pattern:       pattern,
		fields:        topic.Filter.FilterFields(),
		priorityFeeds: priority,
	}, nil
}

// Match reports whether the entry belongs to the topic: a regex hit in any
// configured field, or an unconditional pass for entries from a priority
// feed.
func (m *Matcher) Match(e *entry.Entry) bool {
	if _, ok := m.priorityFeeds[e.FeedKey]; ok {
		return true
	}
	for _, field := range m.fields {
		if text := fieldText(e, field); text != "" && m.pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// Topic returns the topic this matcher was compiled for.
func (m *Matcher) Topic() string {
	return m.topic
}

func fieldText(e *entry.Entry, field string) string {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "title":
		return e.Title
	case "summary", "description":
		return e.Summary
	case "authors":
		return e.AuthorsJoined()
	default:
		return ""
	}
}
