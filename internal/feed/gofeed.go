package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"lit.watch/firehose/internal/entry"
	"lit.watch/firehose/internal/ratelimit"
)

// Parser fetches and parses RSS/Atom feeds with gofeed, paced by a shared
// rate limiter.
type Parser struct {
	parser *gofeed.Parser
	pacer  *ratelimit.Pacer
}

func NewParser(pacer *ratelimit.Pacer) *Parser {
	return &Parser{
		parser: gofeed.NewParser(),
		pacer:  pacer,
	}
}

func (p *Parser) Fetch(ctx context.Context, url string) ([]entry.Entry, error) {
	if err := p.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	parsed, err := p.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %q: %w", url, err)
	}

	entries := make([]entry.Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entries = append(entries, FromItem(item))
	}
	return entries, nil
}

// FromItem converts one gofeed item into the typed pipeline record.
func FromItem(item *gofeed.Item) entry.Entry {
	published := time.Time{}
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC()
	}

	authors := make([]string, 0, len(item.Authors))
	for _, author := range item.Authors {
		if author == nil {
			continue
		}
		if name := strings.TrimSpace(author.Name); name != "" {
			authors = append(authors, name)
		}
	}

	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	raw, _ := json.Marshal(item)

	e := entry.Entry{
		GUID:      item.GUID,
		Title:     strings.TrimSpace(item.Title),
		Link:      item.Link,
		Summary:   summary,
		Authors:   authors,
		Published: published,
		Raw:       raw,
	}
	e.ID = entry.ComputeID(e.GUID, e.Link, e.Title, e.Published)
	e.DOI = entry.ExtractDOI(e.GUID, e.Link, e.Summary)
	return e
}
