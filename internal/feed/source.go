package feed

import (
	"context"

	"lit.watch/firehose/internal/entry"
)

// Source supplies raw entries for one feed URL. The production
// implementation parses RSS/Atom over HTTP; tests substitute a fake.
type Source interface {
	Fetch(ctx context.Context, url string) ([]entry.Entry, error)
}
