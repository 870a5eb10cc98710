package entry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Entry is the typed record passed between pipeline stages. Stages never
// exchange raw feed payload maps; the feed adapter builds an Entry once and
// the stores validate it at their boundary.
type Entry struct {
	ID        string
	GUID      string
	FeedKey   string
	FeedName  string
	Title     string
	Link      string
	Summary   string
	Authors   []string
	DOI       string
	Published time.Time
	Raw       json.RawMessage
}

// Validate checks the fields every store requires.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entry has no id")
	}
	if strings.TrimSpace(e.FeedName) == "" {
		return fmt.Errorf("entry %s has no feed name", shortID(e.ID))
	}
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("entry %s has no title", shortID(e.ID))
	}
	return nil
}

// AuthorsJoined renders the author list the way the stores persist it.
func (e *Entry) AuthorsJoined() string {
	return strings.Join(e.Authors, ", ")
}

// PublishedDate returns the YYYY-MM-DD publication date, falling back to the
// supplied run date when the feed carried none.
func (e *Entry) PublishedDate(fallback time.Time) string {
	if e.Published.IsZero() {
		return fallback.UTC().Format("2006-01-02")
	}
	return e.Published.UTC().Format("2006-01-02")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
