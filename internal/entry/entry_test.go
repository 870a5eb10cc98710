package entry

import (
	"testing"
	"time"
)

func TestComputeID_PrefersGUID(t *testing.T) {
	t.Parallel()

	published := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	withGUID := ComputeID("urn:doi:10.1000/xyz", "https://example.org/a", "Title", published)
	withoutGUID := ComputeID("", "https://example.org/a", "Title", published)

	if withGUID == withoutGUID {
		t.Fatalf("expected GUID to dominate the fingerprint")
	}
	if again := ComputeID("urn:doi:10.1000/xyz", "https://other.example/b", "Other", published); again != withGUID {
		t.Fatalf("expected GUID-derived id to ignore link and title: %q vs %q", again, withGUID)
	}
}

func TestComputeID_StripsLinkQueryAndFragment(t *testing.T) {
	t.Parallel()

	base := ComputeID("", "https://example.org/paper/1", "Title", time.Time{})
	tracked := ComputeID("", "https://example.org/paper/1?utm_source=feed&rss=1#abstract", "Title", time.Time{})
	if base != tracked {
		t.Fatalf("expected query and fragment to be stripped: %q vs %q", base, tracked)
	}

	other := ComputeID("", "https://example.org/paper/2", "Title", time.Time{})
	if base == other {
		t.Fatalf("expected different paths to produce different ids")
	}
}

func TestComputeID_FallsBackToTitleAndDate(t *testing.T) {
	t.Parallel()

	published := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	first := ComputeID("", "", "Perovskite stability study", published)
	second := ComputeID("", "", "Perovskite stability study", published)
	if first != second {
		t.Fatalf("expected the fallback fingerprint to be stable")
	}

	if len(first) != 40 {
		t.Fatalf("expected a 40-char hex digest, got %d chars", len(first))
	}

	different := ComputeID("", "", "Perovskite stability study", published.Add(24*time.Hour))
	if first == different {
		t.Fatalf("expected the published date to be part of the fallback fingerprint")
	}
}

func TestExtractDOI(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"from link", []string{"", "https://doi.org/10.1038/s41586-026-01234-5"}, "10.1038/s41586-026-01234-5"},
		{"doi prefix stripped", []string{"doi:10.1103/PhysRevLett.99.123456"}, "10.1103/PhysRevLett.99.123456"},
		{"from summary text", []string{"no doi here", "see 10.1021/acsnano.5c01234 for details"}, "10.1021/acsnano.5c01234"},
		{"none", []string{"plain text", "https://example.org/a"}, ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractDOI(tc.candidates...); got != tc.want {
				t.Fatalf("ExtractDOI(%v) = %q, want %q", tc.candidates, got, tc.want)
			}
		})
	}
}

func TestPublishedDate_Fallback(t *testing.T) {
	t.Parallel()

	run := time.Date(2026, 4, 2, 16, 0, 0, 0, time.UTC)

	undated := Entry{Title: "x"}
	if got := undated.PublishedDate(run); got != "2026-04-02" {
		t.Fatalf("expected run-date fallback, got %q", got)
	}

	dated := Entry{Title: "x", Published: time.Date(2026, 3, 30, 23, 59, 0, 0, time.UTC)}
	if got := dated.PublishedDate(run); got != "2026-03-30" {
		t.Fatalf("expected the feed date, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Entry{ID: "abc", FeedName: "Nature", Title: "A paper"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid entry, got %v", err)
	}

	missingTitle := Entry{ID: "abc", FeedName: "Nature"}
	if err := missingTitle.Validate(); err == nil {
		t.Fatalf("expected error for missing title")
	}

	missingID := Entry{FeedName: "Nature", Title: "A paper"}
	if err := missingID.Validate(); err == nil {
		t.Fatalf("expected error for missing id")
	}
}
