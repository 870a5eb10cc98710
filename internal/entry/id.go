package entry

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// ComputeID derives the stable fingerprint for a feed item. Preference
// order: the feed-provided GUID, then the link with query and fragment
// stripped, then a hash of title plus publication date. The fingerprint must
// not move when surface fields such as the summary text change between
// fetches.
func ComputeID(guid, link, title string, published time.Time) string {
	candidate := strings.TrimSpace(guid)
	if candidate == "" {
		candidate = strings.TrimSpace(link)
	}
	if candidate != "" {
		return sha1Hex(canonicalizeLink(candidate))
	}

	publishedPart := ""
	if !published.IsZero() {
		publishedPart = published.UTC().Format(time.RFC3339)
	}
	return sha1Hex(strings.TrimSpace(title) + "||" + publishedPart)
}

// canonicalizeLink drops query parameters and fragments, which publishers
// rotate between fetches (tracking tokens, session ids).
func canonicalizeLink(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}

func sha1Hex(value string) string {
	sum := sha1.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
