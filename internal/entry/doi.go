package entry

import (
	"regexp"
	"strings"
)

// Simplified form of the Crossref DOI pattern.
var doiPattern = regexp.MustCompile(`(?i)10\.\d{4,9}/[-._;()/:A-Za-z0-9]+`)

// ExtractDOI scans the identifier, link and summary fields for a DOI.
// Returns an empty string when none is found.
func ExtractDOI(candidates ...string) string {
	for _, candidate := range candidates {
		if doi := findDOI(candidate); doi != "" {
			return doi
		}
	}
	return ""
}

func findDOI(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) >= 4 && strings.EqualFold(trimmed[:4], "doi:") {
		trimmed = strings.TrimSpace(trimmed[4:])
	}
	return doiPattern.FindString(trimmed)
}
