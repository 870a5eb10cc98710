package ranking

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var nonNameChars = regexp.MustCompile(`[^a-z\s\-]`)

// HasPreferredAuthor reports whether any configured author name appears in
// the entry's author list. Matching is accent- and case-insensitive, keyed
// on last name plus an initials overlap, and accepts both "Last, First M"
// and "First M Last" forms.
func HasPreferredAuthor(authors []string, preferred []string) bool {
	if len(authors) == 0 || len(preferred) == 0 {
		return false
	}
	for _, want := range preferred {
		for _, have := range authors {
			if namesMatch(have, want) {
				return true
			}
		}
	}
	return false
}

func namesMatch(a, b string) bool {
	lastA, initialsA := parseNameParts(a)
	lastB, initialsB := parseNameParts(b)
	if lastA == "" || lastB == "" || lastA != lastB {
		return false
	}
	if len(initialsA) > 0 && len(initialsB) > 0 && !initialsIntersect(initialsA, initialsB) {
		return false
	}
	return true
}

func parseNameParts(name string) (string, []rune) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}

	var last string
	var tokens []string
	if before, after, found := strings.Cut(name, ","); found {
		last = normalizeName(before)
		tokens = strings.Fields(normalizeName(after))
	} else {
		fields := strings.Fields(normalizeName(name))
		if len(fields) == 0 {
			return "", nil
		}
		last = fields[len(fields)-1]
		tokens = fields[:len(fields)-1]
	}

	initials := make([]rune, 0, len(tokens))
	for _, token := range tokens {
		initials = append(initials, []rune(token)[0])
	}
	return last, initials
}

func normalizeName(text string) string {
	lowered := strings.ToLower(stripAccents(text))
	cleaned := nonNameChars.ReplaceAllString(lowered, " ")
	return strings.Join(strings.Fields(cleaned), " ")
}

func stripAccents(text string) string {
	decomposed := norm.NFKD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func initialsIntersect(a, b []rune) bool {
	for _, ra := range a {
		for _, rb := range b {
			if ra == rb {
				return true
			}
		}
	}
	return false
}
