package matching

import (
	"regexp"
	"strings"
)

var (
	punctuationPattern = regexp.MustCompile(`[^\w\s]`)
	whitespacePattern  = regexp.MustCompile(`\s+`)

	// Leading article tokens stripped once from normalized titles
	articles = []string{"the ", "a ", "an "}

	// Delimiters separating names inside a multi-author string
	authorDelimiters = []string{" & ", ";", " and "}
)

// NormalizeTitle lowercases, strips punctuation, collapses whitespace, and
// removes a single leading article. Applied identically to both sides of a
// comparison, so "The Great Book: A Novel" and "great book a novel" compare
// equal.
func NormalizeTitle(title string) string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	normalized = punctuationPattern.ReplaceAllString(normalized, " ")
	normalized = whitespacePattern.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)

	for _, article := range articles {
		if strings.HasPrefix(normalized, article) {
			normalized = strings.TrimPrefix(normalized, article)
			break
		}
	}

	return strings.TrimSpace(normalized)
}

// NormalizeAuthorName canonicalizes one author name: lowercased, whitespace
// collapsed, and "Last, First" reordered to "First Last".
func NormalizeAuthorName(author string) string {
	normalized := whitespacePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(author)), " ")

	if strings.Contains(normalized, ",") {
		parts := strings.Split(normalized, ",")
		if len(parts) == 2 {
			normalized = strings.TrimSpace(parts[1]) + " " + strings.TrimSpace(parts[0])
		}
	}

	return strings.TrimSpace(normalized)
}

// SplitAuthors splits a raw multi-author string into canonical author names.
func SplitAuthors(raw string) []string {
	parts := []string{raw}
	for _, delimiter := range authorDelimiters {
		var next []string
		for _, part := range parts {
			next = append(next, strings.Split(part, delimiter)...)
		}
		parts = next
	}

	var authors []string
	for _, part := range parts {
		if name := NormalizeAuthorName(part); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

// AuthorsMatch reports whether every source author appears in the
// destination author set. Order-independent, and deliberately a subset test
// rather than equality: a single-author source book matches an anthology
// entry that lists extra authors.
func AuthorsMatch(source, destination []string) bool {
	if len(source) == 0 {
		return len(destination) == 0
	}

	destinationSet := make(map[string]bool, len(destination))
	for _, name := range destination {
		destinationSet[NormalizeAuthorName(name)] = true
	}

	for _, name := range source {
		if !destinationSet[NormalizeAuthorName(name)] {
			return false
		}
	}
	return true
}
