package collections

import (
	"sort"
	"strings"
)

// Category says what a collection name means for the destination libraries.
type Category string

const (
	CategoryRating  Category = "rating"
	CategoryTopical Category = "topical"
	CategoryIgnored Category = "ignored"
)

// Classified is the result of classifying one raw collection name.
type Classified struct {
	Name            string
	Category        Category
	NormalizedValue string
}

// Grouped is the per-book view of a classified collection set.
type Grouped struct {
	// Ratings holds canonical rating labels, highest precedence first.
	Ratings []string
	// Topical holds cleaned topical tag values, sorted.
	Topical []string
	// AmbiguousRating is set when the book carries multiple rating
	// collections and no configured precedence can order them. The book
	// gets no single rating and is surfaced as a review item.
	AmbiguousRating bool
}

// Classifier partitions raw collection names into rating and topical
// categories using an injected mapping. It is pure: unknown names classify
// as topical, never dropped and never an error.
type Classifier struct {
	ratings    map[string]string // lowercased raw name -> canonical label
	precedence map[string]int    // canonical label -> rank, lower wins
	ignored    map[string]bool   // lowercased raw names to skip entirely
}

// NewClassifier builds a classifier from a raw-name-to-label mapping and an
// optional precedence ordering over the canonical labels.
func NewClassifier(mapping map[string]string, precedence []string, ignored []string) *Classifier {
	c := &Classifier{
		ratings:    make(map[string]string, len(mapping)),
		precedence: make(map[string]int, len(precedence)),
		ignored:    make(map[string]bool, len(ignored)),
	}
	for raw, label := range mapping {
		c.ratings[strings.ToLower(strings.TrimSpace(raw))] = label
	}
	for i, label := range precedence {
		c.precedence[label] = i
	}
	for _, raw := range ignored {
		c.ignored[strings.ToLower(strings.TrimSpace(raw))] = true
	}
	return c
}

// Classify maps one raw collection name to its category. Total: every input
// produces a result.
func (c *Classifier) Classify(raw string) Classified {
	key := strings.ToLower(strings.TrimSpace(raw))

	if c.ignored[key] {
		return Classified{Name: raw, Category: CategoryIgnored}
	}

	if label, ok := c.ratings[key]; ok {
		return Classified{Name: raw, Category: CategoryRating, NormalizedValue: label}
	}

	return Classified{Name: raw, Category: CategoryTopical, NormalizedValue: CleanTopicalName(raw)}
}

// ClassifyAll classifies a book's collection set and groups the results.
// Multiple distinct rating labels resolve via the configured precedence;
// without one the book is flagged ambiguous and receives no rating.
func (c *Classifier) ClassifyAll(raws []string) Grouped {
	var grouped Grouped
	seenRatings := make(map[string]bool)

	for _, raw := range raws {
		classified := c.Classify(raw)
		switch classified.Category {
		case CategoryRating:
			if !seenRatings[classified.NormalizedValue] {
				seenRatings[classified.NormalizedValue] = true
				grouped.Ratings = append(grouped.Ratings, classified.NormalizedValue)
			}
		case CategoryTopical:
			if classified.NormalizedValue != "" {
				grouped.Topical = append(grouped.Topical, classified.NormalizedValue)
			}
		}
	}

	sort.Strings(grouped.Topical)

	if len(grouped.Ratings) > 1 {
		if c.orderable(grouped.Ratings) {
			sort.Slice(grouped.Ratings, func(i, j int) bool {
				return c.precedence[grouped.Ratings[i]] < c.precedence[grouped.Ratings[j]]
			})
		} else {
			grouped.AmbiguousRating = true
			grouped.Ratings = nil
		}
	}

	return grouped
}

// orderable reports whether every label has a configured precedence rank.
func (c *Classifier) orderable(labels []string) bool {
	if len(c.precedence) == 0 {
		return false
	}
	for _, label := range labels {
		if _, ok := c.precedence[label]; !ok {
			return false
		}
	}
	return true
}

// CleanTopicalName strips the shelf-name prefix noise the device carries
// ("| ", "> ") so topical tags read cleanly in the destination.
func CleanTopicalName(raw string) string {
	cleaned := strings.TrimSpace(raw)
	for _, prefix := range []string{"| ", "> ", "|", ">"} {
		if strings.HasPrefix(cleaned, prefix) {
			cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, prefix))
			break
		}
	}
	return cleaned
}
