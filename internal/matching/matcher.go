package matching

import (
	"github.com/mrlokans/shelfsync/internal/calibre"
	"github.com/mrlokans/shelfsync/internal/kobo"
)

// Confidence is the tier a candidate matched at.
type Confidence string

const (
	ConfidenceExact      Confidence = "EXACT"
	ConfidenceNormalized Confidence = "NORMALIZED"
)

// Candidate is a hypothesized correspondence between a source book and one
// destination entry. Derived per run, never persisted.
type Candidate struct {
	SourceID   string
	Library    string
	EntryID    int64
	Title      string
	Authors    string
	Confidence Confidence
	Basis      string
	Primary    bool
}

// tier is one predicate stage of the matcher, evaluated in fixed order.
type tier struct {
	confidence Confidence
	basis      string
	matches    func(source kobo.Book, entry calibre.Entry) bool
}

// Matcher finds destination candidates for source books across catalogs.
// No tier below NORMALIZED is attempted; fuzzy matching is out of scope.
type Matcher struct {
	tiers []tier
}

func NewMatcher() *Matcher {
	return &Matcher{
		tiers: []tier{
			{
				confidence: ConfidenceExact,
				basis:      "raw title and author equal",
				matches: func(source kobo.Book, entry calibre.Entry) bool {
					return source.Title == entry.Title && source.Author == entry.Authors
				},
			},
			{
				confidence: ConfidenceNormalized,
				basis:      "normalized title equal, author set contained",
				matches: func(source kobo.Book, entry calibre.Entry) bool {
					return NormalizeTitle(source.Title) == NormalizeTitle(entry.Title) &&
						AuthorsMatch(SplitAuthors(source.Author), SplitAuthors(entry.Authors))
				},
			},
		},
	}
}

// Find returns candidates for one source book across all catalogs, in
// catalog order. Every catalog is scanned even after the primary produces a
// candidate, so cross-library duplication is always visible; the primary's
// candidates simply sort first because catalogs arrive primary-first.
// Within a catalog the first non-empty tier wins.
func (m *Matcher) Find(source kobo.Book, catalogs []*calibre.Catalog) []Candidate {
	var candidates []Candidate

	for _, catalog := range catalogs {
		candidates = append(candidates, m.findInCatalog(source, catalog)...)
	}

	return candidates
}

func (m *Matcher) findInCatalog(source kobo.Book, catalog *calibre.Catalog) []Candidate {
	for _, t := range m.tiers {
		var found []Candidate
		for _, entry := range catalog.Entries {
			if t.matches(source, entry) {
				found = append(found, Candidate{
					SourceID:   source.ContentID,
					Library:    catalog.Library.Name,
					EntryID:    entry.ID,
					Title:      entry.Title,
					Authors:    entry.Authors,
					Confidence: t.confidence,
					Basis:      t.basis,
					Primary:    catalog.Library.IsPrimary,
				})
			}
		}
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

// NormalizedKey is the key a book was searched under, recorded with
// unmatched results so the review report shows what was compared.
func NormalizedKey(source kobo.Book) string {
	return NormalizeTitle(source.Title) + " / " + NormalizeAuthorName(source.Author)
}
