package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/calibre"
	"github.com/mrlokans/shelfsync/internal/collections"
	"github.com/mrlokans/shelfsync/internal/kobo"
	"github.com/mrlokans/shelfsync/internal/matching"
)

func testCatalogs() []*calibre.Catalog {
	return []*calibre.Catalog{
		{
			Library: calibre.Library{Name: "Main", IsPrimary: true},
			Entries: []calibre.Entry{
				{ID: 1, Title: "Dune", Authors: "Frank Herbert", Existing: map[string]string{}},
				{ID: 2, Title: "Hyperion", Authors: "Dan Simmons", Existing: map[string]string{
					calibre.FieldRatings: "Great",
				}},
			},
		},
		{
			Library: calibre.Library{Name: "Archive"},
			Entries: []calibre.Entry{
				{ID: 7, Title: "Dune", Authors: "Frank Herbert", Existing: map[string]string{}},
			},
		},
	}
}

func candidate(library string, entryID int64) matching.Candidate {
	return matching.Candidate{
		SourceID:   "book-1",
		Library:    library,
		EntryID:    entryID,
		Confidence: matching.ConfidenceExact,
	}
}

func TestResolve(t *testing.T) {
	resolver := NewResolver(testCatalogs())
	source := kobo.Book{ContentID: "book-1", Title: "Dune", Author: "Frank Herbert"}

	t.Run("no candidates is unmatched with searched key", func(t *testing.T) {
		resolution := resolver.Resolve(source, collections.Grouped{}, nil)

		assert.Equal(t, OutcomeUnmatched, resolution.Outcome)
		assert.Contains(t, resolution.UnmatchedReason, "dune / frank herbert")
	})

	t.Run("candidates in two libraries need review", func(t *testing.T) {
		candidates := []matching.Candidate{candidate("Main", 1), candidate("Archive", 7)}

		resolution := resolver.Resolve(source, collections.Grouped{Ratings: []string{"Evergreen"}}, candidates)

		assert.Equal(t, OutcomeNeedsReview, resolution.Outcome)
		assert.Equal(t, KindMultiLibrary, resolution.ConflictKind)
		assert.Len(t, resolution.Candidates, 2)
		assert.Empty(t, resolution.FieldUpdates)
	})

	t.Run("duplicate entries inside one library are their own kind", func(t *testing.T) {
		candidates := []matching.Candidate{candidate("Main", 1), candidate("Main", 2)}

		resolution := resolver.Resolve(source, collections.Grouped{Ratings: []string{"Evergreen"}}, candidates)

		assert.Equal(t, OutcomeNeedsReview, resolution.Outcome)
		assert.Equal(t, KindDuplicateEntries, resolution.ConflictKind)
		assert.Len(t, resolution.Candidates, 2)
		assert.Empty(t, resolution.FieldUpdates)
	})

	t.Run("primary candidate does not shortcut a multi-library conflict", func(t *testing.T) {
		candidates := []matching.Candidate{candidate("Main", 1), candidate("Archive", 7)}
		candidates[0].Primary = true

		resolution := resolver.Resolve(source, collections.Grouped{Ratings: []string{"Evergreen"}}, candidates)

		assert.Equal(t, KindMultiLibrary, resolution.ConflictKind)
	})

	t.Run("ambiguous rating needs review", func(t *testing.T) {
		grouped := collections.Grouped{AmbiguousRating: true, Topical: []string{"Science Fiction"}}

		resolution := resolver.Resolve(source, grouped, []matching.Candidate{candidate("Main", 1)})

		assert.Equal(t, OutcomeNeedsReview, resolution.Outcome)
		assert.Equal(t, KindAmbiguousRating, resolution.ConflictKind)
	})

	t.Run("empty destination fields are filled", func(t *testing.T) {
		grouped := collections.Grouped{
			Ratings: []string{"Evergreen"},
			Topical: []string{"Classics", "Science Fiction"},
		}

		resolution := resolver.Resolve(source, grouped, []matching.Candidate{candidate("Main", 1)})

		require.Equal(t, OutcomeResolved, resolution.Outcome)
		assert.Equal(t, "Evergreen", resolution.FieldUpdates[calibre.FieldRatings])
		assert.Equal(t, "Classics,Science Fiction", resolution.FieldUpdates[calibre.FieldGenres])
		assert.Equal(t, "", resolution.Previous[calibre.FieldRatings])
	})

	t.Run("equal existing value is a no-op", func(t *testing.T) {
		hyperion := kobo.Book{ContentID: "book-2", Title: "Hyperion", Author: "Dan Simmons"}
		grouped := collections.Grouped{Ratings: []string{"Great"}}

		resolution := resolver.Resolve(hyperion, grouped, []matching.Candidate{{
			SourceID: "book-2", Library: "Main", EntryID: 2,
		}})

		require.Equal(t, OutcomeResolved, resolution.Outcome)
		assert.Empty(t, resolution.FieldUpdates)
	})

	t.Run("differing existing value is a mismatch conflict", func(t *testing.T) {
		hyperion := kobo.Book{ContentID: "book-2", Title: "Hyperion", Author: "Dan Simmons"}
		grouped := collections.Grouped{Ratings: []string{"Evergreen"}}

		resolution := resolver.Resolve(hyperion, grouped, []matching.Candidate{{
			SourceID: "book-2", Library: "Main", EntryID: 2,
		}})

		require.Equal(t, OutcomeNeedsReview, resolution.Outcome)
		assert.Equal(t, KindValueMismatch, resolution.ConflictKind)
		require.Len(t, resolution.Mismatches, 1)
		assert.Equal(t, calibre.FieldRatings, resolution.Mismatches[0].Field)
		assert.Equal(t, "Great", resolution.Mismatches[0].Existing)
		assert.Equal(t, "Evergreen", resolution.Mismatches[0].Proposed)
	})

	t.Run("no collections resolves with nothing to write", func(t *testing.T) {
		resolution := resolver.Resolve(source, collections.Grouped{}, []matching.Candidate{candidate("Main", 1)})

		require.Equal(t, OutcomeResolved, resolution.Outcome)
		assert.Empty(t, resolution.FieldUpdates)
	})
}

func TestProposedValues(t *testing.T) {
	t.Run("rating and genres", func(t *testing.T) {
		proposed := ProposedValues(collections.Grouped{
			Ratings: []string{"Evergreen", "Great"},
			Topical: []string{"Classics", "Science Fiction"},
		})

		assert.Equal(t, "Evergreen", proposed[calibre.FieldRatings])
		assert.Equal(t, "Classics,Science Fiction", proposed[calibre.FieldGenres])
	})

	t.Run("absent fields propose nothing", func(t *testing.T) {
		proposed := ProposedValues(collections.Grouped{})
		assert.Empty(t, proposed)
	})
}
