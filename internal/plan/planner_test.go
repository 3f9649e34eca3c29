package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/matching"
	"github.com/mrlokans/shelfsync/internal/resolve"
)

func resolved(sourceID, library string, entryID int64, updates map[string]string) resolve.Resolution {
	return resolve.Resolution{
		SourceID: sourceID,
		Outcome:  resolve.OutcomeResolved,
		Candidate: &matching.Candidate{
			Library:    library,
			EntryID:    entryID,
			Confidence: matching.ConfidenceExact,
		},
		FieldUpdates: updates,
	}
}

func TestBuild(t *testing.T) {
	t.Run("every resolution lands in exactly one bucket", func(t *testing.T) {
		resolutions := []resolve.Resolution{
			resolved("book-1", "Main", 1, map[string]string{"ratings": "Evergreen"}),
			{SourceID: "book-2", Outcome: resolve.OutcomeUnmatched, UnmatchedReason: "no candidates"},
			{SourceID: "book-3", Outcome: resolve.OutcomeNeedsReview, ConflictKind: resolve.KindMultiLibrary},
		}

		p := Build(resolutions, nil)

		assert.Len(t, p.Actions, 1)
		assert.Len(t, p.Unmatched, 1)
		assert.Len(t, p.Conflicts, 1)
		assert.False(t, p.CreatedAt.IsZero())
	})

	t.Run("buckets are sorted by source id", func(t *testing.T) {
		resolutions := []resolve.Resolution{
			resolved("book-9", "Main", 9, nil),
			resolved("book-1", "Main", 1, nil),
			{SourceID: "book-5", Outcome: resolve.OutcomeUnmatched},
			{SourceID: "book-2", Outcome: resolve.OutcomeUnmatched},
		}

		p := Build(resolutions, nil)

		require.Len(t, p.Actions, 2)
		assert.Equal(t, "book-1", p.Actions[0].SourceID)
		assert.Equal(t, "book-9", p.Actions[1].SourceID)
		require.Len(t, p.Unmatched, 2)
		assert.Equal(t, "book-2", p.Unmatched[0].SourceID)
	})

	t.Run("unmatched books carry their collections", func(t *testing.T) {
		resolutions := []resolve.Resolution{
			{SourceID: "book-1", Outcome: resolve.OutcomeUnmatched},
			{SourceID: "book-2", Outcome: resolve.OutcomeUnmatched},
		}
		byID := map[string][]string{"book-1": {"| Favorite", "Science Fiction"}}

		p := Build(resolutions, byID)

		require.Len(t, p.Unmatched, 2)
		assert.True(t, p.Unmatched[0].HasCollections)
		assert.Equal(t, []string{"| Favorite", "Science Fiction"}, p.Unmatched[0].Collections)
		assert.False(t, p.Unmatched[1].HasCollections)
	})

	t.Run("in-sync resolution stays an action with no updates", func(t *testing.T) {
		p := Build([]resolve.Resolution{resolved("book-1", "Main", 1, nil)}, nil)

		require.Len(t, p.Actions, 1)
		assert.Empty(t, p.Actions[0].FieldUpdates)
	})
}

func TestLibraries(t *testing.T) {
	p := &Plan{Actions: []Action{
		{SourceID: "a", Library: "Main"},
		{SourceID: "b", Library: "Archive"},
		{SourceID: "c", Library: "Main"},
	}}

	assert.Equal(t, []string{"Archive", "Main"}, p.Libraries())
}
