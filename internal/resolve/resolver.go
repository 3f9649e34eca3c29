package resolve

import (
	"fmt"
	"strings"

	"github.com/mrlokans/shelfsync/internal/calibre"
	"github.com/mrlokans/shelfsync/internal/collections"
	"github.com/mrlokans/shelfsync/internal/kobo"
	"github.com/mrlokans/shelfsync/internal/matching"
)

// Outcome is the terminal state of resolving one source book.
type Outcome string

const (
	OutcomeUnmatched   Outcome = "unmatched"
	OutcomeResolved    Outcome = "resolved"
	OutcomeNeedsReview Outcome = "needs_review"
)

// ConflictKind says why a book needs manual resolution.
type ConflictKind string

const (
	// KindMultiLibrary: candidates exist in more than one library. Never
	// auto-picked, even when one candidate sits in the primary library.
	KindMultiLibrary ConflictKind = "multi_library"
	// KindDuplicateEntries: more than one entry of the same library matched.
	KindDuplicateEntries ConflictKind = "duplicate_entries"
	// KindValueMismatch: the proposed value disagrees with a non-empty
	// existing destination value.
	KindValueMismatch ConflictKind = "value_mismatch"
	// KindAmbiguousRating: the book carries multiple rating collections and
	// no configured precedence can pick one.
	KindAmbiguousRating ConflictKind = "ambiguous_rating"
)

// Mismatch carries both sides of a value conflict for one field.
type Mismatch struct {
	Field    string `json:"field"`
	Existing string `json:"existing"`
	Proposed string `json:"proposed"`
}

// Resolution is the terminal state for one source book. Exactly one is
// produced per book; no book is ever silently omitted.
type Resolution struct {
	SourceID string
	Title    string
	Author   string

	Outcome      Outcome
	ConflictKind ConflictKind

	// Candidate is set for OutcomeResolved.
	Candidate *matching.Candidate
	// Candidates is set for multi-candidate conflicts, in match order.
	Candidates []matching.Candidate

	// FieldUpdates holds the values to write, keyed by logical field. Empty
	// for a resolved book that is already in sync.
	FieldUpdates map[string]string
	// Previous holds the destination values at plan time for updated fields.
	Previous map[string]string

	Mismatches      []Mismatch
	UnmatchedReason string
}

// Resolver decides the terminal state for each source book given its match
// candidates and classified collections.
type Resolver struct {
	catalogs map[string]*calibre.Catalog
}

// NewResolver creates a resolver over the loaded catalogs, keyed by library
// name, so existing destination values can be compared against proposals.
func NewResolver(catalogs []*calibre.Catalog) *Resolver {
	byName := make(map[string]*calibre.Catalog, len(catalogs))
	for _, catalog := range catalogs {
		byName[catalog.Library.Name] = catalog
	}
	return &Resolver{catalogs: byName}
}

// Resolve runs the per-book state machine.
func (r *Resolver) Resolve(source kobo.Book, grouped collections.Grouped, candidates []matching.Candidate) Resolution {
	resolution := Resolution{
		SourceID: source.ContentID,
		Title:    source.Title,
		Author:   source.Author,
	}

	if len(candidates) == 0 {
		resolution.Outcome = OutcomeUnmatched
		resolution.UnmatchedReason = fmt.Sprintf("no candidates (searched key: %s)", matching.NormalizedKey(source))
		return resolution
	}

	if len(candidates) > 1 {
		resolution.Outcome = OutcomeNeedsReview
		resolution.ConflictKind = conflictKindFor(candidates)
		resolution.Candidates = candidates
		return resolution
	}

	candidate := candidates[0]
	resolution.Candidate = &candidate

	if grouped.AmbiguousRating {
		resolution.Outcome = OutcomeNeedsReview
		resolution.ConflictKind = KindAmbiguousRating
		return resolution
	}

	proposed := ProposedValues(grouped)
	existing := r.existingValues(candidate)

	updates := make(map[string]string)
	previous := make(map[string]string)
	var mismatches []Mismatch

	for field, value := range proposed {
		current := existing[field]
		switch {
		case current == value:
			// Already in sync, nothing to write
		case current == "":
			// Empty destination is always safe to fill
			updates[field] = value
			previous[field] = current
		default:
			mismatches = append(mismatches, Mismatch{Field: field, Existing: current, Proposed: value})
		}
	}

	if len(mismatches) > 0 {
		resolution.Outcome = OutcomeNeedsReview
		resolution.ConflictKind = KindValueMismatch
		resolution.Mismatches = mismatches
		return resolution
	}

	resolution.Outcome = OutcomeResolved
	resolution.FieldUpdates = updates
	resolution.Previous = previous
	return resolution
}

// ProposedValues computes the destination field values for a book's
// classified collections. Books with no rating or no topical tags simply
// propose nothing for that field.
func ProposedValues(grouped collections.Grouped) map[string]string {
	proposed := make(map[string]string)
	if len(grouped.Ratings) > 0 {
		proposed[calibre.FieldRatings] = grouped.Ratings[0]
	}
	if len(grouped.Topical) > 0 {
		proposed[calibre.FieldGenres] = strings.Join(grouped.Topical, ",")
	}
	return proposed
}

// conflictKindFor distinguishes cross-library duplication from multiple
// entries inside a single library.
func conflictKindFor(candidates []matching.Candidate) ConflictKind {
	first := candidates[0].Library
	for _, candidate := range candidates[1:] {
		if candidate.Library != first {
			return KindMultiLibrary
		}
	}
	return KindDuplicateEntries
}

func (r *Resolver) existingValues(candidate matching.Candidate) map[string]string {
	catalog, ok := r.catalogs[candidate.Library]
	if !ok {
		return nil
	}
	for _, entry := range catalog.Entries {
		if entry.ID == candidate.EntryID {
			return entry.Existing
		}
	}
	return nil
}
