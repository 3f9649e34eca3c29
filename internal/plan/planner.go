package plan

import (
	"sort"
	"time"

	"github.com/mrlokans/shelfsync/internal/matching"
	"github.com/mrlokans/shelfsync/internal/resolve"
)

// Action is the unit of apply: one target entry in one library with the
// field values to write and the values they replace.
type Action struct {
	SourceID    string `json:"source_id"`
	SourceTitle string `json:"source_title"`
	Library     string `json:"library"`
	EntryID     int64  `json:"entry_id"`
	Confidence  string `json:"confidence"`
	// FieldUpdates is empty when the destination is already in sync.
	FieldUpdates map[string]string `json:"field_updates,omitempty"`
	Previous     map[string]string `json:"previous_values,omitempty"`
}

// Unmatched records a source book no destination entry was found for.
type Unmatched struct {
	SourceID       string   `json:"source_id"`
	Title          string   `json:"title"`
	Author         string   `json:"author"`
	Reason         string   `json:"reason"`
	HasCollections bool     `json:"has_collections"`
	Collections    []string `json:"collections,omitempty"`
}

// Conflict records a book that needs manual resolution and is never applied.
type Conflict struct {
	SourceID   string               `json:"source_id"`
	Title      string               `json:"title"`
	Author     string               `json:"author"`
	Kind       resolve.ConflictKind `json:"kind"`
	Candidates []matching.Candidate `json:"candidates,omitempty"`
	Mismatches []resolve.Mismatch   `json:"mismatches,omitempty"`
}

// Plan is the complete reviewable outcome of one matching pass. It is the
// dry-run artifact: producible without touching any destination. Every
// source book appears in exactly one of Actions, Unmatched, or Conflicts.
type Plan struct {
	CreatedAt time.Time   `json:"created_at"`
	Actions   []Action    `json:"actions"`
	Unmatched []Unmatched `json:"unmatched"`
	Conflicts []Conflict  `json:"conflicts"`
}

// Libraries returns the distinct library names touched by the plan's
// actions, sorted.
func (p *Plan) Libraries() []string {
	seen := make(map[string]bool)
	for _, action := range p.Actions {
		seen[action.Library] = true
	}
	libraries := make([]string, 0, len(seen))
	for name := range seen {
		libraries = append(libraries, name)
	}
	sort.Strings(libraries)
	return libraries
}

// Build aggregates per-book resolutions into one deterministic plan. Each
// bucket is stably sorted by source id so repeated runs over unchanged data
// produce byte-identical dry-run artifacts.
func Build(resolutions []resolve.Resolution, collectionsByID map[string][]string) *Plan {
	p := &Plan{CreatedAt: time.Now().UTC()}

	for _, resolution := range resolutions {
		switch resolution.Outcome {
		case resolve.OutcomeResolved:
			p.Actions = append(p.Actions, Action{
				SourceID:     resolution.SourceID,
				SourceTitle:  resolution.Title,
				Library:      resolution.Candidate.Library,
				EntryID:      resolution.Candidate.EntryID,
				Confidence:   string(resolution.Candidate.Confidence),
				FieldUpdates: resolution.FieldUpdates,
				Previous:     resolution.Previous,
			})
		case resolve.OutcomeUnmatched:
			collections := collectionsByID[resolution.SourceID]
			p.Unmatched = append(p.Unmatched, Unmatched{
				SourceID:       resolution.SourceID,
				Title:          resolution.Title,
				Author:         resolution.Author,
				Reason:         resolution.UnmatchedReason,
				HasCollections: len(collections) > 0,
				Collections:    collections,
			})
		case resolve.OutcomeNeedsReview:
			p.Conflicts = append(p.Conflicts, Conflict{
				SourceID:   resolution.SourceID,
				Title:      resolution.Title,
				Author:     resolution.Author,
				Kind:       resolution.ConflictKind,
				Candidates: resolution.Candidates,
				Mismatches: resolution.Mismatches,
			})
		}
	}

	sort.SliceStable(p.Actions, func(i, j int) bool { return p.Actions[i].SourceID < p.Actions[j].SourceID })
	sort.SliceStable(p.Unmatched, func(i, j int) bool { return p.Unmatched[i].SourceID < p.Unmatched[j].SourceID })
	sort.SliceStable(p.Conflicts, func(i, j int) bool { return p.Conflicts[i].SourceID < p.Conflicts[j].SourceID })

	return p
}
