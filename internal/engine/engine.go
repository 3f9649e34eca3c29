package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/mrlokans/shelfsync/internal/apply"
	"github.com/mrlokans/shelfsync/internal/calibre"
	"github.com/mrlokans/shelfsync/internal/collections"
	"github.com/mrlokans/shelfsync/internal/history"
	"github.com/mrlokans/shelfsync/internal/kobo"
	"github.com/mrlokans/shelfsync/internal/matching"
	"github.com/mrlokans/shelfsync/internal/plan"
	"github.com/mrlokans/shelfsync/internal/report"
	"github.com/mrlokans/shelfsync/internal/resolve"
)

// LibraryFailure records a library that was skipped for this run.
type LibraryFailure struct {
	Library string `json:"library"`
	Error   string `json:"error"`
}

// Summary is the per-run status surface: counts, failures, and artifacts.
type Summary struct {
	Matched             int              `json:"matched"`
	Unmatched           int              `json:"unmatched"`
	Conflicts           int              `json:"conflicts"`
	LibrariesLoaded     int              `json:"libraries_loaded"`
	LibraryFailures     []LibraryFailure `json:"library_failures,omitempty"`
	ArtifactPath        string           `json:"artifact_path,omitempty"`
	UnmatchedReportPath string           `json:"unmatched_report_path,omitempty"`
	RunID               uint             `json:"run_id,omitempty"`
	Report              *apply.Report    `json:"-"`
}

// Engine wires one full sync pass: extract, classify, match, resolve, plan,
// report, and (outside dry-run) apply.
type Engine struct {
	reader     *kobo.Reader
	classifier *collections.Classifier
	matcher    *matching.Matcher
	libraries  []calibre.Library
	fields     calibre.FieldMap
	backupDir  string
	reports    *report.Writer
	history    *history.Store // Optional; nil disables run recording
}

func NewEngine(
	reader *kobo.Reader,
	classifier *collections.Classifier,
	libraries []calibre.Library,
	fields calibre.FieldMap,
	backupDir string,
	reports *report.Writer,
	historyStore *history.Store,
) *Engine {
	return &Engine{
		reader:     reader,
		classifier: classifier,
		matcher:    matching.NewMatcher(),
		libraries:  libraries,
		fields:     fields,
		backupDir:  backupDir,
		reports:    reports,
		history:    historyStore,
	}
}

// Run executes one sync pass. A failing source database aborts the run with
// nothing mutated; failing libraries are skipped and surfaced in the
// summary; dry-run never opens a destination for writing.
func (e *Engine) Run(ctx context.Context, mode apply.Mode) (*Summary, error) {
	books, err := e.reader.GetBooks()
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d books from device database", len(books))

	catalogs, failures := e.loadCatalogs()
	log.Printf("Loaded %d of %d libraries", len(catalogs), len(e.libraries))

	resolutions, collectionsByID, err := e.resolveAll(ctx, books, catalogs)
	if err != nil {
		return nil, err
	}

	p := plan.Build(resolutions, collectionsByID)
	log.Printf("Plan: %d actions, %d unmatched, %d conflicts",
		len(p.Actions), len(p.Unmatched), len(p.Conflicts))

	applyReport := apply.NewApplier(catalogs, e.backupDir).Apply(ctx, p, mode)

	summary := &Summary{
		Matched:         len(p.Actions),
		Unmatched:       len(p.Unmatched),
		Conflicts:       len(p.Conflicts),
		LibrariesLoaded: len(catalogs),
		LibraryFailures: failures,
		Report:          applyReport,
	}

	artifactPath, err := e.reports.SaveJSON(applyReport)
	if err != nil {
		log.Printf("WARNING: failed to save report artifact: %v", err)
	} else {
		summary.ArtifactPath = artifactPath
	}

	unmatchedPath, err := e.reports.SaveUnmatchedReport(p)
	if err != nil {
		log.Printf("WARNING: failed to save unmatched report: %v", err)
	} else {
		summary.UnmatchedReportPath = unmatchedPath
	}

	if e.history != nil {
		run, err := e.history.RecordRun(applyReport, summary.ArtifactPath)
		if err != nil {
			log.Printf("WARNING: failed to record run history: %v", err)
		} else {
			summary.RunID = run.ID
		}
	}

	return summary, nil
}

// loadCatalogs loads every configured library, skipping the ones that fail.
// A broken library never aborts the run.
func (e *Engine) loadCatalogs() ([]*calibre.Catalog, []LibraryFailure) {
	var catalogs []*calibre.Catalog
	var failures []LibraryFailure

	for _, library := range e.libraries {
		catalog, err := calibre.Load(library, e.fields)
		if err != nil {
			log.Printf("Skipping library %s: %v", library.Name, err)
			failures = append(failures, LibraryFailure{Library: library.Name, Error: err.Error()})
			continue
		}
		catalogs = append(catalogs, catalog)
	}

	return catalogs, failures
}

// resolveAll classifies, matches, and resolves every book. Cancellation is
// checked between books; matching is read-only so stopping is always safe.
func (e *Engine) resolveAll(ctx context.Context, books []kobo.Book, catalogs []*calibre.Catalog) ([]resolve.Resolution, map[string][]string, error) {
	resolver := resolve.NewResolver(catalogs)

	resolutions := make([]resolve.Resolution, 0, len(books))
	collectionsByID := make(map[string][]string, len(books))

	for _, book := range books {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("run cancelled: %w", err)
		}

		grouped := e.classifier.ClassifyAll(book.Collections)
		candidates := e.matcher.Find(book, catalogs)
		resolutions = append(resolutions, resolver.Resolve(book, grouped, candidates))
		collectionsByID[book.ContentID] = book.Collections
	}

	return resolutions, collectionsByID, nil
}
