package apply

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/mrlokans/shelfsync/internal/calibre"
	"github.com/mrlokans/shelfsync/internal/plan"
)

// Mode selects between previewing a plan and executing it.
type Mode string

const (
	ModeDryRun  Mode = "dry-run"
	ModeExecute Mode = "execute"
)

// AppliedAction records one executed (or previewed) write with the values
// it replaced, for a human-auditable diff.
type AppliedAction struct {
	Action   plan.Action       `json:"action"`
	Written  map[string]string `json:"written,omitempty"`
	Previous map[string]string `json:"previous,omitempty"`
}

// LibraryResult is the per-library outcome of an apply pass.
type LibraryResult struct {
	Library    string          `json:"library"`
	BackupPath string          `json:"backup_path,omitempty"`
	Applied    []AppliedAction `json:"applied"`
	// FailedAction and Error are set when a write failed. Writes before the
	// failure are retained; nothing after it was attempted.
	FailedAction *plan.Action `json:"failed_action,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// Report is the outcome of applying a plan.
type Report struct {
	Mode      Mode            `json:"mode"`
	Plan      *plan.Plan      `json:"plan"`
	Libraries []LibraryResult `json:"libraries,omitempty"`
	StartedAt time.Time       `json:"started_at"`
}

// Failed returns the names of libraries whose write sequence failed.
func (r *Report) Failed() []string {
	var failed []string
	for _, result := range r.Libraries {
		if result.Error != "" {
			failed = append(failed, result.Library)
		}
	}
	return failed
}

// Applier executes sync plans against the loaded libraries. Writes are
// serialized per library through one write handle; different libraries are
// applied concurrently.
type Applier struct {
	catalogs  map[string]*calibre.Catalog
	backupDir string
}

func NewApplier(catalogs []*calibre.Catalog, backupDir string) *Applier {
	byName := make(map[string]*calibre.Catalog, len(catalogs))
	for _, catalog := range catalogs {
		byName[catalog.Library.Name] = catalog
	}
	return &Applier{catalogs: byName, backupDir: backupDir}
}

// Apply runs the plan in the given mode. In dry-run mode no destination is
// opened for writing and the report is the plan annotated as a preview.
func (a *Applier) Apply(ctx context.Context, p *plan.Plan, mode Mode) *Report {
	report := &Report{Mode: mode, Plan: p, StartedAt: time.Now().UTC()}

	if mode == ModeDryRun {
		return report
	}

	byLibrary := make(map[string][]plan.Action)
	for _, action := range p.Actions {
		byLibrary[action.Library] = append(byLibrary[action.Library], action)
	}

	names := make([]string, 0, len(byLibrary))
	for name := range byLibrary {
		names = append(names, name)
	}
	sort.Strings(names)

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(library string, actions []plan.Action) {
			defer wg.Done()
			result := a.applyToLibrary(ctx, library, actions)
			mu.Lock()
			report.Libraries = append(report.Libraries, result)
			mu.Unlock()
		}(name, byLibrary[name])
	}
	wg.Wait()

	sort.Slice(report.Libraries, func(i, j int) bool {
		return report.Libraries[i].Library < report.Libraries[j].Library
	})

	return report
}

// applyToLibrary backs up one library, then applies its actions in order as
// a single unit: the first failing write halts the sequence, earlier writes
// are retained, and the failure is reported for this library only.
func (a *Applier) applyToLibrary(ctx context.Context, name string, actions []plan.Action) LibraryResult {
	result := LibraryResult{Library: name}

	catalog, ok := a.catalogs[name]
	if !ok {
		result.Error = "library not loaded"
		return result
	}

	pending := false
	for _, action := range actions {
		if len(action.FieldUpdates) > 0 {
			pending = true
			break
		}
	}
	if !pending {
		// Everything already in sync; no write, so no backup either
		return result
	}

	backupPath, err := backupLibrary(a.backupDir, catalog.Library, time.Now())
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.BackupPath = backupPath
	log.Printf("Backed up %s to %s", name, backupPath)

	// Loading never creates columns; they come into existence here, after
	// the backup and before the first write.
	tables, err := calibre.EnsureCustomColumns(catalog.Library, catalog.Fields)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	writer, err := calibre.OpenWriter(catalog.Library)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer writer.Close()

	for i := range actions {
		action := actions[i]
		if err := ctx.Err(); err != nil {
			result.FailedAction = &action
			result.Error = err.Error()
			return result
		}

		applied, err := a.applyAction(writer, tables, action)
		if err != nil {
			result.FailedAction = &action
			result.Error = err.Error()
			return result
		}
		if applied != nil {
			result.Applied = append(result.Applied, *applied)
		}
	}

	return result
}

// applyAction writes one action's field updates, capturing the values they
// replace. Actions with no updates are already in sync and skipped. Fields
// are written in sorted order so failures are reproducible.
func (a *Applier) applyAction(writer *calibre.Writer, tables map[string]string, action plan.Action) (*AppliedAction, error) {
	if len(action.FieldUpdates) == 0 {
		return nil, nil
	}

	fields := make([]string, 0, len(action.FieldUpdates))
	for field := range action.FieldUpdates {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	applied := &AppliedAction{
		Action:   action,
		Written:  make(map[string]string),
		Previous: make(map[string]string),
	}

	for _, field := range fields {
		table := tables[field]
		value := action.FieldUpdates[field]

		previous, err := writer.GetValue(table, action.EntryID)
		if err != nil {
			return nil, err
		}
		if previous == value {
			// Re-applied plan; the value is already there
			applied.Previous[field] = previous
			applied.Written[field] = value
			continue
		}

		if err := writer.SetValue(table, action.EntryID, value); err != nil {
			return nil, err
		}
		applied.Previous[field] = previous
		applied.Written[field] = value
	}

	return applied, nil
}
