package apply

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/shelfsync/internal/calibre"
	"github.com/mrlokans/shelfsync/internal/plan"
)

func createTestCatalog(t *testing.T, name string) *calibre.Catalog {
	t.Helper()

	libraryPath := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(libraryPath, 0o755))

	dbPath := filepath.Join(libraryPath, "metadata.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	schema := `
	CREATE TABLE books (id INTEGER PRIMARY KEY, title TEXT);
	CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT);
	CREATE TABLE books_authors_link (book INTEGER, author INTEGER);
	CREATE TABLE custom_columns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		label TEXT NOT NULL,
		name TEXT NOT NULL,
		datatype TEXT NOT NULL,
		is_multiple BOOL NOT NULL,
		editable BOOL NOT NULL,
		display TEXT NOT NULL,
		normalized BOOL NOT NULL
	);
	INSERT INTO books VALUES (1, 'Dune'), (2, 'Hyperion');
	INSERT INTO authors VALUES (1, 'Frank Herbert'), (2, 'Dan Simmons');
	INSERT INTO books_authors_link VALUES (1, 1), (2, 2);
	`
	_, err = db.Exec(schema)
	require.NoError(t, err)

	library := calibre.Library{Name: name, Path: libraryPath, MetadataDBPath: dbPath}
	catalog, err := calibre.Load(library, calibre.FieldMap{Ratings: "myratings", Genres: "my_genres"})
	require.NoError(t, err)

	return catalog
}

// fieldTables mirrors the tables EnsureCustomColumns produces for a fresh
// library: ratings first, genres second.
var fieldTables = map[string]string{
	calibre.FieldRatings: "custom_column_1",
	calibre.FieldGenres:  "custom_column_2",
}

func readValue(t *testing.T, catalog *calibre.Catalog, field string, bookID int64) string {
	t.Helper()

	db, err := sql.Open("sqlite3", catalog.Library.MetadataDBPath)
	require.NoError(t, err)
	defer db.Close()

	table := fieldTables[field]
	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return ""
	}
	require.NoError(t, err)

	var value string
	err = db.QueryRow("SELECT value FROM "+table+" WHERE book = ?", bookID).Scan(&value)
	if err == sql.ErrNoRows {
		return ""
	}
	require.NoError(t, err)
	return value
}

func ratingAction(sourceID string, library string, entryID int64, value string) plan.Action {
	return plan.Action{
		SourceID:     sourceID,
		Library:      library,
		EntryID:      entryID,
		Confidence:   "EXACT",
		FieldUpdates: map[string]string{calibre.FieldRatings: value},
		Previous:     map[string]string{calibre.FieldRatings: ""},
	}
}

func TestApplyDryRun(t *testing.T) {
	catalog := createTestCatalog(t, "Main")
	backupDir := filepath.Join(t.TempDir(), "backups")
	applier := NewApplier([]*calibre.Catalog{catalog}, backupDir)

	p := &plan.Plan{Actions: []plan.Action{ratingAction("book-1", "Main", 1, "Evergreen")}}
	report := applier.Apply(context.Background(), p, ModeDryRun)

	t.Run("nothing is written", func(t *testing.T) {
		assert.Equal(t, "", readValue(t, catalog, calibre.FieldRatings, 1))
	})

	t.Run("no custom columns are created", func(t *testing.T) {
		db, err := sql.Open("sqlite3", catalog.Library.MetadataDBPath)
		require.NoError(t, err)
		defer db.Close()

		var count int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM custom_columns`).Scan(&count))
		assert.Zero(t, count)
	})

	t.Run("no backup is taken", func(t *testing.T) {
		_, err := os.Stat(backupDir)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("report carries the plan as preview", func(t *testing.T) {
		assert.Equal(t, ModeDryRun, report.Mode)
		assert.Empty(t, report.Libraries)
		assert.Same(t, p, report.Plan)
	})
}

func TestApplyExecute(t *testing.T) {
	t.Run("writes values and backs up once per library", func(t *testing.T) {
		catalog := createTestCatalog(t, "Main")
		backupDir := filepath.Join(t.TempDir(), "backups")
		applier := NewApplier([]*calibre.Catalog{catalog}, backupDir)

		p := &plan.Plan{Actions: []plan.Action{
			ratingAction("book-1", "Main", 1, "Evergreen"),
			ratingAction("book-2", "Main", 2, "Great"),
		}}
		report := applier.Apply(context.Background(), p, ModeExecute)

		require.Len(t, report.Libraries, 1)
		result := report.Libraries[0]
		assert.Empty(t, result.Error)
		assert.Len(t, result.Applied, 2)

		assert.Equal(t, "Evergreen", readValue(t, catalog, calibre.FieldRatings, 1))
		assert.Equal(t, "Great", readValue(t, catalog, calibre.FieldRatings, 2))

		entries, err := os.ReadDir(backupDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		assert.Contains(t, result.BackupPath, "Main_metadata_")
	})

	t.Run("re-applying the same plan is idempotent", func(t *testing.T) {
		catalog := createTestCatalog(t, "Main")
		applier := NewApplier([]*calibre.Catalog{catalog}, filepath.Join(t.TempDir(), "backups"))

		p := &plan.Plan{Actions: []plan.Action{ratingAction("book-1", "Main", 1, "Evergreen")}}

		first := applier.Apply(context.Background(), p, ModeExecute)
		second := applier.Apply(context.Background(), p, ModeExecute)

		assert.Empty(t, first.Failed())
		assert.Empty(t, second.Failed())
		assert.Equal(t, "Evergreen", readValue(t, catalog, calibre.FieldRatings, 1))
	})

	t.Run("in-sync actions skip the backup", func(t *testing.T) {
		catalog := createTestCatalog(t, "Main")
		backupDir := filepath.Join(t.TempDir(), "backups")
		applier := NewApplier([]*calibre.Catalog{catalog}, backupDir)

		p := &plan.Plan{Actions: []plan.Action{{
			SourceID: "book-1", Library: "Main", EntryID: 1,
		}}}
		report := applier.Apply(context.Background(), p, ModeExecute)

		require.Len(t, report.Libraries, 1)
		assert.Empty(t, report.Libraries[0].BackupPath)
		_, err := os.Stat(backupDir)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("first failing write halts the library and retains earlier writes", func(t *testing.T) {
		catalog := createTestCatalog(t, "Main")
		applier := NewApplier([]*calibre.Catalog{catalog}, filepath.Join(t.TempDir(), "backups"))

		bad := plan.Action{
			SourceID:     "book-9",
			Library:      "Main",
			EntryID:      9,
			FieldUpdates: map[string]string{"no_such_field": "x"},
		}
		p := &plan.Plan{Actions: []plan.Action{
			ratingAction("book-1", "Main", 1, "Evergreen"),
			bad,
			ratingAction("book-2", "Main", 2, "Great"),
		}}
		report := applier.Apply(context.Background(), p, ModeExecute)

		require.Len(t, report.Libraries, 1)
		result := report.Libraries[0]
		assert.NotEmpty(t, result.Error)
		require.NotNil(t, result.FailedAction)
		assert.Equal(t, "book-9", result.FailedAction.SourceID)

		assert.Equal(t, "Evergreen", readValue(t, catalog, calibre.FieldRatings, 1))
		assert.Equal(t, "", readValue(t, catalog, calibre.FieldRatings, 2))
		assert.Equal(t, []string{"Main"}, report.Failed())
	})

	t.Run("one library failing does not stop another", func(t *testing.T) {
		main := createTestCatalog(t, "Main")
		archive := createTestCatalog(t, "Archive")
		applier := NewApplier([]*calibre.Catalog{main, archive}, filepath.Join(t.TempDir(), "backups"))

		p := &plan.Plan{Actions: []plan.Action{
			ratingAction("book-1", "Main", 1, "Evergreen"),
			{
				SourceID: "book-2", Library: "Archive", EntryID: 1,
				FieldUpdates: map[string]string{"no_such_field": "x"},
			},
		}}
		report := applier.Apply(context.Background(), p, ModeExecute)

		require.Len(t, report.Libraries, 2)
		assert.Equal(t, []string{"Archive"}, report.Failed())
		assert.Equal(t, "Evergreen", readValue(t, main, calibre.FieldRatings, 1))
	})

	t.Run("unknown library is reported without writes", func(t *testing.T) {
		applier := NewApplier(nil, filepath.Join(t.TempDir(), "backups"))

		p := &plan.Plan{Actions: []plan.Action{ratingAction("book-1", "Ghost", 1, "Evergreen")}}
		report := applier.Apply(context.Background(), p, ModeExecute)

		require.Len(t, report.Libraries, 1)
		assert.Equal(t, "library not loaded", report.Libraries[0].Error)
	})

	t.Run("cancelled context stops before writing", func(t *testing.T) {
		catalog := createTestCatalog(t, "Main")
		applier := NewApplier([]*calibre.Catalog{catalog}, filepath.Join(t.TempDir(), "backups"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := &plan.Plan{Actions: []plan.Action{ratingAction("book-1", "Main", 1, "Evergreen")}}
		applier.Apply(ctx, p, ModeExecute)

		assert.Equal(t, "", readValue(t, catalog, calibre.FieldRatings, 1))
	})
}
