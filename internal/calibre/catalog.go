package calibre

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Logical field names used across the sync pipeline.
const (
	FieldRatings = "ratings"
	FieldGenres  = "genres"
)

var (
	// ErrLibraryUnreadable indicates the metadata store is missing, corrupt,
	// or locked by another process. Per-library, non-fatal to the run.
	ErrLibraryUnreadable = errors.New("library unreadable")

	// ErrLibrarySchemaIncompatible indicates the required custom columns do
	// not exist and could not be created. Per-library, non-fatal to the run.
	ErrLibrarySchemaIncompatible = errors.New("library schema incompatible")
)

// Entry is one destination book record, snapshotted at load time.
type Entry struct {
	ID      int64
	Title   string
	Authors string // Raw author string, " & " joined
	// Existing custom values keyed by logical field name
	Existing map[string]string
}

// Catalog is a loaded, read-only snapshot of one library: its entries plus
// the resolved custom-column value tables the applier writes to.
type Catalog struct {
	Library Library
	Fields  FieldMap
	Entries []Entry
	// ValueTables maps logical field name to the custom_column_N table.
	// Empty string when the column does not exist yet; the execute path
	// creates it via EnsureCustomColumns before the first write.
	ValueTables map[string]string
}

// Load opens the library's metadata store read-only and snapshots every entry
// with its current custom values. Missing custom columns read as empty
// existing values; loading never mutates the library, so dry-run stays
// side-effect-free.
func Load(library Library, fields FieldMap) (*Catalog, error) {
	db, err := sql.Open("sqlite3", "file:"+library.MetadataDBPath+"?mode=ro&_busy_timeout=0")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryUnreadable, library.Name, err)
	}
	defer db.Close()

	if err := verifyBooksTable(db); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryUnreadable, library.Name, err)
	}

	valueTables := make(map[string]string)
	for _, logical := range []string{FieldRatings, FieldGenres} {
		label, err := fields.label(logical)
		if err != nil {
			return nil, err
		}
		table, err := lookupCustomColumn(db, library.Name, label)
		if err != nil {
			return nil, err
		}
		valueTables[logical] = table
	}

	entries, err := loadEntries(db, valueTables)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryUnreadable, library.Name, err)
	}

	return &Catalog{
		Library:     library,
		Fields:      fields,
		Entries:     entries,
		ValueTables: valueTables,
	}, nil
}

func verifyBooksTable(db *sql.DB) error {
	var name string
	err := db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name = 'books'`,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return errors.New("missing books table")
	}
	return err
}

// lookupCustomColumn resolves the value table for the labeled custom column,
// or "" when the column does not exist.
func lookupCustomColumn(db *sql.DB, libraryName, label string) (string, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM custom_columns WHERE label = ?`, label).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: checking column %s: %v", ErrLibraryUnreadable, libraryName, label, err)
	}
	return fmt.Sprintf("custom_column_%d", id), nil
}

// EnsureCustomColumns creates the required custom columns when absent and
// returns the value table per logical field. Execute-path only: a dry-run
// never reaches this.
func EnsureCustomColumns(library Library, fields FieldMap) (map[string]string, error) {
	db, err := sql.Open("sqlite3", library.MetadataDBPath+"?_busy_timeout=0")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryUnreadable, library.Name, err)
	}
	defer db.Close()

	valueTables := make(map[string]string)
	for _, logical := range []string{FieldRatings, FieldGenres} {
		label, err := fields.label(logical)
		if err != nil {
			return nil, err
		}
		table, err := ensureCustomColumn(db, library.Name, label)
		if err != nil {
			return nil, err
		}
		valueTables[logical] = table
	}
	return valueTables, nil
}

// ensureCustomColumn returns the value table for the labeled custom column,
// creating the column when absent. Existing columns are never altered.
func ensureCustomColumn(db *sql.DB, libraryName, label string) (string, error) {
	table, err := lookupCustomColumn(db, libraryName, label)
	if err != nil {
		return "", err
	}
	if table != "" {
		return table, nil
	}

	result, err := db.Exec(`
		INSERT INTO custom_columns (label, name, datatype, is_multiple, editable, display, normalized)
		VALUES (?, ?, 'text', 1, 1, '{}', 0)
	`, label, columnDisplayName(label))
	if err != nil {
		return "", fmt.Errorf("%w: %s: creating column %s: %v", ErrLibrarySchemaIncompatible, libraryName, label, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("%w: %s: creating column %s: %v", ErrLibrarySchemaIncompatible, libraryName, label, err)
	}

	table = fmt.Sprintf("custom_column_%d", id)
	_, err = db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			book INTEGER NOT NULL UNIQUE,
			value TEXT NOT NULL
		)
	`, table))
	if err != nil {
		return "", fmt.Errorf("%w: %s: creating value table for %s: %v", ErrLibrarySchemaIncompatible, libraryName, label, err)
	}

	log.Printf("Created custom column %q in library %s", label, libraryName)
	return table, nil
}

// columnDisplayName turns a column label like "my_genres" into "My Genres".
func columnDisplayName(label string) string {
	words := strings.Split(strings.ReplaceAll(label, "_", " "), " ")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// loadEntries snapshots every book with its author string and current custom
// values. Author names are joined the way Calibre's own tooling renders them.
func loadEntries(db *sql.DB, valueTables map[string]string) ([]Entry, error) {
	rows, err := db.Query(`
		SELECT b.id, b.title, GROUP_CONCAT(a.name, ' & ')
		FROM books b
		LEFT JOIN books_authors_link ba ON b.id = ba.book
		LEFT JOIN authors a ON ba.author = a.id
		GROUP BY b.id, b.title
		ORDER BY b.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	index := make(map[int64]int)
	for rows.Next() {
		var entry Entry
		var title, authors sql.NullString
		if err := rows.Scan(&entry.ID, &title, &authors); err != nil {
			return nil, fmt.Errorf("failed to scan book row: %w", err)
		}
		entry.Title = title.String
		entry.Authors = authors.String
		entry.Existing = make(map[string]string)
		index[entry.ID] = len(entries)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating book rows: %w", err)
	}

	for logical, table := range valueTables {
		if table == "" {
			continue
		}
		values, err := loadCustomValues(db, table)
		if err != nil {
			return nil, err
		}
		for bookID, value := range values {
			if i, ok := index[bookID]; ok {
				entries[i].Existing[logical] = value
			}
		}
	}

	return entries, nil
}

func loadCustomValues(db *sql.DB, table string) (map[int64]string, error) {
	rows, err := db.Query(fmt.Sprintf(`SELECT book, value FROM %s`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	values := make(map[int64]string)
	for rows.Next() {
		var bookID int64
		var value sql.NullString
		if err := rows.Scan(&bookID, &value); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		values[bookID] = value.String
	}
	return values, rows.Err()
}
