package calibre

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Writer is the single write handle for one library during apply. Writes
// within a library are serialized through it; different libraries get their
// own writers.
type Writer struct {
	library Library
	db      *sql.DB
}

// OpenWriter opens the library's metadata store for writing. A store locked
// by another process surfaces as ErrLibraryUnreadable; it is not retried.
func OpenWriter(library Library) (*Writer, error) {
	db, err := sql.Open("sqlite3", library.MetadataDBPath+"?_busy_timeout=0")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryUnreadable, library.Name, err)
	}

	// Probe the lock up front so a held lock fails the library, not the
	// middle of a write sequence.
	if _, err := db.Exec(`BEGIN IMMEDIATE; ROLLBACK;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryUnreadable, library.Name, err)
	}

	return &Writer{library: library, db: db}, nil
}

// Close releases the write handle.
func (w *Writer) Close() error {
	return w.db.Close()
}

// GetValue reads the current value for a book from a custom column table.
// A missing row reads as the empty string.
func (w *Writer) GetValue(table string, bookID int64) (string, error) {
	var value sql.NullString
	err := w.db.QueryRow(
		fmt.Sprintf(`SELECT value FROM %s WHERE book = ?`, table), bookID,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s for book %d: %w", table, bookID, err)
	}
	return value.String, nil
}

// SetValue upserts a book's value in a custom column table. Writing the same
// value twice is a no-op at the data level, which keeps re-applies idempotent.
func (w *Writer) SetValue(table string, bookID int64, value string) error {
	_, err := w.db.Exec(fmt.Sprintf(`
		INSERT INTO %s (book, value) VALUES (?, ?)
		ON CONFLICT (book) DO UPDATE SET value = excluded.value
	`, table), bookID, value)
	if err != nil {
		return fmt.Errorf("failed to write %s for book %d: %w", table, bookID, err)
	}
	return nil
}
