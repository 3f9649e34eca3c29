package kobo

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrSourceUnavailable indicates the device database cannot be opened or is
// missing required tables. The run aborts; nothing has been mutated yet.
var ErrSourceUnavailable = errors.New("source database unavailable")

// requiredTables must all be present before extraction starts. A partial
// schema is treated as unavailable rather than guessed at.
var requiredTables = []string{"content", "Shelf", "ShelfContent"}

// Reader extracts books and collection membership from a KoboReader.sqlite
// database. All access is read-only.
type Reader struct {
	dbPath string
}

// NewReader creates a reader for the given device database path.
func NewReader(dbPath string) *Reader {
	return &Reader{dbPath: dbPath}
}

func (r *Reader) open() (*sql.DB, error) {
	if _, err := os.Stat(r.dbPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, r.dbPath, err)
	}

	db, err := sql.Open("sqlite3", "file:"+r.dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrSourceUnavailable, r.dbPath, err)
	}

	if err := r.verifySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (r *Reader) verifySchema(db *sql.DB) error {
	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, table,
		).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: missing table %s", ErrSourceUnavailable, table)
		}
		if err != nil {
			return fmt.Errorf("%w: schema check failed: %v", ErrSourceUnavailable, err)
		}
	}
	return nil
}

// GetShelves retrieves all visible, non-deleted collection definitions.
func (r *Reader) GetShelves() ([]Shelf, error) {
	db, err := r.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT Name, InternalName, Type
		FROM Shelf
		WHERE _IsDeleted = 'false' AND _IsVisible = 'true'
		ORDER BY Name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shelves: %w", err)
	}
	defer rows.Close()

	var shelves []Shelf
	for rows.Next() {
		var shelf Shelf
		var internalName, shelfType sql.NullString
		if err := rows.Scan(&shelf.Name, &internalName, &shelfType); err != nil {
			return nil, fmt.Errorf("failed to scan shelf row: %w", err)
		}
		shelf.InternalName = internalName.String
		shelf.Type = shelfType.String
		shelves = append(shelves, shelf)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shelf rows: %w", err)
	}

	return shelves, nil
}

// GetBooks retrieves all books with their shelf membership. ContentType 6 is
// the device's marker for book records.
func (r *Reader) GetBooks() ([]Book, error) {
	db, err := r.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT ContentID, Title, Attribution, ReadStatus, ___PercentRead, DateLastRead
		FROM content
		WHERE ContentType = 6
		ORDER BY Title
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}

	var books []Book
	for rows.Next() {
		var book Book
		var title, author, lastRead sql.NullString
		var readStatus, percentRead sql.NullInt64

		if err := rows.Scan(&book.ContentID, &title, &author, &readStatus, &percentRead, &lastRead); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan book row: %w", err)
		}

		book.Title = title.String
		book.Author = author.String
		book.ReadStatus = ReadStatus(readStatus.Int64)
		book.PercentRead = int(percentRead.Int64)
		if lastRead.Valid {
			if parsed, err := parseDeviceTime(lastRead.String); err == nil {
				book.DateLastRead = &parsed
			}
		}

		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating book rows: %w", err)
	}
	rows.Close()

	memberships, err := r.getShelfMemberships(db)
	if err != nil {
		return nil, err
	}

	for i := range books {
		shelves := memberships[books[i].ContentID]
		sort.Strings(shelves)
		books[i].Collections = shelves
	}

	return books, nil
}

// getShelfMemberships maps ContentID to the shelf names it belongs to,
// excluding deleted membership rows and deleted shelves.
func (r *Reader) getShelfMemberships(db *sql.DB) (map[string][]string, error) {
	rows, err := db.Query(`
		SELECT sc.ContentId, s.Name
		FROM ShelfContent sc
		JOIN Shelf s ON sc.ShelfName = s.Name
		WHERE sc._IsDeleted = 'false' AND s._IsDeleted = 'false'
		ORDER BY sc.ContentId, s.Name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shelf membership: %w", err)
	}
	defer rows.Close()

	memberships := make(map[string][]string)
	for rows.Next() {
		var contentID, shelfName string
		if err := rows.Scan(&contentID, &shelfName); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		memberships[contentID] = append(memberships[contentID], shelfName)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating membership rows: %w", err)
	}

	return memberships, nil
}

// GetReadingEvents retrieves the device's reading-event log when present.
// The sync path does not consume this; it is an extension point.
func (r *Reader) GetReadingEvents() ([]ReadingEvent, error) {
	db, err := r.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name = 'Event'`).Scan(&name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check for event table: %w", err)
	}

	rows, err := db.Query(`SELECT ContentID, EventType, LastOccurrence FROM Event ORDER BY LastOccurrence`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []ReadingEvent
	for rows.Next() {
		var event ReadingEvent
		var occurred sql.NullString
		if err := rows.Scan(&event.ContentID, &event.EventType, &occurred); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if occurred.Valid {
			if parsed, err := parseDeviceTime(occurred.String); err == nil {
				event.OccurredAt = &parsed
			}
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}

// parseDeviceTime handles the timestamp formats the device writes.
func parseDeviceTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	var lastErr error
	for _, format := range formats {
		parsed, err := time.Parse(format, s)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
