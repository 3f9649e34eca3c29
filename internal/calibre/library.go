package calibre

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Library describes one destination Calibre library directory.
type Library struct {
	Name           string
	Path           string
	MetadataDBPath string
	IsPrimary      bool
}

// NewLibrary builds a descriptor for an explicitly configured library path.
func NewLibrary(path string) Library {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return Library{
		Name:           filepath.Base(abs),
		Path:           abs,
		MetadataDBPath: filepath.Join(abs, "metadata.db"),
	}
}

// skip markers for directories that hold copies rather than live libraries
var skipPathMarkers = []string{"backup", "temp", ".git"}

// DiscoverLibraries walks the search paths looking for metadata.db files and
// returns a descriptor per valid library found. Duplicate paths and
// backup/temp copies are skipped.
func DiscoverLibraries(searchPaths []string) []Library {
	var libraries []Library
	seen := make(map[string]bool)

	for _, searchPath := range searchPaths {
		root, err := filepath.Abs(searchPath)
		if err != nil {
			continue
		}
		if _, err := os.Stat(root); err != nil {
			continue
		}

		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // Unreadable subtree, keep walking
			}
			if d.IsDir() || d.Name() != "metadata.db" {
				return nil
			}

			libraryPath := filepath.Dir(path)
			lowered := strings.ToLower(libraryPath)
			for _, marker := range skipPathMarkers {
				if strings.Contains(lowered, marker) {
					return nil
				}
			}
			if seen[libraryPath] {
				return nil
			}

			if !isValidLibrary(path) {
				return nil
			}

			seen[libraryPath] = true
			library := Library{
				Name:           filepath.Base(libraryPath),
				Path:           libraryPath,
				MetadataDBPath: path,
			}
			libraries = append(libraries, library)
			log.Printf("Found Calibre library: %s at %s", library.Name, library.Path)
			return nil
		})
	}

	return libraries
}

// isValidLibrary checks that the metadata store carries the books table.
func isValidLibrary(metadataDBPath string) bool {
	db, err := sql.Open("sqlite3", "file:"+metadataDBPath+"?mode=ro")
	if err != nil {
		return false
	}
	defer db.Close()

	var name string
	err = db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name = 'books'`,
	).Scan(&name)
	return err == nil
}

// MarkPrimary flags the named library as primary and orders the slice so the
// primary library comes first. The input order is otherwise preserved.
func MarkPrimary(libraries []Library, primaryName string) []Library {
	if primaryName == "" {
		return libraries
	}

	ordered := make([]Library, 0, len(libraries))
	var rest []Library
	for _, library := range libraries {
		if strings.EqualFold(library.Name, primaryName) {
			library.IsPrimary = true
			ordered = append(ordered, library)
		} else {
			rest = append(rest, library)
		}
	}
	return append(ordered, rest...)
}

// FieldMap maps the logical field names to Calibre custom column labels.
type FieldMap struct {
	Ratings string
	Genres  string
}

func (m FieldMap) label(logical string) (string, error) {
	switch logical {
	case FieldRatings:
		return m.Ratings, nil
	case FieldGenres:
		return m.Genres, nil
	default:
		return "", fmt.Errorf("unknown logical field %q", logical)
	}
}
