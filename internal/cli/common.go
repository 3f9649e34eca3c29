package cli

import (
	"fmt"
	"log"

	"github.com/mrlokans/shelfsync/internal/calibre"
	"github.com/mrlokans/shelfsync/internal/collections"
	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/engine"
	"github.com/mrlokans/shelfsync/internal/history"
	"github.com/mrlokans/shelfsync/internal/kobo"
	"github.com/mrlokans/shelfsync/internal/report"
)

// resolveLibraries combines explicitly configured library paths with
// filesystem discovery and orders the result primary-first.
func resolveLibraries(cfg *config.Config) ([]calibre.Library, error) {
	var libraries []calibre.Library
	seen := make(map[string]bool)

	for _, path := range cfg.Libraries.Paths {
		library := calibre.NewLibrary(path)
		if !seen[library.Path] {
			seen[library.Path] = true
			libraries = append(libraries, library)
		}
	}

	for _, library := range calibre.DiscoverLibraries(cfg.Libraries.SearchPaths) {
		if !seen[library.Path] {
			seen[library.Path] = true
			libraries = append(libraries, library)
		}
	}

	if len(libraries) == 0 {
		return nil, fmt.Errorf("no libraries found: set LIBRARY_PATHS or LIBRARY_SEARCH_PATHS")
	}

	return calibre.MarkPrimary(libraries, cfg.Libraries.Primary), nil
}

// buildEngine assembles a sync engine from configuration. The returned
// cleanup closes the history store.
func buildEngine(cfg *config.Config) (*engine.Engine, func(), error) {
	mapping, err := config.LoadRatingMapping(cfg.Classification.MappingFile)
	if err != nil {
		return nil, nil, err
	}

	libraries, err := resolveLibraries(cfg)
	if err != nil {
		return nil, nil, err
	}

	historyStore, err := history.NewStore(cfg.History.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := historyStore.Close(); err != nil {
			log.Printf("Error closing history store: %v", err)
		}
	}

	eng := engine.NewEngine(
		kobo.NewReader(cfg.Kobo.DatabasePath),
		collections.NewClassifier(mapping.Collections, mapping.Precedence, nil),
		libraries,
		calibre.FieldMap{Ratings: cfg.Columns.Ratings, Genres: cfg.Columns.Genres},
		cfg.Backup.Dir,
		report.NewWriter(cfg.Report.Dir),
		historyStore,
	)

	return eng, cleanup, nil
}
