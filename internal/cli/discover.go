package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/shelfsync/internal/config"
)

// DiscoverCommand lists the libraries the sync would operate on.
type DiscoverCommand struct{}

// NewDiscoverCommand creates a new DiscoverCommand
func NewDiscoverCommand() *DiscoverCommand {
	return &DiscoverCommand{}
}

// ParseFlags parses command line flags
func (cmd *DiscoverCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s discover\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "List the Calibre libraries found via LIBRARY_PATHS and LIBRARY_SEARCH_PATHS.\n")
	}

	return fs.Parse(args)
}

// Run executes the discover command
func (cmd *DiscoverCommand) Run() error {
	cfg := config.NewConfig()

	libraries, err := resolveLibraries(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d libraries:\n", len(libraries))
	for _, library := range libraries {
		marker := ""
		if library.IsPrimary {
			marker = " (PRIMARY)"
		}
		fmt.Printf("  📖 %s%s: %s\n", library.Name, marker, library.Path)
	}

	return nil
}
