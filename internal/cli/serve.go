package cli

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/entrypoint"
	"github.com/mrlokans/shelfsync/internal/history"
	internal_http "github.com/mrlokans/shelfsync/internal/http"
)

// ServeCommand starts the read-only report API over the run history.
type ServeCommand struct {
	Version string
}

// NewServeCommand creates a new ServeCommand
func NewServeCommand(version string) *ServeCommand {
	return &ServeCommand{Version: version}
}

// ParseFlags parses command line flags
func (cmd *ServeCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s serve\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Serve the run history and plan/report artifacts as a read-only API.\n")
		fmt.Fprintf(os.Stderr, "Configure with HOST, PORT, HISTORY_DATABASE_PATH.\n")
	}

	return fs.Parse(args)
}

// Run executes the serve command
func (cmd *ServeCommand) Run() error {
	cfg := config.NewConfig()

	historyStore, err := history.NewStore(cfg.History.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer func() {
		if err := historyStore.Close(); err != nil {
			log.Printf("Error closing history store: %v", err)
		}
	}()

	router := internal_http.NewRouter(internal_http.RouterConfig{
		History: historyStore,
		Version: cmd.Version,
	})

	entrypoint.Serve(router, cfg)
	return nil
}
