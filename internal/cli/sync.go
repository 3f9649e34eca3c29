package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrlokans/shelfsync/internal/apply"
	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/report"
)

// SyncCommand runs one reconciliation pass: dry-run by default, writing
// only with -execute.
type SyncCommand struct {
	Execute bool
	Verbose bool
}

// NewSyncCommand creates a new SyncCommand
func NewSyncCommand() *SyncCommand {
	return &SyncCommand{}
}

// ParseFlags parses command line flags
func (cmd *SyncCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	fs.BoolVar(&cmd.Execute, "execute", false, "Apply the plan (default is a dry-run preview)")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print every planned action")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Reconcile device collections and reading data into Calibre custom columns.\n\n")
		fmt.Fprintf(os.Stderr, "This command:\n")
		fmt.Fprintf(os.Stderr, "  1. Reads books and shelves from the device database\n")
		fmt.Fprintf(os.Stderr, "  2. Matches each book against every configured library\n")
		fmt.Fprintf(os.Stderr, "  3. Builds a reviewable plan (conflicts are never auto-resolved)\n")
		fmt.Fprintf(os.Stderr, "  4. With -execute: backs up each library and applies the plan\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s sync\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s sync -execute\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  KOBO_DATABASE_PATH=/mnt/kobo/.kobo/KoboReader.sqlite %s sync\n", os.Args[0])
	}

	return fs.Parse(args)
}

// Run executes the sync command
func (cmd *SyncCommand) Run() error {
	cfg := config.NewConfig()

	mode := apply.ModeDryRun
	if cmd.Execute {
		mode = apply.ModeExecute
		fmt.Println("📚 Shelf Sync (EXECUTE)")
	} else {
		fmt.Println("📚 Shelf Sync (dry-run)")
	}
	fmt.Println("=======================")

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := eng.Run(ctx, mode)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Println()
	fmt.Print(report.Summary(summary.Report))

	if cmd.Verbose {
		fmt.Println("\nPlanned actions:")
		for _, action := range summary.Report.Plan.Actions {
			if len(action.FieldUpdates) == 0 {
				fmt.Printf("  = %q in %s (already in sync)\n", action.SourceTitle, action.Library)
				continue
			}
			fmt.Printf("  → %q in %s (entry %d):\n", action.SourceTitle, action.Library, action.EntryID)
			for field, value := range action.FieldUpdates {
				fmt.Printf("      %s: %q → %q\n", field, action.Previous[field], value)
			}
		}
	}

	if summary.ArtifactPath != "" {
		fmt.Printf("\n📄 Report: %s\n", summary.ArtifactPath)
	}
	if summary.UnmatchedReportPath != "" {
		fmt.Printf("🔍 Unmatched review: %s\n", summary.UnmatchedReportPath)
	}
	for _, failure := range summary.LibraryFailures {
		fmt.Printf("⚠️  Skipped library %s: %s\n", failure.Library, failure.Error)
	}

	if !cmd.Execute {
		fmt.Println("\nℹ️  Dry-run: nothing was written. Re-run with -execute to apply.")
	} else {
		fmt.Println("\n✅ Sync complete!")
	}

	return nil
}
