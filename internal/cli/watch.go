package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/scheduler"
)

// WatchCommand keeps a periodic dry-run going so plan artifacts stay fresh.
type WatchCommand struct {
	Schedule string
	RunNow   bool
}

// NewWatchCommand creates a new WatchCommand
func NewWatchCommand() *WatchCommand {
	return &WatchCommand{}
}

// ParseFlags parses command line flags
func (cmd *WatchCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)

	fs.StringVar(&cmd.Schedule, "schedule", "", "Cron schedule (default from WATCH_SCHEDULE)")
	fs.BoolVar(&cmd.RunNow, "now", true, "Run a dry-run pass immediately on start")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s watch [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Run a dry-run reconciliation on a cron schedule. Never writes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s watch\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s watch -schedule '*/30 * * * *'\n", os.Args[0])
	}

	return fs.Parse(args)
}

// Run executes the watch command
func (cmd *WatchCommand) Run() error {
	cfg := config.NewConfig()

	schedule := cmd.Schedule
	if schedule == "" {
		schedule = cfg.Watch.Schedule
	}

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher := scheduler.NewWatchScheduler(eng, schedule)

	fmt.Printf("👀 Watching with schedule %q (Ctrl-C to stop)\n", schedule)
	if cmd.RunNow {
		watcher.RunNow(ctx)
	}

	return watcher.Start(ctx)
}
