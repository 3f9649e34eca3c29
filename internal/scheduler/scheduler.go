package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/shelfsync/internal/apply"
	"github.com/mrlokans/shelfsync/internal/engine"
)

// WatchScheduler re-runs a dry-run pass on a cron schedule so the plan
// artifacts stay fresh for review. It never executes writes.
type WatchScheduler struct {
	engine   *engine.Engine
	schedule string

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

func NewWatchScheduler(eng *engine.Engine, schedule string) *WatchScheduler {
	return &WatchScheduler{
		engine:   eng,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start schedules the periodic dry-run and runs until the context is
// cancelled.
func (s *WatchScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to schedule sync job with %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.isRunning = true
	s.mu.Unlock()

	log.Printf("Watch scheduler started with schedule %q", s.schedule)

	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop halts scheduling and waits for a running pass to finish.
func (s *WatchScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isRunning = false

	log.Printf("Watch scheduler stopped")
}

// RunNow triggers an immediate dry-run pass.
func (s *WatchScheduler) RunNow(ctx context.Context) {
	s.runOnce(ctx)
}

func (s *WatchScheduler) runOnce(ctx context.Context) {
	summary, err := s.engine.Run(ctx, apply.ModeDryRun)
	if err != nil {
		log.Printf("Scheduled dry-run failed: %v", err)
		return
	}
	log.Printf("Scheduled dry-run: %d matched, %d unmatched, %d conflicts (artifact: %s)",
		summary.Matched, summary.Unmatched, summary.Conflicts, summary.ArtifactPath)
}
