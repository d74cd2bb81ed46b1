// Package jobs schedules the recurring bitable sync.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"

	"dispatchboard/internal/services"
)

// SyncScheduler runs the sync pipeline on a cron expression or a fixed
// interval.
type SyncScheduler struct {
	scheduler gocron.Scheduler
	sync      *services.SyncService
}

// NewSyncScheduler creates the scheduler. A non-empty cronExpr wins over the
// interval; an invalid expression is rejected at startup rather than
// silently never firing.
func NewSyncScheduler(syncService *services.SyncService, cronExpr string, interval time.Duration) (*SyncScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &SyncScheduler{scheduler: scheduler, sync: syncService}

	var definition gocron.JobDefinition
	if cronExpr != "" {
		if _, err := cron.ParseStandard(cronExpr); err != nil {
			return nil, fmt.Errorf("invalid SYNC_CRON %q: %w", cronExpr, err)
		}
		definition = gocron.CronJob(cronExpr, false)
		log.Printf("⏰ [SCHEDULER] Sync scheduled with cron %q", cronExpr)
	} else {
		if interval <= 0 {
			interval = time.Hour
		}
		definition = gocron.DurationJob(interval)
		log.Printf("⏰ [SCHEDULER] Sync scheduled every %v", interval)
	}

	if _, err := scheduler.NewJob(definition, gocron.NewTask(s.runOnce)); err != nil {
		return nil, fmt.Errorf("failed to register sync job: %w", err)
	}

	return s, nil
}

func (s *SyncScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := s.sync.Run(ctx)
	switch {
	case errors.Is(err, services.ErrSyncInProgress):
		log.Println("⏭️ [SCHEDULER] Sync skipped: previous run still in progress")
	case errors.Is(err, services.ErrNoRecords):
		log.Println("⚠️ [SCHEDULER] Sync kept previous snapshot: source returned no records")
	case err != nil:
		log.Printf("❌ [SCHEDULER] Sync failed: %v", err)
	default:
		log.Printf("✅ [SCHEDULER] Sync %s: %d records -> %d tasks in %v",
			result.RunID, result.RecordsFetched, result.TasksPersisted, result.Duration)
	}
}

// Start begins firing the sync job.
func (s *SyncScheduler) Start() {
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (s *SyncScheduler) Stop() error {
	return s.scheduler.Shutdown()
}
