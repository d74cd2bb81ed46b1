package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"dispatchboard/internal/models"
	"dispatchboard/internal/normalize"
)

// ErrNoRecords aborts a sync whose fetch returned an empty table. An empty
// fetch is far more likely to be an upstream outage than a truly emptied
// table, so the previous snapshot is kept.
var ErrNoRecords = errors.New("source returned no records")

// ErrSyncInProgress is returned when a sync is already running, either in
// this process or (via the Redis lock) in another instance.
var ErrSyncInProgress = errors.New("sync already in progress")

// syncLockTTL bounds how long a crashed instance can hold the cross-instance
// lock.
const syncLockTTL = 5 * time.Minute

const syncLockKey = "dispatchboard:sync:lock"

// Fetcher is the record source; the bitable client implements it.
type Fetcher interface {
	Records(ctx context.Context) ([]models.RawRecord, error)
}

// SyncResult summarizes a completed sync run.
type SyncResult struct {
	RunID          string        `json:"run_id"`
	RecordsFetched int           `json:"records_fetched"`
	TasksPersisted int           `json:"tasks_persisted"`
	Duration       time.Duration `json:"-"`
}

// SyncService orchestrates one full pipeline run: fetch, archive,
// normalize, persist.
type SyncService struct {
	fetcher    Fetcher
	normalizer *normalize.Normalizer
	tasks      *TaskService
	records    *RecordService
	redis      *redis.Client // optional cross-instance lock

	mu      sync.Mutex
	running bool
}

// NewSyncService creates a new sync service. redisClient may be nil when
// running single-instance.
func NewSyncService(fetcher Fetcher, normalizer *normalize.Normalizer, tasks *TaskService, records *RecordService, redisClient *redis.Client) *SyncService {
	return &SyncService{
		fetcher:    fetcher,
		normalizer: normalizer,
		tasks:      tasks,
		records:    records,
		redis:      redisClient,
	}
}

// Run executes one sync. Concurrent calls are rejected, not queued: the
// scheduler will come around again.
func (s *SyncService) Run(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	runID := uuid.New().String()

	if s.redis != nil {
		acquired, err := s.redis.SetNX(ctx, syncLockKey, runID, syncLockTTL).Result()
		if err != nil {
			// A broken lock backend should not stop the pipeline.
			log.Printf("⚠️ [SYNC] Redis lock unavailable, proceeding without: %v", err)
		} else if !acquired {
			return nil, ErrSyncInProgress
		} else {
			defer s.redis.Del(context.WithoutCancel(ctx), syncLockKey)
		}
	}

	start := time.Now()
	result, err := s.run(ctx, runID)

	if m := GetMetrics(); m != nil {
		m.SyncDuration.Observe(time.Since(start).Seconds())
		switch {
		case errors.Is(err, ErrNoRecords):
			m.SyncRuns.WithLabelValues("empty").Inc()
		case err != nil:
			m.SyncRuns.WithLabelValues("error").Inc()
		default:
			m.SyncRuns.WithLabelValues("success").Inc()
			m.RecordsFetched.Set(float64(result.RecordsFetched))
			m.TasksPersisted.Set(float64(result.TasksPersisted))
		}
	}

	if result != nil {
		result.Duration = time.Since(start)
	}
	return result, err
}

func (s *SyncService) run(ctx context.Context, runID string) (*SyncResult, error) {
	log.Printf("🔄 [SYNC] Run %s started", runID)

	records, err := s.fetcher.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	if len(records) == 0 {
		log.Printf("⚠️ [SYNC] Run %s: empty fetch, keeping previous snapshot", runID)
		return nil, ErrNoRecords
	}

	// Archive failures are logged, not fatal: the archive is a debugging
	// aid, the tasks table is the product.
	if err := s.records.ArchiveRaw(ctx, records); err != nil {
		log.Printf("⚠️ [SYNC] Run %s: raw archive failed: %v", runID, err)
	}

	groups := s.normalizer.Normalize(records)

	persisted, err := s.tasks.SaveSnapshot(ctx, groups)
	if err != nil {
		return nil, fmt.Errorf("persist failed: %w", err)
	}

	log.Printf("✅ [SYNC] Run %s done: %d records -> %d tasks", runID, len(records), persisted)
	return &SyncResult{
		RunID:          runID,
		RecordsFetched: len(records),
		TasksPersisted: persisted,
	}, nil
}
