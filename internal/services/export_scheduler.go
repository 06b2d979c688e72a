package services

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/dialogeval/evaluator/internal/models"
	"github.com/dialogeval/evaluator/pkg/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	exportLockName  = "bulk_export"
	cleanupLockName = "activity_cleanup"
	cleanupSpec     = "@daily"
)

// ExportScheduler enqueues periodic bulk export snapshots and purges old
// activity. Each run takes a row in job_locks first, so only one server
// instance acts on a given tick.
type ExportScheduler struct {
	db        *gorm.DB
	queue     TaskQueue
	activity  *ActivityLogService
	spec      string
	format    string
	retention time.Duration
	instance  string

	cron *cron.Cron
}

func NewExportScheduler(db *gorm.DB, queue TaskQueue, activity *ActivityLogService, spec, format string, retention time.Duration) *ExportScheduler {
	host, _ := os.Hostname()
	if format == "" {
		format = "json"
	}
	return &ExportScheduler{
		db:        db,
		queue:     queue,
		activity:  activity,
		spec:      spec,
		format:    format,
		retention: retention,
		instance:  host + "-" + uuid.NewString()[:8],
	}
}

// Start registers the jobs and starts the cron runner. An empty export
// schedule only registers the cleanup.
func (s *ExportScheduler) Start() error {
	s.cron = cron.New()

	if s.spec != "" {
		if _, err := s.cron.AddFunc(s.spec, s.runExport); err != nil {
			return err
		}
		logger.Info().Str("schedule", s.spec).Str("format", s.format).Msg("export snapshots scheduled")
	}
	if s.retention > 0 {
		if _, err := s.cron.AddFunc(cleanupSpec, s.runCleanup); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

func (s *ExportScheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *ExportScheduler) runExport() {
	key := time.Now().Truncate(time.Minute).Format(time.RFC3339)
	if !s.acquire(exportLockName, key, time.Hour) {
		return
	}
	task := &ExportTask{JobID: uuid.NewString(), Format: s.format, RequestedBy: "scheduler", Scheduled: true}
	if err := s.queue.Enqueue(task); err != nil {
		logger.Error().Err(err).Msg("scheduled export not enqueued")
	}
}

func (s *ExportScheduler) runCleanup() {
	key := time.Now().Format("2006-01-02")
	if !s.acquire(cleanupLockName, key, 24*time.Hour) {
		return
	}
	deleted, err := s.activity.Cleanup(context.Background(), s.retention)
	if err != nil {
		logger.Error().Err(err).Msg("activity cleanup failed")
		return
	}
	logger.Info().Int64("deleted", deleted).Msg("activity cleanup done")
}

// acquire claims the (job, slot) row. It reports false when another
// instance already holds it.
func (s *ExportScheduler) acquire(job, slot string, ttl time.Duration) bool {
	now := time.Now()
	s.db.Where("expires_at <= ?", now).Delete(&models.JobLock{})

	lock := &models.JobLock{
		Job:        job,
		Slot:       slot,
		Owner:      s.instance,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(lock)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			logger.Warn().Err(result.Error).Str("job", job).Msg("job lock not acquired")
		}
		return false
	}
	return result.RowsAffected == 1
}
