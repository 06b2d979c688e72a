package main

import (
	"time"

	"github.com/dialogeval/evaluator/internal/config"
	"github.com/dialogeval/evaluator/internal/models"
	"github.com/dialogeval/evaluator/internal/services"
	"github.com/dialogeval/evaluator/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds the long-lived parts of the review API.
type appServices struct {
	db        *gorm.DB
	activity  *services.ActivityLogService
	taskQueue services.TaskQueue
	worker    *services.Worker
	scheduler *services.ExportScheduler
}

// bootstrap opens the database and starts the export queue, worker and
// scheduler.
func bootstrap(cfg *config.Config) *appServices {
	db, err := models.Open(&cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	return newAppServices(cfg, db)
}

func newAppServices(cfg *config.Config, db *gorm.DB) *appServices {
	exports := services.NewExportService(db, cfg.Export.Dir)
	activity := services.NewActivityLogService(db)

	// Redis when enabled, otherwise in-process.
	taskQueue := services.NewTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(exports.Process)
	}

	var worker *services.Worker
	if taskQueue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(exports.Process)
			if err := worker.Start(); err != nil {
				logger.Error().Err(err).Msg("export worker not started")
			}
		}
	}

	retention := time.Duration(cfg.Log.ActivityRetentionDays) * 24 * time.Hour
	scheduler := services.NewExportScheduler(db, taskQueue, activity, cfg.Export.Schedule, cfg.Export.Format, retention)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Str("schedule", cfg.Export.Schedule).Msg("export scheduler not started")
		scheduler = nil
	}

	return &appServices{
		db:        db,
		activity:  activity,
		taskQueue: taskQueue,
		worker:    worker,
		scheduler: scheduler,
	}
}

// shutdown stops the scheduler first so that no task is queued after the
// queue closes.
func (s *appServices) shutdown() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		if err := s.taskQueue.Close(); err != nil {
			logger.Warn().Err(err).Msg("export queue close")
		}
	}
	logger.Info().Msg("background services stopped")
}
