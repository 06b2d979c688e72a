package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dialogeval/evaluator/internal/config"
	"github.com/dialogeval/evaluator/pkg/logger"
	"github.com/hibiken/asynq"
)

// Worker consumes export tasks queued by AsyncQueue.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor ExportProcessor

	mu      sync.Mutex
	running bool
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisClientOpt(cfg),
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error().Err(err).Str("type", task.Type()).Msg("export task failed")
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

func (w *Worker) SetProcessor(processor ExportProcessor) {
	w.processor = processor
}

func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeBulkExport, w.handleExportTask)
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.running = true
	logger.Info().Msg("export worker started")
	return nil
}

// Stop waits for running tasks and disconnects from Redis.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.server.Shutdown()
	w.running = false
	logger.Info().Msg("export worker stopped")
}

func (w *Worker) handleExportTask(ctx context.Context, t *asynq.Task) error {
	var task ExportTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		// Retrying cannot fix a malformed payload.
		return fmt.Errorf("decode export task: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info().Str("job_id", task.JobID).Str("format", task.Format).Bool("scheduled", task.Scheduled).Msg("processing export task")

	if w.processor == nil {
		logger.Warn().Msg("no export processor set")
		return nil
	}

	return w.processor(ctx, &task)
}
