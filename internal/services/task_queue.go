package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dialogeval/evaluator/internal/config"
	"github.com/dialogeval/evaluator/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	TaskTypeBulkExport = "export:bulk"

	exportTaskTimeout = 10 * time.Minute
)

// ExportTask asks for a snapshot of every dialog in one file.
type ExportTask struct {
	JobID       string `json:"job_id"`
	Format      string `json:"format"` // json, csv
	RequestedBy string `json:"requested_by"`
	Scheduled   bool   `json:"scheduled"`
}

// ExportProcessor runs an export task.
type ExportProcessor func(context.Context, *ExportTask) error

// TaskQueue runs export tasks in the background.
type TaskQueue interface {
	Enqueue(task *ExportTask) error
	// IsAsync reports whether tasks leave the process (Redis).
	IsAsync() bool
	// Close waits for or hands off pending tasks.
	Close() error
}

// NewTaskQueue returns an asynq queue when Redis is enabled and reachable,
// an in-process queue otherwise.
func NewTaskQueue(cfg *config.Config) TaskQueue {
	if !cfg.Redis.Enabled {
		logger.Info().Msg("sync export queue initialized (Redis disabled)")
		return NewSyncQueue()
	}
	queue, err := NewAsyncQueue(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, falling back to sync export queue")
		return NewSyncQueue()
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("async export queue initialized")
	return queue
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// AsyncQueue hands tasks to an asynq worker through Redis.
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := redisClientOpt(cfg)
	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	// Queues() fails fast when Redis cannot be reached.
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *ExportTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeBulkExport, payload)
	info, err := q.client.Enqueue(t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.Timeout(exportTaskTimeout),
		asynq.TaskID(task.JobID),
	)
	if err != nil {
		return err
	}

	logger.Info().Str("task_id", info.ID).Str("queue", info.Queue).Str("format", task.Format).Msg("export task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs tasks on goroutines of this process.
type SyncQueue struct {
	mu        sync.Mutex
	processor ExportProcessor
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function that runs enqueued tasks.
func (q *SyncQueue) SetProcessor(processor ExportProcessor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = processor
}

// Enqueue runs the task in a new goroutine so the caller is not blocked.
func (q *SyncQueue) Enqueue(task *ExportTask) error {
	q.mu.Lock()
	processor := q.processor
	q.mu.Unlock()

	if processor == nil {
		logger.Warn().Str("job_id", task.JobID).Msg("no export processor set, task dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), exportTaskTimeout)
		defer cancel()
		if err := processor(ctx, task); err != nil {
			logger.Error().Err(err).Str("job_id", task.JobID).Msg("export task failed")
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for running tasks.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
