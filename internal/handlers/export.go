package handlers

import (
	"github.com/dialogeval/evaluator/internal/annotation"
	"github.com/dialogeval/evaluator/internal/services"
	"github.com/dialogeval/evaluator/internal/wire"
	"github.com/dialogeval/evaluator/pkg/logger"
	"github.com/dialogeval/evaluator/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExportHandler struct {
	exportService *services.ExportService
	queue         services.TaskQueue
}

func NewExportHandler(db *gorm.DB, dir string, queue services.TaskQueue) *ExportHandler {
	return &ExportHandler{
		exportService: services.NewExportService(db, dir),
		queue:         queue,
	}
}

func (h *ExportHandler) JSON(c *gin.Context) {
	id := c.Param("id")
	data, err := h.exportService.JSON(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, annotation.ExportFilename(id, "json"), "application/json", data)
}

func (h *ExportHandler) CSV(c *gin.Context) {
	id := c.Param("id")
	data, err := h.exportService.CSV(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, annotation.ExportFilename(id, "csv"), "text/csv; charset=utf-8", data)
}

// Bulk queues a snapshot of every dialog and returns the job id at once.
func (h *ExportHandler) Bulk(c *gin.Context) {
	var req wire.BulkExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task := &services.ExportTask{
		JobID:       uuid.NewString(),
		Format:      req.Format,
		RequestedBy: c.ClientIP(),
	}
	if err := h.queue.Enqueue(task); err != nil {
		logger.Error().Err(err).Str("job_id", task.JobID).Msg("bulk export not enqueued")
		response.ServerError(c, "export could not be queued")
		return
	}

	mode := "sync"
	if h.queue.IsAsync() {
		mode = "async"
	}
	response.Accepted(c, wire.BulkExportJob{JobID: task.JobID, Format: task.Format, Mode: mode})
}
