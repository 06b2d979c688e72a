package handlers

import (
	"net/http"

	"github.com/dialogeval/evaluator/internal/models"
	"github.com/dialogeval/evaluator/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue) *HealthHandler {
	return &HealthHandler{db: db, queue: queue}
}

// CheckHealth reports the database and export queue state.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	var dialogs, reviewed int64
	h.db.Model(&models.Dialog{}).Count(&dialogs)
	h.db.Model(&models.Evaluation{}).Count(&reviewed)

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "dialog-evaluator",
		"components": gin.H{
			"database":   dbStatus,
			"queue_mode": queueMode,
			"dialogs":    dialogs,
			"reviewed":   reviewed,
		},
	})
}
