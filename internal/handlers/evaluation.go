package handlers

import (
	"github.com/dialogeval/evaluator/internal/annotation"
	"github.com/dialogeval/evaluator/internal/services"
	"github.com/dialogeval/evaluator/internal/wire"
	"github.com/dialogeval/evaluator/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type EvaluationHandler struct {
	evaluationService *services.EvaluationService
}

func NewEvaluationHandler(db *gorm.DB) *EvaluationHandler {
	return &EvaluationHandler{evaluationService: services.NewEvaluationService(db)}
}

// Upsert creates the evaluation of a dialog or replaces the existing one.
func (h *EvaluationHandler) Upsert(c *gin.Context) {
	var req wire.EvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	saved, action, err := h.evaluationService.Upsert(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}

	msg := "Evaluation saved"
	if action == annotation.ActionUpdated {
		msg = "Evaluation updated"
	}
	response.Success(c, wire.UpsertEvaluationResult{
		ID:      saved.ID,
		Action:  string(action),
		Message: msg,
	})
}

func (h *EvaluationHandler) GetByDialog(c *gin.Context) {
	ev, err := h.evaluationService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, services.EvaluationToWire(ev))
}
