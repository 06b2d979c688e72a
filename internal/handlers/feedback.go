package handlers

import (
	"github.com/dialogeval/evaluator/internal/services"
	"github.com/dialogeval/evaluator/internal/wire"
	"github.com/dialogeval/evaluator/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type FeedbackHandler struct {
	feedbackService *services.FeedbackService
}

func NewFeedbackHandler(db *gorm.DB) *FeedbackHandler {
	return &FeedbackHandler{
		feedbackService: services.NewFeedbackService(db, services.NewDialogService(db)),
	}
}

func (h *FeedbackHandler) Upsert(c *gin.Context) {
	var req wire.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	fb, err := h.feedbackService.Upsert(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, services.FeedbackToWire(*fb))
}

// List returns the stored feedback of a dialog, empty when it has none.
func (h *FeedbackHandler) List(c *gin.Context) {
	items, err := h.feedbackService.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]wire.FeedbackItem, len(items))
	for i, fb := range items {
		out[i] = services.FeedbackToWire(fb)
	}
	response.Success(c, out)
}
