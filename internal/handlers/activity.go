package handlers

import (
	"github.com/dialogeval/evaluator/internal/services"
	"github.com/dialogeval/evaluator/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ActivityHandler struct {
	activityService *services.ActivityLogService
}

func NewActivityHandler(db *gorm.DB) *ActivityHandler {
	return &ActivityHandler{activityService: services.NewActivityLogService(db)}
}

func (h *ActivityHandler) List(c *gin.Context) {
	var req services.ActivityListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	resp, err := h.activityService.List(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}
