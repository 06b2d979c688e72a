package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/dialogeval/evaluator/internal/middleware"
	"github.com/dialogeval/evaluator/internal/models"
	"github.com/dialogeval/evaluator/internal/services"
	"github.com/dialogeval/evaluator/internal/wire"
	"github.com/dialogeval/evaluator/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// maxUploadSize bounds an uploaded transcript.
const maxUploadSize = 10 << 20

type DialogHandler struct {
	dialogService     *services.DialogService
	evaluationService *services.EvaluationService
}

func NewDialogHandler(db *gorm.DB) *DialogHandler {
	return &DialogHandler{
		dialogService:     services.NewDialogService(db),
		evaluationService: services.NewEvaluationService(db),
	}
}

func (h *DialogHandler) List(c *gin.Context) {
	dialogs, err := h.dialogService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]wire.DialogSummary, len(dialogs))
	for i := range dialogs {
		items[i] = summaryToWire(&dialogs[i])
	}
	response.Success(c, items)
}

func (h *DialogHandler) GetByID(c *gin.Context) {
	dialog, err := h.dialogService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, services.DialogToWire(dialog))
}

// Reviewed lists the ids of every dialog with a saved evaluation.
func (h *DialogHandler) Reviewed(c *gin.Context) {
	ids, err := h.evaluationService.ReviewedIDs(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, wire.ReviewedList{DialogIDs: ids})
}

// Upload accepts a transcript as the multipart field "file" or as a raw
// JSON body.
func (h *DialogHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	var (
		filename string
		raw      []byte
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			response.BadRequest(c, "file is required")
			return
		}
		f, err := fh.Open()
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		defer f.Close()
		if raw, err = io.ReadAll(f); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		filename = fh.Filename
	} else {
		var err error
		if raw, err = io.ReadAll(c.Request.Body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	dialog, err := h.dialogService.Upload(c.Request.Context(), filename, raw)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Set(middleware.DialogIDKey, dialog.DialogID)
	response.Created(c, wire.UploadResult{
		Message:       "Dialog uploaded",
		DialogID:      dialog.DialogID,
		TotalMessages: len(dialog.Messages),
	})
}

func summaryToWire(d *models.Dialog) wire.DialogSummary {
	return wire.DialogSummary{
		DialogID:     d.DialogID,
		Emotion:      d.Emotion,
		Topic:        d.Topic,
		MessageCount: len(d.Messages),
		CreatedAt:    d.CreatedAt,
	}
}
