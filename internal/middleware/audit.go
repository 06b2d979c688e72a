package middleware

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dialogeval/evaluator/internal/models"
	"github.com/dialogeval/evaluator/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// DialogIDKey lets a handler name the dialog a write touched when it is not
// in the path or body, e.g. after an upload.
const DialogIDKey = "audit.dialog_id"

const maxAuditBody = 2000

// ActivityLog records every POST to activity_logs once the handler is done.
func ActivityLog(activity *services.ActivityLogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != "POST" {
			c.Next()
			return
		}

		var body []byte
		multipart := strings.HasPrefix(c.ContentType(), "multipart/")
		if c.Request.Body != nil && !multipart {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		action := "POST " + route

		activity.Record(c.Request.Context(), &models.ActivityLog{
			Level:     levelFor(status),
			Action:    action,
			DialogID:  auditDialogID(c, body),
			Status:    status,
			Message:   auditMessage(action, status, c.Errors.String()),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Extra:     truncate(string(body), maxAuditBody),
		})
	}
}

func auditDialogID(c *gin.Context, body []byte) string {
	if id := c.GetString(DialogIDKey); id != "" {
		return id
	}
	if id := c.Param("id"); id != "" {
		return id
	}
	if len(body) > 0 {
		return gjson.GetBytes(body, "dialog_id").String()
	}
	return ""
}

func levelFor(status int) string {
	switch {
	case status >= 500:
		return "error"
	case status >= 400:
		return "warning"
	default:
		return "info"
	}
}

func auditMessage(action string, status int, errs string) string {
	outcome := "ok"
	if status >= 400 {
		outcome = "failed"
	}
	msg := fmt.Sprintf("%s: %s (%d)", action, outcome, status)
	if errs != "" {
		msg += ": " + strings.TrimSpace(errs)
	}
	return msg
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...[truncated]"
}
