// Package response writes the {code, message, data} envelope every API
// endpoint answers with. Code is 0 on success and the HTTP status otherwise.
package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AppError is a failure the client is allowed to see. Err, when set, is the
// internal cause and is never written to the response.
type AppError struct {
	HTTPStatus int
	Code       int
	Message    string
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func newAppError(status int, msg string) *AppError {
	return &AppError{HTTPStatus: status, Code: status, Message: msg}
}

func NewBadRequest(msg string) *AppError { return newAppError(http.StatusBadRequest, msg) }
func NewNotFound(msg string) *AppError   { return newAppError(http.StatusNotFound, msg) }
func NewConflict(msg string) *AppError   { return newAppError(http.StatusConflict, msg) }

// NewInternal hides cause behind msg.
func NewInternal(msg string, cause error) *AppError {
	e := newAppError(http.StatusInternalServerError, msg)
	e.Err = cause
	return e
}

func Success(c *gin.Context, data interface{})  { ok(c, http.StatusOK, "ok", data) }
func Created(c *gin.Context, data interface{})  { ok(c, http.StatusCreated, "created", data) }
func Accepted(c *gin.Context, data interface{}) { ok(c, http.StatusAccepted, "accepted", data) }

func ok(c *gin.Context, status int, msg string, data interface{}) {
	c.JSON(status, Response{Code: 0, Message: msg, Data: data})
}

// Error writes err as an envelope. An *AppError anywhere in the chain sets
// the status and message; anything else becomes a bare 500. The error is
// attached to the context so the request log shows it.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	var appErr *AppError
	if errors.As(err, &appErr) {
		fail(c, appErr.HTTPStatus, appErr.Message)
		return
	}
	fail(c, http.StatusInternalServerError, "internal server error")
}

func BadRequest(c *gin.Context, msg string)  { fail(c, http.StatusBadRequest, msg) }
func ServerError(c *gin.Context, msg string) { fail(c, http.StatusInternalServerError, msg) }

// TooManyRequests also aborts the handler chain.
func TooManyRequests(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Code: http.StatusTooManyRequests, Message: msg})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Code: status, Message: msg})
}

// Attachment sends data as a file download, outside the envelope.
func Attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}
