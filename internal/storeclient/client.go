// Package storeclient implements annotation.Store against the review API.
package storeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dialogeval/evaluator/internal/annotation"
	"github.com/dialogeval/evaluator/internal/wire"
	"github.com/dialogeval/evaluator/pkg/logger"
	"github.com/google/uuid"
)

const defaultTimeout = 15 * time.Second

// Client talks to the review API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request. Zero disables the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ annotation.Store = (*Client)(nil)

func (c *Client) ListDialogs(ctx context.Context) ([]annotation.DialogSummary, error) {
	var items []wire.DialogSummary
	if err := c.getJSON(ctx, "list dialogs", "/dialogs", &items); err != nil {
		return nil, err
	}
	out := make([]annotation.DialogSummary, len(items))
	for i, d := range items {
		out[i] = d.ToSummary()
	}
	return out, nil
}

func (c *Client) GetDialog(ctx context.Context, dialogID string) (*annotation.Dialog, error) {
	var d wire.Dialog
	if err := c.getJSON(ctx, "get dialog", "/dialogs/"+url.PathEscape(dialogID), &d); err != nil {
		return nil, notFoundAs(err, "dialog", dialogID)
	}
	return d.ToDialog(), nil
}

func (c *Client) GetEvaluation(ctx context.Context, dialogID string) (*annotation.Evaluation, error) {
	var ev wire.Evaluation
	if err := c.getJSON(ctx, "get evaluation", "/evaluate/"+url.PathEscape(dialogID), &ev); err != nil {
		return nil, notFoundAs(err, "evaluation", dialogID)
	}
	return ev.ToEvaluation(), nil
}

func (c *Client) UpsertEvaluation(ctx context.Context, ev annotation.Evaluation) (annotation.UpsertAction, error) {
	var result wire.UpsertEvaluationResult
	if err := c.postJSON(ctx, "upsert evaluation", "/evaluate", wire.NewEvaluationRequest(ev), &result); err != nil {
		return "", notFoundAs(err, "dialog", ev.DialogID)
	}
	if result.Action == string(annotation.ActionUpdated) {
		return annotation.ActionUpdated, nil
	}
	return annotation.ActionCreated, nil
}

func (c *Client) ListFeedback(ctx context.Context, dialogID string) ([]annotation.IndexedFeedback, error) {
	var items []wire.FeedbackItem
	if err := c.getJSON(ctx, "list feedback", "/feedback/"+url.PathEscape(dialogID), &items); err != nil {
		return nil, notFoundAs(err, "feedback", dialogID)
	}
	out := make([]annotation.IndexedFeedback, len(items))
	for i, item := range items {
		out[i] = item.ToFeedback()
	}
	return out, nil
}

func (c *Client) UpsertFeedback(ctx context.Context, dialogID string, fb annotation.IndexedFeedback) error {
	err := c.postJSON(ctx, "upsert feedback", "/feedback", wire.NewFeedbackRequest(dialogID, fb), nil)
	return notFoundAs(err, "dialog", dialogID)
}

func (c *Client) ListReviewed(ctx context.Context) ([]string, error) {
	var list wire.ReviewedList
	if err := c.getJSON(ctx, "list reviewed", "/dialogs/reviewed", &list); err != nil {
		return nil, err
	}
	return list.DialogIDs, nil
}

// ExportDialog returns the attachment body unchanged.
func (c *Client) ExportDialog(ctx context.Context, dialogID, format string) ([]byte, error) {
	path := fmt.Sprintf("/export/%s/%s", url.PathEscape(dialogID), url.PathEscape(format))
	body, err := c.do(ctx, "export dialog", http.MethodGet, path, "", nil)
	if err != nil {
		return nil, notFoundAs(err, "dialog", dialogID)
	}
	return body, nil
}

// UploadDialog sends raw as a multipart .json file and returns the stored id.
func (c *Client) UploadDialog(ctx context.Context, raw []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", uuid.NewString()+".json")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(raw); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	body, err := c.do(ctx, "upload dialog", http.MethodPost, "/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	var result wire.UploadResult
	if err := decodeEnvelope(body, &result); err != nil {
		return "", &annotation.TransportError{Op: "upload dialog", Err: err}
	}
	return result.DialogID, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out any) error {
	body, err := c.do(ctx, op, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	if err := decodeEnvelope(body, out); err != nil {
		return &annotation.TransportError{Op: op, Err: err}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", op, err)
	}
	body, err := c.do(ctx, op, http.MethodPost, path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := decodeEnvelope(body, out); err != nil {
		return &annotation.TransportError{Op: op, Err: err}
	}
	return nil
}

// do performs one request and returns the body of a 2xx answer. A 404 becomes
// *annotation.NotFoundError, every other failure *annotation.TransportError.
func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &annotation.TransportError{Op: op, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	logger.Debug().Str("method", method).Str("path", path).Msg("store request")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("store unreachable")
		return nil, &annotation.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &annotation.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	event := logger.Debug()
	if resp.StatusCode >= 400 {
		event = logger.Warn()
	}
	event.Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("store response")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &annotation.NotFoundError{Resource: "resource", ID: path}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &annotation.TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
	}
	return data, nil
}

func decodeEnvelope(body []byte, out any) error {
	var env wire.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("store error %d: %s", env.Code, env.Message)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var env wire.Envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Message != "" {
		return env.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// notFoundAs names the resource of a 404 answer.
func notFoundAs(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if nf, ok := err.(*annotation.NotFoundError); ok {
		nf.Resource, nf.ID = resource, id
		return nf
	}
	return err
}
