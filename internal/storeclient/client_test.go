package storeclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dialogeval/evaluator/internal/annotation"
	"github.com/dialogeval/evaluator/internal/wire"
	"github.com/tidwall/gjson"
)

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"code": 0, "message": "ok", "data": data}
	if status >= 300 {
		body = map[string]any{"code": status, "message": data}
	}
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_GetDialogEscapesID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		writeEnvelope(w, http.StatusOK, wire.Dialog{
			DialogID: "Dialog #7",
			Topic:    "Putus Cinta",
			Messages: []wire.Message{{Role: "user", Content: "halo"}, {Role: "bot", Content: "hai"}},
		})
	}))
	defer srv.Close()

	d, err := New(srv.URL).GetDialog(context.Background(), "Dialog #7")
	if err != nil {
		t.Fatalf("GetDialog() error = %v", err)
	}
	if gotPath != "/dialogs/Dialog%20%237" {
		t.Errorf("path = %q, expected the id to be escaped", gotPath)
	}
	if d.ID != "Dialog #7" || len(d.Messages) != 2 || d.Messages[1].Index != 1 {
		t.Errorf("GetDialog() = %+v", d)
	}
}

func TestClient_NotFoundMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, "Belum ada evaluasi untuk dialog ini")
	}))
	defer srv.Close()
	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.GetEvaluation(ctx, "train_0")
	var nf *annotation.NotFoundError
	if !errors.As(err, &nf) || nf.Resource != "evaluation" || nf.ID != "train_0" {
		t.Errorf("GetEvaluation() error = %v, expected evaluation not found", err)
	}
	if _, err := c.ListFeedback(ctx, "train_0"); !annotation.IsNotFound(err) {
		t.Errorf("ListFeedback() error = %v, expected not found", err)
	}
	if _, err := c.ListReviewed(ctx); !annotation.IsNotFound(err) {
		t.Errorf("ListReviewed() error = %v, expected not found", err)
	}
}

func TestClient_TransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusInternalServerError, "database is locked")
	}))
	defer srv.Close()

	err := New(srv.URL).UpsertFeedback(context.Background(), "d", annotation.IndexedFeedback{Index: 0})
	var te *annotation.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("UpsertFeedback() error = %v, expected *TransportError", err)
	}
	if te.StatusCode != http.StatusInternalServerError || te.Message != "database is locked" {
		t.Errorf("TransportError = %+v", te)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	if _, err := New(closed.URL).ListDialogs(context.Background()); !annotation.IsTransport(err) {
		t.Errorf("ListDialogs() on a closed server error = %v, expected transport error", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, WithTimeout(20*time.Millisecond)).ListDialogs(context.Background())
	if !annotation.IsTransport(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ListDialogs() error = %v, expected a deadline transport error", err)
	}
}

func TestClient_SubmitRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var evalBody, feedbackBody []byte
	mux := http.NewServeMux()
	mux.HandleFunc("POST /evaluate", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		evalBody, _ = io.ReadAll(r.Body)
		mu.Unlock()
		writeEnvelope(w, http.StatusOK, wire.UpsertEvaluationResult{ID: 1, Action: "updated"})
	})
	mux.HandleFunc("POST /feedback", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		feedbackBody, _ = io.ReadAll(r.Body)
		mu.Unlock()
		writeEnvelope(w, http.StatusOK, wire.FeedbackItem{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := New(srv.URL)
	ctx := context.Background()

	ev := annotation.NewEvaluation("train_0")
	ev.OverallQuality = annotation.QualityGood
	for _, m := range annotation.Metrics {
		ev.Scores[m] = 4
	}
	action, err := c.UpsertEvaluation(ctx, ev)
	if err != nil || action != annotation.ActionUpdated {
		t.Fatalf("UpsertEvaluation() = %q, %v", action, err)
	}
	if got := gjson.GetBytes(evalBody, "perbaikan_emosi").Int(); got != 4 {
		t.Errorf("perbaikan_emosi = %d", got)
	}

	err = c.UpsertFeedback(ctx, "train_0", annotation.IndexedFeedback{
		Index:    0,
		Feedback: annotation.Feedback{Rating: annotation.RatingDislike, Tags: []string{annotation.TagClarification}},
	})
	if err != nil {
		t.Fatalf("UpsertFeedback() error = %v", err)
	}
	body := gjson.ParseBytes(feedbackBody)
	if body.Get("rating").Int() != -1 || body.Get("tags.0").String() != "Klarifikasi" || body.Get("dialog_id").String() != "train_0" {
		t.Errorf("feedback body = %s", feedbackBody)
	}
}

func TestClient_UploadMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, err.Error())
			return
		}
		defer file.Close()
		raw, _ := io.ReadAll(file)
		if !strings.HasSuffix(header.Filename, ".json") || !gjson.ValidBytes(raw) {
			writeEnvelope(w, http.StatusBadRequest, "File harus berformat JSON")
			return
		}
		writeEnvelope(w, http.StatusCreated, wire.UploadResult{DialogID: gjson.GetBytes(raw, "ID").String(), TotalMessages: 1})
	}))
	defer srv.Close()

	id, err := New(srv.URL).UploadDialog(context.Background(), []byte(`{"ID":"train_42","dialogue":[{"speaker":"usr","text":"hi"}]}`))
	if err != nil || id != "train_42" {
		t.Errorf("UploadDialog() = %q, %v", id, err)
	}
}

func TestClient_ExportReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/export/train_0/csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte("Dialog ID,Emotion\ntrain_0,marah\n"))
	}))
	defer srv.Close()

	out, err := New(srv.URL).ExportDialog(context.Background(), "train_0", annotation.FormatCSV)
	if err != nil || !strings.HasPrefix(string(out), "Dialog ID") {
		t.Errorf("ExportDialog() = %q, %v", out, err)
	}
}
