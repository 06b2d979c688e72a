package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dialogeval/evaluator/internal/models"
	"github.com/dialogeval/evaluator/internal/wire"
	"github.com/dialogeval/evaluator/pkg/logger"
	"github.com/dialogeval/evaluator/pkg/response"
	"gorm.io/gorm"
)

// DialogExport is the JSON export document of one dialog.
type DialogExport struct {
	Dialog           wire.Dialog         `json:"dialog"`
	Evaluation       *wire.Evaluation    `json:"evaluation"`
	MessageFeedbacks []wire.FeedbackItem `json:"message_feedbacks"`
}

var csvHeader = []string{
	"Dialog ID", "Emotion", "Topic", "Scenario",
	"Message Index", "Role", "Content", "Timestamp",
	"Rating (like=1, dislike=-1)", "Tags",
	"Koherensi", "Empati", "Memahami Masalah", "Kesesuaian Intervensi", "Perbaikan Emosi",
	"Kualitas Keseluruhan", "Isu", "Notes",
}

type ExportService struct {
	db  *gorm.DB
	dir string
}

func NewExportService(db *gorm.DB, dir string) *ExportService {
	return &ExportService{db: db, dir: dir}
}

// Build collects the export document of dialogID.
func (s *ExportService) Build(ctx context.Context, dialogID string) (*DialogExport, error) {
	db := s.db.WithContext(ctx)

	var dialog models.Dialog
	err := db.Where("dialog_id = ?", dialogID).First(&dialog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("dialog not found")
	}
	if err != nil {
		return nil, err
	}

	out := &DialogExport{Dialog: DialogToWire(&dialog), MessageFeedbacks: []wire.FeedbackItem{}}

	var ev models.Evaluation
	err = db.Where("dialog_id = ?", dialogID).First(&ev).Error
	switch {
	case err == nil:
		w := EvaluationToWire(&ev)
		out.Evaluation = &w
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	var feedback []models.MessageFeedback
	if err := db.Where("dialog_id = ?", dialogID).Order("message_index ASC").Find(&feedback).Error; err != nil {
		return nil, err
	}
	for _, fb := range feedback {
		out.MessageFeedbacks = append(out.MessageFeedbacks, FeedbackToWire(fb))
	}
	return out, nil
}

// JSON renders the export document of dialogID as indented JSON.
func (s *ExportService) JSON(ctx context.Context, dialogID string) ([]byte, error) {
	doc, err := s.Build(ctx, dialogID)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// CSV renders one row per message with the evaluation repeated on each row.
func (s *ExportService) CSV(ctx context.Context, dialogID string) ([]byte, error) {
	doc, err := s.Build(ctx, dialogID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	if err := writeCSVRows(w, doc); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func writeCSVRows(w *csv.Writer, doc *DialogExport) error {
	byIndex := make(map[int]wire.FeedbackItem, len(doc.MessageFeedbacks))
	for _, fb := range doc.MessageFeedbacks {
		byIndex[fb.MessageIndex] = fb
	}

	evalCols := make([]string, 8)
	if ev := doc.Evaluation; ev != nil {
		evalCols = []string{
			strconv.Itoa(ev.Coherence),
			strconv.Itoa(ev.Empathy),
			strconv.Itoa(ev.ProblemUnderstanding),
			strconv.Itoa(ev.InterventionFit),
			strconv.Itoa(ev.EmotionImprovement),
			ev.OverallQuality,
			strings.Join(ev.Issues, ", "),
			derefString(ev.Notes),
		}
	}

	d := doc.Dialog
	for idx, msg := range d.Messages {
		var rating, tags string
		if fb, ok := byIndex[idx]; ok {
			if fb.Rating != nil {
				rating = strconv.Itoa(*fb.Rating)
			}
			tags = strings.Join(fb.Tags, ", ")
		}
		row := []string{
			d.DialogID, d.Emotion, d.Topic, d.Scenario,
			strconv.Itoa(idx), msg.Role, msg.Content, msg.Timestamp,
			rating, tags,
		}
		if err := w.Write(append(row, evalCols...)); err != nil {
			return err
		}
	}
	return nil
}

// Bulk writes every dialog into one file under the export directory and
// returns its path. JSON produces an array of export documents, CSV one
// table with the rows of all dialogs.
func (s *ExportService) Bulk(ctx context.Context, format, jobID string) (string, error) {
	if format != "json" && format != "csv" {
		return "", response.NewBadRequest("format must be json or csv")
	}
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Dialog{}).Order("id ASC").Pluck("dialog_id", &ids).Error; err != nil {
		return "", err
	}

	docs := make([]*DialogExport, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Build(ctx, id)
		if err != nil {
			return "", fmt.Errorf("export %s: %w", id, err)
		}
		docs = append(docs, doc)
	}

	var data []byte
	switch format {
	case "json":
		b, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return "", err
		}
		data = b
	case "csv":
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write(csvHeader); err != nil {
			return "", err
		}
		for _, doc := range docs {
			if err := writeCSVRows(w, doc); err != nil {
				return "", err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", err
		}
		data = buf.Bytes()
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("evaluations_%s_%s.%s", time.Now().Format("20060102_150405"), jobID, format)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	logger.Info().
		Str("job_id", jobID).
		Str("path", path).
		Int("dialogs", len(docs)).
		Msg("bulk export written")
	return path, nil
}

// DialogToWire renders a stored dialog for the API.
func DialogToWire(d *models.Dialog) wire.Dialog {
	messages := make([]wire.Message, len(d.Messages))
	for i, m := range d.Messages {
		messages[i] = wire.Message{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
	}
	return wire.Dialog{
		DialogID:  d.DialogID,
		Emotion:   d.Emotion,
		Topic:     d.Topic,
		Scenario:  d.Scenario,
		Messages:  messages,
		CreatedAt: d.CreatedAt,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Process runs a bulk export task. It is the processor of both task queues.
func (s *ExportService) Process(ctx context.Context, task *ExportTask) error {
	_, err := s.Bulk(ctx, task.Format, task.JobID)
	return err
}
