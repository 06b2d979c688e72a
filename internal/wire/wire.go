// Package wire defines the JSON bodies exchanged between the review API and
// its clients, and their conversion to the annotation core types.
package wire

import (
	"encoding/json"
	"time"

	"github.com/dialogeval/evaluator/internal/annotation"
)

// Envelope is the unified response body {code, message, data}. Code 0 means
// success.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type Dialog struct {
	DialogID  string    `json:"dialog_id"`
	Emotion   string    `json:"emotion"`
	Topic     string    `json:"topic"`
	Scenario  string    `json:"scenario"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// DialogSummary is a /dialogs entry.
type DialogSummary struct {
	DialogID     string    `json:"dialog_id"`
	Emotion      string    `json:"emotion"`
	Topic        string    `json:"topic"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type UploadResult struct {
	Message       string `json:"message"`
	DialogID      string `json:"dialog_id"`
	TotalMessages int    `json:"total_messages"`
}

type ReviewedList struct {
	DialogIDs []string `json:"dialog_ids"`
}

// EvaluationRequest is the POST /evaluate body. Scores are pointers so that a
// missing field is told apart from zero.
type EvaluationRequest struct {
	DialogID             string   `json:"dialog_id" binding:"required"`
	OverallQuality       string   `json:"kualitas_keseluruhan" binding:"required"`
	Coherence            *int     `json:"koherensi" binding:"required"`
	Empathy              *int     `json:"empati" binding:"required"`
	ProblemUnderstanding *int     `json:"memahami_masalah" binding:"required"`
	InterventionFit      *int     `json:"kesesuaian_intervensi" binding:"required"`
	EmotionImprovement   *int     `json:"perbaikan_emosi" binding:"required"`
	Issues               []string `json:"isu"`
	Notes                *string  `json:"notes"`
}

type Evaluation struct {
	DialogID             string    `json:"dialog_id"`
	OverallQuality       string    `json:"kualitas_keseluruhan"`
	Coherence            int       `json:"koherensi"`
	Empathy              int       `json:"empati"`
	ProblemUnderstanding int       `json:"memahami_masalah"`
	InterventionFit      int       `json:"kesesuaian_intervensi"`
	EmotionImprovement   int       `json:"perbaikan_emosi"`
	Issues               []string  `json:"isu"`
	Notes                *string   `json:"notes"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type UpsertEvaluationResult struct {
	ID      uint   `json:"id"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

// FeedbackRequest is the POST /feedback body. A null rating clears it.
type FeedbackRequest struct {
	DialogID     string   `json:"dialog_id" binding:"required"`
	MessageIndex *int     `json:"message_index" binding:"required"`
	Rating       *int     `json:"rating"`
	Tags         []string `json:"tags"`
}

type FeedbackItem struct {
	MessageIndex int       `json:"message_index"`
	Rating       *int      `json:"rating"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
}

type BulkExportRequest struct {
	Format string `json:"format" binding:"required,oneof=json csv"`
}

type BulkExportJob struct {
	JobID  string `json:"job_id"`
	Format string `json:"format"`
	Mode   string `json:"mode"` // "async" or "sync"
}

// --- conversions ---

func (m Message) CoreRole() annotation.Role {
	if m.Role == string(annotation.RoleUser) {
		return annotation.RoleUser
	}
	return annotation.RoleBot
}

// ToDialog converts a transport dialog, numbering messages by position.
func (d Dialog) ToDialog() *annotation.Dialog {
	out := &annotation.Dialog{
		ID:       d.DialogID,
		Topic:    d.Topic,
		Emotion:  d.Emotion,
		Scenario: d.Scenario,
		Messages: make([]annotation.Message, len(d.Messages)),
	}
	for i, m := range d.Messages {
		out.Messages[i] = annotation.Message{
			Index:     i,
			Role:      m.CoreRole(),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}
	return out
}

func (d DialogSummary) ToSummary() annotation.DialogSummary {
	return annotation.DialogSummary{
		ID:           d.DialogID,
		Topic:        d.Topic,
		Emotion:      d.Emotion,
		MessageCount: d.MessageCount,
		Status:       annotation.StatusUnseen,
	}
}

// NewEvaluationRequest encodes a complete evaluation for POST /evaluate.
func NewEvaluationRequest(ev annotation.Evaluation) EvaluationRequest {
	score := func(m annotation.Metric) *int {
		v := ev.Score(m)
		return &v
	}
	req := EvaluationRequest{
		DialogID:             ev.DialogID,
		OverallQuality:       string(ev.OverallQuality),
		Coherence:            score(annotation.MetricCoherence),
		Empathy:              score(annotation.MetricEmpathy),
		ProblemUnderstanding: score(annotation.MetricProblemUnderstanding),
		InterventionFit:      score(annotation.MetricInterventionFit),
		EmotionImprovement:   score(annotation.MetricEmotionImprovement),
		Issues:               ev.Issues,
	}
	if req.Issues == nil {
		req.Issues = []string{}
	}
	if ev.Notes != "" {
		notes := ev.Notes
		req.Notes = &notes
	}
	return req
}

// Scores maps the request's metric fields by metric name. Missing fields are 0.
func (r EvaluationRequest) Scores() map[annotation.Metric]int {
	deref := func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	}
	return map[annotation.Metric]int{
		annotation.MetricCoherence:            deref(r.Coherence),
		annotation.MetricEmpathy:              deref(r.Empathy),
		annotation.MetricProblemUnderstanding: deref(r.ProblemUnderstanding),
		annotation.MetricInterventionFit:      deref(r.InterventionFit),
		annotation.MetricEmotionImprovement:   deref(r.EmotionImprovement),
	}
}

func (e Evaluation) ToEvaluation() *annotation.Evaluation {
	ev := annotation.NewEvaluation(e.DialogID)
	ev.OverallQuality = annotation.Quality(e.OverallQuality)
	ev.Scores[annotation.MetricCoherence] = e.Coherence
	ev.Scores[annotation.MetricEmpathy] = e.Empathy
	ev.Scores[annotation.MetricProblemUnderstanding] = e.ProblemUnderstanding
	ev.Scores[annotation.MetricInterventionFit] = e.InterventionFit
	ev.Scores[annotation.MetricEmotionImprovement] = e.EmotionImprovement
	ev.Issues = append([]string(nil), e.Issues...)
	if e.Notes != nil {
		ev.Notes = *e.Notes
	}
	return &ev
}

func NewFeedbackRequest(dialogID string, fb annotation.IndexedFeedback) FeedbackRequest {
	idx := fb.Index
	tags := append([]string{}, fb.Tags...)
	return FeedbackRequest{
		DialogID:     dialogID,
		MessageIndex: &idx,
		Rating:       fb.Rating.Wire(),
		Tags:         tags,
	}
}

func (f FeedbackItem) ToFeedback() annotation.IndexedFeedback {
	return annotation.IndexedFeedback{
		Index: f.MessageIndex,
		Feedback: annotation.Feedback{
			Rating: annotation.RatingFromWire(f.Rating),
			Tags:   append([]string(nil), f.Tags...),
		},
	}
}
