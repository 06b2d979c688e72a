package annotation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Quality is the overall dialog rating.
type Quality string

const (
	QualityPoor      Quality = "Kurang"
	QualityFair      Quality = "Cukup"
	QualityGood      Quality = "Baik"
	QualityExcellent Quality = "Baik sekali"
)

var Qualities = []Quality{QualityPoor, QualityFair, QualityGood, QualityExcellent}

func ValidQuality(q Quality) bool { return slices.Contains(Qualities, q) }

// Metric names one of the five 1-5 scores. Values are the store field names.
type Metric string

const (
	MetricCoherence            Metric = "koherensi"
	MetricEmpathy              Metric = "empati"
	MetricProblemUnderstanding Metric = "memahami_masalah"
	MetricInterventionFit      Metric = "kesesuaian_intervensi"
	MetricEmotionImprovement   Metric = "perbaikan_emosi"
)

var Metrics = []Metric{
	MetricCoherence,
	MetricEmpathy,
	MetricProblemUnderstanding,
	MetricInterventionFit,
	MetricEmotionImprovement,
}

// Label is the human-readable metric name.
func (m Metric) Label() string {
	switch m {
	case MetricCoherence:
		return "Koherensi"
	case MetricEmpathy:
		return "Empati"
	case MetricProblemUnderstanding:
		return "Memahami Masalah"
	case MetricInterventionFit:
		return "Kesesuaian Intervensi"
	case MetricEmotionImprovement:
		return "Perbaikan Emosi"
	}
	return string(m)
}

func ValidMetric(m Metric) bool { return slices.Contains(Metrics, m) }

const (
	MinScore = 1
	MaxScore = 5
)

// Issue vocabulary. The flagged issue marks unsafe or culturally
// inappropriate bot output and is surfaced with priority.
const (
	IssueFactualError    = "Faktual error"
	IssueRepetition      = "Pertanyaan berulang/Off Topic"
	IssueToneMismatch    = "Gaya Bahasa/Tone/Term tidak tepat"
	IssueHarmfulResponse = "[FLAG] Respon Berbahaya/Tidak sesuai kultur Indonesia"

	flagPrefix = "[FLAG]"
)

var Issues = []string{IssueFactualError, IssueRepetition, IssueToneMismatch, IssueHarmfulResponse}

func ValidIssue(issue string) bool { return slices.Contains(Issues, issue) }

// IsFlagIssue reports whether issue is a priority/safety flag.
func IsFlagIssue(issue string) bool { return strings.HasPrefix(issue, flagPrefix) }

// Evaluation is the dialog-level assessment. A zero score means unset.
type Evaluation struct {
	DialogID       string
	OverallQuality Quality
	Scores         map[Metric]int
	Issues         []string
	Notes          string
}

// NewEvaluation returns an empty form for dialogID.
func NewEvaluation(dialogID string) Evaluation {
	return Evaluation{DialogID: dialogID, Scores: make(map[Metric]int, len(Metrics))}
}

func (e Evaluation) Score(m Metric) int { return e.Scores[m] }

// MissingFields lists what keeps the evaluation from being submittable.
func (e Evaluation) MissingFields() []string {
	var missing []string
	if e.OverallQuality == "" {
		missing = append(missing, "overall quality is not selected")
	}
	for _, m := range Metrics {
		if v := e.Scores[m]; v < MinScore || v > MaxScore {
			missing = append(missing, fmt.Sprintf("%s must be between %d and %d", m, MinScore, MaxScore))
		}
	}
	return missing
}

func (e Evaluation) IsComplete() bool { return len(e.MissingFields()) == 0 }

// Validate returns a *ValidationError when the evaluation is incomplete.
func (e Evaluation) Validate() error {
	if missing := e.MissingFields(); len(missing) > 0 {
		return &ValidationError{Subject: "evaluation", Problems: missing}
	}
	return nil
}

// Flagged reports whether a priority issue is selected.
func (e Evaluation) Flagged() bool {
	return slices.ContainsFunc(e.Issues, IsFlagIssue)
}

func (e Evaluation) Clone() Evaluation {
	out := e
	out.Scores = make(map[Metric]int, len(e.Scores))
	for k, v := range e.Scores {
		out.Scores[k] = v
	}
	out.Issues = slices.Clone(e.Issues)
	return out
}

// EvaluationReconciler owns the evaluation form of the active dialog.
type EvaluationReconciler struct {
	store    Store
	selector *Selector

	mu        sync.Mutex
	form      Evaluation
	persisted bool
	loading   bool
}

func NewEvaluationReconciler(store Store, selector *Selector) *EvaluationReconciler {
	return &EvaluationReconciler{
		store:    store,
		selector: selector,
		form:     NewEvaluation(""),
	}
}

// Load resets the form for sel and fills it from the store. A nil evaluation
// with a nil error means none has been saved yet.
func (r *EvaluationReconciler) Load(ctx context.Context, sel Selection) (*Evaluation, error) {
	r.mu.Lock()
	if !r.selector.IsCurrent(sel) {
		r.mu.Unlock()
		return nil, ErrStaleSelection
	}
	r.form = NewEvaluation(sel.DialogID)
	r.persisted = false
	r.loading = true
	r.mu.Unlock()

	stored, err := r.store.GetEvaluation(ctx, sel.DialogID)
	if IsNotFound(err) {
		stored, err = nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.selector.IsCurrent(sel) {
		return nil, ErrStaleSelection
	}
	r.loading = false
	if err != nil {
		return nil, fmt.Errorf("load evaluation for %s: %w", sel.DialogID, err)
	}
	if stored == nil {
		return nil, nil
	}
	r.installLocked(sel.DialogID, *stored)
	out := r.form.Clone()
	return &out, nil
}

// Replace installs a canonical evaluation for sel, typically re-fetched after
// a submission. It reports false when sel is no longer current.
func (r *EvaluationReconciler) Replace(sel Selection, ev Evaluation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.selector.IsCurrent(sel) {
		return false
	}
	r.installLocked(sel.DialogID, ev)
	return true
}

func (r *EvaluationReconciler) installLocked(dialogID string, ev Evaluation) {
	form := NewEvaluation(dialogID)
	form.OverallQuality = ev.OverallQuality
	for _, m := range Metrics {
		form.Scores[m] = ev.Scores[m]
	}
	form.Issues = slices.Clone(ev.Issues)
	form.Notes = ev.Notes
	r.form = form
	r.persisted = true
}

// Current returns a copy of the form.
func (r *EvaluationReconciler) Current() Evaluation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.form.Clone()
}

// Persisted reports whether the form was filled from a stored evaluation.
func (r *EvaluationReconciler) Persisted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persisted
}

func (r *EvaluationReconciler) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

func (r *EvaluationReconciler) IsComplete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.form.IsComplete()
}

// SetMetric stores value for m. Unknown metrics are ignored; out-of-range
// values are kept and only block submission.
func (r *EvaluationReconciler) SetMetric(m Metric, value int) {
	if !ValidMetric(m) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.form.Scores[m] = value
}

func (r *EvaluationReconciler) SetOverallQuality(q Quality) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.form.OverallQuality = q
}

// ToggleIssue removes issue when selected and adds it otherwise.
func (r *EvaluationReconciler) ToggleIssue(issue string) {
	if issue == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.form.Issues, issue) {
		r.form.Issues = slices.DeleteFunc(r.form.Issues, func(i string) bool { return i == issue })
		return
	}
	r.form.Issues = append(r.form.Issues, issue)
}

func (r *EvaluationReconciler) SetNotes(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.form.Notes = text
}
