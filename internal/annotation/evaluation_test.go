package annotation

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestEvaluation_IsComplete(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Evaluation)
		complete bool
	}{
		{name: "all fields set", mutate: func(*Evaluation) {}, complete: true},
		{name: "quality missing", mutate: func(e *Evaluation) { e.OverallQuality = "" }, complete: false},
		{name: "one metric unset", mutate: func(e *Evaluation) { delete(e.Scores, MetricEmpathy) }, complete: false},
		{name: "metric zero", mutate: func(e *Evaluation) { e.Scores[MetricCoherence] = 0 }, complete: false},
		{name: "metric above range", mutate: func(e *Evaluation) { e.Scores[MetricEmotionImprovement] = 6 }, complete: false},
		{name: "metric below range", mutate: func(e *Evaluation) { e.Scores[MetricInterventionFit] = -1 }, complete: false},
		{name: "bounds accepted", mutate: func(e *Evaluation) {
			e.Scores[MetricCoherence] = MinScore
			e.Scores[MetricEmpathy] = MaxScore
		}, complete: true},
		{name: "issues and notes are optional", mutate: func(e *Evaluation) {
			e.Issues = nil
			e.Notes = ""
		}, complete: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := completeEvaluation("train_0", QualityGood, 3)
			tt.mutate(&ev)
			if got := ev.IsComplete(); got != tt.complete {
				t.Errorf("IsComplete() = %v, expected %v (missing: %v)", got, tt.complete, ev.MissingFields())
			}
			err := ev.Validate()
			var ve *ValidationError
			if tt.complete && err != nil {
				t.Errorf("Validate() error = %v, expected nil", err)
			}
			if !tt.complete && !errors.As(err, &ve) {
				t.Errorf("Validate() error = %v, expected *ValidationError", err)
			}
		})
	}
}

func TestEvaluation_Flagged(t *testing.T) {
	ev := NewEvaluation("x")
	if ev.Flagged() {
		t.Error("empty evaluation should not be flagged")
	}
	ev.Issues = []string{IssueRepetition}
	if ev.Flagged() {
		t.Error("ordinary issue should not flag the evaluation")
	}
	ev.Issues = append(ev.Issues, IssueHarmfulResponse)
	if !ev.Flagged() {
		t.Error("harmful response issue should flag the evaluation")
	}
}

func TestEvaluationReconciler_Mutations(t *testing.T) {
	selector := NewSelector()
	r := NewEvaluationReconciler(newMemStore(), selector)
	sel := selector.Select("d1")
	if _, err := r.Load(context.Background(), sel); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	r.SetMetric(Metric("unknown"), 5)
	if _, ok := r.Current().Scores[Metric("unknown")]; ok {
		t.Error("unknown metric should be ignored")
	}

	r.SetOverallQuality(QualityExcellent)
	for _, m := range Metrics {
		r.SetMetric(m, 5)
	}
	if !r.IsComplete() {
		t.Errorf("form should be complete, missing %v", r.Current().MissingFields())
	}

	r.ToggleIssue(IssueToneMismatch)
	r.ToggleIssue(IssueFactualError)
	r.ToggleIssue(IssueToneMismatch)
	if got := r.Current().Issues; !slices.Equal(got, []string{IssueFactualError}) {
		t.Errorf("Issues = %v, expected [%s]", got, IssueFactualError)
	}

	r.SetNotes("respons terlalu singkat")
	if got := r.Current().Notes; got != "respons terlalu singkat" {
		t.Errorf("Notes = %q", got)
	}
	if r.Persisted() {
		t.Error("form should not be marked persisted before any save")
	}
}

func TestEvaluationReconciler_LoadNotFoundResetsForm(t *testing.T) {
	store := newMemStore()
	store.evaluations["a"] = completeEvaluation("a", QualityFair, 2)

	selector := NewSelector()
	r := NewEvaluationReconciler(store, selector)
	if _, err := r.Load(context.Background(), selector.Select("a")); err != nil {
		t.Fatalf("Load(a) error = %v", err)
	}
	if !r.Persisted() || r.Current().OverallQuality != QualityFair {
		t.Fatalf("form = %+v, expected dialog a's stored evaluation", r.Current())
	}

	got, err := r.Load(context.Background(), selector.Select("b"))
	if err != nil || got != nil {
		t.Fatalf("Load(b) = %v, %v, expected nil, nil", got, err)
	}
	cur := r.Current()
	if cur.DialogID != "b" || cur.OverallQuality != "" || len(cur.Issues) != 0 || cur.Notes != "" {
		t.Errorf("form = %+v, expected an empty form for b", cur)
	}
	for _, m := range Metrics {
		if cur.Score(m) != 0 {
			t.Errorf("score %s = %d, expected unset", m, cur.Score(m))
		}
	}
	if r.Persisted() || r.Loading() {
		t.Error("form for b should be neither persisted nor loading")
	}
}

func TestEvaluationReconciler_LoadTransportFailure(t *testing.T) {
	store := newMemStore()
	store.getEvalErr = &TransportError{Op: "get evaluation", StatusCode: 502}

	selector := NewSelector()
	r := NewEvaluationReconciler(store, selector)
	_, err := r.Load(context.Background(), selector.Select("a"))
	if !IsTransport(err) {
		t.Fatalf("Load() error = %v, expected a transport error", err)
	}
	if r.Loading() {
		t.Error("loading flag should be cleared after a failure")
	}
	if r.Current().DialogID != "a" || r.Current().OverallQuality != "" {
		t.Errorf("form = %+v, expected the reset form", r.Current())
	}
}

func TestEvaluationReconciler_ReorderedCompletion(t *testing.T) {
	store := newMemStore()
	store.evaluations["a"] = completeEvaluation("a", QualityPoor, 1)
	store.evaluations["b"] = completeEvaluation("b", QualityExcellent, 5)
	release := store.gate("a")

	selector := NewSelector()
	r := NewEvaluationReconciler(store, selector)

	selA := selector.Select("a")
	done := make(chan error, 1)
	go func() {
		_, err := r.Load(context.Background(), selA)
		done <- err
	}()
	waitUntil(t, func() bool { return r.Loading() && r.Current().DialogID == "a" })

	selB := selector.Select("b")
	if _, err := r.Load(context.Background(), selB); err != nil {
		t.Fatalf("Load(b) error = %v", err)
	}
	close(release)

	if err := <-done; !errors.Is(err, ErrStaleSelection) {
		t.Errorf("Load(a) error = %v, expected ErrStaleSelection", err)
	}
	cur := r.Current()
	if cur.DialogID != "b" || cur.OverallQuality != QualityExcellent || cur.Score(MetricEmpathy) != 5 {
		t.Errorf("form = %+v, expected dialog b's evaluation", cur)
	}
}

func TestEvaluationReconciler_ReplaceRejectsStaleSelection(t *testing.T) {
	selector := NewSelector()
	r := NewEvaluationReconciler(newMemStore(), selector)
	old := selector.Select("a")
	selector.Select("b")

	if r.Replace(old, completeEvaluation("a", QualityGood, 4)) {
		t.Error("Replace() should refuse a stale selection")
	}
	if r.Current().OverallQuality != "" {
		t.Errorf("form = %+v, expected untouched", r.Current())
	}
}
