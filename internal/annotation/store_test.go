package annotation

import (
	"context"
	"sort"
	"sync"
)

// memStore is an in-memory Store with injectable failures and gates used to
// reorder asynchronous completions.
type memStore struct {
	mu          sync.Mutex
	dialogs     []Dialog
	evaluations map[string]Evaluation
	feedback    map[string]map[int]Feedback

	noBatchedStatus  bool
	listFeedbackErr  error
	getEvalErr       error
	upsertEvalErr    error
	upsertFeedbackFn func(dialogID string, fb IndexedFeedback) error

	// gates block reads for a dialog until the channel is closed.
	gates map[string]chan struct{}

	evalUpserts     []Evaluation
	evalActions     []UpsertAction
	feedbackUpserts []IndexedFeedback
}

func newMemStore(dialogs ...Dialog) *memStore {
	return &memStore{
		dialogs:     dialogs,
		evaluations: make(map[string]Evaluation),
		feedback:    make(map[string]map[int]Feedback),
		gates:       make(map[string]chan struct{}),
	}
}

func twoTurnDialog(id string) Dialog {
	return Dialog{
		ID:      id,
		Topic:   "Masalah dengan Orang Tua",
		Emotion: "marah",
		Messages: []Message{
			{Index: 0, Role: RoleUser, Content: "Aku kesal sekali"},
			{Index: 1, Role: RoleBot, Content: "Aku mengerti perasaanmu"},
		},
	}
}

func (s *memStore) gate(dialogID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[dialogID] = ch
	return ch
}

func (s *memStore) wait(ctx context.Context, dialogID string) {
	s.mu.Lock()
	ch := s.gates[dialogID]
	s.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func (s *memStore) ListDialogs(ctx context.Context) ([]DialogSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DialogSummary, 0, len(s.dialogs))
	for _, d := range s.dialogs {
		out = append(out, DialogSummary{ID: d.ID, Topic: d.Topic, Emotion: d.Emotion, MessageCount: len(d.Messages)})
	}
	return out, nil
}

func (s *memStore) GetDialog(ctx context.Context, dialogID string) (*Dialog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.dialogs {
		if d.ID == dialogID {
			d := d
			return &d, nil
		}
	}
	return nil, &NotFoundError{Resource: "dialog", ID: dialogID}
}

func (s *memStore) GetEvaluation(ctx context.Context, dialogID string) (*Evaluation, error) {
	s.wait(ctx, dialogID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getEvalErr != nil {
		return nil, s.getEvalErr
	}
	ev, ok := s.evaluations[dialogID]
	if !ok {
		return nil, &NotFoundError{Resource: "evaluation", ID: dialogID}
	}
	out := ev.Clone()
	return &out, nil
}

func (s *memStore) UpsertEvaluation(ctx context.Context, ev Evaluation) (UpsertAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertEvalErr != nil {
		return "", s.upsertEvalErr
	}
	action := ActionCreated
	if _, ok := s.evaluations[ev.DialogID]; ok {
		action = ActionUpdated
	}
	s.evaluations[ev.DialogID] = ev.Clone()
	s.evalUpserts = append(s.evalUpserts, ev.Clone())
	s.evalActions = append(s.evalActions, action)
	return action, nil
}

func (s *memStore) ListFeedback(ctx context.Context, dialogID string) ([]IndexedFeedback, error) {
	s.wait(ctx, dialogID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listFeedbackErr != nil {
		return nil, s.listFeedbackErr
	}
	stored, ok := s.feedback[dialogID]
	if !ok {
		return nil, &NotFoundError{Resource: "feedback", ID: dialogID}
	}
	out := make([]IndexedFeedback, 0, len(stored))
	for idx, fb := range stored {
		out = append(out, IndexedFeedback{Index: idx, Feedback: fb.clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *memStore) UpsertFeedback(ctx context.Context, dialogID string, fb IndexedFeedback) error {
	if s.upsertFeedbackFn != nil {
		if err := s.upsertFeedbackFn(dialogID, fb); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedback[dialogID] == nil {
		s.feedback[dialogID] = make(map[int]Feedback)
	}
	s.feedback[dialogID][fb.Index] = fb.Feedback.clone()
	s.feedbackUpserts = append(s.feedbackUpserts, IndexedFeedback{Index: fb.Index, Feedback: fb.Feedback.clone()})
	return nil
}

func (s *memStore) ListReviewed(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noBatchedStatus {
		return nil, &NotFoundError{Resource: "route", ID: "/dialogs/reviewed"}
	}
	ids := make([]string, 0, len(s.evaluations))
	for id := range s.evaluations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memStore) ExportDialog(ctx context.Context, dialogID, format string) ([]byte, error) {
	return []byte(format + ":" + dialogID), nil
}

func (s *memStore) UploadDialog(ctx context.Context, raw []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := "uploaded_" + string(rune('0'+len(s.dialogs)))
	s.dialogs = append(s.dialogs, Dialog{ID: id, Messages: []Message{{Index: 0, Role: RoleUser, Content: "hi"}}})
	return id, nil
}

func completeEvaluation(dialogID string, q Quality, score int) Evaluation {
	ev := NewEvaluation(dialogID)
	ev.OverallQuality = q
	for _, m := range Metrics {
		ev.Scores[m] = score
	}
	return ev
}
