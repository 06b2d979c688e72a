package annotation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dialogeval/evaluator/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// SessionConfig tunes the store traffic of a reviewer session.
type SessionConfig struct {
	SubmitConcurrency int
	StatusFanout      int
}

// LoadReport collects what went wrong while opening a dialog. Failures leave
// the affected part empty; they are reported here instead of aborting.
type LoadReport struct {
	Selection     Selection
	DialogErr     error
	FeedbackErr   error
	EvaluationErr error
	Stale         bool
}

// Err joins the load failures, or returns nil.
func (r *LoadReport) Err() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.DialogErr, r.FeedbackErr, r.EvaluationErr)
}

// Session wires the reconcilers, the queue and the coordinator for a single
// reviewer working on one dialog at a time.
type Session struct {
	store       Store
	selector    *Selector
	queue       *Queue
	feedback    *FeedbackReconciler
	evaluation  *EvaluationReconciler
	coordinator *Coordinator

	mu     sync.Mutex
	dialog *Dialog
}

func NewSession(store Store, cfg SessionConfig) *Session {
	selector := NewSelector()
	queue := NewQueue(store, WithStatusFanout(cfg.StatusFanout))
	evaluation := NewEvaluationReconciler(store, selector)
	return &Session{
		store:      store,
		selector:   selector,
		queue:      queue,
		feedback:   NewFeedbackReconciler(store, selector),
		evaluation: evaluation,
		coordinator: NewCoordinator(store, evaluation,
			WithConcurrency(cfg.SubmitConcurrency),
			WithNavigator(queue),
		),
	}
}

func (s *Session) Queue() *Queue { return s.queue }
func (s *Session) Feedback() *FeedbackReconciler { return s.feedback }
func (s *Session) Evaluation() *EvaluationReconciler { return s.evaluation }
func (s *Session) Selection() Selection { return s.selector.Current() }
func (s *Session) IsCurrent(sel Selection) bool { return s.selector.IsCurrent(sel) }

// Dialog returns the transcript of the active dialog, nil while loading.
func (s *Session) Dialog() *Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialog
}

// Start loads the dialog list and opens the selected dialog, if any.
func (s *Session) Start(ctx context.Context) (*LoadReport, error) {
	if err := s.queue.Reload(ctx); err != nil {
		return nil, err
	}
	id := s.queue.Selected()
	if id == "" {
		return nil, nil
	}
	return s.Open(ctx, id), nil
}

// Open switches to dialogID and loads its transcript, feedback and
// evaluation concurrently. Results for an older selection are dropped.
func (s *Session) Open(ctx context.Context, dialogID string) *LoadReport {
	sel := s.selector.Select(dialogID)
	s.queue.Select(dialogID)
	s.mu.Lock()
	s.dialog = nil
	s.mu.Unlock()

	report := &LoadReport{Selection: sel}
	var g errgroup.Group
	g.Go(func() error {
		d, err := s.store.GetDialog(ctx, dialogID)
		if err != nil {
			report.DialogErr = fmt.Errorf("load dialog %s: %w", dialogID, err)
			return nil
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.selector.IsCurrent(sel) {
			s.dialog = d
		}
		return nil
	})
	g.Go(func() error {
		_, err := s.feedback.Load(ctx, sel)
		if !errors.Is(err, ErrStaleSelection) {
			report.FeedbackErr = err
		}
		return nil
	})
	g.Go(func() error {
		_, err := s.evaluation.Load(ctx, sel)
		if !errors.Is(err, ErrStaleSelection) {
			report.EvaluationErr = err
		}
		return nil
	})
	_ = g.Wait()

	report.Stale = !s.selector.IsCurrent(sel)
	if err := report.Err(); err != nil && !report.Stale {
		logger.Warn().Err(err).Str("dialog_id", dialogID).Msg("dialog opened with errors")
	}
	return report
}

// Submit saves the active dialog's evaluation and feedback. When the queue
// advances, the next dialog is opened and its load errors become warnings.
func (s *Session) Submit(ctx context.Context) (*SubmitResult, error) {
	sel := s.selector.Current()
	if sel.DialogID == "" {
		return nil, &ValidationError{Subject: "submission", Problems: []string{"no dialog selected"}}
	}
	result, err := s.coordinator.Submit(ctx, sel, s.evaluation.Current(), s.feedback.Snapshot())
	if err != nil {
		return nil, err
	}
	if result.Advanced && result.NextDialogID != sel.DialogID {
		if err := s.Open(ctx, result.NextDialogID).Err(); err != nil {
			result.Warnings = append(result.Warnings, err)
		}
	}
	return result, nil
}

// Skip opens the next dialog in list order. It returns nil when there is
// nowhere to move.
func (s *Session) Skip(ctx context.Context) *LoadReport {
	next, moved := s.queue.Skip()
	if !moved {
		return nil
	}
	return s.Open(ctx, next)
}

// Upload validates and sends a transcript, refreshes the list and opens the
// new dialog.
func (s *Session) Upload(ctx context.Context, raw []byte) (string, *LoadReport, error) {
	if err := ValidateTranscript(raw); err != nil {
		return "", nil, err
	}
	id, err := s.store.UploadDialog(ctx, raw)
	if err != nil {
		return "", nil, fmt.Errorf("upload dialog: %w", err)
	}
	if err := s.queue.Reload(ctx); err != nil {
		logger.Warn().Err(err).Msg("dialog list not refreshed after upload")
	}
	return id, s.Open(ctx, id), nil
}

// Export returns the active dialog rendered by the store.
func (s *Session) Export(ctx context.Context, format string) ([]byte, error) {
	sel := s.selector.Current()
	if sel.DialogID == "" {
		return nil, &ValidationError{Subject: "export", Problems: []string{"no dialog selected"}}
	}
	if format != FormatJSON && format != FormatCSV {
		return nil, &ValidationError{Subject: "export", Problems: []string{fmt.Sprintf("unknown format %q", format)}}
	}
	return s.store.ExportDialog(ctx, sel.DialogID, format)
}
