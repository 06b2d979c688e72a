package annotation

import (
	"context"
	"fmt"
	"strings"

	"github.com/dialogeval/evaluator/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultSubmitConcurrency bounds parallel feedback writes per submission.
const DefaultSubmitConcurrency = 4

// SubmitResult describes a submission that saved its evaluation. Warnings
// collect the non-fatal failures of the later steps.
type SubmitResult struct {
	DialogID     string
	Action       UpsertAction
	Saved        []int // message indexes whose feedback was written
	Partial      *PartialPersistError
	Canonical    *Evaluation
	NextDialogID string
	Advanced     bool
	Warnings     []error
}

// Message is the user-facing summary of the submission.
func (r *SubmitResult) Message() string {
	var b strings.Builder
	if r.Action == ActionUpdated {
		b.WriteString("Evaluation updated")
	} else {
		b.WriteString("Evaluation saved")
	}
	if r.Partial != nil {
		fmt.Fprintf(&b, "; feedback not saved for messages %s", joinInts(r.Partial.FailedIndexes()))
	}
	return b.String()
}

// Coordinator runs the submit protocol: evaluation first, then every pending
// feedback item independently, then a canonical re-fetch and navigation.
type Coordinator struct {
	store       Store
	evaluations *EvaluationReconciler
	navigator   Navigator
	concurrency int
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithConcurrency bounds parallel feedback writes. n <= 0 means unbounded.
func WithConcurrency(n int) CoordinatorOption {
	return func(c *Coordinator) { c.concurrency = n }
}

// WithNavigator sets the list layer notified after a submission.
func WithNavigator(n Navigator) CoordinatorOption {
	return func(c *Coordinator) { c.navigator = n }
}

func NewCoordinator(store Store, evaluations *EvaluationReconciler, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:       store,
		evaluations: evaluations,
		concurrency: DefaultSubmitConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit persists ev and the set entries of feedback for sel's dialog.
// An incomplete evaluation fails with *ValidationError before any store call;
// a failed evaluation write aborts the submission. Feedback, re-fetch and
// navigation failures are reported on the result.
func (c *Coordinator) Submit(ctx context.Context, sel Selection, ev Evaluation, feedback map[int]Feedback) (*SubmitResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	dialogID := sel.DialogID
	ev = ev.Clone()
	ev.DialogID = dialogID

	action, err := c.store.UpsertEvaluation(ctx, ev)
	if err != nil {
		logger.Error().Err(err).Str("dialog_id", dialogID).Msg("evaluation not saved")
		return nil, fmt.Errorf("save evaluation for %s: %w", dialogID, err)
	}
	logger.Info().Str("dialog_id", dialogID).Str("action", string(action)).Msg("evaluation saved")

	result := &SubmitResult{DialogID: dialogID, Action: action}

	if partial := c.persistFeedback(ctx, dialogID, feedback, result); partial != nil {
		result.Partial = partial
		result.Warnings = append(result.Warnings, partial)
	}

	c.refetch(ctx, sel, result)

	if c.navigator != nil {
		next, moved, err := c.navigator.Completed(ctx, dialogID)
		if err != nil {
			logger.Warn().Err(err).Str("dialog_id", dialogID).Msg("dialog list not refreshed after submit")
			result.Warnings = append(result.Warnings, fmt.Errorf("refresh dialog list: %w", err))
		}
		result.NextDialogID, result.Advanced = next, moved
	}
	return result, nil
}

func (c *Coordinator) persistFeedback(ctx context.Context, dialogID string, feedback map[int]Feedback, result *SubmitResult) *PartialPersistError {
	pending := PendingFeedback(feedback)
	if len(pending) == 0 {
		return nil
	}

	errs := make([]error, len(pending))
	var g errgroup.Group
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for i, item := range pending {
		g.Go(func() error {
			errs[i] = c.store.UpsertFeedback(ctx, dialogID, item)
			return nil
		})
	}
	_ = g.Wait()

	var partial *PartialPersistError
	for i, item := range pending {
		if errs[i] == nil {
			result.Saved = append(result.Saved, item.Index)
			continue
		}
		logger.Warn().Err(errs[i]).
			Str("dialog_id", dialogID).
			Int("message_index", item.Index).
			Msg("feedback not saved")
		if partial == nil {
			partial = &PartialPersistError{DialogID: dialogID}
		}
		partial.Failures = append(partial.Failures, FeedbackFailure{Index: item.Index, Err: errs[i]})
	}
	return partial
}

// refetch installs the store's copy of the evaluation. When the store has
// none or cannot be reached, the submitted values stay in the form.
func (c *Coordinator) refetch(ctx context.Context, sel Selection, result *SubmitResult) {
	saved, err := c.store.GetEvaluation(ctx, sel.DialogID)
	switch {
	case err == nil && saved != nil:
		canonical := saved.Clone()
		canonical.DialogID = sel.DialogID
		result.Canonical = &canonical
	case err != nil && !IsNotFound(err):
		logger.Warn().Err(err).Str("dialog_id", sel.DialogID).Msg("evaluation not re-fetched after submit")
		result.Warnings = append(result.Warnings, fmt.Errorf("re-fetch evaluation: %w", err))
		return
	default:
		return
	}
	if c.evaluations != nil && !c.evaluations.Replace(sel, *result.Canonical) {
		logger.Debug().Str("dialog_id", sel.DialogID).Msg("selection changed during submit, canonical evaluation not installed")
	}
}
