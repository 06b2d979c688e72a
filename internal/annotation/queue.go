package annotation

import (
	"context"
	"fmt"
	"sync"

	"github.com/dialogeval/evaluator/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// DefaultStatusFanout bounds per-dialog evaluation lookups when the store has
// no batched status endpoint.
const DefaultStatusFanout = 8

// Queue is the dialog list with derived review status and the active
// selection. Statuses are recomputed from the store on every Reload.
type Queue struct {
	store  Store
	fanout int

	mu       sync.Mutex
	items    []DialogSummary
	selected string
}

// QueueOption customizes a Queue.
type QueueOption func(*Queue)

// WithStatusFanout bounds the per-dialog status fallback. n <= 0 means unbounded.
func WithStatusFanout(n int) QueueOption {
	return func(q *Queue) { q.fanout = n }
}

func NewQueue(store Store, opts ...QueueOption) *Queue {
	q := &Queue{store: store, fanout: DefaultStatusFanout}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Reload fetches the dialog list and derives every status. On failure the
// previous list is kept and the error returned. When nothing is selected yet
// the first dialog becomes the selection.
func (q *Queue) Reload(ctx context.Context) error {
	dialogs, err := q.store.ListDialogs(ctx)
	if err != nil {
		return fmt.Errorf("list dialogs: %w", err)
	}
	reviewed, err := q.reviewedSet(ctx, dialogs)
	if err != nil {
		return fmt.Errorf("derive review status: %w", err)
	}

	items := make([]DialogSummary, len(dialogs))
	for i, d := range dialogs {
		d.Status = StatusUnseen
		if reviewed[d.ID] {
			d.Status = StatusReviewed
		}
		items[i] = d
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = items
	if q.selected == "" && len(items) > 0 {
		q.selected = items[0].ID
	}
	return nil
}

func (q *Queue) reviewedSet(ctx context.Context, dialogs []DialogSummary) (map[string]bool, error) {
	ids, err := q.store.ListReviewed(ctx)
	if err == nil {
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		return set, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	logger.Debug().Int("dialogs", len(dialogs)).Msg("batched status unavailable, checking evaluations per dialog")
	found := make([]bool, len(dialogs))
	g, gctx := errgroup.WithContext(ctx)
	if q.fanout > 0 {
		g.SetLimit(q.fanout)
	}
	for i, d := range dialogs {
		g.Go(func() error {
			ev, err := q.store.GetEvaluation(gctx, d.ID)
			if IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			found[i] = ev != nil
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(dialogs))
	for i, d := range dialogs {
		if found[i] {
			set[d.ID] = true
		}
	}
	return set, nil
}

// Items returns a copy of the list.
func (q *Queue) Items() []DialogSummary {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DialogSummary, len(q.items))
	copy(out, q.items)
	return out
}

// Filter returns the dialogs whose id or topic contains term, ignoring case.
func (q *Queue) Filter(term string) []DialogSummary {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []DialogSummary
	for _, d := range q.items {
		if term == "" || d.matches(term) {
			out = append(out, d)
		}
	}
	return out
}

// Progress returns the number of reviewed dialogs and the total.
func (q *Queue) Progress() (reviewed, total int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, d := range q.items {
		if d.Status == StatusReviewed {
			reviewed++
		}
	}
	return reviewed, len(q.items)
}

func (q *Queue) Select(dialogID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.selected = dialogID
}

func (q *Queue) Selected() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.selected
}

// AdvanceFromCurrent selects the next dialog that is not reviewed, scanning
// forward from the selection and wrapping to the start. The selection is left
// unchanged when every other dialog is reviewed.
func (q *Queue) AdvanceFromCurrent() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	cur := q.indexLocked(q.selected)
	for step := 1; step <= n; step++ {
		j := (cur + step) % n
		if j == cur {
			break
		}
		if q.items[j].Status.Pending() {
			q.selected = q.items[j].ID
			return q.selected, true
		}
	}
	return q.selected, false
}

// Skip selects the next dialog regardless of status, wrapping to the first.
func (q *Queue) Skip() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	if n == 0 {
		return q.selected, false
	}
	next := q.items[(q.indexLocked(q.selected)+1)%n].ID
	if next == q.selected {
		return q.selected, false
	}
	q.selected = next
	return next, true
}

// Completed reloads the list and advances past dialogID. It implements
// Navigator for the submission coordinator.
func (q *Queue) Completed(ctx context.Context, dialogID string) (string, bool, error) {
	q.Select(dialogID)
	if err := q.Reload(ctx); err != nil {
		return dialogID, false, err
	}
	next, moved := q.AdvanceFromCurrent()
	return next, moved, nil
}

func (q *Queue) indexLocked(dialogID string) int {
	for i, d := range q.items {
		if d.ID == dialogID {
			return i
		}
	}
	return -1
}
