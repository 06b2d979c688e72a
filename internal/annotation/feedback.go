package annotation

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Rating is a reviewer reaction to a single message.
type Rating int

const (
	RatingNone Rating = iota
	RatingLike
	RatingDislike
)

func (r Rating) String() string {
	switch r {
	case RatingLike:
		return "like"
	case RatingDislike:
		return "dislike"
	default:
		return "none"
	}
}

// Wire returns the store encoding: 1 for like, -1 for dislike, nil for none.
func (r Rating) Wire() *int {
	var v int
	switch r {
	case RatingLike:
		v = 1
	case RatingDislike:
		v = -1
	default:
		return nil
	}
	return &v
}

// RatingFromWire decodes a stored rating. Nil, 0 and unknown values are none.
func RatingFromWire(v *int) Rating {
	if v == nil {
		return RatingNone
	}
	switch *v {
	case 1:
		return RatingLike
	case -1:
		return RatingDislike
	default:
		return RatingNone
	}
}

// Preset message tags. TagOther asks the reviewer for a free-text tag.
const (
	TagClarification     = "Klarifikasi"
	TagEmotionValidation = "Validasi Emosi"
	TagOther             = "Lainnya"
)

var PresetTags = []string{TagClarification, TagEmotionValidation, TagOther}

// Feedback is the reviewer's reaction and tags for one message.
type Feedback struct {
	Rating Rating
	Tags   []string
}

// IsSet reports whether the feedback carries anything worth persisting.
func (f Feedback) IsSet() bool {
	return f.Rating != RatingNone || len(f.Tags) > 0
}

func (f Feedback) HasTag(tag string) bool {
	return slices.Contains(f.Tags, tag)
}

func (f Feedback) clone() Feedback {
	return Feedback{Rating: f.Rating, Tags: slices.Clone(f.Tags)}
}

// IndexedFeedback is feedback addressed by message position.
type IndexedFeedback struct {
	Index int
	Feedback
}

// PendingFeedback returns the set entries of m ordered by message index.
func PendingFeedback(m map[int]Feedback) []IndexedFeedback {
	out := make([]IndexedFeedback, 0, len(m))
	for idx, fb := range m {
		if idx < 0 || !fb.IsSet() {
			continue
		}
		out = append(out, IndexedFeedback{Index: idx, Feedback: fb.clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// FeedbackReconciler owns the per-message working map of the active dialog.
type FeedbackReconciler struct {
	store    Store
	selector *Selector

	mu       sync.Mutex
	dialogID string
	items    map[int]Feedback
}

func NewFeedbackReconciler(store Store, selector *Selector) *FeedbackReconciler {
	return &FeedbackReconciler{
		store:    store,
		selector: selector,
		items:    make(map[int]Feedback),
	}
}

// Load replaces the working map with the store's feedback for sel. The map is
// emptied first, so nothing from a previous dialog survives a failed fetch.
func (r *FeedbackReconciler) Load(ctx context.Context, sel Selection) (map[int]Feedback, error) {
	r.mu.Lock()
	if !r.selector.IsCurrent(sel) {
		r.mu.Unlock()
		return nil, ErrStaleSelection
	}
	r.dialogID = sel.DialogID
	r.items = make(map[int]Feedback)
	r.mu.Unlock()

	stored, err := r.store.ListFeedback(ctx, sel.DialogID)
	if IsNotFound(err) {
		stored, err = nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.selector.IsCurrent(sel) {
		return nil, ErrStaleSelection
	}
	if err != nil {
		return map[int]Feedback{}, fmt.Errorf("load feedback for %s: %w", sel.DialogID, err)
	}
	for _, item := range stored {
		if item.Index < 0 || !item.IsSet() {
			continue
		}
		r.items[item.Index] = item.Feedback.clone()
	}
	return r.snapshotLocked(), nil
}

// DialogID is the dialog the working map belongs to.
func (r *FeedbackReconciler) DialogID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dialogID
}

// SetReaction sets kind on the message, or clears it when kind is already set.
func (r *FeedbackReconciler) SetReaction(index int, kind Rating) {
	if kind != RatingLike && kind != RatingDislike {
		return
	}
	r.update(index, func(fb *Feedback) {
		if fb.Rating == kind {
			fb.Rating = RatingNone
		} else {
			fb.Rating = kind
		}
	})
}

// ToggleTag removes tag when present and appends it otherwise.
func (r *FeedbackReconciler) ToggleTag(index int, tag string) {
	if tag == "" {
		return
	}
	r.update(index, func(fb *Feedback) {
		if fb.HasTag(tag) {
			fb.Tags = slices.DeleteFunc(fb.Tags, func(t string) bool { return t == tag })
			return
		}
		fb.Tags = append(fb.Tags, tag)
	})
}

// AddCustomTag appends trimmed free text as a tag. Blank text is ignored.
// Text equal to a preset or an existing tag is appended as is.
func (r *FeedbackReconciler) AddCustomTag(index int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	r.update(index, func(fb *Feedback) {
		fb.Tags = append(fb.Tags, text)
	})
}

// Feedback returns the message's working feedback (zero value when absent).
func (r *FeedbackReconciler) Feedback(index int) Feedback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[index].clone()
}

// Snapshot returns a deep copy of the working map.
func (r *FeedbackReconciler) Snapshot() map[int]Feedback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Pending returns the entries a submission would persist.
func (r *FeedbackReconciler) Pending() []IndexedFeedback {
	r.mu.Lock()
	defer r.mu.Unlock()
	return PendingFeedback(r.items)
}

func (r *FeedbackReconciler) update(index int, mutate func(*Feedback)) {
	if index < 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	fb := r.items[index].clone()
	mutate(&fb)
	if !fb.IsSet() {
		delete(r.items, index)
		return
	}
	r.items[index] = fb
}

func (r *FeedbackReconciler) snapshotLocked() map[int]Feedback {
	out := make(map[int]Feedback, len(r.items))
	for idx, fb := range r.items {
		out[idx] = fb.clone()
	}
	return out
}
