// Package annotation holds the reviewer-side reconciliation core: the
// per-message feedback and dialog-level evaluation working state, the submit
// protocol, and review-status derivation for the dialog queue.
package annotation

import (
	"context"
	"strings"
)

// Role of a message author.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one turn of a dialog, addressed by its position.
type Message struct {
	Index     int
	Role      Role
	Content   string
	Timestamp string
}

// Dialog is a loaded transcript with its metadata.
type Dialog struct {
	ID       string
	Topic    string
	Emotion  string
	Scenario string
	Messages []Message
}

// ReviewStatus is derived from evaluation existence, never stored.
type ReviewStatus string

const (
	StatusUnseen   ReviewStatus = "unseen"
	StatusReviewed ReviewStatus = "reviewed"
)

// Pending reports whether the dialog still needs an evaluation.
func (s ReviewStatus) Pending() bool { return s != StatusReviewed }

// Label is the badge text shown in dialog lists.
func (s ReviewStatus) Label() string {
	if s == StatusReviewed {
		return "Reviewed"
	}
	return "Unseen"
}

// DialogSummary is a dialog list entry.
type DialogSummary struct {
	ID           string
	Topic        string
	Emotion      string
	MessageCount int
	Status       ReviewStatus
}

func (d DialogSummary) matches(term string) bool {
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(d.ID), term) ||
		strings.Contains(strings.ToLower(d.Topic), term)
}

// UpsertAction tells whether an upsert created or updated a record.
type UpsertAction string

const (
	ActionCreated UpsertAction = "created"
	ActionUpdated UpsertAction = "updated"
)

// Export formats understood by the store.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Store is the collaborator store the core reads from and writes to.
type Store interface {
	ListDialogs(ctx context.Context) ([]DialogSummary, error)
	GetDialog(ctx context.Context, dialogID string) (*Dialog, error)
	GetEvaluation(ctx context.Context, dialogID string) (*Evaluation, error)
	UpsertEvaluation(ctx context.Context, ev Evaluation) (UpsertAction, error)
	ListFeedback(ctx context.Context, dialogID string) ([]IndexedFeedback, error)
	UpsertFeedback(ctx context.Context, dialogID string, fb IndexedFeedback) error
	// ListReviewed returns the ids of every dialog that has an evaluation.
	// Stores without a batched status endpoint return a *NotFoundError.
	ListReviewed(ctx context.Context) ([]string, error)
	ExportDialog(ctx context.Context, dialogID, format string) ([]byte, error)
	UploadDialog(ctx context.Context, raw []byte) (string, error)
}

// Navigator is told when a dialog has been submitted. It reloads the list and
// returns the dialog that should become active next.
type Navigator interface {
	Completed(ctx context.Context, dialogID string) (next string, moved bool, err error)
}
