package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dialogeval/evaluator/internal/models"
	"github.com/dialogeval/evaluator/internal/wire"
	"github.com/dialogeval/evaluator/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FeedbackService struct {
	db      *gorm.DB
	dialogs *DialogService
}

func NewFeedbackService(db *gorm.DB, dialogs *DialogService) *FeedbackService {
	return &FeedbackService{db: db, dialogs: dialogs}
}

// Upsert stores the feedback of one message, replacing any previous rating
// and tags. A rating of 0 or null clears it; blank tags are dropped.
func (s *FeedbackService) Upsert(ctx context.Context, req *wire.FeedbackRequest) (*models.MessageFeedback, error) {
	dialog, err := s.dialogs.Get(ctx, req.DialogID)
	if err != nil {
		return nil, err
	}
	if req.MessageIndex == nil {
		return nil, response.NewBadRequest("message_index is required")
	}
	idx := *req.MessageIndex
	if idx < 0 || idx >= len(dialog.Messages) {
		return nil, response.NewBadRequest(fmt.Sprintf("message_index %d out of range [0, %d)", idx, len(dialog.Messages)))
	}
	rating, err := normalizeRating(req.Rating)
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	fb := &models.MessageFeedback{
		DialogID:     req.DialogID,
		MessageIndex: idx,
		Rating:       rating,
		Tags:         tags,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dialog_id"}, {Name: "message_index"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "tags", "updated_at"}),
	}).Create(fb).Error
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// List returns the stored feedback of a dialog ordered by message index.
func (s *FeedbackService) List(ctx context.Context, dialogID string) ([]models.MessageFeedback, error) {
	var items []models.MessageFeedback
	err := s.db.WithContext(ctx).
		Where("dialog_id = ?", dialogID).
		Order("message_index ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func normalizeRating(v *int) (*int, error) {
	if v == nil || *v == 0 {
		return nil, nil
	}
	if *v != 1 && *v != -1 {
		return nil, response.NewBadRequest("rating must be 1, -1 or null")
	}
	r := *v
	return &r, nil
}

func FeedbackToWire(fb models.MessageFeedback) wire.FeedbackItem {
	tags := []string(fb.Tags)
	if tags == nil {
		tags = []string{}
	}
	return wire.FeedbackItem{
		MessageIndex: fb.MessageIndex,
		Rating:       fb.Rating,
		Tags:         tags,
		CreatedAt:    fb.CreatedAt,
	}
}
