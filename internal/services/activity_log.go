package services

import (
	"context"
	"time"

	"github.com/dialogeval/evaluator/internal/models"
	"github.com/dialogeval/evaluator/pkg/logger"
	"gorm.io/gorm"
)

type ActivityLogService struct {
	db *gorm.DB
}

func NewActivityLogService(db *gorm.DB) *ActivityLogService {
	return &ActivityLogService{db: db}
}

// Record stores entry. Failures are logged, never returned, so that auditing
// cannot fail a request.
func (s *ActivityLogService) Record(ctx context.Context, entry *models.ActivityLog) {
	if entry.Level == "" {
		entry.Level = "info"
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("activity not recorded")
	}
}

type ActivityListRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	DialogID string `form:"dialog_id"`
	Level    string `form:"level"`
}

type ActivityListResponse struct {
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Items    []models.ActivityLog `json:"items"`
}

// List returns activity newest first.
func (s *ActivityLogService) List(ctx context.Context, req *ActivityListRequest) (*ActivityListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.ActivityLog{})
	if req.DialogID != "" {
		query = query.Where("dialog_id = ?", req.DialogID)
	}
	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.ActivityLog
	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}

	return &ActivityListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// Cleanup deletes activity older than retention. It returns the number of
// deleted rows.
func (s *ActivityLogService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	result := s.db.WithContext(ctx).Where("created_at < ?", time.Now().Add(-retention)).Delete(&models.ActivityLog{})
	return result.RowsAffected, result.Error
}
