package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dialogeval/evaluator/internal/annotation"
	"github.com/dialogeval/evaluator/internal/models"
	"github.com/dialogeval/evaluator/internal/wire"
	"github.com/dialogeval/evaluator/pkg/logger"
	"github.com/dialogeval/evaluator/pkg/response"
	"gorm.io/gorm"
)

type EvaluationService struct {
	db *gorm.DB
}

func NewEvaluationService(db *gorm.DB) *EvaluationService {
	return &EvaluationService{db: db}
}

// Upsert creates or replaces the evaluation of req.DialogID. Scores outside
// 1-5, unknown qualities and unknown issues are rejected with 400.
func (s *EvaluationService) Upsert(ctx context.Context, req *wire.EvaluationRequest) (*models.Evaluation, annotation.UpsertAction, error) {
	if err := validateEvaluation(req); err != nil {
		return nil, "", err
	}

	var (
		saved  models.Evaluation
		action annotation.UpsertAction
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Dialog{}).Where("dialog_id = ?", req.DialogID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return response.NewNotFound("dialog not found")
		}

		err := tx.Where("dialog_id = ?", req.DialogID).First(&saved).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			action = annotation.ActionCreated
			saved = models.Evaluation{DialogID: req.DialogID}
		case err != nil:
			return err
		default:
			action = annotation.ActionUpdated
		}

		applyEvaluation(&saved, req)
		return tx.Save(&saved).Error
	})
	if err != nil {
		return nil, "", err
	}

	logger.Info().
		Str("dialog_id", saved.DialogID).
		Str("action", string(action)).
		Str("quality", saved.OverallQuality).
		Msg("evaluation stored")
	return &saved, action, nil
}

func (s *EvaluationService) Get(ctx context.Context, dialogID string) (*models.Evaluation, error) {
	var ev models.Evaluation
	err := s.db.WithContext(ctx).Where("dialog_id = ?", dialogID).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("no evaluation for this dialog yet")
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ReviewedIDs returns the ids of every dialog that has an evaluation.
func (s *EvaluationService) ReviewedIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.WithContext(ctx).Model(&models.Evaluation{}).Order("dialog_id").Pluck("dialog_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func validateEvaluation(req *wire.EvaluationRequest) error {
	ev := annotation.NewEvaluation(req.DialogID)
	ev.OverallQuality = annotation.Quality(req.OverallQuality)
	ev.Scores = req.Scores()

	var problems []string
	if err := ev.Validate(); err != nil {
		var ve *annotation.ValidationError
		if errors.As(err, &ve) {
			problems = append(problems, ve.Problems...)
		}
	}
	if ev.OverallQuality != "" && !annotation.ValidQuality(ev.OverallQuality) {
		problems = append(problems, fmt.Sprintf("unknown overall quality %q", req.OverallQuality))
	}
	for _, issue := range req.Issues {
		if !annotation.ValidIssue(issue) {
			problems = append(problems, fmt.Sprintf("unknown issue %q", issue))
		}
	}
	if len(problems) > 0 {
		return response.NewBadRequest(strings.Join(problems, "; "))
	}
	return nil
}

func applyEvaluation(dst *models.Evaluation, req *wire.EvaluationRequest) {
	scores := req.Scores()
	dst.OverallQuality = req.OverallQuality
	dst.Coherence = scores[annotation.MetricCoherence]
	dst.Empathy = scores[annotation.MetricEmpathy]
	dst.ProblemUnderstanding = scores[annotation.MetricProblemUnderstanding]
	dst.InterventionFit = scores[annotation.MetricInterventionFit]
	dst.EmotionImprovement = scores[annotation.MetricEmotionImprovement]
	dst.Issues = append([]string{}, req.Issues...)
	dst.Notes = req.Notes
}

// EvaluationToWire renders a stored evaluation for the API.
func EvaluationToWire(ev *models.Evaluation) wire.Evaluation {
	issues := []string(ev.Issues)
	if issues == nil {
		issues = []string{}
	}
	return wire.Evaluation{
		DialogID:             ev.DialogID,
		OverallQuality:       ev.OverallQuality,
		Coherence:            ev.Coherence,
		Empathy:              ev.Empathy,
		ProblemUnderstanding: ev.ProblemUnderstanding,
		InterventionFit:      ev.InterventionFit,
		EmotionImprovement:   ev.EmotionImprovement,
		Issues:               issues,
		Notes:                ev.Notes,
		CreatedAt:            ev.CreatedAt,
		UpdatedAt:            ev.UpdatedAt,
	}
}
