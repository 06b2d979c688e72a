package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dialogeval/evaluator/internal/models"
	"github.com/dialogeval/evaluator/pkg/logger"
	"github.com/dialogeval/evaluator/pkg/response"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

type DialogService struct {
	db *gorm.DB
}

func NewDialogService(db *gorm.DB) *DialogService {
	return &DialogService{db: db}
}

// List returns every dialog in upload order.
func (s *DialogService) List(ctx context.Context) ([]models.Dialog, error) {
	var dialogs []models.Dialog
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&dialogs).Error; err != nil {
		return nil, response.NewInternal("could not list dialogs", err)
	}
	return dialogs, nil
}

func (s *DialogService) Get(ctx context.Context, dialogID string) (*models.Dialog, error) {
	var dialog models.Dialog
	err := s.db.WithContext(ctx).Where("dialog_id = ?", dialogID).First(&dialog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, response.NewNotFound("dialog not found")
	}
	if err != nil {
		return nil, err
	}
	return &dialog, nil
}

// Upload parses and stores a transcript. filename, when given, must end in
// .json. An existing dialog id is rejected with 409.
func (s *DialogService) Upload(ctx context.Context, filename string, raw []byte) (*models.Dialog, error) {
	if filename != "" && !strings.EqualFold(filepath.Ext(filename), ".json") {
		return nil, response.NewBadRequest("file must be a .json file")
	}
	dialog, err := ParseTranscript(raw)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Dialog{}).Where("dialog_id = ?", dialog.DialogID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return response.NewConflict(fmt.Sprintf("dialog %s already exists", dialog.DialogID))
		}
		return tx.Create(dialog).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("dialog_id", dialog.DialogID).
		Int("messages", len(dialog.Messages)).
		Msg("dialog uploaded")
	return dialog, nil
}

// ParseTranscript turns an uploaded transcript into a Dialog. Turns come
// from "dialogue"; a speaker of "usr" is the user, anything else the bot.
// The id is taken from "ID" or "id" and generated when both are absent.
func ParseTranscript(raw []byte) (*models.Dialog, error) {
	if !gjson.ValidBytes(raw) {
		return nil, response.NewBadRequest("invalid JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, response.NewBadRequest("transcript must be a JSON object")
	}
	dialogue := root.Get("dialogue")
	if !dialogue.Exists() {
		return nil, response.NewBadRequest(`field "dialogue" not found`)
	}
	if !dialogue.IsArray() {
		return nil, response.NewBadRequest(`field "dialogue" must be an array`)
	}

	turns := dialogue.Array()
	messages := make([]models.DialogMessage, 0, len(turns))
	for i, turn := range turns {
		speaker, text := turn.Get("speaker"), turn.Get("text")
		if !speaker.Exists() || !text.Exists() {
			return nil, response.NewBadRequest(fmt.Sprintf(`message %d must have "speaker" and "text"`, i))
		}
		role := "bot"
		if speaker.String() == "usr" {
			role = "user"
		}
		messages = append(messages, models.DialogMessage{
			Role:      role,
			Content:   text.String(),
			Timestamp: turn.Get("timestamp").String(),
		})
	}

	id := firstString(root, "ID", "id")
	if id == "" {
		id = uuid.NewString()
	}

	return &models.Dialog{
		DialogID: id,
		Emotion:  firstString(root, "jenis_emosi", "emotion"),
		Topic:    firstString(root, "topik", "topic"),
		Scenario: firstString(root, "ringkasan_situasi", "scenario", "summary"),
		Messages: messages,
	}, nil
}

func firstString(root gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := root.Get(key); v.Exists() && v.Type != gjson.Null {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}
