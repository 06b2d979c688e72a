package models

import (
	"time"

	"gorm.io/datatypes"
)

// MessageFeedback is the reaction and tags for one message of a dialog.
// Rating is 1 (like), -1 (dislike) or NULL.
type MessageFeedback struct {
	ID           uint                       `gorm:"primaryKey" json:"id"`
	DialogID     string                     `gorm:"uniqueIndex:uix_dialog_message;size:255;not null" json:"dialog_id"`
	MessageIndex int                        `gorm:"uniqueIndex:uix_dialog_message;not null" json:"message_index"`
	Rating       *int                       `json:"rating"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

func (MessageFeedback) TableName() string { return "message_feedback" }
