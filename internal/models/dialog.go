package models

import (
	"time"

	"gorm.io/datatypes"
)

// DialogMessage is one stored turn. Its position in Dialog.Messages is the
// message index used by feedback.
type DialogMessage struct {
	Role      string `json:"role"` // user, bot
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Dialog is an uploaded transcript.
type Dialog struct {
	ID        uint                              `gorm:"primaryKey" json:"-"`
	DialogID  string                            `gorm:"uniqueIndex;size:255;not null" json:"dialog_id"`
	Emotion   string                            `gorm:"size:100" json:"emotion"`
	Topic     string                            `gorm:"size:255;index" json:"topic"`
	Scenario  string                            `gorm:"type:text" json:"scenario"`
	Messages  datatypes.JSONSlice[DialogMessage] `json:"messages"`
	CreatedAt time.Time                         `json:"created_at"`
}

func (Dialog) TableName() string { return "dialogs" }
