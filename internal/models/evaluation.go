package models

import (
	"time"

	"gorm.io/datatypes"
)

// Evaluation is the dialog-level assessment, one per dialog. Column names
// follow the reviewer vocabulary of the API.
type Evaluation struct {
	ID                   uint                       `gorm:"primaryKey" json:"id"`
	DialogID             string                     `gorm:"uniqueIndex;size:255;not null" json:"dialog_id"`
	OverallQuality       string                     `gorm:"column:kualitas_keseluruhan;size:50" json:"kualitas_keseluruhan"`
	Coherence            int                        `gorm:"column:koherensi" json:"koherensi"`
	Empathy              int                        `gorm:"column:empati" json:"empati"`
	ProblemUnderstanding int                        `gorm:"column:memahami_masalah" json:"memahami_masalah"`
	InterventionFit      int                        `gorm:"column:kesesuaian_intervensi" json:"kesesuaian_intervensi"`
	EmotionImprovement   int                        `gorm:"column:perbaikan_emosi" json:"perbaikan_emosi"`
	Issues               datatypes.JSONSlice[string] `gorm:"column:isu" json:"isu"`
	Notes                *string                    `gorm:"type:text" json:"notes"`
	CreatedAt            time.Time                  `json:"created_at"`
	UpdatedAt            time.Time                  `json:"updated_at"`
}

func (Evaluation) TableName() string { return "evaluations" }
