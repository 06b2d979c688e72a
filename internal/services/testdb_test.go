package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dialogeval/evaluator/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory sqlite database with every table.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

const sampleTranscript = `{
  "ID": "train_0",
  "jenis_emosi": "marah",
  "topik": "Masalah dengan Orang Tua",
  "ringkasan_situasi": "Pengguna bertengkar dengan ayahnya.",
  "dialogue": [
    {"speaker": "usr", "text": "Aku kesal sekali sama ayahku", "timestamp": "10:00"},
    {"speaker": "sys", "text": "Aku mengerti, boleh ceritakan lebih lanjut?"},
    {"speaker": "usr", "text": "Dia tidak pernah mendengarkan"}
  ]
}`

func seedDialog(t *testing.T, db *gorm.DB) *models.Dialog {
	t.Helper()
	d, err := ParseTranscript([]byte(sampleTranscript))
	if err != nil {
		t.Fatalf("ParseTranscript() error = %v", err)
	}
	if err := db.Create(d).Error; err != nil {
		t.Fatalf("create dialog: %v", err)
	}
	return d
}

func intPtr(v int) *int { return &v }
