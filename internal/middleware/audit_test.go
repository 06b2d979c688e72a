package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dialogeval/evaluator/internal/models"
	"github.com/dialogeval/evaluator/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newActivityService(t *testing.T) *services.ActivityLogService {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return services.NewActivityLogService(db)
}

func TestActivityLog_RecordsWrites(t *testing.T) {
	activity := newActivityService(t)

	router := gin.New()
	router.Use(ActivityLog(activity))
	router.POST("/evaluate", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0})
	})
	router.POST("/upload", func(c *gin.Context) {
		c.Set(DialogIDKey, "train_9")
		c.JSON(http.StatusConflict, gin.H{"code": 409})
	})
	router.GET("/dialogs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0})
	})

	requests := []*http.Request{
		httptest.NewRequest("POST", "/evaluate", strings.NewReader(`{"dialog_id":"train_0","koherensi":4}`)),
		httptest.NewRequest("POST", "/upload", strings.NewReader(`{}`)),
		httptest.NewRequest("GET", "/dialogs", nil),
	}
	for _, req := range requests {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	resp, err := activity.List(context.Background(), &services.ActivityListRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Fatalf("recorded %d entries, expected 2 (reads are not audited)", resp.Total)
	}

	byAction := map[string]models.ActivityLog{}
	for _, item := range resp.Items {
		byAction[item.Action] = item
	}
	ev := byAction["POST /evaluate"]
	if ev.DialogID != "train_0" || ev.Level != "info" || !strings.Contains(ev.Extra, "koherensi") {
		t.Errorf("evaluate entry = %+v", ev)
	}
	up := byAction["POST /upload"]
	if up.DialogID != "train_9" || up.Level != "warning" || up.Status != http.StatusConflict {
		t.Errorf("upload entry = %+v", up)
	}
}

func TestActivityLog_BodyStillReadable(t *testing.T) {
	activity := newActivityService(t)

	router := gin.New()
	router.Use(ActivityLog(activity))
	var got struct {
		DialogID string `json:"dialog_id"`
	}
	router.POST("/feedback", func(c *gin.Context) {
		if err := c.ShouldBindJSON(&got); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/feedback", strings.NewReader(`{"dialog_id":"train_1"}`)))
	if w.Code != http.StatusOK || got.DialogID != "train_1" {
		t.Errorf("handler saw %q with status %d", got.DialogID, w.Code)
	}
}

func TestTruncateAndLevel(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc...[truncated]" {
		t.Errorf("truncate() = %q", got)
	}
	tests := map[int]string{200: "info", 201: "info", 404: "warning", 500: "error"}
	for status, expected := range tests {
		if got := levelFor(status); got != expected {
			t.Errorf("levelFor(%d) = %q, expected %q", status, got, expected)
		}
	}
}
