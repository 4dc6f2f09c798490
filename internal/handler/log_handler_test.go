package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/cache"
	"github.com/habitlog/internal/dateutil"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/models"
	"gorm.io/gorm"
)

func TestBuildHeatmapPayload(t *testing.T) {
	window, err := dateutil.NewRange("2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("NewRange returned error: %v", err)
	}

	habits := []db.Habit{
		{Model: gorm.Model{ID: 1}, Title: "晨跑", Color: "#e05d44"},
		{Model: gorm.Model{ID: 2}, Title: "阅读", Color: "#4f8dfd"},
	}
	logs := []models.Log{
		{ID: "1", HabitID: 1, Date: "2024-03-01", Completed: true},
		{ID: "2", HabitID: 2, Date: "2024-03-01", Completed: true},
		{ID: "3", HabitID: 1, Date: "2024-03-02", Completed: false}, // 未完成不进热力图
		{ID: "4", HabitID: 9, Date: "2024-03-03", Completed: true},  // 未知习惯被忽略
	}

	payload := buildHeatmapPayload(logs, habits, window, time.Now())

	days, ok := payload["days"].([]heatmapDay)
	if !ok {
		t.Fatalf("unexpected days type %T", payload["days"])
	}
	if len(days) != 1 {
		t.Fatalf("expected 1 active day, got %d", len(days))
	}
	if days[0].Date != "2024-03-01" || len(days[0].Habits) != 2 {
		t.Fatalf("unexpected day payload: %+v", days[0])
	}

	summary, ok := payload["summary"].(heatmapSummary)
	if !ok {
		t.Fatalf("unexpected summary type %T", payload["summary"])
	}
	if summary.TotalLogs != 2 || summary.ActiveDays != 1 || summary.HabitCount != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestHandleToggleErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{dateutil.ErrInvalidDate, http.StatusBadRequest},
		{cache.ErrUnauthorized, http.StatusUnauthorized},
		{cache.ErrWriteConflict, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		handleToggleError(c, tt.err)
		if w.Code != tt.status {
			t.Fatalf("error %v: expected status %d, got %d", tt.err, tt.status, w.Code)
		}
	}
}
