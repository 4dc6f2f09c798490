package handler

import (
	"cmp"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/cache"
	"github.com/habitlog/internal/dateutil"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/models"
)

type togglePayload struct {
	Date      string `json:"date"`
	Completed *bool  `json:"completed"`
}

type heatmapHabit struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Color string `json:"color"`
}

type heatmapDay struct {
	Date   string         `json:"date"`
	Habits []heatmapHabit `json:"habits"`
}

type heatmapSummary struct {
	TotalLogs  int `json:"total_logs"`
	ActiveDays int `json:"active_days"`
	HabitCount int `json:"habit_count"`
}

// GetHabitLogs 返回某习惯的打卡记录，支持 start/end 窗口或 today=1
func (a *API) GetHabitLogs(c *gin.Context) {
	userID := currentUserID(c)
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	// 归属校验，避免读到他人习惯的数据
	if _, err := a.habits.Get(userID, habitID); err != nil {
		handleHabitError(c, err)
		return
	}

	sel, ok := buildSelector(c, cache.Selector{HabitID: habitID, UserID: userID})
	if !ok {
		return
	}

	logs, err := a.logs.Logs(c.Request.Context(), sel)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": serializeLogs(logs)})
}

// GetUserLogs 返回当前用户全部习惯的打卡记录，支持同样的窗口参数
func (a *API) GetUserLogs(c *gin.Context) {
	userID := currentUserID(c)

	sel, ok := buildSelector(c, cache.Selector{UserID: userID})
	if !ok {
		return
	}

	logs, err := a.logs.Logs(c.Request.Context(), sel)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取打卡记录失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": serializeLogs(logs)})
}

// ToggleHabitLog 对指定习惯执行一次打卡翻转。
// date 省略时取今天，completed 省略时对当前已知状态取反；
// 乐观变更在持久写入前对所有匹配视图生效，写入失败后整体回滚并返回错误。
func (a *API) ToggleHabitLog(c *gin.Context) {
	userID := currentUserID(c)
	habitID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	if _, err := a.habits.Get(userID, habitID); err != nil {
		handleHabitError(c, err)
		return
	}

	var payload togglePayload
	if strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return
		}
	} else {
		payload.Date = c.PostForm("date")
	}

	logEntry, err := a.logs.Toggle(c.Request.Context(), userID, habitID, payload.Date, payload.Completed)
	if err != nil {
		handleToggleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"log": serializeLog(logEntry)})
}

// GetHeatmap 返回过去一年当前用户的打卡热力图
func (a *API) GetHeatmap(c *gin.Context) {
	userID := currentUserID(c)

	now := time.Now().In(time.Local)
	end := dateutil.Midnight(now)
	start := end.AddDate(0, 0, -364)

	window, err := dateutil.NewRange(dateutil.ToKey(start), dateutil.ToKey(end))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "生成热力图区间失败")
		return
	}

	logs, err := a.logs.Logs(c.Request.Context(), cache.Selector{UserID: userID, Window: &window})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取热力图数据失败")
		return
	}

	habits, err := a.habits.List(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取习惯列表失败")
		return
	}

	c.JSON(http.StatusOK, buildHeatmapPayload(logs, habits, window, now))
}

func buildSelector(c *gin.Context, base cache.Selector) (cache.Selector, bool) {
	if c.Query("today") == "1" {
		base.TodayOnly = true
		return base, true
	}

	start := strings.TrimSpace(c.Query("start"))
	end := strings.TrimSpace(c.Query("end"))
	if start == "" && end == "" {
		return base, true
	}

	window, err := dateutil.NewRange(start, end)
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的日期区间")
		return cache.Selector{}, false
	}
	base.Window = &window
	return base, true
}

func handleToggleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dateutil.ErrInvalidDate):
		respondError(c, http.StatusBadRequest, "无效的打卡日期")
	case errors.Is(err, cache.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, "请先登录")
	case errors.Is(err, cache.ErrWriteConflict):
		respondError(c, http.StatusBadGateway, "保存打卡记录失败")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}

func serializeLogs(logs []models.Log) []gin.H {
	items := make([]gin.H, 0, len(logs))
	for _, entry := range logs {
		items = append(items, serializeLog(entry))
	}
	return items
}

func serializeLog(entry models.Log) gin.H {
	return gin.H{
		"id":          entry.ID,
		"habit_id":    entry.HabitID,
		"date":        entry.Date,
		"completed":   entry.Completed,
		"provisional": entry.Provisional(),
	}
}

func buildHeatmapPayload(logs []models.Log, habits []db.Habit, window dateutil.Range, generatedAt time.Time) gin.H {
	legendMap := make(map[uint]heatmapHabit, len(habits))
	for _, habit := range habits {
		legendMap[habit.ID] = heatmapHabit{ID: habit.ID, Title: habit.Title, Color: habit.Color}
	}

	dayMap := make(map[string][]heatmapHabit)
	total := 0
	for _, entry := range logs {
		if !entry.Completed {
			continue
		}
		habit, ok := legendMap[entry.HabitID]
		if !ok {
			continue
		}
		dayMap[entry.Date] = append(dayMap[entry.Date], habit)
		total++
	}

	days := make([]heatmapDay, 0, len(dayMap))
	for date, dayHabits := range dayMap {
		slices.SortFunc(dayHabits, func(a, b heatmapHabit) int {
			if diff := cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); diff != 0 {
				return diff
			}
			return cmp.Compare(a.ID, b.ID)
		})
		days = append(days, heatmapDay{Date: date, Habits: dayHabits})
	}
	slices.SortFunc(days, func(a, b heatmapDay) int {
		return cmp.Compare(a.Date, b.Date)
	})

	legend := make([]heatmapHabit, 0, len(legendMap))
	for _, item := range legendMap {
		legend = append(legend, item)
	}
	slices.SortFunc(legend, func(a, b heatmapHabit) int {
		if diff := cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); diff != 0 {
			return diff
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return gin.H{
		"range":        gin.H{"start": window.Start, "end": window.End},
		"days":         days,
		"habits":       legend,
		"summary":      heatmapSummary{TotalLogs: total, ActiveDays: len(dayMap), HabitCount: len(legend)},
		"generated_at": generatedAt.Format(time.RFC3339),
	}
}
