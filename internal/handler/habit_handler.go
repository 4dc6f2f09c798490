package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/service"
)

const dateFormat = "2006-01-02"

type habitPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	Frequency   string `json:"frequency"`
}

// ListHabits 返回当前用户的习惯列表
func (a *API) ListHabits(c *gin.Context) {
	userID := currentUserID(c)

	habits, err := a.habits.List(userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取习惯列表失败")
		return
	}

	items := make([]gin.H, 0, len(habits))
	for _, habit := range habits {
		items = append(items, habitToPayload(habit))
	}

	c.JSON(http.StatusOK, gin.H{"habits": items})
}

// GetHabit 返回单个习惯详情，描述渲染为净化后的 HTML
func (a *API) GetHabit(c *gin.Context) {
	userID := currentUserID(c)
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	overview, err := a.aggregator.Stats(c.Request.Context(), userID, id)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	payload := habitToPayload(overview.Habit)
	payload["description_html"] = service.RenderDescription(overview.Habit.Description)
	payload["current_streak"] = overview.CurrentStreak
	payload["longest_streak"] = overview.LongestStreak
	payload["completion_rate"] = overview.CompletionRate
	payload["today_done"] = overview.TodayDone

	c.JSON(http.StatusOK, gin.H{"habit": payload})
}

// CreateHabit 创建习惯
func (a *API) CreateHabit(c *gin.Context) {
	userID := currentUserID(c)
	input, ok := parseHabitInput(c)
	if !ok {
		return
	}

	habit, err := a.habits.Create(userID, input)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// UpdateHabit 更新习惯
func (a *API) UpdateHabit(c *gin.Context) {
	userID := currentUserID(c)
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	input, ok := parseHabitInput(c)
	if !ok {
		return
	}

	habit, err := a.habits.Update(userID, id, input)
	if err != nil {
		handleHabitError(c, err)
		return
	}

	a.aggregator.Invalidate(id)
	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// DeleteHabit 删除习惯并丢弃其缓存视图
func (a *API) DeleteHabit(c *gin.Context) {
	userID := currentUserID(c)
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的习惯ID")
		return
	}

	if err := a.habits.Delete(userID, id); err != nil {
		handleHabitError(c, err)
		return
	}

	a.logs.EvictHabit(id)
	a.aggregator.Invalidate(id)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetOverview 返回习惯列表及其连胜/完成率统计
func (a *API) GetOverview(c *gin.Context) {
	userID := currentUserID(c)

	overviews, err := a.aggregator.Overview(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取统计信息失败")
		return
	}

	items := make([]gin.H, 0, len(overviews))
	for _, overview := range overviews {
		item := habitToPayload(overview.Habit)
		item["current_streak"] = overview.CurrentStreak
		item["longest_streak"] = overview.LongestStreak
		item["completion_rate"] = overview.CompletionRate
		item["today_done"] = overview.TodayDone
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{"habits": items})
}

func parseHabitInput(c *gin.Context) (service.HabitInput, bool) {
	var payload habitPayload

	if strings.Contains(c.GetHeader("Content-Type"), "application/json") {
		if !bindJSON(c, &payload, "请求参数不合法") {
			return service.HabitInput{}, false
		}
	} else {
		payload.Title = c.PostForm("title")
		payload.Description = c.PostForm("description")
		payload.Color = c.PostForm("color")
		payload.Icon = c.PostForm("icon")
		payload.Frequency = c.PostForm("frequency")
	}

	return service.HabitInput{
		Title:       payload.Title,
		Description: payload.Description,
		Color:       payload.Color,
		Icon:        payload.Icon,
		Frequency:   payload.Frequency,
	}, true
}

func habitToPayload(habit db.Habit) gin.H {
	return gin.H{
		"id":         habit.ID,
		"user_id":    habit.UserID,
		"title":      habit.Title,
		"color":      habit.Color,
		"icon":       habit.Icon,
		"frequency":  habit.Frequency,
		"created_at": habit.CreatedAt.Format(dateFormat),
	}
}

func handleHabitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "习惯不存在")
	case errors.Is(err, service.ErrHabitInvalidFrequency):
		respondError(c, http.StatusBadRequest, "频率配置无效")
	case errors.Is(err, service.ErrHabitInvalidColor):
		respondError(c, http.StatusBadRequest, "颜色格式无效")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}
