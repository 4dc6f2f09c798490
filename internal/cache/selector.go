package cache

import (
	"fmt"
	"strings"

	"github.com/habitlog/internal/dateutil"
)

// Selector 标识一个视图：按习惯或按用户检索，外加可选的时间窗口或仅今天约束。
// HabitID 非零表示习惯级视图，否则为 UserID 指定的用户级视图。
type Selector struct {
	HabitID   uint
	UserID    uint
	TodayOnly bool
	Window    *dateutil.Range
}

// Key 返回选择器的规范字符串键，参数完全相同的读取共享同一个视图。
func (s Selector) Key() string {
	parts := []string{
		fmt.Sprintf("habit=%d", s.HabitID),
		fmt.Sprintf("user=%d", s.UserID),
	}
	if s.TodayOnly {
		parts = append(parts, "today")
	}
	if s.Window != nil {
		parts = append(parts, fmt.Sprintf("range=%s..%s", s.Window.Start, s.Window.End))
	}
	return strings.Join(parts, "|")
}

// matchesDate 判断 (habitID, userID, dateKey) 上的变更是否会影响该视图：
// 视图属于这个习惯，或属于习惯的所属用户；窗口视图还要求日期落在窗口内，
// 仅今天视图要求日期就是今天。
func (s Selector) matchesDate(habitID, userID uint, dateKey, todayKey string) bool {
	if s.HabitID != 0 {
		if s.HabitID != habitID {
			return false
		}
	} else if s.UserID != userID {
		return false
	}

	if s.TodayOnly && dateKey != todayKey {
		return false
	}
	if s.Window != nil && !s.Window.Contains(dateKey) {
		return false
	}
	return true
}
