package models

import "strings"

// Log 是缓存侧的打卡记录，Date 为 YYYY-MM-DD 规范键。
// 乐观写入时 ID 为本地生成的占位符，持久写入确认并刷新后替换为真实 ID。
type Log struct {
	ID        string `json:"id"`
	HabitID   uint   `json:"habit_id"`
	UserID    uint   `json:"user_id"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

// Provisional 判断记录是否仍是未确认的本地占位条目。
func (l Log) Provisional() bool {
	return strings.HasPrefix(l.ID, "local-")
}
