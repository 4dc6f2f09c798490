package db

import (
	"time"

	"gorm.io/gorm"
)

// Habit 定义用户的习惯模型
// Frequency 支持 daily/weekly/monthly；Color 为 #rrggbb，Icon 为前端图标名
// Description 支持 Markdown，对外输出时统一净化
// 每个习惯归属唯一用户，删除习惯时级联清理其全部打卡记录
type Habit struct {
	gorm.Model
	UserID      uint `gorm:"index"`
	Title       string
	Description string
	Color       string
	Icon        string
	Frequency   string
}

// HabitLog 记录某习惯在某个日历日的完成状态
// HabitID + LogDate 采用唯一索引，原子 upsert 依赖它保证同一天至多一条记录；
// 翻转状态只更新原记录的 Completed，从不删除
// UserID 冗余存储，用户级视图的查询不必连表
type HabitLog struct {
	gorm.Model
	HabitID   uint      `gorm:"index;index:idx_habit_log_unique,unique"`
	Habit     Habit     `gorm:"constraint:OnDelete:CASCADE"`
	UserID    uint      `gorm:"index"`
	LogDate   time.Time `gorm:"index:idx_habit_log_unique,unique"`
	Completed bool
}

// TableName 重写确保唯一索引作用到 habit_id + log_date
func (HabitLog) TableName() string {
	return "habit_logs"
}
