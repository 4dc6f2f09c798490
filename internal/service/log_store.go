package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/habitlog/internal/cache"
	"github.com/habitlog/internal/dateutil"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LogStore 以 gorm 实现缓存依赖的持久层协作方接口。
// 缓存侧注入的是接口，测试可以替换为内存实现。
type LogStore struct {
	db *gorm.DB
}

// NewLogStore 构造 LogStore
func NewLogStore(gdb *gorm.DB) *LogStore {
	return &LogStore{db: gdb}
}

// FetchLogs 按选择器返回权威打卡记录。
// 六种选择器形态：习惯、用户、习惯+今天、用户+今天、习惯+窗口、用户+窗口。
func (s *LogStore) FetchLogs(ctx context.Context, sel cache.Selector) ([]models.Log, error) {
	query := s.db.WithContext(ctx).Model(&db.HabitLog{})

	switch {
	case sel.HabitID != 0:
		query = query.Where("habit_id = ?", sel.HabitID)
	case sel.UserID != 0:
		query = query.Where("user_id = ?", sel.UserID)
	default:
		return nil, fmt.Errorf("empty log selector")
	}

	if sel.TodayOnly {
		query = query.Where("log_date = ?", dateutil.Today())
	} else if sel.Window != nil {
		start, err := dateutil.ParseKey(sel.Window.Start)
		if err != nil {
			return nil, err
		}
		end, err := dateutil.ParseKey(sel.Window.End)
		if err != nil {
			return nil, err
		}
		query = query.Where("log_date BETWEEN ? AND ?", start, end)
	}

	var rows []db.HabitLog
	if err := query.Order("log_date DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch habit logs: %w", err)
	}

	logs := make([]models.Log, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, toCacheLog(row))
	}
	return logs, nil
}

// UpsertLog 提交持久写入：依赖 (habit_id, log_date) 唯一索引做原子 upsert，
// 避免先查后写在并发打卡下产生同日重复记录。
func (s *LogStore) UpsertLog(ctx context.Context, userID, habitID uint, date string, completed bool) (models.Log, error) {
	logDate, err := dateutil.ParseKey(date)
	if err != nil {
		return models.Log{}, err
	}

	record := db.HabitLog{
		HabitID:   habitID,
		UserID:    userID,
		LogDate:   logDate,
		Completed: completed,
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "habit_id"}, {Name: "log_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"completed", "updated_at"}),
	}).Create(&record).Error; err != nil {
		return models.Log{}, fmt.Errorf("upsert habit log: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Where("habit_id = ? AND log_date = ?", habitID, logDate).
		First(&record).Error; err != nil {
		return models.Log{}, fmt.Errorf("reload habit log: %w", err)
	}

	return toCacheLog(record), nil
}

// toCacheLog 将持久层记录转换为缓存侧表示，ID 序列化为十进制字符串。
func toCacheLog(row db.HabitLog) models.Log {
	return models.Log{
		ID:        strconv.FormatUint(uint64(row.ID), 10),
		HabitID:   row.HabitID,
		UserID:    row.UserID,
		Date:      row.LogDate.Format(dateutil.KeyFormat),
		Completed: row.Completed,
	}
}
