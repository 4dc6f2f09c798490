package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/habitlog/internal/db"
	"gorm.io/gorm"
)

var (
	// ErrHabitNotFound 在指定习惯不存在或不属于当前用户时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrHabitInvalidFrequency 当频率配置异常时返回
	ErrHabitInvalidFrequency = errors.New("invalid habit frequency")
	// ErrHabitInvalidColor 当颜色不是 #rrggbb 形式时返回
	ErrHabitInvalidColor = errors.New("invalid habit color")
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const defaultHabitColor = "#4f8dfd"

// HabitService 负责 Habit 数据的增删改查，全部操作按所属用户隔离
type HabitService struct {
	db *gorm.DB
}

// HabitInput 定义创建/更新习惯时可配置字段
type HabitInput struct {
	Title       string
	Description string
	Color       string
	Icon        string
	Frequency   string
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB) *HabitService {
	return &HabitService{db: gdb}
}

// List 返回用户的全部习惯，按创建时间倒序
func (s *HabitService) List(userID uint) ([]db.Habit, error) {
	var habits []db.Habit
	if err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	return habits, nil
}

// Get 根据 ID 获取习惯，越权访问与不存在同样返回 ErrHabitNotFound
func (s *HabitService) Get(userID, id uint) (*db.Habit, error) {
	var habit db.Habit
	if err := s.db.Where("user_id = ?", userID).First(&habit, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Create 新建习惯
func (s *HabitService) Create(userID uint, input HabitInput) (*db.Habit, error) {
	normalized, err := normalizeHabitInput(input)
	if err != nil {
		return nil, err
	}

	habit := db.Habit{
		UserID:      userID,
		Title:       normalized.Title,
		Description: normalized.Description,
		Color:       normalized.Color,
		Icon:        normalized.Icon,
		Frequency:   normalized.Frequency,
	}

	if err := s.db.Create(&habit).Error; err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return &habit, nil
}

// Update 更新习惯
func (s *HabitService) Update(userID, id uint, input HabitInput) (*db.Habit, error) {
	normalized, err := normalizeHabitInput(input)
	if err != nil {
		return nil, err
	}

	habit, err := s.Get(userID, id)
	if err != nil {
		return nil, err
	}

	habit.Title = normalized.Title
	habit.Description = normalized.Description
	habit.Color = normalized.Color
	habit.Icon = normalized.Icon
	habit.Frequency = normalized.Frequency

	if err := s.db.Save(habit).Error; err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return habit, nil
}

// Delete 删除习惯并级联清理其全部打卡记录。
// 打卡记录归持久层所有，这里在同一事务内显式删除，不依赖缓存参与。
func (s *HabitService) Delete(userID, id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var habit db.Habit
		if err := tx.Where("user_id = ?", userID).First(&habit, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrHabitNotFound
			}
			return fmt.Errorf("find habit: %w", err)
		}

		if err := tx.Where("habit_id = ?", habit.ID).Delete(&db.HabitLog{}).Error; err != nil {
			return fmt.Errorf("delete habit logs: %w", err)
		}

		if err := tx.Delete(&habit).Error; err != nil {
			return fmt.Errorf("delete habit: %w", err)
		}
		return nil
	})
}

func normalizeHabitInput(input HabitInput) (HabitInput, error) {
	out := HabitInput{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Color:       strings.TrimSpace(input.Color),
		Icon:        strings.TrimSpace(input.Icon),
		Frequency:   strings.TrimSpace(strings.ToLower(input.Frequency)),
	}

	if out.Title == "" {
		return HabitInput{}, fmt.Errorf("habit title is required")
	}

	if out.Frequency == "" {
		out.Frequency = "daily"
	}
	if out.Frequency != "daily" && out.Frequency != "weekly" && out.Frequency != "monthly" {
		return HabitInput{}, fmt.Errorf("%w: unsupported unit %s", ErrHabitInvalidFrequency, input.Frequency)
	}

	if out.Color == "" {
		out.Color = defaultHabitColor
	}
	if !colorPattern.MatchString(out.Color) {
		return HabitInput{}, fmt.Errorf("%w: %s", ErrHabitInvalidColor, input.Color)
	}
	out.Color = strings.ToLower(out.Color)

	return out, nil
}
