package service

import (
	"context"
	"sync"
	"time"

	"github.com/habitlog/internal/cache"
	"github.com/habitlog/internal/dateutil"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/streak"
)

// HabitOverview 汇总单个习惯的展示数据：元数据加上缓存推导的连胜与完成率。
type HabitOverview struct {
	Habit          db.Habit
	CurrentStreak  int
	LongestStreak  int
	CompletionRate int
	TodayDone      bool
}

type habitStats struct {
	current   int
	longest   int
	rate      int
	todayDone bool
}

// 完成率统计的默认窗口
const completionWindowDays = 30

// Aggregator 将习惯元数据与日志缓存的内容拼接成展示层需要的统计。
// 统计按习惯记忆化；注册为缓存的失效回调，打卡确认后记忆在下次读取前被丢弃。
// 只读消费者：从不直接修改视图内容。
type Aggregator struct {
	mu     sync.Mutex
	habits *HabitService
	logs   *cache.LogCache
	memo   map[uint]habitStats
	now    func() time.Time
}

// NewAggregator 构造聚合器并挂接缓存的失效回调。
func NewAggregator(habits *HabitService, logs *cache.LogCache) *Aggregator {
	a := &Aggregator{
		habits: habits,
		logs:   logs,
		memo:   make(map[uint]habitStats),
		now:    time.Now,
	}
	logs.OnChange(a.Invalidate)
	return a
}

// Invalidate 丢弃指定习惯的记忆化统计。
func (a *Aggregator) Invalidate(habitID uint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.memo, habitID)
}

// Overview 返回用户全部习惯及其统计，顺序与习惯列表一致。
func (a *Aggregator) Overview(ctx context.Context, userID uint) ([]HabitOverview, error) {
	habits, err := a.habits.List(userID)
	if err != nil {
		return nil, err
	}

	overviews := make([]HabitOverview, 0, len(habits))
	for _, habit := range habits {
		stats, err := a.statsFor(ctx, habit.ID)
		if err != nil {
			return nil, err
		}
		overviews = append(overviews, HabitOverview{
			Habit:          habit,
			CurrentStreak:  stats.current,
			LongestStreak:  stats.longest,
			CompletionRate: stats.rate,
			TodayDone:      stats.todayDone,
		})
	}
	return overviews, nil
}

// Stats 返回单个习惯的统计，供详情页复用。
func (a *Aggregator) Stats(ctx context.Context, userID, habitID uint) (HabitOverview, error) {
	habit, err := a.habits.Get(userID, habitID)
	if err != nil {
		return HabitOverview{}, err
	}

	stats, err := a.statsFor(ctx, habit.ID)
	if err != nil {
		return HabitOverview{}, err
	}

	return HabitOverview{
		Habit:          *habit,
		CurrentStreak:  stats.current,
		LongestStreak:  stats.longest,
		CompletionRate: stats.rate,
		TodayDone:      stats.todayDone,
	}, nil
}

func (a *Aggregator) statsFor(ctx context.Context, habitID uint) (habitStats, error) {
	a.mu.Lock()
	if stats, ok := a.memo[habitID]; ok {
		a.mu.Unlock()
		return stats, nil
	}
	a.mu.Unlock()

	logs, err := a.logs.Logs(ctx, cache.Selector{HabitID: habitID})
	if err != nil {
		return habitStats{}, err
	}

	today := a.now()
	todayKey := dateutil.ToKey(dateutil.Midnight(today))

	stats := habitStats{
		current: streak.Current(logs, today),
		longest: streak.Longest(logs),
		rate:    streak.CompletionRate(logs, completionWindowDays, today),
	}
	for _, entry := range logs {
		if entry.Date == todayKey {
			stats.todayDone = entry.Completed
			break
		}
	}

	a.mu.Lock()
	a.memo[habitID] = stats
	a.mu.Unlock()
	return stats, nil
}
