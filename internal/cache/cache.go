package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/habitlog/internal/dateutil"
	"github.com/habitlog/internal/models"
)

var (
	// ErrUnauthorized 在缺少用户上下文时返回，写入在触碰任何视图之前被同步拒绝
	ErrUnauthorized = errors.New("no active user")
	// ErrWriteConflict 表示持久写入失败，乐观变更已整体回滚，调用方自行决定提示
	ErrWriteConflict = errors.New("durable write failed")
)

const (
	defaultIdleTTL = 5 * time.Minute
	refreshTimeout = 10 * time.Second
)

// Store 是持久层协作方的最小接口，缓存只通过它拉取与提交记录。
// 实现必须保证 UpsertLog 是按 (habit_id, date) 的原子 upsert。
type Store interface {
	FetchLogs(ctx context.Context, sel Selector) ([]models.Log, error)
	UpsertLog(ctx context.Context, userID, habitID uint, date string, completed bool) (models.Log, error)
}

type view struct {
	sel        Selector
	logs       []models.Log
	stale      bool
	refreshing bool
	fetchedAt  time.Time
	lastAccess time.Time
}

// LogCache 维护若干按选择器物化的打卡视图，并在其上执行乐观写入。
// 它是视图内容唯一的修改方；读取方只拿到快照副本，从不直接写入。
type LogCache struct {
	mu      sync.Mutex
	store   Store
	views   map[string]*view
	idleTTL time.Duration
	now     func() time.Time

	onChange func(habitID uint)
}

// New 构造 LogCache，store 为注入的持久层协作方。
func New(store Store) *LogCache {
	return &LogCache{
		store:   store,
		views:   make(map[string]*view),
		idleTTL: defaultIdleTTL,
		now:     time.Now,
	}
}

// SetIdleTTL 调整视图的闲置回收阈值，传入 0 关闭回收。
func (c *LogCache) SetIdleTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.idleTTL = ttl
}

// OnChange 注册打卡确认后的失效回调，聚合器用它丢弃记忆化的统计。
func (c *LogCache) OnChange(fn func(habitID uint)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Subscribe 返回视图当前内容的副本，以及内容是否需要刷新。
// 读取从不阻塞网络：视图不存在时惰性建立空视图，过期视图触发一次后台刷新。
func (c *LogCache) Subscribe(sel Selector) ([]models.Log, bool) {
	key := sel.Key()

	c.mu.Lock()
	c.sweepLocked()

	v, ok := c.views[key]
	if !ok {
		v = &view{sel: sel, stale: true}
		c.views[key] = v
	}
	v.lastAccess = c.now()

	logs := slices.Clone(v.logs)
	stale := v.stale || v.fetchedAt.IsZero()
	if stale && !v.refreshing {
		v.refreshing = true
		go c.refresh(sel)
	}
	c.mu.Unlock()

	return logs, stale
}

// Logs 同步返回视图内容，首次读取时向持久层拉取并物化视图。
func (c *LogCache) Logs(ctx context.Context, sel Selector) ([]models.Log, error) {
	key := sel.Key()

	c.mu.Lock()
	c.sweepLocked()
	if v, ok := c.views[key]; ok && !v.stale && !v.fetchedAt.IsZero() {
		v.lastAccess = c.now()
		logs := slices.Clone(v.logs)
		c.mu.Unlock()
		return logs, nil
	}
	c.mu.Unlock()

	fetched, err := c.store.FetchLogs(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[key]
	if !ok {
		v = &view{sel: sel}
		c.views[key] = v
	}
	v.logs = fetched
	v.stale = false
	v.refreshing = false
	v.fetchedAt = c.now()
	v.lastAccess = c.now()
	return slices.Clone(v.logs), nil
}

// Toggle 对 (habitID, date) 执行一次乐观打卡翻转。
// date 为空时取今天；completed 为 nil 时取当前已知状态的逻辑非。
// 所有匹配视图在持久写入发起前同步更新，写入失败时按快照整体恢复。
func (c *LogCache) Toggle(ctx context.Context, userID, habitID uint, date string, completed *bool) (models.Log, error) {
	if userID == 0 {
		return models.Log{}, ErrUnauthorized
	}

	todayKey := dateutil.ToKey(c.now())
	dateKey := todayKey
	if strings.TrimSpace(date) != "" {
		parsed, err := dateutil.ParseKey(date)
		if err != nil {
			return models.Log{}, err
		}
		dateKey = dateutil.ToKey(parsed)
	}

	c.mu.Lock()
	next := c.nextValueLocked(habitID, userID, dateKey, completed)
	provisional := models.Log{
		ID:        "local-" + uuid.NewString(),
		HabitID:   habitID,
		UserID:    userID,
		Date:      dateKey,
		Completed: next,
	}
	snapshots, touched := c.applyLocked(provisional, todayKey)
	c.mu.Unlock()

	durable, err := c.store.UpsertLog(ctx, userID, habitID, dateKey, next)

	c.mu.Lock()
	if err != nil {
		c.restoreLocked(snapshots)
		c.mu.Unlock()
		return models.Log{}, fmt.Errorf("%w: %v", ErrWriteConflict, err)
	}

	for _, key := range touched {
		if v, ok := c.views[key]; ok {
			v.stale = true
		}
	}
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(habitID)
	}
	return durable, nil
}

// EvictHabit 丢弃习惯级视图并将用户级视图标记为过期，习惯删除后调用。
func (c *LogCache) EvictHabit(habitID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, v := range c.views {
		if v.sel.HabitID == habitID {
			delete(c.views, key)
		} else if v.sel.HabitID == 0 {
			v.stale = true
		}
	}
}

// nextValueLocked 推断目标日期即将写入的完成状态。
// 显式给定 completed 时直接采用；否则在已物化视图中查找当前值取反，
// 习惯级视图优先，用户级视图兜底，完全未知按 false 处理。
func (c *LogCache) nextValueLocked(habitID, userID uint, dateKey string, completed *bool) bool {
	if completed != nil {
		return *completed
	}
	current, _ := c.lookupLocked(habitID, userID, dateKey)
	return !current
}

func (c *LogCache) lookupLocked(habitID, userID uint, dateKey string) (value, found bool) {
	for _, v := range c.views {
		if v.sel.HabitID != habitID {
			continue
		}
		for _, entry := range v.logs {
			if entry.Date == dateKey {
				return entry.Completed, true
			}
		}
	}

	for _, v := range c.views {
		if v.sel.HabitID != 0 || v.sel.UserID != userID {
			continue
		}
		for _, entry := range v.logs {
			if entry.HabitID == habitID && entry.Date == dateKey {
				return entry.Completed, true
			}
		}
	}

	return false, false
}

// applyLocked 在单个临界区内把临时记录写进所有匹配视图：
// 同日期键的既有条目被替换（重复条目顺带合并），否则头插新条目。
// 返回每个被触碰视图的先前内容快照与视图键，供失败时整体回滚。
func (c *LogCache) applyLocked(entry models.Log, todayKey string) (map[string][]models.Log, []string) {
	snapshots := make(map[string][]models.Log)
	touched := make([]string, 0, len(c.views))

	for key, v := range c.views {
		if !v.sel.matchesDate(entry.HabitID, entry.UserID, entry.Date, todayKey) {
			continue
		}

		snapshots[key] = slices.Clone(v.logs)

		next := make([]models.Log, 0, len(v.logs)+1)
		replaced := false
		for _, existing := range v.logs {
			if existing.HabitID == entry.HabitID && existing.Date == entry.Date {
				if !replaced {
					next = append(next, entry)
					replaced = true
				}
				continue
			}
			next = append(next, existing)
		}
		if !replaced {
			next = append([]models.Log{entry}, next...)
		}

		v.logs = next
		touched = append(touched, key)
	}

	return snapshots, touched
}

// restoreLocked 将快照整体写回，不存在部分回滚。
func (c *LogCache) restoreLocked(snapshots map[string][]models.Log) {
	for key, logs := range snapshots {
		if v, ok := c.views[key]; ok {
			v.logs = logs
		}
	}
}

// sweepLocked 回收超过闲置阈值未被访问的视图。
func (c *LogCache) sweepLocked() {
	if c.idleTTL <= 0 {
		return
	}
	cutoff := c.now().Add(-c.idleTTL)
	for key, v := range c.views {
		if !v.lastAccess.IsZero() && v.lastAccess.Before(cutoff) && !v.refreshing {
			delete(c.views, key)
		}
	}
}

// refresh 在后台替换视图内容，失败时保留旧数据等待下次访问再试。
func (c *LogCache) refresh(sel Selector) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	logs, err := c.store.FetchLogs(ctx, sel)

	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[sel.Key()]
	if !ok {
		return
	}
	v.refreshing = false
	if err != nil {
		return
	}
	v.logs = logs
	v.stale = false
	v.fetchedAt = c.now()
}
