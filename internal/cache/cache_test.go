package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/habitlog/internal/dateutil"
	"github.com/habitlog/internal/models"
)

// fakeStore 是测试用的持久层协作方：内存保存权威记录，可注入写入失败。
type fakeStore struct {
	mu         sync.Mutex
	records    map[string]models.Log // habit|date -> log
	nextID     int
	upsertErr  error
	upsertHits int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]models.Log)}
}

func (f *fakeStore) key(habitID uint, date string) string {
	return fmt.Sprintf("%d|%s", habitID, date)
}

func (f *fakeStore) seed(userID, habitID uint, date string, completed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.records[f.key(habitID, date)] = models.Log{
		ID:        fmt.Sprintf("%d", f.nextID),
		HabitID:   habitID,
		UserID:    userID,
		Date:      date,
		Completed: completed,
	}
}

func (f *fakeStore) FetchLogs(ctx context.Context, sel Selector) ([]models.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	todayKey := dateutil.ToKey(dateutil.Today())
	var out []models.Log
	for _, record := range f.records {
		if sel.HabitID != 0 && record.HabitID != sel.HabitID {
			continue
		}
		if sel.HabitID == 0 && record.UserID != sel.UserID {
			continue
		}
		if sel.TodayOnly && record.Date != todayKey {
			continue
		}
		if sel.Window != nil && !sel.Window.Contains(record.Date) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (f *fakeStore) UpsertLog(ctx context.Context, userID, habitID uint, date string, completed bool) (models.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upsertHits++
	if f.upsertErr != nil {
		return models.Log{}, f.upsertErr
	}

	key := f.key(habitID, date)
	record, ok := f.records[key]
	if !ok {
		f.nextID++
		record = models.Log{ID: fmt.Sprintf("%d", f.nextID), HabitID: habitID, UserID: userID, Date: date}
	}
	record.Completed = completed
	f.records[key] = record
	return record, nil
}

func (f *fakeStore) setUpsertErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertErr = err
}

func findByDate(logs []models.Log, date string) (models.Log, bool) {
	for _, entry := range logs {
		if entry.Date == date {
			return entry, true
		}
	}
	return models.Log{}, false
}

func boolPtr(v bool) *bool { return &v }

func TestToggleRejectsBeforeMutation(t *testing.T) {
	store := newFakeStore()
	c := New(store)

	if _, err := c.Toggle(context.Background(), 0, 1, "", nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := c.Toggle(context.Background(), 1, 1, "2021-02-31", nil); !errors.Is(err, dateutil.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	if store.upsertHits != 0 {
		t.Fatalf("expected no durable writes, got %d", store.upsertHits)
	}
}

func TestToggleUpdatesAllMatchingViews(t *testing.T) {
	store := newFakeStore()
	store.seed(1, 7, "2024-03-01", true)
	store.seed(1, 7, "2024-03-02", true)

	c := New(store)
	ctx := context.Background()

	window, err := dateutil.NewRange("2024-03-01", "2024-03-10")
	if err != nil {
		t.Fatalf("NewRange returned error: %v", err)
	}

	allTime := Selector{HabitID: 7, UserID: 1}
	ranged := Selector{HabitID: 7, UserID: 1, Window: &window}
	userWide := Selector{UserID: 1}

	for _, sel := range []Selector{allTime, ranged, userWide} {
		if _, err := c.Logs(ctx, sel); err != nil {
			t.Fatalf("materialize %s: %v", sel.Key(), err)
		}
	}

	if _, err := c.Toggle(ctx, 1, 7, "2024-03-05", boolPtr(true)); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}

	// 乐观条目在同一步内对全部匹配视图可见
	for _, sel := range []Selector{allTime, ranged, userWide} {
		logs, _ := c.Subscribe(sel)
		entry, ok := findByDate(logs, "2024-03-05")
		if !ok {
			t.Fatalf("view %s missing toggled entry", sel.Key())
		}
		if !entry.Completed {
			t.Fatalf("view %s entry not completed", sel.Key())
		}
	}
}

func TestToggleRollbackRestoresAllViews(t *testing.T) {
	store := newFakeStore()
	store.seed(1, 7, "2024-03-01", true)
	store.seed(1, 7, "2024-03-02", true)

	c := New(store)
	ctx := context.Background()

	window, err := dateutil.NewRange("2024-03-01", "2024-03-10")
	if err != nil {
		t.Fatalf("NewRange returned error: %v", err)
	}

	allTime := Selector{HabitID: 7, UserID: 1}
	ranged := Selector{HabitID: 7, UserID: 1, Window: &window}

	before := make(map[string][]models.Log)
	for _, sel := range []Selector{allTime, ranged} {
		logs, err := c.Logs(ctx, sel)
		if err != nil {
			t.Fatalf("materialize %s: %v", sel.Key(), err)
		}
		before[sel.Key()] = logs
	}

	store.setUpsertErr(errors.New("connection reset"))

	if _, err := c.Toggle(ctx, 1, 7, "2024-03-05", boolPtr(true)); !errors.Is(err, ErrWriteConflict) {
		t.Fatalf("expected ErrWriteConflict, got %v", err)
	}

	// 两个视图都整体恢复到写入前的内容
	for _, sel := range []Selector{allTime, ranged} {
		logs, stale := c.Subscribe(sel)
		if stale {
			t.Fatalf("view %s unexpectedly stale after rollback", sel.Key())
		}
		if len(logs) != len(before[sel.Key()]) {
			t.Fatalf("view %s: expected %d entries, got %d", sel.Key(), len(before[sel.Key()]), len(logs))
		}
		if _, ok := findByDate(logs, "2024-03-05"); ok {
			t.Fatalf("view %s still holds rolled-back entry", sel.Key())
		}
	}
}

func TestToggleNegatesKnownValue(t *testing.T) {
	store := newFakeStore()
	store.seed(1, 7, "2024-03-01", true)

	c := New(store)
	ctx := context.Background()

	if _, err := c.Logs(ctx, Selector{HabitID: 7, UserID: 1}); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	entry, err := c.Toggle(ctx, 1, 7, "2024-03-01", nil)
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if entry.Completed {
		t.Fatal("expected negation of known true value")
	}

	// 未知日期默认按 false 处理，取反后写入 true
	entry, err = c.Toggle(ctx, 1, 7, "2024-03-09", nil)
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if !entry.Completed {
		t.Fatal("expected unknown value to toggle to true")
	}
}

func TestToggleTodayOnlyViewMatching(t *testing.T) {
	store := newFakeStore()
	c := New(store)
	ctx := context.Background()

	todayOnly := Selector{HabitID: 7, UserID: 1, TodayOnly: true}
	if _, err := c.Logs(ctx, todayOnly); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	// 今天的打卡进入仅今天视图
	if _, err := c.Toggle(ctx, 1, 7, "", boolPtr(true)); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	logs, _ := c.Subscribe(todayOnly)
	todayKey := dateutil.ToKey(dateutil.Today())
	if _, ok := findByDate(logs, todayKey); !ok {
		t.Fatal("expected today's entry in today-only view")
	}

	// 历史日期的打卡不进入
	if _, err := c.Toggle(ctx, 1, 7, "2020-01-01", boolPtr(true)); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	logs, _ = c.Subscribe(todayOnly)
	if _, ok := findByDate(logs, "2020-01-01"); ok {
		t.Fatal("today-only view must not hold a past date")
	}
}

func TestToggleMergesDuplicateDateEntries(t *testing.T) {
	store := newFakeStore()
	c := New(store)
	ctx := context.Background()

	sel := Selector{HabitID: 7, UserID: 1}
	if _, err := c.Logs(ctx, sel); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	// 连续两次同日打卡，视图里始终只有一条该日期的记录
	if _, err := c.Toggle(ctx, 1, 7, "2024-03-05", boolPtr(true)); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if _, err := c.Toggle(ctx, 1, 7, "2024-03-05", boolPtr(false)); err != nil {
		t.Fatalf("second toggle: %v", err)
	}

	logs, _ := c.Subscribe(sel)
	count := 0
	for _, entry := range logs {
		if entry.Date == "2024-03-05" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one live entry per date key, got %d", count)
	}
}

func TestToggleFiresInvalidationHook(t *testing.T) {
	store := newFakeStore()
	c := New(store)

	var mu sync.Mutex
	var invalidated []uint
	c.OnChange(func(habitID uint) {
		mu.Lock()
		invalidated = append(invalidated, habitID)
		mu.Unlock()
	})

	if _, err := c.Toggle(context.Background(), 1, 7, "", boolPtr(true)); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(invalidated) != 1 || invalidated[0] != 7 {
		t.Fatalf("expected invalidation for habit 7, got %v", invalidated)
	}
}

func TestIdleViewEviction(t *testing.T) {
	store := newFakeStore()
	store.seed(1, 7, "2024-03-01", true)

	c := New(store)
	c.SetIdleTTL(time.Millisecond)
	ctx := context.Background()

	sel := Selector{HabitID: 7, UserID: 1}
	if _, err := c.Logs(ctx, sel); err != nil {
		t.Fatalf("materialize: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	// 下一次访问触发回收，闲置视图被重建为空的待拉取视图
	logs, stale := c.Subscribe(sel)
	if !stale {
		t.Fatal("expected evicted view to come back stale")
	}
	if len(logs) != 0 {
		t.Fatalf("expected empty contents after eviction, got %d entries", len(logs))
	}
}

func TestLogsServesCommittedSnapshot(t *testing.T) {
	store := newFakeStore()
	store.seed(1, 7, "2024-03-01", true)

	c := New(store)
	ctx := context.Background()

	sel := Selector{HabitID: 7, UserID: 1}
	logs, err := c.Logs(ctx, sel)
	if err != nil {
		t.Fatalf("Logs returned error: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(logs))
	}

	// 返回的是副本，调用方修改不影响视图
	logs[0].Completed = false
	again, _ := c.Subscribe(sel)
	if !again[0].Completed {
		t.Fatal("expected view contents to be isolated from caller mutation")
	}
}
