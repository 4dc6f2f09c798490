package streak

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/habitlog/internal/dateutil"
	"github.com/habitlog/internal/models"
)

// buildIndex 建立日期键到完成状态的索引。
// 输入先按 (日期, ID) 排序再写入，相同日期后写胜出，保证结果与传入顺序无关。
func buildIndex(logs []models.Log) map[string]bool {
	sorted := slices.Clone(logs)
	slices.SortFunc(sorted, func(a, b models.Log) int {
		if diff := cmp.Compare(a.Date, b.Date); diff != 0 {
			return diff
		}
		return cmp.Compare(a.ID, b.ID)
	})

	index := make(map[string]bool, len(sorted))
	for _, entry := range sorted {
		index[entry.Date] = entry.Completed
	}
	return index
}

// Current 计算截至 today 的连续完成天数。
// 今天已完成则从今天起算，否则从昨天起算：一天还没结束，没打卡不算断签。
// 回溯过程中遇到缺失或未完成的日期即停止。
func Current(logs []models.Log, today time.Time) int {
	if len(logs) == 0 {
		return 0
	}

	index := buildIndex(logs)
	day := dateutil.Midnight(today)
	if !index[dateutil.ToKey(day)] {
		day = day.AddDate(0, 0, -1)
	}

	count := 0
	for index[dateutil.ToKey(day)] {
		count++
		day = day.AddDate(0, 0, -1)
	}
	return count
}

// Longest 返回历史最长的连续完成天数，空列表返回 0。
// 按日期升序单次扫描：与上一个计入的日期恰好相差一天则递增，
// 出现不连续的完成日重置为 1，出现未完成记录重置为 0。
func Longest(logs []models.Log) int {
	if len(logs) == 0 {
		return 0
	}

	index := buildIndex(logs)
	keys := make([]string, 0, len(index))
	for key := range index {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	longest, run := 0, 0
	var prev time.Time
	for _, key := range keys {
		day, err := dateutil.ParseKey(key)
		if err != nil {
			continue
		}

		switch {
		case !index[key]:
			run = 0
		case run > 0 && dateutil.DaysBetween(prev, day) == 1:
			run++
		default:
			run = 1
		}

		if run > longest {
			longest = run
		}
		prev = day
	}
	return longest
}

// CompletionRate 统计最近 windowDays 天（含今天）的完成率，四舍五入为 0-100。
// 分母取窗口内实际经过的天数：不超过 windowDays，也不超过自最早一条记录
// 以来的天数（习惯存在时长的下界），避免新习惯被整窗稀释。
func CompletionRate(logs []models.Log, windowDays int, today time.Time) int {
	if windowDays <= 0 || len(logs) == 0 {
		return 0
	}

	index := buildIndex(logs)
	todayKey := dateutil.ToKey(dateutil.Midnight(today))
	startKey := dateutil.ToKey(dateutil.Midnight(today).AddDate(0, 0, -(windowDays - 1)))

	earliest := ""
	completed := 0
	for key, done := range index {
		if earliest == "" || key < earliest {
			earliest = key
		}
		if done && key >= startKey && key <= todayKey {
			completed++
		}
	}

	elapsed := windowDays
	if first, err := dateutil.ParseKey(earliest); err == nil {
		if since := dateutil.DaysBetween(first, today) + 1; since < elapsed {
			elapsed = since
		}
	}
	if elapsed <= 0 {
		return 0
	}

	return int(math.Round(float64(completed) / float64(elapsed) * 100))
}
