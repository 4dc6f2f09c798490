package dateutil

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// KeyFormat 是日历日的规范键格式，零填充保证字典序与日期序一致
const KeyFormat = "2006-01-02"

var (
	// ErrInvalidDate 在日期无法解析或不存在时返回
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidRange 在区间边界非法或起止颠倒时返回
	ErrInvalidRange = errors.New("invalid date range")
)

// Today 返回调用方本地时区的当天零点。
// 打卡按本地日历日计算，晚上 11 点的记录属于本地的今天，而不是 UTC 的。
func Today() time.Time {
	return Midnight(time.Now())
}

// Midnight 将时间归一化到当天零点，保留原时区。
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ToKey 返回 YYYY-MM-DD 形式的规范键，两个日期相等当且仅当键相等。
func ToKey(t time.Time) string {
	return t.Format(KeyFormat)
}

// ParseKey 按本地时区严格解析规范键，非法或不存在的日期返回 ErrInvalidDate。
func ParseKey(key string) (time.Time, error) {
	trimmed := strings.TrimSpace(key)
	t, err := time.ParseInLocation(KeyFormat, trimmed, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, key)
	}
	return t, nil
}

// DaysBetween 返回 b 相对 a 的整数天数差。
// 两端先归一化到零点再取差值四舍五入，跨夏令时的 23/25 小时天不会产生漂移。
func DaysBetween(a, b time.Time) int {
	delta := Midnight(b).Sub(Midnight(a))
	return int(math.Round(delta.Hours() / 24))
}
