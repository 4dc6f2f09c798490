package dateutil

import "fmt"

// Range 表示一个闭区间 [Start, End]，两端均为规范键。
type Range struct {
	Start string
	End   string
}

// NewRange 校验两个边界都是真实存在的日历日且 start <= end。
// 不满足时返回 ErrInvalidRange（含 2 月 31 日这类不存在的日期与颠倒的边界）。
func NewRange(start, end string) (Range, error) {
	s, err := ParseKey(start)
	if err != nil {
		return Range{}, fmt.Errorf("%w: start %q", ErrInvalidRange, start)
	}
	e, err := ParseKey(end)
	if err != nil {
		return Range{}, fmt.Errorf("%w: end %q", ErrInvalidRange, end)
	}

	startKey := ToKey(s)
	endKey := ToKey(e)
	if startKey > endKey {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, startKey, endKey)
	}

	return Range{Start: startKey, End: endKey}, nil
}

// Contains 判断规范键是否落在区间内，两端包含。
// 键定宽且零填充，字符串字典序即日期序。
func (r Range) Contains(key string) bool {
	return r.Start <= key && key <= r.End
}
