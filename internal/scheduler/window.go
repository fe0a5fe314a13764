package scheduler

import "sort"

// ── 空闲窗口计算 ──

// MinuteRange 当日分钟偏移表示的占用区间 [Start, End)
type MinuteRange struct {
	Start int
	End   int
}

// Window 某个日期上的一段空闲连续区间
type Window struct {
	Date     string // "2006-01-02"
	StartMin int
	EndMin   int
}

// Size 窗口长度（分钟）
func (w Window) Size() int { return w.EndMin - w.StartMin }

// StartClock 窗口起点的 "HH:MM" 表示
func (w Window) StartClock() string { return FormatClock(w.StartMin) }

// EndClock 窗口终点的 "HH:MM" 表示
func (w Window) EndClock() string { return FormatClock(w.EndMin) }

// mergeRanges 按起点排序后合并重叠/相邻的占用区间
func mergeRanges(ranges []MinuteRange) []MinuteRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]MinuteRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := []MinuteRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// FreeWindows 从单个可用时段中减去占用区间，返回残余空闲窗口。
//
// 保证：返回的窗口互不相交、按起点升序、完全包含于原时段。
// 退化时段（起点≥终点或时刻无法解析）返回空列表而非报错。
func FreeWindows(date, slotStart, slotEnd string, occupied []MinuteRange) []Window {
	start, err := ParseClock(slotStart)
	if err != nil {
		return nil
	}
	end, err := ParseClock(slotEnd)
	if err != nil {
		return nil
	}
	if end <= start {
		return nil
	}

	var windows []Window
	cursor := start
	for _, r := range mergeRanges(occupied) {
		if r.End <= cursor || r.Start >= end {
			continue
		}
		if r.Start > cursor {
			windows = append(windows, Window{Date: date, StartMin: cursor, EndMin: min(r.Start, end)})
		}
		if r.End > cursor {
			cursor = r.End
		}
		if cursor >= end {
			return windows
		}
	}
	if cursor < end {
		windows = append(windows, Window{Date: date, StartMin: cursor, EndMin: end})
	}
	return windows
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
