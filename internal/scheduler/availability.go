package scheduler

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"studyflow/backend/internal/model"
)

// ── 可用性索引 ──
//
// 一次排程调用只做一遍视野展开：逐日套用周模板、过滤当日占用、
// 调用 FreeWindows，得到按窗口大小降序的扁平列表。
// 索引纯粹为了效率，结果必须与逐次按需计算完全一致。

// AvailabilityIndex 多日视野内全部空闲窗口的预计算结果
type AvailabilityIndex struct {
	windows []Window
	byDate  map[string][]Window
}

// BuildAvailabilityIndex 展开 [startDate, startDate+horizonDays) 内的空闲窗口。
//
// 规则：
//   - 模板中 is_active=false 的时段不参与
//   - 已排会话按其日期换算为占用区间；时刻解析失败记警告后跳过该条
//   - 全天日历事件不参与冲突检测；跨日事件裁剪到当日 [00:00, 24:00)
func BuildAvailabilityIndex(
	slots []model.AvailabilitySlot,
	sessions []model.ScheduledSession,
	events []model.CalendarEvent,
	startDate time.Time,
	horizonDays int,
	logger *zap.Logger,
) *AvailabilityIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &AvailabilityIndex{byDate: make(map[string][]Window)}
	if horizonDays <= 0 {
		return idx
	}

	// 周模板索引: day_of_week → slots
	slotsByDay := make(map[int][]model.AvailabilitySlot)
	for _, s := range slots {
		if !s.IsActive {
			continue
		}
		slotsByDay[s.DayOfWeek] = append(slotsByDay[s.DayOfWeek], s)
	}
	for dow := range slotsByDay {
		day := slotsByDay[dow]
		sort.Slice(day, func(i, j int) bool { return day[i].StartTime < day[j].StartTime })
	}

	// 已排会话索引: date → ranges
	sessionRanges := make(map[string][]MinuteRange)
	for _, sess := range sessions {
		dateStr := FormatDate(sess.Date)
		start, err := ParseClock(sess.StartTime)
		if err != nil {
			logger.Warn("会话开始时刻无法解析，已跳过", zap.String("session_id", sess.SessionID), zap.Error(err))
			continue
		}
		end, err := ParseClock(sess.EndTime)
		if err != nil {
			logger.Warn("会话结束时刻无法解析，已跳过", zap.String("session_id", sess.SessionID), zap.Error(err))
			continue
		}
		sessionRanges[dateStr] = append(sessionRanges[dateStr], MinuteRange{Start: start, End: end})
	}

	base := truncateToDay(startDate)
	for offset := 0; offset < horizonDays; offset++ {
		day := AddDays(base, offset)
		dateStr := FormatDate(day)
		daySlots := slotsByDay[ISOWeekday(day)]
		if len(daySlots) == 0 {
			continue
		}

		occupied := append([]MinuteRange(nil), sessionRanges[dateStr]...)
		occupied = append(occupied, eventRangesForDay(events, day)...)

		for _, slot := range daySlots {
			for _, w := range FreeWindows(dateStr, slot.StartTime, slot.EndTime, occupied) {
				idx.windows = append(idx.windows, w)
				idx.byDate[dateStr] = append(idx.byDate[dateStr], w)
			}
		}
	}

	for date := range idx.byDate {
		day := idx.byDate[date]
		sort.Slice(day, func(i, j int) bool { return day[i].StartMin < day[j].StartMin })
	}
	// 大窗口优先；同大小按日期、起点保证全序
	sort.Slice(idx.windows, func(i, j int) bool {
		if idx.windows[i].Size() != idx.windows[j].Size() {
			return idx.windows[i].Size() > idx.windows[j].Size()
		}
		if idx.windows[i].Date != idx.windows[j].Date {
			return idx.windows[i].Date < idx.windows[j].Date
		}
		return idx.windows[i].StartMin < idx.windows[j].StartMin
	})

	return idx
}

// eventRangesForDay 将与指定日期相交的非全天事件裁剪为当日占用区间
func eventRangesForDay(events []model.CalendarEvent, day time.Time) []MinuteRange {
	dayStart := truncateToDay(day)
	dayEnd := AddDays(dayStart, 1)

	var ranges []MinuteRange
	for _, ev := range events {
		if ev.IsAllDay {
			continue
		}
		if !ev.StartAt.Before(dayEnd) || !ev.EndAt.After(dayStart) {
			continue
		}
		start := 0
		if ev.StartAt.After(dayStart) {
			start = ev.StartAt.Hour()*60 + ev.StartAt.Minute()
		}
		end := minutesPerDay
		if ev.EndAt.Before(dayEnd) {
			end = ev.EndAt.Hour()*60 + ev.EndAt.Minute()
		}
		if end > start {
			ranges = append(ranges, MinuteRange{Start: start, End: end})
		}
	}
	return ranges
}

// Windows 全部窗口，大窗口优先（副本，调用方可自由消费）
func (idx *AvailabilityIndex) Windows() []Window {
	out := make([]Window, len(idx.windows))
	copy(out, idx.windows)
	return out
}

// WindowsForDate 指定日期的窗口，按起点升序
func (idx *AvailabilityIndex) WindowsForDate(date string) []Window {
	return idx.byDate[date]
}

// LargestWindowSize 视野内最大的单个窗口（分钟），无窗口时为 0
func (idx *AvailabilityIndex) LargestWindowSize() int {
	if len(idx.windows) == 0 {
		return 0
	}
	return idx.windows[0].Size()
}

// TotalMinutes 视野内可用总分钟数；dailyCap > 0 时按日封顶
func (idx *AvailabilityIndex) TotalMinutes(dailyCap int) int {
	total := 0
	for date := range idx.byDate {
		dayTotal := 0
		for _, w := range idx.byDate[date] {
			dayTotal += w.Size()
		}
		if dailyCap > 0 && dayTotal > dailyCap {
			dayTotal = dailyCap
		}
		total += dayTotal
	}
	return total
}

// HasUsableWindow 是否存在不小于 minMinutes 的窗口
func (idx *AvailabilityIndex) HasUsableWindow(minMinutes int) bool {
	return idx.LargestWindowSize() >= minMinutes
}
