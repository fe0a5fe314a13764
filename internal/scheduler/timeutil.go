package scheduler

import (
	"fmt"
	"time"
)

// ── 时间基础运算 ──
//
// 排程引擎内部统一用两种表示：
//   - 日期: "2006-01-02" 字符串（按日比较可直接字典序）
//   - 时刻: 自当日 00:00 起的分钟偏移
// 解析失败在此边界显式返回 error，由调用方决定回退策略，
// 不在内部吞掉后静默取零。

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"

	minutesPerDay = 24 * 60
)

// ParseClock 将 "HH:MM" 解析为分钟偏移（0-1439）
func ParseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("无法解析时刻 %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock 将分钟偏移格式化为 "HH:MM"
func FormatClock(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	if minutes >= minutesPerDay {
		minutes = minutesPerDay - 1
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate 将 "2006-01-02" 解析为日期（本地零点）
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("无法解析日期 %q: %w", s, err)
	}
	return t, nil
}

// FormatDate 将日期格式化为 "2006-01-02"
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ISOWeekday 将 Go 的 time.Weekday (0=Sunday) 转为 ISO 8601 (1=Monday … 7=Sunday)
func ISOWeekday(t time.Time) int {
	wd := t.Weekday()
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// AddDays 日期加 n 天
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// truncateToDay 截到当日零点（保留原时区）
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween 两个日期相差的天数（b - a，按日历日）
func daysBetween(a, b time.Time) int {
	return int(truncateToDay(b).Sub(truncateToDay(a)).Hours() / 24)
}
