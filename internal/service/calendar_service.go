package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"studyflow/backend/internal/dto"
	"studyflow/backend/internal/model"
	"studyflow/backend/internal/repository"
)

// ── 日历模块业务错误 ──

var (
	ErrICSSourceMissing = errors.New("必须提供 ICS 链接或内容之一")
	ErrICSParseFailed   = errors.New("ICS 格式解析失败")
)

const (
	icsMaxFileSize        = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout       = 30 * time.Second
	icsDefaultHorizonDays = 30
	localTimezone         = "Asia/Shanghai"
)

// CalendarService 外部日历业务接口
//
// 设计决策：
//   - 每个 VEVENT 的每次发生展开为一条具体时间戳的事件行，
//     排程引擎按日期直接消费，无需运行时重复计算 RRULE
//   - 仅展开 FREQ=WEEKLY 的重复（课表/例会场景），其余按单次处理
//   - DTSTART 为纯日期格式 → 全天事件，不参与冲突检测
//   - 重新导入前整体清除 source=ics 的旧数据，导入天然幂等
type CalendarService interface {
	// ImportICS 导入 ICS 日历（URL 或文本内容）
	ImportICS(ctx context.Context, req *dto.ImportICSRequest) (*dto.ImportICSResponse, error)
	// ListEvents 查询时间范围内的日历事件
	ListEvents(ctx context.Context, from, to time.Time) ([]dto.CalendarEventResponse, error)
}

type calendarService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, logger: logger}
}

func (s *calendarService) ImportICS(ctx context.Context, req *dto.ImportICSRequest) (*dto.ImportICSResponse, error) {
	var reader io.Reader
	switch {
	case req.Content != "":
		reader = strings.NewReader(req.Content)
	case req.URL != "":
		body, err := fetchICSContent(req.URL)
		if err != nil {
			s.logger.Error("获取 ICS 内容失败", zap.String("url", req.URL), zap.Error(err))
			return nil, err
		}
		defer body.Close()
		reader = body
	default:
		return nil, ErrICSSourceMissing
	}

	horizon := req.HorizonDays
	if horizon <= 0 {
		horizon = icsDefaultHorizonDays
	}

	events, skipped, err := parseICS(reader, time.Now(), horizon)
	if err != nil {
		return nil, err
	}

	// 覆盖式导入：旧 ics 数据整体清除
	if err := s.repo.CalendarEvent.DeleteBySource(ctx, "ics"); err != nil {
		s.logger.Error("清除旧日历事件失败", zap.Error(err))
		return nil, err
	}
	if err := s.repo.CalendarEvent.BatchCreate(ctx, events); err != nil {
		s.logger.Error("写入日历事件失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("ICS 日历导入完成",
		zap.Int("imported", len(events)),
		zap.Int("skipped", skipped))

	resp := &dto.ImportICSResponse{
		ImportedCount: len(events),
		SkippedCount:  skipped,
	}
	for i := range events {
		resp.Events = append(resp.Events, toCalendarEventResponse(&events[i]))
	}
	return resp, nil
}

func (s *calendarService) ListEvents(ctx context.Context, from, to time.Time) ([]dto.CalendarEventResponse, error) {
	events, err := s.repo.CalendarEvent.ListBetween(ctx, from, to)
	if err != nil {
		s.logger.Error("查询日历事件失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.CalendarEventResponse, 0, len(events))
	for i := range events {
		result = append(result, toCalendarEventResponse(&events[i]))
	}
	return result, nil
}

func toCalendarEventResponse(ev *model.CalendarEvent) dto.CalendarEventResponse {
	return dto.CalendarEventResponse{
		ID:       ev.EventID,
		Title:    ev.Title,
		StartAt:  ev.StartAt.Format(time.RFC3339),
		EndAt:    ev.EndAt.Format(time.RFC3339),
		IsAllDay: ev.IsAllDay,
		Source:   ev.Source,
	}
}

// ── ICS 解析 ──

// fetchICSContent 从 URL 获取 ICS 内容
func fetchICSContent(rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小，防止恶意 URL 返回超大内容导致 OOM
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// parseICS 解析 ICS 内容并展开为具体事件行。
// 返回值 skipped 为缺字段/超出视野被丢弃的 VEVENT 数。
func parseICS(reader io.Reader, now time.Time, horizonDays int) ([]model.CalendarEvent, int, error) {
	cal, err := ics.ParseCalendar(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrICSParseFailed, err)
	}

	loc, _ := time.LoadLocation(localTimezone)
	windowStart := now.AddDate(0, 0, -1)
	windowEnd := now.AddDate(0, 0, horizonDays)

	var events []model.CalendarEvent
	skipped := 0
	for _, evt := range cal.Events() {
		parsed, ok := parseVEvent(evt, loc, windowStart, windowEnd)
		if !ok {
			skipped++
			continue
		}
		events = append(events, parsed...)
	}
	return events, skipped, nil
}

// parseVEvent 解析单个 VEVENT，重复事件展开为多条
func parseVEvent(evt *ics.VEvent, loc *time.Location, windowStart, windowEnd time.Time) ([]model.CalendarEvent, bool) {
	summary := evt.GetProperty(ics.ComponentPropertySummary)
	title := ""
	if summary != nil {
		title = strings.TrimSpace(summary.Value)
	}
	if title == "" {
		title = "外部日历事件"
	}

	start, allDay, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return nil, false
	}
	end, _, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			// 无 DTEND 的定时事件按 1 小时处理
			end = start.Add(time.Hour)
		}
	}
	duration := end.Sub(start)
	if duration <= 0 {
		return nil, false
	}

	occurrences := expandOccurrences(evt, start, loc, windowStart, windowEnd)
	if len(occurrences) == 0 {
		return nil, false
	}

	result := make([]model.CalendarEvent, 0, len(occurrences))
	for _, occ := range occurrences {
		result = append(result, model.CalendarEvent{
			EventID:  uuid.NewString(),
			Title:    title,
			StartAt:  occ,
			EndAt:    occ.Add(duration),
			IsAllDay: allDay,
			Source:   "ics",
		})
	}
	return result, true
}

// expandOccurrences 计算事件在导入窗口内的全部发生时刻。
// 仅展开 FREQ=WEEKLY；UNTIL / COUNT / INTERVAL / EXDATE 均生效。
func expandOccurrences(evt *ics.VEvent, dtStart time.Time, loc *time.Location, windowStart, windowEnd time.Time) []time.Time {
	inWindow := func(t time.Time) bool {
		return !t.Before(windowStart) && t.Before(windowEnd)
	}

	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		if inWindow(dtStart) {
			return []time.Time{dtStart}
		}
		return nil
	}

	rule := parseRRule(rruleProp.Value)
	if rule.freq != "WEEKLY" {
		// 非周重复按单次处理
		if inWindow(dtStart) {
			return []time.Time{dtStart}
		}
		return nil
	}

	exDates := parseExDates(evt, loc)
	interval := rule.interval
	if interval < 1 {
		interval = 1
	}

	var occurrences []time.Time
	current := dtStart
	count := 0
	for !current.After(windowEnd) {
		if !rule.until.IsZero() && current.After(rule.until) {
			break
		}
		if rule.count > 0 && count >= rule.count {
			break
		}
		if inWindow(current) && !exDates[current.In(loc).Format("20060102")] {
			occurrences = append(occurrences, current)
		}
		count++
		current = current.AddDate(0, 0, 7*interval)
	}
	return occurrences
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;INTERVAL=1）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			fmt.Sscanf(kv[1], "%d", &r.interval)
		case "COUNT":
			fmt.Sscanf(kv[1], "%d", &r.count)
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				t, _ = time.Parse("20060102", kv[1])
			}
			r.until = t
		}
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken == string(ics.ComponentPropertyExdate) {
			t, err := time.Parse("20060102T150405Z", prop.Value)
			if err != nil {
				t, err = time.Parse("20060102T150405", prop.Value)
				if err != nil {
					t, err = time.Parse("20060102", prop.Value)
				}
			}
			if err == nil {
				exDates[t.In(loc).Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性。
// 纯日期格式（VALUE=DATE）视为全天。
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", propName)
	}
	val := prop.Value

	// 检查 TZID 参数
	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.Parse("20060102T150405", val); err == nil {
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), false, nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), false, nil
	}
	if t, err := time.Parse("20060102", val); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true, nil
	}

	return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
}
