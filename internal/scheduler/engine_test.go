package scheduler

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"studyflow/backend/internal/model"
)

func engineSubtask(id string, duration int) model.Subtask {
	return model.Subtask{
		SubtaskID:         id,
		Title:             id,
		Phase:             model.PhaseLearning,
		Difficulty:        model.DifficultyMedium,
		EstimatedDuration: duration,
		MinSessionMinutes: 25,
		MaxSessionMinutes: 90,
		CanBeSplit:        true,
	}
}

func strictOpts(t *testing.T, horizonDays int) Options {
	return Options{
		StartDate:   testMonday(t),
		HorizonDays: horizonDays,
		Mode:        ModeStrict,
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestSchedule_SingleSubtaskFitsWindow(t *testing.T) {
	// 剩余 60 分钟，周一恰好有 60 分钟窗口
	engine := NewEngine(zap.NewNop())
	subtasks := []model.Subtask{engineSubtask("st-1", 60)}
	slots := []model.AvailabilitySlot{weekdaySlot(1, "09:00", "10:00")}

	result := engine.Schedule(subtasks, slots, nil, nil, strictOpts(t, 7))

	if !result.Success {
		t.Fatalf("期望排程成功，实际失败: %s", result.Message)
	}
	if len(result.Sessions) != 1 {
		t.Fatalf("期望 1 个会话，实际 %d", len(result.Sessions))
	}
	s := result.Sessions[0]
	if s.Date != "2026-01-05" || s.StartTime != "09:00" || s.EndTime != "10:00" || s.Duration != 60 {
		t.Errorf("会话错误: %+v", s)
	}
	if s.IsSegmented {
		t.Error("单会话不应标注分段")
	}
	if !contains(result.ScheduledSubtaskIDs, "st-1") {
		t.Error("st-1 应计入完整排入")
	}
	if result.CompletionDate != "2026-01-05" {
		t.Errorf("完成日期 = %s, 期望 2026-01-05", result.CompletionDate)
	}
}

func TestSchedule_SplitsAcrossDays(t *testing.T) {
	// 剩余 180 分钟，单会话上限 90，周一/周二各 90 分钟窗口 → 两段
	engine := NewEngine(zap.NewNop())
	subtasks := []model.Subtask{engineSubtask("st-1", 180)}
	slots := []model.AvailabilitySlot{
		weekdaySlot(1, "09:00", "10:30"),
		weekdaySlot(2, "09:00", "10:30"),
	}

	result := engine.Schedule(subtasks, slots, nil, nil, strictOpts(t, 7))

	if !result.Success {
		t.Fatalf("期望排程成功，实际失败: %s", result.Message)
	}
	if len(result.Sessions) != 2 {
		t.Fatalf("期望 2 个分段，实际 %d", len(result.Sessions))
	}
	for i, s := range result.Sessions {
		if !s.IsSegmented || s.TotalSegments != 2 {
			t.Errorf("分段标注错误: %+v", s)
		}
		if s.SegmentIndex != i+1 {
			t.Errorf("分段序号 = %d, 期望 %d", s.SegmentIndex, i+1)
		}
		if s.Duration != 90 {
			t.Errorf("分段时长 = %d, 期望 90", s.Duration)
		}
	}
	if result.Sessions[0].Date != "2026-01-05" || result.Sessions[1].Date != "2026-01-06" {
		t.Errorf("分段日期错误: %s / %s", result.Sessions[0].Date, result.Sessions[1].Date)
	}
}

func TestSchedule_RelaxationPlacesShortTail(t *testing.T) {
	// 剩余 12 分钟、最短会话 25，唯一窗口只有 10 分钟：
	// 前两轮放宽不够，第三轮 floor=10 可排入；残余 2 分钟不足
	// 最低会话时长，视为完整排入
	engine := NewEngine(zap.NewNop())
	st := engineSubtask("st-1", 12)
	subtasks := []model.Subtask{st}
	slots := []model.AvailabilitySlot{weekdaySlot(1, "09:00", "09:10")}

	result := engine.Schedule(subtasks, slots, nil, nil, strictOpts(t, 7))

	if len(result.Sessions) != 1 || result.Sessions[0].Duration != 10 {
		t.Fatalf("期望放宽后排入 10 分钟，实际 %+v", result.Sessions)
	}
	if !contains(result.ScheduledSubtaskIDs, "st-1") {
		t.Error("残余尾巴不足 5 分钟时应视为完整排入")
	}
	if !result.Success {
		t.Error("期望排程成功")
	}
}

func TestSchedule_NoWindowsStructuredFailure(t *testing.T) {
	engine := NewEngine(zap.NewNop())
	subtasks := []model.Subtask{engineSubtask("st-1", 60)}

	result := engine.Schedule(subtasks, nil, nil, nil, strictOpts(t, 7))

	if result.Success {
		t.Error("无窗口时不应成功")
	}
	if !contains(result.UnscheduledSubtaskIDs, "st-1") {
		t.Error("st-1 应计入未排入")
	}
	if len(result.Sessions) != 0 {
		t.Errorf("不应产生会话，实际 %d 个", len(result.Sessions))
	}
	if result.Message == "" {
		t.Error("失败时应给出可读信息")
	}
}

func TestSchedule_TwoSubtasksNoOverlap(t *testing.T) {
	// 两个 60 分钟子任务，每天只有一个 60 分钟窗口
	engine := NewEngine(zap.NewNop())
	subtasks := []model.Subtask{engineSubtask("st-a", 60), engineSubtask("st-b", 60)}
	slots := []model.AvailabilitySlot{
		weekdaySlot(1, "09:00", "10:00"),
		weekdaySlot(2, "09:00", "10:00"),
	}

	result := engine.Schedule(subtasks, slots, nil, nil, strictOpts(t, 7))

	if !result.Success || len(result.Sessions) != 2 {
		t.Fatalf("期望两个子任务均排入: %+v", result)
	}
	if result.Sessions[0].Date == result.Sessions[1].Date {
		t.Error("同一个 60 分钟窗口不应排入两个 60 分钟会话")
	}
	assertNoOverlap(t, result.Sessions)
}

func TestSchedule_StrictLargestFirst(t *testing.T) {
	// 严格模式：剩余时长大的子任务先占最早的大窗口
	engine := NewEngine(zap.NewNop())
	small := engineSubtask("st-small", 30)
	big := engineSubtask("st-big", 120)
	big.MaxSessionMinutes = 120
	slots := []model.AvailabilitySlot{
		weekdaySlot(1, "09:00", "11:00"), // 120 分钟
		weekdaySlot(2, "09:00", "10:00"), // 60 分钟
	}

	result := engine.Schedule([]model.Subtask{small, big}, slots, nil, nil, strictOpts(t, 7))

	if !result.Success {
		t.Fatalf("期望排程成功: %s", result.Message)
	}
	for _, s := range result.Sessions {
		if s.SubtaskID == "st-big" && s.Date != "2026-01-05" {
			t.Errorf("大子任务应占周一窗口，实际 %s", s.Date)
		}
	}
}

func TestSchedule_FlexibleDispersesLoad(t *testing.T) {
	// 弹性模式：四个短子任务应分散到四个不同日期
	engine := NewEngine(zap.NewNop())
	subtasks := []model.Subtask{
		engineSubtask("st-1", 30),
		engineSubtask("st-2", 30),
		engineSubtask("st-3", 30),
		engineSubtask("st-4", 30),
	}
	slots := make([]model.AvailabilitySlot, 0, 7)
	for dow := 1; dow <= 7; dow++ {
		slots = append(slots, weekdaySlot(dow, "09:00", "10:00"))
	}

	opts := strictOpts(t, 4)
	opts.Mode = ModeFlexible
	opts.FlexibilityFactor = 1.0
	result := engine.Schedule(subtasks, slots, nil, nil, opts)

	if !result.Success || len(result.Sessions) != 4 {
		t.Fatalf("期望 4 个会话: %+v", result)
	}
	dates := make(map[string]bool)
	for _, s := range result.Sessions {
		dates[s.Date] = true
	}
	if len(dates) != 4 {
		t.Errorf("弹性模式应分散到 4 个日期，实际 %d 个", len(dates))
	}
}

func TestSchedule_DailyCapEnforced(t *testing.T) {
	engine := NewEngine(zap.NewNop())
	st := engineSubtask("st-1", 120)
	st.MaxSessionMinutes = 60
	slots := []model.AvailabilitySlot{weekdaySlot(1, "09:00", "12:00")}

	opts := strictOpts(t, 7)
	opts.DailyCapMinutes = 60
	result := engine.Schedule([]model.Subtask{st}, slots, nil, nil, opts)

	perDate := make(map[string]int)
	for _, s := range result.Sessions {
		perDate[s.Date] += s.Duration
	}
	for date, total := range perDate {
		if total > 60 {
			t.Errorf("%s 排入 %d 分钟，超过日封顶 60", date, total)
		}
	}
	if result.TotalScheduledMinutes != 60 {
		t.Errorf("总排入 = %d, 期望 60", result.TotalScheduledMinutes)
	}
	// 只排进一半：不算完整排入，但也不算一分钟没排上
	if contains(result.ScheduledSubtaskIDs, "st-1") || contains(result.UnscheduledSubtaskIDs, "st-1") {
		t.Errorf("部分排入的子任务归类错误: %+v", result)
	}
}

func TestSchedule_InterSessionBuffer(t *testing.T) {
	engine := NewEngine(zap.NewNop())
	subtasks := []model.Subtask{engineSubtask("st-a", 60), engineSubtask("st-b", 60)}
	slots := []model.AvailabilitySlot{weekdaySlot(1, "09:00", "12:00")}

	opts := strictOpts(t, 1)
	opts.InterSessionBufferMinutes = 15
	result := engine.Schedule(subtasks, slots, nil, nil, opts)

	if len(result.Sessions) != 2 {
		t.Fatalf("期望 2 个会话，实际 %d", len(result.Sessions))
	}
	first, second := result.Sessions[0], result.Sessions[1]
	if second.StartTime < first.StartTime {
		first, second = second, first
	}
	endMin, _ := ParseClock(first.EndTime)
	startMin, _ := ParseClock(second.StartTime)
	if startMin-endMin < 15 {
		t.Errorf("会话间隔 = %d 分钟，期望 ≥ 15", startMin-endMin)
	}
}

func TestSchedule_NonSplittableNeedsWholeWindow(t *testing.T) {
	// 不可拆分的 90 分钟子任务：60 分钟窗口不可用，只能落在 120 分钟窗口
	engine := NewEngine(zap.NewNop())
	st := engineSubtask("st-1", 90)
	st.CanBeSplit = false
	slots := []model.AvailabilitySlot{
		weekdaySlot(1, "09:00", "10:00"), // 60 分钟，放不下
		weekdaySlot(2, "09:00", "11:00"), // 120 分钟
	}

	result := engine.Schedule([]model.Subtask{st}, slots, nil, nil, strictOpts(t, 7))

	if len(result.Sessions) != 1 {
		t.Fatalf("不可拆分子任务应排为单会话，实际 %d 个", len(result.Sessions))
	}
	if result.Sessions[0].Date != "2026-01-06" || result.Sessions[0].Duration != 90 {
		t.Errorf("会话错误: %+v", result.Sessions[0])
	}
}

func TestSchedule_DependencyDateOrdering(t *testing.T) {
	// a 依赖 b：a 的最早会话日期不得早于 b 的最晚会话日期
	engine := NewEngine(zap.NewNop())
	a := engineSubtask("st-a", 60)
	a.DependsOn = model.StringArray{"st-b"}
	b := engineSubtask("st-b", 60)
	slots := []model.AvailabilitySlot{
		weekdaySlot(1, "09:00", "10:00"),
		weekdaySlot(2, "09:00", "10:00"),
	}

	opts := strictOpts(t, 7)
	opts.RespectDependencies = true
	result := engine.Schedule([]model.Subtask{a, b}, slots, nil, nil, opts)

	if !result.Success {
		t.Fatalf("期望排程成功: %s", result.Message)
	}
	latestB, earliestA := "", "9999-12-31"
	for _, s := range result.Sessions {
		switch s.SubtaskID {
		case "st-b":
			if s.Date > latestB {
				latestB = s.Date
			}
		case "st-a":
			if s.Date < earliestA {
				earliestA = s.Date
			}
		}
	}
	if earliestA < latestB {
		t.Errorf("依赖顺序被违反: st-a 最早 %s 早于 st-b 最晚 %s", earliestA, latestB)
	}
}

func TestSchedule_CompletedSubtasksSkipped(t *testing.T) {
	engine := NewEngine(zap.NewNop())
	done := engineSubtask("st-done", 60)
	done.Completed = true
	spent := engineSubtask("st-spent", 60)
	spent.TimeSpent = 60

	result := engine.Schedule([]model.Subtask{done, spent}, nil, nil, nil, strictOpts(t, 7))

	if !result.Success {
		t.Error("无待排子任务时应视为成功")
	}
	if len(result.Sessions) != 0 {
		t.Errorf("不应产生会话，实际 %d 个", len(result.Sessions))
	}
}

func TestSchedule_ExistingSessionsNotDoubleBooked(t *testing.T) {
	// 既有会话占用的时间不可再分配
	engine := NewEngine(zap.NewNop())
	subtasks := []model.Subtask{engineSubtask("st-1", 60)}
	slots := []model.AvailabilitySlot{weekdaySlot(1, "09:00", "11:00")}
	existing := []model.ScheduledSession{sessionOn("2026-01-05", "09:00", "10:00", 60)}

	result := engine.Schedule(subtasks, slots, existing, nil, strictOpts(t, 1))

	if len(result.Sessions) != 1 {
		t.Fatalf("期望 1 个会话，实际 %d", len(result.Sessions))
	}
	if result.Sessions[0].StartTime != "10:00" {
		t.Errorf("新会话应从 10:00 开始，实际 %s", result.Sessions[0].StartTime)
	}
}

func TestSchedule_Conservation(t *testing.T) {
	// 守恒：总排入分钟数 = 各会话时长之和；单子任务排入量 ≤ 剩余时长
	engine := NewEngine(zap.NewNop())
	subtasks := []model.Subtask{
		engineSubtask("st-1", 95),
		engineSubtask("st-2", 40),
		engineSubtask("st-3", 130),
	}
	slots := []model.AvailabilitySlot{
		weekdaySlot(1, "09:00", "12:00"),
		weekdaySlot(3, "14:00", "17:00"),
		weekdaySlot(5, "19:00", "21:00"),
	}

	result := engine.Schedule(subtasks, slots, nil, nil, strictOpts(t, 7))

	sum := 0
	perSubtask := make(map[string]int)
	for _, s := range result.Sessions {
		sum += s.Duration
		perSubtask[s.SubtaskID] += s.Duration
	}
	if sum != result.TotalScheduledMinutes {
		t.Errorf("总分钟数不守恒: 会话合计 %d, 结果字段 %d", sum, result.TotalScheduledMinutes)
	}
	for _, st := range subtasks {
		if perSubtask[st.SubtaskID] > st.RemainingTime() {
			t.Errorf("%s 排入 %d 分钟，超过剩余 %d", st.SubtaskID, perSubtask[st.SubtaskID], st.RemainingTime())
		}
	}
}

func TestSchedule_Deterministic(t *testing.T) {
	engine := NewEngine(zap.NewNop())
	subtasks := []model.Subtask{
		engineSubtask("st-1", 75),
		engineSubtask("st-2", 75),
		engineSubtask("st-3", 50),
	}
	slots := []model.AvailabilitySlot{
		weekdaySlot(1, "09:00", "11:00"),
		weekdaySlot(2, "09:00", "11:00"),
		weekdaySlot(4, "20:00", "22:00"),
	}
	opts := strictOpts(t, 7)
	opts.Mode = ModeFlexible

	first := engine.Schedule(subtasks, slots, nil, nil, opts)
	second := engine.Schedule(subtasks, slots, nil, nil, opts)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("相同输入应产生相同结果\n第一次: %+v\n第二次: %+v", first, second)
	}
}

func TestSchedule_DoesNotMutateInput(t *testing.T) {
	engine := NewEngine(zap.NewNop())
	subtasks := []model.Subtask{engineSubtask("st-b", 30), engineSubtask("st-a", 60)}
	slots := []model.AvailabilitySlot{weekdaySlot(1, "09:00", "12:00")}

	_ = engine.Schedule(subtasks, slots, nil, nil, strictOpts(t, 7))

	if subtasks[0].SubtaskID != "st-b" || subtasks[0].TimeSpent != 0 {
		t.Error("引擎不应原地修改输入子任务")
	}
}

// assertNoOverlap 校验同一日期内的会话互不重叠
func assertNoOverlap(t *testing.T, sessions []SubtaskSession) {
	t.Helper()
	type span struct{ start, end int }
	byDate := make(map[string][]span)
	for _, s := range sessions {
		start, err1 := ParseClock(s.StartTime)
		end, err2 := ParseClock(s.EndTime)
		if err1 != nil || err2 != nil {
			t.Fatalf("会话时刻无法解析: %+v", s)
		}
		byDate[s.Date] = append(byDate[s.Date], span{start, end})
	}
	for date, spans := range byDate {
		for i := 0; i < len(spans); i++ {
			for j := i + 1; j < len(spans); j++ {
				a, b := spans[i], spans[j]
				if a.start < b.end && b.start < a.end {
					t.Errorf("%s 存在重叠会话: [%d,%d) 与 [%d,%d)", date, a.start, a.end, b.start, b.end)
				}
			}
		}
	}
}
