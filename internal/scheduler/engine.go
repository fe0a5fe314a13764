package scheduler

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"studyflow/backend/internal/model"
)

// ── 排程模式 ──

// Mode 排程模式
type Mode string

const (
	// ModeStrict 严格模式：剩余时长大的子任务优先，窗口按最早日期+最大优先
	ModeStrict Mode = "strict"
	// ModeFlexible 弹性模式：按阶段/难度交错排列，负载分散到整个视野
	ModeFlexible Mode = "flexible"
)

const (
	defaultHorizonDays      = 14
	absoluteFloorMinutes    = 5  // 第4轮放宽后的最低会话时长
	maxRelaxationRounds     = 4  // 放宽轮数上限，保证终止
	successThresholdPercent = 80 // 完整排入比例达到该值才算成功
)

// Options 一次排程调用的全部配置（引擎无全局状态）
type Options struct {
	StartDate                 time.Time
	SkipToNextDay             bool
	HorizonDays               int
	InterSessionBufferMinutes int
	DailyCapMinutes           int // 0 = 不限
	Mode                      Mode
	RespectDependencies       bool
	FlexibilityFactor         float64
}

// SubtaskSession 引擎输出：子任务的一次具体排入
type SubtaskSession struct {
	SubtaskID     string `json:"subtask_id"`
	Date          string `json:"date"` // "2006-01-02"
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Duration      int    `json:"duration"` // 分钟
	SegmentIndex  int    `json:"segment_index,omitempty"`
	TotalSegments int    `json:"total_segments,omitempty"`
	IsSegmented   bool   `json:"is_segmented"`
}

// SchedulingResult 一次排程调用的完整结果
type SchedulingResult struct {
	Success               bool             `json:"success"`
	Sessions              []SubtaskSession `json:"sessions"`
	ScheduledSubtaskIDs   []string         `json:"scheduled_subtask_ids"`   // 完整排入
	UnscheduledSubtaskIDs []string         `json:"unscheduled_subtask_ids"` // 一分钟都没排上
	TotalScheduledMinutes int              `json:"total_scheduled_minutes"`
	CompletionDate        string           `json:"completion_date,omitempty"`
	Message               string           `json:"message"`
}

// Engine 贪心装箱排程引擎。
// 对输入快照是纯函数：不持有跨调用状态，不原地修改调用方数据。
type Engine struct {
	logger *zap.Logger
}

// NewEngine 创建排程引擎实例
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// ════════════════════════════════════════════════════════════
// Schedule — 贪心分配主流程
// ════════════════════════════════════════════════════════════
//
// 流程：
//   1. 过滤已完成/无剩余时长的子任务
//   2. 依赖拓扑排序（可选），再按模式排序
//   3. 逐子任务、至多 4 轮放宽地消费可用窗口
//   4. 扁平化会话并标注分段，汇总成功判定
//
// 不可行永远以 success=false 的结构化结果返回；
// 顶层 recover 把编程错误兜底成统一的系统错误结果。

func (e *Engine) Schedule(
	subtasks []model.Subtask,
	slots []model.AvailabilitySlot,
	sessions []model.ScheduledSession,
	events []model.CalendarEvent,
	opts Options,
) (result *SchedulingResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("排程引擎内部错误", zap.Any("panic", r))
			result = &SchedulingResult{
				Success:               false,
				Sessions:              []SubtaskSession{},
				ScheduledSubtaskIDs:   []string{},
				UnscheduledSubtaskIDs: []string{},
				Message:               "系统错误",
			}
		}
	}()

	opts = normalizeOptions(opts)

	// 1. 待排子任务
	pending := make([]model.Subtask, 0, len(subtasks))
	for _, st := range subtasks {
		if st.Completed || st.RemainingTime() <= 0 {
			continue
		}
		pending = append(pending, st)
	}
	if len(pending) == 0 {
		return &SchedulingResult{
			Success:               true,
			Sessions:              []SubtaskSession{},
			ScheduledSubtaskIDs:   []string{},
			UnscheduledSubtaskIDs: []string{},
			Message:               "无待排子任务",
		}
	}

	// 2. 排序：先按模式排，再做拓扑整理。
	// 拓扑排序对无依赖关系的子任务保持输入相对顺序，
	// 所以模式排序的意图在无约束处完整保留，而依赖方
	// 永远排在被依赖方之后，日期约束才有据可依。
	sortByMode(pending, opts.Mode)
	if opts.RespectDependencies {
		pending = ResolveDependencyOrder(pending, e.logger)
	}

	// 3. 可用窗口预计算
	startDate := opts.StartDate
	if opts.SkipToNextDay {
		startDate = AddDays(startDate, 1)
	}
	idx := BuildAvailabilityIndex(slots, sessions, events, startDate, opts.HorizonDays, e.logger)

	// 统一经字符串往返，避免时区差导致的日偏移误差
	baseDay, _ := ParseDate(FormatDate(startDate))
	state := &allocationState{
		windows:        idx.Windows(),
		dailyAllocated: make(map[string]int),
		dateSessions:   make(map[string]int),
		latestDate:     make(map[string]string),
		startDate:      baseDay,
	}
	// 依赖顺序约束要把既有会话也算进去（重排场景下保留的干净会话）
	for _, s := range sessions {
		if s.SubtaskID == "" {
			continue
		}
		d := FormatDate(s.Date)
		if d > state.latestDate[s.SubtaskID] {
			state.latestDate[s.SubtaskID] = d
		}
	}

	// 4. 逐子任务分配
	var (
		allSessions    []SubtaskSession
		scheduledIDs   []string
		unscheduledIDs []string
		totalMinutes   int
	)
	for i := range pending {
		st := &pending[i]
		placements := e.allocateSubtask(st, state, opts)

		placed := 0
		for _, p := range placements {
			placed += p.duration
		}
		totalMinutes += placed

		switch {
		case placed == 0:
			unscheduledIDs = append(unscheduledIDs, st.SubtaskID)
		case st.RemainingTime()-placed < absoluteFloorMinutes:
			// 残余不足最低会话时长的尾巴视为可忽略
			scheduledIDs = append(scheduledIDs, st.SubtaskID)
		}

		allSessions = append(allSessions, buildSessions(st.SubtaskID, placements)...)
	}

	// 5. 汇总
	completionDate := ""
	for _, s := range allSessions {
		if s.Date > completionDate {
			completionDate = s.Date
		}
	}

	success := len(scheduledIDs)*100 >= len(pending)*successThresholdPercent
	message := fmt.Sprintf("已完整排入 %d/%d 个子任务，共 %d 分钟", len(scheduledIDs), len(pending), totalMinutes)
	if len(allSessions) == 0 {
		message = "视野内无可用时间窗口，未能排入任何子任务"
	} else if !success {
		message = fmt.Sprintf("仅完整排入 %d/%d 个子任务，建议延长截止日期或增加可用时间", len(scheduledIDs), len(pending))
	}

	if allSessions == nil {
		allSessions = []SubtaskSession{}
	}
	if scheduledIDs == nil {
		scheduledIDs = []string{}
	}
	if unscheduledIDs == nil {
		unscheduledIDs = []string{}
	}

	return &SchedulingResult{
		Success:               success,
		Sessions:              allSessions,
		ScheduledSubtaskIDs:   scheduledIDs,
		UnscheduledSubtaskIDs: unscheduledIDs,
		TotalScheduledMinutes: totalMinutes,
		CompletionDate:        completionDate,
		Message:               message,
	}
}

// ── 分配内部状态 ──

type allocationState struct {
	windows        []Window
	dailyAllocated map[string]int    // date → 本次调用新排入的分钟数
	dateSessions   map[string]int    // date → 本次调用新排入的会话数
	latestDate     map[string]string // subtaskID → 最晚会话日期
	startDate      time.Time
}

type placement struct {
	date     string
	startMin int
	duration int
}

// allocateSubtask 为单个子任务执行至多 4 轮放宽的窗口消费
func (e *Engine) allocateSubtask(st *model.Subtask, state *allocationState, opts Options) []placement {
	remaining := st.RemainingTime()
	maxSession := st.MaxSessionMinutes
	if maxSession <= 0 {
		maxSession = remaining
	}
	if !st.CanBeSplit {
		// 不可拆分：单会话必须一次吃下全部剩余
		maxSession = remaining
	}

	// 依赖顺序约束：所有依赖的最晚会话日期之前的窗口不可用
	earliestDate := ""
	if opts.RespectDependencies {
		for _, depID := range st.DependsOn {
			if d := state.latestDate[depID]; d > earliestDate {
				earliestDate = d
			}
		}
	}

	var placements []placement
	for round := 1; round <= maxRelaxationRounds; round++ {
		floor := relaxedFloor(st.MinSessionMinutes, round)
		if !st.CanBeSplit {
			// 不可拆分：只有吃得下整块剩余的窗口才算候选
			floor = remaining
		}
		roundStart := remaining

		for remaining > 0 {
			wi, duration := e.pickWindow(state, opts, remaining, maxSession, floor, earliestDate)
			if wi < 0 {
				break
			}

			w := &state.windows[wi]
			placements = append(placements, placement{date: w.Date, startMin: w.StartMin, duration: duration})
			state.dailyAllocated[w.Date] += duration
			state.dateSessions[w.Date]++
			if w.Date > state.latestDate[st.SubtaskID] {
				state.latestDate[st.SubtaskID] = w.Date
			}
			remaining -= duration

			// 占用后保留残余窗口（起点后移，含会话间隔）
			w.StartMin += duration + opts.InterSessionBufferMinutes
			if w.Size() <= 0 {
				state.windows = append(state.windows[:wi], state.windows[wi+1:]...)
			}
		}

		// 本轮已排入 ≥50% 或全部排完，无需继续放宽
		if remaining == 0 || (roundStart-remaining)*2 >= roundStart {
			break
		}
	}
	return placements
}

// pickWindow 按模式选出当前最优窗口，返回窗口下标与可排入时长。
// 无可用窗口时返回 (-1, 0)。
func (e *Engine) pickWindow(state *allocationState, opts Options, remaining, maxSession, floor int, earliestDate string) (int, int) {
	bestIdx := -1
	bestDuration := 0
	var bestScore float64

	for i := range state.windows {
		w := &state.windows[i]
		if earliestDate != "" && w.Date < earliestDate {
			continue
		}

		usable := w.Size() - opts.InterSessionBufferMinutes
		if opts.DailyCapMinutes > 0 {
			capLeft := opts.DailyCapMinutes - state.dailyAllocated[w.Date]
			if capLeft <= 0 {
				continue
			}
			usable = min(usable, capLeft)
		}
		if usable < floor && usable < remaining {
			continue
		}

		duration := min(remaining, min(maxSession, usable))
		if duration <= 0 {
			continue
		}
		if duration < floor && duration < remaining {
			continue
		}

		score := e.scoreWindow(w, state, opts)
		if bestIdx < 0 || score > bestScore ||
			(score == bestScore && lessWindow(*w, state.windows[bestIdx])) {
			bestIdx = i
			bestDuration = duration
			bestScore = score
		}
	}
	return bestIdx, bestDuration
}

// scoreWindow 窗口打分（越大越优）
//   - strict: 最早日期优先，同日大窗口优先
//   - flexible: 离起始日越远越好（受弹性系数缩放），已聚集会话的日期受罚
func (e *Engine) scoreWindow(w *Window, state *allocationState, opts Options) float64 {
	day, err := ParseDate(w.Date)
	if err != nil {
		return 0
	}
	offset := daysBetween(state.startDate, day)

	if opts.Mode == ModeFlexible {
		// 负载罚项按视野放大：已有会话的日期必然劣于任何空日期，
		// 距离奖励只在会话数相同的日期之间分高下
		penalty := float64(state.dateSessions[w.Date]) * float64(opts.HorizonDays) * opts.FlexibilityFactor
		return float64(offset)*opts.FlexibilityFactor - penalty
	}
	// strict: 日期权重远大于窗口大小，保证最早日期先被选中
	return -float64(offset)*float64(minutesPerDay) + float64(w.Size())
}

// lessWindow 分数相同时的确定性决胜：日期、起点、终点
func lessWindow(a, b Window) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if a.StartMin != b.StartMin {
		return a.StartMin < b.StartMin
	}
	return a.EndMin < b.EndMin
}

// relaxedFloor 第 round 轮的最低会话时长
// 第1轮用配置值，第2轮 -10，第3轮 -15，第4轮一律 5 分钟
func relaxedFloor(minSession, round int) int {
	var floor int
	switch round {
	case 1:
		floor = minSession
	case 2:
		floor = minSession - 10
	case 3:
		floor = minSession - 15
	default:
		floor = absoluteFloorMinutes
	}
	return max(floor, absoluteFloorMinutes)
}

// sortByMode 模式排序（全序，显式决胜保证确定性）
func sortByMode(subtasks []model.Subtask, mode Mode) {
	if mode == ModeFlexible {
		// 按阶段教学顺序分组，组内难度升序、剩余时长升序，刻意交错长短任务
		sort.SliceStable(subtasks, func(i, j int) bool {
			a, b := &subtasks[i], &subtasks[j]
			if a.Phase.Order() != b.Phase.Order() {
				return a.Phase.Order() < b.Phase.Order()
			}
			if a.Difficulty.Rank() != b.Difficulty.Rank() {
				return a.Difficulty.Rank() < b.Difficulty.Rank()
			}
			if a.RemainingTime() != b.RemainingTime() {
				return a.RemainingTime() < b.RemainingTime()
			}
			if a.SortOrder != b.SortOrder {
				return a.SortOrder < b.SortOrder
			}
			return a.SubtaskID < b.SubtaskID
		})
		return
	}
	// strict: 最大最受约束的先排，降低碎片化风险
	sort.SliceStable(subtasks, func(i, j int) bool {
		a, b := &subtasks[i], &subtasks[j]
		if a.RemainingTime() != b.RemainingTime() {
			return a.RemainingTime() > b.RemainingTime()
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.SubtaskID < b.SubtaskID
	})
}

// buildSessions 将放置记录转为输出会话，并标注分段
func buildSessions(subtaskID string, placements []placement) []SubtaskSession {
	if len(placements) == 0 {
		return nil
	}
	sort.Slice(placements, func(i, j int) bool {
		if placements[i].date != placements[j].date {
			return placements[i].date < placements[j].date
		}
		return placements[i].startMin < placements[j].startMin
	})

	segmented := len(placements) > 1
	out := make([]SubtaskSession, 0, len(placements))
	for i, p := range placements {
		s := SubtaskSession{
			SubtaskID:   subtaskID,
			Date:        p.date,
			StartTime:   FormatClock(p.startMin),
			EndTime:     FormatClock(p.startMin + p.duration),
			Duration:    p.duration,
			IsSegmented: segmented,
		}
		if segmented {
			s.SegmentIndex = i + 1
			s.TotalSegments = len(placements)
		}
		out = append(out, s)
	}
	return out
}

// normalizeOptions 填充默认值
func normalizeOptions(opts Options) Options {
	if opts.StartDate.IsZero() {
		opts.StartDate = time.Now()
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = defaultHorizonDays
	}
	if opts.Mode != ModeStrict && opts.Mode != ModeFlexible {
		opts.Mode = ModeStrict
	}
	if opts.FlexibilityFactor <= 0 {
		opts.FlexibilityFactor = 1.0
	}
	if opts.InterSessionBufferMinutes < 0 {
		opts.InterSessionBufferMinutes = 0
	}
	return opts
}
