package scheduler

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"studyflow/backend/internal/model"
)

// ── 冲突消解与重排 ──
//
// 两类操作：
//   - 批量重排：新日历事件作废部分会话，只对受影响的子任务重跑分配，
//     干净会话原样保留并作为追加占用参与约束
//   - 单任务智能重排：为一个过期/冲突的子任务挑选下一个最佳窗口，
//     给出评分与人话理由；找不到时返回可执行建议而非静默失败

// UrgencyLevel 截止日期派生的紧急度
type UrgencyLevel string

const (
	UrgencyCritical UrgencyLevel = "critical" // ≤1 天
	UrgencyHigh     UrgencyLevel = "high"     // ≤3 天
	UrgencyMedium   UrgencyLevel = "medium"   // ≤7 天
	UrgencyLow      UrgencyLevel = "low"
)

// UrgencyFromDue 按距截止日期的天数划定紧急度；无截止日期视为 low
func UrgencyFromDue(due *time.Time, now time.Time) UrgencyLevel {
	if due == nil {
		return UrgencyLow
	}
	days := daysBetween(now, *due)
	switch {
	case days <= 1:
		return UrgencyCritical
	case days <= 3:
		return UrgencyHigh
	case days <= 7:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// RescheduleResult 批量重排结果
type RescheduleResult struct {
	Success            bool              `json:"success"`
	RemovedSessionIDs  []string          `json:"removed_session_ids"`
	AffectedSubtaskIDs []string          `json:"affected_subtask_ids"`
	Result             *SchedulingResult `json:"result,omitempty"` // 受影响子集的重新分配结果
	Message            string            `json:"message"`
}

// SlotRecommendation 单任务重排的推荐结果
type SlotRecommendation struct {
	Found       bool         `json:"found"`
	Date        string       `json:"date,omitempty"`
	StartTime   string       `json:"start_time,omitempty"`
	EndTime     string       `json:"end_time,omitempty"`
	Duration    int          `json:"duration,omitempty"`
	Score       float64      `json:"score"`
	Urgency     UrgencyLevel `json:"urgency"`
	Rationale   string       `json:"rationale,omitempty"`
	Suggestions []string     `json:"suggestions,omitempty"`
}

// SingleRescheduleOptions 单任务重排配置
type SingleRescheduleOptions struct {
	StartDate   time.Time
	HorizonDays int
	DueDate     *time.Time
	Priority    int // 任务显式优先级 0-10
}

// Rescheduler 冲突消解器
type Rescheduler struct {
	engine *Engine
	logger *zap.Logger
}

// NewRescheduler 创建冲突消解器实例
func NewRescheduler(logger *zap.Logger) *Rescheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rescheduler{engine: NewEngine(logger), logger: logger}
}

// ════════════════════════════════════════════════════════════
// ResolveConflicts — 批量重排
// ════════════════════════════════════════════════════════════
//
// 1. 按新事件集把现有会话划分为冲突/干净两组
// 2. 冲突组整体作废（上层负责删除落库记录）
// 3. 只为失去会话的子任务重跑引擎，干净组作为追加占用传入

func (r *Rescheduler) ResolveConflicts(
	subtasks []model.Subtask,
	slots []model.AvailabilitySlot,
	existing []model.ScheduledSession,
	events []model.CalendarEvent,
	opts Options,
) *RescheduleResult {
	conflicting, clean := partitionSessions(existing, events)
	if len(conflicting) == 0 {
		return &RescheduleResult{
			Success:            true,
			RemovedSessionIDs:  []string{},
			AffectedSubtaskIDs: []string{},
			Message:            "无会话与新日历事件冲突，无需重排",
		}
	}

	// 每个受影响子任务需要重新安置的分钟数 = 其被作废会话的时长合计
	lostMinutes := make(map[string]int)
	removedIDs := make([]string, 0, len(conflicting))
	for _, s := range conflicting {
		lostMinutes[s.SubtaskID] += s.Duration
		removedIDs = append(removedIDs, s.SessionID)
	}

	affected := make([]model.Subtask, 0, len(lostMinutes))
	affectedIDs := make([]string, 0, len(lostMinutes))
	for _, st := range subtasks {
		need, ok := lostMinutes[st.SubtaskID]
		if !ok {
			continue
		}
		// 重排快照：把 TimeSpent 调整为"只剩被作废的分钟数待排"，
		// 引擎据此只补齐丢失的部分，不碰干净会话已覆盖的时间
		snapshot := st
		need = min(need, st.RemainingTime())
		snapshot.TimeSpent = snapshot.EffectiveDuration() - need
		affected = append(affected, snapshot)
		affectedIDs = append(affectedIDs, st.SubtaskID)
	}
	sort.Strings(affectedIDs)

	result := r.engine.Schedule(affected, slots, clean, events, opts)

	r.logger.Info("批量重排完成",
		zap.Int("removed_sessions", len(removedIDs)),
		zap.Int("affected_subtasks", len(affectedIDs)),
		zap.Bool("success", result.Success))

	message := fmt.Sprintf("%d 个会话与新日历事件冲突，已为 %d 个子任务重新排程", len(removedIDs), len(affectedIDs))
	if !result.Success {
		message += "；部分子任务未能完整重新排入"
	}

	return &RescheduleResult{
		Success:            result.Success,
		RemovedSessionIDs:  removedIDs,
		AffectedSubtaskIDs: affectedIDs,
		Result:             result,
		Message:            message,
	}
}

// partitionSessions 按事件集把会话分为冲突/干净两组（全天事件不参与）
func partitionSessions(sessions []model.ScheduledSession, events []model.CalendarEvent) (conflicting, clean []model.ScheduledSession) {
	for _, s := range sessions {
		if sessionConflicts(s, events) {
			conflicting = append(conflicting, s)
		} else {
			clean = append(clean, s)
		}
	}
	return conflicting, clean
}

// sessionConflicts 会话是否与任一非全天事件在时间上重叠
func sessionConflicts(s model.ScheduledSession, events []model.CalendarEvent) bool {
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return false
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return false
	}
	day := truncateToDay(s.Date)
	for _, r := range eventRangesForDay(events, day) {
		if start < r.End && r.Start < end {
			return true
		}
	}
	return false
}

// ════════════════════════════════════════════════════════════
// RescheduleSubtask — 单任务智能重排
// ════════════════════════════════════════════════════════════
//
// 打分维度：紧急度对齐（越紧急越偏早）、时段-阶段/难度亲和度
// （难任务偏上午、复习偏晚间）、窗口大小充裕度。
// critical/high 紧急度直接取最早可行窗口，次级分数不再参与。

func (r *Rescheduler) RescheduleSubtask(
	subtask model.Subtask,
	slots []model.AvailabilitySlot,
	sessions []model.ScheduledSession,
	events []model.CalendarEvent,
	opts SingleRescheduleOptions,
) *SlotRecommendation {
	if opts.StartDate.IsZero() {
		opts.StartDate = time.Now()
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = defaultHorizonDays
	}
	horizon := opts.HorizonDays
	if opts.DueDate != nil {
		if left := daysBetween(opts.StartDate, *opts.DueDate); left >= 0 {
			horizon = min(horizon, left+1)
		}
	}

	urgency := UrgencyFromDue(opts.DueDate, opts.StartDate)
	remaining := subtask.RemainingTime()
	floor := max(min(subtask.MinSessionMinutes, remaining), absoluteFloorMinutes)

	idx := BuildAvailabilityIndex(slots, sessions, events, opts.StartDate, horizon, r.logger)

	type scoredWindow struct {
		w     Window
		score float64
	}
	var candidates []scoredWindow
	for _, w := range idx.Windows() {
		if w.Size() < floor {
			continue
		}
		candidates = append(candidates, scoredWindow{w: w, score: r.scoreCandidate(subtask, w, urgency, opts)})
	}

	if len(candidates) == 0 {
		return &SlotRecommendation{
			Found:   false,
			Urgency: urgency,
			Suggestions: []string{
				"延长任务的截止日期以扩大搜索范围",
				"允许拆分该子任务，使其适配更小的窗口",
				"在本周模板中增加可用时段或清理日历事件",
			},
		}
	}

	// critical/high 一律取最早可行窗口
	if urgency == UrgencyCritical || urgency == UrgencyHigh {
		sort.SliceStable(candidates, func(i, j int) bool { return lessWindow(candidates[i].w, candidates[j].w) })
	} else {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			return lessWindow(candidates[i].w, candidates[j].w)
		})
	}

	best := candidates[0]
	duration := min(remaining, best.w.Size())
	if subtask.MaxSessionMinutes > 0 {
		duration = min(duration, subtask.MaxSessionMinutes)
	}

	return &SlotRecommendation{
		Found:     true,
		Date:      best.w.Date,
		StartTime: best.w.StartClock(),
		EndTime:   FormatClock(best.w.StartMin + duration),
		Duration:  duration,
		Score:     best.score,
		Urgency:   urgency,
		Rationale: r.buildRationale(subtask, best.w, urgency, duration, remaining),
	}
}

// scoreCandidate 单窗口综合打分
func (r *Rescheduler) scoreCandidate(st model.Subtask, w Window, urgency UrgencyLevel, opts SingleRescheduleOptions) float64 {
	day, err := ParseDate(w.Date)
	if err != nil {
		return 0
	}
	base, _ := ParseDate(FormatDate(opts.StartDate))
	offset := daysBetween(base, day)

	// 紧急度对齐：越紧急，越早的窗口得分越高
	urgencyWeight := map[UrgencyLevel]float64{
		UrgencyCritical: 10,
		UrgencyHigh:     6,
		UrgencyMedium:   3,
		UrgencyLow:      1,
	}[urgency]
	score := -float64(offset) * urgencyWeight

	// 显式优先级略微前移
	score -= float64(opts.Priority) * float64(offset) * 0.05

	// 时段-阶段/难度亲和度
	morning := w.StartMin < 12*60
	evening := w.StartMin >= 18*60
	if st.Difficulty == model.DifficultyHard && morning {
		score += 15
	}
	switch st.Phase {
	case model.PhaseLearning:
		if morning {
			score += 8
		}
	case model.PhaseReview:
		if evening {
			score += 8
		}
	case model.PhasePractice:
		if !morning && !evening {
			score += 5
		}
	case model.PhasePreparation:
		// 准备类工作对时段不敏感
	}

	// 窗口充裕度：能一次吃下全部剩余的窗口更优
	if w.Size() >= st.RemainingTime() {
		score += 10
	} else {
		score += 10 * float64(w.Size()) / float64(max(st.RemainingTime(), 1))
	}

	return score
}

// buildRationale 生成人类可读的推荐理由
func (r *Rescheduler) buildRationale(st model.Subtask, w Window, urgency UrgencyLevel, duration, remaining int) string {
	reason := fmt.Sprintf("推荐 %s %s-%s（%d 分钟）", w.Date, w.StartClock(), FormatClock(w.StartMin+duration), duration)
	switch urgency {
	case UrgencyCritical:
		reason += "：截止日期迫在眉睫，取最早可行窗口"
	case UrgencyHigh:
		reason += "：距截止日期不足 3 天，优先尽早安排"
	default:
		if st.Difficulty == model.DifficultyHard && w.StartMin < 12*60 {
			reason += "：高难度内容安排在上午精力充沛的时段"
		} else if st.Phase == model.PhaseReview && w.StartMin >= 18*60 {
			reason += "：复习内容安排在晚间收尾时段"
		} else {
			reason += "：综合紧急度与时段亲和度的最高分窗口"
		}
	}
	if duration < remaining {
		reason += fmt.Sprintf("；剩余 %d 分钟需另行安排", remaining-duration)
	}
	return reason
}
