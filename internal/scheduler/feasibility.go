package scheduler

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"studyflow/backend/internal/model"
)

// ── 可行性预检 ──
//
// 在跑完整排程之前，对"需要多少分钟 vs 有多少分钟"做一次
// 廉价体检，产出结构化诊断与按影响排序的建议。
// 不可行从不抛错：一律落在 FeasibilityAnalysis 里。

// IssueSeverity 问题严重度
type IssueSeverity string

const (
	SeverityLow      IssueSeverity = "low"
	SeverityMedium   IssueSeverity = "medium"
	SeverityHigh     IssueSeverity = "high"
	SeverityCritical IssueSeverity = "critical"
)

// IssueType 问题类型
type IssueType string

const (
	IssueInsufficientTime IssueType = "insufficient_time"
	IssueSubtaskTooLong   IssueType = "subtask_too_long"
	IssueDeadlineTooTight IssueType = "deadline_too_tight"
	IssueNoSuitableSlots  IssueType = "no_suitable_slots"
)

// SuggestionType 建议类型
type SuggestionType string

const (
	SuggestExtendDeadline       SuggestionType = "extend_deadline"
	SuggestReduceScope          SuggestionType = "reduce_scope"
	SuggestReduceDuration       SuggestionType = "reduce_duration"
	SuggestEnableSplitting      SuggestionType = "enable_splitting"
	SuggestIncreaseAvailability SuggestionType = "increase_availability"
)

// FeasibilityIssue 一条结构化诊断
type FeasibilityIssue struct {
	Type        IssueType     `json:"type"`
	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
	SubtaskID   string        `json:"subtask_id,omitempty"`
}

// FeasibilitySuggestion 一条可执行建议及其预估影响
type FeasibilitySuggestion struct {
	Type          SuggestionType `json:"type"`
	Description   string         `json:"description"`
	ImpactMinutes int            `json:"impact_minutes"`
}

// FeasibilityAnalysis 可行性分析结果
type FeasibilityAnalysis struct {
	IsFeasible                   bool                    `json:"is_feasible"`
	CanProceedWithAutoScheduling bool                    `json:"can_proceed_with_auto_scheduling"`
	RequiredMinutes              int                     `json:"required_minutes"`
	AvailableMinutes             int                     `json:"available_minutes"`
	DeficitMinutes               int                     `json:"deficit_minutes"`
	Issues                       []FeasibilityIssue      `json:"issues"`
	Suggestions                  []FeasibilitySuggestion `json:"suggestions"`
}

// AnalyzeOptions 可行性分析配置
type AnalyzeOptions struct {
	StartDate       time.Time
	HorizonDays     int
	DailyCapMinutes int
	DueDate         *time.Time // 外部截止日期，会钳制视野
}

// Analyzer 可行性分析器
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer 创建可行性分析器实例
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// ════════════════════════════════════════════════════════════
// Analyze — 需求/供给对账 + 问题分类 + 建议生成
// ════════════════════════════════════════════════════════════

func (a *Analyzer) Analyze(
	subtasks []model.Subtask,
	slots []model.AvailabilitySlot,
	sessions []model.ScheduledSession,
	events []model.CalendarEvent,
	opts AnalyzeOptions,
) *FeasibilityAnalysis {
	if opts.StartDate.IsZero() {
		opts.StartDate = time.Now()
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = defaultHorizonDays
	}

	analysis := &FeasibilityAnalysis{
		Issues:      []FeasibilityIssue{},
		Suggestions: []FeasibilitySuggestion{},
	}

	// 1. 需求侧：剩余分钟总量
	required := 0
	pending := make([]model.Subtask, 0, len(subtasks))
	for _, st := range subtasks {
		if st.Completed || st.RemainingTime() <= 0 {
			continue
		}
		required += st.RemainingTime()
		pending = append(pending, st)
	}
	analysis.RequiredMinutes = required

	// 2. 截止日期钳制视野
	horizon := opts.HorizonDays
	if opts.DueDate != nil {
		daysLeft := daysBetween(opts.StartDate, *opts.DueDate)
		switch {
		case daysLeft < 0:
			analysis.Issues = append(analysis.Issues, FeasibilityIssue{
				Type:        IssueDeadlineTooTight,
				Severity:    SeverityCritical,
				Description: "截止日期已过，无法在期限内安排任何学习时间",
			})
			horizon = 0
		case daysLeft < 3:
			analysis.Issues = append(analysis.Issues, FeasibilityIssue{
				Type:        IssueDeadlineTooTight,
				Severity:    SeverityHigh,
				Description: fmt.Sprintf("距截止日期仅剩 %d 天，排程空间极为有限", daysLeft),
			})
			horizon = min(horizon, daysLeft+1)
		default:
			horizon = min(horizon, daysLeft+1)
		}
	}

	// 3. 供给侧：视野内可用分钟总量
	idx := BuildAvailabilityIndex(slots, sessions, events, opts.StartDate, horizon, a.logger)
	analysis.AvailableMinutes = idx.TotalMinutes(opts.DailyCapMinutes)
	analysis.DeficitMinutes = max(0, required-analysis.AvailableMinutes)

	largest := idx.LargestWindowSize()

	// 4. 问题分类
	if analysis.DeficitMinutes > 0 {
		severity := SeverityMedium
		if analysis.DeficitMinutes*2 > required {
			severity = SeverityCritical
		} else if analysis.DeficitMinutes*5 > required {
			severity = SeverityHigh
		}
		analysis.Issues = append(analysis.Issues, FeasibilityIssue{
			Type:     IssueInsufficientTime,
			Severity: severity,
			Description: fmt.Sprintf("需要 %d 分钟但仅有 %d 分钟可用，缺口 %d 分钟",
				required, analysis.AvailableMinutes, analysis.DeficitMinutes),
		})
	}

	minFloor := 0
	for _, st := range pending {
		if !st.CanBeSplit && st.RemainingTime() > largest {
			analysis.Issues = append(analysis.Issues, FeasibilityIssue{
				Type:     IssueSubtaskTooLong,
				Severity: SeverityHigh,
				Description: fmt.Sprintf("子任务「%s」不可拆分且需要 %d 分钟，超过最大可用窗口 %d 分钟",
					st.Title, st.RemainingTime(), largest),
				SubtaskID: st.SubtaskID,
			})
		}
		floor := max(st.MinSessionMinutes, absoluteFloorMinutes)
		if minFloor == 0 || floor < minFloor {
			minFloor = floor
		}
	}

	usableExists := largest >= absoluteFloorMinutes
	if len(pending) > 0 && minFloor > 0 && largest < minFloor {
		severity := SeverityHigh
		if !usableExists {
			severity = SeverityCritical
		}
		analysis.Issues = append(analysis.Issues, FeasibilityIssue{
			Type:        IssueNoSuitableSlots,
			Severity:    severity,
			Description: "没有任何窗口满足子任务配置的最低会话时长",
		})
	}

	// 5. 建议（按预估影响降序）
	analysis.Suggestions = a.buildSuggestions(analysis, pending, largest)

	// 6. 判定
	// 可行：缺口不超过需求的 20%，且至少存在一个可用窗口
	analysis.IsFeasible = required > 0 &&
		analysis.DeficitMinutes*5 <= required &&
		usableExists &&
		!hasIssue(analysis.Issues, IssueSubtaskTooLong) &&
		!hasSeverity(analysis.Issues, SeverityCritical)
	if required == 0 {
		analysis.IsFeasible = true
	}
	// 自动排程放行门槛更宽：只要有窗口就允许尽力而为
	analysis.CanProceedWithAutoScheduling = usableExists || required == 0

	return analysis
}

// buildSuggestions 按问题生成建议并按影响排序
func (a *Analyzer) buildSuggestions(analysis *FeasibilityAnalysis, pending []model.Subtask, largest int) []FeasibilitySuggestion {
	var suggestions []FeasibilitySuggestion

	if analysis.DeficitMinutes > 0 {
		suggestions = append(suggestions,
			FeasibilitySuggestion{
				Type:          SuggestExtendDeadline,
				Description:   fmt.Sprintf("延长截止日期以补足约 %d 分钟的缺口", analysis.DeficitMinutes),
				ImpactMinutes: analysis.DeficitMinutes,
			},
			FeasibilitySuggestion{
				Type:          SuggestIncreaseAvailability,
				Description:   fmt.Sprintf("每周增加约 %d 分钟的可用时段", analysis.DeficitMinutes),
				ImpactMinutes: analysis.DeficitMinutes,
			},
			FeasibilitySuggestion{
				Type:          SuggestReduceScope,
				Description:   "移除或推迟低优先级子任务以缩小排程范围",
				ImpactMinutes: analysis.DeficitMinutes,
			},
		)
	}

	overrideImpact := 0
	for _, st := range pending {
		if st.UserDurationOverride == nil && st.EstimatedDuration > 60 {
			overrideImpact += st.EstimatedDuration / 4
		}
	}
	if overrideImpact > 0 && analysis.DeficitMinutes > 0 {
		suggestions = append(suggestions, FeasibilitySuggestion{
			Type:          SuggestReduceDuration,
			Description:   fmt.Sprintf("压缩较长子任务的预估时长，约可释放 %d 分钟", overrideImpact),
			ImpactMinutes: overrideImpact,
		})
	}

	for _, st := range pending {
		if !st.CanBeSplit && st.RemainingTime() > largest {
			suggestions = append(suggestions, FeasibilitySuggestion{
				Type:          SuggestEnableSplitting,
				Description:   fmt.Sprintf("允许拆分「%s」，使其可分散到多个窗口", st.Title),
				ImpactMinutes: st.RemainingTime() - largest,
			})
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].ImpactMinutes > suggestions[j].ImpactMinutes
	})
	return suggestions
}

func hasIssue(issues []FeasibilityIssue, t IssueType) bool {
	for _, is := range issues {
		if is.Type == t {
			return true
		}
	}
	return false
}

func hasSeverity(issues []FeasibilityIssue, s IssueSeverity) bool {
	for _, is := range issues {
		if is.Severity == s {
			return true
		}
	}
	return false
}
