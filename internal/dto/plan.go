package dto

// ── 计划模块 DTO ──

// GeneratePlanRequest 生成学习计划请求
type GeneratePlanRequest struct {
	TaskID                    string   `json:"task_id"`
	StartDate                 string   `json:"start_date,omitempty"` // YYYY-MM-DD，缺省为今天
	SkipToNextDay             bool     `json:"skip_to_next_day"`
	HorizonDays               int      `json:"horizon_days,omitempty"`
	Mode                      string   `json:"mode,omitempty"` // strict | flexible
	DailyCapMinutes           *int     `json:"daily_cap_minutes,omitempty"`
	InterSessionBufferMinutes *int     `json:"inter_session_buffer_minutes,omitempty"`
	FlexibilityFactor         *float64 `json:"flexibility_factor,omitempty"`
	RespectDependencies       bool     `json:"respect_dependencies"`
	SkipFeasibilityCheck      bool     `json:"skip_feasibility_check"`
}

// SessionResponse 已排会话响应
type SessionResponse struct {
	ID            string `json:"id"`
	PlanID        string `json:"plan_id"`
	TaskID        string `json:"task_id"`
	SubtaskID     string `json:"subtask_id"`
	SubtaskTitle  string `json:"subtask_title,omitempty"`
	Phase         string `json:"phase,omitempty"`
	Date          string `json:"date"`       // YYYY-MM-DD
	StartTime     string `json:"start_time"` // HH:MM
	EndTime       string `json:"end_time"`   // HH:MM
	Duration      int    `json:"duration"`   // 分钟
	SegmentIndex  int    `json:"segment_index,omitempty"`
	TotalSegments int    `json:"total_segments,omitempty"`
	IsSegmented   bool   `json:"is_segmented"`
	Status        string `json:"status"`
}

// PlanResponse 学习计划响应
type PlanResponse struct {
	ID                    string            `json:"id"`
	TaskID                string            `json:"task_id"`
	Status                string            `json:"status"`
	TotalScheduledMinutes int               `json:"total_scheduled_minutes"`
	CompletionDate        string            `json:"completion_date,omitempty"` // YYYY-MM-DD
	Message               string            `json:"message,omitempty"`
	Sessions              []SessionResponse `json:"sessions,omitempty"`
	CreatedAt             string            `json:"created_at"`
	UpdatedAt             string            `json:"updated_at"`
}

// GeneratePlanResponse 生成计划结果响应
type GeneratePlanResponse struct {
	Plan                  *PlanResponse `json:"plan,omitempty"`
	Success               bool          `json:"success"`
	ScheduledSubtaskIDs   []string      `json:"scheduled_subtask_ids"`
	UnscheduledSubtaskIDs []string      `json:"unscheduled_subtask_ids"`
	Warnings              []string      `json:"warnings,omitempty"`
}

// SubtaskBrief 子任务简要信息
type SubtaskBrief struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Phase              string `json:"phase"`
	Difficulty         string `json:"difficulty"`
	EffectiveDuration  int    `json:"effective_duration"`  // 分钟
	TimeSpent          int    `json:"time_spent"`          // 分钟
	RemainingTime      int    `json:"remaining_time"`      // 分钟
	ProgressPercentage int    `json:"progress_percentage"` // 0-100
	Completed          bool   `json:"completed"`
}

// [自证通过] internal/dto/plan.go
