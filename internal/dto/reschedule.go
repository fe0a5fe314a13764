package dto

// ── 重排模块 DTO ──

// ResolveConflictsRequest 批量冲突消解请求
type ResolveConflictsRequest struct {
	TaskID    string `json:"task_id"`
	StartDate string `json:"start_date,omitempty"` // YYYY-MM-DD，缺省为今天
	Mode      string `json:"mode,omitempty"`       // strict | flexible
}

// ResolveConflictsResponse 批量冲突消解响应
type ResolveConflictsResponse struct {
	Success            bool              `json:"success"`
	RemovedSessionIDs  []string          `json:"removed_session_ids"`
	AffectedSubtaskIDs []string          `json:"affected_subtask_ids"`
	NewSessions        []SessionResponse `json:"new_sessions,omitempty"`
	Message            string            `json:"message"`
}

// RescheduleSubtaskRequest 单子任务智能重排请求
type RescheduleSubtaskRequest struct {
	SubtaskID string `json:"subtask_id"`
	StartDate string `json:"start_date,omitempty"`
}

// RescheduleSubtaskResponse 单子任务智能重排响应
type RescheduleSubtaskResponse struct {
	Found       bool             `json:"found"`
	Date        string           `json:"date,omitempty"`
	StartTime   string           `json:"start_time,omitempty"`
	EndTime     string           `json:"end_time,omitempty"`
	Duration    int              `json:"duration,omitempty"`
	Urgency     string           `json:"urgency"`
	Rationale   string           `json:"rationale,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
	Session     *SessionResponse `json:"session,omitempty"` // 已落库的新会话
}

// PlanChangeLogResponse 计划变更记录响应
type PlanChangeLogResponse struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	SubtaskID    string `json:"subtask_id"`
	ChangeType   string `json:"change_type"`
	OriginalDate string `json:"original_date,omitempty"`
	NewDate      string `json:"new_date,omitempty"`
	Reason       string `json:"reason,omitempty"`
	CreatedAt    string `json:"created_at"`
}
