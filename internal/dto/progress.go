package dto

// ── 进度模块 DTO ──

// LogSessionRequest 记录学习时间请求
type LogSessionRequest struct {
	SubtaskID string `json:"subtask_id"`
	Minutes   int    `json:"minutes"`
	Notes     string `json:"notes,omitempty"`
	LoggedAt  string `json:"logged_at,omitempty"` // RFC3339，缺省为当前时间
}

// LogSessionResponse 记录学习时间响应
type LogSessionResponse struct {
	Subtask       *SubtaskBrief `json:"subtask"`
	LogID         string        `json:"log_id"`
	AutoCompleted bool          `json:"auto_completed"` // 本次记录是否触发自动完成
}

// SessionLogResponse 学习记录响应
type SessionLogResponse struct {
	ID        string `json:"id"`
	SubtaskID string `json:"subtask_id"`
	Minutes   int    `json:"minutes"`
	Notes     string `json:"notes,omitempty"`
	LoggedAt  string `json:"logged_at"`
}

// ValidateDurationsResponse 时长校验修复响应
type ValidateDurationsResponse struct {
	RepairedSubtaskIDs []string `json:"repaired_subtask_ids"`
	CheckedCount       int      `json:"checked_count"`
}
