package dto

// ── 可行性模块 DTO ──

// FeasibilityIssueResponse 结构化诊断响应
type FeasibilityIssueResponse struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	SubtaskID   string `json:"subtask_id,omitempty"`
}

// FeasibilitySuggestionResponse 可执行建议响应
type FeasibilitySuggestionResponse struct {
	Type          string `json:"type"`
	Description   string `json:"description"`
	ImpactMinutes int    `json:"impact_minutes"`
}

// FeasibilityResponse 可行性分析响应
type FeasibilityResponse struct {
	IsFeasible                   bool                            `json:"is_feasible"`
	CanProceedWithAutoScheduling bool                            `json:"can_proceed_with_auto_scheduling"`
	RequiredMinutes              int                             `json:"required_minutes"`
	AvailableMinutes             int                             `json:"available_minutes"`
	DeficitMinutes               int                             `json:"deficit_minutes"`
	Issues                       []FeasibilityIssueResponse      `json:"issues"`
	Suggestions                  []FeasibilitySuggestionResponse `json:"suggestions"`
}
