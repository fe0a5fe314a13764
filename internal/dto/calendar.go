package dto

// ── 日历模块 DTO ──

// ImportICSRequest 导入 ICS 日历请求
type ImportICSRequest struct {
	URL         string `json:"url,omitempty"`     // webcal:// 或 https://
	Content     string `json:"content,omitempty"` // 直接粘贴的 ICS 文本
	HorizonDays int    `json:"horizon_days,omitempty"`
}

// ImportICSResponse 导入 ICS 日历响应
type ImportICSResponse struct {
	ImportedCount int                     `json:"imported_count"`
	SkippedCount  int                     `json:"skipped_count"`
	Events        []CalendarEventResponse `json:"events,omitempty"`
}

// CalendarEventResponse 日历事件响应
type CalendarEventResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	StartAt  string `json:"start_at"` // RFC3339
	EndAt    string `json:"end_at"`   // RFC3339
	IsAllDay bool   `json:"is_all_day"`
	Source   string `json:"source"`
}
