package model

import "time"

// StudyPlan 学习计划表 — 对应 study_plans
// 一次排程调用的产物容器；重新生成时旧计划整体归档。
type StudyPlan struct {
	PlanID                string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"plan_id"`
	TaskID                string     `gorm:"type:uuid;not null"                             json:"task_id"`
	Status                string     `gorm:"type:varchar(20);not null;default:'active'"     json:"status"` // active | needs_reschedule | archived
	TotalScheduledMinutes int        `gorm:"type:int;not null;default:0"                    json:"total_scheduled_minutes"`
	CompletionDate        *time.Time `gorm:"type:date"                                      json:"completion_date,omitempty"`
	Message               string     `gorm:"type:varchar(500)"                              json:"message,omitempty"`
	VersionedModel

	// 关联
	Task     *Task              `gorm:"foreignKey:TaskID;references:TaskID" json:"task,omitempty"`
	Sessions []ScheduledSession `gorm:"foreignKey:PlanID"                   json:"sessions,omitempty"`
}

func (StudyPlan) TableName() string { return "study_plans" }

// PlanChangeLog 计划变更记录表 — 对应 plan_change_logs（纯审计日志）
type PlanChangeLog struct {
	ChangeLogID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"change_log_id"`
	PlanID       string    `gorm:"type:uuid;not null"                             json:"plan_id"`
	SubtaskID    string    `gorm:"type:uuid;not null"                             json:"subtask_id"`
	ChangeType   string    `gorm:"type:varchar(30);not null"                      json:"change_type"` // conflict_reschedule | manual_reschedule | duration_repair
	OriginalDate *string   `gorm:"type:varchar(10)"                               json:"original_date,omitempty"`
	NewDate      *string   `gorm:"type:varchar(10)"                               json:"new_date,omitempty"`
	Reason       string    `gorm:"type:varchar(500)"                              json:"reason,omitempty"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (PlanChangeLog) TableName() string { return "plan_change_logs" }

// [自证通过] internal/model/plan.go
