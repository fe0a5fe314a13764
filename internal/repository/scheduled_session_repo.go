package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"studyflow/backend/internal/model"
)

// ScheduledSessionRepository 已排会话数据访问接口
//
// 会话不可原地修改（状态字段除外）：重排走 DeleteByIDs + BatchCreate。
type ScheduledSessionRepository interface {
	BatchCreate(ctx context.Context, sessions []model.ScheduledSession) error
	GetByID(ctx context.Context, id string) (*model.ScheduledSession, error)
	ListByPlan(ctx context.Context, planID string) ([]model.ScheduledSession, error)
	ListByTask(ctx context.Context, taskID string) ([]model.ScheduledSession, error)
	ListPlannedFrom(ctx context.Context, from time.Time) ([]model.ScheduledSession, error)
	UpdateStatus(ctx context.Context, id string, status string) error
	DeleteByPlan(ctx context.Context, planID string) error
	DeleteByIDs(ctx context.Context, ids []string) error
}

type scheduledSessionRepo struct {
	db *gorm.DB
}

// NewScheduledSessionRepo 创建 ScheduledSessionRepository 实例
func NewScheduledSessionRepo(db *gorm.DB) ScheduledSessionRepository {
	return &scheduledSessionRepo{db: db}
}

func (r *scheduledSessionRepo) BatchCreate(ctx context.Context, sessions []model.ScheduledSession) error {
	if len(sessions) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&sessions).Error
}

func (r *scheduledSessionRepo) GetByID(ctx context.Context, id string) (*model.ScheduledSession, error) {
	var session model.ScheduledSession
	err := r.db.WithContext(ctx).
		Preload("Subtask").
		Where("session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *scheduledSessionRepo) ListByPlan(ctx context.Context, planID string) ([]model.ScheduledSession, error) {
	var sessions []model.ScheduledSession
	err := r.db.WithContext(ctx).
		Preload("Subtask").
		Where("plan_id = ?", planID).
		Order("date ASC, start_time ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *scheduledSessionRepo) ListByTask(ctx context.Context, taskID string) ([]model.ScheduledSession, error) {
	var sessions []model.ScheduledSession
	err := r.db.WithContext(ctx).
		Preload("Subtask").
		Where("task_id = ?", taskID).
		Order("date ASC, start_time ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *scheduledSessionRepo) ListPlannedFrom(ctx context.Context, from time.Time) ([]model.ScheduledSession, error) {
	var sessions []model.ScheduledSession
	err := r.db.WithContext(ctx).
		Where("status = ? AND date >= ?", "planned", from).
		Order("date ASC, start_time ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *scheduledSessionRepo) UpdateStatus(ctx context.Context, id string, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.ScheduledSession{}).
		Where("session_id = ?", id).
		Update("status", status).Error
}

func (r *scheduledSessionRepo) DeleteByPlan(ctx context.Context, planID string) error {
	return r.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Delete(&model.ScheduledSession{}).Error
}

func (r *scheduledSessionRepo) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("session_id IN ?", ids).
		Delete(&model.ScheduledSession{}).Error
}
