package repository

import (
	"context"

	"gorm.io/gorm"

	"studyflow/backend/internal/model"
	pkgerrors "studyflow/backend/pkg/errors"
)

// StudyPlanRepository 学习计划数据访问接口
type StudyPlanRepository interface {
	Create(ctx context.Context, plan *model.StudyPlan) error
	GetByID(ctx context.Context, id string) (*model.StudyPlan, error)
	GetActiveByTask(ctx context.Context, taskID string) (*model.StudyPlan, error)
	Update(ctx context.Context, plan *model.StudyPlan) error
	Delete(ctx context.Context, id string) error
}

// PlanChangeLogRepository 计划变更记录数据访问接口（纯审计日志）
type PlanChangeLogRepository interface {
	Create(ctx context.Context, log *model.PlanChangeLog) error
	ListByPlan(ctx context.Context, planID string, offset, limit int) ([]model.PlanChangeLog, int64, error)
}

// ── StudyPlan Repository 实现 ──

type studyPlanRepo struct {
	db *gorm.DB
}

// NewStudyPlanRepo 创建 StudyPlanRepository 实例
func NewStudyPlanRepo(db *gorm.DB) StudyPlanRepository {
	return &studyPlanRepo{db: db}
}

func (r *studyPlanRepo) Create(ctx context.Context, plan *model.StudyPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *studyPlanRepo) GetByID(ctx context.Context, id string) (*model.StudyPlan, error) {
	var plan model.StudyPlan
	err := r.db.WithContext(ctx).
		Where("plan_id = ?", id).
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *studyPlanRepo) GetActiveByTask(ctx context.Context, taskID string) (*model.StudyPlan, error) {
	var plan model.StudyPlan
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND status != ?", taskID, "archived").
		Order("created_at DESC").
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *studyPlanRepo) Update(ctx context.Context, plan *model.StudyPlan) error {
	oldVersion := plan.Version
	result := r.db.WithContext(ctx).
		Model(plan).
		Where("plan_id = ? AND version = ?", plan.PlanID, oldVersion).
		Updates(map[string]interface{}{
			"status":                  plan.Status,
			"total_scheduled_minutes": plan.TotalScheduledMinutes,
			"completion_date":         plan.CompletionDate,
			"message":                 plan.Message,
			"updated_by":              plan.UpdatedBy,
			"version":                 oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	plan.Version = oldVersion + 1
	return nil
}

func (r *studyPlanRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("plan_id = ?", id).
		Delete(&model.StudyPlan{}).Error
}

// ── PlanChangeLog Repository 实现 ──

type planChangeLogRepo struct {
	db *gorm.DB
}

// NewPlanChangeLogRepo 创建 PlanChangeLogRepository 实例
func NewPlanChangeLogRepo(db *gorm.DB) PlanChangeLogRepository {
	return &planChangeLogRepo{db: db}
}

func (r *planChangeLogRepo) Create(ctx context.Context, log *model.PlanChangeLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *planChangeLogRepo) ListByPlan(ctx context.Context, planID string, offset, limit int) ([]model.PlanChangeLog, int64, error) {
	var logs []model.PlanChangeLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.PlanChangeLog{}).
		Where("plan_id = ?", planID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, total, err
}
