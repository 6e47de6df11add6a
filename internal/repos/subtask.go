package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

type SubTaskRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, subTasks []*types.SubTask) (int64, error)
	GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.SubTask, error)
	Update(ctx context.Context, tx *gorm.DB, subTaskID, planID uuid.UUID, fields map[string]interface{}) (int64, error)
	DeleteByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) error
	CountByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (int64, error)
}

type subTaskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubTaskRepo(db *gorm.DB, baseLog *logger.Logger) SubTaskRepo {
	return &subTaskRepo{db: db, log: baseLog.With("repo", "SubTaskRepo")}
}

func (r *subTaskRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *subTaskRepo) CreateBatch(ctx context.Context, tx *gorm.DB, subTasks []*types.SubTask) (int64, error) {
	if len(subTasks) == 0 {
		return 0, nil
	}
	res := r.conn(tx).WithContext(ctx).Create(&subTasks)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *subTaskRepo) GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.SubTask, error) {
	var subTasks []*types.SubTask
	if err := r.conn(tx).WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("order_index ASC, step_number ASC").
		Find(&subTasks).Error; err != nil {
		return nil, err
	}
	return subTasks, nil
}

func (r *subTaskRepo) Update(ctx context.Context, tx *gorm.DB, subTaskID, planID uuid.UUID, fields map[string]interface{}) (int64, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&types.SubTask{}).
		Where("id = ? AND plan_id = ?", subTaskID, planID).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *subTaskRepo) DeleteByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) error {
	return r.conn(tx).WithContext(ctx).
		Where("plan_id = ?", planID).
		Delete(&types.SubTask{}).Error
}

func (r *subTaskRepo) CountByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Model(&types.SubTask{}).
		Where("plan_id = ?", planID).
		Count(&count).Error
	return count, err
}
