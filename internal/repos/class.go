package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

type ClassRepo interface {
	Create(ctx context.Context, tx *gorm.DB, class *types.Class) (*types.Class, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, classID, userID uuid.UUID) (*types.Class, error)
	GetAllForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Class, error)
	Update(ctx context.Context, tx *gorm.DB, classID, userID uuid.UUID, fields map[string]interface{}) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, classID, userID uuid.UUID) (int64, error)
}

type classRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClassRepo(db *gorm.DB, baseLog *logger.Logger) ClassRepo {
	return &classRepo{db: db, log: baseLog.With("repo", "ClassRepo")}
}

func (r *classRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *classRepo) Create(ctx context.Context, tx *gorm.DB, class *types.Class) (*types.Class, error) {
	if err := r.conn(tx).WithContext(ctx).Create(class).Error; err != nil {
		return nil, err
	}
	return class, nil
}

func (r *classRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, classID, userID uuid.UUID) (*types.Class, error) {
	var class types.Class
	err := r.conn(tx).WithContext(ctx).
		Where("id = ? AND user_id = ?", classID, userID).
		First(&class).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepo) GetAllForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Class, error) {
	var classes []*types.Class
	if err := r.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *classRepo) Update(ctx context.Context, tx *gorm.DB, classID, userID uuid.UUID, fields map[string]interface{}) (int64, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&types.Class{}).
		Where("id = ? AND user_id = ?", classID, userID).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *classRepo) Delete(ctx context.Context, tx *gorm.DB, classID, userID uuid.UUID) (int64, error) {
	res := r.conn(tx).WithContext(ctx).
		Where("id = ? AND user_id = ?", classID, userID).
		Delete(&types.Class{})
	return res.RowsAffected, res.Error
}
