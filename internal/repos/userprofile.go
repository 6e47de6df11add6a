package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

type UserProfileRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserProfile, error)
	Create(ctx context.Context, tx *gorm.DB, profile *types.UserProfile) (*types.UserProfile, error)
	Update(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]interface{}) error
}

type userProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserProfileRepo(db *gorm.DB, baseLog *logger.Logger) UserProfileRepo {
	return &userProfileRepo{db: db, log: baseLog.With("repo", "UserProfileRepo")}
}

func (r *userProfileRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *userProfileRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserProfile, error) {
	var profile types.UserProfile
	err := r.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *userProfileRepo) Create(ctx context.Context, tx *gorm.DB, profile *types.UserProfile) (*types.UserProfile, error) {
	if err := r.conn(tx).WithContext(ctx).Create(profile).Error; err != nil {
		return nil, err
	}
	return profile, nil
}

func (r *userProfileRepo) Update(ctx context.Context, tx *gorm.DB, userID uuid.UUID, fields map[string]interface{}) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.UserProfile{}).
		Where("user_id = ?", userID).
		Updates(fields).Error
}
