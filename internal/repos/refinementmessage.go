package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

// RefinementMessageRepo is append-only: messages are never updated or deleted.
type RefinementMessageRepo interface {
	Append(ctx context.Context, tx *gorm.DB, msg *types.PlanRefinementMessage) (*types.PlanRefinementMessage, error)
	GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanRefinementMessage, error)
}

type refinementMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRefinementMessageRepo(db *gorm.DB, baseLog *logger.Logger) RefinementMessageRepo {
	return &refinementMessageRepo{db: db, log: baseLog.With("repo", "RefinementMessageRepo")}
}

func (r *refinementMessageRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *refinementMessageRepo) Append(ctx context.Context, tx *gorm.DB, msg *types.PlanRefinementMessage) (*types.PlanRefinementMessage, error) {
	if err := r.conn(tx).WithContext(ctx).Create(msg).Error; err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *refinementMessageRepo) GetByPlanID(ctx context.Context, tx *gorm.DB, planID uuid.UUID) ([]*types.PlanRefinementMessage, error) {
	var messages []*types.PlanRefinementMessage
	if err := r.conn(tx).WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
