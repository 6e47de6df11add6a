package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

type AssignmentPlanRepo interface {
	Create(ctx context.Context, tx *gorm.DB, plan *types.AssignmentPlan) (*types.AssignmentPlan, error)
	GetByAssignmentForUser(ctx context.Context, tx *gorm.DB, assignmentID, userID uuid.UUID) (*types.AssignmentPlan, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, planID, userID uuid.UUID) (*types.AssignmentPlan, error)
	ExistsForAssignment(ctx context.Context, tx *gorm.DB, assignmentID uuid.UUID) (bool, error)
	MarkGenerating(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (bool, error)
	SetCompleted(ctx context.Context, tx *gorm.DB, planID uuid.UUID, generatedPrompt string) error
	SetFailed(ctx context.Context, tx *gorm.DB, planID uuid.UUID, cause string) error
	UpdateInstructions(ctx context.Context, tx *gorm.DB, planID, userID uuid.UUID, instructions string) (int64, error)
}

type assignmentPlanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssignmentPlanRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentPlanRepo {
	return &assignmentPlanRepo{db: db, log: baseLog.With("repo", "AssignmentPlanRepo")}
}

func (r *assignmentPlanRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *assignmentPlanRepo) Create(ctx context.Context, tx *gorm.DB, plan *types.AssignmentPlan) (*types.AssignmentPlan, error) {
	if err := r.conn(tx).WithContext(ctx).Create(plan).Error; err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *assignmentPlanRepo) GetByAssignmentForUser(ctx context.Context, tx *gorm.DB, assignmentID, userID uuid.UUID) (*types.AssignmentPlan, error) {
	var plan types.AssignmentPlan
	err := r.conn(tx).WithContext(ctx).
		Where("assignment_id = ? AND user_id = ?", assignmentID, userID).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *assignmentPlanRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, planID, userID uuid.UUID) (*types.AssignmentPlan, error) {
	var plan types.AssignmentPlan
	err := r.conn(tx).WithContext(ctx).
		Where("id = ? AND user_id = ?", planID, userID).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *assignmentPlanRepo) ExistsForAssignment(ctx context.Context, tx *gorm.DB, assignmentID uuid.UUID) (bool, error) {
	var count int64
	if err := r.conn(tx).WithContext(ctx).
		Model(&types.AssignmentPlan{}).
		Where("assignment_id = ?", assignmentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkGenerating is the mutual-exclusion guard for prompt generation: a single
// conditional update that only fires when the plan is pending or failed. Two
// concurrent triggers cannot both see RowsAffected == 1.
func (r *assignmentPlanRepo) MarkGenerating(ctx context.Context, tx *gorm.DB, planID uuid.UUID) (bool, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&types.AssignmentPlan{}).
		Where("id = ? AND prompt_status IN ?", planID, []string{types.PromptStatusPending, types.PromptStatusFailed}).
		Updates(map[string]interface{}{
			"prompt_status": types.PromptStatusGenerating,
			"prompt_error":  "",
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *assignmentPlanRepo) SetCompleted(ctx context.Context, tx *gorm.DB, planID uuid.UUID, generatedPrompt string) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.AssignmentPlan{}).
		Where("id = ? AND prompt_status = ?", planID, types.PromptStatusGenerating).
		Updates(map[string]interface{}{
			"generated_prompt": generatedPrompt,
			"prompt_status":    types.PromptStatusCompleted,
			"updated_at":       time.Now(),
		}).Error
}

func (r *assignmentPlanRepo) SetFailed(ctx context.Context, tx *gorm.DB, planID uuid.UUID, cause string) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.AssignmentPlan{}).
		Where("id = ? AND prompt_status = ?", planID, types.PromptStatusGenerating).
		Updates(map[string]interface{}{
			"prompt_status": types.PromptStatusFailed,
			"prompt_error":  cause,
			"updated_at":    time.Now(),
		}).Error
}

// UpdateInstructions refuses to touch a plan whose prompt already completed;
// instructions are immutable from that point.
func (r *assignmentPlanRepo) UpdateInstructions(ctx context.Context, tx *gorm.DB, planID, userID uuid.UUID, instructions string) (int64, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&types.AssignmentPlan{}).
		Where("id = ? AND user_id = ? AND prompt_status <> ?", planID, userID, types.PromptStatusCompleted).
		Updates(map[string]interface{}{
			"instructions": instructions,
			"updated_at":   time.Now(),
		})
	return res.RowsAffected, res.Error
}
