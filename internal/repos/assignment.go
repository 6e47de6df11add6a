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

// DuplicateKey identifies an assignment within a class for batch duplicate
// detection: two rows with the same (title, due_date, class_id) are duplicates.
type DuplicateKey struct {
	Title   string
	DueDate time.Time
}

type AssignmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, assignment *types.Assignment) (*types.Assignment, error)
	CreateBatch(ctx context.Context, tx *gorm.DB, assignments []*types.Assignment) (int64, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, assignmentID, userID uuid.UUID) (*types.Assignment, error)
	GetAllForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Assignment, error)
	GetByClassForUser(ctx context.Context, tx *gorm.DB, classID, userID uuid.UUID) ([]*types.Assignment, error)
	Update(ctx context.Context, tx *gorm.DB, assignmentID, userID uuid.UUID, fields map[string]interface{}) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, assignmentID, userID uuid.UUID) (int64, error)
	AnyExisting(ctx context.Context, tx *gorm.DB, classID uuid.UUID, keys []DuplicateKey) (bool, error)
}

type assignmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssignmentRepo(db *gorm.DB, baseLog *logger.Logger) AssignmentRepo {
	return &assignmentRepo{db: db, log: baseLog.With("repo", "AssignmentRepo")}
}

func (r *assignmentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *assignmentRepo) Create(ctx context.Context, tx *gorm.DB, assignment *types.Assignment) (*types.Assignment, error) {
	if err := r.conn(tx).WithContext(ctx).Create(assignment).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

// CreateBatch inserts all rows in a single multi-row statement and returns the
// number of rows the store reports as created. Callers compare that count to
// the requested count and treat any shortfall as fatal.
func (r *assignmentRepo) CreateBatch(ctx context.Context, tx *gorm.DB, assignments []*types.Assignment) (int64, error) {
	if len(assignments) == 0 {
		return 0, nil
	}
	res := r.conn(tx).WithContext(ctx).Create(&assignments)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *assignmentRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, assignmentID, userID uuid.UUID) (*types.Assignment, error) {
	var assignment types.Assignment
	err := r.conn(tx).WithContext(ctx).
		Where("id = ? AND user_id = ?", assignmentID, userID).
		First(&assignment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepo) GetAllForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Assignment, error) {
	var assignments []*types.Assignment
	if err := r.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("due_date ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *assignmentRepo) GetByClassForUser(ctx context.Context, tx *gorm.DB, classID, userID uuid.UUID) ([]*types.Assignment, error) {
	var assignments []*types.Assignment
	if err := r.conn(tx).WithContext(ctx).
		Where("class_id = ? AND user_id = ?", classID, userID).
		Order("due_date ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *assignmentRepo) Update(ctx context.Context, tx *gorm.DB, assignmentID, userID uuid.UUID, fields map[string]interface{}) (int64, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&types.Assignment{}).
		Where("id = ? AND user_id = ?", assignmentID, userID).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *assignmentRepo) Delete(ctx context.Context, tx *gorm.DB, assignmentID, userID uuid.UUID) (int64, error) {
	res := r.conn(tx).WithContext(ctx).
		Where("id = ? AND user_id = ?", assignmentID, userID).
		Delete(&types.Assignment{})
	return res.RowsAffected, res.Error
}

// AnyExisting answers the batch duplicate pre-check with one query instead of
// one round-trip per incoming row.
func (r *assignmentRepo) AnyExisting(ctx context.Context, tx *gorm.DB, classID uuid.UUID, keys []DuplicateKey) (bool, error) {
	if len(keys) == 0 {
		return false, nil
	}
	match := r.db.Where("title = ? AND due_date = ?", keys[0].Title, keys[0].DueDate)
	for _, k := range keys[1:] {
		match = match.Or("title = ? AND due_date = ?", k.Title, k.DueDate)
	}

	var count int64
	if err := r.conn(tx).WithContext(ctx).
		Model(&types.Assignment{}).
		Where("class_id = ?", classID).
		Where(match).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
