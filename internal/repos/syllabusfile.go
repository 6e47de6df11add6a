package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

type SyllabusFileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, file *types.SyllabusFile) (*types.SyllabusFile, error)
	GetByIDForUser(ctx context.Context, tx *gorm.DB, fileID, userID uuid.UUID) (*types.SyllabusFile, error)
	GetAllForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SyllabusFile, error)
	Update(ctx context.Context, tx *gorm.DB, fileID, userID uuid.UUID, fields map[string]interface{}) (int64, error)
	Delete(ctx context.Context, tx *gorm.DB, fileID, userID uuid.UUID) (int64, error)
}

type syllabusFileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSyllabusFileRepo(db *gorm.DB, baseLog *logger.Logger) SyllabusFileRepo {
	return &syllabusFileRepo{db: db, log: baseLog.With("repo", "SyllabusFileRepo")}
}

func (r *syllabusFileRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *syllabusFileRepo) Create(ctx context.Context, tx *gorm.DB, file *types.SyllabusFile) (*types.SyllabusFile, error) {
	if err := r.conn(tx).WithContext(ctx).Create(file).Error; err != nil {
		return nil, err
	}
	return file, nil
}

func (r *syllabusFileRepo) GetByIDForUser(ctx context.Context, tx *gorm.DB, fileID, userID uuid.UUID) (*types.SyllabusFile, error) {
	var file types.SyllabusFile
	err := r.conn(tx).WithContext(ctx).
		Where("id = ? AND user_id = ?", fileID, userID).
		First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *syllabusFileRepo) GetAllForUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SyllabusFile, error) {
	var files []*types.SyllabusFile
	if err := r.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&files).Error; err != nil {
		return nil, err
	}
	return files, nil
}

func (r *syllabusFileRepo) Update(ctx context.Context, tx *gorm.DB, fileID, userID uuid.UUID, fields map[string]interface{}) (int64, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&types.SyllabusFile{}).
		Where("id = ? AND user_id = ?", fileID, userID).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *syllabusFileRepo) Delete(ctx context.Context, tx *gorm.DB, fileID, userID uuid.UUID) (int64, error) {
	res := r.conn(tx).WithContext(ctx).
		Where("id = ? AND user_id = ?", fileID, userID).
		Delete(&types.SyllabusFile{})
	return res.RowsAffected, res.Error
}
