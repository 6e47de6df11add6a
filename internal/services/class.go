package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	rediscache "github.com/mcalderas/taskwise-backend/internal/clients/redis"
	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/platform/apierr"
	"github.com/mcalderas/taskwise-backend/internal/repos"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

const listCacheTTL = 2 * time.Minute

func classListKey(userID uuid.UUID) string {
	return "classes:user:" + userID.String()
}

func assignmentListKey(userID uuid.UUID) string {
	return "assignments:user:" + userID.String()
}

type ClassService interface {
	GetAll(ctx context.Context, userID uuid.UUID) ([]*types.Class, error)
	Create(ctx context.Context, userID uuid.UUID, name, term string) (*types.Class, error)
	Update(ctx context.Context, userID, classID uuid.UUID, name, term *string) error
	Delete(ctx context.Context, userID, classID uuid.UUID) error
}

type classService struct {
	db        *gorm.DB
	log       *logger.Logger
	classRepo repos.ClassRepo
	cache     rediscache.Cache
}

func NewClassService(db *gorm.DB, baseLog *logger.Logger, classRepo repos.ClassRepo, cache rediscache.Cache) ClassService {
	return &classService{
		db:        db,
		log:       baseLog.With("service", "ClassService"),
		classRepo: classRepo,
		cache:     cache,
	}
}

func (s *classService) GetAll(ctx context.Context, userID uuid.UUID) ([]*types.Class, error) {
	key := classListKey(userID)
	if s.cache != nil {
		var cached []*types.Class
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
			s.log.Warn("Class list cache read failed, falling back to store", "error", err)
		} else if hit {
			return cached, nil
		}
	}

	classes, err := s.classRepo.GetAllForUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load classes: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, classes, listCacheTTL); err != nil {
			s.log.Warn("Class list cache write failed", "error", err)
		}
	}
	return classes, nil
}

func (s *classService) invalidate(ctx context.Context, userID uuid.UUID, alsoAssignments bool) {
	if s.cache == nil {
		return
	}
	keys := []string{classListKey(userID)}
	if alsoAssignments {
		keys = append(keys, assignmentListKey(userID))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("Cache invalidation failed", "error", err, "user_id", userID)
	}
}

func (s *classService) Create(ctx context.Context, userID uuid.UUID, name, term string) (*types.Class, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.New(http.StatusBadRequest, "invalid_name", fmt.Errorf("class name is required"))
	}
	now := time.Now()
	class := &types.Class{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Term:      strings.TrimSpace(term),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.classRepo.Create(ctx, nil, class); err != nil {
		return nil, fmt.Errorf("create class: %w", err)
	}
	s.invalidate(ctx, userID, false)
	return class, nil
}

func (s *classService) Update(ctx context.Context, userID, classID uuid.UUID, name, term *string) error {
	fields := map[string]interface{}{"updated_at": time.Now()}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return apierr.New(http.StatusBadRequest, "invalid_name", fmt.Errorf("class name is required"))
		}
		fields["name"] = trimmed
	}
	if term != nil {
		fields["term"] = strings.TrimSpace(*term)
	}

	affected, err := s.classRepo.Update(ctx, nil, classID, userID, fields)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	if affected == 0 {
		return apierr.New(http.StatusNotFound, "class_not_found", fmt.Errorf("class not found or access denied"))
	}
	s.invalidate(ctx, userID, false)
	return nil
}

// Delete removes the class; assignments cascade at the store level.
func (s *classService) Delete(ctx context.Context, userID, classID uuid.UUID) error {
	affected, err := s.classRepo.Delete(ctx, nil, classID, userID)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	if affected == 0 {
		return apierr.New(http.StatusNotFound, "class_not_found", fmt.Errorf("class not found or access denied"))
	}
	s.invalidate(ctx, userID, true)
	return nil
}
