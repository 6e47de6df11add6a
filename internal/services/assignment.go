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
	"github.com/mcalderas/taskwise-backend/internal/validation"
)

type AssignmentUpdate struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	DueDate     *string  `json:"due_date,omitempty"`
	Points      *float64 `json:"points,omitempty"`
}

type AssignmentService interface {
	GetByID(ctx context.Context, userID, assignmentID uuid.UUID) (*types.Assignment, error)
	GetAll(ctx context.Context, userID uuid.UUID) ([]*types.Assignment, error)
	GetByClass(ctx context.Context, userID, classID uuid.UUID) ([]*types.Assignment, error)
	CreateManual(ctx context.Context, userID, classID uuid.UUID, title, description, dueDate string, points float64) (*types.Assignment, error)
	CreateBatch(ctx context.Context, userID, classID uuid.UUID, reviewed []validation.ReviewedAssignment) ([]*types.Assignment, error)
	Update(ctx context.Context, userID, assignmentID uuid.UUID, update AssignmentUpdate) error
	UpdateStatus(ctx context.Context, userID, assignmentID uuid.UUID, status string) error
	Delete(ctx context.Context, userID, assignmentID uuid.UUID) error
}

type assignmentService struct {
	db             *gorm.DB
	log            *logger.Logger
	assignmentRepo repos.AssignmentRepo
	classRepo      repos.ClassRepo
	cache          rediscache.Cache
}

func NewAssignmentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	assignmentRepo repos.AssignmentRepo,
	classRepo repos.ClassRepo,
	cache rediscache.Cache,
) AssignmentService {
	return &assignmentService{
		db:             db,
		log:            baseLog.With("service", "AssignmentService"),
		assignmentRepo: assignmentRepo,
		classRepo:      classRepo,
		cache:          cache,
	}
}

func (s *assignmentService) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, assignmentListKey(userID)); err != nil {
		s.log.Warn("Assignment cache invalidation failed", "error", err, "user_id", userID)
	}
}

// requireClass verifies the class exists and belongs to the caller before any
// assignment is attached to it.
func (s *assignmentService) requireClass(ctx context.Context, tx *gorm.DB, classID, userID uuid.UUID) error {
	class, err := s.classRepo.GetByIDForUser(ctx, tx, classID, userID)
	if err != nil {
		return fmt.Errorf("load class: %w", err)
	}
	if class == nil {
		return apierr.New(http.StatusNotFound, "class_not_found", fmt.Errorf("Class not found or does not belong to user"))
	}
	return nil
}

func (s *assignmentService) GetByID(ctx context.Context, userID, assignmentID uuid.UUID) (*types.Assignment, error) {
	assignment, err := s.assignmentRepo.GetByIDForUser(ctx, nil, assignmentID, userID)
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	if assignment == nil {
		return nil, apierr.New(http.StatusNotFound, "assignment_not_found", fmt.Errorf("assignment not found or access denied"))
	}
	return assignment, nil
}

func (s *assignmentService) GetAll(ctx context.Context, userID uuid.UUID) ([]*types.Assignment, error) {
	key := assignmentListKey(userID)
	if s.cache != nil {
		var cached []*types.Assignment
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
			s.log.Warn("Assignment list cache read failed, falling back to store", "error", err)
		} else if hit {
			return cached, nil
		}
	}

	assignments, err := s.assignmentRepo.GetAllForUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, assignments, listCacheTTL); err != nil {
			s.log.Warn("Assignment list cache write failed", "error", err)
		}
	}
	return assignments, nil
}

func (s *assignmentService) GetByClass(ctx context.Context, userID, classID uuid.UUID) ([]*types.Assignment, error) {
	if err := s.requireClass(ctx, nil, classID, userID); err != nil {
		return nil, err
	}
	assignments, err := s.assignmentRepo.GetByClassForUser(ctx, nil, classID, userID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	return assignments, nil
}

func (s *assignmentService) CreateManual(ctx context.Context, userID, classID uuid.UUID, title, description, dueDate string, points float64) (*types.Assignment, error) {
	normalized, verr := validation.ValidateManualAssignment(title, description, dueDate, points)
	if verr != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_assignment", verr)
	}
	if err := s.requireClass(ctx, nil, classID, userID); err != nil {
		return nil, err
	}

	now := time.Now()
	assignment := &types.Assignment{
		ID:          uuid.New(),
		UserID:      userID,
		ClassID:     classID,
		Title:       normalized.Title,
		Description: normalized.Description,
		DueDate:     normalized.DueDate,
		Points:      normalized.Points,
		Status:      types.AssignmentStatusIncomplete,
		Source:      types.AssignmentSourceManual,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.assignmentRepo.Create(ctx, nil, assignment); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	s.invalidate(ctx, userID)
	return assignment, nil
}

// CreateBatch saves a reviewed set all-or-nothing: bounds on every entry,
// duplicates (within the batch and against existing rows) rejected before any
// insert, ownership of the class verified, and the store's created-row count
// required to equal the requested count.
func (s *assignmentService) CreateBatch(ctx context.Context, userID, classID uuid.UUID, reviewed []validation.ReviewedAssignment) ([]*types.Assignment, error) {
	normalized, verr := validation.ValidateReviewedAssignments(reviewed, time.Now())
	if verr != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_assignments", verr)
	}

	keys := make([]repos.DuplicateKey, 0, len(normalized))
	seen := make(map[string]bool, len(normalized))
	for _, a := range normalized {
		sig := a.Title + "|" + a.DueDate.UTC().Format(time.RFC3339)
		if seen[sig] {
			return nil, apierr.New(http.StatusConflict, "duplicate_assignment",
				fmt.Errorf("duplicate assignment in batch: %q due %s", a.Title, a.DueDate.Format("2006-01-02")))
		}
		seen[sig] = true
		keys = append(keys, repos.DuplicateKey{Title: a.Title, DueDate: a.DueDate})
	}

	if err := s.requireClass(ctx, nil, classID, userID); err != nil {
		return nil, err
	}

	exists, err := s.assignmentRepo.AnyExisting(ctx, nil, classID, keys)
	if err != nil {
		return nil, fmt.Errorf("duplicate pre-check: %w", err)
	}
	if exists {
		return nil, apierr.New(http.StatusConflict, "duplicate_assignment",
			fmt.Errorf("one or more assignments already exist in this class"))
	}

	now := time.Now()
	rows := make([]*types.Assignment, 0, len(normalized))
	for _, a := range normalized {
		rows = append(rows, &types.Assignment{
			ID:          uuid.New(),
			UserID:      userID,
			ClassID:     classID,
			Title:       a.Title,
			Description: a.Description,
			DueDate:     a.DueDate,
			Points:      a.Points,
			Status:      types.AssignmentStatusIncomplete,
			Source:      types.AssignmentSourceSyllabus,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.assignmentRepo.CreateBatch(ctx, tx, rows)
		if err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
		if created != int64(len(rows)) {
			// Rolling back guarantees zero rows survive a partial insert.
			return apierr.New(http.StatusInternalServerError, "partial_insert",
				fmt.Errorf("not all assignments were saved"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)
	return rows, nil
}

func (s *assignmentService) Update(ctx context.Context, userID, assignmentID uuid.UUID, update AssignmentUpdate) error {
	fields := map[string]interface{}{"updated_at": time.Now()}
	verr := &validation.ValidationError{}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		switch {
		case len(title) < validation.TitleMinLen:
			verr.Fields = append(verr.Fields, validation.FieldError{Field: "title", Message: "title is required"})
		case len(title) > validation.TitleMaxLen:
			verr.Fields = append(verr.Fields, validation.FieldError{Field: "title", Message: fmt.Sprintf("title must be at most %d characters", validation.TitleMaxLen)})
		default:
			fields["title"] = title
		}
	}
	if update.DueDate != nil {
		if due, ok := validation.ParseDueDate(*update.DueDate); ok {
			fields["due_date"] = due
		} else {
			verr.Fields = append(verr.Fields, validation.FieldError{Field: "due_date", Message: "due date is not a recognized date"})
		}
	}
	if update.Description != nil {
		fields["description"] = strings.TrimSpace(*update.Description)
	}
	if update.Points != nil {
		if *update.Points < 0 {
			verr.Fields = append(verr.Fields, validation.FieldError{Field: "points", Message: "points must be non-negative"})
		} else {
			fields["points"] = *update.Points
		}
	}
	if len(verr.Fields) > 0 {
		return apierr.New(http.StatusBadRequest, "invalid_assignment", verr)
	}
	if len(fields) == 1 {
		return apierr.New(http.StatusBadRequest, "empty_update", fmt.Errorf("no fields to update"))
	}

	affected, err := s.assignmentRepo.Update(ctx, nil, assignmentID, userID, fields)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if affected == 0 {
		return apierr.New(http.StatusNotFound, "assignment_not_found", fmt.Errorf("assignment not found or access denied"))
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *assignmentService) UpdateStatus(ctx context.Context, userID, assignmentID uuid.UUID, status string) error {
	if status != types.AssignmentStatusIncomplete && status != types.AssignmentStatusComplete {
		return apierr.New(http.StatusBadRequest, "invalid_status",
			fmt.Errorf("status must be %q or %q", types.AssignmentStatusIncomplete, types.AssignmentStatusComplete))
	}
	affected, err := s.assignmentRepo.Update(ctx, nil, assignmentID, userID, map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if affected == 0 {
		return apierr.New(http.StatusNotFound, "assignment_not_found", fmt.Errorf("assignment not found or access denied"))
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *assignmentService) Delete(ctx context.Context, userID, assignmentID uuid.UUID) error {
	affected, err := s.assignmentRepo.Delete(ctx, nil, assignmentID, userID)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if affected == 0 {
		return apierr.New(http.StatusNotFound, "assignment_not_found", fmt.Errorf("assignment not found or access denied"))
	}
	s.invalidate(ctx, userID)
	return nil
}
