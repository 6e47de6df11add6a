package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mcalderas/taskwise-backend/internal/db"
	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/repos"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.New().String() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedUser(t *testing.T, gdb *gorm.DB) *types.User {
	t.Helper()
	now := time.Now()
	user := &types.User{
		ID:        uuid.New(),
		Email:     uuid.New().String() + "@example.com",
		Password:  "x",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedClass(t *testing.T, gdb *gorm.DB, userID uuid.UUID) *types.Class {
	t.Helper()
	now := time.Now()
	class := &types.Class{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      "Linear Algebra",
		Term:      "Fall 2026",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := gdb.Create(class).Error; err != nil {
		t.Fatalf("seed class: %v", err)
	}
	return class
}

func seedAssignment(t *testing.T, gdb *gorm.DB, userID, classID uuid.UUID) *types.Assignment {
	t.Helper()
	now := time.Now()
	assignment := &types.Assignment{
		ID:          uuid.New(),
		UserID:      userID,
		ClassID:     classID,
		Title:       "Problem Set 1",
		Description: "chapters 1-3",
		DueDate:     now.AddDate(0, 1, 0),
		Points:      100,
		Status:      types.AssignmentStatusIncomplete,
		Source:      types.AssignmentSourceManual,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := gdb.Create(assignment).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return assignment
}

// fakeAI scripts the gateway for pipeline tests.
type fakeAI struct {
	completeText string
	completeErr  error
	jsonOut      map[string]any
	jsonErr      error

	completeCalls int
	jsonCalls     int
	lastUser      string
}

func (f *fakeAI) Complete(ctx context.Context, system, user string, opts *AIOptions) (string, error) {
	f.completeCalls++
	f.lastUser = user
	return f.completeText, f.completeErr
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	f.jsonCalls++
	f.lastUser = user
	return f.jsonOut, f.jsonErr
}

func newPlanner(t *testing.T, gdb *gorm.DB, ai OpenAIClient) PlannerService {
	t.Helper()
	log := logger.NewNop()
	return NewPlannerService(gdb, log,
		repos.NewAssignmentRepo(gdb, log),
		repos.NewAssignmentPlanRepo(gdb, log),
		repos.NewSubTaskRepo(gdb, log),
		repos.NewRefinementMessageRepo(gdb, log),
		ai,
	)
}

func newAssignments(t *testing.T, gdb *gorm.DB) AssignmentService {
	t.Helper()
	log := logger.NewNop()
	return NewAssignmentService(gdb, log,
		repos.NewAssignmentRepo(gdb, log),
		repos.NewClassRepo(gdb, log),
		nil,
	)
}
