package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mcalderas/taskwise-backend/internal/platform/apierr"
	"github.com/mcalderas/taskwise-backend/internal/types"
	"github.com/mcalderas/taskwise-backend/internal/validation"
)

func futureDate(months int) string {
	return time.Now().AddDate(0, months, 0).Format("2006-01-02")
}

func TestCreateManual_PersistsAssignment(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	svc := newAssignments(t, gdb)

	created, err := svc.CreateManual(context.Background(), user.ID, class.ID,
		"Problem Set 2", "chapters 4-5", futureDate(1), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Source != types.AssignmentSourceManual {
		t.Fatalf("expected manual source, got %q", created.Source)
	}

	got, err := svc.GetByID(context.Background(), user.ID, created.ID)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Title != "Problem Set 2" {
		t.Fatalf("unexpected title %q", got.Title)
	}
}

func TestCreateManual_RejectsForeignClass(t *testing.T) {
	gdb := newTestDB(t)
	owner := seedUser(t, gdb)
	other := seedUser(t, gdb)
	class := seedClass(t, gdb, owner.ID)
	svc := newAssignments(t, gdb)

	_, err := svc.CreateManual(context.Background(), other.ID, class.ID, "HW", "", futureDate(1), 10)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404 for foreign class, got %v", err)
	}
	if apiErr.Err.Error() != "Class not found or does not belong to user" {
		t.Fatalf("unexpected message %q", apiErr.Err.Error())
	}
}

func TestCreateBatch_SavesReviewedSet(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	svc := newAssignments(t, gdb)

	reviewed := []validation.ReviewedAssignment{
		{Title: "Essay 1", DueDate: futureDate(1), Points: 50},
		{Title: "Essay 2", DueDate: futureDate(2), Points: 50},
	}
	created, err := svc.CreateBatch(context.Background(), user.ID, class.ID, reviewed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 created, got %d", len(created))
	}
	for _, a := range created {
		if a.Source != types.AssignmentSourceSyllabus {
			t.Fatalf("batch saves are syllabus-sourced, got %q", a.Source)
		}
	}
}

func TestCreateBatch_RejectsIntraBatchDuplicates(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	svc := newAssignments(t, gdb)

	due := futureDate(1)
	reviewed := []validation.ReviewedAssignment{
		{Title: "Essay 1", DueDate: due, Points: 50},
		{Title: "Essay 1", DueDate: due, Points: 50},
	}
	_, err := svc.CreateBatch(context.Background(), user.ID, class.ID, reviewed)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "duplicate_assignment" {
		t.Fatalf("expected duplicate_assignment, got %v", err)
	}
	var count int64
	gdb.Model(&types.Assignment{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected batch must persist nothing, got %d rows", count)
	}
}

func TestCreateBatch_RejectsExistingDuplicates(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	svc := newAssignments(t, gdb)

	due := futureDate(1)
	first := []validation.ReviewedAssignment{{Title: "Essay 1", DueDate: due, Points: 50}}
	if _, err := svc.CreateBatch(context.Background(), user.ID, class.ID, first); err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	second := []validation.ReviewedAssignment{
		{Title: "Essay 1", DueDate: due, Points: 50},
		{Title: "Essay 2", DueDate: futureDate(2), Points: 50},
	}
	_, err := svc.CreateBatch(context.Background(), user.ID, class.ID, second)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "duplicate_assignment" {
		t.Fatalf("expected duplicate_assignment, got %v", err)
	}

	// The non-duplicate row must not slip through: whole batch rejected.
	var count int64
	gdb.Model(&types.Assignment{}).Where("title = ?", "Essay 2").Count(&count)
	if count != 0 {
		t.Fatalf("expected Essay 2 not saved, got %d rows", count)
	}
}

func TestCreateBatch_RejectsPastDueDates(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	svc := newAssignments(t, gdb)

	reviewed := []validation.ReviewedAssignment{
		{Title: "Old HW", DueDate: "2020-01-01", Points: 10},
	}
	_, err := svc.CreateBatch(context.Background(), user.ID, class.ID, reviewed)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "invalid_assignments" {
		t.Fatalf("expected invalid_assignments, got %v", err)
	}
}

func TestCreateBatch_RejectsForeignClassBeforeInsert(t *testing.T) {
	gdb := newTestDB(t)
	owner := seedUser(t, gdb)
	other := seedUser(t, gdb)
	class := seedClass(t, gdb, owner.ID)
	svc := newAssignments(t, gdb)

	reviewed := []validation.ReviewedAssignment{
		{Title: "Essay 1", DueDate: futureDate(1), Points: 50},
	}
	_, err := svc.CreateBatch(context.Background(), other.ID, class.ID, reviewed)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404 for foreign class, got %v", err)
	}
	var count int64
	gdb.Model(&types.Assignment{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected zero rows, got %d", count)
	}
}

func TestUpdateStatus_ReadYourWrite(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	svc := newAssignments(t, gdb)

	if err := svc.UpdateStatus(context.Background(), user.ID, assignment.ID, types.AssignmentStatusComplete); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := svc.GetByID(context.Background(), user.ID, assignment.ID)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Status != types.AssignmentStatusComplete {
		t.Fatalf("expected complete, got %q", got.Status)
	}
}

func TestUpdateStatus_RejectsUnknownValue(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	svc := newAssignments(t, gdb)

	if err := svc.UpdateStatus(context.Background(), user.ID, assignment.ID, "done"); err == nil {
		t.Fatalf("expected unknown status to be rejected")
	}
}

func TestDelete_ScopedToOwner(t *testing.T) {
	gdb := newTestDB(t)
	owner := seedUser(t, gdb)
	other := seedUser(t, gdb)
	class := seedClass(t, gdb, owner.ID)
	assignment := seedAssignment(t, gdb, owner.ID, class.ID)
	svc := newAssignments(t, gdb)

	err := svc.Delete(context.Background(), other.ID, assignment.ID)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404 for foreign delete, got %v", err)
	}
	if err := svc.Delete(context.Background(), owner.ID, assignment.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	_, err = svc.GetByID(context.Background(), owner.ID, assignment.ID)
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestGetAll_ScopedToUser(t *testing.T) {
	gdb := newTestDB(t)
	a := seedUser(t, gdb)
	b := seedUser(t, gdb)
	classA := seedClass(t, gdb, a.ID)
	classB := seedClass(t, gdb, b.ID)
	seedAssignment(t, gdb, a.ID, classA.ID)
	seedAssignment(t, gdb, b.ID, classB.ID)
	svc := newAssignments(t, gdb)

	mine, err := svc.GetAll(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected 1 assignment for user a, got %d", len(mine))
	}
	if mine[0].UserID != a.ID {
		t.Fatalf("leaked foreign assignment: %+v", mine[0])
	}
}

func TestUpdate_ValidatesProvidedFieldsOnly(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	svc := newAssignments(t, gdb)

	empty := ""
	if err := svc.Update(context.Background(), user.ID, assignment.ID, AssignmentUpdate{Title: &empty}); err == nil {
		t.Fatalf("expected empty title to be rejected")
	}

	title := "Problem Set 1 (revised)"
	if err := svc.Update(context.Background(), user.ID, assignment.ID, AssignmentUpdate{Title: &title}); err != nil {
		t.Fatalf("valid update: %v", err)
	}
	got, err := svc.GetByID(context.Background(), user.ID, assignment.ID)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Title != title {
		t.Fatalf("expected %q, got %q", title, got.Title)
	}
	if got.Description != assignment.Description {
		t.Fatalf("untouched field changed: %q", got.Description)
	}
}

func TestUpdate_UnknownAssignmentIs404(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	svc := newAssignments(t, gdb)

	title := "x"
	err := svc.Update(context.Background(), user.ID, uuid.New(), AssignmentUpdate{Title: &title})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404, got %v", err)
	}
}
