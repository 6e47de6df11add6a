package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/mcalderas/taskwise-backend/internal/platform/apierr"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

func subTaskListJSON(titles ...string) map[string]any {
	steps := make([]any, 0, len(titles))
	for i, title := range titles {
		steps = append(steps, map[string]any{
			"step_number":     i + 1,
			"title":           title,
			"description":     "",
			"estimated_hours": 1.0,
		})
	}
	return map[string]any{"sub_tasks": steps}
}

func TestInitiatePlan_CreatesPendingPlan(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	svc := newPlanner(t, gdb, &fakeAI{})

	plan, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "Write a 5 page essay")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.PromptStatus != types.PromptStatusPending {
		t.Fatalf("expected pending status, got %q", plan.PromptStatus)
	}
	if plan.AssignmentID != assignment.ID || plan.UserID != user.ID {
		t.Fatalf("plan not linked to assignment/user: %+v", plan)
	}
}

func TestInitiatePlan_RejectsSecondPlan(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	svc := newPlanner(t, gdb, &fakeAI{})

	if _, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "first"); err != nil {
		t.Fatalf("first plan: %v", err)
	}
	_, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "second")
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "plan_exists" {
		t.Fatalf("expected plan_exists conflict, got %v", err)
	}

	// The failed attempt must not leave a second row behind.
	var count int64
	gdb.Model(&types.AssignmentPlan{}).Where("assignment_id = ?", assignment.ID).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly 1 plan row, got %d", count)
	}
}

func TestInitiatePlan_RejectsForeignAssignment(t *testing.T) {
	gdb := newTestDB(t)
	owner := seedUser(t, gdb)
	other := seedUser(t, gdb)
	class := seedClass(t, gdb, owner.ID)
	assignment := seedAssignment(t, gdb, owner.ID, class.ID)
	svc := newPlanner(t, gdb, &fakeAI{})

	_, err := svc.InitiatePlan(context.Background(), other.ID, assignment.ID, "instructions")
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404 for foreign assignment, got %v", err)
	}
}

func TestGeneratePrompt_HappyPath(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{completeText: "<master_prompt>Guide me through the essay.</master_prompt>"}
	svc := newPlanner(t, gdb, ai)

	if _, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	plan, err := svc.GeneratePrompt(context.Background(), user.ID, assignment.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if plan.PromptStatus != types.PromptStatusCompleted {
		t.Fatalf("expected completed, got %q", plan.PromptStatus)
	}
	if !strings.Contains(plan.GeneratedPrompt, "<master_prompt>") {
		t.Fatalf("expected stored prompt to carry the tag, got %q", plan.GeneratedPrompt)
	}
	if ai.completeCalls != 1 {
		t.Fatalf("expected exactly one gateway call, got %d", ai.completeCalls)
	}
}

func TestGeneratePrompt_MissingTagFailsPlan(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{completeText: "here is your prompt without tags"}
	svc := newPlanner(t, gdb, ai)

	if _, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.GeneratePrompt(context.Background(), user.ID, assignment.ID); err == nil {
		t.Fatalf("expected untagged output to be rejected")
	}

	var plan types.AssignmentPlan
	gdb.Where("assignment_id = ?", assignment.ID).First(&plan)
	if plan.PromptStatus != types.PromptStatusFailed {
		t.Fatalf("expected failed status, got %q", plan.PromptStatus)
	}
	if plan.PromptError == "" {
		t.Fatalf("expected failure cause recorded")
	}
}

func TestGeneratePrompt_FailedPlanMayRetry(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{completeErr: errors.New("provider down")}
	svc := newPlanner(t, gdb, ai)

	if _, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.GeneratePrompt(context.Background(), user.ID, assignment.ID); err == nil {
		t.Fatalf("expected provider failure to surface")
	}

	ai.completeErr = nil
	ai.completeText = "<master_prompt>second try</master_prompt>"
	plan, err := svc.GeneratePrompt(context.Background(), user.ID, assignment.ID)
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if plan.PromptStatus != types.PromptStatusCompleted {
		t.Fatalf("expected completed after retry, got %q", plan.PromptStatus)
	}
	if plan.PromptError != "" {
		t.Fatalf("expected failure cause cleared, got %q", plan.PromptError)
	}
}

func TestGeneratePrompt_CompletedPlanNeverRegenerates(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{completeText: "<master_prompt>v1</master_prompt>"}
	svc := newPlanner(t, gdb, ai)

	if _, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.GeneratePrompt(context.Background(), user.ID, assignment.ID); err != nil {
		t.Fatalf("first generation: %v", err)
	}

	_, err := svc.GeneratePrompt(context.Background(), user.ID, assignment.ID)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "prompt_completed" {
		t.Fatalf("expected prompt_completed conflict, got %v", err)
	}
	if ai.completeCalls != 1 {
		t.Fatalf("completed plan must not call the gateway again, calls=%d", ai.completeCalls)
	}
}

func TestGeneratePrompt_GeneratingPlanIsExclusive(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{completeText: "<master_prompt>x</master_prompt>"}
	svc := newPlanner(t, gdb, ai)

	if _, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	// Simulate a concurrent request holding the generating slot.
	if err := gdb.Model(&types.AssignmentPlan{}).
		Where("assignment_id = ?", assignment.ID).
		Update("prompt_status", types.PromptStatusGenerating).Error; err != nil {
		t.Fatalf("force generating: %v", err)
	}

	_, err := svc.GeneratePrompt(context.Background(), user.ID, assignment.ID)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "generation_in_progress" {
		t.Fatalf("expected generation_in_progress conflict, got %v", err)
	}
	if ai.completeCalls != 0 {
		t.Fatalf("losing request must not call the gateway, calls=%d", ai.completeCalls)
	}
}

func TestUpdateInstructions_LockedAfterCompletion(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{completeText: "<master_prompt>x</master_prompt>"}
	svc := newPlanner(t, gdb, ai)

	if _, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "v1"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if err := svc.UpdateInstructions(context.Background(), user.ID, assignment.ID, "v2"); err != nil {
		t.Fatalf("update before completion: %v", err)
	}
	if _, err := svc.GeneratePrompt(context.Background(), user.ID, assignment.ID); err != nil {
		t.Fatalf("generate: %v", err)
	}

	err := svc.UpdateInstructions(context.Background(), user.ID, assignment.ID, "v3")
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "instructions_locked" {
		t.Fatalf("expected instructions_locked, got %v", err)
	}
}

func TestGenerateSubTasks_AllOrNothingInsert(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{jsonOut: subTaskListJSON("Outline", "Draft", "Revise")}
	svc := newPlanner(t, gdb, ai)

	if _, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	subTasks, err := svc.GenerateSubTasks(context.Background(), user.ID, assignment.ID)
	if err != nil {
		t.Fatalf("generate sub-tasks: %v", err)
	}
	if len(subTasks) != 3 {
		t.Fatalf("expected 3 sub-tasks, got %d", len(subTasks))
	}
	for i, st := range subTasks {
		if st.OrderIndex != i || st.StepNumber != i+1 {
			t.Fatalf("ordering broken at %d: %+v", i, st)
		}
		if st.Status != types.SubTaskStatusPending {
			t.Fatalf("expected pending status, got %q", st.Status)
		}
	}
}

func TestGenerateSubTasks_InvalidModelOutputPersistsNothing(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{jsonOut: map[string]any{"sub_tasks": []any{
		map[string]any{"step_number": 1, "title": "", "description": "", "estimated_hours": 1.0},
	}}}
	svc := newPlanner(t, gdb, ai)

	if _, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.GenerateSubTasks(context.Background(), user.ID, assignment.ID); err == nil {
		t.Fatalf("expected invalid output to be rejected")
	}
	var count int64
	gdb.Model(&types.SubTask{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected zero sub-task rows, got %d", count)
	}
}

func TestGenerateSubTasks_RejectsSecondGeneration(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{jsonOut: subTaskListJSON("Outline")}
	svc := newPlanner(t, gdb, ai)

	if _, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.GenerateSubTasks(context.Background(), user.ID, assignment.ID); err != nil {
		t.Fatalf("first generation: %v", err)
	}
	_, err := svc.GenerateSubTasks(context.Background(), user.ID, assignment.ID)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "subtasks_exist" {
		t.Fatalf("expected subtasks_exist conflict, got %v", err)
	}
}

func TestGenerateFinalPrompts_FillsOnlyMissing(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{jsonOut: subTaskListJSON("Outline", "Draft"), completeText: "Socratic prompt"}
	svc := newPlanner(t, gdb, ai)

	if _, err := svc.InitiatePlan(context.Background(), user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	subTasks, err := svc.GenerateSubTasks(context.Background(), user.ID, assignment.ID)
	if err != nil {
		t.Fatalf("generate sub-tasks: %v", err)
	}
	// Pretend the first already has a prompt from an earlier partial run.
	if err := gdb.Model(&types.SubTask{}).Where("id = ?", subTasks[0].ID).
		Update("generated_prompt", "existing").Error; err != nil {
		t.Fatalf("seed existing prompt: %v", err)
	}

	out, err := svc.GenerateFinalPrompts(context.Background(), user.ID, assignment.ID)
	if err != nil {
		t.Fatalf("generate final prompts: %v", err)
	}
	if ai.completeCalls != 1 {
		t.Fatalf("expected one gateway call for the one missing prompt, got %d", ai.completeCalls)
	}
	for _, st := range out {
		if st.GeneratedPrompt == "" {
			t.Fatalf("sub-task %s left without prompt", st.Title)
		}
	}
}

func TestRefinePlan_ReplacesSubTasksAndAppendsHistory(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{jsonOut: subTaskListJSON("Outline", "Draft", "Revise")}
	svc := newPlanner(t, gdb, ai)

	ctx := context.Background()
	if _, err := svc.InitiatePlan(ctx, user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.GenerateSubTasks(ctx, user.ID, assignment.ID); err != nil {
		t.Fatalf("generate sub-tasks: %v", err)
	}

	revised := subTaskListJSON("Research and outline", "Write")
	revised["change_summary"] = "Merged outlining into research; combined drafting and revising."
	ai.jsonOut = revised

	view, err := svc.RefinePlan(ctx, user.ID, assignment.ID, "fewer, bigger steps please")
	if err != nil {
		t.Fatalf("refine: %v", err)
	}
	if len(view.SubTasks) != 2 {
		t.Fatalf("expected 2 revised sub-tasks, got %d", len(view.SubTasks))
	}
	if len(view.Messages) != 2 {
		t.Fatalf("expected user + system messages, got %d", len(view.Messages))
	}
	if view.Messages[0].Type != types.RefinementMessageUser || view.Messages[1].Type != types.RefinementMessageSystem {
		t.Fatalf("unexpected message order: %+v", view.Messages)
	}
	if view.Messages[1].ChangeSummary == "" {
		t.Fatalf("expected change summary on system message")
	}
}

func TestRefinePlan_FailedTurnKeepsOldSubTasks(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{jsonOut: subTaskListJSON("Outline", "Draft")}
	svc := newPlanner(t, gdb, ai)

	ctx := context.Background()
	if _, err := svc.InitiatePlan(ctx, user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.GenerateSubTasks(ctx, user.ID, assignment.ID); err != nil {
		t.Fatalf("generate sub-tasks: %v", err)
	}

	ai.jsonErr = errors.New("provider down")
	if _, err := svc.RefinePlan(ctx, user.ID, assignment.ID, "change it"); err == nil {
		t.Fatalf("expected provider failure to surface")
	}

	view, err := svc.GetPlan(ctx, user.ID, assignment.ID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if len(view.SubTasks) != 2 {
		t.Fatalf("old sub-tasks must survive a failed turn, got %d", len(view.SubTasks))
	}
	// The attempt itself is still recorded.
	if len(view.Messages) != 1 || view.Messages[0].Type != types.RefinementMessageUser {
		t.Fatalf("expected the user message recorded, got %+v", view.Messages)
	}
}

func TestGetPlan_IsIdempotent(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{jsonOut: subTaskListJSON("Outline")}
	svc := newPlanner(t, gdb, ai)

	ctx := context.Background()
	if _, err := svc.InitiatePlan(ctx, user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := svc.GenerateSubTasks(ctx, user.ID, assignment.ID); err != nil {
		t.Fatalf("generate sub-tasks: %v", err)
	}

	first, err := svc.GetPlan(ctx, user.ID, assignment.ID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	second, err := svc.GetPlan(ctx, user.ID, assignment.ID)
	if err != nil {
		t.Fatalf("get plan again: %v", err)
	}
	if len(first.SubTasks) != len(second.SubTasks) || len(first.Messages) != len(second.Messages) {
		t.Fatalf("reads must not mutate: %d/%d vs %d/%d",
			len(first.SubTasks), len(first.Messages), len(second.SubTasks), len(second.Messages))
	}
	if ai.completeCalls != 0 {
		t.Fatalf("reads must not call the gateway")
	}
}

func TestUpdateSubTask_ValidatesStatusAndScope(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	assignment := seedAssignment(t, gdb, user.ID, class.ID)
	ai := &fakeAI{jsonOut: subTaskListJSON("Outline")}
	svc := newPlanner(t, gdb, ai)

	ctx := context.Background()
	if _, err := svc.InitiatePlan(ctx, user.ID, assignment.ID, "essay"); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	subTasks, err := svc.GenerateSubTasks(ctx, user.ID, assignment.ID)
	if err != nil {
		t.Fatalf("generate sub-tasks: %v", err)
	}

	bad := "done"
	if err := svc.UpdateSubTask(ctx, user.ID, assignment.ID, subTasks[0].ID, SubTaskUpdate{Status: &bad}); err == nil {
		t.Fatalf("expected unknown status to be rejected")
	}

	good := types.SubTaskStatusCompleted
	if err := svc.UpdateSubTask(ctx, user.ID, assignment.ID, subTasks[0].ID, SubTaskUpdate{Status: &good}); err != nil {
		t.Fatalf("valid update: %v", err)
	}

	if err := svc.UpdateSubTask(ctx, user.ID, assignment.ID, uuid.New(), SubTaskUpdate{Status: &good}); err == nil {
		t.Fatalf("expected unknown sub-task id to 404")
	}
}
