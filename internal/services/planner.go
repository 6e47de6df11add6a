package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/platform/apierr"
	"github.com/mcalderas/taskwise-backend/internal/prompts"
	"github.com/mcalderas/taskwise-backend/internal/repos"
	"github.com/mcalderas/taskwise-backend/internal/types"
	"github.com/mcalderas/taskwise-backend/internal/validation"
)

const (
	instructionsMaxLen = 10000

	masterPromptTag = "<master_prompt>"
)

// PlanView is the full read model for one assignment's plan: the plan row,
// its ordered sub-tasks, and the refinement chat history.
type PlanView struct {
	Plan     *types.AssignmentPlan          `json:"plan"`
	SubTasks []*types.SubTask               `json:"sub_tasks"`
	Messages []*types.PlanRefinementMessage `json:"messages"`
}

type SubTaskUpdate struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	OrderIndex  *int     `json:"order_index,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Hours       *float64 `json:"estimated_hours,omitempty"`
}

type PlannerService interface {
	InitiatePlan(ctx context.Context, userID, assignmentID uuid.UUID, instructions string) (*types.AssignmentPlan, error)
	UpdateInstructions(ctx context.Context, userID, assignmentID uuid.UUID, instructions string) error
	GetPlan(ctx context.Context, userID, assignmentID uuid.UUID) (*PlanView, error)
	GeneratePrompt(ctx context.Context, userID, assignmentID uuid.UUID) (*types.AssignmentPlan, error)
	GenerateSubTasks(ctx context.Context, userID, assignmentID uuid.UUID) ([]*types.SubTask, error)
	GenerateFinalPrompts(ctx context.Context, userID, assignmentID uuid.UUID) ([]*types.SubTask, error)
	RefinePlan(ctx context.Context, userID, assignmentID uuid.UUID, message string) (*PlanView, error)
	UpdateSubTask(ctx context.Context, userID, assignmentID, subTaskID uuid.UUID, update SubTaskUpdate) error
}

type plannerService struct {
	db             *gorm.DB
	log            *logger.Logger
	assignmentRepo repos.AssignmentRepo
	planRepo       repos.AssignmentPlanRepo
	subTaskRepo    repos.SubTaskRepo
	messageRepo    repos.RefinementMessageRepo
	aiClient       OpenAIClient
}

func NewPlannerService(
	db *gorm.DB,
	baseLog *logger.Logger,
	assignmentRepo repos.AssignmentRepo,
	planRepo repos.AssignmentPlanRepo,
	subTaskRepo repos.SubTaskRepo,
	messageRepo repos.RefinementMessageRepo,
	aiClient OpenAIClient,
) PlannerService {
	return &plannerService{
		db:             db,
		log:            baseLog.With("service", "PlannerService"),
		assignmentRepo: assignmentRepo,
		planRepo:       planRepo,
		subTaskRepo:    subTaskRepo,
		messageRepo:    messageRepo,
		aiClient:       aiClient,
	}
}

func (s *plannerService) requireAssignment(ctx context.Context, userID, assignmentID uuid.UUID) (*types.Assignment, error) {
	assignment, err := s.assignmentRepo.GetByIDForUser(ctx, nil, assignmentID, userID)
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	if assignment == nil {
		return nil, apierr.New(http.StatusNotFound, "assignment_not_found", fmt.Errorf("assignment not found or access denied"))
	}
	return assignment, nil
}

func (s *plannerService) requirePlan(ctx context.Context, userID, assignmentID uuid.UUID) (*types.AssignmentPlan, error) {
	plan, err := s.planRepo.GetByAssignmentForUser(ctx, nil, assignmentID, userID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if plan == nil {
		return nil, apierr.New(http.StatusNotFound, "plan_not_found", fmt.Errorf("no plan exists for this assignment"))
	}
	return plan, nil
}

func validateInstructions(instructions string) (string, error) {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return "", apierr.New(http.StatusBadRequest, "invalid_instructions", fmt.Errorf("instructions are required"))
	}
	if len(instructions) > instructionsMaxLen {
		return "", apierr.New(http.StatusBadRequest, "invalid_instructions",
			fmt.Errorf("instructions must be at most %d characters", instructionsMaxLen))
	}
	return instructions, nil
}

func (s *plannerService) InitiatePlan(ctx context.Context, userID, assignmentID uuid.UUID, instructions string) (*types.AssignmentPlan, error) {
	instructions, err := validateInstructions(instructions)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireAssignment(ctx, userID, assignmentID); err != nil {
		return nil, err
	}

	exists, err := s.planRepo.ExistsForAssignment(ctx, nil, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("check existing plan: %w", err)
	}
	if exists {
		return nil, apierr.New(http.StatusConflict, "plan_exists", fmt.Errorf("a plan already exists for this assignment"))
	}

	now := time.Now()
	plan := &types.AssignmentPlan{
		ID:           uuid.New(),
		AssignmentID: assignmentID,
		UserID:       userID,
		Instructions: instructions,
		PromptStatus: types.PromptStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.planRepo.Create(ctx, nil, plan); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return plan, nil
}

func (s *plannerService) UpdateInstructions(ctx context.Context, userID, assignmentID uuid.UUID, instructions string) error {
	instructions, err := validateInstructions(instructions)
	if err != nil {
		return err
	}
	plan, err := s.requirePlan(ctx, userID, assignmentID)
	if err != nil {
		return err
	}
	if plan.PromptStatus == types.PromptStatusCompleted {
		return apierr.New(http.StatusConflict, "instructions_locked",
			fmt.Errorf("instructions cannot change after the learning prompt is generated"))
	}
	affected, err := s.planRepo.UpdateInstructions(ctx, nil, plan.ID, userID, instructions)
	if err != nil {
		return fmt.Errorf("update instructions: %w", err)
	}
	if affected == 0 {
		// Completed between the read above and the conditional write.
		return apierr.New(http.StatusConflict, "instructions_locked",
			fmt.Errorf("instructions cannot change after the learning prompt is generated"))
	}
	return nil
}

func (s *plannerService) GetPlan(ctx context.Context, userID, assignmentID uuid.UUID) (*PlanView, error) {
	plan, err := s.requirePlan(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}
	subTasks, err := s.subTaskRepo.GetByPlanID(ctx, nil, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("load sub-tasks: %w", err)
	}
	messages, err := s.messageRepo.GetByPlanID(ctx, nil, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("load refinement messages: %w", err)
	}
	return &PlanView{Plan: plan, SubTasks: subTasks, Messages: messages}, nil
}

// GeneratePrompt drives the prompt-status machine: an atomic conditional
// update claims the generating slot, a single gateway call produces the master
// prompt, and the terminal status is persisted. A failed plan may re-enter
// generating on user retry; a completed plan never regenerates.
func (s *plannerService) GeneratePrompt(ctx context.Context, userID, assignmentID uuid.UUID) (*types.AssignmentPlan, error) {
	assignment, err := s.requireAssignment(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}
	plan, err := s.requirePlan(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}

	claimed, err := s.planRepo.MarkGenerating(ctx, nil, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("claim generation: %w", err)
	}
	if !claimed {
		switch plan.PromptStatus {
		case types.PromptStatusCompleted:
			return nil, apierr.New(http.StatusConflict, "prompt_completed",
				fmt.Errorf("the learning prompt was already generated"))
		default:
			return nil, apierr.New(http.StatusConflict, "generation_in_progress",
				fmt.Errorf("prompt generation is already in progress"))
		}
	}

	userPrompt := prompts.BuildStructuredLearningPrompt(plan.Instructions, assignment.Title)
	text, genErr := s.aiClient.Complete(ctx, prompts.StructuredLearningSystem(), userPrompt, &AIOptions{Temperature: 0.7, MaxTokens: 2000})
	if genErr == nil && !strings.Contains(text, masterPromptTag) {
		genErr = fmt.Errorf("model response is missing the %s block", masterPromptTag)
	}
	if genErr != nil {
		s.log.Error("Prompt generation failed", "error", genErr, "plan_id", plan.ID)
		if err := s.planRepo.SetFailed(ctx, nil, plan.ID, genErr.Error()); err != nil {
			s.log.Error("Failed to persist failed prompt status", "error", err, "plan_id", plan.ID)
		}
		return nil, apierr.New(http.StatusBadGateway, "prompt_generation_failed", genErr)
	}

	if err := s.planRepo.SetCompleted(ctx, nil, plan.ID, text); err != nil {
		return nil, fmt.Errorf("persist generated prompt: %w", err)
	}
	return s.planRepo.GetByIDForUser(ctx, nil, plan.ID, userID)
}

// GenerateSubTasks is independent of the prompt-status machine: it decomposes
// the plan's instructions into ordered steps in one all-or-nothing insert.
func (s *plannerService) GenerateSubTasks(ctx context.Context, userID, assignmentID uuid.UUID) ([]*types.SubTask, error) {
	assignment, err := s.requireAssignment(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}
	plan, err := s.requirePlan(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}

	count, err := s.subTaskRepo.CountByPlanID(ctx, nil, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("count sub-tasks: %w", err)
	}
	if count > 0 {
		return nil, apierr.New(http.StatusConflict, "subtasks_exist",
			fmt.Errorf("sub-tasks already exist for this plan; use refinement to change them"))
	}

	raw, err := s.aiClient.GenerateJSON(ctx,
		prompts.SubtaskSystem(),
		prompts.BuildSubtaskPrompt(plan.Instructions, assignment.Title),
		"sub_task_list",
		prompts.SubTaskListSchema(),
	)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "subtask_generation_failed", err)
	}
	parsed, err := validation.ValidateSubTaskList(raw)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "subtask_generation_failed", err)
	}

	rows := buildSubTaskRows(plan.ID, parsed)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.subTaskRepo.CreateBatch(ctx, tx, rows)
		if err != nil {
			return fmt.Errorf("insert sub-tasks: %w", err)
		}
		if created != int64(len(rows)) {
			return apierr.New(http.StatusInternalServerError, "partial_insert",
				fmt.Errorf("not all sub-tasks were saved"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func buildSubTaskRows(planID uuid.UUID, parsed []validation.ParsedSubTask) []*types.SubTask {
	now := time.Now()
	rows := make([]*types.SubTask, 0, len(parsed))
	for i, st := range parsed {
		rows = append(rows, &types.SubTask{
			ID:             uuid.New(),
			PlanID:         planID,
			StepNumber:     st.StepNumber,
			OrderIndex:     i,
			Title:          st.Title,
			Description:    st.Description,
			EstimatedHours: st.EstimatedHours,
			Status:         types.SubTaskStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return rows
}

// GenerateFinalPrompts fills in a Socratic tutor prompt for every sub-task
// that does not have one yet. Sequential and fail-fast; already-prompted
// sub-tasks are left untouched, so a retry resumes where the failure cut in.
func (s *plannerService) GenerateFinalPrompts(ctx context.Context, userID, assignmentID uuid.UUID) ([]*types.SubTask, error) {
	plan, err := s.requirePlan(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}
	subTasks, err := s.subTaskRepo.GetByPlanID(ctx, nil, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("load sub-tasks: %w", err)
	}
	if len(subTasks) == 0 {
		return nil, apierr.New(http.StatusConflict, "no_subtasks",
			fmt.Errorf("generate sub-tasks before generating their prompts"))
	}

	for _, st := range subTasks {
		if st.GeneratedPrompt != "" {
			continue
		}
		text, err := s.aiClient.Complete(ctx,
			prompts.TutorSystem(),
			prompts.BuildTutorPrompt(st.Title, st.Description, plan.Instructions),
			&AIOptions{Temperature: 0.7, MaxTokens: 1200},
		)
		if err != nil {
			return nil, apierr.New(http.StatusBadGateway, "tutor_prompt_failed", err)
		}
		affected, err := s.subTaskRepo.Update(ctx, nil, st.ID, plan.ID, map[string]interface{}{
			"generated_prompt": text,
			"updated_at":       time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("persist tutor prompt: %w", err)
		}
		if affected == 0 {
			return nil, apierr.New(http.StatusConflict, "subtask_missing",
				fmt.Errorf("a sub-task disappeared during prompt generation"))
		}
		st.GeneratedPrompt = text
	}
	return subTasks, nil
}

// RefinePlan runs one refinement chat turn. The user message is appended
// before the model call so the history records the attempt even when the
// provider fails; the revised sub-task list replaces the old one atomically.
func (s *plannerService) RefinePlan(ctx context.Context, userID, assignmentID uuid.UUID, message string) (*PlanView, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apierr.New(http.StatusBadRequest, "invalid_message", fmt.Errorf("a refinement message is required"))
	}
	plan, err := s.requirePlan(ctx, userID, assignmentID)
	if err != nil {
		return nil, err
	}
	subTasks, err := s.subTaskRepo.GetByPlanID(ctx, nil, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("load sub-tasks: %w", err)
	}
	if len(subTasks) == 0 {
		return nil, apierr.New(http.StatusConflict, "no_subtasks",
			fmt.Errorf("generate sub-tasks before refining the plan"))
	}

	if _, err := s.messageRepo.Append(ctx, nil, &types.PlanRefinementMessage{
		ID:        uuid.New(),
		PlanID:    plan.ID,
		Type:      types.RefinementMessageUser,
		Content:   message,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("append refinement message: %w", err)
	}

	steps := make([]string, 0, len(subTasks))
	for _, st := range subTasks {
		steps = append(steps, st.Title)
	}
	raw, err := s.aiClient.GenerateJSON(ctx,
		prompts.RefinementSystem(),
		prompts.BuildRefinementPrompt(plan.Instructions, steps, message),
		"plan_refinement",
		prompts.RefinementSchema(),
	)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "refinement_failed", err)
	}
	result, err := validation.ValidateRefinementResult(raw)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "refinement_failed", err)
	}

	rows := buildSubTaskRows(plan.ID, result.SubTasks)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.subTaskRepo.DeleteByPlanID(ctx, tx, plan.ID); err != nil {
			return fmt.Errorf("clear sub-tasks: %w", err)
		}
		created, err := s.subTaskRepo.CreateBatch(ctx, tx, rows)
		if err != nil {
			return fmt.Errorf("insert revised sub-tasks: %w", err)
		}
		if created != int64(len(rows)) {
			return apierr.New(http.StatusInternalServerError, "partial_insert",
				fmt.Errorf("not all sub-tasks were saved"))
		}
		if _, err := s.messageRepo.Append(ctx, tx, &types.PlanRefinementMessage{
			ID:            uuid.New(),
			PlanID:        plan.ID,
			Type:          types.RefinementMessageSystem,
			Content:       "Plan updated.",
			ChangeSummary: result.ChangeSummary,
			CreatedAt:     time.Now(),
		}); err != nil {
			return fmt.Errorf("append system message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetPlan(ctx, userID, assignmentID)
}

func (s *plannerService) UpdateSubTask(ctx context.Context, userID, assignmentID, subTaskID uuid.UUID, update SubTaskUpdate) error {
	plan, err := s.requirePlan(ctx, userID, assignmentID)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{"updated_at": time.Now()}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return apierr.New(http.StatusBadRequest, "invalid_subtask", fmt.Errorf("title is required"))
		}
		fields["title"] = title
	}
	if update.Description != nil {
		fields["description"] = strings.TrimSpace(*update.Description)
	}
	if update.OrderIndex != nil {
		if *update.OrderIndex < 0 {
			return apierr.New(http.StatusBadRequest, "invalid_subtask", fmt.Errorf("order index must be non-negative"))
		}
		fields["order_index"] = *update.OrderIndex
	}
	if update.Status != nil {
		switch *update.Status {
		case types.SubTaskStatusPending, types.SubTaskStatusInProgress, types.SubTaskStatusCompleted:
			fields["status"] = *update.Status
		default:
			return apierr.New(http.StatusBadRequest, "invalid_subtask", fmt.Errorf("unknown sub-task status %q", *update.Status))
		}
	}
	if update.Hours != nil {
		if *update.Hours < 0 {
			return apierr.New(http.StatusBadRequest, "invalid_subtask", fmt.Errorf("estimated hours must be non-negative"))
		}
		fields["estimated_hours"] = *update.Hours
	}
	if len(fields) == 1 {
		return apierr.New(http.StatusBadRequest, "empty_update", fmt.Errorf("no fields to update"))
	}

	affected, err := s.subTaskRepo.Update(ctx, nil, subTaskID, plan.ID, fields)
	if err != nil {
		return fmt.Errorf("update sub-task: %w", err)
	}
	if affected == 0 {
		return apierr.New(http.StatusNotFound, "subtask_not_found", fmt.Errorf("sub-task not found or access denied"))
	}
	return nil
}
