package types

import (
	"time"

	"github.com/google/uuid"
)

// Prompt generation lifecycle for a plan's structured learning prompt.
// The progression is monotonic: pending -> generating -> completed|failed,
// with failed allowed to re-enter generating on user retry.
const (
	PromptStatusPending    = "pending"
	PromptStatusGenerating = "generating"
	PromptStatusCompleted  = "completed"
	PromptStatusFailed     = "failed"
)

const (
	SubTaskStatusPending    = "pending"
	SubTaskStatusInProgress = "in_progress"
	SubTaskStatusCompleted  = "completed"
)

const (
	RefinementMessageUser   = "user"
	RefinementMessageSystem = "system"
)

type AssignmentPlan struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	AssignmentID    uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex" json:"assignment_id"`
	Assignment      *Assignment `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssignmentID;references:ID" json:"assignment,omitempty"`
	UserID          uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	Instructions    string      `gorm:"column:instructions;not null" json:"instructions"`
	GeneratedPrompt string      `gorm:"column:generated_prompt" json:"generated_prompt"`
	PromptStatus    string      `gorm:"column:prompt_status;not null;default:'pending'" json:"prompt_status"`
	PromptError     string      `gorm:"column:prompt_error" json:"prompt_error,omitempty"`
	CreatedAt       time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time   `gorm:"not null" json:"updated_at"`
}

func (AssignmentPlan) TableName() string {
	return "assignment_plan"
}

type SubTask struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"plan_id"`
	Plan            *AssignmentPlan `gorm:"constraint:OnDelete:CASCADE;foreignKey:PlanID;references:ID" json:"plan,omitempty"`
	StepNumber      int             `gorm:"column:step_number;not null" json:"step_number"`
	OrderIndex      int             `gorm:"column:order_index;not null" json:"order_index"`
	Title           string          `gorm:"column:title;not null" json:"title"`
	Description     string          `gorm:"column:description" json:"description"`
	EstimatedHours  float64         `gorm:"column:estimated_hours;not null;default:0" json:"estimated_hours"`
	Status          string          `gorm:"column:status;not null;default:'pending'" json:"status"`
	GeneratedPrompt string          `gorm:"column:generated_prompt" json:"generated_prompt"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (SubTask) TableName() string {
	return "sub_task"
}

// PlanRefinementMessage rows are append-only; refinement history is never
// rewritten, only extended.
type PlanRefinementMessage struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"plan_id"`
	Plan          *AssignmentPlan `gorm:"constraint:OnDelete:CASCADE;foreignKey:PlanID;references:ID" json:"plan,omitempty"`
	Type          string          `gorm:"column:type;not null" json:"type"`
	Content       string          `gorm:"column:content;not null" json:"content"`
	ChangeSummary string          `gorm:"column:change_summary" json:"change_summary,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;index" json:"created_at"`
}

func (PlanRefinementMessage) TableName() string {
	return "plan_refinement_message"
}
