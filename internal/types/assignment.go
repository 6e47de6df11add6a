package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	AssignmentStatusIncomplete = "incomplete"
	AssignmentStatusComplete   = "complete"

	AssignmentSourceManual   = "manual"
	AssignmentSourceSyllabus = "syllabus"
)

type Assignment struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ClassID     uuid.UUID `gorm:"type:uuid;not null;index" json:"class_id"`
	Class       *Class    `gorm:"constraint:OnDelete:CASCADE;foreignKey:ClassID;references:ID" json:"class,omitempty"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	Description string    `gorm:"column:description" json:"description"`
	DueDate     time.Time `gorm:"column:due_date;not null;index" json:"due_date"`
	Points      float64   `gorm:"column:points;not null;default:0" json:"points"`
	Status      string    `gorm:"column:status;not null;default:'incomplete'" json:"status"`
	Source      string    `gorm:"column:source;not null;default:'manual'" json:"source"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Assignment) TableName() string {
	return "assignment"
}
