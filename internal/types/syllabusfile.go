package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SyllabusFile struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User         *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ClassID      *uuid.UUID     `gorm:"type:uuid;index" json:"class_id,omitempty"`
	Class        *Class         `gorm:"constraint:OnDelete:SET NULL;foreignKey:ClassID;references:ID" json:"class,omitempty"`
	OriginalName string         `gorm:"column:original_name;not null" json:"original_name"`
	MimeType     string         `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes    int64          `gorm:"column:size_bytes" json:"size_bytes"`
	StorageKey   string         `gorm:"column:storage_key;not null" json:"storage_key"`
	ContentText  string         `gorm:"column:content_text" json:"content_text,omitempty"`
	ParsedJSON   datatypes.JSON `gorm:"column:parsed_json;type:jsonb" json:"parsed_json,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (SyllabusFile) TableName() string {
	return "syllabus_file"
}
