package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mcalderas/taskwise-backend/internal/clients/minio"
	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/platform/apierr"
	"github.com/mcalderas/taskwise-backend/internal/prompts"
	"github.com/mcalderas/taskwise-backend/internal/repos"
	"github.com/mcalderas/taskwise-backend/internal/types"
	"github.com/mcalderas/taskwise-backend/internal/validation"
)

const (
	syllabusTextMaxLen = 200000
	uploadMaxBytes     = 10 << 20
)

// ParseSyllabusInput names exactly one source: pasted text or a previously
// uploaded file.
type ParseSyllabusInput struct {
	Text    string     `json:"text,omitempty"`
	FileID  *uuid.UUID `json:"file_id,omitempty"`
	ClassID *uuid.UUID `json:"class_id,omitempty"`
}

type SyllabusService interface {
	UploadFile(ctx context.Context, userID uuid.UUID, classID *uuid.UUID, originalName, mimeType string, size int64, data io.Reader) (*types.SyllabusFile, error)
	ListFiles(ctx context.Context, userID uuid.UUID) ([]*types.SyllabusFile, error)
	DeleteFile(ctx context.Context, userID, fileID uuid.UUID) error
	ParseSyllabus(ctx context.Context, userID uuid.UUID, input ParseSyllabusInput) ([]validation.ParsedAssignment, error)
}

type syllabusService struct {
	db        *gorm.DB
	log       *logger.Logger
	fileRepo  repos.SyllabusFileRepo
	classRepo repos.ClassRepo
	storage   minio.Storage
	aiClient  OpenAIClient
}

func NewSyllabusService(
	db *gorm.DB,
	baseLog *logger.Logger,
	fileRepo repos.SyllabusFileRepo,
	classRepo repos.ClassRepo,
	storage minio.Storage,
	aiClient OpenAIClient,
) SyllabusService {
	return &syllabusService{
		db:        db,
		log:       baseLog.With("service", "SyllabusService"),
		fileRepo:  fileRepo,
		classRepo: classRepo,
		storage:   storage,
		aiClient:  aiClient,
	}
}

func (s *syllabusService) requireClass(ctx context.Context, userID, classID uuid.UUID) (*types.Class, error) {
	class, err := s.classRepo.GetByIDForUser(ctx, nil, classID, userID)
	if err != nil {
		return nil, fmt.Errorf("load class: %w", err)
	}
	if class == nil {
		return nil, apierr.New(http.StatusNotFound, "class_not_found",
			fmt.Errorf("Class not found or does not belong to user"))
	}
	return class, nil
}

func (s *syllabusService) UploadFile(ctx context.Context, userID uuid.UUID, classID *uuid.UUID, originalName, mimeType string, size int64, data io.Reader) (*types.SyllabusFile, error) {
	originalName = strings.TrimSpace(originalName)
	if originalName == "" {
		return nil, apierr.New(http.StatusBadRequest, "invalid_file", fmt.Errorf("a file name is required"))
	}
	if size <= 0 || size > uploadMaxBytes {
		return nil, apierr.New(http.StatusBadRequest, "invalid_file",
			fmt.Errorf("file size must be between 1 byte and %d bytes", uploadMaxBytes))
	}
	if classID != nil {
		if _, err := s.requireClass(ctx, userID, *classID); err != nil {
			return nil, err
		}
	}
	if s.storage == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "storage_unavailable",
			fmt.Errorf("file storage is not configured"))
	}

	fileID := uuid.New()
	key := fmt.Sprintf("%s/%s", userID, fileID)

	var contentText string
	body := data
	if isTextMime(mimeType) {
		// Plain text is read once so parsing never needs the object store.
		raw, err := io.ReadAll(io.LimitReader(data, uploadMaxBytes))
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		contentText = string(raw)
		body = strings.NewReader(contentText)
		size = int64(len(raw))
	}

	if err := s.storage.Upload(ctx, key, body, size, mimeType); err != nil {
		return nil, apierr.New(http.StatusBadGateway, "upload_failed", err)
	}

	now := time.Now()
	file := &types.SyllabusFile{
		ID:           fileID,
		UserID:       userID,
		ClassID:      classID,
		OriginalName: originalName,
		MimeType:     mimeType,
		SizeBytes:    size,
		StorageKey:   key,
		ContentText:  contentText,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.fileRepo.Create(ctx, nil, file); err != nil {
		// Best-effort cleanup so the bucket does not accumulate orphans.
		if rmErr := s.storage.Remove(ctx, key); rmErr != nil {
			s.log.Warn("Failed to remove orphaned upload", "key", key, "error", rmErr)
		}
		return nil, fmt.Errorf("save file record: %w", err)
	}
	return file, nil
}

func isTextMime(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return true
	case mimeType == "application/json", mimeType == "":
		return true
	}
	return false
}

func (s *syllabusService) ListFiles(ctx context.Context, userID uuid.UUID) ([]*types.SyllabusFile, error) {
	files, err := s.fileRepo.GetAllForUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

func (s *syllabusService) DeleteFile(ctx context.Context, userID, fileID uuid.UUID) error {
	file, err := s.fileRepo.GetByIDForUser(ctx, nil, fileID, userID)
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}
	if file == nil {
		return apierr.New(http.StatusNotFound, "file_not_found", fmt.Errorf("file not found or access denied"))
	}
	affected, err := s.fileRepo.Delete(ctx, nil, fileID, userID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if affected == 0 {
		return apierr.New(http.StatusNotFound, "file_not_found", fmt.Errorf("file not found or access denied"))
	}
	if s.storage != nil {
		if err := s.storage.Remove(ctx, file.StorageKey); err != nil {
			s.log.Warn("Failed to remove stored object", "key", file.StorageKey, "error", err)
		}
	}
	return nil
}

// ParseSyllabus sends the syllabus text through the extraction prompt and
// returns the model's assignments after structural validation. Nothing is
// persisted to the assignment table; the caller reviews and saves explicitly.
func (s *syllabusService) ParseSyllabus(ctx context.Context, userID uuid.UUID, input ParseSyllabusInput) ([]validation.ParsedAssignment, error) {
	if (input.Text == "") == (input.FileID == nil) {
		return nil, apierr.New(http.StatusBadRequest, "invalid_input",
			fmt.Errorf("provide exactly one of text or file_id"))
	}

	className := ""
	if input.ClassID != nil {
		class, err := s.requireClass(ctx, userID, *input.ClassID)
		if err != nil {
			return nil, err
		}
		className = class.Name
	}

	text := input.Text
	var file *types.SyllabusFile
	if input.FileID != nil {
		var err error
		file, err = s.fileRepo.GetByIDForUser(ctx, nil, *input.FileID, userID)
		if err != nil {
			return nil, fmt.Errorf("load file: %w", err)
		}
		if file == nil {
			return nil, apierr.New(http.StatusNotFound, "file_not_found",
				fmt.Errorf("file not found or access denied"))
		}
		text = file.ContentText
		if text == "" {
			text, err = s.readStoredText(ctx, file)
			if err != nil {
				return nil, err
			}
		}
	}

	text = prompts.Sanitize(text)
	if strings.TrimSpace(text) == "" {
		return nil, apierr.New(http.StatusBadRequest, "empty_syllabus",
			fmt.Errorf("syllabus text is empty"))
	}
	if len(text) > syllabusTextMaxLen {
		text = text[:syllabusTextMaxLen]
	}

	raw, err := s.aiClient.GenerateJSON(ctx,
		prompts.SyllabusParseSystem(),
		prompts.BuildSyllabusParsePrompt(text, className),
		"parsed_assignments",
		prompts.ParsedAssignmentsSchema(),
	)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "syllabus_parse_failed", err)
	}
	parsed, err := validation.ValidateParsedAssignments(raw)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "syllabus_parse_failed", err)
	}

	if file != nil {
		if blob, err := json.Marshal(parsed); err == nil {
			if _, err := s.fileRepo.Update(ctx, nil, file.ID, userID, map[string]interface{}{
				"parsed_json": blob,
				"updated_at":  time.Now(),
			}); err != nil {
				s.log.Warn("Failed to store parse result on file", "file_id", file.ID, "error", err)
			}
		}
	}
	return parsed, nil
}

func (s *syllabusService) readStoredText(ctx context.Context, file *types.SyllabusFile) (string, error) {
	if s.storage == nil {
		return "", apierr.New(http.StatusServiceUnavailable, "storage_unavailable",
			fmt.Errorf("file storage is not configured"))
	}
	if !isTextMime(file.MimeType) {
		return "", apierr.New(http.StatusUnprocessableEntity, "unsupported_file",
			fmt.Errorf("cannot extract text from %q; paste the syllabus text instead", file.MimeType))
	}
	rc, err := s.storage.Download(ctx, file.StorageKey)
	if err != nil {
		return "", apierr.New(http.StatusBadGateway, "download_failed", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(io.LimitReader(rc, uploadMaxBytes))
	if err != nil {
		return "", fmt.Errorf("read stored object: %w", err)
	}
	return string(raw), nil
}
