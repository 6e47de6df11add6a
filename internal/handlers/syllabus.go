package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mcalderas/taskwise-backend/internal/services"
	"github.com/mcalderas/taskwise-backend/internal/validation"
)

type SyllabusHandler struct {
	syllabusService services.SyllabusService
}

func NewSyllabusHandler(syllabusService services.SyllabusService) *SyllabusHandler {
	return &SyllabusHandler{syllabusService: syllabusService}
}

// Upload accepts a multipart form with a "file" part and an optional
// "class_id" field.
func (sh *SyllabusHandler) Upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_file", errors.New("a file part named 'file' is required"))
		return
	}

	var classID *uuid.UUID
	if raw := c.PostForm("class_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid class_id"))
			return
		}
		classID = &id
	}

	src, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return
	}
	defer src.Close()

	file, err := sh.syllabusService.UploadFile(c.Request.Context(), userID, classID,
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), fileHeader.Size, src)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"file": file})
}

func (sh *SyllabusHandler) ListFiles(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	files, err := sh.syllabusService.ListFiles(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"files": files})
}

func (sh *SyllabusHandler) DeleteFile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	fileID, ok := pathUUID(c, "fileID")
	if !ok {
		return
	}
	if err := sh.syllabusService.DeleteFile(c.Request.Context(), userID, fileID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// Parse extracts assignment candidates from pasted text or an uploaded file.
// Results go back to the client for review; nothing is saved here.
func (sh *SyllabusHandler) Parse(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req services.ParseSyllabusInput
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	parsed, err := sh.syllabusService.ParseSyllabus(c.Request.Context(), userID, req)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"assignments": parsed})
}

type validateReviewRequest struct {
	Assignments []validation.ReviewedAssignment `json:"assignments" binding:"required"`
}

// ValidateReview runs the reviewed list through the save-time validator
// without persisting, so the client can surface field errors before commit.
func (sh *SyllabusHandler) ValidateReview(c *gin.Context) {
	var req validateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	normalized, verr := validation.ValidateReviewedAssignments(req.Assignments, time.Now())
	if verr != nil {
		RespondServiceError(c, verr)
		return
	}
	RespondOK(c, gin.H{"assignments": normalized, "valid": true})
}
