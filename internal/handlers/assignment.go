package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mcalderas/taskwise-backend/internal/services"
	"github.com/mcalderas/taskwise-backend/internal/validation"
)

type AssignmentHandler struct {
	assignmentService services.AssignmentService
}

func NewAssignmentHandler(assignmentService services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

func (ah *AssignmentHandler) GetAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignments, err := ah.assignmentService.GetAll(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"assignments": assignments})
}

func (ah *AssignmentHandler) GetByID(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	assignment, err := ah.assignmentService.GetByID(c.Request.Context(), userID, assignmentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"assignment": assignment})
}

func (ah *AssignmentHandler) GetByClass(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	classID, ok := pathUUID(c, "classID")
	if !ok {
		return
	}
	assignments, err := ah.assignmentService.GetByClass(c.Request.Context(), userID, classID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"assignments": assignments})
}

type createAssignmentRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date" binding:"required"`
	Points      float64 `json:"points"`
}

func (ah *AssignmentHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	classID, ok := pathUUID(c, "classID")
	if !ok {
		return
	}
	var req createAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	assignment, err := ah.assignmentService.CreateManual(c.Request.Context(), userID, classID,
		req.Title, req.Description, req.DueDate, req.Points)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"assignment": assignment})
}

type createBatchRequest struct {
	Assignments []validation.ReviewedAssignment `json:"assignments" binding:"required"`
}

// CreateBatch saves a reviewed set of extracted assignments in one shot.
// The whole set is rejected if any row fails validation or duplicates an
// existing assignment in the class.
func (ah *AssignmentHandler) CreateBatch(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	classID, ok := pathUUID(c, "classID")
	if !ok {
		return
	}
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	assignments, err := ah.assignmentService.CreateBatch(c.Request.Context(), userID, classID, req.Assignments)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"assignments": assignments})
}

func (ah *AssignmentHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	var req services.AssignmentUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := ah.assignmentService.Update(c.Request.Context(), userID, assignmentID, req); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"updated": true})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (ah *AssignmentHandler) UpdateStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := ah.assignmentService.UpdateStatus(c.Request.Context(), userID, assignmentID, req.Status); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"updated": true})
}

func (ah *AssignmentHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	if err := ah.assignmentService.Delete(c.Request.Context(), userID, assignmentID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
