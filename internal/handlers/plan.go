package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mcalderas/taskwise-backend/internal/services"
)

type PlanHandler struct {
	plannerService services.PlannerService
}

func NewPlanHandler(plannerService services.PlannerService) *PlanHandler {
	return &PlanHandler{plannerService: plannerService}
}

type planInstructionsRequest struct {
	Instructions string `json:"instructions" binding:"required"`
}

func (ph *PlanHandler) Initiate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	var req planInstructionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	plan, err := ph.plannerService.InitiatePlan(c.Request.Context(), userID, assignmentID, req.Instructions)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"plan": plan})
}

func (ph *PlanHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	view, err := ph.plannerService.GetPlan(c.Request.Context(), userID, assignmentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

func (ph *PlanHandler) UpdateInstructions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	var req planInstructionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := ph.plannerService.UpdateInstructions(c.Request.Context(), userID, assignmentID, req.Instructions); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"updated": true})
}

func (ph *PlanHandler) GeneratePrompt(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	plan, err := ph.plannerService.GeneratePrompt(c.Request.Context(), userID, assignmentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"plan": plan})
}

func (ph *PlanHandler) GenerateSubTasks(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	subTasks, err := ph.plannerService.GenerateSubTasks(c.Request.Context(), userID, assignmentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"sub_tasks": subTasks})
}

func (ph *PlanHandler) GenerateFinalPrompts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	subTasks, err := ph.plannerService.GenerateFinalPrompts(c.Request.Context(), userID, assignmentID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"sub_tasks": subTasks})
}

type refineRequest struct {
	Message string `json:"message" binding:"required"`
}

func (ph *PlanHandler) Refine(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	var req refineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	view, err := ph.plannerService.RefinePlan(c.Request.Context(), userID, assignmentID, req.Message)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, view)
}

func (ph *PlanHandler) UpdateSubTask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(c, "assignmentID")
	if !ok {
		return
	}
	subTaskID, ok := pathUUID(c, "subTaskID")
	if !ok {
		return
	}
	var req services.SubTaskUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := ph.plannerService.UpdateSubTask(c.Request.Context(), userID, assignmentID, subTaskID, req); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"updated": true})
}
