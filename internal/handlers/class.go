package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mcalderas/taskwise-backend/internal/services"
)

type ClassHandler struct {
	classService services.ClassService
}

func NewClassHandler(classService services.ClassService) *ClassHandler {
	return &ClassHandler{classService: classService}
}

func (ch *ClassHandler) GetAll(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	classes, err := ch.classService.GetAll(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"classes": classes})
}

type createClassRequest struct {
	Name string `json:"name" binding:"required"`
	Term string `json:"term"`
}

func (ch *ClassHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	class, err := ch.classService.Create(c.Request.Context(), userID, req.Name, req.Term)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondCreated(c, gin.H{"class": class})
}

type updateClassRequest struct {
	Name *string `json:"name,omitempty"`
	Term *string `json:"term,omitempty"`
}

func (ch *ClassHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	classID, ok := pathUUID(c, "classID")
	if !ok {
		return
	}
	var req updateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := ch.classService.Update(c.Request.Context(), userID, classID, req.Name, req.Term); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"updated": true})
}

func (ch *ClassHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	classID, ok := pathUUID(c, "classID")
	if !ok {
		return
	}
	if err := ch.classService.Delete(c.Request.Context(), userID, classID); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
