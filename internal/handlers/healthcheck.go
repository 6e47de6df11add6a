package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/mcalderas/taskwise-backend/internal/services"
)

type HealthHandler struct {
	healthService services.HealthService
}

func NewHealthHandler(healthService services.HealthService) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

func (hh *HealthHandler) Basic(c *gin.Context) {
	RespondOK(c, hh.healthService.Basic())
}

func (hh *HealthHandler) Detailed(c *gin.Context) {
	RespondOK(c, hh.healthService.Detailed(c.Request.Context()))
}
