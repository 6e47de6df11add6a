package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/mcalderas/taskwise-backend/internal/handlers"
	"github.com/mcalderas/taskwise-backend/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins    []string
	AuthHandler       *handlers.AuthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	UserHandler       *handlers.UserHandler
	ClassHandler      *handlers.ClassHandler
	AssignmentHandler *handlers.AssignmentHandler
	PlanHandler       *handlers.PlanHandler
	SyllabusHandler   *handlers.SyllabusHandler
	HealthHandler     *handlers.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", cfg.HealthHandler.Basic)
	api := router.Group("/api")
	{
		api.POST("/register", cfg.AuthHandler.Register)
		api.POST("/login", cfg.AuthHandler.Login)
		api.POST("/refresh", cfg.AuthHandler.Refresh)
	}

	// Protected
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	protected.POST("/logout", cfg.AuthHandler.Logout)

	protected.GET("/user", cfg.UserHandler.GetMe)
	protected.PATCH("/user/profile", cfg.UserHandler.UpdateProfile)

	protected.GET("/healthcheck/detailed", cfg.HealthHandler.Detailed)

	protected.GET("/classes", cfg.ClassHandler.GetAll)
	protected.POST("/classes", cfg.ClassHandler.Create)
	protected.PATCH("/classes/:classID", cfg.ClassHandler.Update)
	protected.DELETE("/classes/:classID", cfg.ClassHandler.Delete)

	protected.GET("/assignments", cfg.AssignmentHandler.GetAll)
	protected.GET("/assignments/:assignmentID", cfg.AssignmentHandler.GetByID)
	protected.GET("/classes/:classID/assignments", cfg.AssignmentHandler.GetByClass)
	protected.POST("/classes/:classID/assignments", cfg.AssignmentHandler.Create)
	protected.POST("/classes/:classID/assignments/batch", cfg.AssignmentHandler.CreateBatch)
	protected.PATCH("/assignments/:assignmentID", cfg.AssignmentHandler.Update)
	protected.PATCH("/assignments/:assignmentID/status", cfg.AssignmentHandler.UpdateStatus)
	protected.DELETE("/assignments/:assignmentID", cfg.AssignmentHandler.Delete)

	protected.POST("/assignments/:assignmentID/plan", cfg.PlanHandler.Initiate)
	protected.GET("/assignments/:assignmentID/plan", cfg.PlanHandler.Get)
	protected.PATCH("/assignments/:assignmentID/plan", cfg.PlanHandler.UpdateInstructions)
	protected.POST("/assignments/:assignmentID/plan/generate-prompt", cfg.PlanHandler.GeneratePrompt)
	protected.POST("/assignments/:assignmentID/plan/generate-subtasks", cfg.PlanHandler.GenerateSubTasks)
	protected.POST("/assignments/:assignmentID/plan/generate-final-prompts", cfg.PlanHandler.GenerateFinalPrompts)
	protected.POST("/assignments/:assignmentID/plan/refine", cfg.PlanHandler.Refine)
	protected.PATCH("/assignments/:assignmentID/plan/subtasks/:subTaskID", cfg.PlanHandler.UpdateSubTask)

	protected.POST("/ai/parse-syllabus", cfg.SyllabusHandler.Parse)
	protected.POST("/ai/validate-review", cfg.SyllabusHandler.ValidateReview)

	protected.POST("/files", cfg.SyllabusHandler.Upload)
	protected.GET("/files", cfg.SyllabusHandler.ListFiles)
	protected.DELETE("/files/:fileID", cfg.SyllabusHandler.DeleteFile)

	return router
}

// ParseOrigins splits a comma-separated origin list from the environment.
func ParseOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
