package main

import (
	"log"
	"os"
	"time"

	"github.com/mcalderas/taskwise-backend/internal/clients/minio"
	"github.com/mcalderas/taskwise-backend/internal/clients/redis"
	"github.com/mcalderas/taskwise-backend/internal/db"
	"github.com/mcalderas/taskwise-backend/internal/handlers"
	"github.com/mcalderas/taskwise-backend/internal/middleware"
	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/repos"
	"github.com/mcalderas/taskwise-backend/internal/server"
	"github.com/mcalderas/taskwise-backend/internal/services"
	"github.com/mcalderas/taskwise-backend/internal/utils"
)

func main() {
	appLog, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	jwtSecret := os.Getenv("JWT_SECRET_KEY")
	if jwtSecret == "" {
		appLog.Fatal("JWT_SECRET_KEY is required")
	}
	accessTTL := time.Duration(utils.GetEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", 15, appLog)) * time.Minute
	refreshTTL := time.Duration(utils.GetEnvAsInt("REFRESH_TOKEN_TTL_HOURS", 720, appLog)) * time.Hour

	// Database
	pg, err := db.NewPostgresService(appLog)
	if err != nil {
		appLog.Fatal("Failed to connect to postgres", "error", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		appLog.Fatal("Failed to run migrations", "error", err)
	}
	gdb := pg.DB()

	// Repos
	userRepo := repos.NewUserRepo(gdb, appLog)
	tokenRepo := repos.NewUserTokenRepo(gdb, appLog)
	profileRepo := repos.NewUserProfileRepo(gdb, appLog)
	classRepo := repos.NewClassRepo(gdb, appLog)
	assignmentRepo := repos.NewAssignmentRepo(gdb, appLog)
	planRepo := repos.NewAssignmentPlanRepo(gdb, appLog)
	subTaskRepo := repos.NewSubTaskRepo(gdb, appLog)
	messageRepo := repos.NewRefinementMessageRepo(gdb, appLog)
	fileRepo := repos.NewSyllabusFileRepo(gdb, appLog)

	// Optional clients: the API serves without them, degraded.
	cache, err := redis.NewCache(appLog)
	if err != nil {
		appLog.Warn("Redis unavailable, list caching disabled", "error", err)
		cache = nil
	}
	storage, err := minio.NewStorage(appLog)
	if err != nil {
		appLog.Warn("Object storage unavailable, file uploads disabled", "error", err)
		storage = nil
	}

	aiClient, err := services.NewOpenAIClient(appLog)
	if err != nil {
		appLog.Fatal("Failed to configure AI client", "error", err)
	}

	// Services
	authService := services.NewAuthService(gdb, appLog, userRepo, profileRepo, tokenRepo, jwtSecret, accessTTL, refreshTTL)
	userService := services.NewUserService(appLog, userRepo, profileRepo)
	classService := services.NewClassService(gdb, appLog, classRepo, cache)
	assignmentService := services.NewAssignmentService(gdb, appLog, assignmentRepo, classRepo, cache)
	plannerService := services.NewPlannerService(gdb, appLog, assignmentRepo, planRepo, subTaskRepo, messageRepo, aiClient)
	syllabusService := services.NewSyllabusService(gdb, appLog, fileRepo, classRepo, storage, aiClient)
	healthService := services.NewHealthService(gdb, appLog, cache)

	// HTTP
	router := server.NewRouter(server.RouterConfig{
		AllowedOrigins:    server.ParseOrigins(utils.GetEnv("CORS_ALLOWED_ORIGINS", "", appLog)),
		AuthHandler:       handlers.NewAuthHandler(authService),
		AuthMiddleware:    middleware.NewAuthMiddleware(appLog, authService),
		UserHandler:       handlers.NewUserHandler(userService),
		ClassHandler:      handlers.NewClassHandler(classService),
		AssignmentHandler: handlers.NewAssignmentHandler(assignmentService),
		PlanHandler:       handlers.NewPlanHandler(plannerService),
		SyllabusHandler:   handlers.NewSyllabusHandler(syllabusService),
		HealthHandler:     handlers.NewHealthHandler(healthService),
	})

	port := utils.GetEnv("PORT", "8080", appLog)
	appLog.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		appLog.Fatal("Server exited", "error", err)
	}
}
