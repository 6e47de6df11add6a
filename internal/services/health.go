package services

import (
	"context"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/mcalderas/taskwise-backend/internal/clients/redis"
	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
)

type HealthStatus struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type DependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type DetailedHealth struct {
	Status       string                      `json:"status"`
	Uptime       string                      `json:"uptime"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
	Memory       MemoryStats                 `json:"memory"`
}

type MemoryStats struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	Goroutines      int    `json:"goroutines"`
}

type HealthService interface {
	Basic() HealthStatus
	Detailed(ctx context.Context) DetailedHealth
}

type healthService struct {
	db        *gorm.DB
	log       *logger.Logger
	cache     redis.Cache
	startedAt time.Time
}

func NewHealthService(db *gorm.DB, baseLog *logger.Logger, cache redis.Cache) HealthService {
	return &healthService{
		db:        db,
		log:       baseLog.With("service", "HealthService"),
		cache:     cache,
		startedAt: time.Now(),
	}
}

func (s *healthService) Basic() HealthStatus {
	return HealthStatus{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Round(time.Second).String(),
	}
}

// Detailed probes every dependency in parallel with a shared deadline. A
// degraded dependency flips the top-level status but never fails the request.
func (s *healthService) Detailed(ctx context.Context) DetailedHealth {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var dbStatus, redisStatus, llmStatus DependencyStatus
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dbStatus = s.checkDatabase(gctx)
		return nil
	})
	g.Go(func() error {
		redisStatus = s.checkRedis(gctx)
		return nil
	})
	g.Go(func() error {
		llmStatus = s.checkLLMConfig()
		return nil
	})
	_ = g.Wait()

	checks := map[string]DependencyStatus{
		"database": dbStatus,
		"redis":    redisStatus,
		"llm":      llmStatus,
	}

	// A dependency that is deliberately not configured ("disabled") does not
	// degrade the service; only a configured dependency that is down does.
	overall := "ok"
	for _, c := range checks {
		if c.Status == "down" {
			overall = "degraded"
			break
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return DetailedHealth{
		Status:       overall,
		Uptime:       time.Since(s.startedAt).Round(time.Second).String(),
		Dependencies: checks,
		Memory: MemoryStats{
			AllocBytes:      mem.Alloc,
			TotalAllocBytes: mem.TotalAlloc,
			SysBytes:        mem.Sys,
			NumGC:           mem.NumGC,
			Goroutines:      runtime.NumGoroutine(),
		},
	}
}

func (s *healthService) checkDatabase(ctx context.Context) DependencyStatus {
	sqlDB, err := s.db.DB()
	if err != nil {
		return DependencyStatus{Status: "down", Error: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return DependencyStatus{Status: "down", Error: err.Error()}
	}
	return DependencyStatus{Status: "ok"}
}

func (s *healthService) checkRedis(ctx context.Context) DependencyStatus {
	if s.cache == nil {
		return DependencyStatus{Status: "disabled"}
	}
	if err := s.cache.Ping(ctx); err != nil {
		return DependencyStatus{Status: "down", Error: err.Error()}
	}
	return DependencyStatus{Status: "ok"}
}

func (s *healthService) checkLLMConfig() DependencyStatus {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return DependencyStatus{Status: "down", Error: "missing OPENAI_API_KEY"}
	}
	return DependencyStatus{Status: "ok"}
}
