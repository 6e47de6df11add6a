package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/platform/apierr"
	"github.com/mcalderas/taskwise-backend/internal/repos"
	"gorm.io/gorm"
)

// memCache is an in-process Cache for exercising the read-through paths.
type memCache struct {
	data        map[string][]byte
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (m *memCache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, nil
	}
	return true, nil
}

func (m *memCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memCache) Invalidate(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
		m.invalidated = append(m.invalidated, k)
	}
	return nil
}

func (m *memCache) Ping(ctx context.Context) error { return nil }
func (m *memCache) Close() error                   { return nil }

func newClasses(t *testing.T, gdb *gorm.DB, cache *memCache) ClassService {
	t.Helper()
	log := logger.NewNop()
	if cache == nil {
		return NewClassService(gdb, log, repos.NewClassRepo(gdb, log), nil)
	}
	return NewClassService(gdb, log, repos.NewClassRepo(gdb, log), cache)
}

func TestClassGetAll_PopulatesAndServesCache(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	seedClass(t, gdb, user.ID)
	cache := newMemCache()
	svc := newClasses(t, gdb, cache)

	ctx := context.Background()
	first, err := svc.GetAll(ctx, user.ID)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 class, got %d", len(first))
	}
	if _, ok := cache.data[classListKey(user.ID)]; !ok {
		t.Fatalf("expected cache populated after miss")
	}

	// Serve from cache even if the store row disappears underneath.
	if err := gdb.Exec("DELETE FROM class").Error; err != nil {
		t.Fatalf("clear store: %v", err)
	}
	second, err := svc.GetAll(ctx, user.ID)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected cached list, got %d rows", len(second))
	}
}

func TestClassCreate_InvalidatesListCache(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	cache := newMemCache()
	svc := newClasses(t, gdb, cache)

	ctx := context.Background()
	if _, err := svc.GetAll(ctx, user.ID); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, err := svc.Create(ctx, user.ID, "Chemistry", "Fall 2026"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := cache.data[classListKey(user.ID)]; ok {
		t.Fatalf("expected list cache invalidated after create")
	}

	classes, err := svc.GetAll(ctx, user.ID)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if len(classes) != 1 || classes[0].Name != "Chemistry" {
		t.Fatalf("unexpected list after create: %+v", classes)
	}
}

func TestClassDelete_InvalidatesAssignmentCacheToo(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	class := seedClass(t, gdb, user.ID)
	seedAssignment(t, gdb, user.ID, class.ID)
	cache := newMemCache()
	svc := newClasses(t, gdb, cache)

	if err := svc.Delete(context.Background(), user.ID, class.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	sawAssignments := false
	for _, k := range cache.invalidated {
		if k == assignmentListKey(user.ID) {
			sawAssignments = true
		}
	}
	if !sawAssignments {
		t.Fatalf("class delete cascades to assignments; its cache key must be invalidated, got %v", cache.invalidated)
	}
}

func TestClassService_WorksWithoutCache(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	svc := newClasses(t, gdb, nil)

	ctx := context.Background()
	created, err := svc.Create(ctx, user.ID, "History", "")
	if err != nil {
		t.Fatalf("create without cache: %v", err)
	}
	classes, err := svc.GetAll(ctx, user.ID)
	if err != nil {
		t.Fatalf("get all without cache: %v", err)
	}
	if len(classes) != 1 || classes[0].ID != created.ID {
		t.Fatalf("unexpected list: %+v", classes)
	}
}

func TestClassUpdate_ScopedToOwner(t *testing.T) {
	gdb := newTestDB(t)
	owner := seedUser(t, gdb)
	other := seedUser(t, gdb)
	class := seedClass(t, gdb, owner.ID)
	svc := newClasses(t, gdb, nil)

	name := "Renamed"
	err := svc.Update(context.Background(), other.ID, class.ID, &name, nil)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404 for foreign update, got %v", err)
	}
	if err := svc.Update(context.Background(), owner.ID, class.ID, &name, nil); err != nil {
		t.Fatalf("owner update: %v", err)
	}
}
