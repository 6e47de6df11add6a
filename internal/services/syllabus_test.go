package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mcalderas/taskwise-backend/internal/pkg/logger"
	"github.com/mcalderas/taskwise-backend/internal/platform/apierr"
	"github.com/mcalderas/taskwise-backend/internal/repos"
	"github.com/mcalderas/taskwise-backend/internal/types"
)

// memStorage is an in-process object store for upload/parse tests.
type memStorage struct {
	objects map[string][]byte
	removed []string
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Upload(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[key] = raw
	return nil
}

func (m *memStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	raw, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (m *memStorage) Remove(ctx context.Context, key string) error {
	delete(m.objects, key)
	m.removed = append(m.removed, key)
	return nil
}

func newSyllabus(t *testing.T, gdb *gorm.DB, storage *memStorage, ai OpenAIClient) SyllabusService {
	t.Helper()
	log := logger.NewNop()
	fileRepo := repos.NewSyllabusFileRepo(gdb, log)
	classRepo := repos.NewClassRepo(gdb, log)
	if storage == nil {
		return NewSyllabusService(gdb, log, fileRepo, classRepo, nil, ai)
	}
	return NewSyllabusService(gdb, log, fileRepo, classRepo, storage, ai)
}

func parsedAssignmentsJSON(titles ...string) map[string]any {
	rows := make([]any, 0, len(titles))
	for _, title := range titles {
		rows = append(rows, map[string]any{
			"title":       title,
			"description": "",
			"due_date":    "2026-10-01",
			"points":      10.0,
		})
	}
	return map[string]any{"assignments": rows}
}

func TestParseSyllabus_FromPastedText(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	ai := &fakeAI{jsonOut: parsedAssignmentsJSON("Essay 1", "Quiz 2")}
	svc := newSyllabus(t, gdb, nil, ai)

	out, err := svc.ParseSyllabus(context.Background(), user.ID, ParseSyllabusInput{
		Text: "Week 5: Essay 1 due. Week 7: Quiz 2.",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 extracted assignments, got %d", len(out))
	}
	if ai.jsonCalls != 1 {
		t.Fatalf("expected one gateway call, got %d", ai.jsonCalls)
	}
	if !strings.Contains(ai.lastUser, "--- SYLLABUS START ---") {
		t.Fatalf("expected delimited syllabus in prompt:\n%s", ai.lastUser)
	}
}

func TestParseSyllabus_RequiresExactlyOneSource(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	svc := newSyllabus(t, gdb, nil, &fakeAI{})

	if _, err := svc.ParseSyllabus(context.Background(), user.ID, ParseSyllabusInput{}); err == nil {
		t.Fatalf("expected empty input to be rejected")
	}
	fileID := uuid.New()
	_, err := svc.ParseSyllabus(context.Background(), user.ID, ParseSyllabusInput{Text: "x", FileID: &fileID})
	if err == nil {
		t.Fatalf("expected both sources to be rejected")
	}
}

func TestParseSyllabus_PersistsNoAssignments(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	ai := &fakeAI{jsonOut: parsedAssignmentsJSON("Essay 1")}
	svc := newSyllabus(t, gdb, nil, ai)

	if _, err := svc.ParseSyllabus(context.Background(), user.ID, ParseSyllabusInput{Text: "syllabus"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	var count int64
	gdb.Model(&types.Assignment{}).Count(&count)
	if count != 0 {
		t.Fatalf("extraction must not write assignments, got %d rows", count)
	}
}

func TestParseSyllabus_RejectsInvalidModelOutput(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	ai := &fakeAI{jsonOut: map[string]any{"assignments": []any{
		map[string]any{"title": "", "description": "", "due_date": "never", "points": -1.0},
	}}}
	svc := newSyllabus(t, gdb, nil, ai)

	_, err := svc.ParseSyllabus(context.Background(), user.ID, ParseSyllabusInput{Text: "syllabus"})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "syllabus_parse_failed" {
		t.Fatalf("expected syllabus_parse_failed, got %v", err)
	}
}

func TestUploadThenParse_UsesStoredText(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	storage := newMemStorage()
	ai := &fakeAI{jsonOut: parsedAssignmentsJSON("Lab 1")}
	svc := newSyllabus(t, gdb, storage, ai)

	ctx := context.Background()
	content := "Lab 1 due 2026-09-20"
	file, err := svc.UploadFile(ctx, user.ID, nil, "syllabus.txt", "text/plain",
		int64(len(content)), strings.NewReader(content))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if file.ContentText != content {
		t.Fatalf("expected text extracted at upload, got %q", file.ContentText)
	}
	if _, ok := storage.objects[file.StorageKey]; !ok {
		t.Fatalf("expected bytes stored under %q", file.StorageKey)
	}

	out, err := svc.ParseSyllabus(ctx, user.ID, ParseSyllabusInput{FileID: &file.ID})
	if err != nil {
		t.Fatalf("parse from file: %v", err)
	}
	if len(out) != 1 || out[0].Title != "Lab 1" {
		t.Fatalf("unexpected extraction: %+v", out)
	}

	// The parse result is kept on the file record for later review sessions.
	var stored types.SyllabusFile
	if err := gdb.First(&stored, "id = ?", file.ID).Error; err != nil {
		t.Fatalf("reload file: %v", err)
	}
	if len(stored.ParsedJSON) == 0 {
		t.Fatalf("expected parsed_json stored on file")
	}
}

func TestParseSyllabus_ForeignFileIs404(t *testing.T) {
	gdb := newTestDB(t)
	owner := seedUser(t, gdb)
	other := seedUser(t, gdb)
	storage := newMemStorage()
	svc := newSyllabus(t, gdb, storage, &fakeAI{jsonOut: parsedAssignmentsJSON("x")})

	ctx := context.Background()
	file, err := svc.UploadFile(ctx, owner.ID, nil, "s.txt", "text/plain", 4, strings.NewReader("text"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	_, err = svc.ParseSyllabus(ctx, other.ID, ParseSyllabusInput{FileID: &file.ID})
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404 for foreign file, got %v", err)
	}
}

func TestDeleteFile_RemovesStoredObject(t *testing.T) {
	gdb := newTestDB(t)
	user := seedUser(t, gdb)
	storage := newMemStorage()
	svc := newSyllabus(t, gdb, storage, &fakeAI{})

	ctx := context.Background()
	file, err := svc.UploadFile(ctx, user.ID, nil, "s.txt", "text/plain", 4, strings.NewReader("text"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := svc.DeleteFile(ctx, user.ID, file.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(storage.removed) != 1 || storage.removed[0] != file.StorageKey {
		t.Fatalf("expected object removed, got %v", storage.removed)
	}
	files, err := svc.ListFiles(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}

func TestUploadFile_RejectsForeignClass(t *testing.T) {
	gdb := newTestDB(t)
	owner := seedUser(t, gdb)
	other := seedUser(t, gdb)
	class := seedClass(t, gdb, owner.ID)
	storage := newMemStorage()
	svc := newSyllabus(t, gdb, storage, &fakeAI{})

	_, err := svc.UploadFile(context.Background(), other.ID, &class.ID, "s.txt", "text/plain", 4, strings.NewReader("text"))
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404 for foreign class, got %v", err)
	}
	if len(storage.objects) != 0 {
		t.Fatalf("rejected upload must not store bytes")
	}
}
