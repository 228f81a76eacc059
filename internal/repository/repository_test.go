package repository

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"chag-go/internal/model"
	"chag-go/pkg/database"
)

func newTestEvents(t *testing.T) EventRepository {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.CloseSQLite(db) })
	r, err := NewEventRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return r
}

func TestEventRepository_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	r := newTestEvents(t)

	for _, c := range []string{"one", "two", "three"} {
		if _, err := r.Record(ctx, model.EventMessage, c); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if _, err := r.Record(ctx, model.EventTrain, "done"); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := r.Recent(ctx, model.EventMessage, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Content != "three" || got[1].Content != "two" {
		t.Fatalf("unexpected recent events: %+v", got)
	}

	all, _ := r.Recent(ctx, "", 10)
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}

	counts, err := r.CountByKind(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[model.EventMessage] != 3 || counts[model.EventTrain] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestEventRepository_ReopenKeepsEvents(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.db")

	db, err := database.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	r, err := NewEventRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	if counts, err := r.CountByKind(ctx); err != nil || len(counts) != 0 {
		t.Fatalf("empty store should have no counts, got %v, %v", counts, err)
	}
	first, err := r.Record(ctx, model.EventPair, "hi. there.")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = database.CloseSQLite(db)

	// 再次打开时 AutoMigrate 不应影响已有数据
	db, err = database.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.CloseSQLite(db) })
	r, err = NewEventRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	got, err := r.Recent(ctx, model.EventPair, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].ID != first.ID || got[0].Content != "hi. there." {
		t.Fatalf("unexpected events after reopen: %+v", got)
	}
	if !got[0].CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got[0].CreatedAt, first.CreatedAt)
	}
}

func TestFileCorpusRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_data.txt")
	r := NewFileCorpusRepository(path)

	lines, err := r.LoadAll()
	if err != nil || lines != nil {
		t.Fatalf("missing file should load empty, got %v, %v", lines, err)
	}

	_ = r.Append("hi. there.")
	_ = r.Append("there. multi\nline.")
	lines, err = r.LoadAll()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"hi. there.", "there. multi line."}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("got %v, want %v", lines, want)
	}

	raw, _ := os.ReadFile(path)
	if string(raw) != "hi. there.\nthere. multi line.\n" {
		t.Fatalf("unexpected file content %q", raw)
	}
}

func TestReadDatasetLines_KeepsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.txt")
	if err := os.WriteFile(path, []byte("first line\n  second line \n\nthird line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadDatasetLines(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []string{"first line", "second line", "", "third line"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}

	nonBlank, _ := ReadLines(path)
	if len(nonBlank) != 3 {
		t.Fatalf("ReadLines should skip blanks, got %q", nonBlank)
	}

	missing, err := ReadDatasetLines(filepath.Join(t.TempDir(), "nope.txt"))
	if err != nil || missing != nil {
		t.Fatalf("missing file should give nil, got %v, %v", missing, err)
	}
}

func TestMemoryHistoryRepository_KeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryHistoryRepository(3)
	for i, c := range []string{"a", "b", "c", "d"} {
		_ = r.AppendHistory(ctx, "bob", model.ChatMessage{Role: "user", Content: c, Timestamp: time.Unix(int64(i), 0)})
	}
	got, _ := r.GetHistory(ctx, "bob")
	if len(got) != 3 || got[0].Content != "b" || got[2].Content != "d" {
		t.Fatalf("unexpected history: %+v", got)
	}
	if other, _ := r.GetHistory(ctx, "alice"); len(other) != 0 {
		t.Fatalf("labels should not share history: %+v", other)
	}
}
