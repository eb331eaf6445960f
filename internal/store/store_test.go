package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/foundry/internal/config"
	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/project"
)

func newTestProject(id string, updated time.Time) *project.Project {
	return &project.Project{
		ID:          id,
		Title:       "Project " + id,
		Description: "a concept",
		Phase:       project.PhaseConcept,
		Pipeline: &project.PipelineState{
			CurrentPhase: project.PhaseConcept,
			Phases: map[project.Phase]*project.PhaseState{
				project.PhaseConcept: {
					Phase:    project.PhaseConcept,
					SubState: project.SubStateWorking,
					Step:     project.StepRefining,
				},
			},
		},
		Artifacts: project.Artifacts{
			SelectedCouncil: []project.CouncilMember{{AgentName: "critic", EvaluationCriteria: []string{"risk"}}},
		},
		Metadata:  map[string]string{"k": "v"},
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

// storeFactories returns every Store implementation under test.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "projects"))
			if err != nil {
				t.Fatalf("NewFileStore() error = %v", err)
			}
			return s
		},
		"sqlite": func() Store {
			s, err := OpenSQLite(":memory:")
			if err != nil {
				t.Fatalf("OpenSQLite() error = %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
		"cached": func() Store {
			s, err := NewCachedStore(NewMemoryStore(), 2)
			if err != nil {
				t.Fatalf("NewCachedStore() error = %v", err)
			}
			return s
		},
	}
}

func TestStores_RoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, errors.ErrProjectNotFound) {
				t.Fatalf("Get(missing) error = %v, want ErrProjectNotFound", err)
			}

			p := newTestProject("p1", now)
			if err := s.Save(ctx, p); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err := s.Get(ctx, "p1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Title != p.Title || got.Pipeline.Current().Step != project.StepRefining {
				t.Errorf("round trip lost data: %+v", got)
			}
			if got.Artifacts.SelectedCouncil[0].AgentName != "critic" {
				t.Errorf("SelectedCouncil = %+v", got.Artifacts.SelectedCouncil)
			}

			// Returned records are copies.
			got.Title = "mutated"
			got.Artifacts.SelectedCouncil[0].EvaluationCriteria[0] = "mutated"
			again, _ := s.Get(ctx, "p1")
			if again.Title != p.Title || again.Artifacts.SelectedCouncil[0].EvaluationCriteria[0] != "risk" {
				t.Error("mutating a returned project changed the stored record")
			}

			// Save replaces.
			p.Title = "renamed"
			if err := s.Save(ctx, p); err != nil {
				t.Fatalf("Save(update) error = %v", err)
			}
			again, _ = s.Get(ctx, "p1")
			if again.Title != "renamed" {
				t.Errorf("Title = %q after update, want renamed", again.Title)
			}
		})
	}
}

func TestStores_List(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			offsets := map[string]time.Duration{"old": 0, "new": 2 * time.Hour, "mid": time.Hour}
			for id, off := range offsets {
				if err := s.Save(ctx, newTestProject(id, base.Add(off))); err != nil {
					t.Fatalf("Save(%s) error = %v", id, err)
				}
			}

			list, err := s.List(ctx)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			want := []string{"new", "mid", "old"}
			if len(list) != len(want) {
				t.Fatalf("List() returned %d projects, want %d", len(list), len(want))
			}
			for i, id := range want {
				if list[i].ID != id {
					t.Errorf("List()[%d] = %s, want %s", i, list[i].ID, id)
				}
			}
		})
	}
}

func TestStores_RejectInvalid(t *testing.T) {
	ctx := context.Background()
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory()
			if err := s.Save(ctx, nil); err == nil {
				t.Error("Save(nil) should fail")
			}
			if err := s.Save(ctx, &project.Project{}); err == nil {
				t.Error("Save(no id) should fail")
			}
		})
	}
}

func TestFileStore_AtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := s.Save(ctx, newTestProject("p1", time.Now())); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "p1.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contents = %v, want [p1.json]", names)
	}
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, newTestProject("../escape", time.Now())); !errors.IsValidation(err) {
		t.Errorf("Save(../escape) error = %v, want validation error", err)
	}
	if _, err := s.Get(ctx, "../escape"); !errors.IsNotFound(err) {
		t.Errorf("Get(../escape) error = %v, want not found", err)
	}
}

func TestFileStore_ListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	ctx := context.Background()
	_ = s.Save(ctx, newTestProject("good", time.Now()))
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != "good" {
		t.Errorf("List() = %v, want only good", list)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "foundry.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if err := s.Save(ctx, newTestProject("p1", time.Now())); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	_ = s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, err := s.Get(ctx, "p1"); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}
}

func TestCachedStore_EvictsAndFallsBack(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	s, err := NewCachedStore(backend, 2)
	if err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"a", "b", "c"} {
		_ = s.Save(ctx, newTestProject(id, time.Now()))
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	// "a" was evicted but is still served from the backend.
	if _, err := s.Get(ctx, "a"); err != nil {
		t.Errorf("Get(evicted) error = %v", err)
	}

	if _, err := NewCachedStore(backend, 0); err == nil {
		t.Error("NewCachedStore(size 0) should fail")
	}
}

func TestOpen(t *testing.T) {
	t.Setenv("FOUNDRY_DATA_DIR", t.TempDir())

	tests := []struct {
		cfg  config.StoreConfig
		want string
	}{
		{config.StoreConfig{Backend: "file"}, "*store.FileStore"},
		{config.StoreConfig{Backend: "file", CacheSize: 4}, "*store.CachedStore"},
		{config.StoreConfig{Backend: "sqlite"}, "*store.SQLiteStore"},
		{config.StoreConfig{Backend: "memory", CacheSize: 4}, "*store.MemoryStore"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			s, err := Open(tt.cfg)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer func() { _ = Close(s) }()
			if got := typeName(s); got != tt.want {
				t.Errorf("Open() = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := Open(config.StoreConfig{Backend: "etcd"}); err == nil {
		t.Error("Open(unknown backend) should fail")
	}
}

func typeName(s Store) string {
	switch s.(type) {
	case *FileStore:
		return "*store.FileStore"
	case *CachedStore:
		return "*store.CachedStore"
	case *SQLiteStore:
		return "*store.SQLiteStore"
	case *MemoryStore:
		return "*store.MemoryStore"
	default:
		return "unknown"
	}
}
