package machine

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_RefreshCache(t *testing.T) {
	registry := NewRegistry(NewSQLiteRepository(setupTestDB(t)))

	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if got := registry.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}

func TestRegistry_Lookup_Cached(t *testing.T) {
	db := setupTestDB(t)
	registry := NewRegistry(NewSQLiteRepository(db))
	ctx := context.Background()

	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	// Drop the table: a cached lookup must not touch the repository.
	if _, err := db.Exec("DROP TABLE machines"); err != nil {
		t.Fatalf("dropping table: %v", err)
	}

	m, err := registry.Lookup(ctx, "Milling1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if m.Type != TypeMilling {
		t.Errorf("Type = %q, want %q", m.Type, TypeMilling)
	}
}

func TestRegistry_Lookup_RepositoryFallthrough(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	registry := NewRegistry(repo)
	ctx := context.Background()

	// No RefreshCache: lookup must fall through to the repository.
	m, err := registry.Lookup(ctx, "Lathe1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if m.Type != TypeLathe {
		t.Errorf("Type = %q, want %q", m.Type, TypeLathe)
	}
	if registry.Count() != 1 {
		t.Errorf("Count() = %d after lookup, want 1 (cached)", registry.Count())
	}
}

func TestRegistry_Lookup_Inferred(t *testing.T) {
	registry := NewRegistry(NewSQLiteRepository(setupTestDB(t)))
	ctx := context.Background()

	tests := []struct {
		id       string
		wantType Type
	}{
		{"Milling7", TypeMilling},
		{"Lathe3", TypeLathe},
		{"Saw9", TypeSaw},
		{"Press1", TypeUnknown},
	}

	for _, tt := range tests {
		m, err := registry.Lookup(ctx, tt.id)
		if err != nil {
			t.Fatalf("Lookup(%q) error = %v", tt.id, err)
		}
		if m.Type != tt.wantType {
			t.Errorf("Lookup(%q) type = %q, want %q", tt.id, m.Type, tt.wantType)
		}
		if m.Location != "workshop_A" {
			t.Errorf("Lookup(%q) location = %q, want workshop_A", tt.id, m.Location)
		}
	}
}

// countingRepo wraps canned responses and tracks GetByID traffic.
type countingRepo struct {
	getErr  error
	getByID int
}

func (r *countingRepo) GetByID(_ context.Context, _ string) (*Machine, error) {
	r.getByID++
	return nil, r.getErr
}

func (r *countingRepo) List(_ context.Context) ([]Machine, error) { return nil, nil }

func (r *countingRepo) Upsert(_ context.Context, _ *Machine) error { return nil }

func TestRegistry_Lookup_InferredCached(t *testing.T) {
	repo := &countingRepo{getErr: ErrNotFound}
	registry := NewRegistry(repo)
	ctx := context.Background()

	for n := 0; n < 3; n++ {
		m, err := registry.Lookup(ctx, "Saw7")
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if m.Type != TypeSaw {
			t.Errorf("Type = %q, want %q", m.Type, TypeSaw)
		}
	}

	// The unknown answer is cached: only the first lookup hits the repository.
	if repo.getByID != 1 {
		t.Errorf("GetByID calls = %d, want 1", repo.getByID)
	}
}

func TestRegistry_Lookup_RepositoryFault(t *testing.T) {
	repo := &countingRepo{getErr: errors.New("database is locked")}
	registry := NewRegistry(repo)
	ctx := context.Background()

	// A repository fault degrades to inference instead of failing the lookup.
	m, err := registry.Lookup(ctx, "Lathe5")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if m.Type != TypeLathe {
		t.Errorf("Type = %q, want %q", m.Type, TypeLathe)
	}

	// The degraded answer is not cached; the repository is retried.
	if _, err := registry.Lookup(ctx, "Lathe5"); err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if repo.getByID != 2 {
		t.Errorf("GetByID calls = %d, want 2", repo.getByID)
	}

	// Once the repository recovers, the real row wins and is cached.
	repo.getErr = ErrNotFound
	if _, err := registry.Lookup(ctx, "Lathe5"); err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", registry.Count())
	}
}

func TestRegistry_Lookup_EmptyID(t *testing.T) {
	registry := NewRegistry(NewSQLiteRepository(setupTestDB(t)))

	if _, err := registry.Lookup(context.Background(), ""); err == nil {
		t.Error("Lookup(\"\") expected error")
	}
}

func TestInferType(t *testing.T) {
	tests := []struct {
		id   string
		want Type
	}{
		{"Milling1", TypeMilling},
		{"milling2", TypeMilling},
		{"Lathe1", TypeLathe},
		{"Saw1", TypeSaw},
		{"SAW2", TypeSaw},
		{"Conveyor1", TypeUnknown},
		{"", TypeUnknown},
	}

	for _, tt := range tests {
		if got := InferType(tt.id); got != tt.want {
			t.Errorf("InferType(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}
