package machine

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the machines table.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE machines (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			location TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		)`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	seed := `
		INSERT INTO machines (id, type, location) VALUES
			('Milling1', 'milling', 'workshop_A'),
			('Lathe1', 'lathe', 'workshop_A')`
	if _, err := db.Exec(seed); err != nil {
		t.Fatalf("failed to seed machines: %v", err)
	}

	return db
}

func TestRepository_GetByID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	m, err := repo.GetByID(ctx, "Milling1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if m.Type != TypeMilling {
		t.Errorf("Type = %q, want %q", m.Type, TypeMilling)
	}
	if m.Location != "workshop_A" {
		t.Errorf("Location = %q, want workshop_A", m.Location)
	}
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "Grinder9")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestRepository_GetByID_EmptyID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "")
	if !errors.Is(err, ErrInvalidID) {
		t.Errorf("GetByID() error = %v, want ErrInvalidID", err)
	}
}

func TestRepository_List(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	machines, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(machines) != 2 {
		t.Fatalf("List() returned %d machines, want 2", len(machines))
	}
	// Ordered by ID
	if machines[0].ID != "Lathe1" || machines[1].ID != "Milling1" {
		t.Errorf("List() order = [%s, %s], want [Lathe1, Milling1]",
			machines[0].ID, machines[1].ID)
	}
}

func TestRepository_Upsert(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	// Insert new
	saw := &Machine{ID: "Saw1", Type: TypeSaw, Location: "workshop_A"}
	if err := repo.Upsert(ctx, saw); err != nil {
		t.Fatalf("Upsert() insert error = %v", err)
	}

	got, err := repo.GetByID(ctx, "Saw1")
	if err != nil {
		t.Fatalf("GetByID() after insert error = %v", err)
	}
	if got.Type != TypeSaw {
		t.Errorf("Type = %q, want %q", got.Type, TypeSaw)
	}

	// Update existing
	saw.Location = "workshop_B"
	if err := repo.Upsert(ctx, saw); err != nil {
		t.Fatalf("Upsert() update error = %v", err)
	}

	got, err = repo.GetByID(ctx, "Saw1")
	if err != nil {
		t.Fatalf("GetByID() after update error = %v", err)
	}
	if got.Location != "workshop_B" {
		t.Errorf("Location = %q, want workshop_B", got.Location)
	}
}

func TestRepository_Upsert_InvalidID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	if err := repo.Upsert(context.Background(), &Machine{}); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Upsert(empty id) error = %v, want ErrInvalidID", err)
	}
	if err := repo.Upsert(context.Background(), nil); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Upsert(nil) error = %v, want ErrInvalidID", err)
	}
}
