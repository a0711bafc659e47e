package machine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for machine persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a machine by its unique identifier.
	// Returns ErrNotFound if the machine does not exist.
	GetByID(ctx context.Context, id string) (*Machine, error)

	// List retrieves all machines.
	List(ctx context.Context) ([]Machine, error)

	// Upsert inserts a machine, or updates its type and location if a
	// row with the same ID already exists.
	Upsert(ctx context.Context, m *Machine) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// machines schema migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a machine by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Machine, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	query := `
		SELECT id, type, location, created_at, updated_at
		FROM machines
		WHERE id = ?`

	m, err := scanMachine(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying machine by id: %w", err)
	}
	return m, nil
}

// List retrieves all machines ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]Machine, error) {
	query := `
		SELECT id, type, location, created_at, updated_at
		FROM machines
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying machines: %w", err)
	}
	defer rows.Close()

	var machines []Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning machine row: %w", err)
		}
		machines = append(machines, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating machines: %w", err)
	}
	return machines, nil
}

// Upsert inserts or updates a machine row.
func (r *SQLiteRepository) Upsert(ctx context.Context, m *Machine) error {
	if m == nil || m.ID == "" {
		return ErrInvalidID
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO machines (id, type, location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			location = excluded.location,
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, m.ID, string(m.Type), m.Location, now, now); err != nil {
		return fmt.Errorf("upserting machine: %w", err)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanMachine scans a machine row into a Machine struct.
func scanMachine(s scanner) (*Machine, error) {
	var m Machine
	var machineType, createdAt, updatedAt string

	if err := s.Scan(&m.ID, &machineType, &m.Location, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	m.Type = Type(machineType)
	// Timestamps are written by us in RFC3339; parse errors leave zero values.
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

	return &m, nil
}
