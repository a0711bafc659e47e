package machine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides machine lookups with caching and thread safety.
// It wraps a Repository and adds an in-memory cache so the hot path
// (one lookup per incoming message) never touches SQLite.
//
// The cache is populated on startup via RefreshCache(). Machines that
// are not registered resolve to an inferred entry so that telemetry
// from new equipment is never dropped for lack of metadata.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]Machine
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new machine registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]Machine),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all machines from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	machines, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading machines: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]Machine, len(machines))
	for _, m := range machines {
		r.cache[m.ID] = m
	}

	r.logger.Info("machine cache refreshed", "count", len(machines))
	return nil
}

// Lookup resolves a machine by ID.
//
// Resolution order:
//  1. In-memory cache (registered machines)
//  2. Repository (machines registered since the last refresh)
//  3. Name-pattern inference with the default location
//
// The inferred fallback means Lookup never fails for a syntactically
// valid ID; telemetry enrichment degrades rather than drops. Inferred
// entries for unregistered machines are cached like registered ones; a
// repository fault also resolves to the inferred entry but is not
// cached, so the repository is retried on the next miss.
func (r *Registry) Lookup(ctx context.Context, id string) (Machine, error) {
	if id == "" {
		return Machine{}, ErrInvalidID
	}

	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	m, err := r.repo.GetByID(ctx, id)
	if err == nil {
		r.cacheMu.Lock()
		r.cache[id] = *m
		r.cacheMu.Unlock()
		return *m, nil
	}

	inferred := Machine{
		ID:       id,
		Type:     InferType(id),
		Location: defaultLocation,
	}

	if !errors.Is(err, ErrNotFound) {
		// Repository fault, not an unknown machine. Degrade to the
		// inferred entry without caching it, so the next lookup retries
		// the repository once it recovers.
		r.logger.Warn("machine lookup failed, using inferred metadata",
			"machine_id", id, "error", err)
		return inferred, nil
	}

	// Unregistered machine: infer from the name, cache the answer so
	// steady traffic from unknown equipment stays off SQLite.
	r.cacheMu.Lock()
	r.cache[id] = inferred
	r.cacheMu.Unlock()
	r.logger.Debug("machine not registered, inferred metadata",
		"machine_id", id, "type", string(inferred.Type))

	return inferred, nil
}

// Count returns the number of cached machines.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
