package rootaccess

import (
	"errors"
	"log/slog"
	"os"
	"sync"
)

// Transition describes the outcome of a state change request.
type Transition struct {
	Old bool
	New bool
}

// Changed reports whether the request altered the state.
func (t Transition) Changed() bool {
	return t.Old != t.New
}

// Disabling reports whether the request turned root access off.
func (t Transition) Disabling() bool {
	return t.Old && !t.New
}

// Store owns the in-memory toggle. The in-memory value is authoritative for
// the process lifetime; the persisted copy is a best-effort mirror written
// on every committed change.
type Store struct {
	mu        sync.Mutex
	enabled   bool
	persister Persister
	metrics   *Metrics
	logger    *slog.Logger
}

// NewStore creates a Store initialised from p. Missing or unreadable state
// yields false; it never fails.
func NewStore(p Persister, metrics *Metrics, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		persister: p,
		metrics:   metrics,
		logger:    logger.With("component", "rootaccess"),
	}

	enabled, err := p.Load()
	switch {
	case err == nil:
		s.enabled = enabled
	case errors.Is(err, os.ErrNotExist):
		s.logger.Debug("no persisted state, defaulting to disabled")
	default:
		s.logger.Warn("persisted state unreadable, defaulting to disabled", "error", err)
	}
	metrics.setEnabled(s.enabled)

	s.logger.Info("state loaded", "enabled", s.enabled)
	return s
}

// Get returns the current value without touching persistence.
func (s *Store) Get() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// TrySet sets the value to enabled if it differs from the current one.
func (s *Store) TrySet(enabled bool) Transition {
	return s.Update(enabled, nil)
}

// Update is TrySet with a hook. onChange runs only for committed changes and
// runs while the lock is still held, so hooks are ordered exactly like the
// transitions they observe.
func (s *Store) Update(enabled bool, onChange func(Transition)) Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Transition{Old: s.enabled, New: enabled}
	if !t.Changed() {
		return t
	}

	s.enabled = enabled
	if err := s.persister.Save(enabled); err != nil {
		s.metrics.recordPersistFailure()
		s.logger.Error("failed to persist state", "enabled", enabled, "error", err)
	}
	s.metrics.setEnabled(enabled)
	s.metrics.recordTransition(t)

	s.logger.Info("root access changed", "enabled", enabled)

	if onChange != nil {
		onChange(t)
	}
	return t
}
