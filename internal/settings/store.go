package settings

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/persistence"
	apperrors "github.com/spec-kit/expiry-notifier/pkg/util"
)

// Store loads and saves the settings collection. Reads fall back to defaults
// when persistence is unavailable so job runs and the worker keep going;
// writes propagate their error to the caller.
type Store struct {
	mu     sync.Mutex
	store  persistence.Store
	logger *zap.Logger
}

func NewStore(store persistence.Store, logger *zap.Logger) *Store {
	return &Store{store: store, logger: logger}
}

// Load returns the persisted settings overlaid on defaults. A read failure
// is logged and the defaults returned, so a broken data file degrades the
// service instead of stopping it.
func (s *Store) Load(ctx context.Context) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Save validates and persists the full settings document.
func (s *Store) Save(ctx context.Context, cfg Settings) error {
	if err := cfg.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SaveCollection(ctx, persistence.CollectionSettings, cfg)
}

// Update merges an incoming document over the stored one and persists the
// result, returning what was saved.
func (s *Store) Update(ctx context.Context, incoming Settings) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := Merge(s.loadLocked(ctx), incoming)
	if err := merged.Validate(); err != nil {
		return Settings{}, apperrors.NewValidationError(err.Error(), nil)
	}
	if err := s.store.SaveCollection(ctx, persistence.CollectionSettings, merged); err != nil {
		return Settings{}, err
	}
	return merged, nil
}

func (s *Store) loadLocked(ctx context.Context) Settings {
	cfg := Defaults()
	if err := s.store.LoadCollection(ctx, persistence.CollectionSettings, &cfg); err != nil {
		s.logger.Error("settings unavailable, using defaults", zap.Error(err))
		return Defaults()
	}
	return cfg
}
