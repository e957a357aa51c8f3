package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/persistence"
	"github.com/spec-kit/expiry-notifier/internal/render"
	apperrors "github.com/spec-kit/expiry-notifier/pkg/util"
)

// ProfileService manages the stored notification profiles.
type ProfileService struct {
	mu     sync.Mutex
	store  persistence.Store
	clk    clock.Clock
	logger *zap.Logger
}

// NewProfileService constructs the service.
func NewProfileService(store persistence.Store, clk clock.Clock, logger *zap.Logger) *ProfileService {
	return &ProfileService{store: store, clk: clk, logger: logger}
}

// List returns every stored profile.
func (s *ProfileService) List(ctx context.Context) ([]domain.NotificationProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Get returns one profile by ID.
func (s *ProfileService) Get(ctx context.Context, id string) (*domain.NotificationProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		if profiles[i].ID == id {
			return &profiles[i], nil
		}
	}
	return nil, apperrors.NewNotFound("profile", map[string]any{"id": id})
}

// Create validates, normalizes and stores a new profile.
func (s *ProfileService) Create(ctx context.Context, input domain.NotificationProfile) (*domain.NotificationProfile, error) {
	if err := normalizeProfile(&input); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		if strings.EqualFold(p.Name, input.Name) {
			return nil, apperrors.NewConflict("profile name already in use", map[string]any{"name": input.Name})
		}
	}

	now := s.clk.Now()
	input.ID = uuid.NewString()
	input.CreatedAt = now
	input.UpdatedAt = now

	profiles = append(profiles, input)
	if err := s.save(ctx, profiles); err != nil {
		return nil, err
	}
	s.logger.Info("profile created", zap.String("id", input.ID), zap.String("name", input.Name))
	return &input, nil
}

// Update replaces a profile's definition wholesale, keeping its identity and
// creation timestamp.
func (s *ProfileService) Update(ctx context.Context, id string, input domain.NotificationProfile) (*domain.NotificationProfile, error) {
	if err := normalizeProfile(&input); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range profiles {
		if profiles[i].ID == id {
			idx = i
			continue
		}
		if strings.EqualFold(profiles[i].Name, input.Name) {
			return nil, apperrors.NewConflict("profile name already in use", map[string]any{"name": input.Name})
		}
	}
	if idx < 0 {
		return nil, apperrors.NewNotFound("profile", map[string]any{"id": id})
	}

	input.ID = id
	input.CreatedAt = profiles[idx].CreatedAt
	input.UpdatedAt = s.clk.Now()
	profiles[idx] = input

	if err := s.save(ctx, profiles); err != nil {
		return nil, err
	}
	return &input, nil
}

// Delete removes a profile. Queue items and history it produced stay behind.
func (s *ProfileService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := profiles[:0]
	found := false
	for _, p := range profiles {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return apperrors.NewNotFound("profile", map[string]any{"id": id})
	}
	if err := s.save(ctx, kept); err != nil {
		return err
	}
	s.logger.Info("profile deleted", zap.String("id", id))
	return nil
}

// normalizeProfile validates the definition and brings list fields into
// canonical form: cadence days sorted descending and deduplicated, addresses
// trimmed.
func normalizeProfile(p *domain.NotificationProfile) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperrors.NewValidationError("profile name is required", nil)
	}
	if strings.TrimSpace(p.SubjectTemplate) == "" {
		return apperrors.NewValidationError("subject template is required", nil)
	}
	if strings.TrimSpace(p.BodyTemplate) == "" {
		return apperrors.NewValidationError("body template is required", nil)
	}
	if err := render.Validate(p.SubjectTemplate); err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "subject_template"})
	}
	if err := render.Validate(p.BodyTemplate); err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "body_template"})
	}

	if len(p.CadenceDays) == 0 {
		return apperrors.NewValidationError("at least one cadence day is required", nil)
	}
	seen := make(map[int]bool)
	days := make([]int, 0, len(p.CadenceDays))
	for _, d := range p.CadenceDays {
		if d < 0 {
			return apperrors.NewValidationError("cadence days must not be negative", map[string]any{"day": d})
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(days)))
	p.CadenceDays = days

	if len(p.AssignedGroups) == 0 {
		return apperrors.NewValidationError("at least one group assignment is required", nil)
	}
	groups := make([]string, 0, len(p.AssignedGroups))
	for _, g := range p.AssignedGroups {
		g = strings.TrimSpace(g)
		if g != "" {
			groups = append(groups, g)
		}
	}
	if len(groups) == 0 {
		return apperrors.NewValidationError("at least one group assignment is required", nil)
	}
	p.AssignedGroups = groups

	cc := make([]string, 0, len(p.Recipients.CC))
	for _, addr := range p.Recipients.CC {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			cc = append(cc, addr)
		}
	}
	p.Recipients.CC = cc

	if !p.Recipients.ToUser && len(p.Recipients.CC) == 0 && !p.Recipients.ToManager {
		return apperrors.NewValidationError("recipient policy delivers to nobody", nil)
	}

	if p.PreferredTime != "" {
		if _, err := time.Parse("15:04", p.PreferredTime); err != nil {
			return apperrors.NewValidationError("preferred time must be HH:mm", map[string]any{"value": p.PreferredTime})
		}
	}
	return nil
}

func (s *ProfileService) load(ctx context.Context) ([]domain.NotificationProfile, error) {
	var profiles []domain.NotificationProfile
	if err := s.store.LoadCollection(ctx, persistence.CollectionProfiles, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *ProfileService) save(ctx context.Context, profiles []domain.NotificationProfile) error {
	return s.store.SaveCollection(ctx, persistence.CollectionProfiles, profiles)
}
