package service

import (
	"context"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/persistence"
	apperrors "github.com/spec-kit/expiry-notifier/pkg/util"
)

func newProfileService(t *testing.T) *ProfileService {
	t.Helper()
	clk := clock.NewFake()
	clk.Set(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	return NewProfileService(persistence.NewMemoryStore(), clk, zap.NewNop())
}

func validProfile() domain.NotificationProfile {
	return domain.NotificationProfile{
		Name:            "Expiry warnings",
		SubjectTemplate: "Password expires in {daysRemaining} days",
		BodyTemplate:    "Hi {displayName}",
		CadenceDays:     []int{7, 30, 7, 14},
		Recipients:      domain.RecipientPolicy{ToUser: true, CC: []string{" it@example.com ", ""}},
		AssignedGroups:  []string{"IT Staff", " "},
	}
}

func TestCreateNormalizesProfile(t *testing.T) {
	svc := newProfileService(t)

	created, err := svc.Create(context.Background(), validProfile())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, []int{30, 14, 7}, created.CadenceDays, "sorted descending, duplicates dropped")
	assert.Equal(t, []string{"it@example.com"}, created.Recipients.CC)
	assert.Equal(t, []string{"IT Staff"}, created.AssignedGroups)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := newProfileService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*domain.NotificationProfile)
	}{
		{"empty name", func(p *domain.NotificationProfile) { p.Name = "  " }},
		{"missing subject", func(p *domain.NotificationProfile) { p.SubjectTemplate = "" }},
		{"unknown token", func(p *domain.NotificationProfile) { p.BodyTemplate = "hi {firstName}" }},
		{"no cadence", func(p *domain.NotificationProfile) { p.CadenceDays = nil }},
		{"negative cadence", func(p *domain.NotificationProfile) { p.CadenceDays = []int{7, -1} }},
		{"no groups", func(p *domain.NotificationProfile) { p.AssignedGroups = nil }},
		{"bad preferred time", func(p *domain.NotificationProfile) { p.PreferredTime = "quarter past nine" }},
		{"nobody to deliver to", func(p *domain.NotificationProfile) {
			p.Recipients = domain.RecipientPolicy{}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			profile := validProfile()
			tc.mutate(&profile)
			_, err := svc.Create(ctx, profile)
			require.Error(t, err)
			assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
		})
	}
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	svc := newProfileService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validProfile())
	require.NoError(t, err)

	dup := validProfile()
	dup.Name = "expiry WARNINGS"
	_, err = svc.Create(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestGetUpdateDelete(t *testing.T) {
	svc := newProfileService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validProfile())
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)

	update := validProfile()
	update.Name = "Final reminders"
	update.CadenceDays = []int{1}
	updated, err := svc.Update(ctx, created.ID, update)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, []int{1}, updated.CadenceDays)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestUpdateMissingProfile(t *testing.T) {
	svc := newProfileService(t)

	_, err := svc.Update(context.Background(), "nope", validProfile())
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestListStartsEmpty(t *testing.T) {
	svc := newProfileService(t)

	profiles, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
