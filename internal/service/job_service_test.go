package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/audit"
	"github.com/spec-kit/expiry-notifier/internal/directory"
	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/mail"
	"github.com/spec-kit/expiry-notifier/internal/persistence"
	"github.com/spec-kit/expiry-notifier/internal/queue"
	"github.com/spec-kit/expiry-notifier/internal/settings"
)

type fakeDirectory struct {
	users        []domain.UserRecord
	groups       map[string][]domain.UserRecord
	managers     map[string]string
	listErr      error
	groupErr     error
	managerErr   error
	managerCalls int
}

func (f *fakeDirectory) ListUsers(context.Context) ([]domain.UserRecord, error) {
	return f.users, f.listErr
}

func (f *fakeDirectory) ListGroupMembers(_ context.Context, groupName string) ([]domain.UserRecord, error) {
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	members, ok := f.groups[groupName]
	if !ok {
		return nil, fmt.Errorf("group %q not found in directory", groupName)
	}
	return members, nil
}

func (f *fakeDirectory) GetManager(_ context.Context, userID string) (string, error) {
	f.managerCalls++
	if f.managerErr != nil {
		return "", f.managerErr
	}
	return f.managers[userID], nil
}

type recordingTransport struct {
	sent []mail.Message
	fail bool
}

func (r *recordingTransport) Send(_ context.Context, msg mail.Message) error {
	if r.fail {
		return errors.New("relay unavailable")
	}
	r.sent = append(r.sent, msg)
	return nil
}

type jobFixture struct {
	svc       *JobService
	queue     *queue.DeliveryQueue
	ledger    *audit.Ledger
	clk       clock.FakeClock
	dir       *fakeDirectory
	transport *recordingTransport
}

// newJobFixture seeds a directory where, against the default 90 day window,
// amy and frank sit exactly 14 days from expiry, bob is far out, carol is
// disabled, dave has no usable baseline and eve's password never expires.
func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	clk := clock.NewFake()
	clk.Set(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	expiringRef := clk.Now().AddDate(0, 0, -76)
	farRef := clk.Now().AddDate(0, 0, -40)

	users := []domain.UserRecord{
		{ID: "u-amy", DisplayName: "Amy Pond", PrincipalName: "amy@example.com", AccountEnabled: true, LastPasswordChangeAt: &expiringRef},
		{ID: "u-bob", DisplayName: "Bob", PrincipalName: "bob@example.com", AccountEnabled: true, LastPasswordChangeAt: &farRef},
		{ID: "u-carol", DisplayName: "Carol", PrincipalName: "carol@example.com", AccountEnabled: false, LastPasswordChangeAt: &expiringRef},
		{ID: "u-dave", DisplayName: "Dave", PrincipalName: "dave@example.com", AccountEnabled: true},
		{ID: "u-eve", DisplayName: "Eve", PrincipalName: "eve@example.com", AccountEnabled: true, LastPasswordChangeAt: &expiringRef, PasswordPolicies: "DisablePasswordExpiration"},
		{ID: "u-frank", DisplayName: "Frank", PrincipalName: "frank@example.com", AccountEnabled: true, LastPasswordChangeAt: &expiringRef, PasswordPolicies: "DisablePasswordExpiration", OnPremisesSync: true},
	}

	dir := &fakeDirectory{
		users: users,
		groups: map[string][]domain.UserRecord{
			"IT Staff":      users,
			"Overlap Group": {users[0]},
		},
		managers: map[string]string{"u-amy": "boss@example.com"},
	}
	transport := &recordingTransport{}

	store := persistence.NewMemoryStore()
	settingsStore := settings.NewStore(store, zap.NewNop())
	cfg := settings.Defaults()
	cfg.Directory = settings.DirectorySettings{TenantID: "t", ClientID: "c", ClientSecret: "s"}
	cfg.SMTP = settings.SMTPSettings{Host: "relay.example.com", Port: 587, From: "it@example.com"}
	require.NoError(t, settingsStore.Save(context.Background(), cfg))

	q := queue.NewDeliveryQueue(store, clk)
	ledger := audit.NewLedger(store, clk, zap.NewNop())

	svc := NewJobService(JobDependencies{
		Settings:  settingsStore,
		Queue:     q,
		Ledger:    ledger,
		Directory: func(settings.DirectorySettings) (directory.Client, error) { return dir, nil },
		Transport: func(settings.SMTPSettings) mail.Transport { return transport },
		Clock:     clk,
		Logger:    zap.NewNop(),
	})
	return &jobFixture{svc: svc, queue: q, ledger: ledger, clk: clk, dir: dir, transport: transport}
}

func expiryProfile() domain.NotificationProfile {
	return domain.NotificationProfile{
		ID:              "p1",
		Name:            "Expiry warnings",
		SubjectTemplate: "Password expires in {daysRemaining} days",
		BodyTemplate:    "Hi {displayName}, your password expires on {expiryDate}.",
		CadenceDays:     []int{14},
		Recipients:      domain.RecipientPolicy{ToUser: true},
		AssignedGroups:  []string{"IT Staff"},
	}
}

func TestRunJobPreview(t *testing.T) {
	fx := newJobFixture(t)
	profile := expiryProfile()
	profile.Recipients.ToManager = true

	result, err := fx.svc.RunJob(context.Background(), profile, RunOptions{Mode: domain.JobModePreview})
	require.NoError(t, err)

	require.Len(t, result.Preview, 2)
	assert.Equal(t, "amy@example.com", result.Preview[0].PrincipalName)
	assert.Equal(t, "frank@example.com", result.Preview[1].PrincipalName)
	assert.Equal(t, 14, result.Preview[0].DaysRemaining)
	assert.Equal(t, "IT Staff", result.Preview[0].Group)

	assert.Equal(t, 2, result.Counts.Matched)
	assert.Empty(t, fx.transport.sent, "preview must not send")
	assert.Zero(t, fx.dir.managerCalls, "preview must not resolve managers")

	items, err := fx.queue.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items, "preview must not queue")

	entries, err := fx.ledger.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries, "preview must not write history")
}

func TestRunJobLiveSendsAndRecordsHistory(t *testing.T) {
	fx := newJobFixture(t)
	ctx := context.Background()

	result, err := fx.svc.RunJob(ctx, expiryProfile(), RunOptions{Mode: domain.JobModeLive})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Counts.Sent)
	require.Len(t, fx.transport.sent, 2)
	assert.Equal(t, "amy@example.com", fx.transport.sent[0].To)
	assert.Equal(t, "it@example.com", fx.transport.sent[0].From)
	assert.Equal(t, "Password expires in 14 days", fx.transport.sent[0].Subject)
	assert.Equal(t, "Hi Amy Pond, your password expires on March 29, 2024.", fx.transport.sent[0].Body)

	day := audit.DateKey(fx.clk.Now())
	assert.True(t, fx.ledger.WasAlreadySent(ctx, "amy@example.com", "p1", day))
	assert.True(t, fx.ledger.WasAlreadySent(ctx, "frank@example.com", "p1", day))
	assert.False(t, fx.ledger.WasAlreadySent(ctx, "bob@example.com", "p1", day))
}

func TestRunJobLiveRerunSkipsDuplicates(t *testing.T) {
	fx := newJobFixture(t)
	ctx := context.Background()

	_, err := fx.svc.RunJob(ctx, expiryProfile(), RunOptions{Mode: domain.JobModeLive})
	require.NoError(t, err)
	require.Len(t, fx.transport.sent, 2)

	result, err := fx.svc.RunJob(ctx, expiryProfile(), RunOptions{Mode: domain.JobModeLive})
	require.NoError(t, err)

	assert.Len(t, fx.transport.sent, 2, "rerun must not send again")
	assert.Equal(t, 2, result.Counts.Skipped)
	assert.Zero(t, result.Counts.Sent)

	entries, err := fx.ledger.List(ctx, 0)
	require.NoError(t, err)
	skipped := 0
	for _, e := range entries {
		if e.Outcome == domain.AuditOutcomeSkipped {
			skipped++
		}
	}
	assert.Equal(t, 2, skipped)
}

func TestRunJobTestModeReroutesEverything(t *testing.T) {
	fx := newJobFixture(t)
	ctx := context.Background()
	profile := expiryProfile()
	profile.Recipients.ToManager = true

	result, err := fx.svc.RunJob(ctx, profile, RunOptions{Mode: domain.JobModeTest, TestRecipient: "ops@example.com"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Counts.Sent)
	require.Len(t, fx.transport.sent, 2)
	for _, msg := range fx.transport.sent {
		assert.Equal(t, "ops@example.com", msg.To)
	}

	entries, err := fx.ledger.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries, "test mode must not write history")
}

func TestRunJobTestModeRequiresRecipient(t *testing.T) {
	fx := newJobFixture(t)

	result, err := fx.svc.RunJob(context.Background(), expiryProfile(), RunOptions{Mode: domain.JobModeTest})
	require.Error(t, err)
	assert.Empty(t, fx.transport.sent)
	assert.NotEmpty(t, result.Logs)
}

func TestRunJobRejectsUnknownMode(t *testing.T) {
	fx := newJobFixture(t)

	_, err := fx.svc.RunJob(context.Background(), expiryProfile(), RunOptions{Mode: "dry-run"})
	require.Error(t, err)
}

func TestRunJobDeduplicatesAcrossGroups(t *testing.T) {
	fx := newJobFixture(t)
	profile := expiryProfile()
	profile.AssignedGroups = []string{"Overlap Group", "IT Staff"}

	result, err := fx.svc.RunJob(context.Background(), profile, RunOptions{Mode: domain.JobModePreview})
	require.NoError(t, err)

	require.Len(t, result.Preview, 2)
	assert.Equal(t, "Overlap Group", result.Preview[0].Group, "first contributing group wins")
}

func TestRunJobAllUsersTarget(t *testing.T) {
	fx := newJobFixture(t)
	profile := expiryProfile()
	profile.AssignedGroups = []string{domain.AllUsersGroupName}

	result, err := fx.svc.RunJob(context.Background(), profile, RunOptions{Mode: domain.JobModePreview})
	require.NoError(t, err)
	assert.Len(t, result.Preview, 2)
	assert.Equal(t, domain.AllUsersGroupName, result.Preview[0].Group)
}

func TestRunJobManagerOnCC(t *testing.T) {
	fx := newJobFixture(t)
	profile := expiryProfile()
	profile.Recipients.ToManager = true

	_, err := fx.svc.RunJob(context.Background(), profile, RunOptions{Mode: domain.JobModeLive})
	require.NoError(t, err)

	require.Len(t, fx.transport.sent, 2)
	assert.Equal(t, []string{"boss@example.com"}, fx.transport.sent[0].CC, "amy's manager is on record")
	assert.Empty(t, fx.transport.sent[1].CC, "frank has no manager on record")
}

func TestRunJobManagerLookupFailureIsNotFatal(t *testing.T) {
	fx := newJobFixture(t)
	fx.dir.managerErr = errors.New("directory timeout")
	profile := expiryProfile()
	profile.Recipients.ToManager = true

	result, err := fx.svc.RunJob(context.Background(), profile, RunOptions{Mode: domain.JobModeLive})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Counts.Sent, "delivery proceeds without the manager cc")
	warned := false
	for _, e := range result.Logs {
		if e.Level == domain.RunLogWarn {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRunJobRoutesToCCWhenUserDeliveryDisabled(t *testing.T) {
	fx := newJobFixture(t)
	ctx := context.Background()
	profile := expiryProfile()
	profile.Recipients = domain.RecipientPolicy{ToUser: false, CC: []string{"help@example.com", "audit@example.com"}}

	_, err := fx.svc.RunJob(ctx, profile, RunOptions{Mode: domain.JobModeLive})
	require.NoError(t, err)

	require.Len(t, fx.transport.sent, 2)
	assert.Equal(t, "help@example.com", fx.transport.sent[0].To)
	assert.Equal(t, []string{"audit@example.com"}, fx.transport.sent[0].CC)

	// suppression stays keyed on the affected user, not the mailbox
	day := audit.DateKey(fx.clk.Now())
	assert.True(t, fx.ledger.WasAlreadySent(ctx, "amy@example.com", "p1", day))
	assert.False(t, fx.ledger.WasAlreadySent(ctx, "help@example.com", "p1", day))
}

func TestRunJobSkipsWhenPolicyYieldsNoRecipients(t *testing.T) {
	fx := newJobFixture(t)
	profile := expiryProfile()
	profile.Recipients = domain.RecipientPolicy{ToUser: false, ToManager: true}

	result, err := fx.svc.RunJob(context.Background(), profile, RunOptions{Mode: domain.JobModeLive})
	require.NoError(t, err)

	// only amy has a manager; frank's notification has nowhere to go
	assert.Equal(t, 1, result.Counts.Sent)
	assert.Equal(t, 1, result.Counts.Skipped)
	require.Len(t, fx.transport.sent, 1)
	assert.Equal(t, "boss@example.com", fx.transport.sent[0].To)
}

func TestRunJobPreferredTimeQueuesDeliveries(t *testing.T) {
	fx := newJobFixture(t)
	ctx := context.Background()
	profile := expiryProfile()
	profile.PreferredTime = "18:00"

	result, err := fx.svc.RunJob(ctx, profile, RunOptions{Mode: domain.JobModeLive})
	require.NoError(t, err)

	assert.Zero(t, result.Counts.Sent)
	assert.Equal(t, 2, result.Counts.Queued)
	assert.Empty(t, fx.transport.sent)

	items, err := fx.queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	want := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, want, items[0].ScheduledFor)
	assert.Equal(t, domain.QueueItemPending, items[0].Status)

	// suppression takes effect at enqueue time so a rerun cannot double-queue
	day := audit.DateKey(fx.clk.Now())
	assert.True(t, fx.ledger.WasAlreadySent(ctx, "amy@example.com", "p1", day))

	rerun, err := fx.svc.RunJob(ctx, profile, RunOptions{Mode: domain.JobModeLive})
	require.NoError(t, err)
	assert.Zero(t, rerun.Counts.Queued)
	assert.Equal(t, 2, rerun.Counts.Skipped)
}

func TestRunJobPreferredTimeIgnoredOutsideLive(t *testing.T) {
	fx := newJobFixture(t)
	profile := expiryProfile()
	profile.PreferredTime = "18:00"

	result, err := fx.svc.RunJob(context.Background(), profile, RunOptions{Mode: domain.JobModeTest, TestRecipient: "ops@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Counts.Sent, "test mode delivers immediately")
}

func TestRunJobScheduleAtOverride(t *testing.T) {
	fx := newJobFixture(t)
	ctx := context.Background()

	future := fx.clk.Now().Add(4 * time.Hour)
	result, err := fx.svc.RunJob(ctx, expiryProfile(), RunOptions{Mode: domain.JobModeLive, ScheduleAt: &future})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Counts.Queued)

	items, err := fx.queue.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, future, items[0].ScheduledFor)
}

func TestRunJobPastScheduleDeliversImmediately(t *testing.T) {
	fx := newJobFixture(t)

	past := fx.clk.Now().Add(-time.Hour)
	result, err := fx.svc.RunJob(context.Background(), expiryProfile(), RunOptions{Mode: domain.JobModeLive, ScheduleAt: &past})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Counts.Sent)
	assert.Zero(t, result.Counts.Queued)
}

func TestRunJobDirectoryFailureAborts(t *testing.T) {
	fx := newJobFixture(t)
	fx.dir.groupErr = errors.New("token rejected")

	result, err := fx.svc.RunJob(context.Background(), expiryProfile(), RunOptions{Mode: domain.JobModeLive})
	require.Error(t, err)
	assert.Empty(t, fx.transport.sent)

	var fatal bool
	for _, e := range result.Logs {
		if e.Level == domain.RunLogError {
			fatal = true
		}
	}
	assert.True(t, fatal, "the run log records the abort")
}

func TestRunJobUnknownGroupAborts(t *testing.T) {
	fx := newJobFixture(t)
	profile := expiryProfile()
	profile.AssignedGroups = []string{"No Such Group"}

	_, err := fx.svc.RunJob(context.Background(), profile, RunOptions{Mode: domain.JobModeLive})
	require.Error(t, err)
}

func TestRunJobSendFailuresContinue(t *testing.T) {
	fx := newJobFixture(t)
	ctx := context.Background()
	fx.transport.fail = true

	result, err := fx.svc.RunJob(ctx, expiryProfile(), RunOptions{Mode: domain.JobModeLive})
	require.NoError(t, err, "per-user failures do not abort the run")

	assert.Equal(t, 2, result.Counts.Failed)
	assert.Zero(t, result.Counts.Sent)

	day := audit.DateKey(fx.clk.Now())
	assert.False(t, fx.ledger.WasAlreadySent(ctx, "amy@example.com", "p1", day),
		"failed deliveries leave no sent record, so a rerun retries them")
}
