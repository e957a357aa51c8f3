package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/audit"
	"github.com/spec-kit/expiry-notifier/internal/directory"
	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/events"
	"github.com/spec-kit/expiry-notifier/internal/expiry"
	"github.com/spec-kit/expiry-notifier/internal/mail"
	"github.com/spec-kit/expiry-notifier/internal/queue"
	"github.com/spec-kit/expiry-notifier/internal/render"
	"github.com/spec-kit/expiry-notifier/internal/settings"
	apperrors "github.com/spec-kit/expiry-notifier/pkg/util"
)

// DirectoryFactory builds a directory client from the credentials current at
// run time.
type DirectoryFactory func(cfg settings.DirectorySettings) (directory.Client, error)

// TransportFactory builds a mail transport from the SMTP settings current at
// run time.
type TransportFactory func(cfg settings.SMTPSettings) mail.Transport

// RunOptions select the mode and overrides of one job run.
type RunOptions struct {
	Mode          domain.JobMode
	TestRecipient string
	ScheduleAt    *time.Time
}

// JobService runs notification jobs: it resolves a profile's audience from
// the directory, evaluates expiry against the profile cadence and delivers,
// queues or skips one notification per matched user.
type JobService struct {
	settings   *settings.Store
	queue      *queue.DeliveryQueue
	ledger     *audit.Ledger
	directory  DirectoryFactory
	transport  TransportFactory
	dispatcher events.Dispatcher
	clk        clock.Clock
	logger     *zap.Logger
}

// JobDependencies bundles collaborators for the job service.
type JobDependencies struct {
	Settings   *settings.Store
	Queue      *queue.DeliveryQueue
	Ledger     *audit.Ledger
	Directory  DirectoryFactory
	Transport  TransportFactory
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// NewJobService constructs the service.
func NewJobService(deps JobDependencies) *JobService {
	return &JobService{
		settings:   deps.Settings,
		queue:      deps.Queue,
		ledger:     deps.Ledger,
		directory:  deps.Directory,
		transport:  deps.Transport,
		dispatcher: deps.Dispatcher,
		clk:        deps.Clock,
		logger:     deps.Logger,
	}
}

// audienceMember pairs a user with the group assignment that brought them
// into the run.
type audienceMember struct {
	User  domain.UserRecord
	Group string
}

// RunJob executes one notification job for the profile. Directory failures
// abort the run with an error; per-user failures are logged in the result
// and the run continues. The returned result carries the run log either way.
func (s *JobService) RunJob(ctx context.Context, profile domain.NotificationProfile, opts RunOptions) (*domain.JobResult, error) {
	started := s.clk.Now()
	rl := newRunLog(s.clk, s.logger.With(
		zap.String("profile", profile.Name),
		zap.String("mode", string(opts.Mode)),
	))
	result := &domain.JobResult{
		ProfileID:   profile.ID,
		ProfileName: profile.Name,
		Mode:        opts.Mode,
		StartedAt:   started,
	}
	finish := func(err error) (*domain.JobResult, error) {
		result.Logs = rl.Entries()
		result.FinishedAt = s.clk.Now()
		return result, err
	}

	if _, ok := domain.ParseJobMode(string(opts.Mode)); !ok {
		rl.Errorf("unknown job mode %q", opts.Mode)
		return finish(apperrors.NewValidationError("unknown job mode", nil))
	}
	if opts.Mode == domain.JobModeTest && opts.TestRecipient == "" {
		rl.Errorf("test mode requires a test recipient")
		return finish(apperrors.NewValidationError("test mode requires a test recipient", nil))
	}

	cfg := s.settings.Load(ctx)
	rl.Infof("starting %s run for profile %q", opts.Mode, profile.Name)

	dir, err := s.directory(cfg.Directory)
	if err != nil {
		rl.Errorf("directory client unavailable: %v", err)
		return finish(apperrors.NewUnavailable("directory unavailable", err))
	}

	audience, err := s.resolveAudience(ctx, dir, profile, rl)
	if err != nil {
		rl.Errorf("audience resolution failed: %v", err)
		return finish(apperrors.NewUnavailable("audience resolution failed", err))
	}
	rl.Infof("resolved %d users from %d group assignment(s)", len(audience), len(profile.AssignedGroups))

	scheduleAt := s.effectiveScheduleTime(profile, opts, rl)
	if !scheduleAt.IsZero() && scheduleAt.After(started) {
		rl.Infof("deliveries will be queued for %s", scheduleAt.Format(time.RFC3339))
	} else {
		scheduleAt = time.Time{}
	}

	transport := s.transport(cfg.SMTP)
	dateKey := audit.DateKey(started)

	for _, member := range audience {
		user := member.User
		if !user.AccountEnabled {
			continue
		}

		state := expiry.Compute(user, cfg.DefaultWindowDays, started)
		if !expiry.MatchesCadence(state, profile) {
			continue
		}
		result.Counts.Matched++

		if opts.Mode == domain.JobModePreview {
			result.Preview = append(result.Preview, domain.PreviewRow{
				DisplayName:   user.DisplayName,
				PrincipalName: user.PrincipalName,
				Group:         member.Group,
				DaysRemaining: state.DaysRemaining,
				ExpiresAt:     state.ExpiresAt,
			})
			rl.Infof("would notify %s (%d days remaining)", user.PrincipalName, state.DaysRemaining)
			continue
		}

		if opts.Mode == domain.JobModeLive && s.ledger.WasAlreadySent(ctx, user.PrincipalName, profile.ID, dateKey) {
			rl.Infof("skipping %s: already notified today", user.PrincipalName)
			if err := s.ledger.RecordSkipped(ctx, user.PrincipalName, profile.ID, dateKey, s.clk.Now()); err != nil {
				rl.Errorf("history write failed for %s: %v", user.PrincipalName, err)
			}
			result.Counts.Skipped++
			s.publishSkipped(ctx, profile.ID, user.PrincipalName, "already_sent")
			continue
		}

		to, cc, ok := s.buildRecipients(ctx, dir, user, profile, opts, rl)
		if !ok {
			result.Counts.Skipped++
			s.publishSkipped(ctx, profile.ID, user.PrincipalName, "no_recipients")
			continue
		}

		subject, body, err := renderMessage(profile, user, state)
		if err != nil {
			rl.Errorf("template rendering failed for %s: %v", user.PrincipalName, err)
			result.Counts.Failed++
			continue
		}

		if !scheduleAt.IsZero() {
			s.enqueueDelivery(ctx, rl, result, profile, user, opts, domain.QueueItem{
				ScheduledFor: scheduleAt,
				Recipient:    to,
				CC:           cc,
				Subject:      subject,
				Body:         body,
				ProfileID:    profile.ID,
				ProfileName:  profile.Name,
				ReadReceipt:  profile.Recipients.ReadReceipt,
			}, dateKey)
			continue
		}

		s.sendNow(ctx, rl, result, transport, profile, user, opts, mail.Message{
			From:        cfg.SMTP.From,
			To:          to,
			CC:          cc,
			Subject:     subject,
			Body:        body,
			ReadReceipt: profile.Recipients.ReadReceipt,
		}, dateKey)
	}

	rl.Infof("run finished: %d matched, %d sent, %d queued, %d skipped, %d failed",
		result.Counts.Matched, result.Counts.Sent, result.Counts.Queued,
		result.Counts.Skipped, result.Counts.Failed)

	s.publishEvent(ctx, events.Event{
		Type:      events.EventJobCompleted,
		ProfileID: profile.ID,
		Payload: events.JobCompletedPayload{
			Mode:     opts.Mode,
			Counts:   result.Counts,
			Duration: s.clk.Now().Sub(started),
		},
	})
	return finish(nil)
}

// resolveAudience lists the profile's target users, deduplicated by user ID
// with the first contributing group winning. Any directory failure aborts
// the run; a partial audience must never look like a healthy one.
func (s *JobService) resolveAudience(ctx context.Context, dir directory.Client, profile domain.NotificationProfile, rl *runLog) ([]audienceMember, error) {
	if profile.TargetsAllUsers() {
		users, err := dir.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		members := make([]audienceMember, 0, len(users))
		for _, u := range users {
			members = append(members, audienceMember{User: u, Group: domain.AllUsersGroupName})
		}
		return members, nil
	}

	var members []audienceMember
	seen := make(map[string]bool)
	for _, group := range profile.AssignedGroups {
		users, err := dir.ListGroupMembers(ctx, group)
		if err != nil {
			return nil, err
		}
		rl.Infof("group %q resolved to %d member(s)", group, len(users))
		for _, u := range users {
			if seen[u.ID] {
				continue
			}
			seen[u.ID] = true
			members = append(members, audienceMember{User: u, Group: group})
		}
	}
	return members, nil
}

// buildRecipients applies the profile recipient policy for one user. The
// test-mode override is applied last so it rules regardless of policy.
func (s *JobService) buildRecipients(ctx context.Context, dir directory.Client, user domain.UserRecord, profile domain.NotificationProfile, opts RunOptions, rl *runLog) (string, []string, bool) {
	policy := profile.Recipients

	cc := make([]string, 0, len(policy.CC)+1)
	cc = append(cc, policy.CC...)
	if policy.ToManager {
		addr, err := dir.GetManager(ctx, user.ID)
		switch {
		case err != nil:
			rl.Warnf("manager lookup failed for %s: %v", user.PrincipalName, err)
		case addr == "":
			rl.Warnf("no manager on record for %s", user.PrincipalName)
		default:
			cc = append(cc, addr)
		}
	}

	to := user.PrincipalName
	if !policy.ToUser {
		if len(cc) == 0 {
			rl.Warnf("no recipients for %s: user delivery disabled and no cc configured", user.PrincipalName)
			return "", nil, false
		}
		to, cc = cc[0], cc[1:]
	}

	if opts.Mode == domain.JobModeTest {
		to = opts.TestRecipient
	}

	return to, dedupeAddresses(cc, to), true
}

func (s *JobService) enqueueDelivery(ctx context.Context, rl *runLog, result *domain.JobResult, profile domain.NotificationProfile, user domain.UserRecord, opts RunOptions, item domain.QueueItem, dateKey string) {
	queued, err := s.queue.Enqueue(ctx, item)
	if err != nil {
		rl.Errorf("enqueue failed for %s: %v", item.Recipient, err)
		result.Counts.Failed++
		return
	}
	result.Counts.Queued++
	rl.Infof("queued notification for %s at %s", queued.Recipient, queued.ScheduledFor.Format(time.RFC3339))

	// Suppression is keyed on the user, not the delivery address, and is
	// recorded at enqueue time so a rerun before the worker fires does not
	// queue a duplicate.
	if opts.Mode == domain.JobModeLive {
		if err := s.ledger.RecordSent(ctx, user.PrincipalName, profile.ID, dateKey, s.clk.Now()); err != nil {
			rl.Errorf("history write failed for %s: %v", user.PrincipalName, err)
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventNotificationQueued,
		ProfileID: profile.ID,
		Payload: events.NotificationQueuedPayload{
			Recipient:    queued.Recipient,
			Mode:         string(opts.Mode),
			ScheduledFor: queued.ScheduledFor,
		},
	})
}

func (s *JobService) sendNow(ctx context.Context, rl *runLog, result *domain.JobResult, transport mail.Transport, profile domain.NotificationProfile, user domain.UserRecord, opts RunOptions, msg mail.Message, dateKey string) {
	start := s.clk.Now()
	if err := transport.Send(ctx, msg); err != nil {
		rl.Errorf("delivery to %s failed: %v", msg.To, err)
		result.Counts.Failed++
		s.publishEvent(ctx, events.Event{
			Type:      events.EventNotificationFailed,
			ProfileID: profile.ID,
			Payload:   events.NotificationFailedPayload{Recipient: msg.To, Reason: err.Error()},
		})
		return
	}

	result.Counts.Sent++
	rl.Infof("notification sent to %s", msg.To)

	if opts.Mode == domain.JobModeLive {
		if err := s.ledger.RecordSent(ctx, user.PrincipalName, profile.ID, dateKey, s.clk.Now()); err != nil {
			rl.Errorf("history write failed for %s: %v", user.PrincipalName, err)
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:      events.EventNotificationSent,
		ProfileID: profile.ID,
		Payload: events.NotificationSentPayload{
			Recipient: msg.To,
			Mode:      string(opts.Mode),
			Latency:   s.clk.Now().Sub(start),
		},
	})
}

// effectiveScheduleTime picks the delivery time for this run: an explicit
// override wins, otherwise a live run honours the profile's preferred time
// of day, otherwise delivery is immediate.
func (s *JobService) effectiveScheduleTime(profile domain.NotificationProfile, opts RunOptions, rl *runLog) time.Time {
	if opts.ScheduleAt != nil {
		return *opts.ScheduleAt
	}
	if opts.Mode != domain.JobModeLive || profile.PreferredTime == "" {
		return time.Time{}
	}
	at, err := nextTimeOfDay(profile.PreferredTime, s.clk.Now())
	if err != nil {
		rl.Warnf("ignoring malformed preferred time %q", profile.PreferredTime)
		return time.Time{}
	}
	return at
}

// nextTimeOfDay returns the next occurrence of the HH:mm wall-clock time, in
// the reference's location: today when still ahead, tomorrow otherwise.
func nextTimeOfDay(hhmm string, now time.Time) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at, nil
}

func renderMessage(profile domain.NotificationProfile, user domain.UserRecord, state domain.ExpiryState) (string, string, error) {
	vals := render.Values{
		DisplayName:   user.DisplayName,
		PrincipalName: user.PrincipalName,
		DaysRemaining: state.DaysRemaining,
		ExpiresAt:     state.ExpiresAt,
		NeverExpires:  state.NeverExpires,
	}
	subject, err := render.Render(profile.SubjectTemplate, vals)
	if err != nil {
		return "", "", err
	}
	body, err := render.Render(profile.BodyTemplate, vals)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

// dedupeAddresses drops empties, duplicates and the primary recipient from a
// cc list.
func dedupeAddresses(addrs []string, exclude string) []string {
	var out []string
	seen := map[string]bool{exclude: true, "": true}
	for _, a := range addrs {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

func (s *JobService) publishSkipped(ctx context.Context, profileID, recipient, reason string) {
	s.publishEvent(ctx, events.Event{
		Type:      events.EventNotificationSkipped,
		ProfileID: profileID,
		Payload:   events.NotificationSkippedPayload{Recipient: recipient, Reason: reason},
	})
}

func (s *JobService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clk.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
