package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/config"
	"github.com/spec-kit/expiry-notifier/internal/domain"
	"github.com/spec-kit/expiry-notifier/internal/observability"
	"github.com/spec-kit/expiry-notifier/internal/service"
)

func buildRunCommand() *cobra.Command {
	var (
		profileID     string
		mode          string
		testRecipient string
		runAll        bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute notification jobs once and exit",
		Long: `Run notification jobs without the long-running service, for cron-style
deployments. The structured run log is written to stdout; the exit status is
non-zero when any run aborts.

--all runs every stored profile in live mode.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runAll && profileID != "" {
				return fmt.Errorf("--all and --profile are mutually exclusive")
			}
			if !runAll && profileID == "" {
				return fmt.Errorf("either --profile or --all is required")
			}
			if runAll {
				if cmd.Flags().Changed("mode") && mode != string(domain.JobModeLive) {
					return fmt.Errorf("--all always runs in live mode")
				}
				mode = string(domain.JobModeLive)
			}
			parsedMode, ok := domain.ParseJobMode(mode)
			if !ok {
				return fmt.Errorf("invalid mode %q: must be preview, test or live", mode)
			}
			if parsedMode == domain.JobModeTest && testRecipient == "" {
				return fmt.Errorf("--test-recipient is required in test mode")
			}
			return runJobs(profileID, runAll, service.RunOptions{
				Mode:          parsedMode,
				TestRecipient: testRecipient,
			})
		},
	}

	cmd.Flags().StringVar(&profileID, "profile", "", "ID of the profile to run")
	cmd.Flags().StringVar(&mode, "mode", string(domain.JobModePreview), "job mode: preview, test or live")
	cmd.Flags().StringVar(&testRecipient, "test-recipient", "", "recipient override for test mode")
	cmd.Flags().BoolVar(&runAll, "all", false, "run every stored profile in live mode")

	return cmd
}

func runJobs(profileID string, runAll bool, opts service.RunOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildCore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	var profiles []domain.NotificationProfile
	if runAll {
		profiles, err = c.profiles.List(ctx)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		if len(profiles) == 0 {
			logger.Info("no profiles stored, nothing to run")
			return nil
		}
	} else {
		profile, err := c.profiles.Get(ctx, profileID)
		if err != nil {
			return err
		}
		profiles = []domain.NotificationProfile{*profile}
	}

	var failures []error
	for i := range profiles {
		if ctx.Err() != nil {
			failures = append(failures, ctx.Err())
			break
		}
		if _, err := c.jobs.RunJob(ctx, profiles[i], opts); err != nil {
			logger.Error("job run aborted",
				zap.String("profile", profiles[i].Name), zap.Error(err))
			failures = append(failures, fmt.Errorf("profile %q: %w", profiles[i].Name, err))
		}
	}
	return errors.Join(failures...)
}
