package cli

import (
	"context"

	"github.com/jmhodges/clock"
	"go.uber.org/zap"

	"github.com/spec-kit/expiry-notifier/internal/audit"
	"github.com/spec-kit/expiry-notifier/internal/config"
	"github.com/spec-kit/expiry-notifier/internal/directory"
	"github.com/spec-kit/expiry-notifier/internal/events"
	"github.com/spec-kit/expiry-notifier/internal/mail"
	"github.com/spec-kit/expiry-notifier/internal/observability"
	"github.com/spec-kit/expiry-notifier/internal/persistence"
	"github.com/spec-kit/expiry-notifier/internal/queue"
	"github.com/spec-kit/expiry-notifier/internal/service"
	"github.com/spec-kit/expiry-notifier/internal/settings"
)

// core bundles the collaborators shared by the serve and run commands.
type core struct {
	store      persistence.Store
	postgres   *persistence.Postgres
	redis      *persistence.Redis
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	clk        clock.Clock
	settings   *settings.Store
	ledger     *audit.Ledger
	queue      *queue.DeliveryQueue
	profiles   *service.ProfileService
	jobs       *service.JobService
	logger     *zap.Logger
}

// buildCore wires persistence, telemetry and the domain services.
func buildCore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*core, error) {
	c := &core{logger: logger}

	store, pg, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.store = store
	c.postgres = pg

	if cfg.Redis.Addr != "" {
		c.redis = persistence.NewRedis(cfg.Redis, logger)
	}

	c.metrics = observability.NewMetrics()
	c.dispatcher = events.NewInMemoryDispatcher()
	service.NewTelemetryService(c.dispatcher, c.metrics, logger).RegisterHandlers()

	c.clk = clock.New()
	c.settings = settings.NewStore(store, logger)
	c.ledger = audit.NewLedger(store, c.clk, logger)
	c.queue = queue.NewDeliveryQueue(store, c.clk)
	c.profiles = service.NewProfileService(store, c.clk, logger)

	c.jobs = service.NewJobService(service.JobDependencies{
		Settings:   c.settings,
		Queue:      c.queue,
		Ledger:     c.ledger,
		Directory:  newDirectoryFactory(c.redis, logger),
		Transport:  newTransportFactory(logger),
		Dispatcher: c.dispatcher,
		Clock:      c.clk,
		Logger:     logger,
	})
	return c, nil
}

// Close releases backend connections.
func (c *core) Close() {
	if c.redis != nil {
		c.redis.Close()
	}
	if c.postgres != nil {
		c.postgres.Close()
	}
}

// openStore selects the collection backend: postgres when a DSN is
// configured, the file store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.Store, *persistence.Postgres, error) {
	if cfg.Postgres.DSN != "" {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return persistence.NewPGStore(pg), pg, nil
	}

	store, err := persistence.NewFileStore(cfg.Data.Dir, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, nil, nil
}

// newDirectoryFactory builds directory clients from the credentials current
// at run time, wrapped with the Redis cache when one is configured.
func newDirectoryFactory(rds *persistence.Redis, logger *zap.Logger) func(cfg settings.DirectorySettings) (directory.Client, error) {
	return func(cfg settings.DirectorySettings) (directory.Client, error) {
		client, err := directory.NewGraphClient(directory.Config{
			TenantID:     cfg.TenantID,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
		}, logger)
		if err != nil {
			return nil, err
		}
		if rds.Enabled() {
			return directory.NewCachedClient(client, rds, logger), nil
		}
		return client, nil
	}
}

// newTransportFactory builds SMTP transports from the relay settings current
// at send time.
func newTransportFactory(logger *zap.Logger) func(cfg settings.SMTPSettings) mail.Transport {
	return func(cfg settings.SMTPSettings) mail.Transport {
		return mail.NewSMTPTransport(mail.SMTPOptions{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
		}, logger)
	}
}
