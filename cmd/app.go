package cmd

import (
	"context"
	"fmt"

	"potsync/application"
	"potsync/config"
	"potsync/database"
	"potsync/domain/entities"
	"potsync/domain/interfaces"
	"potsync/domain/services"
	"potsync/events"
	"potsync/infrastructure"
	"potsync/infrastructure/gateway"
	"potsync/infrastructure/notify"
	"potsync/infrastructure/observability"
	"potsync/repository"

	log "github.com/sirupsen/logrus"
)

// app holds the wired components shared by the run and sync commands
type app struct {
	cfg      *config.Config
	db       *database.DB
	bus      *events.Bus
	metrics  *observability.MetricsProvider
	nats     *infrastructure.NATSClient
	accounts *repository.AccountRepository
	gateway  *gateway.Gateway
	engine   *application.ReconciliationEngine
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	log.Info("Database connection established")

	a.bus = events.NewBus()

	a.metrics = observability.NewMetricsProvider(cfg)
	if err := a.metrics.Initialize(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if cfg.NATSEnabled {
		if err := a.connectNATS(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.accounts = repository.NewAccountRepository(db)
	a.gateway = gateway.NewGateway(gateway.NewConfig(cfg), a.accounts)

	notifier, err := a.buildNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine = application.NewReconciliationEngine(
		repository.NewUnitOfWorkFactory(db, a.bus),
		a.gateway,
		services.NewBalanceAggregator(nil),
		notifier,
		cfg.DefaultSettings(),
		application.WithMetrics(a.metrics),
	)

	return a, nil
}

func (a *app) connectNATS(ctx context.Context) error {
	log.WithField("servers", a.cfg.NATSServers).Info("Connecting to NATS...")
	client := infrastructure.NewNATSClient(a.cfg.NATSServers)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	a.nats = client

	mapper := infrastructure.NewEventSubjectMapper()
	if err := client.EnsureStream(infrastructure.EventStreamName, mapper.GetAllSubjects()); err != nil {
		return fmt.Errorf("failed to ensure event stream: %w", err)
	}

	infrastructure.NewNATSEventPublisher(client, mapper, a.metrics).Attach(a.bus)
	log.Info("Domain events are published to NATS")
	return nil
}

func (a *app) buildNotifier() (interfaces.Notifier, error) {
	var sinks []interfaces.Notifier

	if a.cfg.DiscordToken != "" {
		session, err := notify.NewDiscordSession(a.cfg.DiscordToken)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notify.NewDiscordNotifier(session, a.cfg.DiscordChannelID))
	}

	if a.cfg.FeedNotifications {
		sinks = append(sinks, notify.NewFeedNotifier(a.accounts, func(ctx context.Context, account *entities.PrimaryAccount) (notify.FeedPoster, error) {
			client, err := a.gateway.PrimaryClient(ctx, account)
			if err != nil {
				return nil, err
			}
			return client, nil
		}))
	}

	log.WithField("sinks", len(sinks)).Info("Notifications configured")
	return notify.NewDispatcher(sinks...), nil
}

// Close releases every connection held by the app
func (a *app) Close() {
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			log.WithError(err).Warn("Error closing NATS connection")
		}
	}
	if a.metrics != nil {
		if err := a.metrics.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("Error shutting down metrics provider")
		}
	}
	if a.db != nil {
		log.Info("Closing database connection...")
		a.db.Close()
	}
}
