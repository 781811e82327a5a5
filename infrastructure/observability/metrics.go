package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"potsync/application"
	"potsync/config"
	"potsync/domain/entities"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

var _ application.MetricsRecorder = (*MetricsProvider)(nil)

// MetricsProvider manages OpenTelemetry metrics for the reconciliation engine
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	transfersCounter             metric.Int64Counter
	transferAmountCounter        metric.Int64Counter
	cooldownsStartedCounter      metric.Int64Counter
	suppressedCounter            metric.Int64Counter
	accountOutcomesCounter       metric.Int64Counter
	ticksCounter                 metric.Int64Counter
	tickDurationHist             metric.Float64Histogram
	natsMessagesPublishedCounter metric.Int64Counter
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Info("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	var (
		exporter sdkmetric.Exporter
		err      error
	)
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		mp.initialized = true
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
	)
	if err := mp.start(reader); err != nil {
		return err
	}

	log.Info("Metrics provider initialized successfully")
	return nil
}

// start builds the meter provider around reader. Callers hold mp.mu.
func (mp *MetricsProvider) start(reader sdkmetric.Reader) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp.meterProvider)
	mp.meter = mp.meterProvider.Meter("potsync")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.transfersCounter, err = mp.meter.Int64Counter(
		TransfersTotal,
		metric.WithDescription("Total number of pot transfers executed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create transfers counter: %w", err)
	}

	mp.transferAmountCounter, err = mp.meter.Int64Counter(
		TransferAmountTotal,
		metric.WithDescription("Total amount moved by pot transfers in minor units"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer amount counter: %w", err)
	}

	mp.cooldownsStartedCounter, err = mp.meter.Int64Counter(
		CooldownsStartedTotal,
		metric.WithDescription("Total number of deposit cooldowns started"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create cooldowns started counter: %w", err)
	}

	mp.suppressedCounter, err = mp.meter.Int64Counter(
		SuppressedTotal,
		metric.WithDescription("Total number of corrections suppressed by an active cooldown"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create suppressed counter: %w", err)
	}

	mp.accountOutcomesCounter, err = mp.meter.Int64Counter(
		AccountOutcomesTotal,
		metric.WithDescription("Total number of per-account outcomes by status"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create account outcomes counter: %w", err)
	}

	mp.ticksCounter, err = mp.meter.Int64Counter(
		TicksTotal,
		metric.WithDescription("Total number of reconciliation ticks by status"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ticks counter: %w", err)
	}

	mp.tickDurationHist, err = mp.meter.Float64Histogram(
		TickDuration,
		metric.WithDescription("Duration of reconciliation ticks in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create tick duration histogram: %w", err)
	}

	mp.natsMessagesPublishedCounter, err = mp.meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	return nil
}

// Shutdown flushes pending exports and shuts down the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordTransfer records an executed pot transfer
func (mp *MetricsProvider) RecordTransfer(ctx context.Context, accountType string, kind entities.TransferKind, amount int64) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelAccount, accountType),
		attribute.String(LabelKind, string(kind)),
	)
	mp.transfersCounter.Add(ctx, 1, attrs)
	mp.transferAmountCounter.Add(ctx, amount, attrs)
}

// RecordCooldownStarted records a cooldown being started
func (mp *MetricsProvider) RecordCooldownStarted(ctx context.Context, accountType string) {
	if !mp.isEnabled() {
		return
	}

	mp.cooldownsStartedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String(LabelAccount, accountType)),
	)
}

// RecordSuppressed records a correction suppressed by an active cooldown
func (mp *MetricsProvider) RecordSuppressed(ctx context.Context, accountType string) {
	if !mp.isEnabled() {
		return
	}

	mp.suppressedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String(LabelAccount, accountType)),
	)
}

// RecordAccountOutcome records the outcome of one account branch
func (mp *MetricsProvider) RecordAccountOutcome(ctx context.Context, accountType string, status entities.OutcomeStatus) {
	if !mp.isEnabled() {
		return
	}

	mp.accountOutcomesCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(LabelAccount, accountType),
			attribute.String(LabelStatus, string(status)),
		),
	)
}

// RecordTick records a finished reconciliation tick with its duration
func (mp *MetricsProvider) RecordTick(ctx context.Context, status entities.SyncRunStatus, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.String(LabelStatus, string(status)))
	mp.ticksCounter.Add(ctx, 1, attrs)
	mp.tickDurationHist.Record(ctx, duration.Seconds(), attrs)
}

// RecordEventPublished records a domain event forwarded to NATS
func (mp *MetricsProvider) RecordEventPublished(ctx context.Context, eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

// isEnabled checks if metrics are enabled and instruments exist
func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.config.OTelEnabled && mp.meter != nil
}
