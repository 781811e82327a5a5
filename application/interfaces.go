package application

import (
	"context"
	"time"

	"potsync/domain/entities"
)

// MetricsRecorder receives reconciliation metrics. Implemented by the observability layer.
type MetricsRecorder interface {
	RecordTransfer(ctx context.Context, accountType string, kind entities.TransferKind, amount int64)
	RecordCooldownStarted(ctx context.Context, accountType string)
	RecordSuppressed(ctx context.Context, accountType string)
	RecordAccountOutcome(ctx context.Context, accountType string, status entities.OutcomeStatus)
	RecordTick(ctx context.Context, status entities.SyncRunStatus, duration time.Duration)
}

// TickRunner runs a single reconciliation tick
type TickRunner interface {
	RunTick(ctx context.Context) (*TickResult, error)
}

type noopMetrics struct{}

func (noopMetrics) RecordTransfer(context.Context, string, entities.TransferKind, int64) {}
func (noopMetrics) RecordCooldownStarted(context.Context, string) {}
func (noopMetrics) RecordSuppressed(context.Context, string) {}
func (noopMetrics) RecordAccountOutcome(context.Context, string, entities.OutcomeStatus) {}
func (noopMetrics) RecordTick(context.Context, entities.SyncRunStatus, time.Duration) {}
