package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"potsync/domain/entities"
	"potsync/domain/interfaces"
	"potsync/domain/services"
	"potsync/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	disconnectedTitle = "Account disconnected"
)

// TickResult summarises one reconciliation tick
type TickResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     entities.SyncRunStatus
	Reason     string
	Outcomes   []entities.AccountOutcome
}

// TransferCount returns the number of transfers executed during the tick
func (r *TickResult) TransferCount() int {
	count := 0
	for _, outcome := range r.Outcomes {
		count += len(outcome.Transfers)
	}
	return count
}

// Outcome returns the outcome recorded for an account, or nil
func (r *TickResult) Outcome(accountType string) *entities.AccountOutcome {
	for i := range r.Outcomes {
		if r.Outcomes[i].AccountType == accountType {
			return &r.Outcomes[i]
		}
	}
	return nil
}

// EngineOption configures a ReconciliationEngine
type EngineOption func(*ReconciliationEngine)

// WithClock overrides the time source
func WithClock(clock func() time.Time) EngineOption {
	return func(e *ReconciliationEngine) {
		e.clock = clock
	}
}

// WithMetrics attaches a metrics recorder
func WithMetrics(metrics MetricsRecorder) EngineOption {
	return func(e *ReconciliationEngine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// ReconciliationEngine runs one reconciliation pass over every linked credit account
type ReconciliationEngine struct {
	uowFactory UnitOfWorkFactory
	gateway    interfaces.AccountGateway
	aggregator interfaces.BalanceAggregator
	notifier   interfaces.Notifier
	defaults   entities.Settings
	metrics    MetricsRecorder
	clock      func() time.Time
}

// NewReconciliationEngine creates a new reconciliation engine
func NewReconciliationEngine(
	uowFactory UnitOfWorkFactory,
	gateway interfaces.AccountGateway,
	aggregator interfaces.BalanceAggregator,
	notifier interfaces.Notifier,
	defaults entities.Settings,
	opts ...EngineOption,
) *ReconciliationEngine {
	e := &ReconciliationEngine{
		uowFactory: uowFactory,
		gateway:    gateway,
		aggregator: aggregator,
		notifier:   notifier,
		defaults:   defaults,
		metrics:    noopMetrics{},
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// tick carries per-run state. It is never shared between runs.
type tick struct {
	runID    string
	settings entities.Settings
	primary  interfaces.PrimaryAccountClient
	executor interfaces.TransferExecutor
	pots     entities.PotBalances
	result   *TickResult
	logger   *log.Entry
}

func (t *tick) skip(reason string) {
	t.result.Status = entities.SyncRunStatusSkipped
	t.result.Reason = reason
	t.logger.WithField("reason", reason).Info("Ending tick without reconciliation")
}

// potBalance reads a pot once per tick and serves later reads from the cache
func (t *tick) potBalance(ctx context.Context, potID string) (int64, error) {
	if balance, ok := t.pots[potID]; ok {
		return balance, nil
	}
	balance, err := t.primary.GetPotBalance(ctx, potID)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of pot %s: %w", potID, err)
	}
	if balance < 0 {
		return 0, fmt.Errorf("%w: pot %s reported %d", entities.ErrInvalidBalance, potID, balance)
	}
	t.pots[potID] = balance
	return balance, nil
}

type creditConnection struct {
	account  *entities.CreditAccount
	facility interfaces.CreditFacilityClient
}

type accountSnapshot struct {
	primary  *entities.PrimaryAccount
	credit   []*entities.CreditAccount
	settings entities.Settings
}

// RunTick executes one reconciliation pass. Only configuration errors and
// exhausted or rejected API calls are returned; every other failure is
// isolated to its account and reported in the result.
func (e *ReconciliationEngine) RunTick(ctx context.Context) (*TickResult, error) {
	runID := uuid.NewString()
	t := &tick{
		runID: runID,
		pots:  entities.PotBalances{},
		result: &TickResult{
			RunID:     runID,
			StartedAt: e.clock().UTC(),
		},
		logger: log.WithField("run_id", runID),
	}

	t.logger.Info("Starting reconciliation tick")
	err := e.runTick(ctx, t)
	e.finish(ctx, t, err)

	return t.result, err
}

func (e *ReconciliationEngine) runTick(ctx context.Context, t *tick) error {
	snapshot, err := e.loadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	t.settings = snapshot.settings

	if snapshot.primary == nil {
		t.skip("no primary account linked")
		return nil
	}

	primary, err := e.gateway.Primary(ctx, snapshot.primary)
	if err == nil {
		err = primary.Ping(ctx)
	}
	if err != nil {
		t.logger.WithError(err).Warn("Primary account unavailable")
		t.skip("primary account unavailable")
		return nil
	}
	t.primary = primary

	connections, err := e.connectCreditAccounts(ctx, t, snapshot.credit)
	if err != nil {
		return err
	}
	if len(connections) == 0 {
		t.skip("no eligible credit accounts")
		return nil
	}

	if !t.settings.EnableSync {
		t.skip("sync disabled")
		return nil
	}

	for _, conn := range connections {
		if !conn.account.HasPot() {
			return &entities.SyncError{
				Kind:    entities.ErrorKindConfiguration,
				Account: conn.account.Type,
				Err:     fmt.Errorf("%w: credit account has no pot configured", entities.ErrConfiguration),
			}
		}
	}

	t.executor = services.NewTransferExecutor(primary, e.notifier)

	for _, conn := range connections {
		outcome, err := e.reconcileAccount(ctx, t, conn)
		t.result.Outcomes = append(t.result.Outcomes, *outcome)
		e.metrics.RecordAccountOutcome(ctx, outcome.AccountType, outcome.Status)
		if err != nil {
			return err
		}
	}

	e.refreshBaselines(ctx, t)
	return nil
}

func (e *ReconciliationEngine) loadSnapshot(ctx context.Context) (*accountSnapshot, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	primary, err := uow.AccountRepository().GetPrimary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get primary account: %w", err)
	}

	credit, err := uow.AccountRepository().ListCredit(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit accounts: %w", err)
	}

	raw, err := uow.SettingsRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	return &accountSnapshot{
		primary:  primary,
		credit:   credit,
		settings: entities.ParseSettings(raw, e.defaults),
	}, nil
}

// connectCreditAccounts refreshes and pings every credit account. Accounts
// failing authentication are disconnected and excluded.
func (e *ReconciliationEngine) connectCreditAccounts(ctx context.Context, t *tick, accounts []*entities.CreditAccount) ([]creditConnection, error) {
	connections := make([]creditConnection, 0, len(accounts))

	for _, account := range accounts {
		facility, err := e.gateway.Credit(ctx, account)
		if err == nil {
			err = facility.RefreshToken(ctx)
		}
		if err == nil {
			err = facility.Ping(ctx)
		}

		if errors.Is(err, entities.ErrAuth) {
			e.disconnect(ctx, t, account, err)
			t.result.Outcomes = append(t.result.Outcomes, entities.AccountOutcome{
				AccountType: account.Type,
				Status:      entities.OutcomeDisconnected,
				Error:       err.Error(),
			})
			e.metrics.RecordAccountOutcome(ctx, account.Type, entities.OutcomeDisconnected)
			continue
		}
		if err != nil {
			t.logger.WithError(err).WithField("account", account.Type).Error("Credit account health check failed")
			return nil, entities.NewSyncError(account.Type, err)
		}

		connections = append(connections, creditConnection{account: account, facility: facility})
	}

	return connections, nil
}

// disconnect removes a credit account whose authentication permanently failed
func (e *ReconciliationEngine) disconnect(ctx context.Context, t *tick, account *entities.CreditAccount, cause error) {
	logger := t.logger.WithField("account", account.Type)
	logger.WithError(cause).Warn("Credit account authentication failed, removing stored credentials")

	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		logger.WithError(err).Error("Failed to begin transaction for account removal")
	} else {
		defer uow.Rollback()

		if err := uow.AccountRepository().DeleteCredit(ctx, account.Type); err != nil {
			logger.WithError(err).Error("Failed to delete credit account")
		} else {
			if err := uow.EventBus().Publish(events.AccountDisconnectedEvent{
				RunID:       t.runID,
				AccountType: account.Type,
				Reason:      cause.Error(),
			}); err != nil {
				logger.WithError(err).Warn("Failed to publish account disconnected event")
			}
			if err := uow.Commit(); err != nil {
				logger.WithError(err).Error("Failed to commit account removal")
			}
		}
	}

	if e.notifier != nil {
		e.notifier.Notify(ctx, account.Type, disconnectedTitle, fmt.Sprintf(
			"We lost access to your %s account. Please reconnect it to keep its pot in sync.", account.Type,
		))
	}
}

// reconcileAccount runs one account branch inside its own unit of work. The
// returned error is non-nil only for failures that must end the tick.
func (e *ReconciliationEngine) reconcileAccount(ctx context.Context, t *tick, conn creditConnection) (*entities.AccountOutcome, error) {
	accountType := conn.account.Type
	potID := conn.account.PotID
	outcome := &entities.AccountOutcome{AccountType: accountType}
	logger := t.logger.WithFields(log.Fields{
		"account": accountType,
		"pot_id":  potID,
	})

	card, err := e.aggregator.AdjustedBalance(ctx, conn.facility)
	if err != nil {
		return e.accountFailure(outcome, logger, err)
	}
	outcome.CardBalance = &card

	pot, err := t.potBalance(ctx, potID)
	if err != nil {
		return e.accountFailure(outcome, logger, err)
	}
	outcome.PotBalance = &pot

	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return e.accountFailure(outcome, logger, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer uow.Rollback()

	current, err := uow.AccountRepository().GetCredit(ctx, accountType)
	if err != nil {
		return e.accountFailure(outcome, logger, fmt.Errorf("failed to reload credit account: %w", err))
	}
	if current == nil {
		return e.accountFailure(outcome, logger, fmt.Errorf("%w: %s was removed during the tick", entities.ErrAccountNotFound, accountType))
	}
	baseline := current.BaselineBalance
	outcome.Baseline = &baseline

	logger = logger.WithFields(log.Fields{
		"card_balance": card,
		"pot_balance":  pot,
		"baseline":     baseline,
	})

	if t.settings.SuspiciousChangeGuard && services.IsSuspiciousIncrease(baseline, card) {
		outcome.Status = entities.OutcomeSuspiciousBalance
		logger.Warn("Card balance jump looks like a stale provider read, skipping account")
		return outcome, nil
	}

	cooldowns := services.NewCooldownManager(uow.AccountRepository(), t.settings.DepositCooldownHours, e.clock)
	status := cooldowns.Status(current)
	input := services.DecisionInput{
		CardBalance:        card,
		PotBalance:         pot,
		Baseline:           baseline,
		Cooldown:           status.State,
		OverrideOnSpending: t.settings.OverrideCooldownSpending,
	}
	decision := services.Decide(input)
	outcome.CooldownActive = status.IsActive()

	if decision.Verdict == services.VerdictConfirmCooldown {
		active, err := e.confirmCooldown(ctx, t, accountType)
		if err != nil {
			return e.accountFailure(outcome, logger, err)
		}
		if active {
			decision = services.Decision{Verdict: services.VerdictSuppressed, Reason: "shortfall recurred during active cooldown"}
		} else {
			logger.Info("Cooldown lapsed on re-check, treating as expired")
			input.Cooldown = entities.CooldownExpired
			decision = services.Decide(input)
			outcome.CooldownActive = false
		}
	}

	logger = logger.WithFields(log.Fields{
		"verdict":  decision.Verdict,
		"cooldown": input.Cooldown,
	})

	switch decision.Verdict {
	case services.VerdictNoChange:
		outcome.Status = entities.OutcomeNoChange
		logger.Debug("No reconciliation needed")
		return outcome, nil

	case services.VerdictSuppressed:
		outcome.Status = entities.OutcomeSuppressed
		e.metrics.RecordSuppressed(ctx, accountType)
		logger.WithField("reason", decision.Reason).Info("Correction suppressed by cooldown")
		return outcome, nil
	}

	fatal := e.executeTransfers(ctx, t, uow, conn.account, decision, outcome, logger)

	if decision.AdvanceBaseline && len(outcome.Transfers) > 0 {
		tracker := services.NewBaselineTracker(uow.AccountRepository())
		if err := tracker.Set(ctx, accountType, card); err != nil {
			e.markInconsistent(outcome, logger, err)
		} else {
			outcome.Baseline = &card
		}
	}

	cooldownStarted := false
	if decision.StartCooldown && len(outcome.Transfers) > 0 && outcome.Status == "" {
		until, err := cooldowns.Start(ctx, accountType, card, pot)
		if err != nil {
			e.markInconsistent(outcome, logger, err)
		} else {
			cooldownStarted = true
			outcome.CooldownActive = true
			e.publish(uow, logger, events.CooldownStartedEvent{
				RunID:          t.runID,
				AccountType:    accountType,
				Until:          until,
				RefCardBalance: card,
				RefPotBalance:  pot,
			})
			e.metrics.RecordCooldownStarted(ctx, accountType)
		}
	}

	if outcome.Status == "" {
		outcome.Status = entities.OutcomeTransferred
		if cooldownStarted {
			outcome.Status = entities.OutcomeCooldownStarted
		}
	}

	if err := uow.Commit(); err != nil {
		logger.WithError(err).Error("Failed to commit account state after transfers")
		outcome.Status = entities.OutcomeError
		outcome.Inconsistent = true
		outcome.Error = err.Error()
		if fatal != nil {
			return outcome, fatal
		}
		return outcome, nil
	}

	e.verifyPersisted(ctx, accountType, outcome, cooldownStarted, logger)

	if fatal != nil {
		return outcome, fatal
	}
	return outcome, nil
}

// executeTransfers runs the planned transfers in order, stopping at the first
// failure. It returns a non-nil error only for failures that end the tick.
func (e *ReconciliationEngine) executeTransfers(
	ctx context.Context,
	t *tick,
	uow UnitOfWork,
	account *entities.CreditAccount,
	decision services.Decision,
	outcome *entities.AccountOutcome,
	logger *log.Entry,
) error {
	for _, planned := range decision.Transfers {
		req := interfaces.TransferRequest{
			RunID:            t.runID,
			AccountType:      account.Type,
			PotID:            account.PotID,
			Kind:             planned.Kind,
			Amount:           planned.Amount,
			PotBalanceBefore: t.pots[account.PotID],
			DedupeToken:      DedupeToken(t.runID, account.Type, planned.Kind, planned.Amount),
		}

		result := t.executor.Execute(ctx, req)
		if result.Failure != nil {
			outcome.Error = result.Failure.Error()

			switch {
			case result.InsufficientFunds():
				outcome.Status = entities.OutcomeInsufficientFunds
				e.publish(uow, logger, events.InsufficientFundsEvent{
					RunID:       t.runID,
					AccountType: account.Type,
					PotID:       account.PotID,
					Kind:        planned.Kind,
					Amount:      planned.Amount,
				})
				return nil
			case result.Failure.IsFatal():
				outcome.Status = entities.OutcomeError
				logger.WithError(result.Failure).Error("Pot transfer failed")
				return result.Failure
			default:
				outcome.Status = entities.OutcomeError
				logger.WithError(result.Failure).Warn("Pot transfer failed, continuing with next account")
				return nil
			}
		}

		transfer := result.Transfer
		t.pots.Apply(account.PotID, transfer.SignedAmount())
		outcome.Transfers = append(outcome.Transfers, entities.TransferLog{Kind: transfer.Kind, Amount: transfer.Amount})
		e.metrics.RecordTransfer(ctx, account.Type, transfer.Kind, transfer.Amount)

		if err := uow.PotTransferRepository().Record(ctx, transfer); err != nil {
			logger.WithError(err).Error("Failed to record pot transfer in ledger")
			outcome.Inconsistent = true
		}

		e.publish(uow, logger, events.TransferExecutedEvent{
			RunID:            t.runID,
			AccountType:      account.Type,
			PotID:            account.PotID,
			Direction:        transfer.Direction,
			Kind:             transfer.Kind,
			Amount:           transfer.Amount,
			PotBalanceBefore: transfer.PotBalanceBefore,
			PotBalanceAfter:  transfer.PotBalanceAfter,
		})
	}
	return nil
}

// confirmCooldown re-reads the cooldown through a separate unit of work
func (e *ReconciliationEngine) confirmCooldown(ctx context.Context, t *tick, accountType string) (bool, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	cooldowns := services.NewCooldownManager(uow.AccountRepository(), t.settings.DepositCooldownHours, e.clock)
	return cooldowns.ConfirmActive(ctx, accountType)
}

// verifyPersisted re-reads committed state through a fresh unit of work
func (e *ReconciliationEngine) verifyPersisted(ctx context.Context, accountType string, outcome *entities.AccountOutcome, cooldownStarted bool, logger *log.Entry) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		logger.WithError(err).Warn("Failed to begin verification transaction")
		return
	}
	defer uow.Rollback()

	if outcome.Baseline != nil {
		stored, err := uow.AccountRepository().GetBaseline(ctx, accountType)
		if err != nil {
			logger.WithError(err).Warn("Failed to verify baseline")
		} else if stored != *outcome.Baseline {
			e.markInconsistent(outcome, logger, fmt.Errorf("%w: baseline expected %d after commit, found %d",
				entities.ErrPersistenceInconsistency, *outcome.Baseline, stored))
		}
	}

	if cooldownStarted {
		cooldowns := services.NewCooldownManager(uow.AccountRepository(), 0, e.clock)
		active, err := cooldowns.ConfirmActive(ctx, accountType)
		if err != nil {
			logger.WithError(err).Warn("Failed to verify cooldown")
		} else if !active {
			e.markInconsistent(outcome, logger, fmt.Errorf("%w: cooldown not active after commit", entities.ErrPersistenceInconsistency))
		}
	}
}

// refreshBaselines advances the baseline of every account that finished
// cleanly and is not cooling down, even when no transfer was made
func (e *ReconciliationEngine) refreshBaselines(ctx context.Context, t *tick) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		t.logger.WithError(err).Error("Failed to begin baseline refresh")
		return
	}
	defer uow.Rollback()

	tracker := services.NewBaselineTracker(uow.AccountRepository())
	refreshed := make([]*entities.AccountOutcome, 0, len(t.result.Outcomes))

	for i := range t.result.Outcomes {
		outcome := &t.result.Outcomes[i]
		if !outcome.Succeeded() || outcome.CooldownActive || outcome.CardBalance == nil {
			continue
		}

		logger := t.logger.WithField("account", outcome.AccountType)
		current, err := tracker.Get(ctx, outcome.AccountType)
		if err != nil {
			logger.WithError(err).Warn("Failed to read baseline for refresh")
			continue
		}
		if current == *outcome.CardBalance {
			continue
		}

		if err := tracker.Set(ctx, outcome.AccountType, *outcome.CardBalance); err != nil {
			e.markInconsistent(outcome, logger, err)
			continue
		}
		logger.WithFields(log.Fields{
			"previous": current,
			"baseline": *outcome.CardBalance,
		}).Info("Baseline refreshed")
		refreshed = append(refreshed, outcome)
	}

	if len(refreshed) == 0 {
		return
	}
	if err := uow.Commit(); err != nil {
		t.logger.WithError(err).Error("Failed to commit baseline refresh")
		return
	}
	for _, outcome := range refreshed {
		baseline := *outcome.CardBalance
		outcome.Baseline = &baseline
	}
}

// finish settles the tick status and records the run. History is best-effort.
func (e *ReconciliationEngine) finish(ctx context.Context, t *tick, tickErr error) {
	result := t.result
	result.FinishedAt = e.clock().UTC()

	switch {
	case tickErr != nil:
		result.Status = entities.SyncRunStatusFailed
		result.Reason = tickErr.Error()
	case result.Status == "":
		result.Status = entities.SyncRunStatusCompleted
		for _, outcome := range result.Outcomes {
			if !outcome.Succeeded() || outcome.Inconsistent {
				result.Status = entities.SyncRunStatusPartial
				break
			}
		}
	}

	duration := result.FinishedAt.Sub(result.StartedAt)
	e.metrics.RecordTick(ctx, result.Status, duration)

	entry := t.logger.WithFields(log.Fields{
		"status":    result.Status,
		"transfers": result.TransferCount(),
		"accounts":  len(result.Outcomes),
		"duration":  duration,
	})
	if tickErr != nil {
		entry.WithError(tickErr).Error("Reconciliation tick failed")
	} else {
		entry.Info("Reconciliation tick finished")
	}

	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		t.logger.WithError(err).Warn("Failed to begin transaction for sync run history")
		return
	}
	defer uow.Rollback()

	finishedAt := result.FinishedAt
	run := &entities.SyncRun{
		ID:         result.RunID,
		StartedAt:  result.StartedAt,
		FinishedAt: &finishedAt,
		Status:     result.Status,
		Reason:     result.Reason,
		Outcomes:   result.Outcomes,
	}
	if err := uow.SyncRunRepository().Create(ctx, run); err != nil {
		t.logger.WithError(err).Warn("Failed to record sync run history")
		return
	}
	e.publish(uow, t.logger, events.SyncCompletedEvent{
		RunID:         result.RunID,
		Status:        result.Status,
		Reason:        result.Reason,
		TransferCount: result.TransferCount(),
		Duration:      duration,
	})
	if err := uow.Commit(); err != nil {
		t.logger.WithError(err).Warn("Failed to commit sync run history")
	}
}

func (e *ReconciliationEngine) accountFailure(outcome *entities.AccountOutcome, logger *log.Entry, err error) (*entities.AccountOutcome, error) {
	syncErr := entities.NewSyncError(outcome.AccountType, err)
	outcome.Status = entities.OutcomeError
	outcome.Error = syncErr.Error()

	if syncErr.IsFatal() {
		logger.WithError(syncErr).Error("Fatal error reconciling account")
		return outcome, syncErr
	}
	logger.WithError(syncErr).Warn("Account reconciliation failed, continuing with next account")
	return outcome, nil
}

func (e *ReconciliationEngine) markInconsistent(outcome *entities.AccountOutcome, logger *log.Entry, err error) {
	outcome.Inconsistent = true
	if outcome.Error == "" {
		outcome.Error = err.Error()
	}
	logger.WithError(err).WithField("kind", entities.ClassifyError(err)).Error("Persistence inconsistency detected")
}

func (e *ReconciliationEngine) publish(uow UnitOfWork, logger *log.Entry, event events.Event) {
	if err := uow.EventBus().Publish(event); err != nil {
		logger.WithError(err).WithField("eventType", event.Type()).Warn("Failed to publish event")
	}
}
