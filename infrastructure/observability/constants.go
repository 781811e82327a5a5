package observability

// Metric name prefixes
const (
	MetricPrefix = "potsync"
)

// Metric names
const (
	// Transfer metrics
	TransfersTotal      = MetricPrefix + ".transfers.total"
	TransferAmountTotal = MetricPrefix + ".transfers.amount_total"

	// Cooldown metrics
	CooldownsStartedTotal = MetricPrefix + ".cooldowns.started_total"
	SuppressedTotal       = MetricPrefix + ".cooldowns.suppressed_total"

	// Tick metrics
	AccountOutcomesTotal = MetricPrefix + ".accounts.outcomes_total"
	TicksTotal           = MetricPrefix + ".ticks.total"
	TickDuration         = MetricPrefix + ".ticks.duration"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelAccount   = "account"
	LabelKind      = "kind"
	LabelStatus    = "status"
	LabelEventType = "event_type"
)
