package entities

import "time"

// AccountKind distinguishes the primary payment account from linked credit facilities
type AccountKind string

const (
	AccountKindPrimary AccountKind = "primary"
	AccountKindCredit  AccountKind = "credit"
)

// Credentials holds the OAuth tokens stored for a linked account
type Credentials struct {
	AccessToken  string     `db:"access_token"`
	RefreshToken string     `db:"refresh_token"`
	Expiry       *time.Time `db:"token_expiry"`
}

// HasAccessToken returns true if an access token is stored
func (c Credentials) HasAccessToken() bool {
	return c.AccessToken != ""
}

// PrimaryAccount represents the payment account that owns the reconciliation pots
type PrimaryAccount struct {
	Type        string      `db:"type"`
	Credentials Credentials `db:"-"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

// Cooldown is the persisted cooldown record of a credit account.
// Until is nil when no cooldown has been started or it has been cleared.
type Cooldown struct {
	Until          *time.Time `db:"cooldown_until"`
	RefCardBalance *int64     `db:"cooldown_ref_card_balance"`
	RefPotBalance  *int64     `db:"cooldown_ref_pot_balance"`
}

// IsSet returns true if a cooldown timestamp is stored, regardless of whether it has elapsed
func (c Cooldown) IsSet() bool {
	return c.Until != nil
}

// CreditAccount is an immutable snapshot of one externally-held credit facility
// linked to exactly one reconciliation pot
type CreditAccount struct {
	Type            string      `db:"type"`
	PotID           string      `db:"pot_id"`
	BaselineBalance int64       `db:"baseline_balance"`
	Cooldown        Cooldown    `db:"-"`
	Credentials     Credentials `db:"-"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

// HasPot returns true if the account is linked to a reconciliation pot
func (a CreditAccount) HasPot() bool {
	return a.PotID != ""
}

// WithBaseline returns a copy of the account with a different baseline
func (a CreditAccount) WithBaseline(baseline int64) CreditAccount {
	a.BaselineBalance = baseline
	return a
}

// WithCooldown returns a copy of the account with a different cooldown record
func (a CreditAccount) WithCooldown(cooldown Cooldown) CreditAccount {
	a.Cooldown = cooldown
	return a
}

// CooldownState is the derived state of an account's cooldown
type CooldownState string

const (
	CooldownIdle    CooldownState = "idle"
	CooldownActive  CooldownState = "active"
	CooldownExpired CooldownState = "expired"
)

// CooldownStatus is a cooldown record evaluated against a point in time
type CooldownStatus struct {
	State    CooldownState
	Cooldown Cooldown
}

// IsActive returns true if the cooldown has not yet elapsed
func (s CooldownStatus) IsActive() bool {
	return s.State == CooldownActive
}
