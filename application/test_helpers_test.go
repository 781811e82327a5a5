package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"potsync/domain/entities"
	"potsync/domain/interfaces"
	"potsync/domain/services"
	"potsync/events"

	"github.com/stretchr/testify/require"
)

// memState is the committed content of the in-memory store
type memState struct {
	primary   *entities.PrimaryAccount
	credit    map[string]entities.CreditAccount
	settings  map[string]string
	transfers []*entities.PotTransfer
	runs      []*entities.SyncRun
}

func (s *memState) clone() *memState {
	c := &memState{
		credit:    make(map[string]entities.CreditAccount, len(s.credit)),
		settings:  make(map[string]string, len(s.settings)),
		transfers: append([]*entities.PotTransfer(nil), s.transfers...),
		runs:      append([]*entities.SyncRun(nil), s.runs...),
	}
	if s.primary != nil {
		primary := *s.primary
		c.primary = &primary
	}
	for k, v := range s.credit {
		c.credit[k] = v
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	return c
}

// memoryStore is an in-memory persistence layer with unit of work semantics:
// writes are staged per unit of work and only become visible on commit
type memoryStore struct {
	mu                 sync.Mutex
	state              *memState
	published          []events.Event
	dropBaselineWrites bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: &memState{
		credit:   make(map[string]entities.CreditAccount),
		settings: make(map[string]string),
	}}
}

func (s *memoryStore) Create() UnitOfWork {
	return &memoryUnitOfWork{store: s}
}

func (s *memoryStore) credit(accountType string) (entities.CreditAccount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.state.credit[accountType]
	return account, ok
}

func (s *memoryStore) putCredit(account entities.CreditAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.credit[account.Type] = account
}

func (s *memoryStore) setSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.settings[key] = value
}

func (s *memoryStore) transfers() []*entities.PotTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entities.PotTransfer(nil), s.state.transfers...)
}

func (s *memoryStore) runs() []*entities.SyncRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entities.SyncRun(nil), s.state.runs...)
}

func (s *memoryStore) eventsOfType(eventType events.EventType) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []events.Event
	for _, ev := range s.published {
		if ev.Type() == eventType {
			matched = append(matched, ev)
		}
	}
	return matched
}

type memoryUnitOfWork struct {
	store   *memoryStore
	staging *memState
	pending []events.Event
}

func (u *memoryUnitOfWork) Begin(ctx context.Context) error {
	if u.staging != nil {
		return fmt.Errorf("transaction already started")
	}
	u.store.mu.Lock()
	u.staging = u.store.state.clone()
	u.store.mu.Unlock()
	return nil
}

func (u *memoryUnitOfWork) Commit() error {
	if u.staging == nil {
		return fmt.Errorf("no transaction to commit")
	}
	u.store.mu.Lock()
	u.store.state = u.staging
	u.store.published = append(u.store.published, u.pending...)
	u.store.mu.Unlock()
	u.staging = nil
	u.pending = nil
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	u.staging = nil
	u.pending = nil
	return nil
}

func (u *memoryUnitOfWork) mustStaging() *memState {
	if u.staging == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.staging
}

func (u *memoryUnitOfWork) AccountRepository() interfaces.AccountRepository {
	u.mustStaging()
	return &memAccountRepository{uow: u}
}

func (u *memoryUnitOfWork) SettingsRepository() interfaces.SettingsRepository {
	u.mustStaging()
	return &memSettingsRepository{uow: u}
}

func (u *memoryUnitOfWork) PotTransferRepository() interfaces.PotTransferRepository {
	u.mustStaging()
	return &memPotTransferRepository{uow: u}
}

func (u *memoryUnitOfWork) SyncRunRepository() interfaces.SyncRunRepository {
	u.mustStaging()
	return &memSyncRunRepository{uow: u}
}

func (u *memoryUnitOfWork) EventBus() interfaces.EventPublisher {
	u.mustStaging()
	return &memPublisher{uow: u}
}

type memPublisher struct {
	uow *memoryUnitOfWork
}

func (p *memPublisher) Publish(event events.Event) error {
	p.uow.pending = append(p.uow.pending, event)
	return nil
}

type memAccountRepository struct {
	uow *memoryUnitOfWork
}

func (r *memAccountRepository) GetBaseline(ctx context.Context, accountType string) (int64, error) {
	account, ok := r.uow.mustStaging().credit[accountType]
	if !ok {
		return 0, entities.ErrAccountNotFound
	}
	return account.BaselineBalance, nil
}

func (r *memAccountRepository) SetBaseline(ctx context.Context, accountType string, baseline int64) error {
	state := r.uow.mustStaging()
	account, ok := state.credit[accountType]
	if !ok {
		return entities.ErrAccountNotFound
	}
	if r.uow.store.dropBaselineWrites {
		return nil
	}
	state.credit[accountType] = account.WithBaseline(baseline)
	return nil
}

func (r *memAccountRepository) GetCooldown(ctx context.Context, accountType string) (*entities.Cooldown, error) {
	account, ok := r.uow.mustStaging().credit[accountType]
	if !ok {
		return nil, nil
	}
	cooldown := account.Cooldown
	return &cooldown, nil
}

func (r *memAccountRepository) SetCooldown(ctx context.Context, accountType string, cooldown entities.Cooldown) error {
	state := r.uow.mustStaging()
	account, ok := state.credit[accountType]
	if !ok {
		return entities.ErrAccountNotFound
	}
	state.credit[accountType] = account.WithCooldown(cooldown)
	return nil
}

func (r *memAccountRepository) ClearCooldown(ctx context.Context, accountType string) error {
	return r.SetCooldown(ctx, accountType, entities.Cooldown{})
}

func (r *memAccountRepository) GetPrimary(ctx context.Context) (*entities.PrimaryAccount, error) {
	return r.uow.mustStaging().primary, nil
}

func (r *memAccountRepository) ListCredit(ctx context.Context) ([]*entities.CreditAccount, error) {
	state := r.uow.mustStaging()
	accounts := make([]*entities.CreditAccount, 0, len(state.credit))
	for _, account := range state.credit {
		account := account
		accounts = append(accounts, &account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Type < accounts[j].Type })
	return accounts, nil
}

func (r *memAccountRepository) GetCredit(ctx context.Context, accountType string) (*entities.CreditAccount, error) {
	account, ok := r.uow.mustStaging().credit[accountType]
	if !ok {
		return nil, nil
	}
	return &account, nil
}

func (r *memAccountRepository) UpsertPrimary(ctx context.Context, account *entities.PrimaryAccount) error {
	primary := *account
	r.uow.mustStaging().primary = &primary
	return nil
}

func (r *memAccountRepository) UpsertCredit(ctx context.Context, account *entities.CreditAccount) error {
	r.uow.mustStaging().credit[account.Type] = *account
	return nil
}

func (r *memAccountRepository) SaveCredentials(ctx context.Context, accountType string, credentials entities.Credentials) error {
	state := r.uow.mustStaging()
	if account, ok := state.credit[accountType]; ok {
		account.Credentials = credentials
		state.credit[accountType] = account
		return nil
	}
	if state.primary != nil && state.primary.Type == accountType {
		state.primary.Credentials = credentials
		return nil
	}
	return entities.ErrAccountNotFound
}

func (r *memAccountRepository) DeleteCredit(ctx context.Context, accountType string) error {
	delete(r.uow.mustStaging().credit, accountType)
	return nil
}

type memSettingsRepository struct {
	uow *memoryUnitOfWork
}

func (r *memSettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	settings := make(map[string]string)
	for k, v := range r.uow.mustStaging().settings {
		settings[k] = v
	}
	return settings, nil
}

func (r *memSettingsRepository) Set(ctx context.Context, key, value string) error {
	r.uow.mustStaging().settings[key] = value
	return nil
}

type memPotTransferRepository struct {
	uow *memoryUnitOfWork
}

func (r *memPotTransferRepository) Record(ctx context.Context, transfer *entities.PotTransfer) error {
	if err := transfer.Validate(); err != nil {
		return err
	}
	state := r.uow.mustStaging()
	transfer.ID = int64(len(state.transfers) + 1)
	transfer.CreatedAt = time.Now()
	state.transfers = append(state.transfers, transfer)
	return nil
}

func (r *memPotTransferRepository) ListByRun(ctx context.Context, runID string) ([]*entities.PotTransfer, error) {
	var matched []*entities.PotTransfer
	for _, transfer := range r.uow.mustStaging().transfers {
		if transfer.RunID == runID {
			matched = append(matched, transfer)
		}
	}
	return matched, nil
}

func (r *memPotTransferRepository) ListByAccount(ctx context.Context, accountType string, limit int) ([]*entities.PotTransfer, error) {
	transfers := r.uow.mustStaging().transfers
	var matched []*entities.PotTransfer
	for i := len(transfers) - 1; i >= 0 && len(matched) < limit; i-- {
		if transfers[i].AccountType == accountType {
			matched = append(matched, transfers[i])
		}
	}
	return matched, nil
}

type memSyncRunRepository struct {
	uow *memoryUnitOfWork
}

func (r *memSyncRunRepository) Create(ctx context.Context, run *entities.SyncRun) error {
	state := r.uow.mustStaging()
	state.runs = append(state.runs, run)
	return nil
}

func (r *memSyncRunRepository) GetByID(ctx context.Context, id string) (*entities.SyncRun, error) {
	for _, run := range r.uow.mustStaging().runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, nil
}

func (r *memSyncRunRepository) ListRecent(ctx context.Context, limit int) ([]*entities.SyncRun, error) {
	runs := r.uow.mustStaging().runs
	recent := make([]*entities.SyncRun, 0, limit)
	for i := len(runs) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, runs[i])
	}
	return recent, nil
}

type fakeTransfer struct {
	PotID  string
	Amount int64
	Token  string
}

// fakePrimary simulates the primary account provider, moving money between
// the owning account and its pots and honouring dedupe tokens
type fakePrimary struct {
	mu          sync.Mutex
	pingErr     error
	depositErr  error
	withdrawErr error
	balances    map[entities.AccountSelector]int64
	pots        map[string]int64
	potOwners   map[string]entities.AccountSelector
	potReads    map[string]int
	tokens      map[string]bool
	deposits    []fakeTransfer
	withdrawals []fakeTransfer
}

func newFakePrimary() *fakePrimary {
	return &fakePrimary{
		balances:  map[entities.AccountSelector]int64{entities.AccountSelectorPersonal: 1000000},
		pots:      make(map[string]int64),
		potOwners: make(map[string]entities.AccountSelector),
		potReads:  make(map[string]int),
		tokens:    make(map[string]bool),
	}
}

func (p *fakePrimary) Ping(ctx context.Context) error {
	return p.pingErr
}

func (p *fakePrimary) PotSelector(ctx context.Context, potID string) (entities.AccountSelector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if owner, ok := p.potOwners[potID]; ok {
		return owner, nil
	}
	return entities.AccountSelectorPersonal, nil
}

func (p *fakePrimary) GetBalance(ctx context.Context, selector entities.AccountSelector) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[selector], nil
}

func (p *fakePrimary) GetPotBalance(ctx context.Context, potID string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.potReads[potID]++
	return p.pots[potID], nil
}

func (p *fakePrimary) Deposit(ctx context.Context, potID string, amount int64, dedupeToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.depositErr != nil {
		return p.depositErr
	}
	if p.tokens[dedupeToken] {
		return nil
	}
	owner := p.ownerLocked(potID)
	if p.balances[owner] < amount {
		return entities.ErrInsufficientFunds
	}
	p.tokens[dedupeToken] = true
	p.balances[owner] -= amount
	p.pots[potID] += amount
	p.deposits = append(p.deposits, fakeTransfer{PotID: potID, Amount: amount, Token: dedupeToken})
	return nil
}

func (p *fakePrimary) Withdraw(ctx context.Context, potID string, amount int64, dedupeToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.withdrawErr != nil {
		return p.withdrawErr
	}
	if p.tokens[dedupeToken] {
		return nil
	}
	if p.pots[potID] < amount {
		return entities.ErrInsufficientFunds
	}
	p.tokens[dedupeToken] = true
	p.pots[potID] -= amount
	p.balances[p.ownerLocked(potID)] += amount
	p.withdrawals = append(p.withdrawals, fakeTransfer{PotID: potID, Amount: amount, Token: dedupeToken})
	return nil
}

func (p *fakePrimary) ownerLocked(potID string) entities.AccountSelector {
	if owner, ok := p.potOwners[potID]; ok {
		return owner
	}
	return entities.AccountSelectorPersonal
}

func (p *fakePrimary) setPot(potID string, balance int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pots[potID] = balance
}

func (p *fakePrimary) pot(potID string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pots[potID]
}

func (p *fakePrimary) transferCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deposits) + len(p.withdrawals)
}

// fakeFacility simulates a single-card settled-only credit facility
type fakeFacility struct {
	mu         sync.Mutex
	refreshErr error
	pingErr    error
	balanceErr error
	cards      []entities.Card
	balances   map[string]int64
	pending    map[string][]entities.PendingTransaction
}

func newFakeFacility(balance int64) *fakeFacility {
	return &fakeFacility{
		cards:    []entities.Card{{ID: "card-1", Provider: entities.ProviderBarclaycard}},
		balances: map[string]int64{"card-1": balance},
		pending:  make(map[string][]entities.PendingTransaction),
	}
}

func (f *fakeFacility) RefreshToken(ctx context.Context) error {
	return f.refreshErr
}

func (f *fakeFacility) Ping(ctx context.Context) error {
	return f.pingErr
}

func (f *fakeFacility) Cards(ctx context.Context) ([]entities.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entities.Card(nil), f.cards...), nil
}

func (f *fakeFacility) CardBalance(ctx context.Context, cardID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balances[cardID], nil
}

func (f *fakeFacility) PendingTransactions(ctx context.Context, cardID string) ([]entities.PendingTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[cardID], nil
}

func (f *fakeFacility) setBalance(balance int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances["card-1"] = balance
}

type fakeGateway struct {
	primary    *fakePrimary
	primaryErr error
	facilities map[string]*fakeFacility
}

func (g *fakeGateway) Primary(ctx context.Context, account *entities.PrimaryAccount) (interfaces.PrimaryAccountClient, error) {
	if g.primaryErr != nil {
		return nil, g.primaryErr
	}
	return g.primary, nil
}

func (g *fakeGateway) Credit(ctx context.Context, account *entities.CreditAccount) (interfaces.CreditFacilityClient, error) {
	facility, ok := g.facilities[account.Type]
	if !ok {
		return nil, fmt.Errorf("%w: no facility for %s", entities.ErrAPIRejected, account.Type)
	}
	return facility, nil
}

type notification struct {
	Account string
	Title   string
	Message string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(ctx context.Context, account, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{Account: account, Title: title, Message: message})
}

func (n *fakeNotifier) notifications() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}

// engineHarness wires the engine to in-memory fakes with a controllable clock
type engineHarness struct {
	store    *memoryStore
	primary  *fakePrimary
	gateway  *fakeGateway
	notifier *fakeNotifier
	now      time.Time
	engine   *ReconciliationEngine
}

func newEngineHarness(t *testing.T) *engineHarness {
	t.Helper()

	h := &engineHarness{
		store:    newMemoryStore(),
		primary:  newFakePrimary(),
		notifier: &fakeNotifier{},
		now:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.gateway = &fakeGateway{primary: h.primary, facilities: make(map[string]*fakeFacility)}
	h.store.state.primary = &entities.PrimaryAccount{Type: "monzo"}
	h.engine = NewReconciliationEngine(
		h.store,
		h.gateway,
		services.NewBalanceAggregator(nil),
		h.notifier,
		entities.DefaultSettings(),
		WithClock(func() time.Time { return h.now }),
	)
	return h
}

// addCredit links a credit account with the given card, pot and baseline balances
func (h *engineHarness) addCredit(accountType, potID string, card, pot, baseline int64) *fakeFacility {
	facility := newFakeFacility(card)
	h.gateway.facilities[accountType] = facility
	h.primary.setPot(potID, pot)
	h.store.putCredit(entities.CreditAccount{
		Type:            accountType,
		PotID:           potID,
		BaselineBalance: baseline,
	})
	return facility
}

func (h *engineHarness) startCooldown(accountType string, until time.Time) {
	account, _ := h.store.credit(accountType)
	h.store.putCredit(account.WithCooldown(entities.Cooldown{Until: &until}))
}

func (h *engineHarness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func (h *engineHarness) run(t *testing.T) *TickResult {
	t.Helper()
	result, err := h.engine.RunTick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func (h *engineHarness) baseline(t *testing.T, accountType string) int64 {
	t.Helper()
	account, ok := h.store.credit(accountType)
	require.True(t, ok, "account %s not found", accountType)
	return account.BaselineBalance
}
