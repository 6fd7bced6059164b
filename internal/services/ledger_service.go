package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"brunance/internal/accounts"
	"brunance/internal/core"
	"brunance/internal/ledger"
	"brunance/internal/log"
	"brunance/internal/storage"
)

// Persistence is the durable home of the ledger. SaveLedger always receives
// the whole log in store order together with the tombstone set, and must
// store both or neither.
type Persistence interface {
	Load(ctx context.Context) ([]core.Transaction, error)
	LoadTombstones(ctx context.Context) (ledger.Tombstones, error)
	SaveLedger(ctx context.Context, txs []core.Transaction, t ledger.Tombstones) error
	LoadSyncState(ctx context.Context) (storage.SyncState, error)
	SaveSyncState(ctx context.Context, s storage.SyncState) error
}

// SyncPublisher announces that the ledger changed and should be synced.
type SyncPublisher interface {
	PublishSyncRequest(ctx context.Context, reason string, revision uint64) error
}

// LedgerConfig holds the presentation defaults of the ledger.
type LedgerConfig struct {
	// Location is the time zone months and days are read in (default: Local).
	Location *time.Location
	// Now is the clock used for defaults (default: time.Now).
	Now func() time.Time
}

// LedgerService is the single entry point for ledger mutations. It
// serializes them so validation always sees the balances the new entry will
// be appended to, and keeps the store, the persistence and the tombstones in
// step: a failed write leaves the store as it was.
type LedgerService struct {
	mu        sync.Mutex
	store     *ledger.Store
	reg       *accounts.Registry
	validator *ledger.Validator
	persist   Persistence
	publisher SyncPublisher
	tomb      ledger.Tombstones
	loc       *time.Location
	now       func() time.Time
	logger    *log.Logger
	events    *log.StructuredLogger
}

// NewLedgerService loads the log and tombstones from persist. publisher may
// be nil when no broker is configured.
func NewLedgerService(ctx context.Context, reg *accounts.Registry, persist Persistence, publisher SyncPublisher, cfg LedgerConfig) (*LedgerService, error) {
	txs, err := persist.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	store, err := ledger.NewStore(txs)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	tomb, err := persist.LoadTombstones(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tombstones: %w", err)
	}
	if tomb == nil {
		tomb = ledger.NewTombstones()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	logger := log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentLedger})
	s := &LedgerService{
		store:     store,
		reg:       reg,
		validator: ledger.NewValidator(reg),
		persist:   persist,
		publisher: publisher,
		tomb:      tomb,
		loc:       cfg.Location,
		now:       cfg.Now,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
	}
	logger.InfoContext(ctx, "Ledger loaded", log.FieldCount, store.Len(), "tombstones", len(tomb))
	return s, nil
}

func (s *LedgerService) Registry() *accounts.Registry { return s.reg }

func (s *LedgerService) Location() *time.Location { return s.loc }

func (s *LedgerService) Revision() uint64 { return s.store.Revision() }

// Now returns the current time in the ledger's location.
func (s *LedgerService) Now() time.Time { return s.now().In(s.loc) }

// CurrentPeriod is the month Now falls in.
func (s *LedgerService) CurrentPeriod() core.Period {
	return core.PeriodOf(s.Now())
}

// Submit validates c against the current balances and appends it. Missing
// ids, dates and descriptions are filled in; account ids are stored in their
// canonical form. The returned transaction is the one committed.
func (s *LedgerService) Submit(ctx context.Context, c core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(ctx, c, "submit")
}

func (s *LedgerService) submitLocked(ctx context.Context, c core.Transaction, reason string) (core.Transaction, error) {
	c = s.prepare(c)

	if err := s.validator.Validate(c, ledger.Balances(s.store.All(), c.Currency, s.reg)); err != nil {
		s.logger.WarnContext(ctx, "Transaction rejected",
			log.NewFields().WithTransaction(c).WithOperation(log.OpValidate).WithError(err).ToSlice()...)
		return core.Transaction{}, err
	}
	if err := s.store.Append(c); err != nil {
		return core.Transaction{}, err
	}
	if err := s.persistAll(ctx, s.store.All()); err != nil {
		if _, rerr := s.store.Remove(c.ID); rerr != nil {
			s.logger.ErrorContext(ctx, "Failed to roll back append", log.FieldTransactionID, c.ID, log.FieldError, rerr)
		}
		return core.Transaction{}, err
	}

	rev := s.store.Revision()
	s.events.LogTransactionCommitted(ctx, c, rev)
	s.publish(ctx, reason, rev)
	return c, nil
}

// prepare fills defaults on a candidate. It never makes an invalid
// candidate valid.
func (s *LedgerService) prepare(c core.Transaction) core.Transaction {
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		c.ID = core.NewID()
	}
	if c.OccurredAt.IsZero() {
		c.OccurredAt = s.Now()
	}
	c.Description = strings.TrimSpace(c.Description)
	c.Synced = false
	if a, ok := s.reg.Lookup(c.SourceAccountID); ok {
		c.SourceAccountID = a.ID
		if c.Nature == core.NatureIncome && c.Beneficiary == "" {
			c.Beneficiary = incomeBeneficiary(a)
		}
	}
	if a, ok := s.reg.Lookup(c.DestinationAccountID); ok {
		c.DestinationAccountID = a.ID
	}
	if c.Nature == core.NatureTransfer && c.IsSettlement && c.Beneficiary == "" {
		c.Beneficiary = core.BeneficiaryShared
	}
	c.Description = ledger.DefaultDescription(c, s.reg)
	return c
}

// incomeBeneficiary attributes income to the owner of the receiving account.
func incomeBeneficiary(a accounts.Account) core.Beneficiary {
	if a.Owner.Valid() {
		return core.Beneficiary(a.Owner)
	}
	return core.BeneficiaryShared
}

// Delete removes the entry with id and remembers the deletion so a later
// sync does not bring it back.
func (s *LedgerService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.store.All()
	removed, err := s.store.Remove(id)
	if err != nil {
		return err
	}
	_, hadTomb := s.tomb[removed.ID]
	s.tomb.Add(removed.ID)

	if err := s.persistAll(ctx, s.store.All()); err != nil {
		if !hadTomb {
			s.tomb.Clear(removed.ID)
		}
		if rerr := s.store.Replace(prev); rerr != nil {
			s.logger.ErrorContext(ctx, "Failed to roll back delete", log.FieldTransactionID, id, log.FieldError, rerr)
		}
		return err
	}

	rev := s.store.Revision()
	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldTransactionID, removed.ID, log.FieldOperation, log.OpDelete, log.FieldRevision, rev)
	s.publish(ctx, "delete", rev)
	return nil
}

// Settle builds the settlement transfer for the debt in p and commits it
// through the same validation as any other entry. The transfer is dated
// inside p, so settling the same month again fails with core.ErrNoDebt.
func (s *LedgerService) Settle(ctx context.Context, p core.Period, currency core.Currency, req ledger.SettlementRequest) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p = p.In(s.loc)
	debt := ledger.ComputeDebt(ledger.FilterPeriod(s.store.All(), p), currency)
	tx, err := ledger.BuildSettlement(debt, s.reg, p, req, s.Now())
	if err != nil {
		return core.Transaction{}, err
	}
	committed, err := s.submitLocked(ctx, tx, "settle")
	if err != nil {
		return core.Transaction{}, err
	}
	s.logger.InfoContext(ctx, "Settlement recorded",
		log.FieldOperation, log.OpSettle,
		log.FieldPayer, string(committed.Payer),
		log.FieldAmount, committed.Amount.StringFixed(2),
		log.FieldCurrency, string(committed.Currency))
	return committed, nil
}

// Import replaces the whole log with txs. Every entry must be structurally
// valid and ids must be unique; balances are not re-checked since the log is
// history. Imported ids are no longer considered deleted.
func (s *LedgerService) Import(ctx context.Context, txs []core.Transaction) (int, error) {
	var errs []error
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i, tx.ID, err))
		}
	}
	if len(errs) > 0 {
		return 0, core.Reject(errors.Join(errs...))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.store.All()
	prevTomb := maps.Clone(s.tomb)
	if err := s.store.Replace(txs); err != nil {
		return 0, core.Reject(err)
	}
	for _, tx := range txs {
		s.tomb.Clear(tx.ID)
	}
	if err := s.persistAll(ctx, s.store.All()); err != nil {
		s.tomb = prevTomb
		if rerr := s.store.Replace(prev); rerr != nil {
			s.logger.ErrorContext(ctx, "Failed to roll back import", log.FieldError, rerr)
		}
		return 0, err
	}

	rev := s.store.Revision()
	s.logger.InfoContext(ctx, "Ledger imported",
		log.FieldOperation, log.OpImport, log.FieldCount, len(txs), log.FieldRevision, rev)
	s.publish(ctx, "import", rev)
	return len(txs), nil
}

// Export returns the whole log in store order.
func (s *LedgerService) Export() []core.Transaction {
	return s.store.All()
}

// Transactions returns the entries active in p, newest first. A nil period
// returns the whole history.
func (s *LedgerService) Transactions(p *core.Period) []core.Transaction {
	txs := s.store.All()
	if p != nil {
		txs = ledger.FilterPeriod(txs, p.In(s.loc))
	}
	return ledger.History(txs)
}

// Get returns a single entry.
func (s *LedgerService) Get(id string) (core.Transaction, error) {
	tx, ok := s.store.Get(id)
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

// Balances returns the non-zero balances in currency over the whole log.
func (s *LedgerService) Balances(currency core.Currency) []ledger.AccountBalance {
	return ledger.BalanceSheet(ledger.Balances(s.store.All(), currency, s.reg), s.reg)
}

// Summary returns the income and expense totals of p.
func (s *LedgerService) Summary(p core.Period, currency core.Currency) ledger.Summary {
	return ledger.MonthSummary(s.store.All(), p.In(s.loc), currency)
}

// Debt returns the shared-expense position for p.
func (s *LedgerService) Debt(p core.Period, currency core.Currency) ledger.Debt {
	return ledger.ComputeDebt(ledger.FilterPeriod(s.store.All(), p.In(s.loc)), currency)
}

// Prefill suggests the settlement for p. It fails with core.ErrNoDebt when
// the members are square.
func (s *LedgerService) Prefill(p core.Period, currency core.Currency) (ledger.Prefill, error) {
	return ledger.SettlementPrefill(s.Debt(p, currency), s.reg, p)
}

// Pending returns the entries not yet confirmed by the remote.
func (s *LedgerService) Pending() []core.Transaction {
	return ledger.Pending(s.store.All())
}

// syncSnapshot returns copies of the log and tombstones together with the
// revision they belong to.
func (s *LedgerService) syncSnapshot() ([]core.Transaction, ledger.Tombstones, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txs, rev := s.store.Snapshot()
	return txs, maps.Clone(s.tomb), rev
}

// applySync commits the log that was pushed to the remote. Entries appended
// or deleted locally while the sync was in flight are preserved: the current
// log is merged over pushed, so local changes win and new local entries stay
// unsynced. Tombstones in propagated were carried by the push and are
// dropped.
func (s *LedgerService) applySync(ctx context.Context, pushed []core.Transaction, propagated []string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.store.All()
	prevTomb := maps.Clone(s.tomb)

	merged := ledger.Merge(prev, pushed, s.tomb).Transactions
	confirmed := make(map[string]struct{}, len(pushed))
	for _, tx := range pushed {
		confirmed[tx.ID] = struct{}{}
	}
	for i := range merged {
		if _, ok := confirmed[merged[i].ID]; ok {
			merged[i].Synced = true
		}
	}

	if err := s.store.Replace(merged); err != nil {
		return 0, err
	}
	s.tomb.Clear(propagated...)
	if err := s.persistAll(ctx, merged); err != nil {
		s.tomb = prevTomb
		if rerr := s.store.Replace(prev); rerr != nil {
			s.logger.ErrorContext(ctx, "Failed to roll back sync", log.FieldError, rerr)
		}
		return 0, err
	}
	return s.store.Revision(), nil
}

func (s *LedgerService) persistAll(ctx context.Context, txs []core.Transaction) error {
	if err := s.persist.SaveLedger(ctx, txs, s.tomb); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// publish is best effort: the entry is already durable and the periodic
// sync picks it up if the message is lost.
func (s *LedgerService) publish(ctx context.Context, reason string, rev uint64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSyncRequest(ctx, reason, rev); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish sync request",
			"reason", reason, log.FieldRevision, rev, log.FieldError, err)
	}
}
