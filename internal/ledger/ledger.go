package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/commercefull/stockledger/internal/ledger/domain"
	"github.com/commercefull/stockledger/pkg/logger"
)

// DefaultLockTimeout bounds how long a mutation waits on a contended aggregate
const DefaultLockTimeout = 2 * time.Second

// MutationObserver is notified after every successful ledger mutation.
// Observers run with the aggregate lock still held and must not call back
// into the ledger for the same (location, sku).
type MutationObserver interface {
	LedgerMutated(ctx context.Context, record *domain.StockRecord, entry *domain.LedgerEntry)
}

// StockLedger is the only component allowed to mutate stock quantities.
// Every mutation serializes per (location, sku), writes exactly one ledger
// entry with before/after snapshots, and notifies registered observers.
type StockLedger struct {
	records     domain.StockRepository
	entries     domain.LedgerEntryRepository
	store       domain.MutationStore
	locks       *keyedMutex
	lockTimeout time.Duration
	observers   []MutationObserver
}

// NewStockLedger creates a stock ledger over the given repositories. The
// store writes each mutated record and its audit entry atomically.
func NewStockLedger(records domain.StockRepository, entries domain.LedgerEntryRepository, store domain.MutationStore) *StockLedger {
	return &StockLedger{
		records:     records,
		entries:     entries,
		store:       store,
		locks:       newKeyedMutex(),
		lockTimeout: DefaultLockTimeout,
	}
}

// SetLockTimeout overrides the per-aggregate lock wait bound
func (l *StockLedger) SetLockTimeout(d time.Duration) {
	l.lockTimeout = d
}

// AddObserver registers a mutation observer. Not safe to call once the
// ledger is serving traffic; wire observers during startup.
func (l *StockLedger) AddObserver(o MutationObserver) {
	l.observers = append(l.observers, o)
}

func aggregateKey(locationID, sku string) string {
	return locationID + "\x00" + sku
}

// AdjustOnHand applies a signed on-hand delta for receipts, transfers and
// operator corrections. Reservation lifecycle reasons must go through
// Reserve/Release/Commit instead.
func (l *StockLedger) AdjustOnHand(ctx context.Context, locationID, sku string, delta int, reason domain.Reason, referenceID, referenceType string) (*domain.StockRecord, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("unknown ledger reason %q", reason)
	}
	switch reason {
	case domain.ReasonReserve, domain.ReasonRelease, domain.ReasonCommit:
		return nil, fmt.Errorf("reason %q is reserved for the reservation lifecycle", reason)
	}
	if delta == 0 {
		return nil, fmt.Errorf("delta must be non-zero")
	}

	key := aggregateKey(locationID, sku)
	if !l.locks.Acquire(key, l.lockTimeout) {
		return nil, &domain.LockTimeoutError{LocationID: locationID, SKU: sku, Timeout: l.lockTimeout}
	}
	defer l.locks.Release(key)

	record, err := l.records.FindOrCreate(locationID, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock record: %w", err)
	}

	newOnHand := record.OnHand + delta
	if newOnHand < 0 {
		invErr := &domain.NegativeStockError{
			LocationID: locationID, SKU: sku,
			OnHand: record.OnHand, Reserved: record.Reserved,
			Delta: delta, Reason: reason,
		}
		logger.Error(ctx).
			Str("location_id", locationID).
			Str("sku", sku).
			Int("on_hand", record.OnHand).
			Int("reserved", record.Reserved).
			Int("delta", delta).
			Str("reason", string(reason)).
			Msg("Rejected mutation that would drive on-hand negative")
		return nil, invErr
	}

	before := *record
	record.OnHand = newOnHand
	if newOnHand < record.Reserved {
		if !reason.IsCorrection() {
			invErr := &domain.NegativeStockError{
				LocationID: locationID, SKU: sku,
				OnHand: before.OnHand, Reserved: before.Reserved,
				Delta: delta, Reason: reason,
			}
			logger.Error(ctx).
				Str("location_id", locationID).
				Str("sku", sku).
				Int("on_hand", before.OnHand).
				Int("reserved", before.Reserved).
				Int("delta", delta).
				Str("reason", string(reason)).
				Msg("Rejected mutation that would leave reserved above on-hand")
			return nil, invErr
		}
		// Physical count wins over outstanding holds: clamp reserved down,
		// loudly, so the invariant survives a correction below reserved.
		logger.Error(ctx).
			Str("location_id", locationID).
			Str("sku", sku).
			Int("reserved_before", record.Reserved).
			Int("reserved_after", newOnHand).
			Str("reason", string(reason)).
			Msg("Correction below reserved quantity; clamping reserved")
		record.Reserved = newOnHand
	}

	entry, err := l.persist(ctx, record, &before, delta, reason, referenceID, referenceType)
	if err != nil {
		return nil, err
	}
	l.notify(ctx, record, entry)
	return record, nil
}

// Reserve atomically checks availability and increments the reserved counter.
// The check-and-increment is a single critical section per (location, sku).
func (l *StockLedger) Reserve(ctx context.Context, locationID, sku string, quantity int, referenceID, referenceType string) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	key := aggregateKey(locationID, sku)
	if !l.locks.Acquire(key, l.lockTimeout) {
		return &domain.LockTimeoutError{LocationID: locationID, SKU: sku, Timeout: l.lockTimeout}
	}
	defer l.locks.Release(key)

	record, err := l.records.FindOrCreate(locationID, sku)
	if err != nil {
		return fmt.Errorf("failed to load stock record: %w", err)
	}

	if record.Available() < quantity {
		return &domain.InsufficientStockError{
			LocationID: locationID, SKU: sku,
			Requested: quantity, Available: record.Available(),
		}
	}

	before := *record
	record.Reserved += quantity

	entry, err := l.persist(ctx, record, &before, 0, domain.ReasonReserve, referenceID, referenceType)
	if err != nil {
		return err
	}
	l.notify(ctx, record, entry)
	return nil
}

// Release frees previously reserved units without touching on-hand.
// Releasing past zero is a programming error: logged and clamped.
func (l *StockLedger) Release(ctx context.Context, locationID, sku string, quantity int, referenceID, referenceType string) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	key := aggregateKey(locationID, sku)
	if !l.locks.Acquire(key, l.lockTimeout) {
		return &domain.LockTimeoutError{LocationID: locationID, SKU: sku, Timeout: l.lockTimeout}
	}
	defer l.locks.Release(key)

	record, err := l.records.FindByKey(locationID, sku)
	if err != nil {
		if errors.Is(err, domain.ErrStockRecordNotFound) {
			logger.Error(ctx).
				Str("location_id", locationID).
				Str("sku", sku).
				Int("quantity", quantity).
				Msg("Release for unknown stock record ignored")
			return nil
		}
		return fmt.Errorf("failed to load stock record: %w", err)
	}

	before := *record
	record.Reserved -= quantity
	if record.Reserved < 0 {
		logger.Error(ctx).
			Str("location_id", locationID).
			Str("sku", sku).
			Int("reserved_before", before.Reserved).
			Int("quantity", quantity).
			Msg("Release past zero; clamping reserved")
		record.Reserved = 0
	}

	entry, err := l.persist(ctx, record, &before, 0, domain.ReasonRelease, referenceID, referenceType)
	if err != nil {
		return err
	}
	l.notify(ctx, record, entry)
	return nil
}

// Commit permanently consumes reserved units, decrementing both counters
func (l *StockLedger) Commit(ctx context.Context, locationID, sku string, quantity int, referenceID, referenceType string) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}

	key := aggregateKey(locationID, sku)
	if !l.locks.Acquire(key, l.lockTimeout) {
		return &domain.LockTimeoutError{LocationID: locationID, SKU: sku, Timeout: l.lockTimeout}
	}
	defer l.locks.Release(key)

	record, err := l.records.FindByKey(locationID, sku)
	if err != nil {
		if errors.Is(err, domain.ErrStockRecordNotFound) {
			err = &domain.NegativeStockError{
				LocationID: locationID, SKU: sku,
				Delta: -quantity, Reason: domain.ReasonCommit,
			}
		}
		return err
	}

	if record.Reserved < quantity || record.OnHand < quantity {
		invErr := &domain.NegativeStockError{
			LocationID: locationID, SKU: sku,
			OnHand: record.OnHand, Reserved: record.Reserved,
			Delta: -quantity, Reason: domain.ReasonCommit,
		}
		logger.Error(ctx).
			Str("location_id", locationID).
			Str("sku", sku).
			Int("on_hand", record.OnHand).
			Int("reserved", record.Reserved).
			Int("quantity", quantity).
			Msg("Rejected commit exceeding reserved or on-hand")
		return invErr
	}

	before := *record
	record.OnHand -= quantity
	record.Reserved -= quantity

	entry, err := l.persist(ctx, record, &before, -quantity, domain.ReasonCommit, referenceID, referenceType)
	if err != nil {
		return err
	}
	l.notify(ctx, record, entry)
	return nil
}

// GetAvailable returns the derived available quantity for a key.
// Unknown keys read as zero.
func (l *StockLedger) GetAvailable(ctx context.Context, locationID, sku string) (int, error) {
	record, err := l.records.FindByKey(locationID, sku)
	if err != nil {
		if errors.Is(err, domain.ErrStockRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load stock record: %w", err)
	}
	return record.Available(), nil
}

// GetRecord returns the full stock record for a key
func (l *StockLedger) GetRecord(ctx context.Context, locationID, sku string) (*domain.StockRecord, error) {
	return l.records.FindByKey(locationID, sku)
}

// ListEntries returns the audit trail for a key within a time range
func (l *StockLedger) ListEntries(ctx context.Context, locationID, sku string, from, to time.Time, limit, offset int) ([]domain.LedgerEntry, error) {
	return l.entries.FindByKey(locationID, sku, from, to, limit, offset)
}

// ListRecords returns stock records for the admin view
func (l *StockLedger) ListRecords(ctx context.Context, limit, offset int) ([]domain.StockRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.records.FindAll(limit, offset)
}

// ListBelowMinimum returns records whose available quantity sits below
// their configured minimum level
func (l *StockLedger) ListBelowMinimum(ctx context.Context, limit, offset int) ([]domain.StockRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.records.FindBelowMinimum(limit, offset)
}

// persist writes the mutated record and its audit entry in one transaction.
// Called with the aggregate lock held.
func (l *StockLedger) persist(ctx context.Context, record, before *domain.StockRecord, delta int, reason domain.Reason, referenceID, referenceType string) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{
		EntryID:        uuid.NewString(),
		LocationID:     record.LocationID,
		SKU:            record.SKU,
		Delta:          delta,
		QuantityBefore: before.OnHand,
		QuantityAfter:  record.OnHand,
		ReservedBefore: before.Reserved,
		ReservedAfter:  record.Reserved,
		Reason:         reason,
		ReferenceID:    referenceID,
		ReferenceType:  referenceType,
		CreatedAt:      time.Now(),
	}
	if err := l.store.SaveMutation(record, entry); err != nil {
		logger.Error(ctx).
			Err(err).
			Str("location_id", record.LocationID).
			Str("sku", record.SKU).
			Str("reason", string(reason)).
			Msg("Failed to persist ledger mutation")
		return nil, fmt.Errorf("failed to persist ledger mutation: %w", err)
	}

	logger.Debug(ctx).
		Str("entry_id", entry.EntryID).
		Str("location_id", record.LocationID).
		Str("sku", record.SKU).
		Str("reason", string(reason)).
		Int("delta", delta).
		Int("on_hand", record.OnHand).
		Int("reserved", record.Reserved).
		Msg("Ledger mutation applied")
	return entry, nil
}

func (l *StockLedger) notify(ctx context.Context, record *domain.StockRecord, entry *domain.LedgerEntry) {
	for _, o := range l.observers {
		o.LedgerMutated(ctx, record, entry)
	}
}
