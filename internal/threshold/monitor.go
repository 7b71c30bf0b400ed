package threshold

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	ledgerdomain "github.com/commercefull/stockledger/internal/ledger/domain"
	"github.com/commercefull/stockledger/internal/threshold/domain"
	"github.com/commercefull/stockledger/kafka"
	"github.com/commercefull/stockledger/pkg/logger"
)

// EventPublisher emits low stock events. May be nil.
type EventPublisher interface {
	PublishLowStockCrossed(ctx context.Context, event kafka.LowStockCrossedEvent) error
}

// Monitor observes ledger mutations and raises deduplicated low-stock
// signals. It owns no replenishment logic: resolution is just the same
// comparison going the other way after stock comes back.
type Monitor struct {
	signals   domain.SignalRepository
	publisher EventPublisher
}

// NewMonitor creates a threshold monitor
func NewMonitor(signals domain.SignalRepository, publisher EventPublisher) *Monitor {
	return &Monitor{signals: signals, publisher: publisher}
}

// LedgerMutated implements the ledger observer contract. On a downward
// crossing it upserts a signal in "new" state unless one is already open
// for the key; once available recovers, open signals resolve.
func (m *Monitor) LedgerMutated(ctx context.Context, record *ledgerdomain.StockRecord, entry *ledgerdomain.LedgerEntry) {
	if record.MinimumStockLevel <= 0 {
		return
	}

	available := record.Available()
	if available >= record.MinimumStockLevel {
		if err := m.signals.ResolveOpenByKey(record.LocationID, record.SKU); err != nil {
			logger.Error(ctx).Err(err).
				Str("location_id", record.LocationID).
				Str("sku", record.SKU).
				Msg("Failed to resolve low stock signal")
		}
		return
	}

	_, err := m.signals.FindOpenByKey(record.LocationID, record.SKU)
	if err == nil {
		// Signal already open; suppress the duplicate.
		return
	}
	if !errors.Is(err, domain.ErrSignalNotFound) {
		logger.Error(ctx).Err(err).
			Str("location_id", record.LocationID).
			Str("sku", record.SKU).
			Msg("Failed to look up low stock signal")
		return
	}

	signal := &domain.LowStockSignal{
		SignalID:     uuid.NewString(),
		LocationID:   record.LocationID,
		SKU:          record.SKU,
		Available:    available,
		MinimumLevel: record.MinimumStockLevel,
		Status:       domain.SignalStatusNew,
	}
	if err := m.signals.Create(signal); err != nil {
		logger.Error(ctx).Err(err).
			Str("location_id", record.LocationID).
			Str("sku", record.SKU).
			Msg("Failed to create low stock signal")
		return
	}

	logger.Warn(ctx).
		Str("location_id", record.LocationID).
		Str("sku", record.SKU).
		Int("available", available).
		Int("minimum", record.MinimumStockLevel).
		Msg("Available stock crossed below minimum level")

	if m.publisher != nil {
		event := kafka.LowStockCrossedEvent{
			SignalID:   signal.SignalID,
			LocationID: record.LocationID,
			SKU:        record.SKU,
			Available:  available,
			Minimum:    record.MinimumStockLevel,
		}
		if err := m.publisher.PublishLowStockCrossed(ctx, event); err != nil {
			logger.Warn(ctx).Err(err).
				Str("signal_id", signal.SignalID).
				Msg("Failed to publish low stock event")
		}
	}
}

// Acknowledge marks a signal as seen by an operator; the key stays deduped
func (m *Monitor) Acknowledge(ctx context.Context, signalID string) error {
	if signalID == "" {
		return fmt.Errorf("signal_id is required")
	}
	if err := m.signals.UpdateStatus(signalID, domain.SignalStatusAcknowledged); err != nil {
		return fmt.Errorf("failed to acknowledge signal: %w", err)
	}
	return nil
}

// Resolve closes a signal, re-arming alerts for its key
func (m *Monitor) Resolve(ctx context.Context, signalID string) error {
	if signalID == "" {
		return fmt.Errorf("signal_id is required")
	}
	if err := m.signals.UpdateStatus(signalID, domain.SignalStatusResolved); err != nil {
		return fmt.Errorf("failed to resolve signal: %w", err)
	}
	return nil
}

// ListOpen returns current unresolved signals for the admin view
func (m *Monitor) ListOpen(ctx context.Context, limit, offset int) ([]domain.LowStockSignal, error) {
	if limit <= 0 {
		limit = 50
	}
	newSignals, err := m.signals.FindByStatus(domain.SignalStatusNew, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	acked, err := m.signals.FindByStatus(domain.SignalStatusAcknowledged, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	return append(newSignals, acked...), nil
}
