package repository

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/commercefull/stockledger/internal/ledger/domain"
)

var tracer = otel.Tracer("ledger-repository")

// GormStockRepositoryWithTracing wraps GormStockRepository with tracing
type GormStockRepositoryWithTracing struct {
	*GormStockRepository
}

// NewGormStockRepositoryWithTracing creates a stock repository with tracing
func NewGormStockRepositoryWithTracing(db *gorm.DB) *GormStockRepositoryWithTracing {
	return &GormStockRepositoryWithTracing{GormStockRepository: NewGormStockRepository(db)}
}

// FindByKeyWithContext traces FindByKey
func (r *GormStockRepositoryWithTracing) FindByKeyWithContext(ctx context.Context, locationID, sku string) (*domain.StockRecord, error) {
	_, span := tracer.Start(ctx, "repository.FindByKey",
		trace.WithAttributes(
			attribute.String("stock.location_id", locationID),
			attribute.String("stock.sku", sku),
		),
	)
	defer span.End()

	record, err := r.GormStockRepository.FindByKey(locationID, sku)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("stock.on_hand", record.OnHand),
		attribute.Int("stock.reserved", record.Reserved),
	)
	return record, nil
}

// SaveWithContext traces Save
func (r *GormStockRepositoryWithTracing) SaveWithContext(ctx context.Context, record *domain.StockRecord) error {
	_, span := tracer.Start(ctx, "repository.Save",
		trace.WithAttributes(
			attribute.String("stock.location_id", record.LocationID),
			attribute.String("stock.sku", record.SKU),
		),
	)
	defer span.End()

	if err := r.GormStockRepository.Save(record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(
		attribute.Int("stock.on_hand", record.OnHand),
		attribute.Int("stock.reserved", record.Reserved),
	)
	return nil
}

// GormMutationStoreWithTracing wraps GormMutationStore with tracing
type GormMutationStoreWithTracing struct {
	*GormMutationStore
}

// NewGormMutationStoreWithTracing creates a mutation store with tracing
func NewGormMutationStoreWithTracing(db *gorm.DB) *GormMutationStoreWithTracing {
	return &GormMutationStoreWithTracing{GormMutationStore: NewGormMutationStore(db)}
}

// SaveMutationWithContext traces SaveMutation
func (s *GormMutationStoreWithTracing) SaveMutationWithContext(ctx context.Context, record *domain.StockRecord, entry *domain.LedgerEntry) error {
	_, span := tracer.Start(ctx, "repository.SaveMutation",
		trace.WithAttributes(
			attribute.String("stock.location_id", record.LocationID),
			attribute.String("stock.sku", record.SKU),
			attribute.String("entry.reason", string(entry.Reason)),
		),
	)
	defer span.End()

	if err := s.GormMutationStore.SaveMutation(record, entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetAttributes(
		attribute.Int("stock.on_hand", record.OnHand),
		attribute.Int("stock.reserved", record.Reserved),
	)
	return nil
}

// GormLedgerEntryRepositoryWithTracing wraps GormLedgerEntryRepository with tracing
type GormLedgerEntryRepositoryWithTracing struct {
	*GormLedgerEntryRepository
}

// NewGormLedgerEntryRepositoryWithTracing creates an entry repository with tracing
func NewGormLedgerEntryRepositoryWithTracing(db *gorm.DB) *GormLedgerEntryRepositoryWithTracing {
	return &GormLedgerEntryRepositoryWithTracing{GormLedgerEntryRepository: NewGormLedgerEntryRepository(db)}
}

// AppendWithContext traces Append
func (r *GormLedgerEntryRepositoryWithTracing) AppendWithContext(ctx context.Context, entry *domain.LedgerEntry) error {
	_, span := tracer.Start(ctx, "repository.Append",
		trace.WithAttributes(
			attribute.String("stock.location_id", entry.LocationID),
			attribute.String("stock.sku", entry.SKU),
		),
	)
	defer span.End()

	span.SetAttributes(
		attribute.String("entry.reason", string(entry.Reason)),
		attribute.Int("entry.delta", entry.Delta),
	)

	if err := r.GormLedgerEntryRepository.Append(entry); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// FindByKeyWithContext traces FindByKey
func (r *GormLedgerEntryRepositoryWithTracing) FindByKeyWithContext(ctx context.Context, locationID, sku string, from, to time.Time, limit, offset int) ([]domain.LedgerEntry, error) {
	_, span := tracer.Start(ctx, "repository.FindEntries",
		trace.WithAttributes(
			attribute.String("stock.location_id", locationID),
			attribute.String("stock.sku", sku),
		),
	)
	defer span.End()

	entries, err := r.GormLedgerEntryRepository.FindByKey(locationID, sku, from, to, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(entries)))
	return entries, nil
}
