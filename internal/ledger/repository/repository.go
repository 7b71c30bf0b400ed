package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/commercefull/stockledger/internal/ledger/domain"
)

type GormStockRepository struct {
	db *gorm.DB
}

func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

func (r *GormStockRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.StockRecord{}, &domain.LedgerEntry{})
}

func (r *GormStockRepository) FindByKey(locationID, sku string) (*domain.StockRecord, error) {
	var record domain.StockRecord
	err := r.db.Where("location_id = ? AND sku = ?", locationID, sku).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStockRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *GormStockRepository) FindOrCreate(locationID, sku string) (*domain.StockRecord, error) {
	record, err := r.FindByKey(locationID, sku)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, domain.ErrStockRecordNotFound) {
		return nil, err
	}

	record = &domain.StockRecord{
		LocationID: locationID,
		SKU:        sku,
		Status:     domain.StockStatusAvailable,
	}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error; err != nil {
		return nil, err
	}
	// A concurrent creator may have won the conflict; re-read either way.
	return r.FindByKey(locationID, sku)
}

func (r *GormStockRepository) Save(record *domain.StockRecord) error {
	return r.db.Save(record).Error
}

func (r *GormStockRepository) FindAll(limit, offset int) ([]domain.StockRecord, error) {
	var records []domain.StockRecord
	err := r.db.Limit(limit).Offset(offset).Find(&records).Error
	return records, err
}

func (r *GormStockRepository) FindBelowMinimum(limit, offset int) ([]domain.StockRecord, error) {
	var records []domain.StockRecord
	err := r.db.
		Where("minimum_stock_level > 0 AND on_hand - reserved < minimum_stock_level").
		Limit(limit).Offset(offset).
		Find(&records).Error
	return records, err
}

// GormMutationStore writes a stock record and its ledger entry in a single
// transaction, keeping the audit stream in step with the counters.
type GormMutationStore struct {
	db *gorm.DB
}

func NewGormMutationStore(db *gorm.DB) *GormMutationStore {
	return &GormMutationStore{db: db}
}

func (s *GormMutationStore) SaveMutation(record *domain.StockRecord, entry *domain.LedgerEntry) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(record).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

type GormLedgerEntryRepository struct {
	db *gorm.DB
}

func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

func (r *GormLedgerEntryRepository) Append(entry *domain.LedgerEntry) error {
	return r.db.Create(entry).Error
}

func (r *GormLedgerEntryRepository) FindByKey(locationID, sku string, from, to time.Time, limit, offset int) ([]domain.LedgerEntry, error) {
	q := r.db.Where("location_id = ? AND sku = ?", locationID, sku)
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", to)
	}

	var entries []domain.LedgerEntry
	err := q.Order("id ASC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, err
}

func (r *GormLedgerEntryRepository) SumDeltas(locationID, sku string) (int, error) {
	var sum *int
	err := r.db.Model(&domain.LedgerEntry{}).
		Where("location_id = ? AND sku = ?", locationID, sku).
		Select("SUM(delta)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
