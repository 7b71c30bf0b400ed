package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/commercefull/stockledger/internal/threshold/domain"
)

type GormSignalRepository struct {
	db *gorm.DB
}

func NewGormSignalRepository(db *gorm.DB) *GormSignalRepository {
	return &GormSignalRepository{db: db}
}

func (r *GormSignalRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.LowStockSignal{})
}

func (r *GormSignalRepository) Create(signal *domain.LowStockSignal) error {
	return r.db.Create(signal).Error
}

// FindOpenByKey returns the new or acknowledged signal for a key, if any
func (r *GormSignalRepository) FindOpenByKey(locationID, sku string) (*domain.LowStockSignal, error) {
	var signal domain.LowStockSignal
	err := r.db.
		Where("location_id = ? AND sku = ? AND status IN ?",
			locationID, sku, []domain.SignalStatus{domain.SignalStatusNew, domain.SignalStatusAcknowledged}).
		First(&signal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSignalNotFound
		}
		return nil, err
	}
	return &signal, nil
}

func (r *GormSignalRepository) FindByStatus(status domain.SignalStatus, limit, offset int) ([]domain.LowStockSignal, error) {
	var signals []domain.LowStockSignal
	err := r.db.Where("status = ?", status).Limit(limit).Offset(offset).Find(&signals).Error
	return signals, err
}

func (r *GormSignalRepository) UpdateStatus(signalID string, status domain.SignalStatus) error {
	return r.db.Model(&domain.LowStockSignal{}).
		Where("signal_id = ?", signalID).
		Update("status", status).Error
}

// CountOpen reports how many signals are in new or acknowledged state
func (r *GormSignalRepository) CountOpen() (int64, error) {
	var count int64
	err := r.db.Model(&domain.LowStockSignal{}).
		Where("status IN ?", []domain.SignalStatus{domain.SignalStatusNew, domain.SignalStatusAcknowledged}).
		Count(&count).Error
	return count, err
}

// ResolveOpenByKey resolves any open signal for a key
func (r *GormSignalRepository) ResolveOpenByKey(locationID, sku string) error {
	return r.db.Model(&domain.LowStockSignal{}).
		Where("location_id = ? AND sku = ? AND status IN ?",
			locationID, sku, []domain.SignalStatus{domain.SignalStatusNew, domain.SignalStatusAcknowledged}).
		Update("status", domain.SignalStatusResolved).Error
}
