package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/commercefull/stockledger/internal/transfer/domain"
)

type GormTransferRepository struct {
	db *gorm.DB
}

func NewGormTransferRepository(db *gorm.DB) *GormTransferRepository {
	return &GormTransferRepository{db: db}
}

func (r *GormTransferRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Transfer{}, &domain.TransferLine{})
}

func (r *GormTransferRepository) Create(transfer *domain.Transfer) error {
	return r.db.Create(transfer).Error
}

func (r *GormTransferRepository) FindByTransferID(transferID string) (*domain.Transfer, error) {
	var transfer domain.Transfer
	err := r.db.Preload("Lines").Where("transfer_id = ?", transferID).First(&transfer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

// UpdateStatus moves a transfer between states as a single conditional
// update; rows-affected tells the caller whether the transition happened.
func (r *GormTransferRepository) UpdateStatus(transferID string, from, to domain.Status) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, nil
	}
	res := r.db.Model(&domain.Transfer{}).
		Where("transfer_id = ? AND status = ?", transferID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormTransferRepository) SaveLine(line *domain.TransferLine) error {
	return r.db.Save(line).Error
}
