package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/commercefull/stockledger/internal/reservation/domain"
)

type GormReservationRepository struct {
	db *gorm.DB
}

func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.Reservation{})
}

func (r *GormReservationRepository) Create(reservation *domain.Reservation) error {
	if err := r.db.Create(reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateActiveLine
		}
		return err
	}
	return nil
}

func (r *GormReservationRepository) FindActiveByReference(referenceID, referenceType string) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	err := r.db.
		Where("reference_id = ? AND reference_type = ? AND state = ?",
			referenceID, referenceType, domain.StateActive).
		Find(&reservations).Error
	return reservations, err
}

func (r *GormReservationRepository) FindByReference(referenceID, referenceType string) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	err := r.db.
		Where("reference_id = ? AND reference_type = ?", referenceID, referenceType).
		Find(&reservations).Error
	return reservations, err
}

func (r *GormReservationRepository) FindExpired(now time.Time, limit int) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	err := r.db.
		Where("state = ? AND expires_at IS NOT NULL AND expires_at < ?", domain.StateActive, now).
		Limit(limit).
		Find(&reservations).Error
	return reservations, err
}

// CountActive reports how many reservation lines currently hold stock
func (r *GormReservationRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&domain.Reservation{}).
		Where("state = ?", domain.StateActive).
		Count(&count).Error
	return count, err
}

// TransitionState flips a reservation from one state to another as a single
// conditional update. Rows-affected tells the caller whether it won the race.
func (r *GormReservationRepository) TransitionState(reservationID string, from, to domain.State) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, nil
	}
	res := r.db.Model(&domain.Reservation{}).
		Where("reservation_id = ? AND state = ?", reservationID, from).
		Update("state", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Reactivate returns a reservation to active after a failed ledger call.
// Compensation only; forward moves go through TransitionState.
func (r *GormReservationRepository) Reactivate(reservationID string, from domain.State) (bool, error) {
	res := r.db.Model(&domain.Reservation{}).
		Where("reservation_id = ? AND state = ?", reservationID, from).
		Update("state", domain.StateActive)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
