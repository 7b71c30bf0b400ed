package domain

import (
	"errors"
	"time"
)

// ErrSignalNotFound is returned when no open signal exists for a key
var ErrSignalNotFound = errors.New("low stock signal not found")

// SignalStatus is the lifecycle state of a low-stock signal
type SignalStatus string

const (
	SignalStatusNew          SignalStatus = "new"
	SignalStatusAcknowledged SignalStatus = "acknowledged"
	SignalStatusResolved     SignalStatus = "resolved"
)

// LowStockSignal records that available stock crossed below the minimum
// level for a (location, sku). Derived, not authoritative: it exists only
// so duplicate alerts are suppressed until the shortage is resolved.
type LowStockSignal struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	SignalID     string       `json:"signal_id" gorm:"not null;uniqueIndex"`
	LocationID   string       `json:"location_id" gorm:"not null;index:idx_signal_location_sku"`
	SKU          string       `json:"sku" gorm:"not null;index:idx_signal_location_sku"`
	Available    int          `json:"available" gorm:"not null"`
	MinimumLevel int          `json:"minimum_level" gorm:"not null"`
	Status       SignalStatus `json:"status" gorm:"not null;index"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TableName specifies the table name
func (LowStockSignal) TableName() string {
	return "low_stock_notifications"
}

// SignalRepository defines the contract for low-stock signal data access
type SignalRepository interface {
	Create(signal *LowStockSignal) error
	FindOpenByKey(locationID, sku string) (*LowStockSignal, error)
	FindByStatus(status SignalStatus, limit, offset int) ([]LowStockSignal, error)
	UpdateStatus(signalID string, status SignalStatus) error
	ResolveOpenByKey(locationID, sku string) error
	CountOpen() (int64, error)
}
