package domain

import (
	"encoding/json"
	"time"
)

// StockStatus classifies the sellability of a stock record
type StockStatus string

const (
	StockStatusAvailable  StockStatus = "available"
	StockStatusQuarantine StockStatus = "quarantine"
	StockStatusExpired    StockStatus = "expired"
	StockStatusPending    StockStatus = "pending"
)

// StockRecord is the authoritative quantity record for one (location, sku) pair.
// OnHand and Reserved are mutated by the StockLedger only; Available is always
// derived from the two counters and never stored.
type StockRecord struct {
	ID                uint        `json:"id" gorm:"primaryKey"`
	LocationID        string      `json:"location_id" gorm:"not null;index:idx_stock_location_sku,unique"`
	BinID             *string     `json:"bin_id,omitempty"`
	SKU               string      `json:"sku" gorm:"not null;index:idx_stock_location_sku,unique"`
	OnHand            int         `json:"on_hand" gorm:"not null;default:0"`
	Reserved          int         `json:"reserved" gorm:"not null;default:0"`
	MinimumStockLevel int         `json:"minimum_stock_level" gorm:"not null;default:0"`
	MaximumStockLevel int         `json:"maximum_stock_level" gorm:"not null;default:0"`
	LotNumber         *string     `json:"lot_number,omitempty"`
	SerialNumber      *string     `json:"serial_number,omitempty"`
	ExpiryDate        *time.Time  `json:"expiry_date,omitempty"`
	Status            StockStatus `json:"status" gorm:"not null;default:'available'"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// TableName specifies the table name
func (StockRecord) TableName() string {
	return "stock_records"
}

// Available returns the quantity free to promise. Never negative.
func (r *StockRecord) Available() int {
	available := r.OnHand - r.Reserved
	if available < 0 {
		return 0
	}
	return available
}

// MarshalJSON includes the derived available quantity in API output
func (r *StockRecord) MarshalJSON() ([]byte, error) {
	type alias StockRecord
	return json.Marshal(struct {
		*alias
		Available int `json:"available"`
	}{
		alias:     (*alias)(r),
		Available: r.Available(),
	})
}

// StockRepository defines the contract for stock record data access
type StockRepository interface {
	FindByKey(locationID, sku string) (*StockRecord, error)
	FindOrCreate(locationID, sku string) (*StockRecord, error)
	Save(record *StockRecord) error
	FindAll(limit, offset int) ([]StockRecord, error)
	FindBelowMinimum(limit, offset int) ([]StockRecord, error)
}

// MutationStore persists a mutated stock record together with its audit
// entry. The two writes commit or fail as one so a saved record can never
// exist without its ledger entry.
type MutationStore interface {
	SaveMutation(record *StockRecord, entry *LedgerEntry) error
}
