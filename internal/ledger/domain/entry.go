package domain

import "time"

// Reason classifies a ledger mutation
type Reason string

const (
	ReasonReceive         Reason = "receive"
	ReasonReserve         Reason = "reserve"
	ReasonRelease         Reason = "release"
	ReasonCommit          Reason = "commit"
	ReasonTransferOut     Reason = "transfer-out"
	ReasonTransferIn      Reason = "transfer-in"
	ReasonAdjustment      Reason = "adjustment"
	ReasonCountCorrection Reason = "count-correction"
)

// IsCorrection reports whether the reason is an operator correction,
// which is permitted to apply an arbitrary signed on-hand delta.
func (r Reason) IsCorrection() bool {
	return r == ReasonAdjustment || r == ReasonCountCorrection
}

// Valid reports whether the reason is a known mutation reason
func (r Reason) Valid() bool {
	switch r {
	case ReasonReceive, ReasonReserve, ReasonRelease, ReasonCommit,
		ReasonTransferOut, ReasonTransferIn, ReasonAdjustment, ReasonCountCorrection:
		return true
	}
	return false
}

// LedgerEntry is an immutable audit record of a single ledger mutation.
// Delta is the signed on-hand change; reservation-only mutations carry a zero
// delta so that the delta sum for a (location, sku) pair always replays to the
// current on-hand quantity. Before/after snapshots cover both counters.
type LedgerEntry struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	EntryID        string    `json:"entry_id" gorm:"not null;uniqueIndex"`
	LocationID     string    `json:"location_id" gorm:"not null;index:idx_entry_location_sku"`
	SKU            string    `json:"sku" gorm:"not null;index:idx_entry_location_sku"`
	Delta          int       `json:"delta" gorm:"not null"`
	QuantityBefore int       `json:"quantity_before" gorm:"not null"`
	QuantityAfter  int       `json:"quantity_after" gorm:"not null"`
	ReservedBefore int       `json:"reserved_before" gorm:"not null"`
	ReservedAfter  int       `json:"reserved_after" gorm:"not null"`
	Reason         Reason    `json:"reason" gorm:"not null"`
	ReferenceID    string    `json:"reference_id"`
	ReferenceType  string    `json:"reference_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// LedgerEntryRepository defines the contract for the append-only audit trail
type LedgerEntryRepository interface {
	Append(entry *LedgerEntry) error
	FindByKey(locationID, sku string, from, to time.Time, limit, offset int) ([]LedgerEntry, error)
	SumDeltas(locationID, sku string) (int, error)
}
