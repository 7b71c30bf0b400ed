package domain

import "time"

// State is the lifecycle state of a reservation
type State string

const (
	StateActive    State = "active"
	StateCommitted State = "committed"
	StateReleased  State = "released"
	StateExpired   State = "expired"
)

// CanTransitionTo reports whether the state machine permits the move.
// Only active reservations move; committed/released/expired are terminal.
func (s State) CanTransitionTo(to State) bool {
	if s != StateActive {
		return false
	}
	switch to {
	case StateCommitted, StateReleased, StateExpired:
		return true
	}
	return false
}

// Kind classifies who owns the hold
type Kind string

const (
	KindCart   Kind = "cart"
	KindOrder  Kind = "order"
	KindManual Kind = "manual"
)

// Line is one (location, sku, quantity) leg of a reservation request
type Line struct {
	LocationID string `json:"location_id"`
	SKU        string `json:"sku"`
	Quantity   int    `json:"quantity"`
}

// Reservation is a temporary hold of stock owned by an external reference
// (cart, order). At most one active reservation exists per
// (reference_id, reference_type, sku, location_id); the partial unique
// index enforces it across writers.
type Reservation struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	ReservationID string     `json:"reservation_id" gorm:"not null;uniqueIndex"`
	LocationID    string     `json:"location_id" gorm:"not null;index:idx_reservation_reference;uniqueIndex:uniq_active_reservation_line,where:state = 'active'"`
	SKU           string     `json:"sku" gorm:"not null;index:idx_reservation_reference;uniqueIndex:uniq_active_reservation_line"`
	Quantity      int        `json:"quantity" gorm:"not null"`
	Kind          Kind       `json:"kind" gorm:"not null"`
	ReferenceID   string     `json:"reference_id" gorm:"not null;index:idx_reservation_reference;uniqueIndex:uniq_active_reservation_line"`
	ReferenceType string     `json:"reference_type" gorm:"not null;index:idx_reservation_reference;uniqueIndex:uniq_active_reservation_line"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	State         State      `json:"state" gorm:"not null;index"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName specifies the table name
func (Reservation) TableName() string {
	return "stock_reservations"
}

// ReservationRepository defines the contract for reservation data access.
// TransitionState is the mutual-exclusion guard: it succeeds for exactly one
// caller when a commit races an expiry on the same reservation. Reactivate
// is the compensation path: it undoes a transition whose ledger call failed,
// returning the row to active so a later commit, release or sweep retries it.
type ReservationRepository interface {
	Create(reservation *Reservation) error
	FindActiveByReference(referenceID, referenceType string) ([]Reservation, error)
	FindByReference(referenceID, referenceType string) ([]Reservation, error)
	FindExpired(now time.Time, limit int) ([]Reservation, error)
	TransitionState(reservationID string, from, to State) (bool, error)
	Reactivate(reservationID string, from State) (bool, error)
	CountActive() (int64, error)
}
