package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrStockRecordNotFound is returned when no stock record exists for a key
var ErrStockRecordNotFound = errors.New("stock record not found")

// InsufficientStockError is returned when a reservation asks for more units
// than are available. Recoverable: the caller surfaces "out of stock".
type InsufficientStockError struct {
	LocationID string
	SKU        string
	Requested  int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s at %s: requested %d, available %d",
		e.SKU, e.LocationID, e.Requested, e.Available)
}

// NegativeStockError is returned when a mutation would violate the
// 0 <= reserved <= on-hand invariant. Always a bug in the caller.
type NegativeStockError struct {
	LocationID string
	SKU        string
	OnHand     int
	Reserved   int
	Delta      int
	Reason     Reason
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("mutation would violate stock invariant for %s at %s: on_hand=%d reserved=%d delta=%d reason=%s",
		e.SKU, e.LocationID, e.OnHand, e.Reserved, e.Delta, e.Reason)
}

// LockTimeoutError is returned when the per-aggregate lock could not be
// acquired in time. Transient: the caller retries with backoff.
type LockTimeoutError struct {
	LocationID string
	SKU        string
	Timeout    time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for stock lock on %s at %s",
		e.Timeout, e.SKU, e.LocationID)
}
