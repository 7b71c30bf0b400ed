package domain

import (
	"errors"
	"fmt"
)

// ErrTransferNotFound is returned when no transfer exists for an ID
var ErrTransferNotFound = errors.New("transfer not found")

// TransferLineDiscrepancyError records a received-vs-shipped shortfall on a
// line. Non-fatal: the transfer still completes; reconciliation raises an
// explicit adjustment against the source ledger if warranted.
type TransferLineDiscrepancyError struct {
	TransferID string
	SKU        string
	Shipped    int
	Received   int
}

func (e *TransferLineDiscrepancyError) Error() string {
	return fmt.Sprintf("transfer %s line %s short-shipped: shipped %d, received %d",
		e.TransferID, e.SKU, e.Shipped, e.Received)
}

// IllegalTransitionError is returned when a status change is not permitted
// by the transfer state machine
type IllegalTransitionError struct {
	TransferID string
	From       Status
	To         Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("transfer %s cannot move from %s to %s", e.TransferID, e.From, e.To)
}
