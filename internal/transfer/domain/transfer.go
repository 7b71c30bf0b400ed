package domain

import "time"

// Status is the lifecycle state of a transfer
type Status string

const (
	StatusPending           Status = "pending"
	StatusInTransit         Status = "in_transit"
	StatusCompleted         Status = "completed"
	StatusPartiallyReceived Status = "partially_received"
	StatusCancelled         Status = "cancelled"
)

// CanTransitionTo reports whether the state machine permits the move
func (s Status) CanTransitionTo(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusInTransit || to == StatusCancelled
	case StatusInTransit:
		return to == StatusCompleted || to == StatusPartiallyReceived
	}
	return false
}

// LineStatus is the lifecycle state of a single transfer line
type LineStatus string

const (
	LineStatusPending   LineStatus = "pending"
	LineStatusShipped   LineStatus = "shipped"
	LineStatusReceived  LineStatus = "received"
	LineStatusCancelled LineStatus = "cancelled"
)

// Transfer is a request to move stock between two locations. While
// in transit the units exist in neither ledger; the lines below are the
// reconciliation record for that window.
type Transfer struct {
	ID                    uint           `json:"id" gorm:"primaryKey"`
	TransferID            string         `json:"transfer_id" gorm:"not null;uniqueIndex"`
	SourceLocationID      string         `json:"source_location_id" gorm:"not null;index"`
	DestinationLocationID string         `json:"destination_location_id" gorm:"not null;index"`
	Status                Status         `json:"status" gorm:"not null"`
	Lines                 []TransferLine `json:"lines" gorm:"foreignKey:TransferID;references:TransferID"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// TableName specifies the table name
func (Transfer) TableName() string {
	return "inventory_transfers"
}

// TransferLine mirrors one SKU of a transfer with its shipped, received and
// rejected counts. A shortfall on receipt stays on the line; it never
// re-credits the source automatically.
type TransferLine struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	TransferID       string     `json:"transfer_id" gorm:"not null;index"`
	SKU              string     `json:"sku" gorm:"not null"`
	Quantity         int        `json:"quantity" gorm:"not null"`
	ReceivedQuantity int        `json:"received_quantity" gorm:"not null;default:0"`
	RejectedQuantity int        `json:"rejected_quantity" gorm:"not null;default:0"`
	Status           LineStatus `json:"status" gorm:"not null"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName specifies the table name
func (TransferLine) TableName() string {
	return "inventory_transfer_lines"
}

// LineRequest is one SKU leg of an initiate request
type LineRequest struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// ReceiptLine is one SKU leg of a receive request
type ReceiptLine struct {
	SKU              string `json:"sku"`
	ReceivedQuantity int    `json:"received_quantity"`
}

// TransferRepository defines the contract for transfer data access
type TransferRepository interface {
	Create(transfer *Transfer) error
	FindByTransferID(transferID string) (*Transfer, error)
	UpdateStatus(transferID string, from, to Status) (bool, error)
	SaveLine(line *TransferLine) error
}
