package transfer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	ledgerdomain "github.com/commercefull/stockledger/internal/ledger/domain"
	"github.com/commercefull/stockledger/internal/transfer/domain"
	"github.com/commercefull/stockledger/kafka"
	"github.com/commercefull/stockledger/pkg/logger"
)

// Ledger is the slice of the stock ledger the coordinator drives
type Ledger interface {
	AdjustOnHand(ctx context.Context, locationID, sku string, delta int, reason ledgerdomain.Reason, referenceID, referenceType string) (*ledgerdomain.StockRecord, error)
}

// EventPublisher emits transfer lifecycle events. May be nil.
type EventPublisher interface {
	PublishTransferCompleted(ctx context.Context, event kafka.TransferCompletedEvent) error
}

// Coordinator moves stock between locations as paired ledger mutations:
// transfer-out at the source on initiate, transfer-in at the destination on
// receive. Between the two the units exist in neither ledger, mirroring
// physical goods in shipment; the transfer lines reconcile that window.
type Coordinator struct {
	repo      domain.TransferRepository
	ledger    Ledger
	publisher EventPublisher
}

// NewCoordinator creates a transfer coordinator
func NewCoordinator(repo domain.TransferRepository, ledger Ledger, publisher EventPublisher) *Coordinator {
	return &Coordinator{repo: repo, ledger: ledger, publisher: publisher}
}

// InitiateTransfer creates a transfer and decrements the source location per
// line. A line the source cannot cover is cancelled on the transfer, not
// retried; the remaining lines still ship.
func (c *Coordinator) InitiateTransfer(ctx context.Context, sourceLocationID, destinationLocationID string, lines []domain.LineRequest) (*domain.Transfer, error) {
	if sourceLocationID == "" || destinationLocationID == "" {
		return nil, fmt.Errorf("source and destination locations are required")
	}
	if sourceLocationID == destinationLocationID {
		return nil, fmt.Errorf("source and destination must differ")
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("at least one line is required")
	}
	for _, line := range lines {
		if line.SKU == "" || line.Quantity <= 0 {
			return nil, fmt.Errorf("every line needs a sku and a positive quantity")
		}
	}

	transfer := &domain.Transfer{
		TransferID:            uuid.NewString(),
		SourceLocationID:      sourceLocationID,
		DestinationLocationID: destinationLocationID,
		Status:                domain.StatusPending,
	}
	for _, line := range lines {
		transfer.Lines = append(transfer.Lines, domain.TransferLine{
			TransferID: transfer.TransferID,
			SKU:        line.SKU,
			Quantity:   line.Quantity,
			Status:     domain.LineStatusPending,
		})
	}
	if err := c.repo.Create(transfer); err != nil {
		return nil, fmt.Errorf("failed to create transfer: %w", err)
	}

	shipped := 0
	for i := range transfer.Lines {
		line := &transfer.Lines[i]
		_, err := c.ledger.AdjustOnHand(ctx, sourceLocationID, line.SKU, -line.Quantity,
			ledgerdomain.ReasonTransferOut, transfer.TransferID, "transfer")
		if err != nil {
			logger.Warn(ctx).Err(err).
				Str("transfer_id", transfer.TransferID).
				Str("sku", line.SKU).
				Int("quantity", line.Quantity).
				Msg("Transfer line cancelled; source cannot cover it")
			line.Status = domain.LineStatusCancelled
		} else {
			line.Status = domain.LineStatusShipped
			shipped++
		}
		if err := c.repo.SaveLine(line); err != nil {
			return nil, fmt.Errorf("failed to save transfer line: %w", err)
		}
	}

	if shipped == 0 {
		if _, err := c.repo.UpdateStatus(transfer.TransferID, domain.StatusPending, domain.StatusCancelled); err != nil {
			return nil, fmt.Errorf("failed to cancel empty transfer: %w", err)
		}
		transfer.Status = domain.StatusCancelled
	}

	logger.Info(ctx).
		Str("transfer_id", transfer.TransferID).
		Str("source", sourceLocationID).
		Str("destination", destinationLocationID).
		Int("lines", len(transfer.Lines)).
		Int("shipped", shipped).
		Msg("Transfer initiated")
	return transfer, nil
}

// MarkInTransit records that goods have left the source. Pure status
// transition; no ledger effect.
func (c *Coordinator) MarkInTransit(ctx context.Context, transferID string) (*domain.Transfer, error) {
	transfer, err := c.repo.FindByTransferID(transferID)
	if err != nil {
		return nil, err
	}

	won, err := c.repo.UpdateStatus(transferID, domain.StatusPending, domain.StatusInTransit)
	if err != nil {
		return nil, fmt.Errorf("failed to update transfer status: %w", err)
	}
	if !won {
		return nil, &domain.IllegalTransitionError{
			TransferID: transferID, From: transfer.Status, To: domain.StatusInTransit,
		}
	}

	transfer.Status = domain.StatusInTransit
	logger.Info(ctx).Str("transfer_id", transferID).Msg("Transfer marked in transit")
	return transfer, nil
}

// Receive credits the destination per line. Received may fall short of
// shipped; the shortfall stays on the line as rejected quantity and is
// reported as a discrepancy, never auto-credited back to the source.
func (c *Coordinator) Receive(ctx context.Context, transferID string, receipts []domain.ReceiptLine) (*domain.Transfer, []*domain.TransferLineDiscrepancyError, error) {
	transfer, err := c.repo.FindByTransferID(transferID)
	if err != nil {
		return nil, nil, err
	}
	if transfer.Status != domain.StatusInTransit {
		return nil, nil, &domain.IllegalTransitionError{
			TransferID: transferID, From: transfer.Status, To: domain.StatusCompleted,
		}
	}

	received := make(map[string]int, len(receipts))
	for _, receipt := range receipts {
		received[receipt.SKU] = receipt.ReceivedQuantity
	}

	var discrepancies []*domain.TransferLineDiscrepancyError
	for i := range transfer.Lines {
		line := &transfer.Lines[i]
		if line.Status != domain.LineStatusShipped {
			continue
		}

		quantity, ok := received[line.SKU]
		if !ok {
			return nil, nil, fmt.Errorf("receipt is missing shipped line %s", line.SKU)
		}
		if quantity < 0 || quantity > line.Quantity {
			return nil, nil, fmt.Errorf("received quantity for %s must be between 0 and %d", line.SKU, line.Quantity)
		}

		if quantity > 0 {
			_, err := c.ledger.AdjustOnHand(ctx, transfer.DestinationLocationID, line.SKU, quantity,
				ledgerdomain.ReasonTransferIn, transfer.TransferID, "transfer")
			if err != nil {
				return nil, nil, fmt.Errorf("failed to credit destination for %s: %w", line.SKU, err)
			}
		}

		line.ReceivedQuantity = quantity
		line.RejectedQuantity = line.Quantity - quantity
		line.Status = domain.LineStatusReceived
		if err := c.repo.SaveLine(line); err != nil {
			return nil, nil, fmt.Errorf("failed to save transfer line: %w", err)
		}

		if line.RejectedQuantity > 0 {
			discrepancies = append(discrepancies, &domain.TransferLineDiscrepancyError{
				TransferID: transferID,
				SKU:        line.SKU,
				Shipped:    line.Quantity,
				Received:   quantity,
			})
			logger.Warn(ctx).
				Str("transfer_id", transferID).
				Str("sku", line.SKU).
				Int("shipped", line.Quantity).
				Int("received", quantity).
				Msg("Transfer line short-shipped")
		}
	}

	final := domain.StatusCompleted
	if len(discrepancies) > 0 {
		final = domain.StatusPartiallyReceived
	}
	if _, err := c.repo.UpdateStatus(transferID, domain.StatusInTransit, final); err != nil {
		return nil, nil, fmt.Errorf("failed to finalize transfer: %w", err)
	}
	transfer.Status = final

	logger.Info(ctx).
		Str("transfer_id", transferID).
		Str("status", string(final)).
		Int("discrepancies", len(discrepancies)).
		Msg("Transfer received")

	if c.publisher != nil {
		event := kafka.TransferCompletedEvent{
			TransferID:    transferID,
			SourceID:      transfer.SourceLocationID,
			DestinationID: transfer.DestinationLocationID,
			Partial:       final == domain.StatusPartiallyReceived,
		}
		if err := c.publisher.PublishTransferCompleted(ctx, event); err != nil {
			logger.Warn(ctx).Err(err).
				Str("transfer_id", transferID).
				Msg("Failed to publish transfer completed event")
		}
	}
	return transfer, discrepancies, nil
}

// Cancel abandons a pending transfer before any line has shipped
func (c *Coordinator) Cancel(ctx context.Context, transferID string) (*domain.Transfer, error) {
	transfer, err := c.repo.FindByTransferID(transferID)
	if err != nil {
		return nil, err
	}
	for _, line := range transfer.Lines {
		if line.Status == domain.LineStatusShipped || line.Status == domain.LineStatusReceived {
			return nil, fmt.Errorf("transfer %s has shipped lines and cannot be cancelled", transferID)
		}
	}

	won, err := c.repo.UpdateStatus(transferID, domain.StatusPending, domain.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel transfer: %w", err)
	}
	if !won {
		return nil, &domain.IllegalTransitionError{
			TransferID: transferID, From: transfer.Status, To: domain.StatusCancelled,
		}
	}

	transfer.Status = domain.StatusCancelled
	logger.Info(ctx).Str("transfer_id", transferID).Msg("Transfer cancelled")
	return transfer, nil
}
