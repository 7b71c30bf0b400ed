package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"

	ledgerdomain "github.com/commercefull/stockledger/internal/ledger/domain"
	"github.com/commercefull/stockledger/internal/transfer/domain"
	"github.com/commercefull/stockledger/kafka"
)

type memTransferRepo struct {
	mu        sync.Mutex
	transfers map[string]*domain.Transfer
}

func newMemTransferRepo() *memTransferRepo {
	return &memTransferRepo{transfers: make(map[string]*domain.Transfer)}
}

func (r *memTransferRepo) Create(transfer *domain.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *transfer
	copied.Lines = append([]domain.TransferLine(nil), transfer.Lines...)
	r.transfers[transfer.TransferID] = &copied
	return nil
}

func (r *memTransferRepo) FindByTransferID(transferID string) (*domain.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	transfer, ok := r.transfers[transferID]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	copied := *transfer
	copied.Lines = append([]domain.TransferLine(nil), transfer.Lines...)
	return &copied, nil
}

func (r *memTransferRepo) UpdateStatus(transferID string, from, to domain.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	transfer, ok := r.transfers[transferID]
	if !ok || transfer.Status != from {
		return false, nil
	}
	transfer.Status = to
	return true, nil
}

func (r *memTransferRepo) SaveLine(line *domain.TransferLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	transfer, ok := r.transfers[line.TransferID]
	if !ok {
		return domain.ErrTransferNotFound
	}
	for i := range transfer.Lines {
		if transfer.Lines[i].SKU == line.SKU {
			transfer.Lines[i] = *line
			return nil
		}
	}
	transfer.Lines = append(transfer.Lines, *line)
	return nil
}

// adjustingLedger tracks on-hand per (location, sku) and enforces the
// no-negative invariant the real ledger applies
type adjustingLedger struct {
	mu     sync.Mutex
	onHand map[string]int
	calls  []string
}

func newAdjustingLedger() *adjustingLedger {
	return &adjustingLedger{onHand: make(map[string]int)}
}

func (l *adjustingLedger) seed(locationID, sku string, quantity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onHand[locationID+"/"+sku] = quantity
}

func (l *adjustingLedger) quantity(locationID, sku string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.onHand[locationID+"/"+sku]
}

func (l *adjustingLedger) AdjustOnHand(ctx context.Context, locationID, sku string, delta int, reason ledgerdomain.Reason, referenceID, referenceType string) (*ledgerdomain.StockRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := locationID + "/" + sku
	next := l.onHand[key] + delta
	if next < 0 {
		return nil, &ledgerdomain.NegativeStockError{
			LocationID: locationID, SKU: sku,
			OnHand: l.onHand[key], Delta: delta, Reason: reason,
		}
	}
	l.onHand[key] = next
	l.calls = append(l.calls, string(reason)+":"+key)
	return &ledgerdomain.StockRecord{LocationID: locationID, SKU: sku, OnHand: next}, nil
}

type transferEventRecorder struct {
	mu     sync.Mutex
	events []kafka.TransferCompletedEvent
}

func (p *transferEventRecorder) PublishTransferCompleted(ctx context.Context, event kafka.TransferCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func TestInitiateTransfer_DebitsSource(t *testing.T) {
	repo := newMemTransferRepo()
	stock := newAdjustingLedger()
	stock.seed("wh-1", "SKU-A", 10)
	stock.seed("wh-1", "SKU-B", 4)
	coordinator := NewCoordinator(repo, stock, nil)

	transfer, err := coordinator.InitiateTransfer(context.Background(), "wh-1", "wh-2", []domain.LineRequest{
		{SKU: "SKU-A", Quantity: 6},
		{SKU: "SKU-B", Quantity: 4},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transfer.Status != domain.StatusPending {
		t.Errorf("expected pending status, got %q", transfer.Status)
	}
	for _, line := range transfer.Lines {
		if line.Status != domain.LineStatusShipped {
			t.Errorf("expected line %s shipped, got %q", line.SKU, line.Status)
		}
	}
	if got := stock.quantity("wh-1", "SKU-A"); got != 4 {
		t.Errorf("expected source SKU-A at 4, got %d", got)
	}
	if got := stock.quantity("wh-2", "SKU-A"); got != 0 {
		t.Errorf("destination must not be credited on initiate, got %d", got)
	}
}

func TestInitiateTransfer_UncoverableLineCancelled(t *testing.T) {
	repo := newMemTransferRepo()
	stock := newAdjustingLedger()
	stock.seed("wh-1", "SKU-A", 10)
	stock.seed("wh-1", "SKU-B", 1)
	coordinator := NewCoordinator(repo, stock, nil)

	transfer, err := coordinator.InitiateTransfer(context.Background(), "wh-1", "wh-2", []domain.LineRequest{
		{SKU: "SKU-A", Quantity: 5},
		{SKU: "SKU-B", Quantity: 3},
	})
	if err != nil {
		t.Fatalf("a single uncoverable line must not fail the transfer: %v", err)
	}

	bySKU := make(map[string]domain.TransferLine)
	for _, line := range transfer.Lines {
		bySKU[line.SKU] = line
	}
	if bySKU["SKU-A"].Status != domain.LineStatusShipped {
		t.Errorf("expected SKU-A shipped, got %q", bySKU["SKU-A"].Status)
	}
	if bySKU["SKU-B"].Status != domain.LineStatusCancelled {
		t.Errorf("expected SKU-B cancelled, got %q", bySKU["SKU-B"].Status)
	}
	if got := stock.quantity("wh-1", "SKU-B"); got != 1 {
		t.Errorf("cancelled line must leave source untouched, got %d", got)
	}
}

func TestInitiateTransfer_AllLinesUncoverableCancelsTransfer(t *testing.T) {
	repo := newMemTransferRepo()
	stock := newAdjustingLedger()
	coordinator := NewCoordinator(repo, stock, nil)

	transfer, err := coordinator.InitiateTransfer(context.Background(), "wh-1", "wh-2", []domain.LineRequest{
		{SKU: "SKU-A", Quantity: 5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transfer.Status != domain.StatusCancelled {
		t.Errorf("expected cancelled transfer, got %q", transfer.Status)
	}
}

func TestInitiateTransfer_Validation(t *testing.T) {
	coordinator := NewCoordinator(newMemTransferRepo(), newAdjustingLedger(), nil)
	ctx := context.Background()

	if _, err := coordinator.InitiateTransfer(ctx, "wh-1", "wh-1", []domain.LineRequest{{SKU: "S", Quantity: 1}}); err == nil {
		t.Error("expected error for identical source and destination")
	}
	if _, err := coordinator.InitiateTransfer(ctx, "wh-1", "wh-2", nil); err == nil {
		t.Error("expected error for empty lines")
	}
	if _, err := coordinator.InitiateTransfer(ctx, "wh-1", "wh-2", []domain.LineRequest{{SKU: "S", Quantity: 0}}); err == nil {
		t.Error("expected error for non-positive quantity")
	}
}

func TestReceive_FullReceiptConservesUnits(t *testing.T) {
	repo := newMemTransferRepo()
	stock := newAdjustingLedger()
	stock.seed("wh-1", "SKU-A", 10)
	publisher := &transferEventRecorder{}
	coordinator := NewCoordinator(repo, stock, publisher)
	ctx := context.Background()

	transfer, err := coordinator.InitiateTransfer(ctx, "wh-1", "wh-2", []domain.LineRequest{{SKU: "SKU-A", Quantity: 6}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := coordinator.MarkInTransit(ctx, transfer.TransferID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// In transit: units are in neither location
	if total := stock.quantity("wh-1", "SKU-A") + stock.quantity("wh-2", "SKU-A"); total != 4 {
		t.Errorf("expected 4 units on ledgers during transit, got %d", total)
	}

	received, discrepancies, err := coordinator.Receive(ctx, transfer.TransferID, []domain.ReceiptLine{
		{SKU: "SKU-A", ReceivedQuantity: 6},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(discrepancies) != 0 {
		t.Errorf("expected no discrepancies, got %d", len(discrepancies))
	}
	if received.Status != domain.StatusCompleted {
		t.Errorf("expected completed status, got %q", received.Status)
	}
	if got := stock.quantity("wh-2", "SKU-A"); got != 6 {
		t.Errorf("expected destination credited with 6, got %d", got)
	}
	if total := stock.quantity("wh-1", "SKU-A") + stock.quantity("wh-2", "SKU-A"); total != 10 {
		t.Errorf("units not conserved across the transfer, total %d", total)
	}
	if len(publisher.events) != 1 || publisher.events[0].Partial {
		t.Errorf("expected one non-partial completion event, got %+v", publisher.events)
	}
}

func TestReceive_PartialReceiptRecordsRejection(t *testing.T) {
	repo := newMemTransferRepo()
	stock := newAdjustingLedger()
	stock.seed("wh-1", "SKU-A", 10)
	publisher := &transferEventRecorder{}
	coordinator := NewCoordinator(repo, stock, publisher)
	ctx := context.Background()

	transfer, err := coordinator.InitiateTransfer(ctx, "wh-1", "wh-2", []domain.LineRequest{{SKU: "SKU-A", Quantity: 6}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := coordinator.MarkInTransit(ctx, transfer.TransferID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	received, discrepancies, err := coordinator.Receive(ctx, transfer.TransferID, []domain.ReceiptLine{
		{SKU: "SKU-A", ReceivedQuantity: 4},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.Status != domain.StatusPartiallyReceived {
		t.Errorf("expected partially_received status, got %q", received.Status)
	}
	if len(discrepancies) != 1 {
		t.Fatalf("expected 1 discrepancy, got %d", len(discrepancies))
	}
	if discrepancies[0].Shipped != 6 || discrepancies[0].Received != 4 {
		t.Errorf("unexpected discrepancy detail: %+v", discrepancies[0])
	}

	line := received.Lines[0]
	if line.ReceivedQuantity != 4 || line.RejectedQuantity != 2 {
		t.Errorf("expected received 4 rejected 2, got received %d rejected %d",
			line.ReceivedQuantity, line.RejectedQuantity)
	}

	// The shortfall must not flow back to the source automatically
	if got := stock.quantity("wh-1", "SKU-A"); got != 4 {
		t.Errorf("source must stay at 4, got %d", got)
	}
	if got := stock.quantity("wh-2", "SKU-A"); got != 4 {
		t.Errorf("destination must hold 4, got %d", got)
	}
	if len(publisher.events) != 1 || !publisher.events[0].Partial {
		t.Errorf("expected a partial completion event, got %+v", publisher.events)
	}
}

func TestReceive_RequiresInTransit(t *testing.T) {
	repo := newMemTransferRepo()
	stock := newAdjustingLedger()
	stock.seed("wh-1", "SKU-A", 10)
	coordinator := NewCoordinator(repo, stock, nil)
	ctx := context.Background()

	transfer, err := coordinator.InitiateTransfer(ctx, "wh-1", "wh-2", []domain.LineRequest{{SKU: "SKU-A", Quantity: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = coordinator.Receive(ctx, transfer.TransferID, []domain.ReceiptLine{{SKU: "SKU-A", ReceivedQuantity: 2}})
	var illegal *domain.IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError, got %v", err)
	}
}

func TestReceive_MissingShippedLineRejected(t *testing.T) {
	repo := newMemTransferRepo()
	stock := newAdjustingLedger()
	stock.seed("wh-1", "SKU-A", 10)
	coordinator := NewCoordinator(repo, stock, nil)
	ctx := context.Background()

	transfer, err := coordinator.InitiateTransfer(ctx, "wh-1", "wh-2", []domain.LineRequest{{SKU: "SKU-A", Quantity: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := coordinator.MarkInTransit(ctx, transfer.TransferID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := coordinator.Receive(ctx, transfer.TransferID, nil); err == nil {
		t.Error("expected error for receipt missing a shipped line")
	}
	if _, _, err := coordinator.Receive(ctx, transfer.TransferID, []domain.ReceiptLine{{SKU: "SKU-A", ReceivedQuantity: 3}}); err == nil {
		t.Error("expected error for received above shipped")
	}
}

func TestMarkInTransit_OnlyFromPending(t *testing.T) {
	repo := newMemTransferRepo()
	stock := newAdjustingLedger()
	stock.seed("wh-1", "SKU-A", 10)
	coordinator := NewCoordinator(repo, stock, nil)
	ctx := context.Background()

	transfer, err := coordinator.InitiateTransfer(ctx, "wh-1", "wh-2", []domain.LineRequest{{SKU: "SKU-A", Quantity: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := coordinator.MarkInTransit(ctx, transfer.TransferID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = coordinator.MarkInTransit(ctx, transfer.TransferID)
	var illegal *domain.IllegalTransitionError
	if !errors.As(err, &illegal) {
		t.Fatalf("expected IllegalTransitionError on repeat, got %v", err)
	}
}

func TestCancel_PendingTransfer(t *testing.T) {
	repo := newMemTransferRepo()
	coordinator := NewCoordinator(repo, newAdjustingLedger(), nil)

	// Seed a pending transfer whose lines have not shipped
	seeded := &domain.Transfer{
		TransferID:            "tr-1",
		SourceLocationID:      "wh-1",
		DestinationLocationID: "wh-2",
		Status:                domain.StatusPending,
		Lines: []domain.TransferLine{
			{TransferID: "tr-1", SKU: "SKU-A", Quantity: 2, Status: domain.LineStatusPending},
		},
	}
	if err := repo.Create(seeded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, err := coordinator.Cancel(context.Background(), "tr-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Errorf("expected cancelled status, got %q", cancelled.Status)
	}
}

func TestCancel_RejectedOnceShipped(t *testing.T) {
	repo := newMemTransferRepo()
	stock := newAdjustingLedger()
	stock.seed("wh-1", "SKU-A", 10)
	coordinator := NewCoordinator(repo, stock, nil)
	ctx := context.Background()

	transfer, err := coordinator.InitiateTransfer(ctx, "wh-1", "wh-2", []domain.LineRequest{{SKU: "SKU-A", Quantity: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := coordinator.Cancel(ctx, transfer.TransferID); err == nil {
		t.Error("expected cancel of shipped transfer to fail")
	}
}

func TestReceive_UnknownTransfer(t *testing.T) {
	coordinator := NewCoordinator(newMemTransferRepo(), newAdjustingLedger(), nil)

	_, _, err := coordinator.Receive(context.Background(), "tr-404", nil)
	if !errors.Is(err, domain.ErrTransferNotFound) {
		t.Fatalf("expected ErrTransferNotFound, got %v", err)
	}
}
