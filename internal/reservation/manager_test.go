package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	ledgerdomain "github.com/commercefull/stockledger/internal/ledger/domain"
	"github.com/commercefull/stockledger/internal/reservation/domain"
	"github.com/commercefull/stockledger/kafka"
)

type memReservationRepo struct {
	mu             sync.Mutex
	reservations   []domain.Reservation
	createErrFor   string
	dupErrFor      string
	hideActiveOnce bool
}

func (r *memReservationRepo) Create(reservation *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErrFor != "" && reservation.SKU == r.createErrFor {
		return fmt.Errorf("storage unavailable")
	}
	if r.dupErrFor != "" && reservation.SKU == r.dupErrFor {
		r.dupErrFor = ""
		return domain.ErrDuplicateActiveLine
	}
	reservation.ID = uint(len(r.reservations) + 1)
	r.reservations = append(r.reservations, *reservation)
	return nil
}

func (r *memReservationRepo) FindActiveByReference(referenceID, referenceType string) ([]domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hideActiveOnce {
		// Simulates the stale read another process sees just before the
		// unique index rejects its insert.
		r.hideActiveOnce = false
		return nil, nil
	}
	var out []domain.Reservation
	for _, res := range r.reservations {
		if res.ReferenceID == referenceID && res.ReferenceType == referenceType && res.State == domain.StateActive {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *memReservationRepo) FindByReference(referenceID, referenceType string) ([]domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Reservation
	for _, res := range r.reservations {
		if res.ReferenceID == referenceID && res.ReferenceType == referenceType {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *memReservationRepo) FindExpired(now time.Time, limit int) ([]domain.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Reservation
	for _, res := range r.reservations {
		if res.State == domain.StateActive && res.ExpiresAt != nil && res.ExpiresAt.Before(now) {
			out = append(out, res)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memReservationRepo) TransitionState(reservationID string, from, to domain.State) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.reservations {
		if r.reservations[i].ReservationID == reservationID && r.reservations[i].State == from {
			r.reservations[i].State = to
			return true, nil
		}
	}
	return false, nil
}

func (r *memReservationRepo) Reactivate(reservationID string, from domain.State) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.reservations {
		if r.reservations[i].ReservationID == reservationID && r.reservations[i].State == from {
			r.reservations[i].State = domain.StateActive
			return true, nil
		}
	}
	return false, nil
}

func (r *memReservationRepo) CountActive() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, res := range r.reservations {
		if res.State == domain.StateActive {
			count++
		}
	}
	return count, nil
}

type stockState struct {
	onHand   int
	reserved int
}

// fakeLedger mimics the ledger's availability accounting without the
// persistence machinery. failCommits and failReleases make the next N
// calls of that kind fail with a lock timeout before touching state.
type fakeLedger struct {
	mu           sync.Mutex
	stock        map[string]*stockState
	reserveCalls int
	releaseCalls int
	commitCalls  int
	failCommits  int
	failReleases int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{stock: make(map[string]*stockState)}
}

func (l *fakeLedger) seed(locationID, sku string, onHand int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[locationID+"/"+sku] = &stockState{onHand: onHand}
}

func (l *fakeLedger) state(locationID, sku string) stockState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stock[locationID+"/"+sku]
	if !ok {
		return stockState{}
	}
	return *s
}

func (l *fakeLedger) Reserve(ctx context.Context, locationID, sku string, quantity int, referenceID, referenceType string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserveCalls++
	s, ok := l.stock[locationID+"/"+sku]
	if !ok {
		s = &stockState{}
		l.stock[locationID+"/"+sku] = s
	}
	available := s.onHand - s.reserved
	if available < quantity {
		return &ledgerdomain.InsufficientStockError{
			LocationID: locationID, SKU: sku,
			Requested: quantity, Available: available,
		}
	}
	s.reserved += quantity
	return nil
}

func (l *fakeLedger) Release(ctx context.Context, locationID, sku string, quantity int, referenceID, referenceType string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseCalls++
	if l.failReleases > 0 {
		l.failReleases--
		return &ledgerdomain.LockTimeoutError{LocationID: locationID, SKU: sku, Timeout: time.Millisecond}
	}
	if s, ok := l.stock[locationID+"/"+sku]; ok {
		s.reserved -= quantity
		if s.reserved < 0 {
			s.reserved = 0
		}
	}
	return nil
}

func (l *fakeLedger) Commit(ctx context.Context, locationID, sku string, quantity int, referenceID, referenceType string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commitCalls++
	if l.failCommits > 0 {
		l.failCommits--
		return &ledgerdomain.LockTimeoutError{LocationID: locationID, SKU: sku, Timeout: time.Millisecond}
	}
	s, ok := l.stock[locationID+"/"+sku]
	if !ok || s.reserved < quantity || s.onHand < quantity {
		return fmt.Errorf("commit exceeds reserved stock")
	}
	s.onHand -= quantity
	s.reserved -= quantity
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.ReservationExpiredEvent
}

func (p *recordingPublisher) PublishReservationExpired(ctx context.Context, event kafka.ReservationExpiredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func TestReserveForReference_MultiLine(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	stock.seed("wh-1", "SKU-B", 5)
	manager := NewManager(repo, stock, nil)

	lines := []domain.Line{
		{LocationID: "wh-1", SKU: "SKU-A", Quantity: 2},
		{LocationID: "wh-1", SKU: "SKU-B", Quantity: 3},
	}
	reservations, err := manager.ReserveForReference(context.Background(), "cart-1", "cart", domain.KindCart, lines, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reservations) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(reservations))
	}
	for _, r := range reservations {
		if r.State != domain.StateActive {
			t.Errorf("expected active state, got %q", r.State)
		}
		if r.ExpiresAt == nil {
			t.Error("cart reservation must carry an expiry")
		}
	}
	if got := stock.state("wh-1", "SKU-B").reserved; got != 3 {
		t.Errorf("expected 3 reserved for SKU-B, got %d", got)
	}
}

func TestReserveForReference_OrderKindNeverExpires(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	manager := NewManager(repo, stock, nil)

	lines := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 1}}
	reservations, err := manager.ReserveForReference(context.Background(), "order-1", "order", domain.KindOrder, lines, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reservations[0].ExpiresAt != nil {
		t.Error("order reservation must not expire")
	}
}

func TestReserveForReference_Idempotent(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	manager := NewManager(repo, stock, nil)

	lines := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 4}}
	first, err := manager.ReserveForReference(context.Background(), "cart-1", "cart", domain.KindCart, lines, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := manager.ReserveForReference(context.Background(), "cart-1", "cart", domain.KindCart, lines, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(second) != len(first) || second[0].ReservationID != first[0].ReservationID {
		t.Error("repeat call must return the existing reservation set")
	}
	if stock.reserveCalls != 1 {
		t.Errorf("expected a single ledger reserve, got %d", stock.reserveCalls)
	}
	if got := stock.state("wh-1", "SKU-A").reserved; got != 4 {
		t.Errorf("expected 4 reserved, got %d", got)
	}
}

// Concurrent reserves for one reference must collapse onto a single hold
func TestReserveForReference_ConcurrentSameReferenceSingleHold(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	manager := NewManager(repo, stock, nil)
	ctx := context.Background()

	lines := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 4}}

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan []domain.Reservation, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reservations, err := manager.ReserveForReference(ctx, "cart-1", "cart", domain.KindCart, lines, 0)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results <- reservations
		}()
	}
	wg.Wait()
	close(results)

	var firstID string
	for reservations := range results {
		if len(reservations) != 1 {
			t.Fatalf("expected 1 reservation per caller, got %d", len(reservations))
		}
		if firstID == "" {
			firstID = reservations[0].ReservationID
		} else if reservations[0].ReservationID != firstID {
			t.Error("callers must all see the same reservation")
		}
	}

	if stock.reserveCalls != 1 {
		t.Errorf("expected a single ledger reserve, got %d", stock.reserveCalls)
	}
	if got := stock.state("wh-1", "SKU-A").reserved; got != 4 {
		t.Errorf("expected 4 reserved, got %d", got)
	}
	count, _ := repo.CountActive()
	if count != 1 {
		t.Errorf("expected 1 active reservation, got %d", count)
	}
}

// A writer in another process can win the active-line unique index between
// our lookup and insert; the loser compensates its hold and returns the
// winner's set.
func TestReserveForReference_DuplicateCreateReturnsWinner(t *testing.T) {
	winner := domain.Reservation{
		ReservationID: "res-winner",
		LocationID:    "wh-1",
		SKU:           "SKU-A",
		Quantity:      4,
		Kind:          domain.KindCart,
		ReferenceID:   "cart-1",
		ReferenceType: "cart",
		State:         domain.StateActive,
	}
	repo := &memReservationRepo{
		reservations:   []domain.Reservation{winner},
		dupErrFor:      "SKU-A",
		hideActiveOnce: true,
	}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	manager := NewManager(repo, stock, nil)

	lines := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 4}}
	reservations, err := manager.ReserveForReference(context.Background(), "cart-1", "cart", domain.KindCart, lines, 0)
	if err != nil {
		t.Fatalf("expected the winner's set, got error %v", err)
	}
	if len(reservations) != 1 || reservations[0].ReservationID != "res-winner" {
		t.Errorf("expected the winner's reservation, got %+v", reservations)
	}

	// The loser's own hold must be compensated
	if got := stock.state("wh-1", "SKU-A").reserved; got != 0 {
		t.Errorf("expected losing hold released, reserved %d", got)
	}
	if stock.reserveCalls != 1 || stock.releaseCalls != 1 {
		t.Errorf("expected one reserve and one compensating release, got %d/%d",
			stock.reserveCalls, stock.releaseCalls)
	}
}

func TestReserveForReference_PartialFailureCompensates(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	stock.seed("wh-1", "SKU-B", 1)
	manager := NewManager(repo, stock, nil)

	lines := []domain.Line{
		{LocationID: "wh-1", SKU: "SKU-A", Quantity: 2},
		{LocationID: "wh-1", SKU: "SKU-B", Quantity: 5},
	}
	_, err := manager.ReserveForReference(context.Background(), "cart-1", "cart", domain.KindCart, lines, 0)

	var partial *domain.PartialReservationError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialReservationError, got %v", err)
	}
	if partial.FailedLine.SKU != "SKU-B" {
		t.Errorf("expected failed line SKU-B, got %q", partial.FailedLine.SKU)
	}
	var insufficient *ledgerdomain.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Errorf("expected cause to unwrap to InsufficientStockError, got %v", partial.Cause)
	}

	// The hold on the first line must be compensated
	if got := stock.state("wh-1", "SKU-A").reserved; got != 0 {
		t.Errorf("expected SKU-A reserved back to 0, got %d", got)
	}
	active, _ := repo.FindActiveByReference("cart-1", "cart")
	if len(active) != 0 {
		t.Errorf("expected no active reservations, got %d", len(active))
	}
}

func TestReserveForReference_CreateFailureFreesOwnHold(t *testing.T) {
	repo := &memReservationRepo{createErrFor: "SKU-B"}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	stock.seed("wh-1", "SKU-B", 10)
	manager := NewManager(repo, stock, nil)

	lines := []domain.Line{
		{LocationID: "wh-1", SKU: "SKU-A", Quantity: 2},
		{LocationID: "wh-1", SKU: "SKU-B", Quantity: 3},
	}
	_, err := manager.ReserveForReference(context.Background(), "cart-1", "cart", domain.KindCart, lines, 0)

	var partial *domain.PartialReservationError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialReservationError, got %v", err)
	}
	if got := stock.state("wh-1", "SKU-A").reserved; got != 0 {
		t.Errorf("expected SKU-A reserved 0, got %d", got)
	}
	if got := stock.state("wh-1", "SKU-B").reserved; got != 0 {
		t.Errorf("expected SKU-B reserved 0, got %d", got)
	}
}

func TestCommitReference(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	manager := NewManager(repo, stock, nil)
	ctx := context.Background()

	lines := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 4}}
	if _, err := manager.ReserveForReference(ctx, "order-1", "order", domain.KindOrder, lines, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := manager.CommitReference(ctx, "order-1", "order"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := stock.state("wh-1", "SKU-A")
	if state.onHand != 6 || state.reserved != 0 {
		t.Errorf("expected on-hand 6 reserved 0, got on-hand %d reserved %d", state.onHand, state.reserved)
	}

	// Second commit finds nothing active
	err := manager.CommitReference(ctx, "order-1", "order")
	var noActive *domain.NoActiveReservationError
	if !errors.As(err, &noActive) {
		t.Fatalf("expected NoActiveReservationError, got %v", err)
	}
}

func TestCommitReference_LedgerFailureKeepsLineRetryable(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	manager := NewManager(repo, stock, nil)
	ctx := context.Background()

	lines := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 4}}
	if _, err := manager.ReserveForReference(ctx, "order-1", "order", domain.KindOrder, lines, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stock.failCommits = 1
	err := manager.CommitReference(ctx, "order-1", "order")
	var timeout *ledgerdomain.LockTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected the ledger failure to surface, got %v", err)
	}

	// The line must stay active and its hold untouched, not committed on
	// paper while the counters never moved
	active, _ := repo.FindActiveByReference("order-1", "order")
	if len(active) != 1 {
		t.Fatalf("expected the reservation to stay active, got %d active", len(active))
	}
	if got := stock.state("wh-1", "SKU-A").reserved; got != 4 {
		t.Errorf("expected reserved still 4, got %d", got)
	}

	// A retry settles it
	if err := manager.CommitReference(ctx, "order-1", "order"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	state := stock.state("wh-1", "SKU-A")
	if state.onHand != 6 || state.reserved != 0 {
		t.Errorf("expected on-hand 6 reserved 0, got on-hand %d reserved %d", state.onHand, state.reserved)
	}
}

func TestReleaseReference_LedgerFailureKeepsLineRetryable(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	manager := NewManager(repo, stock, nil)
	ctx := context.Background()

	lines := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 3}}
	if _, err := manager.ReserveForReference(ctx, "cart-1", "cart", domain.KindCart, lines, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stock.failReleases = 1
	if err := manager.ReleaseReference(ctx, "cart-1", "cart"); err == nil {
		t.Fatal("expected the ledger failure to surface")
	}

	active, _ := repo.FindActiveByReference("cart-1", "cart")
	if len(active) != 1 {
		t.Fatalf("expected the reservation to stay active, got %d active", len(active))
	}

	if err := manager.ReleaseReference(ctx, "cart-1", "cart"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := stock.state("wh-1", "SKU-A").reserved; got != 0 {
		t.Errorf("expected reserved freed to 0, got %d", got)
	}
}

func TestCommitReference_NothingActive(t *testing.T) {
	manager := NewManager(&memReservationRepo{}, newFakeLedger(), nil)

	err := manager.CommitReference(context.Background(), "order-404", "order")
	var noActive *domain.NoActiveReservationError
	if !errors.As(err, &noActive) {
		t.Fatalf("expected NoActiveReservationError, got %v", err)
	}
}

func TestGetReference_IncludesTerminalRows(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	manager := NewManager(repo, stock, nil)
	ctx := context.Background()

	lines := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 2}}
	if _, err := manager.ReserveForReference(ctx, "order-1", "order", domain.KindOrder, lines, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := manager.CommitReference(ctx, "order-1", "order"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reservations, err := manager.GetReference(ctx, "order-1", "order")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reservations) != 1 || reservations[0].State != domain.StateCommitted {
		t.Errorf("expected the committed row in the history, got %+v", reservations)
	}

	if _, err := manager.GetReference(ctx, "", "order"); err == nil {
		t.Error("expected validation error for empty reference id")
	}
}

func TestReleaseReference_NoOpWhenNothingActive(t *testing.T) {
	manager := NewManager(&memReservationRepo{}, newFakeLedger(), nil)

	if err := manager.ReleaseReference(context.Background(), "cart-404", "cart"); err != nil {
		t.Fatalf("release of unknown reference must be a no-op, got %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	publisher := &recordingPublisher{}
	manager := NewManager(repo, stock, publisher)
	manager.SetDefaultTTL(10 * time.Millisecond)
	ctx := context.Background()

	lines := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 7}}
	if _, err := manager.ReserveForReference(ctx, "cart-1", "cart", domain.KindCart, lines, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	swept, err := manager.SweepExpired(ctx, time.Now().Add(time.Minute), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swept != 1 {
		t.Errorf("expected 1 swept reservation, got %d", swept)
	}
	if got := stock.state("wh-1", "SKU-A").reserved; got != 0 {
		t.Errorf("expected reserved back to 0, got %d", got)
	}
	if len(publisher.events) != 1 || publisher.events[0].ReferenceID != "cart-1" {
		t.Errorf("expected one expiry event for cart-1, got %+v", publisher.events)
	}
}

// A release that fails at the ledger must not strand the reservation in a
// terminal state with its hold leaked; the next sweep picks it up again.
func TestSweepExpired_LedgerFailureRetriesNextSweep(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	manager := NewManager(repo, stock, nil)
	ctx := context.Background()

	lines := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 7}}
	if _, err := manager.ReserveForReference(ctx, "cart-1", "cart", domain.KindCart, lines, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stock.failReleases = 1
	swept, err := manager.SweepExpired(ctx, time.Now().Add(time.Minute), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swept != 0 {
		t.Errorf("failed release must not count as swept, got %d", swept)
	}
	if got := stock.state("wh-1", "SKU-A").reserved; got != 7 {
		t.Errorf("expected reserved still 7 after failed release, got %d", got)
	}

	// The reservation is active again, so the next sweep frees the hold
	swept, err = manager.SweepExpired(ctx, time.Now().Add(time.Minute), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swept != 1 {
		t.Errorf("expected the next sweep to expire the reservation, swept %d", swept)
	}
	if got := stock.state("wh-1", "SKU-A").reserved; got != 0 {
		t.Errorf("expected reserved freed to 0, got %d", got)
	}
}

func TestCommitWinsOverSweep(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	manager := NewManager(repo, stock, nil)
	manager.SetDefaultTTL(time.Millisecond)
	ctx := context.Background()

	lines := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 4}}
	if _, err := manager.ReserveForReference(ctx, "order-9", "order_checkout", domain.KindCart, lines, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Commit lands first, then the sweeper scans past the expiry time
	if err := manager.CommitReference(ctx, "order-9", "order_checkout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	swept, err := manager.SweepExpired(ctx, time.Now().Add(time.Hour), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swept != 0 {
		t.Errorf("sweeper must not expire a committed reservation, swept %d", swept)
	}

	state := stock.state("wh-1", "SKU-A")
	if state.onHand != 6 || state.reserved != 0 {
		t.Errorf("expected on-hand 6 reserved 0, got on-hand %d reserved %d", state.onHand, state.reserved)
	}
}

// Two carts compete for limited stock, the loser succeeds once the
// winner's hold expires.
func TestExpiryFreesStockForWaitingCart(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	stock.seed("wh-1", "SKU-A", 10)
	manager := NewManager(repo, stock, nil)
	ctx := context.Background()

	hold := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 7}}
	if _, err := manager.ReserveForReference(ctx, "cart-1", "cart", domain.KindCart, hold, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.Line{{LocationID: "wh-1", SKU: "SKU-A", Quantity: 5}}
	_, err := manager.ReserveForReference(ctx, "cart-2", "cart", domain.KindCart, want, 0)
	var partial *domain.PartialReservationError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialReservationError while cart-1 holds stock, got %v", err)
	}

	if _, err := manager.SweepExpired(ctx, time.Now().Add(time.Minute), 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reservations, err := manager.ReserveForReference(ctx, "cart-2", "cart", domain.KindCart, want, 0)
	if err != nil {
		t.Fatalf("expected retry to succeed after expiry, got %v", err)
	}
	if len(reservations) != 1 || reservations[0].Quantity != 5 {
		t.Errorf("unexpected reservation set: %+v", reservations)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	repo := &memReservationRepo{}
	stock := newFakeLedger()
	manager := NewManager(repo, stock, nil)
	sweeper := NewSweeper(manager, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
