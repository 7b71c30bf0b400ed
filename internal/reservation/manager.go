package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/commercefull/stockledger/internal/reservation/domain"
	"github.com/commercefull/stockledger/kafka"
	"github.com/commercefull/stockledger/pkg/logger"
)

// DefaultTTL is the hold lifetime applied when the caller passes none
const DefaultTTL = 30 * time.Minute

// Ledger is the slice of the stock ledger the manager drives
type Ledger interface {
	Reserve(ctx context.Context, locationID, sku string, quantity int, referenceID, referenceType string) error
	Release(ctx context.Context, locationID, sku string, quantity int, referenceID, referenceType string) error
	Commit(ctx context.Context, locationID, sku string, quantity int, referenceID, referenceType string) error
}

// EventPublisher emits reservation lifecycle events. May be nil.
type EventPublisher interface {
	PublishReservationExpired(ctx context.Context, event kafka.ReservationExpiredEvent) error
}

// Manager translates domain holds into ledger reservations with idempotency,
// compensation on partial failure, and TTL expiry.
type Manager struct {
	repo       domain.ReservationRepository
	ledger     Ledger
	publisher  EventPublisher
	defaultTTL time.Duration
	refs       *refMutex
}

// NewManager creates a reservation manager
func NewManager(repo domain.ReservationRepository, ledger Ledger, publisher EventPublisher) *Manager {
	return &Manager{
		repo:       repo,
		ledger:     ledger,
		publisher:  publisher,
		defaultTTL: DefaultTTL,
		refs:       newRefMutex(),
	}
}

// SetDefaultTTL overrides the default hold lifetime
func (m *Manager) SetDefaultTTL(d time.Duration) {
	m.defaultTTL = d
}

// ReserveForReference reserves every line for a reference, all or nothing.
// Idempotent: if the reference already holds active reservations they are
// returned unchanged instead of double-reserving. On any line failure, lines
// already reserved in this call are compensated before the error returns.
func (m *Manager) ReserveForReference(ctx context.Context, referenceID, referenceType string, kind domain.Kind, lines []domain.Line, ttl time.Duration) ([]domain.Reservation, error) {
	if referenceID == "" || referenceType == "" {
		return nil, fmt.Errorf("reference_id and reference_type are required")
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("at least one line is required")
	}
	for _, line := range lines {
		if line.LocationID == "" || line.SKU == "" {
			return nil, fmt.Errorf("location_id and sku are required on every line")
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("quantity must be positive on every line")
		}
	}

	refKey := referenceType + "\x00" + referenceID
	m.refs.Lock(refKey)
	defer m.refs.Unlock(refKey)

	existing, err := m.repo.FindActiveByReference(referenceID, referenceType)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing reservations: %w", err)
	}
	if len(existing) > 0 {
		logger.Info(ctx).
			Str("reference_id", referenceID).
			Str("reference_type", referenceType).
			Int("lines", len(existing)).
			Msg("Reservation already active for reference; returning existing set")
		return existing, nil
	}

	var expiresAt *time.Time
	if kind != domain.KindOrder {
		if ttl <= 0 {
			ttl = m.defaultTTL
		}
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	created := make([]domain.Reservation, 0, len(lines))
	for _, line := range lines {
		if err := m.ledger.Reserve(ctx, line.LocationID, line.SKU, line.Quantity, referenceID, referenceType); err != nil {
			m.unwind(ctx, created, referenceID, referenceType)
			return nil, &domain.PartialReservationError{
				ReferenceID:   referenceID,
				ReferenceType: referenceType,
				FailedLine:    line,
				Cause:         err,
			}
		}

		reservation := domain.Reservation{
			ReservationID: uuid.NewString(),
			LocationID:    line.LocationID,
			SKU:           line.SKU,
			Quantity:      line.Quantity,
			Kind:          kind,
			ReferenceID:   referenceID,
			ReferenceType: referenceType,
			ExpiresAt:     expiresAt,
			State:         domain.StateActive,
		}
		if err := m.repo.Create(&reservation); err != nil {
			// The ledger hold exists but the row does not; free the hold too.
			if relErr := m.ledger.Release(ctx, line.LocationID, line.SKU, line.Quantity, referenceID, referenceType); relErr != nil {
				logger.Error(ctx).Err(relErr).
					Str("reference_id", referenceID).
					Str("sku", line.SKU).
					Msg("Failed to compensate ledger hold after reservation create failure")
			}
			m.unwind(ctx, created, referenceID, referenceType)
			if errors.Is(err, domain.ErrDuplicateActiveLine) {
				// A writer in another process won the active-line index race;
				// idempotency means returning its set, not failing.
				winner, ferr := m.repo.FindActiveByReference(referenceID, referenceType)
				if ferr != nil {
					return nil, fmt.Errorf("failed to look up winning reservations: %w", ferr)
				}
				logger.Info(ctx).
					Str("reference_id", referenceID).
					Str("reference_type", referenceType).
					Int("lines", len(winner)).
					Msg("Concurrent reservation won the reference; returning its set")
				return winner, nil
			}
			return nil, &domain.PartialReservationError{
				ReferenceID:   referenceID,
				ReferenceType: referenceType,
				FailedLine:    line,
				Cause:         fmt.Errorf("failed to persist reservation: %w", err),
			}
		}
		created = append(created, reservation)
	}

	logger.Info(ctx).
		Str("reference_id", referenceID).
		Str("reference_type", referenceType).
		Str("kind", string(kind)).
		Int("lines", len(created)).
		Msg("Reservation created")
	return created, nil
}

// unwind compensates reservations created earlier in a failed multi-line call
func (m *Manager) unwind(ctx context.Context, created []domain.Reservation, referenceID, referenceType string) {
	for _, r := range created {
		won, err := m.repo.TransitionState(r.ReservationID, domain.StateActive, domain.StateReleased)
		if err != nil {
			logger.Error(ctx).Err(err).
				Str("reservation_id", r.ReservationID).
				Msg("Failed to mark reservation released during unwind")
			continue
		}
		if !won {
			continue
		}
		if err := m.ledger.Release(ctx, r.LocationID, r.SKU, r.Quantity, referenceID, referenceType); err != nil {
			logger.Error(ctx).Err(err).
				Str("reservation_id", r.ReservationID).
				Str("sku", r.SKU).
				Msg("Failed to release ledger hold during unwind")
			m.reactivate(ctx, r.ReservationID, domain.StateReleased)
		}
	}
}

// reactivate undoes a state transition whose ledger call failed so the
// reservation stays retryable instead of going terminal with its hold leaked.
func (m *Manager) reactivate(ctx context.Context, reservationID string, from domain.State) {
	if _, err := m.repo.Reactivate(reservationID, from); err != nil {
		logger.Error(ctx).Err(err).
			Str("reservation_id", reservationID).
			Str("from", string(from)).
			Msg("Failed to reactivate reservation after ledger failure")
	}
}

// GetReference returns every reservation ever taken for a reference,
// terminal rows included, for the admin view.
func (m *Manager) GetReference(ctx context.Context, referenceID, referenceType string) ([]domain.Reservation, error) {
	if referenceID == "" || referenceType == "" {
		return nil, fmt.Errorf("reference_id and reference_type are required")
	}
	reservations, err := m.repo.FindByReference(referenceID, referenceType)
	if err != nil {
		return nil, fmt.Errorf("failed to look up reservations: %w", err)
	}
	return reservations, nil
}

// CommitReference permanently consumes every active reservation for a
// reference. Returns NoActiveReservationError when nothing was active.
func (m *Manager) CommitReference(ctx context.Context, referenceID, referenceType string) error {
	active, err := m.repo.FindActiveByReference(referenceID, referenceType)
	if err != nil {
		return fmt.Errorf("failed to look up reservations: %w", err)
	}
	if len(active) == 0 {
		return &domain.NoActiveReservationError{ReferenceID: referenceID, ReferenceType: referenceType}
	}

	committed := 0
	for _, r := range active {
		won, err := m.repo.TransitionState(r.ReservationID, domain.StateActive, domain.StateCommitted)
		if err != nil {
			return fmt.Errorf("failed to transition reservation %s: %w", r.ReservationID, err)
		}
		if !won {
			// Lost the race to the sweeper; this line is already expired.
			continue
		}
		if err := m.ledger.Commit(ctx, r.LocationID, r.SKU, r.Quantity, referenceID, referenceType); err != nil {
			logger.Error(ctx).Err(err).
				Str("reservation_id", r.ReservationID).
				Str("sku", r.SKU).
				Int("quantity", r.Quantity).
				Msg("Ledger commit failed; reverting reservation to active")
			m.reactivate(ctx, r.ReservationID, domain.StateCommitted)
			return fmt.Errorf("failed to commit line %s: %w", r.SKU, err)
		}
		committed++
	}

	if committed == 0 {
		return &domain.NoActiveReservationError{ReferenceID: referenceID, ReferenceType: referenceType}
	}

	logger.Info(ctx).
		Str("reference_id", referenceID).
		Str("reference_type", referenceType).
		Int("lines", committed).
		Msg("Reservation committed")
	return nil
}

// ReleaseReference frees every active reservation for a reference.
// Safe to call on an already released or committed reference.
func (m *Manager) ReleaseReference(ctx context.Context, referenceID, referenceType string) error {
	active, err := m.repo.FindActiveByReference(referenceID, referenceType)
	if err != nil {
		return fmt.Errorf("failed to look up reservations: %w", err)
	}

	released := 0
	for _, r := range active {
		won, err := m.repo.TransitionState(r.ReservationID, domain.StateActive, domain.StateReleased)
		if err != nil {
			return fmt.Errorf("failed to transition reservation %s: %w", r.ReservationID, err)
		}
		if !won {
			continue
		}
		if err := m.ledger.Release(ctx, r.LocationID, r.SKU, r.Quantity, referenceID, referenceType); err != nil {
			logger.Error(ctx).Err(err).
				Str("reservation_id", r.ReservationID).
				Str("sku", r.SKU).
				Msg("Ledger release failed; reverting reservation to active")
			m.reactivate(ctx, r.ReservationID, domain.StateReleased)
			return fmt.Errorf("failed to release line %s: %w", r.SKU, err)
		}
		released++
	}

	if released > 0 {
		logger.Info(ctx).
			Str("reference_id", referenceID).
			Str("reference_type", referenceType).
			Int("lines", released).
			Msg("Reservation released")
	}
	return nil
}

// SweepExpired releases every active reservation whose TTL has passed.
// A commit racing the sweep wins: the transition guard lets exactly one side
// own each reservation. Returns the number of reservations expired.
func (m *Manager) SweepExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	expired, err := m.repo.FindExpired(now, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to scan expired reservations: %w", err)
	}

	swept := 0
	for _, r := range expired {
		won, err := m.repo.TransitionState(r.ReservationID, domain.StateActive, domain.StateExpired)
		if err != nil {
			logger.Error(ctx).Err(err).
				Str("reservation_id", r.ReservationID).
				Msg("Failed to expire reservation")
			continue
		}
		if !won {
			continue
		}

		if err := m.ledger.Release(ctx, r.LocationID, r.SKU, r.Quantity, r.ReferenceID, r.ReferenceType); err != nil {
			logger.Error(ctx).Err(err).
				Str("reservation_id", r.ReservationID).
				Str("sku", r.SKU).
				Msg("Ledger release failed; reservation stays active for the next sweep")
			m.reactivate(ctx, r.ReservationID, domain.StateExpired)
			continue
		}
		swept++

		logger.Info(ctx).
			Str("reservation_id", r.ReservationID).
			Str("reference_id", r.ReferenceID).
			Str("reference_type", r.ReferenceType).
			Str("sku", r.SKU).
			Int("quantity", r.Quantity).
			Msg("Reservation expired")

		if m.publisher != nil {
			event := kafka.ReservationExpiredEvent{
				ReservationID: r.ReservationID,
				ReferenceID:   r.ReferenceID,
				ReferenceType: r.ReferenceType,
				LocationID:    r.LocationID,
				SKU:           r.SKU,
				Quantity:      r.Quantity,
			}
			if err := m.publisher.PublishReservationExpired(ctx, event); err != nil {
				logger.Warn(ctx).Err(err).
					Str("reservation_id", r.ReservationID).
					Msg("Failed to publish reservation expired event")
			}
		}
	}
	return swept, nil
}
