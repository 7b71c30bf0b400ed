package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	ledgerdomain "github.com/commercefull/stockledger/internal/ledger/domain"
	resdomain "github.com/commercefull/stockledger/internal/reservation/domain"
	thdomain "github.com/commercefull/stockledger/internal/threshold/domain"
	trdomain "github.com/commercefull/stockledger/internal/transfer/domain"
	"github.com/commercefull/stockledger/pkg/logger"
)

// ReservationService is the reservation surface the handler exposes
type ReservationService interface {
	ReserveForReference(ctx context.Context, referenceID, referenceType string, kind resdomain.Kind, lines []resdomain.Line, ttl time.Duration) ([]resdomain.Reservation, error)
	CommitReference(ctx context.Context, referenceID, referenceType string) error
	ReleaseReference(ctx context.Context, referenceID, referenceType string) error
	GetReference(ctx context.Context, referenceID, referenceType string) ([]resdomain.Reservation, error)
}

// TransferService is the transfer surface the handler exposes
type TransferService interface {
	InitiateTransfer(ctx context.Context, sourceLocationID, destinationLocationID string, lines []trdomain.LineRequest) (*trdomain.Transfer, error)
	MarkInTransit(ctx context.Context, transferID string) (*trdomain.Transfer, error)
	Receive(ctx context.Context, transferID string, receipts []trdomain.ReceiptLine) (*trdomain.Transfer, []*trdomain.TransferLineDiscrepancyError, error)
	Cancel(ctx context.Context, transferID string) (*trdomain.Transfer, error)
}

// LedgerService is the read/adjust surface the handler exposes
type LedgerService interface {
	AdjustOnHand(ctx context.Context, locationID, sku string, delta int, reason ledgerdomain.Reason, referenceID, referenceType string) (*ledgerdomain.StockRecord, error)
	GetAvailable(ctx context.Context, locationID, sku string) (int, error)
	ListEntries(ctx context.Context, locationID, sku string, from, to time.Time, limit, offset int) ([]ledgerdomain.LedgerEntry, error)
	ListRecords(ctx context.Context, limit, offset int) ([]ledgerdomain.StockRecord, error)
	ListBelowMinimum(ctx context.Context, limit, offset int) ([]ledgerdomain.StockRecord, error)
}

// SignalService is the low-stock signal surface the handler exposes
type SignalService interface {
	Acknowledge(ctx context.Context, signalID string) error
	Resolve(ctx context.Context, signalID string) error
	ListOpen(ctx context.Context, limit, offset int) ([]thdomain.LowStockSignal, error)
}

// StockHandler handles HTTP requests for the stock ledger
type StockHandler struct {
	reservations ReservationService
	transfers    TransferService
	ledger       LedgerService
	signals      SignalService
	cache        *AvailabilityCache

	requestCounter *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	reserveResults *prometheus.CounterVec
}

// NewStockHandler creates a new stock handler
func NewStockHandler(reservations ReservationService, transfers TransferService, ledger LedgerService, signals SignalService, cache *AvailabilityCache) *StockHandler {
	requestCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_requests_total",
			Help: "Total number of requests to the stock ledger service",
		},
		[]string{"method", "endpoint", "status"},
	)
	requestLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockledger_request_duration_seconds",
			Help:    "Duration of stock ledger requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	reserveResults := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockledger_reserve_results_total",
			Help: "Reservation outcomes by result",
		},
		[]string{"result"},
	)

	prometheus.MustRegister(requestCounter)
	prometheus.MustRegister(requestLatency)
	prometheus.MustRegister(reserveResults)

	return &StockHandler{
		reservations:   reservations,
		transfers:      transfers,
		ledger:         ledger,
		signals:        signals,
		cache:          cache,
		requestCounter: requestCounter,
		requestLatency: requestLatency,
		reserveResults: reserveResults,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware wraps handlers with Prometheus metrics
func (h *StockHandler) metricsMiddleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		h.requestLatency.WithLabelValues(r.Method, endpoint).Observe(duration)
		h.requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
	}
}

// Reserve handles POST /api/stock/reservations
func (h *StockHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReferenceID   string          `json:"reference_id"`
		ReferenceType string          `json:"reference_type"`
		Kind          string          `json:"kind"`
		TTLSeconds    int             `json:"ttl_seconds"`
		Lines         []resdomain.Line `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	kind := resdomain.Kind(req.Kind)
	if kind == "" {
		kind = resdomain.KindCart
	}

	reservations, err := h.reservations.ReserveForReference(r.Context(),
		req.ReferenceID, req.ReferenceType, kind, req.Lines,
		time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		h.reserveResults.WithLabelValues("failed").Inc()
		h.respondDomainError(w, r, err)
		return
	}
	h.reserveResults.WithLabelValues("reserved").Inc()

	h.invalidateLines(r, req.Lines)
	respondJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Stock reserved",
		Data:    reservations,
	})
}

// CommitReservation handles POST /api/stock/reservations/{reference_type}/{reference_id}/commit
func (h *StockHandler) CommitReservation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.reservations.CommitReference(r.Context(), vars["reference_id"], vars["reference_type"]); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Message: "Reservation committed"})
}

// ReleaseReservation handles POST /api/stock/reservations/{reference_type}/{reference_id}/release
func (h *StockHandler) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.reservations.ReleaseReference(r.Context(), vars["reference_id"], vars["reference_type"]); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Message: "Reservation released"})
}

// InitiateTransfer handles POST /api/stock/transfers
func (h *StockHandler) InitiateTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SourceLocationID      string                 `json:"source_location_id"`
		DestinationLocationID string                 `json:"destination_location_id"`
		Lines                 []trdomain.LineRequest `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	transfer, err := h.transfers.InitiateTransfer(r.Context(), req.SourceLocationID, req.DestinationLocationID, req.Lines)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, Response{Success: true, Message: "Transfer initiated", Data: transfer})
}

// MarkInTransit handles POST /api/stock/transfers/{transfer_id}/in-transit
func (h *StockHandler) MarkInTransit(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.transfers.MarkInTransit(r.Context(), mux.Vars(r)["transfer_id"])
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Message: "Transfer in transit", Data: transfer})
}

// ReceiveTransfer handles POST /api/stock/transfers/{transfer_id}/receive
func (h *StockHandler) ReceiveTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lines []trdomain.ReceiptLine `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	transfer, discrepancies, err := h.transfers.Receive(r.Context(), mux.Vars(r)["transfer_id"], req.Lines)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	message := "Transfer received"
	if len(discrepancies) > 0 {
		message = "Transfer received with discrepancies"
	}
	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data: map[string]interface{}{
			"transfer":      transfer,
			"discrepancies": discrepancyStrings(discrepancies),
		},
	})
}

// CancelTransfer handles POST /api/stock/transfers/{transfer_id}/cancel
func (h *StockHandler) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.transfers.Cancel(r.Context(), mux.Vars(r)["transfer_id"])
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Message: "Transfer cancelled", Data: transfer})
}

// Adjust handles POST /api/stock/adjustments (admin only).
// Restricted to operator correction reasons; receipts come in through the
// same endpoint with reason "receive".
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LocationID  string `json:"location_id"`
		SKU         string `json:"sku"`
		Delta       int    `json:"delta"`
		Reason      string `json:"reason"`
		ReferenceID string `json:"reference_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	reason := ledgerdomain.Reason(req.Reason)
	if !reason.IsCorrection() && reason != ledgerdomain.ReasonReceive {
		respondJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "Reason must be adjustment, count-correction or receive",
		})
		return
	}

	record, err := h.ledger.AdjustOnHand(r.Context(), req.LocationID, req.SKU, req.Delta, reason, req.ReferenceID, "manual")
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	if h.cache != nil {
		h.cache.Invalidate(r.Context(), req.LocationID, req.SKU)
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Message: "Stock adjusted", Data: record})
}

// GetAvailable handles GET /api/stock/{location_id}/{sku}/available
func (h *StockHandler) GetAvailable(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	locationID, sku := vars["location_id"], vars["sku"]

	if h.cache != nil {
		if available, ok := h.cache.Get(r.Context(), locationID, sku); ok {
			w.Header().Set("X-Cache", "HIT")
			respondJSON(w, http.StatusOK, Response{Success: true, Data: availablePayload(locationID, sku, available)})
			return
		}
	}

	available, err := h.ledger.GetAvailable(r.Context(), locationID, sku)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}

	if h.cache != nil {
		h.cache.Set(r.Context(), locationID, sku, available)
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Data: availablePayload(locationID, sku, available)})
}

// ListEntries handles GET /api/stock/{location_id}/{sku}/entries
func (h *StockHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit == 0 {
		limit = 50
	}

	var from, to time.Time
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid from timestamp"})
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid to timestamp"})
			return
		}
		to = t
	}

	entries, err := h.ledger.ListEntries(r.Context(), vars["location_id"], vars["sku"], from, to, limit, offset)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Data: entries})
}

// GetReservations handles GET /api/stock/reservations/{reference_type}/{reference_id}
func (h *StockHandler) GetReservations(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	reservations, err := h.reservations.GetReference(r.Context(), vars["reference_id"], vars["reference_type"])
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Data: reservations})
}

// ListRecords handles GET /api/stock/records
func (h *StockHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.ledger.ListRecords(r.Context(), limit, offset)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Data: records})
}

// ListBelowMinimum handles GET /api/stock/below-minimum
func (h *StockHandler) ListBelowMinimum(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.ledger.ListBelowMinimum(r.Context(), limit, offset)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Data: records})
}

// ListLowStock handles GET /api/stock/low-stock
func (h *StockHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	signals, err := h.signals.ListOpen(r.Context(), limit, offset)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Data: signals})
}

// AcknowledgeSignal handles POST /api/stock/low-stock/{signal_id}/acknowledge
func (h *StockHandler) AcknowledgeSignal(w http.ResponseWriter, r *http.Request) {
	if err := h.signals.Acknowledge(r.Context(), mux.Vars(r)["signal_id"]); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Message: "Signal acknowledged"})
}

// ResolveSignal handles POST /api/stock/low-stock/{signal_id}/resolve
func (h *StockHandler) ResolveSignal(w http.ResponseWriter, r *http.Request) {
	if err := h.signals.Resolve(r.Context(), mux.Vars(r)["signal_id"]); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, Response{Success: true, Message: "Signal resolved"})
}

// RegisterRoutes registers all stock ledger routes
func (h *StockHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/stock/reservations",
		h.metricsMiddleware("reserve", h.Reserve)).Methods("POST")
	router.HandleFunc("/api/stock/reservations/{reference_type}/{reference_id}/commit",
		h.metricsMiddleware("commit", h.CommitReservation)).Methods("POST")
	router.HandleFunc("/api/stock/reservations/{reference_type}/{reference_id}/release",
		h.metricsMiddleware("release", h.ReleaseReservation)).Methods("POST")
	router.HandleFunc("/api/stock/reservations/{reference_type}/{reference_id}",
		h.metricsMiddleware("reservations_get", h.GetReservations)).Methods("GET")

	router.HandleFunc("/api/stock/transfers",
		h.metricsMiddleware("transfer_initiate", h.InitiateTransfer)).Methods("POST")
	router.HandleFunc("/api/stock/transfers/{transfer_id}/in-transit",
		h.metricsMiddleware("transfer_in_transit", h.MarkInTransit)).Methods("POST")
	router.HandleFunc("/api/stock/transfers/{transfer_id}/receive",
		h.metricsMiddleware("transfer_receive", h.ReceiveTransfer)).Methods("POST")
	router.HandleFunc("/api/stock/transfers/{transfer_id}/cancel",
		h.metricsMiddleware("transfer_cancel", h.CancelTransfer)).Methods("POST")

	router.HandleFunc("/api/stock/adjustments",
		h.metricsMiddleware("adjust", AdminMiddleware(h.Adjust))).Methods("POST")

	router.HandleFunc("/api/stock/records",
		h.metricsMiddleware("records", h.ListRecords)).Methods("GET")
	router.HandleFunc("/api/stock/below-minimum",
		h.metricsMiddleware("below_minimum", h.ListBelowMinimum)).Methods("GET")

	router.HandleFunc("/api/stock/low-stock",
		h.metricsMiddleware("low_stock", h.ListLowStock)).Methods("GET")
	router.HandleFunc("/api/stock/low-stock/{signal_id}/acknowledge",
		h.metricsMiddleware("signal_ack", h.AcknowledgeSignal)).Methods("POST")
	router.HandleFunc("/api/stock/low-stock/{signal_id}/resolve",
		h.metricsMiddleware("signal_resolve", h.ResolveSignal)).Methods("POST")

	router.HandleFunc("/api/stock/{location_id}/{sku}/available",
		h.metricsMiddleware("available", h.GetAvailable)).Methods("GET")
	router.HandleFunc("/api/stock/{location_id}/{sku}/entries",
		h.metricsMiddleware("entries", h.ListEntries)).Methods("GET")
}

// RegisterHealthCheck registers the health check endpoint
func (h *StockHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, Response{Success: false, Error: "Database unavailable"})
			return
		}
		respondJSON(w, http.StatusOK, Response{Success: true, Message: "Stock ledger service is healthy"})
	}).Methods("GET")
}

// respondDomainError maps domain errors onto HTTP statuses. Invariant
// violations stay generic for the client and loud in the logs.
func (h *StockHandler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *ledgerdomain.InsufficientStockError
	var partial *resdomain.PartialReservationError
	var noActive *resdomain.NoActiveReservationError
	var negative *ledgerdomain.NegativeStockError
	var lockTimeout *ledgerdomain.LockTimeoutError
	var illegal *trdomain.IllegalTransitionError

	switch {
	case errors.As(err, &partial):
		if errors.As(partial.Cause, &insufficient) {
			respondJSON(w, http.StatusConflict, Response{Success: false, Error: "Insufficient stock"})
			return
		}
		respondJSON(w, http.StatusConflict, Response{Success: false, Error: "Reservation failed"})
	case errors.As(err, &insufficient):
		respondJSON(w, http.StatusConflict, Response{Success: false, Error: "Insufficient stock"})
	case errors.As(err, &noActive):
		respondJSON(w, http.StatusConflict, Response{Success: false, Error: "No active reservation"})
	case errors.As(err, &lockTimeout):
		w.Header().Set("Retry-After", "1")
		respondJSON(w, http.StatusServiceUnavailable, Response{Success: false, Error: "Stock record busy, retry"})
	case errors.As(err, &illegal):
		respondJSON(w, http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, trdomain.ErrTransferNotFound), errors.Is(err, ledgerdomain.ErrStockRecordNotFound):
		respondJSON(w, http.StatusNotFound, Response{Success: false, Error: "Not found"})
	case errors.As(err, &negative):
		logger.Error(r.Context()).Err(err).Msg("Stock invariant violation rejected")
		respondJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Internal inventory error"})
	default:
		logger.Error(r.Context()).Err(err).Msg("Stock request failed")
		respondJSON(w, http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	}
}

func (h *StockHandler) invalidateLines(r *http.Request, lines []resdomain.Line) {
	if h.cache == nil {
		return
	}
	for _, line := range lines {
		h.cache.Invalidate(r.Context(), line.LocationID, line.SKU)
	}
}

func availablePayload(locationID, sku string, available int) map[string]interface{} {
	return map[string]interface{}{
		"location_id": locationID,
		"sku":         sku,
		"available":   available,
	}
}

func discrepancyStrings(discrepancies []*trdomain.TransferLineDiscrepancyError) []string {
	out := make([]string, 0, len(discrepancies))
	for _, d := range discrepancies {
		out = append(out, d.Error())
	}
	return out
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
