package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterSwaggerDocs registers Swagger documentation routes
// @Summary Swagger documentation
// @Description Swagger API documentation for the Stock Ledger Service
// @Tags Swagger
// @Success 200 {string} string "Swagger UI"
// @Router /swagger/ [get]
func RegisterSwaggerDocs(router *mux.Router, swaggerHandler http.Handler) {
	// Swagger UI
	router.PathPrefix("/swagger/").Handler(swaggerHandler)
}

// Reserve godoc
// @Summary Reserve stock for a reference
// @Description Atomically reserve stock across one or more lines for a cart or order reference
// @Tags Reservations
// @Accept json
// @Produce json
// @Param request body object{reference_id=string,reference_type=string,kind=string,ttl_seconds=int,lines=array} true "Reservation request"
// @Success 201 {object} object{success=bool,message=string,data=array}
// @Failure 400 {object} object{success=bool,error=string}
// @Failure 409 {object} object{success=bool,error=string}
// @Router /api/stock/reservations [post]
func (h *StockHandler) ReserveDoc() {}

// CommitReservation godoc
// @Summary Commit a reservation
// @Description Convert all active reserved lines for a reference into a stock decrement
// @Tags Reservations
// @Produce json
// @Param reference_type path string true "Reference type"
// @Param reference_id path string true "Reference ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 409 {object} object{success=bool,error=string}
// @Router /api/stock/reservations/{reference_type}/{reference_id}/commit [post]
func (h *StockHandler) CommitReservationDoc() {}

// ReleaseReservation godoc
// @Summary Release a reservation
// @Description Return all active reserved lines for a reference to the available pool
// @Tags Reservations
// @Produce json
// @Param reference_type path string true "Reference type"
// @Param reference_id path string true "Reference ID"
// @Success 200 {object} object{success=bool,message=string}
// @Router /api/stock/reservations/{reference_type}/{reference_id}/release [post]
func (h *StockHandler) ReleaseReservationDoc() {}

// GetReservations godoc
// @Summary List reservations for a reference
// @Description Every reservation taken for a reference, terminal rows included
// @Tags Reservations
// @Produce json
// @Param reference_type path string true "Reference type"
// @Param reference_id path string true "Reference ID"
// @Success 200 {object} object{success=bool,data=array}
// @Router /api/stock/reservations/{reference_type}/{reference_id} [get]
func (h *StockHandler) GetReservationsDoc() {}

// InitiateTransfer godoc
// @Summary Initiate a stock transfer
// @Description Move units out of the source location ledger and open an in-transit window
// @Tags Transfers
// @Accept json
// @Produce json
// @Param request body object{source_location_id=string,destination_location_id=string,lines=array} true "Transfer request"
// @Success 201 {object} object{success=bool,message=string,data=object}
// @Failure 400 {object} object{success=bool,error=string}
// @Router /api/stock/transfers [post]
func (h *StockHandler) InitiateTransferDoc() {}

// ReceiveTransfer godoc
// @Summary Receive a transfer
// @Description Record received and rejected quantities per line at the destination
// @Tags Transfers
// @Accept json
// @Produce json
// @Param transfer_id path string true "Transfer ID"
// @Param request body object{lines=array} true "Receipt lines"
// @Success 200 {object} object{success=bool,message=string,data=object}
// @Failure 404 {object} object{success=bool,error=string}
// @Failure 409 {object} object{success=bool,error=string}
// @Router /api/stock/transfers/{transfer_id}/receive [post]
func (h *StockHandler) ReceiveTransferDoc() {}

// Adjust godoc
// @Summary Adjust on-hand stock
// @Description Apply a manual adjustment, count correction or receipt (Admin only)
// @Tags Adjustments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{location_id=string,sku=string,delta=int,reason=string,reference_id=string} true "Adjustment"
// @Success 200 {object} object{success=bool,message=string,data=object}
// @Failure 400 {object} object{success=bool,error=string}
// @Failure 403 {object} object{success=bool,error=string}
// @Router /api/stock/adjustments [post]
func (h *StockHandler) AdjustDoc() {}

// GetAvailable godoc
// @Summary Get available quantity
// @Description Available quantity for a stock record, served from cache when fresh
// @Tags Stock
// @Produce json
// @Param location_id path string true "Location ID"
// @Param sku path string true "SKU"
// @Success 200 {object} object{success=bool,data=object{location_id=string,sku=string,available=int}}
// @Router /api/stock/{location_id}/{sku}/available [get]
func (h *StockHandler) GetAvailableDoc() {}

// ListEntries godoc
// @Summary List ledger entries
// @Description Ledger entries for a stock record, filtered by time range with pagination
// @Tags Stock
// @Produce json
// @Param location_id path string true "Location ID"
// @Param sku path string true "SKU"
// @Param from query string false "RFC3339 start time"
// @Param to query string false "RFC3339 end time"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,data=array}
// @Router /api/stock/{location_id}/{sku}/entries [get]
func (h *StockHandler) ListEntriesDoc() {}

// ListRecords godoc
// @Summary List stock records
// @Tags Stock
// @Produce json
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,data=array}
// @Router /api/stock/records [get]
func (h *StockHandler) ListRecordsDoc() {}

// ListBelowMinimum godoc
// @Summary List records below their minimum level
// @Tags Stock
// @Produce json
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,data=array}
// @Router /api/stock/below-minimum [get]
func (h *StockHandler) ListBelowMinimumDoc() {}

// ListLowStock godoc
// @Summary List open low stock signals
// @Tags LowStock
// @Produce json
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} object{success=bool,data=array}
// @Router /api/stock/low-stock [get]
func (h *StockHandler) ListLowStockDoc() {}

// HealthCheck godoc
// @Summary Health check
// @Description Check service health and database connectivity
// @Tags Health
// @Produce json
// @Success 200 {object} object{success=bool,message=string}
// @Failure 503 {object} object{success=bool,error=string}
// @Router /health [get]
func (h *StockHandler) HealthCheckDoc() {}
