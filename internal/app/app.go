package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	httpdelivery "github.com/commercefull/stockledger/internal/delivery/http"
	"github.com/commercefull/stockledger/internal/ledger"
	ledgerdomain "github.com/commercefull/stockledger/internal/ledger/domain"
	ledgerrepo "github.com/commercefull/stockledger/internal/ledger/repository"
	"github.com/commercefull/stockledger/internal/reservation"
	resdomain "github.com/commercefull/stockledger/internal/reservation/domain"
	resrepo "github.com/commercefull/stockledger/internal/reservation/repository"
	"github.com/commercefull/stockledger/internal/threshold"
	thdomain "github.com/commercefull/stockledger/internal/threshold/domain"
	threpo "github.com/commercefull/stockledger/internal/threshold/repository"
	"github.com/commercefull/stockledger/internal/transfer"
	trdomain "github.com/commercefull/stockledger/internal/transfer/domain"
	trrepo "github.com/commercefull/stockledger/internal/transfer/repository"
	"github.com/commercefull/stockledger/kafka"
)

// Config carries the runtime tunables main reads from the environment.
// Zero values fall back to each component's default.
type Config struct {
	SweepInterval  time.Duration
	ReservationTTL time.Duration
	LockTimeout    time.Duration
}

// Application bundles the wired service graph so main can start the HTTP
// surface, the expiry sweeper and the order consumer from one place.
type Application struct {
	Handler     *httpdelivery.StockHandler
	Ledger      *ledger.StockLedger
	Manager     *reservation.Manager
	Sweeper     *reservation.Sweeper
	Coordinator *transfer.Coordinator
	Monitor     *threshold.Monitor
	Cache       *httpdelivery.AvailabilityCache
}

// ProvideStockRepository provides the stock record repository
func ProvideStockRepository(db *gorm.DB) ledgerdomain.StockRepository {
	return ledgerrepo.NewGormStockRepositoryWithTracing(db)
}

// ProvideLedgerEntryRepository provides the ledger entry repository
func ProvideLedgerEntryRepository(db *gorm.DB) ledgerdomain.LedgerEntryRepository {
	return ledgerrepo.NewGormLedgerEntryRepositoryWithTracing(db)
}

// ProvideMutationStore provides the transactional record-plus-entry store
func ProvideMutationStore(db *gorm.DB) ledgerdomain.MutationStore {
	return ledgerrepo.NewGormMutationStoreWithTracing(db)
}

// ProvideReservationRepository provides the reservation repository
func ProvideReservationRepository(db *gorm.DB) resdomain.ReservationRepository {
	return resrepo.NewGormReservationRepository(db)
}

// ProvideTransferRepository provides the transfer repository
func ProvideTransferRepository(db *gorm.DB) trdomain.TransferRepository {
	return trrepo.NewGormTransferRepository(db)
}

// ProvideSignalRepository provides the low stock signal repository
func ProvideSignalRepository(db *gorm.DB) thdomain.SignalRepository {
	return threpo.NewGormSignalRepository(db)
}

// ProvideLedger provides the stock ledger
func ProvideLedger(records ledgerdomain.StockRepository, entries ledgerdomain.LedgerEntryRepository, store ledgerdomain.MutationStore, cfg Config) *ledger.StockLedger {
	stockLedger := ledger.NewStockLedger(records, entries, store)
	if cfg.LockTimeout > 0 {
		stockLedger.SetLockTimeout(cfg.LockTimeout)
	}
	return stockLedger
}

// ProvideManager provides the reservation manager. The publisher may be
// nil when Kafka is disabled; passing the typed nil through directly
// would make the interface non-nil, so guard here.
func ProvideManager(repo resdomain.ReservationRepository, stockLedger *ledger.StockLedger, publisher *kafka.Publisher, cfg Config) *reservation.Manager {
	var manager *reservation.Manager
	if publisher == nil {
		manager = reservation.NewManager(repo, stockLedger, nil)
	} else {
		manager = reservation.NewManager(repo, stockLedger, publisher)
	}
	if cfg.ReservationTTL > 0 {
		manager.SetDefaultTTL(cfg.ReservationTTL)
	}
	return manager
}

// ProvideSweeper provides the reservation expiry sweeper
func ProvideSweeper(manager *reservation.Manager, cfg Config) *reservation.Sweeper {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return reservation.NewSweeper(manager, interval)
}

// ProvideCoordinator provides the transfer coordinator
func ProvideCoordinator(repo trdomain.TransferRepository, stockLedger *ledger.StockLedger, publisher *kafka.Publisher) *transfer.Coordinator {
	if publisher == nil {
		return transfer.NewCoordinator(repo, stockLedger, nil)
	}
	return transfer.NewCoordinator(repo, stockLedger, publisher)
}

// ProvideMonitor provides the threshold monitor
func ProvideMonitor(signals thdomain.SignalRepository, publisher *kafka.Publisher) *threshold.Monitor {
	if publisher == nil {
		return threshold.NewMonitor(signals, nil)
	}
	return threshold.NewMonitor(signals, publisher)
}

// ProvideAvailabilityCache provides the Redis availability cache. Nil
// client (Redis disabled) yields a nil cache, which the handler treats
// as cache-off.
func ProvideAvailabilityCache(client *redis.Client) *httpdelivery.AvailabilityCache {
	if client == nil {
		return nil
	}
	return httpdelivery.NewAvailabilityCache(client, 30*time.Second)
}

// Service interface bindings for the HTTP handler

func ProvideReservationService(m *reservation.Manager) httpdelivery.ReservationService {
	return m
}

func ProvideTransferService(c *transfer.Coordinator) httpdelivery.TransferService {
	return c
}

func ProvideLedgerService(l *ledger.StockLedger) httpdelivery.LedgerService {
	return l
}

func ProvideSignalService(m *threshold.Monitor) httpdelivery.SignalService {
	return m
}

// NewApplication assembles the application and attaches ledger observers.
// Observer registration happens here, before any traffic, because
// AddObserver is not safe once the ledger is serving.
func NewApplication(
	stockLedger *ledger.StockLedger,
	manager *reservation.Manager,
	sweeper *reservation.Sweeper,
	coordinator *transfer.Coordinator,
	monitor *threshold.Monitor,
	cache *httpdelivery.AvailabilityCache,
	handler *httpdelivery.StockHandler,
	reservations resdomain.ReservationRepository,
	signals thdomain.SignalRepository,
) *Application {
	stockLedger.AddObserver(monitor)
	if cache != nil {
		stockLedger.AddObserver(cache)
	}

	registerStateGauges(reservations, signals)

	return &Application{
		Handler:     handler,
		Ledger:      stockLedger,
		Manager:     manager,
		Sweeper:     sweeper,
		Coordinator: coordinator,
		Monitor:     monitor,
		Cache:       cache,
	}
}

// registerStateGauges exposes reservation and signal counts as gauges
// sampled from the database at scrape time.
func registerStateGauges(reservations resdomain.ReservationRepository, signals thdomain.SignalRepository) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "stockledger_active_reservation_lines",
		Help: "Number of reservation lines currently holding stock",
	}, func() float64 {
		count, err := reservations.CountActive()
		if err != nil {
			return 0
		}
		return float64(count)
	}))
	prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "stockledger_open_low_stock_signals",
		Help: "Number of low stock signals in new or acknowledged state",
	}, func() float64 {
		count, err := signals.CountOpen()
		if err != nil {
			return 0
		}
		return float64(count)
	}))
}
