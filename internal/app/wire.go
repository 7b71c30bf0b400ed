//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	httpdelivery "github.com/commercefull/stockledger/internal/delivery/http"
	"github.com/commercefull/stockledger/kafka"
)

// Wire sets
var RepositorySet = wire.NewSet(
	ProvideStockRepository,
	ProvideLedgerEntryRepository,
	ProvideMutationStore,
	ProvideReservationRepository,
	ProvideTransferRepository,
	ProvideSignalRepository,
)

var ServiceSet = wire.NewSet(
	ProvideLedger,
	ProvideManager,
	ProvideSweeper,
	ProvideCoordinator,
	ProvideMonitor,
	ProvideAvailabilityCache,
	ProvideReservationService,
	ProvideTransferService,
	ProvideLedgerService,
	ProvideSignalService,
)

// InitializeApplication initializes the full service graph
func InitializeApplication(db *gorm.DB, redisClient *redis.Client, publisher *kafka.Publisher, cfg Config) (*Application, error) {
	wire.Build(
		RepositorySet,
		ServiceSet,
		httpdelivery.NewStockHandler,
		NewApplication,
	)
	return nil, nil
}
