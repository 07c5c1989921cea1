package indexer

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chainlens-network/chainlensx/pkg/indexer"
	"github.com/chainlens-network/chainlensx/pkg/logging"
	"github.com/chainlens-network/chainlensx/pkg/rpc"
	"github.com/chainlens-network/chainlensx/pkg/storage"
	"github.com/chainlens-network/chainlensx/pkg/storage/clickhouse"
	"github.com/chainlens-network/chainlensx/pkg/utils"
)

// App is the standalone synchronizer service: the same sync loop the query
// service can embed, without the query API.
type App struct {
	Indexer *indexer.Indexer
	Store   storage.Store
	Logger  *zap.Logger
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, storeErr := clickhouse.New(ctx, logger, utils.Env("CLICKHOUSE_DB", "chainlens"))
	if storeErr != nil {
		logger.Fatal("Unable to initialize ledger database", zap.Error(storeErr))
	}

	chainClient := rpc.New(rpc.Opts{
		Endpoints: strings.Split(utils.Env("CHAIN_RPC", "http://localhost:9545"), ","),
	})

	return &App{
		Indexer: indexer.New(logger, store, chainClient, indexer.ConfigFromEnv()),
		Store:   store,
		Logger:  logger,
	}
}

// Start runs the sync loop and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Indexer.Start(ctx); err != nil {
		a.Logger.Fatal("Unable to start indexer", zap.Error(err))
	}

	<-ctx.Done()

	if err := a.Indexer.Stop(); err != nil {
		a.Logger.Error("Failed to stop indexer", zap.Error(err))
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
