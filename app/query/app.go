package query

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chainlens-network/chainlensx/app/query/types"
	"github.com/chainlens-network/chainlensx/pkg/cache"
	"github.com/chainlens-network/chainlensx/pkg/indexer"
	"github.com/chainlens-network/chainlensx/pkg/logging"
	"github.com/chainlens-network/chainlensx/pkg/qerror"
	"github.com/chainlens-network/chainlensx/pkg/rpc"
	"github.com/chainlens-network/chainlensx/pkg/sandbox"
	"github.com/chainlens-network/chainlensx/pkg/storage/clickhouse"
	"github.com/chainlens-network/chainlensx/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	store, storeErr := clickhouse.New(ctx, logger, utils.Env("CLICKHOUSE_DB", "chainlens"))
	if storeErr != nil {
		logger.Fatal("Unable to initialize ledger database", zap.Error(storeErr))
	}

	resultCache := cache.New(logger,
		time.Duration(utils.EnvInt("CACHE_TTL_MS", 300_000))*time.Millisecond,
		utils.EnvInt("CACHE_MAX_ENTRIES", 500))

	classifier := qerror.NewClassifier(logger, utils.EnvInt("ERROR_RING_SIZE", 256))

	sb := sandbox.New(logger, store, resultCache, classifier, sandbox.Config{
		RateQuota:     utils.EnvInt("RATE_LIMIT_PER_MIN", sandbox.DefaultRateQuota),
		RateWindow:    time.Minute,
		MaxComplexity: utils.EnvInt("MAX_COMPLEXITY", sandbox.DefaultMaxComplexity),
	})

	chainClient := rpc.New(rpc.Opts{
		Endpoints: strings.Split(utils.Env("CHAIN_RPC", "http://localhost:9545"), ","),
	})
	ix := indexer.New(logger, store, chainClient, indexer.ConfigFromEnv())

	app := &types.App{
		Store:      store,
		Sandbox:    sb,
		Cache:      resultCache,
		Classifier: classifier,
		Indexer:    ix,
		Logger:     logger,
	}

	app.Cron = cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := app.Cron.AddFunc("@every 1m", func() {
		if n := resultCache.Sweep(); n > 0 {
			logger.Debug("cache sweep", zap.Int("evicted", n))
		}
	}); err != nil {
		logger.Fatal("Unable to schedule cache sweep", zap.Error(err))
	}
	app.Cron.Start()

	if utils.Env("INDEXER_ENABLED", "false") == "true" {
		if err := ix.Start(ctx); err != nil {
			logger.Warn("Indexer failed to start - queries will run against existing data",
				zap.Error(err))
		}
	} else {
		logger.Info("Indexer disabled - start it via the API when needed")
	}

	return app
}
