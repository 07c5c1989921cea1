package types

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chainlens-network/chainlensx/pkg/cache"
	"github.com/chainlens-network/chainlensx/pkg/indexer"
	"github.com/chainlens-network/chainlensx/pkg/qerror"
	"github.com/chainlens-network/chainlensx/pkg/sandbox"
	"github.com/chainlens-network/chainlensx/pkg/storage"
)

type App struct {
	Store      storage.Store
	Sandbox    *sandbox.Sandbox
	Cache      *cache.Cache
	Classifier *qerror.Classifier
	Indexer    *indexer.Indexer

	// Cron drives the periodic cache sweep.
	Cron *cron.Cron

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.Indexer != nil && a.Indexer.Running() {
		if err := a.Indexer.Stop(); err != nil {
			a.Logger.Error("Failed to stop indexer", zap.Error(err))
		}
	}
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
