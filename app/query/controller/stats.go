package controller

import (
	"net/http"
	"strconv"

	"github.com/chainlens-network/chainlensx/pkg/indexer"
	"github.com/chainlens-network/chainlensx/pkg/schema"
)

// HandleStats reports engine and ledger statistics in one payload.
func (c *Controller) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := c.App.Store.DataCounts(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	sync := c.App.Indexer.Status()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queries":             c.App.Sandbox.Stats(),
		"cacheSize":           c.App.Cache.Len(),
		"cacheHitRate":        c.App.Cache.HitRate(),
		"availableTables":     schema.TableNames(),
		"dataCounts":          counts,
		"latestIndexedHeight": sync.LastSyncedHeight,
		"indexer": map[string]interface{}{
			"running":             sync.State == indexer.StateRunning,
			"chainHeight":         sync.CurrentChainHeight,
			"syncProgressPercent": sync.ProgressPercent,
			"rpcEndpoint":         sync.Endpoint,
		},
	})
}

// HandleErrors returns recently classified query errors, newest first.
func (c *Controller) HandleErrors(w http.ResponseWriter, r *http.Request) {
	n := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		n = parsed
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  c.App.Classifier.Recent(n),
		"total": c.App.Classifier.Len(),
	})
}
