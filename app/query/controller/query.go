package controller

import (
	"net/http"
	"strings"

	"github.com/go-jose/go-jose/v4/json"

	"github.com/chainlens-network/chainlensx/pkg/qerror"
	"github.com/chainlens-network/chainlensx/pkg/sandbox"
)

// queryRequest is the POST /api/query body. The tuning fields mirror
// sandbox.Options; out-of-range values get clamped, not rejected.
type queryRequest struct {
	Query     string `json:"query"`
	UserID    string `json:"user_id,omitempty"`
	UseCache  *bool  `json:"use_cache,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
	MaxRows   int    `json:"max_rows,omitempty"`
}

// HandleQuery runs one sandboxed query. Query failures are part of the
// result payload, not HTTP errors; only rate limiting maps to a status code.
func (c *Controller) HandleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}

	result := c.App.Sandbox.ExecuteQuery(r.Context(), req.Query, sandbox.Options{
		UserID:    req.UserID,
		UseCache:  req.UseCache,
		TimeoutMs: req.TimeoutMs,
		MaxRows:   req.MaxRows,
	})

	status := http.StatusOK
	if result.Error != nil && result.Error.Kind == qerror.RateLimitError {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, result)
}

// HandleValidate checks a query without executing it.
func (c *Controller) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, c.App.Sandbox.ValidateQuery(req.Query))
}
