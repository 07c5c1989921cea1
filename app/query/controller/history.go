package controller

import (
	"math"
	"net/http"
	"strconv"

	"github.com/chainlens-network/chainlensx/pkg/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type historyResponse struct {
	Data   []storage.QueryExecution `json:"data"`
	Total  uint64                   `json:"total"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

func parsePage(r *http.Request) (limit, offset int, err error) {
	qs := r.URL.Query()
	limit = defaultLimit
	if v := qs.Get("limit"); v != "" {
		n, parseErr := strconv.Atoi(v)
		if parseErr != nil || n <= 0 {
			return 0, 0, errInvalidLimit
		}
		limit = int(math.Min(float64(n), maxLimit))
	}
	if v := qs.Get("offset"); v != "" {
		n, parseErr := strconv.Atoi(v)
		if parseErr != nil || n < 0 {
			return 0, 0, errInvalidOffset
		}
		offset = n
	}
	return limit, offset, nil
}

var (
	errInvalidLimit  = &parseError{msg: "invalid limit"}
	errInvalidOffset = &parseError{msg: "invalid offset"}
)

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

// HandleHistory returns the query audit log, newest first.
func (c *Controller) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()

	rows, err := c.App.Store.QueryExecutions(ctx, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	total, err := c.App.Store.CountQueryExecutions(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Data:   rows,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}
