// Package sandbox orchestrates one query through the full safety pipeline:
// rate limit, cache, validation, parse, allowlist, complexity gate, advisory
// optimization, bounded execution, cache population and audit logging. Many
// ExecuteQuery calls run concurrently; the cache and the rate-limiter map are
// the only shared mutable state.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainlens-network/chainlensx/pkg/cache"
	"github.com/chainlens-network/chainlensx/pkg/optimizer"
	"github.com/chainlens-network/chainlensx/pkg/qerror"
	"github.com/chainlens-network/chainlensx/pkg/schema"
	"github.com/chainlens-network/chainlensx/pkg/sqlparse"
	"github.com/chainlens-network/chainlensx/pkg/storage"
	"github.com/chainlens-network/chainlensx/pkg/validator"
)

const (
	MinTimeoutMs     = 1000
	MaxTimeoutMs     = 30000
	DefaultTimeoutMs = 10000

	MinRows     = 1
	MaxRows     = 10000
	DefaultRows = 1000

	// DefaultMaxComplexity rejects plans the timeout alone cannot protect
	// against (wide joins fan out before the clock fires).
	DefaultMaxComplexity = 30

	// cacheableExecution is the "fast enough to cache" ceiling. Slower
	// results are not cached: pathological queries should not be able to
	// park themselves in memory.
	cacheableExecution = 5 * time.Second

	anonymousUser = "anonymous"
)

// Options tunes one ExecuteQuery call. Zero values pick the defaults;
// out-of-range values are clamped, not rejected.
type Options struct {
	UserID    string `json:"user_id,omitempty"`
	UseCache  *bool  `json:"use_cache,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
	MaxRows   int    `json:"max_rows,omitempty"`
}

func (o *Options) normalize() (userID string, useCache bool, timeout time.Duration, maxRows int) {
	userID = o.UserID
	if userID == "" {
		userID = anonymousUser
	}
	useCache = true
	if o.UseCache != nil {
		useCache = *o.UseCache
	}
	ms := o.TimeoutMs
	if ms == 0 {
		ms = DefaultTimeoutMs
	}
	if ms < MinTimeoutMs {
		ms = MinTimeoutMs
	}
	if ms > MaxTimeoutMs {
		ms = MaxTimeoutMs
	}
	maxRows = o.MaxRows
	if maxRows == 0 {
		maxRows = DefaultRows
	}
	if maxRows < MinRows {
		maxRows = MinRows
	}
	if maxRows > MaxRows {
		maxRows = MaxRows
	}
	return userID, useCache, time.Duration(ms) * time.Millisecond, maxRows
}

// QueryResult is the outcome returned to the caller.
type QueryResult struct {
	Success         bool          `json:"success"`
	Data            []storage.Row `json:"data,omitempty"`
	Error           *qerror.Error `json:"error,omitempty"`
	ExecutionTimeMs float64       `json:"execution_time_ms"`
	RowCount        int           `json:"row_count"`
	FromCache       bool          `json:"from_cache"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// Sandbox owns the per-process query safety state. Construct with New.
type Sandbox struct {
	logger     *zap.Logger
	store      storage.Store
	cache      *cache.Cache
	classifier *qerror.Classifier
	limiter    *RateLimiter
	stats      *Stats

	allowlist     map[string]bool
	maxComplexity int
}

// Config tunes a Sandbox. Zero values pick the defaults.
type Config struct {
	RateQuota     int
	RateWindow    time.Duration
	MaxComplexity int
	// AllowedTables defaults to every table in the schema registry.
	AllowedTables []string
}

// New builds a sandbox around the given collaborators.
func New(logger *zap.Logger, store storage.Store, resultCache *cache.Cache, classifier *qerror.Classifier, cfg Config) *Sandbox {
	if cfg.MaxComplexity <= 0 {
		cfg.MaxComplexity = DefaultMaxComplexity
	}
	tables := cfg.AllowedTables
	if len(tables) == 0 {
		tables = schema.TableNames()
	}
	allow := make(map[string]bool, len(tables))
	for _, t := range tables {
		allow[strings.ToLower(t)] = true
	}
	return &Sandbox{
		logger:        logger,
		store:         store,
		cache:         resultCache,
		classifier:    classifier,
		limiter:       NewRateLimiter(cfg.RateQuota, cfg.RateWindow),
		stats:         &Stats{},
		allowlist:     allow,
		maxComplexity: cfg.MaxComplexity,
	}
}

// Stats returns the cumulative resource counters.
func (s *Sandbox) Stats() StatsSnapshot { return s.stats.Snapshot() }

// Cache exposes the result cache for the stats endpoint.
func (s *Sandbox) Cache() *cache.Cache { return s.cache }

// ValidateQuery runs the security gate without executing anything.
func (s *Sandbox) ValidateQuery(text string) validator.Result {
	return validator.Validate(text)
}

// ExecuteQuery runs text through the pipeline. It never returns a Go error:
// every failure is classified into the result's Error field.
func (s *Sandbox) ExecuteQuery(ctx context.Context, text string, opts Options) QueryResult {
	start := time.Now()
	userID, useCache, timeout, maxRows := opts.normalize()

	// (a) rate limit, before any other work.
	if !s.limiter.Allow(userID) {
		return s.failure(qerror.RateLimitError, "per-minute query quota exceeded", text, userID)
	}

	// (b) cache lookup.
	if useCache {
		if entry := s.cache.Get(text); entry != nil {
			elapsed := msSince(start)
			s.stats.recordSuccess(len(entry.Rows), elapsed)
			s.audit(ctx, userID, text, elapsed, entry.Rows, true)
			return QueryResult{
				Success:         true,
				Data:            entry.Rows,
				ExecutionTimeMs: elapsed,
				RowCount:        len(entry.Rows),
				FromCache:       true,
			}
		}
	}

	// (c) security validation on the raw text.
	vres := validator.Validate(text)
	if !vres.IsValid {
		kind := vres.Kind
		if kind == "" {
			kind = qerror.ValidationError
		}
		return s.failure(kind, strings.Join(vres.Errors, "; "), text, userID)
	}
	warnings := append([]string(nil), vres.Warnings...)
	warnings = append(warnings, vres.Suggestions...)

	// Structural parse.
	plan := sqlparse.Parse(text)
	if !plan.Valid {
		kind := qerror.SyntaxError
		for _, e := range plan.Errors {
			if strings.Contains(e, "unknown table") {
				kind = qerror.PermissionError
				break
			}
		}
		return s.failure(kind, strings.Join(plan.Errors, "; "), text, userID)
	}

	// (d) table allowlist, separate from schema existence.
	for _, table := range plan.Tables {
		if !s.allowlist[table] {
			return s.failure(qerror.PermissionError,
				fmt.Sprintf("table %s is not available to this service", table), text, userID)
		}
	}

	// Complexity gate, independent of the wall-clock timeout.
	if plan.Complexity > s.maxComplexity {
		return s.failure(qerror.ResourceError,
			fmt.Sprintf("complexity %d exceeds ceiling %d", plan.Complexity, s.maxComplexity),
			text, userID)
	}

	// (e) advisory optimization.
	opt := optimizer.Optimize(plan)
	warnings = append(warnings, opt.Warnings...)

	// (f) bounded execution.
	executed := injectLimit(text, plan, maxRows)
	rows, err := s.executeWithTimeout(ctx, executed, timeout)
	if err != nil {
		kind := qerror.ExecutionError
		if errors.Is(err, context.DeadlineExceeded) {
			kind = qerror.TimeoutError
		}
		res := s.failure(kind, err.Error(), text, userID)
		res.Warnings = warnings
		res.ExecutionTimeMs = msSince(start)
		return res
	}

	// Second safety net: adjust client-side even if the injected LIMIT was
	// outrun by an explicit larger one.
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	elapsed := msSince(start)

	// (g) cache only complete, fast results.
	if useCache && time.Duration(elapsed*float64(time.Millisecond)) < cacheableExecution {
		s.cache.Set(text, rows, elapsed)
	}

	// (h) resource accounting and audit trail.
	s.stats.recordSuccess(len(rows), elapsed)
	s.audit(ctx, userID, text, elapsed, rows, false)

	s.logger.Debug("query executed",
		zap.String("user_id", userID),
		zap.Int("rows", len(rows)),
		zap.Float64("elapsed_ms", elapsed),
		zap.Int("complexity", plan.Complexity))

	return QueryResult{
		Success:         true,
		Data:            rows,
		ExecutionTimeMs: elapsed,
		RowCount:        len(rows),
		Warnings:        warnings,
	}
}

// executeWithTimeout races the storage call against the deadline. On timeout
// the storage call is abandoned, not cancelled: the context is passed down,
// but a backend that ignores it may run the query to completion unseen.
func (s *Sandbox) executeWithTimeout(ctx context.Context, query string, timeout time.Duration) ([]storage.Row, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		rows []storage.Row
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		rows, err := s.store.Execute(execCtx, query)
		done <- outcome{rows, err}
	}()

	select {
	case <-execCtx.Done():
		// Distinguish the sandbox deadline from the caller's own context
		// going away (client disconnect is not a timeout).
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, context.DeadlineExceeded
	case out := <-done:
		return out.rows, out.err
	}
}

var trailingOffset = regexp.MustCompile(`(?i)\bOFFSET\s+\d+\s*$`)

// injectLimit adds a LIMIT when the statement has none, so the row cap is
// enforced by the backing store and not only client-side. An explicit LIMIT
// is kept as written, even LIMIT 0 or one above the cap; oversized results
// are trimmed client-side afterwards.
func injectLimit(text string, plan *sqlparse.ParsedQuery, maxRows int) string {
	trimmed := strings.TrimRight(strings.TrimSpace(text), "; \t")
	if plan.HasLimit {
		return trimmed
	}
	clause := fmt.Sprintf("LIMIT %d", maxRows)
	if plan.HasOffset {
		// LIMIT must precede OFFSET.
		if loc := trailingOffset.FindStringIndex(trimmed); loc != nil {
			return trimmed[:loc[0]] + clause + " " + trimmed[loc[0]:]
		}
	}
	return trimmed + " " + clause
}

func (s *Sandbox) failure(kind qerror.Kind, details, text, userID string) QueryResult {
	s.stats.recordFailure()
	qe := s.classifier.Classify(kind, details, text, userID)
	s.logger.Debug("query rejected",
		zap.String("kind", string(kind)),
		zap.String("user_id", userID),
		zap.String("details", details))
	return QueryResult{Success: false, Error: qe}
}

// audit records the execution in the query history. Failures to write the
// audit row are logged, never surfaced to the caller.
func (s *Sandbox) audit(ctx context.Context, userID, text string, elapsed float64, rows []storage.Row, cached bool) {
	rec := &storage.QueryExecution{
		ID:              uuid.NewString(),
		UserID:          userID,
		QueryText:       text,
		ExecutionTimeMs: elapsed,
		ResultSizeBytes: storage.SizeBytes(rows),
		RowCount:        len(rows),
		Cached:          cached,
		Timestamp:       time.Now().UTC(),
	}
	if err := s.store.RecordQueryExecution(ctx, rec); err != nil {
		s.logger.Warn("record query execution", zap.Error(err))
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
