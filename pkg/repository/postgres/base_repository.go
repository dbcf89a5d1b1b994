// Package postgres implements the repository interfaces on PostgreSQL
// using split read/write pools, a cache-aside layer, and shared query
// instrumentation.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kingbora/easy-law-sub001/pkg/common/cache"
	"github.com/kingbora/easy-law-sub001/pkg/observability"
	"github.com/kingbora/easy-law-sub001/pkg/repository/interfaces"
	"github.com/kingbora/easy-law-sub001/pkg/repository/types"
	"github.com/kingbora/easy-law-sub001/pkg/resilience"
)

// BaseRepositoryConfig tunes the shared repository plumbing
type BaseRepositoryConfig struct {
	QueryTimeout time.Duration
	MaxRetries   int
	CacheTimeout time.Duration
}

// PatternInvalidator is implemented by caches that can delete by pattern
type PatternInvalidator interface {
	DeletePattern(ctx context.Context, pattern string) error
}

// BaseRepository carries the cross-cutting concerns every concrete
// repository needs: transactions with metrics, cache access, prepared
// statement reuse, retry, circuit breaking, and pq error translation.
type BaseRepository struct {
	writeDB *sqlx.DB
	readDB  *sqlx.DB
	cache   cache.Cache
	logger  observability.Logger
	tracer  observability.StartSpanFunc
	metrics observability.MetricsClient
	cb      *resilience.CircuitBreaker

	queryTimeout time.Duration
	maxRetries   int
	cacheTimeout time.Duration

	stmtMu    sync.RWMutex
	stmtCache map[string]*sqlx.NamedStmt
}

// NewBaseRepository wires the shared plumbing. Zero config fields fall
// back to defaults; tracer may be nil.
func NewBaseRepository(
	writeDB, readDB *sqlx.DB,
	c cache.Cache,
	logger observability.Logger,
	tracer observability.StartSpanFunc,
	metrics observability.MetricsClient,
	config BaseRepositoryConfig,
) *BaseRepository {
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.CacheTimeout <= 0 {
		config.CacheTimeout = 5 * time.Minute
	}
	if tracer == nil {
		tracer = observability.NoopStartSpan
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	return &BaseRepository{
		writeDB:      writeDB,
		readDB:       readDB,
		cache:        c,
		logger:       logger,
		tracer:       tracer,
		metrics:      metrics,
		queryTimeout: config.QueryTimeout,
		maxRetries:   config.MaxRetries,
		cacheTimeout: config.CacheTimeout,
		stmtCache:    make(map[string]*sqlx.NamedStmt),
	}
}

// WithCircuitBreaker attaches a circuit breaker to database calls made
// through ExecuteWithCircuitBreaker.
func (r *BaseRepository) WithCircuitBreaker(cb *resilience.CircuitBreaker) *BaseRepository {
	r.cb = cb
	return r
}

// WithTransaction runs fn inside a transaction on the write pool. The
// transaction is rolled back when fn returns an error.
func (r *BaseRepository) WithTransaction(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return r.WithTransactionOptions(ctx, nil, fn)
}

// WithTransactionOptions runs fn inside a transaction with explicit
// isolation and read-only options.
func (r *BaseRepository) WithTransactionOptions(ctx context.Context, opts *types.TxOptions, fn func(tx *sqlx.Tx) error) error {
	ctx, span := r.tracer(ctx, "repository.transaction")
	defer span.End()

	tx, err := r.writeDB.BeginTxx(ctx, toSQLTxOptions(opts))
	if err != nil {
		r.metrics.IncrementCounter("repository_transaction_errors", 1)
		span.RecordError(err)
		return errors.Wrap(err, "failed to begin transaction")
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			r.logger.Error("Failed to roll back transaction", map[string]interface{}{
				"error":          rbErr.Error(),
				"original_error": err.Error(),
			})
		}
		r.metrics.IncrementCounter("repository_transaction_rollbacks", 1)
		span.RecordError(err)
		return err
	}

	if err := tx.Commit(); err != nil {
		r.metrics.IncrementCounter("repository_transaction_errors", 1)
		span.RecordError(err)
		return errors.Wrap(err, "failed to commit transaction")
	}

	r.metrics.IncrementCounter("repository_transaction_commits", 1)
	return nil
}

func toSQLTxOptions(opts *types.TxOptions) *sql.TxOptions {
	if opts == nil {
		return nil
	}
	sqlOpts := &sql.TxOptions{ReadOnly: opts.ReadOnly}
	switch opts.Isolation {
	case types.IsolationReadUncommitted:
		sqlOpts.Isolation = sql.LevelReadUncommitted
	case types.IsolationReadCommitted:
		sqlOpts.Isolation = sql.LevelReadCommitted
	case types.IsolationRepeatableRead:
		sqlOpts.Isolation = sql.LevelRepeatableRead
	case types.IsolationSerializable:
		sqlOpts.Isolation = sql.LevelSerializable
	}
	return sqlOpts
}

// CacheGet reads a cached value into dest. Misses surface as
// cache.ErrNotFound.
func (r *BaseRepository) CacheGet(ctx context.Context, key string, dest interface{}) error {
	if r.cache == nil {
		return cache.ErrNotFound
	}

	err := r.cache.Get(ctx, key, dest)
	status := "hit"
	if err == cache.ErrNotFound {
		status = "miss"
	} else if err != nil {
		status = "error"
	}
	r.metrics.IncrementCounterWithLabels("repository_cache_operations", 1, map[string]string{
		"operation": "get",
		"status":    status,
	})
	return err
}

// CacheSet stores a value. A non-positive ttl falls back to the
// configured cache timeout.
func (r *BaseRepository) CacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.cache == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = r.cacheTimeout
	}

	err := r.cache.Set(ctx, key, value, ttl)
	r.metrics.IncrementCounterWithLabels("repository_cache_operations", 1, map[string]string{
		"operation": "set",
		"status":    cacheStatus(err),
	})
	return err
}

// CacheDelete removes a single key.
func (r *BaseRepository) CacheDelete(ctx context.Context, key string) error {
	if r.cache == nil {
		return nil
	}

	err := r.cache.Delete(ctx, key)
	r.metrics.IncrementCounterWithLabels("repository_cache_operations", 1, map[string]string{
		"operation": "delete",
		"status":    cacheStatus(err),
	})
	return err
}

func cacheStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// InvalidateCachePattern removes all keys matching pattern when the cache
// supports it; otherwise it only records the invalidation.
func (r *BaseRepository) InvalidateCachePattern(ctx context.Context, pattern string) error {
	r.metrics.IncrementCounterWithLabels("repository_cache_invalidations", 1, map[string]string{
		"pattern": pattern,
	})
	if r.cache == nil {
		return nil
	}
	if inv, ok := r.cache.(PatternInvalidator); ok {
		return inv.DeletePattern(ctx, pattern)
	}
	r.logger.Debug("Cache does not support pattern invalidation", map[string]interface{}{
		"pattern": pattern,
	})
	return nil
}

// TranslateError maps driver errors onto the repository sentinels so
// callers never see pq details.
func (r *BaseRepository) TranslateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return interfaces.ErrDuplicate
		case "23503":
			return errors.Wrap(interfaces.ErrValidation, "foreign key constraint violation")
		case "23502":
			return errors.Wrap(interfaces.ErrValidation, "required field missing")
		case "23514":
			return errors.Wrap(interfaces.ErrValidation, fmt.Sprintf("check constraint violation: %s", pqErr.Constraint))
		case "40001":
			return interfaces.ErrOptimisticLock
		}
	}

	return errors.Wrapf(err, "database error for %s", entity)
}

// ExecuteWithCircuitBreaker runs fn through the attached circuit breaker,
// or directly when none is configured.
func (r *BaseRepository) ExecuteWithCircuitBreaker(ctx context.Context, operation string, fn func() (interface{}, error)) (interface{}, error) {
	if r.cb == nil {
		return fn()
	}

	result, err := r.cb.Execute(ctx, fn)
	if err != nil {
		r.metrics.IncrementCounterWithLabels("repository_circuit_breaker_errors", 1, map[string]string{
			"operation": operation,
		})
		return nil, err
	}
	return result, nil
}

// ExecuteQuery runs fn under the configured query timeout and records
// outcome metrics. The error is returned untranslated.
func (r *BaseRepository) ExecuteQuery(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := r.tracer(ctx, "repository."+name)
	defer span.End()

	queryCtx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	start := time.Now()
	err := fn(queryCtx)
	r.metrics.RecordDatabaseOperation(name, err == nil, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		r.metrics.IncrementCounterWithLabels("repository_query_errors", 1, map[string]string{
			"query": name,
			"error": classifyDBError(err),
		})
		return err
	}

	r.metrics.IncrementCounterWithLabels("repository_query_success", 1, map[string]string{
		"query": name,
	})
	return nil
}

// ExecuteQueryWithRetry retries transient failures with linear backoff.
// Sentinel errors and canceled contexts are never retried.
func (r *BaseRepository) ExecuteQueryWithRetry(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		err := r.ExecuteQuery(ctx, name, fn)
		if err == nil {
			return nil
		}
		if !isRetryableDBError(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		if attempt < r.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
			}
		}
	}
	return errors.Wrapf(lastErr, "query failed after %d attempts", r.maxRetries)
}

func isRetryableDBError(err error) bool {
	switch {
	case errors.Is(err, interfaces.ErrNotFound),
		errors.Is(err, interfaces.ErrDuplicate),
		errors.Is(err, interfaces.ErrValidation),
		errors.Is(err, interfaces.ErrOptimisticLock):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}

// GetPreparedStatement returns a cached named statement, preparing it on
// first use. Safe for concurrent callers.
func (r *BaseRepository) GetPreparedStatement(name, query string, db *sqlx.DB) (*sqlx.NamedStmt, error) {
	r.stmtMu.RLock()
	stmt, ok := r.stmtCache[name]
	r.stmtMu.RUnlock()
	if ok {
		return stmt, nil
	}

	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()
	if stmt, ok := r.stmtCache[name]; ok {
		return stmt, nil
	}

	stmt, err := db.PrepareNamed(query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to prepare statement %s", name)
	}
	r.stmtCache[name] = stmt
	return stmt, nil
}

// Close releases all prepared statements.
func (r *BaseRepository) Close() error {
	r.stmtMu.Lock()
	defer r.stmtMu.Unlock()

	var firstErr error
	for name, stmt := range r.stmtCache {
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to close statement %s", name)
		}
	}
	r.stmtCache = make(map[string]*sqlx.NamedStmt)
	return firstErr
}

// GetMetrics reports internal repository counters.
func (r *BaseRepository) GetMetrics() map[string]interface{} {
	r.stmtMu.RLock()
	defer r.stmtMu.RUnlock()
	return map[string]interface{}{
		"prepared_statements": len(r.stmtCache),
	}
}

// classifyDBError buckets an error for metric labels.
func classifyDBError(err error) string {
	if err == nil {
		return "none"
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	switch {
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, interfaces.ErrNotFound):
		return "not_found"
	case errors.Is(err, interfaces.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, interfaces.ErrValidation):
		return "validation"
	case errors.Is(err, interfaces.ErrOptimisticLock):
		return "optimistic_lock"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "unknown"
}
