package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kingbora/easy-law-sub001/pkg/observability"
)

// requiredTables is the schema surface the service depends on. The
// readiness probe refuses traffic until every table exists.
var requiredTables = []string{
	"cases",
	"case_changes",
}

// ReadinessChecker verifies the schema exists before the service
// admits traffic. It is used both at startup (waiting for an external
// migration job) and by the readiness endpoint.
type ReadinessChecker struct {
	db     *sqlx.DB
	tables []string
	logger observability.Logger
}

// NewReadinessChecker creates a checker for the service's required tables.
func NewReadinessChecker(db *sqlx.DB, logger observability.Logger) *ReadinessChecker {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &ReadinessChecker{
		db:     db,
		tables: requiredTables,
		logger: logger,
	}
}

// TablesExist checks if all required tables exist in the active schema.
func (r *ReadinessChecker) TablesExist(ctx context.Context) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		AND table_name = ANY($1)
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, pq.Array(r.tables)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check tables: %w", err)
	}

	return count == len(r.tables), nil
}

// WaitForTables waits for the schema to appear, backing off
// exponentially between checks. Used when migrations run out of
// process and the service must not start before they finish.
func (r *ReadinessChecker) WaitForTables(ctx context.Context, maxWait time.Duration) error {
	r.logger.Info("Waiting for database tables", map[string]interface{}{
		"tables":   strings.Join(r.tables, ","),
		"max_wait": maxWait.String(),
	})

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 32 * time.Second
	b.MaxElapsedTime = maxWait

	attempt := 0
	check := func() error {
		attempt++
		exists, err := r.TablesExist(ctx)
		if err != nil {
			r.logger.Warn("Failed to check tables", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			return err
		}
		if exists {
			return nil
		}

		missing := r.getMissingTables(ctx)
		r.logger.Info("Tables not ready", map[string]interface{}{
			"attempt": attempt,
			"missing": strings.Join(missing, ","),
		})
		return fmt.Errorf("missing tables: %s", strings.Join(missing, ","))
	}

	if err := backoff.Retry(check, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("tables not ready after %d attempts: %w", attempt, err)
	}

	r.logger.Info("All required tables are ready", map[string]interface{}{
		"attempts": attempt,
	})
	return nil
}

// getMissingTables returns the required tables that do not exist yet.
func (r *ReadinessChecker) getMissingTables(ctx context.Context) []string {
	query := `
		SELECT table_name
		FROM unnest($1::text[]) AS required(table_name)
		WHERE NOT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = current_schema()
			AND table_name = required.table_name
		)
	`

	var missing []string
	rows, err := r.db.QueryContext(ctx, query, pq.Array(r.tables))
	if err != nil {
		r.logger.Warn("Failed to list missing tables", map[string]interface{}{
			"error": err.Error(),
		})
		return []string{"unknown"}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Warn("Failed to close rows", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err == nil {
			missing = append(missing, table)
		}
	}

	return missing
}

// HealthCheck verifies connectivity and that the schema is present.
func (r *ReadinessChecker) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	exists, err := r.TablesExist(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify tables: %w", err)
	}
	if !exists {
		missing := r.getMissingTables(ctx)
		return fmt.Errorf("missing required tables: %s", strings.Join(missing, ","))
	}

	return nil
}
