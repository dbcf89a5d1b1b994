package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kingbora/easy-law-sub001/pkg/common/cache"
	"github.com/kingbora/easy-law-sub001/pkg/models"
	"github.com/kingbora/easy-law-sub001/pkg/observability"
	"github.com/kingbora/easy-law-sub001/pkg/repository/interfaces"
	"github.com/kingbora/easy-law-sub001/pkg/repository/types"
	"github.com/kingbora/easy-law-sub001/pkg/resilience"
)

const caseColumns = `
		id, tenant_id, case_number, title, description, status,
		assigned_lawyer_id, client_name, opposing_party, court_name,
		claim_amount, opened_at, next_hearing_at, participants, hearings,
		tags, notes, created_at, updated_at, updated_by, deleted_at, version`

// caseRepository implements CaseRepository on PostgreSQL with caching,
// circuit breaking and the shared query instrumentation.
type caseRepository struct {
	*BaseRepository
}

// NewCaseRepository creates a production-ready case repository
func NewCaseRepository(
	writeDB, readDB *sqlx.DB,
	cache cache.Cache,
	logger observability.Logger,
	tracer observability.StartSpanFunc,
	metrics observability.MetricsClient,
) interfaces.CaseRepository {
	config := BaseRepositoryConfig{
		QueryTimeout: 30 * time.Second,
		MaxRetries:   3,
		CacheTimeout: 5 * time.Minute,
	}

	cbConfig := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		// A burst of contended commits or missed lookups means the
		// backend is healthy and busy, not failing; only storage errors
		// may open the breaker. Mirrors isRetryableDBError.
		IsSuccessful: func(err error) bool {
			switch {
			case err == nil:
				return true
			case errors.Is(err, interfaces.ErrNotFound),
				errors.Is(err, interfaces.ErrDuplicate),
				errors.Is(err, interfaces.ErrValidation),
				errors.Is(err, interfaces.ErrOptimisticLock):
				return true
			}
			return false
		},
	}
	cb := resilience.NewCircuitBreaker("case_repository", cbConfig, logger, metrics)

	return &caseRepository{
		BaseRepository: NewBaseRepository(writeDB, readDB, cache, logger, tracer, metrics, config).WithCircuitBreaker(cb),
	}
}

func caseCacheKey(tenantID, id string) string {
	return fmt.Sprintf("case:%s:%s", tenantID, id)
}

// Create inserts a new case. The record enters the version ledger at
// version 0; the first committed update moves it to 1.
func (r *caseRepository) Create(ctx context.Context, c *models.Case) error {
	ctx, span := r.tracer(ctx, "CaseRepository.Create")
	defer span.End()

	_, err := r.ExecuteWithCircuitBreaker(ctx, "case_create", func() (interface{}, error) {
		return nil, r.doCreate(ctx, c)
	})
	return err
}

func (r *caseRepository) doCreate(ctx context.Context, c *models.Case) error {
	timer := r.metrics.StartTimer("repository_query_duration", map[string]string{"operation": "create"})
	defer timer()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		INSERT INTO cases (
			id, tenant_id, case_number, title, description, status,
			assigned_lawyer_id, client_name, opposing_party, court_name,
			claim_amount, opened_at, next_hearing_at, participants, hearings,
			tags, notes, created_at, updated_at, updated_by, version
		) VALUES (
			:id, :tenant_id, :case_number, :title, :description, :status,
			:assigned_lawyer_id, :client_name, :opposing_party, :court_name,
			:claim_amount, :opened_at, :next_hearing_at, :participants, :hearings,
			:tags, :notes, :created_at, :updated_at, :updated_by, :version
		)
		ON CONFLICT (id) DO NOTHING
		RETURNING id`

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 0

	stmt, err := r.GetPreparedStatement("create_case", query, r.writeDB)
	if err != nil {
		return errors.Wrap(err, "failed to prepare statement")
	}

	var returnedID uuid.UUID
	err = stmt.GetContext(ctx, &returnedID, c)
	if err != nil {
		r.metrics.IncrementCounterWithLabels("repository_errors", 1, map[string]string{"operation": "create", "error_type": classifyDBError(err)})
		if err == sql.ErrNoRows {
			return interfaces.ErrDuplicate
		}
		return r.TranslateError(err, "case")
	}

	_ = r.CacheDelete(ctx, caseCacheKey(c.TenantID.String(), c.ID.String()))

	r.metrics.IncrementCounterWithLabels("repository_queries", 1, map[string]string{"operation": "create", "result": "success"})
	return nil
}

// Get retrieves a live case, cache first, then the read pool.
func (r *caseRepository) Get(ctx context.Context, tenantID, id string) (*models.Case, error) {
	ctx, span := r.tracer(ctx, "CaseRepository.Get")
	defer span.End()

	cacheKey := caseCacheKey(tenantID, id)
	var c models.Case
	if err := r.CacheGet(ctx, cacheKey, &c); err == nil {
		return &c, nil
	}

	_, err := r.ExecuteWithCircuitBreaker(ctx, "case_get", func() (interface{}, error) {
		return nil, r.doGet(ctx, tenantID, id, &c)
	})
	if err != nil {
		return nil, err
	}

	if err := r.CacheSet(ctx, cacheKey, &c, 0); err != nil {
		r.logger.Warn("Failed to cache case", map[string]interface{}{"error": err.Error(), "case_id": c.ID})
	}

	return &c, nil
}

// GetLatest reads a live case straight from the database, skipping the
// cache read, and refreshes the cache with what it finds. Conflict checks
// use it so a stale cache entry can never pass for the current state.
func (r *caseRepository) GetLatest(ctx context.Context, tenantID, id string) (*models.Case, error) {
	ctx, span := r.tracer(ctx, "CaseRepository.GetLatest")
	defer span.End()

	var c models.Case
	_, err := r.ExecuteWithCircuitBreaker(ctx, "case_get_latest", func() (interface{}, error) {
		return nil, r.doGet(ctx, tenantID, id, &c)
	})
	if err != nil {
		return nil, err
	}

	if err := r.CacheSet(ctx, caseCacheKey(tenantID, id), &c, 0); err != nil {
		r.logger.Warn("Failed to cache case", map[string]interface{}{"error": err.Error(), "case_id": c.ID})
	}

	return &c, nil
}

func (r *caseRepository) doGet(ctx context.Context, tenantID, id string, c *models.Case) error {
	timer := r.metrics.StartTimer("repository_query_duration", map[string]string{"operation": "get"})
	defer timer()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT` + caseColumns + `
		FROM cases
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`

	err := r.readDB.GetContext(ctx, c, query, tenantID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return interfaces.ErrNotFound
		}
		r.metrics.IncrementCounterWithLabels("repository_errors", 1, map[string]string{"operation": "get", "error_type": classifyDBError(err)})
		return errors.Wrap(err, "failed to get case")
	}

	r.metrics.IncrementCounterWithLabels("repository_queries", 1, map[string]string{"operation": "get", "result": "success"})
	return nil
}

// CurrentVersion reads only the version column of a live case. It bypasses
// the cache so conflict checks always see the latest committed version.
func (r *caseRepository) CurrentVersion(ctx context.Context, tenantID, id string) (int, error) {
	ctx, span := r.tracer(ctx, "CaseRepository.CurrentVersion")
	defer span.End()

	var version int
	_, err := r.ExecuteWithCircuitBreaker(ctx, "case_current_version", func() (interface{}, error) {
		return nil, r.doCurrentVersion(ctx, tenantID, id, &version)
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (r *caseRepository) doCurrentVersion(ctx context.Context, tenantID, id string, version *int) error {
	timer := r.metrics.StartTimer("repository_query_duration", map[string]string{"operation": "current_version"})
	defer timer()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `SELECT version FROM cases WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`

	err := r.readDB.GetContext(ctx, version, query, tenantID, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return interfaces.ErrNotFound
		}
		r.metrics.IncrementCounterWithLabels("repository_errors", 1, map[string]string{"operation": "current_version", "error_type": classifyDBError(err)})
		return errors.Wrap(err, "failed to get case version")
	}
	return nil
}

// CommitUpdate writes an already-merged case state conditionally on the
// stored version still being expectedVersion, and records the journal row
// in the same transaction. A lost race surfaces as ErrOptimisticLock, a
// vanished or soft-deleted row as ErrNotFound.
func (r *caseRepository) CommitUpdate(ctx context.Context, c *models.Case, expectedVersion int, change *models.CaseChange) error {
	ctx, span := r.tracer(ctx, "CaseRepository.CommitUpdate")
	defer span.End()

	_, err := r.ExecuteWithCircuitBreaker(ctx, "case_commit_update", func() (interface{}, error) {
		return nil, r.doCommitUpdate(ctx, c, expectedVersion, change)
	})
	return err
}

func (r *caseRepository) doCommitUpdate(ctx context.Context, c *models.Case, expectedVersion int, change *models.CaseChange) error {
	timer := r.metrics.StartTimer("repository_query_duration", map[string]string{"operation": "commit_update"})
	defer timer()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	if change == nil {
		change = &models.CaseChange{}
	}

	c.Version = expectedVersion + 1
	c.UpdatedAt = time.Now()

	err := r.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE cases SET
				title = :title,
				description = :description,
				status = :status,
				assigned_lawyer_id = :assigned_lawyer_id,
				client_name = :client_name,
				opposing_party = :opposing_party,
				court_name = :court_name,
				claim_amount = :claim_amount,
				opened_at = :opened_at,
				next_hearing_at = :next_hearing_at,
				participants = :participants,
				hearings = :hearings,
				tags = :tags,
				notes = :notes,
				updated_at = :updated_at,
				updated_by = :updated_by,
				version = :version
			WHERE tenant_id = :tenant_id AND id = :id AND version = :expected_version AND deleted_at IS NULL`

		// Carry the expected version alongside the case for named binding
		caseWithVer := &struct {
			*models.Case
			ExpectedVersion int `db:"expected_version"`
		}{
			Case:            c,
			ExpectedVersion: expectedVersion,
		}

		result, err := tx.NamedExecContext(ctx, query, caseWithVer)
		if err != nil {
			r.metrics.IncrementCounterWithLabels("repository_errors", 1, map[string]string{"operation": "commit_update", "error_type": classifyDBError(err)})
			return errors.Wrap(err, "failed to update case")
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "failed to get rows affected")
		}

		if rowsAffected == 0 {
			// Distinguish a stale version from a missing row
			var exists bool
			err = tx.GetContext(ctx, &exists,
				"SELECT EXISTS(SELECT 1 FROM cases WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL)",
				c.TenantID, c.ID)
			if err != nil {
				return errors.Wrap(err, "failed to check case existence")
			}
			if !exists {
				return interfaces.ErrNotFound
			}
			return interfaces.ErrOptimisticLock
		}

		change.CaseID = c.ID
		change.TenantID = c.TenantID
		change.Version = c.Version
		change.ChangedAt = c.UpdatedAt
		if change.ID == uuid.Nil {
			change.ID = uuid.New()
		}
		if change.ChangedBy == "" {
			change.ChangedBy = c.UpdatedBy
		}

		insert := `
			INSERT INTO case_changes (
				id, case_id, tenant_id, version, changed_fields, changed_by, merged, changed_at
			) VALUES (
				:id, :case_id, :tenant_id, :version, :changed_fields, :changed_by, :merged, :changed_at
			)`

		if _, err := tx.NamedExecContext(ctx, insert, change); err != nil {
			return errors.Wrap(err, "failed to record case change")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := r.CacheDelete(ctx, caseCacheKey(c.TenantID.String(), c.ID.String())); err != nil {
		r.logger.Warn("Failed to invalidate case cache after commit", map[string]interface{}{"error": err.Error(), "case_id": c.ID})
	}

	r.metrics.IncrementCounterWithLabels("repository_queries", 1, map[string]string{"operation": "commit_update", "result": "success"})
	return nil
}

// List returns a filtered page of cases for a tenant, newest first by
// default.
func (r *caseRepository) List(ctx context.Context, tenantID string, filter interfaces.CaseFilter) (*interfaces.CasePage, error) {
	ctx, span := r.tracer(ctx, "CaseRepository.List")
	defer span.End()

	var page *interfaces.CasePage
	_, err := r.ExecuteWithCircuitBreaker(ctx, "case_list", func() (interface{}, error) {
		p, err := r.doList(ctx, tenantID, filter)
		if err != nil {
			return nil, err
		}
		page = p
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (r *caseRepository) doList(ctx context.Context, tenantID string, filter interfaces.CaseFilter) (*interfaces.CasePage, error) {
	timer := r.metrics.StartTimer("repository_query_duration", map[string]string{"operation": "list"})
	defer timer()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query, args := buildCaseQuery(tenantID, filter)

	countQuery := "SELECT COUNT(*)" + query[strings.Index(query, " FROM"):]
	countQuery = strings.Split(countQuery, " ORDER BY")[0]

	var totalCount int64
	if err := r.readDB.GetContext(ctx, &totalCount, countQuery, args...); err != nil {
		r.metrics.IncrementCounterWithLabels("repository_errors", 1, map[string]string{"operation": "list", "error_type": classifyDBError(err)})
		return nil, errors.Wrap(err, "failed to count cases")
	}

	var cases []*models.Case
	if err := r.readDB.SelectContext(ctx, &cases, query, args...); err != nil {
		r.metrics.IncrementCounterWithLabels("repository_errors", 1, map[string]string{"operation": "list", "error_type": classifyDBError(err)})
		return nil, errors.Wrap(err, "failed to list cases")
	}

	hasMore := filter.Limit > 0 && len(cases) == filter.Limit

	r.metrics.IncrementCounterWithLabels("repository_queries", 1, map[string]string{"operation": "list", "result": "success"})

	return &interfaces.CasePage{
		Cases: cases,
		PageInfo: types.PageInfo{
			TotalCount: totalCount,
			HasMore:    hasMore,
		},
	}, nil
}

func buildCaseQuery(tenantID string, filter interfaces.CaseFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argCount := 1

	query := "SELECT" + caseColumns + " FROM cases WHERE"
	if filter.IncludeDeleted {
		query += " TRUE"
	} else {
		query += " deleted_at IS NULL"
	}

	conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argCount))
	args = append(args, tenantID)
	argCount++

	if len(filter.Status) > 0 {
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argCount))
		args = append(args, pq.Array(filter.Status))
		argCount++
	}

	if filter.AssignedLawyer != nil {
		conditions = append(conditions, fmt.Sprintf("assigned_lawyer_id = $%d", argCount))
		args = append(args, *filter.AssignedLawyer)
		argCount++
	}

	if filter.ClientName != nil {
		conditions = append(conditions, fmt.Sprintf("client_name ILIKE $%d", argCount))
		args = append(args, "%"+*filter.ClientName+"%")
		argCount++
	}

	if filter.OpenedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("opened_at >= $%d", argCount))
		args = append(args, *filter.OpenedAfter)
		argCount++
	}

	if filter.OpenedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("opened_at <= $%d", argCount))
		args = append(args, *filter.OpenedBefore)
		argCount++
	}

	if len(filter.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("tags @> $%d::jsonb", argCount))
		args = append(args, string(mustJSON(filter.Tags)))
		argCount++
	}

	query += " AND " + strings.Join(conditions, " AND ")

	sortBy := filter.SortBy
	if !isSortableCaseColumn(sortBy) {
		sortBy = "created_at"
	}
	sortOrder := filter.SortOrder
	if sortOrder != types.SortAsc {
		sortOrder = types.SortDesc
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, sortOrder)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	return query, args
}

// isSortableCaseColumn whitelists ORDER BY targets; sort keys come from
// query strings and are never interpolated unchecked.
func isSortableCaseColumn(name string) bool {
	switch name {
	case "created_at", "updated_at", "opened_at", "case_number", "title", "status", "version":
		return true
	}
	return false
}

func mustJSON(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte("[]")
	}
	return raw
}

// SoftDelete marks a case deleted. The row and its journal survive for
// audit; reads and commits treat the case as gone.
func (r *caseRepository) SoftDelete(ctx context.Context, tenantID, id, actorID string) error {
	ctx, span := r.tracer(ctx, "CaseRepository.SoftDelete")
	defer span.End()

	_, err := r.ExecuteWithCircuitBreaker(ctx, "case_soft_delete", func() (interface{}, error) {
		return nil, r.doSoftDelete(ctx, tenantID, id, actorID)
	})
	return err
}

func (r *caseRepository) doSoftDelete(ctx context.Context, tenantID, id, actorID string) error {
	timer := r.metrics.StartTimer("repository_query_duration", map[string]string{"operation": "soft_delete"})
	defer timer()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		UPDATE cases
		SET deleted_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP, updated_by = $3
		WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`

	result, err := r.writeDB.ExecContext(ctx, query, tenantID, id, actorID)
	if err != nil {
		r.metrics.IncrementCounterWithLabels("repository_errors", 1, map[string]string{"operation": "soft_delete", "error_type": classifyDBError(err)})
		return errors.Wrap(err, "failed to soft delete case")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}

	if rowsAffected == 0 {
		return interfaces.ErrNotFound
	}

	_ = r.CacheDelete(ctx, caseCacheKey(tenantID, id))

	r.metrics.IncrementCounterWithLabels("repository_queries", 1, map[string]string{"operation": "soft_delete", "result": "success"})
	return nil
}

// ListChanges returns the journal rows for a case, newest first.
func (r *caseRepository) ListChanges(ctx context.Context, tenantID, caseID string, limit int) ([]*models.CaseChange, error) {
	ctx, span := r.tracer(ctx, "CaseRepository.ListChanges")
	defer span.End()

	var changes []*models.CaseChange
	_, err := r.ExecuteWithCircuitBreaker(ctx, "case_list_changes", func() (interface{}, error) {
		return nil, r.doListChanges(ctx, tenantID, caseID, limit, &changes)
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (r *caseRepository) doListChanges(ctx context.Context, tenantID, caseID string, limit int, changes *[]*models.CaseChange) error {
	timer := r.metrics.StartTimer("repository_query_duration", map[string]string{"operation": "list_changes"})
	defer timer()

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, case_id, tenant_id, version, changed_fields, changed_by, merged, changed_at
		FROM case_changes
		WHERE tenant_id = $1 AND case_id = $2
		ORDER BY version DESC
		LIMIT $3`

	err := r.readDB.SelectContext(ctx, changes, query, tenantID, caseID, limit)
	if err != nil {
		r.metrics.IncrementCounterWithLabels("repository_errors", 1, map[string]string{"operation": "list_changes", "error_type": classifyDBError(err)})
		return errors.Wrap(err, "failed to list case changes")
	}

	r.metrics.IncrementCounterWithLabels("repository_queries", 1, map[string]string{"operation": "list_changes", "result": "success"})
	return nil
}
