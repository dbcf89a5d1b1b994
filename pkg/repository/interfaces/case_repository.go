package interfaces

import (
	"context"
	"time"

	"github.com/kingbora/easy-law-sub001/pkg/models"
	"github.com/kingbora/easy-law-sub001/pkg/repository/types"
)

// CaseFilter defines filtering options for case list queries
type CaseFilter struct {
	Status         []string
	AssignedLawyer *string
	ClientName     *string
	OpenedAfter    *time.Time
	OpenedBefore   *time.Time
	Tags           []string
	IncludeDeleted bool
	Limit          int
	Offset         int
	SortBy         string
	SortOrder      types.SortOrder
}

// CasePage is one page of a case list query
type CasePage struct {
	Cases    []*models.Case
	PageInfo types.PageInfo
}

// CaseRepository defines persistence for cases and their version ledger.
//
// Every committed update advances the case version by exactly one.
// CommitUpdate performs a conditional write: the row is only updated when
// its stored version still equals expectedVersion. A failed condition
// surfaces as ErrOptimisticLock (the row exists at another version) or
// ErrNotFound (the row is gone or soft-deleted), never as a silent no-op.
type CaseRepository interface {
	// Create inserts a new case at version 0.
	Create(ctx context.Context, c *models.Case) error

	// Get loads one case by tenant and id. Soft-deleted cases are not
	// returned. Returns ErrNotFound when no live row matches.
	Get(ctx context.Context, tenantID, id string) (*models.Case, error)

	// GetLatest loads one case like Get but always reads storage,
	// bypassing any caches, so conflict checks classify against the
	// latest committed state.
	GetLatest(ctx context.Context, tenantID, id string) (*models.Case, error)

	// CurrentVersion reads only the stored version of a live case.
	CurrentVersion(ctx context.Context, tenantID, id string) (int, error)

	// CommitUpdate writes c conditionally on the stored version being
	// expectedVersion, bumps the version to expectedVersion+1, and
	// records the change journal row in the same transaction. On
	// success c.Version holds the new version.
	CommitUpdate(ctx context.Context, c *models.Case, expectedVersion int, change *models.CaseChange) error

	// List returns a filtered, paginated page of cases for a tenant.
	List(ctx context.Context, tenantID string, filter CaseFilter) (*CasePage, error)

	// SoftDelete marks a case deleted. The row and its journal are kept.
	SoftDelete(ctx context.Context, tenantID, id, actorID string) error

	// ListChanges returns the most recent journal rows for a case,
	// newest first.
	ListChanges(ctx context.Context, tenantID, caseID string, limit int) ([]*models.CaseChange, error)
}
