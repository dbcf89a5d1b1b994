package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/kingbora/easy-law-sub001/pkg/models"
	"github.com/kingbora/easy-law-sub001/pkg/repository/interfaces"
)

// CaseService is the inbound boundary of the case core.
//
// SubmitUpdate is the resolution coordinator: it validates the payload,
// classifies the update against the currently stored state, and either
// commits through the repository's conditional write or rejects with a
// *ConflictError carrying structured conflict details. A request with
// ResolveModeMerge re-runs classification against the state current at
// merge time and commits when the concurrent edits remain disjoint.
// SubmitUpdate is safe to call concurrently for the same record; when two
// attempts race, at most one commits and the other surfaces a fresh
// conflict.
type CaseService interface {
	// Create registers a new case. The record enters the version ledger
	// at version 0.
	Create(ctx context.Context, c *models.Case) error

	// Get loads a case with its current version. Editors capture their
	// base snapshot from this read.
	Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Case, error)

	// List returns a filtered page of a tenant's cases.
	List(ctx context.Context, tenantID uuid.UUID, filter interfaces.CaseFilter) (*interfaces.CasePage, error)

	// SubmitUpdate attempts one optimistic-concurrency update. It returns
	// the committed record, a *ConflictError, a *ValidationError,
	// ErrMalformedMeta, or ErrRecordNotFound.
	SubmitUpdate(ctx context.Context, req *models.CaseUpdateRequest) (*models.Case, error)

	// Delete soft-deletes a case. Open edit sessions against it receive
	// ErrRecordNotFound on their next submission.
	Delete(ctx context.Context, tenantID, id uuid.UUID, actorID string) error

	// ListChanges returns the most recent change journal entries for a
	// case, newest first.
	ListChanges(ctx context.Context, tenantID, caseID uuid.UUID, limit int) ([]*models.CaseChange, error)
}
