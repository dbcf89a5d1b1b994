package services

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kingbora/easy-law-sub001/pkg/conflict"
	"github.com/kingbora/easy-law-sub001/pkg/models"
	"github.com/kingbora/easy-law-sub001/pkg/repository/interfaces"
)

// caseService coordinates optimistic-concurrency updates to cases. The
// conflict verdict comes from pkg/conflict; the atomic conditional write
// comes from the repository. This service owns the orchestration between
// them: validate, classify, commit or reject, and re-classify on a lost
// race so conflicts are never silently dropped.
type caseService struct {
	BaseService

	repo       interfaces.CaseRepository
	extractor  *conflict.Extractor
	classifier *conflict.Classifier
	presenter  *conflict.Presenter
	validator  *UpdateValidator
}

// NewCaseService creates a production-ready case service. A nil registry
// falls back to the built-in case field labels.
func NewCaseService(config ServiceConfig, repo interfaces.CaseRepository, registry *conflict.FieldRegistry) (CaseService, error) {
	if registry == nil {
		registry = conflict.NewFieldRegistry()
	}
	validator, err := NewUpdateValidator()
	if err != nil {
		return nil, err
	}
	return &caseService{
		BaseService: NewBaseService(config),
		repo:        repo,
		extractor:   conflict.NewExtractor(registry),
		classifier:  conflict.NewClassifier(),
		presenter:   conflict.NewPresenter(registry),
		validator:   validator,
	}, nil
}

// Create registers a new case at version 0.
func (s *caseService) Create(ctx context.Context, c *models.Case) error {
	ctx, span := s.config.Tracer(ctx, "CaseService.Create")
	defer span.End()

	ve := &ValidationError{}
	if c.TenantID == uuid.Nil {
		ve.Fields = append(ve.Fields, FieldError{Field: "tenant_id", Message: "tenant id is required"})
	}
	if c.CaseNumber == "" {
		ve.Fields = append(ve.Fields, FieldError{Field: "case_number", Message: "case number is required"})
	}
	if c.Title == "" {
		ve.Fields = append(ve.Fields, FieldError{Field: "title", Message: "title is required"})
	}
	if c.Status == "" {
		c.Status = models.CaseStatusOpen
	}
	if !c.Status.IsValid() {
		ve.Fields = append(ve.Fields, FieldError{Field: "status", Message: "unknown status"})
	}
	if len(ve.Fields) > 0 {
		return ve
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return err
	}

	s.config.Logger.Info("Case created", map[string]interface{}{
		"case_id":     c.ID,
		"tenant_id":   c.TenantID,
		"case_number": c.CaseNumber,
	})
	return nil
}

// Get loads a case with its current version.
func (s *caseService) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Case, error) {
	ctx, span := s.config.Tracer(ctx, "CaseService.Get")
	defer span.End()

	c, err := s.repo.Get(ctx, tenantID.String(), id.String())
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Wrap(err, "failed to load case")
	}
	return c, nil
}

// List returns a filtered page of a tenant's cases.
func (s *caseService) List(ctx context.Context, tenantID uuid.UUID, filter interfaces.CaseFilter) (*interfaces.CasePage, error) {
	ctx, span := s.config.Tracer(ctx, "CaseService.List")
	defer span.End()

	page, err := s.repo.List(ctx, tenantID.String(), filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list cases")
	}
	return page, nil
}

// SubmitUpdate attempts one optimistic-concurrency update against a case.
//
// Order matters: the payload is validated before any version check, so a
// broken payload never surfaces as a conflict. Classification always runs
// against the state that is current NOW — for a merge retry that is the
// state at merge time, not the editor's original base, which is what makes
// the merge safe against a second race.
func (s *caseService) SubmitUpdate(ctx context.Context, req *models.CaseUpdateRequest) (*models.Case, error) {
	ctx, span := s.config.Tracer(ctx, "CaseService.SubmitUpdate")
	defer span.End()

	if err := s.validator.ValidatePayload(req.Payload); err != nil {
		return nil, err
	}
	dirty := req.DirtyFieldSet()
	if err := validateMeta(&req.Meta, dirty); err != nil {
		return nil, err
	}

	// Bypass the repository cache: classifying against a stale cached
	// record would report conflicts that are already resolved, or reject
	// a baseVersion the ledger has in fact issued.
	current, err := s.repo.GetLatest(ctx, req.TenantID.String(), req.RecordID.String())
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Wrap(err, "failed to load current case state")
	}
	if req.Meta.BaseVersion > current.Version {
		return nil, errors.Wrapf(ErrMalformedMeta, "baseVersion %d is ahead of the stored version %d", req.Meta.BaseVersion, current.Version)
	}

	return s.attempt(ctx, req, current, dirty)
}

// attempt classifies the request against the given current state and either
// commits or returns a *ConflictError. It runs exactly once per submission;
// retries belong to the caller.
func (s *caseService) attempt(ctx context.Context, req *models.CaseUpdateRequest, current *models.Case, dirty map[string]struct{}) (*models.Case, error) {
	comparisons := s.extractor.Extract(req.Meta.BaseSnapshot, current.FieldValues(), req.Payload, dirty)
	details := s.classifier.Classify(req.Meta.BaseVersion, current.Version, comparisons)

	committable := details.Type == models.ConflictNone ||
		(req.Meta.IsMerge() && details.Type == models.ConflictMergeable)
	if !committable {
		s.config.Metrics.IncrementCounterWithLabels("case_update_conflicts", 1, map[string]string{
			"type":  string(details.Type),
			"merge": boolLabel(req.Meta.IsMerge()),
		})
		return nil, s.conflictError(details, current)
	}

	// Dirty fields take the client's intended values; everything else
	// keeps the remote current state, which is exactly how remote-only
	// changes survive a merge.
	updated := current.Clone()
	newValues := make(map[string]interface{}, len(dirty))
	for f := range dirty {
		if v, ok := req.Payload[f]; ok {
			newValues[f] = v
		}
	}
	if err := updated.ApplyFieldValues(newValues); err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: "payload", Message: err.Error()}}}
	}
	updated.UpdatedBy = req.ActorID

	merged := details.Type == models.ConflictMergeable
	change := &models.CaseChange{
		ChangedFields: sortedFields(newValues),
		ChangedBy:     req.ActorID,
		Merged:        merged,
	}

	err := s.repo.CommitUpdate(ctx, updated, current.Version, change)
	switch {
	case err == nil:
		s.config.Metrics.IncrementCounterWithLabels("case_update_commits", 1, map[string]string{
			"merged": boolLabel(merged),
		})
		s.config.Logger.Info("Case update committed", map[string]interface{}{
			"case_id": updated.ID,
			"version": updated.Version,
			"merged":  merged,
			"fields":  change.ChangedFields,
		})
		return updated, nil

	case errors.Is(err, interfaces.ErrOptimisticLock):
		// Another session committed between our read and our write. The
		// conditional write kept the record intact; surface a fresh
		// conflicted state classified against the now-latest version.
		return nil, s.freshConflict(ctx, req, dirty)

	case errors.Is(err, interfaces.ErrNotFound):
		return nil, ErrRecordNotFound

	default:
		return nil, errors.Wrap(err, "failed to commit case update")
	}
}

// freshConflict re-reads the record after a lost conditional write and
// classifies the original request against the latest state, so the caller
// receives conflict details with latestVersion advanced.
func (s *caseService) freshConflict(ctx context.Context, req *models.CaseUpdateRequest, dirty map[string]struct{}) error {
	// The winner of the race invalidates the cache after its commit, so
	// a cached read here could still see the pre-race record. GetLatest
	// guarantees the details reflect the version that beat us.
	latest, err := s.repo.GetLatest(ctx, req.TenantID.String(), req.RecordID.String())
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return ErrRecordNotFound
		}
		return errors.Wrap(err, "failed to reload case after lost write race")
	}

	comparisons := s.extractor.Extract(req.Meta.BaseSnapshot, latest.FieldValues(), req.Payload, dirty)
	details := s.classifier.Classify(req.Meta.BaseVersion, latest.Version, comparisons)

	s.config.Metrics.IncrementCounterWithLabels("case_update_conflicts", 1, map[string]string{
		"type":  string(details.Type),
		"merge": boolLabel(req.Meta.IsMerge()),
		"raced": "true",
	})
	return s.conflictError(details, latest)
}

// Delete soft-deletes a case.
func (s *caseService) Delete(ctx context.Context, tenantID, id uuid.UUID, actorID string) error {
	ctx, span := s.config.Tracer(ctx, "CaseService.Delete")
	defer span.End()

	err := s.repo.SoftDelete(ctx, tenantID.String(), id.String(), actorID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return ErrRecordNotFound
		}
		return errors.Wrap(err, "failed to delete case")
	}
	return nil
}

// ListChanges returns the most recent journal entries for a case.
func (s *caseService) ListChanges(ctx context.Context, tenantID, caseID uuid.UUID, limit int) ([]*models.CaseChange, error) {
	ctx, span := s.config.Tracer(ctx, "CaseService.ListChanges")
	defer span.End()

	changes, err := s.repo.ListChanges(ctx, tenantID.String(), caseID.String(), limit)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Wrap(err, "failed to list case changes")
	}
	return changes, nil
}

// conflictError assembles the structured conflict result: classifier
// details, remote authorship from the current record, and the render-ready
// diff view.
func (s *caseService) conflictError(details *models.ConflictDetails, current *models.Case) error {
	details.LatestVersion = current.Version
	updatedAt := current.UpdatedAt
	details.RemoteUpdatedAt = &updatedAt
	details.RemoteUpdatedBy = current.UpdatedBy

	return &ConflictError{
		Details: details,
		Diff:    s.presenter.Present(details),
	}
}

// validateMeta rejects envelopes the coordinator cannot reason about. The
// snapshot must hold a base value for every dirty field: without one the
// extractor cannot tell whether the stored value moved, and a concurrent
// remote edit to that field would merge as if it never happened.
func validateMeta(meta *models.UpdateMeta, dirty map[string]struct{}) error {
	if meta.BaseVersion < 0 {
		return errors.Wrap(ErrMalformedMeta, "baseVersion is required and must not be negative")
	}
	if meta.BaseSnapshot == nil {
		return errors.Wrap(ErrMalformedMeta, "baseSnapshot is required")
	}
	if len(dirty) == 0 {
		return errors.Wrap(ErrMalformedMeta, "dirtyFields must name at least one editable case field")
	}
	switch meta.ResolveMode {
	case "", models.ResolveModeNone, models.ResolveModeMerge:
	default:
		return errors.Wrapf(ErrMalformedMeta, "unknown resolveMode %q", meta.ResolveMode)
	}
	var missing []string
	for f := range dirty {
		if _, ok := meta.BaseSnapshot[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Wrapf(ErrMalformedMeta, "baseSnapshot has no value for dirty field(s) %s", strings.Join(missing, ", "))
	}
	return nil
}

func sortedFields(values map[string]interface{}) models.StringList {
	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return models.StringList(fields)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
