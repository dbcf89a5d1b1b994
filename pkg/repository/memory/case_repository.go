// Package memory provides an in-memory CaseRepository with the same
// conditional-write semantics as the PostgreSQL implementation. It backs
// the functional test suite and local development mode.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingbora/easy-law-sub001/pkg/models"
	"github.com/kingbora/easy-law-sub001/pkg/repository/interfaces"
	"github.com/kingbora/easy-law-sub001/pkg/repository/types"
)

type caseKey struct {
	tenantID string
	id       string
}

// CaseRepository stores cases and their change journals in process memory.
// All values are deep-copied on the way in and out so callers can never
// mutate stored state directly.
type CaseRepository struct {
	mu      sync.RWMutex
	cases   map[caseKey]*models.Case
	changes map[caseKey][]*models.CaseChange
}

var _ interfaces.CaseRepository = (*CaseRepository)(nil)

// NewCaseRepository creates an empty in-memory case repository
func NewCaseRepository() *CaseRepository {
	return &CaseRepository{
		cases:   make(map[caseKey]*models.Case),
		changes: make(map[caseKey][]*models.CaseChange),
	}
}

// Create inserts a new case at version 0.
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	key := caseKey{tenantID: c.TenantID.String(), id: c.ID.String()}

	if _, exists := r.cases[key]; exists {
		return interfaces.ErrDuplicate
	}
	for k, existing := range r.cases {
		if k.tenantID == key.tenantID && existing.CaseNumber == c.CaseNumber && existing.DeletedAt == nil {
			return interfaces.ErrDuplicate
		}
	}

	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 0

	r.cases[key] = c.Clone()
	return nil
}

// Get returns a copy of a live case.
func (r *CaseRepository) Get(ctx context.Context, tenantID, id string) (*models.Case, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cases[caseKey{tenantID: tenantID, id: id}]
	if !ok || c.DeletedAt != nil {
		return nil, interfaces.ErrNotFound
	}
	return c.Clone(), nil
}

// GetLatest is identical to Get here: the map is the storage, there is no
// cache tier to bypass.
func (r *CaseRepository) GetLatest(ctx context.Context, tenantID, id string) (*models.Case, error) {
	return r.Get(ctx, tenantID, id)
}

// CurrentVersion returns the stored version of a live case.
func (r *CaseRepository) CurrentVersion(ctx context.Context, tenantID, id string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.cases[caseKey{tenantID: tenantID, id: id}]
	if !ok || c.DeletedAt != nil {
		return 0, interfaces.ErrNotFound
	}
	return c.Version, nil
}

// CommitUpdate writes c only when the stored version still equals
// expectedVersion, advancing the version by one and appending the journal
// row atomically under the same lock.
func (r *CaseRepository) CommitUpdate(ctx context.Context, c *models.Case, expectedVersion int, change *models.CaseChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := caseKey{tenantID: c.TenantID.String(), id: c.ID.String()}
	existing, ok := r.cases[key]
	if !ok || existing.DeletedAt != nil {
		return interfaces.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return interfaces.ErrOptimisticLock
	}

	c.Version = expectedVersion + 1
	c.UpdatedAt = time.Now()
	c.CreatedAt = existing.CreatedAt

	if change == nil {
		change = &models.CaseChange{}
	}
	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	change.CaseID = c.ID
	change.TenantID = c.TenantID
	change.Version = c.Version
	change.ChangedAt = c.UpdatedAt
	if change.ChangedBy == "" {
		change.ChangedBy = c.UpdatedBy
	}

	r.cases[key] = c.Clone()

	entry := *change
	entry.ChangedFields = append(models.StringList(nil), change.ChangedFields...)
	r.changes[key] = append(r.changes[key], &entry)

	return nil
}

// List returns a filtered, sorted page of a tenant's cases.
func (r *CaseRepository) List(ctx context.Context, tenantID string, filter interfaces.CaseFilter) (*interfaces.CasePage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Case
	for key, c := range r.cases {
		if key.tenantID != tenantID {
			continue
		}
		if matchesFilter(c, filter) {
			matched = append(matched, c)
		}
	}

	sortCases(matched, filter.SortBy, filter.SortOrder)

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[filter.Offset:]
		}
	}
	hasMore := false
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
		hasMore = true
	}

	page := &interfaces.CasePage{
		Cases: make([]*models.Case, 0, len(matched)),
		PageInfo: types.PageInfo{
			TotalCount: total,
			HasMore:    hasMore,
		},
	}
	for _, c := range matched {
		page.Cases = append(page.Cases, c.Clone())
	}
	return page, nil
}

// SoftDelete marks a case deleted; its journal is kept.
func (r *CaseRepository) SoftDelete(ctx context.Context, tenantID, id, actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := caseKey{tenantID: tenantID, id: id}
	c, ok := r.cases[key]
	if !ok || c.DeletedAt != nil {
		return interfaces.ErrNotFound
	}

	now := time.Now()
	c.DeletedAt = &now
	c.UpdatedAt = now
	c.UpdatedBy = actorID
	return nil
}

// ListChanges returns journal rows newest first.
func (r *CaseRepository) ListChanges(ctx context.Context, tenantID, caseID string, limit int) ([]*models.CaseChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.changes[caseKey{tenantID: tenantID, id: caseID}]
	out := make([]*models.CaseChange, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		entry := *entries[i]
		entry.ChangedFields = append(models.StringList(nil), entries[i].ChangedFields...)
		out = append(out, &entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func matchesFilter(c *models.Case, filter interfaces.CaseFilter) bool {
	if !filter.IncludeDeleted && c.DeletedAt != nil {
		return false
	}
	if len(filter.Status) > 0 {
		found := false
		for _, s := range filter.Status {
			if string(c.Status) == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.AssignedLawyer != nil {
		if c.AssignedLawyerID == nil || *c.AssignedLawyerID != *filter.AssignedLawyer {
			return false
		}
	}
	if filter.ClientName != nil {
		if !strings.Contains(strings.ToLower(c.ClientName), strings.ToLower(*filter.ClientName)) {
			return false
		}
	}
	if filter.OpenedAfter != nil {
		if c.OpenedAt == nil || c.OpenedAt.Before(*filter.OpenedAfter) {
			return false
		}
	}
	if filter.OpenedBefore != nil {
		if c.OpenedAt == nil || c.OpenedAt.After(*filter.OpenedBefore) {
			return false
		}
	}
	for _, tag := range filter.Tags {
		found := false
		for _, have := range c.Tags {
			if have == tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortCases(cases []*models.Case, sortBy string, order types.SortOrder) {
	asc := order == types.SortAsc
	sort.SliceStable(cases, func(i, j int) bool {
		if asc {
			return lessCase(cases[i], cases[j], sortBy)
		}
		return lessCase(cases[j], cases[i], sortBy)
	})
}

func lessCase(a, b *models.Case, sortBy string) bool {
	switch sortBy {
	case "updated_at":
		return a.UpdatedAt.Before(b.UpdatedAt)
	case "opened_at":
		switch {
		case a.OpenedAt == nil:
			return b.OpenedAt != nil
		case b.OpenedAt == nil:
			return false
		default:
			return a.OpenedAt.Before(*b.OpenedAt)
		}
	case "case_number":
		return a.CaseNumber < b.CaseNumber
	case "title":
		return a.Title < b.Title
	case "status":
		return a.Status < b.Status
	case "version":
		return a.Version < b.Version
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}
