package models

import (
	"github.com/google/uuid"
)

// ResolveMode selects how an update handles a previously reported conflict
type ResolveMode string

const (
	// ResolveModeNone is a plain update attempt.
	ResolveModeNone ResolveMode = "none"
	// ResolveModeMerge asks the server to apply the editor's dirty fields on
	// top of the current stored state when the changes remain disjoint.
	ResolveModeMerge ResolveMode = "merge"
)

// UpdateMeta carries the editor's optimistic concurrency context: the
// version and values it last read, and the fields it claims to have changed.
// The dirty field set is untrusted input; the server re-derives conflicts
// from value comparison and uses the claimed set only to scope ownership.
type UpdateMeta struct {
	BaseVersion  int                    `json:"baseVersion"`
	BaseSnapshot map[string]interface{} `json:"baseSnapshot"`
	DirtyFields  []string               `json:"dirtyFields"`
	ResolveMode  ResolveMode            `json:"resolveMode,omitempty"`
}

// IsMerge returns true when the editor requested the merge path
func (m *UpdateMeta) IsMerge() bool {
	return m.ResolveMode == ResolveModeMerge
}

// CaseUpdateRequest is one update attempt against a case. RecordID,
// TenantID, and ActorID are resolved server-side from the route and the
// authenticated session, never from the body.
type CaseUpdateRequest struct {
	RecordID uuid.UUID `json:"-"`
	TenantID uuid.UUID `json:"-"`
	ActorID  string    `json:"-"`

	Payload map[string]interface{} `json:"payload"`
	Meta    UpdateMeta             `json:"meta"`
}

// DirtyFieldSet returns the claimed dirty fields as a set, dropping
// duplicates and names that are not editable case fields.
func (r *CaseUpdateRequest) DirtyFieldSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Meta.DirtyFields))
	for _, f := range r.Meta.DirtyFields {
		if IsEditableCaseField(f) {
			set[f] = struct{}{}
		}
	}
	return set
}
