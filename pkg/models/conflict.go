package models

import (
	"time"
)

// ConflictType classifies the severity of a concurrent edit conflict
type ConflictType string

const (
	// ConflictNone means no concurrent write occurred; the update may commit.
	ConflictNone ConflictType = "none"
	// ConflictMergeable means concurrent writes touched disjoint fields; a
	// merge retry is safe.
	ConflictMergeable ConflictType = "mergeable"
	// ConflictHard means the same field was changed remotely and locally;
	// the editor must decide manually.
	ConflictHard ConflictType = "hard"
)

// FieldComparison is one row of a three-way field diff: the value the editor
// last saw (base), the value currently stored (remote), and the value the
// editor wants to write (client). ClientValue is only meaningful when the
// field is in the editor's dirty set.
type FieldComparison struct {
	Field         string      `json:"field"`
	Label         string      `json:"label,omitempty"`
	BaseValue     interface{} `json:"baseValue"`
	RemoteValue   interface{} `json:"remoteValue"`
	ClientValue   interface{} `json:"clientValue,omitempty"`
	Dirty         bool        `json:"dirty"`
	RemoteChanged bool        `json:"remoteChanged"`
	Conflicting   bool        `json:"conflicting"`
}

// ConflictDetails is the structured outcome of a rejected update. It carries
// everything a presentation layer needs to render a diff and everything the
// editor needs to decide between refreshing and merging.
type ConflictDetails struct {
	Type                ConflictType      `json:"type"`
	Message             string            `json:"message"`
	LatestVersion       int               `json:"latestVersion"`
	RemoteUpdatedAt     *time.Time        `json:"remoteUpdatedAt,omitempty"`
	RemoteUpdatedBy     string            `json:"remoteUpdatedBy,omitempty"`
	PerFieldComparisons []FieldComparison `json:"perFieldComparisons"`
	ConflictingFields   []string          `json:"conflictingFields"`
	RemoteChanges       []FieldComparison `json:"remoteChanges,omitempty"`
	ClientChanges       []FieldComparison `json:"clientChanges,omitempty"`
}

// IsMergeable returns true when a merge retry can resolve the conflict
func (d *ConflictDetails) IsMergeable() bool {
	return d.Type == ConflictMergeable
}
