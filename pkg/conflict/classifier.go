// Package conflict implements optimistic-concurrency conflict detection for
// shared mutable records: change-set extraction, conflict classification,
// field labeling, and the diff view handed to presentation layers.
//
// The package is pure. It never touches storage; callers feed it the
// editor's base snapshot, the currently stored values, and the intended new
// values, and it answers whether the write is clean, safely mergeable, or a
// hard conflict requiring a human decision.
package conflict

import (
	"fmt"

	"github.com/kingbora/easy-law-sub001/pkg/models"
)

// Classifier turns version numbers and field comparisons into a verdict.
type Classifier struct{}

// NewClassifier creates a Classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify applies the concurrency verdict rules:
//
//  1. Equal versions mean no concurrent write happened; the update may
//     commit regardless of what the comparisons contain.
//  2. Otherwise comparisons are partitioned by who actually changed each
//     field. A field changed remotely and by the client is a hard conflict;
//     if no such field exists the concurrent edits are disjoint and the
//     client's write can be merged onto the current state.
//
// A field only counts as a client change when the intended value actually
// differs from the base value; a claimed dirty field resubmitting its base
// value cannot conflict. The same comparisons always produce the same
// details.
func (c *Classifier) Classify(baseVersion, currentVersion int, comparisons []models.FieldComparison) *models.ConflictDetails {
	details := &models.ConflictDetails{
		Type:                models.ConflictNone,
		LatestVersion:       currentVersion,
		PerFieldComparisons: comparisons,
		ConflictingFields:   []string{},
	}

	if currentVersion == baseVersion {
		details.Message = "no concurrent changes"
		return details
	}

	for i := range comparisons {
		cmp := &comparisons[i]
		clientChanged := cmp.Dirty && !valuesEqual(cmp.ClientValue, cmp.BaseValue)

		switch {
		case cmp.RemoteChanged && clientChanged:
			cmp.Conflicting = true
			details.ConflictingFields = append(details.ConflictingFields, cmp.Field)
			details.RemoteChanges = append(details.RemoteChanges, *cmp)
			details.ClientChanges = append(details.ClientChanges, *cmp)
		case cmp.RemoteChanged:
			details.RemoteChanges = append(details.RemoteChanges, *cmp)
		case clientChanged:
			details.ClientChanges = append(details.ClientChanges, *cmp)
		}
	}

	if len(details.ConflictingFields) > 0 {
		details.Type = models.ConflictHard
		details.Message = fmt.Sprintf("%d field(s) were changed both remotely and locally and need manual review", len(details.ConflictingFields))
		return details
	}

	details.Type = models.ConflictMergeable
	details.Message = fmt.Sprintf("the record changed remotely (now version %d); the local changes touch different fields and can be merged", currentVersion)
	return details
}
