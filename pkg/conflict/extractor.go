package conflict

import (
	"sort"

	"github.com/kingbora/easy-law-sub001/pkg/models"
)

// Extractor builds normalized three-way change sets from an editor's base
// snapshot, the currently stored values, and the editor's intended values.
type Extractor struct {
	registry *FieldRegistry
}

// NewExtractor creates an extractor that labels fields from the registry
func NewExtractor(registry *FieldRegistry) *Extractor {
	if registry == nil {
		registry = NewFieldRegistry()
	}
	return &Extractor{registry: registry}
}

// Extract emits one comparison per field in dirtyFields union the fields
// whose stored value moved away from the base snapshot. Fields untouched by
// both sides are excluded to keep the diff minimal.
//
// A field can only be flagged remote-changed when the base snapshot holds a
// value for it; without a base there is nothing to compare against. Dirty
// fields are always included. The Dirty flag carries the editor's claim; a
// claimed field whose intended value equals its base value is claimed but
// not an actual client change, which classification accounts for.
func (e *Extractor) Extract(baseSnapshot, currentStored, clientIntended map[string]interface{}, dirtyFields map[string]struct{}) []models.FieldComparison {
	candidates := make(map[string]struct{}, len(dirtyFields))
	for f := range dirtyFields {
		candidates[f] = struct{}{}
	}
	for f, baseValue := range baseSnapshot {
		if !valuesEqual(currentStored[f], baseValue) {
			candidates[f] = struct{}{}
		}
	}

	comparisons := make([]models.FieldComparison, 0, len(candidates))
	for _, f := range orderFields(candidates) {
		baseValue, hasBase := baseSnapshot[f]
		_, dirty := dirtyFields[f]

		cmp := models.FieldComparison{
			Field:       f,
			Label:       e.registry.Label(f),
			BaseValue:   baseValue,
			RemoteValue: currentStored[f],
			Dirty:       dirty,
		}
		if dirty {
			cmp.ClientValue = clientIntended[f]
		}
		if hasBase {
			cmp.RemoteChanged = !valuesEqual(cmp.RemoteValue, baseValue)
		}
		comparisons = append(comparisons, cmp)
	}
	return comparisons
}

// orderFields returns the candidate fields in canonical order: known case
// fields first in their declared order, anything else alphabetically after.
func orderFields(candidates map[string]struct{}) []string {
	ordered := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, f := range models.EditableCaseFields() {
		if _, ok := candidates[f]; ok {
			ordered = append(ordered, f)
			seen[f] = struct{}{}
		}
	}
	extras := make([]string, 0)
	for f := range candidates {
		if _, ok := seen[f]; !ok {
			extras = append(extras, f)
		}
	}
	sort.Strings(extras)
	return append(ordered, extras...)
}
