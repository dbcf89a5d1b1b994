package conflict

import (
	"strings"
	"sync"
	"unicode"

	"github.com/kingbora/easy-law-sub001/pkg/models"
)

// FieldRegistry resolves canonical field names to the labels shown to
// users. Labels for unknown fields are derived from the field name so the
// diff never renders a raw key.
type FieldRegistry struct {
	mu     sync.RWMutex
	labels map[string]string
}

// NewFieldRegistry creates a registry preloaded with the case field labels
func NewFieldRegistry() *FieldRegistry {
	return &FieldRegistry{
		labels: map[string]string{
			models.FieldTitle:            "Title",
			models.FieldDescription:      "Description",
			models.FieldStatus:           "Status",
			models.FieldAssignedLawyerID: "Assigned Lawyer",
			models.FieldClientName:       "Client Name",
			models.FieldOpposingParty:    "Opposing Party",
			models.FieldCourtName:        "Court",
			models.FieldClaimAmount:      "Claim Amount",
			models.FieldOpenedAt:         "Opened",
			models.FieldNextHearingAt:    "Next Hearing",
			models.FieldParticipants:     "Participants",
			models.FieldHearings:         "Hearings",
			models.FieldTags:             "Tags",
			models.FieldNotes:            "Notes",
		},
	}
}

// Register sets or overrides the label for a field
func (r *FieldRegistry) Register(field, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels[field] = label
}

// Label returns the human label for a field
func (r *FieldRegistry) Label(field string) string {
	r.mu.RLock()
	label, ok := r.labels[field]
	r.mu.RUnlock()
	if ok {
		return label
	}
	return deriveLabel(field)
}

// deriveLabel splits a camelCase field name into title-cased words, so an
// unregistered "billingCode" still renders as "Billing Code".
func deriveLabel(field string) string {
	if field == "" {
		return ""
	}
	var words []string
	var current strings.Builder
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	words = append(words, current.String())

	for i, w := range words {
		if w == "" {
			continue
		}
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
