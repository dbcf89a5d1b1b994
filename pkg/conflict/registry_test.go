package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kingbora/easy-law-sub001/pkg/models"
)

func TestFieldRegistry_KnownLabels(t *testing.T) {
	r := NewFieldRegistry()

	assert.Equal(t, "Status", r.Label(models.FieldStatus))
	assert.Equal(t, "Assigned Lawyer", r.Label(models.FieldAssignedLawyerID))
	assert.Equal(t, "Claim Amount", r.Label(models.FieldClaimAmount))
}

func TestFieldRegistry_DerivedLabels(t *testing.T) {
	r := NewFieldRegistry()

	tests := []struct {
		field string
		label string
	}{
		{"billingCode", "Billing Code"},
		{"internalReviewNotes", "Internal Review Notes"},
		{"title2", "Title2"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.label, r.Label(tt.field), "field %q", tt.field)
	}
}

func TestFieldRegistry_Register(t *testing.T) {
	r := NewFieldRegistry()
	r.Register("billingCode", "Billing Reference")

	assert.Equal(t, "Billing Reference", r.Label("billingCode"))

	// Overrides apply to known fields as well.
	r.Register(models.FieldStatus, "Case Status")
	assert.Equal(t, "Case Status", r.Label(models.FieldStatus))
}
