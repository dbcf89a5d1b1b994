package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingbora/easy-law-sub001/pkg/models"
)

func TestUpdateValidator(t *testing.T) {
	v, err := NewUpdateValidator()
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid scalar payload",
			payload: map[string]interface{}{
				models.FieldTitle:  "Meyer v. Hartmann",
				models.FieldStatus: "in_review",
				models.FieldNotes:  "",
			},
		},
		{
			name: "valid nullable fields",
			payload: map[string]interface{}{
				models.FieldAssignedLawyerID: nil,
				models.FieldClaimAmount:      nil,
				models.FieldOpenedAt:         nil,
			},
		},
		{
			name: "valid structured lists",
			payload: map[string]interface{}{
				models.FieldParticipants: []interface{}{
					map[string]interface{}{"name": "K. Meyer", "role": "plaintiff"},
				},
				models.FieldHearings: []interface{}{
					map[string]interface{}{"title": "First hearing", "scheduled_at": "2026-09-01T09:00:00Z"},
				},
				models.FieldTags: []interface{}{"urgent"},
			},
		},
		{
			name:    "nil payload",
			payload: nil,
			wantErr: true,
		},
		{
			name:    "unknown field",
			payload: map[string]interface{}{"secretField": "x"},
			wantErr: true,
		},
		{
			name:    "unknown status",
			payload: map[string]interface{}{models.FieldStatus: "reopened"},
			wantErr: true,
		},
		{
			name:    "empty title",
			payload: map[string]interface{}{models.FieldTitle: ""},
			wantErr: true,
		},
		{
			name:    "negative claim amount",
			payload: map[string]interface{}{models.FieldClaimAmount: -100.0},
			wantErr: true,
		},
		{
			name: "participant without name",
			payload: map[string]interface{}{
				models.FieldParticipants: []interface{}{
					map[string]interface{}{"role": "witness"},
				},
			},
			wantErr: true,
		},
		{
			name: "hearing without schedule",
			payload: map[string]interface{}{
				models.FieldHearings: []interface{}{
					map[string]interface{}{"title": "First hearing"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePayload(tt.payload)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			ve, ok := AsValidationError(err)
			require.True(t, ok)
			assert.NotEmpty(t, ve.Fields)
		})
	}
}
