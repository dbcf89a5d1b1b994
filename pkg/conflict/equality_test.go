package conflict

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kingbora/easy-law-sub001/pkg/models"
)

func TestValuesEqual(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
	cet := time.FixedZone("CET", 3600)

	tests := []struct {
		name  string
		a     interface{}
		b     interface{}
		equal bool
	}{
		{"identical strings", "open", "open", true},
		{"different strings", "open", "closed", false},
		{"int vs float", 42, float64(42), true},
		{"json number vs float", json.Number("12500.5"), 12500.5, true},
		{"different numbers", float64(1), float64(2), false},
		{"time vs rfc3339 string", now, "2025-06-01T10:30:00Z", true},
		{"time in different zone", now, now.In(cet), true},
		{"time vs different time", now, now.Add(time.Minute), false},
		{"nil vs nil", nil, nil, true},
		{"nil vs empty string", nil, "", false},
		{"nil vs zero", nil, float64(0), false},
		{"bool values", true, true, true},
		{"bool mismatch", true, false, false},
		{
			"string slices as whole values",
			[]string{"a", "b"},
			[]interface{}{"a", "b"},
			true,
		},
		{
			"reordered lists differ",
			[]string{"a", "b"},
			[]interface{}{"b", "a"},
			false,
		},
		{
			"typed participant list vs generic json",
			models.ParticipantList{{Name: "Ada", Role: "plaintiff"}},
			[]interface{}{map[string]interface{}{"name": "Ada", "role": "plaintiff"}},
			true,
		},
		{
			"participant list element changed",
			models.ParticipantList{{Name: "Ada", Role: "plaintiff"}},
			[]interface{}{map[string]interface{}{"name": "Ada", "role": "witness"}},
			false,
		},
		{
			"nested numbers normalize",
			map[string]interface{}{"amount": 10},
			map[string]interface{}{"amount": float64(10)},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, valuesEqual(tt.a, tt.b))
			assert.Equal(t, tt.equal, valuesEqual(tt.b, tt.a), "equality must be symmetric")
		})
	}
}

func TestValuesEqual_PointerValues(t *testing.T) {
	s := "lawyer-1"
	f := 100.0

	assert.True(t, valuesEqual(&s, "lawyer-1"))
	assert.True(t, valuesEqual(&f, float64(100)))
	assert.True(t, valuesEqual((*string)(nil), nil))
	assert.False(t, valuesEqual(&s, "lawyer-2"))
}
