package conflict

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kingbora/easy-law-sub001/pkg/models"
)

// DiffView is the render-ready form of a conflict: a one-line summary plus
// one row per compared field. It exists purely for display; merge decisions
// stay with the classifier's conflicting field set.
type DiffView struct {
	SummaryLabel string    `json:"summaryLabel"`
	Rows         []DiffRow `json:"rows"`
}

// DiffRow is one labeled field in the diff
type DiffRow struct {
	Field         string `json:"field"`
	FieldLabel    string `json:"fieldLabel"`
	BaseDisplay   string `json:"baseDisplay"`
	RemoteDisplay string `json:"remoteDisplay"`
	ClientDisplay string `json:"clientDisplay"`
	IsConflicting bool   `json:"isConflicting"`
}

// Presenter maps conflict details onto the display model
type Presenter struct {
	registry *FieldRegistry
}

// NewPresenter creates a presenter that labels rows from the registry
func NewPresenter(registry *FieldRegistry) *Presenter {
	if registry == nil {
		registry = NewFieldRegistry()
	}
	return &Presenter{registry: registry}
}

// Present converts conflict details into a DiffView. The mapping is
// deterministic: the same details always produce the same view.
func (p *Presenter) Present(details *models.ConflictDetails) *DiffView {
	view := &DiffView{
		SummaryLabel: p.summaryLabel(details),
		Rows:         make([]DiffRow, 0, len(details.PerFieldComparisons)),
	}
	for _, cmp := range details.PerFieldComparisons {
		label := cmp.Label
		if label == "" {
			label = p.registry.Label(cmp.Field)
		}
		row := DiffRow{
			Field:         cmp.Field,
			FieldLabel:    label,
			BaseDisplay:   formatValue(cmp.BaseValue),
			RemoteDisplay: formatValue(cmp.RemoteValue),
			IsConflicting: cmp.Conflicting,
		}
		if cmp.Dirty {
			row.ClientDisplay = formatValue(cmp.ClientValue)
		}
		view.Rows = append(view.Rows, row)
	}
	return view
}

func (p *Presenter) summaryLabel(details *models.ConflictDetails) string {
	switch details.Type {
	case models.ConflictHard:
		if len(details.ConflictingFields) == 1 {
			return fmt.Sprintf("1 field needs manual review (version %d)", details.LatestVersion)
		}
		return fmt.Sprintf("%d fields need manual review (version %d)", len(details.ConflictingFields), details.LatestVersion)
	case models.ConflictMergeable:
		return fmt.Sprintf("remote changes can be merged automatically (version %d)", details.LatestVersion)
	default:
		return "no conflicts"
	}
}

// formatValue renders a field value for display. Timestamps, numbers, and
// lists all get stable human forms; structured values fall back to compact
// JSON.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "(not set)"
	case string:
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t.UTC().Format("2006-01-02 15:04")
		}
		if val == "" {
			return "(empty)"
		}
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case time.Time:
		return val.UTC().Format("2006-01-02 15:04")
	case *time.Time:
		if val == nil {
			return "(not set)"
		}
		return val.UTC().Format("2006-01-02 15:04")
	case *string:
		if val == nil {
			return "(not set)"
		}
		return formatValue(*val)
	case *float64:
		if val == nil {
			return "(not set)"
		}
		return formatValue(*val)
	case []string:
		if len(val) == 0 {
			return "(empty)"
		}
		return strings.Join(val, ", ")
	case models.StringList:
		return formatValue([]string(val))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
