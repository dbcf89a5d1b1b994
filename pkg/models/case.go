package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Case is the shared mutable record at the center of the service. Many
// actors can hold an open editing session against the same case; the
// version column drives optimistic concurrency for every write.
type Case struct {
	// Identity
	ID         uuid.UUID `json:"id" db:"id"`
	TenantID   uuid.UUID `json:"tenant_id" db:"tenant_id"`
	CaseNumber string    `json:"case_number" db:"case_number"`

	// Editable fields
	Title            string          `json:"title" db:"title"`
	Description      string          `json:"description,omitempty" db:"description"`
	Status           CaseStatus      `json:"status" db:"status"`
	AssignedLawyerID *string         `json:"assigned_lawyer_id,omitempty" db:"assigned_lawyer_id"`
	ClientName       string          `json:"client_name,omitempty" db:"client_name"`
	OpposingParty    string          `json:"opposing_party,omitempty" db:"opposing_party"`
	CourtName        string          `json:"court_name,omitempty" db:"court_name"`
	ClaimAmount      *float64        `json:"claim_amount,omitempty" db:"claim_amount"`
	OpenedAt         *time.Time      `json:"opened_at,omitempty" db:"opened_at"`
	NextHearingAt    *time.Time      `json:"next_hearing_at,omitempty" db:"next_hearing_at"`
	Participants     ParticipantList `json:"participants,omitempty" db:"participants"`
	Hearings         HearingList     `json:"hearings,omitempty" db:"hearings"`
	Tags             StringList      `json:"tags,omitempty" db:"tags"`
	Notes            string          `json:"notes,omitempty" db:"notes"`

	// Timestamps and authorship
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	UpdatedBy string     `json:"updated_by,omitempty" db:"updated_by"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`

	// Optimistic locking
	Version int `json:"version" db:"version"`
}

// CaseStatus represents the lifecycle state of a case
type CaseStatus string

const (
	CaseStatusOpen     CaseStatus = "open"
	CaseStatusInReview CaseStatus = "in_review"
	CaseStatusClosed   CaseStatus = "closed"
	CaseStatusVoid     CaseStatus = "void"
	CaseStatusArchived CaseStatus = "archived"
)

// AllCaseStatuses lists every valid case status
var AllCaseStatuses = []CaseStatus{
	CaseStatusOpen,
	CaseStatusInReview,
	CaseStatusClosed,
	CaseStatusVoid,
	CaseStatusArchived,
}

// IsValid returns true for a known status value
func (s CaseStatus) IsValid() bool {
	for _, known := range AllCaseStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Participant is a person attached to a case
type Participant struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Hearing is a scheduled court appointment on a case
type Hearing struct {
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Location    string    `json:"location,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// Canonical field names. These are the keys used in base snapshots, dirty
// field sets, update payloads, and per-field diffs. They match the JSON
// the editing clients exchange.
const (
	FieldTitle            = "title"
	FieldDescription      = "description"
	FieldStatus           = "status"
	FieldAssignedLawyerID = "assignedLawyerId"
	FieldClientName       = "clientName"
	FieldOpposingParty    = "opposingParty"
	FieldCourtName        = "courtName"
	FieldClaimAmount      = "claimAmount"
	FieldOpenedAt         = "openedAt"
	FieldNextHearingAt    = "nextHearingAt"
	FieldParticipants     = "participants"
	FieldHearings         = "hearings"
	FieldTags             = "tags"
	FieldNotes            = "notes"
)

// EditableCaseFields returns the canonical field names in stable order.
func EditableCaseFields() []string {
	return []string{
		FieldTitle,
		FieldDescription,
		FieldStatus,
		FieldAssignedLawyerID,
		FieldClientName,
		FieldOpposingParty,
		FieldCourtName,
		FieldClaimAmount,
		FieldOpenedAt,
		FieldNextHearingAt,
		FieldParticipants,
		FieldHearings,
		FieldTags,
		FieldNotes,
	}
}

// IsEditableCaseField reports whether name is a field editors may write.
func IsEditableCaseField(name string) bool {
	for _, f := range EditableCaseFields() {
		if f == name {
			return true
		}
	}
	return false
}

// FieldValues returns the editable fields as a canonical field -> value map,
// the shape consumed by change extraction and conflict classification.
// Unset optional fields map to nil.
func (c *Case) FieldValues() map[string]interface{} {
	values := map[string]interface{}{
		FieldTitle:         c.Title,
		FieldDescription:   c.Description,
		FieldStatus:        string(c.Status),
		FieldClientName:    c.ClientName,
		FieldOpposingParty: c.OpposingParty,
		FieldCourtName:     c.CourtName,
		FieldNotes:         c.Notes,
	}
	if c.AssignedLawyerID != nil {
		values[FieldAssignedLawyerID] = *c.AssignedLawyerID
	} else {
		values[FieldAssignedLawyerID] = nil
	}
	if c.ClaimAmount != nil {
		values[FieldClaimAmount] = *c.ClaimAmount
	} else {
		values[FieldClaimAmount] = nil
	}
	if c.OpenedAt != nil {
		values[FieldOpenedAt] = *c.OpenedAt
	} else {
		values[FieldOpenedAt] = nil
	}
	if c.NextHearingAt != nil {
		values[FieldNextHearingAt] = *c.NextHearingAt
	} else {
		values[FieldNextHearingAt] = nil
	}
	if c.Participants != nil {
		values[FieldParticipants] = c.Participants
	} else {
		values[FieldParticipants] = nil
	}
	if c.Hearings != nil {
		values[FieldHearings] = c.Hearings
	} else {
		values[FieldHearings] = nil
	}
	if c.Tags != nil {
		values[FieldTags] = c.Tags
	} else {
		values[FieldTags] = nil
	}
	return values
}

// ApplyFieldValues writes the given canonical field values onto the case.
// Unknown fields are rejected; value types are coerced from their JSON
// representations.
func (c *Case) ApplyFieldValues(values map[string]interface{}) error {
	for field, value := range values {
		if err := c.setField(field, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Case) setField(field string, value interface{}) error {
	switch field {
	case FieldTitle:
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		c.Title = s
	case FieldDescription:
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		c.Description = s
	case FieldStatus:
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		status := CaseStatus(s)
		if !status.IsValid() {
			return fmt.Errorf("field %q: unknown status %q", field, s)
		}
		c.Status = status
	case FieldAssignedLawyerID:
		s, err := coerceNullableString(field, value)
		if err != nil {
			return err
		}
		c.AssignedLawyerID = s
	case FieldClientName:
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		c.ClientName = s
	case FieldOpposingParty:
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		c.OpposingParty = s
	case FieldCourtName:
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		c.CourtName = s
	case FieldClaimAmount:
		f, err := coerceNullableFloat(field, value)
		if err != nil {
			return err
		}
		c.ClaimAmount = f
	case FieldOpenedAt:
		t, err := coerceNullableTime(field, value)
		if err != nil {
			return err
		}
		c.OpenedAt = t
	case FieldNextHearingAt:
		t, err := coerceNullableTime(field, value)
		if err != nil {
			return err
		}
		c.NextHearingAt = t
	case FieldParticipants:
		var list ParticipantList
		if err := coerceJSONList(field, value, &list); err != nil {
			return err
		}
		c.Participants = list
	case FieldHearings:
		var list HearingList
		if err := coerceJSONList(field, value, &list); err != nil {
			return err
		}
		c.Hearings = list
	case FieldTags:
		var list StringList
		if err := coerceJSONList(field, value, &list); err != nil {
			return err
		}
		c.Tags = list
	case FieldNotes:
		s, err := coerceString(field, value)
		if err != nil {
			return err
		}
		c.Notes = s
	default:
		return fmt.Errorf("unknown case field %q", field)
	}
	return nil
}

func coerceString(field string, value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("field %q: expected string, got %T", field, value)
	}
	return s, nil
}

func coerceNullableString(field string, value interface{}) (*string, error) {
	if value == nil {
		return nil, nil
	}
	s, err := coerceString(field, value)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func coerceNullableFloat(field string, value interface{}) (*float64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case float32:
		f := float64(v)
		return &f, nil
	case int:
		f := float64(v)
		return &f, nil
	case int64:
		f := float64(v)
		return &f, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("field %q: %v", field, err)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q: expected number, got %T", field, value)
	}
}

func coerceNullableTime(field string, value interface{}) (*time.Time, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &v, nil
	case *time.Time:
		return v, nil
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("field %q: expected RFC3339 timestamp: %v", field, err)
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("field %q: expected timestamp, got %T", field, value)
	}
}

// coerceJSONList converts a value of any JSON-compatible shape into the
// typed list via a marshal round trip.
func coerceJSONList(field string, value interface{}, out interface{}) error {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("field %q: %v", field, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("field %q: %v", field, err)
	}
	return nil
}

// GetID returns the case ID
func (c *Case) GetID() uuid.UUID {
	return c.ID
}

// GetVersion returns the optimistic locking version
func (c *Case) GetVersion() int {
	return c.Version
}

// IsTerminal returns true when the case can no longer be worked
func (c *Case) IsTerminal() bool {
	switch c.Status {
	case CaseStatusVoid, CaseStatusArchived:
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of the case. List fields are copied so the
// clone can be mutated without touching the original.
func (c *Case) Clone() *Case {
	clone := *c
	if c.AssignedLawyerID != nil {
		v := *c.AssignedLawyerID
		clone.AssignedLawyerID = &v
	}
	if c.ClaimAmount != nil {
		v := *c.ClaimAmount
		clone.ClaimAmount = &v
	}
	if c.OpenedAt != nil {
		v := *c.OpenedAt
		clone.OpenedAt = &v
	}
	if c.NextHearingAt != nil {
		v := *c.NextHearingAt
		clone.NextHearingAt = &v
	}
	if c.DeletedAt != nil {
		v := *c.DeletedAt
		clone.DeletedAt = &v
	}
	if c.Participants != nil {
		clone.Participants = append(ParticipantList(nil), c.Participants...)
	}
	if c.Hearings != nil {
		clone.Hearings = append(HearingList(nil), c.Hearings...)
	}
	if c.Tags != nil {
		clone.Tags = append(StringList(nil), c.Tags...)
	}
	return &clone
}
