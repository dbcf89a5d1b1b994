package models

import (
	"time"

	"github.com/google/uuid"
)

// CaseChange is one entry in a case's change journal. A row is written in
// the same transaction as every successful commit, so the journal and the
// version sequence can never disagree.
type CaseChange struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	CaseID        uuid.UUID  `json:"case_id" db:"case_id"`
	TenantID      uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Version       int        `json:"version" db:"version"`
	ChangedFields StringList `json:"changed_fields" db:"changed_fields"`
	ChangedBy     string     `json:"changed_by,omitempty" db:"changed_by"`
	Merged        bool       `json:"merged" db:"merged"`
	ChangedAt     time.Time  `json:"changed_at" db:"changed_at"`
}
