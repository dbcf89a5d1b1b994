package cases_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/uuid"

	"github.com/kingbora/easy-law-sub001/pkg/models"
)

// editorSession mimics one open case form: it remembers the version and
// field values it loaded, tracks local edits, and submits them with the
// concurrency meta the protocol requires.
type editorSession struct {
	client      *http.Client
	tenantID    string
	actorID     string
	caseID      string
	baseVersion int
	snapshot    map[string]interface{}
	edits       map[string]interface{}
}

func (e *editorSession) do(method, path string, body interface{}) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	req, err := http.NewRequest(method, baseURL+path, &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", e.tenantID)
	req.Header.Set("X-Actor-ID", e.actorID)

	resp, err := e.client.Do(req)
	Expect(err).NotTo(HaveOccurred())
	return resp
}

func decodeInto(resp *http.Response, out interface{}) {
	defer func() { _ = resp.Body.Close() }()
	Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
}

// open loads the case and captures the base snapshot for the given fields.
func (e *editorSession) open(fields ...string) {
	resp := e.do(http.MethodGet, "/api/v1/cases/"+e.caseID, nil)
	Expect(resp.StatusCode).To(Equal(http.StatusOK))

	var c models.Case
	decodeInto(resp, &c)

	all := c.FieldValues()
	e.baseVersion = c.Version
	e.snapshot = make(map[string]interface{}, len(fields))
	for _, f := range fields {
		e.snapshot[f] = all[f]
	}
	e.edits = make(map[string]interface{})
}

func (e *editorSession) edit(field string, value interface{}) {
	e.edits[field] = value
}

func (e *editorSession) submit(mode string) *http.Response {
	dirty := make([]string, 0, len(e.edits))
	for f := range e.edits {
		dirty = append(dirty, f)
	}
	meta := map[string]interface{}{
		"baseVersion":  e.baseVersion,
		"baseSnapshot": e.snapshot,
		"dirtyFields":  dirty,
	}
	if mode != "" {
		meta["resolveMode"] = mode
	}
	return e.do(http.MethodPut, "/api/v1/cases/"+e.caseID, map[string]interface{}{
		"payload": e.edits,
		"meta":    meta,
	})
}

var _ = Describe("Concurrent case editing", func() {
	var (
		tenantID string
		caseID   string
		editorA  *editorSession
		editorB  *editorSession
	)

	newSession := func(actorID string) *editorSession {
		return &editorSession{
			client:   &http.Client{},
			tenantID: tenantID,
			actorID:  actorID,
			caseID:   caseID,
		}
	}

	BeforeEach(func() {
		tenantID = uuid.NewString()

		creator := &editorSession{client: &http.Client{}, tenantID: tenantID, actorID: "clerk"}
		resp := creator.do(http.MethodPost, "/api/v1/cases", map[string]interface{}{
			"case_number": "2026-" + uuid.NewString()[:8],
			"title":       "Meyer v. Hartmann",
			"status":      "open",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var created models.Case
		decodeInto(resp, &created)
		caseID = created.ID.String()

		editorA = newSession("lawyer-a")
		editorB = newSession("assistant-b")
	})

	It("commits a clean write and bumps the version by one", func() {
		editorA.open("status")
		editorA.edit("status", "in_review")

		resp := editorA.submit("")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("ETag")).To(Equal(`"1"`))

		var updated models.Case
		decodeInto(resp, &updated)
		Expect(updated.Version).To(Equal(1))
		Expect(updated.Status).To(Equal(models.CaseStatusInReview))
		Expect(updated.UpdatedBy).To(Equal("lawyer-a"))
	})

	It("merges disjoint concurrent edits so both survive", func() {
		// Both editors open the form at version 0.
		editorA.open("status", "assignedLawyerId")
		editorB.open("status", "assignedLawyerId")

		// B closes the case first.
		editorB.edit("status", "closed")
		resp := editorB.submit("")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		// A reassigns the case from the now-stale base: mergeable conflict.
		editorA.edit("assignedLawyerId", "lawyer-7")
		resp = editorA.submit("")
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))

		var conflictResp struct {
			Conflict models.ConflictDetails `json:"conflict"`
		}
		decodeInto(resp, &conflictResp)
		Expect(conflictResp.Conflict.Type).To(Equal(models.ConflictMergeable))
		Expect(conflictResp.Conflict.ConflictingFields).To(BeEmpty())
		Expect(conflictResp.Conflict.LatestVersion).To(Equal(1))

		// One-click merge resolves it and keeps B's change.
		resp = editorA.submit("merge")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var merged models.Case
		decodeInto(resp, &merged)
		Expect(merged.Version).To(Equal(2))
		Expect(merged.Status).To(Equal(models.CaseStatusClosed))
		Expect(merged.AssignedLawyerID).NotTo(BeNil())
		Expect(*merged.AssignedLawyerID).To(Equal("lawyer-7"))
	})

	It("reports a hard conflict with a field diff when the same field diverges", func() {
		editorA.open("status")
		editorB.open("status")

		editorB.edit("status", "closed")
		Expect(editorB.submit("").StatusCode).To(Equal(http.StatusOK))

		editorA.edit("status", "void")
		resp := editorA.submit("")
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))

		var conflictResp struct {
			Conflict models.ConflictDetails `json:"conflict"`
			Diff     struct {
				SummaryLabel string `json:"summaryLabel"`
				Rows         []struct {
					FieldLabel    string `json:"fieldLabel"`
					BaseDisplay   string `json:"baseDisplay"`
					RemoteDisplay string `json:"remoteDisplay"`
					ClientDisplay string `json:"clientDisplay"`
					IsConflicting bool   `json:"isConflicting"`
				} `json:"rows"`
			} `json:"diff"`
		}
		decodeInto(resp, &conflictResp)

		Expect(conflictResp.Conflict.Type).To(Equal(models.ConflictHard))
		Expect(conflictResp.Conflict.ConflictingFields).To(ConsistOf("status"))
		Expect(conflictResp.Conflict.RemoteUpdatedBy).To(Equal("assistant-b"))

		Expect(conflictResp.Diff.Rows).NotTo(BeEmpty())
		statusRow := conflictResp.Diff.Rows[0]
		Expect(statusRow.FieldLabel).To(Equal("Status"))
		Expect(statusRow.BaseDisplay).To(Equal("open"))
		Expect(statusRow.RemoteDisplay).To(Equal("closed"))
		Expect(statusRow.ClientDisplay).To(Equal("void"))
		Expect(statusRow.IsConflicting).To(BeTrue())

		// A merge retry cannot override a hard conflict.
		resp = editorA.submit("merge")
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		_ = resp.Body.Close()
	})

	It("supports refresh-and-discard: reopening the form clears the conflict", func() {
		editorA.open("status")
		editorB.open("status")

		editorB.edit("status", "closed")
		Expect(editorB.submit("").StatusCode).To(Equal(http.StatusOK))

		editorA.edit("status", "void")
		resp := editorA.submit("")
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		_ = resp.Body.Close()

		// Discard: A reloads and edits on top of the fresh state.
		editorA.open("status")
		Expect(editorA.baseVersion).To(Equal(1))
		editorA.edit("status", "void")

		resp = editorA.submit("")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var updated models.Case
		decodeInto(resp, &updated)
		Expect(updated.Version).To(Equal(2))
		Expect(updated.Status).To(Equal(models.CaseStatusVoid))
	})

	It("records every commit in the change journal", func() {
		editorA.open("status", "notes")
		editorA.edit("status", "in_review")
		Expect(editorA.submit("").StatusCode).To(Equal(http.StatusOK))

		editorB.open("notes")
		editorB.edit("notes", "reviewed the filings")
		Expect(editorB.submit("").StatusCode).To(Equal(http.StatusOK))

		resp := editorA.do(http.MethodGet, fmt.Sprintf("/api/v1/cases/%s/changes", caseID), nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var journal struct {
			Changes []models.CaseChange `json:"changes"`
		}
		decodeInto(resp, &journal)

		Expect(journal.Changes).To(HaveLen(2))
		Expect(journal.Changes[0].Version).To(Equal(2))
		Expect(journal.Changes[0].ChangedBy).To(Equal("assistant-b"))
		Expect([]string(journal.Changes[0].ChangedFields)).To(ConsistOf("notes"))
		Expect(journal.Changes[1].Version).To(Equal(1))
		Expect(journal.Changes[1].ChangedBy).To(Equal("lawyer-a"))
	})

	It("rejects payloads that fail validation before any version check", func() {
		editorA.open("status")
		editorA.baseVersion = 42 // stale on purpose; validation must win
		editorA.edit("status", "not-a-status")

		resp := editorA.submit("")
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		var errResp struct {
			Fields []struct {
				Field   string `json:"field"`
				Message string `json:"message"`
			} `json:"fields"`
		}
		decodeInto(resp, &errResp)
		Expect(errResp.Fields).NotTo(BeEmpty())
	})

	It("rejects update envelopes without concurrency meta", func() {
		resp := editorA.do(http.MethodPut, "/api/v1/cases/"+caseID, map[string]interface{}{
			"payload": map[string]interface{}{"status": "closed"},
		})
		Expect(resp.StatusCode).To(Equal(http.StatusPreconditionFailed))
		_ = resp.Body.Close()
	})

	It("treats whole-list changes to participants as a single conflicting field", func() {
		editorA.open("participants")
		editorB.open("participants")

		editorB.edit("participants", []map[string]interface{}{
			{"name": "K. Meyer", "role": "plaintiff"},
		})
		Expect(editorB.submit("").StatusCode).To(Equal(http.StatusOK))

		editorA.edit("participants", []map[string]interface{}{
			{"name": "H. Hartmann", "role": "defendant"},
		})
		resp := editorA.submit("")
		Expect(resp.StatusCode).To(Equal(http.StatusConflict))

		var conflictResp struct {
			Conflict models.ConflictDetails `json:"conflict"`
		}
		decodeInto(resp, &conflictResp)
		Expect(conflictResp.Conflict.Type).To(Equal(models.ConflictHard))
		Expect(conflictResp.Conflict.ConflictingFields).To(ConsistOf("participants"))
	})
})
