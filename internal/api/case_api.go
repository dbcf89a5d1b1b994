package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kingbora/easy-law-sub001/pkg/models"
	"github.com/kingbora/easy-law-sub001/pkg/observability"
	repoifaces "github.com/kingbora/easy-law-sub001/pkg/repository/interfaces"
	"github.com/kingbora/easy-law-sub001/pkg/services"
)

// CaseAPI handles tenant-scoped case endpoints, including the
// optimistic-concurrency update protocol.
type CaseAPI struct {
	cases  services.CaseService
	logger observability.Logger
}

// NewCaseAPI creates the case endpoint handlers
func NewCaseAPI(cases services.CaseService, logger observability.Logger) *CaseAPI {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &CaseAPI{cases: cases, logger: logger}
}

// RegisterRoutes registers case endpoints under /cases
func (a *CaseAPI) RegisterRoutes(router *gin.RouterGroup) {
	cases := router.Group("/cases")
	cases.POST("", a.createCase)
	cases.GET("", a.listCases)
	cases.GET(":id", a.getCase)
	cases.PUT(":id", a.updateCase)
	cases.DELETE(":id", a.deleteCase)
	cases.GET(":id/changes", a.listChanges)
}

// updateRequestBody is the wire form of an update attempt. Meta fields are
// pointers so a missing envelope is distinguishable from zero values and
// can be rejected with 412 instead of being misread as baseVersion 0.
type updateRequestBody struct {
	Payload map[string]interface{} `json:"payload"`
	Meta    *struct {
		BaseVersion  *int                   `json:"baseVersion"`
		BaseSnapshot map[string]interface{} `json:"baseSnapshot"`
		DirtyFields  []string               `json:"dirtyFields"`
		ResolveMode  models.ResolveMode     `json:"resolveMode"`
	} `json:"meta"`
}

// createCase godoc
// @Summary Create a new case
// @Description Register a new case for the authenticated tenant; the record enters the version ledger at version 0
// @Tags cases
// @Accept json
// @Produce json
// @Param case body models.Case true "Case fields"
// @Success 201 {object} models.Case
// @Failure 400 {object} map[string]interface{} "Invalid body or failed validation"
// @Failure 409 {object} map[string]interface{} "Duplicate case number"
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /cases [post]
func (a *CaseAPI) createCase(c *gin.Context) {
	tenantID, ok := TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant id"})
		return
	}

	var newCase models.Case
	if err := c.ShouldBindJSON(&newCase); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newCase.ID = uuid.Nil
	newCase.TenantID = tenantID
	newCase.UpdatedBy = ActorFromContext(c)

	if err := a.cases.Create(c.Request.Context(), &newCase); err != nil {
		if ve, ok := services.AsValidationError(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
			return
		}
		if errors.Is(err, repoifaces.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "a case with this number already exists"})
			return
		}
		a.serverError(c, "failed to create case", err)
		return
	}

	c.Header("ETag", versionETag(newCase.Version))
	c.JSON(http.StatusCreated, newCase)
}

// getCase godoc
// @Summary Get a case
// @Description Load a case with its current version; editors capture their base snapshot from this response. The version is echoed as the ETag.
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} models.Case
// @Failure 404 {object} map[string]interface{} "Case not found"
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /cases/{id} [get]
func (a *CaseAPI) getCase(c *gin.Context) {
	tenantID, caseID, ok := a.tenantAndCase(c)
	if !ok {
		return
	}

	record, err := a.cases.Get(c.Request.Context(), tenantID, caseID)
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
			return
		}
		a.serverError(c, "failed to load case", err)
		return
	}

	c.Header("ETag", versionETag(record.Version))
	c.JSON(http.StatusOK, record)
}

// listCases godoc
// @Summary List cases
// @Description List the authenticated tenant's cases with status filtering and limit/offset pagination
// @Tags cases
// @Produce json
// @Param status query string false "Comma-separated status filter"
// @Param assigned_lawyer query string false "Filter by assigned lawyer"
// @Param limit query int false "Page size (default 50, max 200)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]interface{} "cases, page info and _links"
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /cases [get]
func (a *CaseAPI) listCases(c *gin.Context) {
	tenantID, ok := TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant id"})
		return
	}

	filter := repoifaces.CaseFilter{
		Limit:  parseIntParam(c, "limit", 50, 200),
		Offset: parseIntParam(c, "offset", 0, 1<<30),
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, s := range strings.Split(statuses, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Status = append(filter.Status, s)
			}
		}
	}
	if lawyer := c.Query("assigned_lawyer"); lawyer != "" {
		filter.AssignedLawyer = &lawyer
	}

	page, err := a.cases.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		a.serverError(c, "failed to list cases", err)
		return
	}

	response := gin.H{
		"cases": page.Cases,
		"page_info": gin.H{
			"total_count": page.PageInfo.TotalCount,
			"has_more":    page.PageInfo.HasMore,
			"limit":       filter.Limit,
			"offset":      filter.Offset,
		},
	}
	links := gin.H{"self": c.Request.URL.String()}
	if page.PageInfo.HasMore {
		next := *c.Request.URL
		q := next.Query()
		q.Set("limit", strconv.Itoa(filter.Limit))
		q.Set("offset", strconv.Itoa(filter.Offset+filter.Limit))
		next.RawQuery = q.Encode()
		links["next"] = next.String()
	}
	response["_links"] = links

	c.JSON(http.StatusOK, response)
}

// updateCase godoc
// @Summary Update a case with optimistic concurrency
// @Description Submit an update attempt with {payload, meta:{baseVersion, baseSnapshot, dirtyFields, resolveMode}}. A concurrent-edit conflict returns 409 with structured conflict details and a render-ready diff; resubmitting with resolveMode=merge commits when the concurrent changes touch disjoint fields.
// @Tags cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param update body updateRequestBody true "Update payload and concurrency meta"
// @Success 200 {object} models.Case "Committed record with its new version"
// @Failure 400 {object} map[string]interface{} "Payload failed validation"
// @Failure 404 {object} map[string]interface{} "Case not found"
// @Failure 409 {object} map[string]interface{} "Concurrent edit conflict with details and diff"
// @Failure 412 {object} map[string]interface{} "Malformed concurrency meta"
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /cases/{id} [put]
func (a *CaseAPI) updateCase(c *gin.Context) {
	tenantID, caseID, ok := a.tenantAndCase(c)
	if !ok {
		return
	}

	var body updateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Meta == nil || body.Meta.BaseVersion == nil {
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "meta.baseVersion is required"})
		return
	}

	req := &models.CaseUpdateRequest{
		RecordID: caseID,
		TenantID: tenantID,
		ActorID:  ActorFromContext(c),
		Payload:  body.Payload,
		Meta: models.UpdateMeta{
			BaseVersion:  *body.Meta.BaseVersion,
			BaseSnapshot: body.Meta.BaseSnapshot,
			DirtyFields:  body.Meta.DirtyFields,
			ResolveMode:  body.Meta.ResolveMode,
		},
	}

	updated, err := a.cases.SubmitUpdate(c.Request.Context(), req)
	if err != nil {
		a.renderUpdateError(c, err)
		return
	}

	c.Header("ETag", versionETag(updated.Version))
	c.JSON(http.StatusOK, updated)
}

// renderUpdateError maps the coordinator's error taxonomy onto HTTP.
// Conflicts are expected outcomes of the protocol and carry the full
// structured details; only unknown errors become 500s.
func (a *CaseAPI) renderUpdateError(c *gin.Context, err error) {
	if ce, ok := services.AsConflictError(err); ok {
		c.JSON(http.StatusConflict, gin.H{
			"error":    ce.Error(),
			"conflict": ce.Details,
			"diff":     ce.Diff,
		})
		return
	}
	if ve, ok := services.AsValidationError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
		return
	}
	if errors.Is(err, services.ErrMalformedMeta) {
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, services.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}
	a.serverError(c, "failed to update case", err)
}

// deleteCase godoc
// @Summary Delete a case
// @Description Soft-delete a case; its change journal is kept
// @Tags cases
// @Param id path string true "Case ID"
// @Success 204 "Deleted"
// @Failure 404 {object} map[string]interface{} "Case not found"
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /cases/{id} [delete]
func (a *CaseAPI) deleteCase(c *gin.Context) {
	tenantID, caseID, ok := a.tenantAndCase(c)
	if !ok {
		return
	}

	err := a.cases.Delete(c.Request.Context(), tenantID, caseID, ActorFromContext(c))
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
			return
		}
		a.serverError(c, "failed to delete case", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listChanges godoc
// @Summary List a case's change journal
// @Description Return the most recent committed changes for a case, newest first
// @Tags cases
// @Produce json
// @Param id path string true "Case ID"
// @Param limit query int false "Maximum entries (default 50, max 200)"
// @Success 200 {object} map[string]interface{} "changes"
// @Failure 404 {object} map[string]interface{} "Case not found"
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /cases/{id}/changes [get]
func (a *CaseAPI) listChanges(c *gin.Context) {
	tenantID, caseID, ok := a.tenantAndCase(c)
	if !ok {
		return
	}

	limit := parseIntParam(c, "limit", 50, 200)
	changes, err := a.cases.ListChanges(c.Request.Context(), tenantID, caseID, limit)
	if err != nil {
		if errors.Is(err, services.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
			return
		}
		a.serverError(c, "failed to list case changes", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changes": changes})
}

func (a *CaseAPI) tenantAndCase(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	tenantID, ok := TenantFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant id"})
		return uuid.Nil, uuid.Nil, false
	}
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, caseID, true
}

func (a *CaseAPI) serverError(c *gin.Context, msg string, err error) {
	a.logger.Error(msg, map[string]interface{}{
		"error":  err.Error(),
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	})
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func parseIntParam(c *gin.Context, name string, fallback, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func versionETag(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}
