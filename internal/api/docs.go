package api

// API documentation metadata for swag.
//
// @title easy-law case service API
// @version 1.0
// @description Multi-tenant case management with optimistic-concurrency
// @description conflict detection: updates carry the editor's base version,
// @description base snapshot, and dirty field set; concurrent-edit conflicts
// @description come back as structured diffs with a merge retry path.
//
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
