package entity

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	decisionrepo "github.com/Ramsey-B/briar/internal/repositories/decisionlog"
	entityrepo "github.com/Ramsey-B/briar/internal/repositories/entity"
	relationshiprepo "github.com/Ramsey-B/briar/internal/repositories/relationship"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/graph"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/normalizers"
)

// Register registers entity routes
func Register(g *echo.Group) {
	g.GET("", ListEntities)
	g.GET("/search", SearchEntities)
	g.GET("/:id", GetEntity)
	g.POST("", CreateEntity)
	g.GET("/:id/relationships", GetEntityRelationships)
	g.POST("/:id/relationships", ObserveRelationship)
	g.GET("/:id/decisions", GetEntityDecisions)
}

// ListEntities lists entities with pagination
func ListEntities(c echo.Context) error {
	ctx := c.Request().Context()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	ctx, repo, err := ectoinject.GetContext[*entityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entities, total, err := repo.List(ctx, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.EntityListResponse{
		Items:      entities,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// SearchEntities finds entities by fuzzy name match (?q=) or by exact
// definitive-attribute lookup (?key=document_number&value=L21000123456)
func SearchEntities(c echo.Context) error {
	ctx := c.Request().Context()

	q := c.QueryParam("q")
	key := c.QueryParam("key")
	value := c.QueryParam("value")

	ctx, repo, err := ectoinject.GetContext[*entityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if key != "" || value != "" {
		if key == "" || value == "" {
			return httperror.NewHTTPError(http.StatusBadRequest, "key and value are both required for attribute lookup")
		}
		entity, err := repo.FindByAttribute(ctx, key, value)
		if err != nil {
			return err
		}
		if entity == nil {
			return c.JSON(http.StatusOK, []models.Entity{})
		}
		return c.JSON(http.StatusOK, []models.Entity{*entity})
	}

	if q == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "q or key/value is required")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 200 {
		limit = 20
	}
	minSimilarity, err := strconv.ParseFloat(c.QueryParam("min_similarity"), 64)
	if err != nil || minSimilarity <= 0 || minSimilarity >= 1 {
		minSimilarity = 0.3
	}

	entities, err := repo.SearchByName(ctx, normalizers.NormalizeName(q), minSimilarity, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entities)
}

// GetEntity gets an entity by ID
func GetEntity(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*entityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entity, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entity)
}

// CreateEntity creates an entity directly, bypassing resolution. Used for
// manual entry of known-good entities.
func CreateEntity(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateEntityRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.DisplayName == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "display_name is required")
	}
	if req.Kind == "" {
		req.Kind = models.EntityKindUnknown
	}

	ctx, repo, err := ectoinject.GetContext[*entityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	source := string(models.SourceManualEntry)
	entity := &models.Entity{
		Kind:               req.Kind,
		CanonicalName:      normalizers.NormalizeName(req.DisplayName),
		DisplayName:        req.DisplayName,
		Confidence:         1.0,
		VerificationSource: &source,
		Attributes:         database.JSONB[map[string]any]{Data: req.Attributes},
	}
	if req.Address != nil {
		addr := normalizers.NormalizeAddress(*req.Address)
		entity.Address = &addr
	}
	if req.VerificationSource != nil {
		entity.VerificationSource = req.VerificationSource
	}

	created, err := repo.Create(ctx, entity)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created)
}

// GetEntityRelationships lists relationships in either direction
func GetEntityRelationships(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*relationshiprepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	relationships, err := repo.ListByEntity(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, relationships)
}

// ObserveRelationship records (or re-confirms) a relationship from this
// entity to another
func ObserveRelationship(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var req models.CreateRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.SourceEntityID = id
	if req.TargetEntityID == "" || req.RelationshipType == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "target_entity_id and relationship_type are required")
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return httperror.NewHTTPError(http.StatusBadRequest, "confidence must be between 0 and 1")
	}
	if req.Source == "" {
		req.Source = string(models.SourceManualEntry)
	}

	ctx, repo, err := ectoinject.GetContext[*relationshiprepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	rel, err := repo.Observe(ctx, req)
	if err != nil {
		return err
	}

	// Downstream notification and graph projection are best-effort; the
	// edge is already persisted and both log their own failures.
	if ctx, emitter, err := ectoinject.GetContext[*events.Emitter](ctx); err == nil && emitter != nil {
		_ = emitter.EmitRelationshipObserved(ctx, rel)
	}
	if ctx, projector, err := ectoinject.GetContext[*graph.Projector](ctx); err == nil && projector != nil {
		_ = projector.ProjectRelationship(ctx, rel)
	}

	return c.JSON(http.StatusCreated, rel)
}

// GetEntityDecisions lists the resolution audit trail for an entity
func GetEntityDecisions(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 100
	}

	ctx, repo, err := ectoinject.GetContext[*decisionrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	decisions, err := repo.ListByEntity(ctx, id, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, decisions)
}
