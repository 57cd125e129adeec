package graph

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	graphpkg "github.com/Ramsey-B/briar/pkg/graph"
)

// Handler handles graph query API endpoints
type Handler struct {
	queryService *graphpkg.QueryService
	logger       ectologger.Logger
}

// NewHandler creates a new graph handler
func NewHandler(queryService *graphpkg.QueryService, logger ectologger.Logger) *Handler {
	return &Handler{
		queryService: queryService,
		logger:       logger,
	}
}

// Register registers the graph routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/query", h.ExecuteQuery)
	g.GET("/path", h.FindShortestPath)
	g.GET("/neighbors/:entityId", h.FindNeighbors)
}

func (h *Handler) requireQueryService(c echo.Context) (*graphpkg.QueryService, error) {
	// Prefer explicitly provided service (useful for tests), but fall back
	// to DI-from-context, the standard pattern elsewhere.
	if h != nil && h.queryService != nil {
		return h.queryService, nil
	}

	ctx := c.Request().Context()
	_, svc, err := ectoinject.GetContext[*graphpkg.QueryService](ctx)
	if err != nil || svc == nil {
		// 503 because this is an optional dependency (graph DB can be disabled).
		return nil, httperror.NewHTTPError(http.StatusServiceUnavailable, "graph query service unavailable")
	}
	return svc, nil
}

// QueryRequest is the request body for executing a Cypher query
type QueryRequest struct {
	Query  string         `json:"query" validate:"required"`
	Params map[string]any `json:"params,omitempty"`
}

// ExecuteQuery executes a read-only Cypher query
func (h *Handler) ExecuteQuery(c echo.Context) error {
	ctx := c.Request().Context()

	qs, err := h.requireQueryService(c)
	if err != nil {
		return err
	}

	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	result, err := qs.ExecuteQuery(ctx, req.Query, req.Params)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// FindShortestPath finds the shortest path between two entities
func (h *Handler) FindShortestPath(c echo.Context) error {
	ctx := c.Request().Context()

	qs, err := h.requireQueryService(c)
	if err != nil {
		return err
	}

	fromID := c.QueryParam("from")
	toID := c.QueryParam("to")
	if fromID == "" || toID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "from and to query parameters are required")
	}

	maxHops, _ := strconv.Atoi(c.QueryParam("max_hops"))

	result, err := qs.FindShortestPath(ctx, fromID, toID, maxHops)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// FindNeighbors finds all entities connected within N hops
func (h *Handler) FindNeighbors(c echo.Context) error {
	ctx := c.Request().Context()

	qs, err := h.requireQueryService(c)
	if err != nil {
		return err
	}

	entityID := c.Param("entityId")
	hops, _ := strconv.Atoi(c.QueryParam("hops"))

	result, err := qs.FindNeighbors(ctx, entityID, hops)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
