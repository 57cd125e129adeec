package agentservice

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	agentrepo "github.com/Ramsey-B/briar/internal/repositories/agentservice"
)

// CreateAgentServiceRequest registers a known commercial registered-agent
// service so matching stops treating it as identity evidence.
type CreateAgentServiceRequest struct {
	Name string `json:"name" validate:"required"`
}

// Register registers agent service routes
func Register(g *echo.Group) {
	g.GET("", ListAgentServices)
	g.POST("", CreateAgentService)
}

// ListAgentServices lists the known registered-agent services
func ListAgentServices(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, repo, err := ectoinject.GetContext[*agentrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	services, err := repo.List(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, services)
}

// CreateAgentService adds a registered-agent service to the known list
func CreateAgentService(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateAgentServiceRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*agentrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	created, err := repo.Create(ctx, req.Name)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, created)
}
