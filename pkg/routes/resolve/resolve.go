package resolve

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/briar/pkg/fingerprint"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/resolution"
)

// ResolveRequest is a scraped record submitted for synchronous
// resolution. The usual path is the Kafka topic; this endpoint exists
// for backfills and manual testing.
type ResolveRequest struct {
	SourceType models.SourceType `json:"source_type" validate:"required"`
	URL        string            `json:"url,omitempty"`
	Record     map[string]any    `json:"record" validate:"required,min=1"`
}

// Register registers resolution routes
func Register(g *echo.Group) {
	g.POST("", ResolveRecord)
}

// ResolveRecord resolves one raw record synchronously and returns the
// match result.
func ResolveRecord(c echo.Context) error {
	ctx := c.Request().Context()

	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, resolver, err := ectoinject.GetContext[*resolution.Resolver](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "resolver unavailable")
	}

	result, err := resolver.Resolve(ctx, req.Record, models.SourceContext{
		SourceType:  req.SourceType,
		URL:         req.URL,
		Fingerprint: fingerprint.Generate(req.Record),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
