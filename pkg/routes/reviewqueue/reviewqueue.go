package reviewqueue

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	reviewrepo "github.com/Ramsey-B/briar/internal/repositories/reviewqueue"
	briarctx "github.com/Ramsey-B/briar/pkg/context"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/resolution"
)

// Register registers review queue routes
func Register(g *echo.Group) {
	g.GET("", ListReviews)
	g.GET("/:id", GetReview)
	g.POST("/:id/resolve", ResolveReview)
}

// ListReviews lists review queue entries, optionally filtered by status
func ListReviews(c echo.Context) error {
	ctx := c.Request().Context()

	status := models.ReviewStatus(c.QueryParam("status"))
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	ctx, repo, err := ectoinject.GetContext[*reviewrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entries, total, err := repo.List(ctx, status, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.ReviewQueueListResponse{
		Items:      entries,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// GetReview gets a review queue entry by ID
func GetReview(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*reviewrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entry, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entry)
}

// ResolveReviewResponse reports the outcome of a human verdict
type ResolveReviewResponse struct {
	Entry  *models.ReviewQueueEntry `json:"entry"`
	Entity *models.Entity           `json:"entity"`
}

// ResolveReview applies a human verdict to a pending entry. Accepting
// binds the record to the candidate entity; rejecting creates a new
// entity from the record. Either way the entry leaves the queue.
func ResolveReview(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var req models.ResolveReviewRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ReviewedBy == "" {
		req.ReviewedBy = briarctx.GetUserID(ctx)
	}
	if req.ReviewedBy == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "reviewed_by is required")
	}

	ctx, repo, err := ectoinject.GetContext[*reviewrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entry, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if entry.Status != models.ReviewPending {
		return httperror.NewHTTPErrorf(http.StatusConflict, "review %s is not pending", id)
	}

	ctx, resolver, err := ectoinject.GetContext[*resolution.Resolver](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "resolver unavailable")
	}

	var entity *models.Entity
	status := models.ReviewRejected
	if req.Accept {
		status = models.ReviewResolved
		entity, err = resolver.AcceptReview(ctx, entry)
	} else {
		entity, err = resolver.RejectReview(ctx, entry)
	}
	if err != nil {
		return err
	}

	if err := repo.SetStatus(ctx, id, status, req.ReviewedBy, req.Notes); err != nil {
		return err
	}

	entry.Status = status
	entry.ReviewedBy = &req.ReviewedBy
	entry.Notes = req.Notes

	return c.JSON(http.StatusOK, ResolveReviewResponse{
		Entry:  entry,
		Entity: entity,
	})
}
