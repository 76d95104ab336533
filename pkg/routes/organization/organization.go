package organization

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/export"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/registry"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// LinkLister returns the records linked to an organization.
type LinkLister interface {
	ListByOrganization(ctx context.Context, organizationID string) ([]models.LinkedRecord, error)
	List(ctx context.Context) ([]models.LinkedRecord, error)
}

// ListResponse is a page of organizations in insertion order.
type ListResponse struct {
	Organizations []models.Organization `json:"organizations"`
	Total         int                   `json:"total"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

// DetailResponse is an organization with its linked records.
type DetailResponse struct {
	models.Organization
	Links []models.LinkedRecord `json:"links,omitempty"`
}

// ExternalRefsRequest is the request body for attaching external references
type ExternalRefsRequest struct {
	OrgRef      string `json:"external_org_ref" validate:"required_without=LocationRef,max=255"`
	LocationRef string `json:"external_location_ref" validate:"required_without=OrgRef,max=255"`
}

type Handler struct {
	registry *registry.Registry
	links    LinkLister
	validate *validator.Validate
	logger   ectologger.Logger
}

// NewHandler creates organization routes. links may be nil when no link store is configured.
func NewHandler(reg *registry.Registry, links LinkLister, logger ectologger.Logger) *Handler {
	return &Handler{
		registry: reg,
		links:    links,
		validate: validator.New(),
		logger:   logger,
	}
}

// Register registers organization routes
func Register(g *echo.Group, h *Handler) {
	g.GET("", h.List)
	g.GET("/export", h.Export)
	g.GET("/:id", h.Get)
	g.PUT("/:id/external-refs", h.AttachExternalRefs)
}

// List returns organizations in insertion order
func (h *Handler) List(c echo.Context) error {
	limit, err := intParam(c, "limit", defaultLimit)
	if err != nil {
		return err
	}
	offset, err := intParam(c, "offset", 0)
	if err != nil {
		return err
	}
	if limit < 1 || limit > maxLimit {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "limit must be between 1 and %d", maxLimit)
	}
	if offset < 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "offset must not be negative")
	}

	all := h.registry.All()
	start := min(offset, len(all))
	end := min(start+limit, len(all))

	return c.JSON(http.StatusOK, ListResponse{
		Organizations: all[start:end],
		Total:         len(all),
		Limit:         limit,
		Offset:        offset,
	})
}

// Get returns an organization and, when available, its linked records
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	org, ok := h.registry.Lookup(id)
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "organization %s not found", id)
	}

	resp := DetailResponse{Organization: org}
	if h.links != nil {
		links, err := h.links.ListByOrganization(ctx, id)
		if err != nil {
			return err
		}
		resp.Links = links
	}
	return c.JSON(http.StatusOK, resp)
}

// AttachExternalRefs fills empty external references on an organization
func (h *Handler) AttachExternalRefs(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var req ExternalRefsRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "external_org_ref or external_location_ref is required")
	}

	org, err := h.registry.AttachExternalRefs(ctx, id, models.ExternalRefs{OrgRef: req.OrgRef, LocationRef: req.LocationRef})
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return httperror.NewHTTPErrorf(http.StatusNotFound, "organization %s not found", id)
	case errors.Is(err, registry.ErrExternalRefConflict):
		return httperror.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		h.logger.WithContext(ctx).WithError(err).WithField("organization_id", id).Error("Failed to attach external refs")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to attach external refs")
	}

	return c.JSON(http.StatusOK, org)
}

// Export writes the registry as csv (default) or xlsx
func (h *Handler) Export(c echo.Context) error {
	ctx := c.Request().Context()
	table := export.OrganizationTable(h.registry.All())
	res := c.Response()

	switch format := c.QueryParam("format"); format {
	case "", "csv":
		res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
		res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="organizations.csv"`)
		res.WriteHeader(http.StatusOK)
		return export.WriteCSV(res, table)
	case "xlsx":
		sheets := []export.Sheet{{Name: "Organizations", Table: table}}
		if h.links != nil {
			links, err := h.links.List(ctx)
			if err != nil {
				return err
			}
			sheets = append(sheets, export.Sheet{Name: "Links", Table: export.LinkTable(links)})
		}
		res.Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="organizations.xlsx"`)
		res.WriteHeader(http.StatusOK)
		return export.WriteXLSX(res, sheets...)
	default:
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unsupported export format %q", format)
	}
}

func intParam(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "%s must be an integer", name)
	}
	return v, nil
}
