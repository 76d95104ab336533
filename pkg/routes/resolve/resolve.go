package resolve

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/resolution"
)

// MaxBatchSize bounds a single batch request.
const MaxBatchSize = 10000

// BatchRequest is the request body for batch resolution
type BatchRequest struct {
	Records []models.IncomingRecord `json:"records" validate:"required,min=1,max=10000,dive"`
}

// BatchResponse is the response body for batch resolution
type BatchResponse struct {
	Links         []models.LinkedRecord `json:"links"`
	Organizations int                   `json:"organizations"`
	Warnings      []string              `json:"warnings,omitempty"`
}

type Handler struct {
	pipeline *pipeline.Pipeline
	validate *validator.Validate
	logger   ectologger.Logger
}

func NewHandler(p *pipeline.Pipeline, logger ectologger.Logger) *Handler {
	return &Handler{
		pipeline: p,
		validate: validator.New(),
		logger:   logger,
	}
}

// Register registers resolution routes
func Register(g *echo.Group, h *Handler) {
	g.POST("/resolve", h.Resolve)
	g.POST("/resolve/batch", h.ResolveBatch)
}

// Resolve links a single record and returns its link.
func (h *Handler) Resolve(c echo.Context) error {
	ctx := c.Request().Context()

	var record models.IncomingRecord
	if err := c.Bind(&record); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(record); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid record: %s", err.Error())
	}

	resp, err := h.process(ctx, []models.IncomingRecord{record})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp.Links[0])
}

// ResolveBatch links records in request order.
func (h *Handler) ResolveBatch(c echo.Context) error {
	ctx := c.Request().Context()

	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid batch: %s", err.Error())
	}

	resp, err := h.process(ctx, req.Records)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) process(ctx context.Context, records []models.IncomingRecord) (*BatchResponse, error) {
	links, err := h.pipeline.Process(ctx, records)
	resp := &BatchResponse{Links: links, Organizations: h.pipeline.Registry().Len()}
	if err == nil {
		return resp, nil
	}

	// every record resolved; only downstream delivery failed
	if pipeline.OnlySinkErrors(err) && len(links) == len(records) {
		h.logger.WithContext(ctx).WithError(err).Warn("Resolved batch with sink failures")
		resp.Warnings = append(resp.Warnings, err.Error())
		return resp, nil
	}

	h.logger.WithContext(ctx).WithError(err).WithField("resolved", len(links)).Error("Failed to resolve batch")
	switch {
	case errors.Is(err, models.ErrUnknownSource),
		errors.Is(err, resolution.ErrNilBatch):
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "%s (resolved %d of %d)", err.Error(), len(links), len(records))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, httperror.NewHTTPErrorf(http.StatusServiceUnavailable, "resolution interrupted (resolved %d of %d)", len(links), len(records))
	default:
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve records")
	}
}
