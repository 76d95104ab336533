package reconcile

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/registry"
)

type Handler struct {
	registry   *registry.Registry
	reconciler *merging.Reconciler
}

func NewHandler(reg *registry.Registry, reconciler *merging.Reconciler) *Handler {
	return &Handler{
		registry:   reg,
		reconciler: reconciler,
	}
}

// Register registers reconciliation routes
func Register(g *echo.Group, h *Handler) {
	g.GET("/reconcile", h.Reconcile)
}

// Reconcile reports clusters of organizations that now score as one. The
// registry is not modified.
func (h *Handler) Reconcile(c echo.Context) error {
	report, err := h.reconciler.Reconcile(c.Request().Context(), h.registry.All())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}
