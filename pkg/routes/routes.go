// Package routes wires the HTTP API.
package routes

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/routes/organization"
	"github.com/Ramsey-B/fern/pkg/routes/reconcile"
	"github.com/Ramsey-B/fern/pkg/routes/resolve"
)

// Dependencies are the services the API serves from.
type Dependencies struct {
	ServiceName string
	Pipeline    *pipeline.Pipeline
	Reconciler  *merging.Reconciler
	// Links is optional; without it organization detail and xlsx export omit links.
	Links  organization.LinkLister
	Health *health.Checker
	Logger ectologger.Logger
}

// NewServer builds the echo server with middleware and every route.
func NewServer(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(deps.Logger)

	e.Use(otelecho.Middleware(deps.ServiceName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(deps.Logger))

	if deps.Health != nil {
		deps.Health.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	reg := deps.Pipeline.Registry()
	resolve.Register(api, resolve.NewHandler(deps.Pipeline, deps.Logger))
	organization.Register(api.Group("/organizations"), organization.NewHandler(reg, deps.Links, deps.Logger))
	reconcile.Register(api, reconcile.NewHandler(reg, deps.Reconciler))

	return e
}
