package http

import "github.com/labstack/echo/v4"

// Handler registers a group of routes on the gateway's echo instance.
// The API surface is composed of several of these (ask, ingest, query).
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
