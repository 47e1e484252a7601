package api

import (
	"github.com/labstack/echo/v4"
)

// Handlers bundles the route groups into one pkg/http Handler.
type Handlers struct {
	Ask    *AskEchoHandler
	Ingest *IngestEchoHandler
	Query  *QueryEchoHandler
}

func (h *Handlers) RegisterRoutes(e *echo.Echo) {
	h.Ask.RegisterRoutes(e)
	h.Ingest.RegisterRoutes(e)
	h.Query.RegisterRoutes(e)
}
