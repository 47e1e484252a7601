package api

import (
	"errors"

	models "FinFuse/internal/domain/models"
	"FinFuse/internal/usecase"
	xhttp "FinFuse/pkg/http"
	xlogger "FinFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// IngestEchoHandler accepts price and news batches over HTTP.
type IngestEchoHandler struct {
	logger *xlogger.Logger
	prices *usecase.PriceIngestor
	news   *usecase.NewsIngestor
}

func NewIngestEchoHandler(logger *xlogger.Logger, prices *usecase.PriceIngestor, news *usecase.NewsIngestor) *IngestEchoHandler {
	return &IngestEchoHandler{logger: logger, prices: prices, news: news}
}

func (h *IngestEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/ingest")
	g.POST("/prices", h.Prices)
	g.POST("/news", h.News)
}

func (h *IngestEchoHandler) Prices(c echo.Context) error {
	req := &models.PriceIngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, err := h.prices.Ingest(c.Request().Context(), req.Rows)
	if err != nil {
		h.logger.Error("price ingest error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapIngestError(err))
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *IngestEchoHandler) News(c echo.Context) error {
	req := &models.NewsIngestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	report, err := h.news.Ingest(c.Request().Context(), req.Items)
	if err != nil {
		h.logger.Error("news ingest error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapIngestError(err))
	}
	return xhttp.SuccessResponse(c, report)
}

// mapIngestError surfaces retryable infrastructure failures as 503 so
// clients know the batch is safe to resend.
func mapIngestError(err error) error {
	switch {
	case errors.Is(err, models.ErrStorageUnavailable):
		return xhttp.UnavailableError("storage_unavailable", "storage unavailable, retry the batch").WithError(err)
	case errors.Is(err, models.ErrAnnotatorUnavailable):
		return xhttp.UnavailableError("annotator_unavailable", "annotator unavailable, retry the batch").WithError(err)
	default:
		return err
	}
}
