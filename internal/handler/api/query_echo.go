package api

import (
	"errors"

	models "FinFuse/internal/domain/models"
	"FinFuse/internal/service/retrieval"
	"FinFuse/internal/usecase"
	xhttp "FinFuse/pkg/http"
	xlogger "FinFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QueryEchoHandler exposes the retrieval layer: price ranges, fused
// records, and news similarity search.
type QueryEchoHandler struct {
	logger    *xlogger.Logger
	retrieval *retrieval.Service
	collector *usecase.FeedCollector // nil when the feed is disabled
}

func NewQueryEchoHandler(logger *xlogger.Logger, r *retrieval.Service, collector *usecase.FeedCollector) *QueryEchoHandler {
	return &QueryEchoHandler{logger: logger, retrieval: r, collector: collector}
}

func (h *QueryEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/prices", h.Prices)
	g.GET("/fusion", h.Fusion)
	g.GET("/news/search", h.NewsSearch)
	e.GET("/healthz", h.Health)
}

func (h *QueryEchoHandler) Prices(c echo.Context) error {
	req := &models.PriceHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok := xhttp.ParseTime(req.From)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unparseable from %q", req.From))
	}
	to, ok := xhttp.ParseTime(req.To)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unparseable to %q", req.To))
	}

	bars, err := h.retrieval.PriceHistory(c.Request().Context(), req.Instrument, from, to)
	if err != nil {
		h.logger.Error("price history error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapQueryError(err))
	}
	return xhttp.ListResponse(c, bars, int64(len(bars)))
}

func (h *QueryEchoHandler) Fusion(c echo.Context) error {
	req := &models.FusionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok := xhttp.ParseTime(req.From)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unparseable from %q", req.From))
	}
	to, ok := xhttp.ParseTime(req.To)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unparseable to %q", req.To))
	}

	recs, err := h.retrieval.FusionRange(c.Request().Context(), req.Instrument, from, to)
	if err != nil {
		h.logger.Error("fusion range error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapQueryError(err))
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *QueryEchoHandler) NewsSearch(c echo.Context) error {
	req := &models.NewsSearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	scored, err := h.retrieval.RelevantNews(c.Request().Context(), req.Query, req.Instrument, req.TopK)
	if err != nil {
		h.logger.Error("news search error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, mapQueryError(err))
	}
	return xhttp.ListResponse(c, scored, int64(len(scored)))
}

type healthResponse struct {
	Status        string `json:"status"`
	FeedConnected *bool  `json:"feed_connected,omitempty"`
}

func (h *QueryEchoHandler) Health(c echo.Context) error {
	resp := healthResponse{Status: "ok"}
	if h.collector != nil {
		connected := h.collector.IsConnected()
		resp.FeedConnected = &connected
	}
	return xhttp.SuccessResponse(c, resp)
}

func mapQueryError(err error) error {
	switch {
	case errors.Is(err, models.ErrStorageUnavailable):
		return xhttp.UnavailableError("storage_unavailable", "storage unavailable").WithError(err)
	case errors.Is(err, models.ErrAnnotatorUnavailable):
		return xhttp.UnavailableError("annotator_unavailable", "annotator unavailable").WithError(err)
	case errors.Is(err, models.ErrUnknownInstrument):
		return xhttp.NotFoundError("unknown instrument")
	default:
		return err
	}
}
