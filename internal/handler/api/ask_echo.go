package api

import (
	models "FinFuse/internal/domain/models"
	"FinFuse/internal/service/ratelimit"
	"FinFuse/internal/usecase"
	xhttp "FinFuse/pkg/http"
	xlogger "FinFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AskEchoHandler exposes the agent loop over HTTP.
type AskEchoHandler struct {
	logger   *xlogger.Logger
	loop     *usecase.AgentLoop
	sessions *usecase.SessionManager
	limiter  *ratelimit.Limiter
}

func NewAskEchoHandler(logger *xlogger.Logger, loop *usecase.AgentLoop, sessions *usecase.SessionManager) *AskEchoHandler {
	return &AskEchoHandler{logger: logger, loop: loop, sessions: sessions, limiter: ratelimit.New()}
}

func (h *AskEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/ask", h.Ask)
	g.GET("/sessions/:id/history", h.History)
}

type askResponse struct {
	SessionID string        `json:"session_id"`
	Answer    models.Answer `json:"answer"`
}

func (h *AskEchoHandler) Ask(c echo.Context) error {
	if !h.limiter.Allow(c.RealIP(), 10, 2) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
	}

	req := &models.AskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sessionID, answer, err := h.loop.Ask(c.Request().Context(), req.SessionID, req.Query)
	if err != nil {
		h.logger.Error("ask usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, askResponse{SessionID: sessionID, Answer: answer})
}

func (h *AskEchoHandler) History(c echo.Context) error {
	id := c.Param("id")
	if h.sessions.Get(id) == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("session %s not found", id))
	}
	return xhttp.SuccessResponse(c, h.sessions.History(id))
}
