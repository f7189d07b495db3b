package api

import (
	"github.com/labstack/echo/v4"

	"PawnPrice/internal/domain/models"
	"PawnPrice/internal/usecase"
	xhttp "PawnPrice/pkg/http"
	xlogger "PawnPrice/pkg/logger"
)

type FraudHandler struct {
	logger   *xlogger.Logger
	analyzer *usecase.FraudAnalyzer
}

func NewFraudHandler(logger *xlogger.Logger, analyzer *usecase.FraudAnalyzer) *FraudHandler {
	return &FraudHandler{logger: logger, analyzer: analyzer}
}

func (h *FraudHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/fraud")
	g.POST("/analyze", h.Analyze)
	g.GET("/patterns", h.Patterns)
}

func (h *FraudHandler) Analyze(c echo.Context) error {
	req := &models.FraudRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("fraud usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *FraudHandler) Patterns(c echo.Context) error {
	if !h.analyzer.Enabled() {
		return xhttp.AppErrorResponse(c, toAppError(usecase.ErrFraudDisabled))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=300")
	return xhttp.SuccessResponse(c, h.analyzer.Patterns())
}
