package api

import (
	"github.com/labstack/echo/v4"

	"PawnPrice/internal/domain/models"
	"PawnPrice/internal/services/pricing"
	"PawnPrice/internal/usecase"
	xhttp "PawnPrice/pkg/http"
	xlogger "PawnPrice/pkg/logger"
)

// PricingHandler serves valuation, offer and marketplace routes.
type PricingHandler struct {
	logger    *xlogger.Logger
	svc       *usecase.PricingService
	optimizer *pricing.PriceOptimizer
}

func NewPricingHandler(logger *xlogger.Logger, svc *usecase.PricingService, optimizer *pricing.PriceOptimizer) *PricingHandler {
	return &PricingHandler{logger: logger, svc: svc, optimizer: optimizer}
}

func (h *PricingHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/pricing")
	g.POST("/fmv", h.FMV)
	g.POST("/offer", h.Offer)
	g.POST("/confidence", h.Confidence)
	g.POST("/price", h.Price)
	g.POST("/optimize", h.Optimize)

	m := e.Group("/api/v1/marketplace")
	m.POST("/research", h.Research)
	m.GET("/health", h.MarketplaceHealth)
}

func (h *PricingHandler) FMV(c echo.Context) error {
	req := &models.FMVRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.svc.CalculateFMV(*req))
}

func (h *PricingHandler) Offer(c echo.Context) error {
	req := &models.OfferRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.CalculateOffer(*req)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PricingHandler) Confidence(c echo.Context) error {
	req := &models.ConfidenceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.svc.ScoreConfidence(*req))
}

func (h *PricingHandler) Price(c echo.Context) error {
	req := &models.PriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	req.IPAddress = c.RealIP()

	quote, err := h.svc.Price(c.Request().Context(), *req, nil)
	if err != nil {
		h.logger.Error("price usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, quote)
}

func (h *PricingHandler) Optimize(c echo.Context) error {
	req := &models.OptimizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.optimizer.BatchAnalyze(req.Offers))
}

func (h *PricingHandler) Research(c echo.Context) error {
	req := &models.ResearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.Research(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("research usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PricingHandler) MarketplaceHealth(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.svc.SourceHealth())
}
