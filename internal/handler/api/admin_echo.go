package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"PawnPrice/internal/domain/models"
	xhttp "PawnPrice/pkg/http"
	"PawnPrice/pkg/http/middleware"
	xlogger "PawnPrice/pkg/logger"
)

// OptimizerRunner runs one optimizer pass.
type OptimizerRunner interface {
	Run(ctx context.Context, dryRun bool) (*models.OptimizerSummary, error)
}

// AdminHandler serves operator routes behind an HS256 bearer token.
type AdminHandler struct {
	logger    *xlogger.Logger
	secret    string
	optimizer OptimizerRunner
	dryRun    bool
}

func NewAdminHandler(logger *xlogger.Logger, secret string, optimizer OptimizerRunner, defaultDryRun bool) *AdminHandler {
	return &AdminHandler{logger: logger, secret: secret, optimizer: optimizer, dryRun: defaultDryRun}
}

// RegisterRoutes skips the admin group entirely when no secret is set.
func (h *AdminHandler) RegisterRoutes(e *echo.Echo) {
	if h.secret == "" {
		h.logger.Warn("auth.jwt_secret not set, admin routes disabled")
		return
	}
	g := e.Group("/api/v1/admin", middleware.JWT(h.secret))
	g.POST("/optimizer/run", h.RunOptimizer)
}

func (h *AdminHandler) RunOptimizer(c echo.Context) error {
	req := &models.OptimizerRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	dryRun := h.dryRun
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	sub, _ := c.Get(middleware.ContextSubject).(string)
	h.logger.Info("optimizer run requested", xlogger.String("subject", sub), xlogger.Bool("dry_run", dryRun))

	summary, err := h.optimizer.Run(c.Request().Context(), dryRun)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, summary)
}
