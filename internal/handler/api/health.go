package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	xhttp "PawnPrice/pkg/http"
)

// HealthChecker is implemented by every backing store.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	checks  map[string]HealthChecker
	timeout time.Duration
}

// NewHealthHandler reports on the given components; nil entries are skipped.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	live := make(map[string]HealthChecker, len(checks))
	for name, hc := range checks {
		if hc != nil {
			live[name] = hc
		}
	}
	return &HealthHandler{checks: live, timeout: 3 * time.Second}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(h.checks))
	for name, hc := range h.checks {
		if err := hc.Health(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}
	return xhttp.DataResponse(c, status, map[string]interface{}{
		"healthy":    status == http.StatusOK,
		"components": components,
		"time":       time.Now().UTC(),
	})
}
