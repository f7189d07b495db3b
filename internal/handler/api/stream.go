package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"PawnPrice/internal/domain/models"
	"PawnPrice/internal/usecase"
	xhttp "PawnPrice/pkg/http"
	xlogger "PawnPrice/pkg/logger"
)

const (
	streamPingInterval = 20 * time.Second
	streamWriteWait    = 10 * time.Second
	streamMaxMessage   = 8 << 20 // six base64 photos
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origins are enforced by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamHandler prices items over a WebSocket. Each PriceRequest the client
// sends is answered with a frame per pipeline stage.
type StreamHandler struct {
	logger *xlogger.Logger
	svc    *usecase.PricingService
}

func NewStreamHandler(logger *xlogger.Logger, svc *usecase.PricingService) *StreamHandler {
	return &StreamHandler{logger: logger, svc: svc}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/offers/stream", h.Stream)
}

// wsConn serialises writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return w.conn.WriteJSON(v)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait))
}

func (h *StreamHandler) Stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(streamMaxMessage)

	ws := &wsConn{conn: conn}
	ip := c.RealIP()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// ping loop
	go func() {
		ticker := time.NewTicker(streamPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ws.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		var req models.PriceRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("stream read ended", xlogger.Error(err))
			}
			return nil
		}
		if err := defaults.Set(&req); err != nil {
			_ = ws.writeJSON(models.StageUpdate{Stage: models.StageError, Message: err.Error()})
			continue
		}
		if verr := xhttp.ValidateStruct(nil, &req); verr != nil {
			_ = ws.writeJSON(models.StageUpdate{Stage: models.StageError, Message: "invalid request", Data: verr})
			continue
		}
		req.IPAddress = ip

		var writeErr error
		_, err := h.svc.Price(ctx, req, func(u models.StageUpdate) {
			if writeErr == nil {
				writeErr = ws.writeJSON(u)
			}
		})
		if writeErr != nil {
			return nil
		}
		if err != nil {
			h.logger.Warn("stream pricing failed", xlogger.Error(err))
			if werr := ws.writeJSON(models.StageUpdate{Stage: models.StageError, Message: toAppError(err).Message}); werr != nil {
				return nil
			}
		}
	}
}
