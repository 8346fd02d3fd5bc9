package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/AnupamNeon/Chat-app/internal/apperr"
	"github.com/AnupamNeon/Chat-app/internal/config"
	"github.com/AnupamNeon/Chat-app/internal/middleware"
	"github.com/AnupamNeon/Chat-app/internal/realtime"
	"github.com/AnupamNeon/Chat-app/internal/service"
	"github.com/AnupamNeon/Chat-app/pkg/response"
)

// RealtimeHandler upgrades authenticated requests to websockets and
// runs their read loop.
type RealtimeHandler struct {
	authService *service.AuthService
	hub         *realtime.Hub
	cfg         config.RealtimeConfig
	origins     []string
	logger      *slog.Logger
}

func NewRealtimeHandler(authService *service.AuthService, hub *realtime.Hub, cfg config.RealtimeConfig, origins []string, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		authService: authService,
		hub:         hub,
		cfg:         cfg,
		origins:     origins,
		logger:      logger,
	}
}

// Serve authenticates the handshake and blocks on the read loop until
// the peer goes away. Browsers cannot set headers on websocket
// requests, so a token query parameter stands in for the cookie.
func (h *RealtimeHandler) Serve(c *gin.Context) {
	token := middleware.TokenFromRequest(c)
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		response.Error(c, apperr.New(apperr.KindUnauthenticated, "authentication required"))
		return
	}

	authCtx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.HandshakeTimeout)
	userID, err := h.authService.ValidateSession(authCtx, token)
	cancel()
	if err != nil {
		response.Error(c, err)
		return
	}

	ws, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", "userId", userID, "error", err)
		return
	}

	conn := realtime.NewConnection(ws, userID, h.cfg.SendBuffer, h.cfg.WriteTimeout, h.cfg.PingInterval, h.logger)
	h.hub.Register(c.Request.Context(), conn)
	defer h.hub.Deregister(context.Background(), conn)

	h.readLoop(c.Request.Context(), ws, conn)
}

func (h *RealtimeHandler) readLoop(ctx context.Context, ws *websocket.Conn, conn *realtime.Connection) {
	for {
		var in realtime.InboundEvent
		if err := wsjson.Read(ctx, ws, &in); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				h.logger.Debug("websocket read failed", "userId", conn.UserID(), "error", err)
			}
			return
		}

		switch in.Type {
		case realtime.EventTypingStart, realtime.EventTypingStop:
			var req realtime.TypingRequest
			if err := json.Unmarshal(in.Data, &req); err != nil || req.ReceiverID <= 0 {
				continue
			}
			h.hub.RelayTyping(conn.UserID(), req.ReceiverID, in.Type == realtime.EventTypingStart)
		default:
			h.logger.Debug("unknown inbound event", "userId", conn.UserID(), "event", in.Type)
		}
	}
}
