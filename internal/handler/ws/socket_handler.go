package wshandler

import (
	"net/http"
	"slices"
	"time"

	"hms-notification-service/internal/auth"
	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/usecase"
	"hms-notification-service/pkg/notifier/ws"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxFrameSize = 64 << 10

type Options struct {
	// ReadTimeout bounds the silence tolerated between client frames or pongs.
	ReadTimeout time.Duration
	// AllowedOrigins restricts browser upgrades. Empty allows every origin.
	AllowedOrigins []string
}

type WSHandler struct {
	svc      *usecase.NotificationService
	registry *ws.Registry
	gate     *auth.Gate
	logger   *zap.Logger

	upgrader    websocket.Upgrader
	readTimeout time.Duration
}

func NewWSHandler(svc *usecase.NotificationService, registry *ws.Registry, gate *auth.Gate, logger *zap.Logger, opts Options) *WSHandler {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 90 * time.Second
	}
	h := &WSHandler{
		svc:         svc,
		registry:    registry,
		gate:        gate,
		logger:      logger,
		readTimeout: opts.ReadTimeout,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(opts.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(opts.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

// HandleNotifications verifies the caller, upgrades HTTP -> WebSocket and
// pumps inbound frames into the service until the peer goes away.
func (h *WSHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	if !h.gate.VerifyClient(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := h.gate.Authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WS upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	defer conn.Close()

	c, err := h.svc.Connect(r.Context(), userID, ws.NewConn(conn), domain.NewClientMetadata(r.UserAgent()))
	if err != nil {
		h.logger.Warn("WS connect rejected", zap.String("user_id", userID), zap.Error(err))
		return
	}

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		h.registry.Touch(c.ID)
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	ctx := r.Context()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WS read ended", zap.String("client_id", c.ID), zap.Error(err))
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		h.svc.HandleInbound(ctx, c.ID, data)
	}

	h.svc.Disconnect(c.ID)
}
