package handler

import (
	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/internal/pkg/serverutils"
	internalWS "shyra-hub-be/internal/websocket"
	"shyra-hub-be/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type RealtimeHandler struct {
	dispatcher *internalWS.Dispatcher
	verifier   auth.TokenVerifier
	logger     logger.ILogger
}

func NewRealtimeHandler(dispatcher *internalWS.Dispatcher, verifier auth.TokenVerifier, log logger.ILogger) *RealtimeHandler {
	return &RealtimeHandler{
		dispatcher: dispatcher,
		verifier:   verifier,
		logger:     log,
	}
}

// ServeWs authenticates the handshake before upgrading; a missing or invalid
// credential is answered with 401 and no connection is accepted.
func (h *RealtimeHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := serverutils.HandshakeToken(c)
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	identity, err := h.verifier.Verify(tokenStr)
	if err != nil {
		h.logger.Warn("RealtimeHandler", "Invalid token in handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	id := *identity
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("RealtimeHandler", "Starting realtime session", map[string]interface{}{"entity_id": id.Id, "entity_type": id.EntityType})
		internalWS.ServeWs(h.dispatcher, conn, id, h.logger)
		h.logger.Info("RealtimeHandler", "Realtime session ended", map[string]interface{}{"entity_id": id.Id})
	}, websocket.Config{ReadBufferSize: 4096, WriteBufferSize: 4096})(c)
}

func (h *RealtimeHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}
