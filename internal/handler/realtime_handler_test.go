package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/internal/pkg/serverutils"
	"shyra-hub-be/internal/repository/memory"
	"shyra-hub-be/internal/service"
	internalWS "shyra-hub-be/internal/websocket"
	"shyra-hub-be/pkg/auth"

	fws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeWsRejectsBeforeUpgrade(t *testing.T) {
	log := logger.NewNopLogger()
	manager := auth.NewJWTManager("test-secret")
	sessions := memory.NewSessionRepository()
	dispatcher := internalWS.NewDispatcher(internalWS.NewHub(nil, log), sessions, nil, service.NewTranscriptService(nil, log), nil, log)

	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewRealtimeHandler(dispatcher, manager, log).RegisterRoutes(app)

	valid, err := manager.Issue(auth.Identity{Id: "dev-1", EntityType: auth.EntityDevice}, time.Minute)
	require.NoError(t, err)
	expired, err := manager.Issue(auth.Identity{Id: "dev-1", EntityType: auth.EntityDevice}, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name     string
		target   string
		header   string
		wantCode int
	}{
		{"no credential", "/ws", "", http.StatusUnauthorized},
		{"invalid query token", "/ws?token=garbage", "", http.StatusUnauthorized},
		{"expired header token", "/ws", "Bearer " + expired, http.StatusUnauthorized},
		{"valid token without upgrade", "/ws?token=" + valid, "", http.StatusUpgradeRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}

	assert.Equal(t, 0, sessions.GetStats().TotalSessions)
}

func TestServeWsRepeatedConnections(t *testing.T) {
	log := logger.NewNopLogger()
	manager := auth.NewJWTManager("test-secret")
	sessions := memory.NewSessionRepository()
	dispatcher := internalWS.NewDispatcher(internalWS.NewHub(nil, log), sessions, nil, service.NewTranscriptService(nil, log), nil, log)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	NewRealtimeHandler(dispatcher, manager, log).RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	token, err := manager.Issue(auth.Identity{Id: "dev-1", EntityType: auth.EntityDevice}, time.Minute)
	require.NoError(t, err)
	url := "ws://" + ln.Addr().String() + "/ws?token=" + token

	// Each round closes from the client side while the server writer may
	// still be flushing; the handler must not return before it stops.
	for i := 0; i < 30; i++ {
		conn, _, err := fws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err, "dial %d", i)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var frame struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &frame))
		assert.Equal(t, "authenticated", frame.Type)

		if i%2 == 0 {
			_ = conn.WriteMessage(fws.CloseMessage, fws.FormatCloseMessage(fws.CloseNormalClosure, ""))
		}
		_ = conn.Close()
	}

	assert.Eventually(t, func() bool {
		return sessions.GetStats().TotalSessions == 0
	}, 3*time.Second, 20*time.Millisecond)
}
