package handlers

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/pocketbase/pocketbase/core"

	"github.com/oculab/gazetrack/internal/config"
	"github.com/oculab/gazetrack/internal/security"
	"github.com/oculab/gazetrack/internal/services"
)

// WSHandler admits connections to the live event channel.
type WSHandler struct {
	hub      *services.Hub
	registry *services.Registry
	metrics  *services.Metrics
	origins  *security.OriginValidator
	limits   *config.Limits
}

func NewWSHandler(hub *services.Hub, registry *services.Registry, metrics *services.Metrics, limits *config.Limits) *WSHandler {
	if limits == nil {
		limits = config.DefaultLimits()
	}
	return &WSHandler{
		hub:      hub,
		registry: registry,
		metrics:  metrics,
		origins:  security.NewOriginValidator(limits.AllowedOrigins),
		limits:   limits,
	}
}

// HandleWebSocket verifies the handshake credential, upgrades the connection
// and runs the client until it disconnects. Connections without a valid auth
// token are rejected before any event is processed.
func (h *WSHandler) HandleWebSocket(re *core.RequestEvent) error {
	token := bearerToken(re.Request)
	if token == "" {
		return re.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing auth token"})
	}

	authRecord, err := re.App.FindAuthRecordByToken(token, core.TokenTypeAuth)
	if err != nil {
		return re.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid auth token"})
	}

	conn, err := websocket.Accept(re.Response, re.Request, h.origins.GetAcceptOptions())
	if err != nil {
		return err
	}

	// Stimulus pushes can carry inline image data in a single frame.
	conn.SetReadLimit(h.limits.MaxMessageBytes)

	client := services.NewClient(conn, h.hub, authRecord.Id)
	h.registry.Register(authRecord.Id, client)
	h.metrics.IncrementConnections()

	client.Start()
	<-client.Done()

	// Keyed by handle: a reconnect that already replaced this entry in the
	// registry is left untouched.
	h.registry.Unregister(client)
	h.metrics.DecrementConnections()
	return nil
}

// bearerToken extracts the handshake credential from the token query
// parameter or the Authorization header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	auth := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	return ""
}
