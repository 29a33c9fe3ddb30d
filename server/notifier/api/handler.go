package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	commonauth "langmod/server/common/auth"
	"langmod/server/common/transport/httpresp"
	"langmod/server/notifier/service"
)

type Handler struct {
	hub  *service.Hub
	auth *commonauth.Service
}

func NewHandler(hub *service.Hub, auth *commonauth.Service) *Handler {
	return &Handler{hub: hub, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws/events", h.handleEventsWS)
}

var eventsUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// handleEventsWS streams moderation events to a dashboard. The token
// travels as a query parameter because browsers cannot set headers on
// websocket dials. An optional chat_id narrows the feed to one chat.
func (h *Handler) handleEventsWS(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrMissingBearerToken))
		return
	}
	if _, _, err := h.auth.ParseAuthContext(token); err != nil {
		c.JSON(http.StatusUnauthorized, httpresp.NewErrorResponse(httpresp.ErrInvalidToken))
		return
	}

	conn, err := eventsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpresp.NewErrorResponse(err.Error()))
		return
	}

	client := &service.WSClient{ChatID: strings.TrimSpace(c.Query("chat_id")), Conn: conn}
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
