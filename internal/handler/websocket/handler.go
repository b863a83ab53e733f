package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"japan-tracker/internal/hub"
	"japan-tracker/internal/middleware"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和标签页注册
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。
// allowedOrigin 为空时允许所有来源（开发环境）。
func NewWebSocketHandler(hub *hub.Hub, allowedOrigin string) *WebSocketHandler {
	if hub == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == allowedOrigin
		},
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      hub,
	}
}

// HandleConnection 处理 WebSocket 连接请求
// URL: /ws/tracker
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// 1. 获取认证的客户端 ID (由 Auth 中间件设置)
	clientID, ok := middleware.ClientID(c)
	if !ok {
		logrus.Warn("WS Handler: Client ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Client not authenticated"})
		return // 返回 HTTP 错误，因为此时还未升级到 WebSocket
	}
	logCtx := logrus.WithField("client_id", clientID)

	// 2. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 方法会自动发送 HTTP 错误响应，所以这里只需要记录日志
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	// 3. 创建 Client 并注册到 Hub
	client := hub.NewClient(h.hub, conn, clientID)
	if !h.hub.QueueMessage(hub.HubMessage{Type: hub.MessageTypeRegister, ClientID: clientID, Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}

	// 4. 启动读写 goroutine
	go client.Run()
	logCtx.Debug("WS Handler: Client read/write pumps started")
}
