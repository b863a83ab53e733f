package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个标签页的 WebSocket 连接。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	clientID string      // 匿名客户端 ID，同一浏览器的多个标签页相同
	send     chan []byte // 用于向此标签页发送消息的缓冲通道

	sendMu sync.Mutex // 保护 send 的关闭
	closed bool
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, clientID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		clientID: clientID,
		send:     make(chan []byte, 32),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// trySend 非阻塞发送，通道已满或已关闭时丢弃
func (c *Client) trySend(message []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		logrus.WithField("client_id", c.clientID).Warn("Client send channel full, message dropped")
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump 读取标签页发来的控制消息。
// 它在自己的 goroutine 中运行。
func (c *Client) ReadPump() {
	logCtx := logrus.WithField("client_id", c.clientID)
	defer func() {
		// 请求 Hub 注销此标签页
		unregisterMsg := HubMessage{Type: MessageTypeUnregister, ClientID: c.clientID, Client: c}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			logCtx.Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logCtx.Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var control struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &control); err != nil || control.Type != MessageTypeReload {
			logCtx.Debugf("Ignoring tab message (size: %d)", len(message))
			continue
		}
		c.hub.QueueMessage(HubMessage{Type: MessageTypeReload, ClientID: c.clientID, Client: c})
	}
}

// WritePump 将消息从 send 通道写入 WebSocket 连接。
// 它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	logCtx := logrus.WithField("client_id", c.clientID)
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logCtx.Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭了（通常在注销时）
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logCtx.WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logCtx.WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

func (c *Client) ClientID() string { return c.clientID }
func (c *Client) CloseConn()       { c.conn.Close() }
