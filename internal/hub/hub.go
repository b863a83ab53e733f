package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	redisstate "japan-tracker/internal/infra/state/redis"
	"japan-tracker/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 包内使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// 标签页发来的消息类型
const (
	MessageTypeRegister   = "register"
	MessageTypeUnregister = "unregister"
	MessageTypeReload     = "reload" // 标签页重新可见，请求最新状态
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type     string
	ClientID string
	Client   *Client
}

// Hub 维护每个客户端打开的所有标签页，并把 Redis 上的状态事件转发给它们。
// 同一客户端的多个标签页共享一个 Redis 订阅。
type Hub struct {
	messageChan chan HubMessage
	done        chan struct{}
	stopOnce    sync.Once

	// map[clientID]map[*Client]bool
	clients   map[string]map[*Client]bool
	clientsMu sync.RWMutex

	redisClient *redis.Client
	keyPrefix   string
	// 每个客户端 ID 一个订阅，最后一个标签页断开时取消
	subscriptions map[string]context.CancelFunc
	subsMu        sync.Mutex

	trackerService *service.TrackerService
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(trackerService *service.TrackerService, redisClient *redis.Client, keyPrefix string) *Hub {
	if trackerService == nil {
		panic("TrackerService cannot be nil for Hub")
	}
	if redisClient == nil {
		panic("Redis client cannot be nil for Hub")
	}
	return &Hub{
		messageChan:    make(chan HubMessage, 512),
		done:           make(chan struct{}),
		clients:        make(map[string]map[*Client]bool),
		redisClient:    redisClient,
		keyPrefix:      keyPrefix,
		subscriptions:  make(map[string]context.CancelFunc),
		trackerService: trackerService,
	}
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case <-h.done:
			log.Info("Hub is shutting down...")
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case MessageTypeRegister:
				h.registerClient(msg.Client)
			case MessageTypeUnregister:
				h.unregisterClient(msg.Client)
			case MessageTypeReload:
				go h.sendCurrentState(msg.Client)
			default:
				log.Warnf("Hub: Received unknown message type: %s from client %s", msg.Type, msg.ClientID)
			}
		}
	}
}

// Stop 结束 Run 循环并取消所有订阅。可重复调用。
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
	h.StopAllSubscriptions()
}

// registerClient 处理标签页注册逻辑
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	clientID := client.ClientID()
	logCtx := logrus.WithFields(logrus.Fields{"client_id": clientID, "action": "registerClient"})

	h.clientsMu.Lock()
	if _, ok := h.clients[clientID]; !ok {
		h.clients[clientID] = make(map[*Client]bool)
	}
	h.clients[clientID][client] = true
	tabs := len(h.clients[clientID])
	h.clientsMu.Unlock()
	logCtx.WithField("tabs", tabs).Info("Client registered to Hub")

	// 先确认订阅再发送初始状态，之后的事件不会丢失
	go func() {
		h.ensureSubscription(clientID)
		h.sendCurrentState(client)
	}()
}

// unregisterClient 处理标签页注销逻辑
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	clientID := client.ClientID()
	logCtx := logrus.WithFields(logrus.Fields{"client_id": clientID, "action": "unregisterClient"})

	h.clientsMu.Lock()
	tabs, exists := h.clients[clientID]
	if !exists || !tabs[client] {
		h.clientsMu.Unlock()
		logCtx.Warn("Client not found during unregister")
		return
	}
	delete(tabs, client)
	client.closeSend()
	empty := len(tabs) == 0
	if empty {
		delete(h.clients, clientID)
	}
	h.clientsMu.Unlock()

	if empty {
		h.stopSubscription(clientID)
		logCtx.Info("Last tab closed, subscription stopped")
	}
	logCtx.Info("Client unregistered from Hub")
}

// ensureSubscription 为客户端建立 Redis 订阅（已存在时直接返回）
func (h *Hub) ensureSubscription(clientID string) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	if _, ok := h.subscriptions[clientID]; ok {
		return
	}

	channel := redisstate.EventsChannel(h.keyPrefix, clientID)
	logCtx := logrus.WithFields(logrus.Fields{"client_id": clientID, "channel": channel})
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := h.redisClient.Subscribe(ctx, channel)
	// 等待订阅确认
	if _, err := pubsub.Receive(ctx); err != nil {
		logCtx.WithError(err).Error("Failed to subscribe to client events")
		cancel()
		_ = pubsub.Close()
		return
	}

	// 订阅期间最后一个标签页可能已经注销，此时 stopSubscription 找不到它
	h.clientsMu.RLock()
	tabs := len(h.clients[clientID])
	h.clientsMu.RUnlock()
	if tabs == 0 {
		logCtx.Debug("No tabs left after subscribing, dropping subscription")
		cancel()
		_ = pubsub.Close()
		return
	}
	h.subscriptions[clientID] = cancel
	logCtx.Info("Subscribed to client events")

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h.broadcast(clientID, []byte(msg.Payload))
			}
		}
	}()
}

func (h *Hub) stopSubscription(clientID string) {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	if cancel, ok := h.subscriptions[clientID]; ok {
		cancel()
		delete(h.subscriptions, clientID)
	}
}

// StopAllSubscriptions 取消所有 Redis 订阅，在关闭应用时调用
func (h *Hub) StopAllSubscriptions() {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	for clientID, cancel := range h.subscriptions {
		cancel()
		delete(h.subscriptions, clientID)
	}
	logrus.WithField("component", "hub").Info("All subscriptions stopped")
}

// sendCurrentState 读取持久化状态并只发给这个标签页
func (h *Hub) sendCurrentState(client *Client) {
	if client == nil {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"client_id": client.ClientID(), "operation": "sendCurrentState"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	session := h.trackerService.OpenSession(ctx, client.ClientID(), "")
	payload, err := json.Marshal(service.NewStateEvent(session.State))
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal state event")
		return
	}
	client.trySend(payload)
}

// broadcast 将消息发送给客户端的所有标签页
func (h *Hub) broadcast(clientID string, message []byte) {
	h.clientsMu.RLock()
	tabs := make([]*Client, 0, len(h.clients[clientID]))
	for client := range h.clients[clientID] {
		tabs = append(tabs, client)
	}
	h.clientsMu.RUnlock()

	if len(tabs) == 0 {
		return
	}
	logrus.WithFields(logrus.Fields{
		"client_id":    clientID,
		"message_size": len(message),
		"tabs":         len(tabs),
	}).Debug("Broadcasting state event to tabs")

	for _, client := range tabs {
		client.trySend(message)
	}
}

// --- 公共方法 ---

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 如果消息成功入队，false 如果队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"client_id":    msg.ClientID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// TabCount 返回客户端当前打开的标签页数量
func (h *Hub) TabCount(clientID string) int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients[clientID])
}
