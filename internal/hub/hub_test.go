package hub

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisstate "japan-tracker/internal/infra/state/redis"
	"japan-tracker/internal/service"
)

func newTestHub(t *testing.T) (*Hub, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	stateRepo := redisstate.NewRedisStateRepository(redisClient, "test:")
	trackerService := service.NewTrackerService(service.NewStatePersister(stateRepo, nil, nil), stateRepo, "")
	return NewHub(trackerService, redisClient, "test:"), mr
}

func hasSubscription(h *Hub, clientID string) bool {
	h.subsMu.Lock()
	defer h.subsMu.Unlock()
	_, ok := h.subscriptions[clientID]
	return ok
}

func TestHub_LateSubscriptionAfterLastTabClosedIsDropped(t *testing.T) {
	// Arrange
	h, mr := newTestHub(t)
	defer h.Stop()
	channel := redisstate.EventsChannel("test:", "c1")
	tab := NewClient(h, nil, "c1")

	// Act: 注册后立即注销，订阅 goroutine 晚于注销执行
	h.registerClient(tab)
	h.unregisterClient(tab)
	h.ensureSubscription("c1")

	// Assert
	assert.Equal(t, 0, h.TabCount("c1"))
	assert.False(t, hasSubscription(h, "c1"))
	assert.Eventually(t, func() bool { return mr.PubSubNumSub(channel)[channel] == 0 },
		2*time.Second, 20*time.Millisecond, "Redis 订阅应已关闭")
}

func TestHub_RegisterUnregisterThroughRun(t *testing.T) {
	h, mr := newTestHub(t)
	go h.Run()
	defer h.Stop()
	channel := redisstate.EventsChannel("test:", "c1")

	for i := 0; i < 20; i++ {
		tab := NewClient(h, nil, "c1")
		require.True(t, h.QueueMessage(HubMessage{Type: MessageTypeRegister, ClientID: "c1", Client: tab}))
		require.True(t, h.QueueMessage(HubMessage{Type: MessageTypeUnregister, ClientID: "c1", Client: tab}))
	}

	// 等待所有异步订阅完成
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, h.TabCount("c1"))
	assert.False(t, hasSubscription(h, "c1"))
	assert.Eventually(t, func() bool { return mr.PubSubNumSub(channel)[channel] == 0 },
		2*time.Second, 20*time.Millisecond)
}

func TestHub_SubscriptionKeptWhileTabOpen(t *testing.T) {
	h, mr := newTestHub(t)
	defer h.Stop()
	channel := redisstate.EventsChannel("test:", "c1")
	tab := NewClient(h, nil, "c1")

	h.registerClient(tab)
	h.ensureSubscription("c1")

	assert.True(t, hasSubscription(h, "c1"))
	assert.Equal(t, 1, mr.PubSubNumSub(channel)[channel])

	h.unregisterClient(tab)
	assert.False(t, hasSubscription(h, "c1"))
}

func TestHub_StopEndsRun(t *testing.T) {
	h, _ := newTestHub(t)
	stopped := make(chan struct{})
	go func() {
		h.Run()
		close(stopped)
	}()

	h.Stop()
	h.Stop() // 重复调用无副作用

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.False(t, h.QueueMessage(HubMessage{Type: MessageTypeReload, ClientID: "c1"}))
}
