package bootstrap

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpHandler "japan-tracker/internal/handler/http"
	wsHandler "japan-tracker/internal/handler/websocket"
	"japan-tracker/internal/hub"
	redisstate "japan-tracker/internal/infra/state/redis"
	"japan-tracker/internal/service"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)
	for _, key := range []string{"SERVER_PORT", "LOG_LEVEL", "APP_ENV", "REDIS_KEY_PREFIX", "PUBLIC_BASE_URL",
		"RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW", "JWT_EXPIRY_HOURS", "DB_USER"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "jt:", cfg.KeyPrefix)
	assert.Equal(t, "http://localhost:8080/", cfg.PublicBaseURL)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 720, cfg.JWTExpiryHours)
	assert.False(t, cfg.SnapshotsEnabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("DB_USER", "tracker")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, "info", cfg.LogLevel, "无效日志级别回退到 info")
	assert.True(t, cfg.SnapshotsEnabled())
}

func TestLoadConfig_Required(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("JWT_SECRET", "secret")
	_, err := LoadConfig()
	assert.Error(t, err)

	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_WINDOW", "soon")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	cfg := &Config{
		KeyPrefix:         "test:",
		JWTSecret:         "secret",
		RateLimitMax:      100,
		RateLimitWindow:   time.Second,
		CORSAllowedOrigin: "https://tracker.example.com",
		PublicBaseURL:     "https://tracker.example.com/",
	}
	log := logrus.New()
	log.SetOutput(io.Discard)

	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)
	trackerService := service.NewTrackerService(service.NewStatePersister(stateRepo, nil, nil), stateRepo, cfg.PublicBaseURL)
	authService, err := service.NewAuthService(cfg.JWTSecret, 1)
	require.NoError(t, err)
	hubInstance := hub.NewHub(trackerService, redisClient, cfg.KeyPrefix)

	return NewRouter(RouterDeps{
		Config:         cfg,
		Log:            log,
		RedisClient:    redisClient,
		SessionHandler: httpHandler.NewSessionHandler(authService),
		TrackerHandler: httpHandler.NewTrackerHandler(trackerService),
		WSHandler:      wsHandler.NewWebSocketHandler(hubInstance, cfg.CORSAllowedOrigin),
	})
}

func TestNewRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	testCases := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/ping", http.StatusOK},
		{http.MethodGet, "/api/regions", http.StatusOK},
		{http.MethodPost, "/api/sessions", http.StatusCreated},
		{http.MethodGet, "/api/tracker", http.StatusUnauthorized},
		{http.MethodPost, "/api/tracker/reset", http.StatusUnauthorized},
		{http.MethodPost, "/api/tracker/share", http.StatusUnauthorized},
		{http.MethodGet, "/ws/tracker", http.StatusUnauthorized},
		{http.MethodOptions, "/api/tracker/reset", http.StatusNoContent},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, "https://tracker.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
