package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	// --- 导入内部包 ---
	httpHandler "japan-tracker/internal/handler/http"
	wsHandler "japan-tracker/internal/handler/websocket"
	"japan-tracker/internal/hub"
	gormpersistence "japan-tracker/internal/infra/persistence/gorm"
	"japan-tracker/internal/infra/setup"
	redisstate "japan-tracker/internal/infra/state/redis"
	"japan-tracker/internal/repository"
	"japan-tracker/internal/service"
	"japan-tracker/internal/tasks"
	"japan-tracker/internal/worker"
)

// snapshotSweepSchedule 周期统计快照数量
const snapshotSweepSchedule = "@every 10m"

// App 结构体包含应用的所有组件和配置
type App struct {
	Config         *Config
	Log            *logrus.Logger
	DB             *gorm.DB // 未配置 MySQL 时为 nil
	RedisClient    *redis.Client
	AsynqClient    *asynq.Client
	AsynqServer    *worker.WorkerServer
	Scheduler      *asynq.Scheduler
	Hub            *hub.Hub
	HttpServer     *http.Server
	redisClientOpt asynq.RedisClientOpt
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		// 使用标准 log 记录启动时错误，因为 logrus 可能还未完全配置
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := NewLogger(cfg)
	log.Infof("Logger initialized (Level: %s, Format: %T)", log.GetLevel().String(), log.Formatter)
	log.Info("Configuration loaded successfully")

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}

	app := &App{
		Config:      cfg,
		Log:         log,
		RedisClient: redisClient,
		redisClientOpt: asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
	}

	// 4. 初始化 Repositories
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)
	var snapshotRepo repository.SnapshotRepository
	var enqueuer service.TaskEnqueuer
	if cfg.SnapshotsEnabled() {
		db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("failed to init DB: %w", err)
		}
		if err := setup.MigrateDB(db); err != nil {
			return nil, fmt.Errorf("failed to migrate DB: %w", err)
		}
		app.DB = db
		snapshotRepo = gormpersistence.NewGormSnapshotRepository(db)

		app.AsynqClient = asynq.NewClient(app.redisClientOpt)
		enqueuer = app.AsynqClient
		app.AsynqServer = worker.NewWorkerServer(app.redisClientOpt, snapshotRepo, stateRepo, log)
		log.Info("Durable snapshots enabled (MySQL + Asynq)")
	} else {
		log.Warn("DB_USER not set, durable snapshots disabled; Redis is the only store")
	}
	log.Info("Infrastructure initialized successfully")

	// 5. 初始化 Services
	authService, err := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	persister := service.NewStatePersister(stateRepo, snapshotRepo, enqueuer)
	trackerService := service.NewTrackerService(persister, stateRepo, cfg.PublicBaseURL)
	log.Info("Services initialized")

	// 6. 初始化 Hub
	app.Hub = hub.NewHub(trackerService, redisClient, cfg.KeyPrefix)

	// 7. 初始化 Handlers 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := NewRouter(RouterDeps{
		Config:         cfg,
		Log:            log,
		RedisClient:    redisClient,
		SessionHandler: httpHandler.NewSessionHandler(authService),
		TrackerHandler: httpHandler.NewTrackerHandler(trackerService),
		WSHandler:      wsHandler.NewWebSocketHandler(app.Hub, cfg.CORSAllowedOrigin),
	})
	log.Info("Router setup complete")

	// 8. 初始化 HTTP Server
	app.HttpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Application assembled successfully")
	return app, nil
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	if a.AsynqServer != nil {
		go a.AsynqServer.Start()
		a.Log.Info("Asynq worker server routine started")
		a.registerPeriodicTasks()
	}

	// 启动 HTTP 服务器
	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{
		Logger: a.Log.WithField("component", "scheduler"),
	})

	entryID, err := scheduler.Register(snapshotSweepSchedule, tasks.NewSnapshotSweepTask())
	if err != nil {
		a.Log.Errorf("Could not register periodic snapshot sweep task: %v", err)
		return
	}
	a.Log.Infof("Periodic snapshot sweep task registered with schedule '%s' (EntryID: %s)", snapshotSweepSchedule, entryID)
	a.Scheduler = scheduler

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			return
		}
		a.Log.Info("Asynq scheduler stopped.")
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止 Hub 主循环和订阅
	if a.Hub != nil {
		a.Hub.Stop()
	}

	// 2. 停止 Scheduler 和 Worker Server
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 3. 优雅关闭 HTTP 服务器
	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 4. 关闭 Asynq Client
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		} else {
			a.Log.Info("Asynq client closed.")
		}
	}

	// 5. 关闭 Redis 连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	// 6. 关闭数据库连接池
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}
