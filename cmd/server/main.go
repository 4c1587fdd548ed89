// Package main 是服务端的入口点
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"hackgpt-server/internal/cache"
	"hackgpt-server/internal/config"
	"hackgpt-server/internal/handler"
	"hackgpt-server/internal/llm"
	"hackgpt-server/internal/memory"
	"hackgpt-server/internal/middleware"
	"hackgpt-server/internal/model"
	"hackgpt-server/internal/prompt"
	"hackgpt-server/internal/repository"
	"hackgpt-server/internal/service"
	"hackgpt-server/internal/websocket"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load("./configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 加载并校验 Prompt 模板
	// 缺占位符属于配置错误，直接启动失败而不是等到第一次对话
	template, err := prompt.LoadTemplate(cfg.Chat.PromptTemplate)
	if err != nil {
		log.Fatalf("Failed to load prompt template: %v", err)
	}

	// 初始化数据库
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}

	// 自动迁移数据库表
	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 初始化 Redis（可选）
	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(cfg)
		if err != nil {
			log.Fatalf("Failed to init redis: %v", err)
		}
	}

	// 初始化 LLM 客户端（供应商在此处一次性选定）
	llmClient, err := llm.New(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to init llm client: %v", err)
	}

	// 初始化 Repository 层
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// 初始化对话窗口
	window := memory.NewWindow(messageRepo, redisCache, cfg.Chat.WindowK)

	// 初始化 Service 层
	sessionService := service.NewSessionService(
		sessionRepo,
		window,
		redisCache,
		cfg.LLM.DefaultModel,
		cfg.LLM.DefaultTemperature,
	)
	chatService, err := service.NewChatService(sessionRepo, window, llmClient, template)
	if err != nil {
		log.Fatalf("Failed to init chat service: %v", err)
	}

	// 初始化 Handler 层
	sessionHandler := handler.NewSessionHandler(sessionService)
	chatHandler := handler.NewChatHandler(chatService)
	wsHandler := websocket.NewHandler(chatService)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	router := gin.New()

	// 全局中间件
	router.Use(gin.Recovery())                             // 恢复 panic
	router.Use(middleware.LoggerMiddleware())              // 请求日志
	router.Use(middleware.CORSMiddleware(cfg.Server.CORS)) // CORS

	// 注册路由
	registerRoutes(router, sessionHandler, chatHandler, wsHandler)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// 同步 chat 接口要等 LLM 返回，写超时放宽
		WriteTimeout: 180 * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// 创建关闭上下文，设置超时
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// 关闭 Redis 连接
	if redisCache != nil {
		if err := redisCache.Close(); err != nil {
			log.Printf("Failed to close redis: %v", err)
		}
	}

	log.Println("Server exited")
}

// initDatabase 初始化数据库连接
// 驱动由配置选择：mysql / postgres / sqlite
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Database.Driver {
	case "mysql":
		dsn := cfg.Database.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
				cfg.Database.Username,
				cfg.Database.Password,
				cfg.Database.Host,
				cfg.Database.Port,
				cfg.Database.Database,
				cfg.Database.Charset,
			)
		}
		dialector = mysql.Open(dsn)
	case "postgres":
		dsn := cfg.Database.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
				cfg.Database.Host,
				cfg.Database.Username,
				cfg.Database.Password,
				cfg.Database.Database,
				cfg.Database.Port,
			)
		}
		dialector = postgres.Open(dsn)
	case "sqlite":
		path := cfg.Database.DSN
		if path == "" {
			path = cfg.Database.Database
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unknown database driver: %q", cfg.Database.Driver)
	}

	// 配置 GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	// 连接数据库
	// TranslateError 让唯一约束冲突统一映射为 gorm.ErrDuplicatedKey
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 获取底层 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.MaxLifetime) * time.Second)

	log.Println("Database connected successfully")
	return db, nil
}

// autoMigrate 自动迁移数据库表
func autoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(
		&model.ChatSession{},
		&model.Message{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// registerRoutes 注册所有路由
func registerRoutes(
	router *gin.Engine,
	sessionHandler *handler.SessionHandler,
	chatHandler *handler.ChatHandler,
	wsHandler *websocket.Handler,
) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 路由组
	v1 := router.Group("/api/v1")

	// 活跃会话指针
	// 注意: 放在 /sessions/:name 之外，避免与通配段冲突
	v1.GET("/active-session", sessionHandler.GetActiveSession)

	// 会话相关
	sessions := v1.Group("/sessions")
	{
		sessions.POST("", sessionHandler.CreateSession)
		sessions.GET("", sessionHandler.ListSessions)
		sessions.GET("/:name", sessionHandler.GetSession)
		sessions.PUT("/:name", sessionHandler.UpdateSession)
		sessions.DELETE("/:name", sessionHandler.DeleteSession)
		sessions.POST("/:name/activate", sessionHandler.ActivateSession)

		// 对话相关
		sessions.POST("/:name/chat", chatHandler.Chat)
		sessions.GET("/:name/messages", chatHandler.GetMessages)
		sessions.DELETE("/:name/memory", chatHandler.ClearMemory)
		sessions.POST("/:name/summary", chatHandler.Summarize)
	}

	// WebSocket 路由
	wsHandler.RegisterRoutes(router)
}
