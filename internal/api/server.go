package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/damilarekoiki/project-management/internal/api/middleware"
	"github.com/damilarekoiki/project-management/internal/config"
	"github.com/damilarekoiki/project-management/internal/model"
	"github.com/damilarekoiki/project-management/internal/pkg/cache"
	"github.com/damilarekoiki/project-management/internal/pkg/metrics"
	"github.com/damilarekoiki/project-management/internal/pkg/ratelimit"
	"github.com/damilarekoiki/project-management/internal/policy"
	"github.com/damilarekoiki/project-management/internal/store"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、各实体存储、策略引擎、
// 指标缓存以及 Gin 路由引擎。
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
	rdb    *redis.Client
	router *gin.Engine

	projects *store.ProjectStore
	tasks    *store.TaskStore
	users    *store.UserStore
	policy   *policy.Engine
	metrics  *cache.Metrics
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 初始化存储、策略引擎、指标缓存
// 4. 初始化 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
		TranslateError: true,                                          // 唯一约束冲突翻译为 gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Project{}, &model.Task{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		rdb:      rdb,
		router:   r,
		projects: store.NewProjectStore(db),
		tasks:    store.NewTaskStore(db),
		users:    store.NewUserStore(db),
		policy:   policy.New(db),
		metrics:  cache.New(rdb, logger),
	}
	s.registerRoutes()
	return s, nil
}

// Run 启动 HTTP 服务器并开始监听请求。
func (s *Server) Run() error {
	s.logger.Info("api server listening", slog.String("addr", s.cfg.App.HTTPAddr))
	return s.router.Run(s.cfg.App.HTTPAddr)
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if closeErr := sqlDB.Close(); closeErr != nil {
				if firstErr == nil {
					firstErr = closeErr
				}
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	authed := s.router.Group("/api")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret, s.users))
	authed.Use(middleware.RateLimit(ratelimit.New(s.rdb, s.cfg.App.RateLimit, s.cfg.App.RateBurst)))

	authed.GET("/me", s.handleMe)
	authed.GET("/users/search", s.handleSearchUsers)
	authed.GET("/dashboard", s.handleDashboard)

	authed.GET("/projects", s.handleListProjects)
	authed.POST("/projects", s.handleCreateProject)
	authed.PATCH("/projects/:project", s.handleUpdateProject)
	authed.DELETE("/projects/:project", s.handleDeleteProject)

	authed.GET("/projects/:project/tasks", s.handleListTasks)
	authed.PUT("/projects/:project/tasks", s.handleCreateTasks)
	authed.PATCH("/projects/:project/tasks", s.handleUpdateTasks)
	authed.DELETE("/projects/:project/tasks/:task", s.handleDeleteTask)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
