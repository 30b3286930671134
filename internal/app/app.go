package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"radiography_exam/internal/config"
	"radiography_exam/internal/controller"
	"radiography_exam/internal/repository"
	"radiography_exam/internal/service"
	"radiography_exam/internal/session"
	"radiography_exam/pkg/configwatcher"
	"radiography_exam/pkg/database"
	"radiography_exam/pkg/logger"
	"radiography_exam/pkg/monitoring"
	"radiography_exam/pkg/security"
	"radiography_exam/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configFile = "configs/config.yaml"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	limiter         *security.RateLimiter
	sweeper         *cron.Cron
	tracer          *sdktrace.TracerProvider
	cancel          context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	test      *repository.TestRepository
	question  *repository.QuestionRepository
	result    *repository.ResultRepository
	progress  *repository.ProgressRepository
	analytics *repository.AnalyticsRepository
}

type services struct {
	sessions  session.Store
	auth      *service.AuthService
	user      *service.UserService
	storage   *service.StorageService
	access    *service.AccessService
	progress  *service.ProgressService
	exam      *service.ExamService
	test      *service.TestService
	question  *service.QuestionService
	importer  *service.ImportService
	analytics *service.AnalyticsService
	presence  *service.PresenceHub
}

type controllers struct {
	auth      *controller.AuthController
	exam      *controller.ExamController
	result    *controller.ResultController
	test      *controller.TestController
	question  *controller.QuestionController
	user      *controller.UserController
	analytics *controller.AnalyticsController
	presence  *controller.PresenceController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		test:      repository.NewTestRepository(db),
		question:  repository.NewQuestionRepository(db),
		result:    repository.NewResultRepository(db),
		progress:  repository.NewProgressRepository(db),
		analytics: repository.NewAnalyticsRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.sessions = session.NewRedisStore(rdb, cfg.Session.TTL())
	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, s.sessions, cfg)
	s.user = service.NewUserService(repos.user)
	s.access = service.NewAccessService(rdb, cfg.Access.EnforceLimits)
	s.progress = service.NewProgressService(repos.progress, cfg.Progress.StaleAfter())
	s.exam = service.NewExamService(repos.test, repos.question, repos.result, s.progress, s.access, s.sessions)
	s.test = service.NewTestService(repos.test, repos.question, s.access)
	s.question = service.NewQuestionService(repos.question, repos.test, s.storage)
	s.importer = service.NewImportService(repos.question, repos.test, cfg.Import.MaxRows)
	s.analytics = service.NewAnalyticsService(
		repos.analytics,
		repos.user,
		repos.test,
		s.question,
		repos.result,
		s.progress,
		repos.progress,
		cfg.Progress.LiveWindow(),
	)

	s.presence = service.NewPresenceHub(rdb, repos.user)
	go s.presence.Run()

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth, s.user, s.test),
		exam:      controller.NewExamController(s.exam),
		result:    controller.NewResultController(s.exam),
		test:      controller.NewTestController(s.test),
		question:  controller.NewQuestionController(s.question, s.importer),
		user:      controller.NewUserController(s.user),
		analytics: controller.NewAnalyticsController(s.analytics),
		presence:  controller.NewPresenceController(s.presence),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	a.limiter = security.NewRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	router.Use(a.limiter.Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 进度清理、限流表清理与配置热加载
func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	sweeper, err := s.progress.StartSweeper(a.Config.Progress.SweepSchedule)
	if err != nil {
		logger.Log.Error("Failed to start progress sweeper", zap.Error(err),
			zap.String("schedule", a.Config.Progress.SweepSchedule))
	}
	a.sweeper = sweeper

	go a.limiter.Cleanup(ctx)

	a.RegisterConfigCallback(func(cfg *config.Config) {
		s.progress.SetStaleAfter(cfg.Progress.StaleAfter())
		s.access.SetEnforce(cfg.Access.EnforceLimits)
		a.limiter.SetLimit(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute)
	})

	go func() {
		err := configwatcher.WatchConfig(ctx, filepath.FromSlash(configFile), func(cfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(cfg)
			}
		})
		if err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	app.Redis = rdb

	repos := app.initRepositories(db)

	// 上次进程退出时未清理的在线标记
	if err := repos.user.ClearPresence(context.Background()); err != nil {
		logger.Log.Warn("Failed to clear stale presence", zap.Error(err))
	}

	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, services, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.cancel = cancel
	app.startBackgroundTasks(ctx, services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	a.cancel()
	if a.sweeper != nil {
		<-a.sweeper.Stop().Done()
	}

	// 清理 WebSocket 连接和在线状态
	if a.services != nil && a.services.presence != nil {
		a.services.presence.Stop()
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	if err := a.Redis.Close(); err != nil {
		logger.Log.Warn("Failed to close redis", zap.Error(err))
	}

	logger.Log.Info("Server exiting")
	_ = logger.Log.Sync()
}
