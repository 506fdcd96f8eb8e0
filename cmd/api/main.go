package main

import (
	_ "taskflow/api/swagger" // swagger docs

	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"taskflow/internal/config"
	"taskflow/internal/database"
	"taskflow/internal/handler"
	"taskflow/internal/mailer"
	"taskflow/internal/metrics"
	"taskflow/internal/middleware"
	"taskflow/internal/repository"
	"taskflow/internal/scheduler"
	"taskflow/internal/service"
	"taskflow/internal/websocket"
)

// @title           TaskFlow API
// @version         1.0
// @description     Task tracking for service branches: lifecycle, assignment, dashboards and reports.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	gin.SetMode(cfg.GinMode)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.Release() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("closing database", "error", err)
		}
	}()
	logger.Info("connected to PostgreSQL")

	if cfg.SeedDefaults {
		if err := database.Seed(ctx, db, cfg.Location, logger); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wsHub := websocket.NewHub(cfg.EventQueueSize, m, logger)
	go wsHub.Run(hubCtx)

	clock := service.NewClock(cfg.Location)
	auth := middleware.NewAuthenticator(cfg.JWTSecret, cfg.Release())

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	reportRepo := repository.NewReportRepository(db)

	dashboardService := service.NewDashboardService(taskRepo, userRepo, clock, logger)
	notifier := service.NewNotifier(wsHub, dashboardService, clock, logger)
	userService := service.NewUserService(userRepo, auth, logger)
	taskService := service.NewTaskService(taskRepo, auditRepo, txManager, notifier, m, clock, logger)
	assignService := service.NewAssignService(taskRepo, userRepo, auditRepo, txManager, notifier, m, logger)
	catalogService := service.NewCatalogService(catalogRepo, auditRepo, txManager, notifier, logger)
	auditService := service.NewAuditService(auditRepo, logger)
	attendanceService := service.NewAttendanceService(attendanceRepo, txManager, clock, logger)
	announcementService := service.NewAnnouncementService(announcementRepo, clock, logger)

	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Timeout:  30 * time.Second,
	}, logger)
	reportService := service.NewReportService(reportRepo, taskRepo, userRepo, dashboardService, mail, cfg.ReportRecipients, m, clock, logger)

	var jobs *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		jobs, err = scheduler.New(reportService, cfg.Location, logger, scheduler.DefaultJobs)
		if err != nil {
			return err
		}
		jobs.Start()
	}

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/ws", func(c *gin.Context) {
		wsHub.ServeWs(auth, c)
	})

	api := router.Group("/api")
	handler.NewHealthHandler(database.HealthChecker{DB: db}).RegisterRoutes(api)
	handler.NewUserHandler(userService, auth).RegisterRoutes(api)
	handler.NewTaskHandler(taskService, assignService, auth).RegisterRoutes(api)
	handler.NewCatalogHandler(catalogService, auth).RegisterRoutes(api)
	handler.NewDashboardHandler(dashboardService, auth).RegisterRoutes(api)
	handler.NewExportHandler(taskService, auth, clock).RegisterRoutes(api)
	handler.NewAttendanceHandler(attendanceService, auth).RegisterRoutes(api)
	handler.NewAnnouncementHandler(announcementService, auth).RegisterRoutes(api)
	handler.NewReportHandler(reportService, auth).RegisterRoutes(api)
	handler.NewAuditHandler(auditService, auth).RegisterRoutes(api)
	handler.NewRoleHandler(auth).RegisterRoutes(api)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute)(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	logger.Info("http server shutting down")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if jobs != nil {
		if err := jobs.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler shutdown", "error", err)
		}
	}
	notifier.Wait()
	stopHub()
	<-wsHub.Done()

	return serveErr
}
