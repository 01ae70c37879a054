package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/cadrius/mailpipe/api"
	"github.com/cadrius/mailpipe/config"
	"github.com/cadrius/mailpipe/internal/cron"
	"github.com/cadrius/mailpipe/internal/listeners"
	"github.com/cadrius/mailpipe/internal/locks"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/repository"
	"github.com/cadrius/mailpipe/internal/tracing"
	"github.com/cadrius/mailpipe/services"
	"github.com/cadrius/mailpipe/services/events"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	redisClient  *redis.Client
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, mailpipeDB *gorm.DB) (*Server, error) {
	// Initialize logger
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	// Initialize tracing
	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	// Initialize repositories
	repos := repository.InitRepositories(mailpipeDB)

	// Initialize services
	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return nil, err
	}

	// Fetch locks are shared across replicas only when redis is configured
	var locker locks.Locker
	var redisClient *redis.Client
	if cfg.AppConfig.RedisURL != "" {
		locker, redisClient, err = locks.NewRedisLockerFromURL(cfg.AppConfig.RedisURL)
		if err != nil {
			return nil, err
		}
	} else {
		locker = locks.NewLocalLocker()
	}

	cronManager := cron.NewCronManager(cfg, appLogger, kubernetesClient(cfg, appLogger), svcs.Fetcher, repos.MailboxRepository, locker)

	// Initialize Gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), tracing.RecoveryWithJaeger(tracer))

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		services:     svcs,
		repositories: repos,
		cronManager:  cronManager,
		redisClient:  redisClient,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

// kubernetesClient returns nil outside a cluster, which puts the cron manager in local mode.
func kubernetesClient(cfg *config.Config, log logger.Logger) kubernetes.Interface {
	if cfg.CronConfig == nil || cfg.CronConfig.PodName == "" || cfg.CronConfig.LocalDev {
		return nil
	}
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Warnf("Not running in cluster, leader election disabled: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("Could not create kubernetes client: %v", err)
		return nil
	}
	return client
}

func (s *Server) Initialize() error {
	// Consume the process queue
	if s.services.EventsService != nil {
		s.log.Info("Registering event listeners...")
		subscriber := s.services.EventsService.Subscriber
		subscriber.RegisterListener(listeners.NewProcessEmailListener(s.log, s.services.Processor))
		if err := subscriber.ListenQueue(events.QueueProcessEmail); err != nil {
			return err
		}
	}
	if s.services.WorkerPool != nil {
		s.services.WorkerPool.Start()
	}

	// Setup API routes
	api.RegisterRoutes(s.router, s.log, s.repositories, s.cronManager, s.services.ProcessQueue, s.config.AppConfig.APIKey)

	return nil
}

func (s *Server) Run() error {
	if err := s.Initialize(); err != nil {
		return err
	}

	s.log.Info("Starting cron manager...")
	if err := s.cronManager.Start(s.config.CronConfig.PodName, s.config.CronConfig.PodNamespace); err != nil {
		return err
	}

	// Start HTTP server in a goroutine with panic recovery
	go func() {
		defer tracing.RecoverAndLogToJaeger(s.log)
		s.log.Infof("Starting HTTP server on port %s", s.config.AppConfig.APIPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("❌ HTTP server error: %v", err)
		}
	}()
	s.log.Info("Mailpipe is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer tracing.RecoverAndLogToJaeger(s.log)

	// Set up signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	s.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("❌ HTTP server shutdown error: %v", err)
	} else {
		s.log.Info("✅ HTTP server shut down successfully")
	}

	// No new fetches after this point; in-flight ones finish
	s.cronManager.Stop()

	stopDone := make(chan struct{})
	go func() {
		defer close(stopDone)
		defer tracing.RecoverAndLogToJaeger(s.log)
		if err := s.services.Close(); err != nil {
			s.log.Errorf("❌ Queue shutdown error: %v", err)
		}
	}()

	select {
	case <-stopDone:
		s.log.Info("✅ Processing stopped gracefully")
	case <-shutdownCtx.Done():
		s.log.Warn("⚠️ Processing stop timed out, forcing exit")
	}

	if s.redisClient != nil {
		_ = s.redisClient.Close()
	}
	if s.tracerCloser != nil {
		_ = s.tracerCloser.Close()
	}

	return nil
}
