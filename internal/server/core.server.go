package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"hms-notification-service/internal/auth"
	"hms-notification-service/internal/config"
	"hms-notification-service/internal/domain"
	"hms-notification-service/internal/events"
	grpchandler "hms-notification-service/internal/handler/grpc"
	hrest "hms-notification-service/internal/handler/http"
	wshandler "hms-notification-service/internal/handler/ws"
	"hms-notification-service/internal/queue"
	"hms-notification-service/internal/repository"
	"hms-notification-service/internal/router"
	"hms-notification-service/internal/usecase"
	"hms-notification-service/internal/worker"
	"hms-notification-service/pkg/notifier"
	"hms-notification-service/pkg/notifier/email"
	"hms-notification-service/pkg/notifier/push"
	"hms-notification-service/pkg/notifier/sms"
	ws "hms-notification-service/pkg/notifier/ws"
	"hms-notification-service/pkg/template"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Server owns every long-lived resource of the process and tears them down
// in reverse order on Shutdown.
type Server struct {
	cfg    config.AppConfig
	logger *zap.Logger

	svc    *usecase.NotificationService
	http   *http.Server
	grpc   *grpc.Server
	health *grpchandler.HealthHandler

	workers   []*worker.SweepWorker
	workerCtx context.Context
	cancel    context.CancelFunc

	rdb   *redis.Client
	db    *pgxpool.Pool
	kafka *events.KafkaObserver

	shutdownOnce sync.Once
	shutdownErr  error
}

func NewServer(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}
	s.workerCtx, s.cancel = context.WithCancel(context.Background())

	// --- Token verification ---
	verifier, err := auth.NewVerifierFromConfig(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("init token verifier: %w", err)
	}
	gate := auth.NewGate(verifier, logger)

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// --- Redis (optional) ---
	if cfg.RedisAddr != "" {
		s.rdb = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPass,
			DB:           0,
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := s.rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("Redis unreachable, rate limiting and redis subscriptions disabled", zap.Error(err))
			_ = s.rdb.Close()
			s.rdb = nil
		} else {
			logger.Info("Redis connected", zap.String("addr", cfg.RedisAddr))
		}
	}

	var subs repository.SubscriptionRepository = repository.NewMemorySubscriptionRepository()
	if cfg.SubscriptionStore == "redis" {
		if s.rdb == nil {
			s.close()
			return nil, errors.New("SUBSCRIPTION_STORE=redis requires a reachable REDIS_ADDR")
		}
		subs = repository.NewRedisSubscriptionRepository(s.rdb)
	}
	logger.Info("Subscription store ready", zap.String("backend", cfg.SubscriptionStore))

	// --- Postgres (optional) ---
	var (
		store     repository.NotificationStore = repository.NewMemoryNotificationStore()
		directory repository.Directory
	)
	if cfg.DatabaseURL != "" {
		s.db, err = connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
		store = repository.NewPgNotificationStore(s.db)
		directory = repository.NewPgDirectory(s.db)
		logger.Info("Database connected", zap.Int32("max_conns", s.db.Config().MaxConns))
	}

	// --- Event bus ---
	bus := events.NewBus(logger)
	bus.Subscribe(events.LogObserver(logger))
	bus.Subscribe(events.NewMetricsObserver(reg))
	if len(cfg.KafkaBrokers) > 0 {
		s.kafka = events.NewKafkaObserver(cfg.KafkaBrokers, cfg.KafkaTopic, reg, logger)
		bus.Subscribe(s.kafka)
	}

	// --- Channel fallback ---
	var senders []notifier.Sender
	if cfg.SMTP.Enabled() {
		senders = append(senders, email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Pass))
	}
	if cfg.SMS.Enabled() {
		senders = append(senders, sms.NewHTTPSender(cfg.SMS.APIURL, cfg.SMS.APIKey, cfg.SMS.SenderID, logger))
	}
	if cfg.Firebase.Enabled() {
		fcm, err := push.NewFCMSender(ctx, cfg.Firebase.CredentialsFile, logger)
		if err != nil {
			logger.Warn("FCM disabled", zap.Error(err))
		} else {
			senders = append(senders, fcm)
		}
	}
	notifierOpts := notifier.Options{
		Senders:    senders,
		Templates:  template.NewTemplateService(cfg.TemplateDir),
		RatePerSec: cfg.FallbackRatePerSec,
		Logger:     logger,
	}
	if directory != nil {
		notifierOpts.Contacts = directory
	}
	fallback := notifier.NewNotifier(notifierOpts)

	// --- Registry + service ---
	registry := ws.NewRegistry(ws.RegistryOptions{
		Subscriptions:     subs,
		Events:            bus,
		Logger:            logger,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})
	s.svc = usecase.NewNotificationService(usecase.Deps{
		Registry:          registry,
		Subscriptions:     subs,
		Queue:             queue.New(cfg.OfflineQueueCap),
		Store:             store,
		Directory:         directory,
		Fallback:          fallback,
		Events:            bus,
		Logger:            logger,
		InactivityTimeout: cfg.InactivityTimeout,
	})
	events.RegisterStatsGauges(reg, func() domain.Statistics {
		return s.svc.GetStatistics(context.Background())
	})

	// --- Sweeps ---
	s.workers = []*worker.SweepWorker{
		worker.NewSweepWorker("reaper", cfg.ReaperInterval, s.svc.ReapInactive, logger),
		worker.NewSweepWorker("queue-gc", cfg.QueueGCInterval, s.svc.GCExpiredQueue, logger),
	}

	// --- HTTP ---
	r := chi.NewRouter()
	routerDeps := router.Deps{
		Notifications: hrest.NewNotificationHandler(s.svc, logger),
		WS: wshandler.NewWSHandler(s.svc, registry, gate, logger, wshandler.Options{
			ReadTimeout: cfg.HeartbeatInterval * 3,
		}),
		Gate:            gate,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Metrics:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Logger:          logger,
	}
	if s.rdb != nil {
		routerDeps.Redis = s.rdb
	}
	router.SetupRoutes(r, routerDeps)
	s.http = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- gRPC health ---
	if cfg.GRPCAddr != "" {
		s.health = grpchandler.NewHealthHandler(logger)
		s.grpc = grpchandler.NewGRPCServer(s.health)
	}

	logger.Info("Notification service initialized",
		zap.Strings("fallback_channels", fallback.Channels()),
		zap.Bool("kafka", s.kafka != nil),
		zap.Bool("postgres", s.db != nil))
	return s, nil
}

// Start runs the sweep workers and both listeners. It blocks until a listener
// fails or Shutdown is called.
func (s *Server) Start() error {
	for _, w := range s.workers {
		go w.Start(s.workerCtx)
	}

	errCh := make(chan error, 2)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.HTTPAddr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	if s.grpc != nil {
		lis, err := net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPCAddr, err)
		}
		go func() {
			s.logger.Info("gRPC server listening", zap.String("addr", s.cfg.GRPCAddr))
			if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	return <-errCh
}

// Shutdown stops accepting work, closes every live connection and releases
// external resources. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("Notification service shutting down")
		var errs []error

		if s.health != nil {
			s.health.Draining()
		}
		for _, w := range s.workers {
			w.Stop()
		}
		s.cancel()

		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if s.grpc != nil {
			stopGRPC(ctx, s.grpc)
		}
		if err := s.svc.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("service shutdown: %w", err))
		}
		if err := s.close(); err != nil {
			errs = append(errs, err)
		}
		s.shutdownErr = errors.Join(errs...)
	})
	return s.shutdownErr
}

// stopGRPC drains in-flight RPCs until ctx expires, then cuts the rest
// (health Watch streams never finish on their own).
func stopGRPC(ctx context.Context, srv *grpc.Server) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		srv.Stop()
	}
}

// close releases the external clients opened by NewServer.
func (s *Server) close() error {
	s.cancel()
	var errs []error
	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if s.db != nil {
		s.db.Close()
	}
	return errors.Join(errs...)
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(pingCtx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
