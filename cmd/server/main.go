package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iep-rehearsal/internal/catalog"
	"iep-rehearsal/internal/config"
	httpdelivery "iep-rehearsal/internal/delivery/http"
	"iep-rehearsal/internal/delivery/http/middleware"
	"iep-rehearsal/internal/delivery/websocket"
	"iep-rehearsal/internal/database"
	"iep-rehearsal/internal/freeform"
	"iep-rehearsal/internal/messaging"
	"iep-rehearsal/internal/reference"
	"iep-rehearsal/internal/repository"
	"iep-rehearsal/internal/scoring"
	"iep-rehearsal/internal/service"
	"iep-rehearsal/internal/session"
	"iep-rehearsal/internal/telemetry"
	"iep-rehearsal/pkg/ai"
	pgdb "iep-rehearsal/pkg/database"
	applogger "iep-rehearsal/pkg/logger"
	"iep-rehearsal/pkg/migration"
	"iep-rehearsal/pkg/taskmanager"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout     = 15 * time.Second
	housekeepingPeriod  = 5 * time.Minute
	finishedTaskMaxAge  = 10 * time.Minute
	scoringTimeoutRatio = 2
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.New(applogger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	cfg.Log(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Server exiting")
}

// stores bundles the persistence handles picked by TELEMETRY_DRIVER.
type stores struct {
	logs        repository.SimulationLogRepository
	suggestions repository.SuggestionRepository
	closers     []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("failed to load scenario catalog: %w", err)
	}
	lib, err := reference.Load()
	if err != nil {
		return fmt.Errorf("failed to load reference library: %w", err)
	}

	gen, err := ai.NewGenerator(ai.Config{
		ClientType: cfg.AI.ClientType,
		APIKey:     cfg.AI.APIKey,
		BaseURL:    cfg.AI.Endpoint(),
		Model:      cfg.AI.Model,
		Timeout:    cfg.AI.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI client: %w", err)
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	var publisher messaging.SessionEventPublisher
	if cfg.RabbitMQURL != "" {
		conn, err := messaging.Connect(ctx, cfg.RabbitMQURL, logger.Named("RabbitMQ"))
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer conn.Close()
		pub, err := messaging.NewRabbitMQSessionPublisher(conn, logger)
		if err != nil {
			return fmt.Errorf("failed to create session publisher: %w", err)
		}
		publisher = pub
	}
	recorder := telemetry.NewRecorder(st.logs, publisher, cfg.TelemetryQueueSize, logger)

	store, memStore, err := openSessionStore(ctx, cfg, logger, st)
	if err != nil {
		return err
	}

	wsManager := websocket.NewManager(cfg.CORSAllowedOrigins, logger)
	tm := taskmanager.New(taskmanager.Config{
		MaxTasks:    cfg.ScoringMaxJobs,
		TaskTimeout: scoringTimeoutRatio * cfg.AI.Timeout,
	}, logger)
	tm.SetNotifier(wsManager)

	svc := service.NewRehearsalService(
		cat, store,
		freeform.NewEngine(gen, logger),
		scoring.NewEngine(gen, logger),
		tm, recorder, wsManager,
		service.Config{AITimeout: cfg.AI.Timeout},
		logger,
	)
	handler := httpdelivery.NewHandler(svc, cat, lib, st.logs, st.suggestions, wsManager, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           newRouter(cfg, logger, handler),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsManager.Run(gctx)
		return nil
	})
	g.Go(func() error {
		housekeeping(gctx, memStore, tm, logger)
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server listen error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server forced to shutdown", zap.Error(err))
		}
		if err := tm.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Scoring jobs cancelled on shutdown", zap.Error(err))
		}
		if err := recorder.Close(shutdownCtx); err != nil {
			logger.Error("Telemetry recorder did not drain", zap.Error(err))
		}
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close session publisher", zap.Error(err))
			}
		}
		return nil
	})
	return g.Wait()
}

func newRouter(cfg *config.Config, logger *zap.Logger, handler *httpdelivery.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ZapLogger(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) == 0 || (len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "HEAD", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	p := ginprometheus.NewPrometheus("gin")
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		// Route templates keep session ids out of label values.
		if route := c.FullPath(); route != "" {
			return route
		}
		return "unmatched"
	}
	p.Use(router)

	handler.RegisterRoutes(router)
	return router
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.TelemetryDriver {
	case config.TelemetryPostgres:
		if err := database.Migrate(ctx, migration.DriverPostgres, cfg.DatabaseURL, logger); err != nil {
			return nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		db, err := pgdb.New(ctx, pgdb.Config{DSN: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		st.closers = append(st.closers, db.Close)
		st.logs = repository.NewPgSimulationLogRepository(db.Pool, logger)
		st.suggestions = repository.NewPgSuggestionRepository(db.Pool, logger)

	default:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { database.CloseDB(db, logger) })
		st.logs = repository.NewSQLiteSimulationLogRepository(db, logger)

		suggestionsDB := db
		if cfg.SuggestionsPath != "" && cfg.SuggestionsPath != cfg.SQLitePath {
			suggestionsDB, err = openSeparateSQLite(ctx, cfg.SuggestionsPath, logger)
			if err != nil {
				st.close()
				return nil, err
			}
			st.closers = append(st.closers, func() { database.CloseDB(suggestionsDB, logger) })
		}
		st.suggestions = repository.NewSQLiteSuggestionRepository(suggestionsDB, logger)
	}
	return st, nil
}

func openSeparateSQLite(ctx context.Context, path string, logger *zap.Logger) (*sql.DB, error) {
	db, err := database.OpenSQLite(ctx, path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open suggestions database: %w", err)
	}
	return db, nil
}

// openSessionStore registers the redis client on st so it is closed with
// the other handles.
func openSessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, st *stores) (session.Store, *session.MemoryStore, error) {
	if cfg.SessionStore == config.SessionStoreRedis {
		client, err := session.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		st.closers = append(st.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		})
		return session.NewRedisStore(client, cfg.SessionTTL, logger), nil, nil
	}
	mem := session.NewMemoryStore(cfg.SessionTTL, logger)
	return mem, mem, nil
}

// housekeeping drops expired in-memory sessions and finished task records.
func housekeeping(ctx context.Context, mem *session.MemoryStore, tm *taskmanager.TaskManager, logger *zap.Logger) {
	ticker := time.NewTicker(housekeepingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept := 0
			if mem != nil {
				swept = mem.Sweep()
			}
			cleaned := tm.CleanupTasks(finishedTaskMaxAge)
			if swept > 0 || cleaned > 0 {
				logger.Debug("Housekeeping done", zap.Int("expiredSessions", swept), zap.Int("finishedTasks", cleaned))
			}
		}
	}
}
