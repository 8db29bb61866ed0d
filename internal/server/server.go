// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	_ "isupipe/docs" // swagger docs
	"isupipe/internal/bootstrap"
	"isupipe/internal/cache"
	"isupipe/internal/config"
	"isupipe/internal/featureflags"
	"isupipe/internal/middleware"
	"isupipe/internal/models"
	"isupipe/internal/notifications"
	"isupipe/internal/repository"
	"isupipe/internal/seed"
	"isupipe/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const requestsPerMinute = 600

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	mu             sync.Mutex
	shutdownFn     context.CancelFunc

	sessions     *middleware.Sessions
	featureFlags *featureflags.Manager
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	seeder       *seed.Seeder

	manager     *service.AggregateManager
	allocator   *service.SlotAllocator
	users       *service.UserService
	livestreams *service.LivestreamService
	moderation  *service.ModerationService
	ranking     *service.RankingService
}

// NewServer connects the database and Redis, then builds the server on top of them.
func NewServer(cfg *config.Config) (*Server, error) {
	// Development databases get slots and tags without a call to /api/initialize.
	db, redisClient, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{
		SeedReference: cfg.Env == "development",
	})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	termStart, termEnd, err := cfg.ReservationTerm()
	if err != nil {
		return nil, err
	}
	logger := middleware.Logger
	store := cache.NewRedisStore(redisClient, cfg.CacheTTL())

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("isupipe-api"),
		sessions:       middleware.NewSessions(cfg.JWTSecret),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		seeder:         seed.NewSeeder(db),
	}

	repos := service.LivestreamRepos{
		Users:        repository.NewUserRepository(db),
		Livestreams:  repository.NewLivestreamRepository(db),
		Livecomments: repository.NewLivecommentRepository(db),
		Reactions:    repository.NewReactionRepository(db),
		Reports:      repository.NewReportRepository(db),
		Viewers:      repository.NewViewerRepository(db),
		Tags:         repository.NewTagRepository(db),
	}

	s.manager = service.NewAggregateManager(db, store, logger)
	s.allocator = service.NewSlotAllocator(repository.NewSlotRepository(db), termStart, termEnd, cfg.SlotLockStrategy)
	s.moderation = service.NewModerationService(s.manager,
		repository.NewNGWordRepository(db),
		repos.Livecomments,
		repos.Livestreams,
		s.featureFlags,
		s.notifier,
		logger,
	)
	s.livestreams = service.NewLivestreamService(repos, s.manager, s.allocator, s.moderation, s.notifier, logger)
	s.users = service.NewUserService(repos.Users, s.manager.Reader())
	s.ranking = service.NewRankingService(db)

	return s, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(middleware.TracingMiddleware())

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        requestsPerMinute,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)
	api.Post("/initialize", s.Initialize)
	api.Post("/register", s.Register)
	api.Post("/login", s.Login)
	api.Get("/tag", s.GetTags)
	api.Get("/payment", s.GetPayment)

	auth := middleware.SessionRequired(s.sessions)

	users := api.Group("/user", auth)
	users.Get("/me", s.GetMe)
	users.Get("/:username/statistics", s.GetUserStatistics)
	users.Get("/:username/livestream", s.GetUserLivestreams)
	users.Get("/:username", s.GetUser)

	api.Get("/reservation/slots", auth, s.GetSlots)
	api.Get("/feature-flags", auth, s.GetFeatureFlags)

	// Static /livestream paths are registered before /:id.
	livestreams := api.Group("/livestream", auth)
	livestreams.Post("/reservation", s.ReserveLivestream)
	livestreams.Get("/search", s.SearchLivestreams)
	livestreams.Get("/ranking", s.GetLivestreamRanking)
	livestreams.Get("/", s.GetMyLivestreams)
	livestreams.Get("/:id/livecomment", s.GetLivecomments)
	livestreams.Post("/:id/livecomment", s.PostLivecomment)
	livestreams.Post("/:id/livecomment/:comment_id/report", s.ReportLivecomment)
	livestreams.Get("/:id/reaction", s.GetReactions)
	livestreams.Post("/:id/reaction", s.PostReaction)
	livestreams.Get("/:id/report", s.GetReports)
	livestreams.Get("/:id/ngwords", s.GetNGWords)
	livestreams.Post("/:id/moderate", s.Moderate)
	livestreams.Post("/:id/enter", s.EnterLivestream)
	livestreams.Delete("/:id/exit", s.ExitLivestream)
	livestreams.Get("/:id/statistics", s.GetLivestreamStatistics)
	livestreams.Get("/:id/ws", s.FeedUpgradeRequired(), s.LivestreamFeedHandler())
	livestreams.Get("/:id", s.GetLivestream)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// The cache is optional: without Redis reads go to the store.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// App returns the configured Fiber app, building it on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "isupipe",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: models.CodeValidation})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// startWiring forwards published livestream events to the feed hub.
func (s *Server) startWiring() {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.shutdownFn = cancel
	s.mu.Unlock()

	if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
		middleware.Logger.Error("failed to start livestream feed wiring", slog.String("error", err.Error()))
	}
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	s.startWiring()

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Serve runs the server on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	app := s.App()
	s.startWiring()
	return app.Listener(ln)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the wiring goroutine
	s.mu.Lock()
	if s.shutdownFn != nil {
		s.shutdownFn()
	}
	s.mu.Unlock()

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down feed hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
