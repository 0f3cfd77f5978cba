package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/taskmaster/relay/docs"
	"github.com/taskmaster/relay/internal/adapters/broadcast"
	"github.com/taskmaster/relay/internal/adapters/calendar"
	"github.com/taskmaster/relay/internal/adapters/geofence"
	httpHandlers "github.com/taskmaster/relay/internal/adapters/http"
	"github.com/taskmaster/relay/internal/adapters/notify"
	"github.com/taskmaster/relay/internal/adapters/reminders"
	"github.com/taskmaster/relay/internal/adapters/repeats"
	"github.com/taskmaster/relay/internal/adapters/repository"
	"github.com/taskmaster/relay/internal/adapters/syncer"
	"github.com/taskmaster/relay/internal/adapters/timers"
	"github.com/taskmaster/relay/internal/application/services"
	"github.com/taskmaster/relay/internal/infrastructure/config"
	"github.com/taskmaster/relay/internal/infrastructure/database"
	"github.com/taskmaster/relay/internal/infrastructure/logger"
	"github.com/taskmaster/relay/internal/infrastructure/workers"
)

// Server represents the HTTP server and the background machinery behind it
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
	db     *database.DB

	redis       *redis.Client
	pool        *workers.Pool
	broadcaster *broadcast.Broadcaster
	reminders   *reminders.Scheduler
	syncer      *syncer.Syncer
	syncCancel  context.CancelFunc
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New wires the store, the collaborators, the dispatcher and the gateway
// together and returns a server ready to start
func New(cfg *config.Config, db *database.DB, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	// Redis client for the refresh channel
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		appLogger.Warnw("Redis unreachable, refresh broadcasts will be dropped", "error", err)
	}

	// Store and collaborators
	store := repository.NewTaskStore(db.DB)
	ledger := notify.NewLedger(db.DB)
	calendarUpdater := calendar.NewUpdater(db.DB)
	fenceUpdater := geofence.NewUpdater(db.DB)
	timerStopper := timers.NewStopper(db)
	broadcaster := broadcast.NewBroadcaster(redisClient, cfg.Redis.Channel, appLogger)
	reminderScheduler := reminders.NewScheduler(ledger, broadcaster, appLogger)
	repeatScheduler := repeats.NewScheduler(appLogger)
	remoteSyncer := syncer.NewSyncer(db.DB, cfg.Sync, appLogger)

	// Effect pipeline
	pool := workers.NewPool(cfg.Effects.Workers, cfg.Effects.QueueDepth, appLogger)
	registry := prometheus.NewRegistry()
	effectMetrics := services.NewEffectMetrics(registry)

	dispatcher := services.NewEffectDispatcher(services.Collaborators{
		Notifications: ledger,
		Reminders:     reminderScheduler,
		Repeats:       repeatScheduler,
		Calendars:     calendarUpdater,
		Geofences:     fenceUpdater,
		Timers:        timerStopper,
		Broadcaster:   broadcaster,
		RemoteSync:    remoteSyncer,
	}, pool, effectMetrics, appLogger)

	// Gateway; the repeat scheduler saves through it, so it is bound after
	// construction
	taskService := services.NewTaskService(store, dispatcher, effectMetrics, appLogger)
	repeatScheduler.Bind(taskService)
	bulkCompleter := services.NewBulkCompleter(store, taskService, appLogger)

	// Handlers
	taskHandler := httpHandlers.NewTaskHandler(taskService, bulkCompleter, appLogger)
	syncHandler := httpHandlers.NewSyncHandler(remoteSyncer, appLogger)

	server := &Server{
		echo:        e,
		config:      cfg,
		logger:      appLogger,
		db:          db,
		redis:       redisClient,
		pool:        pool,
		broadcaster: broadcaster,
		reminders:   reminderScheduler,
		syncer:      remoteSyncer,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup routes
	server.setupRoutes(taskHandler, syncHandler)

	// Setup metrics
	if cfg.Metrics.Enabled {
		server.setupMetrics(registry)
	}

	return server, nil
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.PATCH, echo.POST, echo.DELETE},
	}))

	// Rate limiting middleware
	s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(s.config.Security.RateLimitRequests), Burst: s.config.Security.RateLimitRequests, ExpiresIn: s.config.Security.RateLimitWindow},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			id := ctx.RealIP()
			return id, nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(http.StatusForbidden, map[string]string{"message": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(http.StatusTooManyRequests, map[string]string{"message": "rate limit exceeded"})
		},
	}))

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
	}))

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Timeout middleware
	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(taskHandler *httpHandlers.TaskHandler, syncHandler *httpHandlers.SyncHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Task routes (authenticated)
	taskGroup := v1.Group("/tasks", s.authMiddleware())
	taskGroup.GET("", taskHandler.ListTasks)
	taskGroup.POST("", taskHandler.CreateTask)
	taskGroup.POST("/bulk-complete", taskHandler.BulkComplete)
	taskGroup.POST("/confirm-saved", taskHandler.ConfirmSaved)
	taskGroup.GET("/:id", taskHandler.GetTask)
	taskGroup.PUT("/:id", taskHandler.UpdateTask)
	taskGroup.DELETE("/:id", taskHandler.DeleteTask)
	taskGroup.POST("/:id/complete", taskHandler.CompleteTask)
	taskGroup.POST("/:id/reopen", taskHandler.ReopenTask)
	taskGroup.POST("/:id/snooze", taskHandler.SnoozeTask)

	// Sync routes (authenticated)
	v1.POST("/sync", syncHandler.TriggerSync, s.authMiddleware())
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics(registry *prometheus.Registry) {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	queueDepth := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "relay_effect_queue_depth",
			Help: "Side-effect units waiting for a worker",
		},
		func() float64 { return float64(s.pool.Depth()) },
	)

	registry.MustRegister(requestsTotal, requestDuration, queueDepth)

	// Custom metrics middleware
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	})

	// Metrics endpoint
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// authMiddleware validates JWT bearer tokens
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	secret := []byte(s.config.JWT.Secret)
	issuer := s.config.JWT.Issuer

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			// Extract token from "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(issuer))
			if err != nil || !token.Valid {
				s.logger.Warnw("Invalid token", "error", err, "ip", c.RealIP())
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if subject, err := claims.GetSubject(); err == nil {
					c.Set("client", subject)
				}
			}

			return next(c)
		}
	}
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	// Database health check
	if err := s.db.HealthCheck(); err != nil {
		status = "error"
		checks["database"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "ok",
			"stats":  s.db.GetConnectionInfo(),
		}
	}

	// Redis health check; broadcasts degrade gracefully, so a failure here
	// does not flip the overall status
	pingCtx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.redis.Ping(pingCtx).Err(); err != nil {
		checks["redis"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["redis"] = map[string]interface{}{
			"status": "ok",
		}
	}

	checks["effects"] = map[string]interface{}{
		"status":      "ok",
		"queue_depth": s.pool.Depth(),
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
			"go":  runtime.Version(),
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	// Check if server is ready to accept requests
	if err := s.db.HealthCheck(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server and the background sync loop
func (s *Server) Start(address string) error {
	syncCtx, cancel := context.WithCancel(context.Background())
	s.syncCancel = cancel
	go s.syncer.Run(syncCtx)

	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown stops the HTTP listener first, then drains the background
// machinery: the sync loop, the in-process timers and finally the effect
// pool, so effects submitted by in-flight requests still run.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")

	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}

	if s.syncCancel != nil {
		s.syncCancel()
	}
	s.reminders.Stop()
	s.broadcaster.Stop()

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Errorw("Effect pool drain incomplete", "error", err)
	}

	if err := s.redis.Close(); err != nil {
		s.logger.Errorw("Failed to close Redis client", "error", err)
	}

	return nil
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = he.Message
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else if e, ok := err.(validator.ValidationErrors); ok {
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": e.Error()}
		} else {
			msg = map[string]string{"message": http.StatusText(code)}
		}

		if code == http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		// Send response
		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}
