package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/taskmaster/tracker/docs"
	httpHandlers "github.com/taskmaster/tracker/internal/adapters/http"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/database"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// Deps are the collaborators the HTTP server is built from
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Store    ports.DocumentStore
	Tasks    ports.TaskService
	WorkLogs ports.WorkLogService
	Auth     ports.AuthService
	// DB is the SQL connection when one is open; it only feeds the health checks.
	DB *database.DB
	// Registry receives the HTTP and stream metrics. Nil creates a private registry.
	Registry *prometheus.Registry
}

// Server represents the HTTP server
type Server struct {
	echo     *echo.Echo
	config   *config.Config
	logger   *logger.Logger
	store    ports.DocumentStore
	db       *database.DB
	auth     ports.AuthService
	registry *prometheus.Registry
	streams  prometheus.Gauge
	started  time.Time
}

// New creates a new server instance
func New(deps Deps) (*Server, error) {
	if deps.Config == nil || deps.Logger == nil {
		return nil, fmt.Errorf("server: config and logger are required")
	}
	if deps.Store == nil || deps.Tasks == nil || deps.WorkLogs == nil || deps.Auth == nil {
		return nil, fmt.Errorf("server: store, tasks, work logs and auth are required")
	}

	e := echo.New()
	e.Validator = httpHandlers.NewValidator()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpHandlers.ErrorHandler(deps.Logger)

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	streams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_active_streams",
		Help: "Number of open server-sent event streams",
	})
	if err := registry.Register(streams); err != nil {
		return nil, fmt.Errorf("failed to register stream gauge: %w", err)
	}

	server := &Server{
		echo:     e,
		config:   deps.Config,
		logger:   deps.Logger.WithComponent("server"),
		store:    deps.Store,
		db:       deps.DB,
		auth:     deps.Auth,
		registry: registry,
		streams:  streams,
		started:  time.Now(),
	}

	server.setupMiddleware()

	if deps.Config.Metrics.Enabled {
		if err := server.setupMetrics(); err != nil {
			return nil, err
		}
	}

	loc, err := deps.Config.App.Location()
	if err != nil {
		return nil, err
	}

	server.setupRoutes(
		httpHandlers.NewAuthHandler(deps.Auth, streams, deps.Logger),
		httpHandlers.NewTaskHandler(deps.Tasks, loc, streams, deps.Logger),
		httpHandlers.NewWorkLogHandler(deps.WorkLogs, streams, deps.Logger),
	)

	return server, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			reqLogger := s.logger.WithRequestID(values.RequestID)
			uri := redactedURI(c.Request().URL)
			latency := float64(values.Latency.Nanoseconds()) / 1000000
			if values.Error != nil {
				reqLogger.WithError(values.Error).Errorw("HTTP request failed",
					"method", values.Method,
					"uri", uri,
					"status", values.Status,
					"latency_ms", latency,
					"remote_ip", values.RemoteIP,
				)
				return nil
			}
			reqLogger.LogHTTPRequest(values.Method, uri, values.UserAgent, values.RemoteIP, values.Status, latency)
			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
	}))

	// Rate limiting middleware
	if s.config.Security.RateLimitRequests > 0 {
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: isStreamRoute,
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(s.config.Security.RateLimitRequests),
					Burst:     s.config.Security.RateLimitRequests,
					ExpiresIn: s.config.Security.RateLimitWindow,
				},
			),
			IdentifierExtractor: func(ctx echo.Context) (string, error) {
				return ctx.RealIP(), nil
			},
			ErrorHandler: func(context echo.Context, err error) error {
				return context.JSON(http.StatusForbidden, httpHandlers.ErrorResponse{Message: "rate limit exceeded"})
			},
			DenyHandler: func(context echo.Context, identifier string, err error) error {
				return context.JSON(http.StatusTooManyRequests, httpHandlers.ErrorResponse{Message: "rate limit exceeded"})
			},
		}))
	}

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		Skipper:               swaggerSkipper,
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
	}))

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Timeout middleware; event streams stay open until the client leaves
	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Skipper:      isStreamRoute,
		Timeout:      s.config.Server.RequestTimeout,
		ErrorMessage: "request timed out",
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(authHandler *httpHandlers.AuthHandler, taskHandler *httpHandlers.TaskHandler, workLogHandler *httpHandlers.WorkLogHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// Swagger documentation
	s.echo.GET("/docs/*", echoSwagger.WrapHandler)
	s.echo.GET("/swagger", func(c echo.Context) error {
		return c.Redirect(http.StatusMovedPermanently, "/docs/index.html")
	})

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	requireAuth := s.authMiddleware(s.auth)

	// Auth routes (public; they authenticate the token themselves)
	authGroup := v1.Group("/auth")
	authGroup.POST("/sign-up", authHandler.SignUp)
	authGroup.POST("/sign-in", authHandler.SignIn)
	authGroup.GET("/google", authHandler.GoogleSignIn)
	authGroup.GET("/google/callback", authHandler.GoogleCallback)
	authGroup.POST("/password-reset", authHandler.RequestPasswordReset)
	authGroup.POST("/password-reset/confirm", authHandler.ConfirmPasswordReset)
	authGroup.POST("/sign-out", authHandler.SignOut)
	authGroup.GET("/state", authHandler.StreamAuthState)
	authGroup.GET("/me", authHandler.Me, requireAuth)

	// Task routes (authenticated)
	taskGroup := v1.Group("/tasks", requireAuth)
	taskGroup.POST("", taskHandler.CreateTask)
	taskGroup.GET("", taskHandler.ListTasks)
	taskGroup.GET("/stream", taskHandler.StreamTasks)
	taskGroup.GET("/dates", taskHandler.ListDates)
	taskGroup.GET("/dates/stream", taskHandler.StreamDates)
	taskGroup.PATCH("/:id", taskHandler.UpdateTask)
	taskGroup.DELETE("/:id", taskHandler.DeleteTask)

	// Work log routes (authenticated)
	workLogGroup := v1.Group("/work-logs", requireAuth)
	workLogGroup.POST("", workLogHandler.CreateWorkLog)
	workLogGroup.GET("", workLogHandler.ListWorkLogs)
	workLogGroup.GET("/stream", workLogHandler.StreamWorkLogs)
	workLogGroup.DELETE("/:id", workLogHandler.DeleteWorkLog)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() error {
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

	for _, c := range []prometheus.Collector{
		requestsTotal,
		requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := s.registry.Register(c); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	// Custom metrics middleware
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = httpHandlers.StatusFor(err)
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(time.Since(start).Seconds())

			return err
		}
	})

	// Metrics endpoint
	metricsHandler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
	return nil
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

	if err := s.store.Ping(c.Request().Context()); err != nil {
		status = "error"
		checks["docstore"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["docstore"] = map[string]interface{}{
			"status": "ok",
			"driver": s.config.DocStore.Driver,
		}
	}
	if s.db != nil {
		info := s.db.GetConnectionInfo()
		info["status"] = "ok"
		if err := s.db.HealthCheck(c.Request().Context()); err != nil {
			status = "error"
			info["status"] = "error"
			info["error"] = err.Error()
		}
		checks["database"] = info
	}
	checks["realtime"] = map[string]interface{}{"driver": s.config.Realtime.Driver}
	checks["identity"] = map[string]interface{}{"provider": s.config.Auth.Provider}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"uptime": time.Since(s.started).Round(time.Second).String(),
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
	if err := s.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "docstore_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.IdleTimeout = s.config.Server.IdleTimeout
	// streams write for as long as the client listens, so WriteTimeout stays unset
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}
