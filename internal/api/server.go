// Package api exposes the KrishiSahay services over HTTP with echo.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/krishisahay/krishisahay-go/internal/conf"
	"github.com/krishisahay/krishisahay-go/internal/datastore"
	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
	"github.com/krishisahay/krishisahay-go/internal/session"
	"github.com/krishisahay/krishisahay-go/internal/uploads"
)

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("api")
	})
	return serviceLogger
}

// Config holds the HTTP listener settings.
type Config struct {
	Listen          string
	BodyLimit       string
	RateLimit       float64 // requests per second per client on /chat and /predict, 0 disables
	RateBurst       int
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	Version         string
}

// ConfigFromSettings extracts the server configuration.
func ConfigFromSettings(settings *conf.Settings, version string) Config {
	return Config{
		Listen:          settings.Server.Listen,
		BodyLimit:       settings.Server.BodyLimit,
		RateLimit:       settings.Server.RateLimit,
		RateBurst:       settings.Server.RateBurst,
		AllowedOrigins:  settings.Server.AllowedOrigins,
		ShutdownTimeout: settings.Server.ShutdownTimeout,
		Version:         version,
	}
}

// Dependencies are the services the handlers call. Metrics and HTTPMetrics are optional.
type Dependencies struct {
	Classifier  Predictor
	Images      ImageDecoder
	Advisor     Advisor
	Speech      SpeechBridge
	Stores      StoreFinder
	Weather     Forecaster
	Schemes     SchemeSource
	Store       datastore.Interface
	Sessions    *session.Manager
	Uploads     *uploads.Store
	Metrics     http.Handler
	HTTPMetrics HTTPRecorder
}

// Server owns the echo instance and routes requests to the services.
type Server struct {
	echo      *echo.Echo
	cfg       Config
	deps      Dependencies
	startTime time.Time
}

// New validates deps and registers middleware and routes.
func New(cfg Config, deps Dependencies) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "20M"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		echo:      echo.New(),
		cfg:       cfg,
		deps:      deps,
		startTime: time.Now(),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Validator = newRequestValidator()
	s.echo.HTTPErrorHandler = s.httpErrorHandler

	s.setupMiddleware()
	s.setupRoutes()

	GetLogger().Info("HTTP server initialized",
		logger.String("address", cfg.Listen),
		logger.String("body_limit", cfg.BodyLimit),
		logger.Float64("rate_limit", cfg.RateLimit))
	return s, nil
}

func (d *Dependencies) validate() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"classifier", d.Classifier != nil},
		{"image decoder", d.Images != nil},
		{"advisor", d.Advisor != nil},
		{"speech bridge", d.Speech != nil},
		{"store finder", d.Stores != nil},
		{"forecaster", d.Weather != nil},
		{"scheme source", d.Schemes != nil},
		{"datastore", d.Store != nil},
		{"session manager", d.Sessions != nil},
		{"uploads", d.Uploads != nil},
	}
	for _, m := range checks {
		if !m.ok {
			return errors.Newf("api dependency %s is not set", m.name).
				Component("api").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	return nil
}

// setupMiddleware configures the echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(requestID())
	s.echo.Use(s.requestLogger())
	if s.deps.HTTPMetrics != nil {
		s.echo.Use(s.metricsMiddleware())
	}
	s.echo.Use(newCORS(s.cfg.AllowedOrigins))
	s.echo.Use(echomw.BodyLimit(s.cfg.BodyLimit))
	s.echo.Use(newSecureHeaders())
}

// setupRoutes registers every endpoint.
func (s *Server) setupRoutes() {
	e := s.echo
	limited := s.rateLimiter()

	e.GET("/health", s.healthCheck)
	if s.deps.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.deps.Metrics))
	}

	e.POST("/predict", s.predict, limited...)
	e.GET("/disease_info", s.diseaseInfo)
	e.GET("/healthy_advice", s.healthyAdvice)
	e.GET("/recommended_store_type", s.recommendedStoreType)
	e.POST("/chat", s.chat, limited...)

	e.GET("/govt_schemes", s.govtSchemes)
	e.GET("/store_finder", s.storeFinder)
	e.GET("/place_details", s.placeDetails)
	e.GET("/weather", s.weather)

	e.POST("/register", s.register)
	e.POST("/login", s.login)
	e.POST("/logout", s.logout)

	e.GET("/rentals", s.listRentals)
	e.POST("/rentals", s.createRental, s.requireLogin)
	e.GET(uploads.PublicPrefix+":name", s.servePhoto)
}

// healthCheck reports liveness and whether the disease model is loaded.
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"model_loaded":   s.deps.Classifier.Available(),
		"version":        s.cfg.Version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		GetLogger().Info("starting HTTP server", logger.String("address", s.cfg.Listen))
		if err := s.echo.Start(s.cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	GetLogger().Info("shutdown signal received, stopping HTTP server")
	if err := s.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		GetLogger().Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	GetLogger().Info("server shutdown complete")
	return nil
}
