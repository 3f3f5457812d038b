package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

const (
	// usernameKey is the echo context key holding the logged-in username
	usernameKey = "username"

	rateLimiterExpiry = 3 * time.Minute
)

// requestID assigns every request an X-Request-Id and carries it as the log
// trace id.
func requestID() echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
		},
	})
}

// responseStatus returns the status the client receives for a request that
// returned err. Errors not yet written are rendered by httpErrorHandler.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	code, _ := classify(err)
	return code
}

// requestLogger logs one structured line per request.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", responseStatus(c, v.Error)),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			GetLogger().WithContext(c.Request().Context()).Info("request", fields...)
			return nil
		},
	})
}

// metricsMiddleware records each request against its route pattern.
func (s *Server) metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			code := responseStatus(c, err)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			s.deps.HTTPMetrics.RecordRequest(route, c.Request().Method, code, time.Since(start))
			return err
		}
	}
}

func newCORS(origins []string) echo.MiddlewareFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			"X-Requested-With",
		},
		AllowCredentials: true,
	})
}

func newSecureHeaders() echo.MiddlewareFunc {
	return echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
	})
}

// rateLimiter returns the per-client limiter for expensive routes, or
// nothing when rate limiting is disabled.
func (s *Server) rateLimiter() []echo.MiddlewareFunc {
	if s.cfg.RateLimit <= 0 {
		return nil
	}
	burst := s.cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return []echo.MiddlewareFunc{echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Skipper: echomw.DefaultSkipper,
		Store: echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.cfg.RateLimit),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, NewErrorResponse("could not identify client", "rate limiter", http.StatusForbidden))
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			GetLogger().Info("rate limit exceeded",
				logger.String("ip", identifier),
				logger.String("path", c.Request().URL.Path))
			return c.JSON(http.StatusTooManyRequests,
				NewErrorResponse("too many requests, please slow down", "rate limiter", http.StatusTooManyRequests))
		},
	})}
}

// requireLogin rejects requests without a valid session and stores the
// username in the echo context.
func (s *Server) requireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		username, err := s.deps.Sessions.Current(c.Response(), c.Request())
		if err != nil {
			return s.HandleError(c, err, "login required")
		}
		c.Set(usernameKey, username)
		return next(c)
	}
}
