package api

import (
	"crypto/rand"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/krishisahay/krishisahay-go/internal/classifier"
	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
	"github.com/krishisahay/krishisahay-go/internal/speech"
)

// Messages shown to clients in place of internal or vendor error text.
const (
	msgUpstream = "upstream service error"
	msgInternal = "internal server error"
	msgModel    = "model configuration error"
)

// ErrorResponse is the JSON body of every failed request. It never carries a
// "message" key; clients treat that key as the success marker.
type ErrorResponse struct {
	Error         string `json:"error"`
	Detail        string `json:"detail"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // matches the server log entry for this error
}

// NewErrorResponse creates an error body with a fresh correlation id.
func NewErrorResponse(safeError, detail string, code int) *ErrorResponse {
	return &ErrorResponse{
		Error:         safeError,
		Detail:        detail,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID returns 8 random alphanumeric characters.
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// classify maps err to an HTTP status and the text that is safe to show the client.
func classify(err error) (status int, safe string) {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code < http.StatusInternalServerError {
		return he.Code, http.StatusText(he.Code)
	}

	switch errors.CategoryOf(err) {
	case errors.CategoryValidation, errors.CategoryConflict, errors.CategoryLimit, errors.CategoryImageDecode:
		return http.StatusBadRequest, err.Error()
	case errors.CategoryAuthentication:
		return http.StatusUnauthorized, err.Error()
	case errors.CategoryNotFound:
		return http.StatusNotFound, err.Error()
	case errors.CategoryTranscription:
		if errors.Is(err, speech.ErrAudioUnintelligible) {
			return http.StatusBadRequest, speech.ErrAudioUnintelligible.Error()
		}
		return http.StatusInternalServerError, msgUpstream
	case errors.CategoryUpstream, errors.CategoryNetwork, errors.CategoryTimeout, errors.CategoryScraper:
		return http.StatusInternalServerError, msgUpstream
	case errors.CategoryModelInit, errors.CategoryModelLoad, errors.CategoryModelInference, errors.CategoryConfiguration:
		if errors.Is(err, classifier.ErrModelUnavailable) {
			return http.StatusInternalServerError, classifier.ErrModelUnavailable.Error()
		}
		return http.StatusInternalServerError, msgModel
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// HandleError maps err to a status, logs it with a correlation id and writes
// the JSON error body. message describes what the handler was doing.
func (s *Server) HandleError(c echo.Context, err error, message string) error {
	code, safe := classify(err)
	resp := NewErrorResponse(safe, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Error(err),
		logger.String("category", string(errors.CategoryOf(err))),
		logger.Int("code", code),
		logger.String("path", c.Request().URL.Path),
		logger.String("method", c.Request().Method),
		logger.String("ip", c.RealIP()),
	}
	log := GetLogger().WithContext(c.Request().Context())
	if code >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Info("request rejected", fields...)
	}

	return c.JSON(code, resp)
}

// badRequest writes a 400 with a fixed client message.
func (s *Server) badRequest(c echo.Context, msg string) error {
	return s.HandleError(c, errors.ValidationError(msg), msg)
}

// httpErrorHandler renders errors that reach echo (unknown routes, body
// limit, panics recovered by middleware) in the ErrorResponse shape.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		if he.Code >= http.StatusInternalServerError {
			msg = msgInternal
		}
		resp := NewErrorResponse(msg, http.StatusText(he.Code), he.Code)
		if err := c.JSON(he.Code, resp); err != nil {
			GetLogger().Debug("failed to write error response", logger.Error(err))
		}
		return
	}

	if err := s.HandleError(c, err, "unhandled error"); err != nil {
		GetLogger().Debug("failed to write error response", logger.Error(err))
	}
}
