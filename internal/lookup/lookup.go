// Package lookup adapts the external place search, place details and weather
// forecast APIs. Every adapter validates its parameters, queries a fixed
// endpoint through the shared HTTP client and checks the JSON envelope status.
package lookup

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/antonholmquist/jason"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
)

// ErrNotConfigured is returned when the adapter has no API key.
var ErrNotConfigured = errors.NewStd("lookup API key is not configured")

// ErrUpstreamStatus is wrapped by every error caused by a non-OK envelope status.
var ErrUpstreamStatus = errors.NewStd("upstream returned an error status")

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the lookup package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("lookup")
	})
	return serviceLogger
}

// Recorder receives lookup metrics.
type Recorder interface {
	RecordCrisisEvent(condition string)
	RecordCacheLookup(hit bool)
}

// ParseCoordinates validates latitude and longitude query values.
func ParseCoordinates(latStr, lonStr string) (lat, lon float64, err error) {
	latStr, lonStr = strings.TrimSpace(latStr), strings.TrimSpace(lonStr)
	if latStr == "" || lonStr == "" {
		return 0, 0, errors.ValidationError("lat and lon are required")
	}

	lat, latErr := strconv.ParseFloat(latStr, 64)
	lon, lonErr := strconv.ParseFloat(lonStr, 64)
	if latErr != nil || lonErr != nil || math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, 0, errors.ValidationError("lat and lon must be numbers")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, errors.ValidationError("lat must be within [-90, 90] and lon within [-180, 180]")
	}
	return lat, lon, nil
}

// formatCoord renders a coordinate without exponent or trailing zeros.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// sanitizeTransportError strips the request URL, which carries the API key,
// from transport errors.
func sanitizeTransportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request failed: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// upstreamError builds the error returned for a failed call to service.
func upstreamError(service, operation string, err error) error {
	return errors.New(sanitizeTransportError(err)).
		Component("lookup").
		Category(errors.CategoryUpstream).
		Context("service", service).
		Context("operation", operation).
		Build()
}

// envelopeError builds the error for a non-OK envelope status, attaching the
// upstream message when present.
func envelopeError(service, operation, status, message string) error {
	err := fmt.Errorf("%w: %s", ErrUpstreamStatus, status)
	if message != "" {
		err = fmt.Errorf("%w: %s: %s", ErrUpstreamStatus, status, message)
	}
	return errors.New(err).
		Component("lookup").
		Category(errors.CategoryUpstream).
		Context("service", service).
		Context("operation", operation).
		Context("status", status).
		Build()
}

// probeEnvelope reads the status and error message fields of a raw JSON
// envelope. Numeric status values are returned in decimal form.
func probeEnvelope(body []byte, statusKey, messageKey string) (status, message string, err error) {
	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return "", "", fmt.Errorf("invalid JSON envelope: %w", err)
	}

	if s, err := obj.GetString(statusKey); err == nil {
		status = s
	} else if n, err := obj.GetInt64(statusKey); err == nil {
		status = strconv.FormatInt(n, 10)
	}
	if m, err := obj.GetString(messageKey); err == nil {
		message = m
	}
	return status, message, nil
}

// notConfigured builds the error returned when an adapter has no API key.
func notConfigured(service string) error {
	return errors.New(ErrNotConfigured).
		Component("lookup").
		Category(errors.CategoryUpstream).
		Context("service", service).
		Build()
}
