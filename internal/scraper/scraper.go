// Package scraper collects government agriculture schemes from a
// JavaScript-rendered listing site.
//
// A headless browser renders the listing and, for pages after the first,
// clicks the pagination control whose visible text is the page number. The
// rendered HTML is then parsed in Go with configurable selectors. A missing
// pagination control or a page that never loads yields an empty list; only
// browser startup failures are errors.
package scraper

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
	"github.com/krishisahay/krishisahay-go/internal/observability/metrics"
)

// ErrBrowserUnavailable wraps browser and driver startup failures.
var ErrBrowserUnavailable = errors.NewStd("headless browser unavailable")

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the scraper package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("scraper")
	})
	return serviceLogger
}

// Scheme is one government scheme card.
type Scheme struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Ministry    string `json:"ministry"`
	Description string `json:"description"`
}

// Renderer produces the HTML of one listing page. found is false when the
// page could not be reached (navigation failure or no pagination control);
// err is reserved for browser startup failures.
type Renderer interface {
	Render(ctx context.Context, page int) (content string, found bool, err error)
	Close() error
}

// UpstreamRecorder receives upstream call metrics.
type UpstreamRecorder interface {
	RecordRequest(service, status string, d time.Duration)
}

// Service renders and parses scheme listing pages.
type Service struct {
	renderer Renderer
	parser   *Parser
	recorder UpstreamRecorder
}

// NewService creates a scheme scraper. recorder may be nil.
func NewService(renderer Renderer, parser *Parser, recorder UpstreamRecorder) *Service {
	return &Service{renderer: renderer, parser: parser, recorder: recorder}
}

// Schemes returns the schemes listed on page (1-based).
func (s *Service) Schemes(ctx context.Context, page int) ([]Scheme, error) {
	if page < 1 {
		return nil, errors.ValidationError("page must be a positive integer")
	}

	start := time.Now()
	content, found, err := s.renderer.Render(ctx, page)
	elapsed := time.Since(start)

	status := metrics.StatusSuccess
	if err != nil || !found {
		status = metrics.StatusError
	}
	if s.recorder != nil {
		s.recorder.RecordRequest(metrics.ServiceScraper, status, elapsed)
	}

	if err != nil {
		return nil, errors.New(err).
			Component("scraper").
			Category(errors.CategoryScraper).
			Context("page", page).
			Timing("render", elapsed).
			Build()
	}
	if !found {
		GetLogger().WithContext(ctx).Info("scheme page not reachable, returning empty list",
			logger.Int("page", page),
			logger.Duration("elapsed", elapsed))
		return []Scheme{}, nil
	}

	schemes, err := s.parser.Parse(strings.NewReader(content))
	if err != nil {
		GetLogger().WithContext(ctx).Warn("failed to parse scheme page",
			logger.Int("page", page),
			logger.Error(err))
		return []Scheme{}, nil
	}

	GetLogger().WithContext(ctx).Debug("schemes scraped",
		logger.Int("page", page),
		logger.Int("schemes", len(schemes)),
		logger.Duration("elapsed", elapsed))
	return schemes, nil
}

// Close shuts down the renderer.
func (s *Service) Close() error {
	return s.renderer.Close()
}
