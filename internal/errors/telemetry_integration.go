package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives built errors
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled     bool
	minPriority string
}

// NewSentryReporter creates a reporter that forwards errors at or above high priority.
// sentry.Init must have been called by the caller.
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled, minPriority: PriorityHigh}
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr != nil && sr.enabled
}

// ReportError reports an enhanced error to Sentry with secrets scrubbed
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.IsEnabled() || ee.IsReported() {
		return
	}
	if priorityRank(ee.EffectivePriority()) < priorityRank(sr.minPriority) {
		return
	}

	message := ScrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		scope.SetTag("priority", ee.EffectivePriority())
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = ScrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetLevel(sentryLevel(ee.Category))
		scope.SetFingerprint([]string{ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = sentryLevel(ee.Category)
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%s %s", ee.Component, ee.Category),
			Value: message,
		}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

func priorityRank(p string) int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

func sentryLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryUpstream, CategoryTimeout, CategoryScraper:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var globalTelemetryReporter atomic.Pointer[TelemetryReporter]

// SetTelemetryReporter installs the global telemetry reporter; nil disables reporting
func SetTelemetryReporter(reporter TelemetryReporter) {
	if reporter == nil {
		globalTelemetryReporter.Store(nil)
		return
	}
	globalTelemetryReporter.Store(&reporter)
}

func reportToTelemetry(ee *EnhancedError) {
	ptr := globalTelemetryReporter.Load()
	if ptr == nil {
		return
	}
	if reporter := *ptr; reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

var (
	urlQueryRegex = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	secretRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(api[_-]?key|appid|token|key|password)[=:]\S+`),
		regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
	}
)

// ScrubMessage removes URL query strings and API keys from message
func ScrubMessage(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	for _, re := range secretRegexes {
		scrubbed = re.ReplaceAllString(scrubbed, "[REDACTED]")
	}
	return strings.TrimSpace(scrubbed)
}
