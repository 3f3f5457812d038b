// Package advisory builds agricultural prompts and forwards them to a
// generative-language model.
//
// Prompts are fixed templates. Requests are not retried or cached, and vendor
// errors are returned as upstream errors for the router to sanitize.
package advisory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/krishisahay/krishisahay-go/internal/disease"
	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/logger"
	"github.com/krishisahay/krishisahay-go/internal/observability/metrics"
)

// SystemPreamble scopes chat answers to agriculture.
const SystemPreamble = "You are KrishiSahay, an AI assistant specialized in crop management, " +
	"crop diseases, healthy plant practices, and crop-related advice. " +
	"You will only answer questions related to crops and agriculture."

// HealthyAdvicePrompt is sent for the healthy crop intent.
const HealthyAdvicePrompt = "My crop is healthy. How can I ensure it remains healthy and prevent diseases?"

// DefaultStoreType is recommended for healthy crops and whenever the model gives no usable answer.
const DefaultStoreType = "agriculture supply store"

// maxStoreTypeLen bounds a store type answer; longer answers are treated as unusable
const maxStoreTypeLen = 60

// ErrNotConfigured is returned when no generative API key is configured.
var ErrNotConfigured = errors.NewStd("generative API is not configured")

var (
	serviceLogger logger.Logger
	loggerOnce    sync.Once
)

// GetLogger returns the advisory package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		serviceLogger = logger.Global().Module("advisory")
	})
	return serviceLogger
}

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// UpstreamRecorder receives upstream call metrics.
type UpstreamRecorder interface {
	RecordRequest(service, status string, d time.Duration)
}

// DiseaseInfoPrompt returns the prompt asking for details about diseaseName.
func DiseaseInfoPrompt(diseaseName string) string {
	return fmt.Sprintf("Provide comprehensive details about %s. "+
		"Include introduction, causes, prevention methods, danger level, "+
		"recommended pesticides, and any images if available.", diseaseName)
}

// ChatPrompt prefixes a user prompt with the system preamble.
func ChatPrompt(prompt string) string {
	return fmt.Sprintf("%s\nUser: %s", SystemPreamble, prompt)
}

// StoreTypePrompt asks for a single store type that sells remedies for diseaseName.
func StoreTypePrompt(diseaseName string) string {
	return fmt.Sprintf("A farmer's crop has %s. Name the single most suitable type of store "+
		"where the farmer can buy treatments for it, such as \"pesticide store\" or "+
		"\"fertilizer store\". Reply with the store type only.", diseaseName)
}

// Service issues templated requests to a Generator.
type Service struct {
	gen      Generator
	timeout  time.Duration
	recorder UpstreamRecorder
}

// NewService creates a Service. gen may be nil, in which case every call
// fails with ErrNotConfigured. timeout <= 0 leaves the caller's deadline alone.
func NewService(gen Generator, timeout time.Duration, recorder UpstreamRecorder) *Service {
	return &Service{gen: gen, timeout: timeout, recorder: recorder}
}

// DiseaseInfo returns a description of diseaseName.
func (s *Service) DiseaseInfo(ctx context.Context, diseaseName string) (string, error) {
	if strings.TrimSpace(diseaseName) == "" {
		return "", errors.ValidationError("disease name is required")
	}
	return s.generate(ctx, "disease_info", DiseaseInfoPrompt(diseaseName))
}

// HealthyAdvice returns advice for keeping a healthy crop healthy.
func (s *Service) HealthyAdvice(ctx context.Context) (string, error) {
	return s.generate(ctx, "healthy_advice", HealthyAdvicePrompt)
}

// Chat answers a free-form agricultural question.
func (s *Service) Chat(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.ValidationError("prompt is required")
	}
	return s.generate(ctx, "chat", ChatPrompt(prompt))
}

// RecommendedStoreType names the kind of store to search for when buying
// remedies for diseaseName. Healthy labels need no remedy and map to
// DefaultStoreType without calling the model.
func (s *Service) RecommendedStoreType(ctx context.Context, diseaseName string) (string, error) {
	if strings.TrimSpace(diseaseName) == "" {
		return "", errors.ValidationError("disease name is required")
	}
	if disease.IsHealthy(diseaseName) {
		return DefaultStoreType, nil
	}

	answer, err := s.generate(ctx, "store_type", StoreTypePrompt(disease.DisplayName(diseaseName)))
	if err != nil {
		return "", err
	}
	return parseStoreType(answer), nil
}

// parseStoreType keeps the first non-empty line of answer without quotes,
// list markers or trailing punctuation.
func parseStoreType(answer string) string {
	for line := range strings.Lines(answer) {
		line = strings.Trim(strings.TrimSpace(line), "\"'`*-•.:;!# ")
		if line == "" {
			continue
		}
		if len(line) > maxStoreTypeLen {
			break
		}
		return strings.ToLower(line)
	}
	return DefaultStoreType
}

func (s *Service) generate(ctx context.Context, operation, prompt string) (string, error) {
	if s.gen == nil {
		return "", errors.New(ErrNotConfigured).
			Component("advisory").
			Category(errors.CategoryUpstream).
			Context("operation", operation).
			Build()
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.gen.Generate(ctx, prompt)
	elapsed := time.Since(start)

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	if s.recorder != nil {
		s.recorder.RecordRequest(metrics.ServiceGemini, status, elapsed)
	}

	if err != nil {
		category := errors.CategoryUpstream
		if errors.Is(err, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		GetLogger().WithContext(ctx).Warn("generative request failed",
			logger.String("operation", operation),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
		return "", errors.New(err).
			Component("advisory").
			Category(category).
			Context("operation", operation).
			Context("service", metrics.ServiceGemini).
			Timing(operation, elapsed).
			Build()
	}

	GetLogger().WithContext(ctx).Debug("generative request completed",
		logger.String("operation", operation),
		logger.Int("response_len", len(text)),
		logger.Duration("elapsed", elapsed))
	return text, nil
}
