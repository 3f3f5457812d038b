package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/krishisahay/krishisahay-go/internal/classifier"
	"github.com/krishisahay/krishisahay-go/internal/imageprep"
	"github.com/krishisahay/krishisahay-go/internal/lookup"
	"github.com/krishisahay/krishisahay-go/internal/scraper"
)

// Predictor classifies a preprocessed leaf image.
type Predictor interface {
	Available() bool
	Predict(tensor *imageprep.Tensor) (classifier.Prediction, error)
}

// ImageDecoder turns uploaded image bytes into model input.
type ImageDecoder interface {
	FromBytes(data []byte) (*imageprep.Tensor, error)
}

// Advisor answers agricultural questions through the generative model.
type Advisor interface {
	DiseaseInfo(ctx context.Context, diseaseName string) (string, error)
	HealthyAdvice(ctx context.Context) (string, error)
	Chat(ctx context.Context, prompt string) (string, error)
	RecommendedStoreType(ctx context.Context, diseaseName string) (string, error)
}

// SpeechBridge transcribes uploaded audio and synthesizes spoken answers.
type SpeechBridge interface {
	NormalizeLanguage(code string) (string, error)
	Transcribe(ctx context.Context, audio []byte, languageCode string) (string, error)
	Synthesize(ctx context.Context, text, languageCode string) (string, error)
}

// StoreFinder searches for nearby stores and their details.
type StoreFinder interface {
	FindStores(ctx context.Context, lat, lon float64, storeType string) ([]lookup.Store, error)
	PlaceDetails(ctx context.Context, placeID string) (json.RawMessage, error)
}

// Forecaster returns the forecast with crisis flags for a coordinate.
type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) (*lookup.Forecast, error)
}

// SchemeSource lists government schemes one page at a time.
type SchemeSource interface {
	Schemes(ctx context.Context, page int) ([]scraper.Scheme, error)
}

// HTTPRecorder receives per-request metrics.
type HTTPRecorder interface {
	RecordRequest(route, method string, code int, d time.Duration)
}
