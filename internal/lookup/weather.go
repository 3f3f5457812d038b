package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/httpclient"
	"github.com/krishisahay/krishisahay-go/internal/logger"
	"github.com/krishisahay/krishisahay-go/internal/observability/metrics"
)

// forecastStatusOK is the "cod" value of a successful forecast envelope
const forecastStatusOK = "200"

// WeatherConfig configures the forecast adapter.
type WeatherConfig struct {
	APIKey   string
	Endpoint string
	Units    string
	Rules    CrisisRules
}

// Weather queries the 5 day / 3 hour forecast API and evaluates crisis rules.
type Weather struct {
	cfg      WeatherConfig
	client   *httpclient.Client
	recorder Recorder
}

// Forecast is the upstream forecast envelope with the crisis assessment.
type Forecast struct {
	// Raw holds the upstream top-level fields unmodified
	Raw          map[string]json.RawMessage
	CrisisMode   bool
	CrisisEvents []CrisisEvent
}

// MarshalJSON renders the upstream envelope with crisis_mode and crisis_events added.
func (f *Forecast) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Raw)+2)
	for k, v := range f.Raw {
		out[k] = v
	}
	out["crisis_mode"] = f.CrisisMode
	events := f.CrisisEvents
	if events == nil {
		events = []CrisisEvent{}
	}
	out["crisis_events"] = events
	return json.Marshal(out)
}

// NewWeather creates a forecast adapter. Units default to metric, which the
// crisis thresholds assume.
func NewWeather(cfg WeatherConfig, client *httpclient.Client, recorder Recorder) *Weather {
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	return &Weather{cfg: cfg, client: client, recorder: recorder}
}

// Forecast fetches the forecast for lat/lon and flags crisis conditions.
func (w *Weather) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	if w.cfg.APIKey == "" {
		return nil, notConfigured(metrics.ServiceOpenWeather)
	}

	params := url.Values{}
	params.Set("lat", formatCoord(lat))
	params.Set("lon", formatCoord(lon))
	params.Set("units", w.cfg.Units)
	params.Set("appid", w.cfg.APIKey)

	body, err := w.client.GetBytes(ctx, w.cfg.Endpoint+"?"+params.Encode())
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) {
			// non-2xx bodies still carry cod/message
			if status, message, probeErr := probeEnvelope([]byte(statusErr.Body), "cod", "message"); probeErr == nil && status != "" {
				return nil, envelopeError(metrics.ServiceOpenWeather, "forecast", status, message)
			}
		}
		return nil, upstreamError(metrics.ServiceOpenWeather, "forecast", err)
	}

	status, message, err := probeEnvelope(body, "cod", "message")
	if err != nil {
		return nil, upstreamError(metrics.ServiceOpenWeather, "forecast", err)
	}
	if status != forecastStatusOK {
		return nil, envelopeError(metrics.ServiceOpenWeather, "forecast", status, message)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, upstreamError(metrics.ServiceOpenWeather, "forecast", err)
	}
	var envelope struct {
		List []ForecastEntry `json:"list"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, upstreamError(metrics.ServiceOpenWeather, "forecast",
			fmt.Errorf("failed to decode forecast entries: %w", err))
	}

	events := w.cfg.Rules.Evaluate(envelope.List)
	if w.recorder != nil {
		for _, e := range events {
			w.recorder.RecordCrisisEvent(e.Condition)
		}
	}

	if len(events) > 0 {
		GetLogger().WithContext(ctx).Info("crisis conditions in forecast",
			logger.Float64("lat", lat),
			logger.Float64("lon", lon),
			logger.Int("events", len(events)),
			logger.String("first_condition", events[0].Condition),
			logger.String("first_time", events[0].Time))
	}

	return &Forecast{
		Raw:          raw,
		CrisisMode:   len(events) > 0,
		CrisisEvents: events,
	}, nil
}
