package lookup

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krishisahay/krishisahay-go/internal/errors"
)

func entry(dtTxt string, temp, wind, rain float64, weather ...string) ForecastEntry {
	var e ForecastEntry
	e.DtTxt = dtTxt
	e.Main.Temp = &temp
	e.Wind.Speed = wind
	e.Rain.ThreeHours = rain
	for _, w := range weather {
		e.Weather = append(e.Weather, struct {
			Main string `json:"main"`
		}{Main: w})
	}
	return e
}

func TestCrisisRules_Evaluate(t *testing.T) {
	rules := DefaultCrisisRules()

	tests := []struct {
		name  string
		entry ForecastEntry
		want  []string
	}{
		{"nominal", entry("2026-06-01 12:00:00", 25, 3, 0, "Clear"), nil},
		{"heavy rain", entry("2026-06-01 15:00:00", 25, 3, 25, "Rain"), []string{ConditionHeavyRain}},
		{"rain at threshold", entry("t", 25, 3, 20, "Rain"), nil},
		{"storm", entry("t", 25, 3, 0, "Thunderstorm"), []string{ConditionStorm}},
		{"heat", entry("t", 41, 3, 0, "Clear"), []string{ConditionExtremeHeat}},
		{"cold", entry("t", 4, 3, 0, "Clear"), []string{ConditionExtremeCold}},
		{"wind", entry("t", 25, 21, 0, "Clouds"), []string{ConditionHighWinds}},
		{"dust with wind", entry("t", 25, 11, 0, "Dust"), []string{ConditionDustStorm}},
		{"dust without wind", entry("t", 25, 9, 0, "Sand"), nil},
		{
			"several rules in order",
			entry("t", 42, 25, 30, "Thunderstorm", "Dust"),
			[]string{ConditionStorm, ConditionHeavyRain, ConditionExtremeHeat, ConditionHighWinds, ConditionDustStorm},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := rules.Evaluate([]ForecastEntry{tt.entry})
			var got []string
			for _, e := range events {
				got = append(got, e.Condition)
				assert.Equal(t, tt.entry.DtTxt, e.Time)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCrisisRules_MissingTemperatureIsNotCold(t *testing.T) {
	var e ForecastEntry
	e.Dt = 1780315200
	events := DefaultCrisisRules().Evaluate([]ForecastEntry{e})
	assert.Empty(t, events)
}

func TestCrisisRules_TimeFallsBackToUnix(t *testing.T) {
	e := entry("", 45, 0, 0)
	e.Dt = 0
	events := DefaultCrisisRules().Evaluate([]ForecastEntry{e})
	require.Len(t, events, 1)
	assert.Equal(t, "1970-01-01 00:00:00", events[0].Time)
}

func newTestWeather(t *testing.T, rec Recorder) *Weather {
	t.Helper()
	return NewWeather(WeatherConfig{
		APIKey:   "weather-key",
		Endpoint: testForecastURL,
		Rules:    DefaultCrisisRules(),
	}, newMockedClient(t), rec)
}

const forecastBody = `{
	"cod": "200",
	"message": 0,
	"cnt": 2,
	"list": [
		{"dt": 1780315200, "dt_txt": "2026-06-01 12:00:00",
		 "main": {"temp": 28.4}, "weather": [{"main": "Clear"}], "wind": {"speed": 3.1}},
		{"dt": 1780326000, "dt_txt": "2026-06-01 15:00:00",
		 "main": {"temp": 24.0}, "weather": [{"main": "Rain"}], "wind": {"speed": 5.0}, "rain": {"3h": 25}}
	],
	"city": {"name": "Pune"}
}`

func TestForecast_FlagsCrisisAndRelaysEnvelope(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordCrisisEvent", ConditionHeavyRain).Once()
	w := newTestWeather(t, rec)

	httpmock.RegisterResponder("GET", testForecastURL, func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		assert.Equal(t, "metric", q.Get("units"))
		assert.Equal(t, "18.52", q.Get("lat"))
		assert.Equal(t, "weather-key", q.Get("appid"))
		return httpmock.NewStringResponse(200, forecastBody), nil
	})

	f, err := w.Forecast(t.Context(), 18.52, 73.85)
	require.NoError(t, err)
	assert.True(t, f.CrisisMode)
	assert.Equal(t, []CrisisEvent{{Time: "2026-06-01 15:00:00", Condition: ConditionHeavyRain}}, f.CrisisEvents)

	out, err := json.Marshal(f)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(out, &body))
	assert.Equal(t, "200", body["cod"])
	assert.Equal(t, true, body["crisis_mode"])
	assert.Len(t, body["list"], 2)
	assert.Equal(t, "Pune", body["city"].(map[string]any)["name"])
	assert.Equal(t, []any{map[string]any{"time": "2026-06-01 15:00:00", "condition": "Heavy Rain"}}, body["crisis_events"])
	rec.AssertExpectations(t)
}

func TestForecast_NominalHasEmptyEvents(t *testing.T) {
	w := newTestWeather(t, nil)
	httpmock.RegisterResponder("GET", testForecastURL, httpmock.NewStringResponder(200,
		`{"cod":"200","list":[{"dt_txt":"2026-06-01 12:00:00","main":{"temp":22},"weather":[{"main":"Clouds"}],"wind":{"speed":2}}]}`))

	f, err := w.Forecast(t.Context(), 1, 1)
	require.NoError(t, err)
	assert.False(t, f.CrisisMode)

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"crisis_events":[]`)
}

func TestForecast_ErrorEnvelope(t *testing.T) {
	w := newTestWeather(t, nil)
	httpmock.RegisterResponder("GET", testForecastURL,
		httpmock.NewStringResponder(401, `{"cod":401,"message":"Invalid API key. Please see https://openweathermap.org/faq#error401 for more info."}`))

	_, err := w.Forecast(t.Context(), 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamStatus)
	assert.True(t, errors.IsCategory(err, errors.CategoryUpstream))
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestForecast_NonOKCodeInBody(t *testing.T) {
	w := newTestWeather(t, nil)
	httpmock.RegisterResponder("GET", testForecastURL,
		httpmock.NewStringResponder(200, `{"cod":"400","message":"wrong latitude"}`))

	_, err := w.Forecast(t.Context(), 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamStatus)
	assert.Contains(t, err.Error(), "wrong latitude")
}

func TestForecast_NotConfigured(t *testing.T) {
	w := NewWeather(WeatherConfig{Endpoint: testForecastURL}, newMockedClient(t), nil)
	_, err := w.Forecast(t.Context(), 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}
