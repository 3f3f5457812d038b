package lookup

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/httpclient"
)

const (
	testSearchURL   = "https://places.test/textsearch/json"
	testDetailsURL  = "https://places.test/details/json"
	testForecastURL = "https://weather.test/forecast"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordCrisisEvent(condition string) { m.Called(condition) }
func (m *mockRecorder) RecordCacheLookup(hit bool)         { m.Called(hit) }

// newMockedClient returns a shared client whose transport is replaced by httpmock.
func newMockedClient(t *testing.T) *httpclient.Client {
	t.Helper()
	client := httpclient.New(nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func newTestPlaces(t *testing.T, ttl time.Duration, rec Recorder) *Places {
	t.Helper()
	return NewPlaces(PlacesConfig{
		APIKey:          "test-key",
		SearchEndpoint:  testSearchURL,
		DetailsEndpoint: testDetailsURL,
		DefaultQuery:    "agriculture supply store near me",
		CacheTTL:        ttl,
	}, newMockedClient(t), rec)
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     string
		lon     string
		wantLat float64
		wantLon float64
		wantErr bool
	}{
		{"origin", "0", "0", 0, 0, false},
		{"pune", "18.5204", "73.8567", 18.5204, 73.8567, false},
		{"padded", " 12.5 ", "-7", 12.5, -7, false},
		{"missing lat", "", "73", 0, 0, true},
		{"missing lon", "18", "", 0, 0, true},
		{"not a number", "north", "73", 0, 0, true},
		{"nan", "NaN", "73", 0, 0, true},
		{"lat out of range", "91", "73", 0, 0, true},
		{"lon out of range", "18", "-181", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, err := ParseCoordinates(tt.lat, tt.lon)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantLat, lat, 1e-9)
			assert.InDelta(t, tt.wantLon, lon, 1e-9)
		})
	}
}

func TestFindStores_DefaultQueryAndShape(t *testing.T) {
	p := newTestPlaces(t, 0, nil)

	var query url.Values
	httpmock.RegisterResponder("GET", testSearchURL, func(req *http.Request) (*http.Response, error) {
		query = req.URL.Query()
		return httpmock.NewStringResponse(200, `{
			"status": "OK",
			"results": [{
				"name": "Kisan Agro Centre",
				"formatted_address": "Market Yard, Pune",
				"place_id": "ChIJ123",
				"geometry": {"location": {"lat": 18.51, "lng": 73.85}},
				"rating": 4.2
			}]
		}`), nil
	})

	stores, err := p.FindStores(t.Context(), 0, 0, "")
	require.NoError(t, err)

	assert.Equal(t, "agriculture supply store near me", query.Get("query"))
	assert.Equal(t, "0,0", query.Get("location"))
	assert.Equal(t, "test-key", query.Get("key"))

	require.Len(t, stores, 1)
	assert.Equal(t, Store{
		Name:    "Kisan Agro Centre",
		Address: "Market Yard, Pune",
		Lat:     18.51,
		Lon:     73.85,
		PlaceID: "ChIJ123",
	}, stores[0])

	out, err := json.Marshal(stores[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Kisan Agro Centre","address":"Market Yard, Pune","lat":18.51,"lon":73.85,"place_id":"ChIJ123"}`, string(out))
}

func TestFindStores_StoreTypeQuery(t *testing.T) {
	p := newTestPlaces(t, 0, nil)

	var query url.Values
	httpmock.RegisterResponder("GET", testSearchURL, func(req *http.Request) (*http.Response, error) {
		query = req.URL.Query()
		return httpmock.NewStringResponse(200, `{"status":"OK","results":[]}`), nil
	})

	stores, err := p.FindStores(t.Context(), 18.5, 73.8, "pesticide store")
	require.NoError(t, err)
	assert.Empty(t, stores)
	assert.Equal(t, "pesticide store near me", query.Get("query"))
	assert.Equal(t, "18.5,73.8", query.Get("location"))
}

func TestFindStores_ZeroResultsIsEmpty(t *testing.T) {
	p := newTestPlaces(t, 0, nil)
	httpmock.RegisterResponder("GET", testSearchURL,
		httpmock.NewStringResponder(200, `{"status":"ZERO_RESULTS","results":[]}`))

	stores, err := p.FindStores(t.Context(), 1, 1, "")
	require.NoError(t, err)
	assert.NotNil(t, stores)
	assert.Empty(t, stores)
}

func TestFindStores_ErrorStatus(t *testing.T) {
	p := newTestPlaces(t, 0, nil)
	httpmock.RegisterResponder("GET", testSearchURL,
		httpmock.NewStringResponder(200, `{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`))

	_, err := p.FindStores(t.Context(), 1, 1, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamStatus)
	assert.True(t, errors.IsCategory(err, errors.CategoryUpstream))
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
	assert.Contains(t, err.Error(), "The provided API key is invalid.")
}

func TestFindStores_TransportErrorHidesKey(t *testing.T) {
	p := newTestPlaces(t, 0, nil)
	httpmock.RegisterResponder("GET", testSearchURL, httpmock.NewErrorResponder(fmt.Errorf("connection reset")))

	_, err := p.FindStores(t.Context(), 1, 1, "")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryUpstream))
	assert.NotContains(t, err.Error(), "test-key")
}

func TestFindStores_NotConfigured(t *testing.T) {
	p := NewPlaces(PlacesConfig{SearchEndpoint: testSearchURL}, httpclient.New(nil), nil)
	_, err := p.FindStores(t.Context(), 1, 1, "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPlaceDetails_RelaysRawAndCaches(t *testing.T) {
	rec := &mockRecorder{}
	rec.On("RecordCacheLookup", false).Once()
	rec.On("RecordCacheLookup", true).Once()
	p := newTestPlaces(t, time.Minute, rec)

	upstream := `{"status":"OK","result":{"name":"Kisan Agro Centre","formatted_phone_number":"020 1234 5678"}}`
	httpmock.RegisterResponder("GET", testDetailsURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "ChIJ123", req.URL.Query().Get("place_id"))
		return httpmock.NewStringResponse(200, upstream), nil
	})

	first, err := p.PlaceDetails(t.Context(), "ChIJ123")
	require.NoError(t, err)
	assert.JSONEq(t, upstream, string(first))

	second, err := p.PlaceDetails(t.Context(), "ChIJ123")
	require.NoError(t, err)
	assert.JSONEq(t, upstream, string(second))

	assert.Equal(t, 1, httpmock.GetTotalCallCount())
	rec.AssertExpectations(t)
}

func TestPlaceDetails_ErrorStatusNotCached(t *testing.T) {
	p := newTestPlaces(t, time.Minute, nil)
	httpmock.RegisterResponder("GET", testDetailsURL,
		httpmock.NewStringResponder(200, `{"status":"INVALID_REQUEST"}`))

	for range 2 {
		_, err := p.PlaceDetails(t.Context(), "bogus")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUpstreamStatus)
	}
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestPlaceDetails_MissingID(t *testing.T) {
	p := newTestPlaces(t, 0, nil)
	_, err := p.PlaceDetails(t.Context(), " ")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}
