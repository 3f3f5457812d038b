package lookup

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/krishisahay/krishisahay-go/internal/errors"
	"github.com/krishisahay/krishisahay-go/internal/httpclient"
	"github.com/krishisahay/krishisahay-go/internal/logger"
	"github.com/krishisahay/krishisahay-go/internal/observability/metrics"
)

const (
	placesStatusOK          = "OK"
	placesStatusZeroResults = "ZERO_RESULTS"

	// searchRadiusMeters biases text search results around the given coordinates
	searchRadiusMeters = "5000"
)

// Store is one place search result.
type Store struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	PlaceID string  `json:"place_id"`
}

// PlacesConfig configures the places adapter.
type PlacesConfig struct {
	APIKey          string
	SearchEndpoint  string
	DetailsEndpoint string
	DefaultQuery    string
	CacheTTL        time.Duration // 0 disables the details cache
}

// Places queries the place text search and place details APIs.
type Places struct {
	cfg      PlacesConfig
	client   *httpclient.Client
	cache    *cache.Cache
	recorder Recorder
}

// placesSearchResponse is the subset of the text search envelope we relay.
type placesSearchResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Name             string `json:"name"`
		FormattedAddress string `json:"formatted_address"`
		PlaceID          string `json:"place_id"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// NewPlaces creates a places adapter. recorder may be nil.
func NewPlaces(cfg PlacesConfig, client *httpclient.Client, recorder Recorder) *Places {
	p := &Places{cfg: cfg, client: client, recorder: recorder}
	if cfg.CacheTTL > 0 {
		p.cache = cache.New(cfg.CacheTTL, cfg.CacheTTL*2)
	}
	return p
}

// FindStores searches for storeType near lat/lon. An empty storeType uses
// the configured default query verbatim.
func (p *Places) FindStores(ctx context.Context, lat, lon float64, storeType string) ([]Store, error) {
	if p.cfg.APIKey == "" {
		return nil, notConfigured(metrics.ServicePlaces)
	}

	query := p.cfg.DefaultQuery
	if st := strings.TrimSpace(storeType); st != "" {
		query = st + " near me"
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("location", formatCoord(lat)+","+formatCoord(lon))
	params.Set("radius", searchRadiusMeters)
	params.Set("key", p.cfg.APIKey)

	start := time.Now()
	var resp placesSearchResponse
	if err := p.client.GetJSON(ctx, p.cfg.SearchEndpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, upstreamError(metrics.ServicePlaces, "text_search", err)
	}

	switch resp.Status {
	case placesStatusOK:
	case placesStatusZeroResults:
		return []Store{}, nil
	default:
		GetLogger().WithContext(ctx).Warn("place search returned error status",
			logger.String("status", resp.Status),
			logger.String("error_message", resp.ErrorMessage))
		return nil, envelopeError(metrics.ServicePlaces, "text_search", resp.Status, resp.ErrorMessage)
	}

	stores := make([]Store, 0, len(resp.Results))
	for i := range resp.Results {
		r := &resp.Results[i]
		stores = append(stores, Store{
			Name:    r.Name,
			Address: r.FormattedAddress,
			Lat:     r.Geometry.Location.Lat,
			Lon:     r.Geometry.Location.Lng,
			PlaceID: r.PlaceID,
		})
	}

	GetLogger().WithContext(ctx).Debug("place search completed",
		logger.String("query", query),
		logger.Int("results", len(stores)),
		logger.Duration("elapsed", time.Since(start)))
	return stores, nil
}

// PlaceDetails returns the raw details envelope for placeID. Successful
// responses are cached for the configured TTL.
func (p *Places) PlaceDetails(ctx context.Context, placeID string) (json.RawMessage, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, errors.ValidationError("place_id is required")
	}
	if p.cfg.APIKey == "" {
		return nil, notConfigured(metrics.ServicePlaces)
	}

	if p.cache != nil {
		if cached, found := p.cache.Get(placeID); found {
			if body, ok := cached.(json.RawMessage); ok {
				p.recordCacheLookup(true)
				return body, nil
			}
		}
		p.recordCacheLookup(false)
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("key", p.cfg.APIKey)

	body, err := p.client.GetBytes(ctx, p.cfg.DetailsEndpoint+"?"+params.Encode())
	if err != nil {
		return nil, upstreamError(metrics.ServicePlaces, "details", err)
	}

	status, message, err := probeEnvelope(body, "status", "error_message")
	if err != nil {
		return nil, upstreamError(metrics.ServicePlaces, "details", err)
	}
	if status != placesStatusOK {
		GetLogger().WithContext(ctx).Warn("place details returned error status",
			logger.String("place_id", placeID),
			logger.String("status", status),
			logger.String("error_message", message))
		return nil, envelopeError(metrics.ServicePlaces, "details", status, message)
	}

	raw := json.RawMessage(body)
	if p.cache != nil {
		p.cache.Set(placeID, raw, cache.DefaultExpiration)
	}
	return raw, nil
}

func (p *Places) recordCacheLookup(hit bool) {
	if p.recorder != nil {
		p.recorder.RecordCacheLookup(hit)
	}
}
