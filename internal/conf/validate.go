// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/labstack/gommon/bytes"
)

// Session backend names.
const (
	SessionBackendDatabase = "database"
	SessionBackendRedis    = "redis"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateServerSettings,
		validateModelSettings,
		validateEndpointSettings,
		validateCrisisSettings,
		validateScraperSettings,
		validateDatabaseSettings,
		validateSessionSettings,
		validateUploadsSettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateServerSettings(s *Settings) error {
	var errs []string
	if strings.TrimSpace(s.Server.Listen) == "" {
		errs = append(errs, "server.listen must not be empty")
	}
	if _, err := bytes.Parse(s.Server.BodyLimit); err != nil {
		errs = append(errs, fmt.Sprintf("server.bodylimit '%s' is invalid: %v", s.Server.BodyLimit, err))
	}
	if s.Server.RateLimit < 0 {
		errs = append(errs, "server.ratelimit must not be negative")
	}
	if s.Server.RateLimit > 0 && s.Server.RateBurst < 1 {
		errs = append(errs, "server.rateburst must be at least 1 when rate limiting is enabled")
	}
	return joinErrors(errs)
}

func validateModelSettings(s *Settings) error {
	var errs []string
	if s.Model.Threads < 0 {
		errs = append(errs, "model.threads must not be negative")
	}
	if s.Model.InputSize <= 0 {
		errs = append(errs, "model.inputsize must be positive")
	}
	return joinErrors(errs)
}

func validateEndpointSettings(s *Settings) error {
	var errs []string
	endpoints := map[string]string{
		"places.searchendpoint":  s.Places.SearchEndpoint,
		"places.detailsendpoint": s.Places.DetailsEndpoint,
		"openweather.endpoint":   s.OpenWeather.Endpoint,
	}
	for key, raw := range endpoints {
		if err := validateHTTPURL(raw); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if s.Places.CacheTTL < 0 {
		errs = append(errs, "places.cachettl must not be negative")
	}
	if s.Gemini.Timeout <= 0 {
		errs = append(errs, "gemini.timeout must be positive")
	}
	if s.Speech.Timeout <= 0 {
		errs = append(errs, "speech.timeout must be positive")
	}
	if s.Speech.SampleRate <= 0 {
		errs = append(errs, "speech.samplerate must be positive")
	}
	if s.Speech.SilenceThreshold < 0 || s.Speech.SilenceThreshold >= 1 {
		errs = append(errs, "speech.silencethreshold must be in [0, 1)")
	}
	return joinErrors(errs)
}

func validateCrisisSettings(s *Settings) error {
	var errs []string
	c := s.Crisis
	if c.ColdC >= c.HeatC {
		errs = append(errs, fmt.Sprintf("crisis.coldc (%g) must be below crisis.heatc (%g)", c.ColdC, c.HeatC))
	}
	if c.HeavyRainMM < 0 || c.WindMS < 0 || c.DustWindMS < 0 {
		errs = append(errs, "crisis rain and wind thresholds must not be negative")
	}
	return joinErrors(errs)
}

func validateScraperSettings(s *Settings) error {
	var errs []string
	if err := validateHTTPURL(s.Scraper.URL); err != nil {
		errs = append(errs, fmt.Sprintf("scraper.url: %v", err))
	}
	if s.Scraper.NavigationTimeout <= 0 {
		errs = append(errs, "scraper.navigationtimeout must be positive")
	}
	if s.Scraper.SettleTime < 0 {
		errs = append(errs, "scraper.settletime must not be negative")
	}
	if strings.TrimSpace(s.Scraper.Selectors.Card) == "" {
		errs = append(errs, "scraper.selectors.card must not be empty")
	}
	return joinErrors(errs)
}

func validateDatabaseSettings(s *Settings) error {
	switch strings.ToLower(s.Database.Type) {
	case "sqlite":
		if s.Database.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path must not be empty")
		}
	case "mysql":
		m := s.Database.MySQL
		if m.Host == "" || m.Port == "" || m.Username == "" || m.Database == "" {
			return fmt.Errorf("database.mysql requires host, port, username and database")
		}
	default:
		return fmt.Errorf("database.type must be sqlite or mysql, got '%s'", s.Database.Type)
	}
	return nil
}

func validateSessionSettings(s *Settings) error {
	var errs []string
	switch strings.ToLower(s.Session.Backend) {
	case SessionBackendDatabase:
	case SessionBackendRedis:
		if s.Session.Redis.Addr == "" {
			errs = append(errs, "session.redis.addr is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("session.backend must be %s or %s, got '%s'",
			SessionBackendDatabase, SessionBackendRedis, s.Session.Backend))
	}
	if s.Session.MaxAge <= 0 {
		errs = append(errs, "session.maxage must be positive")
	}
	if s.Session.CookieName == "" {
		errs = append(errs, "session.cookiename must not be empty")
	}
	return joinErrors(errs)
}

func validateUploadsSettings(s *Settings) error {
	if strings.TrimSpace(s.Uploads.Path) == "" {
		return fmt.Errorf("uploads.path must not be empty")
	}
	if s.Uploads.MaxSize <= 0 {
		return fmt.Errorf("uploads.maxsize must be positive")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL must be http or https, got '%s'", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: '%s'", raw)
	}
	return nil
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}
