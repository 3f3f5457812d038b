// Package conf provides configuration management for KrishiSahay.
package conf

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/krishisahay/krishisahay-go/internal/logger"
	"github.com/krishisahay/krishisahay-go/internal/secrets"
)

// Settings is the complete runtime configuration.
type Settings struct {
	Debug bool `yaml:"debug"`

	Server      ServerSettings       `yaml:"server"`
	Logging     logger.LoggingConfig `yaml:"logging"`
	Model       ModelSettings        `yaml:"model"`
	Gemini      GeminiSettings       `yaml:"gemini"`
	Google      GoogleSettings       `yaml:"google"`
	Speech      SpeechSettings       `yaml:"speech"`
	Places      PlacesSettings       `yaml:"places"`
	OpenWeather OpenWeatherSettings  `yaml:"openweather"`
	Crisis      CrisisSettings       `yaml:"crisis"`
	Scraper     ScraperSettings      `yaml:"scraper"`
	Database    DatabaseSettings     `yaml:"database"`
	Session     SessionSettings      `yaml:"session"`
	Uploads     UploadsSettings      `yaml:"uploads"`
	Metrics     MetricsSettings      `yaml:"metrics"`
	Sentry      SentrySettings       `yaml:"sentry"`

	// ConfigFile is the config file that was read, empty when running on defaults
	ConfigFile string `yaml:"-" mapstructure:"-"`
}

// ServerSettings contains settings for the HTTP listener.
type ServerSettings struct {
	Listen          string        `yaml:"listen"`
	BodyLimit       string        `yaml:"bodylimit"`       // echo body limit, e.g. "20M"
	RateLimit       float64       `yaml:"ratelimit"`       // requests per second per client IP on /chat and /predict, 0 disables
	RateBurst       int           `yaml:"rateburst"`       // burst allowance for the rate limiter
	AllowedOrigins  []string      `yaml:"allowedorigins"`  // CORS origins
	ShutdownTimeout time.Duration `yaml:"shutdowntimeout"` // graceful shutdown deadline
}

// ModelSettings contains settings for the leaf disease classifier.
type ModelSettings struct {
	Path       string `yaml:"path"`       // path to the .tflite model
	LabelsPath string `yaml:"labelspath"` // optional labels file, one label per line
	Threads    int    `yaml:"threads"`    // interpreter threads, 0 uses all cores
	InputSize  int    `yaml:"inputsize"`  // square input resolution in pixels
}

// GeminiSettings contains settings for the generative-language API.
type GeminiSettings struct {
	APIKey     string        `yaml:"apikey"`
	APIKeyFile string        `yaml:"apikeyfile"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
}

// GoogleSettings holds the Google Cloud API key shared by Speech-to-Text and Text-to-Speech.
type GoogleSettings struct {
	APIKey     string `yaml:"apikey"`
	APIKeyFile string `yaml:"apikeyfile"`
}

// SpeechSettings contains settings for transcription and synthesis.
type SpeechSettings struct {
	FFmpegPath       string        `yaml:"ffmpegpath"`
	SampleRate       int           `yaml:"samplerate"`       // canonical sample rate in Hz
	DefaultLanguage  string        `yaml:"defaultlanguage"`  // BCP-47 code used when none is given
	SilenceThreshold float64       `yaml:"silencethreshold"` // peak amplitude (0..1) under which audio counts as silent
	Timeout          time.Duration `yaml:"timeout"`
	SpeechEndpoint   string        `yaml:"speechendpoint"` // override for the Speech-to-Text endpoint
	TTSEndpoint      string        `yaml:"ttsendpoint"`    // override for the Text-to-Speech endpoint
}

// PlacesSettings contains settings for the places text search and details APIs.
type PlacesSettings struct {
	APIKey          string        `yaml:"apikey"`
	APIKeyFile      string        `yaml:"apikeyfile"`
	SearchEndpoint  string        `yaml:"searchendpoint"`
	DetailsEndpoint string        `yaml:"detailsendpoint"`
	DefaultQuery    string        `yaml:"defaultquery"`
	CacheTTL        time.Duration `yaml:"cachettl"` // place details cache lifetime, 0 disables caching
}

// OpenWeatherSettings contains settings for the forecast API.
type OpenWeatherSettings struct {
	APIKey     string `yaml:"apikey"`
	APIKeyFile string `yaml:"apikeyfile"`
	Endpoint   string `yaml:"endpoint"`
	Units      string `yaml:"units"`
}

// CrisisSettings holds the forecast thresholds that flag crisis conditions.
type CrisisSettings struct {
	HeavyRainMM     float64  `yaml:"heavyrainmm"`     // rain volume over 3 hours
	HeatC           float64  `yaml:"heatc"`           // temperature above this is extreme heat
	ColdC           float64  `yaml:"coldc"`           // temperature below this is extreme cold
	WindMS          float64  `yaml:"windms"`          // wind speed above this is high wind
	DustWindMS      float64  `yaml:"dustwindms"`      // wind speed above this turns dust conditions into a dust storm
	StormConditions []string `yaml:"stormconditions"` // weather "main" values treated as storms
	DustConditions  []string `yaml:"dustconditions"`  // weather "main" values treated as airborne dust
}

// ScraperSettings contains settings for the government schemes scraper.
type ScraperSettings struct {
	URL               string           `yaml:"url"`
	Headless          bool             `yaml:"headless"`
	NavigationTimeout time.Duration    `yaml:"navigationtimeout"`
	SettleTime        time.Duration    `yaml:"settletime"`
	Selectors         ScraperSelectors `yaml:"selectors"`
}

// ScraperSelectors are the CSS selectors used to pick scheme fields out of the rendered page.
type ScraperSelectors struct {
	Card        string `yaml:"card"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Ministry    string `yaml:"ministry"`
	Description string `yaml:"description"`
	Pagination  string `yaml:"pagination"`
}

// DatabaseSettings selects and configures the relational store.
type DatabaseSettings struct {
	Type   string         `yaml:"type"` // sqlite or mysql
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
	Debug  bool           `yaml:"debug"`
}

// SQLiteSettings contains settings for the SQLite database.
type SQLiteSettings struct {
	Path string `yaml:"path"`
}

// MySQLSettings contains settings for the MySQL database.
type MySQLSettings struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"passwordfile"`
	Database     string `yaml:"database"`
}

// SessionSettings contains settings for login sessions.
type SessionSettings struct {
	Backend       string        `yaml:"backend"` // database or redis
	Secret        string        `yaml:"secret"`  // cookie signing key
	SecretFile    string        `yaml:"secretfile"`
	CookieName    string        `yaml:"cookiename"`
	MaxAge        time.Duration `yaml:"maxage"` // sliding expiry
	Secure        bool          `yaml:"secure"` // set the Secure cookie attribute
	SweepInterval time.Duration `yaml:"sweepinterval"`
	Redis         RedisSettings `yaml:"redis"`
}

// RedisSettings contains settings for the redis session backend.
type RedisSettings struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// UploadsSettings contains settings for rental photo storage.
type UploadsSettings struct {
	Path    string `yaml:"path"`
	MaxSize int64  `yaml:"maxsize"` // bytes per photo
}

// MetricsSettings toggles the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool `yaml:"enabled"`
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// Load reads configuration from configFile (or the default search paths when
// empty), environment variables and defaults, resolves secrets and validates
// the result.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		// Invalid env values are reported but do not stop startup; validation catches what matters
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if err := readConfigFile(v, configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	settings.ConfigFile = v.ConfigFileUsed()

	if err := resolveSecrets(settings); err != nil {
		return nil, fmt.Errorf("error resolving secrets: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// readConfigFile reads an explicit config file, or searches the default paths.
// A missing file in the search paths is not an error.
func readConfigFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range defaultConfigPaths() {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			GetLogger().Info("no config file found, using defaults and environment")
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// defaultConfigPaths returns the directories searched for config.yaml.
func defaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "krishisahay"))
	}
	return append(paths, "/etc/krishisahay")
}

// resolveSecrets replaces secret fields with their resolved values. When no
// session secret is configured a random one is generated, which invalidates
// sessions on restart.
func resolveSecrets(s *Settings) error {
	targets := []struct {
		name  string
		file  string
		value *string
	}{
		{"gemini.apikey", s.Gemini.APIKeyFile, &s.Gemini.APIKey},
		{"google.apikey", s.Google.APIKeyFile, &s.Google.APIKey},
		{"places.apikey", s.Places.APIKeyFile, &s.Places.APIKey},
		{"openweather.apikey", s.OpenWeather.APIKeyFile, &s.OpenWeather.APIKey},
		{"session.secret", s.Session.SecretFile, &s.Session.Secret},
		{"database.mysql.password", s.Database.MySQL.PasswordFile, &s.Database.MySQL.Password},
		{"sentry.dsn", "", &s.Sentry.DSN},
	}

	for _, t := range targets {
		resolved, err := secrets.Resolve(t.file, *t.value)
		if err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
		*t.value = resolved
	}

	if s.Session.Secret == "" {
		s.Session.Secret = GenerateRandomSecret()
		GetLogger().Warn("session.secret not set, generated a random secret; sessions will not survive restarts")
	}
	return nil
}

// GenerateRandomSecret returns a URL-safe base64 string with 256 bits of entropy.
func GenerateRandomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		GetLogger().Error("failed to generate random secret", logger.Error(err))
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
