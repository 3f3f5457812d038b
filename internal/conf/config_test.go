package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a config.yaml into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)

	assert.Equal(t, ":5000", settings.Server.Listen)
	assert.Equal(t, "20M", settings.Server.BodyLimit)
	assert.Equal(t, 224, settings.Model.InputSize)
	assert.Equal(t, DefaultGeminiModel, settings.Gemini.Model)
	assert.Equal(t, DefaultStoreQuery, settings.Places.DefaultQuery)
	assert.Equal(t, "metric", settings.OpenWeather.Units)
	assert.InDelta(t, 20.0, settings.Crisis.HeavyRainMM, 1e-9)
	assert.InDelta(t, 40.0, settings.Crisis.HeatC, 1e-9)
	assert.InDelta(t, 5.0, settings.Crisis.ColdC, 1e-9)
	assert.Equal(t, []string{"Thunderstorm", "Tornado", "Squall"}, settings.Crisis.StormConditions)
	assert.Equal(t, 45*time.Second, settings.Scraper.NavigationTimeout)
	assert.Equal(t, 3*time.Second, settings.Scraper.SettleTime)
	assert.Equal(t, "div.mt-2 > div", settings.Scraper.Selectors.Card)
	assert.Equal(t, "sqlite", settings.Database.Type)
	assert.Equal(t, SessionBackendDatabase, settings.Session.Backend)
	assert.Equal(t, 7*24*time.Hour, settings.Session.MaxAge)
	assert.NotEmpty(t, settings.Session.Secret, "a random session secret is generated")
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":8080"
  ratelimit: 0
crisis:
  heavyrainmm: 15
  stormconditions: [Thunderstorm]
session:
  maxage: 24h
  secret: fixed-secret
`)
	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", settings.Server.Listen)
	assert.Zero(t, settings.Server.RateLimit)
	assert.InDelta(t, 15.0, settings.Crisis.HeavyRainMM, 1e-9)
	assert.Equal(t, []string{"Thunderstorm"}, settings.Crisis.StormConditions)
	assert.Equal(t, 24*time.Hour, settings.Session.MaxAge)
	assert.Equal(t, "fixed-secret", settings.Session.Secret)
	assert.Equal(t, path, settings.ConfigFile)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \":8080\"\n")
	t.Setenv("KRISHI_LISTEN", ":9090")
	t.Setenv("KRISHI_DATABASE_TYPE", "mysql")
	t.Setenv("KRISHI_MYSQL_PASSWORD", "hunter2")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", settings.Server.Listen)
	assert.Equal(t, "mysql", settings.Database.Type)
	assert.Equal(t, "hunter2", settings.Database.MySQL.Password)
}

func TestLoad_SecretsExpandedAndReadFromFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "places_key")
	require.NoError(t, os.WriteFile(keyFile, []byte("places-from-file\n"), 0o600))
	t.Setenv("KRISHI_TEST_GEMINI", "gemini-from-env")

	path := writeConfig(t, `
gemini:
  apikey: "${KRISHI_TEST_GEMINI}"
places:
  apikeyfile: `+keyFile+`
`)
	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-from-env", settings.Gemini.APIKey)
	assert.Equal(t, "places-from-file", settings.Places.APIKey)
}

func TestLoad_MissingSecretVariableFails(t *testing.T) {
	path := writeConfig(t, "openweather:\n  apikey: \"${KRISHI_TEST_DEFINITELY_UNSET}\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openweather.apikey")
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestMasked(t *testing.T) {
	settings, err := Load(writeConfig(t, "gemini:\n  apikey: AIzaSecretKey1234\n"))
	require.NoError(t, err)

	masked := settings.Masked()
	assert.Equal(t, "*************1234", masked.Gemini.APIKey)
	assert.Equal(t, "AIzaSecretKey1234", settings.Gemini.APIKey, "original is untouched")
	assert.NotEqual(t, settings.Session.Secret, masked.Session.Secret)
}
