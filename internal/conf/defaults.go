// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default endpoints and values shared with tests and the CLI.
const (
	DefaultPlacesSearchEndpoint  = "https://maps.googleapis.com/maps/api/place/textsearch/json"
	DefaultPlacesDetailsEndpoint = "https://maps.googleapis.com/maps/api/place/details/json"
	DefaultOpenWeatherEndpoint   = "https://api.openweathermap.org/data/2.5/forecast"
	DefaultStoreQuery            = "agriculture supply store near me"
	DefaultSchemesURL            = "https://www.myscheme.gov.in/search/category/Agriculture,Rural%20%26%20Environment"
	DefaultGeminiModel           = "gemini-2.0-flash-exp"
)

// setDefaultConfig registers default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.listen", ":5000")
	v.SetDefault("server.bodylimit", "20M")
	v.SetDefault("server.ratelimit", 2.0)
	v.SetDefault("server.rateburst", 5)
	v.SetDefault("server.allowedorigins", []string{"*"})
	v.SetDefault("server.shutdowntimeout", 10*time.Second)

	v.SetDefault("logging.defaultlevel", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.fileoutput.enabled", false)
	v.SetDefault("logging.fileoutput.path", "logs/krishisahay.log")
	v.SetDefault("logging.fileoutput.level", "info")

	v.SetDefault("model.path", "plant_disease_model.tflite")
	v.SetDefault("model.labelspath", "")
	v.SetDefault("model.threads", 0)
	v.SetDefault("model.inputsize", 224)

	v.SetDefault("gemini.apikey", "")
	v.SetDefault("gemini.apikeyfile", "")
	v.SetDefault("gemini.model", DefaultGeminiModel)
	v.SetDefault("gemini.timeout", 60*time.Second)

	v.SetDefault("google.apikey", "")
	v.SetDefault("google.apikeyfile", "")

	v.SetDefault("speech.ffmpegpath", "ffmpeg")
	v.SetDefault("speech.samplerate", 16000)
	v.SetDefault("speech.defaultlanguage", "en")
	v.SetDefault("speech.silencethreshold", 0.01)
	v.SetDefault("speech.timeout", 30*time.Second)
	v.SetDefault("speech.speechendpoint", "")
	v.SetDefault("speech.ttsendpoint", "")

	v.SetDefault("places.apikey", "")
	v.SetDefault("places.apikeyfile", "")
	v.SetDefault("places.searchendpoint", DefaultPlacesSearchEndpoint)
	v.SetDefault("places.detailsendpoint", DefaultPlacesDetailsEndpoint)
	v.SetDefault("places.defaultquery", DefaultStoreQuery)
	v.SetDefault("places.cachettl", 10*time.Minute)

	v.SetDefault("openweather.apikey", "")
	v.SetDefault("openweather.apikeyfile", "")
	v.SetDefault("openweather.endpoint", DefaultOpenWeatherEndpoint)
	v.SetDefault("openweather.units", "metric")

	v.SetDefault("crisis.heavyrainmm", 20.0)
	v.SetDefault("crisis.heatc", 40.0)
	v.SetDefault("crisis.coldc", 5.0)
	v.SetDefault("crisis.windms", 20.0)
	v.SetDefault("crisis.dustwindms", 10.0)
	v.SetDefault("crisis.stormconditions", []string{"Thunderstorm", "Tornado", "Squall"})
	v.SetDefault("crisis.dustconditions", []string{"Dust", "Sand", "Ash"})

	v.SetDefault("scraper.url", DefaultSchemesURL)
	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.navigationtimeout", 45*time.Second)
	v.SetDefault("scraper.settletime", 3*time.Second)
	v.SetDefault("scraper.selectors.card", "div.mt-2 > div")
	v.SetDefault("scraper.selectors.title", "h2")
	v.SetDefault("scraper.selectors.link", "a[href]")
	v.SetDefault("scraper.selectors.ministry", "h2 + h2, p[class*=font-normal]")
	v.SetDefault("scraper.selectors.description", "span.line-clamp-2")
	v.SetDefault("scraper.selectors.pagination", "ul.list-none")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite.path", "krishisahay.db")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", "3306")
	v.SetDefault("database.mysql.username", "krishisahay")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.passwordfile", "")
	v.SetDefault("database.mysql.database", "krishisahay")
	v.SetDefault("database.debug", false)

	v.SetDefault("session.backend", "database")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.secretfile", "")
	v.SetDefault("session.cookiename", "krishisahay_session")
	v.SetDefault("session.maxage", 7*24*time.Hour)
	v.SetDefault("session.secure", false)
	v.SetDefault("session.sweepinterval", time.Hour)
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)

	v.SetDefault("uploads.path", "uploads")
	v.SetDefault("uploads.maxsize", 5*1024*1024)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}
